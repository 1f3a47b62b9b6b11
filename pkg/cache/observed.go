package cache

import (
	"context"
	"time"

	"github.com/matzehuels/phylomorph/pkg/observability"
)

// Observed wraps c so that hits, misses and writes reach the registered
// [observability.CacheHooks].
func Observed(c Cache) Cache {
	if _, ok := c.(observed); ok {
		return c
	}
	return observed{c}
}

type observed struct{ Cache }

func (o observed) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, hit, err := o.Cache.Get(ctx, key)
	if err == nil {
		if hit {
			observability.Cache().OnCacheHit(ctx, kindOf(key))
		} else {
			observability.Cache().OnCacheMiss(ctx, kindOf(key))
		}
	}
	return data, hit, err
}

func (o observed) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	err := o.Cache.Set(ctx, key, data, ttl)
	if err == nil {
		observability.Cache().OnCacheSet(ctx, kindOf(key), len(data))
	}
	return err
}

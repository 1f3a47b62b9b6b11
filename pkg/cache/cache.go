// Package cache stores parsed tree runs, layouts and rendered frames.
//
// Three backends implement [Cache]: [FileCache] for the CLI, [RedisCache]
// for servers sharing work between processes, and [NullCache] when caching
// is disabled. Keys are built by a [Keyer] from content hashes and the
// options that influence the cached value, so a change to any of them
// produces a fresh key rather than a stale hit.
//
//	c, err := cache.NewFileCache(dir)
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	key := cache.NewDefaultKeyer().LayoutKey(runHash, cache.LayoutKeyOpts{Index: 3})
//	if data, ok, _ := c.Get(ctx, key); ok {
//	    ...
//	}
package cache

import (
	"context"
	"time"
)

// TTLs for each kind of cached value.
const (
	TTLTrees    = 24 * time.Hour
	TTLLayout   = 7 * 24 * time.Hour
	TTLArtifact = 7 * 24 * time.Hour
)

// Key types reported to the cache hooks.
const (
	KindTrees    = "trees"
	KindLayout   = "layout"
	KindArtifact = "artifact"
)

// Cache is a byte store with per-entry expiry.
type Cache interface {
	// Get returns the value for key. A miss is (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of zero never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases the backend.
	Close() error
}

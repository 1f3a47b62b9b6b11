package pipeline

import (
	"context"
	"time"

	"github.com/matzehuels/phylomorph/pkg/cache"
	"github.com/matzehuels/phylomorph/pkg/observability"
	"github.com/matzehuels/phylomorph/pkg/source"
	"github.com/matzehuels/phylomorph/pkg/tree"
)

// Load reads and prepares the run described by opts, reporting whether it
// came from the cache.
func (r *Runner) Load(ctx context.Context, opts Options) ([]*tree.Node, bool, error) {
	if err := opts.ValidateForLoad(); err != nil {
		return nil, false, err
	}
	r.applyLogger(&opts)

	hooks := observability.Pipeline()
	hooks.OnLoadStart(ctx, opts.Source)
	start := time.Now()
	trees, hit, err := r.load(ctx, opts)
	hooks.OnLoadComplete(ctx, opts.Source, len(trees), time.Since(start), err)
	return trees, hit, err
}

func (r *Runner) load(ctx context.Context, opts Options) ([]*tree.Node, bool, error) {
	data := opts.Data
	if data == nil {
		var err error
		if data, err = source.Read(ctx, opts.Source); err != nil {
			return nil, false, err
		}
	}

	format := tree.Format(opts.Format)
	if format == "" {
		format = tree.DetectFormat(source.Name(opts.Source, ""), data)
	}
	key := r.Keyer.TreesKey(cache.Hash(data), cache.TreesKeyOpts{Format: string(format), LeafOrder: opts.LeafOrder})

	if !opts.Refresh {
		if cached, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
			trees, err := tree.DecodeJSON(cached)
			if err == nil && tree.Prepare(trees) == nil {
				opts.Logger.Debug("trees from cache", "source", opts.Source)
				return trees, true, nil
			}
			opts.Logger.Warn("discarding unreadable cache entry", "key", key, "err", err)
		} else if err != nil {
			opts.Logger.Warn("cache read failed", "err", err)
		}
	}

	trees, err := Parse(data, format, opts.LeafOrder)
	if err != nil {
		return nil, false, err
	}

	if enc, err := tree.EncodeJSON(trees); err == nil {
		if err := r.Cache.Set(ctx, key, enc, cache.TTLTrees); err != nil {
			opts.Logger.Warn("cache write failed", "err", err)
		}
	}
	return trees, false, nil
}

// Parse decodes data and assigns splits, using order as the global leaf
// order when the trees carry none.
func Parse(data []byte, format tree.Format, order []string) ([]*tree.Node, error) {
	trees, err := tree.Parse(data, format)
	if err != nil {
		return nil, err
	}
	if order != nil {
		if err := tree.AssignSplits(trees, order); err != nil {
			return nil, err
		}
	}
	if err := tree.Prepare(trees); err != nil {
		return nil, err
	}
	return trees, nil
}

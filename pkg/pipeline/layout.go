package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/matzehuels/phylomorph/pkg/cache"
	perrors "github.com/matzehuels/phylomorph/pkg/errors"
	"github.com/matzehuels/phylomorph/pkg/layout"
	"github.com/matzehuels/phylomorph/pkg/observability"
	"github.com/matzehuels/phylomorph/pkg/tree"
)

// Layouts lays out every tree of the run, reporting whether all of them
// came from the cache.
func (r *Runner) Layouts(ctx context.Context, trees []*tree.Node, opts Options) ([]*layout.Layout, bool, error) {
	if err := opts.ValidateForLayout(); err != nil {
		return nil, false, err
	}
	r.applyLogger(&opts)

	runHash := RunHash(trees)
	global := globalMax(trees, opts)
	out := make([]*layout.Layout, len(trees))
	allHit := true
	for i := range trees {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}
		l, hit, err := r.layout(ctx, trees, i, runHash, global, opts)
		if err != nil {
			return nil, false, err
		}
		out[i] = l
		allHit = allHit && hit
	}
	return out, allHit, nil
}

// Layout lays out tree i of the run.
func (r *Runner) Layout(ctx context.Context, trees []*tree.Node, i int, opts Options) (*layout.Layout, bool, error) {
	if err := opts.ValidateForLayout(); err != nil {
		return nil, false, err
	}
	r.applyLogger(&opts)
	if i < 0 || i >= len(trees) {
		return nil, false, perrors.New(perrors.ErrCodeInvalidIndex, "tree index %d out of range [0, %d)", i, len(trees))
	}
	return r.layout(ctx, trees, i, RunHash(trees), globalMax(trees, opts), opts)
}

func (r *Runner) layout(ctx context.Context, trees []*tree.Node, i int, runHash string, global float64, opts Options) (*layout.Layout, bool, error) {
	key := r.Keyer.LayoutKey(runHash, opts.LayoutKeyOpts(i))
	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
			var l layout.Layout
			if err := json.Unmarshal(data, &l); err == nil {
				return &l, true, nil
			}
		}
	}

	hooks := observability.Pipeline()
	hooks.OnLayoutStart(ctx, i, len(trees[i].Leaves()))
	start := time.Now()
	l, err := GenerateLayout(trees[i], global, opts)
	hooks.OnLayoutComplete(ctx, i, time.Since(start), err)
	if err != nil {
		return nil, false, fmt.Errorf("tree %d: %w", i, err)
	}

	if data, err := json.Marshal(l); err == nil {
		if err := r.Cache.Set(ctx, key, data, cache.TTLLayout); err != nil {
			opts.Logger.Warn("cache write failed", "err", err)
		}
	}
	opts.Logger.Debug("layout", "index", i, "max_radius", l.MaxRadius, "scale", l.Scale)
	return l, false, nil
}

// GenerateLayout lays out one tree. global is the run's largest unscaled
// leaf radius, used only when opts.UniformScale is set.
func GenerateLayout(t *tree.Node, global float64, opts Options) (*layout.Layout, error) {
	lopts := []layout.Option{layout.WithMargin(opts.Margin), layout.WithTransform(opts.Mode())}
	if opts.UniformScale {
		lopts = append(lopts, layout.WithUniformScale(global))
	}
	return layout.Radial(t, opts.Canvas(), lopts...)
}

func globalMax(trees []*tree.Node, opts Options) float64 {
	if !opts.UniformScale {
		return 0
	}
	var u layout.UniformScale
	return u.Global(trees, opts.Mode())
}

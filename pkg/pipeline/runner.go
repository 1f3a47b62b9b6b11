package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/phylomorph/pkg/cache"
	"github.com/matzehuels/phylomorph/pkg/tree"
)

// Runner encapsulates pipeline execution with caching. It keeps no results
// between calls, so goroutines may share one Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner. A nil keyer means [cache.DefaultKeyer], a nil
// cache disables caching and a nil logger means [log.Default].
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  cache.Observed(c),
		Keyer:  keyer,
		Logger: logger,
	}
}

// Execute loads the trees, lays them all out and renders either a movie
// (opts.Frames > 0) or the tree at opts.Index.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	r.applyLogger(&opts)
	result := &Result{}

	loadStart := time.Now()
	trees, loadHit, err := r.Load(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	result.Trees = trees
	result.RunHash = RunHash(trees)
	result.Stats.LoadTime = time.Since(loadStart)
	result.Stats.TreeCount = len(trees)
	result.Stats.LeafCount = len(trees[0].Leaves())
	result.CacheInfo.LoadHit = loadHit

	opts.Logger.Info("loaded trees",
		"trees", len(trees),
		"leaves", result.Stats.LeafCount,
		"duration", result.Stats.LoadTime)

	layoutStart := time.Now()
	layouts, layoutHit, err := r.Layouts(ctx, trees, opts)
	if err != nil {
		return nil, fmt.Errorf("layout: %w", err)
	}
	result.Layouts = layouts
	result.Stats.LayoutTime = time.Since(layoutStart)
	result.CacheInfo.LayoutHit = layoutHit

	opts.Logger.Info("computed layouts",
		"count", len(layouts),
		"duration", result.Stats.LayoutTime)

	renderStart := time.Now()
	if opts.Frames > 0 {
		movie, hit, err := r.renderMovie(ctx, trees, opts)
		if err != nil {
			return nil, fmt.Errorf("render: %w", err)
		}
		result.Movie = movie
		result.Stats.FrameCount = len(movie)
		result.CacheInfo.RenderHit = hit
	} else {
		artifacts, hit, err := r.RenderTreeWithCacheInfo(ctx, trees, opts.Index, opts)
		if err != nil {
			return nil, fmt.Errorf("render: %w", err)
		}
		result.Artifacts = artifacts
		result.Stats.FrameCount = 1
		result.CacheInfo.RenderHit = hit
	}
	result.Stats.RenderTime = time.Since(renderStart)

	opts.Logger.Info("rendered outputs",
		"formats", opts.Formats,
		"frames", result.Stats.FrameCount,
		"duration", result.Stats.RenderTime)

	return result, nil
}

// RunHash is the content hash of a prepared run, the root of its layout
// and artifact keys.
func RunHash(trees []*tree.Node) string {
	data, err := tree.EncodeJSON(trees)
	if err != nil {
		return ""
	}
	return cache.Hash(data)
}

// Close releases the cache.
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}

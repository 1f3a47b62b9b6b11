package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/phylomorph/pkg/animate"
	"github.com/matzehuels/phylomorph/pkg/cache"
	perrors "github.com/matzehuels/phylomorph/pkg/errors"
	"github.com/matzehuels/phylomorph/pkg/observability"
	"github.com/matzehuels/phylomorph/pkg/render"
	"github.com/matzehuels/phylomorph/pkg/render/scene"
	"github.com/matzehuels/phylomorph/pkg/render/sink"
	"github.com/matzehuels/phylomorph/pkg/tree"
)

// Session is a controller drawing one run onto an offscreen scene. The
// run's label radius is pinned to the target of its first transition, so
// every frame of a run places labels identically whatever is drawn first.
type Session struct {
	Store      *animate.MemoryStore
	Scene      *scene.Scene
	Controller *animate.Controller
}

// NewSession builds a session for trees. Extra controller options are
// applied after the ones derived from opts. The caller must Close it.
func NewSession(ctx context.Context, trees []*tree.Node, opts Options, extra ...animate.Option) (*Session, error) {
	if err := opts.ValidateForRender(); err != nil {
		return nil, err
	}
	store := animate.NewMemoryStore(trees)
	store.SetTransform(opts.Mode())
	store.SetUniformScale(opts.UniformScale)
	store.SetStrokeWidth(opts.StrokeWidth)
	store.SetFontSizeEm(opts.FontSizeEm)

	sopts := []scene.Option{scene.WithCanvas(opts.Canvas()), scene.WithLogger(opts.Logger)}
	if opts.Background != "" {
		sopts = append(sopts, scene.WithBackground(opts.Background))
	}
	sc := scene.New(sopts...)
	copts := append([]animate.Option{
		animate.WithLogger(opts.Logger),
		animate.WithCanvas(opts.Canvas()),
		animate.WithMargin(opts.Margin),
		animate.WithOffsets(opts.LabelOffset, opts.ExtensionOffset),
	}, extra...)
	ctrl, err := animate.New(store, sc.Backend(), copts...)
	if err != nil {
		return nil, err
	}
	if err := ctrl.PinRadii(ctx, min(1, len(trees)-1)); err != nil {
		ctrl.Destroy()
		return nil, err
	}
	if _, err := ctrl.UpdateFromStore(ctx); err != nil {
		ctrl.Destroy()
		return nil, err
	}
	return &Session{Store: store, Scene: sc, Controller: ctrl}, nil
}

// Close tears the session down.
func (s *Session) Close() { s.Controller.Destroy() }

// Tree renders tree i in full.
func (s *Session) Tree(ctx context.Context, i int, highlight []string) (render.Frame, error) {
	if n := len(s.Store.Trees()); i < 0 || i >= n {
		return render.Frame{}, perrors.New(perrors.ErrCodeInvalidIndex, "tree index %d out of range [0, %d)", i, n)
	}
	s.Store.SetIndex(i)
	return s.Controller.RenderAllElements(ctx, animate.FrameOptions{Highlight: highlight})
}

// RenderTree renders tree i of the run in every requested format.
func (r *Runner) RenderTree(ctx context.Context, trees []*tree.Node, i int, opts Options) (map[string][]byte, error) {
	artifacts, _, err := r.RenderTreeWithCacheInfo(ctx, trees, i, opts)
	return artifacts, err
}

// RenderTreeWithCacheInfo is [Runner.RenderTree] reporting whether every
// format came from the cache.
func (r *Runner) RenderTreeWithCacheInfo(ctx context.Context, trees []*tree.Node, i int, opts Options) (map[string][]byte, bool, error) {
	return r.renderOne(ctx, trees, i, i, 0, opts, func(s *Session) (render.Frame, error) {
		return s.Tree(ctx, i, opts.Highlight)
	})
}

// RenderFrame renders the transition from -> to at timeline t in every
// requested format. opts.Backward plays it in reverse.
func (r *Runner) RenderFrame(ctx context.Context, trees []*tree.Node, from, to int, t float64, opts Options) (map[string][]byte, error) {
	artifacts, _, err := r.renderOne(ctx, trees, from, to, t, opts, func(s *Session) (render.Frame, error) {
		res, err := s.Controller.RenderInterpolatedFrame(ctx, from, to, t, animate.FrameOptions{
			Direction: opts.Direction(),
			Highlight: opts.Highlight,
		})
		return res.Frame, err
	})
	return artifacts, err
}

func (r *Runner) renderOne(ctx context.Context, trees []*tree.Node, from, to int, t float64, opts Options, draw func(*Session) (render.Frame, error)) (map[string][]byte, bool, error) {
	if err := opts.ValidateForRender(); err != nil {
		return nil, false, err
	}
	r.applyLogger(&opts)
	runHash := RunHash(trees)

	keys := make(map[string]string, len(opts.Formats))
	for _, format := range opts.Formats {
		keys[format] = r.Keyer.ArtifactKey(runHash, opts.ArtifactKeyOpts(from, to, t, format))
	}
	if !opts.Refresh {
		if artifacts, ok := r.cached(ctx, keys); ok {
			return artifacts, true, nil
		}
	}

	hooks := observability.Pipeline()
	hooks.OnRenderStart(ctx, opts.Formats)
	start := time.Now()
	artifacts, err := r.drawAndEncode(ctx, trees, opts, draw)
	hooks.OnRenderComplete(ctx, opts.Formats, time.Since(start), err)
	if err != nil {
		return nil, false, err
	}
	r.store(ctx, keys, artifacts, opts)
	return artifacts, false, nil
}

func (r *Runner) drawAndEncode(ctx context.Context, trees []*tree.Node, opts Options, draw func(*Session) (render.Frame, error)) (map[string][]byte, error) {
	s, err := NewSession(ctx, trees, opts)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	f, err := draw(s)
	if err != nil {
		return nil, err
	}
	return Encode(ctx, f, opts.Formats)
}

// RenderMovie samples opts.Frames frames per transition across the whole
// run, eased by opts.Ease, and encodes them in parallel.
func (r *Runner) RenderMovie(ctx context.Context, trees []*tree.Node, opts Options) ([]MovieFrame, error) {
	movie, _, err := r.renderMovie(ctx, trees, opts)
	return movie, err
}

func (r *Runner) renderMovie(ctx context.Context, trees []*tree.Node, opts Options) ([]MovieFrame, bool, error) {
	if err := opts.ValidateForRender(); err != nil {
		return nil, false, err
	}
	r.applyLogger(&opts)
	if opts.Frames == 0 {
		opts.Frames = DefaultFrames
	}

	movie := Timeline(len(trees), opts.Frames, opts.Ease, opts.Backward)
	runHash := RunHash(trees)
	keys := make([]map[string]string, len(movie))
	allHit := !opts.Refresh
	for seq, mf := range movie {
		keys[seq] = make(map[string]string, len(opts.Formats))
		for _, format := range opts.Formats {
			keys[seq][format] = r.Keyer.ArtifactKey(runHash, opts.ArtifactKeyOpts(mf.From, mf.To, mf.T, format))
		}
		if allHit {
			movie[seq].Artifacts, allHit = r.cached(ctx, keys[seq])
		}
	}
	if allHit {
		opts.Logger.Debug("movie from cache", "frames", len(movie))
		return movie, true, nil
	}

	hooks := observability.Pipeline()
	hooks.OnRenderStart(ctx, opts.Formats)
	start := time.Now()
	err := r.drawMovie(ctx, trees, movie, keys, opts)
	hooks.OnRenderComplete(ctx, opts.Formats, time.Since(start), err)
	if err != nil {
		return nil, false, err
	}
	return movie, false, nil
}

// drawMovie renders the frames in order on one session and hands each to
// a bounded pool of encoders.
func (r *Runner) drawMovie(ctx context.Context, trees []*tree.Node, movie []MovieFrame, keys []map[string]string, opts Options) error {
	s, err := NewSession(ctx, trees, opts)
	if err != nil {
		return err
	}
	defer s.Close()

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	var finished atomic.Int64

	for seq := range movie {
		mf := &movie[seq]
		var f render.Frame
		if len(trees) < 2 {
			f, err = s.Tree(gctx, 0, opts.Highlight)
		} else {
			var res animate.Result
			res, err = s.Controller.RenderInterpolatedFrame(gctx, mf.From, mf.To, mf.T, animate.FrameOptions{
				Direction: opts.Direction(),
				Highlight: opts.Highlight,
			})
			f = res.Frame
		}
		if err != nil {
			_ = g.Wait()
			return fmt.Errorf("frame %d: %w", seq, err)
		}
		g.Go(func() error {
			artifacts, err := Encode(gctx, f, opts.Formats)
			if err != nil {
				return fmt.Errorf("frame %d: %w", seq, err)
			}
			mf.Artifacts = artifacts
			r.store(gctx, keys[seq], artifacts, opts)
			if opts.Progress != nil {
				opts.Progress(int(finished.Add(1)), len(movie))
			}
			return nil
		})
	}
	return g.Wait()
}

// Timeline returns the frame positions of a movie over n trees with frames
// samples per transition. Positions are eased by the named easing.
func Timeline(n, frames int, easing string, backward bool) []MovieFrame {
	if n < 2 {
		return []MovieFrame{{}}
	}
	fn := animate.Eases[easing]
	total := (n-1)*frames + 1
	out := make([]MovieFrame, total)
	for seq := range out {
		progress := float64(seq) / float64(total-1)
		if backward {
			progress = 1 - progress
		}
		from, to, t := animate.Position(progress, n, fn)
		out[seq] = MovieFrame{Seq: seq, From: from, To: to, T: t}
	}
	return out
}

// Encode writes f in every format.
func Encode(ctx context.Context, f render.Frame, formats []string) (map[string][]byte, error) {
	artifacts := make(map[string][]byte, len(formats))
	for _, format := range formats {
		data, err := sink.Render(ctx, f, sink.Format(format))
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", format, err)
		}
		artifacts[format] = data
	}
	return artifacts, nil
}

func (r *Runner) cached(ctx context.Context, keys map[string]string) (map[string][]byte, bool) {
	artifacts := make(map[string][]byte, len(keys))
	for format, key := range keys {
		data, hit, err := r.Cache.Get(ctx, key)
		if err != nil || !hit {
			return nil, false
		}
		artifacts[format] = data
	}
	return artifacts, true
}

func (r *Runner) store(ctx context.Context, keys map[string]string, artifacts map[string][]byte, opts Options) {
	for format, data := range artifacts {
		if err := r.Cache.Set(ctx, keys[format], data, cache.TTLArtifact); err != nil {
			opts.Logger.Warn("cache write failed", "format", format, "err", err)
		}
	}
}

package animate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/phylomorph/pkg/diff"
	"github.com/matzehuels/phylomorph/pkg/edgechange"
	perrors "github.com/matzehuels/phylomorph/pkg/errors"
	"github.com/matzehuels/phylomorph/pkg/layout"
	"github.com/matzehuels/phylomorph/pkg/morph"
	"github.com/matzehuels/phylomorph/pkg/observability"
	"github.com/matzehuels/phylomorph/pkg/render"
)

// ErrDestroyed is returned by every call on a destroyed controller.
var ErrDestroyed = errors.New("controller destroyed")

// DefaultFrameInterval is the tick of the animation loop.
const DefaultFrameInterval = time.Second / 60

// FrameOptions tune one rendered frame.
type FrameOptions struct {
	Direction diff.Direction
	Highlight []string
}

// Result is one rendered frame and the engine's report on it.
type Result struct {
	Frame  render.Frame `json:"frame"`
	Report morph.Report `json:"report"`
}

// Option configures a [Controller].
type Option func(*Controller)

// WithLogger sets the controller logger. The engine logs through it too.
func WithLogger(l *log.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithCanvas overrides the canvas reported by the viewport.
func WithCanvas(cv layout.Canvas) Option {
	return func(c *Controller) { c.canvas, c.canvasSet = cv, true }
}

// WithMargin sets the layout margin.
func WithMargin(m float64) Option {
	return func(c *Controller) { c.margin = m }
}

// WithTolerances sets the link classification thresholds.
func WithTolerances(t edgechange.Tolerances) Option {
	return func(c *Controller) { c.tol = t }
}

// WithOffsets sets the label and extension offsets beyond the initial
// maximum leaf radius.
func WithOffsets(label, extension float64) Option {
	return func(c *Controller) { c.radii = NewRadiusPolicy(label, extension) }
}

// WithColors sets the colour manager.
func WithColors(cm render.ColorManager) Option {
	return func(c *Controller) {
		if cm != nil {
			c.colors = cm
		}
	}
}

// WithPlayer sets the playback clock.
func WithPlayer(p *Player) Option {
	return func(c *Controller) {
		if p != nil {
			c.player = p
		}
	}
}

// WithFrameInterval sets the tick of the animation loop.
func WithFrameInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithFrameHandler receives every frame the animation loop renders.
func WithFrameHandler(fn func(Result)) Option {
	return func(c *Controller) { c.onFrame = fn }
}

// Controller owns the layouts of a run and drives a [morph.Engine] from a
// [Store].
type Controller struct {
	id       uuid.UUID
	store    Store
	backend  render.Backend
	engine   *morph.Engine
	logger   *log.Logger
	canvas   layout.Canvas
	margin   float64
	tol      edgechange.Tolerances
	radii    *RadiusPolicy
	colors   render.ColorManager
	interval time.Duration
	onFrame  func(Result)

	mu      sync.Mutex
	layouts map[int]*layout.Layout
	scale   layout.UniformScale

	playMu       sync.Mutex
	player       *Player
	lastProgress float64

	loopMu sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	canvasSet bool
	destroyed atomic.Bool
}

// New returns a controller reading store and drawing onto b.
func New(store Store, b render.Backend, opts ...Option) (*Controller, error) {
	if store == nil {
		return nil, perrors.New(perrors.ErrCodeInvalidInput, "nil store")
	}
	if !b.Complete() {
		return nil, perrors.Wrap(perrors.ErrCodeInvalidInput, morph.ErrIncompleteBackend, "animation controller")
	}
	c := &Controller{
		id:       uuid.New(),
		store:    store,
		backend:  b,
		logger:   log.NewWithOptions(io.Discard, log.Options{}),
		margin:   layout.DefaultMargin,
		tol:      edgechange.DefaultTolerances(),
		radii:    NewRadiusPolicy(morph.DefaultLabelOffset, morph.DefaultExtensionOffset),
		colors:   render.NewPalette(),
		interval: DefaultFrameInterval,
		layouts:  make(map[int]*layout.Layout),
		player:   NewPlayer(DefaultTransitionDuration, nil),
	}
	for _, opt := range opts {
		opt(c)
	}
	if !c.canvasSet {
		w, h := b.Viewport.CanvasDimensions()
		c.canvas = layout.Canvas{Width: w, Height: h}
	}
	c.logger = c.logger.With("run", c.id.String()[:8])

	engine, err := morph.New(b,
		morph.WithLogger(c.logger),
		morph.WithRadii(c.radii),
		morph.WithTolerances(c.tol),
		morph.WithStyle(c.style()),
	)
	if err != nil {
		return nil, err
	}
	c.engine = engine
	c.logger.Debug("controller ready", "trees", len(store.Trees()), "canvas", fmt.Sprintf("%vx%v", c.canvas.Width, c.canvas.Height))
	return c, nil
}

// ID identifies the run in logs.
func (c *Controller) ID() uuid.UUID { return c.id }

// Engine returns the interpolation engine.
func (c *Controller) Engine() *morph.Engine { return c.engine }

// Colors returns the colour manager.
func (c *Controller) Colors() render.ColorManager { return c.colors }

// LabelRadius returns the run's stable label radius.
func (c *Controller) LabelRadius() float64 { return c.radii.LabelRadius() }

// ExtensionRadius returns the run's stable extension radius.
func (c *Controller) ExtensionRadius() float64 { return c.radii.ExtensionRadius() }

func (c *Controller) alive(op string) error {
	if c.destroyed.Load() {
		c.logger.Warn("call on destroyed controller", "op", op)
		return ErrDestroyed
	}
	return nil
}

func (c *Controller) style() render.Style {
	s := render.DefaultStyle()
	s.StrokeWidth = c.store.StrokeWidth()
	s.FontSizeEm = c.store.FontSizeEm()
	s.Colors = c.colors
	return s
}

// syncInputs drops every cached layout when the transform, the uniform
// scale switch or the cache epoch changed since the last call.
func (c *Controller) syncInputs() {
	key := radiusKey{mode: c.store.Transform(), uniform: c.store.UniformScale(), epoch: c.store.CacheEpoch()}
	c.mu.Lock()
	changed := c.radii.sync(key)
	if changed {
		clear(c.layouts)
		c.scale.Invalidate()
	}
	c.mu.Unlock()
	if changed {
		c.engine.Reset()
		c.logger.Info("layout inputs changed, recomputing radii", "transform", key.mode, "uniform", key.uniform)
	}

	want := c.style()
	cur := c.engine.Style()
	if cur.StrokeWidth != want.StrokeWidth || cur.FontSizeEm != want.FontSizeEm {
		c.engine.SetStyle(want)
	}
}

// UpdateFromStore reads the current index and layout inputs and returns the
// layout of the current tree, building it when needed.
func (c *Controller) UpdateFromStore(ctx context.Context) (*layout.Layout, error) {
	if err := c.alive("UpdateFromStore"); err != nil {
		return nil, err
	}
	c.syncInputs()
	l, err := c.Layout(ctx, c.store.Index())
	if err != nil {
		return nil, err
	}
	c.radii.Ensure(l)
	return l, nil
}

// PinRadii fixes the stable radii from the layout of tree i unless they
// are already set.
func (c *Controller) PinRadii(ctx context.Context, i int) error {
	if err := c.alive("PinRadii"); err != nil {
		return err
	}
	c.syncInputs()
	l, err := c.Layout(ctx, i)
	if err != nil {
		return err
	}
	c.radii.Ensure(l)
	return nil
}

// Layout returns the layout of tree i, building and caching it on first use.
func (c *Controller) Layout(ctx context.Context, i int) (*layout.Layout, error) {
	trees := c.store.Trees()
	if i < 0 || i >= len(trees) {
		return nil, perrors.New(perrors.ErrCodeInvalidIndex, "tree index %d out of range [0, %d)", i, len(trees))
	}
	if trees[i] == nil {
		c.logger.Warn("nil tree", "index", i)
		return nil, perrors.Wrap(perrors.ErrCodeInvalidTree, layout.ErrNilTree, "tree %d", i)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if l, ok := c.layouts[i]; ok {
		return l, nil
	}

	mode := c.store.Transform()
	opts := []layout.Option{layout.WithMargin(c.margin), layout.WithTransform(mode)}
	if c.store.UniformScale() {
		opts = append(opts, layout.WithUniformScale(c.scale.Global(trees, mode)))
	}

	hooks := observability.Pipeline()
	hooks.OnLayoutStart(ctx, i, len(trees[i].Leaves()))
	start := time.Now()
	l, err := layout.Radial(trees[i], c.canvas, opts...)
	hooks.OnLayoutComplete(ctx, i, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("tree %d: %w", i, err)
	}
	c.layouts[i] = l
	c.logger.Debug("layout", "index", i, "max_radius", l.MaxRadius, "scale", l.Scale)
	return l, nil
}

func (c *Controller) resetLayouts() {
	c.mu.Lock()
	clear(c.layouts)
	c.scale.Invalidate()
	c.mu.Unlock()
	c.engine.Reset()
}

// RenderAllElements draws the current tree from scratch, focuses the
// viewport on it and returns the composed frame.
func (c *Controller) RenderAllElements(ctx context.Context, o FrameOptions) (render.Frame, error) {
	l, err := c.UpdateFromStore(ctx)
	if err != nil {
		return render.Frame{}, err
	}
	if err := c.engine.RenderInstant(ctx, morph.Instant{Layout: l, Index: c.store.Index(), Highlight: o.Highlight}); err != nil {
		return render.Frame{}, err
	}
	c.backend.Viewport.FocusOnTree(l.MaxRadius)
	return c.backend.Viewport.Render()
}

// RenderInterpolatedFrame draws the transition from -> to at timeline
// progress t. The result depends only on its arguments and the store's
// layout inputs.
func (c *Controller) RenderInterpolatedFrame(ctx context.Context, from, to int, t float64, o FrameOptions) (Result, error) {
	if err := c.alive("RenderInterpolatedFrame"); err != nil {
		return Result{}, err
	}
	c.syncInputs()

	draw := func() (morph.Report, error) {
		lf, err := c.Layout(ctx, from)
		if err != nil {
			return morph.Report{}, err
		}
		lt, err := c.Layout(ctx, to)
		if err != nil {
			return morph.Report{}, err
		}
		if _, ok := c.radii.Initial(); !ok {
			target := lt
			if o.Direction == diff.Backward {
				target = lf
			}
			c.radii.Ensure(target)
		}
		c.backend.Viewport.FocusOnTree(max(lf.MaxRadius, lt.MaxRadius))
		return c.engine.RenderFrame(ctx, morph.Request{
			From: lf, To: lt, FromIndex: from, ToIndex: to,
			T: t, Direction: o.Direction, Highlight: o.Highlight,
		})
	}

	rep, err := draw()
	if err != nil {
		return Result{Report: rep}, err
	}
	if rep.Mismatch {
		c.logger.Warn("layout cache mismatch, re-rendering", "from", from, "to", to)
		c.resetLayouts()
		if rep, err = draw(); err != nil {
			return Result{Report: rep}, err
		}
	}
	if rep.Superseded {
		return Result{Report: rep}, nil
	}
	f, err := c.backend.Viewport.Render()
	if err != nil {
		return Result{Report: rep}, err
	}
	return Result{Frame: f, Report: rep}, nil
}

// Step advances playback by dt and renders the frame at the new position.
// It reports whether the end of the timeline was reached.
func (c *Controller) Step(ctx context.Context, dt time.Duration) (Result, bool, error) {
	if err := c.alive("Step"); err != nil {
		return Result{}, true, err
	}
	n := len(c.store.Trees())
	pb := c.store.Playback()

	c.playMu.Lock()
	// Follow scrubbing done through the store while playing.
	if !c.player.Active() || math.Abs(pb.Progress-c.lastProgress) > 1e-9 || pb.Direction != c.player.Direction() {
		c.player.Start(pb.Progress, pb.Direction, n)
	}
	progress, finished := c.player.Update(dt)
	from, to, t := c.player.Position(progress, n)
	dir := c.player.Direction()
	c.lastProgress = progress
	c.playMu.Unlock()

	c.store.SetPosition(int(math.Round(progress*float64(max(n-1, 0)))), progress)
	res, err := c.RenderInterpolatedFrame(ctx, from, to, t, FrameOptions{Direction: dir})
	if err == nil && !res.Report.Superseded && c.onFrame != nil {
		c.onFrame(res)
	}
	if finished {
		c.store.SetPlaying(false, dir)
	}
	return res, finished, err
}

// StartAnimation plays the timeline from the store's progress in the
// store's direction until it ends, StopAnimation is called or ctx is done.
func (c *Controller) StartAnimation(ctx context.Context) error {
	if err := c.alive("StartAnimation"); err != nil {
		return err
	}
	c.loopMu.Lock()
	defer c.loopMu.Unlock()
	if c.done != nil {
		select {
		case <-c.done:
		default:
			return nil
		}
	}
	pb := c.store.Playback()
	c.playMu.Lock()
	c.player.Start(pb.Progress, pb.Direction, len(c.store.Trees()))
	c.lastProgress = c.player.Progress()
	c.playMu.Unlock()
	c.store.SetPlaying(true, pb.Direction)

	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel, c.done = cancel, make(chan struct{})
	go c.loop(loopCtx, c.done)
	c.logger.Info("animation started", "progress", pb.Progress, "dir", pb.Direction)
	return nil
}

func (c *Controller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if !c.store.Playback().Playing {
				c.logger.Debug("playback paused by store")
				return
			}
			dt := now.Sub(last)
			last = now
			_, finished, err := c.Step(ctx, dt)
			switch {
			case errors.Is(err, ErrDestroyed):
				return
			case err != nil:
				c.logger.Warn("animation frame failed", "err", err)
			}
			if finished {
				c.logger.Info("animation finished")
				return
			}
		}
	}
}

// StopAnimation stops the loop and waits for it to exit.
func (c *Controller) StopAnimation() {
	c.loopMu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.loopMu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done

	c.playMu.Lock()
	c.player.Stop()
	dir := c.player.Direction()
	c.playMu.Unlock()
	c.store.SetPlaying(false, dir)
}

// Animating reports whether the animation loop is running.
func (c *Controller) Animating() bool {
	c.loopMu.Lock()
	defer c.loopMu.Unlock()
	if c.done == nil {
		return false
	}
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

// Destroy stops the loop and tears down every renderer. Later calls return
// [ErrDestroyed].
func (c *Controller) Destroy() {
	if c.destroyed.Swap(true) {
		return
	}
	c.StopAnimation()
	c.engine.Close()
	for _, r := range c.backend.Renderers() {
		r.Destroy()
	}
	c.mu.Lock()
	c.layouts = make(map[int]*layout.Layout)
	c.mu.Unlock()
	c.logger.Info("controller destroyed")
}

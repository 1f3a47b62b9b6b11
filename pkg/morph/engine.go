package morph

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

	"github.com/matzehuels/phylomorph/pkg/diff"
	"github.com/matzehuels/phylomorph/pkg/edgechange"
	"github.com/matzehuels/phylomorph/pkg/layout"
	"github.com/matzehuels/phylomorph/pkg/observability"
	"github.com/matzehuels/phylomorph/pkg/polar"
	"github.com/matzehuels/phylomorph/pkg/render"
)

var (
	// ErrNilLayout is returned when a frame is requested without a layout.
	// The renderers are left untouched.
	ErrNilLayout = errors.New("nil layout")

	// ErrIncompleteBackend is returned by New when a renderer is missing.
	ErrIncompleteBackend = errors.New("incomplete render backend")
)

// Validation runs when the renderer t is within boundaryBand of 0 or 1.
const boundaryBand = 0.05

// Request describes one frame of the transition From -> To. Indices key the
// element cache; a negative index bypasses it.
type Request struct {
	From      *layout.Layout
	To        *layout.Layout
	FromIndex int
	ToIndex   int

	// T is timeline progress in [0, 1]; values outside are clamped.
	T         float64
	Direction diff.Direction
	Highlight []string
}

// Instant describes a static frame of one layout.
type Instant struct {
	Layout    *layout.Layout
	Index     int
	Highlight []string
}

// Report summarizes one frame.
type Report struct {
	Generation uint64             `json:"generation"`
	From       int                `json:"from"`
	To         int                `json:"to"`
	T          float64            `json:"t"`
	Direction  string             `json:"direction"`
	Stages     int                `json:"stages"`
	Superseded bool               `json:"superseded,omitempty"`
	Classes    edgechange.Summary `json:"classes"`
	Entered    int                `json:"entered"`
	Updated    int                `json:"updated"`
	Exited     int                `json:"exited"`
	Missing    int                `json:"missing,omitempty"`
	Errors     int                `json:"errors,omitempty"`
	Validated  bool               `json:"validated,omitempty"`
	Mismatch   bool               `json:"mismatch,omitempty"`
	Duration   time.Duration      `json:"duration"`
}

// Option configures an [Engine].
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithTolerances sets the link classification thresholds.
func WithTolerances(t edgechange.Tolerances) Option {
	return func(e *Engine) { e.tol = t }
}

// WithRadii replaces the stable radii policy.
func WithRadii(r Radii) Option {
	return func(e *Engine) {
		if r != nil {
			e.radii = r
		}
	}
}

// WithStyle sets the base style of every frame.
func WithStyle(s render.Style) Option {
	return func(e *Engine) { e.style = s }
}

// WithYield sets the function run between stages.
func WithYield(y Yield) Option {
	return func(e *Engine) {
		if y != nil {
			e.yield = y
		}
	}
}

// WithWait sets how long a frame waits for its predecessor before queuing
// on it. The value is clamped to [MinWait, MaxWait].
func WithWait(d time.Duration) Option {
	return func(e *Engine) { e.wait = d }
}

// WithMismatchHandler registers fn to run after a boundary mismatch has
// cleared the engine caches. The owner uses it to drop its own layout
// caches before re-rendering. fn runs with the engine locked and must not
// call back into it.
func WithMismatchHandler(fn func()) Option {
	return func(e *Engine) { e.onMismatch = fn }
}

// Engine renders transition frames onto a backend. Frames are serialized;
// a newer frame supersedes an older one between stages.
type Engine struct {
	backend    render.Backend
	logger     *log.Logger
	tol        edgechange.Tolerances
	radii      Radii
	style      render.Style
	yield      Yield
	wait       time.Duration
	onMismatch func()

	gen   atomic.Uint64
	busy  atomic.Bool
	stale atomic.Bool

	mu          sync.Mutex
	elements    map[int]*diff.Elements
	unsubscribe func()
}

// New returns an engine drawing onto b.
func New(b render.Backend, opts ...Option) (*Engine, error) {
	if !b.Complete() {
		return nil, ErrIncompleteBackend
	}
	e := &Engine{
		backend:  b,
		logger:   log.NewWithOptions(io.Discard, log.Options{}),
		tol:      edgechange.DefaultTolerances(),
		radii:    NewStableRadii(),
		style:    render.DefaultStyle(),
		yield:    defaultYield,
		wait:     MinWait,
		elements: make(map[int]*diff.Elements),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.unsubscribe = e.style.Palette().Subscribe(func() { e.stale.Store(true) })
	return e, nil
}

// Generation returns the number of frames requested so far.
func (e *Engine) Generation() uint64 { return e.gen.Load() }

// Radii returns the stable radii policy.
func (e *Engine) Radii() Radii { return e.radii }

// Style returns the base style.
func (e *Engine) Style() render.Style {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.style
}

// SetStyle replaces the base style. A new colour manager is subscribed in
// place of the old one and every renderer is recoloured on the next frame.
func (e *Engine) SetStyle(s render.Style) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.unsubscribe != nil {
		e.unsubscribe()
	}
	e.style = s
	e.unsubscribe = s.Palette().Subscribe(func() { e.stale.Store(true) })
	e.stale.Store(true)
}

// Reset drops the element cache. Renderers are left as they are.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	clear(e.elements)
}

// Close unsubscribes from the colour manager.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.unsubscribe != nil {
		e.unsubscribe()
		e.unsubscribe = nil
	}
}

// RenderFrame draws one frame of req. A frame superseded by a newer request
// returns early with Report.Superseded set and a nil error.
func (e *Engine) RenderFrame(ctx context.Context, req Request) (Report, error) {
	if req.From == nil || req.To == nil {
		e.logger.Warn("frame without layout, skipping", "from", req.FromIndex, "to", req.ToIndex)
		return Report{}, ErrNilLayout
	}
	gen := e.gen.Add(1)
	if !waitFor(ctx, e.wait, func() bool { return !e.busy.Load() }) {
		e.logger.Debug("previous frame still running, queuing", "generation", gen)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.busy.Store(true)
	defer e.busy.Store(false)

	rep := Report{Generation: gen, From: req.FromIndex, To: req.ToIndex, Direction: req.Direction.String()}
	if e.gen.Load() != gen {
		rep.Superseded = true
		return rep, nil
	}
	start := time.Now()

	t := polar.Clamp01(req.T)
	if req.From == req.To || (req.FromIndex >= 0 && req.FromIndex == req.ToIndex) {
		t = 0
	}
	res := diff.Compute(e.elementsFor(req.FromIndex, req.From), e.elementsFor(req.ToIndex, req.To), req.Direction)
	tt := t
	if req.Direction == diff.Backward {
		tt = reverse(t)
	}
	rep.T = tt

	// The first transition drawn fixes the stable radii from its target.
	e.radii.Ensure(res.To.Layout)
	style := e.frameStyle(req.Highlight)
	if e.stale.Swap(false) {
		e.invalidate()
	}

	stages := []func(context.Context, diff.Result, float64, render.Style, *Report){e.enter, e.update, e.exit}
	for i, stage := range stages {
		if i > 0 {
			if err := e.yield(ctx); err != nil {
				return rep, err
			}
			if e.gen.Load() != gen {
				rep.Superseded = true
				e.logger.Debug("frame superseded", "generation", gen, "stages", rep.Stages)
				observability.Morph().OnFrame(ctx, req.FromIndex, req.ToIndex, tt, time.Since(start), true)
				return rep, nil
			}
		}
		stage(ctx, res, tt, style, &rep)
		rep.Stages++
	}

	if tt <= boundaryBand || tt >= 1-boundaryBand {
		e.validate(ctx, req, res, tt, &rep)
	}
	rep.Duration = time.Since(start)
	e.logger.Debug("frame",
		"from", req.FromIndex, "to", req.ToIndex, "t", tt, "dir", req.Direction,
		"enter", rep.Entered, "update", rep.Updated, "exit", rep.Exited,
		"reorder", rep.Classes.Reorder, "retopo", rep.Classes.Retopo)
	observability.Morph().OnFrame(ctx, req.FromIndex, req.ToIndex, tt, rep.Duration, false)
	return rep, nil
}

// reverse maps t onto the swapped diff. Interior times stay interior:
// 1-t rounds to exactly 1 for tiny t, which would drop the exiting set.
func reverse(t float64) float64 {
	if t > 0 && t < 1 {
		return min(1-t, math.Nextafter(1, 0))
	}
	return 1 - t
}

// RenderInstant clears the renderers and draws l fully, without animation.
func (e *Engine) RenderInstant(ctx context.Context, in Instant) error {
	if in.Layout == nil {
		e.logger.Warn("instant render without layout, skipping", "index", in.Index)
		return ErrNilLayout
	}
	e.gen.Add(1)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.busy.Store(true)
	defer e.busy.Store(false)

	l := in.Layout
	e.elementsFor(in.Index, l)
	e.radii.Ensure(l)
	style := e.frameStyle(in.Highlight)
	e.stale.Store(false)

	b := e.backend
	for _, r := range b.Renderers() {
		r.Clear()
	}
	e.guard(ctx, diff.KindLink, "*", nil, func() error { b.Links.RenderInstant(l.Links, style); return nil })
	e.guard(ctx, diff.KindNode, "*", nil, func() error { b.Nodes.RenderInstant(l.InternalNodes(), style); return nil })
	e.guard(ctx, diff.KindExtension, "*", nil, func() error { b.Extensions.RenderInstant(l.Leaves, style); return nil })
	e.guard(ctx, diff.KindLeaf, "*", nil, func() error { b.Labels.RenderInstant(l.Leaves, style); return nil })
	e.logger.Debug("instant render", "index", in.Index, "links", len(l.Links), "leaves", len(l.Leaves))
	return nil
}

func (e *Engine) frameStyle(highlight []string) render.Style {
	s := e.style
	if len(highlight) > 0 {
		s.Highlight = highlight
	}
	s.LabelRadius = e.radii.LabelRadius()
	s.ExtensionRadius = e.radii.ExtensionRadius()
	return s
}

func (e *Engine) elementsFor(index int, l *layout.Layout) *diff.Elements {
	if index < 0 {
		return diff.ElementsOf(l)
	}
	if el, ok := e.elements[index]; ok && el.Layout == l {
		return el
	}
	el := diff.ElementsOf(l)
	e.elements[index] = el
	return el
}

func (e *Engine) invalidate() {
	for _, r := range e.backend.Renderers() {
		r.Invalidate()
	}
}

func (e *Engine) enter(ctx context.Context, res diff.Result, t float64, style render.Style, rep *Report) {
	b := e.backend
	for _, key := range res.Links.Enter {
		link := res.To.Links[key]
		e.guard(ctx, diff.KindLink, key, rep, func() error { b.Links.Enter(link, t, style); return nil })
	}
	for _, key := range res.Nodes.Enter {
		n := res.To.Nodes[key]
		e.guard(ctx, diff.KindNode, key, rep, func() error { b.Nodes.Enter(n, t, style); return nil })
	}
	for _, key := range res.Extensions.Enter {
		n := res.To.Leaves[key]
		e.guard(ctx, diff.KindExtension, key, rep, func() error { b.Extensions.Enter(n, t, style); return nil })
	}
	for _, key := range res.Leaves.Enter {
		n := res.To.Leaves[key]
		e.guard(ctx, diff.KindLeaf, key, rep, func() error { b.Labels.Enter(n, t, style); return nil })
	}
	rep.Entered = len(res.Links.Enter) + len(res.Nodes.Enter) + len(res.Leaves.Enter)
}

func (e *Engine) update(ctx context.Context, res diff.Result, t float64, style render.Style, rep *Report) {
	b := e.backend
	for _, key := range res.Links.Update {
		from, to := res.From.Links[key], res.To.Links[key]
		class := edgechange.Classify(from, to, e.tol)
		rep.Classes.Add(class)
		e.guard(ctx, diff.KindLink, key, rep, func() error { return b.Links.Update(from, to, t, class, style) })
	}
	for _, key := range res.Nodes.Update {
		from, to := res.From.Nodes[key], res.To.Nodes[key]
		e.guard(ctx, diff.KindNode, key, rep, func() error { return b.Nodes.Update(from, to, t, style) })
	}
	// Leaves keep their outer end on the stable radii for the whole run.
	e.guard(ctx, diff.KindExtension, "*", rep, func() error {
		r := style.ExtensionRadius
		return b.Extensions.Interpolate(res.From.Leaves, res.To.Leaves, res.Extensions.Update, r, r, t, style)
	})
	e.guard(ctx, diff.KindLeaf, "*", rep, func() error {
		r := style.LabelRadius
		return b.Labels.Interpolate(res.From.Leaves, res.To.Leaves, res.Leaves.Update, r, r, t, style)
	})
	rep.Updated = len(res.Links.Update) + len(res.Nodes.Update) + len(res.Leaves.Update)
}

func (e *Engine) exit(ctx context.Context, res diff.Result, t float64, style render.Style, rep *Report) {
	b := e.backend
	for _, key := range res.Links.Exit {
		link := res.From.Links[key]
		e.guard(ctx, diff.KindLink, key, rep, func() error { b.Links.Exit(link, t, style); return nil })
	}
	for _, key := range res.Nodes.Exit {
		n := res.From.Nodes[key]
		e.guard(ctx, diff.KindNode, key, rep, func() error { b.Nodes.Exit(n, t, style); return nil })
	}
	for _, key := range res.Extensions.Exit {
		n := res.From.Leaves[key]
		e.guard(ctx, diff.KindExtension, key, rep, func() error { b.Extensions.Exit(n, t, style); return nil })
	}
	for _, key := range res.Leaves.Exit {
		n := res.From.Leaves[key]
		e.guard(ctx, diff.KindLeaf, key, rep, func() error { b.Labels.Exit(n, t, style); return nil })
	}
	rep.Exited = len(res.Links.Exit) + len(res.Nodes.Exit) + len(res.Leaves.Exit)
}

// guard runs fn for one element. A panic or an error is logged with the
// element key and counted in rep; it never escapes.
func (e *Engine) guard(ctx context.Context, kind diff.Kind, key string, rep *Report, fn func() error) {
	if rep == nil {
		rep = &Report{}
	}
	defer func() {
		if r := recover(); r != nil {
			rep.Errors++
			err := fmt.Errorf("panic: %v", r)
			e.logger.Error("renderer panicked", "kind", kind, "key", key, "err", err)
			observability.Morph().OnElementError(ctx, string(kind), key, err)
		}
	}()
	for _, err := range unjoin(fn()) {
		if errors.Is(err, render.ErrMissingElement) {
			rep.Missing++
			e.logger.Warn("mesh missing, creating", "kind", kind, "key", key, "err", err)
			continue
		}
		rep.Errors++
		e.logger.Error("renderer failed", "kind", kind, "key", key, "err", err)
		observability.Morph().OnElementError(ctx, string(kind), key, err)
	}
}

// unjoin splits an errors.Join result into its parts.
func unjoin(err error) []error {
	if err == nil {
		return nil
	}
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		return j.Unwrap()
	}
	return []error{err}
}

func (e *Engine) validate(ctx context.Context, req Request, res diff.Result, t float64, rep *Report) {
	rep.Validated = true
	checks := []struct {
		kind     diff.Kind
		renderer render.Common
	}{
		{diff.KindLink, e.backend.Links},
		{diff.KindNode, e.backend.Nodes},
		{diff.KindExtension, e.backend.Extensions},
		{diff.KindLeaf, e.backend.Labels},
	}
	for _, c := range checks {
		set := res.Set(c.kind)
		var enter []string
		if t > 0 {
			enter = set.Enter
		}
		v := c.renderer.Validate(set.Update, enter, set.Update, set.Exit)
		if len(v.Orphans) > 0 {
			e.logger.Debug("culled orphans", "kind", c.kind, "keys", v.Orphans)
		}
		if t < 1-boundaryBand || req.Direction != diff.Backward {
			continue
		}
		observed := c.renderer.Len() - len(v.Pending)
		target := res.To.Count(c.kind)
		if observed != target || !v.OK() {
			e.logger.Warn("element count mismatch",
				"kind", c.kind, "observed", observed, "target", target, "missing", v.Missing)
			rep.Mismatch = true
		}
	}
	if rep.Mismatch {
		e.recoverMismatch(ctx, req)
	}
}

// recoverMismatch drops every cache so the owner's next frame re-renders
// from scratch.
func (e *Engine) recoverMismatch(ctx context.Context, req Request) {
	observability.Morph().OnMismatch(ctx, req.FromIndex, req.ToIndex)
	clear(e.elements)
	e.backend.Links.ResetTopology()
	e.invalidate()
	if e.onMismatch != nil {
		e.onMismatch()
	}
}

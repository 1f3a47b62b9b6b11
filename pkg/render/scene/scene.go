package scene

import (
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/phylomorph/pkg/layout"
	"github.com/matzehuels/phylomorph/pkg/render"
)

// Option configures a [Scene].
type Option func(*Scene)

// WithCanvas sets the surface size.
func WithCanvas(c layout.Canvas) Option {
	return func(s *Scene) { s.canvas = c }
}

// WithLogger sets the scene's logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Scene) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithBackground sets the frame background colour. An empty string leaves
// frames transparent.
func WithBackground(color string) Option {
	return func(s *Scene) { s.background = color }
}

// Scene is the retained drawing backend: four keyed layers, a camera and a
// glyph atlas. It implements [render.Viewport].
type Scene struct {
	canvas     layout.Canvas
	background string
	logger     *log.Logger

	Links      *LinkLayer
	Nodes      *NodeLayer
	Extensions *LeafLayer
	Labels     *LeafLayer
	Camera     *Camera

	frames int
}

// New returns an empty scene on an 800×600 canvas.
func New(opts ...Option) *Scene {
	s := &Scene{
		canvas:     layout.Canvas{Width: 800, Height: 600, PixelRatio: 1},
		background: render.ColorBackground,
		logger:     log.NewWithOptions(io.Discard, log.Options{}),
		Links:      NewLinkLayer(),
		Nodes:      NewNodeLayer(),
		Extensions: NewLeafLayer(Extensions),
		Labels:     NewLeafLayer(Labels),
		Camera:     NewCamera(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.canvas.PixelRatio <= 0 {
		s.canvas.PixelRatio = 1
	}
	return s
}

// Backend exposes the scene through the renderer contracts.
func (s *Scene) Backend() render.Backend {
	return render.Backend{
		Links:      s.Links,
		Nodes:      s.Nodes,
		Extensions: s.Extensions,
		Labels:     s.Labels,
		Viewport:   s,
	}
}

// Canvas returns the surface size.
func (s *Scene) Canvas() layout.Canvas { return s.canvas }

// SetCanvas resizes the surface. Layers keep their elements.
func (s *Scene) SetCanvas(c layout.Canvas) {
	if c.PixelRatio <= 0 {
		c.PixelRatio = 1
	}
	s.canvas = c
}

func (s *Scene) CanvasDimensions() (float64, float64) {
	return s.canvas.Width, s.canvas.Height
}

// FocusOnTree centres the camera on the origin and zooms so that a circle
// of maxRadius, widened to hold the current labels, fills the canvas.
func (s *Scene) FocusOnTree(maxRadius float64) {
	r := max(maxRadius, s.Extensions.extent(), s.Labels.extent())
	zoom := FocusZoom(s.canvas.Width, s.canvas.Height, r)
	s.Camera.TransitionTo(0, 0, zoom, 0)
	s.logger.Debug("focus", "radius", r, "zoom", zoom)
}

func (s *Scene) TransitionTo(t render.Transition) {
	s.Camera.TransitionTo(t.Target[0], t.Target[1], t.Zoom, t.Duration)
}

// Advance moves the camera transition forward by dt.
func (s *Scene) Advance(dt time.Duration) {
	s.Camera.Update(dt)
}

// Render composites the layers into a frame. Queued label glyphs are
// measured first.
func (s *Scene) Render() (render.Frame, error) {
	if n := s.Labels.atlas.flush(); n > 0 {
		s.logger.Debug("glyphs measured", "count", n)
	}
	s.frames++
	f := render.Frame{
		Width:      s.canvas.Width,
		Height:     s.canvas.Height,
		PixelRatio: s.canvas.PixelRatio,
		Zoom:       s.Camera.Zoom,
		Center:     render.Point{s.Camera.X, s.Camera.Y},
		Background: s.background,
		Links:      s.Links.shapes(),
		Nodes:      s.Nodes.shapes(),
		Extensions: s.Extensions.lines(),
		Labels:     s.Labels.labels(),
	}
	return f, nil
}

// Frames returns the number of frames composited so far.
func (s *Scene) Frames() int { return s.frames }

// Destroy releases every layer.
func (s *Scene) Destroy() {
	for _, r := range s.Backend().Renderers() {
		r.Destroy()
	}
}

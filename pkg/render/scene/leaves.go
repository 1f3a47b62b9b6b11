package scene

import (
	"errors"
	"fmt"

	"github.com/matzehuels/phylomorph/pkg/layout"
	"github.com/matzehuels/phylomorph/pkg/polar"
	"github.com/matzehuels/phylomorph/pkg/render"
)

// LeafKind selects what a [LeafLayer] draws.
type LeafKind uint8

const (
	// Extensions are dashed rays from a leaf out to the extension radius.
	Extensions LeafKind = iota
	// Labels are leaf names placed at the label radius.
	Labels
)

func (k LeafKind) String() string {
	if k == Labels {
		return "label"
	}
	return "extension"
}

var extensionDash = []float64{3, 3}

type leafMesh struct {
	leaf      *layout.Node
	pos       polar.Coord
	outer     float64
	opacity   float64
	color     string
	highlight bool
	width     float64
	fontSize  float64
}

// LeafLayer retains extensions or labels. It implements
// [render.LeafRenderer].
type LeafLayer struct {
	kind    LeafKind
	meshes  map[string]*leafMesh
	atlas   *glyphAtlas
	palette render.ColorManager
}

// NewLeafLayer returns an empty layer of the given kind.
func NewLeafLayer(kind LeafKind) *LeafLayer {
	return &LeafLayer{kind: kind, meshes: make(map[string]*leafMesh), atlas: newGlyphAtlas()}
}

func (l *LeafLayer) Kind() LeafKind { return l.kind }
func (l *LeafLayer) Keys() []string { return sortedKeys(l.meshes) }
func (l *LeafLayer) Len() int       { return len(l.meshes) }

func (l *LeafLayer) outer(style render.Style, leaf *layout.Node) float64 {
	r := style.ExtensionRadius
	if l.kind == Labels {
		r = style.LabelRadius
	}
	if r <= 0 {
		return leaf.Radius
	}
	return r
}

func (l *LeafLayer) RenderInstant(leaves []*layout.Node, style render.Style) {
	keep := make(map[string]bool, len(leaves))
	for _, n := range leaves {
		keep[n.Key] = true
		m := l.mesh(n.Key)
		m.leaf, m.pos, m.outer, m.opacity = n, n.Coord(), l.outer(style, n), 1
		l.paint(m, n, style)
	}
	for key := range l.meshes {
		if !keep[key] {
			delete(l.meshes, key)
		}
	}
}

func (l *LeafLayer) Enter(n *layout.Node, t float64, style render.Style) {
	t = polar.Clamp01(t)
	if t <= 0 {
		delete(l.meshes, n.Key)
		return
	}
	m := l.mesh(n.Key)
	m.leaf, m.pos, m.outer, m.opacity = n, n.Coord(), l.outer(style, n), t
	l.paint(m, n, style)
}

func (l *LeafLayer) Exit(n *layout.Node, t float64, style render.Style) {
	t = polar.Clamp01(t)
	if t >= 1 {
		delete(l.meshes, n.Key)
		return
	}
	m, ok := l.meshes[n.Key]
	if !ok {
		m = l.mesh(n.Key)
		m.leaf, m.pos, m.outer = n, n.Coord(), l.outer(style, n)
	}
	m.opacity = 1 - t
	l.paint(m, n, style)
}

// Update moves the leaf end along the polar interpolation; the outer end
// stays on the style's stable radius.
func (l *LeafLayer) Update(from, to *layout.Node, t float64, style render.Style) error {
	return l.update(from, to, t, l.outer(style, to), style)
}

func (l *LeafLayer) update(from, to *layout.Node, t, outer float64, style render.Style) error {
	var err error
	if _, ok := l.meshes[to.Key]; !ok {
		err = fmt.Errorf("%w: %s %s", render.ErrMissingElement, l.kind, to.Key)
	}
	m := l.mesh(to.Key)
	m.leaf = to
	m.pos = polar.Interpolate(from.Coord(), to.Coord(), polar.Clamp01(t))
	m.outer = outer
	m.opacity = 1
	l.paint(m, to, style)
	return err
}

// Interpolate updates keys present in both maps with the outer radius
// blended from fromR to toR, and fades keys present in only one of them.
func (l *LeafLayer) Interpolate(from, to map[string]*layout.Node, keys []string, fromR, toR, t float64, style render.Style) error {
	t = polar.Clamp01(t)
	outer := polar.Lerp(fromR, toR, t)
	var errs []error
	for _, key := range keys {
		f, inFrom := from[key]
		d, inTo := to[key]
		switch {
		case inFrom && inTo:
			if err := l.update(f, d, t, outer, style); err != nil {
				errs = append(errs, err)
			}
		case inTo:
			l.Enter(d, t, style)
		case inFrom:
			l.Exit(f, t, style)
		}
	}
	return errors.Join(errs...)
}

func (l *LeafLayer) mesh(key string) *leafMesh {
	m, ok := l.meshes[key]
	if !ok {
		m = &leafMesh{}
		l.meshes[key] = m
	}
	return m
}

func (l *LeafLayer) paint(m *leafMesh, n *layout.Node, style render.Style) {
	pal := style.Palette()
	l.palette = pal
	m.highlight = pal.IsMarked(n.Key) || style.Highlighted(n.Key)
	m.width = style.StrokeWidth / 2
	m.fontSize = style.FontSize()
	if l.kind == Labels {
		m.color = render.ColorLabel
		if m.highlight {
			m.color = pal.NodeColor(n)
		}
		l.atlas.lookup(labelText(n))
		return
	}
	m.color = render.ColorExtension
	if m.highlight {
		m.color = render.ColorMarked
	}
}

func (l *LeafLayer) Validate(current, enter, update, exit []string) render.Validation {
	return validate(l.meshes, current, enter, update, exit)
}

// Invalidate recolours highlighted meshes and drops measured glyphs.
func (l *LeafLayer) Invalidate() {
	l.atlas.reset()
	if l.palette == nil {
		return
	}
	for _, m := range l.meshes {
		if l.kind == Labels && m.highlight {
			m.color = l.palette.NodeColor(m.leaf)
		}
		if l.kind == Labels {
			l.atlas.lookup(labelText(m.leaf))
		}
	}
}

func (l *LeafLayer) Clear() { clear(l.meshes) }

func (l *LeafLayer) Destroy() {
	l.meshes = make(map[string]*leafMesh)
	l.atlas.reset()
	l.palette = nil
}

// Outer returns the outer radius currently used by the leaf with key.
func (l *LeafLayer) Outer(key string) (float64, bool) {
	m, ok := l.meshes[key]
	if !ok {
		return 0, false
	}
	return m.outer, true
}

// extent returns the outer radius plus the widest label, the radius a
// viewport must frame to keep every label visible.
func (l *LeafLayer) extent() float64 {
	var r float64
	for _, m := range l.meshes {
		e := m.outer
		if l.kind == Labels {
			e += l.atlas.width(labelText(m.leaf), m.fontSize)
		}
		r = max(r, e)
	}
	return r
}

func labelText(n *layout.Node) string {
	if n.Name != "" {
		return n.Name
	}
	return n.Key
}

func (l *LeafLayer) lines() []render.LineShape {
	out := make([]render.LineShape, 0, len(l.meshes))
	for _, key := range l.Keys() {
		m := l.meshes[key]
		a, b := polar.Ray(m.pos.Angle, m.pos.Radius, m.outer)
		out = append(out, render.LineShape{
			Key:     key,
			From:    render.Point{a.X, a.Y},
			To:      render.Point{b.X, b.Y},
			Stroke:  m.color,
			Width:   m.width,
			Opacity: m.opacity,
			Dash:    extensionDash,
		})
	}
	return out
}

func (l *LeafLayer) labels() []render.LabelShape {
	out := make([]render.LabelShape, 0, len(l.meshes))
	for _, key := range l.Keys() {
		m := l.meshes[key]
		p := polar.PlaceLabel(m.pos.Angle, m.outer)
		out = append(out, render.LabelShape{
			Key:       key,
			Text:      labelText(m.leaf),
			Pos:       render.Point{p.Pos.X, p.Pos.Y},
			Rotation:  p.RotationDegrees(),
			Anchor:    string(p.Anchor),
			FontSize:  m.fontSize,
			Fill:      m.color,
			Opacity:   m.opacity,
			Highlight: m.highlight,
		})
	}
	return out
}

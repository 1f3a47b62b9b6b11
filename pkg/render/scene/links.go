package scene

import (
	"fmt"
	"math"

	"github.com/matzehuels/phylomorph/pkg/edgechange"
	"github.com/matzehuels/phylomorph/pkg/layout"
	"github.com/matzehuels/phylomorph/pkg/polar"
	"github.com/matzehuels/phylomorph/pkg/render"
)

type linkMesh struct {
	link      *layout.Link
	verts     Vertices
	path      polar.Path
	opacity   float64
	width     float64
	stroke    string
	highlight bool

	// Frozen topology of the current transition.
	from, to *layout.Link
	base     Vertices
	basePath polar.Path
	count    int
	segments int
	rotation float64
}

// LinkLayer retains branch meshes. It implements [render.LinkRenderer].
type LinkLayer struct {
	meshes  map[string]*linkMesh
	palette render.ColorManager
	built   int
}

// NewLinkLayer returns an empty link layer.
func NewLinkLayer() *LinkLayer {
	return &LinkLayer{meshes: make(map[string]*linkMesh)}
}

func (l *LinkLayer) Keys() []string { return sortedKeys(l.meshes) }
func (l *LinkLayer) Len() int       { return len(l.meshes) }

// Builds counts geometry rebuilds since the layer was created.
func (l *LinkLayer) Builds() int { return l.built }

// RenderInstant reconciles the layer to exactly links at full opacity.
func (l *LinkLayer) RenderInstant(links []*layout.Link, style render.Style) {
	keep := make(map[string]bool, len(links))
	for _, link := range links {
		keep[link.Key] = true
		m := l.mesh(link)
		l.setStatic(m, link)
		m.opacity = 1
		l.paint(m, link, style)
	}
	for key := range l.meshes {
		if !keep[key] {
			delete(l.meshes, key)
		}
	}
}

// Enter fades link in at its own geometry. t ≤ 0 removes it.
func (l *LinkLayer) Enter(link *layout.Link, t float64, style render.Style) {
	t = polar.Clamp01(t)
	if t <= 0 {
		delete(l.meshes, link.Key)
		return
	}
	m, ok := l.meshes[link.Key]
	if !ok || m.link != link {
		m = l.mesh(link)
		l.setStatic(m, link)
	}
	m.opacity = t
	l.paint(m, link, style)
}

// Exit fades link out at its own geometry. t ≥ 1 removes it.
func (l *LinkLayer) Exit(link *layout.Link, t float64, style render.Style) {
	t = polar.Clamp01(t)
	if t >= 1 {
		delete(l.meshes, link.Key)
		return
	}
	m, ok := l.meshes[link.Key]
	if !ok {
		m = l.mesh(link)
		l.setStatic(m, link)
	}
	m.opacity = 1 - t
	l.paint(m, link, style)
}

// Update blends the link between from and to. A missing mesh is created and
// reported with [render.ErrMissingElement].
func (l *LinkLayer) Update(from, to *layout.Link, t float64, class edgechange.Class, style render.Style) error {
	t = polar.Clamp01(t)
	var err error
	m, ok := l.meshes[to.Key]
	if !ok {
		m = l.mesh(to)
		l.setStatic(m, from)
		err = fmt.Errorf("%w: link %s", render.ErrMissingElement, to.Key)
	}
	if m.from != from || m.to != to {
		l.freeze(m, from, to)
	}

	switch class {
	case edgechange.None:
		// Material only.
	case edgechange.Reorder:
		angle := m.rotation * t
		m.verts = m.base.Rotate(float32(angle))
		m.path = m.basePath.Rotate(angle)
	default:
		p := polar.InterpolatedBranch(from.Source.Coord(), from.Target.Coord(), to.Source.Coord(), to.Target.Coord(), t)
		m.verts = VerticesOf(p.Flatten(m.segments)).Resample(m.count)
		m.path = p
		l.built++
	}
	m.link = to
	m.opacity = 1
	l.paint(m, to, style)
	return err
}

// freeze records the source polyline and the vertex count for the
// transition from → to.
func (l *LinkLayer) freeze(m *linkMesh, from, to *layout.Link) {
	src := from.Path()
	dst := to.Path()
	m.from, m.to = from, to
	m.segments = polar.ArcSegments(math.Max(math.Abs(src.ArcSweep()), math.Abs(dst.ArcSweep())))
	m.count = m.segments + 2
	m.basePath = src
	m.base = VerticesOf(src.Flatten(m.segments)).Resample(m.count)
	m.rotation = edgechange.RotationDelta(from, to)
	m.verts = m.base
	m.path = src
	l.built++
}

func (l *LinkLayer) mesh(link *layout.Link) *linkMesh {
	m, ok := l.meshes[link.Key]
	if !ok {
		m = &linkMesh{}
		l.meshes[link.Key] = m
	}
	return m
}

func (l *LinkLayer) setStatic(m *linkMesh, link *layout.Link) {
	p := link.Path()
	m.link = link
	m.path = p
	m.verts = VerticesOf(p.Flatten(0))
	m.from, m.to, m.base = nil, nil, nil
	l.built++
}

func (l *LinkLayer) paint(m *linkMesh, link *layout.Link, style render.Style) {
	pal := style.Palette()
	l.palette = pal
	m.stroke = pal.BranchColor(link)
	m.highlight = pal.IsActiveEdge(link) || pal.IsMarked(link.Key) || style.Highlighted(link.Key)
	m.width = style.StrokeWidth
	if m.highlight {
		m.width *= 2
	}
}

// Validate culls orphans and reports missing and pending links.
func (l *LinkLayer) Validate(current, enter, update, exit []string) render.Validation {
	return validate(l.meshes, current, enter, update, exit)
}

// ResetTopology forgets every frozen polyline and vertex count.
func (l *LinkLayer) ResetTopology() {
	for _, m := range l.meshes {
		m.from, m.to, m.base = nil, nil, nil
		m.count, m.segments = 0, 0
	}
}

// Invalidate recolours every mesh from the last palette seen.
func (l *LinkLayer) Invalidate() {
	if l.palette == nil {
		return
	}
	for _, m := range l.meshes {
		if m.link != nil {
			m.stroke = l.palette.BranchColor(m.link)
		}
	}
}

func (l *LinkLayer) Clear() { clear(l.meshes) }

func (l *LinkLayer) Destroy() {
	l.meshes = make(map[string]*linkMesh)
	l.palette = nil
}

func (l *LinkLayer) shapes() []render.LinkShape {
	out := make([]render.LinkShape, 0, len(l.meshes))
	for _, key := range l.Keys() {
		m := l.meshes[key]
		out = append(out, render.LinkShape{
			Key:       key,
			D:         m.path.SVG(),
			Points:    m.verts.Points(),
			Stroke:    m.stroke,
			Width:     m.width,
			Opacity:   m.opacity,
			Highlight: m.highlight,
		})
	}
	return out
}

package scene

import (
	"fmt"

	"github.com/matzehuels/phylomorph/pkg/layout"
	"github.com/matzehuels/phylomorph/pkg/polar"
	"github.com/matzehuels/phylomorph/pkg/render"
)

// nodeDotScale sizes internal node dots relative to the stroke width.
const nodeDotScale = 1.5

type nodeMesh struct {
	node      *layout.Node
	pos       polar.Coord
	opacity   float64
	radius    float64
	fill      string
	highlight bool
}

// NodeLayer retains internal node dots. It implements [render.NodeRenderer].
type NodeLayer struct {
	meshes  map[string]*nodeMesh
	palette render.ColorManager
}

// NewNodeLayer returns an empty node layer.
func NewNodeLayer() *NodeLayer {
	return &NodeLayer{meshes: make(map[string]*nodeMesh)}
}

func (l *NodeLayer) Keys() []string { return sortedKeys(l.meshes) }
func (l *NodeLayer) Len() int       { return len(l.meshes) }

func (l *NodeLayer) RenderInstant(nodes []*layout.Node, style render.Style) {
	keep := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		keep[n.Key] = true
		m := l.mesh(n.Key)
		m.node, m.pos, m.opacity = n, n.Coord(), 1
		l.paint(m, n, style)
	}
	for key := range l.meshes {
		if !keep[key] {
			delete(l.meshes, key)
		}
	}
}

func (l *NodeLayer) Enter(n *layout.Node, t float64, style render.Style) {
	t = polar.Clamp01(t)
	if t <= 0 {
		delete(l.meshes, n.Key)
		return
	}
	m := l.mesh(n.Key)
	m.node, m.pos, m.opacity = n, n.Coord(), t
	l.paint(m, n, style)
}

func (l *NodeLayer) Exit(n *layout.Node, t float64, style render.Style) {
	t = polar.Clamp01(t)
	if t >= 1 {
		delete(l.meshes, n.Key)
		return
	}
	m, ok := l.meshes[n.Key]
	if !ok {
		m = l.mesh(n.Key)
		m.node, m.pos = n, n.Coord()
	}
	m.opacity = 1 - t
	l.paint(m, n, style)
}

// Update moves the node along the polar interpolation of from and to.
func (l *NodeLayer) Update(from, to *layout.Node, t float64, style render.Style) error {
	var err error
	if _, ok := l.meshes[to.Key]; !ok {
		err = fmt.Errorf("%w: node %s", render.ErrMissingElement, to.Key)
	}
	m := l.mesh(to.Key)
	m.node = to
	m.pos = polar.Interpolate(from.Coord(), to.Coord(), polar.Clamp01(t))
	m.opacity = 1
	l.paint(m, to, style)
	return err
}

func (l *NodeLayer) mesh(key string) *nodeMesh {
	m, ok := l.meshes[key]
	if !ok {
		m = &nodeMesh{}
		l.meshes[key] = m
	}
	return m
}

func (l *NodeLayer) paint(m *nodeMesh, n *layout.Node, style render.Style) {
	pal := style.Palette()
	l.palette = pal
	m.fill = pal.NodeColor(n)
	m.highlight = pal.IsMarked(n.Key) || style.Highlighted(n.Key)
	m.radius = style.StrokeWidth * nodeDotScale
	if m.highlight {
		m.radius *= 2
	}
}

func (l *NodeLayer) Validate(current, enter, update, exit []string) render.Validation {
	return validate(l.meshes, current, enter, update, exit)
}

func (l *NodeLayer) Invalidate() {
	if l.palette == nil {
		return
	}
	for _, m := range l.meshes {
		m.fill = l.palette.NodeColor(m.node)
	}
}

func (l *NodeLayer) Clear() { clear(l.meshes) }

func (l *NodeLayer) Destroy() {
	l.meshes = make(map[string]*nodeMesh)
	l.palette = nil
}

// Position returns the current polar position of the node with key.
func (l *NodeLayer) Position(key string) (polar.Coord, bool) {
	m, ok := l.meshes[key]
	if !ok {
		return polar.Coord{}, false
	}
	return m.pos, true
}

func (l *NodeLayer) shapes() []render.NodeShape {
	out := make([]render.NodeShape, 0, len(l.meshes))
	for _, key := range l.Keys() {
		m := l.meshes[key]
		p := m.pos.Point()
		out = append(out, render.NodeShape{
			Key:       key,
			Pos:       render.Point{p.X, p.Y},
			Radius:    m.radius,
			Fill:      m.fill,
			Opacity:   m.opacity,
			Highlight: m.highlight,
		})
	}
	return out
}

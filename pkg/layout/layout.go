package layout

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	perrors "github.com/matzehuels/phylomorph/pkg/errors"
	"github.com/matzehuels/phylomorph/pkg/keys"
	"github.com/matzehuels/phylomorph/pkg/polar"
	"github.com/matzehuels/phylomorph/pkg/tree"
	"github.com/matzehuels/phylomorph/pkg/tree/transform"
)

var (
	// ErrNilTree is returned when Radial is given no tree.
	ErrNilTree = errors.New("nil tree")

	// ErrNonFinite is returned when a coordinate is NaN or infinite after
	// layout.
	ErrNonFinite = errors.New("non-finite coordinate")

	// ErrSelfLink is returned for a link whose source and target share a key.
	ErrSelfLink = errors.New("self-referential link")

	// ErrMissingEndpoint is returned for a link without a source or target.
	ErrMissingEndpoint = errors.New("link without source or target")
)

const (
	// DefaultMargin is the canvas margin used when none is configured.
	DefaultMargin = 40

	// baseFactor divides minDim by twice the outermost radius.
	baseFactor = 2.0

	// compareFactor shrinks layouts drawn into comparison sub-canvases to
	// 80% of the radius a full canvas gives; the base factor is divided by it.
	compareFactor = 0.8

	// compareThreshold is the canvas side below which compareFactor applies.
	compareThreshold = 600
)

// Canvas is the drawing surface size in CSS pixels.
type Canvas struct {
	Width      float64 `json:"width" toml:"width" yaml:"width"`
	Height     float64 `json:"height" toml:"height" yaml:"height"`
	PixelRatio float64 `json:"pixel_ratio,omitempty" toml:"pixel_ratio" yaml:"pixel_ratio"`
}

// Node is a positioned node of the layout. Parent is a non-owning back
// reference; the layout owns all nodes through Root.
type Node struct {
	Key         string
	Name        string
	Split       []int
	Length      float64
	Radius      float64
	Angle       float64
	ParentAngle float64
	// Index is the leaf's depth-first position, or -1 for internal nodes.
	Index    int
	X, Y     float64
	Parent   *Node
	Children []*Node
}

// IsLeaf reports whether n has no children.
func (n *Node) IsLeaf() bool { return len(n.Children) == 0 }

// Coord returns the polar position of n.
func (n *Node) Coord() polar.Coord {
	return polar.Coord{Angle: n.Angle, Radius: n.Radius}
}

// Link is the edge from Source to Target. Its split identity is the
// target's split.
type Link struct {
	Key    string
	Source *Node
	Target *Node
}

// Path returns the static branch path of l.
func (l *Link) Path() polar.Path {
	return polar.Branch(l.Source.Coord(), l.Target.Coord())
}

// Layout is a radially laid out tree.
type Layout struct {
	Root      *Node
	MaxRadius float64
	Width     float64
	Height    float64
	Margin    float64
	Scale     float64

	// Nodes lists every node in depth-first pre-order; Leaves and Links
	// follow the same order.
	Nodes  []*Node
	Leaves []*Node
	Links  []*Link

	nodeIndex map[string]*Node
	leafIndex map[string]*Node
	linkIndex map[string]*Link
}

// Option configures [Radial].
type Option func(*config)

type config struct {
	margin    float64
	globalMax float64
	uniform   bool
	preserved map[string]float64
	mode      transform.Mode
}

// WithMargin sets the canvas margin (default [DefaultMargin]).
func WithMargin(m float64) Option {
	return func(c *config) { c.margin = m }
}

// WithUniformScale scales the layout against globalMax, the largest unscaled
// leaf radius of the whole run, instead of the tree's own maximum.
func WithUniformScale(globalMax float64) Option {
	return func(c *config) {
		c.uniform = true
		c.globalMax = globalMax
	}
}

// WithPreservedRadii makes nodes whose key is in radii keep the stored
// unscaled radius instead of accumulating their own.
func WithPreservedRadii(radii map[string]float64) Option {
	return func(c *config) { c.preserved = radii }
}

// WithTransform rewrites branch lengths before layout.
func WithTransform(m transform.Mode) Option {
	return func(c *config) { c.mode = m }
}

// Radial lays out root on canvas. The input tree is not modified.
func Radial(root *tree.Node, canvas Canvas, opts ...Option) (*Layout, error) {
	if root == nil {
		return nil, perrors.Wrap(perrors.ErrCodeInvalidLayout, ErrNilTree, "radial layout")
	}
	cfg := config{margin: DefaultMargin}
	for _, opt := range opts {
		opt(&cfg)
	}
	if !finitePositive(canvas.Width) || !finitePositive(canvas.Height) {
		return nil, perrors.New(perrors.ErrCodeInvalidLayout, "canvas %vx%v must be positive", canvas.Width, canvas.Height)
	}
	minDim := math.Min(canvas.Width-cfg.margin, canvas.Height-cfg.margin)
	if !finitePositive(minDim) {
		return nil, perrors.New(perrors.ErrCodeInvalidLayout, "margin %v leaves no room on a %vx%v canvas", cfg.margin, canvas.Width, canvas.Height)
	}

	src := root
	if cfg.mode != transform.None {
		src = transform.Apply(root, cfg.mode)
	}

	l := &Layout{
		Width:  canvas.Width,
		Height: canvas.Height,
		Margin: cfg.margin,
	}
	l.Root = l.build(src, nil, cfg.preserved)
	l.assignAngles()

	scale := 1.0
	switch {
	case cfg.uniform && cfg.globalMax > 0:
		scale = minDim / (baseFactor * cfg.globalMax)
	case !cfg.uniform:
		factor := baseFactor
		if canvas.Width < compareThreshold || canvas.Height < compareThreshold {
			factor /= compareFactor
		}
		if maxLeaf := l.maxLeafRadius(); maxLeaf > 0 {
			scale = minDim / (factor * maxLeaf)
		}
	}
	l.applyScale(scale)

	if err := l.Validate(); err != nil {
		return nil, perrors.Wrap(perrors.ErrCodeInvalidLayout, err, "radial layout")
	}
	return l, nil
}

// build copies the tree into layout nodes, accumulating radii and indexing
// leaves depth-first.
func (l *Layout) build(src *tree.Node, parent *Node, preserved map[string]float64) *Node {
	n := &Node{
		Key:    src.Key(),
		Name:   src.Name,
		Split:  append([]int(nil), src.Split...),
		Length: src.Length,
		Index:  -1,
		Parent: parent,
	}
	if parent == nil {
		n.Length = 0
	} else {
		n.Radius = parent.Radius + n.Length
	}
	if r, ok := preserved[n.Key]; ok {
		n.Radius = r
	}

	l.Nodes = append(l.Nodes, n)
	if src.IsLeaf() {
		n.Index = len(l.Leaves)
		l.Leaves = append(l.Leaves, n)
	}
	if parent != nil {
		l.Links = append(l.Links, &Link{Key: keys.Link(parent.Key, n.Key), Source: parent, Target: n})
	}
	for _, c := range src.Children {
		n.Children = append(n.Children, l.build(c, n, preserved))
	}
	return n
}

func (l *Layout) assignAngles() {
	step := polar.Tau / float64(max(len(l.Leaves), 1))
	for _, leaf := range l.Leaves {
		leaf.Angle = step * float64(leaf.Index)
	}
	var visit func(n *Node)
	visit = func(n *Node) {
		if n.IsLeaf() {
			return
		}
		angles := make([]float64, len(n.Children))
		for i, c := range n.Children {
			visit(c)
			angles[i] = c.Angle
		}
		n.Angle = stat.Mean(angles, nil)
		for _, c := range n.Children {
			c.ParentAngle = n.Angle
		}
	}
	visit(l.Root)
	l.Root.ParentAngle = l.Root.Angle
}

func (l *Layout) maxLeafRadius() float64 {
	if len(l.Leaves) == 0 {
		return 0
	}
	radii := make([]float64, len(l.Leaves))
	for i, leaf := range l.Leaves {
		radii[i] = leaf.Radius
	}
	return floats.Max(radii)
}

func (l *Layout) applyScale(scale float64) {
	l.Scale = scale
	for _, n := range l.Nodes {
		n.Radius *= scale
		n.X = n.Radius * math.Cos(n.Angle)
		n.Y = n.Radius * math.Sin(n.Angle)
	}
	l.MaxRadius = l.maxLeafRadius()
	l.reindex()
}

func (l *Layout) reindex() {
	l.nodeIndex = make(map[string]*Node, len(l.Nodes))
	l.leafIndex = make(map[string]*Node, len(l.Leaves))
	l.linkIndex = make(map[string]*Link, len(l.Links))
	for _, n := range l.Nodes {
		if n.IsLeaf() {
			l.leafIndex[n.Key] = n
		} else {
			l.nodeIndex[n.Key] = n
		}
	}
	for _, k := range l.Links {
		l.linkIndex[k.Key] = k
	}
}

// Internal returns the internal node with the given key.
func (l *Layout) Internal(key string) (*Node, bool) {
	n, ok := l.nodeIndex[key]
	return n, ok
}

// Leaf returns the leaf with the given key.
func (l *Layout) Leaf(key string) (*Node, bool) {
	n, ok := l.leafIndex[key]
	return n, ok
}

// Link returns the link with the given key.
func (l *Layout) Link(key string) (*Link, bool) {
	k, ok := l.linkIndex[key]
	return k, ok
}

// InternalNodes returns the internal nodes in pre-order.
func (l *Layout) InternalNodes() []*Node {
	out := make([]*Node, 0, len(l.Nodes)-len(l.Leaves))
	for _, n := range l.Nodes {
		if !n.IsLeaf() {
			out = append(out, n)
		}
	}
	return out
}

// UnscaledRadii returns every node's radius divided by the layout scale,
// keyed by node key, in the form accepted by [WithPreservedRadii].
func (l *Layout) UnscaledRadii() map[string]float64 {
	out := make(map[string]float64, len(l.Nodes))
	for _, n := range l.Nodes {
		out[n.Key] = n.Radius / l.Scale
	}
	return out
}

// Validate checks that every coordinate is finite and every link has two
// distinct endpoints.
func (l *Layout) Validate() error {
	if l == nil || l.Root == nil {
		return ErrNilTree
	}
	for _, n := range l.Nodes {
		for _, v := range [...]float64{n.Radius, n.Angle, n.X, n.Y} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("node %s: %w", n.Key, ErrNonFinite)
			}
		}
	}
	for i, k := range l.Links {
		if k.Source == nil || k.Target == nil {
			return fmt.Errorf("link %d (%s): %w", i, k.Key, ErrMissingEndpoint)
		}
		if k.Source.Key == k.Target.Key {
			return fmt.Errorf("link %s: %w", k.Key, ErrSelfLink)
		}
	}
	if math.IsNaN(l.Scale) || math.IsInf(l.Scale, 0) {
		return fmt.Errorf("scale %v: %w", l.Scale, ErrNonFinite)
	}
	return nil
}

func finitePositive(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}

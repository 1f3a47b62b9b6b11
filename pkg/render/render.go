package render

import (
	"errors"
	"slices"
	"time"

	"github.com/matzehuels/phylomorph/pkg/edgechange"
	"github.com/matzehuels/phylomorph/pkg/layout"
)

// ErrMissingElement reports an update of an element the renderer did not
// hold. Renderers create the element on the fly and return an error wrapping
// it so the caller can log the drift.
var ErrMissingElement = errors.New("element missing at update")

// Style is the per-frame drawing configuration handed to every renderer.
type Style struct {
	StrokeWidth float64
	// FontSizeEm is the label size relative to BaseFontSize.
	FontSizeEm   float64
	BaseFontSize float64

	// ExtensionRadius and LabelRadius are the run's stable outer radii.
	ExtensionRadius float64
	LabelRadius     float64

	// Highlight lists element keys to emphasise in addition to what Colors
	// reports as active or marked.
	Highlight []string
	Colors    ColorManager
}

// DefaultStyle returns the style used when nothing is configured.
func DefaultStyle() Style {
	return Style{
		StrokeWidth:  1.5,
		FontSizeEm:   1,
		BaseFontSize: 12,
		Colors:       NewPalette(),
	}
}

// FontSize returns the label font size in pixels.
func (s Style) FontSize() float64 {
	base := s.BaseFontSize
	if base <= 0 {
		base = 12
	}
	em := s.FontSizeEm
	if em <= 0 {
		em = 1
	}
	return base * em
}

// Highlighted reports whether key is in the style's highlight list.
func (s Style) Highlighted(key string) bool {
	return slices.Contains(s.Highlight, key)
}

// Palette returns s.Colors, or the default palette when unset.
func (s Style) Palette() ColorManager {
	if s.Colors == nil {
		return defaultPalette
	}
	return s.Colors
}

// Validation is a renderer's answer to [Common.Validate].
type Validation struct {
	// Missing keys are expected but not rendered.
	Missing []string
	// Orphans were rendered without being in any set; they have been culled.
	Orphans []string
	// Pending keys are exiting and still fading out.
	Pending []string
}

// OK reports whether nothing is missing.
func (v Validation) OK() bool {
	return len(v.Missing) == 0
}

// Reconcile compares the rendered keys with the sets the engine believes
// are live. Expected keys are current ∪ enter − exit. Orphans are rendered
// keys in none of the four sets.
func Reconcile(actual, current, enter, update, exit []string) Validation {
	known := make(map[string]bool, len(current)+len(enter)+len(update)+len(exit))
	expected := make(map[string]bool, len(current)+len(enter))
	for _, set := range [][]string{current, enter, update, exit} {
		for _, k := range set {
			known[k] = true
		}
	}
	for _, k := range current {
		expected[k] = true
	}
	for _, k := range enter {
		expected[k] = true
	}
	exiting := make(map[string]bool, len(exit))
	for _, k := range exit {
		delete(expected, k)
		exiting[k] = true
	}

	have := make(map[string]bool, len(actual))
	var v Validation
	for _, k := range actual {
		have[k] = true
		switch {
		case !known[k]:
			v.Orphans = append(v.Orphans, k)
		case exiting[k]:
			v.Pending = append(v.Pending, k)
		}
	}
	for k := range expected {
		if !have[k] {
			v.Missing = append(v.Missing, k)
		}
	}
	slices.Sort(v.Missing)
	slices.Sort(v.Orphans)
	slices.Sort(v.Pending)
	return v
}

// Common is the life-cycle surface shared by every renderer.
type Common interface {
	// Keys returns the rendered keys in sorted order.
	Keys() []string
	Len() int
	// Validate culls orphans and reports missing and pending keys.
	Validate(current, enter, update, exit []string) Validation
	// Clear removes every element but keeps caches.
	Clear()
	// Destroy releases every element and cache. The renderer is unusable
	// afterwards.
	Destroy()
	// Invalidate drops caches that depend on colours or style.
	Invalidate()
}

// LinkRenderer draws branches.
type LinkRenderer interface {
	Common
	RenderInstant(links []*layout.Link, style Style)
	Enter(link *layout.Link, t float64, style Style)
	// Update blends the link between two layouts. class selects the redraw
	// strategy: None touches material only, Reorder rotates the frozen
	// geometry, Retopo rebuilds it with pinned segment counts. A missing
	// element is created on the fly and reported with [ErrMissingElement].
	Update(from, to *layout.Link, t float64, class edgechange.Class, style Style) error
	Exit(link *layout.Link, t float64, style Style)
	// ResetTopology forgets the frozen segment counts and base geometry.
	ResetTopology()
}

// NodeRenderer draws internal nodes.
type NodeRenderer interface {
	Common
	RenderInstant(nodes []*layout.Node, style Style)
	Enter(node *layout.Node, t float64, style Style)
	Update(from, to *layout.Node, t float64, style Style) error
	Exit(node *layout.Node, t float64, style Style)
}

// LeafRenderer draws elements anchored at a leaf and reaching out to a
// stable radius: extensions and labels.
type LeafRenderer interface {
	Common
	RenderInstant(leaves []*layout.Node, style Style)
	Enter(leaf *layout.Node, t float64, style Style)
	Update(from, to *layout.Node, t float64, style Style) error
	Exit(leaf *layout.Node, t float64, style Style)
	// Interpolate updates every key in keys between the two leaf maps while
	// blending the outer radius from fromR to toR.
	Interpolate(from, to map[string]*layout.Node, keys []string, fromR, toR, t float64, style Style) error
}

// Transition is a camera move.
type Transition struct {
	Target   [2]float64
	Zoom     float64
	Duration time.Duration
}

// Viewport composites frames and controls the camera.
type Viewport interface {
	// FocusOnTree frames a circle of the given radius around the origin.
	FocusOnTree(maxRadius float64)
	// Render composites one frame from the renderers' current state.
	Render() (Frame, error)
	// CanvasDimensions returns the surface size in CSS pixels.
	CanvasDimensions() (width, height float64)
	TransitionTo(t Transition)
}

// Backend bundles the renderers and the viewport of one drawing surface.
type Backend struct {
	Links      LinkRenderer
	Nodes      NodeRenderer
	Extensions LeafRenderer
	Labels     LeafRenderer
	Viewport   Viewport
}

// Renderers returns the four renderers as their common surface, in stage
// order.
func (b Backend) Renderers() []Common {
	return []Common{b.Links, b.Nodes, b.Extensions, b.Labels}
}

// Complete reports whether every part of the backend is set.
func (b Backend) Complete() bool {
	return b.Links != nil && b.Nodes != nil && b.Extensions != nil && b.Labels != nil && b.Viewport != nil
}

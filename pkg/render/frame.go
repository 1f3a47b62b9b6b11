package render

import (
	"slices"
	"strings"
)

// Point is a position in layout space.
type Point [2]float64

// Frame is one composited image as a flat draw list. Shape coordinates are
// in layout space (origin at the root, y down); Zoom and Center map them to
// the canvas:
//
//	px = Width/2 + (x - Center[0])*Zoom
//	py = Height/2 + (y - Center[1])*Zoom
//
// Stroke widths and font sizes are already in canvas pixels.
type Frame struct {
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	PixelRatio float64 `json:"pixel_ratio,omitempty"`
	Zoom       float64 `json:"zoom"`
	Center     Point   `json:"center"`
	Background string  `json:"background,omitempty"`

	Links      []LinkShape  `json:"links"`
	Nodes      []NodeShape  `json:"nodes"`
	Extensions []LineShape  `json:"extensions"`
	Labels     []LabelShape `json:"labels"`
}

// LinkShape is a branch. D is its SVG path in layout space; Points is the
// same path flattened to a polyline.
type LinkShape struct {
	Key       string  `json:"key"`
	D         string  `json:"d"`
	Points    []Point `json:"points"`
	Stroke    string  `json:"stroke"`
	Width     float64 `json:"width"`
	Opacity   float64 `json:"opacity"`
	Highlight bool    `json:"highlight,omitempty"`
}

// NodeShape is an internal node dot.
type NodeShape struct {
	Key       string  `json:"key"`
	Pos       Point   `json:"pos"`
	Radius    float64 `json:"radius"`
	Fill      string  `json:"fill"`
	Opacity   float64 `json:"opacity"`
	Highlight bool    `json:"highlight,omitempty"`
}

// LineShape is a straight, optionally dashed segment.
type LineShape struct {
	Key     string    `json:"key"`
	From    Point     `json:"from"`
	To      Point     `json:"to"`
	Stroke  string    `json:"stroke"`
	Width   float64   `json:"width"`
	Opacity float64   `json:"opacity"`
	Dash    []float64 `json:"dash,omitempty"`
}

// LabelShape is a rotated text run. Rotation is in degrees.
type LabelShape struct {
	Key       string  `json:"key"`
	Text      string  `json:"text"`
	Pos       Point   `json:"pos"`
	Rotation  float64 `json:"rotation"`
	Anchor    string  `json:"anchor"`
	FontSize  float64 `json:"font_size"`
	Fill      string  `json:"fill"`
	Opacity   float64 `json:"opacity"`
	Highlight bool    `json:"highlight,omitempty"`
}

// ToCanvas maps a layout-space point to canvas pixels.
func (f *Frame) ToCanvas(p Point) Point {
	zoom := f.Zoom
	if zoom == 0 {
		zoom = 1
	}
	return Point{
		f.Width/2 + (p[0]-f.Center[0])*zoom,
		f.Height/2 + (p[1]-f.Center[1])*zoom,
	}
}

// Len returns the number of shapes in the frame.
func (f *Frame) Len() int {
	return len(f.Links) + len(f.Nodes) + len(f.Extensions) + len(f.Labels)
}

// LinkKeys returns the keys of the frame's links in sorted order.
func (f *Frame) LinkKeys() []string {
	keys := make([]string, len(f.Links))
	for i, s := range f.Links {
		keys[i] = s.Key
	}
	slices.Sort(keys)
	return keys
}

// Sort orders every shape list by key so frames built from maps compare
// and encode deterministically.
func (f *Frame) Sort() {
	slices.SortFunc(f.Links, func(a, b LinkShape) int { return strings.Compare(a.Key, b.Key) })
	slices.SortFunc(f.Nodes, func(a, b NodeShape) int { return strings.Compare(a.Key, b.Key) })
	slices.SortFunc(f.Extensions, func(a, b LineShape) int { return strings.Compare(a.Key, b.Key) })
	slices.SortFunc(f.Labels, func(a, b LabelShape) int { return strings.Compare(a.Key, b.Key) })
}


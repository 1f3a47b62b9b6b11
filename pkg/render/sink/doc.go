// Package sink turns a composited [render.Frame] into an output format.
//
// # Overview
//
// A "sink" is a pure function of a frame. This package provides:
//
//   - SVG: [RenderSVG], vector output built with ajstarks/svgo
//   - PNG: [RenderPNG], raster output drawn with gg and the basic font
//   - JSON: [RenderJSON], the draw list itself for external tools
//   - DOT: [ToDOT] and [RenderGraphviz], the tree as a Graphviz graph with
//     pinned radial positions
//   - PDF: [RenderPDF] (requires rsvg-convert)
//
// Basic usage:
//
//	frame, _ := scene.Render()
//	svg := sink.RenderSVG(frame, sink.WithTitle("tree 3"))
//	png, err := sink.RenderPNG(frame, sink.WithScale(2))
//
// # Coordinates
//
// Branches and extensions are emitted in layout space inside a group that
// applies the frame's camera; their strokes do not scale with zoom. Node dots
// and labels are emitted in canvas pixels so their size is independent of
// the zoom.
//
// # Adding New Formats
//
//  1. Create a renderer function: func RenderFoo(f render.Frame, opts ...FooOption) ([]byte, error)
//  2. Map shape coordinates with [render.Frame.ToCanvas] when drawing in pixels
//  3. Register the format in [Formats] and in internal/cli/render.go
package sink

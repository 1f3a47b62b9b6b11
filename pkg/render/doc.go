// Package render defines the contract between the morph engine and a drawing
// backend.
//
// # Overview
//
// The engine never draws. It drives four per-kind renderers through the
// same life cycle and asks a [Viewport] to composite the result:
//
//   - [LinkRenderer]: branches, redrawn per edge-change class
//   - [NodeRenderer]: internal nodes, moved along polar interpolation
//   - [LeafRenderer]: leaf extensions and leaf labels, both placed at the
//     run's stable outer radius
//
// Every renderer owns its keyed elements. Enter fades an element in with
// opacity t, Update blends geometry between two layouts, Exit fades an
// element out with opacity 1−t. Enter at t ≤ 0 and Exit at t ≥ 1 remove the
// element, so scrubbing a transition back and forth always settles on the
// element set of whichever endpoint it stops at. RenderInstant reconciles a
// renderer to exactly the given elements at t = 1.
//
// At transition boundaries the engine calls Validate with the sets it
// believes are live; the renderer culls orphans and reports what is missing
// (see [Reconcile]).
//
// # Frames
//
// A backend composes its retained elements into a [Frame], a flat draw list
// in layout coordinates with the origin at the tree's root. Sinks turn a
// frame into SVG, PNG, JSON or Graphviz output (see package sink).
//
// # Colours
//
// A [ColorManager] answers colour and highlight questions. Its answers are
// opaque tokens to the engine; a manager that changes its palette notifies
// subscribers, which the engine treats as a signal to invalidate renderer
// caches. [Palette] is the default implementation.
//
// # Format Conversion
//
// [ToPDF] and [ToPNG] convert SVG output with the external rsvg-convert tool
// (from librsvg):
//
//	svg := sink.RenderSVG(frame)
//	pdf, err := render.ToPDF(svg)
package render

// Package scene is the retained in-memory drawing backend of phylomorph.
//
// A [Scene] owns four keyed layers (links, internal nodes, leaf extensions
// and leaf labels) implementing the renderer contracts of package render,
// plus a [Camera] and a glyph atlas. Nothing is drawn until [Scene.Render]
// composites the layers into a [render.Frame], which package sink turns into
// SVG, PNG, JSON or Graphviz output.
//
// Links keep their geometry as float32 vertex buffers. The first update of a
// link within a transition freezes its source polyline and vertex count;
// later frames of the same transition either rotate the frozen polyline
// (reorder) or rebuild the interpolated path resampled to the frozen count
// (retopology), so a branch never gains or loses vertices mid-morph.
//
// Label glyph metrics are measured lazily. Text seen for the first time is
// queued in the atlas and measured when the next frame is composited.
//
//	sc := scene.New(scene.WithCanvas(layout.Canvas{Width: 800, Height: 600}))
//	backend := sc.Backend()
//	backend.Links.RenderInstant(l.Links, style)
//	sc.FocusOnTree(l.MaxRadius)
//	frame, err := sc.Render()
package scene

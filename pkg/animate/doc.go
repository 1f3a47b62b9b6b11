// Package animate drives tree-to-tree transitions from application state.
//
// A [Controller] reads a [Store] (tree list, current index, branch-length
// transform, uniform-scale switch, style and playback state), owns the
// per-tree layouts and hands frames to a [morph.Engine]:
//
//	store := animate.NewMemoryStore(trees)
//	c, err := animate.New(store, scene.New().Backend())
//	if err != nil {
//	    return err
//	}
//	defer c.Destroy()
//
//	frame, err := c.RenderAllElements(ctx, animate.FrameOptions{})
//	res, err := c.RenderInterpolatedFrame(ctx, 0, 1, 0.5, animate.FrameOptions{})
//
// Layouts are cached by tree index until the transform, the uniform-scale
// switch or the store's cache epoch change. The label and extension radii
// are fixed by the target of the first frame drawn and recomputed only on
// such a change, so labels stay put while the timeline moves.
//
// [Controller.StartAnimation] runs a loop that advances a [Player] each tick
// and renders the frame at the new position. Progress written to the store
// by someone else (a scrubber, say) is picked up on the next tick.
package animate

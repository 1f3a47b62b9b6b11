// Package morph interpolates the rendered state between two tree layouts.
//
// # Overview
//
// An [Engine] drives the four renderers of a [render.Backend] through one
// frame of a transition:
//
//  1. t is pinned to [0, 1]; a transition from a tree to itself is drawn at
//     t = 0.
//  2. The element maps of both layouts are fetched from a cache keyed by tree
//     index and diffed in the requested direction.
//  3. The run's stable label and extension radii are fixed on first use.
//  4. Three stages run strictly in order: enter (new elements fade in with
//     opacity t), update (links are classified and redrawn, nodes and leaves
//     move along polar interpolation) and exit (leaving elements fade to
//     1−t and disappear at t = 1).
//  5. Near either end of the transition each renderer is validated; a
//     count mismatch at the end of a backward transition clears the caches.
//
// # Direction
//
// Request.T is timeline progress, 0 at From and 1 at To. A backward request
// diffs To against From and drives the renderers with 1−T, so the same
// timeline position always produces the same element set regardless of the
// direction it was reached from.
//
// # Cooperation
//
// Stages yield between each other through the configured [Yield]. A newer
// request supersedes an older one: the older frame finishes its current
// stage and returns with Report.Superseded set. Errors raised by a renderer
// for a single element, panics included, are logged with the element's key
// and never abort the frame.
package morph

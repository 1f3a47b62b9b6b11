// Package layout computes the radial layout of a phylogenetic tree.
//
// # Overview
//
// A radial layout puts the root at the origin and the leaves on the outermost
// ring. Every node gets a polar position (radius, angle) and its cartesian
// projection. Edges become a polar arc at the parent's radius followed by a
// radial line out to the child (see package polar).
//
// # Procedure
//
// [Radial] runs these steps in order, each reading the previous one:
//
//  1. Radius accumulation: the root's length is zeroed and every node's
//     radius is its parent's radius plus its own length. With
//     [WithPreservedRadii], nodes whose key is in the map take the stored
//     (unscaled) radius instead.
//  2. Leaf indexing: a depth-first walk numbers the leaves 0..n-1.
//  3. Angles: leaf i sits at 2π·i/n; an internal node sits at the mean angle
//     of its children, and each child records it as its ParentAngle.
//  4. Scale: minDim = min(width−margin, height−margin) and
//     scale = minDim / (factor · maxLeafRadius) with factor 2.0. On
//     canvases narrower or shorter than 600 the scale drops by a further
//     20%. With [WithUniformScale]
//     the scale is minDim / (2 · globalMax) for every tree of a run.
//  5. Every radius is multiplied by the scale.
//  6. Cartesian coordinates follow from radius and angle.
//
// The result is a pure function of its inputs: the input tree is never
// modified and two calls with equal inputs marshal to identical bytes.
//
// # Uniform Scale
//
// [UniformScale] caches the largest unscaled leaf radius over a whole tree
// sequence so that a given branch length maps to the same screen distance in
// every frame. The cache is keyed by the transform mode and the identity and
// length of the tree list, and recomputes on any change.
//
// # Validation
//
// [Layout.Validate] fails fast on non-finite coordinates, links without a
// source or target, and self-referential links, naming the offending key.
package layout

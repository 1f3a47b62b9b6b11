package layout

import (
	"slices"
	"sync"

	"github.com/matzehuels/phylomorph/pkg/tree"
	"github.com/matzehuels/phylomorph/pkg/tree/transform"
)

// MaxLeafRadius returns the largest root-to-leaf path length of root, with
// the root's own length ignored.
func MaxLeafRadius(root *tree.Node) float64 {
	if root == nil {
		return 0
	}
	var best float64
	var visit func(n *tree.Node, r float64)
	visit = func(n *tree.Node, r float64) {
		if n.IsLeaf() {
			best = max(best, r)
			return
		}
		for _, c := range n.Children {
			visit(c, r+c.Length)
		}
	}
	visit(root, 0)
	return best
}

// UniformScale caches the largest unscaled leaf radius over a tree run. The
// zero value is ready to use and safe for concurrent use.
type UniformScale struct {
	mu    sync.Mutex
	mode  transform.Mode
	trees []*tree.Node
	valid bool
	value float64
}

// Global returns the largest [MaxLeafRadius] over trees after applying mode.
// The result is cached by mode and by the identity of every tree in the run.
func (u *UniformScale) Global(trees []*tree.Node, m transform.Mode) float64 {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.valid && u.mode == m && slices.Equal(u.trees, trees) {
		return u.value
	}

	var best float64
	for _, t := range trees {
		best = max(best, MaxLeafRadius(transform.Apply(t, m)))
	}
	u.mode, u.trees, u.value, u.valid = m, slices.Clone(trees), best, true
	return best
}

// Invalidate drops the cached value.
func (u *UniformScale) Invalidate() {
	u.mu.Lock()
	u.valid, u.trees = false, nil
	u.mu.Unlock()
}

package tree

import (
	"fmt"
	"slices"

	perrors "github.com/matzehuels/phylomorph/pkg/errors"
)

// HasSplits reports whether every node of every tree already carries split
// indices.
func HasSplits(trees []*Node) bool {
	for _, t := range trees {
		complete := true
		t.Walk(func(n, _ *Node) bool {
			if len(n.Split) == 0 {
				complete = false
			}
			return complete
		})
		if !complete {
			return false
		}
	}
	return true
}

// LeafOrder returns the sorted leaf names of t, the default global order used
// by [AssignSplits].
func LeafOrder(t *Node) []string {
	names := t.LeafNames()
	slices.Sort(names)
	return names
}

// AssignSplits overwrites the split indices of every node from a global leaf
// order: a leaf gets its index in order, an internal node the sorted union
// of its children's indices. A nil order uses [LeafOrder] of the first tree.
// Every leaf must be named, and names must be unique within a tree.
func AssignSplits(trees []*Node, order []string) error {
	if len(trees) == 0 {
		return ErrEmptyTree
	}
	if order == nil {
		order = LeafOrder(trees[0])
	}
	index := make(map[string]int, len(order))
	for i, name := range order {
		if _, dup := index[name]; dup {
			return perrors.New(perrors.ErrCodeInvalidTree, "taxon %q appears twice in the leaf order", name)
		}
		index[name] = i
	}

	for ti, t := range trees {
		seen := make(map[string]bool)
		if _, err := assign(t, index, seen); err != nil {
			return perrors.Wrap(perrors.ErrCodeInvalidTree, err, "tree %d", ti)
		}
	}
	return nil
}

func assign(n *Node, index map[string]int, seen map[string]bool) ([]int, error) {
	if n.IsLeaf() {
		if n.Name == "" {
			return nil, fmt.Errorf("unnamed leaf")
		}
		if seen[n.Name] {
			return nil, fmt.Errorf("taxon %q: %w", n.Name, ErrDuplicateKey)
		}
		seen[n.Name] = true
		i, ok := index[n.Name]
		if !ok {
			return nil, fmt.Errorf("taxon %q is not in the leaf order", n.Name)
		}
		n.Split = []int{i}
		return n.Split, nil
	}

	var union []int
	for _, c := range n.Children {
		s, err := assign(c, index, seen)
		if err != nil {
			return nil, err
		}
		union = append(union, s...)
	}
	slices.Sort(union)
	n.Split = slices.Compact(union)
	return n.Split, nil
}

// CollapseUnary splices out every internal node with a single child, adding
// its length to the child's. Such a node has its child's split and would
// repeat its key. The returned root replaces root; a stem above a unary
// root is dropped.
func CollapseUnary(root *Node) *Node {
	if root == nil {
		return nil
	}
	top := collapse(root)
	if top != root {
		top.Length = 0
	}
	return top
}

func collapse(n *Node) *Node {
	for len(n.Children) == 1 {
		c := n.Children[0]
		c.Length += n.Length
		n = c
	}
	for i, c := range n.Children {
		n.Children[i] = collapse(c)
	}
	return n
}

// Prepare collapses unary nodes, assigns split indices when any tree lacks
// them and validates the run. It is the normal entry point after reading
// trees from a file. Trees whose root was unary are replaced in place.
func Prepare(trees []*Node) error {
	for i, t := range trees {
		trees[i] = CollapseUnary(t)
	}
	if !HasSplits(trees) {
		if err := AssignSplits(trees, nil); err != nil {
			return err
		}
	}
	if err := ValidateRun(trees); err != nil {
		return perrors.Wrap(perrors.ErrCodeInvalidTree, err, "validate trees")
	}
	return nil
}

package tree

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/matzehuels/phylomorph/pkg/keys"
)

var (
	// ErrEmptyTree is returned when a nil tree or an empty tree list is used.
	ErrEmptyTree = errors.New("empty tree")

	// ErrMissingSplit is returned by [Validate] when a node carries no split
	// indices. Layouts and diffs cannot key such a node.
	ErrMissingSplit = errors.New("missing split indices")

	// ErrDuplicateKey is returned by [Validate] when two leaves or two
	// internal nodes of one tree map to the same key.
	ErrDuplicateKey = errors.New("duplicate element key")

	// ErrInvalidLength is returned by [Validate] for negative or non-finite
	// branch lengths.
	ErrInvalidLength = errors.New("invalid branch length")

	// ErrInconsistentLeaf is returned by [ValidateRun] when one taxon name maps
	// to different leaf keys in different trees of a run.
	ErrInconsistentLeaf = errors.New("leaf index differs between trees")
)

// Node is one node of a phylogenetic tree. Name is set on leaves only.
// Length is the length of the edge above the node; the root's length is
// ignored by layouts.
type Node struct {
	Name     string  `json:"name,omitempty"`
	Length   float64 `json:"length"`
	Children []*Node `json:"children,omitempty"`
	Split    []int   `json:"split_indices,omitempty"`
}

// IsLeaf reports whether n has no children.
func (n *Node) IsLeaf() bool {
	return len(n.Children) == 0
}

// Key returns the stable key of the node derived from its split indices.
func (n *Node) Key() string {
	return keys.Node(n.Split, n.IsLeaf())
}

// Walk visits n and its descendants in depth-first pre-order. The walk skips
// the subtree below a node for which fn returns false.
func (n *Node) Walk(fn func(node, parent *Node) bool) {
	var visit func(node, parent *Node)
	visit = func(node, parent *Node) {
		if !fn(node, parent) {
			return
		}
		for _, c := range node.Children {
			visit(c, node)
		}
	}
	visit(n, nil)
}

// Leaves returns the leaves below n in depth-first order.
func (n *Node) Leaves() []*Node {
	var out []*Node
	n.Walk(func(node, _ *Node) bool {
		if node.IsLeaf() {
			out = append(out, node)
		}
		return true
	})
	return out
}

// LeafNames returns the names of the leaves below n in depth-first order.
func (n *Node) LeafNames() []string {
	leaves := n.Leaves()
	names := make([]string, len(leaves))
	for i, l := range leaves {
		names[i] = l.Name
	}
	return names
}

// Size returns the number of nodes in the tree rooted at n.
func (n *Node) Size() int {
	count := 0
	n.Walk(func(*Node, *Node) bool {
		count++
		return true
	})
	return count
}

// Clone returns a deep copy of the tree rooted at n.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := &Node{
		Name:   n.Name,
		Length: n.Length,
		Split:  slices.Clone(n.Split),
	}
	if len(n.Children) > 0 {
		c.Children = make([]*Node, len(n.Children))
		for i, child := range n.Children {
			c.Children[i] = child.Clone()
		}
	}
	return c
}

// Validate checks that a tree can be laid out and diffed: every node carries
// split indices, branch lengths are finite and non-negative, and keys are
// unique among leaves and among internal nodes. Errors name the offending key.
func Validate(root *Node) error {
	if root == nil {
		return ErrEmptyTree
	}
	leafKeys := make(map[string]bool)
	nodeKeys := make(map[string]bool)
	var err error
	root.Walk(func(n, parent *Node) bool {
		if err != nil {
			return false
		}
		if len(n.Split) == 0 {
			err = fmt.Errorf("node %q (child of %s): %w", n.Name, describe(parent), ErrMissingSplit)
			return false
		}
		key := n.Key()
		if parent != nil && (math.IsNaN(n.Length) || math.IsInf(n.Length, 0) || n.Length < 0) {
			err = fmt.Errorf("node %s: length %v: %w", key, n.Length, ErrInvalidLength)
			return false
		}
		seen := nodeKeys
		if n.IsLeaf() {
			seen = leafKeys
		}
		if seen[key] {
			err = fmt.Errorf("node %s: %w", key, ErrDuplicateKey)
			return false
		}
		seen[key] = true
		return true
	})
	return err
}

// ValidateRun validates every tree of a run and checks that each named taxon
// keeps the same leaf key in all of them.
func ValidateRun(trees []*Node) error {
	if len(trees) == 0 {
		return ErrEmptyTree
	}
	byName := make(map[string]string)
	for i, t := range trees {
		if err := Validate(t); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
		for _, leaf := range t.Leaves() {
			if leaf.Name == "" {
				continue
			}
			key := leaf.Key()
			if prev, ok := byName[leaf.Name]; ok && prev != key {
				return fmt.Errorf("tree %d: taxon %q has key %s, was %s: %w", i, leaf.Name, key, prev, ErrInconsistentLeaf)
			}
			byName[leaf.Name] = key
		}
	}
	return nil
}

func describe(n *Node) string {
	if n == nil {
		return "root"
	}
	if len(n.Split) > 0 {
		return n.Key()
	}
	return "unkeyed node"
}

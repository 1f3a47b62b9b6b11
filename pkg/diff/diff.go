// Package diff partitions the elements of two layouts into the ones that
// enter, update and exit during a transition.
//
// Elements are matched purely by key (see package keys). Leaves and leaf
// extensions share keys but are diffed as separate kinds because different
// renderers own them.
//
// The caller names the direction explicitly. [Backward] swaps the inputs so
// that reversed playback replays the forward sequence in reverse: an element
// that entered going forward exits going backward.
package diff

import (
	"strings"

	perrors "github.com/matzehuels/phylomorph/pkg/errors"
	"github.com/matzehuels/phylomorph/pkg/layout"
)

// Direction is the navigation direction of a transition.
type Direction int

const (
	Forward Direction = iota
	Backward
)

func (d Direction) String() string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

// Sign returns 1 for Forward and -1 for Backward.
func (d Direction) Sign() int {
	if d == Backward {
		return -1
	}
	return 1
}

// ParseDirection parses "forward"/"fwd" or "backward"/"back"/"bwd".
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "forward", "fwd":
		return Forward, nil
	case "backward", "back", "bwd", "reverse":
		return Backward, nil
	}
	return Forward, perrors.New(perrors.ErrCodeInvalidInput, "unknown direction %q", s)
}

// Kind names an element kind.
type Kind string

const (
	KindLink      Kind = "link"
	KindNode      Kind = "node"
	KindLeaf      Kind = "leaf"
	KindExtension Kind = "extension"
)

// Elements indexes the keyed elements of one layout. The key slices keep the
// layout's depth-first order so iteration is deterministic.
type Elements struct {
	Layout *layout.Layout

	Links  map[string]*layout.Link
	Nodes  map[string]*layout.Node
	Leaves map[string]*layout.Node

	LinkKeys []string
	NodeKeys []string
	LeafKeys []string
}

// ElementsOf indexes l. A nil layout yields empty elements.
func ElementsOf(l *layout.Layout) *Elements {
	e := &Elements{
		Layout: l,
		Links:  make(map[string]*layout.Link),
		Nodes:  make(map[string]*layout.Node),
		Leaves: make(map[string]*layout.Node),
	}
	if l == nil {
		return e
	}
	for _, n := range l.Nodes {
		if n.IsLeaf() {
			e.Leaves[n.Key] = n
			e.LeafKeys = append(e.LeafKeys, n.Key)
		} else {
			e.Nodes[n.Key] = n
			e.NodeKeys = append(e.NodeKeys, n.Key)
		}
	}
	for _, k := range l.Links {
		e.Links[k.Key] = k
		e.LinkKeys = append(e.LinkKeys, k.Key)
	}
	return e
}

// Keys returns the ordered keys of one kind. Extensions share leaf keys.
func (e *Elements) Keys(kind Kind) []string {
	switch kind {
	case KindLink:
		return e.LinkKeys
	case KindNode:
		return e.NodeKeys
	case KindLeaf, KindExtension:
		return e.LeafKeys
	}
	return nil
}

// Count returns the number of elements of one kind.
func (e *Elements) Count(kind Kind) int {
	return len(e.Keys(kind))
}

// Set is the partition of one element kind.
type Set struct {
	Enter  []string
	Update []string
	Exit   []string
}

// Len returns the number of keys in the set.
func (s Set) Len() int {
	return len(s.Enter) + len(s.Update) + len(s.Exit)
}

// Changed reports whether anything enters or exits.
func (s Set) Changed() bool {
	return len(s.Enter) > 0 || len(s.Exit) > 0
}

// Result is the diff of every element kind. From and To are the effective
// endpoints after applying the direction.
type Result struct {
	Direction  Direction
	From       *Elements
	To         *Elements
	Links      Set
	Nodes      Set
	Leaves     Set
	Extensions Set
}

// Set returns the partition of one kind.
func (r Result) Set(kind Kind) Set {
	switch kind {
	case KindLink:
		return r.Links
	case KindNode:
		return r.Nodes
	case KindLeaf:
		return r.Leaves
	case KindExtension:
		return r.Extensions
	}
	return Set{}
}

// Compute diffs from against to. Backward swaps the arguments before
// diffing: enter holds keys only in the effective target, exit keys only in
// the effective source, update keys in both.
func Compute(from, to *Elements, dir Direction) Result {
	if from == nil {
		from = ElementsOf(nil)
	}
	if to == nil {
		to = ElementsOf(nil)
	}
	if dir == Backward {
		from, to = to, from
	}
	r := Result{Direction: dir, From: from, To: to}
	r.Links = partition(from.LinkKeys, to.LinkKeys)
	r.Nodes = partition(from.NodeKeys, to.NodeKeys)
	r.Leaves = partition(from.LeafKeys, to.LeafKeys)
	r.Extensions = Set{
		Enter:  r.Leaves.Enter,
		Update: r.Leaves.Update,
		Exit:   r.Leaves.Exit,
	}
	return r
}

func partition(from, to []string) Set {
	inFrom := make(map[string]bool, len(from))
	for _, k := range from {
		inFrom[k] = true
	}
	inTo := make(map[string]bool, len(to))
	var s Set
	for _, k := range to {
		inTo[k] = true
		if inFrom[k] {
			s.Update = append(s.Update, k)
		} else {
			s.Enter = append(s.Enter, k)
		}
	}
	for _, k := range from {
		if !inTo[k] {
			s.Exit = append(s.Exit, k)
		}
	}
	return s
}

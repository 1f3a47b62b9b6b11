// Package keys derives the stable identifiers that let the same branch, node
// or leaf be recognised across different trees of a sequence.
//
// A key is a pure function of a node's split indices, so two trees that share
// a bipartition produce the same key for it:
//
//	keys.Leaf([]int{3})          // "3"
//	keys.Internal([]int{4, 1, 2}) // "1,2,4"
//	keys.Link("1,2,4", "3")       // "1,2,4 -> 3"
//
// Leaf keys keep the order of their indices while internal keys sort them
// numerically, so internal identity does not depend on child order.
package keys

import (
	"slices"
	"strconv"
	"strings"
)

// LinkSeparator joins the source and target keys of a link.
const LinkSeparator = " -> "

// Leaf returns the key of a leaf (and of its label and extension).
func Leaf(split []int) string {
	return join(split, "-")
}

// Internal returns the key of an internal node. The indices are sorted
// numerically on a copy; the input is not modified.
func Internal(split []int) string {
	sorted := slices.Clone(split)
	slices.Sort(sorted)
	return join(sorted, ",")
}

// Node returns the key of a node, choosing the leaf or internal encoding.
func Node(split []int, leaf bool) string {
	if leaf {
		return Leaf(split)
	}
	return Internal(split)
}

// Link returns the key of the edge from source to target.
func Link(source, target string) string {
	return source + LinkSeparator + target
}

// SplitLink splits a link key into its source and target keys.
func SplitLink(key string) (source, target string, ok bool) {
	return strings.Cut(key, LinkSeparator)
}

func join(split []int, sep string) string {
	var b strings.Builder
	for i, v := range split {
		if i > 0 {
			b.WriteString(sep)
		}
		b.WriteString(strconv.Itoa(v))
	}
	return b.String()
}

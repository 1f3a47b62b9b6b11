package tree

import (
	"math"
	"slices"
	"strconv"
	"strings"
)

// Bipartitions returns the non-trivial bipartitions of t, treated as
// unrooted, mapped to the summed length of the edges inducing them. A
// bipartition is canonicalised to the side that does not contain the
// smallest leaf index, so a split and its complement are the same entry.
func Bipartitions(t *Node) map[string]float64 {
	universe := t.Split
	if len(universe) == 0 {
		return nil
	}
	universe = slices.Sorted(slices.Values(universe))
	minLeaf := universe[0]
	total := len(universe)

	out := make(map[string]float64)
	t.Walk(func(n, parent *Node) bool {
		if parent == nil || n.IsLeaf() {
			return true
		}
		size := len(n.Split)
		if size < 2 || size > total-2 {
			return true
		}
		side := n.Split
		if slices.Contains(side, minLeaf) {
			side = complement(universe, side)
		}
		out[canonical(side)] += n.Length
		return true
	})
	return out
}

func complement(universe, side []int) []int {
	in := make(map[int]bool, len(side))
	for _, v := range side {
		in[v] = true
	}
	var out []int
	for _, v := range universe {
		if !in[v] {
			out = append(out, v)
		}
	}
	return out
}

func canonical(side []int) string {
	sorted := slices.Sorted(slices.Values(side))
	parts := make([]string, len(sorted))
	for i, v := range sorted {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

// RobinsonFoulds returns the number of bipartitions present in exactly one of
// the two trees, and that count relative to the bipartitions of both.
func RobinsonFoulds(a, b *Node) (int, float64) {
	ba, bb := Bipartitions(a), Bipartitions(b)
	diff := 0
	for k := range ba {
		if _, ok := bb[k]; !ok {
			diff++
		}
	}
	for k := range bb {
		if _, ok := ba[k]; !ok {
			diff++
		}
	}
	total := len(ba) + len(bb)
	if total == 0 {
		return 0, 0
	}
	return diff, float64(diff) / float64(total)
}

// WeightedRobinsonFoulds sums the absolute branch length differences over the
// union of both trees' bipartitions, counting a missing bipartition as 0.
func WeightedRobinsonFoulds(a, b *Node) float64 {
	ba, bb := Bipartitions(a), Bipartitions(b)
	sum := 0.0
	for k, la := range ba {
		sum += math.Abs(la - bb[k])
	}
	for k, lb := range bb {
		if _, ok := ba[k]; !ok {
			sum += math.Abs(lb)
		}
	}
	return sum
}

// Distance holds the distances between two consecutive trees of a run.
type Distance struct {
	From       int     `json:"from"`
	To         int     `json:"to"`
	RF         int     `json:"robinson_foulds"`
	RelativeRF float64 `json:"relative_robinson_foulds"`
	WeightedRF float64 `json:"weighted_robinson_foulds"`
}

// Trajectory returns the distances between each pair of consecutive trees.
func Trajectory(trees []*Node) []Distance {
	if len(trees) < 2 {
		return nil
	}
	out := make([]Distance, 0, len(trees)-1)
	for i := 0; i+1 < len(trees); i++ {
		rf, rel := RobinsonFoulds(trees[i], trees[i+1])
		out = append(out, Distance{
			From:       i,
			To:         i + 1,
			RF:         rf,
			RelativeRF: rel,
			WeightedRF: WeightedRobinsonFoulds(trees[i], trees[i+1]),
		})
	}
	return out
}

package tree

import (
	"errors"
	"slices"
	"testing"
)

func mustNewick(t *testing.T, s string) []*Node {
	t.Helper()
	trees, err := ParseNewick(s)
	if err != nil {
		t.Fatalf("ParseNewick(%q): %v", s, err)
	}
	if err := Prepare(trees); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	return trees
}

func TestAssignSplits(t *testing.T) {
	trees := mustNewick(t, "((A:1,B:1):1,(C:1,D:1):1);")
	root := trees[0]

	if !slices.Equal(root.Split, []int{0, 1, 2, 3}) {
		t.Errorf("root split = %v", root.Split)
	}
	if got := root.Children[0].Split; !slices.Equal(got, []int{0, 1}) {
		t.Errorf("AB split = %v", got)
	}
	if got := root.Children[1].Children[1].Split; !slices.Equal(got, []int{3}) {
		t.Errorf("D split = %v", got)
	}
}

func TestAssignSplitsUsesFirstTreeOrder(t *testing.T) {
	trees := mustNewick(t, "((D,C),(B,A)); ((A,C),(B,D));")
	for _, leaf := range trees[1].Leaves() {
		want := map[string]int{"A": 0, "B": 1, "C": 2, "D": 3}[leaf.Name]
		if leaf.Split[0] != want {
			t.Errorf("leaf %s split = %v, want [%d]", leaf.Name, leaf.Split, want)
		}
	}
}

func TestAssignSplitsErrors(t *testing.T) {
	tests := []struct {
		name   string
		newick string
		order  []string
	}{
		{"unknown taxon", "(A,(B,E));", []string{"A", "B"}},
		{"duplicate taxon", "(A,(B,A));", nil},
		{"duplicate order", "(A,B);", []string{"A", "A", "B"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trees, err := ParseNewick(tt.newick)
			if err != nil {
				t.Fatal(err)
			}
			if err := AssignSplits(trees, tt.order); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestPrepareCollapsesUnaryNodes(t *testing.T) {
	tests := []struct {
		name   string
		newick string
		want   string
	}{
		{"unary above leaf", "((A:1):2,B:1);", "(A:3,B:1);"},
		{"unary above clade", "(((A:1,B:1):1):1,C:1);", "((A:1,B:1):2,C:1);"},
		{"chain", "((((A:1):1):1,B:1):1,C:1);", "((A:3,B:1):1,C:1);"},
		{"binary untouched", "((A:1,B:1):1,C:1);", "((A:1,B:1):1,C:1);"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trees := mustNewick(t, tt.newick)
			if got := EncodeNewick(trees[0]); got != tt.want {
				t.Errorf("collapsed = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPrepareUnaryKeysAreDistinct(t *testing.T) {
	trees := mustNewick(t, "((A),B);")
	root := trees[0]
	if len(root.Children) != 2 || !root.Children[0].IsLeaf() {
		t.Fatalf("unary node kept: %s", EncodeNewick(root))
	}
	if root.Key() == root.Children[0].Key() {
		t.Errorf("root and leaf share key %s", root.Key())
	}
}

func TestCollapseUnaryRoot(t *testing.T) {
	leaf := &Node{Name: "A", Length: 2}
	stem := &Node{Length: 1, Children: []*Node{{Length: 3, Children: []*Node{leaf, {Name: "B", Length: 1}}}}}
	got := CollapseUnary(stem)
	if got == stem || len(got.Children) != 2 || got.Length != 0 {
		t.Errorf("CollapseUnary = %+v", got)
	}
	if CollapseUnary(nil) != nil {
		t.Error("CollapseUnary(nil) should be nil")
	}
}

func TestValidate(t *testing.T) {
	leaf := func(name string, i int) *Node { return &Node{Name: name, Length: 1, Split: []int{i}} }

	tests := []struct {
		name string
		root *Node
		want error
	}{
		{"nil", nil, ErrEmptyTree},
		{
			"missing split",
			&Node{Split: []int{0, 1}, Children: []*Node{leaf("A", 0), {Name: "B", Length: 1}}},
			ErrMissingSplit,
		},
		{
			"negative length",
			&Node{Split: []int{0, 1}, Children: []*Node{leaf("A", 0), {Name: "B", Length: -1, Split: []int{1}}}},
			ErrInvalidLength,
		},
		{
			"duplicate leaf",
			&Node{Split: []int{0, 1}, Children: []*Node{leaf("A", 0), leaf("B", 0)}},
			ErrDuplicateKey,
		},
		{
			"valid",
			&Node{Split: []int{0, 1}, Children: []*Node{leaf("A", 0), leaf("B", 1)}},
			nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.root)
			if !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestValidateRunInconsistentLeaf(t *testing.T) {
	a := &Node{Split: []int{0, 1}, Children: []*Node{
		{Name: "A", Split: []int{0}}, {Name: "B", Split: []int{1}},
	}}
	b := &Node{Split: []int{0, 1}, Children: []*Node{
		{Name: "A", Split: []int{1}}, {Name: "B", Split: []int{0}},
	}}
	if err := ValidateRun([]*Node{a, b}); !errors.Is(err, ErrInconsistentLeaf) {
		t.Errorf("ValidateRun() = %v, want ErrInconsistentLeaf", err)
	}
}

func TestCloneIsDeep(t *testing.T) {
	trees := mustNewick(t, "((A:1,B:2):3,C:4);")
	c := trees[0].Clone()
	c.Children[0].Children[1].Length = 99
	c.Children[0].Split[0] = 42

	if trees[0].Children[0].Children[1].Length != 2 {
		t.Error("Clone shares nodes with the original")
	}
	if trees[0].Children[0].Split[0] == 42 {
		t.Error("Clone shares split slices with the original")
	}
}

func TestWalkSkipsSubtree(t *testing.T) {
	trees := mustNewick(t, "((A,B),(C,D));")
	var visited []string
	trees[0].Walk(func(n, _ *Node) bool {
		if n.IsLeaf() {
			visited = append(visited, n.Name)
		}
		return n.Key() != "0,1"
	})
	if !slices.Equal(visited, []string{"C", "D"}) {
		t.Errorf("visited = %v, want [C D]", visited)
	}
}

package diff

import (
	"slices"
	"testing"

	"pgregory.net/rapid"

	"github.com/matzehuels/phylomorph/pkg/layout"
	"github.com/matzehuels/phylomorph/pkg/tree"
)

func elements(t testing.TB, newick string) []*Elements {
	t.Helper()
	trees, err := tree.ParseNewick(newick)
	if err != nil {
		t.Fatal(err)
	}
	if err := tree.Prepare(trees); err != nil {
		t.Fatal(err)
	}
	out := make([]*Elements, len(trees))
	for i, tr := range trees {
		l, err := layout.Radial(tr, layout.Canvas{Width: 800, Height: 800})
		if err != nil {
			t.Fatal(err)
		}
		out[i] = ElementsOf(l)
	}
	return out
}

func TestComputeTopologyChange(t *testing.T) {
	e := elements(t, "((A,B),(C,D)); ((A,C),(B,D));")
	r := Compute(e[0], e[1], Forward)

	// Leaf links are keyed by their parent clade, so they change with it.
	wantEnter := []string{
		"0,1,2,3 -> 0,2", "0,2 -> 0", "0,2 -> 2",
		"0,1,2,3 -> 1,3", "1,3 -> 1", "1,3 -> 3",
	}
	wantExit := []string{
		"0,1,2,3 -> 0,1", "0,1 -> 0", "0,1 -> 1",
		"0,1,2,3 -> 2,3", "2,3 -> 2", "2,3 -> 3",
	}
	if !slices.Equal(r.Links.Enter, wantEnter) {
		t.Errorf("link enter = %v, want %v", r.Links.Enter, wantEnter)
	}
	if !slices.Equal(r.Links.Exit, wantExit) {
		t.Errorf("link exit = %v, want %v", r.Links.Exit, wantExit)
	}
	if len(r.Links.Update) != 0 {
		t.Errorf("link update = %v, want none", r.Links.Update)
	}
	if !slices.Equal(r.Nodes.Enter, []string{"0,2", "1,3"}) || !slices.Equal(r.Nodes.Update, []string{"0,1,2,3"}) {
		t.Errorf("nodes = %+v", r.Nodes)
	}
	if len(r.Leaves.Update) != 4 || r.Leaves.Changed() {
		t.Errorf("leaves = %+v, want 4 updates", r.Leaves)
	}
	if !slices.Equal(r.Extensions.Update, r.Leaves.Update) {
		t.Error("extensions should mirror leaves")
	}
}

func TestComputeBackwardSwaps(t *testing.T) {
	e := elements(t, "((A,B),(C,D)); ((A,C),(B,D));")
	fwd := Compute(e[0], e[1], Forward)
	bwd := Compute(e[0], e[1], Backward)

	if !slices.Equal(fwd.Links.Enter, bwd.Links.Exit) {
		t.Errorf("backward exit %v != forward enter %v", bwd.Links.Exit, fwd.Links.Enter)
	}
	if !slices.Equal(fwd.Links.Exit, bwd.Links.Enter) {
		t.Errorf("backward enter %v != forward exit %v", bwd.Links.Enter, fwd.Links.Exit)
	}
	if bwd.From != e[1] || bwd.To != e[0] {
		t.Error("backward result should expose swapped endpoints")
	}
}

func TestComputeSameTree(t *testing.T) {
	e := elements(t, "((A:1,B:2):1,(C:1,D:1):1);")
	r := Compute(e[0], e[0], Forward)
	for _, kind := range []Kind{KindLink, KindNode, KindLeaf, KindExtension} {
		s := r.Set(kind)
		if s.Changed() || len(s.Update) != e[0].Count(kind) {
			t.Errorf("%s: %+v", kind, s)
		}
	}
}

func TestComputeNil(t *testing.T) {
	e := elements(t, "((A,B),C);")
	r := Compute(nil, e[0], Forward)
	if len(r.Links.Enter) != 4 || len(r.Links.Exit) != 0 {
		t.Errorf("links = %+v", r.Links)
	}
}

func TestParseDirection(t *testing.T) {
	tests := []struct {
		in      string
		want    Direction
		wantErr bool
	}{
		{"", Forward, false},
		{"forward", Forward, false},
		{"BACK", Backward, false},
		{"reverse", Backward, false},
		{"sideways", Forward, true},
	}
	for _, tt := range tests {
		got, err := ParseDirection(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseDirection(%q) = %v, %v", tt.in, got, err)
		}
	}
}

// TestComputePartitions checks that every kind's sets are disjoint and that
// update ∪ enter equals the target keys and update ∪ exit the source keys.
func TestComputePartitions(t *testing.T) {
	pool := elements(t, `((A:1,B:1):1,(C:1,D:1):1);
		((A:1,C:1):1,(B:1,D:1):1);
		(((A,B),C),D);
		(A,(B,(C,D)));
		(A,B,(C,D));`)
	rapid.Check(t, func(t *rapid.T) {
		from := rapid.SampledFrom(pool).Draw(t, "from")
		to := rapid.SampledFrom(pool).Draw(t, "to")
		dir := rapid.SampledFrom([]Direction{Forward, Backward}).Draw(t, "dir")
		r := Compute(from, to, dir)

		src, dst := from, to
		if dir == Backward {
			src, dst = to, from
		}
		for _, kind := range []Kind{KindLink, KindNode, KindLeaf} {
			s := r.Set(kind)
			gotTo := slices.Sorted(slices.Values(append(slices.Clone(s.Update), s.Enter...)))
			gotFrom := slices.Sorted(slices.Values(append(slices.Clone(s.Update), s.Exit...)))
			if !slices.Equal(gotTo, slices.Sorted(slices.Values(dst.Keys(kind)))) {
				t.Fatalf("%s: update+enter = %v, target = %v", kind, gotTo, dst.Keys(kind))
			}
			if !slices.Equal(gotFrom, slices.Sorted(slices.Values(src.Keys(kind)))) {
				t.Fatalf("%s: update+exit = %v, source = %v", kind, gotFrom, src.Keys(kind))
			}
		}
	})
}

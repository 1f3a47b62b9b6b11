package edgechange

import (
	"math"
	"testing"

	"pgregory.net/rapid"

	"github.com/matzehuels/phylomorph/pkg/layout"
	"github.com/matzehuels/phylomorph/pkg/tree"
	"github.com/matzehuels/phylomorph/pkg/tree/transform"
)

func layouts(t testing.TB, newick string, opts ...layout.Option) []*layout.Layout {
	t.Helper()
	trees, err := tree.ParseNewick(newick)
	if err != nil {
		t.Fatal(err)
	}
	if err := tree.Prepare(trees); err != nil {
		t.Fatal(err)
	}
	out := make([]*layout.Layout, len(trees))
	for i, tr := range trees {
		out[i], err = layout.Radial(tr, layout.Canvas{Width: 800, Height: 600}, opts...)
		if err != nil {
			t.Fatal(err)
		}
	}
	return out
}

func classes(from, to *layout.Layout) map[string]Class {
	out := make(map[string]Class)
	for _, k := range to.Links {
		if f, ok := from.Link(k.Key); ok {
			out[k.Key] = Classify(f, k, DefaultTolerances())
		}
	}
	return out
}

func TestClassifyIdentity(t *testing.T) {
	l := layouts(t, "((A:1,B:1):1,(C:1,D:1):1); ((A:1,B:1):1,(C:1,D:1):1);")
	got := classes(l[0], l[1])
	if len(got) != 6 {
		t.Fatalf("got %d shared links, want 6", len(got))
	}
	for key, c := range got {
		if c != None {
			t.Errorf("link %s = %s, want none", key, c)
		}
	}
}

func TestClassifyLeafRotation(t *testing.T) {
	l := layouts(t, "((A:1,B:1):1,(C:1,D:1):1); ((C:1,D:1):1,(A:1,B:1):1);")
	got := classes(l[0], l[1])
	if len(got) != 6 {
		t.Fatalf("got %d shared links, want 6", len(got))
	}
	for key, c := range got {
		if c != Reorder {
			t.Errorf("link %s = %s, want reorder", key, c)
		}
	}
}

func TestClassifyReweight(t *testing.T) {
	trees, _ := tree.ParseNewick("((A:1,B:1):1,(C:1,D:1):1); ((A:2,B:2):2,(C:2,D:2):2);")
	_ = tree.Prepare(trees)
	var scale layout.UniformScale
	global := scale.Global(trees, transform.None)
	l := layouts(t, "((A:1,B:1):1,(C:1,D:1):1); ((A:2,B:2):2,(C:2,D:2):2);", layout.WithUniformScale(global))

	for key, c := range classes(l[0], l[1]) {
		if c != Retopo {
			t.Errorf("link %s = %s, want retopo", key, c)
		}
	}
}

func TestMeasureZeroRadius(t *testing.T) {
	root := &layout.Node{Key: "r"}
	a := &layout.Node{Key: "a"}
	b := &layout.Node{Key: "a", Radius: 5}

	d := Measure(&layout.Link{Source: root, Target: a}, &layout.Link{Source: root, Target: a})
	if d.Radius != 0 || d.Length != 0 {
		t.Errorf("degenerate link delta = %+v, want zero", d)
	}
	d = Measure(&layout.Link{Source: root, Target: a}, &layout.Link{Source: root, Target: b})
	if !math.IsInf(d.Radius, 1) || !math.IsInf(d.Length, 1) {
		t.Errorf("growth from zero = %+v, want +Inf", d)
	}
}

func TestDeltaClass(t *testing.T) {
	tol := DefaultTolerances()
	tests := []struct {
		name string
		d    Delta
		want Class
	}{
		{"still", Delta{}, None},
		{"below all", Delta{Radius: 0.005, Length: 0.005, Angle: 0.0005}, None},
		{"rotated", Delta{Angle: 0.2}, Reorder},
		{"radius wins", Delta{Radius: 0.02, Angle: 0.2}, Retopo},
		{"length wins", Delta{Length: 0.5}, Retopo},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.d.Class(tol); got != tt.want {
				t.Errorf("Class() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestRotationDelta(t *testing.T) {
	l := layouts(t, "((A:1,B:1):1,(C:1,D:1):1); ((C:1,D:1):1,(A:1,B:1):1);")
	from, _ := l[0].Link("0,1,2,3 -> 0,1")
	to, _ := l[1].Link("0,1,2,3 -> 0,1")
	// The root stays put and the AB clade turns half a circle.
	if got := RotationDelta(from, to); math.Abs(got-math.Pi/2) > 1e-9 {
		t.Errorf("RotationDelta = %v, want π/2", got)
	}
}

func TestClassifySelfIsNone(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		mk := func(label string) *layout.Node {
			return &layout.Node{
				Radius: rapid.Float64Range(0, 500).Draw(t, label+"r"),
				Angle:  rapid.Float64Range(0, 2*math.Pi).Draw(t, label+"a"),
			}
		}
		link := &layout.Link{Source: mk("s"), Target: mk("t")}
		if c := Classify(link, link, DefaultTolerances()); c != None {
			t.Fatalf("Classify(L, L) = %s", c)
		}
	})
}

func TestSummary(t *testing.T) {
	var s Summary
	for _, c := range []Class{None, Reorder, Reorder, Retopo} {
		s.Add(c)
	}
	if s.Total() != 4 || s.Reorder != 2 {
		t.Errorf("summary = %+v", s)
	}
}

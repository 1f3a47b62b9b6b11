package scene

import (
	"errors"
	"math"
	"slices"
	"testing"
	"time"

	"github.com/chewxy/math32"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/matzehuels/phylomorph/pkg/edgechange"
	"github.com/matzehuels/phylomorph/pkg/layout"
	"github.com/matzehuels/phylomorph/pkg/render"
	"github.com/matzehuels/phylomorph/pkg/tree"
)

func layouts(t testing.TB, newick string) []*layout.Layout {
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
		out[i], err = layout.Radial(tr, layout.Canvas{Width: 800, Height: 600})
		if err != nil {
			t.Fatal(err)
		}
	}
	return out
}

func TestLinkReorderRotatesFrozenGeometry(t *testing.T) {
	l := layouts(t, "((A:1,B:1):1,(C:1,D:1):1); ((C:1,D:1):1,(A:1,B:1):1);")
	from, _ := l[0].Link("0,1,2,3 -> 0,1")
	to, _ := l[1].Link("0,1,2,3 -> 0,1")
	style := render.DefaultStyle()

	layer := NewLinkLayer()
	layer.RenderInstant(l[0].Links, style)
	if err := layer.Update(from, to, 0, edgechange.Reorder, style); err != nil {
		t.Fatal(err)
	}
	base := slices.Clone(layer.meshes[to.Key].verts)

	if err := layer.Update(from, to, 0.5, edgechange.Reorder, style); err != nil {
		t.Fatal(err)
	}
	got := layer.meshes[to.Key].verts
	want := base.Rotate(float32(edgechange.RotationDelta(from, to) / 2))
	if got.Len() != want.Len() {
		t.Fatalf("vertex count changed: %d != %d", got.Len(), want.Len())
	}
	for i := range got {
		if math32.Abs(got[i]-want[i]) > 1e-3 {
			t.Fatalf("vertex component %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestLinkRetopoPinsVertexCount(t *testing.T) {
	l := layouts(t, "((A:1,B:1):1,(C:1,D:1):1); ((A:1,B:1):3,(C:1,D:1):1);")
	from, _ := l[0].Link("0,1,2,3 -> 0,1")
	to, _ := l[1].Link("0,1,2,3 -> 0,1")
	style := render.DefaultStyle()

	layer := NewLinkLayer()
	layer.RenderInstant(l[0].Links, style)
	counts := map[int]bool{}
	for _, tt := range []float64{0, 0.25, 0.5, 0.75, 1} {
		if err := layer.Update(from, to, tt, edgechange.Retopo, style); err != nil {
			t.Fatal(err)
		}
		counts[layer.meshes[to.Key].verts.Len()] = true
	}
	if len(counts) != 1 {
		t.Errorf("vertex counts %v, want one pinned count", counts)
	}
}

func TestLinkUpdateMissingMesh(t *testing.T) {
	l := layouts(t, "((A,B),(C,D));")
	link := l[0].Links[0]
	layer := NewLinkLayer()
	err := layer.Update(link, link, 0.5, edgechange.None, render.DefaultStyle())
	if !errors.Is(err, render.ErrMissingElement) {
		t.Fatalf("err = %v, want render.ErrMissingElement", err)
	}
	if layer.Len() != 1 {
		t.Error("missing mesh should be created")
	}
}

func TestEnterExitSymmetry(t *testing.T) {
	l := layouts(t, "((A,B),(C,D));")
	style := render.DefaultStyle()
	layer := NewLinkLayer()
	link := l[0].Links[1]

	layer.Enter(link, 0.3, style)
	if got := layer.meshes[link.Key].opacity; got != 0.3 {
		t.Errorf("enter opacity = %v", got)
	}
	layer.Enter(link, 0, style)
	if layer.Len() != 0 {
		t.Error("enter at t=0 should remove the link")
	}
	layer.Exit(link, 0.25, style)
	if got := layer.meshes[link.Key].opacity; got != 0.75 {
		t.Errorf("exit opacity = %v", got)
	}
	layer.Exit(link, 1, style)
	if layer.Len() != 0 {
		t.Error("exit at t=1 should remove the link")
	}
}

func TestValidateCullsOrphans(t *testing.T) {
	l := layouts(t, "((A,B),(C,D));")
	layer := NewNodeLayer()
	layer.RenderInstant(l[0].InternalNodes(), render.DefaultStyle())
	layer.meshes["ghost"] = &nodeMesh{}

	v := layer.Validate(layer.Keys()[:3], nil, nil, nil)
	if !slices.Equal(v.Orphans, []string{"ghost"}) {
		t.Errorf("orphans = %v", v.Orphans)
	}
	if _, ok := layer.meshes["ghost"]; ok {
		t.Error("orphan not culled")
	}
}

func TestLeafInterpolateOuterRadius(t *testing.T) {
	l := layouts(t, "((A:1,B:1):1,(C:1,D:1):1); ((A:1,B:2):1,(C:1,D:1):1);")
	style := render.DefaultStyle()
	layer := NewLeafLayer(Extensions)
	layer.RenderInstant(l[0].Leaves, style)

	index := func(ly *layout.Layout) map[string]*layout.Node {
		m := map[string]*layout.Node{}
		for _, n := range ly.Leaves {
			m[n.Key] = n
		}
		return m
	}
	if err := layer.Interpolate(index(l[0]), index(l[1]), layer.Keys(), 300, 320, 0.5, style); err != nil {
		t.Fatal(err)
	}
	for _, key := range layer.Keys() {
		if r, _ := layer.Outer(key); r != 310 {
			t.Errorf("outer(%s) = %v, want 310", key, r)
		}
	}
}

func TestLabelsUseStableRadius(t *testing.T) {
	l := layouts(t, "((A:1,B:1):1,(C:1,D:1):1);")
	style := render.DefaultStyle()
	style.LabelRadius = 310
	sc := New()
	sc.Labels.RenderInstant(l[0].Leaves, style)

	if sc.Labels.atlas.pendingLen() != 4 {
		t.Errorf("pending glyphs = %d, want 4", sc.Labels.atlas.pendingLen())
	}
	f, err := sc.Render()
	if err != nil {
		t.Fatal(err)
	}
	if sc.Labels.atlas.pendingLen() != 0 {
		t.Error("render should flush the atlas")
	}
	for _, lb := range f.Labels {
		if r := r2.Norm(r2.Vec{X: lb.Pos[0], Y: lb.Pos[1]}); math.Abs(r-310) > 1e-9 {
			t.Errorf("label %s at radius %v", lb.Key, r)
		}
	}
	// C sits at π and reads right to left.
	c := f.Labels[2]
	if c.Text != "C" || c.Anchor != "end" {
		t.Errorf("label C = %+v", c)
	}
}

func TestFocusOnTree(t *testing.T) {
	sc := New(WithCanvas(layout.Canvas{Width: 800, Height: 600}))
	sc.FocusOnTree(0)
	if want := 600 / (2 * 1.1); math.Abs(sc.Camera.Zoom-want) > 1e-9 {
		t.Errorf("degenerate zoom = %v, want %v", sc.Camera.Zoom, want)
	}
	sc.FocusOnTree(300)
	if want := 600 / (2 * 300 * 1.1); math.Abs(sc.Camera.Zoom-want) > 1e-9 {
		t.Errorf("zoom = %v, want %v", sc.Camera.Zoom, want)
	}
}

func TestCameraTransition(t *testing.T) {
	c := NewCamera()
	c.TransitionTo(100, -50, 2, time.Second)
	if !c.Animating() {
		t.Fatal("expected an active transition")
	}
	c.Update(500 * time.Millisecond)
	if c.X <= 0 || c.X >= 100 {
		t.Errorf("midway X = %v", c.X)
	}
	c.Update(time.Second)
	if c.Animating() || c.X != 100 || c.Y != -50 || c.Zoom != 2 {
		t.Errorf("camera = %+v", c)
	}
}

func TestVerticesResample(t *testing.T) {
	tests := []struct {
		name string
		in   Vertices
		n    int
		want Vertices
	}{
		{"line to three", Vertices{0, 0, 10, 0}, 3, Vertices{0, 0, 5, 0, 10, 0}},
		{"same count", Vertices{0, 0, 1, 1}, 2, Vertices{0, 0, 1, 1}},
		{"corner", Vertices{0, 0, 2, 0, 2, 2}, 3, Vertices{0, 0, 2, 0, 2, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.Resample(tt.n)
			if !slices.Equal(got, tt.want) {
				t.Errorf("Resample = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSceneRenderFrame(t *testing.T) {
	l := layouts(t, "((A,B),(C,D));")
	style := render.DefaultStyle()
	sc := New(WithBackground(""))
	b := sc.Backend()
	b.Links.RenderInstant(l[0].Links, style)
	b.Nodes.RenderInstant(l[0].InternalNodes(), style)
	b.Extensions.RenderInstant(l[0].Leaves, style)
	b.Labels.RenderInstant(l[0].Leaves, style)

	f, err := b.Viewport.Render()
	if err != nil {
		t.Fatal(err)
	}
	if len(f.Links) != 6 || len(f.Nodes) != 3 || len(f.Extensions) != 4 || len(f.Labels) != 4 {
		t.Errorf("frame sizes %d/%d/%d/%d", len(f.Links), len(f.Nodes), len(f.Extensions), len(f.Labels))
	}
	if !slices.IsSorted(f.LinkKeys()) || f.Background != "" {
		t.Error("unexpected frame")
	}
	sc.Destroy()
	if sc.Links.Len()+sc.Nodes.Len()+sc.Labels.Len() != 0 {
		t.Error("destroy should empty every layer")
	}
}

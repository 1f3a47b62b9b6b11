package morph

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	"pgregory.net/rapid"

	"github.com/matzehuels/phylomorph/pkg/diff"
	"github.com/matzehuels/phylomorph/pkg/edgechange"
	"github.com/matzehuels/phylomorph/pkg/layout"
	"github.com/matzehuels/phylomorph/pkg/render"
	"github.com/matzehuels/phylomorph/pkg/render/scene"
	"github.com/matzehuels/phylomorph/pkg/tree"
	"github.com/matzehuels/phylomorph/pkg/tree/transform"
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

func newEngine(t testing.TB, opts ...Option) (*Engine, *scene.Scene) {
	t.Helper()
	sc := scene.New()
	e, err := New(sc.Backend(), opts...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(e.Close)
	return e, sc
}

type snapshot struct {
	links, nodes, extensions, labels []string
}

func snap(sc *scene.Scene) snapshot {
	return snapshot{sc.Links.Keys(), sc.Nodes.Keys(), sc.Extensions.Keys(), sc.Labels.Keys()}
}

func layoutSnap(l *layout.Layout) snapshot {
	el := diff.ElementsOf(l)
	s := snapshot{
		links:      slices.Clone(el.LinkKeys),
		nodes:      slices.Clone(el.NodeKeys),
		extensions: slices.Clone(el.LeafKeys),
		labels:     slices.Clone(el.LeafKeys),
	}
	slices.Sort(s.links)
	slices.Sort(s.nodes)
	slices.Sort(s.extensions)
	slices.Sort(s.labels)
	return s
}

func (s snapshot) equal(o snapshot) bool {
	return slices.Equal(s.links, o.links) && slices.Equal(s.nodes, o.nodes) &&
		slices.Equal(s.extensions, o.extensions) && slices.Equal(s.labels, o.labels)
}

const topologyChange = "((A,B),(C,D)); ((A,C),(B,D));"

func TestRenderFrameLeafRotation(t *testing.T) {
	l := layouts(t, "((A:1,B:1):1,(C:1,D:1):1); ((C:1,D:1):1,(A:1,B:1):1);")
	e, _ := newEngine(t)
	ctx := context.Background()
	if err := e.RenderInstant(ctx, Instant{Layout: l[0], Index: 0}); err != nil {
		t.Fatal(err)
	}
	rep, err := e.RenderFrame(ctx, Request{From: l[0], To: l[1], FromIndex: 0, ToIndex: 1, T: 0.5})
	if err != nil {
		t.Fatal(err)
	}
	if rep.Classes.Reorder != 6 || rep.Classes.Total() != 6 {
		t.Errorf("classes = %+v, want 6 reorder", rep.Classes)
	}
	if rep.Entered != 0 || rep.Exited != 0 || rep.Stages != 3 {
		t.Errorf("report = %+v", rep)
	}
}

func TestRenderFrameTopologyChange(t *testing.T) {
	l := layouts(t, topologyChange)
	e, sc := newEngine(t)
	ctx := context.Background()
	if err := e.RenderInstant(ctx, Instant{Layout: l[0], Index: 0}); err != nil {
		t.Fatal(err)
	}

	rep, err := e.RenderFrame(ctx, Request{From: l[0], To: l[1], FromIndex: 0, ToIndex: 1, T: 1})
	if err != nil {
		t.Fatal(err)
	}
	if rep.Entered == 0 || rep.Exited == 0 {
		t.Errorf("expected entering and exiting elements, got %+v", rep)
	}
	if got, want := snap(sc), layoutSnap(l[1]); !got.equal(want) {
		t.Errorf("t=1 elements = %+v, want %+v", got, want)
	}

	if _, err := e.RenderFrame(ctx, Request{From: l[0], To: l[1], FromIndex: 0, ToIndex: 1, T: 0}); err != nil {
		t.Fatal(err)
	}
	if got, want := snap(sc), layoutSnap(l[0]); !got.equal(want) {
		t.Errorf("t=0 elements = %+v, want %+v", got, want)
	}
}

func TestScrubAndReverse(t *testing.T) {
	l := layouts(t, topologyChange)
	e, sc := newEngine(t)
	ctx := context.Background()
	if err := e.RenderInstant(ctx, Instant{Layout: l[0], Index: 0}); err != nil {
		t.Fatal(err)
	}
	labelR := e.Radii().LabelRadius()
	if want := l[0].MaxRadius + DefaultLabelOffset; labelR != want {
		t.Fatalf("label radius = %v, want %v", labelR, want)
	}

	for _, tt := range []float64{0.25, 0.5, 0.75, 1} {
		if _, err := e.RenderFrame(ctx, Request{From: l[0], To: l[1], FromIndex: 0, ToIndex: 1, T: tt}); err != nil {
			t.Fatal(err)
		}
	}
	var last Report
	for _, tt := range []float64{0.75, 0.5, 0.25, 0} {
		rep, err := e.RenderFrame(ctx, Request{From: l[0], To: l[1], FromIndex: 0, ToIndex: 1, T: tt, Direction: diff.Backward})
		if err != nil {
			t.Fatal(err)
		}
		last = rep
	}
	if last.Mismatch || !last.Validated {
		t.Errorf("final backward frame = %+v", last)
	}
	if got, want := snap(sc), layoutSnap(l[0]); !got.equal(want) {
		t.Errorf("elements after reverse = %+v, want %+v", got, want)
	}
	if e.Radii().LabelRadius() != labelR {
		t.Error("label radius changed during the run")
	}
	for _, key := range sc.Labels.Keys() {
		if r, _ := sc.Labels.Outer(key); r != labelR {
			t.Errorf("label %s at %v, want %v", key, r, labelR)
		}
	}
}

func TestStableRadiiFromTarget(t *testing.T) {
	trees, err := tree.ParseNewick("((A:1,B:1):1,(C:1,D:1):1); ((A:2,B:2):2,(C:2,D:2):2);")
	if err != nil {
		t.Fatal(err)
	}
	if err := tree.Prepare(trees); err != nil {
		t.Fatal(err)
	}
	var u layout.UniformScale
	global := u.Global(trees, transform.None)
	l := make([]*layout.Layout, len(trees))
	for i, tr := range trees {
		if l[i], err = layout.Radial(tr, layout.Canvas{Width: 800, Height: 600}, layout.WithUniformScale(global)); err != nil {
			t.Fatal(err)
		}
	}
	if l[1].MaxRadius == l[0].MaxRadius {
		t.Fatal("trees should differ in depth")
	}

	tests := []struct {
		name   string
		dir    diff.Direction
		target *layout.Layout
	}{
		{"forward", diff.Forward, l[1]},
		{"backward", diff.Backward, l[0]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, sc := newEngine(t)
			ctx := context.Background()
			want := tt.target.MaxRadius + DefaultLabelOffset
			for _, at := range []float64{0.5, 0, 1, 0.25} {
				req := Request{From: l[0], To: l[1], FromIndex: 0, ToIndex: 1, T: at, Direction: tt.dir}
				if _, err := e.RenderFrame(ctx, req); err != nil {
					t.Fatal(err)
				}
				if got := e.Radii().LabelRadius(); got != want {
					t.Fatalf("t=%v: label radius = %v, want %v", at, got, want)
				}
				if got, want := e.Radii().ExtensionRadius(), tt.target.MaxRadius+DefaultExtensionOffset; got != want {
					t.Fatalf("t=%v: extension radius = %v, want %v", at, got, want)
				}
			}
			for _, key := range sc.Labels.Keys() {
				if r, _ := sc.Labels.Outer(key); r != want {
					t.Errorf("label %s at %v, want %v", key, r, want)
				}
			}
		})
	}
}

func TestReverseKeepsInteriorTimes(t *testing.T) {
	tests := []struct {
		t, want float64
	}{
		{0, 1},
		{1, 0},
		{0.25, 0.75},
	}
	for _, tt := range tests {
		if got := reverse(tt.t); got != tt.want {
			t.Errorf("reverse(%v) = %v, want %v", tt.t, got, tt.want)
		}
	}
	for _, tiny := range []float64{5.551115123125783e-17, 1e-300, 1e-17} {
		if got := reverse(tiny); got >= 1 {
			t.Errorf("reverse(%g) = %v, want below 1", tiny, got)
		}
	}
}

func TestForwardBackwardAgreeNearZero(t *testing.T) {
	l := layouts(t, topologyChange)
	e, sc := newEngine(t)
	ctx := context.Background()
	req := Request{From: l[0], To: l[1], FromIndex: 0, ToIndex: 1, T: 5.551115123125783e-17}
	if _, err := e.RenderFrame(ctx, req); err != nil {
		t.Fatal(err)
	}
	forward := snap(sc)
	req.Direction = diff.Backward
	if _, err := e.RenderFrame(ctx, req); err != nil {
		t.Fatal(err)
	}
	if backward := snap(sc); !forward.equal(backward) {
		t.Errorf("forward %+v != backward %+v", forward, backward)
	}
}

func TestSameTreeIsDrawnAtZero(t *testing.T) {
	l := layouts(t, "((A,B),(C,D));")
	e, _ := newEngine(t)
	rep, err := e.RenderFrame(context.Background(), Request{From: l[0], To: l[0], T: 0.7})
	if err != nil {
		t.Fatal(err)
	}
	if rep.T != 0 {
		t.Errorf("t = %v, want 0", rep.T)
	}
}

func TestRenderFrameNilLayout(t *testing.T) {
	e, _ := newEngine(t)
	if _, err := e.RenderFrame(context.Background(), Request{}); !errors.Is(err, ErrNilLayout) {
		t.Errorf("err = %v, want ErrNilLayout", err)
	}
	if err := e.RenderInstant(context.Background(), Instant{}); !errors.Is(err, ErrNilLayout) {
		t.Errorf("err = %v, want ErrNilLayout", err)
	}
}

func TestNewIncompleteBackend(t *testing.T) {
	if _, err := New(render.Backend{}); !errors.Is(err, ErrIncompleteBackend) {
		t.Errorf("err = %v, want ErrIncompleteBackend", err)
	}
}

func TestMissingMeshesAreCreated(t *testing.T) {
	l := layouts(t, "((A,B),(C,D)); ((A,B),(C,D));")
	e, sc := newEngine(t)
	rep, err := e.RenderFrame(context.Background(), Request{From: l[0], To: l[1], FromIndex: 0, ToIndex: 1, T: 0.5})
	if err != nil {
		t.Fatal(err)
	}
	// 6 links, 3 internal nodes, 4 extensions and 4 labels.
	if rep.Missing != 17 || rep.Errors != 0 {
		t.Errorf("missing = %d, errors = %d", rep.Missing, rep.Errors)
	}
	if !snap(sc).equal(layoutSnap(l[1])) {
		t.Error("missing meshes were not created")
	}
}

type panickyLinks struct {
	*scene.LinkLayer
	key string
}

func (p panickyLinks) Update(from, to *layout.Link, t float64, c edgechange.Class, s render.Style) error {
	if to.Key == p.key {
		panic("corrupt mesh")
	}
	return p.LinkLayer.Update(from, to, t, c, s)
}

func TestRendererPanicIsContained(t *testing.T) {
	l := layouts(t, "((A:1,B:1):1,(C:1,D:1):1); ((A:1,B:2):1,(C:1,D:1):1);")
	sc := scene.New()
	b := sc.Backend()
	b.Links = panickyLinks{LinkLayer: sc.Links, key: l[0].Links[0].Key}
	e, err := New(b)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	ctx := context.Background()
	if err := e.RenderInstant(ctx, Instant{Layout: l[0], Index: 0}); err != nil {
		t.Fatal(err)
	}
	rep, err := e.RenderFrame(ctx, Request{From: l[0], To: l[1], FromIndex: 0, ToIndex: 1, T: 0.5})
	if err != nil {
		t.Fatal(err)
	}
	if rep.Errors != 1 || rep.Stages != 3 || rep.Classes.Total() != 6 {
		t.Errorf("report = %+v", rep)
	}
}

func TestNewerFrameSupersedes(t *testing.T) {
	l := layouts(t, topologyChange)
	req := Request{From: l[0], To: l[1], FromIndex: 0, ToIndex: 1, T: 0.5}

	var (
		e      *Engine
		once   sync.Once
		second Report
		done   = make(chan struct{})
	)
	yield := func(ctx context.Context) error {
		once.Do(func() {
			go func() {
				second, _ = e.RenderFrame(ctx, req)
				close(done)
			}()
			waitFor(ctx, MaxWait, func() bool { return e.Generation() >= 2 })
		})
		return nil
	}
	e, _ = newEngine(t, WithYield(yield))

	first, err := e.RenderFrame(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	<-done
	if !first.Superseded || first.Stages != 1 {
		t.Errorf("first frame = %+v, want superseded after one stage", first)
	}
	if second.Superseded || second.Stages != 3 {
		t.Errorf("second frame = %+v, want complete", second)
	}
}

func TestYieldErrorAbortsFrame(t *testing.T) {
	l := layouts(t, topologyChange)
	stop := errors.New("stop")
	e, _ := newEngine(t, WithYield(func(context.Context) error { return stop }))
	rep, err := e.RenderFrame(context.Background(), Request{From: l[0], To: l[1], T: 0.5, FromIndex: -1, ToIndex: -1})
	if !errors.Is(err, stop) || rep.Stages != 1 {
		t.Errorf("err = %v, stages = %d", err, rep.Stages)
	}
}

func TestMismatchClearsCaches(t *testing.T) {
	l := layouts(t, topologyChange)
	var called bool
	e, sc := newEngine(t, WithMismatchHandler(func() { called = true }))
	ctx := context.Background()
	if err := e.RenderInstant(ctx, Instant{Layout: l[0], Index: 0}); err != nil {
		t.Fatal(err)
	}
	// Drop a mesh the final backward frame expects.
	sabotage := droppingNodes{NodeLayer: sc.Nodes}
	b := sc.Backend()
	b.Nodes = sabotage
	e.backend = b

	rep, err := e.RenderFrame(ctx, Request{From: l[0], To: l[1], FromIndex: 0, ToIndex: 1, T: 0, Direction: diff.Backward})
	if err != nil {
		t.Fatal(err)
	}
	if !rep.Mismatch || !called {
		t.Errorf("mismatch = %v, handler called = %v", rep.Mismatch, called)
	}
	if len(e.elements) != 0 {
		t.Error("element cache should be empty after a mismatch")
	}
}

// droppingNodes drops every node it is asked to update.
type droppingNodes struct {
	*scene.NodeLayer
}

func (p droppingNodes) Update(from, to *layout.Node, t float64, s render.Style) error {
	p.NodeLayer.Exit(to, 1, s)
	return nil
}

func TestForwardBackwardAgree(t *testing.T) {
	l := layouts(t, topologyChange+" ((A,D),(B,C));")
	rapid.Check(t, func(rt *rapid.T) {
		i := rapid.IntRange(0, 1).Draw(rt, "from")
		tt := rapid.Float64Range(0, 1).Draw(rt, "t")
		req := Request{From: l[i], To: l[i+1], FromIndex: i, ToIndex: i + 1, T: tt}

		e, sc := newEngine(t)
		if err := e.RenderInstant(context.Background(), Instant{Layout: l[i], Index: i}); err != nil {
			rt.Fatal(err)
		}
		if _, err := e.RenderFrame(context.Background(), req); err != nil {
			rt.Fatal(err)
		}
		forward := snap(sc)

		req.Direction = diff.Backward
		rep, err := e.RenderFrame(context.Background(), req)
		if err != nil {
			rt.Fatal(err)
		}
		if backward := snap(sc); !forward.equal(backward) {
			rt.Fatalf("t=%v forward %+v != backward %+v", tt, forward, backward)
		}
		if rep.Mismatch {
			rt.Fatalf("unexpected mismatch at t=%v", tt)
		}
	})
}

func TestWaitForBounds(t *testing.T) {
	ctx := context.Background()
	if !waitFor(ctx, 0, func() bool { return true }) {
		t.Error("satisfied condition should return immediately")
	}
	if waitFor(ctx, 0, func() bool { return false }) {
		t.Error("unsatisfied condition should time out")
	}
}

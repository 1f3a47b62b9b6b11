package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/matzehuels/phylomorph/pkg/cache"
	"github.com/matzehuels/phylomorph/pkg/layout"
	"github.com/matzehuels/phylomorph/pkg/observability"
	"github.com/matzehuels/phylomorph/pkg/pipeline"
)

const quartets = "((A:1,B:1):1,(C:1,D:1):1); ((A:1,C:1):1,(B:1,D:1):1); ((A:2,D:1):1,(B:1,C:3):1);"

func newTestServer(t *testing.T, c cache.Cache) *httptest.Server {
	t.Helper()
	if c == nil {
		c = cache.NewNullCache()
	}
	srv := httptest.NewServer(New(pipeline.NewRunner(c, nil, nil), pipeline.Options{}, nil).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func postRun(t *testing.T, srv *httptest.Server, body string) RunSummary {
	t.Helper()
	resp, err := http.Post(srv.URL+"/api/runs", "text/plain", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		data, _ := io.ReadAll(resp.Body)
		t.Fatalf("POST /api/runs: status %d: %s", resp.StatusCode, data)
	}
	var sum RunSummary
	if err := json.NewDecoder(resp.Body).Decode(&sum); err != nil {
		t.Fatal(err)
	}
	if got := resp.Header.Get("Location"); got != "/api/runs/"+sum.ID {
		t.Errorf("Location = %q", got)
	}
	return sum
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, data
}

func TestHealthAndVersion(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, _ := get(t, srv.URL+"/healthz")
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("healthz status = %d", resp.StatusCode)
	}
	resp, body := get(t, srv.URL+"/api/version")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "version") {
		t.Errorf("version: %d %s", resp.StatusCode, body)
	}
}

func TestCreateAndGetRun(t *testing.T) {
	srv := newTestServer(t, nil)
	sum := postRun(t, srv, quartets)
	if sum.ID == "" || sum.Trees != 3 || sum.Leaves != 4 {
		t.Fatalf("summary = %+v", sum)
	}
	if sum.Newick != nil {
		t.Error("create response should not carry Newick")
	}

	resp, body := get(t, srv.URL+"/api/runs/"+sum.ID)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", resp.StatusCode, body)
	}
	var got RunSummary
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatal(err)
	}
	if got.ID != sum.ID || len(got.Newick) != 3 {
		t.Errorf("run = %+v", got)
	}
}

func TestCreateRunRejectsBadInput(t *testing.T) {
	srv := newTestServer(t, nil)
	resp, err := http.Post(srv.URL+"/api/runs", "text/plain", strings.NewReader("((A,B);"))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	var e ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&e); err != nil {
		t.Fatal(err)
	}
	if e.Error == "" || e.Code == "" || e.RequestID == "" {
		t.Errorf("error body = %+v", e)
	}
}

func TestRunEndpoints(t *testing.T) {
	srv := newTestServer(t, nil)
	id := postRun(t, srv, quartets).ID
	base := srv.URL + "/api/runs/" + id

	t.Run("distances", func(t *testing.T) {
		resp, body := get(t, base+"/distances")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status %d: %s", resp.StatusCode, body)
		}
		var transitions []pipeline.Transition
		if err := json.Unmarshal(body, &transitions); err != nil {
			t.Fatal(err)
		}
		if len(transitions) != 2 || transitions[0].RF != 2 {
			t.Errorf("transitions = %+v", transitions)
		}
	})

	t.Run("layouts", func(t *testing.T) {
		resp, body := get(t, base+"/layouts?width=400&height=400")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status %d: %s", resp.StatusCode, body)
		}
		if resp.Header.Get("X-Cache") != "miss" {
			t.Errorf("X-Cache = %q", resp.Header.Get("X-Cache"))
		}
	})

	t.Run("layout", func(t *testing.T) {
		resp, body := get(t, base+"/layouts/1")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status %d: %s", resp.StatusCode, body)
		}
		var l layout.Layout
		if err := json.Unmarshal(body, &l); err != nil {
			t.Fatal(err)
		}
		if len(l.Leaves) != 4 || l.Width != pipeline.DefaultWidth {
			t.Errorf("layout: %d leaves, width %v", len(l.Leaves), l.Width)
		}
	})

	t.Run("tree svg", func(t *testing.T) {
		resp, body := get(t, base+"/trees/0?highlight=A,B")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status %d: %s", resp.StatusCode, body)
		}
		if ct := resp.Header.Get("Content-Type"); ct != "image/svg+xml" {
			t.Errorf("Content-Type = %q", ct)
		}
		if !strings.Contains(string(body), "<svg") {
			t.Error("body is not an SVG")
		}
	})

	t.Run("tree dot", func(t *testing.T) {
		resp, body := get(t, base+"/trees/2?format=dot")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status %d: %s", resp.StatusCode, body)
		}
		if !strings.Contains(string(body), "graph") {
			t.Errorf("dot body = %s", body)
		}
	})

	t.Run("frame", func(t *testing.T) {
		resp, body := get(t, base+"/frame?from=1&t=0.5&direction=backward")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status %d: %s", resp.StatusCode, body)
		}
		if !strings.Contains(string(body), "<svg") {
			t.Error("frame is not an SVG")
		}
	})
}

func TestRunErrors(t *testing.T) {
	srv := newTestServer(t, nil)
	base := srv.URL + "/api/runs/" + postRun(t, srv, quartets).ID

	tests := []struct {
		name string
		url  string
		want int
	}{
		{"unknown run", srv.URL + "/api/runs/deadbeef", http.StatusNotFound},
		{"index out of range", base + "/layouts/7", http.StatusBadRequest},
		{"index not a number", base + "/trees/first", http.StatusBadRequest},
		{"unknown format", base + "/trees/0?format=gif", http.StatusBadRequest},
		{"bad transform", base + "/layouts?transform=cube", http.StatusBadRequest},
		{"bad direction", base + "/frame?direction=sideways", http.StatusBadRequest},
		{"bad t", base + "/frame?t=half", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := get(t, tt.url)
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d: %s", resp.StatusCode, tt.want, body)
			}
			if resp.Header.Get("Content-Type") != "application/json" {
				t.Errorf("error Content-Type = %q", resp.Header.Get("Content-Type"))
			}
		})
	}
}

func TestRequestIDEchoed(t *testing.T) {
	srv := newTestServer(t, nil)
	const id = "5f0c6a52-2a59-4c7e-8a8b-0d8f4f4c2a11"

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
	req.Header.Set(RequestIDHeader, id)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := resp.Header.Get(RequestIDHeader); got != id {
		t.Errorf("request ID = %q, want %q", got, id)
	}

	req.Header.Set(RequestIDHeader, "not-a-uuid")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := resp.Header.Get(RequestIDHeader); got == "" || got == "not-a-uuid" {
		t.Errorf("invalid request ID should be replaced, got %q", got)
	}
}

func TestRunsSharedThroughCache(t *testing.T) {
	shared, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	a := newTestServer(t, shared)
	b := newTestServer(t, shared)

	id := postRun(t, a, quartets).ID
	resp, body := get(t, b.URL+"/api/runs/"+id)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("second instance: status %d: %s", resp.StatusCode, body)
	}
	var sum RunSummary
	if err := json.Unmarshal(body, &sum); err != nil {
		t.Fatal(err)
	}
	if sum.Trees != 3 {
		t.Errorf("summary = %+v", sum)
	}
	_ = shared.Close()
}

func TestApplyQueryKeepsOneFormat(t *testing.T) {
	s := New(pipeline.NewRunner(nil, nil, nil), pipeline.Options{Formats: []string{"png", "svg"}}, nil)
	req := httptest.NewRequest(http.MethodGet, "/?width=300&uniform=true", nil).WithContext(context.Background())

	opts, err := s.options(req)
	if err != nil {
		t.Fatal(err)
	}
	if len(opts.Formats) != 1 || opts.Formats[0] != "png" {
		t.Errorf("formats = %v", opts.Formats)
	}
	if opts.Width != 300 || !opts.UniformScale {
		t.Errorf("query not applied: %+v", opts)
	}
	if len(s.base.Formats) != 2 {
		t.Error("base options were modified")
	}
}

func TestOptionsFillRenderDefaults(t *testing.T) {
	// Server defaults carry no source: the trees come from the stored run.
	s := New(pipeline.NewRunner(nil, nil, nil), pipeline.Options{}, nil)

	tests := []struct {
		name    string
		query   string
		wantErr bool
	}{
		{"empty", "", false},
		{"canvas", "?width=500&height=300", false},
		{"bad width", "?width=-1", true},
		{"bad transform", "?transform=cube", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/"+tt.query, nil)
			opts, err := s.options(req)
			if (err != nil) != tt.wantErr {
				t.Fatalf("options() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if opts.Width == 0 || opts.StrokeWidth == 0 || opts.Ease == "" {
				t.Errorf("defaults not filled: %+v", opts)
			}
		})
	}
}

func TestStats(t *testing.T) {
	observability.Reset()
	t.Cleanup(observability.Reset)

	counters := observability.NewCounters()
	counters.Install()
	runner := pipeline.NewRunner(cache.NewNullCache(), nil, nil)
	srv := httptest.NewServer(New(runner, pipeline.Options{}, nil, WithStats(counters)).Handler())
	t.Cleanup(srv.Close)

	sum := postRun(t, srv, quartets)
	if resp, _ := get(t, srv.URL+"/api/runs/"+sum.ID+"/layouts"); resp.StatusCode != http.StatusOK {
		t.Fatalf("layouts status %d", resp.StatusCode)
	}

	resp, body := get(t, srv.URL+"/api/stats")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stats status %d: %s", resp.StatusCode, body)
	}
	var snap observability.Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		t.Fatal(err)
	}
	if snap.Requests != 3 || snap.Responses["201"] != 1 || snap.Responses["200"] != 1 {
		t.Errorf("requests %d, responses %v", snap.Requests, snap.Responses)
	}
	if snap.Layouts < 3 {
		t.Errorf("layouts = %d, want one per tree", snap.Layouts)
	}
}

func TestStatsDisabled(t *testing.T) {
	srv := newTestServer(t, nil)
	if resp, _ := get(t, srv.URL+"/api/stats"); resp.StatusCode != http.StatusNotFound {
		t.Errorf("stats without counters: status %d", resp.StatusCode)
	}
}

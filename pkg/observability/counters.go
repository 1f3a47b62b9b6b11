package observability

import (
	"context"
	"maps"
	"strconv"
	"sync"
	"time"
)

// Counters tallies hook events in memory. It implements every hook
// interface and is safe for concurrent use.
type Counters struct {
	mu    sync.Mutex
	since time.Time
	snap  Snapshot
}

// Snapshot is a point-in-time copy of a [Counters].
type Snapshot struct {
	Uptime string `json:"uptime"`

	Loads        int `json:"loads"`
	LoadErrors   int `json:"load_errors"`
	Layouts      int `json:"layouts"`
	LayoutErrors int `json:"layout_errors"`
	Renders      int `json:"renders"`
	RenderErrors int `json:"render_errors"`

	Frames        int `json:"frames"`
	Superseded    int `json:"superseded"`
	ElementErrors int `json:"element_errors"`
	Mismatches    int `json:"mismatches"`

	CacheHits   map[string]int `json:"cache_hits"`
	CacheMisses map[string]int `json:"cache_misses"`
	CacheBytes  int64          `json:"cache_bytes_written"`

	Requests  int            `json:"requests"`
	Responses map[string]int `json:"responses"`
}

// NewCounters returns zeroed counters.
func NewCounters() *Counters {
	return &Counters{
		since: time.Now(),
		snap: Snapshot{
			CacheHits:   map[string]int{},
			CacheMisses: map[string]int{},
			Responses:   map[string]int{},
		},
	}
}

// Install registers c for every hook category.
func (c *Counters) Install() {
	SetPipelineHooks(c)
	SetMorphHooks(c)
	SetCacheHooks(c)
	SetServerHooks(c)
}

// Snapshot copies the current tallies.
func (c *Counters) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.snap
	s.Uptime = time.Since(c.since).Round(time.Second).String()
	s.CacheHits = maps.Clone(c.snap.CacheHits)
	s.CacheMisses = maps.Clone(c.snap.CacheMisses)
	s.Responses = maps.Clone(c.snap.Responses)
	return s
}

func (c *Counters) update(fn func(s *Snapshot)) {
	c.mu.Lock()
	fn(&c.snap)
	c.mu.Unlock()
}

func tally(n, errs *int, err error) {
	*n++
	if err != nil {
		*errs++
	}
}

func (c *Counters) OnLoadStart(context.Context, string)     {}
func (c *Counters) OnLayoutStart(context.Context, int, int) {}
func (c *Counters) OnRenderStart(context.Context, []string) {}

func (c *Counters) OnLoadComplete(_ context.Context, _ string, _ int, _ time.Duration, err error) {
	c.update(func(s *Snapshot) { tally(&s.Loads, &s.LoadErrors, err) })
}

func (c *Counters) OnLayoutComplete(_ context.Context, _ int, _ time.Duration, err error) {
	c.update(func(s *Snapshot) { tally(&s.Layouts, &s.LayoutErrors, err) })
}

func (c *Counters) OnRenderComplete(_ context.Context, _ []string, _ time.Duration, err error) {
	c.update(func(s *Snapshot) { tally(&s.Renders, &s.RenderErrors, err) })
}

func (c *Counters) OnFrame(_ context.Context, _, _ int, _ float64, _ time.Duration, superseded bool) {
	c.update(func(s *Snapshot) {
		if superseded {
			s.Superseded++
			return
		}
		s.Frames++
	})
}

func (c *Counters) OnElementError(context.Context, string, string, error) {
	c.update(func(s *Snapshot) { s.ElementErrors++ })
}

func (c *Counters) OnMismatch(context.Context, int, int) {
	c.update(func(s *Snapshot) { s.Mismatches++ })
}

func (c *Counters) OnCacheHit(_ context.Context, kind string) {
	c.update(func(s *Snapshot) { s.CacheHits[kind]++ })
}

func (c *Counters) OnCacheMiss(_ context.Context, kind string) {
	c.update(func(s *Snapshot) { s.CacheMisses[kind]++ })
}

func (c *Counters) OnCacheSet(_ context.Context, _ string, size int) {
	c.update(func(s *Snapshot) { s.CacheBytes += int64(size) })
}

func (c *Counters) OnRequest(context.Context, string, string) {
	c.update(func(s *Snapshot) { s.Requests++ })
}

// OnResponse counts responses by status code.
func (c *Counters) OnResponse(_ context.Context, _, _ string, status int, _ time.Duration) {
	c.update(func(s *Snapshot) { s.Responses[strconv.Itoa(status)]++ })
}

var (
	_ PipelineHooks = (*Counters)(nil)
	_ MorphHooks    = (*Counters)(nil)
	_ CacheHooks    = (*Counters)(nil)
	_ ServerHooks   = (*Counters)(nil)
)

// Package observability provides hooks for metrics, tracing, and logging.
//
// Instrumentation is optional and adds no hard dependency on a specific
// backend. Consumers register hooks at startup to receive events about tree
// loading, layout, transition frames, cache operations, and the HTTP server.
//
// # Usage
//
// Register hooks at startup, or install a [Counters] to tally every event:
//
//	counters := observability.NewCounters()
//	counters.Install()
//	defer observability.Reset()
//
// Libraries call hooks to emit events:
//
//	observability.Pipeline().OnLayoutStart(ctx, index, leafCount)
//	// ... lay out ...
//	observability.Pipeline().OnLayoutComplete(ctx, index, duration, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Pipeline Hooks
// =============================================================================

// PipelineHooks receives events from the load, layout and render pipeline.
type PipelineHooks interface {
	// Load events
	OnLoadStart(ctx context.Context, source string)
	OnLoadComplete(ctx context.Context, source string, trees int, duration time.Duration, err error)

	// Layout events
	OnLayoutStart(ctx context.Context, index, leaves int)
	OnLayoutComplete(ctx context.Context, index int, duration time.Duration, err error)

	// Render events
	OnRenderStart(ctx context.Context, formats []string)
	OnRenderComplete(ctx context.Context, formats []string, duration time.Duration, err error)
}

// =============================================================================
// Morph Hooks
// =============================================================================

// MorphHooks receives events from the transition engine.
type MorphHooks interface {
	// OnFrame records one rendered transition frame.
	OnFrame(ctx context.Context, from, to int, t float64, duration time.Duration, superseded bool)

	// OnElementError records a renderer failure for a single element.
	OnElementError(ctx context.Context, kind, key string, err error)

	// OnMismatch records an element count mismatch at a transition boundary.
	OnMismatch(ctx context.Context, from, to int)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// Server Hooks
// =============================================================================

// ServerHooks receives events from the HTTP frame server.
type ServerHooks interface {
	// OnRequest records an incoming request.
	OnRequest(ctx context.Context, method, path string)

	// OnResponse records a finished response.
	OnResponse(ctx context.Context, method, path string, statusCode int, duration time.Duration)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopPipelineHooks is a no-op implementation of PipelineHooks.
type NoopPipelineHooks struct{}

func (NoopPipelineHooks) OnLoadStart(context.Context, string)                               {}
func (NoopPipelineHooks) OnLoadComplete(context.Context, string, int, time.Duration, error) {}
func (NoopPipelineHooks) OnLayoutStart(context.Context, int, int)                           {}
func (NoopPipelineHooks) OnLayoutComplete(context.Context, int, time.Duration, error)       {}
func (NoopPipelineHooks) OnRenderStart(context.Context, []string)                           {}
func (NoopPipelineHooks) OnRenderComplete(context.Context, []string, time.Duration, error)  {}

// NoopMorphHooks is a no-op implementation of MorphHooks.
type NoopMorphHooks struct{}

func (NoopMorphHooks) OnFrame(context.Context, int, int, float64, time.Duration, bool) {}
func (NoopMorphHooks) OnElementError(context.Context, string, string, error)           {}
func (NoopMorphHooks) OnMismatch(context.Context, int, int)                            {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopServerHooks is a no-op implementation of ServerHooks.
type NoopServerHooks struct{}

func (NoopServerHooks) OnRequest(context.Context, string, string)                      {}
func (NoopServerHooks) OnResponse(context.Context, string, string, int, time.Duration) {}

// =============================================================================
// Global Hook Registry
// =============================================================================

// slot holds one registered hook set, falling back to its no-op.
type slot[T any] struct {
	mu   sync.RWMutex
	cur  T
	noop T
}

func newSlot[T any](noop T) *slot[T] {
	return &slot[T]{cur: noop, noop: noop}
}

func (s *slot[T]) set(h T) {
	if any(h) == nil {
		return
	}
	s.mu.Lock()
	s.cur = h
	s.mu.Unlock()
}

func (s *slot[T]) get() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

func (s *slot[T]) reset() {
	s.mu.Lock()
	s.cur = s.noop
	s.mu.Unlock()
}

var (
	pipelineHooks = newSlot[PipelineHooks](NoopPipelineHooks{})
	morphHooks    = newSlot[MorphHooks](NoopMorphHooks{})
	cacheHooks    = newSlot[CacheHooks](NoopCacheHooks{})
	serverHooks   = newSlot[ServerHooks](NoopServerHooks{})
)

// SetPipelineHooks registers pipeline hooks. Call it at startup; nil is
// ignored.
func SetPipelineHooks(h PipelineHooks) { pipelineHooks.set(h) }

// SetMorphHooks registers transition engine hooks.
func SetMorphHooks(h MorphHooks) { morphHooks.set(h) }

// SetCacheHooks registers cache hooks.
func SetCacheHooks(h CacheHooks) { cacheHooks.set(h) }

// SetServerHooks registers HTTP server hooks.
func SetServerHooks(h ServerHooks) { serverHooks.set(h) }

// Pipeline returns the registered pipeline hooks.
func Pipeline() PipelineHooks { return pipelineHooks.get() }

// Morph returns the registered transition engine hooks.
func Morph() MorphHooks { return morphHooks.get() }

// Cache returns the registered cache hooks.
func Cache() CacheHooks { return cacheHooks.get() }

// Server returns the registered HTTP server hooks.
func Server() ServerHooks { return serverHooks.get() }

// Reset restores every hook set to its no-op.
func Reset() {
	pipelineHooks.reset()
	morphHooks.reset()
	cacheHooks.reset()
	serverHooks.reset()
}

package cache

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/matzehuels/phylomorph/pkg/observability"
)

func TestNullCache(t *testing.T) {
	ctx := context.Background()
	c := NewNullCache()
	defer c.Close()

	// Get always returns miss
	data, hit, err := c.Get(ctx, "key")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if hit {
		t.Error("NullCache.Get should always return miss")
	}
	if data != nil {
		t.Error("NullCache.Get should return nil data")
	}

	// Set does nothing (no error)
	if err := c.Set(ctx, "key", []byte("value"), time.Hour); err != nil {
		t.Errorf("Set error: %v", err)
	}

	// Still a miss after Set
	_, hit, _ = c.Get(ctx, "key")
	if hit {
		t.Error("NullCache should not store data")
	}

	// Delete does nothing (no error)
	if err := c.Delete(ctx, "key"); err != nil {
		t.Errorf("Delete error: %v", err)
	}
}

func TestHash(t *testing.T) {
	// Test determinism
	h1 := Hash([]byte("hello"))
	h2 := Hash([]byte("hello"))
	if h1 != h2 {
		t.Error("Hash should be deterministic")
	}

	// Test different inputs produce different hashes
	h3 := Hash([]byte("world"))
	if h1 == h3 {
		t.Error("Different inputs should produce different hashes")
	}

	// Test hash length (SHA-256 produces 64 hex chars)
	if len(h1) != 64 {
		t.Errorf("Hash length should be 64, got %d", len(h1))
	}
}

func TestDefaultKeyer(t *testing.T) {
	k := NewDefaultKeyer()

	tk1 := k.TreesKey("abc", TreesKeyOpts{Format: "newick"})
	tk2 := k.TreesKey("abc", TreesKeyOpts{Format: "json"})
	if tk1 == tk2 {
		t.Error("Different TreesKeyOpts should produce different keys")
	}
	if !strings.HasPrefix(tk1, "trees:") {
		t.Errorf("TreesKey unexpected: %s", tk1)
	}

	lk1 := k.LayoutKey("hash123", LayoutKeyOpts{Index: 0, Width: 800})
	lk2 := k.LayoutKey("hash123", LayoutKeyOpts{Index: 1, Width: 800})
	if lk1 == lk2 {
		t.Error("Different LayoutKeyOpts should produce different keys")
	}
	if lk1 != k.LayoutKey("hash123", LayoutKeyOpts{Index: 0, Width: 800}) {
		t.Error("LayoutKey should be deterministic")
	}

	ak1 := k.ArtifactKey("hash123", ArtifactKeyOpts{Format: "svg", T: 0.5})
	ak2 := k.ArtifactKey("hash123", ArtifactKeyOpts{Format: "svg", T: 0.5, Backward: true})
	if ak1 == ak2 {
		t.Error("Different ArtifactKeyOpts should produce different keys")
	}
}

func TestKindOf(t *testing.T) {
	k := NewDefaultKeyer()
	tests := []struct {
		key  string
		want string
	}{
		{k.TreesKey("a", TreesKeyOpts{}), KindTrees},
		{k.LayoutKey("a", LayoutKeyOpts{}), KindLayout},
		{NewScopedKeyer(k, "serve:").ArtifactKey("a", ArtifactKeyOpts{}), KindArtifact},
		{"plain", ""},
	}
	for _, tt := range tests {
		if got := kindOf(tt.key); got != tt.want {
			t.Errorf("kindOf(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestScopedKeyer(t *testing.T) {
	inner := NewDefaultKeyer()
	scoped := NewScopedKeyer(inner, "user:123:")

	key := scoped.LayoutKey("h", LayoutKeyOpts{Index: 2})
	if key != "user:123:"+inner.LayoutKey("h", LayoutKeyOpts{Index: 2}) {
		t.Errorf("ScopedKeyer LayoutKey unexpected: %s", key)
	}
	if !strings.HasPrefix(scoped.TreesKey("h", TreesKeyOpts{}), "user:123:trees:") {
		t.Error("ScopedKeyer TreesKey should be prefixed")
	}
}

func TestScopedKeyerNilInner(t *testing.T) {
	scoped := NewScopedKeyer(nil, "prefix:")
	key := scoped.ArtifactKey("h", ArtifactKeyOpts{Format: "svg"})
	if key != "prefix:"+NewDefaultKeyer().ArtifactKey("h", ArtifactKeyOpts{Format: "svg"}) {
		t.Errorf("Unexpected key with nil inner: %s", key)
	}
}

func TestFileCache(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(filepath.Join(t.TempDir(), "cache"))
	if err != nil {
		t.Fatal(err)
	}

	if _, hit, err := c.Get(ctx, "missing"); hit || err != nil {
		t.Errorf("Get(missing) = %v, %v", hit, err)
	}
	if err := c.Set(ctx, "a", []byte("one"), 0); err != nil {
		t.Fatal(err)
	}
	if err := c.Set(ctx, "b", []byte("two"), time.Hour); err != nil {
		t.Fatal(err)
	}
	data, hit, err := c.Get(ctx, "a")
	if err != nil || !hit || string(data) != "one" {
		t.Errorf("Get(a) = %q, %v, %v", data, hit, err)
	}

	if err := c.Delete(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if err := c.Delete(ctx, "a"); err != nil {
		t.Errorf("deleting a missing key: %v", err)
	}
	if _, hit, _ := c.Get(ctx, "a"); hit {
		t.Error("deleted key still present")
	}

	n, err := c.Clear(ctx)
	if err != nil || n != 1 {
		t.Errorf("Clear = %d, %v; want 1", n, err)
	}
	if _, hit, _ := c.Get(ctx, "b"); hit {
		t.Error("cleared key still present")
	}
}

func TestFileCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Set(ctx, "k", []byte("v"), time.Nanosecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(time.Millisecond)
	if _, hit, _ := c.Get(ctx, "k"); hit {
		t.Error("expired entry returned")
	}
	if _, err := os.Stat(c.path("k")); !os.IsNotExist(err) {
		t.Error("expired entry not removed")
	}
}

func TestFileCacheCorruptEntry(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	path := c.path("k")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, hit, err := c.Get(ctx, "k"); hit || err != nil {
		t.Errorf("corrupt entry: hit %v, err %v", hit, err)
	}
}

func TestFileCachePruneAndStats(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"layout:a", "layout:b"} {
		if err := c.Set(ctx, k, []byte("layout"), 0); err != nil {
			t.Fatal(err)
		}
	}
	if err := c.Set(ctx, "frame:old", []byte("frame"), time.Nanosecond); err != nil {
		t.Fatal(err)
	}
	corrupt := c.path("run:bad")
	if err := os.MkdirAll(filepath.Dir(corrupt), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(corrupt, []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(time.Millisecond)

	s, err := c.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if s.Entries != 4 || s.Expired != 2 || s.Bytes == 0 {
		t.Errorf("Stats = %+v, want 4 entries, 2 expired", s)
	}

	n, err := c.Prune(ctx)
	if err != nil || n != 2 {
		t.Errorf("Prune = %d, %v; want 2", n, err)
	}
	if _, hit, _ := c.Get(ctx, "layout:a"); !hit {
		t.Error("prune removed a live entry")
	}
	if s, _ := c.Stats(ctx); s.Entries != 2 || s.Expired != 0 {
		t.Errorf("Stats after prune = %+v", s)
	}
}

func TestFileCacheWalkCancelled(t *testing.T) {
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Set(context.Background(), "k", []byte("v"), 0); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Clear(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Clear on a cancelled context: err = %v", err)
	}
}

type countingHooks struct {
	observability.NoopCacheHooks
	hits, misses, sets map[string]int
}

func (h *countingHooks) OnCacheHit(_ context.Context, kind string)        { h.hits[kind]++ }
func (h *countingHooks) OnCacheMiss(_ context.Context, kind string)       { h.misses[kind]++ }
func (h *countingHooks) OnCacheSet(_ context.Context, kind string, _ int) { h.sets[kind]++ }

func TestObserved(t *testing.T) {
	h := &countingHooks{hits: map[string]int{}, misses: map[string]int{}, sets: map[string]int{}}
	observability.SetCacheHooks(h)
	t.Cleanup(observability.Reset)

	ctx := context.Background()
	fc, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	c := Observed(fc)
	if Observed(c) != c {
		t.Error("Observed should not wrap twice")
	}
	key := NewDefaultKeyer().LayoutKey("run", LayoutKeyOpts{})
	_, _, _ = c.Get(ctx, key)
	_ = c.Set(ctx, key, []byte("x"), 0)
	_, _, _ = c.Get(ctx, key)

	if h.misses[KindLayout] != 1 || h.sets[KindLayout] != 1 || h.hits[KindLayout] != 1 {
		t.Errorf("hits %v, misses %v, sets %v", h.hits, h.misses, h.sets)
	}
}

func TestRedisCacheUnreachable(t *testing.T) {
	_, err := NewRedisCache(context.Background(), RedisConfig{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
	})
	if !errors.Is(err, ErrNetwork) {
		t.Errorf("err = %v, want ErrNetwork", err)
	}
}

func TestClassify(t *testing.T) {
	if classify(nil) != nil {
		t.Error("nil should stay nil")
	}
	if !errors.Is(classify(redis.Nil), ErrCacheMiss) {
		t.Error("redis.Nil should be a cache miss")
	}
	if isTransient(classify(redis.Nil)) {
		t.Error("a miss is not transient")
	}
	err := classify(&net.OpError{Op: "dial", Err: errors.New("refused")})
	if !isTransient(err) || !errors.Is(err, ErrNetwork) {
		t.Errorf("network error classified as %v", err)
	}
}

func TestBackoff(t *testing.T) {
	errDown := transient{ErrNetwork}
	errBad := errors.New("wrong type")
	b := backoff{attempts: 3, delay: time.Millisecond}

	tests := []struct {
		name      string
		results   []error
		wantErr   error
		wantCalls int
	}{
		{"first try", []error{nil}, nil, 1},
		{"permanent error", []error{errBad}, errBad, 1},
		{"recovers", []error{errDown, nil}, nil, 2},
		{"gives up unwrapped", []error{errDown, errDown, errDown}, ErrNetwork, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := b.do(context.Background(), func() error {
				calls++
				return tt.results[calls-1]
			})
			if !errors.Is(err, tt.wantErr) || (tt.wantErr == nil && err != nil) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
			if isTransient(err) {
				t.Error("the final error should not stay marked transient")
			}
			if calls != tt.wantCalls {
				t.Errorf("%d calls, want %d", calls, tt.wantCalls)
			}
		})
	}
}

func TestBackoffContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := backoff{attempts: 3, delay: time.Hour}.do(ctx, func() error {
		return transient{ErrNetwork}
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

package animate

import (
	"sync"

	"github.com/matzehuels/phylomorph/pkg/diff"
	"github.com/matzehuels/phylomorph/pkg/polar"
	"github.com/matzehuels/phylomorph/pkg/tree"
	"github.com/matzehuels/phylomorph/pkg/tree/transform"
)

// Playback is the timeline state of a run.
type Playback struct {
	Playing bool `json:"playing"`
	// Progress is the position on the whole sequence in [0, 1].
	Progress  float64        `json:"progress"`
	Direction diff.Direction `json:"direction"`
}

// Store is the application state a [Controller] reads. Implementations must
// be safe for concurrent use.
type Store interface {
	Index() int
	Trees() []*tree.Node
	Transform() transform.Mode
	UniformScale() bool
	StrokeWidth() float64
	FontSizeEm() float64
	Playback() Playback

	// CacheEpoch changes whenever cached layouts must be dropped.
	CacheEpoch() uint64

	// SetPosition moves the timeline to progress and the current tree to
	// index.
	SetPosition(index int, progress float64)
	// SetPlaying starts or pauses playback in direction.
	SetPlaying(playing bool, direction diff.Direction)
	// InvalidateCaches bumps the cache epoch.
	InvalidateCaches()
}

// MemoryStore is an in-memory [Store].
type MemoryStore struct {
	mu          sync.RWMutex
	index       int
	trees       []*tree.Node
	mode        transform.Mode
	uniform     bool
	strokeWidth float64
	fontSizeEm  float64
	playback    Playback
	epoch       uint64
}

// NewMemoryStore returns a store holding trees at index 0.
func NewMemoryStore(trees []*tree.Node) *MemoryStore {
	return &MemoryStore{trees: trees, strokeWidth: 1.5, fontSizeEm: 1}
}

func (s *MemoryStore) Index() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index
}

func (s *MemoryStore) Trees() []*tree.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.trees
}

func (s *MemoryStore) Transform() transform.Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

func (s *MemoryStore) UniformScale() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.uniform
}

func (s *MemoryStore) StrokeWidth() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.strokeWidth
}

func (s *MemoryStore) FontSizeEm() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fontSizeEm
}

func (s *MemoryStore) Playback() Playback {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.playback
}

func (s *MemoryStore) CacheEpoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

// SetTrees replaces the run and rewinds to the first tree.
func (s *MemoryStore) SetTrees(trees []*tree.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trees = trees
	s.index = 0
	s.playback = Playback{}
	s.epoch++
}

func (s *MemoryStore) SetTransform(m transform.Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = m
}

func (s *MemoryStore) SetUniformScale(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uniform = on
}

func (s *MemoryStore) SetStrokeWidth(w float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.strokeWidth = w
}

func (s *MemoryStore) SetFontSizeEm(em float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fontSizeEm = em
}

// SetIndex jumps to tree i and puts the timeline on it.
func (s *MemoryStore) SetIndex(i int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index = s.clampIndex(i)
	s.playback.Progress = progressAt(s.index, len(s.trees))
}

func (s *MemoryStore) SetPosition(index int, progress float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index = s.clampIndex(index)
	s.playback.Progress = polar.Clamp01(progress)
}

func (s *MemoryStore) SetPlaying(playing bool, direction diff.Direction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playback.Playing = playing
	s.playback.Direction = direction
}

func (s *MemoryStore) InvalidateCaches() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
}

func (s *MemoryStore) clampIndex(i int) int {
	return max(0, min(i, len(s.trees)-1))
}

// progressAt is the timeline position of tree i in a run of n trees.
func progressAt(i, n int) float64 {
	if n < 2 {
		return 0
	}
	return float64(i) / float64(n-1)
}

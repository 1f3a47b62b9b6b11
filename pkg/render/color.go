package render

import (
	"sync"

	"github.com/matzehuels/phylomorph/pkg/layout"
)

// ColorManager answers colour and highlight questions for the renderers.
// Colours are opaque tokens (CSS colour strings in practice).
type ColorManager interface {
	NodeColor(n *layout.Node) string
	BranchColor(l *layout.Link) string
	IsActiveEdge(l *layout.Link) bool
	// IsMarked reports whether the node or link with this key is marked.
	IsMarked(key string) bool
	// Subscribe registers fn to run after every palette change and returns
	// a function that removes it.
	Subscribe(fn func()) (unsubscribe func())
}

// Default palette colours.
const (
	ColorBranch     = "#333333"
	ColorNode       = "#555555"
	ColorLeaf       = "#1f77b4"
	ColorActive     = "#d62728"
	ColorMarked     = "#ff7f0e"
	ColorExtension  = "#bbbbbb"
	ColorLabel      = "#222222"
	ColorBackground = "#ffffff"
)

var defaultPalette = NewPalette()

// Palette is the default [ColorManager]. Active edges and marked elements
// are selected by key; every mutation notifies subscribers.
type Palette struct {
	mu     sync.RWMutex
	branch string
	node   string
	leaf   string
	active map[string]bool
	marked map[string]bool

	subs   map[int]func()
	nextID int
}

// NewPalette returns a palette with the default colours and no selection.
func NewPalette() *Palette {
	return &Palette{
		branch: ColorBranch,
		node:   ColorNode,
		leaf:   ColorLeaf,
		active: make(map[string]bool),
		marked: make(map[string]bool),
		subs:   make(map[int]func()),
	}
}

func (p *Palette) NodeColor(n *layout.Node) string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if n != nil && p.marked[n.Key] {
		return ColorMarked
	}
	if n != nil && n.IsLeaf() {
		return p.leaf
	}
	return p.node
}

func (p *Palette) BranchColor(l *layout.Link) string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if l == nil {
		return p.branch
	}
	switch {
	case p.active[l.Key]:
		return ColorActive
	case p.marked[l.Key]:
		return ColorMarked
	}
	return p.branch
}

func (p *Palette) IsActiveEdge(l *layout.Link) bool {
	if l == nil {
		return false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.active[l.Key]
}

func (p *Palette) IsMarked(key string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.marked[key]
}

// SetColors replaces the base colours. Empty arguments keep the current
// value.
func (p *Palette) SetColors(branch, node, leaf string) {
	p.mu.Lock()
	if branch != "" {
		p.branch = branch
	}
	if node != "" {
		p.node = node
	}
	if leaf != "" {
		p.leaf = leaf
	}
	p.mu.Unlock()
	p.notify()
}

// SetActive replaces the set of active edge keys.
func (p *Palette) SetActive(keys ...string) {
	p.mu.Lock()
	p.active = toSet(keys)
	p.mu.Unlock()
	p.notify()
}

// SetMarked replaces the set of marked node and link keys.
func (p *Palette) SetMarked(keys ...string) {
	p.mu.Lock()
	p.marked = toSet(keys)
	p.mu.Unlock()
	p.notify()
}

func (p *Palette) Subscribe(fn func()) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.subs[id] = fn
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subs, id)
			p.mu.Unlock()
		})
	}
}

// notify runs subscribers outside the lock so they may query the palette.
func (p *Palette) notify() {
	p.mu.RLock()
	fns := make([]func(), 0, len(p.subs))
	for _, fn := range p.subs {
		fns = append(fns, fn)
	}
	p.mu.RUnlock()
	for _, fn := range fns {
		fn()
	}
}

func toSet(keys []string) map[string]bool {
	m := make(map[string]bool, len(keys))
	for _, k := range keys {
		m[k] = true
	}
	return m
}

package morph

import (
	"sync"

	"github.com/matzehuels/phylomorph/pkg/layout"
)

// Default offsets of the stable radii beyond the initial maximum leaf
// radius.
const (
	DefaultLabelOffset     = 30
	DefaultExtensionOffset = 20
)

// Radii supplies the run's stable outer radii.
type Radii interface {
	// Ensure fixes the initial maximum leaf radius from l unless it is
	// already set.
	Ensure(l *layout.Layout)
	LabelRadius() float64
	ExtensionRadius() float64
}

// StableRadii derives the label and extension radii from the maximum leaf
// radius of the first layout it sees. The engine hands it the target of a
// transition. The values hold until Reset.
type StableRadii struct {
	LabelOffset     float64
	ExtensionOffset float64

	mu      sync.RWMutex
	initial float64
	set     bool
}

// NewStableRadii returns radii with the default offsets.
func NewStableRadii() *StableRadii {
	return &StableRadii{LabelOffset: DefaultLabelOffset, ExtensionOffset: DefaultExtensionOffset}
}

func (r *StableRadii) Ensure(l *layout.Layout) {
	if l == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.set {
		r.initial = l.MaxRadius
		r.set = true
	}
}

// Initial returns the initial maximum leaf radius and whether it is set.
func (r *StableRadii) Initial() (float64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.initial, r.set
}

// Reset forgets the initial radius; the next Ensure sets it again.
func (r *StableRadii) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.initial, r.set = 0, false
}

func (r *StableRadii) LabelRadius() float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.initial + r.LabelOffset
}

func (r *StableRadii) ExtensionRadius() float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.initial + r.ExtensionOffset
}

package scene

import (
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
)

// glyphAtlas caches text advances measured with the fixed-width basic face.
// Unknown text is queued and measured on the next flush.
type glyphAtlas struct {
	mu      sync.Mutex
	face    font.Face
	advance map[string]float64
	pending map[string]bool
}

func newGlyphAtlas() *glyphAtlas {
	return &glyphAtlas{
		face:    basicfont.Face7x13,
		advance: make(map[string]float64),
		pending: make(map[string]bool),
	}
}

// faceHeight is the pixel height of basicfont.Face7x13.
const faceHeight = 13.0

// lookup returns the advance of text at the face's native size. ok is false
// when the text is not measured yet; it is then queued.
func (a *glyphAtlas) lookup(text string) (float64, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if w, ok := a.advance[text]; ok {
		return w, true
	}
	a.pending[text] = true
	return 0, false
}

// flush measures every queued text and reports how many were added.
func (a *glyphAtlas) flush() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := len(a.pending)
	for text := range a.pending {
		a.advance[text] = float64(font.MeasureString(a.face, text)) / 64
		delete(a.pending, text)
	}
	return n
}

// width returns the advance of text at the given font size, measuring it
// immediately when needed.
func (a *glyphAtlas) width(text string, size float64) float64 {
	w, ok := a.lookup(text)
	if !ok {
		a.flush()
		w, _ = a.lookup(text)
	}
	return w * size / faceHeight
}

func (a *glyphAtlas) pendingLen() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}

func (a *glyphAtlas) reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	clear(a.advance)
	clear(a.pending)
}

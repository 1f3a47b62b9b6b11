// Package transform rewrites branch lengths before layout.
//
// Transforms are pure: [Apply] returns a rewritten deep copy and never touches
// its input. A transform that produces a non-finite or non-positive length
// falls back to max(MinLength, original), so a layout never sees a degenerate
// edge because of the transform alone.
package transform

import (
	"math"
	"strings"

	perrors "github.com/matzehuels/phylomorph/pkg/errors"
	"github.com/matzehuels/phylomorph/pkg/tree"
)

// MinLength is the floor used for lengths a transform cannot represent.
const MinLength = 0.001

// Mode selects a branch-length transform.
type Mode int

const (
	// None leaves lengths untouched.
	None Mode = iota
	// Ignore sets every non-zero length to 1 and keeps zeros.
	Ignore
	// Log maps x to log10(x*1000+1)*0.1.
	Log
	Sqrt
	Power2
	// LinearScale doubles every length.
	LinearScale
)

var modeNames = [...]string{
	None:        "none",
	Ignore:      "ignore",
	Log:         "log",
	Sqrt:        "sqrt",
	Power2:      "power2",
	LinearScale: "linear-scale",
}

// Modes lists every mode in declaration order.
func Modes() []Mode {
	return []Mode{None, Ignore, Log, Sqrt, Power2, LinearScale}
}

func (m Mode) String() string {
	if m < 0 || int(m) >= len(modeNames) {
		return "unknown"
	}
	return modeNames[m]
}

// ParseMode parses a mode name. Matching is case-insensitive, and the empty
// string means None.
func ParseMode(s string) (Mode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return None, nil
	}
	for m, name := range modeNames {
		if name == s {
			return Mode(m), nil
		}
	}
	switch s {
	case "linear", "scale":
		return LinearScale, nil
	case "pow2", "square":
		return Power2, nil
	}
	return None, perrors.New(perrors.ErrCodeInvalidTransform, "unknown branch transform %q (want one of %s)", s, strings.Join(modeNames[:], ", "))
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Length transforms a single branch length.
func Length(x float64, m Mode) float64 {
	switch m {
	case None:
		return x
	case Ignore:
		if x == 0 {
			return 0
		}
		return checked(1, x)
	case Log:
		if x <= 0 {
			return MinLength
		}
		return checked(math.Log10(x*1000+1)*0.1, x)
	case Sqrt:
		return checked(math.Sqrt(x), x)
	case Power2:
		return checked(x*x, x)
	case LinearScale:
		return checked(x*2, x)
	default:
		return x
	}
}

func checked(v, orig float64) float64 {
	if !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0 {
		return v
	}
	if math.IsNaN(orig) || math.IsInf(orig, 0) {
		return MinLength
	}
	return math.Max(MinLength, orig)
}

// Apply returns a deep copy of root with every branch length transformed.
// The root's own length is forced to 0.
func Apply(root *tree.Node, m Mode) *tree.Node {
	if root == nil {
		return nil
	}
	out := root.Clone()
	out.Walk(func(n, parent *tree.Node) bool {
		if parent == nil {
			n.Length = 0
			return true
		}
		n.Length = Length(n.Length, m)
		return true
	})
	return out
}

// ApplyAll transforms every tree of a run.
func ApplyAll(trees []*tree.Node, m Mode) []*tree.Node {
	out := make([]*tree.Node, len(trees))
	for i, t := range trees {
		out[i] = Apply(t, m)
	}
	return out
}

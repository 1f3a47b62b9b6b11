// Package edgechange decides how an updating link must be redrawn between
// two layouts.
//
// A link whose endpoints only turned around the origin keeps its shape and
// can be rotated rigidly ([Reorder]). A link whose radii or path length
// changed needs its geometry rebuilt ([Retopo]). Anything below every
// tolerance is left alone ([None]).
package edgechange

import (
	"math"

	"github.com/matzehuels/phylomorph/pkg/layout"
	"github.com/matzehuels/phylomorph/pkg/polar"
)

// Class is the redraw strategy of one link.
type Class uint8

const (
	None Class = iota
	Reorder
	Retopo
)

func (c Class) String() string {
	switch c {
	case None:
		return "none"
	case Reorder:
		return "reorder"
	case Retopo:
		return "retopo"
	}
	return "unknown"
}

// Tolerances are the relative thresholds of the classifier. Radius and
// Length are relative changes, Angle is in radians.
type Tolerances struct {
	Radius float64 `json:"radius" toml:"radius" yaml:"radius"`
	Length float64 `json:"length" toml:"length" yaml:"length"`
	Angle  float64 `json:"angle" toml:"angle" yaml:"angle"`
}

// DefaultTolerances returns the standard thresholds.
func DefaultTolerances() Tolerances {
	return Tolerances{Radius: 0.01, Length: 0.01, Angle: 0.001}
}

// Delta holds the three measured changes of one link.
type Delta struct {
	Radius float64
	Length float64
	Angle  float64
}

// Measure computes the relative radius change, the relative path length
// change and the largest endpoint rotation between two versions of a link.
func Measure(from, to *layout.Link) Delta {
	dr := math.Max(
		math.Abs(to.Source.Radius-from.Source.Radius),
		math.Abs(to.Target.Radius-from.Target.Radius),
	)
	lf := polar.BranchLength(from.Source.Coord(), from.Target.Coord())
	lt := polar.BranchLength(to.Source.Coord(), to.Target.Coord())
	return Delta{
		Radius: ratio(dr, math.Max(from.Source.Radius, from.Target.Radius)),
		Length: ratio(math.Abs(lf-lt), lf),
		Angle: math.Max(
			math.Abs(polar.ShortestAngle(from.Source.Angle, to.Source.Angle)),
			math.Abs(polar.ShortestAngle(from.Target.Angle, to.Target.Angle)),
		),
	}
}

// ratio divides num by den; a zero denominator yields 0 for a zero numerator
// and +Inf otherwise.
func ratio(num, den float64) float64 {
	if den == 0 {
		if num == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return num / den
}

// Class maps the delta to a redraw strategy.
func (d Delta) Class(tol Tolerances) Class {
	switch {
	case d.Radius > tol.Radius || d.Length > tol.Length:
		return Retopo
	case d.Angle > tol.Angle:
		return Reorder
	}
	return None
}

// Classify measures and classifies one link.
func Classify(from, to *layout.Link, tol Tolerances) Class {
	return Measure(from, to).Class(tol)
}

// RotationDelta is the signed mean rotation of the link's endpoints, the
// angle by which a [Reorder] link turns over the whole transition.
func RotationDelta(from, to *layout.Link) float64 {
	return polar.MeanAngleDelta(from.Source.Angle, from.Target.Angle, to.Source.Angle, to.Target.Angle)
}

// Summary counts classes over a set of links.
type Summary struct {
	None    int `json:"none"`
	Reorder int `json:"reorder"`
	Retopo  int `json:"retopo"`
}

// Add counts one class.
func (s *Summary) Add(c Class) {
	switch c {
	case None:
		s.None++
	case Reorder:
		s.Reorder++
	case Retopo:
		s.Retopo++
	}
}

// Total returns the number of counted links.
func (s Summary) Total() int {
	return s.None + s.Reorder + s.Retopo
}

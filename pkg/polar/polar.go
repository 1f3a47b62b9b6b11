// Package polar is the geometry kit of the radial layout: angle arithmetic,
// polar interpolation, branch paths made of an arc and a radial line, and
// label placement.
//
// Angles are radians measured from the positive x axis towards the positive
// y axis. In screen space, where y grows downwards, angles therefore turn
// clockwise, which is also the orientation of SVG arc sweeps.
package polar

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Tau is a full turn.
const Tau = 2 * math.Pi

// StraightTolerance is the angular span below which a branch is drawn as a
// single straight segment instead of an arc plus line.
const StraightTolerance = 0.001

// Normalize maps a to [0, 2π).
func Normalize(a float64) float64 {
	a = math.Mod(a, Tau)
	if a < 0 {
		a += Tau
	}
	if a >= Tau {
		a = 0
	}
	return a
}

// ShortestAngle returns the signed rotation in (−π, π] that takes a to b.
func ShortestAngle(a, b float64) float64 {
	d := Normalize(b - a)
	if d > math.Pi {
		d -= Tau
	}
	return d
}

// Coord is a point in polar coordinates.
type Coord struct {
	Angle  float64 `json:"angle"`
	Radius float64 `json:"radius"`
}

// Point returns the cartesian position of c.
func (c Coord) Point() r2.Vec {
	return r2.Vec{X: c.Radius * math.Cos(c.Angle), Y: c.Radius * math.Sin(c.Angle)}
}

// FromPoint converts a cartesian point to polar coordinates, with the angle
// normalised to [0, 2π).
func FromPoint(p r2.Vec) Coord {
	return Coord{Angle: Normalize(math.Atan2(p.Y, p.X)), Radius: r2.Norm(p)}
}

// Interpolate blends two polar coordinates. The angle travels along the
// shortest arc and the radius linearly. The endpoints are returned exactly.
func Interpolate(from, to Coord, t float64) Coord {
	switch {
	case t <= 0:
		return from
	case t >= 1:
		return to
	}
	return Coord{
		Angle:  from.Angle + ShortestAngle(from.Angle, to.Angle)*t,
		Radius: from.Radius + (to.Radius-from.Radius)*t,
	}
}

// Lerp blends two scalars.
func Lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// Clamp01 pins t to [0, 1]. NaN maps to 0.
func Clamp01(t float64) float64 {
	switch {
	case math.IsNaN(t), t < 0:
		return 0
	case t > 1:
		return 1
	}
	return t
}

// MeanAngleDelta returns the mean of the signed shortest rotations between
// two pairs of angles.
func MeanAngleDelta(fromSource, fromTarget, toSource, toTarget float64) float64 {
	return (ShortestAngle(fromSource, toSource) + ShortestAngle(fromTarget, toTarget)) / 2
}

package polar

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Anchor is the text anchor of a placed label.
type Anchor string

const (
	AnchorStart Anchor = "start"
	AnchorEnd   Anchor = "end"
)

// Placement positions one leaf label.
type Placement struct {
	Pos      r2.Vec  `json:"pos"`
	Rotation float64 `json:"rotation"`
	Anchor   Anchor  `json:"anchor"`
}

// RotationDegrees returns the rotation in degrees.
func (p Placement) RotationDegrees() float64 {
	return p.Rotation * 180 / math.Pi
}

// PlaceLabel places a label at (radius, angle), rotated along the angle. On
// the left half of the circle the text is turned by a further π and anchored
// at its end so it never reads upside down.
func PlaceLabel(angle, radius float64) Placement {
	a := Normalize(angle)
	p := Placement{
		Pos:      Coord{Angle: a, Radius: radius}.Point(),
		Rotation: a,
		Anchor:   AnchorStart,
	}
	if a > math.Pi/2 && a < 3*math.Pi/2 {
		p.Rotation = a + math.Pi
		p.Anchor = AnchorEnd
	}
	return p
}

// Ray returns the segment along angle from radius r0 to r1, the shape of a
// leaf extension.
func Ray(angle, r0, r1 float64) (r2.Vec, r2.Vec) {
	return Coord{Angle: angle, Radius: r0}.Point(), Coord{Angle: angle, Radius: r1}.Point()
}

package polar

import (
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r2"
)

// SegmentKind tags a path segment.
type SegmentKind uint8

const (
	MoveTo SegmentKind = iota
	ArcTo
	LineTo
)

func (k SegmentKind) String() string {
	switch k {
	case MoveTo:
		return "move"
	case ArcTo:
		return "arc"
	case LineTo:
		return "line"
	}
	return "unknown"
}

// Segment is one drawing command. Arcs are centred on the origin: Radius,
// Start and Sweep describe the circle; To is the arc's end point.
type Segment struct {
	Kind   SegmentKind
	To     r2.Vec
	Radius float64
	Start  float64
	Sweep  float64
}

// Path is a branch outline: a move, an optional arc around the origin and a
// final line.
type Path struct {
	Segments []Segment
}

// Branch returns the static path of the edge from source to target: an arc
// at the source radius from the source angle to the target angle, then a
// radial line out to the target. Spans below [StraightTolerance] collapse to
// a straight segment.
func Branch(source, target Coord) Path {
	start := source.Point()
	end := target.Point()
	delta := ShortestAngle(source.Angle, target.Angle)
	if math.Abs(delta) < StraightTolerance {
		return Path{Segments: []Segment{
			{Kind: MoveTo, To: start},
			{Kind: LineTo, To: end},
		}}
	}
	arcEnd := Coord{Angle: source.Angle + delta, Radius: source.Radius}.Point()
	return Path{Segments: []Segment{
		{Kind: MoveTo, To: start},
		{Kind: ArcTo, To: arcEnd, Radius: source.Radius, Start: source.Angle, Sweep: delta},
		{Kind: LineTo, To: end},
	}}
}

// InterpolatedBranch returns the branch between the blended endpoints at t.
func InterpolatedBranch(fromSource, fromTarget, toSource, toTarget Coord, t float64) Path {
	return Branch(Interpolate(fromSource, toSource, t), Interpolate(fromTarget, toTarget, t))
}

// BranchLength is the analytic length of [Branch]: the arc at the source
// radius plus the line from the arc's end to the target.
func BranchLength(source, target Coord) float64 {
	delta := ShortestAngle(source.Angle, target.Angle)
	arcEnd := Coord{Angle: source.Angle + delta, Radius: source.Radius}.Point()
	return math.Abs(delta)*source.Radius + r2.Norm(r2.Sub(target.Point(), arcEnd))
}

// Length sums the lengths of the drawn segments.
func (p Path) Length() float64 {
	var total float64
	var cur r2.Vec
	for _, s := range p.Segments {
		switch s.Kind {
		case ArcTo:
			total += math.Abs(s.Sweep) * s.Radius
		case LineTo:
			total += r2.Norm(r2.Sub(s.To, cur))
		}
		cur = s.To
	}
	return total
}

// ArcSweep returns the signed sweep of the path's arc, or 0 for a straight
// path.
func (p Path) ArcSweep() float64 {
	for _, s := range p.Segments {
		if s.Kind == ArcTo {
			return s.Sweep
		}
	}
	return 0
}

// Rotate returns p rotated rigidly about the origin by angle.
func (p Path) Rotate(angle float64) Path {
	out := Path{Segments: make([]Segment, len(p.Segments))}
	for i, s := range p.Segments {
		s.To = r2.Rotate(s.To, angle, r2.Vec{})
		if s.Kind == ArcTo {
			s.Start += angle
		}
		out.Segments[i] = s
	}
	return out
}

// ArcSegments returns the number of polyline segments used to approximate an
// arc of the given sweep, at least one per π/64 of turn.
func ArcSegments(sweep float64) int {
	n := int(math.Ceil(math.Abs(sweep) / (math.Pi / 64)))
	return max(n, 1)
}

// Flatten approximates p by a polyline. Arcs are split into arcSegments
// pieces; a value below 1 uses [ArcSegments].
func (p Path) Flatten(arcSegments int) []r2.Vec {
	var pts []r2.Vec
	for _, s := range p.Segments {
		switch s.Kind {
		case MoveTo, LineTo:
			pts = append(pts, s.To)
		case ArcTo:
			n := arcSegments
			if n < 1 {
				n = ArcSegments(s.Sweep)
			}
			for i := 1; i <= n; i++ {
				a := s.Start + s.Sweep*float64(i)/float64(n)
				pts = append(pts, Coord{Angle: a, Radius: s.Radius}.Point())
			}
		}
	}
	return pts
}

// SVG returns the path as an SVG path data string. The large-arc flag is set
// when the sweep exceeds π and the sweep flag when the sweep is non-negative.
func (p Path) SVG() string {
	var b strings.Builder
	for i, s := range p.Segments {
		if i > 0 {
			b.WriteByte(' ')
		}
		switch s.Kind {
		case MoveTo:
			b.WriteString("M")
			writePoint(&b, s.To)
		case LineTo:
			b.WriteString("L")
			writePoint(&b, s.To)
		case ArcTo:
			large, sweep := 0, 0
			if math.Abs(s.Sweep) > math.Pi {
				large = 1
			}
			if s.Sweep >= 0 {
				sweep = 1
			}
			b.WriteString("A")
			b.WriteString(num(s.Radius))
			b.WriteByte(',')
			b.WriteString(num(s.Radius))
			b.WriteString(" 0 ")
			b.WriteString(strconv.Itoa(large))
			b.WriteByte(',')
			b.WriteString(strconv.Itoa(sweep))
			b.WriteByte(' ')
			writePoint(&b, s.To)
		}
	}
	return b.String()
}

func writePoint(b *strings.Builder, p r2.Vec) {
	b.WriteString(num(p.X))
	b.WriteByte(',')
	b.WriteString(num(p.Y))
}

// num formats v with at most three decimals and no negative zero.
func num(v float64) string {
	r := math.Round(v*1000) / 1000
	if r == 0 {
		r = 0
	}
	return strconv.FormatFloat(r, 'f', -1, 64)
}

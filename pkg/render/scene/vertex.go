package scene

import (
	"github.com/chewxy/math32"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/matzehuels/phylomorph/pkg/render"
)

// Vertices is a flat x,y float32 buffer.
type Vertices []float32

// VerticesOf packs cartesian points into a buffer.
func VerticesOf(pts []r2.Vec) Vertices {
	v := make(Vertices, 0, 2*len(pts))
	for _, p := range pts {
		v = append(v, float32(p.X), float32(p.Y))
	}
	return v
}

// Len returns the number of vertices.
func (v Vertices) Len() int { return len(v) / 2 }

// At returns vertex i.
func (v Vertices) At(i int) (x, y float32) { return v[2*i], v[2*i+1] }

// Rotate returns v rotated about the origin by angle radians.
func (v Vertices) Rotate(angle float32) Vertices {
	sin, cos := math32.Sincos(angle)
	out := make(Vertices, len(v))
	for i := 0; i+1 < len(v); i += 2 {
		x, y := v[i], v[i+1]
		out[i] = x*cos - y*sin
		out[i+1] = x*sin + y*cos
	}
	return out
}

// Resample returns a polyline with exactly n vertices spaced evenly by arc
// length along v. The first and last vertices are kept.
func (v Vertices) Resample(n int) Vertices {
	m := v.Len()
	if n < 2 || m == 0 || m == n {
		return append(Vertices(nil), v...)
	}
	if m == 1 {
		out := make(Vertices, 0, 2*n)
		for range n {
			out = append(out, v[0], v[1])
		}
		return out
	}

	cum := make([]float32, m)
	for i := 1; i < m; i++ {
		x0, y0 := v.At(i - 1)
		x1, y1 := v.At(i)
		cum[i] = cum[i-1] + math32.Hypot(x1-x0, y1-y0)
	}
	total := cum[m-1]

	out := make(Vertices, 0, 2*n)
	seg := 1
	for k := range n {
		if k == n-1 {
			x, y := v.At(m - 1)
			out = append(out, x, y)
			break
		}
		d := total * float32(k) / float32(n-1)
		for seg < m-1 && cum[seg] < d {
			seg++
		}
		x0, y0 := v.At(seg - 1)
		x1, y1 := v.At(seg)
		span := cum[seg] - cum[seg-1]
		var f float32
		if span > 0 {
			f = (d - cum[seg-1]) / span
		}
		out = append(out, x0+(x1-x0)*f, y0+(y1-y0)*f)
	}
	return out
}

// Points converts the buffer to frame points.
func (v Vertices) Points() []render.Point {
	pts := make([]render.Point, v.Len())
	for i := range pts {
		x, y := v.At(i)
		pts[i] = render.Point{float64(x), float64(y)}
	}
	return pts
}

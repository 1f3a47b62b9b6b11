package sink

import (
	"bytes"
	"image/color"
	"math"
	"strconv"
	"strings"

	"git.sr.ht/~sbinet/gg"
	"golang.org/x/image/colornames"
	"golang.org/x/image/font/basicfont"

	"github.com/matzehuels/phylomorph/pkg/render"
)

// basicFontSize is the pixel height of basicfont.Face7x13.
const basicFontSize = 13.0

// PNGOption configures [RenderPNG].
type PNGOption func(*pngRenderer)

type pngRenderer struct {
	scale      float64
	background string
	rsvg       bool
	svgOpts    []SVGOption
}

// WithScale sets the PNG scale factor (default: the frame's pixel ratio).
func WithScale(s float64) PNGOption { return func(r *pngRenderer) { r.scale = s } }

// WithPNGBackground overrides the frame's background colour.
func WithPNGBackground(c string) PNGOption { return func(r *pngRenderer) { r.background = c } }

// WithRSVG renders through SVG and rsvg-convert instead of drawing
// directly. The result has anti-aliased vector text.
func WithRSVG(opts ...SVGOption) PNGOption {
	return func(r *pngRenderer) { r.rsvg, r.svgOpts = true, opts }
}

// RenderPNG rasterises the frame.
func RenderPNG(f render.Frame, opts ...PNGOption) ([]byte, error) {
	r := pngRenderer{scale: f.PixelRatio}
	for _, opt := range opts {
		opt(&r)
	}
	if r.scale <= 0 {
		r.scale = 1
	}
	if r.rsvg {
		svgOpts := r.svgOpts
		if r.background != "" {
			svgOpts = append(svgOpts, WithBackground(r.background))
		}
		return render.ToPNG(RenderSVG(f, svgOpts...), r.scale)
	}

	w := max(1, int(math.Ceil(f.Width*r.scale)))
	h := max(1, int(math.Ceil(f.Height*r.scale)))
	dc := gg.NewContext(w, h)
	bg := f.Background
	if r.background != "" {
		bg = r.background
	}
	if bg != "" {
		dc.SetColor(parseColor(bg, 1))
		dc.Clear()
	}
	dc.Scale(r.scale, r.scale)
	dc.SetFontFace(basicfont.Face7x13)

	for _, l := range f.Links {
		if len(l.Points) < 2 {
			continue
		}
		dc.SetColor(parseColor(l.Stroke, l.Opacity))
		dc.SetLineWidth(l.Width)
		p := f.ToCanvas(l.Points[0])
		dc.MoveTo(p[0], p[1])
		for _, q := range l.Points[1:] {
			p = f.ToCanvas(q)
			dc.LineTo(p[0], p[1])
		}
		dc.Stroke()
	}

	for _, e := range f.Extensions {
		a, b := f.ToCanvas(e.From), f.ToCanvas(e.To)
		dc.SetColor(parseColor(e.Stroke, e.Opacity))
		dc.SetLineWidth(e.Width)
		dc.SetDash(e.Dash...)
		dc.DrawLine(a[0], a[1], b[0], b[1])
		dc.Stroke()
	}
	dc.SetDash()

	for _, n := range f.Nodes {
		p := f.ToCanvas(n.Pos)
		dc.SetColor(parseColor(n.Fill, n.Opacity))
		dc.DrawCircle(p[0], p[1], n.Radius)
		dc.Fill()
	}

	for _, l := range f.Labels {
		p := f.ToCanvas(l.Pos)
		ax := 0.0
		if l.Anchor == "end" {
			ax = 1
		}
		s := l.FontSize / basicFontSize
		dc.Push()
		dc.Translate(p[0], p[1])
		dc.Rotate(gg.Radians(l.Rotation))
		dc.Scale(s, s)
		dc.SetColor(parseColor(l.Fill, l.Opacity))
		dc.DrawStringAnchored(l.Text, 0, 0, ax, 0.35)
		dc.Pop()
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// parseColor decodes #rgb, #rrggbb or a CSS colour name with the given
// opacity. Unknown colours map to black.
func parseColor(s string, opacity float64) color.NRGBA {
	c := color.NRGBA{A: 0xff}
	s = strings.TrimSpace(strings.ToLower(s))
	if named, ok := colornames.Map[s]; ok {
		c = color.NRGBA{R: named.R, G: named.G, B: named.B, A: 0xff}
	} else if hex, ok := strings.CutPrefix(s, "#"); ok {
		if len(hex) == 3 {
			hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
		}
		if v, err := strconv.ParseUint(hex, 16, 32); err == nil && len(hex) == 6 {
			c.R, c.G, c.B = uint8(v>>16), uint8(v>>8), uint8(v)
		}
	}
	c.A = uint8(math.Round(255 * math.Max(0, math.Min(1, opacity))))
	return c
}

package sink

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	svg "github.com/ajstarks/svgo"

	"github.com/matzehuels/phylomorph/pkg/render"
)

// SVGOption configures [RenderSVG].
type SVGOption func(*svgRenderer)

type svgRenderer struct {
	title      string
	background string
	noLabels   bool
	noNodes    bool
}

// WithTitle adds a <title> element.
func WithTitle(t string) SVGOption { return func(r *svgRenderer) { r.title = t } }

// WithBackground overrides the frame's background colour. An empty string
// keeps the frame's value.
func WithBackground(c string) SVGOption { return func(r *svgRenderer) { r.background = c } }

// WithoutLabels omits leaf labels.
func WithoutLabels() SVGOption { return func(r *svgRenderer) { r.noLabels = true } }

// WithoutNodes omits internal node dots.
func WithoutNodes() SVGOption { return func(r *svgRenderer) { r.noNodes = true } }

// RenderSVG renders the frame as a standalone SVG document.
func RenderSVG(f render.Frame, opts ...SVGOption) []byte {
	r := svgRenderer{}
	for _, opt := range opts {
		opt(&r)
	}
	bg := f.Background
	if r.background != "" {
		bg = r.background
	}

	w, h := int(math.Round(f.Width)), int(math.Round(f.Height))
	var buf bytes.Buffer
	canvas := svg.New(&buf)
	canvas.Start(w, h)
	if r.title != "" {
		canvas.Title(r.title)
	}
	if bg != "" {
		canvas.Rect(0, 0, w, h, "fill:"+bg)
	}

	canvas.Gtransform(cameraTransform(f))
	canvas.Gid("links")
	for _, l := range f.Links {
		canvas.Path(l.D,
			fmt.Sprintf("fill:none;stroke:%s;stroke-width:%s;stroke-opacity:%s", l.Stroke, num(l.Width), num(l.Opacity)),
			`vector-effect="non-scaling-stroke"`,
			dataKey(l.Key),
		)
	}
	canvas.Gend()
	canvas.Gid("extensions")
	for _, e := range f.Extensions {
		d := "M" + pt(e.From) + " L" + pt(e.To)
		canvas.Path(d,
			fmt.Sprintf("fill:none;stroke:%s;stroke-width:%s;stroke-opacity:%s;stroke-dasharray:%s",
				e.Stroke, num(e.Width), num(e.Opacity), dash(e.Dash)),
			`vector-effect="non-scaling-stroke"`,
			dataKey(e.Key),
		)
	}
	canvas.Gend()
	canvas.Gend()

	if !r.noNodes {
		canvas.Gid("nodes")
		for _, n := range f.Nodes {
			p := f.ToCanvas(n.Pos)
			canvas.Circle(iround(p[0]), iround(p[1]), max(1, iround(n.Radius)),
				fmt.Sprintf("fill:%s;fill-opacity:%s", n.Fill, num(n.Opacity)),
				dataKey(n.Key),
			)
		}
		canvas.Gend()
	}

	if !r.noLabels {
		canvas.Gid("labels")
		for _, l := range f.Labels {
			p := f.ToCanvas(l.Pos)
			canvas.TranslateRotate(iround(p[0]), iround(p[1]), l.Rotation)
			weight := "normal"
			if l.Highlight {
				weight = "bold"
			}
			canvas.Text(0, 0, l.Text,
				fmt.Sprintf("fill:%s;fill-opacity:%s;font-size:%spx;font-family:sans-serif;font-weight:%s;text-anchor:%s;dominant-baseline:middle",
					l.Fill, num(l.Opacity), num(l.FontSize), weight, l.Anchor),
				dataKey(l.Key),
			)
			canvas.Gend()
		}
		canvas.Gend()
	}

	canvas.End()
	return buf.Bytes()
}

// cameraTransform maps layout space to canvas pixels.
func cameraTransform(f render.Frame) string {
	zoom := f.Zoom
	if zoom == 0 {
		zoom = 1
	}
	return fmt.Sprintf("translate(%s,%s) scale(%s) translate(%s,%s)",
		num(f.Width/2), num(f.Height/2), num(zoom), num(-f.Center[0]), num(-f.Center[1]))
}

func dataKey(key string) string {
	return `data-key="` + strings.ReplaceAll(key, ">", "&gt;") + `"`
}

func pt(p render.Point) string {
	return num(p[0]) + "," + num(p[1])
}

func dash(d []float64) string {
	if len(d) == 0 {
		return "none"
	}
	parts := make([]string, len(d))
	for i, v := range d {
		parts[i] = num(v)
	}
	return strings.Join(parts, ",")
}

func num(v float64) string {
	r := math.Round(v*1000) / 1000
	if r == 0 {
		r = 0
	}
	return strconv.FormatFloat(r, 'f', -1, 64)
}

func iround(v float64) int {
	return int(math.Round(v))
}

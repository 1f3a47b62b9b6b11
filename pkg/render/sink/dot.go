package sink

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/phylomorph/pkg/keys"
	"github.com/matzehuels/phylomorph/pkg/render"
)

// DOTOptions configures [ToDOT].
type DOTOptions struct {
	// Detailed labels internal nodes with their keys.
	Detailed bool
}

// ToDOT converts a frame to an undirected Graphviz graph. Every node is
// pinned at its canvas position, so neato reproduces the radial layout with
// straight edges.
func ToDOT(f render.Frame, opts DOTOptions) string {
	names := make(map[string]string, len(f.Labels))
	for _, l := range f.Labels {
		names[l.Key] = l.Text
	}

	var buf bytes.Buffer
	buf.WriteString("graph G {\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  splines=false;\n")
	buf.WriteString("  node [shape=point, width=0.06];\n")
	buf.WriteString("\n")

	for _, n := range f.Nodes {
		label := ""
		if opts.Detailed {
			label = n.Key
		}
		fmt.Fprintf(&buf, "  %q [pos=%q, color=%q, xlabel=%q];\n", n.Key, dotPos(f, n.Pos), n.Fill, label)
	}
	for _, e := range f.Extensions {
		name, ok := names[e.Key]
		if !ok {
			name = e.Key
		}
		fmt.Fprintf(&buf, "  %q [pos=%q, shape=plaintext, width=0, height=0, label=%q, fontsize=10];\n",
			e.Key, dotPos(f, e.From), name)
	}

	buf.WriteString("\n")
	for _, l := range f.Links {
		src, dst, ok := keys.SplitLink(l.Key)
		if !ok {
			continue
		}
		fmt.Fprintf(&buf, "  %q -- %q [color=%q, penwidth=%s];\n", src, dst, l.Stroke, num(l.Width))
	}

	buf.WriteString("}\n")
	return buf.String()
}

// dotPos returns a pinned Graphviz position in points with y pointing up.
func dotPos(f render.Frame, p render.Point) string {
	c := f.ToCanvas(p)
	return num(c[0]) + "," + num(f.Height-c[1]) + "!"
}

// RenderGraphviz lays out a DOT graph from [ToDOT] with neato and renders it
// to SVG.
func RenderGraphviz(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()
	gv.SetLayout(graphviz.NEATO)

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	newSvg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)

	return svgTagRe.ReplaceAll(svg, []byte(newSvg))
}

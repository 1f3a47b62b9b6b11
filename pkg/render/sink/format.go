package sink

import (
	"context"
	"slices"
	"strings"

	perrors "github.com/matzehuels/phylomorph/pkg/errors"
	"github.com/matzehuels/phylomorph/pkg/render"
)

// Format names an output format.
type Format string

const (
	FormatSVG      Format = "svg"
	FormatPNG      Format = "png"
	FormatJSON     Format = "json"
	FormatDOT      Format = "dot"
	FormatGraphviz Format = "graphviz"
	FormatPDF      Format = "pdf"
)

// Formats lists every supported format.
var Formats = []Format{FormatSVG, FormatPNG, FormatJSON, FormatDOT, FormatGraphviz, FormatPDF}

// ParseFormat parses a format name case-insensitively.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if slices.Contains(Formats, f) {
		return f, nil
	}
	return "", perrors.New(perrors.ErrCodeInvalidFormat, "unknown output format %q", s)
}

// Ext returns the file extension for f, without the dot.
func (f Format) Ext() string {
	if f == FormatGraphviz {
		return "gv.svg"
	}
	return string(f)
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	switch f {
	case FormatSVG, FormatGraphviz:
		return "image/svg+xml"
	case FormatPNG:
		return "image/png"
	case FormatJSON:
		return "application/json"
	case FormatPDF:
		return "application/pdf"
	}
	return "text/vnd.graphviz"
}

// Render encodes the frame in the given format with default options.
func Render(ctx context.Context, f render.Frame, format Format) ([]byte, error) {
	switch format {
	case FormatSVG:
		return RenderSVG(f), nil
	case FormatPNG:
		return RenderPNG(f)
	case FormatJSON:
		return RenderJSON(f, WithIndent())
	case FormatDOT:
		return []byte(ToDOT(f, DOTOptions{})), nil
	case FormatGraphviz:
		return RenderGraphviz(ctx, ToDOT(f, DOTOptions{}))
	case FormatPDF:
		svg := RenderSVG(f)
		return render.ToPDFContext(ctx, svg)
	}
	return nil, perrors.New(perrors.ErrCodeInvalidFormat, "unknown output format %q", format)
}

package sink

import (
	"github.com/goccy/go-json"

	"github.com/matzehuels/phylomorph/pkg/render"
)

// JSONOption configures [RenderJSON].
type JSONOption func(*jsonRenderer)

type jsonRenderer struct {
	indent bool
	meta   map[string]any
}

// WithIndent pretty-prints the output.
func WithIndent() JSONOption { return func(r *jsonRenderer) { r.indent = true } }

// WithMeta attaches free-form metadata (tree indices, t, direction).
func WithMeta(meta map[string]any) JSONOption { return func(r *jsonRenderer) { r.meta = meta } }

type jsonOutput struct {
	Meta map[string]any `json:"meta,omitempty"`
	render.Frame
}

// RenderJSON exports the frame's draw list.
func RenderJSON(f render.Frame, opts ...JSONOption) ([]byte, error) {
	r := jsonRenderer{}
	for _, opt := range opts {
		opt(&r)
	}
	out := jsonOutput{Meta: r.meta, Frame: f}
	if r.indent {
		return json.MarshalIndent(out, "", "  ")
	}
	return json.Marshal(out)
}

// DecodeJSON reads a frame written by [RenderJSON].
func DecodeJSON(data []byte) (render.Frame, map[string]any, error) {
	var in jsonOutput
	if err := json.Unmarshal(data, &in); err != nil {
		return render.Frame{}, nil, err
	}
	return in.Frame, in.Meta, nil
}

package server

import (
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/matzehuels/phylomorph/pkg/diff"
	perrors "github.com/matzehuels/phylomorph/pkg/errors"
	"github.com/matzehuels/phylomorph/pkg/pipeline"
	"github.com/matzehuels/phylomorph/pkg/render/sink"
)

// options overlays the request's query on the server defaults and
// validates the result for rendering. Runs are already loaded, so the
// load options never apply here.
func (s *Server) options(r *http.Request) (pipeline.Options, error) {
	opts := s.base
	opts.Formats = slices.Clone(opts.Formats)
	opts.Logger = loggerFrom(r.Context())
	if err := applyQuery(&opts, r.URL.Query()); err != nil {
		return opts, err
	}
	if err := opts.ValidateForRender(); err != nil {
		return opts, err
	}
	return opts, nil
}

func applyQuery(o *pipeline.Options, q url.Values) error {
	floats := []struct {
		name string
		dst  *float64
	}{
		{"width", &o.Width},
		{"height", &o.Height},
		{"margin", &o.Margin},
		{"stroke_width", &o.StrokeWidth},
		{"font_size", &o.FontSizeEm},
		{"label_offset", &o.LabelOffset},
		{"extension_offset", &o.ExtensionOffset},
	}
	for _, f := range floats {
		if v := q.Get(f.name); v != "" {
			x, err := floatParam(v, f.name)
			if err != nil {
				return err
			}
			*f.dst = x
		}
	}

	if v := q.Get("transform"); v != "" {
		o.Transform = v
	}
	if v := q.Get("uniform"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return perrors.New(perrors.ErrCodeInvalidInput, "uniform: %q is not a boolean", v)
		}
		o.UniformScale = b
	}
	if v := q.Get("background"); v != "" {
		o.Background = v
	}
	if v := q.Get("highlight"); v != "" {
		o.Highlight = splitList(v)
	}
	if v := q.Get("format"); v != "" {
		f, err := sink.ParseFormat(v)
		if err != nil {
			return err
		}
		o.Formats = []string{string(f)}
	}
	if len(o.Formats) == 0 {
		o.Formats = []string{string(sink.FormatSVG)}
	}
	o.Formats = o.Formats[:1]
	if v := q.Get("direction"); v != "" {
		d, err := diff.ParseDirection(v)
		if err != nil {
			return perrors.Wrap(perrors.ErrCodeInvalidInput, err, "direction")
		}
		o.Backward = d == diff.Backward
	}
	return nil
}

func intParam(v, name string) (int, error) {
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, perrors.New(perrors.ErrCodeInvalidInput, "%s: %q is not an integer", name, v)
	}
	return i, nil
}

func floatParam(v, name string) (float64, error) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, perrors.New(perrors.ErrCodeInvalidInput, "%s: %q is not a number", name, v)
	}
	return f, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func contentType(format string) string {
	f, err := sink.ParseFormat(format)
	if err != nil {
		return "application/octet-stream"
	}
	return f.ContentType()
}

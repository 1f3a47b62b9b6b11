package pipeline

import (
	"math"
	"testing"

	"github.com/matzehuels/phylomorph/pkg/cache"
	perrors "github.com/matzehuels/phylomorph/pkg/errors"
	"github.com/matzehuels/phylomorph/pkg/tree/transform"
)

func TestValidateFormat(t *testing.T) {
	tests := []struct {
		format  string
		wantErr bool
	}{
		{"svg", false},
		{"png", false},
		{"pdf", false},
		{"json", false},
		{"dot", false},
		{"graphviz", false},
		{"invalid", true},
		{"SVG", true}, // case-sensitive
		{"", true},
	}

	for _, tt := range tests {
		err := ValidateFormat(tt.format)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateFormat(%q) error = %v, wantErr %v", tt.format, err, tt.wantErr)
		}
		if err != nil && !perrors.Is(err, perrors.ErrCodeInvalidFormat) {
			t.Errorf("ValidateFormat(%q) code = %s", tt.format, perrors.GetCode(err))
		}
	}
}

func TestValidateFormats(t *testing.T) {
	if err := ValidateFormats([]string{"svg", "png"}); err != nil {
		t.Errorf("Valid formats should pass: %v", err)
	}

	if err := ValidateFormats([]string{"svg", "invalid"}); err == nil {
		t.Error("Invalid format should fail")
	}

	// Empty slice is valid
	if err := ValidateFormats(nil); err != nil {
		t.Errorf("Empty formats should pass: %v", err)
	}
}

func TestValidateEase(t *testing.T) {
	for _, name := range []string{"linear", "in-out-cubic", "out-cubic"} {
		if err := ValidateEase(name); err != nil {
			t.Errorf("ValidateEase(%q) = %v", name, err)
		}
	}
	if err := ValidateEase("bounce"); err == nil {
		t.Error("unknown ease should fail")
	}
}

func TestOptionsValidateForLoad(t *testing.T) {
	opts := Options{}
	if err := opts.ValidateForLoad(); err == nil {
		t.Error("Missing source should fail")
	}

	opts = Options{Data: []byte("(A,B);"), Format: "nexus"}
	if err := opts.ValidateForLoad(); !perrors.Is(err, perrors.ErrCodeInvalidFormat) {
		t.Errorf("unknown tree format: %v", err)
	}

	opts = Options{Source: "run.nwk"}
	if err := opts.ValidateForLoad(); err != nil {
		t.Errorf("Valid options should pass: %v", err)
	}
	if opts.Logger == nil {
		t.Error("Logger should default to a discard logger")
	}
}

func TestOptionsValidateForLayout(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"defaults", Options{}, false},
		{"transform", Options{Transform: "sqrt"}, false},
		{"bad transform", Options{Transform: "cube"}, true},
		{"negative canvas", Options{Width: -1}, true},
		{"margin too wide", Options{Width: 100, Height: 100, Margin: 100}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.ValidateForLayout()
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	opts := Options{Transform: "Log"}
	if err := opts.ValidateForLayout(); err != nil {
		t.Fatal(err)
	}
	if opts.Mode() != transform.Log {
		t.Errorf("Mode() = %v, want log", opts.Mode())
	}
}

func TestOptionsValidateForRender(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"defaults", Options{}, false},
		{"bad format", Options{Formats: []string{"gif"}}, true},
		{"bad ease", Options{Ease: "elastic"}, true},
		{"too many frames", Options{Frames: MaxFrames + 1}, true},
		{"negative frames", Options{Frames: -1}, true},
		{"zero font", Options{FontSizeEm: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.ValidateForRender()
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestOptionsValidateAndSetDefaultsIdempotent(t *testing.T) {
	opts := Options{Source: "run.nwk"}

	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatalf("First validation failed: %v", err)
	}
	width, formats, ease := opts.Width, opts.Formats, opts.Ease

	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatalf("Second validation failed: %v", err)
	}
	if opts.Width != width || len(opts.Formats) != len(formats) || opts.Ease != ease {
		t.Error("defaults changed on second call")
	}
}

func TestSetLayoutDefaults(t *testing.T) {
	opts := Options{}
	opts.SetLayoutDefaults()

	if opts.Width != DefaultWidth {
		t.Errorf("Width should be %f, got %f", DefaultWidth, opts.Width)
	}
	if opts.Height != DefaultHeight {
		t.Errorf("Height should be %f, got %f", DefaultHeight, opts.Height)
	}
	if opts.Margin != 40 || opts.LabelOffset != 30 || opts.ExtensionOffset != 20 {
		t.Errorf("margin %v, offsets %v/%v", opts.Margin, opts.LabelOffset, opts.ExtensionOffset)
	}
}

func TestSetRenderDefaults(t *testing.T) {
	opts := Options{}
	opts.SetRenderDefaults()

	if len(opts.Formats) != 1 || opts.Formats[0] != "svg" {
		t.Errorf("Formats should be [svg], got %v", opts.Formats)
	}
	if opts.StrokeWidth != DefaultStrokeWidth || opts.FontSizeEm != DefaultFontSizeEm || opts.Ease != DefaultEase {
		t.Errorf("render defaults: %+v", opts)
	}
}

func TestArtifactKeyOpts(t *testing.T) {
	opts := Options{}
	if err := opts.ValidateForRender(); err != nil {
		t.Fatal(err)
	}
	k := cache.NewDefaultKeyer()
	a := k.ArtifactKey("run", opts.ArtifactKeyOpts(0, 1, 0.5, "svg"))
	if b := k.ArtifactKey("run", opts.ArtifactKeyOpts(0, 1, 0.5, "png")); a == b {
		t.Error("format should be part of the key")
	}
	opts.Backward = true
	if b := k.ArtifactKey("run", opts.ArtifactKeyOpts(0, 1, 0.5, "svg")); a == b {
		t.Error("direction should be part of the key")
	}
}

func TestTimeline(t *testing.T) {
	tests := []struct {
		name     string
		n        int
		frames   int
		backward bool
		wantLen  int
	}{
		{"single tree", 1, 10, false, 1},
		{"two trees", 2, 4, false, 5},
		{"three trees", 3, 4, false, 9},
		{"backward", 3, 4, true, 9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			movie := Timeline(tt.n, tt.frames, "linear", tt.backward)
			if len(movie) != tt.wantLen {
				t.Fatalf("len = %d, want %d", len(movie), tt.wantLen)
			}
			if tt.n < 2 {
				return
			}
			first, last := movie[0], movie[len(movie)-1]
			if tt.backward {
				first, last = last, first
			}
			if first.From != 0 || first.T != 0 {
				t.Errorf("start = %+v", first)
			}
			if last.To != tt.n-1 || math.Abs(last.T-1) > 1e-9 {
				t.Errorf("end = %+v", last)
			}
		})
	}
}

func TestTimelineSamplesEachTransition(t *testing.T) {
	movie := Timeline(3, 4, "linear", false)
	wantT := []float64{0, 0.25, 0.5, 0.75, 0, 0.25, 0.5, 0.75, 1}
	wantFrom := []int{0, 0, 0, 0, 1, 1, 1, 1, 1}
	for i, mf := range movie {
		if mf.Seq != i || mf.From != wantFrom[i] || math.Abs(mf.T-wantT[i]) > 1e-9 {
			t.Errorf("frame %d = %+v, want from %d t %v", i, mf, wantFrom[i], wantT[i])
		}
	}
}

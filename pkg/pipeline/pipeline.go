// Package pipeline runs the load → layout → render stages for the CLI and
// the HTTP server.
//
// Every stage is cached through [cache.Cache]: parsed runs by source hash,
// layouts by run hash and layout inputs, rendered frames by run hash, frame
// position and format. A [Runner] holds the cache, the keyer and a logger
// and is safe for concurrent use.
//
// # Usage
//
//	runner := pipeline.NewRunner(c, nil, logger)
//	opts := pipeline.Options{Source: "run.nwk", Formats: []string{"svg"}, Frames: 24}
//	trees, _, err := runner.Load(ctx, opts)
//	if err != nil {
//	    return err
//	}
//	movie, err := runner.RenderMovie(ctx, trees, opts)
//
// [Runner.Execute] chains the three stages: a movie when Frames is set,
// otherwise the tree at Index.
package pipeline

import (
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/phylomorph/pkg/animate"
	"github.com/matzehuels/phylomorph/pkg/cache"
	"github.com/matzehuels/phylomorph/pkg/diff"
	perrors "github.com/matzehuels/phylomorph/pkg/errors"
	"github.com/matzehuels/phylomorph/pkg/layout"
	"github.com/matzehuels/phylomorph/pkg/morph"
	"github.com/matzehuels/phylomorph/pkg/render/sink"
	"github.com/matzehuels/phylomorph/pkg/tree"
	"github.com/matzehuels/phylomorph/pkg/tree/transform"
)

const (
	DefaultWidth       = 800.0
	DefaultHeight      = 800.0
	DefaultStrokeWidth = 1.5
	DefaultFontSizeEm  = 1.0
	DefaultEase        = "in-out-cubic"

	// DefaultFrames is the number of frames sampled per transition by
	// RenderMovie when Frames is unset.
	DefaultFrames = 24

	// MaxFrames bounds Frames.
	MaxFrames = 600
)

// Options configures every stage. The zero value plus a Source is valid.
type Options struct {
	// Load options
	Source    string   `json:"source,omitempty" toml:"source" yaml:"source"`
	Data      []byte   `json:"-" toml:"-" yaml:"-"`
	Format    string   `json:"format,omitempty" toml:"format" yaml:"format"`
	LeafOrder []string `json:"leaf_order,omitempty" toml:"leaf_order" yaml:"leaf_order"`
	Refresh   bool     `json:"refresh,omitempty" toml:"-" yaml:"-"`

	// Layout options
	Width           float64 `json:"width,omitempty" toml:"width" yaml:"width"`
	Height          float64 `json:"height,omitempty" toml:"height" yaml:"height"`
	Margin          float64 `json:"margin,omitempty" toml:"margin" yaml:"margin"`
	Transform       string  `json:"transform,omitempty" toml:"transform" yaml:"transform"`
	UniformScale    bool    `json:"uniform_scale,omitempty" toml:"uniform_scale" yaml:"uniform_scale"`
	LabelOffset     float64 `json:"label_offset,omitempty" toml:"label_offset" yaml:"label_offset"`
	ExtensionOffset float64 `json:"extension_offset,omitempty" toml:"extension_offset" yaml:"extension_offset"`

	// Render options
	Formats     []string `json:"formats,omitempty" toml:"formats" yaml:"formats"`
	StrokeWidth float64  `json:"stroke_width,omitempty" toml:"stroke_width" yaml:"stroke_width"`
	FontSizeEm  float64  `json:"font_size_em,omitempty" toml:"font_size_em" yaml:"font_size_em"`
	Background  string   `json:"background,omitempty" toml:"background" yaml:"background"`
	Highlight   []string `json:"highlight,omitempty" toml:"-" yaml:"-"`
	Index       int      `json:"index,omitempty" toml:"-" yaml:"-"`
	Frames      int      `json:"frames,omitempty" toml:"frames" yaml:"frames"`
	Ease        string   `json:"ease,omitempty" toml:"ease" yaml:"ease"`
	Backward    bool     `json:"backward,omitempty" toml:"-" yaml:"-"`
	Workers     int      `json:"workers,omitempty" toml:"workers" yaml:"workers"`

	// Runtime options (not serialized)
	Logger *log.Logger `json:"-" toml:"-" yaml:"-"`
	// Progress, when set, is called from encoder goroutines as movie
	// frames finish.
	Progress func(done, total int) `json:"-" toml:"-" yaml:"-"`

	mode      transform.Mode
	validated bool
}

// Result contains the outputs of [Runner.Execute].
type Result struct {
	Trees   []*tree.Node
	RunHash string
	Layouts []*layout.Layout

	// Artifacts holds the single rendered tree keyed by format when no
	// movie was requested.
	Artifacts map[string][]byte

	// Movie holds the frames when Frames was set.
	Movie []MovieFrame

	Stats     Stats
	CacheInfo CacheInfo
}

// Stats contains timing and size information.
type Stats struct {
	TreeCount  int
	LeafCount  int
	FrameCount int
	LoadTime   time.Duration
	LayoutTime time.Duration
	RenderTime time.Duration
}

// CacheInfo tracks which stages were served from the cache.
type CacheInfo struct {
	LoadHit   bool
	LayoutHit bool
	RenderHit bool
}

// MovieFrame is one sampled frame of a movie.
type MovieFrame struct {
	Seq       int               `json:"seq"`
	From      int               `json:"from"`
	To        int               `json:"to"`
	T         float64           `json:"t"`
	Artifacts map[string][]byte `json:"-"`
}

// ValidateFormat checks that a format is valid. Names are case-sensitive.
func ValidateFormat(format string) error {
	if !slices.Contains(sink.Formats, sink.Format(format)) {
		names := make([]string, len(sink.Formats))
		for i, f := range sink.Formats {
			names[i] = string(f)
		}
		return perrors.New(perrors.ErrCodeInvalidFormat,
			"invalid format: %q (must be one of: %s)", format, strings.Join(names, ", "))
	}
	return nil
}

// ValidateFormats checks that all formats are valid.
func ValidateFormats(formats []string) error {
	for _, f := range formats {
		if err := ValidateFormat(f); err != nil {
			return err
		}
	}
	return nil
}

// ValidateEase checks that an easing name is known.
func ValidateEase(name string) error {
	if _, ok := animate.Eases[name]; !ok {
		names := slices.Sorted(maps.Keys(animate.Eases))
		return perrors.New(perrors.ErrCodeInvalidInput,
			"invalid ease: %q (must be one of: %s)", name, strings.Join(names, ", "))
	}
	return nil
}

// ValidateAndSetDefaults validates every stage's options. It is idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if err := o.ValidateForLoad(); err != nil {
		return err
	}
	if err := o.ValidateForRender(); err != nil {
		return err
	}
	o.validated = true
	return nil
}

// ValidateForLoad checks the load options.
func (o *Options) ValidateForLoad() error {
	if o.Source == "" && len(o.Data) == 0 {
		return perrors.New(perrors.ErrCodeInvalidInput, "source or data is required")
	}
	switch tree.Format(o.Format) {
	case "", tree.FormatNewick, tree.FormatJSON:
	default:
		return perrors.New(perrors.ErrCodeInvalidFormat, "invalid tree format: %q (must be newick or json)", o.Format)
	}
	o.setLogger()
	return nil
}

// SetLayoutDefaults fills unset layout options.
func (o *Options) SetLayoutDefaults() {
	if o.Width == 0 {
		o.Width = DefaultWidth
	}
	if o.Height == 0 {
		o.Height = DefaultHeight
	}
	if o.Margin == 0 {
		o.Margin = layout.DefaultMargin
	}
	if o.LabelOffset == 0 {
		o.LabelOffset = morph.DefaultLabelOffset
	}
	if o.ExtensionOffset == 0 {
		o.ExtensionOffset = morph.DefaultExtensionOffset
	}
	o.setLogger()
}

// ValidateForLayout sets layout defaults and validates them.
func (o *Options) ValidateForLayout() error {
	o.SetLayoutDefaults()
	if o.Width <= 0 || o.Height <= 0 {
		return perrors.New(perrors.ErrCodeInvalidInput, "canvas %vx%v must be positive", o.Width, o.Height)
	}
	if o.Margin < 0 || o.Margin >= min(o.Width, o.Height) {
		return perrors.New(perrors.ErrCodeInvalidInput, "margin %v does not fit a %vx%v canvas", o.Margin, o.Width, o.Height)
	}
	mode, err := transform.ParseMode(o.Transform)
	if err != nil {
		return err
	}
	o.mode = mode
	return nil
}

// SetRenderDefaults fills unset render options.
func (o *Options) SetRenderDefaults() {
	if len(o.Formats) == 0 {
		o.Formats = []string{string(sink.FormatSVG)}
	}
	if o.StrokeWidth == 0 {
		o.StrokeWidth = DefaultStrokeWidth
	}
	if o.FontSizeEm == 0 {
		o.FontSizeEm = DefaultFontSizeEm
	}
	if o.Ease == "" {
		o.Ease = DefaultEase
	}
	o.setLogger()
}

// ValidateForRender sets layout and render defaults and validates them.
func (o *Options) ValidateForRender() error {
	if err := o.ValidateForLayout(); err != nil {
		return err
	}
	o.SetRenderDefaults()
	if err := ValidateFormats(o.Formats); err != nil {
		return err
	}
	if err := ValidateEase(o.Ease); err != nil {
		return err
	}
	if o.Frames < 0 || o.Frames > MaxFrames {
		return perrors.New(perrors.ErrCodeInvalidInput, "frames %d out of range [0, %d]", o.Frames, MaxFrames)
	}
	if o.StrokeWidth < 0 || o.FontSizeEm <= 0 {
		return perrors.New(perrors.ErrCodeInvalidInput, "stroke width and font size must be positive")
	}
	return nil
}

// Mode returns the parsed branch-length transform. Valid after
// ValidateForLayout.
func (o *Options) Mode() transform.Mode { return o.mode }

// Canvas returns the layout canvas.
func (o *Options) Canvas() layout.Canvas {
	return layout.Canvas{Width: o.Width, Height: o.Height, PixelRatio: 1}
}

// Direction returns the playback direction of a movie.
func (o *Options) Direction() diff.Direction {
	if o.Backward {
		return diff.Backward
	}
	return diff.Forward
}

// TreesKeyOpts returns cache key options for loading.
func (o *Options) TreesKeyOpts() cache.TreesKeyOpts {
	return cache.TreesKeyOpts{Format: o.Format, LeafOrder: o.LeafOrder}
}

// LayoutKeyOpts returns cache key options for the layout of tree i.
func (o *Options) LayoutKeyOpts(i int) cache.LayoutKeyOpts {
	return cache.LayoutKeyOpts{
		Index:     i,
		Width:     o.Width,
		Height:    o.Height,
		Margin:    o.Margin,
		Transform: o.mode.String(),
		Uniform:   o.UniformScale,
	}
}

// ArtifactKeyOpts returns cache key options for one rendered frame.
func (o *Options) ArtifactKeyOpts(from, to int, t float64, format string) cache.ArtifactKeyOpts {
	return cache.ArtifactKeyOpts{
		Layout:      o.LayoutKeyOpts(from),
		From:        from,
		To:          to,
		T:           t,
		Backward:    o.Backward,
		Format:      format,
		StrokeWidth: o.StrokeWidth,
		FontSizeEm:  o.FontSizeEm,
		Background:  o.Background,
		Offsets:     [2]float64{o.LabelOffset, o.ExtensionOffset},
		Highlight:   o.Highlight,
	}
}

func (o *Options) setLogger() {
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
}

package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	perrors "github.com/matzehuels/phylomorph/pkg/errors"
	"github.com/matzehuels/phylomorph/pkg/pipeline"
)

// Cache backends selectable in the config file.
const (
	CacheFile  = "file"
	CacheRedis = "redis"
	CacheNone  = "none"
)

const configFile = "config.toml"

// Config is the config file. Pipeline keys sit at the top level next to the
// cache and server settings:
//
//	width = 1000
//	transform = "log"
//	uniform_scale = true
//	formats = ["svg", "png"]
//	cache = "redis"
//	redis_addr = "localhost:6379"
type Config struct {
	pipeline.Options `yaml:",inline"`

	Cache     string `toml:"cache" yaml:"cache"`
	RedisAddr string `toml:"redis_addr" yaml:"redis_addr"`
	Addr      string `toml:"addr" yaml:"addr"`
}

// LoadConfig reads the config file at path. An empty path means the default
// location, where a missing file yields the zero Config.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	explicit := path != ""
	if !explicit {
		dir, err := configDir()
		if err != nil {
			return cfg, nil
		}
		path = filepath.Join(dir, configFile)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return cfg, nil
		}
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, perrors.Wrap(perrors.ErrCodeFileNotFound, err, "config file %s not found", path)
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, perrors.Wrap(perrors.ErrCodeInvalidInput, err, "parse %s", path)
		}
	default:
		md, err := toml.Decode(string(data), &cfg)
		if err != nil {
			return cfg, perrors.Wrap(perrors.ErrCodeInvalidInput, err, "parse %s", path)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return cfg, perrors.New(perrors.ErrCodeInvalidInput, "%s: unknown key %q", path, undecoded[0].String())
		}
	}
	return cfg, cfg.Validate()
}

// Validate checks the cache backend and any formats or ease named in the file.
func (c Config) Validate() error {
	if c.Cache != "" && !slices.Contains([]string{CacheFile, CacheRedis, CacheNone}, c.Cache) {
		return perrors.New(perrors.ErrCodeInvalidInput, "cache must be %s, %s or %s, got %q", CacheFile, CacheRedis, CacheNone, c.Cache)
	}
	if err := pipeline.ValidateFormats(c.Formats); err != nil {
		return err
	}
	if c.Ease != "" {
		return pipeline.ValidateEase(c.Ease)
	}
	return nil
}

// =============================================================================
// Flag Overlay
// =============================================================================

// optionFlag copies one flag's value from the parsed flags onto the options
// read from the config file.
type optionFlag struct {
	name  string
	apply func(dst, src *pipeline.Options)
}

var optionFlags = []optionFlag{
	{"input-format", func(d, s *pipeline.Options) { d.Format = s.Format }},
	{"leaf-order", func(d, s *pipeline.Options) { d.LeafOrder = s.LeafOrder }},
	{"width", func(d, s *pipeline.Options) { d.Width = s.Width }},
	{"height", func(d, s *pipeline.Options) { d.Height = s.Height }},
	{"margin", func(d, s *pipeline.Options) { d.Margin = s.Margin }},
	{"transform", func(d, s *pipeline.Options) { d.Transform = s.Transform }},
	{"uniform-scale", func(d, s *pipeline.Options) { d.UniformScale = s.UniformScale }},
	{"label-offset", func(d, s *pipeline.Options) { d.LabelOffset = s.LabelOffset }},
	{"extension-offset", func(d, s *pipeline.Options) { d.ExtensionOffset = s.ExtensionOffset }},
	{"format", func(d, s *pipeline.Options) { d.Formats = s.Formats }},
	{"stroke-width", func(d, s *pipeline.Options) { d.StrokeWidth = s.StrokeWidth }},
	{"font-size", func(d, s *pipeline.Options) { d.FontSizeEm = s.FontSizeEm }},
	{"background", func(d, s *pipeline.Options) { d.Background = s.Background }},
	{"frames", func(d, s *pipeline.Options) { d.Frames = s.Frames }},
	{"ease", func(d, s *pipeline.Options) { d.Ease = s.Ease }},
	{"workers", func(d, s *pipeline.Options) { d.Workers = s.Workers }},
}

// options starts from the config file and overlays every flag the user set.
func (c *CLI) options(cmd *cobra.Command, flags pipeline.Options) pipeline.Options {
	opts := c.config.Options
	opts.LeafOrder = slices.Clone(opts.LeafOrder)
	opts.Formats = slices.Clone(opts.Formats)
	for _, f := range optionFlags {
		if cmd.Flags().Changed(f.name) {
			f.apply(&opts, &flags)
		}
	}
	opts.Logger = c.Logger
	return opts
}

// addLoadFlags registers the tree input flags.
func addLoadFlags(cmd *cobra.Command, o *pipeline.Options, leafOrder *string) {
	cmd.Flags().StringVar(&o.Format, "input-format", "", "input format: newick, json (default: detect)")
	cmd.Flags().StringVar(leafOrder, "leaf-order", "", "comma-separated leaf order for split assignment (default: sorted names of the first tree)")
}

// addLayoutFlags registers the layout flags with pipeline defaults.
func addLayoutFlags(cmd *cobra.Command, o *pipeline.Options) {
	cmd.Flags().Float64Var(&o.Width, "width", pipeline.DefaultWidth, "canvas width")
	cmd.Flags().Float64Var(&o.Height, "height", pipeline.DefaultHeight, "canvas height")
	cmd.Flags().Float64Var(&o.Margin, "margin", 0, "canvas margin (default 40)")
	cmd.Flags().StringVar(&o.Transform, "transform", "", "branch-length transform: "+strings.Join(transformNames(), ", "))
	cmd.Flags().BoolVar(&o.UniformScale, "uniform-scale", false, "scale every tree against the run's largest tree")
	cmd.Flags().Float64Var(&o.LabelOffset, "label-offset", 0, "label distance beyond the outermost leaf (default 30)")
	cmd.Flags().Float64Var(&o.ExtensionOffset, "extension-offset", 0, "extension distance beyond the outermost leaf (default 20)")
}

// addRenderFlags registers the style and output format flags.
func addRenderFlags(cmd *cobra.Command, o *pipeline.Options, formats *string) {
	cmd.Flags().StringVarP(formats, "format", "f", "", "output format(s): svg (default), png, json, dot, graphviz, pdf (comma-separated)")
	cmd.Flags().Float64Var(&o.StrokeWidth, "stroke-width", pipeline.DefaultStrokeWidth, "branch stroke width")
	cmd.Flags().Float64Var(&o.FontSizeEm, "font-size", pipeline.DefaultFontSizeEm, "label font size in em")
	cmd.Flags().StringVar(&o.Background, "background", "", "background colour (default white)")
}

// configCommand creates the config inspection command.
func (c *CLI) configCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return toml.NewEncoder(cmd.OutOrStdout()).Encode(c.config)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the default config file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := configDir()
			if err != nil {
				return fmt.Errorf("get config dir: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), filepath.Join(dir, configFile))
			return nil
		},
	})

	return cmd
}

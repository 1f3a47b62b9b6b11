package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/phylomorph/pkg/pipeline"
)

// frameFlags selects what the render command draws.
type frameFlags struct {
	from, to int
	t        float64
}

// renderCommand creates the render command for drawing one tree or one
// interpolated frame.
func (c *CLI) renderCommand() *cobra.Command {
	var (
		output     string
		noCache    bool
		watch      bool
		leafOrder  string
		formatsStr string
		highlight  string
		frame      frameFlags
	)
	flags := pipeline.Options{}

	cmd := &cobra.Command{
		Use:   "render [trees]",
		Short: "Render one tree or one interpolated frame",
		Long: `Render one tree or one interpolated frame.

Without --t the tree at --index is drawn. With --t the frame at position t
of the transition from --from to --to is drawn instead: t = 0 is the source
tree, t = 1 the target. Output goes to one file per format.

Use --watch to re-render whenever the input file changes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.Formats = parseFormats(formatsStr)
			flags.LeafOrder = parseList(leafOrder)
			opts := c.options(cmd, flags)
			opts.Source = args[0]
			opts.Index = flags.Index
			opts.Highlight = parseList(highlight)
			if err := opts.ValidateAndSetDefaults(); err != nil {
				return err
			}
			interpolated := cmd.Flags().Changed("t")
			if interpolated && !cmd.Flags().Changed("to") {
				frame.to = frame.from + 1
			}

			render := func(ctx context.Context) error {
				return c.runRender(ctx, opts, output, interpolated, frame, noCache)
			}
			if watch {
				return watchFile(cmd.Context(), opts.Source, render)
			}
			return render(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output base path (default: <input>)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "re-render when the input changes")
	cmd.Flags().IntVarP(&flags.Index, "index", "i", 0, "tree to draw")
	cmd.Flags().IntVar(&frame.from, "from", 0, "source tree of the transition")
	cmd.Flags().IntVar(&frame.to, "to", 1, "target tree of the transition")
	cmd.Flags().Float64Var(&frame.t, "t", 0, "position on the transition in [0, 1]")
	cmd.Flags().StringVar(&highlight, "highlight", "", "comma-separated leaf names to highlight")
	addLoadFlags(cmd, &flags, &leafOrder)
	addLayoutFlags(cmd, &flags)
	addRenderFlags(cmd, &flags, &formatsStr)

	return cmd
}

// runRender loads the trees and writes the requested frame in every format.
func (c *CLI) runRender(ctx context.Context, opts pipeline.Options, output string, interpolated bool, frame frameFlags, noCache bool) error {
	index := opts.Index
	if interpolated {
		opts.Index = 0
	}

	runner, err := c.newRunner(ctx, noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	prog := newProgress(c.Logger)
	trees, loadHit, err := runner.Load(ctx, opts)
	if err != nil {
		return fmt.Errorf("load %s: %w", opts.Source, err)
	}
	prog.stage("load", "trees", len(trees), "cached", loadHit)

	spinner := newSpinner(ctx, "Rendering...")
	spinner.Start()

	var (
		artifacts map[string][]byte
		cacheHit  bool
		suffix    string
	)
	if interpolated {
		artifacts, err = runner.RenderFrame(ctx, trees, frame.from, frame.to, frame.t, opts)
		suffix = fmt.Sprintf("_%d-%d_%03.0f", frame.from, frame.to, frame.t*100)
	} else {
		artifacts, cacheHit, err = runner.RenderTreeWithCacheInfo(ctx, trees, index, opts)
		if len(trees) > 1 {
			suffix = fmt.Sprintf("_%d", index)
		}
	}
	if err != nil {
		spinner.StopWithError("Render failed")
		return fmt.Errorf("render: %w", err)
	}
	spinner.Stop()
	prog.stage("render", "formats", len(artifacts), "cached", cacheHit)

	if ctx.Err() != nil {
		return ctx.Err()
	}

	base := basePath(output, opts.Source)
	if output == "" {
		base += suffix
	}
	paths, err := writeArtifacts(base, opts.Formats, artifacts)
	if err != nil {
		return err
	}

	prog.done("Rendered " + opts.Source)
	printSuccess("Render complete")
	for _, p := range paths {
		printFile(p)
	}
	printStats(runStats{trees: len(trees), leaves: len(trees[0].Leaves()), cached: loadHit && cacheHit})

	return nil
}

package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/phylomorph/pkg/pipeline"
)

// movieCommand creates the movie command for rendering the whole morph
// sequence as numbered frames.
func (c *CLI) movieCommand() *cobra.Command {
	var (
		output     string
		noCache    bool
		watch      bool
		leafOrder  string
		formatsStr string
	)
	flags := pipeline.Options{}

	cmd := &cobra.Command{
		Use:   "movie [trees]",
		Short: "Render the morph through every tree as numbered frames",
		Long: `Render the morph through every tree as numbered frames.

Each transition between consecutive trees is sampled --frames times with the
chosen easing, and the final tree is appended, so a run of n trees yields
(n-1)*frames+1 files named frame_0000.svg, frame_0001.svg, ... in the output
directory. Use --backward to play the run from the last tree to the first.

Frames are rendered in order on one scene and encoded in parallel.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.Formats = parseFormats(formatsStr)
			flags.LeafOrder = parseList(leafOrder)
			opts := c.options(cmd, flags)
			opts.Source = args[0]
			opts.Backward = flags.Backward
			if opts.Frames == 0 {
				opts.Frames = pipeline.DefaultFrames
			}
			if err := opts.ValidateAndSetDefaults(); err != nil {
				return err
			}
			if output == "" {
				output = basePath("", opts.Source) + "_frames"
			}

			render := func(ctx context.Context) error {
				return c.runMovie(ctx, opts, output, noCache)
			}
			if watch {
				return watchFile(cmd.Context(), opts.Source, render)
			}
			return render(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output directory (default: <input>_frames)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "re-render when the input changes")
	cmd.Flags().IntVar(&flags.Frames, "frames", pipeline.DefaultFrames, "frames per transition")
	cmd.Flags().StringVar(&flags.Ease, "ease", pipeline.DefaultEase, "easing: "+strings.Join(easeNames(), ", "))
	cmd.Flags().BoolVar(&flags.Backward, "backward", false, "play from the last tree to the first")
	cmd.Flags().IntVar(&flags.Workers, "workers", 0, "parallel encoders (default: GOMAXPROCS)")
	addLoadFlags(cmd, &flags, &leafOrder)
	addLayoutFlags(cmd, &flags)
	addRenderFlags(cmd, &flags, &formatsStr)

	return cmd
}

// runMovie renders the movie and writes every frame.
func (c *CLI) runMovie(ctx context.Context, opts pipeline.Options, dir string, noCache bool) error {
	prog := newProgress(c.Logger)

	runner, err := c.newRunner(ctx, noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	trees, _, err := runner.Load(ctx, opts)
	if err != nil {
		return fmt.Errorf("load %s: %w", opts.Source, err)
	}
	prog.stage("load", "trees", len(trees))

	total := len(pipeline.Timeline(len(trees), opts.Frames, opts.Ease, opts.Backward))
	spinner := newSpinner(ctx, "Rendering frames")
	spinner.Progress(0, total)
	spinner.Start()

	opts.Progress = spinner.Progress
	start := time.Now()
	movie, err := runner.RenderMovie(ctx, trees, opts)
	if err != nil {
		spinner.StopWithError("Movie failed")
		return fmt.Errorf("render movie: %w", err)
	}
	spinner.Stop()
	prog.stage("render", "frames", len(movie))

	if ctx.Err() != nil {
		return ctx.Err()
	}

	width := max(4, len(fmt.Sprint(len(movie)-1)))
	for _, f := range movie {
		base := filepath.Join(dir, fmt.Sprintf("frame_%0*d", width, f.Seq))
		if _, err := writeArtifacts(base, opts.Formats, f.Artifacts); err != nil {
			return err
		}
	}
	prog.done(fmt.Sprintf("Wrote %d frames", len(movie)))

	printSuccess("Movie complete")
	printFile(dir + string(filepath.Separator))
	printStats(runStats{trees: len(trees), leaves: len(trees[0].Leaves()), frames: len(movie)})
	printDetail("took %s", time.Since(start).Round(time.Millisecond))

	return nil
}

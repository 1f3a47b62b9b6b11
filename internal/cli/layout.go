package cli

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/matzehuels/phylomorph/pkg/pipeline"
)

// layoutCommand creates the layout command for computing radial layouts.
func (c *CLI) layoutCommand() *cobra.Command {
	var (
		output    string
		noCache   bool
		leafOrder string
		index     int
	)
	flags := pipeline.Options{}

	cmd := &cobra.Command{
		Use:   "layout [trees]",
		Short: "Compute radial layouts for a run of trees",
		Long: `Compute radial layouts for a run of trees.

The layout command reads a Newick or JSON file holding one or more trees and
writes their radial layouts as JSON: every node's angle, radius and cartesian
position plus the links between them. With --index only that tree is written,
otherwise the output is an array with one layout per tree.

Results are cached locally for faster subsequent runs.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.LeafOrder = parseList(leafOrder)
			opts := c.options(cmd, flags)
			opts.Source = args[0]
			if !cmd.Flags().Changed("index") {
				index = -1
			}
			return c.runLayout(cmd.Context(), opts, output, index, noCache)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: <input>.layout.json)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")
	cmd.Flags().IntVarP(&index, "index", "i", 0, "write only the tree at this index")
	addLoadFlags(cmd, &flags, &leafOrder)
	addLayoutFlags(cmd, &flags)

	return cmd
}

// runLayout loads the trees, computes the layouts, and writes output.
func (c *CLI) runLayout(ctx context.Context, opts pipeline.Options, output string, index int, noCache bool) error {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return err
	}
	runner, err := c.newRunner(ctx, noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	prog := newProgress(c.Logger)
	trees, _, err := runner.Load(ctx, opts)
	if err != nil {
		return fmt.Errorf("load %s: %w", opts.Source, err)
	}
	prog.stage("load", "trees", len(trees))

	spinner := newSpinner(ctx, "Computing layouts...")
	spinner.Start()

	var (
		payload  any
		cacheHit bool
	)
	if index >= 0 {
		payload, cacheHit, err = runner.Layout(ctx, trees, index, opts)
	} else {
		payload, cacheHit, err = runner.Layouts(ctx, trees, opts)
	}
	if err != nil {
		spinner.StopWithError("Layout failed")
		return fmt.Errorf("compute layout: %w", err)
	}
	spinner.Stop()
	prog.stage("layout", "cached", cacheHit)

	if ctx.Err() != nil {
		return ctx.Err()
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("encode layout: %w", err)
	}

	outputPath := output
	if outputPath == "" {
		outputPath = basePath("", opts.Source) + ".layout.json"
	}
	if err := writeFile(outputPath, data); err != nil {
		return err
	}

	printSuccess("Layout complete")
	printFile(outputPath)
	printStats(runStats{trees: len(trees), leaves: len(trees[0].Leaves()), cached: cacheHit})
	printNewline()
	printNextStep("Render", appName+" render "+opts.Source)

	return nil
}

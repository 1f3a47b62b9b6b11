package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/matzehuels/phylomorph/pkg/pipeline"
)

// diffCommand creates the diff command listing the change between
// consecutive trees.
func (c *CLI) diffCommand() *cobra.Command {
	var (
		noCache   bool
		asJSON    bool
		leafOrder string
	)
	flags := pipeline.Options{}

	cmd := &cobra.Command{
		Use:   "diff [trees]",
		Short: "Show the distances and link changes between consecutive trees",
		Long: `Show the distances and link changes between consecutive trees.

For every transition the table lists the Robinson-Foulds distance (absolute
and relative), the weighted Robinson-Foulds distance, the number of links
entering and exiting, and how the links present in both trees move: not at
all, rotated around the root (reorder) or reshaped (retopo).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.LeafOrder = parseList(leafOrder)
			opts := c.options(cmd, flags)
			opts.Source = args[0]
			if err := opts.ValidateAndSetDefaults(); err != nil {
				return err
			}
			return c.runDiff(cmd.Context(), opts, asJSON, noCache)
		},
	}

	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	addLoadFlags(cmd, &flags, &leafOrder)
	addLayoutFlags(cmd, &flags)

	return cmd
}

func (c *CLI) runDiff(ctx context.Context, opts pipeline.Options, asJSON, noCache bool) error {
	runner, err := c.newRunner(ctx, noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	trees, _, err := runner.Load(ctx, opts)
	if err != nil {
		return fmt.Errorf("load %s: %w", opts.Source, err)
	}
	transitions, err := runner.Transitions(ctx, trees, opts)
	if err != nil {
		return err
	}

	if asJSON {
		data, err := json.MarshalIndent(transitions, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, string(data))
		return nil
	}

	if len(transitions) == 0 {
		printInfo("Only one tree, nothing to compare")
		return nil
	}
	fmt.Fprintln(stdout, transitionTable(transitions))
	printStats(runStats{trees: len(trees), leaves: len(trees[0].Leaves())})
	return nil
}

// transitionTable renders transitions as a rounded lipgloss table.
func transitionTable(transitions []pipeline.Transition) string {
	rows := make([][]string, 0, len(transitions))
	for _, t := range transitions {
		rows = append(rows, []string{
			fmt.Sprintf("%d → %d", t.From, t.To),
			strconv.Itoa(t.RF),
			strconv.FormatFloat(t.RelativeRF, 'f', 3, 64),
			strconv.FormatFloat(t.WeightedRF, 'f', 3, 64),
			strconv.Itoa(t.Entered),
			strconv.Itoa(t.Exited),
			strconv.Itoa(t.Classes.None),
			strconv.Itoa(t.Classes.Reorder),
			strconv.Itoa(t.Classes.Retopo),
		})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorMuted).Bold(true).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)
	classes := []changeClass{classEnter, classExit, classStill, classReorder, classRetopo}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorFaint)).
		Headers("Step", "RF", "Rel RF", "wRF", "Enter", "Exit", "Still", "Reorder", "Retopo").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			switch {
			case col == 0:
				return cell.Foreground(colorAccent)
			case col == 1 && transitions[row].RF == 0:
				return cell.Foreground(colorFaint)
			case col == 1:
				return cell.Foreground(colorWarn)
			case col >= 4 && rows[row][col] == "0":
				return cell.Foreground(colorFaint)
			case col >= 4:
				return cell.Foreground(classes[col-4].color)
			}
			return cell.Foreground(colorText)
		}).
		Render()
}

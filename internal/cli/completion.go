package cli

import (
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/phylomorph/pkg/render/sink"
	"github.com/matzehuels/phylomorph/pkg/tree"
	"github.com/matzehuels/phylomorph/pkg/tree/transform"
)

var completionShells = map[string]func(*cobra.Command, io.Writer) error{
	"bash":       func(root *cobra.Command, w io.Writer) error { return root.GenBashCompletionV2(w, true) },
	"zsh":        func(root *cobra.Command, w io.Writer) error { return root.GenZshCompletion(w) },
	"fish":       func(root *cobra.Command, w io.Writer) error { return root.GenFishCompletion(w, true) },
	"powershell": func(root *cobra.Command, w io.Writer) error { return root.GenPowerShellCompletionWithDesc(w) },
}

func (c *CLI) completionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "completion bash|zsh|fish|powershell",
		Short: "Generate shell completion scripts",
		Long: `Print a completion script for the given shell. Besides commands and
flags it completes the values of --format, --transform, --ease and
--input-format.

  source <(phylomorph completion bash)
  phylomorph completion zsh > "${fpath[1]}/_phylomorph"
  phylomorph completion fish | source`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return completionShells[args[0]](cmd.Root(), cmd.OutOrStdout())
		},
	}
}

// flagValues lists the fixed choices of enumerated flags.
func flagValues() map[string][]string {
	formats := make([]string, len(sink.Formats))
	for i, f := range sink.Formats {
		formats[i] = string(f)
	}
	return map[string][]string{
		"format":       formats,
		"transform":    transformNames(),
		"ease":         easeNames(),
		"input-format": {string(tree.FormatNewick), string(tree.FormatJSON)},
	}
}

// registerValueCompletions attaches value completion to every enumerated
// flag found on root's subcommands.
func registerValueCompletions(root *cobra.Command) {
	values := flagValues()
	for _, cmd := range root.Commands() {
		for name, choices := range values {
			if cmd.Flags().Lookup(name) == nil {
				continue
			}
			_ = cmd.RegisterFlagCompletionFunc(name, completeList(choices, name == "format"))
		}
	}
}

// completeList completes one of choices. With multi set the flag takes a
// comma-separated list, so choices are offered after the last comma.
func completeList(choices []string, multi bool) cobra.CompletionFunc {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]cobra.Completion, cobra.ShellCompDirective) {
		prefix := ""
		if i := strings.LastIndex(toComplete, ","); multi && i >= 0 {
			prefix = toComplete[:i+1]
		}
		var out []cobra.Completion
		for _, c := range choices {
			if strings.HasPrefix(prefix+c, toComplete) {
				out = append(out, prefix+c)
			}
		}
		directive := cobra.ShellCompDirectiveNoFileComp
		if multi {
			directive |= cobra.ShellCompDirectiveNoSpace
		}
		return out, directive
	}
}

func transformNames() []string {
	modes := transform.Modes()
	names := make([]string, len(modes))
	for i, m := range modes {
		names[i] = m.String()
	}
	return names
}

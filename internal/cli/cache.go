package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/matzehuels/phylomorph/pkg/cache"
)

func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and trim the local cache of parsed runs, layouts and frames",
		Long: `The local cache lives in $PHYLOMORPH_CACHE_DIR, or under the XDG cache
directory. Redis-backed caches expire on their own and are not managed here.`,
	}
	cmd.AddCommand(c.cacheInfoCommand())
	cmd.AddCommand(c.cachePruneCommand())
	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())
	return cmd
}

// openLocalCache opens the cache directory without creating it. ok is
// false when nothing has been cached yet.
func openLocalCache() (fc *cache.FileCache, ok bool, err error) {
	dir, err := cacheDir()
	if err != nil {
		return nil, false, fmt.Errorf("get cache dir: %w", err)
	}
	if !dirExists(dir) {
		return nil, false, nil
	}
	fc, err = cache.NewFileCache(dir)
	return fc, err == nil, err
}

func (c *CLI) cacheInfoCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show the number and size of cached entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			fc, ok, err := openLocalCache()
			if err != nil {
				return err
			}
			var stats cache.Stats
			if ok {
				if stats, err = fc.Stats(cmd.Context()); err != nil {
					return err
				}
			}
			if asJSON {
				data, err := json.MarshalIndent(stats, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(stdout, string(data))
				return nil
			}
			dir, _ := cacheDir()
			printKeyValue("directory", dir)
			printKeyValue("entries", fmt.Sprint(stats.Entries))
			printKeyValue("size", byteSize(stats.Bytes))
			printKeyValue("expired", fmt.Sprint(stats.Expired))
			if stats.Expired > 0 {
				printNextStep("Remove expired entries", appName+" cache prune")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the statistics as JSON")
	return cmd
}

func (c *CLI) cachePruneCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Remove expired and unreadable entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return trimCache(cmd.Context(), "Pruned", (*cache.FileCache).Prune)
		},
	}
}

func (c *CLI) cacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			return trimCache(cmd.Context(), "Cleared", (*cache.FileCache).Clear)
		},
	}
}

func trimCache(ctx context.Context, verb string, trim func(*cache.FileCache, context.Context) (int, error)) error {
	fc, ok, err := openLocalCache()
	if err != nil {
		return err
	}
	if !ok {
		printInfo("Cache is empty")
		return nil
	}
	n, err := trim(fc, ctx)
	if err != nil {
		return fmt.Errorf("trim cache: %w", err)
	}
	printSuccess("%s %s", verb, plural(n, "entry"))
	printDetail("Directory: %s", fc.Dir())
	return nil
}

func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the cache directory path",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := cacheDir()
			if err != nil {
				return fmt.Errorf("get cache dir: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), dir)
			return nil
		},
	}
}

func dirExists(dir string) bool {
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}

// byteSize formats n with a binary unit.
func byteSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

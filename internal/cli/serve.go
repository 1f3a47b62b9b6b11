package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/phylomorph/internal/server"
	"github.com/matzehuels/phylomorph/pkg/cache"
	"github.com/matzehuels/phylomorph/pkg/observability"
	"github.com/matzehuels/phylomorph/pkg/pipeline"
)

const (
	defaultAddr     = "localhost:8080"
	shutdownTimeout = 10 * time.Second
)

// serveCommand creates the HTTP server command.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr      string
		redisAddr string
		scope     string
		noCache   bool
	)
	flags := pipeline.Options{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve layouts and frames over HTTP",
		Long: `Serve layouts and frames over HTTP.

POST a run of trees to /api/runs, then fetch its layouts, any tree or any
interpolated frame in every output format from /api/runs/{id}/...

With --redis the cache lives in Redis, so several instances behind a load
balancer share parsed runs, layouts and rendered frames. Give deployments
that share one cache but serve different defaults their own --scope.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := c.options(cmd, flags)
			if cmd.Flags().Changed("addr") || c.config.Addr == "" {
				c.config.Addr = addr
			}
			if redisAddr != "" {
				c.config.Cache, c.config.RedisAddr = CacheRedis, redisAddr
			}
			return c.runServe(cmd.Context(), opts, scope, noCache)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", defaultAddr, "listen address")
	cmd.Flags().StringVar(&redisAddr, "redis", "", "Redis address for a shared cache (host:port)")
	cmd.Flags().StringVar(&scope, "scope", "", "prefix for every cache key")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")
	addLayoutFlags(cmd, &flags)
	cmd.Flags().Float64Var(&flags.StrokeWidth, "stroke-width", pipeline.DefaultStrokeWidth, "default branch stroke width")
	cmd.Flags().Float64Var(&flags.FontSizeEm, "font-size", pipeline.DefaultFontSizeEm, "default label font size in em")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, opts pipeline.Options, scope string, noCache bool) error {
	runner, err := c.newRunner(ctx, noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()
	if scope != "" {
		runner.Keyer = cache.NewScopedKeyer(runner.Keyer, scope+":")
	}

	ln, err := net.Listen("tcp", c.config.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", c.config.Addr, err)
	}

	counters := observability.NewCounters()
	counters.Install()
	defer observability.Reset()

	srv := &http.Server{
		Handler:           server.New(runner, opts, c.Logger, server.WithStats(counters)).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	printSuccess("Listening")
	printKeyValue("address", StyleLink.Render("http://"+ln.Addr().String()))
	printKeyValue("cache", cacheLabel(c.config.Cache, noCache))
	if scope != "" {
		printKeyValue("scope", scope)
	}
	printNewline()
	printNextStep("Post a run", "curl --data-binary @trees.nwk http://"+ln.Addr().String()+"/api/runs")

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	c.Logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func cacheLabel(backend string, noCache bool) string {
	switch {
	case noCache || backend == CacheNone:
		return "disabled"
	case backend == "":
		return CacheFile
	}
	return backend
}

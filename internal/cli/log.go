// Package cli implements the phylomorph command-line interface.
//
// Commands read a run of phylogenetic trees (Newick or JSON) from a file,
// stdin ("-") or an http(s) URL and drive the pipeline. Results are cached
// under $PHYLOMORPH_CACHE_DIR or the XDG cache directory, or in Redis when
// the config asks for it.
//
// # Commands
//
//   - layout: radial layouts as JSON
//   - render: one tree or one interpolated frame
//   - movie: the whole morph as numbered frames
//   - diff: distances and link changes between consecutive trees
//   - play: interactive terminal scrubber
//   - serve: HTTP API
//   - cache, config, completion: housekeeping
//
// # Logging
//
// --verbose (-v) logs each pipeline stage with its duration; --quiet (-q)
// keeps only errors. Status lines go to stdout, logs to stderr.
package cli

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// newLogger creates a logger writing to w at level, with timestamps like
// "14:32:01.45".
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress times the stages of one command. Stage timings go to the debug
// log, the total to the info log. Not safe for concurrent use.
type progress struct {
	logger *log.Logger
	start  time.Time
	last   time.Time
}

func newProgress(l *log.Logger) *progress {
	now := time.Now()
	return &progress{logger: l, start: now, last: now}
}

// stage logs the time spent since the previous stage.
func (p *progress) stage(name string, keyvals ...any) {
	now := time.Now()
	kv := append([]any{"stage", name, "took", now.Sub(p.last).Round(time.Microsecond)}, keyvals...)
	p.logger.Debug("stage done", kv...)
	p.last = now
}

// done logs msg with the total elapsed time, e.g. "Wrote 49 frames (1.234s)".
func (p *progress) done(msg string) {
	p.logger.Infof("%s (%s)", msg, time.Since(p.start).Round(time.Millisecond))
}

type ctxKey int

const loggerKey ctxKey = 0

// withLogger attaches l to ctx for helpers that only see a context.
func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// loggerFromContext returns the logger attached by withLogger, or
// log.Default().
func loggerFromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
		return l
	}
	return log.Default()
}

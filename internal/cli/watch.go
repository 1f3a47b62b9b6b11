package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	perrors "github.com/matzehuels/phylomorph/pkg/errors"
	"github.com/matzehuels/phylomorph/pkg/source"
)

// watchDebounce coalesces the burst of events editors emit on save.
const watchDebounce = 150 * time.Millisecond

// watchFile runs fn once, then again after every change to path until ctx is
// cancelled. The parent directory is watched so atomic replaces are seen.
// Errors from fn are printed and do not stop the loop.
func watchFile(ctx context.Context, path string, fn func(context.Context) error) error {
	if path == source.Stdin || source.IsRemote(path) {
		return perrors.New(perrors.ErrCodeInvalidInput, "--watch needs a local file, not %s", path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	run := func() {
		if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
			printError("%v", err)
		}
		printDetail("Watching %s (ctrl+c to stop)", path)
	}
	run()

	timer := time.NewTimer(watchDebounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			printNewline()
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			loggerFromContext(ctx).Debug("input changed", "file", ev.Name, "op", ev.Op.String())
			timer.Reset(watchDebounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			printWarning("watch: %v", err)
		case <-timer.C:
			printNewline()
			printInfo("Change detected, re-rendering")
			run()
		}
	}
}

package assets

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDelay groups the bursts of events bundlers produce while writing
// a manifest.
const reloadDelay = 50 * time.Millisecond

// Watch reloads m whenever the file at path changes, until ctx is done.
// The directory is watched rather than the file so that atomic
// rename-into-place writes are seen. onReload, if non-nil, is called after
// each reload attempt.
func Watch(ctx context.Context, m *Manifest, path string, logger *slog.Logger, onReload func(error)) error {
	if logger == nil {
		logger = slog.Default().With("component", "assets")
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("assets: creating watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return fmt.Errorf("assets: watching %s: %w", path, err)
	}

	go func() {
		defer w.Close()

		target := filepath.Clean(path)
		timer := time.NewTimer(time.Hour)
		timer.Stop()
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return

			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
					timer.Reset(reloadDelay)
				}

			case <-timer.C:
				err := m.Reload(path)
				if err != nil {
					logger.Warn("manifest reload failed", "path", path, "error", err)
				} else {
					logger.Info("manifest reloaded", "path", path)
				}
				if onReload != nil {
					onReload(err)
				}

			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Warn("manifest watcher error", "error", err)
			}
		}
	}()
	return nil
}

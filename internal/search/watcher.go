package search

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDelay collapses the burst of events an editor produces when saving a file.
const reloadDelay = 200 * time.Millisecond

// WatchVocabulary reloads the vocabulary file into the engine whenever it changes, until ctx is
// cancelled. The directory of the file is watched so that files replaced by rename are noticed.
// A file that cannot be read or parsed, or that holds no terms, leaves the current vocabulary in
// place.
func WatchVocabulary(ctx context.Context, e *Engine, path string, logger *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	path = filepath.Clean(path)
	if err := w.Add(filepath.Dir(path)); err != nil {
		return err
	}
	logger.Info("vocabulary watcher: started", slog.String("path", path))

	var timer *time.Timer
	var reload <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("vocabulary watcher: stopped")
			return nil

		case <-reload:
			v, err := LoadVocabulary(path)
			if err != nil {
				logger.Warn("vocabulary watcher: reload failed", slog.String("error", err.Error()))
				continue
			}
			if v.IsEmpty() {
				logger.Warn("vocabulary watcher: empty vocabulary ignored", slog.String("path", path))
				continue
			}
			e.SetVocabulary(v)
			logger.Info("vocabulary watcher: reloaded",
				slog.Int("companies", len(v.Companies)),
				slog.Int("roles", len(v.Roles)),
				slog.Int("cities", len(v.Cities)))

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != path || ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDelay)
				reload = timer.C
			} else {
				timer.Reset(reloadDelay)
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("vocabulary watcher: error", slog.String("error", err.Error()))
		}
	}
}

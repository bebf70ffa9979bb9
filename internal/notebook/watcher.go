package notebook

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceWindow batches native change records so one external save (often
// several events: create, write, chmod) triggers at most one reload.
const debounceWindow = 200 * time.Millisecond

// Watch starts an fsnotify watcher on the notebook root and feeds batches of
// changed paths into the notebook's reconciliation until ctx is cancelled.
//
// New directories created at runtime are added to the watch list, since
// fsnotify watches are per-directory and not recursive. On platforms without
// native watch support the notebook's Reload remains callable on demand with
// identical semantics; this function simply returns the watcher error.
func Watch(ctx context.Context, nb *Notebook, root string, logger *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	var pending []string
	var flushTimer *time.Timer
	var flushCh <-chan time.Time

	scheduleFlush := func() {
		if flushTimer == nil {
			flushTimer = time.NewTimer(debounceWindow)
			flushCh = flushTimer.C
		} else {
			flushTimer.Reset(debounceWindow)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if flushTimer != nil {
				flushTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-flushCh:
			batch := pending
			pending = nil
			if n := nb.HandleChanges(batch); n > 0 {
				logger.Debug("watcher: external changes reconciled",
					slog.Int("relevant", n), slog.Int("batch", len(batch)))
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			// Watch newly created directories immediately so writes
			// into them are not missed while the batch settles.
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					}
				}
			}

			rel, relErr := filepath.Rel(root, ev.Name)
			if relErr != nil {
				continue
			}
			pending = append(pending, filepath.ToSlash(rel))
			scheduleFlush()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}

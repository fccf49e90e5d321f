// Package watch re-runs the sync when the download tree changes on
// disk. A user dragging files out of a board directory should see the
// deletion propagate without restarting the process.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/eerkela/pinsync/internal/collection"
)

const (
	// tickInterval is how often pending events are checked for the
	// quiet period having elapsed.
	tickInterval = 500 * time.Millisecond

	// quietPeriod is how long the tree must stay unchanged before a
	// re-sync fires. Batches a multi-file drag into one pass.
	quietPeriod = 2 * time.Second
)

// SyncFunc runs one full sync pass.
type SyncFunc func(ctx context.Context) error

// Watcher observes the download root and triggers a re-sync after each
// burst of filesystem changes settles.
type Watcher struct {
	root    string
	logger  *slog.Logger
	onSync  SyncFunc
	watcher *fsnotify.Watcher

	tick  time.Duration
	quiet time.Duration
}

func NewWatcher(root string, logger *slog.Logger, onSync SyncFunc) *Watcher {
	return &Watcher{
		root:   root,
		logger: logger,
		onSync: onSync,
		tick:   tickInterval,
		quiet:  quietPeriod,
	}
}

// Watch blocks until the context is cancelled. Directories are watched
// recursively; new directories are picked up as they appear.
func (w *Watcher) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}

	w.watcher = watcher
	defer watcher.Close()

	if err := w.addRecursive(w.root); err != nil {
		return fmt.Errorf("watching download root: %w", err)
	}

	w.logger.Info("watching for local changes", slog.String("dir", w.root))

	var (
		dirty     bool
		lastEvent time.Time
	)

	ticker := time.NewTicker(w.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("fsnotify events channel closed unexpectedly")
			}

			if w.shouldIgnore(event.Name) {
				continue
			}

			dirty = true
			lastEvent = time.Now()

			// Watch new directories as they appear. Lstat so a symlink
			// cannot pull in a tree outside the root.
			if event.Has(fsnotify.Create) {
				info, err := os.Lstat(event.Name)
				if err == nil && info.IsDir() && info.Mode()&os.ModeSymlink == 0 {
					_ = w.addRecursive(event.Name)
				}
			}

			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				_ = watcher.Remove(event.Name)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("fsnotify errors channel closed unexpectedly")
			}

			w.logger.Warn("watcher error", slog.String("error", err.Error()))

		case <-ticker.C:
			if !dirty || time.Since(lastEvent) < w.quiet {
				continue
			}

			dirty = false

			w.logger.Info("local changes settled, re-syncing")

			if err := w.onSync(ctx); err != nil {
				if ctx.Err() != nil {
					return err
				}

				w.logger.Warn("re-sync failed", slog.String("error", err.Error()))
			}
		}
	}
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !d.IsDir() {
			return nil
		}

		if collection.ReservedDirName(d.Name()) && path != dir {
			return filepath.SkipDir
		}

		if d.Type()&os.ModeSymlink != 0 {
			return filepath.SkipDir
		}

		return w.watcher.Add(path)
	})
}

// shouldIgnore filters out paths this system writes itself (manifests
// and their temp files) and anything inside a reserved directory;
// reacting to our own writes would re-sync forever.
func (w *Watcher) shouldIgnore(path string) bool {
	base := filepath.Base(path)

	if collection.ReservedFileName(base) || strings.HasSuffix(base, ".tmp") {
		return true
	}

	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return true
	}

	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if collection.ReservedDirName(part) {
			return true
		}
	}

	return false
}

package collection

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/eerkela/pinsync/internal/imagehash"
)

// reservedDirs are directory names never descended into during a scan:
// version control, caches, and credential/token stores colocated with
// the download root.
var reservedDirs = map[string]struct{}{
	".git":        {},
	".cache":      {},
	".pinsync":    {},
	"credentials": {},
	"tokens":      {},
}

// reservedFiles are file names never treated as items or orphans.
var reservedFiles = map[string]struct{}{
	"manifest.json": {},
	".env":          {},
	".gitignore":    {},
	"desktop.ini":   {},
	"pinsync.yaml":  {},
	"pinsync.yml":   {},
}

// ReservedDirName reports whether a directory name is excluded from
// scanning and watching.
func ReservedDirName(name string) bool {
	_, ok := reservedDirs[name]
	return ok
}

// ReservedFileName reports whether a file name is excluded from
// scanning and watching. Temp files left behind by a crashed atomic
// write count as reserved; classifying a stale manifest.json.tmp as an
// orphan would fire a remote delete on every pass.
func ReservedFileName(name string) bool {
	if strings.HasSuffix(name, ".tmp") {
		return true
	}

	_, ok := reservedFiles[name]

	return ok
}

// OrphanFunc is invoked for files with a non-image, non-reserved
// extension found during a scan. The argument is the filename stem,
// which for files this system wrote equals a remote item id.
type OrphanFunc func(ctx context.Context, id string)

// LocalStore scans container directories into LocalItem records. Scan
// results are cached per container; every mutation of a container's
// contents must invalidate its entry so a later read within the same
// pass sees the change. The cache is never shared across containers.
type LocalStore struct {
	root     string
	logger   *slog.Logger
	onOrphan OrphanFunc

	mu    sync.Mutex
	cache map[string][]LocalItem
}

// NewLocalStore creates a local store rooted at the download directory.
// onOrphan may be nil, in which case orphaned files are only logged.
func NewLocalStore(root string, logger *slog.Logger, onOrphan OrphanFunc) *LocalStore {
	return &LocalStore{
		root:     root,
		logger:   logger,
		onOrphan: onOrphan,
		cache:    make(map[string][]LocalItem),
	}
}

// SetOrphanFunc installs the orphan cleanup hook. Allows the store to be
// constructed before the remote side it reports orphans to.
func (s *LocalStore) SetOrphanFunc(fn OrphanFunc) {
	s.onOrphan = fn
}

// Scan returns one LocalItem per eligible image file in the container,
// ordered by id ascending. Board containers scan direct children only
// (section subtrees are separate containers); section containers walk
// recursively. A cached result is returned when the container has not
// been mutated since the last scan.
func (s *LocalStore) Scan(ctx context.Context, c *Container) ([]LocalItem, error) {
	s.mu.Lock()
	if cached, ok := s.cache[c.Path]; ok {
		s.mu.Unlock()
		return cached, nil
	}
	s.mu.Unlock()

	var (
		items []LocalItem
		err   error
	)

	if c.IsSection() {
		items, err = s.scanRecursive(ctx, c)
	} else {
		items, err = s.scanDirect(ctx, c)
	}

	if err != nil {
		return nil, err
	}

	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })

	s.mu.Lock()
	s.cache[c.Path] = items
	s.mu.Unlock()

	return items, nil
}

// Invalidate drops the cached scan for a container. Call after any
// mutation (download, delete) of that container's directory.
func (s *LocalStore) Invalidate(c *Container) {
	s.mu.Lock()
	delete(s.cache, c.Path)
	s.mu.Unlock()
}

// scanDirect lists a board container's direct children. Subdirectories
// are skipped entirely; sections are their own containers.
func (s *LocalStore) scanDirect(ctx context.Context, c *Container) ([]LocalItem, error) {
	entries, err := os.ReadDir(c.Path)
	if err != nil {
		return nil, fmt.Errorf("reading board directory %s: %w", c.Path, err)
	}

	var items []LocalItem

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if entry.IsDir() {
			continue
		}

		item, ok := s.examineFile(ctx, c, filepath.Join(c.Path, entry.Name()))
		if ok {
			items = append(items, item)
		}
	}

	return items, nil
}

// scanRecursive walks a section container's full subtree, pruning
// reserved directories.
func (s *LocalStore) scanRecursive(ctx context.Context, c *Container) ([]LocalItem, error) {
	var items []LocalItem

	err := filepath.WalkDir(c.Path, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}

		if d.IsDir() {
			if _, reserved := reservedDirs[d.Name()]; reserved {
				return filepath.SkipDir
			}

			return nil
		}

		item, ok := s.examineFile(ctx, c, path)
		if ok {
			items = append(items, item)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking section directory %s: %w", c.Path, err)
	}

	return items, nil
}

// examineFile classifies one file: reserved names are skipped, supported
// image files become LocalItems, and anything else is an orphan whose id
// is reported for best-effort remote cleanup. A file on the allow-list
// that fails to decode still becomes a LocalItem, just an unhashed one:
// the id is present on disk, so existence convergence must not treat it
// as missing and re-download it forever.
func (s *LocalStore) examineFile(ctx context.Context, c *Container, path string) (LocalItem, bool) {
	name := filepath.Base(path)
	if ReservedFileName(name) {
		return LocalItem{}, false
	}

	ext := filepath.Ext(name)
	if !SupportedExtension(ext) {
		s.logger.Info("orphaned file during scan",
			slog.String("path", path),
			slog.String("id", stem(name)),
		)

		if s.onOrphan != nil {
			s.onOrphan(ctx, stem(name))
		}

		return LocalItem{}, false
	}

	desc, err := imagehash.Describe(path)
	if err != nil {
		s.logger.Warn("undecodable image during scan, keeping without hash",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)

		return LocalItem{
			ID:      stem(name),
			Board:   c.Board,
			Section: c.Section,
			Path:    path,
		}, true
	}

	return LocalItem{
		ID:      stem(name),
		Board:   c.Board,
		Section: c.Section,
		Path:    path,
		Hash:    desc.Hash,
		Height:  desc.Height,
		Width:   desc.Width,
		Size:    desc.Height * desc.Width,
		Color:   desc.Color,
		Hashed:  true,
	}, true
}

// Remove deletes a local item's file and prunes now-empty parent
// directories, stopping before the container root. Invalidates the
// container's scan cache.
func (s *LocalStore) Remove(c *Container, item LocalItem) error {
	defer s.Invalidate(c)

	if err := os.Remove(item.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing %s: %w", item.Path, err)
	}

	// Walk upward removing empty directories until the container root
	// (exclusive) or the first non-empty directory.
	dir := filepath.Dir(item.Path)
	for dir != c.Path && strings.HasPrefix(dir, c.Path+string(os.PathSeparator)) {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			break
		}

		if err := os.Remove(dir); err != nil {
			break
		}

		dir = filepath.Dir(dir)
	}

	return nil
}

// Package manifest persists the per-container snapshot of local items as
// of the end of the last successful sync, and diffs it against the
// current scan to detect out-of-band local deletions.
package manifest

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/eerkela/pinsync/internal/collection"
)

// FileName is the manifest file stored inside each container directory.
const FileName = "manifest.json"

// manifestFilePerm is the permission mode for persisted manifest files.
const manifestFilePerm = fs.FileMode(0o644)

// Entry is one serialized local item. Section is nullable: board-level
// items carry null, section items carry the section name.
type Entry struct {
	ID      string     `json:"id"`
	Board   string     `json:"board"`
	Section *string    `json:"section"`
	Path    string     `json:"path"`
	Hash    uint64     `json:"hash"`
	Height  int        `json:"height"`
	Width   int        `json:"width"`
	Size    int        `json:"size"`
	Color   [3]float64 `json:"color"`
}

// Snapshot maps item id to its serialized form.
type Snapshot map[string]Entry

// EntryFromItem converts a scanned local item into its persisted form.
func EntryFromItem(it collection.LocalItem) Entry {
	e := Entry{
		ID:     it.ID,
		Board:  it.Board,
		Path:   it.Path,
		Hash:   it.Hash,
		Height: it.Height,
		Width:  it.Width,
		Size:   it.Size,
		Color:  it.Color,
	}

	if it.Section != "" {
		section := it.Section
		e.Section = &section
	}

	return e
}

// Manifest loads and persists per-container snapshots. Snapshots are
// cached per container: Load reads the file once, and Persist replaces
// the cached entry with the new baseline so a later pass in the same
// process (watch mode) diffs against what was last written rather than
// re-reading the file.
type Manifest struct {
	logger *slog.Logger

	mu        sync.Mutex
	snapshots map[string]Snapshot
}

// New creates a Manifest service.
func New(logger *slog.Logger) *Manifest {
	return &Manifest{
		logger:    logger,
		snapshots: make(map[string]Snapshot),
	}
}

// Load returns the container's previous snapshot. A missing or corrupt
// manifest file yields an empty snapshot; a bad manifest must never
// abort a sync.
func (m *Manifest) Load(c *collection.Container) Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	if snap, ok := m.snapshots[c.Path]; ok {
		return snap
	}

	snap := make(Snapshot)

	data, err := os.ReadFile(filepath.Join(c.Path, FileName))
	if err != nil {
		if !os.IsNotExist(err) {
			m.logger.Warn("reading manifest",
				slog.String("container", c.Name()),
				slog.String("error", err.Error()),
			)
		}

		m.snapshots[c.Path] = snap

		return snap
	}

	if err := json.Unmarshal(data, &snap); err != nil {
		m.logger.Warn("corrupt manifest, treating as empty",
			slog.String("container", c.Name()),
			slog.String("error", err.Error()),
		)

		snap = make(Snapshot)
	}

	m.snapshots[c.Path] = snap

	return snap
}

// ExternallyDeleted returns the ids present in the loaded snapshot but
// absent from the current scan, sorted ascending. These are files the
// user removed by hand since the last sync; deletions this system makes
// go through the store (which updates the scan cache), never the
// snapshot.
func (m *Manifest) ExternallyDeleted(c *collection.Container, current []collection.LocalItem) []string {
	snap := m.Load(c)
	if len(snap) == 0 {
		return nil
	}

	present := make(map[string]struct{}, len(current))
	for _, it := range current {
		present[it.ID] = struct{}{}
	}

	var deleted []string

	for id := range snap {
		if _, ok := present[id]; !ok {
			deleted = append(deleted, id)
		}
	}

	sort.Strings(deleted)

	return deleted
}

// Persist writes the container's new snapshot from the final scan,
// replacing the previous manifest file. The write goes through a temp
// file and rename so a crash never leaves a partial manifest. Must be
// the last manifest-affecting operation of a sync pass.
func (m *Manifest) Persist(c *collection.Container, current []collection.LocalItem) error {
	snap := make(Snapshot, len(current))
	for _, it := range current {
		snap[it.ID] = EntryFromItem(it)
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshalling manifest for %s: %w", c.Name(), err)
	}

	path := filepath.Join(c.Path, FileName)
	tmp := path + ".tmp"

	if err := os.WriteFile(tmp, data, manifestFilePerm); err != nil {
		return fmt.Errorf("writing manifest for %s: %w", c.Name(), err)
	}

	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing manifest for %s: %w", c.Name(), err)
	}

	m.mu.Lock()
	m.snapshots[c.Path] = snap
	m.mu.Unlock()

	return nil
}

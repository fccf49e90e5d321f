// Package collection models the two-level board/section tree that mirrors
// the remote collection on local disk, and scans it for local items.
package collection

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/text/unicode/norm"
)

const (
	// containerDirPerm is the permission mode for board and section
	// directories created under the download root.
	containerDirPerm = fs.FileMode(0o755)
)

// Container is one node of the tree: a board, or a section belonging to
// exactly one board. Identity is (Board, Section), with Section empty for
// board containers. Path is the absolute directory that mirrors it; the
// directory exists once the container is constructed.
type Container struct {
	Board   string
	Section string
	Path    string
}

// NewBoard constructs a board container under root, creating its
// directory if absent. Creation is idempotent so concurrent discovery
// workers can race on the same board safely.
func NewBoard(root, board string) (*Container, error) {
	board = normalizeName(board)

	c := &Container{
		Board: board,
		Path:  filepath.Join(root, board),
	}

	if err := os.MkdirAll(c.Path, containerDirPerm); err != nil {
		return nil, fmt.Errorf("creating board directory %s: %w", c.Path, err)
	}

	return c, nil
}

// NewSection constructs a section container under root/board, creating
// its directory if absent. The owning board is stored as a name only;
// sections never hold a pointer back to a board object.
func NewSection(root, board, section string) (*Container, error) {
	board = normalizeName(board)
	section = normalizeName(section)

	c := &Container{
		Board:   board,
		Section: section,
		Path:    filepath.Join(root, board, section),
	}

	if err := os.MkdirAll(c.Path, containerDirPerm); err != nil {
		return nil, fmt.Errorf("creating section directory %s: %w", c.Path, err)
	}

	return c, nil
}

// IsSection reports whether the container is a section (leaf) node.
func (c *Container) IsSection() bool {
	return c.Section != ""
}

// Name returns the container's relative path form: "board" or
// "board/section". Used as the key for manifests and sync records.
func (c *Container) Name() string {
	if c.Section != "" {
		return c.Board + "/" + c.Section
	}

	return c.Board
}

// normalizeName applies Unicode NFC normalization to a board or section
// name. Remote names arrive in whatever form the uploader's platform
// produced; the filesystem comparison below depends on one canonical form.
func normalizeName(name string) string {
	return norm.NFC.String(name)
}

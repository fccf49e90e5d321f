package collection

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// writePNG writes a small gradient PNG at dir/name.
func writePNG(t *testing.T, dir, name string) string {
	t.Helper()

	img := image.NewGray(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(x * 8)})
		}
	}

	require.NoError(t, os.MkdirAll(dir, 0o755))

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, png.Encode(f, img))

	return path
}

func TestNewBoard_CreatesDirectory(t *testing.T) {
	root := t.TempDir()

	c, err := NewBoard(root, "art")
	require.NoError(t, err)

	info, err := os.Stat(c.Path)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, "art", c.Name())
	assert.False(t, c.IsSection())
}

func TestNewSection_CreatesNestedDirectory(t *testing.T) {
	root := t.TempDir()

	c, err := NewSection(root, "art", "sketches")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, "art", "sketches"), c.Path)
	assert.Equal(t, "art/sketches", c.Name())
	assert.True(t, c.IsSection())

	info, err := os.Stat(c.Path)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestNewBoard_Idempotent(t *testing.T) {
	root := t.TempDir()

	_, err := NewBoard(root, "art")
	require.NoError(t, err)
	_, err = NewBoard(root, "art")
	require.NoError(t, err)
}

func TestScan_BoardDirectChildrenOnly(t *testing.T) {
	root := t.TempDir()
	c, err := NewBoard(root, "art")
	require.NoError(t, err)

	writePNG(t, c.Path, "100.png")
	// Image inside a subdirectory belongs to a section container, not
	// to the board scan.
	writePNG(t, filepath.Join(c.Path, "sketches"), "200.png")

	store := NewLocalStore(root, quietLogger, nil)
	items, err := store.Scan(context.Background(), c)
	require.NoError(t, err)

	require.Len(t, items, 1)
	assert.Equal(t, "100", items[0].ID)
	assert.Equal(t, "art", items[0].Board)
	assert.Empty(t, items[0].Section)
	assert.Equal(t, 32*32, items[0].Size)
	assert.NotZero(t, items[0].Hash)
}

func TestScan_SectionRecursive(t *testing.T) {
	root := t.TempDir()
	c, err := NewSection(root, "art", "sketches")
	require.NoError(t, err)

	writePNG(t, c.Path, "100.png")
	writePNG(t, filepath.Join(c.Path, "nested"), "200.png")

	store := NewLocalStore(root, quietLogger, nil)
	items, err := store.Scan(context.Background(), c)
	require.NoError(t, err)

	require.Len(t, items, 2)
	assert.Equal(t, "100", items[0].ID)
	assert.Equal(t, "200", items[1].ID)
	assert.Equal(t, "sketches", items[0].Section)
}

func TestScan_SkipsReservedFiles(t *testing.T) {
	root := t.TempDir()
	c, err := NewBoard(root, "art")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(c.Path, "manifest.json"), []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(c.Path, ".gitignore"), []byte("*"), 0o644))

	orphans := 0
	store := NewLocalStore(root, quietLogger, func(context.Context, string) { orphans++ })

	items, err := store.Scan(context.Background(), c)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Zero(t, orphans, "reserved files must not be treated as orphans")
}

func TestScan_SkipsReservedDirs(t *testing.T) {
	root := t.TempDir()
	c, err := NewSection(root, "art", "sketches")
	require.NoError(t, err)

	writePNG(t, filepath.Join(c.Path, ".git"), "100.png")
	writePNG(t, filepath.Join(c.Path, "credentials"), "200.png")
	writePNG(t, c.Path, "300.png")

	store := NewLocalStore(root, quietLogger, nil)
	items, err := store.Scan(context.Background(), c)
	require.NoError(t, err)

	require.Len(t, items, 1)
	assert.Equal(t, "300", items[0].ID)
}

func TestScan_OrphanTriggersHandler(t *testing.T) {
	root := t.TempDir()
	c, err := NewBoard(root, "art")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(c.Path, "123456.mp4"), []byte("video"), 0o644))

	var orphaned []string

	store := NewLocalStore(root, quietLogger, func(_ context.Context, id string) {
		orphaned = append(orphaned, id)
	})

	items, err := store.Scan(context.Background(), c)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, []string{"123456"}, orphaned)
}

func TestScan_UndecodableImageKeptWithoutHash(t *testing.T) {
	root := t.TempDir()
	c, err := NewBoard(root, "art")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(c.Path, "100.jp2"), []byte("jp2-payload"), 0o644))
	writePNG(t, c.Path, "200.png")

	orphans := 0
	store := NewLocalStore(root, quietLogger, func(context.Context, string) { orphans++ })

	items, err := store.Scan(context.Background(), c)
	require.NoError(t, err)
	assert.Zero(t, orphans, "a bad decode is not an orphan")

	require.Len(t, items, 2)
	assert.Equal(t, "100", items[0].ID)
	assert.False(t, items[0].Hashed)
	assert.Zero(t, items[0].Hash)
	assert.Equal(t, "200", items[1].ID)
	assert.True(t, items[1].Hashed)
}

func TestScan_SkipsStaleTempFiles(t *testing.T) {
	root := t.TempDir()
	c, err := NewBoard(root, "art")
	require.NoError(t, err)

	// Leftover of a crash between the temp write and the rename in a
	// manifest persist.
	require.NoError(t, os.WriteFile(filepath.Join(c.Path, "manifest.json.tmp"), []byte("{"), 0o644))

	orphans := 0
	store := NewLocalStore(root, quietLogger, func(context.Context, string) { orphans++ })

	items, err := store.Scan(context.Background(), c)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Zero(t, orphans, "stale temp files must not be treated as orphans")
}

func TestScan_SortedByID(t *testing.T) {
	root := t.TempDir()
	c, err := NewBoard(root, "art")
	require.NoError(t, err)

	writePNG(t, c.Path, "300.png")
	writePNG(t, c.Path, "100.png")
	writePNG(t, c.Path, "200.png")

	store := NewLocalStore(root, quietLogger, nil)
	items, err := store.Scan(context.Background(), c)
	require.NoError(t, err)

	require.Len(t, items, 3)
	assert.Equal(t, "100", items[0].ID)
	assert.Equal(t, "200", items[1].ID)
	assert.Equal(t, "300", items[2].ID)
}

func TestScan_CachedUntilInvalidated(t *testing.T) {
	root := t.TempDir()
	c, err := NewBoard(root, "art")
	require.NoError(t, err)

	writePNG(t, c.Path, "100.png")

	store := NewLocalStore(root, quietLogger, nil)

	items, err := store.Scan(context.Background(), c)
	require.NoError(t, err)
	require.Len(t, items, 1)

	writePNG(t, c.Path, "200.png")

	// Cached scan does not see the new file.
	items, err = store.Scan(context.Background(), c)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	store.Invalidate(c)

	items, err = store.Scan(context.Background(), c)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestRemove_DeletesFileAndInvalidates(t *testing.T) {
	root := t.TempDir()
	c, err := NewBoard(root, "art")
	require.NoError(t, err)

	writePNG(t, c.Path, "100.png")

	store := NewLocalStore(root, quietLogger, nil)
	items, err := store.Scan(context.Background(), c)
	require.NoError(t, err)
	require.Len(t, items, 1)

	require.NoError(t, store.Remove(c, items[0]))

	_, err = os.Stat(items[0].Path)
	assert.True(t, os.IsNotExist(err))

	items, err = store.Scan(context.Background(), c)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestRemove_PrunesEmptyParentsUpToContainerRoot(t *testing.T) {
	root := t.TempDir()
	c, err := NewSection(root, "art", "sketches")
	require.NoError(t, err)

	nested := filepath.Join(c.Path, "a", "b")
	writePNG(t, nested, "100.png")

	store := NewLocalStore(root, quietLogger, nil)
	items, err := store.Scan(context.Background(), c)
	require.NoError(t, err)
	require.Len(t, items, 1)

	require.NoError(t, store.Remove(c, items[0]))

	_, err = os.Stat(filepath.Join(c.Path, "a"))
	assert.True(t, os.IsNotExist(err), "emptied parents should be pruned")

	info, err := os.Stat(c.Path)
	require.NoError(t, err, "container root must survive pruning")
	assert.True(t, info.IsDir())
}

func TestRemove_KeepsNonEmptyParents(t *testing.T) {
	root := t.TempDir()
	c, err := NewSection(root, "art", "sketches")
	require.NoError(t, err)

	nested := filepath.Join(c.Path, "a")
	writePNG(t, nested, "100.png")
	writePNG(t, nested, "200.png")

	store := NewLocalStore(root, quietLogger, nil)
	items, err := store.Scan(context.Background(), c)
	require.NoError(t, err)
	require.Len(t, items, 2)

	require.NoError(t, store.Remove(c, items[0]))

	info, err := os.Stat(nested)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestSupportedExtension(t *testing.T) {
	assert.True(t, SupportedExtension(".jpg"))
	assert.True(t, SupportedExtension(".PNG"))
	assert.True(t, SupportedExtension(".webp"))
	assert.True(t, SupportedExtension(".exr"))
	assert.False(t, SupportedExtension(".mp4"))
	assert.False(t, SupportedExtension(".txt"))
	assert.False(t, SupportedExtension(""))
}

package imagehash

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeGradientPNG writes a horizontal gradient image (dark to light,
// left to right) of the given dimensions and returns its path.
func writeGradientPNG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()

	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(x * 255 / w)})
		}
	}

	return writePNG(t, dir, name, img)
}

// writeSolidPNG writes a uniform image of the given color.
func writeSolidPNG(t *testing.T, dir, name string, w, h int, c color.Color) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}

	return writePNG(t, dir, name, img)
}

func writePNG(t *testing.T, dir, name string, img image.Image) string {
	t.Helper()

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, png.Encode(f, img))

	return path
}

func TestDescribe_Dimensions(t *testing.T) {
	dir := t.TempDir()
	path := writeGradientPNG(t, dir, "g.png", 120, 80)

	desc, err := Describe(path)
	require.NoError(t, err)
	assert.Equal(t, 120, desc.Width)
	assert.Equal(t, 80, desc.Height)
}

func TestDescribe_IdenticalFilesIdenticalHash(t *testing.T) {
	dir := t.TempDir()
	a := writeGradientPNG(t, dir, "a.png", 100, 100)
	b := writeGradientPNG(t, dir, "b.png", 100, 100)

	da, err := Describe(a)
	require.NoError(t, err)
	db, err := Describe(b)
	require.NoError(t, err)

	assert.Equal(t, da.Hash, db.Hash)
}

func TestDescribe_GradientSurvivesResize(t *testing.T) {
	// The difference hash works on a downscaled 9x8 grid, so the same
	// gradient at different resolutions produces the same hash. The
	// duplicate resolver depends on this to group resized copies.
	dir := t.TempDir()
	a := writeGradientPNG(t, dir, "small.png", 90, 80)
	b := writeGradientPNG(t, dir, "large.png", 360, 320)

	da, err := Describe(a)
	require.NoError(t, err)
	db, err := Describe(b)
	require.NoError(t, err)

	assert.Equal(t, da.Hash, db.Hash)
}

func TestDescribe_DistinctImagesDistinctHash(t *testing.T) {
	dir := t.TempDir()
	gradient := writeGradientPNG(t, dir, "g.png", 100, 100)
	solid := writeSolidPNG(t, dir, "s.png", 100, 100, color.Gray{Y: 128})

	dg, err := Describe(gradient)
	require.NoError(t, err)
	ds, err := Describe(solid)
	require.NoError(t, err)

	assert.NotEqual(t, dg.Hash, ds.Hash)
}

func TestDescribe_MeanColor(t *testing.T) {
	dir := t.TempDir()
	path := writeSolidPNG(t, dir, "red.png", 10, 10, color.RGBA{R: 200, G: 50, B: 100, A: 255})

	desc, err := Describe(path)
	require.NoError(t, err)
	assert.InDelta(t, 200, desc.Color[0], 1)
	assert.InDelta(t, 50, desc.Color[1], 1)
	assert.InDelta(t, 100, desc.Color[2], 1)
}

func TestDescribe_MissingFile(t *testing.T) {
	_, err := Describe(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}

func TestDescribe_NotAnImage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "junk.png")
	require.NoError(t, os.WriteFile(path, []byte("not an image"), 0o644))

	_, err := Describe(path)
	assert.Error(t, err)
}

func TestSimilar(t *testing.T) {
	tests := []struct {
		name      string
		a, b      uint64
		threshold uint64
		want      bool
	}{
		{"equal hashes", 42, 42, DefaultSimilarityThreshold, true},
		{"within threshold", 42, 44, DefaultSimilarityThreshold, true},
		{"at threshold boundary", 42, 45, DefaultSimilarityThreshold, false},
		{"beyond threshold", 42, 100, DefaultSimilarityThreshold, false},
		{"order independent", 44, 42, DefaultSimilarityThreshold, true},
		{"zero threshold never similar", 42, 42, 0, false},
		{"large values", 1<<63 + 1, 1 << 63, DefaultSimilarityThreshold, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Similar(tt.a, tt.b, tt.threshold))
		})
	}
}

// Package imagehash wraps perceptual hashing of local image files.
// Decoding goes through the standard image registry; hashing uses an
// 8x8 gradient (difference) hash packed into a uint64.
package imagehash

import (
	"fmt"
	"image"
	"os"

	"github.com/corona10/goimagehash"

	// Register decoders for the supported formats. JPEG and PNG come
	// from the standard library; WebP, BMP and TIFF from x/image.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DefaultSimilarityThreshold is the maximum absolute hash difference for
// two images to be considered near-duplicates by Similar.
const DefaultSimilarityThreshold = 3

// Description holds everything derived from decoding one image file.
type Description struct {
	Hash   uint64
	Height int
	Width  int
	Color  [3]float64
}

// Describe decodes the image at path and computes its perceptual hash,
// dimensions, and mean color in one pass over the file.
func Describe(path string) (*Description, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening image %s: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding image %s: %w", path, err)
	}

	h, err := goimagehash.DifferenceHash(img)
	if err != nil {
		return nil, fmt.Errorf("hashing image %s: %w", path, err)
	}

	bounds := img.Bounds()

	return &Description{
		Hash:   h.GetHash(),
		Height: bounds.Dy(),
		Width:  bounds.Dx(),
		Color:  meanColor(img),
	}, nil
}

// Similar reports whether two hashes differ by less than threshold in
// absolute numeric value. This is a near-duplicate query only; duplicate
// removal keys on exact hash equality.
func Similar(a, b uint64, threshold uint64) bool {
	var diff uint64
	if a > b {
		diff = a - b
	} else {
		diff = b - a
	}

	return diff < threshold
}

// meanColor returns the per-channel (R, G, B) pixel averages on a 0-255
// scale.
func meanColor(img image.Image) [3]float64 {
	bounds := img.Bounds()

	pixels := float64(bounds.Dx()) * float64(bounds.Dy())
	if pixels == 0 {
		return [3]float64{}
	}

	var sums [3]float64

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			// RGBA returns 16-bit channels; scale down to 8-bit.
			sums[0] += float64(r >> 8)
			sums[1] += float64(g >> 8)
			sums[2] += float64(b >> 8)
		}
	}

	return [3]float64{sums[0] / pixels, sums[1] / pixels, sums[2] / pixels}
}

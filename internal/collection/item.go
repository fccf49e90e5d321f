package collection

import (
	"path/filepath"
	"strings"
)

// RemoteItem describes an item present on the remote service, but not
// necessarily on local storage. Items are value records rebuilt on every
// listing; the ID doubles as an age ordinal (smaller = older).
type RemoteItem struct {
	ID          string
	Title       string
	Description string
	Board       string
	Section     string
	URL         string
	Extension   string
	Height      int
	Width       int
}

// Filename returns the local filename an item materializes as.
func (r RemoteItem) Filename() string {
	return r.ID + r.Extension
}

// LocalItem describes an image present on local storage, but not
// necessarily on the remote service. Built fresh on every scan.
//
// Hashed is false for allow-listed formats no registered decoder can
// read (JPEG 2000, OpenEXR and friends). Such items still count as
// locally present, so they are neither re-downloaded nor orphaned, but
// they carry no hash and never participate in duplicate grouping.
type LocalItem struct {
	ID      string
	Board   string
	Section string
	Path    string
	Hash    uint64
	Height  int
	Width   int
	Size    int
	Color   [3]float64
	Hashed  bool
}

// supportedExtensions is the allow-list of image file extensions eligible
// for scanning. Anything else on disk (that is not a reserved name) is
// treated as an orphan.
var supportedExtensions = map[string]struct{}{
	".bmp": {}, ".dib": {},
	".jpeg": {}, ".jpg": {}, ".jpe": {},
	".jp2":  {},
	".png":  {},
	".webp": {},
	".pbm": {}, ".pgm": {}, ".ppm": {}, ".pxm": {}, ".pnm": {},
	".pfm": {},
	".sr": {}, ".ras": {},
	".tiff": {}, ".tif": {},
	".exr": {},
	".hdr": {}, ".pic": {},
}

// SupportedExtension reports whether ext (with leading dot, any case) is
// on the image allow-list.
func SupportedExtension(ext string) bool {
	_, ok := supportedExtensions[strings.ToLower(ext)]
	return ok
}

// stem returns the filename without its extension; for downloaded files
// this is the originating remote item's id.
func stem(filename string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename))
}

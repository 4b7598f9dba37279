// Package entity holds the small, dependency-free value objects shared across
// every pipeline stage: extensions, safe paths, locations, users and the
// document tuples that eventually reach the search index.
package entity

import (
	"fmt"
	"strings"
)

// Extension is the closed sum of document types the pipeline understands.
// Adding a format means adding a case here and in the extractor/thumbnailer
// factories — nowhere else.
type Extension string

const (
	Png  Extension = "png"
	Jpg  Extension = "jpg"
	Webp Extension = "webp"
	Pdf  Extension = "pdf"
)

// ErrUnsupportedExtension is returned for any filename whose suffix does not
// map to one of the supported Extension values.
var ErrUnsupportedExtension = fmt.Errorf("unsupported extension")

// ParseExtension maps a filename's suffix onto the closed Extension sum.
// ".jpeg" is accepted as an alias of Jpg, matching the reference
// implementation's handling of the two common JPEG suffixes.
func ParseExtension(filename string) (Extension, error) {
	idx := strings.LastIndexByte(filename, '.')
	if idx < 0 || idx == len(filename)-1 {
		return "", fmt.Errorf("%w: %q has no extension", ErrUnsupportedExtension, filename)
	}
	switch strings.ToLower(filename[idx+1:]) {
	case "png":
		return Png, nil
	case "jpg", "jpeg":
		return Jpg, nil
	case "webp":
		return Webp, nil
	case "pdf":
		return Pdf, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedExtension, filename)
	}
}

// IsImage reports whether the extension is handled by the image thumbnailer
// and extractor paths rather than the PDF ones.
func (e Extension) IsImage() bool {
	return e != Pdf
}

func (e Extension) String() string {
	return string(e)
}

package entity

import (
	"encoding/base64"
	"fmt"
	"path/filepath"
)

// SafePath is a filesystem path validated to live inside a user directory:
// its immediate parent segment must decode as base64. Constructing one is
// the only way the pipeline accepts a path coming from outside (the watcher,
// an upload handler, …).
type SafePath struct {
	path string
}

// ErrNotInUserDir is returned when a candidate path's parent directory does
// not decode as base64, i.e. it does not look like `<root>/<user-dir>/<file>`.
var ErrNotInUserDir = fmt.Errorf("path is not inside a user directory")

// NewSafePath validates that path's parent directory name is valid base64
// and wraps it. The check mirrors the reference implementation's
// `is_in_user_dir` helper.
func NewSafePath(path string) (SafePath, error) {
	parent := filepath.Base(filepath.Dir(path))
	if _, err := base64.StdEncoding.DecodeString(parent); err != nil {
		return SafePath{}, fmt.Errorf("%w: %q", ErrNotInUserDir, path)
	}
	return SafePath{path: path}, nil
}

// String returns the underlying path.
func (p SafePath) String() string { return p.path }

// Filename returns the final path component, e.g. "doc1.png".
func (p SafePath) Filename() string { return filepath.Base(p.path) }

// Filestem returns the filename without its extension, e.g. "doc1".
func (p SafePath) Filestem() string {
	name := p.Filename()
	if idx := len(name) - len(filepath.Ext(name)); idx > 0 {
		return name[:idx]
	}
	return name
}

// ParentName returns the immediate parent directory name, i.e. the
// base64-encoded user directory this path lives in.
func (p SafePath) ParentName() string {
	return filepath.Base(filepath.Dir(p.path))
}

// RelPath returns "<user-dir>/<filename>", the path relative to whichever
// root directory (watched/docs/thumbnails) currently contains it.
func (p SafePath) RelPath() string {
	return filepath.Join(p.ParentName(), p.Filename())
}

// RelStem returns "<user-dir>/<filestem>".
func (p SafePath) RelStem() string {
	return filepath.Join(p.ParentName(), p.Filestem())
}

// Extension parses the Extension of the underlying filename.
func (p SafePath) Extension() (Extension, error) {
	return ParseExtension(p.Filename())
}

// Location is a non-empty, ordered batch of SafePaths that the pipeline
// carries atomically through one bus event. Every path in a Location shares
// the same Extension.
type Location struct {
	paths []SafePath
	ext   Extension
}

// ErrEmptyLocation is returned when constructing a Location from no paths.
var ErrEmptyLocation = fmt.Errorf("location must contain at least one path")

// ErrMixedExtensions is returned when the given paths do not all share one
// Extension.
var ErrMixedExtensions = fmt.Errorf("location paths must share one extension")

// NewLocation validates the non-empty and shared-extension invariants and
// builds a Location.
func NewLocation(paths ...SafePath) (Location, error) {
	if len(paths) == 0 {
		return Location{}, ErrEmptyLocation
	}
	ext, err := paths[0].Extension()
	if err != nil {
		return Location{}, err
	}
	for _, p := range paths[1:] {
		pext, err := p.Extension()
		if err != nil {
			return Location{}, err
		}
		if pext != ext {
			return Location{}, fmt.Errorf("%w: %q vs %q", ErrMixedExtensions, ext, pext)
		}
	}
	return Location{paths: paths, ext: ext}, nil
}

// Paths returns the ordered SafePaths carried by this Location.
func (l Location) Paths() []SafePath { return l.paths }

// Extension returns the single Extension shared by every path in l.
func (l Location) Extension() Extension { return l.ext }

// Len returns the number of paths in the location.
func (l Location) Len() int { return len(l.paths) }

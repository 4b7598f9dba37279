// Package fs provides the blocking, safe-path filesystem capabilities the
// pipeline stages use to move, encrypt and read document bytes.
package fs

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/devzbysiu/dox-sub000/internal/entity"
)

// ErrNotFound is returned when a load/rm targets a path that does not
// exist.
var ErrNotFound = errors.New("fs: file not found")

// Filesystem is the capability set every pipeline stage depends on instead
// of touching os directly, matching this stack's existing Storage interface
// shape (Save/Get/Delete/Exists) narrowed to the spec's mv/rm/save/load set.
type Filesystem interface {
	Save(path entity.SafePath, data []byte) error
	Load(path entity.SafePath) ([]byte, error)
	RmFile(path entity.SafePath) error
	MvFile(from entity.SafePath, to string) (entity.SafePath, error)
	Exists(path entity.SafePath) bool
}

// LocalFilesystem is the only Filesystem implementation: plain local disk,
// writes go through a temp-file-then-rename to avoid partial files being
// observed mid-write, matching the teacher's LocalStorage.Save discipline.
type LocalFilesystem struct{}

// NewLocalFilesystem builds a LocalFilesystem.
func NewLocalFilesystem() *LocalFilesystem {
	return &LocalFilesystem{}
}

// Save writes data to path, creating parent directories as needed.
func (fs *LocalFilesystem) Save(path entity.SafePath, data []byte) error {
	dir := filepath.Dir(path.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("fs: mkdir %q: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("fs: create temp file in %q: %w", dir, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("fs: write %q: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("fs: close %q: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path.String()); err != nil {
		return fmt.Errorf("fs: rename %q to %q: %w", tmpName, path.String(), err)
	}
	return nil
}

// Load reads all bytes at path.
func (fs *LocalFilesystem) Load(path entity.SafePath) ([]byte, error) {
	data, err := os.ReadFile(path.String())
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("fs: read %q: %w", path, err)
	}
	return data, nil
}

// RmFile removes the file at path.
func (fs *LocalFilesystem) RmFile(path entity.SafePath) error {
	if err := os.Remove(path.String()); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %q", ErrNotFound, path)
		}
		return fmt.Errorf("fs: remove %q: %w", path, err)
	}
	return nil
}

// MvFile moves the file at from to the literal destination path to,
// creating to's parent directory as needed, and returns the destination
// re-validated as a SafePath.
func (fs *LocalFilesystem) MvFile(from entity.SafePath, to string) (entity.SafePath, error) {
	dir := filepath.Dir(to)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return entity.SafePath{}, fmt.Errorf("fs: mkdir %q: %w", dir, err)
	}

	if err := renameOrCopy(from.String(), to); err != nil {
		return entity.SafePath{}, fmt.Errorf("fs: move %q to %q: %w", from, to, err)
	}

	dst, err := entity.NewSafePath(to)
	if err != nil {
		return entity.SafePath{}, err
	}
	return dst, nil
}

// Exists reports whether path currently exists.
func (fs *LocalFilesystem) Exists(path entity.SafePath) bool {
	_, err := os.Stat(path.String())
	return err == nil
}

// renameOrCopy renames from to to, falling back to a copy-then-remove when
// the two paths live on different filesystems (os.Rename returns
// syscall.EXDEV in that case).
func renameOrCopy(from, to string) error {
	if err := os.Rename(from, to); err == nil {
		return nil
	}

	src, err := os.Open(from)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(to)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	if err := dst.Close(); err != nil {
		return err
	}
	return os.Remove(from)
}

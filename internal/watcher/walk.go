package watcher

import (
	"io/fs"
	"path/filepath"
)

// walkDirs calls fn once for root and every directory nested under it. It
// backs both the initial recursive subscribe in New and re-subscribing a
// directory created later (see Watcher.handleCreate).
func walkDirs(root string, fn func(dir string) error) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return fn(path)
	})
}

// walkFiles calls fn once for every regular file nested under root,
// including root itself if it is a file. Used to pick up files that were
// already written into a directory by the time Watcher gets around to
// watching it.
func walkFiles(root string, fn func(file string)) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		fn(path)
		return nil
	})
}

// Package watcher observes the watched directory tree and turns raw
// filesystem events into the small DocsEvent sum the pipeline's entry point
// (the docs watcher service) consumes.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Kind tags a DocsEvent.
type Kind int

const (
	// Created fires once per debounce window per path, for a file that was
	// created (or renamed into place) under the watched directory.
	Created Kind = iota
	// Other covers every other filesystem event (writes, removes, chmod, …)
	// and carries no path the pipeline acts on.
	Other
)

// DocsEvent is what the Watcher emits.
type DocsEvent struct {
	Kind Kind
	Path string
}

// Watcher recursively observes a single root directory with a short
// debounce, collapsing fsnotify's often-duplicated Create/Write pairs for
// the same path into one Created event, matching the reference
// implementation's `notify`-crate-based debounced watcher.
type Watcher struct {
	root     string
	debounce time.Duration
	logger   *slog.Logger
	events   chan DocsEvent
	errs     chan error
}

// New starts watching root and returns a Watcher whose Events/Errors
// channels begin receiving immediately. The returned Watcher's background
// goroutine runs until ctx is cancelled; cancelling ctx closes Events and
// ends delivery to any subscriber.
func New(ctx context.Context, root string, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watcher: create fsnotify watcher: %w", err)
	}
	if err := addRecursive(fsw, root); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watcher: watch %q: %w", root, err)
	}

	w := &Watcher{
		root:     root,
		debounce: debounce,
		logger:   logger.With("component", "watcher"),
		events:   make(chan DocsEvent, 64),
		errs:     make(chan error, 1),
	}
	go w.run(ctx, fsw)
	return w, nil
}

// Events returns the channel of debounced DocsEvent values.
func (w *Watcher) Events() <-chan DocsEvent { return w.events }

// Errors returns the channel watch errors are delivered on. It holds at most
// one undelivered error; further errors are dropped while it is full, and
// the watch keeps running after an error.
func (w *Watcher) Errors() <-chan error { return w.errs }

func (w *Watcher) run(ctx context.Context, fsw *fsnotify.Watcher) {
	defer fsw.Close()
	defer close(w.events)

	pending := make(map[string]*time.Timer)
	defer func() {
		for _, t := range pending {
			t.Stop()
		}
	}()

	fire := make(chan string, 64)

	for {
		select {
		case <-ctx.Done():
			return
		case path := <-fire:
			delete(pending, path)
			select {
			case w.events <- DocsEvent{Kind: Created, Path: path}:
			case <-ctx.Done():
				return
			}
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) {
				w.handleCreate(fsw, pending, fire, event.Name)
				continue
			}
			if _, ok := pending[event.Name]; ok && event.Has(fsnotify.Write) {
				// a write inside a path's Created debounce window belongs to
				// that creation: restart the window instead of emitting Other.
				w.debouncedFire(pending, fire, event.Name)
				continue
			}
			select {
			case w.events <- DocsEvent{Kind: Other, Path: event.Name}:
			case <-ctx.Done():
				return
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("watch error", "error", err)
			select {
			case w.errs <- err:
			default:
			}
		}
	}
}

func (w *Watcher) debouncedFire(pending map[string]*time.Timer, fire chan<- string, path string) {
	if t, ok := pending[path]; ok {
		t.Stop()
	}
	pending[path] = time.AfterFunc(w.debounce, func() {
		fire <- path
	})
}

// handleCreate reacts to a fsnotify.Create event. A new file is debounced
// like any other path; a new directory is itself unwatched until now, so it
// and every directory nested under it are registered with fsw, and any
// files fsnotify raced past while the directory was being populated (e.g. a
// user's first upload creating <watched_dir>/<user_dir>/ and writing into it
// in the same instant) are picked up by walking it once, keeping this
// Watcher recursive the way the reference implementation's
// notify::RecursiveMode::Recursive is.
func (w *Watcher) handleCreate(fsw *fsnotify.Watcher, pending map[string]*time.Timer, fire chan<- string, path string) {
	info, err := os.Stat(path)
	if err != nil {
		// already gone (e.g. a transient temp file); nothing to watch or fire.
		return
	}
	if !info.IsDir() {
		w.debouncedFire(pending, fire, path)
		return
	}
	if err := addRecursive(fsw, path); err != nil {
		w.logger.Error("failed to watch new directory", "dir", path, "error", err)
		return
	}
	if err := walkFiles(path, func(file string) {
		w.debouncedFire(pending, fire, file)
	}); err != nil {
		w.logger.Error("failed to scan new directory", "dir", path, "error", err)
	}
}

// addRecursive walks root and registers every directory with fsw, since
// fsnotify only watches the directories it is explicitly told about.
func addRecursive(fsw *fsnotify.Watcher, root string) error {
	return walkDirs(root, func(dir string) error {
		return fsw.Add(dir)
	})
}

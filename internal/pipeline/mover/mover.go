// Package mover implements the Document Mover pipeline stage (spec §4.6):
// it relocates newly observed files into the canonical docs directory and
// cleans up after a downstream encryption failure.
package mover

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/corona10/goimagehash"
	"golang.org/x/image/webp"

	"github.com/devzbysiu/dox-sub000/internal/entity"
	"github.com/devzbysiu/dox-sub000/internal/eventbus"
	"github.com/devzbysiu/dox-sub000/internal/fs"
	"github.com/devzbysiu/dox-sub000/internal/pipeline/workerpool"
)

// DefaultPoolSize is the reference implementation's fixed worker count.
const DefaultPoolSize = 4

// DocumentMover subscribes to the bus and owns a small worker pool to move
// files without blocking its own event intake.
type DocumentMover struct {
	bus      *eventbus.Bus
	filesystem fs.Filesystem
	docsDir  string
	pool     *workerpool.Pool
	logger   *slog.Logger

	dedupeMu sync.Mutex
	dedupe   map[string]string // "<userDir>/<filename>" -> last-seen content hash
}

// New builds a DocumentMover. docsDir is the root directory documents are
// relocated under, preserving the user subdirectory.
func New(bus *eventbus.Bus, filesystem fs.Filesystem, docsDir string, logger *slog.Logger) *DocumentMover {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentMover{
		bus:        bus,
		filesystem: filesystem,
		docsDir:    docsDir,
		pool:       workerpool.New(DefaultPoolSize),
		logger:     logger.With("component", "document-mover"),
		dedupe:     make(map[string]string),
	}
}

// Run subscribes to the bus and dispatches NewDocs/DocumentEncryptionFailed
// events to the worker pool until ctx is cancelled.
func (m *DocumentMover) Run(ctx context.Context) {
	sub := m.bus.Subscriber()
	defer sub.Close()
	defer m.pool.Close()

	for {
		event, err := sub.Recv(ctx)
		if err != nil {
			return
		}
		switch event.Kind {
		case eventbus.NewDocs:
			m.moveDoc(event.Location)
		case eventbus.DocumentEncryptionFailed:
			m.cleanup(event.Location)
		default:
			// event not supported in DocumentMover
		}
	}
}

func (m *DocumentMover) moveDoc(loc entity.Location) {
	publ := m.bus.Publisher()
	m.pool.Submit(func() {
		newLoc, err := m.doMove(loc)
		if err != nil {
			m.logger.Error("failed to move doc", "error", err)
			return
		}
		publ.Send(eventbus.DocsMovedEvent(newLoc))
	})
}

func (m *DocumentMover) doMove(loc entity.Location) (entity.Location, error) {
	newPaths := make([]entity.SafePath, 0, loc.Len())
	for _, path := range loc.Paths() {
		m.recordDedupe(path)

		dst := filepath.Join(m.docsDir, path.ParentName(), path.Filename())
		moved, err := m.filesystem.MvFile(path, dst)
		if err != nil {
			return entity.Location{}, fmt.Errorf("mover: move %q: %w", path, err)
		}
		newPaths = append(newPaths, moved)
	}
	return entity.NewLocation(newPaths...)
}

// recordDedupe computes a content hash for path and compares it against the
// last one seen for this (user, filename). A match is logged but never
// blocks the move — see SPEC_FULL.md §9 for why this is advisory only.
func (m *DocumentMover) recordDedupe(path entity.SafePath) {
	hash, err := contentHash(m.filesystem, path)
	if err != nil {
		m.logger.Debug("dedupe hash unavailable, skipping check", "path", path, "error", err)
		return
	}

	key := path.RelPath()
	m.dedupeMu.Lock()
	defer m.dedupeMu.Unlock()

	if prev, ok := m.dedupe[key]; ok && prev == hash {
		m.logger.Info("duplicate upload detected, proceeding anyway", "path", path)
	}
	m.dedupe[key] = hash
}

func contentHash(filesystem fs.Filesystem, path entity.SafePath) (string, error) {
	data, err := filesystem.Load(path)
	if err != nil {
		return "", err
	}

	ext, err := path.Extension()
	if err != nil {
		return "", err
	}
	if ext == entity.Pdf {
		sum := sha256.Sum256(data)
		return hex.EncodeToString(sum[:]), nil
	}

	img, err := decodeImage(ext, data)
	if err != nil {
		return "", err
	}
	hash, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return "", err
	}
	return hash.ToString(), nil
}

func decodeImage(ext entity.Extension, data []byte) (image.Image, error) {
	if ext == entity.Webp {
		return webp.Decode(bytes.NewReader(data))
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	return img, err
}

func (m *DocumentMover) cleanup(loc entity.Location) {
	m.pool.Submit(func() {
		for _, path := range loc.Paths() {
			if err := m.filesystem.RmFile(path); err != nil {
				m.logger.Error("document removal failed", "path", path, "error", err)
			}
		}
	})
}

// Package encrypter implements the Encrypter pipeline stage (spec §4.9):
// it seals thumbnail and document bytes in place once they have reached
// their final resting directory.
package encrypter

import (
	"context"
	"log/slog"
	"sync"

	"github.com/devzbysiu/dox-sub000/internal/cipher"
	"github.com/devzbysiu/dox-sub000/internal/entity"
	"github.com/devzbysiu/dox-sub000/internal/eventbus"
	"github.com/devzbysiu/dox-sub000/internal/fs"
	"github.com/devzbysiu/dox-sub000/internal/pipeline/workerpool"
)

// DefaultPoolSize is the fixed worker count backing the encryption pool.
const DefaultPoolSize = 4

// Encrypter is the Encrypter pipeline stage. Unlike the reference
// implementation, which unconditionally publishes PipelineFinished once both
// halves of a batch have been attempted, this stage only does so once every
// path in BOTH the thumbnail and the document batch has been sealed
// successfully: any single failure instead republishes the matching
// *EncryptionFailed event so the mover/thumbnail service can clean up the
// partial write, and PipelineFinished is withheld (see SPEC_FULL.md §4.9).
type Encrypter struct {
	bus        *eventbus.Bus
	filesystem fs.Filesystem
	cipher     cipher.ReadWriter
	pool       *workerpool.Pool
	logger     *slog.Logger

	mu      sync.Mutex
	pending map[pendingKey]*pendingBatch
}

// pendingKey tracks one in-flight document's thumbnail+body encryption pair,
// keyed by the document's parent directory and filestem so the thumbnail and
// the document halves of the same upload are correlated even though they
// arrive as two independent events.
type pendingKey struct {
	user string
	stem string
}

type pendingBatch struct {
	thumbDone bool
	docDone   bool
	failed    bool
}

// New builds an Encrypter.
func New(bus *eventbus.Bus, filesystem fs.Filesystem, c cipher.ReadWriter, logger *slog.Logger) *Encrypter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Encrypter{
		bus:        bus,
		filesystem: filesystem,
		cipher:     c,
		pool:       workerpool.New(DefaultPoolSize),
		logger:     logger.With("component", "encrypter"),
		pending:    make(map[pendingKey]*pendingBatch),
	}
}

// Run subscribes to the bus until ctx is cancelled.
func (e *Encrypter) Run(ctx context.Context) {
	sub := e.bus.Subscriber()
	defer sub.Close()
	defer e.pool.Close()

	for {
		event, err := sub.Recv(ctx)
		if err != nil {
			return
		}
		switch event.Kind {
		case eventbus.EncryptThumbnail:
			e.encryptThumbnail(event.Location)
		case eventbus.EncryptDocument:
			e.encryptDocument(event.Location)
		default:
			// event not supported in encrypter
		}
	}
}

func (e *Encrypter) encryptThumbnail(loc entity.Location) {
	publ := e.bus.Publisher()
	e.pool.Submit(func() {
		if err := e.encryptInPlace(loc); err != nil {
			e.logger.Error("thumbnail encryption failed", "error", err)
			publ.Send(eventbus.ThumbnailEncryptionFailedEvent(loc))
			e.markFailed(loc, true)
			return
		}
		e.markDone(loc, true, publ)
	})
}

func (e *Encrypter) encryptDocument(loc entity.Location) {
	publ := e.bus.Publisher()
	e.pool.Submit(func() {
		if err := e.encryptInPlace(loc); err != nil {
			e.logger.Error("document encryption failed", "error", err)
			publ.Send(eventbus.DocumentEncryptionFailedEvent(loc))
			e.markFailed(loc, false)
			return
		}
		e.markDone(loc, false, publ)
	})
}

// encryptInPlace seals every path in loc concurrently, overwriting each
// file's plaintext bytes with its ciphertext. A failure on any single path
// fails the whole call.
func (e *Encrypter) encryptInPlace(loc entity.Location) error {
	paths := loc.Paths()
	errs := make([]error, len(paths))

	var wg sync.WaitGroup
	for i, path := range paths {
		wg.Add(1)
		go func(i int, path entity.SafePath) {
			defer wg.Done()
			data, err := e.filesystem.Load(path)
			if err != nil {
				errs[i] = err
				return
			}
			ciphertext, err := e.cipher.Encrypt(data)
			if err != nil {
				errs[i] = err
				return
			}
			if err := e.filesystem.Save(path, ciphertext); err != nil {
				errs[i] = err
				return
			}
		}(i, path)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// markDone records that the thumbnail or document half of a batch finished
// successfully, and publishes PipelineFinished once both halves are in and
// neither half failed.
func (e *Encrypter) markDone(loc entity.Location, thumb bool, publ *eventbus.Publisher) {
	key, err := keyFor(loc)
	if err != nil {
		e.logger.Error("could not correlate encryption batch", "error", err)
		return
	}

	e.mu.Lock()
	batch, ok := e.pending[key]
	if !ok {
		batch = &pendingBatch{}
		e.pending[key] = batch
	}
	if thumb {
		batch.thumbDone = true
	} else {
		batch.docDone = true
	}
	finished := batch.thumbDone && batch.docDone && !batch.failed
	if batch.thumbDone && batch.docDone {
		delete(e.pending, key)
	}
	e.mu.Unlock()

	if finished {
		publ.Send(eventbus.PipelineFinishedEvent())
	}
}

// markFailed records that the thumbnail or document half of a batch failed,
// and cleans up the pending entry once both halves have reported in (whether
// they succeeded or failed) so a failure on one side doesn't leak the entry
// when the other side already completed, or later completes.
func (e *Encrypter) markFailed(loc entity.Location, thumb bool) {
	key, err := keyFor(loc)
	if err != nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	batch, ok := e.pending[key]
	if !ok {
		batch = &pendingBatch{}
		e.pending[key] = batch
	}
	batch.failed = true
	if thumb {
		batch.thumbDone = true
	} else {
		batch.docDone = true
	}
	if batch.thumbDone && batch.docDone {
		delete(e.pending, key)
	}
}

// keyFor correlates a thumbnail Location with its sibling document Location:
// both share the owning user directory and the document's filestem (the
// thumbnail's own extension may differ, e.g. a PDF's `<stem>.png`
// thumbnail), so the stem alone is the correlation key.
func keyFor(loc entity.Location) (pendingKey, error) {
	path := loc.Paths()[0]
	user, err := entity.UserFromDir(path.ParentName())
	if err != nil {
		return pendingKey{}, err
	}
	return pendingKey{user: user.Dir(), stem: path.Filestem()}, nil
}

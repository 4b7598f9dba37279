package watcher

import (
	"context"
	"log/slog"

	"github.com/devzbysiu/dox-sub000/internal/entity"
	"github.com/devzbysiu/dox-sub000/internal/eventbus"
)

// Source is the slice of Watcher a DocsWatcherService depends on, so tests
// can feed it synthetic events without starting a real fsnotify watch.
type Source interface {
	Events() <-chan DocsEvent
	Errors() <-chan error
}

// DocsWatcherService is the pipeline's entry point (spec §4.5): it drains a
// Watcher's events and turns each Created path inside a user directory into
// a NewDocs bus event. It never crashes the process on a watch error — it
// only logs and keeps running, since the watcher is the one stage nothing
// downstream recovers from if it dies silently.
type DocsWatcherService struct {
	w      Source
	publ   *eventbus.Publisher
	logger *slog.Logger
}

// NewDocsWatcherService wires a Watcher to a bus Publisher.
func NewDocsWatcherService(w Source, bus *eventbus.Bus, logger *slog.Logger) *DocsWatcherService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocsWatcherService{w: w, publ: bus.Publisher(), logger: logger.With("component", "docs-watcher-service")}
}

// Run drains the watcher until ctx is cancelled or the watcher's channels
// close.
func (s *DocsWatcherService) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-s.w.Events():
			if !ok {
				return
			}
			s.handle(event)
		case err, ok := <-s.w.Errors():
			if !ok {
				continue
			}
			s.logger.Error("watcher error, continuing", "error", err)
		}
	}
}

func (s *DocsWatcherService) handle(event DocsEvent) {
	if event.Kind != Created {
		return
	}

	path, err := entity.NewSafePath(event.Path)
	if err != nil {
		s.logger.Debug("dropping path outside a user directory", "path", event.Path, "error", err)
		return
	}

	loc, err := entity.NewLocation(path)
	if err != nil {
		s.logger.Debug("dropping unsupported file", "path", event.Path, "error", err)
		return
	}

	s.publ.Send(eventbus.NewDocsEvent(loc))
}

// Package indexer implements the Indexer Service pipeline stage (spec
// §4.10): it writes extracted text into the search index and announces the
// result.
package indexer

import (
	"context"
	"log/slog"

	"github.com/devzbysiu/dox-sub000/internal/entity"
	"github.com/devzbysiu/dox-sub000/internal/eventbus"
)

// Index is the capability the Indexer Service depends on instead of the
// concrete searchindex.Index, so it can be exercised against a fake.
type Index interface {
	Index(user entity.User, details []entity.DocDetails) error
}

// Service is the Indexer Service pipeline stage.
type Service struct {
	bus    *eventbus.Bus
	idx    Index
	logger *slog.Logger
}

// NewService builds an Indexer Service.
func NewService(bus *eventbus.Bus, idx Index, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		bus:    bus,
		idx:    idx,
		logger: logger.With("component", "indexer-service"),
	}
}

// Run subscribes to the bus until ctx is cancelled. Unlike the other
// pipeline stages this one does not use a worker pool: writes to a given
// user's segment file must be serialized, and the Index implementation
// itself already guards that with its own mutex, so handling events
// sequentially here is both simple and correct.
func (s *Service) Run(ctx context.Context) {
	sub := s.bus.Subscriber()
	defer sub.Close()

	for {
		event, err := sub.Recv(ctx)
		if err != nil {
			return
		}
		if event.Kind == eventbus.TextExtracted {
			s.handle(event)
		}
	}
}

func (s *Service) handle(event eventbus.Event) {
	if len(event.Details) == 0 {
		return
	}
	if err := s.idx.Index(event.User, event.Details); err != nil {
		s.logger.Error("failed to index document batch", "error", err)
		return
	}
	s.bus.Publisher().Send(eventbus.IndexedEvent(event.Details))
}

package extractor

import (
	"context"
	"log/slog"

	"github.com/devzbysiu/dox-sub000/internal/entity"
	"github.com/devzbysiu/dox-sub000/internal/eventbus"
	"github.com/devzbysiu/dox-sub000/internal/pipeline/workerpool"
)

// DefaultPoolSize is the fixed worker count backing the service's
// extraction pool.
const DefaultPoolSize = 4

// Service is the Extractor Service pipeline stage (spec §4.8).
type Service struct {
	bus     *eventbus.Bus
	factory *Factory
	pool    *workerpool.Pool
	logger  *slog.Logger
}

// NewService builds an Extractor Service.
func NewService(bus *eventbus.Bus, factory *Factory, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		bus:     bus,
		factory: factory,
		pool:    workerpool.New(DefaultPoolSize),
		logger:  logger.With("component", "extractor-service"),
	}
}

// Run subscribes to the bus until ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	sub := s.bus.Subscriber()
	defer sub.Close()
	defer s.pool.Close()

	for {
		event, err := sub.Recv(ctx)
		if err != nil {
			return
		}
		if event.Kind == eventbus.DocsMoved {
			s.extract(event.Location)
		}
	}
}

func (s *Service) extract(loc entity.Location) {
	publ := s.bus.Publisher()
	s.pool.Submit(func() {
		extractor, err := s.factory.From(loc.Extension())
		if err != nil {
			s.logger.Error("no extractor for extension", "extension", loc.Extension(), "error", err)
			return
		}

		details, err := extractor.ExtractText(loc)
		if err != nil {
			s.logger.Error("extraction failed", "error", err)
			return
		}

		user, err := userFromLocation(loc)
		if err != nil {
			s.logger.Error("could not derive user from location", "error", err)
			return
		}

		publ.Send(eventbus.TextExtractedEvent(user, details))
		publ.Send(eventbus.EncryptDocumentEvent(loc))
	})
}

// userFromLocation decodes the owning user from the first path's parent
// directory name, per spec §4.8.
func userFromLocation(loc entity.Location) (entity.User, error) {
	return entity.UserFromDir(loc.Paths()[0].ParentName())
}

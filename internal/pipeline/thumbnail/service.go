package thumbnail

import (
	"context"
	"log/slog"

	"github.com/devzbysiu/dox-sub000/internal/entity"
	"github.com/devzbysiu/dox-sub000/internal/eventbus"
	"github.com/devzbysiu/dox-sub000/internal/fs"
	"github.com/devzbysiu/dox-sub000/internal/pipeline/workerpool"
)

// DefaultPoolSize is the reference implementation's fixed worker count.
const DefaultPoolSize = 4

// Service is the Thumbnail Service pipeline stage (spec §4.7).
type Service struct {
	bus        *eventbus.Bus
	filesystem fs.Filesystem
	factory    *Factory
	thumbsDir  string
	pool       *workerpool.Pool
	logger     *slog.Logger
}

// NewService builds a Thumbnail Service writing into thumbsDir.
func NewService(bus *eventbus.Bus, filesystem fs.Filesystem, factory *Factory, thumbsDir string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		bus:        bus,
		filesystem: filesystem,
		factory:    factory,
		thumbsDir:  thumbsDir,
		pool:       workerpool.New(DefaultPoolSize),
		logger:     logger.With("component", "thumbnail-service"),
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
		switch event.Kind {
		case eventbus.DocsMoved:
			s.makeThumbnail(event.Location)
		case eventbus.ThumbnailEncryptionFailed:
			s.removeThumbnail(event.Location)
		default:
			// event not supported in thumbnail service
		}
	}
}

func (s *Service) makeThumbnail(loc entity.Location) {
	publ := s.bus.Publisher()
	s.pool.Submit(func() {
		thumbnailer, err := s.factory.From(loc.Extension())
		if err != nil {
			s.logger.Error("no thumbnailer for extension", "extension", loc.Extension(), "error", err)
			return
		}

		thumbLoc, err := thumbnailer.MkThumbnail(loc, s.thumbsDir)
		if err != nil {
			s.logger.Error("failed to make thumbnail", "error", err)
			return
		}

		publ.Send(eventbus.ThumbnailMadeEvent(thumbLoc))
		publ.Send(eventbus.EncryptThumbnailEvent(thumbLoc))
	})
}

func (s *Service) removeThumbnail(loc entity.Location) {
	publ := s.bus.Publisher()
	s.pool.Submit(func() {
		for _, path := range loc.Paths() {
			if err := s.filesystem.RmFile(path); err != nil {
				s.logger.Error("failed to remove thumbnail", "path", path, "error", err)
			}
		}
		publ.Send(eventbus.ThumbnailRemovedEvent())
	})
}

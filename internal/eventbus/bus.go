package eventbus

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// DefaultCapacity is the default size of each subscriber's ring, matching
// the reference implementation's fixed 1024-slot bus.
const DefaultCapacity = 1024

// ErrClosed is returned by Recv once the bus or the subscriber has been
// closed and no further events will arrive.
var ErrClosed = errors.New("eventbus: closed")

// Bus is an in-process publish/subscribe broadcaster. Every Subscriber owns
// a bounded ring channel; Publish never blocks on a slow subscriber — once a
// subscriber's ring is full, its oldest undelivered event is dropped to make
// room for the new one. This generalizes the registry-of-channels shape this
// stack already uses for its SSE broadcaster into the bounded,
// overwrite-on-full semantics the pipeline requires.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[uuid.UUID]*Subscriber
	capacity    int
	logger      *slog.Logger
}

// New builds a Bus with the default 1024-event-per-subscriber capacity.
func New(logger *slog.Logger) *Bus {
	return NewWithCapacity(DefaultCapacity, logger)
}

// NewWithCapacity builds a Bus whose subscriber rings hold at most capacity
// undelivered events each.
func NewWithCapacity(capacity int, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subscribers: make(map[uuid.UUID]*Subscriber),
		capacity:    capacity,
		logger:      logger.With("component", "eventbus"),
	}
}

// Publisher is a handle used to send events onto the bus.
type Publisher struct {
	bus *Bus
}

// Publisher returns a handle for sending events.
func (b *Bus) Publisher() *Publisher {
	return &Publisher{bus: b}
}

// Send broadcasts event to every currently registered subscriber. It never
// blocks: a subscriber whose ring is full has its oldest event evicted.
func (p *Publisher) Send(event Event) {
	p.bus.mu.RLock()
	defer p.bus.mu.RUnlock()

	for _, sub := range p.bus.subscribers {
		sub.deliver(event, p.bus.logger)
	}
}

// Subscriber is a handle that receives every event published after it
// subscribed, in publish order.
type Subscriber struct {
	id     uuid.UUID
	bus    *Bus
	ring   chan Event
	closed chan struct{}
	once   sync.Once
}

// Subscriber registers a new subscriber and returns its handle. The caller
// must call Recv promptly and eventually Close when done.
func (b *Bus) Subscriber() *Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &Subscriber{
		id:     uuid.New(),
		bus:    b,
		ring:   make(chan Event, b.capacity),
		closed: make(chan struct{}),
	}
	b.subscribers[sub.id] = sub
	return sub
}

func (s *Subscriber) deliver(event Event, logger *slog.Logger) {
	select {
	case s.ring <- event:
		return
	default:
	}
	// Ring full: drop the oldest slot to make room, then retry once. A
	// concurrent Recv may have already freed space, which is fine either way.
	select {
	case <-s.ring:
		logger.Warn("subscriber ring full, dropping oldest event", "subscriber", s.id)
	default:
	}
	select {
	case s.ring <- event:
	default:
		// Another publisher raced us and refilled the ring; the event is
		// lost, which is the documented overwrite hazard (spec §4.1).
		logger.Warn("event dropped after eviction race", "subscriber", s.id)
	}
}

// Recv blocks until an event is available, ctx is cancelled, or the
// subscriber/bus is closed.
func (s *Subscriber) Recv(ctx context.Context) (Event, error) {
	select {
	case event := <-s.ring:
		return event, nil
	case <-s.closed:
		return Event{}, ErrClosed
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
}

// Close unregisters the subscriber from the bus. Any blocked Recv returns
// ErrClosed.
func (s *Subscriber) Close() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subscribers, s.id)
		s.bus.mu.Unlock()
		close(s.closed)
	})
}

// SubscriberCount reports how many subscribers are currently registered,
// useful for tests and diagnostics.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

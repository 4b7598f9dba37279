package notifier_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/devzbysiu/dox-sub000/internal/eventbus"
	"github.com/devzbysiu/dox-sub000/internal/notifier"
)

type emptyStore struct{}

func (emptyStore) Subscriptions() []notifier.Subscription { return nil }

func TestNotifier_FlushWithoutSubscriptionsKeepsRunning(t *testing.T) {
	bus := eventbus.New(nil)
	n := notifier.New(bus, emptyStore{}, notifier.VAPIDKeys{}, 50*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go n.Run(ctx)

	// Give the subscriber goroutine a moment to register before publishing,
	// otherwise the event may be sent before Run has subscribed.
	time.Sleep(20 * time.Millisecond)

	publ := bus.Publisher()
	publ.Send(eventbus.PipelineFinishedEvent())
	publ.Send(eventbus.PipelineFinishedEvent())

	// With no subscriptions registered, flush has nothing to deliver to, but
	// it must not panic and the notifier must keep running.
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 1, bus.SubscriberCount())
}

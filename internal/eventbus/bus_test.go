package eventbus_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devzbysiu/dox-sub000/internal/eventbus"
)

func TestBus_SubscriberReceivesPublishedEvent(t *testing.T) {
	bus := eventbus.New(nil)
	sub := bus.Subscriber()
	defer sub.Close()

	bus.Publisher().Send(eventbus.PipelineFinishedEvent())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	event, err := sub.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, eventbus.PipelineFinished, event.Kind)
}

func TestBus_MultipleSubscribersEachSeeEveryEvent(t *testing.T) {
	bus := eventbus.New(nil)
	subA := bus.Subscriber()
	subB := bus.Subscriber()
	defer subA.Close()
	defer subB.Close()

	bus.Publisher().Send(eventbus.ThumbnailRemovedEvent())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	eventA, err := subA.Recv(ctx)
	require.NoError(t, err)
	eventB, err := subB.Recv(ctx)
	require.NoError(t, err)

	assert.Equal(t, eventbus.ThumbnailRemoved, eventA.Kind)
	assert.Equal(t, eventbus.ThumbnailRemoved, eventB.Kind)
}

func TestBus_EventsObservedInPublishOrder(t *testing.T) {
	bus := eventbus.New(nil)
	sub := bus.Subscriber()
	defer sub.Close()

	publ := bus.Publisher()
	publ.Send(eventbus.ThumbnailRemovedEvent())
	publ.Send(eventbus.PipelineFinishedEvent())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	first, err := sub.Recv(ctx)
	require.NoError(t, err)
	second, err := sub.Recv(ctx)
	require.NoError(t, err)

	assert.Equal(t, eventbus.ThumbnailRemoved, first.Kind)
	assert.Equal(t, eventbus.PipelineFinished, second.Kind)
}

func TestBus_OverwritesOldestWhenRingFull(t *testing.T) {
	bus := eventbus.NewWithCapacity(2, nil)
	sub := bus.Subscriber()
	defer sub.Close()

	publ := bus.Publisher()
	publ.Send(eventbus.ThumbnailRemovedEvent()) // will be evicted
	publ.Send(eventbus.PipelineFinishedEvent())
	publ.Send(eventbus.IndexedEvent(nil))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	first, err := sub.Recv(ctx)
	require.NoError(t, err)
	second, err := sub.Recv(ctx)
	require.NoError(t, err)

	assert.Equal(t, eventbus.PipelineFinished, first.Kind)
	assert.Equal(t, eventbus.Indexed, second.Kind)
}

func TestBus_CloseUnblocksRecv(t *testing.T) {
	bus := eventbus.New(nil)
	sub := bus.Subscriber()

	done := make(chan error, 1)
	go func() {
		_, err := sub.Recv(context.Background())
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	sub.Close()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, eventbus.ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("Recv did not unblock after Close")
	}
}

package watcher_test

import (
	"context"
	"encoding/base64"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devzbysiu/dox-sub000/internal/eventbus"
	"github.com/devzbysiu/dox-sub000/internal/watcher"
)

type fakeSource struct {
	events chan watcher.DocsEvent
	errs   chan error
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		events: make(chan watcher.DocsEvent, 8),
		errs:   make(chan error, 8),
	}
}

func (f *fakeSource) Events() <-chan watcher.DocsEvent { return f.events }
func (f *fakeSource) Errors() <-chan error             { return f.errs }

func TestDocsWatcherService_PublishesNewDocsForCreatedPathInUserDir(t *testing.T) {
	src := newFakeSource()
	bus := eventbus.New(nil)
	sub := bus.Subscriber()
	defer sub.Close()

	svc := watcher.NewDocsWatcherService(src, bus, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Run(ctx)

	dir := base64.StdEncoding.EncodeToString([]byte("fake@email.com"))
	src.events <- watcher.DocsEvent{Kind: watcher.Created, Path: filepath.Join(dir, "doc1.png")}

	recvCtx, recvCancel := context.WithTimeout(context.Background(), time.Second)
	defer recvCancel()
	event, err := sub.Recv(recvCtx)
	require.NoError(t, err)
	assert.Equal(t, eventbus.NewDocs, event.Kind)
}

func TestDocsWatcherService_DropsPathOutsideUserDir(t *testing.T) {
	src := newFakeSource()
	bus := eventbus.New(nil)
	sub := bus.Subscriber()
	defer sub.Close()

	svc := watcher.NewDocsWatcherService(src, bus, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Run(ctx)

	src.events <- watcher.DocsEvent{Kind: watcher.Created, Path: "not-base64-!!!/doc1.png"}
	src.events <- watcher.DocsEvent{Kind: watcher.Other, Path: "irrelevant"}

	recvCtx, recvCancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer recvCancel()
	_, err := sub.Recv(recvCtx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

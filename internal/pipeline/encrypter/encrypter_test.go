package encrypter_test

import (
	"context"
	"encoding/base64"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devzbysiu/dox-sub000/internal/cipher"
	"github.com/devzbysiu/dox-sub000/internal/entity"
	"github.com/devzbysiu/dox-sub000/internal/eventbus"
	"github.com/devzbysiu/dox-sub000/internal/fs"
	"github.com/devzbysiu/dox-sub000/internal/pipeline/encrypter"
)

func locFor(t *testing.T, local *fs.LocalFilesystem, root, filename string) entity.Location {
	t.Helper()
	dir := base64.StdEncoding.EncodeToString([]byte("fake@email.com"))
	path, err := entity.NewSafePath(filepath.Join(root, dir, filename))
	require.NoError(t, err)
	require.NoError(t, local.Save(path, []byte("plaintext bytes")))
	loc, err := entity.NewLocation(path)
	require.NoError(t, err)
	return loc
}

func recvWithin(t *testing.T, sub *eventbus.Subscriber, d time.Duration) (eventbus.Event, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return sub.Recv(ctx)
}

func TestEncrypter_BothHalvesSucceed_PublishesPipelineFinished(t *testing.T) {
	bus := eventbus.New(nil)
	local := fs.NewLocalFilesystem()
	root := t.TempDir()
	thumbLoc := locFor(t, local, root, "doc1.png")
	docLoc := locFor(t, local, root, "doc1.png")

	enc := encrypter.New(bus, local, cipher.New(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go enc.Run(ctx)

	sub := bus.Subscriber()
	defer sub.Close()
	publ := bus.Publisher()

	publ.Send(eventbus.EncryptThumbnailEvent(thumbLoc))
	publ.Send(eventbus.EncryptDocumentEvent(docLoc))

	echoThumb, err := recvWithin(t, sub, 2*time.Second)
	require.NoError(t, err)
	require.Equal(t, eventbus.EncryptThumbnail, echoThumb.Kind)
	echoDoc, err := recvWithin(t, sub, 2*time.Second)
	require.NoError(t, err)
	require.Equal(t, eventbus.EncryptDocument, echoDoc.Kind)

	event, err := recvWithin(t, sub, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, eventbus.PipelineFinished, event.Kind)
}

type failingFilesystem struct {
	fs.Filesystem
}

func (f failingFilesystem) Load(path entity.SafePath) ([]byte, error) {
	return nil, errors.New("boom")
}

func TestEncrypter_FailedHalf_PublishesFailureNotPipelineFinished(t *testing.T) {
	bus := eventbus.New(nil)
	local := fs.NewLocalFilesystem()
	root := t.TempDir()
	thumbLoc := locFor(t, local, root, "doc1.png")

	enc := encrypter.New(bus, failingFilesystem{}, cipher.New(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go enc.Run(ctx)

	sub := bus.Subscriber()
	defer sub.Close()
	publ := bus.Publisher()

	publ.Send(eventbus.EncryptThumbnailEvent(thumbLoc))

	echo, err := recvWithin(t, sub, 2*time.Second)
	require.NoError(t, err)
	require.Equal(t, eventbus.EncryptThumbnail, echo.Kind)

	event, err := recvWithin(t, sub, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, eventbus.ThumbnailEncryptionFailed, event.Kind)

	_, err = recvWithin(t, sub, 300*time.Millisecond)
	assert.Error(t, err, "PipelineFinished must not be published after a failure")
}

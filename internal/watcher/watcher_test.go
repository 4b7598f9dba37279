package watcher_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devzbysiu/dox-sub000/internal/watcher"
)

func TestWatcher_EmitsCreatedForNewFile(t *testing.T) {
	root := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w, err := watcher.New(ctx, root, 20*time.Millisecond, nil)
	require.NoError(t, err)

	target := filepath.Join(root, "doc1.png")
	require.NoError(t, os.WriteFile(target, []byte("bytes"), 0o644))

	select {
	case event := <-w.Events():
		assert.Equal(t, watcher.Created, event.Kind)
		assert.Equal(t, target, event.Path)
	case <-time.After(2 * time.Second):
		t.Fatal("did not observe Created event")
	}
}

// TestWatcher_EmitsCreatedForFileInNewDirectory covers a brand new user's
// first upload: the user's directory does not exist yet, so creating it and
// writing into it in the same moment (internal/fs.LocalFilesystem.Save does
// an os.MkdirAll before it ever writes a file) must still fire a Created
// event for the file, even though that directory was never explicitly
// watched before this moment.
func TestWatcher_EmitsCreatedForFileInNewDirectory(t *testing.T) {
	root := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w, err := watcher.New(ctx, root, 20*time.Millisecond, nil)
	require.NoError(t, err)

	userDir := filepath.Join(root, "bmV3dXNlcg==")
	require.NoError(t, os.MkdirAll(userDir, 0o755))
	target := filepath.Join(userDir, "doc1.png")
	require.NoError(t, os.WriteFile(target, []byte("bytes"), 0o644))

	select {
	case event := <-w.Events():
		assert.Equal(t, watcher.Created, event.Kind)
		assert.Equal(t, target, event.Path)
	case <-time.After(2 * time.Second):
		t.Fatal("did not observe Created event for file in newly created directory")
	}
}

//go:build !linux

package volume

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFSEventBackend(t *testing.T) {
	opts := Options{MountRoot: t.TempDir()}
	opts.setDefaults()

	backend, err := newFSEventBackend(discardLogger(), opts)
	require.NoError(t, err)
	require.NotNil(t, backend)

	assert.NoError(t, backend.Stop())
}

func TestFSEventBackend_DetectsNewVolume(t *testing.T) {
	root := t.TempDir()
	opts := Options{MountRoot: root, WatchInterval: time.Second}

	backend, err := newFSEventBackend(discardLogger(), opts)
	require.NoError(t, err)
	defer backend.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go backend.Start(ctx)

	require.NoError(t, os.Mkdir(filepath.Join(root, "RECORDER"), 0o755))

	select {
	case evt := <-backend.Events():
		assert.Equal(t, EventMountDetected, evt.Type)
		assert.Equal(t, "RECORDER", evt.Name)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for mount-detected event")
	}
}

func TestFSEventBackend_InvalidMountRootFails(t *testing.T) {
	opts := Options{MountRoot: filepath.Join(t.TempDir(), "does-not-exist")}
	opts.setDefaults()

	_, err := newFSEventBackend(discardLogger(), opts)
	assert.Error(t, err)
}

package volume

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptions_SetDefaults(t *testing.T) {
	opts := Options{}
	opts.setDefaults()

	assert.Equal(t, defaultMountRoot, opts.MountRoot)
	assert.Equal(t, defaultWatchInterval, opts.WatchInterval)
}

func TestOptions_SetDefaultsPreservesExplicitValues(t *testing.T) {
	opts := Options{MountRoot: "/media", WatchInterval: 500 * time.Millisecond}
	opts.setDefaults()

	assert.Equal(t, "/media", opts.MountRoot)
	assert.Equal(t, 500*time.Millisecond, opts.WatchInterval)
}

func TestNew_ReturnsWorkingWatcher(t *testing.T) {
	w, err := New(discardLogger(), Options{MountRoot: t.TempDir(), WatchInterval: 50 * time.Millisecond})
	require.NoError(t, err)
	require.NotNil(t, w)

	assert.NotNil(t, w.Events())
	assert.NotNil(t, w.Errors())
	assert.NoError(t, w.Stop())
}

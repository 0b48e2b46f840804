package volume

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"
)

// defaultMountRoot is where removable volumes surface on macOS, the
// primary desktop target for this agent.
const defaultMountRoot = "/Volumes"

// defaultWatchInterval bounds how stale a reconciliation pass may be when
// no filesystem or bus event arrives to trigger one sooner.
const defaultWatchInterval = 3 * time.Second

// Options configures the volume watcher.
type Options struct {
	// MountRoot is the directory whose entries are treated as candidate
	// volumes. Defaults to /Volumes.
	MountRoot string

	// WatchInterval bounds the periodic reconciliation pass run in
	// addition to any event-driven trigger. Defaults to 3 seconds.
	WatchInterval time.Duration
}

func (o *Options) setDefaults() {
	if o.MountRoot == "" {
		o.MountRoot = defaultMountRoot
	}
	if o.WatchInterval == 0 {
		o.WatchInterval = defaultWatchInterval
	}
}

// Watcher monitors the mount root for recorder volumes appearing and
// disappearing.
type Watcher struct {
	backend Backend
	logger  *slog.Logger
}

// New creates a volume watcher. It selects the best backend for the
// current platform:
//   - Linux: subscribes to org.freedesktop.UDisks2 over D-Bus.
//   - Others (macOS, Windows): watches the mount root with fsnotify.
//
// Either backend falls back to pure polling at WatchInterval if its
// event subscription fails to initialize.
func New(logger *slog.Logger, opts Options) (*Watcher, error) {
	opts.setDefaults()

	backend, err := newPlatformBackend(logger, opts)
	if err != nil {
		return nil, fmt.Errorf("create volume watcher backend: %w", err)
	}

	return &Watcher{backend: backend, logger: logger}, nil
}

func newPlatformBackend(logger *slog.Logger, opts Options) (Backend, error) {
	if runtime.GOOS == "linux" {
		backend, err := newDBusBackend(logger, opts)
		if err == nil {
			logger.Info("using UDisks2 dbus backend")
			return backend, nil
		}
		logger.Warn("udisks2 dbus backend unavailable, falling back to polling", "error", err)
		return newPollBackend(logger, opts)
	}

	backend, err := newFSEventBackend(logger, opts)
	if err == nil {
		logger.Info("using fsnotify backend with periodic reconcile", "platform", runtime.GOOS)
		return backend, nil
	}
	logger.Warn("fsnotify backend unavailable, falling back to polling", "error", err)
	return newPollBackend(logger, opts)
}

// Start begins watching for mount changes. Blocks until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	return w.backend.Start(ctx)
}

// Stop stops the watcher and releases resources.
func (w *Watcher) Stop() error {
	return w.backend.Stop()
}

// Events returns the channel for receiving mount-detected/mount-removed
// events.
func (w *Watcher) Events() <-chan Event {
	return w.backend.Events()
}

// Errors returns the channel for receiving non-fatal backend errors.
func (w *Watcher) Errors() <-chan error {
	return w.backend.Errors()
}

//go:build !linux

package volume

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// fsEventBackend watches the mount root non-recursively with fsnotify and
// runs a reconciliation pass whenever it fires, plus on a fixed timer as a
// backstop for events the OS coalesces or drops.
type fsEventBackend struct {
	logger  *slog.Logger
	opts    Options
	watcher *fsnotify.Watcher
	known   map[string]struct{}
	mu      sync.Mutex

	events chan Event
	errors chan error
	done   chan struct{}
	wg     sync.WaitGroup
}

func newFSEventBackend(logger *slog.Logger, opts Options) (*fsEventBackend, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	if err := watcher.Add(opts.MountRoot); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch mount root %s: %w", opts.MountRoot, err)
	}

	return &fsEventBackend{
		logger:  logger,
		opts:    opts,
		watcher: watcher,
		known:   make(map[string]struct{}),
		events:  make(chan Event, 32),
		errors:  make(chan error, 8),
		done:    make(chan struct{}),
	}, nil
}

func (b *fsEventBackend) Start(ctx context.Context) error {
	b.wg.Add(1)
	defer b.wg.Done()

	b.reconcile()

	ticker := time.NewTicker(b.opts.WatchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-b.done:
			return nil
		case _, ok := <-b.watcher.Events:
			if !ok {
				return nil
			}
			b.reconcile()
		case err, ok := <-b.watcher.Errors:
			if !ok {
				return nil
			}
			select {
			case b.errors <- err:
			case <-b.done:
			}
		case <-ticker.C:
			b.reconcile()
		}
	}
}

func (b *fsEventBackend) reconcile() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.known = reconcileMounts(b.opts.MountRoot, b.known, b.emitEvent)
}

func (b *fsEventBackend) emitEvent(e Event) {
	select {
	case b.events <- e:
	case <-b.done:
	}
}

func (b *fsEventBackend) Events() <-chan Event { return b.events }
func (b *fsEventBackend) Errors() <-chan error { return b.errors }

func (b *fsEventBackend) Stop() error {
	close(b.done)
	b.watcher.Close()
	b.wg.Wait()
	close(b.events)
	close(b.errors)
	return nil
}

package volume

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// pollBackend reconciles the mount root purely on a timer. It is used
// whenever a platform's event-driven backend fails to initialize.
type pollBackend struct {
	logger *slog.Logger
	opts   Options
	known  map[string]struct{}

	events chan Event
	errors chan error
	done   chan struct{}
	wg     sync.WaitGroup
}

func newPollBackend(logger *slog.Logger, opts Options) (*pollBackend, error) {
	return &pollBackend{
		logger: logger,
		opts:   opts,
		known:  make(map[string]struct{}),
		events: make(chan Event, 32),
		errors: make(chan error, 8),
		done:   make(chan struct{}),
	}, nil
}

func (b *pollBackend) Start(ctx context.Context) error {
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
		case <-ticker.C:
			b.reconcile()
		}
	}
}

func (b *pollBackend) reconcile() {
	b.known = reconcileMounts(b.opts.MountRoot, b.known, b.emitEvent)
}

func (b *pollBackend) emitEvent(e Event) {
	select {
	case b.events <- e:
	case <-b.done:
	}
}

func (b *pollBackend) Events() <-chan Event { return b.events }
func (b *pollBackend) Errors() <-chan error { return b.errors }

func (b *pollBackend) Stop() error {
	close(b.done)
	b.wg.Wait()
	close(b.events)
	close(b.errors)
	return nil
}

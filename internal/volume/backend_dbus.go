//go:build linux

package volume

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
)

const udisks2BusName = "org.freedesktop.UDisks2"

// dbusBackend subscribes to UDisks2's ObjectManager signals over the
// system bus and runs a reconciliation pass whenever a block device is
// added or removed, plus on a fixed timer as a backstop.
type dbusBackend struct {
	logger  *slog.Logger
	opts    Options
	conn    *dbus.Conn
	signals chan *dbus.Signal
	known   map[string]struct{}
	mu      sync.Mutex

	events chan Event
	errors chan error
	done   chan struct{}
	wg     sync.WaitGroup
}

func newDBusBackend(logger *slog.Logger, opts Options) (*dbusBackend, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("connect to system bus: %w", err)
	}

	matchRule := fmt.Sprintf(
		"type='signal',sender='%s',interface='org.freedesktop.DBus.ObjectManager'",
		udisks2BusName,
	)
	if call := conn.BusObject().Call("org.freedesktop.DBus.AddMatch", 0, matchRule); call.Err != nil {
		conn.Close()
		return nil, fmt.Errorf("subscribe to udisks2 signals: %w", call.Err)
	}

	signals := make(chan *dbus.Signal, 16)
	conn.Signal(signals)

	return &dbusBackend{
		logger:  logger,
		opts:    opts,
		conn:    conn,
		signals: signals,
		known:   make(map[string]struct{}),
		events:  make(chan Event, 32),
		errors:  make(chan error, 8),
		done:    make(chan struct{}),
	}, nil
}

func (b *dbusBackend) Start(ctx context.Context) error {
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
		case sig, ok := <-b.signals:
			if !ok {
				return nil
			}
			if isObjectManagerSignal(sig) {
				b.reconcile()
			}
		case <-ticker.C:
			b.reconcile()
		}
	}
}

func isObjectManagerSignal(sig *dbus.Signal) bool {
	switch sig.Name {
	case "org.freedesktop.DBus.ObjectManager.InterfacesAdded",
		"org.freedesktop.DBus.ObjectManager.InterfacesRemoved":
		return true
	default:
		return false
	}
}

func (b *dbusBackend) reconcile() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.known = reconcileMounts(b.opts.MountRoot, b.known, b.emitEvent)
}

func (b *dbusBackend) emitEvent(e Event) {
	select {
	case b.events <- e:
	case <-b.done:
	}
}

func (b *dbusBackend) Events() <-chan Event { return b.events }
func (b *dbusBackend) Errors() <-chan error { return b.errors }

func (b *dbusBackend) Stop() error {
	close(b.done)
	b.conn.RemoveSignal(b.signals)
	b.conn.Close()
	b.wg.Wait()
	close(b.events)
	close(b.errors)
	return nil
}

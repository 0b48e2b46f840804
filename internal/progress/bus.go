package progress

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fieldnote/recorder-agent/internal/id"
)

// Client represents one connected SSE listener (the host UI).
type Client struct {
	ID          string
	EventChan   chan Event
	Done        chan struct{}
	ConnectedAt time.Time
}

// Bus fans events out to every connected Client. Every pipeline component
// holds a reference to Emit; only the command surface connects clients.
type Bus struct {
	mu                sync.RWMutex
	clients           map[string]*Client
	events            chan Event
	logger            *slog.Logger
	heartbeatInterval time.Duration
	wg                sync.WaitGroup

	shutdownMu sync.RWMutex
	shutdown   bool
}

// NewBus creates an event bus. Start must be called once, in a goroutine,
// before any client connects.
func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		clients:           make(map[string]*Client),
		events:            make(chan Event, 1000),
		logger:            logger,
		heartbeatInterval: 30 * time.Second,
	}
}

// Start runs the broadcast loop until ctx is cancelled.
func (b *Bus) Start(ctx context.Context) {
	b.wg.Add(1)
	defer b.wg.Done()

	ticker := time.NewTicker(b.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-b.events:
			if !ok {
				b.closeAllClients()
				return
			}
			b.broadcast(event)
		case <-ticker.C:
			b.broadcast(newHeartbeatEvent())
		case <-ctx.Done():
			b.closeAllClients()
			return
		}
	}
}

// Shutdown drains any queued events and waits for the broadcast loop to
// exit, bounded by ctx.
func (b *Bus) Shutdown(ctx context.Context) {
	b.shutdownMu.Lock()
	b.shutdown = true
	close(b.events)
	b.shutdownMu.Unlock()

	done := make(chan struct{})
	go func() {
		for event := range b.events {
			b.broadcast(event)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		b.logger.Warn("progress bus shutdown timed out, events may be lost")
	}

	b.wg.Wait()
}

// Emit queues an event for broadcast. Non-blocking: if the internal queue
// is full the event is dropped and logged, matching the host's SSE-is-best-
// effort contract.
func (b *Bus) Emit(event Event) {
	b.shutdownMu.RLock()
	defer b.shutdownMu.RUnlock()

	if b.shutdown {
		return
	}

	select {
	case b.events <- event:
	default:
		b.logger.Error("progress event queue full, dropping event", slog.String("type", string(event.Type)))
	}
}

// Connect registers a new listener and returns it. The host reads from
// Client.EventChan to drive an SSE response.
func (b *Bus) Connect() (*Client, error) {
	clientID, err := id.Generate("progress")
	if err != nil {
		return nil, err
	}

	client := &Client{
		ID:          clientID,
		EventChan:   make(chan Event, 100),
		Done:        make(chan struct{}),
		ConnectedAt: time.Now(),
	}

	b.mu.Lock()
	b.clients[client.ID] = client
	b.mu.Unlock()

	return client, nil
}

// Disconnect removes a client and closes its channels.
func (b *Bus) Disconnect(clientID string) {
	b.mu.Lock()
	client, ok := b.clients[clientID]
	if !ok {
		b.mu.Unlock()
		return
	}
	delete(b.clients, clientID)
	b.mu.Unlock()

	close(client.Done)
	close(client.EventChan)
}

// ClientCount returns the number of connected listeners.
func (b *Bus) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

func (b *Bus) broadcast(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, client := range b.clients {
		select {
		case client.EventChan <- event:
		default:
			b.logger.Warn("dropped progress event for slow client",
				slog.String("client_id", client.ID),
				slog.String("event_type", string(event.Type)))
		}
	}
}

func (b *Bus) closeAllClients() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, client := range b.clients {
		close(client.Done)
		close(client.EventChan)
	}
	b.clients = make(map[string]*Client)
}

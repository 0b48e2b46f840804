package volume

import "context"

// Backend defines the platform-specific volume mount detection
// implementation.
type Backend interface {
	// Start begins watching for mount changes. Blocks until ctx is
	// cancelled or Stop is called.
	Start(ctx context.Context) error

	// Stop stops the backend and releases all resources.
	Stop() error

	// Events returns the channel for receiving mount-detected and
	// mount-removed events.
	Events() <-chan Event

	// Errors returns the channel for receiving non-fatal backend errors.
	Errors() <-chan error
}

// Package providers contains dependency injection providers for the
// recorder agent.
package providers

import "time"

const (
	// shutdownTimeout bounds how long graceful shutdown waits for the
	// command server and volume watcher to stop.
	shutdownTimeout = 30 * time.Second
)

//go:build linux

package volume

import (
	"fmt"
	"log/slog"
)

// newFSEventBackend is a stub that should never be called on Linux. It
// exists only to satisfy the compiler when volume.go references it.
func newFSEventBackend(logger *slog.Logger, opts Options) (Backend, error) {
	return nil, fmt.Errorf("fsnotify mount backend not available on this platform")
}

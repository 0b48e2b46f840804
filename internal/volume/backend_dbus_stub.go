//go:build !linux

package volume

import (
	"fmt"
	"log/slog"
)

// newDBusBackend is a stub that should never be called on non-Linux
// platforms. It exists only to satisfy the compiler when volume.go
// references it.
func newDBusBackend(logger *slog.Logger, opts Options) (Backend, error) {
	return nil, fmt.Errorf("udisks2 dbus backend not available on this platform")
}

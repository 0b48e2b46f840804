//go:build linux || darwin

package diskspace

import (
	"fmt"

	"golang.org/x/sys/unix"
)

func availableBytes(path string) (int64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", path, err)
	}
	//nolint:gosec // G115: Bavail/Bsize are always non-negative in practice
	return int64(stat.Bavail) * int64(stat.Bsize), nil
}

// Package diskspace reports free space on the filesystem backing a path,
// so the orchestrator can cap staging at whichever is smaller: the
// configured storage quota or what the disk actually has left.
package diskspace

// Available returns the number of free bytes on the filesystem containing
// path. Platforms without a syscall-level statfs (see diskspace_other.go)
// report a very large value instead of an error, so the configured quota
// remains the only effective limit there.
func Available(path string) (int64, error) {
	return availableBytes(path)
}

// Package hashcopy streams file contents through SHA-256 while staging
// recordings into the local inbox, reporting progress as it goes.
package hashcopy

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"

	"github.com/fieldnote/recorder-agent/internal/errors"
	"github.com/fieldnote/recorder-agent/internal/progress"
)

// chunkSize is the fixed buffer size used for both hashing and copying.
const chunkSize = 1024 * 1024

// progressInterval is the minimum number of bytes consumed between
// hash-progress events.
const progressInterval = 5 * 1024 * 1024

// Hasher computes and reports SHA-256 digests over files.
type Hasher struct {
	bus *progress.Bus
}

// New creates a Hasher that emits hash-progress events on bus.
func New(bus *progress.Bus) *Hasher {
	return &Hasher{bus: bus}
}

// Hash computes the lowercase hex SHA-256 digest of path without copying
// it anywhere.
func (h *Hasher) Hash(batchID, path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", errors.IOf(err, "stat %s", path)
	}

	file, err := os.Open(path)
	if err != nil {
		return "", errors.IOf(err, "open %s", path)
	}
	defer file.Close()

	return h.streamHash(batchID, path, file, info.Size())
}

// CopyWithHash copies src to dst, creating dst's parent directories as
// needed, and returns the SHA-256 digest of the source stream. dst is
// fully flushed to disk before returning.
func (h *Hasher) CopyWithHash(batchID, src, dst string) (string, error) {
	info, err := os.Stat(src)
	if err != nil {
		return "", errors.IOf(err, "stat %s", src)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", errors.IOf(err, "create parent directory for %s", dst)
	}

	reader, err := os.Open(src)
	if err != nil {
		return "", errors.IOf(err, "open %s", src)
	}
	defer reader.Close()

	writer, err := os.Create(dst)
	if err != nil {
		return "", errors.IOf(err, "create %s", dst)
	}
	defer writer.Close()

	hasher := sha256.New()
	buf := make([]byte, chunkSize)
	var bytesHashed, lastProgress int64

	for {
		n, readErr := reader.Read(buf)
		if n > 0 {
			hasher.Write(buf[:n])
			if _, writeErr := writer.Write(buf[:n]); writeErr != nil {
				return "", errors.IOf(writeErr, "write %s", dst)
			}

			bytesHashed += int64(n)
			if bytesHashed-lastProgress >= progressInterval {
				lastProgress = bytesHashed
				h.emitProgress(batchID, src, bytesHashed, info.Size())
			}
		}

		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return "", errors.IOf(readErr, "read %s", src)
		}
	}

	if err := writer.Sync(); err != nil {
		return "", errors.IOf(err, "flush %s", dst)
	}

	digest := hex.EncodeToString(hasher.Sum(nil))
	h.emitProgress(batchID, src, info.Size(), info.Size())
	return digest, nil
}

func (h *Hasher) streamHash(batchID, path string, r io.Reader, totalBytes int64) (string, error) {
	hasher := sha256.New()
	buf := make([]byte, chunkSize)
	var bytesHashed, lastProgress int64

	for {
		n, readErr := r.Read(buf)
		if n > 0 {
			hasher.Write(buf[:n])
			bytesHashed += int64(n)
			if bytesHashed-lastProgress >= progressInterval {
				lastProgress = bytesHashed
				h.emitProgress(batchID, path, bytesHashed, totalBytes)
			}
		}

		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return "", errors.IOf(readErr, "read %s", path)
		}
	}

	digest := hex.EncodeToString(hasher.Sum(nil))
	h.emitProgress(batchID, path, totalBytes, totalBytes)
	return digest, nil
}

func (h *Hasher) emitProgress(batchID, path string, bytesHashed, totalBytes int64) {
	if h.bus == nil {
		return
	}
	h.bus.Emit(progress.NewHashProgressEvent(progress.HashProgressData{
		BatchID:     batchID,
		Path:        path,
		BytesHashed: bytesHashed,
		TotalBytes:  totalBytes,
	}))
}

package scanner

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/simonhull/audiometa"
	"github.com/simonhull/audiometa/m4a"
	"github.com/simonhull/audiometa/mp3"

	"github.com/fieldnote/recorder-agent/internal/errors"
)

// audioExtensions is the set of file extensions (without the leading dot,
// lowercase) treated as recordings worth importing.
var audioExtensions = map[string]struct{}{
	"wav":  {},
	"mp3":  {},
	"wma":  {},
	"m4a":  {},
	"flac": {},
	"ogg":  {},
}

// Entry describes one discovered audio file.
type Entry struct {
	Path           string
	Name           string
	Size           int64
	ModifiedMillis int64
	// RecorderCreatedAt is when the recorder itself captured the file,
	// read from embedded tag metadata (ID3v2 year for MP3, the
	// corresponding atom for M4A). Falls back to the file's mtime when
	// tags are absent, unreadable, or the format carries no year.
	RecorderCreatedAt time.Time
}

// Scanner enumerates audio files on a mounted volume.
type Scanner struct {
	logger *slog.Logger
}

// New creates a Scanner.
func New(logger *slog.Logger) *Scanner {
	return &Scanner{logger: logger}
}

// Scan walks root and returns every audio file found, sorted by
// ModifiedMillis descending. Directories whose name starts with a dot are
// skipped entirely. Errors enumerating a subtree are logged and skipped;
// the call fails only if root itself does not exist.
func (s *Scanner) Scan(ctx context.Context, root string) ([]Entry, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, errors.IOf(err, "scan root %s", root)
	}

	var entries []Entry

	walkErr := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			s.logger.Warn("skipping unreadable path during scan", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}

		if !isAudioFile(d.Name()) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			s.logger.Warn("skipping file with unreadable info", "path", path, "error", err)
			return nil
		}

		entries = append(entries, Entry{
			Path:              path,
			Name:              d.Name(),
			Size:              info.Size(),
			ModifiedMillis:    info.ModTime().UnixMilli(),
			RecorderCreatedAt: s.RecorderCreatedAt(path, info.ModTime()),
		})
		return nil
	})

	if walkErr != nil && walkErr != context.Canceled {
		s.logger.Warn("scan of subtree ended early", "root", root, "error", walkErr)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].ModifiedMillis > entries[j].ModifiedMillis
	})

	return entries, nil
}

// RecorderCreatedAt reads the embedded tag year from path and returns
// January 1 of that year, falling back to mtime when the format has no
// native parser, the file fails to parse, or no year tag is present.
func (s *Scanner) RecorderCreatedAt(path string, mtime time.Time) time.Time {
	f, err := os.Open(path) //#nosec G304 -- path comes from the scanner's own WalkDir traversal
	if err != nil {
		return mtime
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return mtime
	}

	format, err := audiometa.DetectFormat(f, stat.Size(), path)
	if err != nil {
		return mtime
	}

	var meta *audiometa.Metadata
	switch format {
	case audiometa.FormatMP3:
		meta, err = mp3.Parse(path)
	case audiometa.FormatM4A, audiometa.FormatM4B:
		meta, err = m4a.Parse(path)
	default:
		return mtime
	}
	if err != nil {
		s.logger.Warn("failed to read tag metadata for recorder created-at", "path", path, "error", err)
		return mtime
	}

	if meta.Year <= 0 {
		return mtime
	}
	return time.Date(meta.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
}

func isAudioFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	ext = strings.TrimPrefix(ext, ".")
	_, ok := audioExtensions[ext]
	return ok
}

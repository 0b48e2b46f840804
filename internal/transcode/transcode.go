// Package transcode converts oversized or hard-to-stream recordings into a
// small, uniform mono 16kHz format before upload.
package transcode

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/simonhull/audiometa"
	"github.com/simonhull/audiometa/mp3"

	"github.com/fieldnote/recorder-agent/internal/errors"
)

// largeWavThreshold is the size above which a .wav file is converted even
// though the format itself needs no codec change.
const largeWavThreshold = 50 * 1024 * 1024

// extraPathDirs are prepended to PATH when invoking ffmpeg. GUI-launched
// macOS apps don't inherit the user's shell PATH, so Homebrew and system
// binary directories must be added explicitly.
var extraPathDirs = []string{"/opt/homebrew/bin", "/usr/local/bin", "/usr/bin"}

// wellKnownFFmpegPaths are checked directly when `which` fails to resolve
// ffmpeg.
var wellKnownFFmpegPaths = []string{
	"/opt/homebrew/bin/ffmpeg",
	"/usr/local/bin/ffmpeg",
	"/usr/bin/ffmpeg",
}

// Transcoder wraps an external ffmpeg binary.
type Transcoder struct {
	logger     *slog.Logger
	ffmpegPath string
}

// New creates a Transcoder that invokes ffmpegPath (or "ffmpeg" on PATH if
// empty).
func New(logger *slog.Logger, ffmpegPath string) *Transcoder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Transcoder{logger: logger, ffmpegPath: ffmpegPath}
}

// NeedsConversion reports whether fileName/fileSize requires transcoding:
// wma always does, wav only once it exceeds largeWavThreshold.
func NeedsConversion(fileName string, fileSize int64) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), "."))
	switch ext {
	case "wma":
		return true
	case "wav":
		return fileSize > largeWavThreshold
	default:
		return false
	}
}

// Convert transcodes input into output: mono, 16kHz, 64kbps AAC-equivalent
// bitrate. The parent directory of output is not created; callers are
// expected to have already staged it.
func (t *Transcoder) Convert(ctx context.Context, input, output string) error {
	args := []string{"-y", "-i", input, "-ac", "1", "-ar", "16000", "-b:a", "64k", output}

	cmd := exec.CommandContext(ctx, t.ffmpegPath, args...)
	cmd.Env = augmentedEnv()

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return errors.Ffmpeg(stderr.String())
	}

	return nil
}

// OutputMetadata describes a transcoded recording's technical
// characteristics, read back from the .mp3 file Convert just wrote.
type OutputMetadata struct {
	Duration   time.Duration
	BitRate    int
	SampleRate int
	Channels   int
}

// ProbeOutput reads duration and codec parameters back from a file
// Convert produced. Conversion always targets .mp3, so this parses the
// ID3/MPEG frame header directly rather than shelling out to ffprobe.
func ProbeOutput(path string) (OutputMetadata, error) {
	f, err := os.Open(path) //#nosec G304 -- path is the agent's own staging output
	if err != nil {
		return OutputMetadata{}, errors.IOf(err, "open transcoded output")
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return OutputMetadata{}, errors.IOf(err, "stat transcoded output")
	}

	format, err := audiometa.DetectFormat(f, stat.Size(), path)
	if err != nil || format != audiometa.FormatMP3 {
		return OutputMetadata{}, errors.IOf(err, "detect transcoded output format")
	}

	meta, err := mp3.Parse(path)
	if err != nil {
		return OutputMetadata{}, errors.IOf(err, "parse transcoded output metadata")
	}

	return OutputMetadata{
		Duration:   meta.Duration,
		BitRate:    meta.BitRate,
		SampleRate: meta.SampleRate,
		Channels:   meta.Channels,
	}, nil
}

// Probe reports whether the configured ffmpeg binary runs successfully.
func (t *Transcoder) Probe(ctx context.Context) bool {
	cmd := exec.CommandContext(ctx, t.ffmpegPath, "-version")
	cmd.Env = augmentedEnv()
	return cmd.Run() == nil
}

// Locate attempts to discover ffmpeg's absolute path via `which` and a list
// of well-known install locations, returning "" if neither succeeds.
func Locate(ctx context.Context) string {
	cmd := exec.CommandContext(ctx, "/usr/bin/which", "ffmpeg")
	cmd.Env = augmentedEnv()
	if out, err := cmd.Output(); err == nil {
		path := strings.TrimSpace(string(out))
		if path != "" {
			return path
		}
	}

	for _, path := range wellKnownFFmpegPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// augmentedEnv returns the current environment with extraPathDirs
// prepended to PATH.
func augmentedEnv() []string {
	env := os.Environ()
	path := os.Getenv("PATH")
	newPath := strings.Join(append(append([]string{}, extraPathDirs...), path), ":")

	out := make([]string, 0, len(env)+1)
	found := false
	for _, kv := range env {
		if strings.HasPrefix(kv, "PATH=") {
			out = append(out, "PATH="+newPath)
			found = true
			continue
		}
		out = append(out, kv)
	}
	if !found {
		out = append(out, "PATH="+newPath)
	}
	return out
}

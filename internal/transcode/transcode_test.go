package transcode

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	pipelineerrors "github.com/fieldnote/recorder-agent/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNeedsConversion_WmaAlwaysTrue(t *testing.T) {
	assert.True(t, NeedsConversion("voice.wma", 10))
	assert.True(t, NeedsConversion("VOICE.WMA", 10))
}

func TestNeedsConversion_WavOnlyWhenLarge(t *testing.T) {
	assert.False(t, NeedsConversion("voice.wav", largeWavThreshold))
	assert.True(t, NeedsConversion("voice.wav", largeWavThreshold+1))
}

func TestNeedsConversion_OtherFormatsNeverConvert(t *testing.T) {
	assert.False(t, NeedsConversion("voice.mp3", 1<<40))
	assert.False(t, NeedsConversion("voice.flac", 1<<40))
}

func writeFakeFFmpeg(t *testing.T, exitCode int, stderrMsg string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake ffmpeg shell script requires a POSIX shell")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "fake-ffmpeg.sh")
	script := "#!/bin/sh\necho '" + stderrMsg + "' 1>&2\nexit " + itoa(exitCode) + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := ""
	for n > 0 {
		digits = string(rune('0'+n%10)) + digits
		n /= 10
	}
	return digits
}

func TestConvert_SuccessOnZeroExit(t *testing.T) {
	fake := writeFakeFFmpeg(t, 0, "")
	tr := New(slog.New(slog.DiscardHandler), fake)

	err := tr.Convert(context.Background(), "in.wav", "out.m4a")
	assert.NoError(t, err)
}

func TestConvert_FailureCarriesStderr(t *testing.T) {
	fake := writeFakeFFmpeg(t, 1, "unsupported codec")
	tr := New(slog.New(slog.DiscardHandler), fake)

	err := tr.Convert(context.Background(), "in.wav", "out.m4a")
	require.Error(t, err)

	var pipeErr *pipelineerrors.Error
	require.ErrorAs(t, err, &pipeErr)
	assert.Equal(t, pipelineerrors.CodeFfmpeg, pipeErr.Code)
	assert.Contains(t, pipeErr.Message, "unsupported codec")
}

func TestProbe_TrueForWorkingBinary(t *testing.T) {
	fake := writeFakeFFmpeg(t, 0, "")
	tr := New(slog.New(slog.DiscardHandler), fake)
	assert.True(t, tr.Probe(context.Background()))
}

func TestProbe_FalseForMissingBinary(t *testing.T) {
	tr := New(slog.New(slog.DiscardHandler), filepath.Join(t.TempDir(), "does-not-exist"))
	assert.False(t, tr.Probe(context.Background()))
}

func TestNew_DefaultsToBareFFmpegWhenPathEmpty(t *testing.T) {
	tr := New(slog.New(slog.DiscardHandler), "")
	assert.Equal(t, "ffmpeg", tr.ffmpegPath)
}

func TestAugmentedEnv_PrependsExtraDirsToPath(t *testing.T) {
	env := augmentedEnv()

	var pathValue string
	for _, kv := range env {
		if len(kv) > 5 && kv[:5] == "PATH=" {
			pathValue = kv[5:]
		}
	}

	require.NotEmpty(t, pathValue)
	for _, dir := range extraPathDirs {
		assert.Contains(t, pathValue, dir)
	}
}

func TestProbeOutput_RejectsNonAudioFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "not-audio.mp3")
	require.NoError(t, os.WriteFile(path, []byte("not an mp3 file"), 0o644))

	_, err := ProbeOutput(path)
	require.Error(t, err)
}

func TestProbeOutput_MissingFile(t *testing.T) {
	_, err := ProbeOutput(filepath.Join(t.TempDir(), "missing.mp3"))
	require.Error(t, err)
}

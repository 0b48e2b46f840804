package command

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleScanFiles_ListsAudioFiles(t *testing.T) {
	s, cleanup := setupTestServer(t)
	defer cleanup()

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "rec1.wav"), []byte("audio"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("text"), 0o644))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/files/scan?root="+root, http.NoBody)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var out ScanFilesOutput
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out.Body))
	require.Len(t, out.Body.Files, 1)
	assert.Equal(t, "rec1.wav", out.Body.Files[0].Name)
}

func TestHandleScanFiles_MissingRootFails(t *testing.T) {
	s, cleanup := setupTestServer(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/files/scan?root="+filepath.Join(t.TempDir(), "nope"), http.NoBody)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestHandleHashFile_ReturnsDigest(t *testing.T) {
	s, cleanup := setupTestServer(t)
	defer cleanup()

	dir := t.TempDir()
	path := filepath.Join(dir, "rec1.wav")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	body := map[string]string{"batchId": "batch-1", "path": path}
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/files/hash", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var out HashFileOutput
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out.Body))
	assert.Len(t, out.Body.SHA256, 64)
}

func TestHandleHashFile_MissingFileFails(t *testing.T) {
	s, cleanup := setupTestServer(t)
	defer cleanup()

	body := map[string]string{"batchId": "batch-1", "path": filepath.Join(t.TempDir(), "missing.wav")}
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/files/hash", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestHandleCopyWithHash_CopiesAndHashes(t *testing.T) {
	s, cleanup := setupTestServer(t)
	defer cleanup()

	dir := t.TempDir()
	src := filepath.Join(dir, "src.wav")
	require.NoError(t, os.WriteFile(src, []byte("hello"), 0o644))
	dst := filepath.Join(dir, "staged", "src.wav")

	body := map[string]string{"batchId": "batch-1", "src": src, "dst": dst}
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/files/copy", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var out CopyWithHashOutput
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out.Body))
	assert.Len(t, out.Body.SHA256, 64)

	copied, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(copied))
}

func TestHandleCheckFfmpeg_ReportsRunnability(t *testing.T) {
	s, cleanup := setupTestServer(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ffmpeg/check", http.NoBody)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var out CheckFfmpegOutput
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out.Body))
	assert.False(t, out.Body.Runnable, "the configured path is not a real ffmpeg binary")
}

func TestHandleDetectFfmpegPath_RespondsWithoutError(t *testing.T) {
	s, cleanup := setupTestServer(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ffmpeg/detect-path", http.NoBody)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandleNeedsConversion_FlagsWmaFiles(t *testing.T) {
	s, cleanup := setupTestServer(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/files/needs-conversion?fileName=rec.wma&sizeBytes=1024", http.NoBody)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var out NeedsConversionOutput
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out.Body))
	assert.True(t, out.Body.NeedsConversion)
}

func TestHandleConvertAudio_FailsWithoutARealFfmpegBinary(t *testing.T) {
	s, cleanup := setupTestServer(t)
	defer cleanup()

	dir := t.TempDir()
	input := filepath.Join(dir, "in.wav")
	require.NoError(t, os.WriteFile(input, []byte("not real audio"), 0o644))
	output := filepath.Join(dir, "out.wav")

	body := map[string]string{"inputPath": input, "outputPath": output}
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/files/convert", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

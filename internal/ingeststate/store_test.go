package ingeststate

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/fieldnote/recorder-agent/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_MissingStateFileYieldsEmptyState(t *testing.T) {
	dir := t.TempDir()

	s, err := New(dir)
	require.NoError(t, err)

	snap := s.Snapshot()
	assert.NotNil(t, snap.Batches)
	assert.Len(t, snap.Batches, 0)
}

func TestNew_CorruptStateFileYieldsEmptyState(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "state.json"), []byte("not json"), 0o600))

	s, err := New(dir)
	require.NoError(t, err)

	snap := s.Snapshot()
	assert.Len(t, snap.Batches, 0)
}

func TestStore_CreateBatchAndSetFileStatus(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)

	require.NoError(t, s.CreateBatch("batch-1", "device-1"))
	require.NoError(t, s.SetFileStatus("batch-1", "sha256-a", domain.FileStatus{
		RecordingID: "rec-1",
		Uploaded:    true,
	}))

	batch, ok := s.Batch("batch-1")
	require.True(t, ok)
	assert.Equal(t, domain.BatchOpen, batch.Status)
	assert.Equal(t, "device-1", batch.DeviceID)
	assert.True(t, batch.Files["sha256-a"].Uploaded)
}

func TestStore_WriteToDiskRoundTrips(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)

	require.NoError(t, s.CreateBatch("batch-1", "device-1"))
	require.NoError(t, s.SetBatchStatus("batch-1", domain.BatchCompleted))

	reloaded, err := New(dir)
	require.NoError(t, err)

	batch, ok := reloaded.Batch("batch-1")
	require.True(t, ok)
	assert.Equal(t, domain.BatchCompleted, batch.Status)
}

func TestStore_WriteToDiskLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)

	require.NoError(t, s.CreateBatch("batch-1", "device-1"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp")
	}
}

func TestStore_SnapshotIsIndependentCopy(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)

	require.NoError(t, s.CreateBatch("batch-1", "device-1"))

	snap := s.Snapshot()
	snap.Batches["batch-1"] = domain.BatchState{Status: domain.BatchCompleted}

	batch, ok := s.Batch("batch-1")
	require.True(t, ok)
	assert.Equal(t, domain.BatchOpen, batch.Status, "mutating a snapshot must not affect the store")
}

func TestStore_RemoveCompletedBatches_DeletesStagingDirectory(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)

	require.NoError(t, s.CreateBatch("batch-done", "device-1"))
	require.NoError(t, s.SetBatchStatus("batch-done", domain.BatchCompleted))
	require.NoError(t, s.CreateBatch("batch-open", "device-1"))

	batchDir := filepath.Join(dir, "inbox", "batch-done", "device-1")
	require.NoError(t, os.MkdirAll(batchDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(batchDir, "a.mp3"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(batchDir, "b.mp3"), []byte("x"), 0o644))

	openBatchDir := filepath.Join(dir, "inbox", "batch-open", "device-1")
	require.NoError(t, os.MkdirAll(openBatchDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(openBatchDir, "c.mp3"), []byte("x"), 0o644))

	removedBatches, removedFiles, err := s.RemoveCompletedBatches()
	require.NoError(t, err)
	assert.Equal(t, 1, removedBatches)
	assert.Equal(t, 2, removedFiles)

	_, err = os.Stat(filepath.Join(dir, "inbox", "batch-done"))
	assert.True(t, os.IsNotExist(err), "completed batch's staging directory should be gone")

	_, err = os.Stat(openBatchDir)
	assert.NoError(t, err, "open batch's staging directory must survive")

	_, ok := s.Batch("batch-done")
	assert.False(t, ok, "completed batch must be gone from state")
	_, ok = s.Batch("batch-open")
	assert.True(t, ok, "open batch must remain in state")
}

func TestStore_RemoveCompletedBatches_MissingDirectoryIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)

	require.NoError(t, s.CreateBatch("batch-done", "device-1"))
	require.NoError(t, s.SetBatchStatus("batch-done", domain.BatchCompleted))

	removedBatches, removedFiles, err := s.RemoveCompletedBatches()
	require.NoError(t, err)
	assert.Equal(t, 1, removedBatches)
	assert.Equal(t, 0, removedFiles)
}

func TestStore_PersistedStateMatchesExpectedJSONShape(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)

	require.NoError(t, s.CreateBatch("batch-20260730083145-a1b2c3", "device-1"))

	raw, err := os.ReadFile(filepath.Join(dir, "state.json"))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))

	batches, ok := decoded["batches"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, batches, "batch-20260730083145-a1b2c3")
}

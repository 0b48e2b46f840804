// Package ingeststate holds the agent's persisted batch state and the
// process-wide cancellation registry the orchestrator consults at phase
// boundaries.
package ingeststate

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/fieldnote/recorder-agent/internal/domain"
	"github.com/fieldnote/recorder-agent/internal/errors"
)

// Store is a mutex-guarded, disk-backed AppState. All mutation goes
// through Update, which snapshots the result, releases the lock, then
// writes the snapshot to disk — the lock is never held across an I/O
// operation.
type Store struct {
	mu        sync.Mutex
	state     domain.AppState
	statePath string
}

// New loads a Store from "<baseDir>/state.json". A missing or unreadable
// file yields an empty AppState rather than an error, per the persisted
// state contract.
func New(baseDir string) (*Store, error) {
	statePath := filepath.Join(baseDir, "state.json")

	s := &Store{state: domain.NewAppState(), statePath: statePath}

	data, err := os.ReadFile(statePath) //#nosec G304 -- base dir is operator-controlled
	if err != nil {
		return s, nil
	}

	var loaded domain.AppState
	if err := json.Unmarshal(data, &loaded); err != nil {
		return s, nil
	}
	if loaded.Batches == nil {
		loaded.Batches = make(map[string]domain.BatchState)
	}
	s.state = loaded
	return s, nil
}

// Snapshot returns a deep copy of the current state, safe to read or
// serialize without holding the store's lock.
func (s *Store) Snapshot() domain.AppState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deepCopy(s.state)
}

// Batch returns a copy of one batch's state and whether it exists.
func (s *Store) Batch(batchID string) (domain.BatchState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.state.Batches[batchID]
	if !ok {
		return domain.BatchState{}, false
	}
	return deepCopyBatch(b), true
}

// Update runs fn against the current state under the store's lock, then
// persists the result to disk outside the lock. fn receives the live
// state map and may mutate it in place.
func (s *Store) Update(fn func(state *domain.AppState)) error {
	s.mu.Lock()
	fn(&s.state)
	snapshot := deepCopy(s.state)
	s.mu.Unlock()

	return s.writeToDisk(snapshot)
}

// CreateBatch inserts a new, empty OPEN batch for deviceID. An existing
// batch with the same batchID is replaced.
func (s *Store) CreateBatch(batchID, deviceID string) error {
	return s.Update(func(state *domain.AppState) {
		state.Batches[batchID] = domain.BatchState{
			Status:   domain.BatchOpen,
			DeviceID: deviceID,
			Files:    make(map[string]domain.FileStatus),
		}
	})
}

// SetFileStatus records or replaces the FileStatus for sha256 within a
// batch.
func (s *Store) SetFileStatus(batchID, sha256 string, status domain.FileStatus) error {
	return s.Update(func(state *domain.AppState) {
		b, ok := state.Batches[batchID]
		if !ok {
			return
		}
		if b.Files == nil {
			b.Files = make(map[string]domain.FileStatus)
		}
		b.Files[sha256] = status
		state.Batches[batchID] = b
	})
}

// SetBatchStatus overwrites the lifecycle status of a batch.
func (s *Store) SetBatchStatus(batchID string, status domain.BatchStatus) error {
	return s.Update(func(state *domain.AppState) {
		b, ok := state.Batches[batchID]
		if !ok {
			return
		}
		b.Status = status
		state.Batches[batchID] = b
	})
}

// RemoveCompletedBatches deletes every batch with status COMPLETED from
// state, then removes each one's staging directory tree under
// "<baseDir>/inbox/<batchId>/" from disk. Returns the number of batches
// removed and the total number of files deleted from their staging
// directories. A batch whose directory fails to delete still counts
// toward removedBatches (its state entry is gone either way) but not
// toward removedFiles.
func (s *Store) RemoveCompletedBatches() (removedBatches, removedFiles int, err error) {
	var completed []string
	err = s.Update(func(state *domain.AppState) {
		for id, b := range state.Batches {
			if b.Status == domain.BatchCompleted {
				completed = append(completed, id)
				delete(state.Batches, id)
			}
		}
	})
	if err != nil {
		return 0, 0, err
	}

	inboxDir := filepath.Join(filepath.Dir(s.statePath), "inbox")
	for _, batchID := range completed {
		batchDir := filepath.Join(inboxDir, batchID)
		files := countFiles(batchDir)
		if rmErr := os.RemoveAll(batchDir); rmErr == nil {
			removedFiles += files
		}
	}
	return len(completed), removedFiles, nil
}

// countFiles recursively counts the regular files under path. Returns 0
// if path doesn't exist or can't be read.
func countFiles(path string) int {
	entries, err := os.ReadDir(path)
	if err != nil {
		return 0
	}
	count := 0
	for _, entry := range entries {
		if entry.IsDir() {
			count += countFiles(filepath.Join(path, entry.Name()))
			continue
		}
		count++
	}
	return count
}

// writeToDisk serializes snapshot to state.json via a temp-file-then-rename,
// so a crash mid-write never leaves a corrupt state.json behind.
func (s *Store) writeToDisk(snapshot domain.AppState) error {
	if err := os.MkdirAll(filepath.Dir(s.statePath), 0o755); err != nil {
		return errors.IOf(err, "create state directory")
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return errors.IOf(err, "marshal app state")
	}

	tmp := s.statePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return errors.IOf(err, "write state file")
	}
	if err := os.Rename(tmp, s.statePath); err != nil {
		return errors.IOf(err, "rename state file")
	}
	return nil
}

func deepCopy(state domain.AppState) domain.AppState {
	out := domain.AppState{Batches: make(map[string]domain.BatchState, len(state.Batches))}
	for id, b := range state.Batches {
		out.Batches[id] = deepCopyBatch(b)
	}
	return out
}

func deepCopyBatch(b domain.BatchState) domain.BatchState {
	files := make(map[string]domain.FileStatus, len(b.Files))
	for k, v := range b.Files {
		files[k] = v
	}
	return domain.BatchState{Status: b.Status, DeviceID: b.DeviceID, Files: files}
}

// Package domain holds the ingest agent's persisted data model: batches of
// staged recordings and their per-file upload progress.
package domain

// BatchStatus is the lifecycle state of a batch.
type BatchStatus string

const (
	BatchOpen         BatchStatus = "OPEN"
	BatchUploading    BatchStatus = "UPLOADING"
	BatchCompleted    BatchStatus = "COMPLETED"
	BatchPartialError BatchStatus = "PARTIAL_ERROR"
)

// CompletedPart is one finished multipart upload part retained in
// FileStatus so a resumed upload can complete the multipart transfer
// without re-uploading already-finished parts. The ETag is required:
// the storage backend's complete-multipart call fails without one per
// part, including parts completed before a restart.
type CompletedPart struct {
	PartNumber int    `json:"partNumber"`
	ETag       string `json:"etag"`
}

// FileStatus tracks one staged recording's upload progress within a batch.
// Keyed by the file's SHA-256 digest in BatchState.Files.
type FileStatus struct {
	RecordingID       string          `json:"recordingId"`
	Uploaded          bool            `json:"uploaded"`
	Error             *string         `json:"error,omitempty"`
	UploadID          *string         `json:"uploadId,omitempty"`
	RawR2Key          *string         `json:"rawR2Key,omitempty"`
	CompletedParts    []CompletedPart `json:"completedParts,omitempty"`
	MultipartUploadID *string         `json:"multipartUploadId,omitempty"`
}

// BatchState is one batch's persisted state: its lifecycle status, the
// device it was imported from, and the upload status of every file staged
// under it, keyed by SHA-256 digest.
type BatchState struct {
	Status   BatchStatus           `json:"status"`
	DeviceID string                `json:"deviceId"`
	Files    map[string]FileStatus `json:"files"`
}

// AppState is the full persisted state of the agent: every batch ever
// created, keyed by batch ID. This is the exact shape written to and read
// from state.json.
type AppState struct {
	Batches map[string]BatchState `json:"batches"`
}

// NewAppState returns an empty AppState, equivalent to what Load returns
// when state.json is absent or unreadable.
func NewAppState() AppState {
	return AppState{Batches: make(map[string]BatchState)}
}

// IsComplete reports whether every file in the batch has been uploaded.
// Invariant 2: status == COMPLETED iff every FileStatus has Uploaded == true.
func (b BatchState) IsComplete() bool {
	for _, f := range b.Files {
		if !f.Uploaded {
			return false
		}
	}
	return true
}

// PendingParts returns the part numbers in 1..totalParts absent from f's
// CompletedParts, in ascending order.
func (f FileStatus) PendingParts(totalParts int) []int {
	done := make(map[int]struct{}, len(f.CompletedParts))
	for _, p := range f.CompletedParts {
		done[p.PartNumber] = struct{}{}
	}
	var pending []int
	for n := 1; n <= totalParts; n++ {
		if _, ok := done[n]; !ok {
			pending = append(pending, n)
		}
	}
	return pending
}

// HasErrors reports whether any file in the batch recorded an error.
func (b BatchState) HasErrors() bool {
	for _, f := range b.Files {
		if f.Error != nil {
			return true
		}
	}
	return false
}

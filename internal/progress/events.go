// Package progress implements the agent's observer event bus: every
// component that performs long-running or externally visible work emits
// Events here, and the command surface forwards them to connected hosts
// over Server-Sent Events.
package progress

import "time"

// EventType identifies the shape of an Event's Data payload.
type EventType string

const (
	EventMountDetected  EventType = "mount-detected"
	EventMountRemoved   EventType = "mount-removed"
	EventImportProgress EventType = "import-progress"
	EventHashProgress   EventType = "hash-progress"
	EventUploadProgress EventType = "upload-progress"
	EventHeartbeat      EventType = "heartbeat"
)

// Event is a single observer notification. Data holds one of the
// Event*Data payload types below, matching Type.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// MountDetectedData is the payload for mount-detected.
type MountDetectedData struct {
	Path          string `json:"path"`
	Name          string `json:"name"`
	HasRecorderID bool   `json:"hasRecorderId"`
}

// MountRemovedData is the payload for mount-removed.
type MountRemovedData struct {
	Path string `json:"path"`
	Name string `json:"name"`
}

// ImportPhase enumerates the orchestrator phases reported in
// ImportProgressData.Phase.
type ImportPhase string

const (
	PhaseScanning    ImportPhase = "scanning"
	PhaseCopying     ImportPhase = "copying"
	PhaseConverting  ImportPhase = "converting"
	PhasePreflight   ImportPhase = "preflight"
	PhaseUploading   ImportPhase = "uploading"
	PhaseDone        ImportPhase = "done"
	PhasePartialFail ImportPhase = "partial_error"
	PhaseError       ImportPhase = "error"
)

// ImportProgressData is the payload for import-progress.
type ImportProgressData struct {
	BatchID  string      `json:"batchId"`
	Phase    ImportPhase `json:"phase"`
	Current  int         `json:"current,omitempty"`
	Total    int         `json:"total,omitempty"`
	FileName string      `json:"fileName,omitempty"`
	Message  string      `json:"message,omitempty"`
}

// HashProgressData is the payload for hash-progress.
type HashProgressData struct {
	BatchID      string `json:"batchId"`
	Path         string `json:"path"`
	BytesHashed  int64  `json:"bytesHashed"`
	TotalBytes   int64  `json:"totalBytes"`
	SHA256Digest string `json:"sha256Digest,omitempty"`
}

// UploadProgressData is the payload for upload-progress.
type UploadProgressData struct {
	RecordingID   string `json:"recordingId"`
	FileName      string `json:"fileName"`
	BytesUploaded int64  `json:"bytesUploaded"`
	TotalBytes    int64  `json:"totalBytes"`
	PartNumber    int    `json:"partNumber,omitempty"`
	TotalParts    int    `json:"totalParts,omitempty"`
}

// NewMountDetectedEvent creates a mount-detected event.
func NewMountDetectedEvent(path, name string, hasRecorderID bool) Event {
	return Event{
		Type:      EventMountDetected,
		Timestamp: time.Now(),
		Data:      MountDetectedData{Path: path, Name: name, HasRecorderID: hasRecorderID},
	}
}

// NewMountRemovedEvent creates a mount-removed event.
func NewMountRemovedEvent(path, name string) Event {
	return Event{
		Type:      EventMountRemoved,
		Timestamp: time.Now(),
		Data:      MountRemovedData{Path: path, Name: name},
	}
}

// NewImportProgressEvent creates an import-progress event.
func NewImportProgressEvent(data ImportProgressData) Event {
	return Event{Type: EventImportProgress, Timestamp: time.Now(), Data: data}
}

// NewHashProgressEvent creates a hash-progress event.
func NewHashProgressEvent(data HashProgressData) Event {
	return Event{Type: EventHashProgress, Timestamp: time.Now(), Data: data}
}

// NewUploadProgressEvent creates an upload-progress event.
func NewUploadProgressEvent(data UploadProgressData) Event {
	return Event{Type: EventUploadProgress, Timestamp: time.Now(), Data: data}
}

// newHeartbeatEvent creates a keepalive event for idle SSE connections.
func newHeartbeatEvent() Event {
	return Event{Type: EventHeartbeat, Timestamp: time.Now(), Data: struct{}{}}
}

package volume

import "time"

// EventType identifies the kind of mount change a Backend observed.
type EventType int

const (
	// EventMountDetected is emitted when a new, non-system volume appears
	// under the mount root.
	EventMountDetected EventType = iota
	// EventMountRemoved is emitted when a previously known volume
	// disappears from the mount root.
	EventMountRemoved
)

// String returns the string representation of the event type.
func (t EventType) String() string {
	switch t {
	case EventMountDetected:
		return "mount-detected"
	case EventMountRemoved:
		return "mount-removed"
	default:
		return "unknown"
	}
}

// Event represents a single volume mount or unmount.
type Event struct {
	// Type is mount-detected or mount-removed.
	Type EventType

	// Path is the full path to the mount point.
	Path string

	// Name is the volume's directory entry name under the mount root.
	Name string

	// HasRecorderID reports whether the volume carries a RECORDER_ID.json
	// marker file, identifying it as a known recorder rather than an
	// arbitrary USB drive. Only meaningful for EventMountDetected.
	HasRecorderID bool

	// DetectedAt is when the reconciliation pass observed the change.
	DetectedAt time.Time
}

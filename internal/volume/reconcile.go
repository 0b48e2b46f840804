package volume

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// recorderIDFilename is the marker file a provisioned recorder volume
// carries at its root.
const recorderIDFilename = "RECORDER_ID.json"

// systemVolumeNames are entries under the mount root that are never
// recorder volumes and must never surface a mount-detected event.
var systemVolumeNames = map[string]struct{}{
	".vol":                {},
	"Macintosh HD":        {},
	"Macintosh HD - Data": {},
	"Recovery":            {},
	"Preboot":             {},
	"VM":                  {},
	"Update":              {},
}

// isSystemVolume reports whether name should be ignored by reconciliation:
// dotfiles and the fixed deny list of macOS system volumes.
func isSystemVolume(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	_, denied := systemVolumeNames[name]
	return denied
}

// hasRecorderID reports whether mountPath carries a RECORDER_ID.json
// marker at its root.
func hasRecorderID(mountPath string) bool {
	_, err := os.Stat(filepath.Join(mountPath, recorderIDFilename))
	return err == nil
}

// Info describes one non-system volume currently present under a mount
// root, for the scan_volumes command's one-shot snapshot (as opposed to
// the watcher's incremental Known/Current diff).
type Info struct {
	Path          string
	Name          string
	HasRecorderID bool
}

// ScanVolumes lists every non-system volume currently present under root.
func ScanVolumes(root string) []Info {
	current := currentMounts(root)
	out := make([]Info, 0, len(current))
	for name := range current {
		path := filepath.Join(root, name)
		out = append(out, Info{Path: path, Name: name, HasRecorderID: hasRecorderID(path)})
	}
	return out
}

// currentMounts lists the non-system volume names currently present under
// root. I/O errors reading the mount root (root not yet mounted, briefly
// unreadable during a mount transition) yield an empty set rather than an
// error, matching the best-effort nature of a reconciliation pass.
func currentMounts(root string) map[string]struct{} {
	entries, err := os.ReadDir(root)
	if err != nil {
		return map[string]struct{}{}
	}

	current := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if isSystemVolume(e.Name()) {
			continue
		}
		current[e.Name()] = struct{}{}
	}
	return current
}

// reconcileMounts diffs the volumes currently present under root against
// known, emitting mount-detected for additions and mount-removed for
// removals via emit, and returns the new known set.
func reconcileMounts(root string, known map[string]struct{}, emit func(Event)) map[string]struct{} {
	current := currentMounts(root)
	now := time.Now()

	for name := range current {
		if _, ok := known[name]; ok {
			continue
		}
		path := filepath.Join(root, name)
		emit(Event{
			Type:          EventMountDetected,
			Path:          path,
			Name:          name,
			HasRecorderID: hasRecorderID(path),
			DetectedAt:    now,
		})
	}

	for name := range known {
		if _, ok := current[name]; ok {
			continue
		}
		emit(Event{
			Type:       EventMountRemoved,
			Path:       filepath.Join(root, name),
			Name:       name,
			DetectedAt: now,
		})
	}

	return current
}

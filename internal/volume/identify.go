package volume

import (
	"encoding/json/v2"
	"os"
	"path/filepath"

	"github.com/fieldnote/recorder-agent/internal/errors"
)

// RecorderID is the parsed contents of a volume's RECORDER_ID.json
// marker file.
type RecorderID struct {
	DeviceID  string  `json:"deviceId"`
	Label     string  `json:"label"`
	OrgIDHint *string `json:"orgIdHint,omitempty"`
	Notes     *string `json:"notes,omitempty"`
}

// IdentifyDevice reads and parses the RECORDER_ID.json marker at the root
// of mountPath.
func IdentifyDevice(mountPath string) (RecorderID, error) {
	path := filepath.Join(mountPath, recorderIDFilename)

	data, err := os.ReadFile(path) //#nosec G304 -- mountPath is an operator-selected volume
	if err != nil {
		return RecorderID{}, errors.IOf(err, "read %s", path)
	}

	var id RecorderID
	if err := json.Unmarshal(data, &id); err != nil {
		return RecorderID{}, errors.InvalidInputf("parse %s: %v", path, err)
	}
	if id.DeviceID == "" {
		return RecorderID{}, errors.InvalidInputf("%s missing required deviceId", path)
	}
	if id.Label == "" {
		return RecorderID{}, errors.InvalidInputf("%s missing required label", path)
	}

	return id, nil
}

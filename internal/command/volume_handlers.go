package command

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/fieldnote/recorder-agent/internal/volume"
)

func (s *Server) registerVolumeRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "scan_volumes",
		Method:      http.MethodGet,
		Path:        "/api/v1/volumes",
		Summary:     "List mounted recorder volumes",
		Tags:        []string{"Volumes"},
	}, s.handleScanVolumes)

	huma.Register(s.api, huma.Operation{
		OperationID: "identify_device",
		Method:      http.MethodGet,
		Path:        "/api/v1/volumes/identify",
		Summary:     "Parse a volume's RECORDER_ID.json",
		Tags:        []string{"Volumes"},
	}, s.handleIdentifyDevice)
}

// ScanVolumesInput takes the mount root to enumerate; the host passes its
// platform mount root (e.g. /Volumes on macOS).
type ScanVolumesInput struct {
	MountRoot string `query:"mountRoot" required:"true" doc:"Directory whose entries are candidate volumes"`
}

type VolumeInfo struct {
	Path          string `json:"path"`
	Name          string `json:"name"`
	HasRecorderID bool   `json:"hasRecorderId"`
}

type ScanVolumesOutput struct {
	Body struct {
		Volumes []VolumeInfo `json:"volumes"`
	}
}

func (s *Server) handleScanVolumes(_ context.Context, input *ScanVolumesInput) (*ScanVolumesOutput, error) {
	infos := volume.ScanVolumes(input.MountRoot)

	out := &ScanVolumesOutput{}
	out.Body.Volumes = make([]VolumeInfo, 0, len(infos))
	for _, info := range infos {
		out.Body.Volumes = append(out.Body.Volumes, VolumeInfo{Path: info.Path, Name: info.Name, HasRecorderID: info.HasRecorderID})
	}
	return out, nil
}

// IdentifyDeviceInput takes the mount path to probe for RECORDER_ID.json.
type IdentifyDeviceInput struct {
	MountPath string `query:"mountPath" required:"true" doc:"Root of the mounted volume"`
}

type IdentifyDeviceOutput struct {
	Body struct {
		DeviceID  string  `json:"deviceId"`
		Label     string  `json:"label"`
		OrgIDHint *string `json:"orgIdHint,omitempty"`
		Notes     *string `json:"notes,omitempty"`
	}
}

func (s *Server) handleIdentifyDevice(_ context.Context, input *IdentifyDeviceInput) (*IdentifyDeviceOutput, error) {
	id, err := volume.IdentifyDevice(input.MountPath)
	if err != nil {
		return nil, huma.Error422UnprocessableEntity(err.Error(), err)
	}

	out := &IdentifyDeviceOutput{}
	out.Body.DeviceID = id.DeviceID
	out.Body.Label = id.Label
	out.Body.OrgIDHint = id.OrgIDHint
	out.Body.Notes = id.Notes
	return out, nil
}

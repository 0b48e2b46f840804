package command

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (s *Server) registerImportRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "start_import",
		Method:      http.MethodPost,
		Path:        "/api/v1/import/start",
		Summary:     "Start ingesting a volume's recordings",
		Tags:        []string{"Import"},
	}, s.handleStartImport)

	huma.Register(s.api, huma.Operation{
		OperationID: "cancel_import",
		Method:      http.MethodPost,
		Path:        "/api/v1/import/cancel",
		Summary:     "Request cancellation of a running batch",
		Tags:        []string{"Import"},
	}, s.handleCancelImport)

	huma.Register(s.api, huma.Operation{
		OperationID: "upload_files",
		Method:      http.MethodPost,
		Path:        "/api/v1/import/upload-files",
		Summary:     "Upload a fixed set of files without staging (manual upload)",
		Tags:        []string{"Import"},
	}, s.handleUploadFiles)
}

type StartImportInput struct {
	Body struct {
		DeviceID   string `json:"deviceId" required:"true"`
		VolumePath string `json:"volumePath" required:"true"`
	}
}

type BatchIDOutput struct {
	Body struct {
		BatchID string `json:"batchId"`
	}
}

func (s *Server) handleStartImport(_ context.Context, input *StartImportInput) (*BatchIDOutput, error) {
	batchID, err := s.orchestrator.StartImport(input.Body.DeviceID, input.Body.VolumePath)
	if err != nil {
		return nil, huma.Error500InternalServerError(err.Error(), err)
	}
	out := &BatchIDOutput{}
	out.Body.BatchID = batchID
	return out, nil
}

type CancelImportInput struct {
	Body struct {
		BatchID string `json:"batchId" required:"true"`
	}
}

func (s *Server) handleCancelImport(_ context.Context, input *CancelImportInput) (*struct{}, error) {
	s.orchestrator.CancelImport(input.Body.BatchID)
	return &struct{}{}, nil
}

type UploadFilesInput struct {
	Body struct {
		DeviceID string   `json:"deviceId" required:"true"`
		Paths    []string `json:"paths" required:"true"`
	}
}

func (s *Server) handleUploadFiles(_ context.Context, input *UploadFilesInput) (*BatchIDOutput, error) {
	batchID, err := s.orchestrator.ManualUpload(input.Body.DeviceID, input.Body.Paths)
	if err != nil {
		return nil, huma.Error500InternalServerError(err.Error(), err)
	}
	out := &BatchIDOutput{}
	out.Body.BatchID = batchID
	return out, nil
}

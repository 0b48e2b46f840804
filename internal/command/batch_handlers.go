package command

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/fieldnote/recorder-agent/internal/domain"
)

func (s *Server) registerBatchRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get_batches",
		Method:      http.MethodGet,
		Path:        "/api/v1/batches",
		Summary:     "List every batch and its per-file upload status",
		Tags:        []string{"Batches"},
	}, s.handleGetBatches)

	huma.Register(s.api, huma.Operation{
		OperationID: "clean_completed_batches",
		Method:      http.MethodPost,
		Path:        "/api/v1/batches/clean-completed",
		Summary:     "Remove batches that finished uploading",
		Tags:        []string{"Batches"},
	}, s.handleCleanCompletedBatches)
}

type BatchFileStatus struct {
	SHA256      string `json:"sha256"`
	RecordingID string `json:"recordingId"`
	Uploaded    bool   `json:"uploaded"`
	Error       string `json:"error,omitempty"`
}

type BatchSummary struct {
	BatchID  string            `json:"batchId"`
	Status   string            `json:"status"`
	DeviceID string            `json:"deviceId"`
	Files    []BatchFileStatus `json:"files"`
}

type GetBatchesOutput struct {
	Body struct {
		Batches []BatchSummary `json:"batches"`
	}
}

func (s *Server) handleGetBatches(_ context.Context, _ *struct{}) (*GetBatchesOutput, error) {
	snapshot := s.store.Snapshot()

	out := &GetBatchesOutput{}
	out.Body.Batches = make([]BatchSummary, 0, len(snapshot.Batches))
	for batchID, b := range snapshot.Batches {
		out.Body.Batches = append(out.Body.Batches, toBatchSummary(batchID, b))
	}
	return out, nil
}

func toBatchSummary(batchID string, b domain.BatchState) BatchSummary {
	summary := BatchSummary{BatchID: batchID, Status: string(b.Status), DeviceID: b.DeviceID}
	summary.Files = make([]BatchFileStatus, 0, len(b.Files))
	for sha, f := range b.Files {
		fs := BatchFileStatus{SHA256: sha, RecordingID: f.RecordingID, Uploaded: f.Uploaded}
		if f.Error != nil {
			fs.Error = *f.Error
		}
		summary.Files = append(summary.Files, fs)
	}
	return summary
}

type CleanCompletedBatchesOutput struct {
	Body struct {
		Removed      int `json:"removed"`
		FilesRemoved int `json:"filesRemoved"`
	}
}

func (s *Server) handleCleanCompletedBatches(_ context.Context, _ *struct{}) (*CleanCompletedBatchesOutput, error) {
	removed, filesRemoved, err := s.store.RemoveCompletedBatches()
	if err != nil {
		return nil, huma.Error500InternalServerError(err.Error(), err)
	}
	out := &CleanCompletedBatchesOutput{}
	out.Body.Removed = removed
	out.Body.FilesRemoved = filesRemoved
	return out, nil
}

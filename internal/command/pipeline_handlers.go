package command

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/fieldnote/recorder-agent/internal/transcode"
)

func (s *Server) registerPipelineRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "scan_files",
		Method:      http.MethodGet,
		Path:        "/api/v1/files/scan",
		Summary:     "Enumerate audio files under a directory",
		Tags:        []string{"Pipeline"},
	}, s.handleScanFiles)

	huma.Register(s.api, huma.Operation{
		OperationID: "hash_file",
		Method:      http.MethodPost,
		Path:        "/api/v1/files/hash",
		Summary:     "Compute the SHA-256 digest of a file",
		Tags:        []string{"Pipeline"},
	}, s.handleHashFile)

	huma.Register(s.api, huma.Operation{
		OperationID: "copy_with_hash",
		Method:      http.MethodPost,
		Path:        "/api/v1/files/copy",
		Summary:     "Copy a file into staging while hashing it",
		Tags:        []string{"Pipeline"},
	}, s.handleCopyWithHash)

	huma.Register(s.api, huma.Operation{
		OperationID: "check_ffmpeg",
		Method:      http.MethodGet,
		Path:        "/api/v1/ffmpeg/check",
		Summary:     "Probe whether the configured ffmpeg binary runs",
		Tags:        []string{"Pipeline"},
	}, s.handleCheckFfmpeg)

	huma.Register(s.api, huma.Operation{
		OperationID: "detect_ffmpeg_path",
		Method:      http.MethodGet,
		Path:        "/api/v1/ffmpeg/detect-path",
		Summary:     "Locate an ffmpeg binary on this machine",
		Tags:        []string{"Pipeline"},
	}, s.handleDetectFfmpegPath)

	huma.Register(s.api, huma.Operation{
		OperationID: "needs_conversion",
		Method:      http.MethodGet,
		Path:        "/api/v1/files/needs-conversion",
		Summary:     "Report whether a file requires transcoding",
		Tags:        []string{"Pipeline"},
	}, s.handleNeedsConversion)

	huma.Register(s.api, huma.Operation{
		OperationID: "convert_audio",
		Method:      http.MethodPost,
		Path:        "/api/v1/files/convert",
		Summary:     "Transcode a file to mono 16kHz",
		Tags:        []string{"Pipeline"},
	}, s.handleConvertAudio)
}

type ScanFilesInput struct {
	Root string `query:"root" required:"true" doc:"Directory to scan for audio files"`
}

type ScanFilesOutput struct {
	Body struct {
		Files []ScannedFile `json:"files"`
	}
}

type ScannedFile struct {
	Path           string `json:"path"`
	Name           string `json:"name"`
	SizeBytes      int64  `json:"sizeBytes"`
	ModifiedMillis int64  `json:"modifiedMillis"`
}

func (s *Server) handleScanFiles(ctx context.Context, input *ScanFilesInput) (*ScanFilesOutput, error) {
	entries, err := s.scanner.Scan(ctx, input.Root)
	if err != nil {
		return nil, huma.Error422UnprocessableEntity(err.Error(), err)
	}

	out := &ScanFilesOutput{}
	out.Body.Files = make([]ScannedFile, 0, len(entries))
	for _, e := range entries {
		out.Body.Files = append(out.Body.Files, ScannedFile{Path: e.Path, Name: e.Name, SizeBytes: e.Size, ModifiedMillis: e.ModifiedMillis})
	}
	return out, nil
}

type HashFileInput struct {
	Body struct {
		BatchID string `json:"batchId" required:"true"`
		Path    string `json:"path" required:"true"`
	}
}

type HashFileOutput struct {
	Body struct {
		SHA256 string `json:"sha256"`
	}
}

func (s *Server) handleHashFile(_ context.Context, input *HashFileInput) (*HashFileOutput, error) {
	sha, err := s.hasher.Hash(input.Body.BatchID, input.Body.Path)
	if err != nil {
		return nil, huma.Error422UnprocessableEntity(err.Error(), err)
	}
	out := &HashFileOutput{}
	out.Body.SHA256 = sha
	return out, nil
}

type CopyWithHashInput struct {
	Body struct {
		BatchID string `json:"batchId" required:"true"`
		Src     string `json:"src" required:"true"`
		Dst     string `json:"dst" required:"true"`
	}
}

type CopyWithHashOutput struct {
	Body struct {
		SHA256 string `json:"sha256"`
	}
}

func (s *Server) handleCopyWithHash(_ context.Context, input *CopyWithHashInput) (*CopyWithHashOutput, error) {
	sha, err := s.hasher.CopyWithHash(input.Body.BatchID, input.Body.Src, input.Body.Dst)
	if err != nil {
		return nil, huma.Error422UnprocessableEntity(err.Error(), err)
	}
	out := &CopyWithHashOutput{}
	out.Body.SHA256 = sha
	return out, nil
}

type CheckFfmpegOutput struct {
	Body struct {
		Runnable bool `json:"runnable"`
	}
}

func (s *Server) handleCheckFfmpeg(ctx context.Context, _ *struct{}) (*CheckFfmpegOutput, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	out := &CheckFfmpegOutput{}
	out.Body.Runnable = s.transcoder.Probe(ctx)
	return out, nil
}

type DetectFfmpegPathOutput struct {
	Body struct {
		Path string `json:"path,omitempty"`
	}
}

func (s *Server) handleDetectFfmpegPath(ctx context.Context, _ *struct{}) (*DetectFfmpegPathOutput, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	out := &DetectFfmpegPathOutput{}
	out.Body.Path = transcode.Locate(ctx)
	return out, nil
}

type NeedsConversionInput struct {
	FileName string `query:"fileName" required:"true"`
	SizeByte int64  `query:"sizeBytes" required:"true"`
}

type NeedsConversionOutput struct {
	Body struct {
		NeedsConversion bool `json:"needsConversion"`
	}
}

func (s *Server) handleNeedsConversion(_ context.Context, input *NeedsConversionInput) (*NeedsConversionOutput, error) {
	out := &NeedsConversionOutput{}
	out.Body.NeedsConversion = transcode.NeedsConversion(input.FileName, input.SizeByte)
	return out, nil
}

type ConvertAudioInput struct {
	Body struct {
		InputPath  string `json:"inputPath" required:"true"`
		OutputPath string `json:"outputPath" required:"true"`
	}
}

type ConvertAudioOutput struct {
	Body struct {
		DurationSeconds float64 `json:"durationSeconds,omitempty"`
		BitRate         int     `json:"bitRate,omitempty"`
		SampleRate      int     `json:"sampleRate,omitempty"`
		Channels        int     `json:"channels,omitempty"`
	}
}

func (s *Server) handleConvertAudio(ctx context.Context, input *ConvertAudioInput) (*ConvertAudioOutput, error) {
	if err := s.transcoder.Convert(ctx, input.Body.InputPath, input.Body.OutputPath); err != nil {
		return nil, huma.Error422UnprocessableEntity(err.Error(), err)
	}

	out := &ConvertAudioOutput{}
	meta, err := transcode.ProbeOutput(input.Body.OutputPath)
	if err != nil {
		s.logger.Warn("failed to probe transcoded output metadata", "path", input.Body.OutputPath, "error", err)
		return out, nil
	}

	out.Body.DurationSeconds = meta.Duration.Seconds()
	out.Body.BitRate = meta.BitRate
	out.Body.SampleRate = meta.SampleRate
	out.Body.Channels = meta.Channels
	return out, nil
}

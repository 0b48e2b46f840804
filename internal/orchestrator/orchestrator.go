// Package orchestrator drives a batch of recordings through staging,
// preflight, and upload, persisting progress after every externally
// observable step so a crash or cancellation always leaves a resumable
// state behind.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fieldnote/recorder-agent/internal/config"
	"github.com/fieldnote/recorder-agent/internal/diskspace"
	"github.com/fieldnote/recorder-agent/internal/domain"
	"github.com/fieldnote/recorder-agent/internal/errors"
	"github.com/fieldnote/recorder-agent/internal/hashcopy"
	"github.com/fieldnote/recorder-agent/internal/id"
	"github.com/fieldnote/recorder-agent/internal/ingeststate"
	"github.com/fieldnote/recorder-agent/internal/logger"
	"github.com/fieldnote/recorder-agent/internal/preflight"
	"github.com/fieldnote/recorder-agent/internal/progress"
	"github.com/fieldnote/recorder-agent/internal/scanner"
	"github.com/fieldnote/recorder-agent/internal/transcode"
	"github.com/fieldnote/recorder-agent/internal/upload"
)

// Orchestrator drives the ingest pipeline for one or more concurrently
// running batches. Every method is safe to call from multiple goroutines;
// per-batch serialization is the caller's responsibility (StartImport and
// ManualUpload each allocate a fresh batch id and run it on one goroutine).
type Orchestrator struct {
	baseDir    string
	store      *ingeststate.Store
	cancel     *ingeststate.CancelRegistry
	scanner    *scanner.Scanner
	hasher     *hashcopy.Hasher
	transcoder *transcode.Transcoder
	preflight  *preflight.Client
	uploader   *upload.Uploader
	bus        *progress.Bus
	settings   *config.SettingsStore
	logger     *slog.Logger
}

// New creates an Orchestrator wired to every pipeline stage.
func New(
	baseDir string,
	store *ingeststate.Store,
	cancelRegistry *ingeststate.CancelRegistry,
	sc *scanner.Scanner,
	hasher *hashcopy.Hasher,
	transcoder *transcode.Transcoder,
	preflightClient *preflight.Client,
	uploader *upload.Uploader,
	bus *progress.Bus,
	settings *config.SettingsStore,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		baseDir:    baseDir,
		store:      store,
		cancel:     cancelRegistry,
		scanner:    sc,
		hasher:     hasher,
		transcoder: transcoder,
		preflight:  preflightClient,
		uploader:   uploader,
		bus:        bus,
		settings:   settings,
		logger:     logger,
	}
}

// StartImport allocates a batch id and runs the full ingest pipeline over
// root in a detached goroutine so the caller (the start_import command)
// gets the batch id back immediately. The cancellation registry holds no
// entry for the batch until CancelImport is called for it.
// Errors from the detached run are logged, not returned; progress and
// final batch status are observable through the state store and the
// import-progress event stream.
func (o *Orchestrator) StartImport(deviceID, root string) (string, error) {
	batchID, err := id.BatchID(time.Now())
	if err != nil {
		return "", err
	}

	go func() {
		ctx := context.Background()
		if err := o.run(ctx, batchID, deviceID, root, true); err != nil {
			logger.WithDevice(logger.WithBatch(o.logger, batchID), deviceID).Warn("import ended with error", "error", err)
		}
	}()

	return batchID, nil
}

// ManualUpload is the §4.G alternate entry point: files are hashed in
// place rather than staged, and the per-file quota and transcode steps
// are skipped. It otherwise runs the same preflight-then-upload flow as
// StartImport and returns the batch id immediately.
func (o *Orchestrator) ManualUpload(deviceID string, paths []string) (string, error) {
	batchID, err := id.BatchID(time.Now())
	if err != nil {
		return "", err
	}

	go func() {
		ctx := context.Background()
		if err := o.runManual(ctx, batchID, deviceID, paths); err != nil {
			logger.WithDevice(logger.WithBatch(o.logger, batchID), deviceID).Warn("manual upload ended with error", "error", err)
		}
	}()

	return batchID, nil
}

// CancelImport requests cancellation of batchID. The running orchestrator
// observes this at the next phase boundary or per-file checkpoint.
func (o *Orchestrator) CancelImport(batchID string) {
	o.cancel.Cancel(batchID)
}

type stagedFile struct {
	sha256            string
	fileName          string
	path              string
	size              int64
	recorderCreatedAt time.Time
}

// run drives the full six-stage pipeline for a newly discovered volume.
func (o *Orchestrator) run(ctx context.Context, batchID, deviceID, root string, stage bool) error {
	defer o.cancel.Clear(batchID)

	if err := o.store.CreateBatch(batchID, deviceID); err != nil {
		return err
	}
	o.emitImport(batchID, progress.PhaseScanning, 0, 0, "", "")

	entries, err := o.scanner.Scan(ctx, root)
	if err != nil {
		o.failBatch(batchID, err)
		return err
	}
	if len(entries) == 0 {
		return o.finalize(batchID)
	}

	staged, err := o.stageAndHash(ctx, batchID, deviceID, entries)
	if err != nil {
		return err
	}
	if len(staged) == 0 {
		return o.finalize(batchID)
	}

	if err := o.preflightAndUpload(ctx, batchID, deviceID, staged); err != nil {
		return err
	}

	return o.finalize(batchID)
}

// runManual drives the pipeline for a set of files already resident on
// disk: no staging, no quota check, no transcode.
func (o *Orchestrator) runManual(ctx context.Context, batchID, deviceID string, paths []string) error {
	defer o.cancel.Clear(batchID)

	if err := o.store.CreateBatch(batchID, deviceID); err != nil {
		return err
	}

	staged := make([]stagedFile, 0, len(paths))
	for i, path := range paths {
		if o.cancel.IsCancelled(batchID) {
			return o.returnCancelled(batchID)
		}

		info, err := os.Stat(path)
		if err != nil {
			return errors.IOf(err, "stat %s", path)
		}

		sha256, err := o.hasher.Hash(batchID, path)
		if err != nil {
			return err
		}

		fileName := filepath.Base(path)
		if err := o.store.SetFileStatus(batchID, sha256, domain.FileStatus{}); err != nil {
			return err
		}
		staged = append(staged, stagedFile{
			sha256:            sha256,
			fileName:          fileName,
			path:              path,
			size:              info.Size(),
			recorderCreatedAt: o.scanner.RecorderCreatedAt(path, info.ModTime()),
		})

		o.emitImport(batchID, progress.PhaseScanning, i+1, len(paths), fileName, "")
	}

	if err := o.preflightAndUpload(ctx, batchID, deviceID, staged); err != nil {
		return err
	}

	return o.finalize(batchID)
}

// stageAndHash implements §4.G stage 3: copy each scanned entry into the
// inbox, hashing as it copies, transcoding when required, enforcing the
// storage quota, and checking cancellation before each file.
func (o *Orchestrator) stageAndHash(ctx context.Context, batchID, deviceID string, entries []scanner.Entry) ([]stagedFile, error) {
	staged := make([]stagedFile, 0, len(entries))
	quota := o.settings.MaxStorageBytes()
	if free, err := diskspace.Available(o.baseDir); err != nil {
		o.logger.Warn("failed to read free disk space, relying on configured quota", "baseDir", o.baseDir, "error", err)
	} else if free < quota {
		quota = free
	}
	var stagedBytes int64

	for i, entry := range entries {
		if o.cancel.IsCancelled(batchID) {
			return staged, o.returnCancelled(batchID)
		}
		if err := ctx.Err(); err != nil {
			return staged, o.returnCancelled(batchID)
		}

		if stagedBytes+entry.Size > quota {
			logger.WithBatch(o.logger, batchID).Info("storage quota reached, stopping staging", "stagedBytes", stagedBytes, "quotaBytes", quota)
			break
		}

		o.emitImport(batchID, progress.PhaseCopying, i+1, len(entries), entry.Name, "")

		dest := stagingPath(o.baseDir, batchID, deviceID, entry.Name)
		sha256, err := o.hasher.CopyWithHash(batchID, entry.Path, dest)
		if err != nil {
			return staged, err
		}

		finalPath := dest
		finalName := entry.Name
		if transcode.NeedsConversion(entry.Name, entry.Size) {
			o.emitImport(batchID, progress.PhaseConverting, i+1, len(entries), entry.Name, "")

			mp3Path := withMp3Suffix(dest)
			if err := o.transcoder.Convert(ctx, dest, mp3Path); err != nil {
				return staged, err
			}

			mp3Sha, err := o.hasher.Hash(batchID, mp3Path)
			if err != nil {
				return staged, err
			}
			sha256 = mp3Sha
			finalPath = mp3Path
			finalName = withMp3Suffix(entry.Name)
		}

		if err := o.store.SetFileStatus(batchID, sha256, domain.FileStatus{}); err != nil {
			return staged, err
		}

		stagedBytes += entry.Size
		staged = append(staged, stagedFile{
			sha256:            sha256,
			fileName:          finalName,
			path:              finalPath,
			size:              entry.Size,
			recorderCreatedAt: entry.RecorderCreatedAt,
		})
	}

	return staged, nil
}

// preflightAndUpload implements §4.G stages 4 and 5.
func (o *Orchestrator) preflightAndUpload(ctx context.Context, batchID, deviceID string, staged []stagedFile) error {
	if o.cancel.IsCancelled(batchID) {
		return o.returnCancelled(batchID)
	}

	o.emitImport(batchID, progress.PhasePreflight, 0, len(staged), "", "")

	files := make([]preflight.File, 0, len(staged))
	bySha := make(map[string]stagedFile, len(staged))
	for _, f := range staged {
		bySha[f.sha256] = f
		files = append(files, preflight.File{
			DeviceID:              deviceID,
			OriginalFileName:      f.fileName,
			RecorderFileCreatedAt: f.recorderCreatedAt.UTC().Format(time.RFC3339),
			SizeBytes:             f.size,
			SHA256:                f.sha256,
		})
	}

	results, err := o.preflight.PreflightBatch(ctx, batchID, files)
	if err != nil {
		o.failBatch(batchID, err)
		return err
	}

	var newFiles []stagedFile
	for _, result := range results {
		status := domain.FileStatus{RecordingID: result.RecordingID}
		if result.UploadID != nil {
			status.UploadID = result.UploadID
		}
		if result.RawR2Key != nil {
			status.RawR2Key = result.RawR2Key
		}
		if result.Status == preflight.StatusAlreadyExists {
			status.Uploaded = true
		}
		if err := o.store.SetFileStatus(batchID, result.SHA256, status); err != nil {
			return err
		}
		if result.Status == preflight.StatusNew {
			if f, ok := bySha[result.SHA256]; ok {
				newFiles = append(newFiles, f)
			}
		}
	}

	o.emitImport(batchID, progress.PhaseUploading, 0, len(newFiles), "", "")

	for i, f := range newFiles {
		if o.cancel.IsCancelled(batchID) {
			return o.returnCancelled(batchID)
		}

		o.emitImport(batchID, progress.PhaseUploading, i+1, len(newFiles), f.fileName, "")

		if err := o.uploader.Upload(ctx, batchID, f.sha256, f.fileName, f.path, f.size); err != nil {
			msg := err.Error()
			batch, ok := o.store.Batch(batchID)
			if !ok {
				return err
			}
			status := batch.Files[f.sha256]
			status.Error = &msg
			if setErr := o.store.SetFileStatus(batchID, f.sha256, status); setErr != nil {
				return setErr
			}
			logger.WithBatch(o.logger, batchID).Warn("file upload failed", "sha256", f.sha256, "error", err)
		}
	}

	return nil
}

// finalize implements §4.G stage 6: derive and persist the batch's
// terminal status from its accumulated FileStatuses.
func (o *Orchestrator) finalize(batchID string) error {
	batch, ok := o.store.Batch(batchID)
	if !ok {
		return errors.NotFoundf("batch %s not found", batchID)
	}

	var status domain.BatchStatus
	phase := progress.PhaseDone
	switch {
	case batch.IsComplete():
		status = domain.BatchCompleted
	case batch.HasErrors():
		status = domain.BatchPartialError
		phase = progress.PhasePartialFail
	default:
		status = domain.BatchUploading
	}

	if err := o.store.SetBatchStatus(batchID, status); err != nil {
		return err
	}

	o.emitImport(batchID, phase, len(batch.Files), len(batch.Files), "", "")
	return nil
}

// failBatch records a batch-wide failure (a stage that aborts the whole
// batch, such as a preflight error) as an error progress event. The
// batch's persisted status is left as OPEN/UPLOADING; its FileStatuses
// reflect whatever work completed before the failure.
func (o *Orchestrator) failBatch(batchID string, err error) {
	o.emitImportMessage(batchID, progress.PhaseError, err.Error())
}

// returnCancelled persists nothing further (the caller has already
// persisted every completed step) and returns the shared Cancelled error
// per invariant 6.
func (o *Orchestrator) returnCancelled(batchID string) error {
	o.emitImportMessage(batchID, progress.PhaseError, "import cancelled")
	return errors.Cancelled()
}

func (o *Orchestrator) emitImport(batchID string, phase progress.ImportPhase, current, total int, fileName, message string) {
	if o.bus == nil {
		return
	}
	o.bus.Emit(progress.NewImportProgressEvent(progress.ImportProgressData{
		BatchID:  batchID,
		Phase:    phase,
		Current:  current,
		Total:    total,
		FileName: fileName,
		Message:  message,
	}))
}

func (o *Orchestrator) emitImportMessage(batchID string, phase progress.ImportPhase, message string) {
	o.emitImport(batchID, phase, 0, 0, "", message)
}

// stagingPath returns the deterministic inbox path for a staged file, per
// the "<base>/inbox/<batchId>/<deviceId>/<originalName>" layout.
func stagingPath(baseDir, batchID, deviceID, originalName string) string {
	return filepath.Join(baseDir, "inbox", batchID, deviceID, originalName)
}

// withMp3Suffix replaces path's extension with ".mp3", preserving its
// stem, matching the transcoded sibling naming rule.
func withMp3Suffix(path string) string {
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	return fmt.Sprintf("%s.mp3", stem)
}

// Package upload performs single-shot and multipart transfers of staged
// recordings to the object store, via presigned URLs obtained from the
// preflight client, with crash-safe resume of in-progress multipart
// uploads.
package upload

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/fieldnote/recorder-agent/internal/domain"
	"github.com/fieldnote/recorder-agent/internal/errors"
	"github.com/fieldnote/recorder-agent/internal/ingeststate"
	"github.com/fieldnote/recorder-agent/internal/preflight"
	"github.com/fieldnote/recorder-agent/internal/progress"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const (
	// singleShotThreshold is the file size above which a transfer is
	// split into multipart uploads instead of one PUT.
	singleShotThreshold = 100 * 1024 * 1024

	// partSize is the fixed size of every multipart part except the
	// last, which carries the remainder.
	partSize = 10 * 1024 * 1024

	// maxConcurrentParts bounds how many part uploads run at once.
	maxConcurrentParts = 4

	transferTimeout = 10 * time.Minute
)

// Uploader transfers staged recordings to the object store.
type Uploader struct {
	http      *http.Client
	preflight *preflight.Client
	store     *ingeststate.Store
	bus       *progress.Bus
	logger    *slog.Logger
}

// New creates an Uploader backed by preflightClient for presign/complete
// calls and store for resumable part bookkeeping.
func New(preflightClient *preflight.Client, store *ingeststate.Store, bus *progress.Bus, logger *slog.Logger) *Uploader {
	return &Uploader{
		http:      &http.Client{Timeout: transferTimeout},
		preflight: preflightClient,
		store:     store,
		bus:       bus,
		logger:    logger,
	}
}

// NeedsMultipart reports whether a file of this size must be uploaded in
// parts rather than a single PUT.
func NeedsMultipart(size int64) bool {
	return size > singleShotThreshold
}

// totalPartsFor returns the number of 10 MiB parts a file of this size
// splits into.
func totalPartsFor(size int64) int {
	return int((size + partSize - 1) / partSize)
}

// Upload transfers the staged file at path (size bytes, content hash
// sha256) belonging to batchID to the object store, resuming any
// in-progress multipart upload recorded in the store. The batch's
// preflight step must have already populated the file's recording id
// and upload token.
func (u *Uploader) Upload(ctx context.Context, batchID, sha256, fileName, path string, size int64) error {
	status, err := u.fileStatus(batchID, sha256)
	if err != nil {
		return err
	}
	if status.Uploaded {
		return nil
	}
	if status.RecordingID == "" || status.UploadID == nil {
		return errors.InvalidInputf("file %s in batch %s has no recording id or upload token; preflight must run first", sha256, batchID)
	}

	if NeedsMultipart(size) {
		if err := u.uploadMultipart(ctx, batchID, sha256, fileName, path, size, status); err != nil {
			return err
		}
	} else {
		if err := u.uploadSingleShot(ctx, status.RecordingID, *status.UploadID, fileName, path, size); err != nil {
			return err
		}
	}

	final, err := u.fileStatus(batchID, sha256)
	if err != nil {
		return err
	}
	final.Uploaded = true
	return u.store.SetFileStatus(batchID, sha256, final)
}

func (u *Uploader) fileStatus(batchID, sha256 string) (domain.FileStatus, error) {
	batch, ok := u.store.Batch(batchID)
	if !ok {
		return domain.FileStatus{}, errors.NotFoundf("batch %s not found", batchID)
	}
	status, ok := batch.Files[sha256]
	if !ok {
		return domain.FileStatus{}, errors.NotFoundf("file %s not staged in batch %s", sha256, batchID)
	}
	return status, nil
}

// uploadSingleShot reads the whole file into memory and PUTs it to the
// presigned single-shot target in one request.
func (u *Uploader) uploadSingleShot(ctx context.Context, recordingID, uploadID, fileName, path string, size int64) error {
	target, err := u.preflight.Presign(ctx, recordingID, uploadID, false)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path) //#nosec G304 -- path is the agent's own staged file
	if err != nil {
		return errors.IOf(err, "read %s", path)
	}

	u.emitProgress(recordingID, fileName, 0, size, 0, 0)

	if err := u.putObject(ctx, target.Method, target.URL, target.Headers, data); err != nil {
		return err
	}

	u.emitProgress(recordingID, fileName, size, size, 0, 0)
	return nil
}

// uploadMultipart resumes or starts a multipart upload: any part number
// already in status.CompletedParts is skipped, the remaining parts run
// under a bounded concurrency limit, and completeMultipart is called
// with the full sorted part set once every part has succeeded.
func (u *Uploader) uploadMultipart(ctx context.Context, batchID, sha256, fileName, path string, size int64, status domain.FileStatus) error {
	totalParts := totalPartsFor(size)

	uploadID, status, err := u.ensureMultipartUpload(ctx, batchID, sha256, status)
	if err != nil {
		return err
	}

	pending := status.PendingParts(totalParts)

	completed := make([]domain.CompletedPart, len(status.CompletedParts))
	copy(completed, status.CompletedParts)
	var mu sync.Mutex

	sem := semaphore.NewWeighted(maxConcurrentParts)
	group, groupCtx := errgroup.WithContext(ctx)

	for _, partNumber := range pending {
		partNumber := partNumber
		group.Go(func() error {
			if err := sem.Acquire(groupCtx, 1); err != nil {
				return errors.Wrap(err, errors.CodeCancelled, "acquire part upload slot")
			}
			defer sem.Release(1)

			part, err := u.uploadPart(groupCtx, status.RecordingID, uploadID, fileName, path, size, partNumber, totalParts)
			if err != nil {
				return err
			}

			mu.Lock()
			completed = append(completed, part)
			sorted := sortCompletedParts(completed)
			status.CompletedParts = sorted
			persistErr := u.store.SetFileStatus(batchID, sha256, status)
			mu.Unlock()
			if persistErr != nil {
				return persistErr
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return err
	}

	parts := make([]preflight.CompletedPart, 0, totalParts)
	for _, p := range sortCompletedParts(completed) {
		parts = append(parts, preflight.CompletedPart{PartNumber: p.PartNumber, ETag: p.ETag})
	}
	return u.preflight.CompleteMultipart(ctx, status.RecordingID, uploadID, parts)
}

// ensureMultipartUpload returns the storage-side multipart upload id,
// presigning a new one and persisting it before any part work begins if
// the batch state doesn't already carry one.
func (u *Uploader) ensureMultipartUpload(ctx context.Context, batchID, sha256 string, status domain.FileStatus) (string, domain.FileStatus, error) {
	if status.MultipartUploadID != nil && *status.MultipartUploadID != "" {
		return *status.MultipartUploadID, status, nil
	}

	target, err := u.preflight.Presign(ctx, status.RecordingID, *status.UploadID, true)
	if err != nil {
		return "", status, err
	}
	if target.UploadID == nil || *target.UploadID == "" {
		return "", status, errors.InvalidInputf("presign for recording %s did not return a multipart upload id", status.RecordingID)
	}

	status.MultipartUploadID = target.UploadID
	if err := u.store.SetFileStatus(batchID, sha256, status); err != nil {
		return "", status, err
	}
	return *target.UploadID, status, nil
}

// uploadPart uploads one 10 MiB (or smaller, for the final part) slice
// of the file and returns its completed part number and ETag.
func (u *Uploader) uploadPart(ctx context.Context, recordingID, uploadID, fileName, path string, size int64, partNumber, totalParts int) (domain.CompletedPart, error) {
	offset := int64(partNumber-1) * partSize
	length := min(partSize, size-offset)

	file, err := os.Open(path) //#nosec G304 -- path is the agent's own staged file
	if err != nil {
		return domain.CompletedPart{}, errors.IOf(err, "open %s", path)
	}
	defer file.Close()

	buf := make([]byte, length)
	if _, err := io.ReadFull(io.NewSectionReader(file, offset, length), buf); err != nil {
		return domain.CompletedPart{}, errors.IOf(err, "read part %d of %s", partNumber, path)
	}

	url, err := u.preflight.PresignPart(ctx, recordingID, uploadID, partNumber)
	if err != nil {
		return domain.CompletedPart{}, err
	}

	etag, err := u.putPart(ctx, url, buf)
	if err != nil {
		return domain.CompletedPart{}, err
	}

	u.emitProgress(recordingID, fileName, offset+length, size, partNumber, totalParts)
	return domain.CompletedPart{PartNumber: partNumber, ETag: etag}, nil
}

// putPart PUTs one part's bytes and returns the storage-assigned ETag.
// A missing ETag header is a fatal error for the part: without it the
// eventual completeMultipart call cannot reference this part.
func (u *Uploader) putPart(ctx context.Context, url string, data []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return "", errors.Httpf(err, "build part upload request")
	}
	req.ContentLength = int64(len(data))

	resp, err := u.http.Do(req)
	if err != nil {
		return "", errors.Httpf(err, "execute part upload request")
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", errors.Api(resp.StatusCode, string(body))
	}

	etag := resp.Header.Get("ETag")
	if etag == "" {
		return "", errors.Otherf("storage response for part upload carried no ETag header")
	}
	return etag, nil
}

// putObject PUTs the whole object in one request, copying any headers
// the presign response specified.
func (u *Uploader) putObject(ctx context.Context, method, url string, headers map[string]string, data []byte) error {
	if method == "" {
		method = http.MethodPut
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(data))
	if err != nil {
		return errors.Httpf(err, "build upload request")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	req.ContentLength = int64(len(data))

	resp, err := u.http.Do(req)
	if err != nil {
		return errors.Httpf(err, "execute upload request")
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Api(resp.StatusCode, string(body))
	}
	return nil
}

func (u *Uploader) emitProgress(recordingID, fileName string, bytesUploaded, totalBytes int64, partNumber, totalParts int) {
	if u.bus == nil {
		return
	}
	u.bus.Emit(progress.NewUploadProgressEvent(progress.UploadProgressData{
		RecordingID:   recordingID,
		FileName:      fileName,
		BytesUploaded: bytesUploaded,
		TotalBytes:    totalBytes,
		PartNumber:    partNumber,
		TotalParts:    totalParts,
	}))
}

// sortCompletedParts returns parts sorted ascending by part number with
// duplicate part numbers collapsed to their first occurrence, satisfying
// invariant 3's no-duplicates, non-decreasing requirement.
func sortCompletedParts(parts []domain.CompletedPart) []domain.CompletedPart {
	seen := make(map[int]domain.CompletedPart, len(parts))
	for _, p := range parts {
		if _, ok := seen[p.PartNumber]; !ok {
			seen[p.PartNumber] = p
		}
	}
	out := make([]domain.CompletedPart, 0, len(seen))
	for _, p := range seen {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PartNumber < out[j].PartNumber })
	return out
}

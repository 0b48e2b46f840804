// Package preflight talks to the configured ingest server: batch dedup
// handshake, and the presign/complete operations the uploader needs.
package preflight

import (
	"bytes"
	"context"
	"encoding/json/v2"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/fieldnote/recorder-agent/internal/errors"
	"github.com/fieldnote/recorder-agent/internal/ratelimit"
)

const (
	defaultTimeout = 30 * time.Second
	defaultRPS     = 4.0
	defaultBurst   = 8
)

// Credentials carries the two fixed access headers injected on every
// request when non-empty.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

// Client calls the ingest server's preflight and presign endpoints.
type Client struct {
	http    *http.Client
	limiter *ratelimit.KeyedRateLimiter
	baseURL string

	credMu      sync.RWMutex
	credentials Credentials

	agentID string
}

// New creates a preflight client against baseURL.
func New(baseURL string, credentials Credentials) *Client {
	return &Client{
		http:        &http.Client{Timeout: defaultTimeout},
		limiter:     ratelimit.New(defaultRPS, defaultBurst),
		baseURL:     strings.TrimRight(baseURL, "/"),
		credentials: credentials,
	}
}

// SetCredentials replaces the access headers used on every subsequent
// request, letting a save_auth_credentials command take effect without
// reconstructing the client or interrupting an in-flight upload.
func (c *Client) SetCredentials(credentials Credentials) {
	c.credMu.Lock()
	defer c.credMu.Unlock()
	c.credentials = credentials
}

// SetAgentID sets the X-Agent-Id header sent with every request,
// identifying this agent installation to the ingest server. A zero
// value omits the header.
func (c *Client) SetAgentID(agentID string) {
	c.agentID = agentID
}

// Close releases resources held by the client.
func (c *Client) Close() {
	c.limiter.Stop()
}

// File describes one recording submitted in a preflight batch.
type File struct {
	DeviceID              string `json:"deviceId"`
	OriginalFileName      string `json:"originalFileName"`
	RecorderFileCreatedAt string `json:"recorderFileCreatedAt,omitempty"`
	SizeBytes             int64  `json:"sizeBytes"`
	SHA256                string `json:"sha256"`
}

// Result is the server's per-file verdict from a preflight batch call.
type Result struct {
	SHA256      string  `json:"sha256"`
	Status      string  `json:"status"` // "NEW" | "ALREADY_EXISTS"
	RecordingID string  `json:"recordingId"`
	UploadID    *string `json:"uploadId,omitempty"`
	RawR2Key    *string `json:"rawR2Key,omitempty"`
}

const (
	StatusNew           = "NEW"
	StatusAlreadyExists = "ALREADY_EXISTS"
)

type preflightBatchRequest struct {
	BatchID string `json:"batchId"`
	Files   []File `json:"files"`
}

type preflightBatchResponse struct {
	BatchID string   `json:"batchId"`
	Results []Result `json:"results"`
}

// PreflightBatch submits the dedup handshake for a batch and returns the
// per-file verdicts, in no particular order relative to files.
func (c *Client) PreflightBatch(ctx context.Context, batchID string, files []File) ([]Result, error) {
	var resp preflightBatchResponse
	err := c.postJSON(ctx, "/api/v1/recordings/preflight-batch", preflightBatchRequest{
		BatchID: batchID,
		Files:   files,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// PresignResult is a presigned upload target: the HTTP method and URL to
// use, any headers that must be copied onto the upload request, and (for
// multipart uploads) the storage-side upload id.
type PresignResult struct {
	Method   string            `json:"method"`
	URL      string            `json:"url"`
	Headers  map[string]string `json:"headers"`
	UploadID *string           `json:"uploadId,omitempty"`
}

type presignRequest struct {
	UploadID  string `json:"uploadId"`
	Multipart *bool  `json:"multipart,omitempty"`
}

// Presign requests an upload target for recordingID. Pass multipart=true
// to initiate a multipart upload.
func (c *Client) Presign(ctx context.Context, recordingID, uploadID string, multipart bool) (*PresignResult, error) {
	var multipartPtr *bool
	if multipart {
		multipartPtr = &multipart
	}

	var result PresignResult
	path := fmt.Sprintf("/api/v1/recordings/%s/presign", recordingID)
	if err := c.postJSON(ctx, path, presignRequest{UploadID: uploadID, Multipart: multipartPtr}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

type presignPartRequest struct {
	UploadID   string `json:"uploadId"`
	PartNumber int    `json:"partNumber"`
}

type presignPartResponse struct {
	URL string `json:"url"`
}

// PresignPart requests a presigned URL for one multipart part.
func (c *Client) PresignPart(ctx context.Context, recordingID, uploadID string, partNumber int) (string, error) {
	var resp presignPartResponse
	path := fmt.Sprintf("/api/v1/recordings/%s/presign-part", recordingID)
	if err := c.postJSON(ctx, path, presignPartRequest{UploadID: uploadID, PartNumber: partNumber}, &resp); err != nil {
		return "", err
	}
	return resp.URL, nil
}

// CompletedPart is one finished multipart upload part.
type CompletedPart struct {
	PartNumber int    `json:"partNumber"`
	ETag       string `json:"etag"`
}

type completeMultipartRequest struct {
	UploadID string          `json:"uploadId"`
	Parts    []CompletedPart `json:"parts"`
}

// CompleteMultipart finalizes a multipart upload once every part has
// succeeded.
func (c *Client) CompleteMultipart(ctx context.Context, recordingID, uploadID string, parts []CompletedPart) error {
	path := fmt.Sprintf("/api/v1/recordings/%s/complete-multipart", recordingID)
	return c.postJSON(ctx, path, completeMultipartRequest{UploadID: uploadID, Parts: parts}, nil)
}

// postJSON marshals body, POSTs it to path under the base URL with the
// configured auth headers, rate-limited per host, and unmarshals the
// response into out (if non-nil). Non-2xx responses fail with the
// captured status code and body.
func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	if err := c.limiter.WaitURL(ctx, c.baseURL); err != nil {
		return errors.Wrapf(err, errors.CodeCancelled, "rate limit wait for %s", path)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Otherf("marshal request body for %s: %v", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return errors.Httpf(err, "build request for %s", path)
	}
	req.Header.Set("Content-Type", "application/json")
	c.applyAuthHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Httpf(err, "execute request to %s", path)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Httpf(err, "read response from %s", path)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Api(resp.StatusCode, string(respBody))
	}

	if out == nil {
		return nil
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return errors.Otherf("decode response from %s: %v", path, err)
	}
	return nil
}

func (c *Client) applyAuthHeaders(req *http.Request) {
	c.credMu.RLock()
	creds := c.credentials
	c.credMu.RUnlock()

	if creds.ClientID != "" {
		req.Header.Set("Cf-Access-Client-Id", creds.ClientID)
	}
	if creds.ClientSecret != "" {
		req.Header.Set("Cf-Access-Client-Secret", creds.ClientSecret)
	}
	if c.agentID != "" {
		req.Header.Set("X-Agent-Id", c.agentID)
	}
}

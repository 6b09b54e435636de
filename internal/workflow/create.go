package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"inkwell/internal/gateway"
	"inkwell/internal/middleware"
	"inkwell/internal/models"
)

const (
	maxTitleLen = 300
	maxBodyLen  = 50000
)

// CreateStatus tags the outcome of the creation workflow so callers and
// tests can distinguish failure causes instead of a single collapsed error.
type CreateStatus int

const (
	StatusCreated CreateStatus = iota
	StatusValidationFailed
	StatusUploadFailed
	StatusPersistFailed
)

func (s CreateStatus) String() string {
	switch s {
	case StatusCreated:
		return "created"
	case StatusValidationFailed:
		return "validation_failed"
	case StatusUploadFailed:
		return "upload_failed"
	case StatusPersistFailed:
		return "persist_failed"
	}
	return "unknown"
}

// ImageFile is the submitted binary with its declared content type.
type ImageFile struct {
	Content     []byte
	ContentType string
}

// CreateInput is a structured creation submission.
type CreateInput struct {
	Token string
	Title string
	Body  string
	Image ImageFile
}

// CreateResult is the tagged outcome of a creation attempt.
type CreateResult struct {
	Status     CreateStatus
	PostID     uint
	RedirectTo string
	Err        error
}

// Message returns the caller-facing failure text. The upload variant keeps
// its specific message; every other failure collapses to the generic one.
func (r *CreateResult) Message() string {
	switch r.Status {
	case StatusCreated:
		return ""
	case StatusUploadFailed:
		return "Failed to upload image"
	default:
		return "Failed to create posts."
	}
}

// Create runs the post-creation submission: validate, request an upload URL,
// upload the binary directly, then persist the record. Each step gates the
// next because each step's result is a data dependency of the next (token,
// ticket URL, storage id). The workflow provides no idempotency across
// retries: resubmission creates a duplicate post, and a ticket issued before
// a failed persist is never compensated (it only expires).
type Create struct {
	gw     gateway.Gateway
	client *http.Client
}

// NewCreate creates the creation workflow. A nil client falls back to
// http.DefaultClient.
func NewCreate(gw gateway.Gateway, client *http.Client) *Create {
	if client == nil {
		client = http.DefaultClient
	}
	return &Create{gw: gw, client: client}
}

// Run executes the workflow and always returns a result value; creation
// failures are recovered locally and never crash the page.
func (w *Create) Run(ctx context.Context, in CreateInput) *CreateResult {
	result := w.run(ctx, in)
	middleware.WorkflowResults.WithLabelValues("create_post", result.Status.String()).Inc()
	return result
}

func (w *Create) run(ctx context.Context, in CreateInput) *CreateResult {
	// Schema violations short-circuit before any side effect.
	if err := validateCreate(in); err != nil {
		return &CreateResult{Status: StatusValidationFailed, Err: err}
	}

	uploadURL, err := w.gw.GenerateImageUploadURL(ctx, in.Token)
	if err != nil {
		return &CreateResult{Status: StatusPersistFailed, Err: err}
	}

	storageID, result := w.upload(ctx, uploadURL, in.Image)
	if result != nil {
		return result
	}

	postID, err := w.gw.CreatePost(ctx, in.Token, gateway.CreatePostArgs{
		Title:          in.Title,
		Body:           in.Body,
		ImageStorageID: storageID,
	})
	if err != nil {
		// The upload ticket was already consumed; the stored blob is
		// orphaned and nothing cleans it up.
		return &CreateResult{Status: StatusPersistFailed, Err: err}
	}

	return &CreateResult{Status: StatusCreated, PostID: postID, RedirectTo: "/blog"}
}

// upload POSTs the binary to the single-use URL and parses the storage id
// from the response body. A non-success status is the one failure with its
// own caller-facing message; transport and decode faults collapse into the
// generic variant.
func (w *Create) upload(ctx context.Context, uploadURL string, image ImageFile) (string, *CreateResult) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, bytes.NewReader(image.Content))
	if err != nil {
		return "", &CreateResult{Status: StatusPersistFailed, Err: err}
	}
	req.Header.Set("Content-Type", image.ContentType)

	resp, err := w.client.Do(req)
	if err != nil {
		return "", &CreateResult{Status: StatusPersistFailed, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", &CreateResult{Status: StatusUploadFailed}
	}

	var body struct {
		StorageID string `json:"storageId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", &CreateResult{Status: StatusPersistFailed, Err: err}
	}
	if body.StorageID == "" {
		return "", &CreateResult{Status: StatusPersistFailed}
	}
	return body.StorageID, nil
}

func validateCreate(in CreateInput) error {
	if strings.TrimSpace(in.Title) == "" {
		return models.NewValidationError("Title is required")
	}
	if len(in.Title) > maxTitleLen {
		return models.NewValidationError("Title too long (max 300 characters)")
	}
	if strings.TrimSpace(in.Body) == "" {
		return models.NewValidationError("Content is required")
	}
	if len(in.Body) > maxBodyLen {
		return models.NewValidationError("Content too long (max 50000 characters)")
	}
	if len(in.Image.Content) == 0 {
		return models.NewValidationError("Image is required")
	}
	if !strings.HasPrefix(in.Image.ContentType, "image/") {
		return models.NewValidationError("Image must declare an image content type")
	}
	return nil
}

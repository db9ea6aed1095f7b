package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophdrive/internal/common"
	"github.com/dmitrijs2005/gophdrive/internal/logging"
	"github.com/dmitrijs2005/gophdrive/internal/server/models"
	"github.com/dmitrijs2005/gophdrive/internal/server/storage"
)

// UploadState is a step of one upload.
type UploadState int

const (
	StateValidating UploadState = iota
	StateStoring
	StatePersisting
	StateDone
	StateFailed
)

func (s UploadState) String() string {
	switch s {
	case StateValidating:
		return "validating"
	case StateStoring:
		return "storing"
	case StatePersisting:
		return "persisting"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// UploadError reports the state an upload failed in.
type UploadError struct {
	State UploadState
	Err   error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload failed while %s: %v", e.State, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// UploadRequest is one multipart upload as the HTTP layer parsed it.
// FolderID and Name carry the raw form values; HasFolderID and HasName tell
// whether the fields were sent at all.
type UploadRequest struct {
	File        io.Reader
	FileName    string
	ContentType string
	FolderID    string
	HasFolderID bool
	Name        string
	HasName     bool
	OnProgress  func(transferred int64)
}

// UploadService drives Validating, Storing, Persisting and Done for one
// request and guarantees that a failed upload leaves no stored object.
type UploadService struct {
	engine  storage.Engine
	files   *FileService
	logger  logging.Logger
	timeout time.Duration
}

// NewUploadService builds the pipeline. cleanupTimeout bounds the
// compensating remove after a persist failure.
func NewUploadService(engine storage.Engine, files *FileService, logger logging.Logger, cleanupTimeout time.Duration) *UploadService {
	if logger == nil {
		logger = logging.NopLogger{}
	}
	return &UploadService{
		engine:  engine,
		files:   files,
		logger:  logger.With("module", "upload"),
		timeout: cleanupTimeout,
	}
}

type validatedUpload struct {
	name     string
	folderID *int64
	mimeType string
}

func detectMimeType(header, fileName string) string {
	if header != "" {
		if mt, _, err := mime.ParseMediaType(header); err == nil && mt != "application/octet-stream" {
			return mt
		}
	}
	if mt := mime.TypeByExtension(strings.ToLower(filepath.Ext(fileName))); mt != "" {
		if parsed, _, err := mime.ParseMediaType(mt); err == nil {
			return parsed
		}
		return mt
	}
	return "application/octet-stream"
}

// validate collects every violation instead of stopping at the first.
func validate(req *UploadRequest) (*validatedUpload, error) {
	var violations []string
	out := &validatedUpload{}

	if req.File == nil {
		violations = append(violations, "file is required")
	}
	fileName := strings.TrimSpace(req.FileName)
	if req.File != nil && fileName == "" {
		violations = append(violations, "file name is required")
	}

	if req.HasFolderID && strings.TrimSpace(req.FolderID) != "" {
		id, err := strconv.ParseInt(strings.TrimSpace(req.FolderID), 10, 64)
		if err != nil || id <= 0 {
			violations = append(violations, "folderId must be a positive integer")
		} else {
			out.folderID = &id
		}
	}

	name := fileName
	if req.HasName && strings.TrimSpace(req.Name) != "" {
		name = req.Name
	}
	name, v := validateName("name", name)
	if fileName != "" || req.HasName {
		violations = append(violations, v...)
	}
	out.name = name

	if err := common.NewValidationError(violations...); err != nil {
		return nil, err
	}

	out.mimeType = detectMimeType(req.ContentType, fileName)
	return out, nil
}

// Upload runs one upload to completion or failure for actor.
func (s *UploadService) Upload(ctx context.Context, req *UploadRequest, actor int64) (*models.File, error) {
	state := StateValidating
	fail := func(err error) (*models.File, error) {
		s.logger.Debug(ctx, "upload failed", "state", state.String(), "error", err)
		return nil, &UploadError{State: state, Err: err}
	}

	v, err := validate(req)
	if err != nil {
		return fail(err)
	}

	state = StateStoring
	s.logger.Debug(ctx, "upload state", "state", state.String(), "file", req.FileName)
	d, err := s.engine.Store(ctx, storage.StoreRequest{
		Body:         req.File,
		DeclaredName: req.FileName,
		ContentType:  v.mimeType,
		OnProgress:   req.OnProgress,
	})
	if err != nil {
		return fail(err)
	}

	state = StatePersisting
	s.logger.Debug(ctx, "upload state", "state", state.String(), "key", d.Key, "size", d.Size)
	file, err := s.files.Create(ctx, d, FileMeta{Name: v.name, MimeType: v.mimeType}, actor, v.folderID)
	if err != nil {
		return fail(s.compensate(ctx, d.Key, err))
	}

	state = StateDone
	s.logger.Debug(ctx, "upload state", "state", state.String(), "file_id", file.ID)
	return file, nil
}

// compensate removes a stored object whose metadata row could not be
// written. The remove runs even if the request context is gone.
func (s *UploadService) compensate(ctx context.Context, key string, cause error) error {
	d := s.timeout
	if d <= 0 {
		d = 30 * time.Second
	}
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d)
	defer cancel()

	if err := s.engine.Remove(cctx, key); err != nil {
		s.logger.Error(ctx, "orphaned object after failed persist", "storage_key", key, "cause", cause, "error", err)
		return fmt.Errorf("%w: orphaned key %s: %w", common.ErrInconsistent, key, errors.Join(cause, err))
	}
	s.logger.Info(ctx, "removed object after failed persist", "storage_key", key)
	return cause
}

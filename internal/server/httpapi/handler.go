// Package httpapi is the gin HTTP boundary: authentication, the streaming
// upload endpoint, file and folder management, and public share links.
package httpapi

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophdrive/internal/logging"
	"github.com/dmitrijs2005/gophdrive/internal/server/models"
	"github.com/dmitrijs2005/gophdrive/internal/server/services"
)

type UserService interface {
	Register(ctx context.Context, username, password string) (*models.User, error)
	Login(ctx context.Context, username, password string) (string, error)
	Authenticate(token string) (int64, error)
}

type UploadService interface {
	Upload(ctx context.Context, req *services.UploadRequest, actor int64) (*models.File, error)
}

type FileService interface {
	Get(ctx context.Context, id, actor int64) (*models.File, error)
	ListLoose(ctx context.Context, actor int64) ([]*models.File, error)
	Rename(ctx context.Context, id int64, newName string, actor int64) (*models.File, error)
	Move(ctx context.Context, id int64, newFolderID *int64, actor int64) (*models.File, error)
	Delete(ctx context.Context, id, actor int64) error
	DownloadURL(ctx context.Context, id, actor int64, ttl time.Duration) (string, error)
}

type FolderService interface {
	Create(ctx context.Context, name string, actor int64) (*models.Folder, error)
	Get(ctx context.Context, id, actor int64) (*models.FolderView, error)
	List(ctx context.Context, actor int64) ([]*models.Folder, error)
	Rename(ctx context.Context, id int64, name string, actor int64) (*models.Folder, error)
	UpdateMembership(ctx context.Context, folderID int64, add, remove []int64, actor int64) (*models.FolderView, error)
	Delete(ctx context.Context, id, actor int64, policy services.DeletePolicy) error
}

type ShareService interface {
	Issue(ctx context.Context, folderID, actor int64, durationDays float64) (*models.Share, error)
	Resolve(ctx context.Context, token string) (*models.SharedFolder, error)
	List(ctx context.Context, folderID, actor int64) ([]*models.Share, error)
	Revoke(ctx context.Context, token string, actor int64) error
}

// Handler holds the services behind every route.
type Handler struct {
	users   UserService
	uploads UploadService
	files   FileService
	folders FolderService
	shares  ShareService
	logger  logging.Logger

	maxUploadBytes int64
	downloadTTL    time.Duration
}

// Options configures a Handler.
type Options struct {
	Users   UserService
	Uploads UploadService
	Files   FileService
	Folders FolderService
	Shares  ShareService
	Logger  logging.Logger

	// MaxUploadBytes limits the upload request body; 0 means no limit.
	MaxUploadBytes int64
	// DownloadTTL is the lifetime of signed download links.
	DownloadTTL time.Duration
	// StaticPath and StaticDir serve locally stored objects when set.
	StaticPath string
	StaticDir  string
}

func NewHandler(o Options) *Handler {
	logger := o.Logger
	if logger == nil {
		logger = logging.NopLogger{}
	}
	ttl := o.DownloadTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Handler{
		users:          o.Users,
		uploads:        o.Uploads,
		files:          o.Files,
		folders:        o.Folders,
		shares:         o.Shares,
		logger:         logger.With("module", "http"),
		maxUploadBytes: o.MaxUploadBytes,
		downloadTTL:    ttl,
	}
}

package files

import (
	"context"

	"github.com/dmitrijs2005/gophdrive/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, file *models.File) (*models.File, error)
	Get(ctx context.Context, id int64) (*models.File, error)
	// Lock reads the file with a row lock held until the surrounding
	// transaction ends.
	Lock(ctx context.Context, id int64) (*models.File, error)
	ListByFolder(ctx context.Context, folderID int64) ([]*models.File, error)
	ListLoose(ctx context.Context, ownerID int64) ([]*models.File, error)
	SetFolder(ctx context.Context, id int64, folderID *int64) error
	Rename(ctx context.Context, id int64, name string) error
	Delete(ctx context.Context, id int64) error
	// DetachFolder clears folder_id on every member of folderID and returns
	// how many rows changed.
	DetachFolder(ctx context.Context, folderID int64) (int64, error)
	CountByFolder(ctx context.Context, folderID int64) (int64, error)
}

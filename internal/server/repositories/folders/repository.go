package folders

import (
	"context"

	"github.com/dmitrijs2005/gophdrive/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, folder *models.Folder) (*models.Folder, error)
	Get(ctx context.Context, id int64) (*models.Folder, error)
	// Lock reads the folder with a row lock held until the surrounding
	// transaction ends.
	Lock(ctx context.Context, id int64) (*models.Folder, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]*models.Folder, error)
	Rename(ctx context.Context, id int64, name string) error
	Delete(ctx context.Context, id int64) error
}

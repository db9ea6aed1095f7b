package shares

import (
	"context"

	"github.com/dmitrijs2005/gophdrive/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, share *models.Share) (*models.Share, error)
	Get(ctx context.Context, token string) (*models.Share, error)
	ListByFolder(ctx context.Context, folderID int64) ([]*models.Share, error)
	Delete(ctx context.Context, token string) error
}

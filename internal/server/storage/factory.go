package storage

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/gophdrive/internal/common"
	"github.com/dmitrijs2005/gophdrive/internal/logging"
	"github.com/dmitrijs2005/gophdrive/internal/server/config"
)

// New selects the engine named by cfg.StorageBackend.
func New(ctx context.Context, cfg *config.Config, logger logging.Logger) (Engine, error) {
	switch cfg.StorageBackend {
	case config.StorageLocal:
		return NewLocalEngine(cfg.LocalStorageDir, cfg.LocalBaseURL, cfg.StorageTimeout, logger)
	case config.StorageS3, "":
		return NewS3Engine(ctx, S3Options{
			Bucket:        cfg.S3Bucket,
			Region:        cfg.S3Region,
			Endpoint:      cfg.S3BaseEndpoint,
			AccessKey:     cfg.S3RootUser,
			SecretKey:     cfg.S3RootPassword,
			PublicBaseURL: cfg.S3PublicBaseURL,
			PartSize:      cfg.S3PartSize,
			Timeout:       cfg.StorageTimeout,
		}, logger)
	default:
		return nil, fmt.Errorf("%w: unknown storage backend %q", common.ErrValidation, cfg.StorageBackend)
	}
}

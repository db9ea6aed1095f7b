package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/dmitrijs2005/gophdrive/internal/common"
	"github.com/dmitrijs2005/gophdrive/internal/logging"
	"github.com/dmitrijs2005/gophdrive/internal/server/models"
	"github.com/dmitrijs2005/gophdrive/internal/server/repositories/repomanager"
)

// MaxShareDays caps how long a share link may live.
const MaxShareDays = 3650

// ShareCache is an optional token lookup cache. Get returns
// common.ErrNotFound on a miss. Revoke tombstones a token for ttl; a
// tombstoned token reads as a miss even if a record is set again later.
type ShareCache interface {
	Get(ctx context.Context, token string) (*models.Share, error)
	Set(ctx context.Context, share *models.Share, ttl time.Duration) error
	Revoke(ctx context.Context, token string, ttl time.Duration) error
}

// ShareService issues and resolves expiring read-only folder links.
type ShareService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	cache       ShareCache
	logger      logging.Logger
	now         func() time.Time
}

// NewShareService constructs a ShareService. cache may be nil.
func NewShareService(db *sql.DB, m repomanager.RepositoryManager, cache ShareCache, logger logging.Logger) *ShareService {
	if logger == nil {
		logger = logging.NopLogger{}
	}
	return &ShareService{
		db:          db,
		repomanager: m,
		cache:       cache,
		logger:      logger.With("module", "shares"),
		now:         time.Now,
	}
}

func (s *ShareService) ownedFolder(ctx context.Context, folderID, actor int64) (*models.Folder, error) {
	folder, err := s.repomanager.Folders(s.db).Get(ctx, folderID)
	if err != nil {
		return nil, err
	}
	if err := ownedFolder(folder, actor); err != nil {
		return nil, err
	}
	return folder, nil
}

// Issue creates a share for folderID valid for durationDays, which may be
// fractional.
func (s *ShareService) Issue(ctx context.Context, folderID, actor int64, durationDays float64) (*models.Share, error) {
	if math.IsNaN(durationDays) || durationDays <= 0 || durationDays > MaxShareDays {
		return nil, common.NewValidationError(fmt.Sprintf("duration must be greater than 0 and at most %d days", MaxShareDays))
	}

	if _, err := s.ownedFolder(ctx, folderID, actor); err != nil {
		return nil, err
	}

	token, err := common.MakeRandHexString(common.ShareTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	share := &models.Share{
		Token:     token,
		FolderID:  folderID,
		ExpiresAt: s.now().Add(time.Duration(durationDays * float64(24*time.Hour))).UTC(),
	}
	return s.repomanager.Shares(s.db).Create(ctx, share)
}

func (s *ShareService) lookup(ctx context.Context, token string) (*models.Share, error) {
	if s.cache != nil {
		share, err := s.cache.Get(ctx, token)
		if err == nil {
			return share, nil
		}
		if !errors.Is(err, common.ErrNotFound) {
			s.logger.Warn(ctx, "share cache read failed", "error", err)
		}
	}

	share, err := s.repomanager.Shares(s.db).Get(ctx, token)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if ttl := share.ExpiresAt.Sub(s.now()); ttl > 0 {
			if err := s.cache.Set(ctx, share, ttl); err != nil {
				s.logger.Warn(ctx, "share cache write failed", "error", err)
			}
		}
	}
	return share, nil
}

// Resolve returns the shared folder and only its own files while
// now < expiresAt, common.ErrExpired afterwards and common.ErrNotFound for
// unknown tokens. It performs no authentication.
func (s *ShareService) Resolve(ctx context.Context, token string) (*models.SharedFolder, error) {
	if token == "" {
		return nil, common.ErrNotFound
	}

	share, err := s.lookup(ctx, token)
	if err != nil {
		return nil, err
	}
	if share.Expired(s.now()) {
		return nil, fmt.Errorf("%w: share expired at %s", common.ErrExpired, share.ExpiresAt.Format(time.RFC3339))
	}

	folder, err := s.repomanager.Folders(s.db).Get(ctx, share.FolderID)
	if err != nil {
		return nil, err
	}
	members, err := s.repomanager.Files(s.db).ListByFolder(ctx, folder.ID)
	if err != nil {
		return nil, err
	}
	if members == nil {
		members = []*models.File{}
	}

	return &models.SharedFolder{
		FolderView: models.FolderView{Folder: *folder, Files: members},
		ExpiresAt:  share.ExpiresAt,
	}, nil
}

// List returns every share of the actor's folder, expired ones included.
func (s *ShareService) List(ctx context.Context, folderID, actor int64) ([]*models.Share, error) {
	if _, err := s.ownedFolder(ctx, folderID, actor); err != nil {
		return nil, err
	}
	return s.repomanager.Shares(s.db).ListByFolder(ctx, folderID)
}

// Revoke deletes a share of one of the actor's folders. With a cache the
// token is tombstoned first; if that fails nothing is deleted and the error
// matches common.ErrStorageUnavailable.
func (s *ShareService) Revoke(ctx context.Context, token string, actor int64) error {
	share, err := s.repomanager.Shares(s.db).Get(ctx, token)
	if err != nil {
		return err
	}
	if _, err := s.ownedFolder(ctx, share.FolderID, actor); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.Revoke(ctx, token, share.ExpiresAt.Sub(s.now())); err != nil {
			s.logger.Error(ctx, "share cache invalidate failed", "error", err)
			return fmt.Errorf("%w: invalidate share cache: %w", common.ErrStorageUnavailable, err)
		}
	}
	return s.repomanager.Shares(s.db).Delete(ctx, token)
}

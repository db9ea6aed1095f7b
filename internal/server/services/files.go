package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dmitrijs2005/gophdrive/internal/common"
	"github.com/dmitrijs2005/gophdrive/internal/dbx"
	"github.com/dmitrijs2005/gophdrive/internal/logging"
	"github.com/dmitrijs2005/gophdrive/internal/server/models"
	"github.com/dmitrijs2005/gophdrive/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophdrive/internal/server/storage"
)

const maxNameLength = 255

// FileMeta is the display metadata kept next to a stored object.
type FileMeta struct {
	Name     string
	MimeType string
}

// FileService owns File rows and frees their backing objects on delete.
type FileService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	engine      storage.Engine
	logger      logging.Logger
}

func NewFileService(db *sql.DB, m repomanager.RepositoryManager, engine storage.Engine, logger logging.Logger) *FileService {
	if logger == nil {
		logger = logging.NopLogger{}
	}
	return &FileService{
		db:          db,
		repomanager: m,
		engine:      engine,
		logger:      logger.With("module", "files"),
	}
}

func validateName(field, name string) (string, []string) {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return name, []string{field + " is required"}
	case utf8.RuneCountInString(name) > maxNameLength:
		return name, []string{fmt.Sprintf("%s must be at most %d characters", field, maxNameLength)}
	}
	return name, nil
}

// assignableFolder locks folderID and checks it belongs to ownerID. Missing
// and foreign folders are both reported as common.ErrForbiddenAssignment.
func (s *FileService) assignableFolder(ctx context.Context, tx dbx.DBTX, folderID, ownerID int64) error {
	folder, err := s.repomanager.Folders(tx).Lock(ctx, folderID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return fmt.Errorf("%w: folder %d", common.ErrForbiddenAssignment, folderID)
		}
		return err
	}
	if folder.OwnerID != ownerID {
		return fmt.Errorf("%w: folder %d", common.ErrForbiddenAssignment, folderID)
	}
	return nil
}

// Create records a stored object as a File owned by ownerID, optionally
// inside folderID.
func (s *FileService) Create(ctx context.Context, d *storage.Descriptor, meta FileMeta, ownerID int64, folderID *int64) (*models.File, error) {
	var violations []string
	if d == nil || d.Key == "" {
		violations = append(violations, "stored object is required")
	}
	name, v := validateName("name", meta.Name)
	violations = append(violations, v...)
	if folderID != nil && *folderID <= 0 {
		violations = append(violations, "folderId must be a positive integer")
	}
	if err := common.NewValidationError(violations...); err != nil {
		return nil, err
	}

	file := &models.File{
		OwnerID:    ownerID,
		FolderID:   folderID,
		Name:       name,
		StorageKey: d.Key,
		Size:       d.Size,
		MimeType:   meta.MimeType,
		Extension:  d.Extension,
		URL:        d.PublicURL,
	}

	if folderID == nil {
		return s.repomanager.Files(s.db).Create(ctx, file)
	}

	return dbx.WithTxResult(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) (*models.File, error) {
		if err := s.assignableFolder(ctx, tx, *folderID, ownerID); err != nil {
			return nil, err
		}
		return s.repomanager.Files(tx).Create(ctx, file)
	})
}

func ownedFile(file *models.File, actor int64) error {
	if file.OwnerID != actor {
		return fmt.Errorf("%w: file %d", common.ErrForbidden, file.ID)
	}
	return nil
}

func (s *FileService) Get(ctx context.Context, id, actor int64) (*models.File, error) {
	file, err := s.repomanager.Files(s.db).Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ownedFile(file, actor); err != nil {
		return nil, err
	}
	return file, nil
}

// DownloadURL returns a link to the file's object. Engines that can sign
// URLs hand out one valid for ttl; others return the public URL.
func (s *FileService) DownloadURL(ctx context.Context, id, actor int64, ttl time.Duration) (string, error) {
	file, err := s.Get(ctx, id, actor)
	if err != nil {
		return "", err
	}
	if signer, ok := s.engine.(storage.SignedURLProvider); ok {
		return signer.SignedURL(ctx, file.StorageKey, ttl)
	}
	return s.engine.URL(file.StorageKey), nil
}

// ListLoose returns the actor's files that are in no folder.
func (s *FileService) ListLoose(ctx context.Context, actor int64) ([]*models.File, error) {
	return s.repomanager.Files(s.db).ListLoose(ctx, actor)
}

func (s *FileService) Rename(ctx context.Context, id int64, newName string, actor int64) (*models.File, error) {
	name, violations := validateName("name", newName)
	if err := common.NewValidationError(violations...); err != nil {
		return nil, err
	}

	return dbx.WithTxResult(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) (*models.File, error) {
		repo := s.repomanager.Files(tx)
		file, err := repo.Lock(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := ownedFile(file, actor); err != nil {
			return nil, err
		}
		if err := repo.Rename(ctx, id, name); err != nil {
			return nil, err
		}
		file.Name = name
		return file, nil
	})
}

// Move sets the file's folder, or makes it loose when newFolderID is nil.
// The target folder is locked before the file.
func (s *FileService) Move(ctx context.Context, id int64, newFolderID *int64, actor int64) (*models.File, error) {
	if newFolderID != nil && *newFolderID <= 0 {
		return nil, common.NewValidationError("folderId must be a positive integer")
	}

	return dbx.WithTxResult(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) (*models.File, error) {
		if newFolderID != nil {
			if err := s.assignableFolder(ctx, tx, *newFolderID, actor); err != nil {
				return nil, err
			}
		}

		repo := s.repomanager.Files(tx)
		file, err := repo.Lock(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := ownedFile(file, actor); err != nil {
			return nil, err
		}
		if err := repo.SetFolder(ctx, id, newFolderID); err != nil {
			return nil, err
		}
		file.FolderID = newFolderID
		return file, nil
	})
}

// Delete removes the backing object and then the row, inside one
// transaction holding the row lock. If the object cannot be removed the row
// stays. If the object is gone but the row cannot be deleted the error
// matches common.ErrInconsistent.
func (s *FileService) Delete(ctx context.Context, id, actor int64) error {
	_, err := s.deleteFile(ctx, id, actor, nil)
	return err
}

// deleteFile implements Delete. When inFolder is set, a file that is no
// longer a member of that folder is left alone and skipped is true.
func (s *FileService) deleteFile(ctx context.Context, id, actor int64, inFolder *int64) (skipped bool, err error) {
	var removedKey string

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Files(tx)
		file, err := repo.Lock(ctx, id)
		if err != nil {
			return err
		}
		if err := ownedFile(file, actor); err != nil {
			return err
		}
		if inFolder != nil && !file.InFolder(*inFolder) {
			skipped = true
			return nil
		}

		if err := s.engine.Remove(ctx, file.StorageKey); err != nil {
			if errors.Is(err, common.ErrStorageUnavailable) {
				return err
			}
			return fmt.Errorf("%w: %w", common.ErrStorageUnavailable, err)
		}
		removedKey = file.StorageKey

		return repo.Delete(ctx, id)
	})

	if err != nil && removedKey != "" {
		s.logger.Error(ctx, "object removed but file row survived",
			"file_id", id, "storage_key", removedKey, "error", err)
		return false, fmt.Errorf("%w: file %d key %s: %w", common.ErrInconsistent, id, removedKey, err)
	}
	return skipped, err
}

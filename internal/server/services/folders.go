package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/dmitrijs2005/gophdrive/internal/common"
	"github.com/dmitrijs2005/gophdrive/internal/dbx"
	"github.com/dmitrijs2005/gophdrive/internal/logging"
	"github.com/dmitrijs2005/gophdrive/internal/server/models"
	"github.com/dmitrijs2005/gophdrive/internal/server/repositories/repomanager"
)

// DeletePolicy says what happens to member files when a folder is deleted.
type DeletePolicy string

const (
	// DeleteDetach makes every member a loose file.
	DeleteDetach DeletePolicy = "detach"
	// DeleteCascade deletes every member file and its object.
	DeleteCascade DeletePolicy = "cascade"
)

// ParseDeletePolicy accepts "detach" and "cascade".
func ParseDeletePolicy(s string) (DeletePolicy, error) {
	switch p := DeletePolicy(s); p {
	case DeleteDetach, DeleteCascade:
		return p, nil
	}
	return "", common.NewValidationError(`policy must be "detach" or "cascade"`)
}

type FolderService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	files       *FileService
	logger      logging.Logger
}

func NewFolderService(db *sql.DB, m repomanager.RepositoryManager, files *FileService, logger logging.Logger) *FolderService {
	if logger == nil {
		logger = logging.NopLogger{}
	}
	return &FolderService{
		db:          db,
		repomanager: m,
		files:       files,
		logger:      logger.With("module", "folders"),
	}
}

func ownedFolder(folder *models.Folder, actor int64) error {
	if folder.OwnerID != actor {
		return fmt.Errorf("%w: folder %d", common.ErrForbidden, folder.ID)
	}
	return nil
}

func (s *FolderService) Create(ctx context.Context, name string, actor int64) (*models.Folder, error) {
	name, violations := validateName("name", name)
	if err := common.NewValidationError(violations...); err != nil {
		return nil, err
	}
	return s.repomanager.Folders(s.db).Create(ctx, &models.Folder{OwnerID: actor, Name: name})
}

// Get returns the folder with its current members.
func (s *FolderService) Get(ctx context.Context, id, actor int64) (*models.FolderView, error) {
	folder, err := s.repomanager.Folders(s.db).Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ownedFolder(folder, actor); err != nil {
		return nil, err
	}
	return s.view(ctx, s.db, folder)
}

func (s *FolderService) view(ctx context.Context, db dbx.DBTX, folder *models.Folder) (*models.FolderView, error) {
	members, err := s.repomanager.Files(db).ListByFolder(ctx, folder.ID)
	if err != nil {
		return nil, err
	}
	if members == nil {
		members = []*models.File{}
	}
	return &models.FolderView{Folder: *folder, Files: members}, nil
}

func (s *FolderService) List(ctx context.Context, actor int64) ([]*models.Folder, error) {
	return s.repomanager.Folders(s.db).ListByOwner(ctx, actor)
}

func (s *FolderService) Rename(ctx context.Context, id int64, name string, actor int64) (*models.Folder, error) {
	name, violations := validateName("name", name)
	if err := common.NewValidationError(violations...); err != nil {
		return nil, err
	}

	return dbx.WithTxResult(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) (*models.Folder, error) {
		repo := s.repomanager.Folders(tx)
		folder, err := repo.Lock(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := ownedFolder(folder, actor); err != nil {
			return nil, err
		}
		if err := repo.Rename(ctx, id, name); err != nil {
			return nil, err
		}
		folder.Name = name
		return folder, nil
	})
}

func validateMembership(add, remove []int64) error {
	var violations []string
	inAdd := make(map[int64]bool, len(add))
	for _, id := range add {
		if id <= 0 {
			violations = append(violations, fmt.Sprintf("addFileIds: %d is not a positive integer", id))
		}
		inAdd[id] = true
	}
	for _, id := range remove {
		if id <= 0 {
			violations = append(violations, fmt.Sprintf("removeFileIds: %d is not a positive integer", id))
		}
		if inAdd[id] && id > 0 {
			violations = append(violations, fmt.Sprintf("file %d is in both addFileIds and removeFileIds", id))
		}
	}
	return common.NewValidationError(violations...)
}

// sortedUnion returns the distinct ids of both lists in ascending order,
// which is the order file rows are locked in.
func sortedUnion(a, b []int64) []int64 {
	seen := make(map[int64]bool, len(a)+len(b))
	var out []int64
	for _, list := range [][]int64{a, b} {
		for _, id := range list {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// UpdateMembership adds and removes files in one transaction. Every check
// runs before the first write, so a failing call changes nothing. Adding a
// file owned by someone else fails with common.ErrForbiddenAssignment;
// adding a file that sits in another folder fails with
// common.ErrAlreadyAssigned. Removing a file that is not a member is a no-op.
func (s *FolderService) UpdateMembership(ctx context.Context, folderID int64, add, remove []int64, actor int64) (*models.FolderView, error) {
	if err := validateMembership(add, remove); err != nil {
		return nil, err
	}

	return dbx.WithTxResult(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) (*models.FolderView, error) {
		folder, err := s.repomanager.Folders(tx).Lock(ctx, folderID)
		if err != nil {
			return nil, err
		}
		if err := ownedFolder(folder, actor); err != nil {
			return nil, err
		}

		filesRepo := s.repomanager.Files(tx)
		locked := make(map[int64]*models.File)
		for _, id := range sortedUnion(add, remove) {
			f, err := filesRepo.Lock(ctx, id)
			if err != nil {
				if errors.Is(err, common.ErrNotFound) {
					return nil, fmt.Errorf("%w: file %d", common.ErrNotFound, id)
				}
				return nil, err
			}
			locked[id] = f
		}

		var toAdd, toRemove []int64
		for _, id := range sortedUnion(add, nil) {
			f := locked[id]
			switch {
			case f.OwnerID != actor:
				return nil, fmt.Errorf("%w: file %d", common.ErrForbiddenAssignment, id)
			case f.InFolder(folderID):
			case f.FolderID != nil:
				return nil, fmt.Errorf("%w: file %d is in folder %d", common.ErrAlreadyAssigned, id, *f.FolderID)
			default:
				toAdd = append(toAdd, id)
			}
		}
		for _, id := range sortedUnion(remove, nil) {
			if locked[id].InFolder(folderID) {
				toRemove = append(toRemove, id)
			}
		}

		for _, id := range toAdd {
			if err := filesRepo.SetFolder(ctx, id, &folderID); err != nil {
				return nil, err
			}
		}
		for _, id := range toRemove {
			if err := filesRepo.SetFolder(ctx, id, nil); err != nil {
				return nil, err
			}
		}

		return s.view(ctx, tx, folder)
	})
}

// Delete removes the folder according to policy. DeleteDetach is atomic:
// on failure the folder and its members are unchanged. DeleteCascade is not:
// if one member fails to delete, members deleted before it stay deleted and
// the folder is kept with the remaining members.
func (s *FolderService) Delete(ctx context.Context, id, actor int64, policy DeletePolicy) error {
	switch policy {
	case DeleteDetach:
		return s.deleteDetach(ctx, id, actor)
	case DeleteCascade:
		return s.deleteCascade(ctx, id, actor)
	}
	return common.NewValidationError(`policy must be "detach" or "cascade"`)
}

// deleteDetach clears every member's folder and deletes the folder in one
// transaction.
func (s *FolderService) deleteDetach(ctx context.Context, id, actor int64) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		folder, err := s.repomanager.Folders(tx).Lock(ctx, id)
		if err != nil {
			return err
		}
		if err := ownedFolder(folder, actor); err != nil {
			return err
		}

		n, err := s.repomanager.Files(tx).DetachFolder(ctx, id)
		if err != nil {
			return err
		}
		s.logger.Debug(ctx, "detached folder members", "folder_id", id, "files", n)

		return s.repomanager.Folders(tx).Delete(ctx, id)
	})
}

// deleteCascade deletes each member through the file delete path (object
// first, then row), then deletes the now empty folder. The first member
// failure stops the run with earlier members already gone. Files added
// while this runs make the final step fail with common.ErrAlreadyAssigned.
func (s *FolderService) deleteCascade(ctx context.Context, id, actor int64) error {
	folder, err := s.repomanager.Folders(s.db).Get(ctx, id)
	if err != nil {
		return err
	}
	if err := ownedFolder(folder, actor); err != nil {
		return err
	}

	members, err := s.repomanager.Files(s.db).ListByFolder(ctx, id)
	if err != nil {
		return err
	}
	for _, f := range members {
		if _, err := s.files.deleteFile(ctx, f.ID, actor, &id); err != nil && !errors.Is(err, common.ErrNotFound) {
			return err
		}
	}

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		folder, err := s.repomanager.Folders(tx).Lock(ctx, id)
		if err != nil {
			return err
		}
		if err := ownedFolder(folder, actor); err != nil {
			return err
		}

		n, err := s.repomanager.Files(tx).CountByFolder(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: folder %d gained %d files during delete", common.ErrAlreadyAssigned, id, n)
		}

		return s.repomanager.Folders(tx).Delete(ctx, id)
	})
}

package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophdrive/internal/common"
	"github.com/dmitrijs2005/gophdrive/internal/dbx"
	"github.com/dmitrijs2005/gophdrive/internal/server/models"
)

// PostgresRepository implements file metadata storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectColumns = `SELECT id, owner_id, folder_id, name, storage_key, size, mime_type, extension, url, created_at FROM files`

type scanner interface {
	Scan(dest ...any) error
}

func scanFile(s scanner) (*models.File, error) {
	var (
		item     models.File
		folderID sql.NullInt64
	)
	err := s.Scan(&item.ID, &item.OwnerID, &folderID, &item.Name, &item.StorageKey,
		&item.Size, &item.MimeType, &item.Extension, &item.URL, &item.CreatedAt)
	if err != nil {
		return nil, err
	}
	if folderID.Valid {
		id := folderID.Int64
		item.FolderID = &id
	}
	return &item, nil
}

func nullable(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

// Create inserts the file row and fills ID and CreatedAt.
func (r *PostgresRepository) Create(ctx context.Context, file *models.File) (*models.File, error) {
	query := `
		INSERT INTO files (owner_id, folder_id, name, storage_key, size, mime_type, extension, url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		file.OwnerID, nullable(file.FolderID), file.Name, file.StorageKey,
		file.Size, file.MimeType, file.Extension, file.URL).Scan(&file.ID, &file.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return file, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id int64) (*models.File, error) {
	return r.getOne(ctx, selectColumns+` WHERE id = $1`, id)
}

func (r *PostgresRepository) Lock(ctx context.Context, id int64) (*models.File, error) {
	return r.getOne(ctx, selectColumns+` WHERE id = $1 FOR UPDATE`, id)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, id int64) (*models.File, error) {
	file, err := scanFile(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return file, nil
}

// ListByFolder returns the folder's members ordered by id.
func (r *PostgresRepository) ListByFolder(ctx context.Context, folderID int64) ([]*models.File, error) {
	return r.list(ctx, selectColumns+` WHERE folder_id = $1 ORDER BY id`, folderID)
}

// ListLoose returns the owner's files that belong to no folder.
func (r *PostgresRepository) ListLoose(ctx context.Context, ownerID int64) ([]*models.File, error) {
	return r.list(ctx, selectColumns+` WHERE owner_id = $1 AND folder_id IS NULL ORDER BY id`, ownerID)
}

func (r *PostgresRepository) list(ctx context.Context, query string, arg int64) ([]*models.File, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to select files: %w", err)
	}
	defer rows.Close()

	var result []*models.File
	for rows.Next() {
		item, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) SetFolder(ctx context.Context, id int64, folderID *int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE files SET folder_id = $2 WHERE id = $1`, id, nullable(folderID))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOneRow(res)
}

func (r *PostgresRepository) Rename(ctx context.Context, id int64, name string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE files SET name = $2 WHERE id = $1`, id, name)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOneRow(res)
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM files WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOneRow(res)
}

func (r *PostgresRepository) DetachFolder(ctx context.Context, folderID int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE files SET folder_id = NULL WHERE folder_id = $1`, folderID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) CountByFolder(ctx context.Context, folderID int64) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM files WHERE folder_id = $1`, folderID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrNotFound
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

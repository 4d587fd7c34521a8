package database

import (
	"context"
	"errors"
	"time"

	"droply/internal/models"

	"github.com/jackc/pgx/v5"
)

type CreateFileParams struct {
	ID           string
	Name         string
	Path         string
	Size         int64
	Type         string
	FileURL      string
	ThumbnailURL *string
	UserID       string
	ParentID     *string
	IsFolder     bool
}

func (s *PostgresStore) CreateFile(ctx context.Context, arg CreateFileParams) (*models.File, error) {
	query := `
		INSERT INTO files (id, name, path, size, type, file_url, thumbnail_url, user_id, parent_id, is_folder, is_starred, is_trash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, FALSE, FALSE, $11, $11)
		RETURNING id, name, path, size, type, file_url, thumbnail_url, user_id, parent_id, is_folder, is_starred, is_trash, created_at, updated_at
	`
	now := time.Now()

	row := s.pool.QueryRow(ctx, query,
		arg.ID,
		arg.Name,
		arg.Path,
		arg.Size,
		arg.Type,
		arg.FileURL,
		arg.ThumbnailURL,
		arg.UserID,
		arg.ParentID,
		arg.IsFolder,
		now,
	)

	var file models.File
	err := row.Scan(
		&file.ID,
		&file.Name,
		&file.Path,
		&file.Size,
		&file.Type,
		&file.FileURL,
		&file.ThumbnailURL,
		&file.UserID,
		&file.ParentID,
		&file.IsFolder,
		&file.IsStarred,
		&file.IsTrash,
		&file.CreatedAt,
		&file.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &file, nil
}

// GetFilesByParentID lists the caller's direct children of parentID, or the
// top-level entries when parentID is nil. Trashed entries are excluded.
func (s *PostgresStore) GetFilesByParentID(ctx context.Context, userID string, parentID *string) ([]models.File, error) {
	var rows pgx.Rows
	var err error

	if parentID == nil {
		query := `SELECT id, name, path, size, type, file_url, thumbnail_url, user_id, parent_id, is_folder, is_starred, is_trash, created_at, updated_at
				 FROM files
				 WHERE user_id = $1 AND parent_id IS NULL AND is_trash = FALSE
				 ORDER BY is_folder DESC, name`
		rows, err = s.pool.Query(ctx, query, userID)
	} else {
		query := `SELECT id, name, path, size, type, file_url, thumbnail_url, user_id, parent_id, is_folder, is_starred, is_trash, created_at, updated_at
				 FROM files
				 WHERE user_id = $1 AND parent_id = $2 AND is_trash = FALSE
				 ORDER BY is_folder DESC, name`
		rows, err = s.pool.Query(ctx, query, userID, *parentID)
	}

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectFiles(rows)
}

func (s *PostgresStore) FileExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	query := "SELECT EXISTS(SELECT 1 FROM files WHERE id = $1)"
	err := s.pool.QueryRow(ctx, query, id).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (s *PostgresStore) GetFileByID(ctx context.Context, id string, userID string) (*models.File, error) {
	query := `
		SELECT id, name, path, size, type, file_url, thumbnail_url, user_id, parent_id, is_folder, is_starred, is_trash, created_at, updated_at
		FROM files
		WHERE id = $1 AND user_id = $2
	`
	return s.queryFile(ctx, query, id, userID)
}

// GetFolderByID resolves a parent reference: the row must exist, belong to
// the caller and actually be a folder.
func (s *PostgresStore) GetFolderByID(ctx context.Context, id string, userID string) (*models.File, error) {
	query := `
		SELECT id, name, path, size, type, file_url, thumbnail_url, user_id, parent_id, is_folder, is_starred, is_trash, created_at, updated_at
		FROM files
		WHERE id = $1 AND user_id = $2 AND is_folder = TRUE
	`
	return s.queryFile(ctx, query, id, userID)
}

// ToggleStarred flips is_starred in a single statement, so two concurrent
// toggles cannot lose an update.
func (s *PostgresStore) ToggleStarred(ctx context.Context, id string, userID string) (*models.File, error) {
	query := `
		UPDATE files
		SET is_starred = NOT is_starred, updated_at = $3
		WHERE id = $1 AND user_id = $2
		RETURNING id, name, path, size, type, file_url, thumbnail_url, user_id, parent_id, is_folder, is_starred, is_trash, created_at, updated_at
	`
	return s.queryFile(ctx, query, id, userID, time.Now())
}

// ToggleTrash flips is_trash, same shape as ToggleStarred.
func (s *PostgresStore) ToggleTrash(ctx context.Context, id string, userID string) (*models.File, error) {
	query := `
		UPDATE files
		SET is_trash = NOT is_trash, updated_at = $3
		WHERE id = $1 AND user_id = $2
		RETURNING id, name, path, size, type, file_url, thumbnail_url, user_id, parent_id, is_folder, is_starred, is_trash, created_at, updated_at
	`
	return s.queryFile(ctx, query, id, userID, time.Now())
}

// DeleteFile hard-deletes a single row and returns it. Children of a
// deleted folder are left in place with a dangling parent_id.
func (s *PostgresStore) DeleteFile(ctx context.Context, id string, userID string) (*models.File, error) {
	query := `
		DELETE FROM files
		WHERE id = $1 AND user_id = $2
		RETURNING id, name, path, size, type, file_url, thumbnail_url, user_id, parent_id, is_folder, is_starred, is_trash, created_at, updated_at
	`
	return s.queryFile(ctx, query, id, userID)
}

func (s *PostgresStore) ListTrash(ctx context.Context, userID string) ([]models.File, error) {
	query := `
		SELECT id, name, path, size, type, file_url, thumbnail_url, user_id, parent_id, is_folder, is_starred, is_trash, created_at, updated_at
		FROM files
		WHERE user_id = $1 AND is_trash = TRUE
		ORDER BY updated_at DESC
	`
	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectFiles(rows)
}

// EmptyTrash hard-deletes every trashed row of the caller and returns the
// deleted rows so the media host objects of the files among them can be
// cleaned up afterwards.
func (s *PostgresStore) EmptyTrash(ctx context.Context, userID string) ([]models.File, error) {
	query := `
		DELETE FROM files
		WHERE user_id = $1 AND is_trash = TRUE
		RETURNING id, name, path, size, type, file_url, thumbnail_url, user_id, parent_id, is_folder, is_starred, is_trash, created_at, updated_at
	`
	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectFiles(rows)
}

func (s *PostgresStore) queryFile(ctx context.Context, query string, args ...interface{}) (*models.File, error) {
	var file models.File
	err := s.pool.QueryRow(ctx, query, args...).Scan(
		&file.ID,
		&file.Name,
		&file.Path,
		&file.Size,
		&file.Type,
		&file.FileURL,
		&file.ThumbnailURL,
		&file.UserID,
		&file.ParentID,
		&file.IsFolder,
		&file.IsStarred,
		&file.IsTrash,
		&file.CreatedAt,
		&file.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &file, nil
}

func collectFiles(rows pgx.Rows) ([]models.File, error) {
	var files []models.File
	for rows.Next() {
		var file models.File
		err := rows.Scan(
			&file.ID,
			&file.Name,
			&file.Path,
			&file.Size,
			&file.Type,
			&file.FileURL,
			&file.ThumbnailURL,
			&file.UserID,
			&file.ParentID,
			&file.IsFolder,
			&file.IsStarred,
			&file.IsTrash,
			&file.CreatedAt,
			&file.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if files == nil {
		return []models.File{}, nil
	}

	return files, nil
}

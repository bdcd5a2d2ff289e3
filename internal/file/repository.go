package file

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/filedrop/service/internal/db"
)

// Repository is the metadata store for file records. All reads and deletes
// are scoped to the owning user.
type Repository interface {
	Insert(ctx context.Context, f *File) error
	ListByOwner(ctx context.Context, userID string) ([]File, error)
	GetByID(ctx context.Context, userID, id string) (*File, error)
	Delete(ctx context.Context, userID, id string) error
}

// PostgresRepository implements Repository over a db.Querier.
type PostgresRepository struct {
	db db.Querier
}

// NewPostgresRepository creates a repository bound to the given database handle.
func NewPostgresRepository(db db.Querier) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Insert stores a new file record and fills in the generated id and timestamp.
func (r *PostgresRepository) Insert(ctx context.Context, f *File) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO files (user_id, file_name, file_type, file_size, storage_key, download_url)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, uploaded_at`,
		f.UserID, f.Name, f.ContentType, f.Size, f.StorageKey, f.DownloadURL,
	).Scan(&f.ID, &f.UploadedAt)
	if err != nil {
		return fmt.Errorf("insert file record: %w", err)
	}
	return nil
}

// ListByOwner returns all of the user's file records, newest first.
func (r *PostgresRepository) ListByOwner(ctx context.Context, userID string) ([]File, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, file_name, file_type, file_size, storage_key, download_url, uploaded_at
		 FROM files
		 WHERE user_id = $1
		 ORDER BY uploaded_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	files := []File{}
	for rows.Next() {
		var f File
		if err := rows.Scan(&f.ID, &f.UserID, &f.Name, &f.ContentType, &f.Size,
			&f.StorageKey, &f.DownloadURL, &f.UploadedAt); err != nil {
			return nil, fmt.Errorf("scan file row: %w", err)
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate file rows: %w", err)
	}
	return files, nil
}

// GetByID fetches one of the user's file records by id.
func (r *PostgresRepository) GetByID(ctx context.Context, userID, id string) (*File, error) {
	f := &File{}
	err := r.db.QueryRow(ctx,
		`SELECT id, user_id, file_name, file_type, file_size, storage_key, download_url, uploaded_at
		 FROM files
		 WHERE id = $1 AND user_id = $2`,
		id, userID,
	).Scan(&f.ID, &f.UserID, &f.Name, &f.ContentType, &f.Size,
		&f.StorageKey, &f.DownloadURL, &f.UploadedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get file by id: %w", err)
	}
	return f, nil
}

// Delete removes one of the user's file records by id.
func (r *PostgresRepository) Delete(ctx context.Context, userID, id string) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM files WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("delete file record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Package user manages user accounts and their persistence.
package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/filedrop/service/internal/db"
)

// User represents a registered account. StorageUsed is owned by the quota
// ledger and mutated only through it.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	StorageUsed  int64     `json:"storageUsed"`
	StorageLimit int64     `json:"storageLimit"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// ErrNotFound is returned when a user does not exist.
var ErrNotFound = errors.New("user not found")

// ErrAlreadyExists is returned when an email is already registered.
var ErrAlreadyExists = errors.New("user already exists")

// Repository handles all user database operations.
type Repository struct {
	db db.Querier
}

// NewRepository creates a new Repository with the given database handle.
func NewRepository(db db.Querier) *Repository {
	return &Repository{db: db}
}

// Create provisions a new account with an empty storage counter and the
// given byte budget, returning the created record.
func (r *Repository) Create(ctx context.Context, email, passwordHash string, storageLimit int64) (*User, error) {
	u := &User{}
	err := r.db.QueryRow(ctx,
		`INSERT INTO users (email, password_hash, storage_limit)
		 VALUES ($1, $2, $3)
		 RETURNING id, email, password_hash, storage_used, storage_limit, created_at, updated_at`,
		email, passwordHash, storageLimit,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.StorageUsed, &u.StorageLimit, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrAlreadyExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// GetByID fetches a user by their UUID.
func (r *Repository) GetByID(ctx context.Context, id string) (*User, error) {
	return r.get(ctx, `WHERE id = $1`, id)
}

// GetByEmail fetches a user by their email address.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.get(ctx, `WHERE email = $1`, email)
}

func (r *Repository) get(ctx context.Context, where string, arg any) (*User, error) {
	u := &User{}
	err := r.db.QueryRow(ctx,
		`SELECT id, email, password_hash, storage_used, storage_limit, created_at, updated_at
		 FROM users `+where,
		arg,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.StorageUsed, &u.StorageLimit, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// isUniqueViolation checks whether an error is a PostgreSQL unique_violation (code 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

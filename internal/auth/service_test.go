package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/filedrop/service/internal/config"
	"github.com/filedrop/service/internal/user"
)

// fakeRow copies canned column values into Scan targets.
type fakeRow struct {
	vals []any
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.vals[i].(string)
		case *int64:
			*p = r.vals[i].(int64)
		case *time.Time:
			*p = r.vals[i].(time.Time)
		}
	}
	return nil
}

// fakeDB answers every QueryRow with the next queued row.
type fakeDB struct {
	rows []fakeRow
}

func (db *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (db *fakeDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}

func (db *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if len(db.rows) == 0 {
		return fakeRow{err: pgx.ErrNoRows}
	}
	row := db.rows[0]
	db.rows = db.rows[1:]
	return row
}

func userRow(id, email, hash string) fakeRow {
	now := time.Now()
	return fakeRow{vals: []any{id, email, hash, int64(0), config.DefaultStorageLimit, now, now}}
}

func newService(db *fakeDB, cfg *config.Config) *Service {
	return NewService(user.NewService(user.NewRepository(db)), cfg)
}

func TestRegisterIssuesValidToken(t *testing.T) {
	cfg := &config.Config{JWTSecret: "test-secret", StorageDefaultLimit: config.DefaultStorageLimit}
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2hunter2"), bcrypt.DefaultCost)
	require.NoError(t, err)
	db := &fakeDB{rows: []fakeRow{userRow("u1", "ada@example.com", string(hash))}}

	token, u, err := newService(db, cfg).Register(context.Background(), "ada@example.com", "hunter2hunter2")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	assert.Equal(t, int64(0), u.StorageUsed)
	assert.Equal(t, config.DefaultStorageLimit, u.StorageLimit)

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		return []byte(cfg.JWTSecret), nil
	})
	require.NoError(t, err)
	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, "u1", claims["sub"])
	assert.Equal(t, "ada@example.com", claims["email"])
}

func TestLoginHappyPath(t *testing.T) {
	cfg := &config.Config{JWTSecret: "test-secret"}
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-password"), bcrypt.DefaultCost)
	require.NoError(t, err)
	db := &fakeDB{rows: []fakeRow{userRow("u1", "ada@example.com", string(hash))}}

	token, u, err := newService(db, cfg).Login(context.Background(), "ada@example.com", "correct-password")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, "u1", u.ID)
}

func TestLoginWrongPassword(t *testing.T) {
	cfg := &config.Config{JWTSecret: "test-secret"}
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-password"), bcrypt.DefaultCost)
	require.NoError(t, err)
	db := &fakeDB{rows: []fakeRow{userRow("u1", "ada@example.com", string(hash))}}

	_, _, err = newService(db, cfg).Login(context.Background(), "ada@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginUnknownEmail(t *testing.T) {
	cfg := &config.Config{JWTSecret: "test-secret"}
	db := &fakeDB{}

	_, _, err := newService(db, cfg).Login(context.Background(), "ghost@example.com", "whatever")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

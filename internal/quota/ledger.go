// Package quota tracks per-account byte budgets and answers admission queries.
package quota

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/filedrop/service/internal/db"
)

// ErrNoAccount is returned when the user has no quota row.
var ErrNoAccount = errors.New("account not found")

// Admission is the answer to a pre-upload quota check.
type Admission struct {
	Admit     bool
	Remaining int64
}

// Usage holds the committed byte counters for an account.
type Usage struct {
	Used  int64 `json:"used"`
	Limit int64 `json:"limit"`
}

// Ledger reads and mutates the storage_used/storage_limit counters on the
// users table. It is a client-side pre-check only: two concurrent uploads can
// both pass CheckAdmission against a stale counter, so hard enforcement needs
// a server-side constraint.
type Ledger struct {
	db db.Querier
}

// NewLedger creates a Ledger over the given database handle.
func NewLedger(db db.Querier) *Ledger {
	return &Ledger{db: db}
}

// CheckAdmission reports whether an upload of candidate bytes fits within the
// user's remaining budget. Exact fits (used + candidate == limit) are admitted.
func (l *Ledger) CheckAdmission(ctx context.Context, userID string, candidate int64) (Admission, error) {
	u, err := l.Current(ctx, userID)
	if err != nil {
		return Admission{}, err
	}
	return Admission{
		Admit:     u.Used+candidate <= u.Limit,
		Remaining: u.Limit - u.Used,
	}, nil
}

// ApplyDelta adds delta bytes (negative to release space) to the user's used
// counter and returns the new value. The counter is clamped at zero inside a
// single UPDATE, so a double-delete cannot drive it negative.
func (l *Ledger) ApplyDelta(ctx context.Context, userID string, delta int64) (int64, error) {
	var newUsed int64
	err := l.db.QueryRow(ctx,
		`UPDATE users
		 SET storage_used = GREATEST(0, storage_used + $2), updated_at = now()
		 WHERE id = $1
		 RETURNING storage_used`,
		userID, delta,
	).Scan(&newUsed)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNoAccount
	}
	if err != nil {
		return 0, fmt.Errorf("apply storage delta: %w", err)
	}
	return newUsed, nil
}

// Current returns the committed used/limit counters for the user.
func (l *Ledger) Current(ctx context.Context, userID string) (Usage, error) {
	var u Usage
	err := l.db.QueryRow(ctx,
		`SELECT storage_used, storage_limit FROM users WHERE id = $1`,
		userID,
	).Scan(&u.Used, &u.Limit)
	if errors.Is(err, pgx.ErrNoRows) {
		return Usage{}, ErrNoAccount
	}
	if err != nil {
		return Usage{}, fmt.Errorf("read storage counters: %w", err)
	}
	return u, nil
}

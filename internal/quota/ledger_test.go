package quota

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRow satisfies pgx.Row by copying canned values into Scan targets.
type fakeRow struct {
	vals []int64
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		*(d.(*int64)) = r.vals[i]
	}
	return nil
}

type fakeQuerier struct {
	row      fakeRow
	lastSQL  string
	lastArgs []any
}

func (q *fakeQuerier) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	q.lastSQL, q.lastArgs = sql, args
	return pgconn.CommandTag{}, nil
}

func (q *fakeQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	q.lastSQL, q.lastArgs = sql, args
	return nil, nil
}

func (q *fakeQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	q.lastSQL, q.lastArgs = sql, args
	return q.row
}

func TestCheckAdmissionBoundary(t *testing.T) {
	tests := []struct {
		name      string
		used      int64
		limit     int64
		candidate int64
		admit     bool
		remaining int64
	}{
		{"exact fit admitted", 900, 1000, 100, true, 100},
		{"one byte over rejected", 900, 1000, 101, false, 100},
		{"empty account", 0, 1000, 1000, true, 1000},
		{"zero-byte candidate at full quota", 1000, 1000, 0, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &fakeQuerier{row: fakeRow{vals: []int64{tt.used, tt.limit}}}
			ledger := NewLedger(q)

			adm, err := ledger.CheckAdmission(context.Background(), "u1", tt.candidate)
			require.NoError(t, err)
			assert.Equal(t, tt.admit, adm.Admit)
			assert.Equal(t, tt.remaining, adm.Remaining)
		})
	}
}

func TestCheckAdmissionUnknownAccount(t *testing.T) {
	q := &fakeQuerier{row: fakeRow{err: pgx.ErrNoRows}}
	ledger := NewLedger(q)

	_, err := ledger.CheckAdmission(context.Background(), "missing", 1)
	assert.ErrorIs(t, err, ErrNoAccount)
}

func TestApplyDeltaReturnsNewCounter(t *testing.T) {
	q := &fakeQuerier{row: fakeRow{vals: []int64{500000}}}
	ledger := NewLedger(q)

	newUsed, err := ledger.ApplyDelta(context.Background(), "u1", 500000)
	require.NoError(t, err)
	assert.Equal(t, int64(500000), newUsed)
	assert.Contains(t, q.lastSQL, "GREATEST(0, storage_used + $2)")
	assert.Equal(t, []any{"u1", int64(500000)}, q.lastArgs)
}

func TestApplyDeltaUnknownAccount(t *testing.T) {
	q := &fakeQuerier{row: fakeRow{err: pgx.ErrNoRows}}
	ledger := NewLedger(q)

	_, err := ledger.ApplyDelta(context.Background(), "missing", -10)
	assert.ErrorIs(t, err, ErrNoAccount)
}

func TestCurrentReportsUsage(t *testing.T) {
	q := &fakeQuerier{row: fakeRow{vals: []int64{42, 1 << 30}}}
	ledger := NewLedger(q)

	u, err := ledger.Current(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, Usage{Used: 42, Limit: 1 << 30}, u)
}

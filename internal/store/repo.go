package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
)

// querier is the subset of *sql.DB and *sql.Tx the repositories need.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// repo implements every repository on top of a querier. Store and Tx embed
// it, so the same methods run against the database or a transaction.
type repo struct {
	q   querier
	seq *sequenceCounter
}

// QueryOpts configures session queries with filtering and pagination.
type QueryOpts struct {
	UserID string    // only this user's sessions ("" = all)
	Limit  int       // max results (0 = unlimited)
	From   time.Time // start >= From
	To     time.Time // start <= To
}

func builder() *entsql.DialectBuilder {
	return entsql.Dialect(dialect.SQLite)
}

// exec runs a built statement.
func (r *repo) exec(ctx context.Context, q interface{ Query() (string, []any) }) (sql.Result, error) {
	query, args := q.Query()
	return r.q.ExecContext(ctx, query, args...)
}

// query runs a built selector.
func (r *repo) query(ctx context.Context, sel *entsql.Selector) (*sql.Rows, error) {
	query, args := sel.Query()
	return r.q.QueryContext(ctx, query, args...)
}

// count returns the number of rows a selector matches.
func (r *repo) count(ctx context.Context, sel *entsql.Selector) (int, error) {
	query, args := sel.Count().Query()
	var n int
	if err := r.q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Reset wipes progression state: sessions, users, pets and the sync queue.
// Goals and scorer registrations are kept.
func (r *repo) Reset(ctx context.Context) error {
	for _, t := range []string{tableSessions, tableUsers, tablePets, tableSyncQueue} {
		if _, err := r.exec(ctx, builder().Delete(t)); err != nil {
			return fmt.Errorf("reset %s: %w", t, err)
		}
	}
	return nil
}

func millis(t time.Time) int64 {
	return t.UnixMilli()
}

// nullMillis maps the zero time to NULL.
func nullMillis(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms)
}

func fromNullMillis(ms sql.NullInt64) time.Time {
	if !ms.Valid {
		return time.Time{}
	}
	return time.UnixMilli(ms.Int64)
}

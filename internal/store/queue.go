package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

// Queue entry status values.
const (
	QueueStatusPending  = ""
	QueueStatusAccepted = "accepted"
	QueueStatusRejected = "rejected"
)

// QueueEntry is one terminal session waiting for, or done with, the scorer
// of record. Payload is the canonical JSON handed to the remote.
type QueueEntry struct {
	Sequence   int64
	SessionID  string
	Payload    []byte
	Digest     string
	Synced     bool
	Status     string
	Attempts   int
	LastError  string
	EnqueuedAt time.Time
	SyncedAt   time.Time
}

// QueueStats summarizes the sync queue.
type QueueStats struct {
	Pending  int
	Synced   int
	Rejected int
	// LastError is the most recent failure on the head entry.
	LastError string
}

var queueColumns = []string{
	"sequence", "session_id", "payload", "digest", "synced", "status",
	"attempts", "last_error", "enqueued_at", "synced_at",
}

func scanQueueEntry(row interface{ Scan(...any) error }) (QueueEntry, error) {
	var (
		e          QueueEntry
		payload    string
		enqueuedAt int64
		syncedAt   sql.NullInt64
	)
	if err := row.Scan(&e.Sequence, &e.SessionID, &payload, &e.Digest, &e.Synced, &e.Status,
		&e.Attempts, &e.LastError, &enqueuedAt, &syncedAt); err != nil {
		return QueueEntry{}, err
	}
	e.Payload = []byte(payload)
	e.EnqueuedAt = fromMillis(enqueuedAt)
	e.SyncedAt = fromNullMillis(syncedAt)
	return e, nil
}

// Enqueue appends a terminal session to the sync queue. A session is queued
// at most once; re-enqueueing is a no-op that returns the existing entry.
func (r *repo) Enqueue(ctx context.Context, sessionID string, payload []byte, digest string, now time.Time) (QueueEntry, error) {
	seq, err := r.seq.Next(ctx, r.q)
	if err != nil {
		return QueueEntry{}, err
	}
	ins := builder().Insert(tableSyncQueue).
		Columns("sequence", "session_id", "payload", "digest", "enqueued_at").
		Values(seq, sessionID, string(payload), digest, millis(now)).
		OnConflict(entsql.ConflictColumns("session_id"), entsql.DoNothing())
	if _, err := r.exec(ctx, ins); err != nil {
		return QueueEntry{}, fmt.Errorf("enqueue session %s: %w", sessionID, err)
	}
	return r.QueueEntry(ctx, sessionID)
}

// QueueEntry returns the queue entry for a session or ErrNotFound.
func (r *repo) QueueEntry(ctx context.Context, sessionID string) (QueueEntry, error) {
	query, args := builder().Select(queueColumns...).From(builder().Table(tableSyncQueue)).
		Where(entsql.EQ("session_id", sessionID)).
		Query()
	e, err := scanQueueEntry(r.q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return QueueEntry{}, fmt.Errorf("queue entry %s: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return QueueEntry{}, fmt.Errorf("get queue entry %s: %w", sessionID, err)
	}
	return e, nil
}

// Pending returns unsynced entries in queue order.
func (r *repo) Pending(ctx context.Context, limit int) ([]QueueEntry, error) {
	sel := builder().Select(queueColumns...).From(builder().Table(tableSyncQueue)).
		Where(entsql.EQ("synced", false)).
		OrderBy("sequence")
	if limit > 0 {
		sel.Limit(limit)
	}
	rows, err := r.query(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	defer rows.Close()

	var out []QueueEntry
	for rows.Next() {
		e, err := scanQueueEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan queue entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// MarkSynced records the remote's acknowledgement of an entry.
func (r *repo) MarkSynced(ctx context.Context, seq int64, status string, now time.Time) error {
	res, err := r.exec(ctx, builder().Update(tableSyncQueue).
		Set("synced", true).
		Set("status", status).
		Set("synced_at", millis(now)).
		Set("last_error", "").
		Add("attempts", 1).
		Where(entsql.EQ("sequence", seq)))
	if err != nil {
		return fmt.Errorf("mark synced %d: %w", seq, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("queue entry %d: %w", seq, ErrNotFound)
	}
	return nil
}

// MarkFailed records a failed attempt; the entry stays pending.
func (r *repo) MarkFailed(ctx context.Context, seq int64, cause error) error {
	_, err := r.exec(ctx, builder().Update(tableSyncQueue).
		Set("last_error", cause.Error()).
		Add("attempts", 1).
		Where(entsql.EQ("sequence", seq)))
	if err != nil {
		return fmt.Errorf("mark failed %d: %w", seq, err)
	}
	return nil
}

// PruneSynced deletes all but the keep most recent synced entries. Pending
// entries are never pruned.
func (r *repo) PruneSynced(ctx context.Context, keep int) (int, error) {
	var threshold int64
	query, args := builder().Select("sequence").From(builder().Table(tableSyncQueue)).
		Where(entsql.EQ("synced", true)).
		OrderBy(entsql.Desc("sequence")).
		Limit(1).Offset(keep).
		Query()
	err := r.q.QueryRowContext(ctx, query, args...).Scan(&threshold)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("find prune threshold: %w", err)
	}
	res, err := r.exec(ctx, builder().Delete(tableSyncQueue).
		Where(entsql.And(entsql.EQ("synced", true), entsql.LTE("sequence", threshold))))
	if err != nil {
		return 0, fmt.Errorf("prune synced: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// QueueStats counts entries by state.
func (r *repo) QueueStats(ctx context.Context) (QueueStats, error) {
	table := builder().Table(tableSyncQueue)
	var st QueueStats
	var err error
	if st.Pending, err = r.count(ctx, builder().Select().From(table).Where(entsql.EQ("synced", false))); err != nil {
		return QueueStats{}, fmt.Errorf("count pending: %w", err)
	}
	if st.Synced, err = r.count(ctx, builder().Select().From(table).Where(entsql.EQ("synced", true))); err != nil {
		return QueueStats{}, fmt.Errorf("count synced: %w", err)
	}
	if st.Rejected, err = r.count(ctx, builder().Select().From(table).Where(entsql.EQ("status", QueueStatusRejected))); err != nil {
		return QueueStats{}, fmt.Errorf("count rejected: %w", err)
	}
	head, err := r.Pending(ctx, 1)
	if err != nil {
		return QueueStats{}, err
	}
	if len(head) == 1 {
		st.LastError = head[0].LastError
	}
	return st, nil
}

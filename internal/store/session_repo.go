package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/dersual/Focus-Friendship-MVP/internal/session"
	"github.com/dersual/Focus-Friendship-MVP/internal/xp"
)

var sessionColumns = []string{
	"id", "user_id", "start_at", "end_at", "duration_minutes", "actual_minutes",
	"paused_ms", "is_break", "goal_id", "goal_category", "completed", "interrupted",
	"tasks_completed", "awarded_xp", "pet_xp", "processed", "award_source",
	"breakdown", "penalty_type", "penalty_xp", "server_session_id", "server_start_at",
}

// sessionValues returns the row values in sessionColumns order.
func sessionValues(rec session.Record) ([]any, error) {
	breakdown, err := json.Marshal(rec.Breakdown)
	if err != nil {
		return nil, fmt.Errorf("marshal breakdown: %w", err)
	}
	return []any{
		rec.ID, rec.UserID, millis(rec.StartAt), nullMillis(rec.EndAt),
		rec.DurationMinutes, rec.ActualMinutes, rec.PausedFor.Milliseconds(),
		rec.IsBreak, rec.GoalID, rec.GoalCategory, rec.Completed, rec.Interrupted,
		rec.TasksCompleted, rec.AwardedXP, rec.PetXP, rec.Processed, string(rec.AwardSource),
		string(breakdown), rec.PenaltyType, rec.PenaltyXP, rec.ServerSessionID,
		nullMillis(rec.ServerStartAt),
	}, nil
}

func scanSession(rows interface{ Scan(...any) error }) (session.Record, error) {
	var (
		rec                   session.Record
		startAt, pausedMs     int64
		endAt, serverStartAt  sql.NullInt64
		source, breakdownJSON string
	)
	err := rows.Scan(
		&rec.ID, &rec.UserID, &startAt, &endAt, &rec.DurationMinutes, &rec.ActualMinutes,
		&pausedMs, &rec.IsBreak, &rec.GoalID, &rec.GoalCategory, &rec.Completed, &rec.Interrupted,
		&rec.TasksCompleted, &rec.AwardedXP, &rec.PetXP, &rec.Processed, &source,
		&breakdownJSON, &rec.PenaltyType, &rec.PenaltyXP, &rec.ServerSessionID, &serverStartAt,
	)
	if err != nil {
		return session.Record{}, err
	}
	rec.StartAt = fromMillis(startAt)
	rec.EndAt = fromNullMillis(endAt)
	rec.PausedFor = time.Duration(pausedMs) * time.Millisecond
	rec.AwardSource = session.AwardSource(source)
	rec.ServerStartAt = fromNullMillis(serverStartAt)
	if breakdownJSON != "" {
		var b xp.Breakdown
		if err := json.Unmarshal([]byte(breakdownJSON), &b); err != nil {
			return session.Record{}, fmt.Errorf("unmarshal breakdown: %w", err)
		}
		rec.Breakdown = b
	}
	return rec, nil
}

func (r *repo) selectSessions() *entsql.Selector {
	return builder().Select(sessionColumns...).From(builder().Table(tableSessions))
}

func (r *repo) listSessions(ctx context.Context, sel *entsql.Selector) ([]session.Record, error) {
	rows, err := r.query(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []session.Record
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CreateSession inserts a new session record. Records are ordered by a
// global sequence assigned here.
func (r *repo) CreateSession(ctx context.Context, rec session.Record) error {
	seq, err := r.seq.Next(ctx, r.q)
	if err != nil {
		return err
	}
	vals, err := sessionValues(rec)
	if err != nil {
		return err
	}
	ins := builder().Insert(tableSessions).
		Columns(append([]string{"sequence"}, sessionColumns...)...).
		Values(append([]any{seq}, vals...)...)
	if _, err := r.exec(ctx, ins); err != nil {
		return fmt.Errorf("create session %s: %w", rec.ID, err)
	}
	return nil
}

// GetSession returns the record with the given ID or ErrNotFound.
func (r *repo) GetSession(ctx context.Context, id string) (session.Record, error) {
	query, args := r.selectSessions().Where(entsql.EQ("id", id)).Query()
	rec, err := scanSession(r.q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return session.Record{}, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return session.Record{}, fmt.Errorf("get session %s: %w", id, err)
	}
	return rec, nil
}

// UpdateSession reads the record, applies patch and writes every mutable
// column back. It returns the updated record.
func (r *repo) UpdateSession(ctx context.Context, id string, patch func(*session.Record)) (session.Record, error) {
	rec, err := r.GetSession(ctx, id)
	if err != nil {
		return session.Record{}, err
	}
	patch(&rec)
	rec.ID = id

	vals, err := sessionValues(rec)
	if err != nil {
		return session.Record{}, err
	}
	upd := builder().Update(tableSessions).Where(entsql.EQ("id", id))
	for i, col := range sessionColumns {
		if col == "id" {
			continue
		}
		upd.Set(col, vals[i])
	}
	if _, err := r.exec(ctx, upd); err != nil {
		return session.Record{}, fmt.Errorf("update session %s: %w", id, err)
	}
	return rec, nil
}

// ProcessOnce is the atomic check-and-set on the processed flag. It
// reports true only for the call that flipped it.
func (r *repo) ProcessOnce(ctx context.Context, id string) (bool, error) {
	upd := builder().Update(tableSessions).
		Set("processed", true).
		Where(entsql.And(entsql.EQ("id", id), entsql.EQ("processed", false)))
	res, err := r.exec(ctx, upd)
	if err != nil {
		return false, fmt.Errorf("mark session %s processed: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark session %s processed: %w", id, err)
	}
	return n == 1, nil
}

// RecentSessions returns the user's processed sessions that started at or
// after since, oldest first. This is the anti-farming window input.
func (r *repo) RecentSessions(ctx context.Context, userID string, since time.Time, limit int) ([]session.Record, error) {
	sel := r.selectSessions().
		Where(entsql.And(
			entsql.EQ("user_id", userID),
			entsql.EQ("processed", true),
			entsql.GTE("start_at", millis(since)),
		)).
		OrderBy(entsql.Desc("start_at"))
	if limit > 0 {
		sel.Limit(limit)
	}
	recs, err := r.listSessions(ctx, sel)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(recs)-1; i < j; i, j = i+1, j-1 {
		recs[i], recs[j] = recs[j], recs[i]
	}
	return recs, nil
}

// ListSessions returns sessions newest first.
func (r *repo) ListSessions(ctx context.Context, opts QueryOpts) ([]session.Record, error) {
	var preds []*entsql.Predicate
	if opts.UserID != "" {
		preds = append(preds, entsql.EQ("user_id", opts.UserID))
	}
	if !opts.From.IsZero() {
		preds = append(preds, entsql.GTE("start_at", millis(opts.From)))
	}
	if !opts.To.IsZero() {
		preds = append(preds, entsql.LTE("start_at", millis(opts.To)))
	}
	sel := r.selectSessions()
	if len(preds) > 0 {
		sel.Where(entsql.And(preds...))
	}
	sel.OrderBy(entsql.Desc("sequence"))
	if opts.Limit > 0 {
		sel.Limit(opts.Limit)
	}
	return r.listSessions(ctx, sel)
}

// OpenSessions returns records that were never ended, oldest first. They
// are left behind when the process dies mid-session.
func (r *repo) OpenSessions(ctx context.Context, userID string) ([]session.Record, error) {
	sel := r.selectSessions().
		Where(entsql.And(entsql.EQ("user_id", userID), entsql.IsNull("end_at"))).
		OrderBy("sequence")
	return r.listSessions(ctx, sel)
}

// PruneSessions deletes the user's oldest processed sessions beyond keep.
func (r *repo) PruneSessions(ctx context.Context, userID string, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}
	var threshold int64
	query, args := builder().Select("sequence").From(builder().Table(tableSessions)).
		Where(entsql.And(entsql.EQ("user_id", userID), entsql.EQ("processed", true))).
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
	res, err := r.exec(ctx, builder().Delete(tableSessions).Where(entsql.And(
		entsql.EQ("user_id", userID),
		entsql.EQ("processed", true),
		entsql.LTE("sequence", threshold),
	)))
	if err != nil {
		return 0, fmt.Errorf("prune sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

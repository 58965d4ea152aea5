package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/dersual/Focus-Friendship-MVP/internal/goals"
)

var goalColumns = []string{"id", "title", "category", "pomodoros", "completed_pomodoros", "created_at", "completed_at"}

func scanGoal(row interface{ Scan(...any) error }) (goals.Goal, error) {
	var (
		g           goals.Goal
		createdAt   int64
		completedAt sql.NullInt64
	)
	if err := row.Scan(&g.ID, &g.Title, &g.Category, &g.Pomodoros, &g.CompletedPomodoros, &createdAt, &completedAt); err != nil {
		return goals.Goal{}, err
	}
	g.CreatedAt = fromMillis(createdAt)
	g.CompletedAt = fromNullMillis(completedAt)
	return g, nil
}

// CreateGoal inserts a goal.
func (r *repo) CreateGoal(ctx context.Context, g goals.Goal) error {
	ins := builder().Insert(tableGoals).
		Columns(goalColumns...).
		Values(g.ID, g.Title, g.Category, g.Pomodoros, g.CompletedPomodoros, millis(g.CreatedAt), nullMillis(g.CompletedAt))
	if _, err := r.exec(ctx, ins); err != nil {
		return fmt.Errorf("insert goal: %w", err)
	}
	return nil
}

// GetGoal returns a goal or goals.ErrGoalNotFound.
func (r *repo) GetGoal(ctx context.Context, id string) (goals.Goal, error) {
	query, args := builder().Select(goalColumns...).From(builder().Table(tableGoals)).
		Where(entsql.EQ("id", id)).
		Query()
	g, err := scanGoal(r.q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return goals.Goal{}, fmt.Errorf("goal %s: %w", id, goals.ErrGoalNotFound)
	}
	if err != nil {
		return goals.Goal{}, fmt.Errorf("get goal %s: %w", id, err)
	}
	return g, nil
}

// ListGoals returns every goal, oldest first.
func (r *repo) ListGoals(ctx context.Context) ([]goals.Goal, error) {
	rows, err := r.query(ctx, builder().Select(goalColumns...).From(builder().Table(tableGoals)).OrderBy("created_at"))
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()

	var out []goals.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// DeleteGoal removes a goal. Sessions keep their goal ID.
func (r *repo) DeleteGoal(ctx context.Context, id string) error {
	res, err := r.exec(ctx, builder().Delete(tableGoals).Where(entsql.EQ("id", id)))
	if err != nil {
		return fmt.Errorf("delete goal %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("goal %s: %w", id, goals.ErrGoalNotFound)
	}
	return nil
}

// IncrementPomodoro adds one completed pomodoro while the goal is below its
// target, in a single conditional UPDATE.
func (r *repo) IncrementPomodoro(ctx context.Context, id string, now time.Time) (goals.Goal, bool, error) {
	res, err := r.exec(ctx, builder().Update(tableGoals).
		Add("completed_pomodoros", 1).
		Where(entsql.And(entsql.EQ("id", id), entsql.ColumnsLT("completed_pomodoros", "pomodoros"))))
	if err != nil {
		return goals.Goal{}, false, fmt.Errorf("increment goal %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return goals.Goal{}, false, fmt.Errorf("increment goal %s: %w", id, err)
	}

	g, err := r.GetGoal(ctx, id)
	if err != nil {
		return goals.Goal{}, false, err
	}
	if n == 1 && g.Done() && g.CompletedAt.IsZero() {
		if _, err := r.exec(ctx, builder().Update(tableGoals).
			Set("completed_at", millis(now)).
			Where(entsql.EQ("id", id))); err != nil {
			return goals.Goal{}, false, fmt.Errorf("complete goal %s: %w", id, err)
		}
		g.CompletedAt = fromMillis(millis(now))
	}
	return g, n == 1, nil
}

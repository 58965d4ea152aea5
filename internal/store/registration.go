package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

// Registration status values.
const (
	RegistrationActive   = "active"
	RegistrationEnded    = "ended"
	RegistrationRejected = "rejected"
)

// Registration is the scorer's own record of a session start. StartAt is
// captured by the scorer and never taken from the client.
type Registration struct {
	ID              string
	ClientSessionID string
	UserID          string
	StartAt         time.Time
	DurationMinutes int
	IsBreak         bool
	GoalID          string
	Status          string
}

var registrationColumns = []string{
	"id", "client_session_id", "user_id", "start_at", "duration_minutes", "is_break", "goal_id", "status",
}

func scanRegistration(row interface{ Scan(...any) error }) (Registration, error) {
	var (
		reg     Registration
		startAt int64
	)
	if err := row.Scan(&reg.ID, &reg.ClientSessionID, &reg.UserID, &startAt,
		&reg.DurationMinutes, &reg.IsBreak, &reg.GoalID, &reg.Status); err != nil {
		return Registration{}, err
	}
	reg.StartAt = fromMillis(startAt)
	return reg, nil
}

// Register stores a session start. Registering the same client session
// again returns the original registration unchanged.
func (r *repo) Register(ctx context.Context, reg Registration) (Registration, error) {
	if reg.Status == "" {
		reg.Status = RegistrationActive
	}
	ins := builder().Insert(tableRegistrations).
		Columns(registrationColumns...).
		Values(reg.ID, reg.ClientSessionID, reg.UserID, millis(reg.StartAt),
			reg.DurationMinutes, reg.IsBreak, reg.GoalID, reg.Status).
		OnConflict(entsql.ConflictColumns("client_session_id"), entsql.DoNothing())
	if _, err := r.exec(ctx, ins); err != nil {
		return Registration{}, fmt.Errorf("register session %s: %w", reg.ClientSessionID, err)
	}
	return r.RegistrationFor(ctx, reg.ClientSessionID)
}

// RegistrationFor looks a registration up by client session ID.
func (r *repo) RegistrationFor(ctx context.Context, clientSessionID string) (Registration, error) {
	query, args := builder().Select(registrationColumns...).From(builder().Table(tableRegistrations)).
		Where(entsql.EQ("client_session_id", clientSessionID)).
		Query()
	reg, err := scanRegistration(r.q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return Registration{}, fmt.Errorf("registration %s: %w", clientSessionID, ErrNotFound)
	}
	if err != nil {
		return Registration{}, fmt.Errorf("get registration %s: %w", clientSessionID, err)
	}
	return reg, nil
}

// EndRegistration closes a registration as scored (RegistrationEnded) or
// refused (RegistrationRejected).
func (r *repo) EndRegistration(ctx context.Context, id, status string) error {
	_, err := r.exec(ctx, builder().Update(tableRegistrations).
		Set("status", status).
		Where(entsql.EQ("id", id)))
	if err != nil {
		return fmt.Errorf("end registration %s: %w", id, err)
	}
	return nil
}

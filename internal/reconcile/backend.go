package reconcile

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/dersual/Focus-Friendship-MVP/internal/ledger"
	"github.com/dersual/Focus-Friendship-MVP/internal/progression"
	"github.com/dersual/Focus-Friendship-MVP/internal/remote"
	"github.com/dersual/Focus-Friendship-MVP/internal/session"
	"github.com/dersual/Focus-Friendship-MVP/internal/xp"
)

var _ session.Backend = (*Backend)(nil)

// DefaultScoreTimeout bounds the wait for an authoritative award before the
// provisional one becomes final.
const DefaultScoreTimeout = 3 * time.Second

// Backend connects the lifecycle controller to the ledger and, when a
// scorer of record is configured, to the reconciler. Without a reconciler
// it runs fully local.
type Backend struct {
	ledger       *ledger.Service
	rec          *Reconciler
	scoreTimeout time.Duration
	logger       *slog.Logger
}

// NewBackend creates a backend. r may be nil.
func NewBackend(l *ledger.Service, r *Reconciler, scoreTimeout time.Duration, logger *slog.Logger) *Backend {
	if scoreTimeout <= 0 {
		scoreTimeout = DefaultScoreTimeout
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Backend{ledger: l, rec: r, scoreTimeout: scoreTimeout, logger: logger}
}

// Begin persists the record and registers its start with the scorer. An
// unreachable scorer is not an error; the session is registered from its
// client start time when it is finally sent.
func (b *Backend) Begin(ctx context.Context, rec session.Record) (session.Record, error) {
	rec, err := b.ledger.Begin(ctx, rec)
	if err != nil || b.rec == nil {
		return rec, err
	}

	callCtx, cancel := context.WithTimeout(ctx, b.scoreTimeout)
	defer cancel()
	resp, err := b.rec.client.StartSession(callCtx, &remote.StartSessionRequest{
		ClientSessionID: rec.ID,
		UserID:          rec.UserID,
		DurationMinutes: rec.DurationMinutes,
		IsBreak:         rec.IsBreak,
		GoalID:          rec.GoalID,
	})
	if err != nil {
		b.logger.Warn("session start not registered", "session_id", rec.ID, "err", err)
		return rec, nil
	}
	attached, err := b.ledger.Attach(ctx, rec.ID, resp.ServerSessionID, time.UnixMilli(resp.ServerStartAt))
	if err != nil {
		return rec, err
	}
	return attached, nil
}

// Finish credits the record locally, then gives the scorer a bounded
// chance to supersede the provisional award. When it does not answer in
// time the provisional award becomes final; the entry stays queued.
func (b *Backend) Finish(ctx context.Context, rec session.Record, penalty *progression.Penalty) (session.Settlement, error) {
	st, err := b.ledger.Finish(ctx, rec, penalty)
	if err != nil || st.Duplicate || b.rec == nil {
		return st, err
	}
	return b.rec.Authoritative(ctx, st, b.scoreTimeout), nil
}

// Authoritative flushes the queue within timeout and returns st updated
// with whatever the scorer decided. Failures are logged, never returned:
// the provisional award is final if the scorer cannot be reached.
func (r *Reconciler) Authoritative(ctx context.Context, st session.Settlement, timeout time.Duration) session.Settlement {
	flushCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if _, err := r.Flush(flushCtx); err != nil {
		r.logger.Warn("authoritative scoring unavailable, keeping provisional award", "session_id", st.Record.ID, "err", err)
	}

	rec, err := r.store.GetSession(ctx, st.Record.ID)
	if err != nil {
		r.logger.Warn("reload scored session", "session_id", st.Record.ID, "err", err)
		return st
	}
	if rec.AwardSource == session.AwardProvisional {
		if rec, err = r.ledger.Finalize(ctx, rec.ID, session.AwardLocal); err != nil {
			r.logger.Warn("finalize provisional award", "session_id", st.Record.ID, "err", err)
			return st
		}
	}
	st.Record = rec
	st.Award = xp.Award{XP: rec.AwardedXP, PetXP: rec.PetXP, Breakdown: rec.Breakdown}
	if u, pet, err := r.ledger.State(ctx, rec.UserID); err == nil {
		st.User, st.Pet = u, pet
	}
	return st
}

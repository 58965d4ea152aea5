// Package ledger applies session outcomes to user and companion progression.
// Every award goes through a single transaction that reads the current
// state, scores the session, and writes everything back, guarded by the
// session's processed flag so a record is credited at most once.
//
// The same service backs the local client and the scorer of record; the
// options decide which collaborators are involved.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dersual/Focus-Friendship-MVP/internal/digest"
	"github.com/dersual/Focus-Friendship-MVP/internal/goals"
	"github.com/dersual/Focus-Friendship-MVP/internal/progression"
	"github.com/dersual/Focus-Friendship-MVP/internal/session"
	"github.com/dersual/Focus-Friendship-MVP/internal/store"
	"github.com/dersual/Focus-Friendship-MVP/internal/xp"
)

// ErrAlreadyProcessed is reported (never returned) when a record that was
// already credited is finished again.
var ErrAlreadyProcessed = errors.New("session already processed")

var tracer trace.Tracer = otel.Tracer("github.com/dersual/Focus-Friendship-MVP/internal/ledger")

// Options configures a Service.
type Options struct {
	Policy xp.Policy
	Logger *slog.Logger

	// MarkGoals credits completed work sessions to their goal. Only the
	// client owns goals.
	MarkGoals bool

	// Enqueue places every terminal record on the sync queue in the same
	// transaction that credits it.
	Enqueue bool

	// Source is stamped on fresh awards: provisional on a client that has
	// a scorer of record, local when there is none, authoritative on the
	// scorer itself.
	Source session.AwardSource

	// KeepSessions prunes processed sessions beyond this count per user.
	// Zero keeps everything.
	KeepSessions int

	Now func() time.Time
}

// Service is the award ledger.
type Service struct {
	store  *store.Store
	opts   Options
	logger *slog.Logger
}

// NewService creates a ledger over st.
func NewService(st *store.Store, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Source == session.AwardPending {
		opts.Source = session.AwardLocal
	}
	return &Service{store: st, opts: opts, logger: opts.Logger}
}

// Policy returns the policy awards are computed with.
func (s *Service) Policy() xp.Policy {
	return s.opts.Policy
}

// Begin persists a freshly started record and resolves its goal category.
func (s *Service) Begin(ctx context.Context, rec session.Record) (session.Record, error) {
	ctx, span := tracer.Start(ctx, "ledger.Begin", trace.WithAttributes(attribute.String("session.id", rec.ID)))
	defer span.End()

	if rec.GoalID != "" && rec.GoalCategory == "" {
		g, err := s.store.GetGoal(ctx, rec.GoalID)
		switch {
		case err == nil:
			rec.GoalCategory = g.Category
		case errors.Is(err, goals.ErrGoalNotFound):
			s.logger.Warn("session started with unknown goal", "session_id", rec.ID, "goal_id", rec.GoalID)
		default:
			return session.Record{}, fail(span, err)
		}
	}
	if err := s.store.CreateSession(ctx, rec); err != nil {
		return session.Record{}, fail(span, err)
	}
	return rec, nil
}

// Attach records the scorer's registration on a stored record.
func (s *Service) Attach(ctx context.Context, sessionID, serverSessionID string, serverStartAt time.Time) (session.Record, error) {
	return s.store.UpdateSession(ctx, sessionID, func(r *session.Record) {
		r.ServerSessionID = serverSessionID
		r.ServerStartAt = serverStartAt
	})
}

// Finish credits a terminal record exactly once. A record that was already
// processed yields a settlement with Duplicate set and no state change. A
// record the ledger has never seen is created first, which is how
// sessions started while the scorer was unreachable arrive there.
func (s *Service) Finish(ctx context.Context, rec session.Record, penalty *progression.Penalty) (session.Settlement, error) {
	ctx, span := tracer.Start(ctx, "ledger.Finish", trace.WithAttributes(
		attribute.String("session.id", rec.ID),
		attribute.Bool("session.completed", rec.Completed),
		attribute.Bool("session.break", rec.IsBreak),
	))
	defer span.End()

	if !rec.Terminal() {
		return session.Settlement{}, fail(span, fmt.Errorf("finish session %s: record has not ended", rec.ID))
	}

	var st session.Settlement
	err := s.store.InTx(ctx, func(tx *store.Tx) error {
		var err error
		st, err = s.finishTx(ctx, tx, rec, penalty)
		return err
	})
	if err != nil {
		return session.Settlement{}, fail(span, err)
	}
	span.SetAttributes(
		attribute.Int("award.xp", st.Record.AwardedXP),
		attribute.Bool("award.duplicate", st.Duplicate),
	)
	if st.Duplicate {
		s.logger.Info("duplicate completion ignored", "session_id", rec.ID, "err", ErrAlreadyProcessed)
	}
	return st, nil
}

func (s *Service) finishTx(ctx context.Context, tx *store.Tx, rec session.Record, penalty *progression.Penalty) (session.Settlement, error) {
	stored, err := tx.GetSession(ctx, rec.ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		stored = rec
		stored.Processed = false
		if err := tx.CreateSession(ctx, stored); err != nil {
			return session.Settlement{}, err
		}
	case err != nil:
		return session.Settlement{}, err
	}

	if stored.Processed {
		return s.duplicate(ctx, tx, stored)
	}
	flipped, err := tx.ProcessOnce(ctx, rec.ID)
	if err != nil {
		return session.Settlement{}, err
	}
	if !flipped {
		return s.duplicate(ctx, tx, stored)
	}

	now := s.opts.Now()
	u, err := tx.ReadUser(ctx, stored.UserID)
	if err != nil {
		return session.Settlement{}, err
	}
	pet, err := tx.ReadPet(ctx, stored.UserID, u.ActivePet)
	if err != nil {
		return session.Settlement{}, err
	}

	// Terminal fields come from the caller; identity and registration
	// fields stay as stored.
	final := stored
	final.EndAt = rec.EndAt
	final.ActualMinutes = rec.ActualMinutes
	final.PausedFor = rec.PausedFor
	final.Completed = rec.Completed
	final.Interrupted = rec.Interrupted
	final.TasksCompleted = rec.TasksCompleted
	if final.GoalCategory == "" {
		final.GoalCategory = rec.GoalCategory
	}

	var award xp.Award
	if final.Completed && !final.IsBreak {
		award, err = s.score(ctx, tx, final, u, now)
		if err != nil {
			return session.Settlement{}, err
		}
		if s.opts.MarkGoals && final.GoalID != "" {
			s.markGoal(ctx, tx, final, now)
		}
	}

	outcome := progression.ApplyAward(u, pet, progression.SessionResult{
		IsBreak:             final.IsBreak,
		Completed:           final.Completed,
		Minutes:             final.ActualMinutes,
		AwardedXP:           award.XP,
		PetXP:               award.PetXP,
		MinEffectiveMinutes: s.opts.Policy.MinEffectiveMinutes,
	})

	var applied *progression.Penalty
	if penalty != nil && s.opts.Policy.PenaltiesEnabled {
		p := *penalty
		outcome.User = progression.ApplyPenalty(outcome.User, p)
		final.PenaltyType = string(p.Type)
		final.PenaltyXP = p.Amount
		applied = &p
	}

	final.AwardedXP = award.XP
	final.PetXP = award.PetXP
	final.Breakdown = award.Breakdown
	final.Processed = true
	final.AwardSource = s.opts.Source

	if err := tx.WriteUser(ctx, outcome.User); err != nil {
		return session.Settlement{}, err
	}
	if err := tx.WritePet(ctx, final.UserID, outcome.Pet); err != nil {
		return session.Settlement{}, err
	}
	if _, err := tx.UpdateSession(ctx, final.ID, func(r *session.Record) { *r = final }); err != nil {
		return session.Settlement{}, err
	}
	if s.opts.Enqueue {
		if err := s.enqueue(ctx, tx, final, applied, outcome.User, now); err != nil {
			return session.Settlement{}, err
		}
	}
	if s.opts.KeepSessions > 0 {
		if _, err := tx.PruneSessions(ctx, final.UserID, s.opts.KeepSessions); err != nil {
			return session.Settlement{}, err
		}
	}

	if outcome.LevelUp {
		s.logger.Info("level up", "user_id", final.UserID, "level", outcome.User.Level, "unlocked", outcome.Unlocked)
	}
	return session.Settlement{
		Record:     final,
		Award:      award,
		Penalty:    applied,
		User:       outcome.User,
		Pet:        outcome.Pet,
		LevelUp:    outcome.LevelUp,
		PetLevelUp: outcome.PetLevelUp,
		Unlocked:   outcome.Unlocked,
	}, nil
}

// score computes the award for a completed work session from the history
// the ledger holds.
func (s *Service) score(ctx context.Context, tx *store.Tx, rec session.Record, u progression.User, now time.Time) (xp.Award, error) {
	p := s.opts.Policy
	since := rec.StartAt.Add(-time.Duration(p.ShortSessionWindowMinutes) * time.Minute)
	recent, err := tx.RecentSessions(ctx, rec.UserID, since, p.HistoryLimit)
	if err != nil {
		return xp.Award{}, err
	}
	entries := make([]xp.Entry, 0, len(recent))
	for _, r := range recent {
		if r.ID == rec.ID {
			continue
		}
		entries = append(entries, xp.Entry{SessionID: r.ID, StartAt: r.StartAt, Minutes: r.ActualMinutes, IsBreak: r.IsBreak})
	}
	stats := xp.NewWindow(p.HistoryLimit, entries...).Stats(rec.StartAt, p)

	return xp.ComputeAward(p, xp.Input{
		Minutes:             rec.ActualMinutes,
		IsBreak:             rec.IsBreak,
		TaskCompleted:       rec.TasksCompleted,
		CurrentStreak:       u.CurrentStreak,
		RecentShortSessions: stats.ShortSessions,
		RecentWorkMinutes:   stats.WorkMinutes,
		RecentBreakMinutes:  stats.BreakMinutes,
		PetMultiplier:       petMultiplier(p, u, rec),
	}), nil
}

func petMultiplier(p xp.Policy, u progression.User, rec session.Record) float64 {
	var bonus float64
	if t, ok := progression.PetByID(u.ActivePet); ok {
		bonus = t.SpecialtyBonus(rec.GoalCategory)
	}
	return xp.PetMultiplier(bonus, progression.EquippedTraits(u.Level, u.Traits), xp.TraitContext{
		IsBreak:      rec.IsBreak,
		GoalCategory: rec.GoalCategory,
		Minutes:      rec.ActualMinutes,
	}, p.MaxPetMultiplier)
}

func (s *Service) markGoal(ctx context.Context, tx *store.Tx, rec session.Record, now time.Time) {
	g, incremented, err := goals.MarkPomodoroComplete(ctx, tx, rec.GoalID, now)
	switch {
	case errors.Is(err, goals.ErrGoalNotFound):
		s.logger.Warn("completed session references unknown goal", "session_id", rec.ID, "goal_id", rec.GoalID)
	case err != nil:
		s.logger.Warn("mark pomodoro failed", "session_id", rec.ID, "goal_id", rec.GoalID, "err", err)
	case incremented && g.Done():
		s.logger.Info("goal completed", "goal_id", g.ID, "title", g.Title)
	}
}

func (s *Service) duplicate(ctx context.Context, tx *store.Tx, rec session.Record) (session.Settlement, error) {
	u, err := tx.ReadUser(ctx, rec.UserID)
	if err != nil {
		return session.Settlement{}, err
	}
	pet, err := tx.ReadPet(ctx, rec.UserID, u.ActivePet)
	if err != nil {
		return session.Settlement{}, err
	}
	return session.Settlement{
		Record:    rec,
		Award:     xp.Award{XP: rec.AwardedXP, PetXP: rec.PetXP, Breakdown: rec.Breakdown},
		User:      u,
		Pet:       pet,
		Duplicate: true,
	}, nil
}

func (s *Service) enqueue(ctx context.Context, tx *store.Tx, rec session.Record, penalty *progression.Penalty, u progression.User, now time.Time) error {
	payload, sum, err := digest.Encode(NewPayload(rec, penalty, u))
	if err != nil {
		return fmt.Errorf("encode sync payload: %w", err)
	}
	if _, err := tx.Enqueue(ctx, rec.ID, payload, sum, now); err != nil {
		return err
	}
	return nil
}

// Penalize applies a penalty outside of any session.
func (s *Service) Penalize(ctx context.Context, userID string, p progression.Penalty) (progression.User, error) {
	if !s.opts.Policy.PenaltiesEnabled {
		return s.store.ReadUser(ctx, userID)
	}
	return s.UpdateUser(ctx, userID, func(u progression.User) (progression.User, error) {
		return progression.ApplyPenalty(u, p), nil
	})
}

// State returns the user's progression and active companion.
func (s *Service) State(ctx context.Context, userID string) (progression.User, progression.Pet, error) {
	var (
		u   progression.User
		pet progression.Pet
	)
	err := s.store.InTx(ctx, func(tx *store.Tx) error {
		var err error
		if u, err = tx.ReadUser(ctx, userID); err != nil {
			return err
		}
		pet, err = tx.ReadPet(ctx, userID, u.ActivePet)
		return err
	})
	if err != nil {
		return progression.User{}, progression.Pet{}, err
	}
	return u, pet, nil
}

// UpdateUser applies fn to the stored user inside a transaction.
func (s *Service) UpdateUser(ctx context.Context, userID string, fn func(progression.User) (progression.User, error)) (progression.User, error) {
	var out progression.User
	err := s.store.InTx(ctx, func(tx *store.Tx) error {
		u, err := tx.ReadUser(ctx, userID)
		if err != nil {
			return err
		}
		if out, err = fn(u); err != nil {
			return err
		}
		out.ID = userID
		return tx.WriteUser(ctx, out)
	})
	if err != nil {
		return progression.User{}, err
	}
	return out, nil
}

// RecoverOrphans ends records left open by a crash as interrupted, without
// penalty, so they flow through the ledger and the sync queue like any
// other terminal record.
func (s *Service) RecoverOrphans(ctx context.Context, userID string) (int, error) {
	open, err := s.store.OpenSessions(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("list open sessions: %w", err)
	}
	for _, rec := range open {
		rec.EndAt = rec.StartAt
		rec.Interrupted = true
		if _, err := s.Finish(ctx, rec, nil); err != nil {
			return 0, fmt.Errorf("recover session %s: %w", rec.ID, err)
		}
		s.logger.Info("recovered orphaned session", "session_id", rec.ID, "started", rec.StartAt)
	}
	return len(open), nil
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

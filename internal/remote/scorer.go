package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dersual/Focus-Friendship-MVP/internal/digest"
	"github.com/dersual/Focus-Friendship-MVP/internal/ledger"
	"github.com/dersual/Focus-Friendship-MVP/internal/progression"
	"github.com/dersual/Focus-Friendship-MVP/internal/session"
	"github.com/dersual/Focus-Friendship-MVP/internal/store"
	"github.com/dersual/Focus-Friendship-MVP/internal/xp"
)

var errInvalidRequest = errors.New("invalid request")

// Scorer is the scorer of record. It keeps its own registrations, session
// history and user state, and scores with the same policy code as clients.
type Scorer struct {
	store  *store.Store
	ledger *ledger.Service
	policy xp.Policy
	logger *slog.Logger
	now    func() time.Time
}

// ScorerOption configures a Scorer.
type ScorerOption func(*Scorer)

// WithClock overrides the scorer's clock.
func WithClock(now func() time.Time) ScorerOption {
	return func(s *Scorer) { s.now = now }
}

// WithLogger sets the scorer's logger.
func WithLogger(l *slog.Logger) ScorerOption {
	return func(s *Scorer) { s.logger = l }
}

// NewScorer creates a scorer over its own store.
func NewScorer(st *store.Store, policy xp.Policy, opts ...ScorerOption) *Scorer {
	s := &Scorer{
		store:  st,
		policy: policy,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	s.ledger = ledger.NewService(st, ledger.Options{
		Policy:       policy,
		Logger:       s.logger,
		Source:       session.AwardAuthoritative,
		KeepSessions: policy.HistoryLimit,
		Now:          s.now,
	})
	return s
}

// StartSession records the scorer's own start time for a client session.
// Registering the same session twice returns the first registration.
func (s *Scorer) StartSession(ctx context.Context, in *StartSessionRequest) (*StartSessionResponse, error) {
	if in.ClientSessionID == "" || in.UserID == "" {
		return nil, toStatus(fmt.Errorf("%w: clientSessionId and userId are required", errInvalidRequest))
	}
	limits := s.policy.WorkMinutes
	if in.IsBreak {
		limits = s.policy.BreakMinutes
	}
	if !limits.Contains(in.DurationMinutes) {
		return nil, toStatus(fmt.Errorf("%w: %d minutes not in [%d, %d]", errInvalidRequest, in.DurationMinutes, limits.Min, limits.Max))
	}

	reg, err := s.store.Register(ctx, store.Registration{
		ID:              uuid.NewString(),
		ClientSessionID: in.ClientSessionID,
		UserID:          in.UserID,
		StartAt:         s.now(),
		DurationMinutes: in.DurationMinutes,
		IsBreak:         in.IsBreak,
		GoalID:          in.GoalID,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	s.logger.Debug("session registered", "session_id", in.ClientSessionID, "server_session_id", reg.ID)
	return &StartSessionResponse{ServerSessionID: reg.ID, ServerStartAt: reg.StartAt.UnixMilli()}, nil
}

// EndSession scores a terminal session from the scorer's own history.
// Completed work sessions are validated against the registered start time;
// a mismatch is a permanent FailedPrecondition. Repeated calls for the same
// session return the first result.
func (s *Scorer) EndSession(ctx context.Context, in *EndSessionRequest) (*EndSessionResponse, error) {
	p := in.Session
	if p.SessionID == "" || p.UserID == "" {
		return nil, toStatus(fmt.Errorf("%w: sessionId and userId are required", errInvalidRequest))
	}
	if p.EndAt < p.StartAt || p.ActualMinutes < 0 || p.PausedMinutes < 0 {
		return nil, toStatus(fmt.Errorf("%w: negative duration", errInvalidRequest))
	}
	if in.Digest != "" {
		_, sum, err := digest.Encode(p)
		if err != nil {
			return nil, toStatus(err)
		}
		if sum != in.Digest {
			return nil, toStatus(fmt.Errorf("%w: payload digest mismatch", errInvalidRequest))
		}
	}

	reg, err := s.registration(ctx, p)
	if err != nil {
		return nil, toStatus(err)
	}
	switch reg.Status {
	case store.RegistrationEnded:
		return s.repeat(ctx, p)
	case store.RegistrationRejected:
		return nil, toStatus(fmt.Errorf("%w: session %s was already rejected", xp.ErrTimingValidation, p.SessionID))
	}

	rec := p.Record()
	rec.ServerSessionID = reg.ID
	rec.ServerStartAt = reg.StartAt

	if p.Completed && !p.IsBreak {
		err := xp.ValidateTiming(reg.StartAt, rec.EndAt, s.now(), rec.Active(), rec.PausedFor, s.policy.TimeTolerance)
		if err != nil {
			s.logger.Warn("timing validation failed", "session_id", p.SessionID, "err", err)
			if endErr := s.store.EndRegistration(ctx, reg.ID, store.RegistrationRejected); endErr != nil {
				return nil, toStatus(endErr)
			}
			return nil, toStatus(err)
		}
	}

	if _, err := s.ledger.UpdateUser(ctx, p.UserID, func(u progression.User) (progression.User, error) {
		if p.ActivePet != "" && u.HasPet(p.ActivePet) {
			u.ActivePet = p.ActivePet
		}
		u.Traits = progression.EquippedTraits(u.Level, p.Traits)
		return u, nil
	}); err != nil {
		return nil, toStatus(err)
	}

	st, err := s.ledger.Finish(ctx, rec, p.Penalty)
	if err != nil {
		return nil, toStatus(err)
	}
	if err := s.store.EndRegistration(ctx, reg.ID, store.RegistrationEnded); err != nil {
		return nil, toStatus(err)
	}
	s.logger.Info("session scored", "session_id", p.SessionID, "xp", st.Record.AwardedXP, "provisional_xp", p.ProvisionalXP)

	return &EndSessionResponse{
		AwardedXP:    st.Record.AwardedXP,
		PetXP:        st.Record.PetXP,
		LevelUp:      st.LevelUp,
		PetLevelUp:   st.PetLevelUp,
		NewUserState: UserState{User: st.User, Pet: st.Pet},
		Breakdown:    st.Record.Breakdown,
		Duplicate:    st.Duplicate,
	}, nil
}

// registration returns the session's registration, creating one from the
// client's start time for sessions that began while the scorer was
// unreachable.
func (s *Scorer) registration(ctx context.Context, p ledger.Payload) (store.Registration, error) {
	reg, err := s.store.RegistrationFor(ctx, p.SessionID)
	if err == nil {
		if reg.UserID != p.UserID {
			return store.Registration{}, fmt.Errorf("%w: session belongs to another user", errInvalidRequest)
		}
		return reg, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return store.Registration{}, err
	}
	return s.store.Register(ctx, store.Registration{
		ID:              uuid.NewString(),
		ClientSessionID: p.SessionID,
		UserID:          p.UserID,
		StartAt:         time.UnixMilli(p.StartAt),
		DurationMinutes: p.DurationMinutes,
		IsBreak:         p.IsBreak,
		GoalID:          p.GoalID,
	})
}

// repeat answers for a session that was already handled.
func (s *Scorer) repeat(ctx context.Context, p ledger.Payload) (*EndSessionResponse, error) {
	u, pet, err := s.ledger.State(ctx, p.UserID)
	if err != nil {
		return nil, toStatus(err)
	}
	resp := &EndSessionResponse{NewUserState: UserState{User: u, Pet: pet}, Duplicate: true}
	rec, err := s.store.GetSession(ctx, p.SessionID)
	switch {
	case err == nil:
		resp.AwardedXP = rec.AwardedXP
		resp.PetXP = rec.PetXP
		resp.Breakdown = rec.Breakdown
	case errors.Is(err, store.ErrNotFound):
		// Pruned from the history window.
	default:
		return nil, toStatus(err)
	}
	s.logger.Info("duplicate end of session", "session_id", p.SessionID)
	return resp, nil
}

// toStatus maps domain errors to gRPC status codes.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, xp.ErrTimingValidation):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, errInvalidRequest):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, store.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

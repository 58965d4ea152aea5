// Package session owns the lifecycle of a single focus or break interval:
// start, pause, resume, stop, completion, and away-time violations. Time is
// always derived from timestamps, never from tick counts.
package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dersual/Focus-Friendship-MVP/internal/progression"
	"github.com/dersual/Focus-Friendship-MVP/internal/xp"
)

// DefaultGracePeriod is how long the host surface may stay hidden before an
// active session is interrupted.
const DefaultGracePeriod = 8 * time.Second

// Clock abstracts wall-clock time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Backend persists and scores records. Begin must make the record durable
// (and registered with the scorer of record when one is reachable) before
// the controller reports the session as active. Finish scores a terminal
// record exactly once and applies the optional penalty.
type Backend interface {
	Begin(ctx context.Context, rec Record) (Record, error)
	Finish(ctx context.Context, rec Record, penalty *progression.Penalty) (Settlement, error)
}

// Config configures a Controller.
type Config struct {
	UserID      string
	GracePeriod time.Duration
	Policy      xp.Policy
	Clock       Clock
	Logger      *slog.Logger

	// NewID generates session IDs. Defaults to random UUIDs.
	NewID func() string
}

// DefaultConfig returns a Config with the default policy and grace period.
func DefaultConfig() Config {
	return Config{
		UserID:      "local",
		GracePeriod: DefaultGracePeriod,
		Policy:      xp.DefaultPolicy(),
	}
}

// EventKind identifies a lifecycle notification.
type EventKind int

const (
	EventStarted EventKind = iota
	EventPaused
	EventResumed
	EventHidden
	EventVisible
	EventCompleted
	EventInterrupted
)

// Event is delivered to listeners after every transition.
type Event struct {
	Kind       EventKind
	Progress   Progress
	Settlement *Settlement
	Err        error
}

// StartOptions describes a session the user is about to begin.
type StartOptions struct {
	DurationMinutes int
	IsBreak         bool
	GoalID          string
}

type endReason int

const (
	endCompleted endReason = iota
	endStopped
	endLeft
)

// Controller is the state machine for one user's timer. At most one record
// is active at a time. All methods are safe for concurrent use; backend
// calls run without holding the lock so the host stays responsive.
type Controller struct {
	mu sync.Mutex

	backend Backend
	cfg     Config
	logger  *slog.Logger

	phase       Phase
	rec         Record
	pausedAt    time.Time
	pausedTotal time.Duration
	hidden      bool
	hiddenAt    time.Time

	last      *Settlement
	pending   *pendingSettle
	listeners []func(Event)
}

// pendingSettle is a terminal record the backend has not settled yet.
type pendingSettle struct {
	rec     Record
	penalty *progression.Penalty
	kind    EventKind
}

// NewController creates an idle controller.
func NewController(backend Backend, cfg Config) *Controller {
	if cfg.Clock == nil {
		cfg.Clock = systemClock{}
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = DefaultGracePeriod
	}
	if cfg.NewID == nil {
		cfg.NewID = func() string { return uuid.New().String() }
	}
	if cfg.UserID == "" {
		cfg.UserID = "local"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Controller{backend: backend, cfg: cfg, logger: logger}
}

// OnEvent registers a listener. Listeners run synchronously after the
// transition, outside the controller lock.
func (c *Controller) OnEvent(fn func(Event)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Phase returns the current phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Last returns the most recent settlement, if any.
func (c *Controller) Last() (Settlement, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return Settlement{}, false
	}
	return *c.last, true
}

// Progress derives the current timer view from timestamps.
func (c *Controller) Progress() Progress {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.progressLocked(c.cfg.Clock.Now())
}

// Start begins a new session. It fails with ErrAlreadyActive if one is
// running and with ErrInvalidDuration if the duration is outside the
// policy's range.
func (c *Controller) Start(ctx context.Context, opts StartOptions) (Record, error) {
	limits := c.cfg.Policy.WorkMinutes
	if opts.IsBreak {
		limits = c.cfg.Policy.BreakMinutes
	}
	if !limits.Contains(opts.DurationMinutes) {
		return Record{}, fmt.Errorf("%w: %d minutes not in [%d, %d]",
			ErrInvalidDuration, opts.DurationMinutes, limits.Min, limits.Max)
	}

	if _, err := c.Settle(ctx); err != nil {
		return Record{}, err
	}

	c.mu.Lock()
	switch c.phase {
	case PhaseStarting, PhaseActive, PhasePaused:
		from := c.phase
		c.mu.Unlock()
		return Record{}, &TransitionError{Op: "start", From: from, Err: ErrAlreadyActive}
	}
	rec := Record{
		ID:              c.cfg.NewID(),
		UserID:          c.cfg.UserID,
		StartAt:         c.cfg.Clock.Now(),
		DurationMinutes: opts.DurationMinutes,
		IsBreak:         opts.IsBreak,
		GoalID:          opts.GoalID,
	}
	c.phase = PhaseStarting
	c.mu.Unlock()

	registered, err := c.backend.Begin(ctx, rec)
	if err != nil {
		c.mu.Lock()
		c.phase = PhaseIdle
		c.mu.Unlock()
		return Record{}, fmt.Errorf("register session: %w", err)
	}

	c.mu.Lock()
	c.rec = registered
	c.phase = PhaseActive
	c.pausedTotal = 0
	c.pausedAt = time.Time{}
	if c.hidden {
		c.hiddenAt = c.cfg.Clock.Now()
	}
	ev := Event{Kind: EventStarted, Progress: c.progressLocked(c.cfg.Clock.Now())}
	c.mu.Unlock()

	c.logger.Debug("session started", "session_id", registered.ID, "minutes", registered.DurationMinutes, "break", registered.IsBreak)
	c.emit(ev)
	return registered, nil
}

// Pause freezes elapsed time.
func (c *Controller) Pause() error {
	c.mu.Lock()
	if c.phase != PhaseActive {
		from := c.phase
		c.mu.Unlock()
		return &TransitionError{Op: "pause", From: from, Err: ErrNotActive}
	}
	now := c.cfg.Clock.Now()
	c.phase = PhasePaused
	c.pausedAt = now
	ev := Event{Kind: EventPaused, Progress: c.progressLocked(now)}
	c.mu.Unlock()

	c.emit(ev)
	return nil
}

// Resume restarts elapsed time after a pause.
func (c *Controller) Resume() error {
	c.mu.Lock()
	if c.phase != PhasePaused {
		from := c.phase
		c.mu.Unlock()
		return &TransitionError{Op: "resume", From: from, Err: ErrNotPaused}
	}
	now := c.cfg.Clock.Now()
	c.pausedTotal += now.Sub(c.pausedAt)
	c.pausedAt = time.Time{}
	c.phase = PhaseActive
	if c.hidden {
		c.hiddenAt = now
	}
	ev := Event{Kind: EventResumed, Progress: c.progressLocked(now)}
	c.mu.Unlock()

	c.emit(ev)
	return nil
}

// SetTaskCompleted flags whether the user finished the task they were
// working on. Only a running session can be flagged.
func (c *Controller) SetTaskCompleted(done bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != PhaseActive && c.phase != PhasePaused {
		return &TransitionError{Op: "mark task", From: c.phase, Err: ErrNotActive}
	}
	c.rec.TasksCompleted = done
	return nil
}

// Snapshot returns the current record as the controller sees it.
func (c *Controller) Snapshot() Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rec
}

// Hidden records that the host surface lost visibility.
func (c *Controller) Hidden() {
	c.mu.Lock()
	if c.hidden {
		c.mu.Unlock()
		return
	}
	now := c.cfg.Clock.Now()
	c.hidden = true
	c.hiddenAt = now
	ev := Event{Kind: EventHidden, Progress: c.progressLocked(now)}
	c.mu.Unlock()

	c.emit(ev)
}

// Visible records that the host surface is visible again. If the session
// was active and hidden past the grace period it is interrupted now, even
// if no tick observed the violation.
func (c *Controller) Visible(ctx context.Context) (*Settlement, error) {
	st, err := c.Tick(ctx)

	c.mu.Lock()
	wasHidden := c.hidden
	c.hidden = false
	c.hiddenAt = time.Time{}
	ev := Event{Kind: EventVisible, Progress: c.progressLocked(c.cfg.Clock.Now())}
	c.mu.Unlock()

	if wasHidden {
		c.emit(ev)
	}
	return st, err
}

// Tick re-derives timer state. It completes the session once the intended
// duration has elapsed and interrupts it once an away-time violation is
// due, whichever happened first. It returns the settlement when the call
// ended the session or settled one that had failed to settle before.
func (c *Controller) Tick(ctx context.Context) (*Settlement, error) {
	c.mu.Lock()
	if c.pending != nil {
		c.mu.Unlock()
		return c.Settle(ctx)
	}
	if c.phase != PhaseActive {
		c.mu.Unlock()
		return nil, nil
	}
	now := c.cfg.Clock.Now()
	completeAt := c.rec.StartAt.Add(c.rec.Duration() + c.pausedTotal)

	violationAt := time.Time{}
	if c.hidden {
		violationAt = c.hiddenAt.Add(c.cfg.GracePeriod)
	}

	switch {
	case !violationAt.IsZero() && !now.Before(violationAt) && violationAt.Before(completeAt):
		return c.finishLocked(ctx, endLeft, violationAt)
	case !now.Before(completeAt):
		return c.finishLocked(ctx, endCompleted, completeAt)
	}
	c.mu.Unlock()
	return nil, nil
}

// Complete ends the session as completed. It is a no-op returning the
// previous settlement when the session already completed and settled,
// retries the settlement when it had failed, and fails with
// ErrNotFinished while time remains.
func (c *Controller) Complete(ctx context.Context) (Settlement, error) {
	c.mu.Lock()
	switch c.phase {
	case PhaseCompleted:
		if c.pending != nil {
			c.mu.Unlock()
			st, err := c.Settle(ctx)
			if err != nil {
				return Settlement{}, err
			}
			if st == nil {
				return c.Complete(ctx)
			}
			return *st, nil
		}
		if c.last == nil {
			c.mu.Unlock()
			return Settlement{}, &TransitionError{Op: "complete", From: PhaseCompleted, Err: ErrNotActive}
		}
		st := *c.last
		st.Duplicate = true
		c.mu.Unlock()
		c.logger.Info("completion ignored, session already completed", "session_id", st.Record.ID)
		return st, nil
	case PhaseActive:
	default:
		from := c.phase
		c.mu.Unlock()
		return Settlement{}, &TransitionError{Op: "complete", From: from, Err: ErrNotActive}
	}
	c.mu.Unlock()

	st, err := c.Tick(ctx)
	if err != nil {
		return Settlement{}, err
	}
	if st == nil {
		c.mu.Lock()
		from := c.phase
		c.mu.Unlock()
		if from == PhaseActive {
			return Settlement{}, &TransitionError{Op: "complete", From: from, Err: ErrNotFinished}
		}
		return c.Complete(ctx)
	}
	return *st, nil
}

// Stop ends the session early. Stopping an active session applies the
// manual-stop penalty; stopping a paused session is free. A session that
// already ended but failed to settle is settled as it ended.
func (c *Controller) Stop(ctx context.Context) (Settlement, error) {
	c.mu.Lock()
	if c.pending != nil {
		c.mu.Unlock()
		st, err := c.Settle(ctx)
		if st == nil {
			if err == nil {
				return c.Stop(ctx)
			}
			return Settlement{}, err
		}
		return *st, nil
	}
	if c.phase != PhaseActive && c.phase != PhasePaused {
		from := c.phase
		c.mu.Unlock()
		return Settlement{}, &TransitionError{Op: "stop", From: from, Err: ErrNotActive}
	}
	st, err := c.finishLocked(ctx, endStopped, c.cfg.Clock.Now())
	if st == nil {
		return Settlement{}, err
	}
	return *st, err
}

// Unsettled reports whether an ended session is still waiting for the
// backend to settle it.
func (c *Controller) Unsettled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending != nil
}

// Settle retries the settlement of an ended session whose earlier attempt
// failed. It returns nil without error when nothing is waiting.
func (c *Controller) Settle(ctx context.Context) (*Settlement, error) {
	c.mu.Lock()
	if c.pending == nil {
		c.mu.Unlock()
		return nil, nil
	}
	p := *c.pending
	c.mu.Unlock()
	return c.settle(ctx, p)
}

// Reset returns a settled terminal controller to idle. A session still
// waiting to settle is kept.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase.Terminal() && c.pending == nil {
		c.phase = PhaseIdle
		c.rec = Record{}
	}
}

// finishLocked moves the active record to a terminal state at the given
// instant and hands it to the backend. It must be called with c.mu held
// and releases it.
func (c *Controller) finishLocked(ctx context.Context, reason endReason, at time.Time) (*Settlement, error) {
	paused := c.pausedTotal
	if c.phase == PhasePaused {
		paused += at.Sub(c.pausedAt)
	}
	activeEnd := at
	if reason == endLeft {
		activeEnd = c.hiddenAt
	}
	elapsed := max(0, activeEnd.Sub(c.rec.StartAt)-paused)

	rec := c.rec
	rec.EndAt = at
	rec.PausedFor = paused
	rec.ActualMinutes = elapsed.Minutes()

	var penalty *progression.Penalty
	kind := EventInterrupted
	switch reason {
	case endCompleted:
		rec.Completed = true
		rec.ActualMinutes = float64(rec.DurationMinutes)
		c.phase = PhaseCompleted
		kind = EventCompleted
	case endStopped:
		rec.Interrupted = true
		if c.phase == PhaseActive && !rec.IsBreak && c.cfg.Policy.PenaltiesEnabled {
			penalty = &progression.Penalty{Type: progression.PenaltyManualStop, Amount: c.cfg.Policy.ManualStopPenalty}
		}
		c.phase = PhaseInterrupted
	case endLeft:
		rec.Interrupted = true
		if !rec.IsBreak && c.cfg.Policy.PenaltiesEnabled {
			penalty = &progression.Penalty{Type: progression.PenaltyLeave, Amount: c.cfg.Policy.LeavePenalty}
		}
		c.phase = PhaseInterrupted
	}
	c.rec = rec
	c.pausedAt = time.Time{}
	c.last = nil
	p := pendingSettle{rec: rec, penalty: penalty, kind: kind}
	c.pending = &p
	c.mu.Unlock()

	if reason == endLeft {
		c.logger.Info("session interrupted after leaving", "session_id", rec.ID, "grace", c.cfg.GracePeriod)
	}
	return c.settle(ctx, p)
}

// settle hands an ended record to the backend. On failure the record stays
// pending so a later Settle, Tick, Complete, Stop or Start can retry it.
func (c *Controller) settle(ctx context.Context, p pendingSettle) (*Settlement, error) {
	st, err := c.backend.Finish(ctx, p.rec, p.penalty)
	if err != nil {
		err = fmt.Errorf("settle session %s: %w", p.rec.ID, err)
		c.logger.Warn("settle session failed", "session_id", p.rec.ID, "err", err)
		c.emit(Event{Kind: p.kind, Progress: c.Progress(), Err: err})
		return nil, err
	}

	c.mu.Lock()
	if c.pending != nil && c.pending.rec.ID == p.rec.ID {
		c.pending = nil
	}
	c.rec = st.Record
	c.last = &st
	ev := Event{Kind: p.kind, Progress: c.progressLocked(c.cfg.Clock.Now()), Settlement: &st}
	c.mu.Unlock()

	c.emit(ev)
	return &st, nil
}

func (c *Controller) progressLocked(now time.Time) Progress {
	p := Progress{
		Phase:     c.phase,
		SessionID: c.rec.ID,
		IsBreak:   c.rec.IsBreak,
		Duration:  c.rec.Duration(),
		Hidden:    c.hidden,
	}
	if c.hidden && !c.hiddenAt.IsZero() {
		p.HiddenFor = now.Sub(c.hiddenAt)
	}
	switch c.phase {
	case PhaseActive, PhasePaused:
		paused := c.pausedTotal
		if c.phase == PhasePaused {
			paused += now.Sub(c.pausedAt)
		}
		p.Elapsed = min(p.Duration, max(0, now.Sub(c.rec.StartAt)-paused))
	case PhaseCompleted, PhaseInterrupted:
		p.Elapsed = c.rec.Active()
	}
	p.Remaining = max(0, p.Duration-p.Elapsed)
	return p
}

func (c *Controller) emit(ev Event) {
	c.mu.Lock()
	listeners := append([]func(Event){}, c.listeners...)
	c.mu.Unlock()
	for _, fn := range listeners {
		fn(ev)
	}
}

package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dersual/Focus-Friendship-MVP/internal/progression"
	"github.com/dersual/Focus-Friendship-MVP/internal/xp"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeBackend struct {
	mu        sync.Mutex
	begun     []Record
	finished  []Record
	penalties []*progression.Penalty
	beginErr  error
	// finishErr fails the next Finish call once.
	finishErr error
}

func (b *fakeBackend) Begin(_ context.Context, rec Record) (Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.beginErr != nil {
		return Record{}, b.beginErr
	}
	b.begun = append(b.begun, rec)
	return rec, nil
}

func (b *fakeBackend) Finish(_ context.Context, rec Record, p *progression.Penalty) (Settlement, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.finishErr; err != nil {
		b.finishErr = nil
		return Settlement{}, err
	}
	b.finished = append(b.finished, rec)
	b.penalties = append(b.penalties, p)

	var award xp.Award
	if rec.Completed {
		award = xp.ComputeAward(xp.DefaultPolicy(), xp.Input{Minutes: rec.ActualMinutes, IsBreak: rec.IsBreak})
	}
	rec.AwardedXP, rec.PetXP = award.XP, award.PetXP
	rec.Processed = true
	rec.AwardSource = AwardLocal
	if p != nil {
		rec.PenaltyType, rec.PenaltyXP = string(p.Type), p.Amount
	}
	return Settlement{Record: rec, Award: award, Penalty: p}, nil
}

func newTestController(t *testing.T) (*Controller, *fakeBackend, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	backend := &fakeBackend{}
	cfg := DefaultConfig()
	cfg.Clock = clock
	cfg.GracePeriod = 8 * time.Second
	n := 0
	cfg.NewID = func() string {
		n++
		return "sess-" + string(rune('0'+n))
	}
	return NewController(backend, cfg), backend, clock
}

func TestStartRegistersBeforeActive(t *testing.T) {
	c, backend, _ := newTestController(t)
	var phaseAtEvent Phase
	c.OnEvent(func(ev Event) {
		if ev.Kind == EventStarted {
			phaseAtEvent = ev.Progress.Phase
		}
	})

	rec, err := c.Start(context.Background(), StartOptions{DurationMinutes: 25, GoalID: "g1"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(backend.begun) != 1 || backend.begun[0].ID != rec.ID {
		t.Fatalf("begun = %v, want the started record", backend.begun)
	}
	if c.Phase() != PhaseActive || phaseAtEvent != PhaseActive {
		t.Errorf("phase = %s (event %s), want active", c.Phase(), phaseAtEvent)
	}
	if rec.GoalID != "g1" || rec.DurationMinutes != 25 {
		t.Errorf("record = %+v", rec)
	}
}

func TestStartFailures(t *testing.T) {
	c, backend, _ := newTestController(t)
	ctx := context.Background()

	if _, err := c.Start(ctx, StartOptions{DurationMinutes: 0}); !errors.Is(err, ErrInvalidDuration) {
		t.Errorf("zero minutes: err = %v, want ErrInvalidDuration", err)
	}
	if _, err := c.Start(ctx, StartOptions{DurationMinutes: 61, IsBreak: true}); !errors.Is(err, ErrInvalidDuration) {
		t.Errorf("long break: err = %v, want ErrInvalidDuration", err)
	}

	backend.beginErr = errors.New("disk full")
	if _, err := c.Start(ctx, StartOptions{DurationMinutes: 25}); err == nil {
		t.Fatal("expected registration error")
	}
	if c.Phase() != PhaseIdle {
		t.Errorf("phase = %s, want idle after failed registration", c.Phase())
	}

	backend.beginErr = nil
	if _, err := c.Start(ctx, StartOptions{DurationMinutes: 25}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	_, err := c.Start(ctx, StartOptions{DurationMinutes: 25})
	if !errors.Is(err, ErrAlreadyActive) || !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("second start: err = %v, want ErrAlreadyActive", err)
	}
}

func TestPauseResumeExcludesPausedTime(t *testing.T) {
	c, _, clock := newTestController(t)
	ctx := context.Background()
	if _, err := c.Start(ctx, StartOptions{DurationMinutes: 25}); err != nil {
		t.Fatal(err)
	}

	clock.Advance(10 * time.Minute)
	if err := c.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	clock.Advance(30 * time.Minute)
	if got := c.Progress().Elapsed; got != 10*time.Minute {
		t.Errorf("elapsed while paused = %s, want 10m", got)
	}
	if err := c.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	clock.Advance(5 * time.Minute)

	p := c.Progress()
	if p.Elapsed != 15*time.Minute || p.Remaining != 10*time.Minute {
		t.Errorf("progress = elapsed %s remaining %s, want 15m/10m", p.Elapsed, p.Remaining)
	}
}

func TestInvalidTransitions(t *testing.T) {
	c, _, _ := newTestController(t)
	ctx := context.Background()

	if err := c.Pause(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("pause while idle: err = %v", err)
	}
	if err := c.Resume(); !errors.Is(err, ErrNotPaused) {
		t.Errorf("resume while idle: err = %v, want ErrNotPaused", err)
	}
	if _, err := c.Stop(ctx); !errors.Is(err, ErrNotActive) {
		t.Errorf("stop while idle: err = %v, want ErrNotActive", err)
	}

	if _, err := c.Start(ctx, StartOptions{DurationMinutes: 25}); err != nil {
		t.Fatal(err)
	}
	if err := c.Resume(); !errors.Is(err, ErrNotPaused) {
		t.Errorf("resume while active: err = %v, want ErrNotPaused", err)
	}
	if err := c.Pause(); err != nil {
		t.Fatal(err)
	}
	if err := c.Pause(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("double pause: err = %v", err)
	}
	if _, err := c.Complete(ctx); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("complete while paused: err = %v", err)
	}
	if c.Phase() != PhasePaused {
		t.Errorf("phase = %s, want paused (unchanged)", c.Phase())
	}
}

func TestTickCompletesAtExactDuration(t *testing.T) {
	c, backend, clock := newTestController(t)
	ctx := context.Background()
	rec, _ := c.Start(ctx, StartOptions{DurationMinutes: 25})

	clock.Advance(24 * time.Minute)
	if st, err := c.Tick(ctx); st != nil || err != nil {
		t.Fatalf("early tick = (%v, %v), want nothing", st, err)
	}

	// A late tick still ends the session at the scheduled instant.
	clock.Advance(7 * time.Minute)
	st, err := c.Tick(ctx)
	if err != nil || st == nil {
		t.Fatalf("tick = (%v, %v), want settlement", st, err)
	}
	if !st.Record.Completed || st.Record.Interrupted {
		t.Errorf("record flags = completed %v interrupted %v", st.Record.Completed, st.Record.Interrupted)
	}
	if want := rec.StartAt.Add(25 * time.Minute); !st.Record.EndAt.Equal(want) {
		t.Errorf("EndAt = %s, want %s", st.Record.EndAt, want)
	}
	if st.Record.ActualMinutes != 25 {
		t.Errorf("ActualMinutes = %v, want 25", st.Record.ActualMinutes)
	}
	if st.Record.AwardedXP != 250 {
		t.Errorf("AwardedXP = %d, want 250", st.Record.AwardedXP)
	}
	if c.Phase() != PhaseCompleted {
		t.Errorf("phase = %s, want completed", c.Phase())
	}
	if len(backend.finished) != 1 {
		t.Errorf("finished = %d, want 1", len(backend.finished))
	}
}

func TestCompleteIsExactlyOnce(t *testing.T) {
	c, backend, clock := newTestController(t)
	ctx := context.Background()
	if _, err := c.Start(ctx, StartOptions{DurationMinutes: 5}); err != nil {
		t.Fatal(err)
	}

	clock.Advance(time.Minute)
	if _, err := c.Complete(ctx); !errors.Is(err, ErrNotFinished) {
		t.Errorf("early complete: err = %v, want ErrNotFinished", err)
	}

	clock.Advance(5 * time.Minute)
	first, err := c.Complete(ctx)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	second, err := c.Complete(ctx)
	if err != nil {
		t.Fatalf("second Complete: %v", err)
	}
	if !second.Duplicate {
		t.Error("second completion should be flagged duplicate")
	}
	if second.Record.AwardedXP != first.Record.AwardedXP {
		t.Errorf("second award = %d, want %d", second.Record.AwardedXP, first.Record.AwardedXP)
	}
	if len(backend.finished) != 1 {
		t.Errorf("backend finished %d times, want 1", len(backend.finished))
	}
}

func TestFailedSettlementIsRetried(t *testing.T) {
	c, backend, clock := newTestController(t)
	ctx := context.Background()
	if _, err := c.Start(ctx, StartOptions{DurationMinutes: 5}); err != nil {
		t.Fatal(err)
	}
	backend.finishErr = errors.New("database is locked")

	clock.Advance(5 * time.Minute)
	if st, err := c.Tick(ctx); err == nil || st != nil {
		t.Fatalf("Tick = (%v, %v), want settle error", st, err)
	}
	if !c.Unsettled() {
		t.Fatal("ended session should wait for settlement")
	}
	c.Reset()
	if c.Phase() != PhaseCompleted {
		t.Errorf("phase after Reset = %s, want completed", c.Phase())
	}

	st, err := c.Complete(ctx)
	if err != nil {
		t.Fatalf("retry Complete: %v", err)
	}
	if st.Duplicate {
		t.Error("first successful settlement flagged duplicate")
	}
	if !st.Record.Completed || !st.Record.Processed || st.Record.AwardedXP == 0 {
		t.Errorf("record = %+v, want a processed completion with XP", st.Record)
	}
	if len(backend.finished) != 1 {
		t.Errorf("backend finished %d times, want 1", len(backend.finished))
	}
	if c.Unsettled() {
		t.Error("settlement still pending")
	}

	again, err := c.Complete(ctx)
	if err != nil || !again.Duplicate {
		t.Errorf("second Complete = (%+v, %v), want duplicate", again, err)
	}
}

func TestFailedStopSettlementIsRetried(t *testing.T) {
	c, backend, clock := newTestController(t)
	ctx := context.Background()
	if _, err := c.Start(ctx, StartOptions{DurationMinutes: 25}); err != nil {
		t.Fatal(err)
	}
	clock.Advance(10 * time.Minute)
	backend.finishErr = errors.New("database is locked")
	if _, err := c.Stop(ctx); err == nil {
		t.Fatal("Stop should report the settle error")
	}

	clock.Advance(time.Minute)
	st, err := c.Stop(ctx)
	if err != nil {
		t.Fatalf("retry Stop: %v", err)
	}
	if st.Penalty == nil || st.Penalty.Type != progression.PenaltyManualStop {
		t.Errorf("penalty = %+v, want manual_stop", st.Penalty)
	}
	if st.Record.ActualMinutes != 10 {
		t.Errorf("ActualMinutes = %v, want 10", st.Record.ActualMinutes)
	}
	if c.Phase() != PhaseInterrupted {
		t.Errorf("phase = %s, want interrupted", c.Phase())
	}
}

func TestStartSettlesPendingSessionFirst(t *testing.T) {
	c, backend, clock := newTestController(t)
	ctx := context.Background()
	if _, err := c.Start(ctx, StartOptions{DurationMinutes: 5}); err != nil {
		t.Fatal(err)
	}
	backend.finishErr = errors.New("database is locked")
	clock.Advance(5 * time.Minute)
	if _, err := c.Tick(ctx); err == nil {
		t.Fatal("Tick should report the settle error")
	}

	rec, err := c.Start(ctx, StartOptions{DurationMinutes: 25})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(backend.finished) != 1 || backend.finished[0].ID == rec.ID {
		t.Errorf("finished = %v, want the earlier session settled", backend.finished)
	}
}

func TestStopActiveAppliesManualStopPenalty(t *testing.T) {
	c, backend, clock := newTestController(t)
	ctx := context.Background()
	if _, err := c.Start(ctx, StartOptions{DurationMinutes: 25}); err != nil {
		t.Fatal(err)
	}
	clock.Advance(24 * time.Minute)

	st, err := c.Stop(ctx)
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if st.Penalty == nil || st.Penalty.Type != progression.PenaltyManualStop || st.Penalty.Amount != 10 {
		t.Errorf("penalty = %+v, want manual_stop 10", st.Penalty)
	}
	if !st.Record.Interrupted || st.Record.Completed {
		t.Errorf("flags = interrupted %v completed %v", st.Record.Interrupted, st.Record.Completed)
	}
	if st.Record.ActualMinutes != 24 {
		t.Errorf("ActualMinutes = %v, want 24", st.Record.ActualMinutes)
	}
	if c.Phase() != PhaseInterrupted {
		t.Errorf("phase = %s, want interrupted", c.Phase())
	}
	if backend.penalties[0] == nil {
		t.Error("backend did not receive the penalty")
	}
}

func TestStopPausedIsPenaltyFree(t *testing.T) {
	c, _, clock := newTestController(t)
	ctx := context.Background()
	if _, err := c.Start(ctx, StartOptions{DurationMinutes: 25}); err != nil {
		t.Fatal(err)
	}
	clock.Advance(10 * time.Minute)
	if err := c.Pause(); err != nil {
		t.Fatal(err)
	}
	clock.Advance(3 * time.Minute)

	st, err := c.Stop(ctx)
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if st.Penalty != nil {
		t.Errorf("penalty = %+v, want none", st.Penalty)
	}
	if st.Record.ActualMinutes != 10 {
		t.Errorf("ActualMinutes = %v, want 10", st.Record.ActualMinutes)
	}
	if st.Record.PausedFor != 3*time.Minute {
		t.Errorf("PausedFor = %s, want 3m", st.Record.PausedFor)
	}
}

func TestStopBreakIsPenaltyFree(t *testing.T) {
	c, _, clock := newTestController(t)
	ctx := context.Background()
	if _, err := c.Start(ctx, StartOptions{DurationMinutes: 5, IsBreak: true}); err != nil {
		t.Fatal(err)
	}
	clock.Advance(time.Minute)
	st, err := c.Stop(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.Penalty != nil {
		t.Errorf("penalty = %+v, want none for breaks", st.Penalty)
	}
}

func TestPenaltiesDisabled(t *testing.T) {
	clock := newFakeClock()
	cfg := DefaultConfig()
	cfg.Clock = clock
	cfg.Policy.PenaltiesEnabled = false
	c := NewController(&fakeBackend{}, cfg)
	ctx := context.Background()

	if _, err := c.Start(ctx, StartOptions{DurationMinutes: 25}); err != nil {
		t.Fatal(err)
	}
	clock.Advance(time.Minute)
	st, err := c.Stop(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.Penalty != nil {
		t.Errorf("penalty = %+v, want none when penalties are disabled", st.Penalty)
	}
}

func TestHiddenWithinGraceIsTolerated(t *testing.T) {
	c, _, clock := newTestController(t)
	ctx := context.Background()
	if _, err := c.Start(ctx, StartOptions{DurationMinutes: 25}); err != nil {
		t.Fatal(err)
	}
	clock.Advance(time.Minute)
	c.Hidden()
	clock.Advance(5 * time.Second)
	if st, err := c.Tick(ctx); st != nil || err != nil {
		t.Fatalf("tick inside grace = (%v, %v)", st, err)
	}
	if st, err := c.Visible(ctx); st != nil || err != nil {
		t.Fatalf("visible inside grace = (%v, %v)", st, err)
	}
	if c.Phase() != PhaseActive {
		t.Errorf("phase = %s, want active", c.Phase())
	}
}

func TestHiddenBeyondGraceInterrupts(t *testing.T) {
	c, _, clock := newTestController(t)
	ctx := context.Background()
	rec, _ := c.Start(ctx, StartOptions{DurationMinutes: 25})

	var interrupted bool
	c.OnEvent(func(ev Event) {
		if ev.Kind == EventInterrupted {
			interrupted = true
		}
	})

	clock.Advance(10 * time.Minute)
	c.Hidden()
	// No tick fires while hidden; the violation is caught on return.
	clock.Advance(time.Hour)
	st, err := c.Visible(ctx)
	if err != nil || st == nil {
		t.Fatalf("Visible = (%v, %v), want settlement", st, err)
	}
	if st.Penalty == nil || st.Penalty.Type != progression.PenaltyLeave {
		t.Errorf("penalty = %+v, want leave", st.Penalty)
	}
	if st.Record.ActualMinutes != 10 {
		t.Errorf("ActualMinutes = %v, want 10 (time away excluded)", st.Record.ActualMinutes)
	}
	if want := rec.StartAt.Add(10*time.Minute + 8*time.Second); !st.Record.EndAt.Equal(want) {
		t.Errorf("EndAt = %s, want %s", st.Record.EndAt, want)
	}
	if !interrupted {
		t.Error("listener did not see the interruption")
	}
}

func TestHiddenWhilePausedIsAllowed(t *testing.T) {
	c, _, clock := newTestController(t)
	ctx := context.Background()
	if _, err := c.Start(ctx, StartOptions{DurationMinutes: 25}); err != nil {
		t.Fatal(err)
	}
	if err := c.Pause(); err != nil {
		t.Fatal(err)
	}
	c.Hidden()
	clock.Advance(10 * time.Minute)
	if st, _ := c.Visible(ctx); st != nil {
		t.Fatalf("paused session was interrupted: %+v", st)
	}
	if c.Phase() != PhasePaused {
		t.Errorf("phase = %s, want paused", c.Phase())
	}
}

func TestResetAllowsNewSession(t *testing.T) {
	c, _, clock := newTestController(t)
	ctx := context.Background()
	if _, err := c.Start(ctx, StartOptions{DurationMinutes: 1}); err != nil {
		t.Fatal(err)
	}
	clock.Advance(2 * time.Minute)
	if _, err := c.Tick(ctx); err != nil {
		t.Fatal(err)
	}
	// Terminal phases accept a new start without an explicit reset.
	if _, err := c.Start(ctx, StartOptions{DurationMinutes: 5, IsBreak: true}); err != nil {
		t.Fatalf("Start after completion: %v", err)
	}
	if c.Phase() != PhaseActive {
		t.Errorf("phase = %s, want active", c.Phase())
	}
}

func TestPhaseString(t *testing.T) {
	tests := []struct {
		phase Phase
		want  string
	}{
		{PhaseIdle, "idle"},
		{PhaseActive, "active"},
		{PhasePaused, "paused"},
		{PhaseCompleted, "completed"},
		{PhaseInterrupted, "interrupted"},
	}
	for _, tt := range tests {
		if got := tt.phase.String(); got != tt.want {
			t.Errorf("Phase(%d).String() = %q, want %q", tt.phase, got, tt.want)
		}
	}
}

func TestTaskCompletedFlowsToBackend(t *testing.T) {
	c, backend, clock := newTestController(t)
	ctx := context.Background()

	if err := c.SetTaskCompleted(true); !errors.Is(err, ErrNotActive) {
		t.Errorf("idle SetTaskCompleted: err = %v, want ErrNotActive", err)
	}
	if _, err := c.Start(ctx, StartOptions{DurationMinutes: 25}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := c.SetTaskCompleted(true); err != nil {
		t.Fatalf("SetTaskCompleted: %v", err)
	}
	if !c.Snapshot().TasksCompleted {
		t.Error("snapshot does not carry the task flag")
	}
	clock.Advance(25 * time.Minute)
	if _, err := c.Tick(ctx); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if len(backend.finished) != 1 || !backend.finished[0].TasksCompleted {
		t.Errorf("finished = %+v, want task flag set", backend.finished)
	}
}

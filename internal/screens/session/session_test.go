package session

import (
	"context"
	"sync"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"

	"github.com/dersual/Focus-Friendship-MVP/internal/progression"
	"github.com/dersual/Focus-Friendship-MVP/internal/router"
	"github.com/dersual/Focus-Friendship-MVP/internal/screen"
	"github.com/dersual/Focus-Friendship-MVP/internal/screens/summary"
	sess "github.com/dersual/Focus-Friendship-MVP/internal/session"
	"github.com/dersual/Focus-Friendship-MVP/internal/xp"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
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

// mockBackend settles every record with a flat award.
type mockBackend struct {
	mu        sync.Mutex
	finished  []sess.Record
	penalties []*progression.Penalty
}

func (m *mockBackend) Begin(_ context.Context, rec sess.Record) (sess.Record, error) {
	return rec, nil
}

func (m *mockBackend) Finish(_ context.Context, rec sess.Record, penalty *progression.Penalty) (sess.Settlement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished = append(m.finished, rec)
	m.penalties = append(m.penalties, penalty)
	if rec.Completed {
		rec.AwardedXP = 250
	}
	rec.Processed = true
	return sess.Settlement{Record: rec, User: progression.NewUser(rec.UserID)}, nil
}

func newTestScreen(t *testing.T, opts sess.StartOptions) (*SessionScreen, *fakeClock, *mockBackend) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	backend := &mockBackend{}
	ctrl := sess.NewController(backend, sess.Config{
		UserID:      "u1",
		GracePeriod: 8 * time.Second,
		Policy:      xp.DefaultPolicy(),
		Clock:       clock,
	})
	return New(ctrl, opts, time.Second), clock, backend
}

// started runs Init and feeds its result back.
func started(t *testing.T, s *SessionScreen) *SessionScreen {
	t.Helper()
	msg := s.Init()()
	next, cmd := s.Update(msg)
	if cmd == nil {
		t.Fatal("expected a tick command after start")
	}
	return next.(*SessionScreen)
}

func press(r rune) tea.KeyPressMsg {
	return tea.KeyPressMsg{Code: r, Text: string(r)}
}

// replacedWith runs cmd and returns the screen it asks the router to show.
func replacedWith(t *testing.T, cmd tea.Cmd) screen.Screen {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	msg, ok := cmd().(router.ReplaceScreenMsg)
	if !ok {
		t.Fatalf("expected ReplaceScreenMsg")
	}
	return msg.Screen
}

func TestSessionScreen_StartsOnInit(t *testing.T) {
	s, _, _ := newTestScreen(t, sess.StartOptions{DurationMinutes: 25})
	s = started(t, s)

	if s.ctrl.Phase() != sess.PhaseActive {
		t.Errorf("phase = %v, want active", s.ctrl.Phase())
	}
	if !s.HandlesEscape() {
		t.Error("a running session should handle Esc itself")
	}
	if s.Title() != "Focus" {
		t.Errorf("Title = %q, want Focus", s.Title())
	}
	if s.View(80, 24) == "" {
		t.Error("expected non-empty timer view")
	}
}

func TestSessionScreen_StartErrorGoesBack(t *testing.T) {
	s, _, _ := newTestScreen(t, sess.StartOptions{DurationMinutes: 500})
	next, _ := s.Update(s.Init()())
	s = next.(*SessionScreen)
	if s.errMsg == "" {
		t.Fatal("expected an error for an out-of-range duration")
	}

	_, cmd := s.Update(press('x'))
	if cmd == nil {
		t.Fatal("expected a pop command")
	}
	if _, ok := cmd().(router.PopScreenMsg); !ok {
		t.Error("expected PopScreenMsg")
	}
}

func TestSessionScreen_PauseToggle(t *testing.T) {
	s, _, _ := newTestScreen(t, sess.StartOptions{DurationMinutes: 25})
	s = started(t, s)

	s.Update(press('p'))
	if s.ctrl.Phase() != sess.PhasePaused {
		t.Errorf("phase = %v, want paused", s.ctrl.Phase())
	}
	s.Update(press('p'))
	if s.ctrl.Phase() != sess.PhaseActive {
		t.Errorf("phase = %v, want active", s.ctrl.Phase())
	}
}

func TestSessionScreen_TaskToggle(t *testing.T) {
	s, clock, backend := newTestScreen(t, sess.StartOptions{DurationMinutes: 25})
	s = started(t, s)
	s.Update(press('t'))
	if !s.taskDone {
		t.Fatal("expected task marked done")
	}

	clock.Advance(25 * time.Minute)
	_, cmd := s.Update(timerTickMsg{})
	s.Update(cmd())

	if len(backend.finished) != 1 || !backend.finished[0].TasksCompleted {
		t.Error("expected the task flag on the finished record")
	}
}

func TestSessionScreen_CompletesOnTick(t *testing.T) {
	s, clock, backend := newTestScreen(t, sess.StartOptions{DurationMinutes: 25})
	s = started(t, s)

	clock.Advance(25 * time.Minute)
	_, cmd := s.Update(timerTickMsg{})
	_, cmd = s.Update(cmd())

	if _, ok := replacedWith(t, cmd).(*summary.SummaryScreen); !ok {
		t.Error("expected the summary screen")
	}
	if len(backend.finished) != 1 || !backend.finished[0].Completed {
		t.Fatal("expected one completed record")
	}
	if s.ctrl.Phase() != sess.PhaseIdle {
		t.Errorf("phase = %v, want idle after settlement", s.ctrl.Phase())
	}
}

func TestSessionScreen_StopAsksFirst(t *testing.T) {
	s, clock, backend := newTestScreen(t, sess.StartOptions{DurationMinutes: 25})
	s = started(t, s)
	clock.Advance(5 * time.Minute)

	s.Update(tea.KeyPressMsg{Code: tea.KeyEscape})
	if !s.confirmStop {
		t.Fatal("expected stop confirmation")
	}
	s.Update(press('n'))
	if s.confirmStop || s.ctrl.Phase() != sess.PhaseActive {
		t.Fatal("expected the session to keep going")
	}

	s.Update(tea.KeyPressMsg{Code: tea.KeyEscape})
	_, cmd := s.Update(press('y'))
	_, cmd = s.Update(cmd())
	replacedWith(t, cmd)

	if len(backend.penalties) != 1 || backend.penalties[0] == nil {
		t.Fatal("expected a manual-stop penalty")
	}
	if backend.penalties[0].Type != progression.PenaltyManualStop {
		t.Errorf("penalty = %v, want manual stop", backend.penalties[0].Type)
	}
}

func TestSessionScreen_LeavingPastGraceInterrupts(t *testing.T) {
	s, clock, backend := newTestScreen(t, sess.StartOptions{DurationMinutes: 25})
	s = started(t, s)

	s.Update(tea.BlurMsg{})
	if !s.progress.Hidden {
		t.Fatal("expected hidden progress after blur")
	}
	clock.Advance(10 * time.Second)

	_, cmd := s.Update(tea.FocusMsg{})
	_, cmd = s.Update(cmd())
	replacedWith(t, cmd)

	if len(backend.finished) != 1 || !backend.finished[0].Interrupted {
		t.Fatal("expected an interrupted record")
	}
	if backend.penalties[0] == nil || backend.penalties[0].Type != progression.PenaltyLeave {
		t.Error("expected a leave penalty")
	}
}

func TestSessionScreen_ShortAbsenceIsForgiven(t *testing.T) {
	s, clock, backend := newTestScreen(t, sess.StartOptions{DurationMinutes: 25})
	s = started(t, s)

	s.Update(tea.BlurMsg{})
	clock.Advance(3 * time.Second)
	_, cmd := s.Update(tea.FocusMsg{})
	_, cmd = s.Update(cmd())

	if cmd == nil {
		t.Fatal("expected the tick to continue")
	}
	if len(backend.finished) != 0 {
		t.Error("a short absence should not end the session")
	}
	if s.progress.Hidden {
		t.Error("expected visible progress after focus")
	}
}

func TestSessionScreen_KeyHints(t *testing.T) {
	s, _, _ := newTestScreen(t, sess.StartOptions{DurationMinutes: 5, IsBreak: true})
	s = started(t, s)
	for _, h := range s.KeyHints() {
		if h.Key == "T" {
			t.Error("breaks have no task toggle")
		}
	}
	if s.Title() != "Break" {
		t.Errorf("Title = %q, want Break", s.Title())
	}
}

package session

import (
	"context"
	"errors"
	"time"

	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"

	"github.com/dersual/Focus-Friendship-MVP/internal/router"
	"github.com/dersual/Focus-Friendship-MVP/internal/screen"
	"github.com/dersual/Focus-Friendship-MVP/internal/screens/summary"
	sess "github.com/dersual/Focus-Friendship-MVP/internal/session"
	"github.com/dersual/Focus-Friendship-MVP/internal/ui/layout"
)

// DefaultTickInterval is how often the countdown is re-derived.
const DefaultTickInterval = time.Second

// SessionScreen implements screen.Screen for a running focus or break
// session. It drives the controller: terminal focus changes become
// visibility events and every tick re-derives the timer.
type SessionScreen struct {
	ctrl     *sess.Controller
	opts     sess.StartOptions
	interval time.Duration

	progress    sess.Progress
	started     bool
	taskDone    bool
	confirmStop bool
	ending      bool
	errMsg      string
	notice      string
}

var _ screen.Screen = (*SessionScreen)(nil)
var _ screen.KeyHintProvider = (*SessionScreen)(nil)
var _ screen.EscapeHandler = (*SessionScreen)(nil)

// New creates a SessionScreen that starts a session when shown.
func New(ctrl *sess.Controller, opts sess.StartOptions, interval time.Duration) *SessionScreen {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &SessionScreen{ctrl: ctrl, opts: opts, interval: interval}
}

func (s *SessionScreen) Init() tea.Cmd {
	ctrl, opts := s.ctrl, s.opts
	return func() tea.Msg {
		rec, err := ctrl.Start(context.Background(), opts)
		return startedMsg{Record: rec, Err: err}
	}
}

func (s *SessionScreen) Title() string {
	if s.opts.IsBreak {
		return "Break"
	}
	return "Focus"
}

// HandlesEscape keeps Esc inside the screen while a session runs so it
// asks before stopping.
func (s *SessionScreen) HandlesEscape() bool {
	return s.started && s.errMsg == ""
}

func (s *SessionScreen) KeyHints() []layout.KeyHint {
	if s.errMsg != "" {
		return []layout.KeyHint{{Key: "any key", Description: "Back"}}
	}
	if s.confirmStop {
		return hints(keys.Confirm, keys.Cancel)
	}
	pause := keys.Pause
	if s.progress.Phase == sess.PhasePaused {
		pause = keys.Resume
	}
	task := keys.Task
	task.SetEnabled(!s.opts.IsBreak)
	return hints(pause, task, keys.Stop)
}

func (s *SessionScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case startedMsg:
		if msg.Err != nil {
			s.errMsg = msg.Err.Error()
			return s, nil
		}
		s.started = true
		s.progress = s.ctrl.Progress()
		return s, s.tickCmd()

	case timerTickMsg:
		if s.ending {
			return s, nil
		}
		ctrl := s.ctrl
		return s, func() tea.Msg {
			st, err := ctrl.Tick(context.Background())
			return settledMsg{Settlement: st, Err: err}
		}

	case settledMsg:
		return s.handleSettled(msg)

	case tea.BlurMsg:
		s.ctrl.Hidden()
		s.progress = s.ctrl.Progress()
		return s, nil

	case tea.FocusMsg:
		ctrl := s.ctrl
		return s, func() tea.Msg {
			st, err := ctrl.Visible(context.Background())
			return settledMsg{Settlement: st, Err: err}
		}

	case tea.KeyMsg:
		return s.handleKey(msg)
	}
	return s, nil
}

func (s *SessionScreen) handleSettled(msg settledMsg) (screen.Screen, tea.Cmd) {
	if msg.Err != nil {
		s.notice = msg.Err.Error()
	}
	if msg.Settlement != nil {
		s.ending = true
		sum := sess.BuildSummary(*msg.Settlement)
		s.ctrl.Reset()
		return s, func() tea.Msg {
			return router.ReplaceScreenMsg{Screen: summary.New(sum)}
		}
	}
	s.ending = false
	s.progress = s.ctrl.Progress()
	if !s.progress.Running() && !s.ctrl.Unsettled() {
		return s, nil
	}
	return s, s.tickCmd()
}

func (s *SessionScreen) handleKey(msg tea.KeyMsg) (screen.Screen, tea.Cmd) {
	if s.errMsg != "" {
		return s, func() tea.Msg { return router.PopScreenMsg{} }
	}
	if !s.started || s.ending {
		return s, nil
	}

	if s.confirmStop {
		switch {
		case key.Matches(msg, keys.Confirm):
			s.confirmStop = false
			s.ending = true
			ctrl := s.ctrl
			return s, func() tea.Msg {
				st, err := ctrl.Stop(context.Background())
				if err != nil {
					return settledMsg{Err: err}
				}
				return settledMsg{Settlement: &st}
			}
		case key.Matches(msg, keys.Cancel):
			s.confirmStop = false
		}
		return s, nil
	}

	s.notice = ""
	switch {
	case key.Matches(msg, keys.Stop):
		s.confirmStop = true
	case key.Matches(msg, keys.Pause):
		var err error
		if s.progress.Phase == sess.PhasePaused {
			err = s.ctrl.Resume()
		} else {
			err = s.ctrl.Pause()
		}
		s.report(err)
		s.progress = s.ctrl.Progress()
	case key.Matches(msg, keys.Task):
		if s.opts.IsBreak {
			return s, nil
		}
		if err := s.ctrl.SetTaskCompleted(!s.taskDone); err != nil {
			s.report(err)
			return s, nil
		}
		s.taskDone = !s.taskDone
	}
	return s, nil
}

func (s *SessionScreen) report(err error) {
	if err == nil {
		return
	}
	if errors.Is(err, sess.ErrInvalidTransition) {
		s.notice = "Not now: " + err.Error()
		return
	}
	s.notice = err.Error()
}

func (s *SessionScreen) tickCmd() tea.Cmd {
	return tea.Tick(s.interval, func(time.Time) tea.Msg {
		return timerTickMsg{}
	})
}

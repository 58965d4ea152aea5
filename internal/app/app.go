// Package app hosts the terminal UI: the root Bubble Tea model, the screen
// router, and the header that follows the user's progression.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/dersual/Focus-Friendship-MVP/internal/router"
	"github.com/dersual/Focus-Friendship-MVP/internal/screen"
	"github.com/dersual/Focus-Friendship-MVP/internal/screens/home"
	"github.com/dersual/Focus-Friendship-MVP/internal/screens/pets"
	"github.com/dersual/Focus-Friendship-MVP/internal/session"
	"github.com/dersual/Focus-Friendship-MVP/internal/store"
	"github.com/dersual/Focus-Friendship-MVP/internal/ui/layout"
)

// Store is the storage surface the UI reads from.
type Store interface {
	home.Store
	QueueStats(ctx context.Context) (store.QueueStats, error)
}

// Options configures the UI.
type Options struct {
	Controller   *session.Controller
	Ledger       pets.Service
	Store        Store
	UserID       string
	TickInterval time.Duration
	FocusMinutes int
	BreakMinutes int
	HistoryLimit int
	GoalID       string
	Logger       *slog.Logger
}

// AppModel is the root Bubble Tea model.
type AppModel struct {
	router *router.Router
	opts   Options
	logger *slog.Logger
	stats  layout.HeaderStats
	width  int
	height int
}

// newAppModel creates a new AppModel with the home screen.
func newAppModel(opts Options) AppModel {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	homeScreen := home.New(home.Deps{
		Controller:   opts.Controller,
		Ledger:       opts.Ledger,
		Store:        opts.Store,
		UserID:       opts.UserID,
		TickInterval: opts.TickInterval,
		FocusMinutes: opts.FocusMinutes,
		BreakMinutes: opts.BreakMinutes,
		HistoryLimit: opts.HistoryLimit,
		GoalID:       opts.GoalID,
	})
	return AppModel{
		router: router.New(homeScreen),
		opts:   opts,
		logger: logger,
		stats:  layout.HeaderStats{Level: 1},
	}
}

func (m AppModel) Init() tea.Cmd {
	return m.loadDashboard()
}

// loadDashboard reads progression and queue depth for the header and the
// home screen.
func (m AppModel) loadDashboard() tea.Cmd {
	opts, logger := m.opts, m.logger
	return func() tea.Msg {
		ctx := context.Background()
		u, pet, err := opts.Ledger.State(ctx, opts.UserID)
		if err != nil {
			logger.Warn("load dashboard", "error", err)
			return home.DashboardMsg{Err: err}
		}
		d := home.Dashboard{User: u, Pet: pet}
		qs, err := opts.Store.QueueStats(ctx)
		if err != nil {
			logger.Warn("load queue stats", "error", err)
		} else {
			d.Pending = qs.Pending
			d.SyncError = qs.LastError
		}
		return home.DashboardMsg{Dashboard: d}
	}
}

func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case home.DashboardMsg:
		if msg.Err == nil {
			m.stats = layout.HeaderStats{
				Level:   msg.Dashboard.User.Level,
				Streak:  msg.Dashboard.User.CurrentStreak,
				Pending: msg.Dashboard.Pending,
			}
		}

	case router.ResumedMsg:
		return m, tea.Batch(m.router.Update(msg), m.loadDashboard())

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			if m.opts.Controller != nil && m.opts.Controller.Phase() != session.PhaseIdle {
				// Leave the running session to orphan recovery on next start.
				m.logger.Info("quitting with a session in progress")
			}
			return m, tea.Quit
		case "esc":
			if h, ok := m.router.Active().(screen.EscapeHandler); ok && h.HandlesEscape() {
				break
			}
			if m.router.Depth() > 1 {
				return m, func() tea.Msg { return router.PopScreenMsg{} }
			}
			return m, nil
		}
	}

	cmd := m.router.Update(msg)
	return m, cmd
}

func (m AppModel) View() tea.View {
	v := tea.NewView("")
	v.AltScreen = true
	v.ReportFocus = true

	if m.width == 0 || m.height == 0 {
		return v
	}

	if layout.IsTooSmall(m.width, m.height) {
		v.SetContent(layout.RenderMinSizeMessage(m.width, m.height))
		return v
	}

	active := m.router.Active()
	title := ""
	if active != nil {
		title = active.Title()
	}

	header := layout.RenderHeader(title, m.stats, m.width)

	var footerHints []layout.KeyHint
	if kp, ok := active.(screen.KeyHintProvider); ok {
		footerHints = append(kp.KeyHints(), layout.KeyHint{Key: "Ctrl+C", Description: "Quit"})
	} else if m.router.Depth() > 1 {
		footerHints = []layout.KeyHint{
			{Key: "Esc", Description: "Back"},
			{Key: "Ctrl+C", Description: "Quit"},
		}
	} else {
		footerHints = []layout.KeyHint{
			{Key: "↑↓", Description: "Navigate"},
			{Key: "Enter", Description: "Select"},
			{Key: "Ctrl+C", Description: "Quit"},
		}
	}

	footer := layout.RenderFooter(footerHints, m.width)

	headerHeight := lipgloss.Height(header)
	footerHeight := lipgloss.Height(footer)
	contentHeight := m.height - headerHeight - footerHeight
	if contentHeight < 0 {
		contentHeight = 0
	}

	content := m.router.View(m.width, contentHeight)
	frame := layout.RenderFrame(header, content, footer, m.width, m.height)

	v.SetContent(frame)
	return v
}

// Run starts the Bubble Tea program.
func Run(opts Options) error {
	p := tea.NewProgram(newAppModel(opts))
	_, err := p.Run()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error running program:", err)
		return err
	}
	return nil
}

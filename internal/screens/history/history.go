package history

import (
	"context"
	"fmt"
	"image/color"
	"strings"
	"time"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/dersual/Focus-Friendship-MVP/internal/router"
	"github.com/dersual/Focus-Friendship-MVP/internal/screen"
	"github.com/dersual/Focus-Friendship-MVP/internal/session"
	"github.com/dersual/Focus-Friendship-MVP/internal/store"
	"github.com/dersual/Focus-Friendship-MVP/internal/ui/layout"
	"github.com/dersual/Focus-Friendship-MVP/internal/ui/theme"
)

// SessionLister reads past sessions, newest first.
type SessionLister interface {
	ListSessions(ctx context.Context, opts store.QueryOpts) ([]session.Record, error)
}

type historyLoadedMsg struct {
	Sessions []session.Record
	Err      error
}

// HistoryScreen displays past sessions and their awards.
type HistoryScreen struct {
	lister   SessionLister
	userID   string
	limit    int
	sessions []session.Record
	selected int
	expanded map[int]bool
	loaded   bool
	errMsg   string
}

var _ screen.Screen = (*HistoryScreen)(nil)
var _ screen.KeyHintProvider = (*HistoryScreen)(nil)

// New creates a new HistoryScreen showing up to limit sessions.
func New(lister SessionLister, userID string, limit int) *HistoryScreen {
	return &HistoryScreen{
		lister:   lister,
		userID:   userID,
		limit:    limit,
		expanded: make(map[int]bool),
	}
}

func (s *HistoryScreen) Init() tea.Cmd {
	return func() tea.Msg {
		sessions, err := s.lister.ListSessions(context.Background(), store.QueryOpts{UserID: s.userID, Limit: s.limit})
		return historyLoadedMsg{Sessions: sessions, Err: err}
	}
}

func (s *HistoryScreen) Title() string {
	return "History"
}

func (s *HistoryScreen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{
		{Key: "Enter", Description: "Details"},
		{Key: "↑↓", Description: "Navigate"},
		{Key: "Esc", Description: "Back"},
	}
}

func (s *HistoryScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case historyLoadedMsg:
		if msg.Err != nil {
			s.errMsg = msg.Err.Error()
		} else {
			s.sessions = msg.Sessions
		}
		s.loaded = true
		return s, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			return s, func() tea.Msg { return router.PopScreenMsg{} }
		case "up", "k":
			if s.selected > 0 {
				s.selected--
			}
			return s, nil
		case "down", "j":
			if s.selected < len(s.sessions)-1 {
				s.selected++
			}
			return s, nil
		case "enter":
			s.expanded[s.selected] = !s.expanded[s.selected]
			return s, nil
		}
	}
	return s, nil
}

func (s *HistoryScreen) View(width, height int) string {
	if s.errMsg != "" {
		return lipgloss.NewStyle().
			Width(width).Align(lipgloss.Center).Foreground(theme.Error).
			Render(fmt.Sprintf("\n\nError: %s", s.errMsg))
	}
	if !s.loaded {
		return lipgloss.NewStyle().
			Width(width).Align(lipgloss.Center).Foreground(theme.TextDim).
			Render("\n\n  Loading history...")
	}
	if len(s.sessions) == 0 {
		return lipgloss.NewStyle().
			Width(width).Align(lipgloss.Center).Foreground(theme.TextDim).Italic(true).
			Render("\n\n  No sessions yet. Start focusing!")
	}

	var b strings.Builder
	b.WriteString("\n")

	for i, rec := range s.sessions {
		prefix := "  "
		if i == s.selected {
			prefix = "> "
		}
		line := prefix + Line(rec)

		style := lipgloss.NewStyle().Foreground(outcomeColor(rec))
		if i == s.selected {
			style = style.Bold(true)
		}
		b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, style.Render(line)))
		b.WriteString("\n")

		if s.expanded[i] {
			for _, d := range details(rec) {
				b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center,
					lipgloss.NewStyle().Foreground(theme.TextDim).Render("    "+d)))
				b.WriteString("\n")
			}
		}
	}

	return b.String()
}

// Line formats one session as a single history row.
func Line(rec session.Record) string {
	kind := "focus"
	if rec.IsBreak {
		kind = "break"
	}
	outcome := "completed"
	switch {
	case !rec.Terminal():
		outcome = "running"
	case rec.Interrupted:
		outcome = "interrupted"
	}
	xpStr := ""
	if !rec.IsBreak {
		xpStr = fmt.Sprintf("  %+d XP", rec.AwardedXP-rec.PenaltyXP)
	}
	return fmt.Sprintf("%s  %-5s  %5.1f/%-3d min  %-11s%s",
		rec.StartAt.Local().Format("Jan 02 15:04"), kind, rec.ActualMinutes, rec.DurationMinutes, outcome, xpStr)
}

func details(rec session.Record) []string {
	var out []string
	if rec.AwardSource != session.AwardPending {
		out = append(out, "award: "+string(rec.AwardSource))
	}
	if rec.AwardedXP > 0 {
		out = append(out, fmt.Sprintf("xp %d, pet xp %d, base %d", rec.AwardedXP, rec.PetXP, rec.Breakdown.BaseXP))
	}
	if rec.PenaltyXP > 0 {
		out = append(out, fmt.Sprintf("penalty %d (%s)", rec.PenaltyXP, rec.PenaltyType))
	}
	if rec.PausedFor > 0 {
		out = append(out, fmt.Sprintf("paused %s", rec.PausedFor.Round(time.Second)))
	}
	if rec.TasksCompleted {
		out = append(out, "task completed")
	}
	if len(out) == 0 {
		out = append(out, "no award")
	}
	return out
}

func outcomeColor(rec session.Record) color.Color {
	switch {
	case rec.AwardSource == session.AwardRejected:
		return theme.Error
	case rec.Interrupted:
		return theme.Accent
	case rec.IsBreak:
		return theme.Sky
	default:
		return theme.Text
	}
}

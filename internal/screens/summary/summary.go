package summary

import (
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/dersual/Focus-Friendship-MVP/internal/progression"
	"github.com/dersual/Focus-Friendship-MVP/internal/router"
	"github.com/dersual/Focus-Friendship-MVP/internal/screen"
	"github.com/dersual/Focus-Friendship-MVP/internal/session"
	"github.com/dersual/Focus-Friendship-MVP/internal/ui/layout"
	"github.com/dersual/Focus-Friendship-MVP/internal/ui/theme"
)

// SummaryScreen displays the outcome of a finished session.
type SummaryScreen struct {
	summary session.Summary
}

var _ screen.Screen = (*SummaryScreen)(nil)
var _ screen.KeyHintProvider = (*SummaryScreen)(nil)

// New creates a new SummaryScreen.
func New(summary session.Summary) *SummaryScreen {
	return &SummaryScreen{summary: summary}
}

func (s *SummaryScreen) Init() tea.Cmd {
	return nil
}

func (s *SummaryScreen) Title() string {
	return "Session Summary"
}

func (s *SummaryScreen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{
		{Key: "Enter", Description: "Continue"},
		{Key: "Esc", Description: "Home"},
	}
}

func (s *SummaryScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	if kmsg, ok := msg.(tea.KeyMsg); ok {
		switch kmsg.String() {
		case "enter", "esc":
			return s, func() tea.Msg { return router.PopScreenMsg{} }
		}
	}
	return s, nil
}

func (s *SummaryScreen) View(width, height int) string {
	sum := s.summary
	center := func(style lipgloss.Style, text string) string {
		return lipgloss.PlaceHorizontal(width, lipgloss.Center, style.Render(text))
	}

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(center(lipgloss.NewStyle().Foreground(theme.Primary).Bold(true), headline(sum)))
	b.WriteString("\n")
	b.WriteString(center(lipgloss.NewStyle().Foreground(theme.TextDim), fmt.Sprintf("%.1f minutes", sum.Minutes)))
	b.WriteString("\n\n")

	if !sum.IsBreak {
		xpLine := fmt.Sprintf("+%d XP    +%d pet XP", sum.AwardedXP, sum.PetXP)
		b.WriteString(center(lipgloss.NewStyle().Foreground(theme.Gold).Bold(true), xpLine))
		b.WriteString("\n")
		if note := sourceNote(sum.Source); note != "" {
			b.WriteString(center(theme.Hint, note))
			b.WriteString("\n")
		}
	}
	if sum.PenaltyXP > 0 {
		b.WriteString(center(theme.Negative, fmt.Sprintf("-%d XP penalty, streak reset", sum.PenaltyXP)))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if sum.LevelUp {
		b.WriteString(center(theme.Positive, fmt.Sprintf("Level up! You are now level %d", sum.Level)))
		b.WriteString("\n")
	}
	if sum.PetLevelUp {
		b.WriteString(center(theme.Positive, fmt.Sprintf("Your companion reached level %d", sum.PetLevel)))
		b.WriteString("\n")
	}
	for _, id := range sum.Unlocked {
		name := id
		if pt, ok := progression.PetByID(id); ok {
			name = pt.Icon + " " + pt.Name
		}
		b.WriteString(center(lipgloss.NewStyle().Foreground(theme.Accent).Bold(true), "New companion unlocked: "+name))
		b.WriteString("\n")
	}

	if sum.AwardedXP > 0 {
		b.WriteString("\n")
		divider := lipgloss.NewStyle().Foreground(theme.Border).Render(strings.Repeat("─", min(width-8, 40)))
		b.WriteString(center(lipgloss.NewStyle().Foreground(theme.TextDim), "Breakdown"))
		b.WriteString("\n")
		b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, divider))
		b.WriteString("\n")
		for _, line := range breakdownLines(sum) {
			b.WriteString(center(lipgloss.NewStyle().Foreground(theme.Text), line))
			b.WriteString("\n")
		}
	}

	return b.String()
}

func headline(sum session.Summary) string {
	switch {
	case sum.IsBreak && sum.Completed:
		return "Break over, ready to focus?"
	case sum.IsBreak:
		return "Break ended early"
	case sum.Completed:
		return "Focus session complete!"
	default:
		return "Session interrupted"
	}
}

func sourceNote(src session.AwardSource) string {
	switch src {
	case session.AwardProvisional:
		return "estimate, waiting for the server"
	case session.AwardAuthoritative:
		return "verified by the server"
	case session.AwardRejected:
		return "the server did not accept this session"
	default:
		return ""
	}
}

// breakdownLines lists the factors that moved the award away from neutral.
func breakdownLines(sum session.Summary) []string {
	bd := sum.Breakdown
	lines := []string{fmt.Sprintf("base          %d", bd.BaseXP)}
	factor := func(name string, v float64) {
		if v != 0 && v != 1 {
			lines = append(lines, fmt.Sprintf("%-13s x%.2f", name, v))
		}
	}
	factor("diminishing", bd.DiminishFactor)
	factor("short session", bd.ShortPenalty)
	factor("task bonus", bd.TaskMultiplier)
	factor("streak", bd.StreakBonus)
	factor("focus ratio", bd.RatioBonus)
	factor("companion", bd.PetMultiplier)
	return lines
}

package session

import (
	"fmt"
	"strings"
	"time"

	"charm.land/lipgloss/v2"

	sess "github.com/dersual/Focus-Friendship-MVP/internal/session"
	"github.com/dersual/Focus-Friendship-MVP/internal/ui/components"
	"github.com/dersual/Focus-Friendship-MVP/internal/ui/theme"
)

func (s *SessionScreen) View(width, height int) string {
	if s.errMsg != "" {
		return renderError(width, height, s.errMsg)
	}
	if !s.started {
		return renderLoading(width, height)
	}
	if s.confirmStop {
		return renderStopConfirm(width, height, s.opts.IsBreak)
	}
	return s.renderTimer(width, height)
}

// renderTimer renders the countdown, progress and status lines.
func (s *SessionScreen) renderTimer(width, height int) string {
	p := s.progress
	center := lipgloss.NewStyle().Width(width).Align(lipgloss.Center)

	var b strings.Builder
	b.WriteString("\n")

	label := "FOCUS"
	fill := theme.Primary
	if p.IsBreak {
		label = "BREAK"
		fill = theme.Sky
	}
	if p.Phase == sess.PhasePaused {
		label += " · PAUSED"
	}
	b.WriteString(center.Foreground(theme.TextDim).Render(label))
	b.WriteString("\n\n")

	b.WriteString(center.Foreground(theme.Text).Bold(true).Render(formatClock(p.Remaining)))
	b.WriteString("\n\n")

	barWidth := min(width-8, 50)
	bar := components.NewProgressBar("", p.Fraction(), true, barWidth)
	bar.Fill = fill
	b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, bar.View()))
	b.WriteString("\n\n")

	if !s.opts.IsBreak {
		box := "[ ]"
		if s.taskDone {
			box = "[x]"
		}
		b.WriteString(center.Foreground(theme.TextDim).Render(box + " task completed"))
		b.WriteString("\n")
	}

	if p.Hidden {
		b.WriteString("\n")
		b.WriteString(center.Foreground(theme.Accent).Bold(true).
			Render(fmt.Sprintf("Come back! Away for %s", p.HiddenFor.Round(time.Second))))
		b.WriteString("\n")
	}

	if s.notice != "" {
		b.WriteString("\n")
		b.WriteString(center.Foreground(theme.Error).Render(s.notice))
		b.WriteString("\n")
	}

	return b.String()
}

func formatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	return fmt.Sprintf("%02d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}

func renderLoading(width, height int) string {
	return lipgloss.NewStyle().
		Width(width).
		Height(height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.TextDim).
		Render("Starting session...")
}

func renderError(width, height int, msg string) string {
	return lipgloss.NewStyle().
		Width(width).
		Height(height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.Error).
		Render("Could not start the session:\n\n" + msg + "\n\nPress any key to go back.")
}

func renderStopConfirm(width, height int, isBreak bool) string {
	warning := "Stopping a running focus session costs XP and your streak."
	if isBreak {
		warning = "End the break early?"
	}
	body := lipgloss.JoinVertical(lipgloss.Center,
		theme.Title.Render("Stop session?"),
		"",
		lipgloss.NewStyle().Foreground(theme.Text).Render(warning),
		lipgloss.NewStyle().Foreground(theme.TextDim).Render("Pause first to stop without a penalty."),
		"",
		lipgloss.NewStyle().Foreground(theme.TextDim).Render("(Y)es   (N)o"),
	)
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, theme.Card.Render(body))
}

package home

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/dersual/Focus-Friendship-MVP/internal/progression"
	"github.com/dersual/Focus-Friendship-MVP/internal/ui/components"
	"github.com/dersual/Focus-Friendship-MVP/internal/ui/theme"
)

const titleFull = ` ╔═╗╔═╗╔═╗╦ ╦╔═╗  ╔═╗╦═╗╦╔═╗╔╗╔╔╦╗
 ╠╣ ║ ║║  ║ ║╚═╗  ╠╣ ╠╦╝║║╣ ║║║ ║║
 ╚  ╚═╝╚═╝╚═╝╚═╝  ╚  ╩╚═╩╚═╝╝╚╝═╩╝`

const titleCompact = "F O C U S · F R I E N D"

// contentWidth returns the uniform inner width used for all sections.
func contentWidth(frameWidth int) int {
	// Leave room for frame border (2) + inner padding (4)
	w := frameWidth - 6
	if w > 60 {
		w = 60
	}
	if w < 20 {
		w = 20
	}
	return w
}

func renderTitle(cw int, compact bool) string {
	style := lipgloss.NewStyle().
		Foreground(theme.Gold).
		Bold(true)

	art := titleFull
	if compact {
		art = titleCompact
	}
	return lipgloss.NewStyle().
		Width(cw).
		Align(lipgloss.Center).
		Render(style.Render(art))
}

// renderStatsBar renders level progress, streak and sync state in a bordered box.
func renderStatsBar(d Dashboard, cw int, compact bool) string {
	levelStyle := lipgloss.NewStyle().Foreground(theme.Gold).Bold(true)
	streakStyle := lipgloss.NewStyle().Foreground(theme.Accent).Bold(true)
	syncStyle := lipgloss.NewStyle().Foreground(theme.Sky).Bold(true)
	dimStyle := lipgloss.NewStyle().Foreground(theme.TextDim)

	need := progression.ExpToNext(d.User.Level)
	var stats string
	if compact {
		stats = fmt.Sprintf("%s %s %s",
			levelStyle.Render(fmt.Sprintf("Lv%d", d.User.Level)),
			streakStyle.Render(fmt.Sprintf("🔥%d", d.User.CurrentStreak)),
			syncText(d, true, syncStyle, dimStyle),
		)
	} else {
		stats = fmt.Sprintf("%s  %s  %s",
			levelStyle.Render(fmt.Sprintf("LV %d  %d/%d XP", d.User.Level, d.User.XP, need)),
			streakStyle.Render(fmt.Sprintf("🔥 %d STREAK", d.User.CurrentStreak)),
			syncText(d, false, syncStyle, dimStyle),
		)
	}

	bar := components.NewProgressBar("", float64(d.User.XP)/float64(max(need, 1)), false, cw-6)
	bar.Fill = theme.Gold

	return lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(theme.Sky).
		Width(cw - 2).
		Align(lipgloss.Center).
		Padding(0, 1).
		Render(stats + "\n" + bar.View())
}

func syncText(d Dashboard, compact bool, active, dim lipgloss.Style) string {
	if d.Pending == 0 {
		if compact {
			return dim.Render("✓")
		}
		return dim.Render("✓ SYNCED")
	}
	if compact {
		return active.Render(fmt.Sprintf("⇡%d", d.Pending))
	}
	return active.Render(fmt.Sprintf("⇡ %d PENDING", d.Pending))
}

// renderPet renders the mascot and the active companion's stage line.
func renderPet(d Dashboard, cw int) string {
	t, ok := progression.PetByID(d.Pet.ID)
	if !ok {
		t, _ = progression.PetByID(progression.StarterPetID)
	}
	stage := t.StageFor(d.Pet.Level)

	caption := lipgloss.NewStyle().Foreground(theme.TextDim).Render(
		fmt.Sprintf("%s · %s · Lv %d", t.Name, stage.Name, d.Pet.Level))

	return lipgloss.NewStyle().
		Width(cw).
		Align(lipgloss.Center).
		Render(RenderMascot(mascotFor(d), stage.Icon) + "\n" + caption)
}

func mascotFor(d Dashboard) MascotVariant {
	switch {
	case d.SyncError != "":
		return MascotAlert
	case d.User.CurrentStreak >= 3:
		return MascotCelebrating
	default:
		return MascotIdle
	}
}

// buttonWidth is the fixed width for menu buttons.
const buttonWidth = 22

// renderMenu renders each menu item as a fixed-width button.
func renderMenu(items []string, selected int, cw int) string {
	selectedBtn := lipgloss.NewStyle().
		Width(buttonWidth).
		Align(lipgloss.Center).
		Bold(true).
		Foreground(theme.BgDark).
		Background(theme.Gold).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.Gold).
		Padding(0, 1)

	normalBtn := lipgloss.NewStyle().
		Width(buttonWidth).
		Align(lipgloss.Center).
		Foreground(theme.Text).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.Border).
		Padding(0, 1)

	var buttons []string
	for i, label := range items {
		if i == selected {
			buttons = append(buttons, selectedBtn.Render("▸ "+label))
		} else {
			buttons = append(buttons, normalBtn.Render(label))
		}
	}

	return lipgloss.NewStyle().
		Width(cw).
		Align(lipgloss.Center).
		Render(strings.Join(buttons, "\n"))
}

// renderMenuCompact renders menu items as plain lines for small terminals
// where bordered buttons would overflow.
func renderMenuCompact(items []string, selected int, cw int) string {
	var lines []string
	for i, label := range items {
		if i == selected {
			lines = append(lines, lipgloss.NewStyle().
				Foreground(theme.BgDark).
				Background(theme.Gold).
				Bold(true).
				Render(" ▸ "+label+" "))
		} else {
			lines = append(lines, lipgloss.NewStyle().
				Foreground(theme.Text).
				Render("   "+label))
		}
	}

	return lipgloss.NewStyle().
		Width(cw).
		Align(lipgloss.Center).
		Render(strings.Join(lines, "\n"))
}

// renderFrame wraps content in a double-border frame, centered within the
// given dimensions.
func renderFrame(content string, width, height int) string {
	return lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(theme.Primary).
		Width(width - 2).
		Height(height - 2).
		Align(lipgloss.Center, lipgloss.Center).
		Render(content)
}

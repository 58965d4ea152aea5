package home

import (
	"charm.land/lipgloss/v2"

	"github.com/dersual/Focus-Friendship-MVP/internal/ui/theme"
)

// MascotVariant selects which mascot art to display.
type MascotVariant int

const (
	MascotIdle        MascotVariant = iota // Default purple
	MascotCelebrating                      // Gold, star eyes: streak going
	MascotAlert                            // Orange, exclamation: sync failing
)

const mascotIdle = `┌─────┐
│ ◉ ◉ │
│  ▽  │
│ %s │
└─────┘`

const mascotCelebrating = `┌─────┐
│ ★ ★ │
│  ▿  │
│ %s │
└─╥═╥─┘
  ╚═╝`

const mascotAlert = `┌─────┐
│ ◉ ◉ │ !
│  ▽  │
│ %s │
└─────┘`

// RenderMascot returns the mascot art holding the active pet's icon.
func RenderMascot(variant MascotVariant, icon string) string {
	var art string
	var fg = theme.Primary

	switch variant {
	case MascotCelebrating:
		art = mascotCelebrating
		fg = theme.Gold
	case MascotAlert:
		art = mascotAlert
		fg = theme.Accent
	default:
		art = mascotIdle
	}

	return lipgloss.NewStyle().
		Foreground(fg).
		Render(fmtIcon(art, icon))
}

// fmtIcon centers a (usually double-width) emoji in the three-cell slot.
func fmtIcon(art, icon string) string {
	slot := icon
	switch w := lipgloss.Width(icon); {
	case w <= 1:
		slot = " " + icon + " "
	case w == 2:
		slot = icon + " "
	}
	out := make([]byte, 0, len(art)+len(slot))
	for i := 0; i < len(art); i++ {
		if art[i] == '%' && i+1 < len(art) && art[i+1] == 's' {
			out = append(out, slot...)
			i++
			continue
		}
		out = append(out, art[i])
	}
	return string(out)
}

package home

import (
	"strings"
	"time"

	tea "charm.land/bubbletea/v2"

	"github.com/dersual/Focus-Friendship-MVP/internal/progression"
	"github.com/dersual/Focus-Friendship-MVP/internal/router"
	"github.com/dersual/Focus-Friendship-MVP/internal/screen"
	"github.com/dersual/Focus-Friendship-MVP/internal/screens/history"
	"github.com/dersual/Focus-Friendship-MVP/internal/screens/pets"
	sessionscreen "github.com/dersual/Focus-Friendship-MVP/internal/screens/session"
	"github.com/dersual/Focus-Friendship-MVP/internal/session"
	"github.com/dersual/Focus-Friendship-MVP/internal/ui/components"
	"github.com/dersual/Focus-Friendship-MVP/internal/ui/layout"
)

// Dashboard is the progression snapshot shown on the home screen and in
// the header.
type Dashboard struct {
	User      progression.User
	Pet       progression.Pet
	Pending   int
	SyncError string
}

// DashboardMsg carries a freshly loaded Dashboard.
type DashboardMsg struct {
	Dashboard Dashboard
	Err       error
}

// Store is what the home screen's sub-screens read from.
type Store interface {
	history.SessionLister
	pets.PetLister
}

// Deps wires the home screen to the session controller and storage.
type Deps struct {
	Controller   *session.Controller
	Ledger       pets.Service
	Store        Store
	UserID       string
	TickInterval time.Duration
	FocusMinutes int
	BreakMinutes int
	HistoryLimit int

	// GoalID tags focus sessions started from the menu.
	GoalID string
}

// HomeScreen is the main home screen of the application.
type HomeScreen struct {
	menu       components.Menu
	menuLabels []string
	dash       Dashboard
	loaded     bool
}

var _ screen.Screen = (*HomeScreen)(nil)

// New creates a new HomeScreen.
func New(d Deps) *HomeScreen {
	if d.FocusMinutes <= 0 {
		d.FocusMinutes = 25
	}
	if d.BreakMinutes <= 0 {
		d.BreakMinutes = 5
	}
	if d.HistoryLimit <= 0 {
		d.HistoryLimit = 50
	}

	menuLabels := []string{"START FOCUS", "SHORT BREAK", "PETS", "HISTORY", "EXIT"}

	start := func(opts session.StartOptions) func() tea.Cmd {
		return func() tea.Cmd {
			return func() tea.Msg {
				return router.PushScreenMsg{Screen: sessionscreen.New(d.Controller, opts, d.TickInterval)}
			}
		}
	}

	items := []components.MenuItem{
		{Label: menuLabels[0], Action: start(session.StartOptions{DurationMinutes: d.FocusMinutes, GoalID: d.GoalID})},
		{Label: menuLabels[1], Action: start(session.StartOptions{DurationMinutes: d.BreakMinutes, IsBreak: true})},
		{Label: menuLabels[2], Action: func() tea.Cmd {
			return func() tea.Msg {
				return router.PushScreenMsg{Screen: pets.New(d.Ledger, d.Store, d.UserID)}
			}
		}},
		{Label: menuLabels[3], Action: func() tea.Cmd {
			return func() tea.Msg {
				return router.PushScreenMsg{Screen: history.New(d.Store, d.UserID, d.HistoryLimit)}
			}
		}},
		{Label: menuLabels[4], Action: func() tea.Cmd {
			return tea.Quit
		}},
	}

	return &HomeScreen{
		menu:       components.NewMenu(items),
		menuLabels: menuLabels,
		dash: Dashboard{
			User: progression.NewUser(d.UserID),
			Pet:  progression.NewPet(progression.StarterPetID),
		},
	}
}

func (h *HomeScreen) Init() tea.Cmd {
	return nil
}

func (h *HomeScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	if msg, ok := msg.(DashboardMsg); ok {
		if msg.Err == nil {
			h.dash = msg.Dashboard
			h.loaded = true
		}
		return h, nil
	}
	var cmd tea.Cmd
	h.menu, cmd = h.menu.Update(msg)
	return h, cmd
}

func (h *HomeScreen) View(width, height int) string {
	// height is the content area; estimate full terminal height
	// by adding back header (3) + footer (3) + frame gaps
	compact := layout.IsCompactHeight(height+8) || layout.IsCompactWidth(width)

	cw := contentWidth(width)

	var sections []string
	sections = append(sections, renderTitle(cw, compact))
	if !compact {
		sections = append(sections, renderPet(h.dash, cw))
	}
	sections = append(sections, renderStatsBar(h.dash, cw, compact))
	if compact {
		sections = append(sections, renderMenuCompact(h.menuLabels, h.menu.Selected, cw))
	} else {
		sections = append(sections, renderMenu(h.menuLabels, h.menu.Selected, cw))
	}

	return renderFrame(strings.Join(sections, "\n\n"), width, height)
}

func (h *HomeScreen) Title() string {
	return "Home"
}

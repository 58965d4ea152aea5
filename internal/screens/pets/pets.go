package pets

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/dersual/Focus-Friendship-MVP/internal/progression"
	"github.com/dersual/Focus-Friendship-MVP/internal/router"
	"github.com/dersual/Focus-Friendship-MVP/internal/screen"
	"github.com/dersual/Focus-Friendship-MVP/internal/ui/layout"
	"github.com/dersual/Focus-Friendship-MVP/internal/ui/theme"
	"github.com/dersual/Focus-Friendship-MVP/internal/xp"
)

// Service is the part of the ledger the pets screen needs.
type Service interface {
	State(ctx context.Context, userID string) (progression.User, progression.Pet, error)
	UpdateUser(ctx context.Context, userID string, fn func(progression.User) (progression.User, error)) (progression.User, error)
}

// PetLister lists the companions a user has progress on.
type PetLister interface {
	ListPets(ctx context.Context, userID string) ([]progression.Pet, error)
}

type tab int

const (
	tabPets tab = iota
	tabTraits
)

type loadedMsg struct {
	User progression.User
	Pets map[string]progression.Pet
	Err  error
}

type updatedMsg struct {
	User progression.User
	Err  error
}

// PetsScreen shows the companion catalog and the trait loadout.
type PetsScreen struct {
	svc    Service
	lister PetLister
	userID string

	user     progression.User
	pets     map[string]progression.Pet
	traits   []xp.Trait
	tab      tab
	selected int
	loaded   bool
	errMsg   string
	notice   string
}

var _ screen.Screen = (*PetsScreen)(nil)
var _ screen.KeyHintProvider = (*PetsScreen)(nil)

// New creates a new PetsScreen.
func New(svc Service, lister PetLister, userID string) *PetsScreen {
	traits := make([]xp.Trait, 0, len(xp.Traits))
	for _, t := range xp.Traits {
		traits = append(traits, t)
	}
	slices.SortFunc(traits, func(a, b xp.Trait) int {
		return cmp.Or(cmp.Compare(a.UnlockLevel, b.UnlockLevel), cmp.Compare(a.ID, b.ID))
	})
	return &PetsScreen{svc: svc, lister: lister, userID: userID, traits: traits}
}

func (s *PetsScreen) Init() tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		u, _, err := s.svc.State(ctx, s.userID)
		if err != nil {
			return loadedMsg{Err: err}
		}
		list, err := s.lister.ListPets(ctx, s.userID)
		if err != nil {
			return loadedMsg{Err: err}
		}
		byID := make(map[string]progression.Pet, len(list))
		for _, p := range list {
			byID[p.ID] = p
		}
		return loadedMsg{User: u, Pets: byID}
	}
}

func (s *PetsScreen) Title() string {
	return "Pets"
}

func (s *PetsScreen) KeyHints() []layout.KeyHint {
	action := "Select"
	if s.tab == tabTraits {
		action = "Equip/Unequip"
	}
	return []layout.KeyHint{
		{Key: "Tab", Description: "Pets/Traits"},
		{Key: "Enter", Description: action},
		{Key: "↑↓", Description: "Navigate"},
		{Key: "Esc", Description: "Back"},
	}
}

func (s *PetsScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case loadedMsg:
		if msg.Err != nil {
			s.errMsg = msg.Err.Error()
		} else {
			s.user = msg.User
			s.pets = msg.Pets
		}
		s.loaded = true
		return s, nil

	case updatedMsg:
		if msg.Err != nil {
			s.notice = msg.Err.Error()
		} else {
			s.user = msg.User
			s.notice = ""
		}
		return s, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			return s, func() tea.Msg { return router.PopScreenMsg{} }
		case "tab", "shift+tab":
			s.tab = 1 - s.tab
			s.selected = 0
			s.notice = ""
			return s, nil
		case "up", "k":
			if s.selected > 0 {
				s.selected--
			}
			return s, nil
		case "down", "j":
			if s.selected < s.rows()-1 {
				s.selected++
			}
			return s, nil
		case "enter":
			if !s.loaded || s.errMsg != "" {
				return s, nil
			}
			return s, s.apply()
		}
	}
	return s, nil
}

func (s *PetsScreen) rows() int {
	if s.tab == tabTraits {
		return len(s.traits)
	}
	return len(progression.Catalog)
}

func (s *PetsScreen) apply() tea.Cmd {
	var fn func(progression.User) (progression.User, error)
	if s.tab == tabPets {
		petID := progression.Catalog[s.selected].ID
		fn = func(u progression.User) (progression.User, error) {
			return progression.SelectPet(u, petID)
		}
	} else {
		traitID := s.traits[s.selected].ID
		fn = func(u progression.User) (progression.User, error) {
			if slices.Contains(u.Traits, traitID) {
				return progression.UnequipTrait(u, traitID), nil
			}
			return progression.EquipTrait(u, traitID)
		}
	}
	return func() tea.Msg {
		u, err := s.svc.UpdateUser(context.Background(), s.userID, fn)
		return updatedMsg{User: u, Err: err}
	}
}

func (s *PetsScreen) View(width, height int) string {
	if s.errMsg != "" {
		return lipgloss.NewStyle().
			Width(width).Align(lipgloss.Center).Foreground(theme.Error).
			Render(fmt.Sprintf("\n\nError: %s", s.errMsg))
	}
	if !s.loaded {
		return lipgloss.NewStyle().
			Width(width).Align(lipgloss.Center).Foreground(theme.TextDim).
			Render("\n\n  Loading pets...")
	}

	var b strings.Builder
	b.WriteString("\n")

	labels := []string{
		fmt.Sprintf("🐾 Pets (%d/%d)", len(s.user.UnlockedPets), len(progression.Catalog)),
		fmt.Sprintf("✨ Traits (%d/%d)", len(s.user.Traits), progression.MaxEquippedTraits),
	}
	var tabs []string
	for i, label := range labels {
		if tab(i) == s.tab {
			tabs = append(tabs, lipgloss.NewStyle().Foreground(theme.Primary).Bold(true).Render(label))
		} else {
			tabs = append(tabs, lipgloss.NewStyle().Foreground(theme.TextDim).Render(label))
		}
	}
	b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, strings.Join(tabs, "     ")))
	b.WriteString("\n\n")

	divider := lipgloss.NewStyle().Foreground(theme.Border).Render(
		strings.Repeat("─", min(width-8, 60)))
	b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, divider))
	b.WriteString("\n\n")

	var lines []string
	if s.tab == tabPets {
		lines = s.petLines()
	} else {
		lines = s.traitLines()
	}
	for i, line := range lines {
		style := theme.Unselected
		if i == s.selected {
			style = theme.Selected
		}
		b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, style.Render(line)))
		b.WriteString("\n")
	}

	if s.notice != "" {
		b.WriteString("\n")
		b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center,
			lipgloss.NewStyle().Foreground(theme.Error).Render(s.notice)))
		b.WriteString("\n")
	}
	return b.String()
}

func (s *PetsScreen) petLines() []string {
	lines := make([]string, 0, len(progression.Catalog))
	for _, t := range progression.Catalog {
		if !s.user.HasPet(t.ID) {
			lines = append(lines, fmt.Sprintf("   🔒 %-14s  %s", t.Name, lockedHint(t.ID)))
			continue
		}
		p, ok := s.pets[t.ID]
		if !ok {
			p = progression.NewPet(t.ID)
		}
		stage := t.StageFor(p.Level)
		mark := "  "
		if s.user.ActivePet == t.ID {
			mark = "★ "
		}
		lines = append(lines, fmt.Sprintf("%s %s %-14s  Lv %-2d %-16s %s",
			mark, stage.Icon, t.Name, p.Level, stage.Name, t.Specialty.DisplayName()))
	}
	return lines
}

func (s *PetsScreen) traitLines() []string {
	lines := make([]string, 0, len(s.traits))
	for _, t := range s.traits {
		var status string
		switch {
		case slices.Contains(s.user.Traits, t.ID):
			status = "[x]"
		case s.user.Level < t.UnlockLevel:
			status = "🔒 "
		default:
			status = "[ ]"
		}
		lines = append(lines, fmt.Sprintf("%s %-16s ×%.2f  %-13s Lv %d",
			status, t.Name, t.Multiplier, t.Kind, t.UnlockLevel))
	}
	return lines
}

func lockedHint(petID string) string {
	for _, u := range progression.LevelUnlocks {
		if u.PetID == petID {
			return fmt.Sprintf("unlocks at level %d", u.Level)
		}
	}
	return "locked"
}

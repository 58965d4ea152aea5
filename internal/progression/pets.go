package progression

import (
	"fmt"
	"slices"
	"strings"

	"github.com/dersual/Focus-Friendship-MVP/internal/xp"
)

// StarterPetID is the companion every user starts with.
const StarterPetID = "bean-0"

// MaxEquippedTraits bounds how many traits a user can equip at once.
const MaxEquippedTraits = 3

// Specialty is the session category a companion is good at.
type Specialty string

const (
	SpecialtyGeneral     Specialty = "general"
	SpecialtyStudy       Specialty = "study"
	SpecialtyWork        Specialty = "work"
	SpecialtyCreative    Specialty = "creative"
	SpecialtyMindfulness Specialty = "mindfulness"
)

// DisplayName returns a human-readable label for the specialty.
func (s Specialty) DisplayName() string {
	switch s {
	case SpecialtyGeneral:
		return "General"
	case SpecialtyStudy:
		return "Study"
	case SpecialtyWork:
		return "Work"
	case SpecialtyCreative:
		return "Creative"
	case SpecialtyMindfulness:
		return "Mindfulness"
	default:
		return string(s)
	}
}

// Stage is an evolution stage reached at a companion level.
type Stage struct {
	Level int
	Name  string
	Icon  string
}

// PetType describes one companion in the catalog.
type PetType struct {
	ID         string
	Name       string
	Icon       string
	Specialty  Specialty
	XPBonus    float64
	UnlockCost int
	Stages     []Stage
}

// Catalog lists every companion in unlock order.
var Catalog = []PetType{
	{
		ID: "bean-0", Name: "Focus Sprout", Icon: "🌱", Specialty: SpecialtyGeneral,
		Stages: []Stage{
			{1, "Tiny Sprout", "🌱"}, {5, "Growing Sprout", "🌿"}, {10, "Young Plant", "🪴"},
			{20, "Blooming Plant", "🌸"}, {30, "Wise Tree", "🌳"},
		},
	},
	{
		ID: "bean-1", Name: "Study Buddy", Icon: "📚", Specialty: SpecialtyStudy, XPBonus: 1.1, UnlockCost: 500,
		Stages: []Stage{
			{1, "Curious Owl", "🦉"}, {5, "Book Worm", "📖"}, {10, "Scholar", "🎓"},
			{20, "Professor", "🧑‍🏫"}, {30, "Sage", "🧙"},
		},
	},
	{
		ID: "bean-2", Name: "Work Warrior", Icon: "💼", Specialty: SpecialtyWork, XPBonus: 1.15, UnlockCost: 1000,
		Stages: []Stage{
			{1, "Busy Bee", "🐝"}, {5, "Worker Ant", "🐜"}, {10, "Executive", "👔"},
			{20, "CEO", "🏆"}, {30, "Business Mogul", "💎"},
		},
	},
	{
		ID: "bean-3", Name: "Creative Muse", Icon: "🎨", Specialty: SpecialtyCreative, XPBonus: 1.2, UnlockCost: 1500,
		Stages: []Stage{
			{1, "Doodle Duck", "🦆"}, {5, "Artist Cat", "🐱"}, {10, "Painter", "🎨"},
			{20, "Master Artist", "🖼️"}, {30, "Creative Genius", "✨"},
		},
	},
	{
		ID: "bean-4", Name: "Zen Master", Icon: "🧘", Specialty: SpecialtyMindfulness, XPBonus: 1.1, UnlockCost: 2000,
		Stages: []Stage{
			{1, "Peaceful Pebble", "🪨"}, {5, "Calm Lotus", "🪷"}, {10, "Meditation Monk", "🧘"},
			{20, "Zen Master", "☯️"}, {30, "Enlightened One", "🌟"},
		},
	},
}

// Unlock grants a companion when the user reaches a level.
type Unlock struct {
	Level int
	PetID string
}

// LevelUnlocks are checked on every user level-up.
var LevelUnlocks = []Unlock{
	{Level: 3, PetID: "bean-1"},
	{Level: 8, PetID: "bean-2"},
	{Level: 15, PetID: "bean-3"},
	{Level: 25, PetID: "bean-4"},
}

// PetByID looks up a catalog entry.
func PetByID(id string) (PetType, bool) {
	i := slices.IndexFunc(Catalog, func(p PetType) bool { return p.ID == id })
	if i < 0 {
		return PetType{}, false
	}
	return Catalog[i], true
}

// StageFor returns the highest evolution stage reached at level.
func (t PetType) StageFor(level int) Stage {
	if len(t.Stages) == 0 {
		return Stage{Level: 1, Name: t.Name, Icon: t.Icon}
	}
	stage := t.Stages[0]
	for _, s := range t.Stages {
		if level >= s.Level {
			stage = s
		}
	}
	return stage
}

// SpecialtyBonus returns the companion's XP bonus when the session's goal
// category matches its specialty, or 0 when it does not apply.
func (t PetType) SpecialtyBonus(goalCategory string) float64 {
	if t.XPBonus <= 0 || goalCategory == "" {
		return 0
	}
	if !strings.EqualFold(goalCategory, string(t.Specialty)) {
		return 0
	}
	return t.XPBonus
}

// SelectPet makes an unlocked companion the active one.
func SelectPet(u User, petID string) (User, error) {
	if _, ok := PetByID(petID); !ok {
		return u, fmt.Errorf("unknown pet %q", petID)
	}
	if !u.HasPet(petID) {
		return u, fmt.Errorf("pet %q is locked", petID)
	}
	u = cloneUser(u)
	u.ActivePet = petID
	return u, nil
}

// EquipTrait adds a trait the user's level has unlocked.
func EquipTrait(u User, traitID string) (User, error) {
	t, ok := xp.Traits[traitID]
	if !ok {
		return u, fmt.Errorf("unknown trait %q", traitID)
	}
	if u.Level < t.UnlockLevel {
		return u, fmt.Errorf("trait %q unlocks at level %d", traitID, t.UnlockLevel)
	}
	if slices.Contains(u.Traits, traitID) {
		return u, nil
	}
	if len(u.Traits) >= MaxEquippedTraits {
		return u, fmt.Errorf("at most %d traits can be equipped", MaxEquippedTraits)
	}
	u = cloneUser(u)
	u.Traits = append(u.Traits, traitID)
	return u, nil
}

// UnequipTrait removes a trait if equipped.
func UnequipTrait(u User, traitID string) User {
	u = cloneUser(u)
	u.Traits = slices.DeleteFunc(u.Traits, func(id string) bool { return id == traitID })
	return u
}

// EquippedTraits filters the user's traits down to those still allowed at
// the user's level. Used by the authoritative scorer, which does not trust
// the client's equipment list blindly.
func EquippedTraits(level int, traitIDs []string) []string {
	var out []string
	for _, id := range traitIDs {
		if t, ok := xp.Traits[id]; ok && level >= t.UnlockLevel && !slices.Contains(out, id) {
			out = append(out, id)
		}
		if len(out) == MaxEquippedTraits {
			break
		}
	}
	return out
}

package xp

import (
	"math"
	"strings"
)

// TraitKind decides which sessions a trait applies to.
type TraitKind string

const (
	TraitGlobal       TraitKind = "global"
	TraitWork         TraitKind = "work"
	TraitBreak        TraitKind = "break"
	TraitCreative     TraitKind = "creative"
	TraitStudy        TraitKind = "study"
	TraitShortSession TraitKind = "short-session"
	TraitLongSession  TraitKind = "long-session"
)

const (
	shortSessionTraitMinutes = 15
	longSessionTraitMinutes  = 45
)

// Trait is an equippable companion modifier.
type Trait struct {
	ID          string
	Name        string
	Kind        TraitKind
	Multiplier  float64
	Cost        int
	UnlockLevel int
}

// Traits is the trait catalog, keyed by ID.
var Traits = map[string]Trait{
	"focus-boost":     {ID: "focus-boost", Name: "Focus Boost", Kind: TraitWork, Multiplier: 1.2, Cost: 1000, UnlockLevel: 5},
	"creative-spark":  {ID: "creative-spark", Name: "Creative Spark", Kind: TraitCreative, Multiplier: 1.3, Cost: 1500, UnlockLevel: 10},
	"study-buddy":     {ID: "study-buddy", Name: "Study Buddy", Kind: TraitStudy, Multiplier: 1.25, Cost: 1200, UnlockLevel: 7},
	"zen-master":      {ID: "zen-master", Name: "Zen Master", Kind: TraitGlobal, Multiplier: 1.15, Cost: 2000, UnlockLevel: 12},
	"speed-demon":     {ID: "speed-demon", Name: "Speed Demon", Kind: TraitShortSession, Multiplier: 1.1, Cost: 800, UnlockLevel: 4},
	"marathon-runner": {ID: "marathon-runner", Name: "Marathon Runner", Kind: TraitLongSession, Multiplier: 1.35, Cost: 1800, UnlockLevel: 15},
}

// TraitContext is the part of a session that trait conditions look at.
type TraitContext struct {
	IsBreak      bool
	GoalCategory string
	Minutes      float64
}

// Applies reports whether the trait is active for the session.
func (t Trait) Applies(c TraitContext) bool {
	switch t.Kind {
	case TraitGlobal:
		return true
	case TraitWork:
		return !c.IsBreak
	case TraitBreak:
		return c.IsBreak
	case TraitCreative, TraitStudy:
		return !c.IsBreak && strings.EqualFold(c.GoalCategory, string(t.Kind))
	case TraitShortSession:
		return !c.IsBreak && c.Minutes > 0 && c.Minutes < shortSessionTraitMinutes
	case TraitLongSession:
		return !c.IsBreak && c.Minutes >= longSessionTraitMinutes
	}
	return false
}

// PetMultiplier combines the companion's specialty bonus with every equipped
// trait that applies, capped at limit. Unknown trait IDs are ignored. A
// specialty bonus of zero is treated as none.
func PetMultiplier(specialtyBonus float64, traitIDs []string, c TraitContext, limit float64) float64 {
	m := 1.0
	if specialtyBonus > 0 {
		m *= specialtyBonus
	}
	for _, id := range traitIDs {
		t, ok := Traits[id]
		if !ok || !t.Applies(c) {
			continue
		}
		m *= t.Multiplier
	}
	if limit > 0 {
		m = math.Min(m, limit)
	}
	return m
}

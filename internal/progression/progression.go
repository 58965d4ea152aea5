// Package progression holds the user and companion ledgers and the level
// curves that normalize them. Functions here are pure and return new
// values; persistence is the caller's job.
package progression

import (
	"math"
	"slices"
)

// PenaltyType names why XP was taken away.
type PenaltyType string

const (
	PenaltyManualStop PenaltyType = "manual_stop"
	PenaltyLeave      PenaltyType = "leave"
	PenaltyTabSwitch  PenaltyType = "tab_switch"
)

// Penalty is a fixed XP deduction.
type Penalty struct {
	Type   PenaltyType `json:"type"`
	Amount int         `json:"amount"`
}

// User is the cumulative progression of one user. XP is the remainder
// inside the current level, so XP < ExpToNext(Level) after normalization.
type User struct {
	ID            string   `json:"id"`
	XP            int      `json:"xp"`
	Level         int      `json:"level"`
	TotalSessions int      `json:"totalSessions"`
	CurrentStreak int      `json:"currentStreak"`
	LifetimeXP    int      `json:"lifetimeXp"`
	ActivePet     string   `json:"activePet"`
	UnlockedPets  []string `json:"unlockedPets"`
	Traits        []string `json:"traits"`
}

// Pet is the progression of one companion owned by a user.
type Pet struct {
	ID            string `json:"id"`
	XP            int    `json:"xp"`
	Level         int    `json:"level"`
	TotalSessions int    `json:"totalSessions"`
}

// NewUser returns a fresh level-1 user owning the starter companion.
func NewUser(id string) User {
	return User{
		ID:           id,
		Level:        1,
		ActivePet:    StarterPetID,
		UnlockedPets: []string{StarterPetID},
	}
}

// NewPet returns a fresh level-1 companion.
func NewPet(id string) Pet {
	return Pet{ID: id, Level: 1}
}

// HasPet reports whether the user has unlocked the companion.
func (u User) HasPet(id string) bool {
	return slices.Contains(u.UnlockedPets, id)
}

// ExpToNext is the user XP needed to leave level: round(100 * 1.25^level).
func ExpToNext(level int) int {
	return int(math.Round(100 * math.Pow(1.25, float64(level))))
}

// PetExpToNext is the companion XP needed to leave level: round(50 * 1.2^level).
func PetExpToNext(level int) int {
	return int(math.Round(50 * math.Pow(1.2, float64(level))))
}

// RecomputeLevel derives level and in-level remainder from a total XP
// amount, starting at level 1.
func RecomputeLevel(totalXP int) (level, xp int) {
	return normalize(max(0, totalXP), 1, ExpToNext)
}

// normalize repeatedly spends the current level's threshold until xp no
// longer reaches it. Multi-level jumps happen in one call.
func normalize(xp, level int, curve func(int) int) (int, int) {
	if level < 1 {
		level = 1
	}
	for xp >= curve(level) {
		xp -= curve(level)
		level++
	}
	return level, xp
}

// SessionResult is what the ledger needs to know about a scored session.
type SessionResult struct {
	IsBreak   bool
	Completed bool
	Minutes   float64
	AwardedXP int
	PetXP     int

	// MinEffectiveMinutes is the streak threshold; shorter completed
	// sessions neither extend nor break the streak.
	MinEffectiveMinutes float64
}

// Outcome is the ledger state after an award.
type Outcome struct {
	User       User
	Pet        Pet
	LevelUp    bool
	PetLevelUp bool
	Unlocked   []string
}

// ApplyAward credits a processed session to the user and companion.
// Levels only ever go up.
func ApplyAward(u User, pet Pet, r SessionResult) Outcome {
	u = cloneUser(u)
	oldLevel, oldPetLevel := max(1, u.Level), max(1, pet.Level)

	u.TotalSessions++
	u.LifetimeXP += max(0, r.AwardedXP)
	u.Level, u.XP = normalize(u.XP+max(0, r.AwardedXP), oldLevel, ExpToNext)

	switch {
	case !r.Completed:
		u.CurrentStreak = 0
	case !r.IsBreak && r.Minutes >= r.MinEffectiveMinutes:
		u.CurrentStreak++
	}

	if !r.IsBreak {
		pet.TotalSessions++
	}
	pet.Level, pet.XP = normalize(pet.XP+max(0, r.PetXP), oldPetLevel, PetExpToNext)

	out := Outcome{
		User:       u,
		Pet:        pet,
		LevelUp:    u.Level > oldLevel,
		PetLevelUp: pet.Level > oldPetLevel,
	}
	if out.LevelUp {
		for _, unlock := range LevelUnlocks {
			if unlock.Level > oldLevel && unlock.Level <= u.Level && !u.HasPet(unlock.PetID) {
				out.User.UnlockedPets = append(out.User.UnlockedPets, unlock.PetID)
				out.Unlocked = append(out.Unlocked, unlock.PetID)
			}
		}
	}
	return out
}

// ApplyPenalty deducts the penalty, flooring XP at zero, and resets the
// streak. Level is untouched.
func ApplyPenalty(u User, p Penalty) User {
	u = cloneUser(u)
	u.XP = max(0, u.XP-max(0, p.Amount))
	u.CurrentStreak = 0
	return u
}

// RevokeAward takes back what ApplyAward credited for a session the scorer
// refused. XP is removed within the current level and floored at zero, so
// levels and unlocks stay. A revoked work session resets the streak.
func RevokeAward(u User, pet Pet, r SessionResult) (User, Pet) {
	u = cloneUser(u)
	u.TotalSessions = max(0, u.TotalSessions-1)
	u.LifetimeXP = max(0, u.LifetimeXP-max(0, r.AwardedXP))
	u.XP = max(0, u.XP-max(0, r.AwardedXP))
	if !r.IsBreak {
		u.CurrentStreak = 0
		pet.TotalSessions = max(0, pet.TotalSessions-1)
	}
	pet.XP = max(0, pet.XP-max(0, r.PetXP))
	return u, pet
}

func cloneUser(u User) User {
	u.UnlockedPets = slices.Clone(u.UnlockedPets)
	u.Traits = slices.Clone(u.Traits)
	return u
}

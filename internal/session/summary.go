package session

import (
	"github.com/dersual/Focus-Friendship-MVP/internal/progression"
	"github.com/dersual/Focus-Friendship-MVP/internal/xp"
)

// Settlement is the result of handing a terminal record to the ledger.
type Settlement struct {
	Record     Record
	Award      xp.Award
	Penalty    *progression.Penalty
	User       progression.User
	Pet        progression.Pet
	LevelUp    bool
	PetLevelUp bool
	Unlocked   []string

	// Duplicate is set when the record had already been processed and
	// nothing changed.
	Duplicate bool
}

// Summary holds the data displayed after a session ends.
type Summary struct {
	Completed  bool
	IsBreak    bool
	Minutes    float64
	AwardedXP  int
	PetXP      int
	PenaltyXP  int
	Source     AwardSource
	LevelUp    bool
	PetLevelUp bool
	Level      int
	PetLevel   int
	Unlocked   []string
	Breakdown  xp.Breakdown
}

// BuildSummary flattens a settlement for display.
func BuildSummary(s Settlement) Summary {
	return Summary{
		Completed:  s.Record.Completed,
		IsBreak:    s.Record.IsBreak,
		Minutes:    s.Record.ActualMinutes,
		AwardedXP:  s.Record.AwardedXP,
		PetXP:      s.Record.PetXP,
		PenaltyXP:  s.Record.PenaltyXP,
		Source:     s.Record.AwardSource,
		LevelUp:    s.LevelUp,
		PetLevelUp: s.PetLevelUp,
		Level:      s.User.Level,
		PetLevel:   s.Pet.Level,
		Unlocked:   s.Unlocked,
		Breakdown:  s.Award.Breakdown,
	}
}

package xp

import (
	"math"
	"testing"
)

func TestComputeAward_ZeroForBreaksAndNonPositive(t *testing.T) {
	p := DefaultPolicy()
	tests := []struct {
		name string
		in   Input
	}{
		{"break", Input{Minutes: 25, IsBreak: true, TaskCompleted: true, CurrentStreak: 10}},
		{"zero minutes", Input{Minutes: 0}},
		{"negative minutes", Input{Minutes: -5, TaskCompleted: true}},
		{"NaN minutes", Input{Minutes: math.NaN()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := ComputeAward(p, tt.in)
			if a.XP != 0 || a.PetXP != 0 {
				t.Errorf("award = (%d, %d), want (0, 0)", a.XP, a.PetXP)
			}
		})
	}
}

func TestComputeAward_PlainTwentyFive(t *testing.T) {
	a := ComputeAward(DefaultPolicy(), Input{Minutes: 25})
	if a.XP != 250 {
		t.Errorf("XP = %d, want 250", a.XP)
	}
	if a.PetXP != 125 {
		t.Errorf("PetXP = %d, want 125", a.PetXP)
	}
	if a.Breakdown.BaseXP != 250 {
		t.Errorf("BaseXP = %d, want 250", a.Breakdown.BaseXP)
	}
	if a.Breakdown.DiminishFactor != 1 {
		t.Errorf("DiminishFactor = %v, want 1", a.Breakdown.DiminishFactor)
	}
}

func TestComputeAward_ShortSessionDiminishes(t *testing.T) {
	a := ComputeAward(DefaultPolicy(), Input{Minutes: 2})
	if a.Breakdown.BaseXP != 20 {
		t.Errorf("BaseXP = %d, want 20", a.Breakdown.BaseXP)
	}
	if math.Abs(a.Breakdown.DiminishFactor-0.4) > 1e-9 {
		t.Errorf("DiminishFactor = %v, want 0.4", a.Breakdown.DiminishFactor)
	}
	if a.XP != 8 {
		t.Errorf("XP = %d, want 8", a.XP)
	}
}

func TestComputeAward_Multipliers(t *testing.T) {
	p := DefaultPolicy()
	tests := []struct {
		name string
		in   Input
		want int
	}{
		{"task completed doubles", Input{Minutes: 25, TaskCompleted: true}, 500},
		{"streak 5 adds a quarter", Input{Minutes: 25, CurrentStreak: 5}, 313},
		{"streak 10 reaches the cap", Input{Minutes: 25, CurrentStreak: 10}, 375},
		{"streak capped at +50%", Input{Minutes: 25, CurrentStreak: 100}, 375},
		{"one short session is free", Input{Minutes: 25, RecentShortSessions: 1}, 250},
		{"three short sessions halve", Input{Minutes: 25, RecentShortSessions: 3}, 125},
		{"ideal ratio adds 20%", Input{Minutes: 25, RecentWorkMinutes: 100, RecentBreakMinutes: 25}, 300},
		{"no break minutes skips ratio", Input{Minutes: 25, RecentWorkMinutes: 100}, 250},
		{"terrible ratio adds nothing", Input{Minutes: 25, RecentWorkMinutes: 200, RecentBreakMinutes: 10}, 250},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeAward(p, tt.in).XP
			if got != tt.want {
				t.Errorf("XP = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestComputeAward_SevereCap(t *testing.T) {
	p := DefaultPolicy()
	atCap := ComputeAward(p, Input{Minutes: 25, RecentShortSessions: 6}).XP
	overCap := ComputeAward(p, Input{Minutes: 25, RecentShortSessions: 7}).XP

	// 250 / (1 + 6*0.5) * 0.2 = 12.5 -> 13
	if overCap != 13 {
		t.Errorf("over cap XP = %d, want 13", overCap)
	}
	if overCap >= atCap {
		t.Errorf("over cap XP %d should be below at-cap XP %d", overCap, atCap)
	}
}

func TestComputeAward_MonotonicInStreak(t *testing.T) {
	p := DefaultPolicy()
	prev := -1
	for streak := 0; streak <= 30; streak++ {
		got := ComputeAward(p, Input{Minutes: 30, CurrentStreak: streak}).XP
		if got < prev {
			t.Fatalf("streak %d: XP %d < previous %d", streak, got, prev)
		}
		prev = got
	}
}

func TestComputeAward_NonIncreasingInShortSessions(t *testing.T) {
	p := DefaultPolicy()
	for _, minutes := range []float64{1, 3, 25, 60} {
		prev := math.MaxInt
		for s := 0; s <= 12; s++ {
			got := ComputeAward(p, Input{Minutes: minutes, RecentShortSessions: s}).XP
			if got > prev {
				t.Fatalf("minutes %v, short %d: XP %d > previous %d", minutes, s, got, prev)
			}
			if got < 0 {
				t.Fatalf("minutes %v, short %d: negative XP %d", minutes, s, got)
			}
			prev = got
		}
	}
}

func TestComputeAward_PetMultiplierCapped(t *testing.T) {
	p := DefaultPolicy()
	a := ComputeAward(p, Input{Minutes: 25, PetMultiplier: 4})
	if a.Breakdown.PetMultiplier != 2.5 {
		t.Errorf("PetMultiplier = %v, want 2.5", a.Breakdown.PetMultiplier)
	}
	// floor(250*0.5) * 2.5
	if a.PetXP != 312 {
		t.Errorf("PetXP = %d, want 312", a.PetXP)
	}
	if a.XP != 250 {
		t.Errorf("XP = %d, want 250 (pet multiplier must not touch user XP)", a.XP)
	}
}

func TestEffectiveMinutes(t *testing.T) {
	p := DefaultPolicy()
	tests := []struct {
		minutes float64
		want    float64
	}{
		{0, 0},
		{2, 0.8},
		{5, 5},
		{25, 25},
	}
	for _, tt := range tests {
		got := EffectiveMinutes(p, tt.minutes)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("EffectiveMinutes(%v) = %v, want %v", tt.minutes, got, tt.want)
		}
	}
}

func TestDisabledBonuses(t *testing.T) {
	p := DefaultPolicy()
	p.StreakBonusEnabled = false
	p.WorkBreakRatioEnabled = false

	got := ComputeAward(p, Input{Minutes: 25, CurrentStreak: 20, RecentWorkMinutes: 100, RecentBreakMinutes: 25}).XP
	if got != 250 {
		t.Errorf("XP = %d, want 250", got)
	}
}

// Package xp implements the award policy: how many experience points a
// finished session earns given its duration and the user's recent history.
// Everything here is pure; callers load history and apply results.
package xp

import "math"

const (
	// shortSessionStep is the penalty slope per extra short session.
	shortSessionStep = 0.5
	// severeShortSessionFactor applies once the per-window cap is exceeded.
	severeShortSessionFactor = 0.2
)

// Input describes one finished session and the context it was scored in.
type Input struct {
	Minutes             float64
	IsBreak             bool
	TaskCompleted       bool
	CurrentStreak       int
	RecentShortSessions int
	RecentWorkMinutes   float64
	RecentBreakMinutes  float64

	// PetMultiplier is the combined specialty and trait multiplier for the
	// companion share. Zero means no multiplier.
	PetMultiplier float64
}

// Breakdown records every factor that went into an award so the result
// can be explained to the user.
type Breakdown struct {
	BaseXP           int     `json:"baseXP"`
	EffectiveMinutes float64 `json:"effectiveMinutes"`
	DiminishFactor   float64 `json:"diminishFactor"`
	ShortPenalty     float64 `json:"shortPenalty"`
	TaskMultiplier   float64 `json:"taskMultiplier"`
	StreakBonus      float64 `json:"streakBonus"`
	RatioBonus       float64 `json:"ratioBonus"`
	PetMultiplier    float64 `json:"petMultiplier"`
}

// Award is the output of ComputeAward.
type Award struct {
	XP        int       `json:"awardedXP"`
	PetXP     int       `json:"petXP"`
	Breakdown Breakdown `json:"breakdown"`
}

func neutralBreakdown() Breakdown {
	return Breakdown{
		DiminishFactor: 1,
		ShortPenalty:   1,
		TaskMultiplier: 1,
		StreakBonus:    1,
		RatioBonus:     1,
		PetMultiplier:  1,
	}
}

// ComputeAward scores a session. Breaks and non-positive durations earn
// nothing. The result is never negative.
func ComputeAward(p Policy, in Input) Award {
	b := neutralBreakdown()
	if in.IsBreak || in.Minutes <= 0 || math.IsNaN(in.Minutes) {
		return Award{Breakdown: b}
	}

	b.BaseXP = int(math.Round(in.Minutes * p.BaseXPPerMinute))
	b.EffectiveMinutes = EffectiveMinutes(p, in.Minutes)
	b.DiminishFactor = b.EffectiveMinutes / in.Minutes
	b.ShortPenalty = ShortSessionPenalty(p, in.RecentShortSessions)
	if in.TaskCompleted {
		b.TaskMultiplier = p.TaskCompletionMultiplier
	}
	b.StreakBonus = StreakBonus(p, in.CurrentStreak)
	b.RatioBonus = WorkBreakRatioBonus(p, in.RecentWorkMinutes, in.RecentBreakMinutes)

	total := float64(b.BaseXP) * b.DiminishFactor * b.ShortPenalty *
		b.TaskMultiplier * b.StreakBonus * b.RatioBonus
	awarded := max(0, int(math.Round(total)))

	if in.PetMultiplier > 0 {
		b.PetMultiplier = math.Min(in.PetMultiplier, p.MaxPetMultiplier)
	}
	petBase := math.Floor(float64(awarded) * p.PetXPRatio)
	pet := int(math.Floor(petBase * b.PetMultiplier))

	return Award{XP: awarded, PetXP: max(0, pet), Breakdown: b}
}

// EffectiveMinutes applies the diminishing curve below the threshold:
// m * m/(m+k). At or above the threshold it returns m unchanged.
func EffectiveMinutes(p Policy, minutes float64) float64 {
	if minutes <= 0 {
		return 0
	}
	if minutes < p.MinEffectiveMinutes {
		return minutes * (minutes / (minutes + p.ShortSessionDiminishK))
	}
	return minutes
}

// ShortSessionPenalty returns 1/(1+max(0,S-1)*0.5), further scaled by 0.2
// when S exceeds the per-window cap.
func ShortSessionPenalty(p Policy, recentShort int) float64 {
	penalty := 1 / (1 + float64(max(0, recentShort-1))*shortSessionStep)
	if recentShort > p.ShortSessionCapPerWindow {
		penalty *= severeShortSessionFactor
	}
	return penalty
}

// StreakBonus returns 1 + clamp(streak/divisor, 0, maxStreakBonus).
func StreakBonus(p Policy, streak int) float64 {
	if !p.StreakBonusEnabled || p.StreakDivisor <= 0 {
		return 1
	}
	bonus := float64(streak) / p.StreakDivisor
	return 1 + math.Max(0, math.Min(bonus, p.MaxStreakBonus))
}

// WorkBreakRatioBonus rewards a work:break cadence close to the ideal.
// Without any recent break minutes the factor is neutral.
func WorkBreakRatioBonus(p Policy, workMinutes, breakMinutes float64) float64 {
	if !p.WorkBreakRatioEnabled || breakMinutes <= 0 || p.IdealWorkBreakRatio <= 0 {
		return 1
	}
	actual := workMinutes / breakMinutes
	score := math.Max(0, 1-math.Abs(actual-p.IdealWorkBreakRatio)/p.IdealWorkBreakRatio)
	return 1 + score*p.MaxRatioBonus
}

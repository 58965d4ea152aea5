package session

import "time"

// Progress is a point-in-time view of the running timer, derived from
// timestamps on every call.
type Progress struct {
	Phase     Phase
	SessionID string
	IsBreak   bool
	Duration  time.Duration
	Elapsed   time.Duration
	Remaining time.Duration
	Hidden    bool
	HiddenFor time.Duration
}

// Fraction returns elapsed/duration clamped to [0, 1].
func (p Progress) Fraction() float64 {
	if p.Duration <= 0 {
		return 0
	}
	f := float64(p.Elapsed) / float64(p.Duration)
	return min(1, max(0, f))
}

// Running reports whether a session is active or paused.
func (p Progress) Running() bool {
	return p.Phase == PhaseActive || p.Phase == PhasePaused
}

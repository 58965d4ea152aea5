package xp

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrTimingValidation is the sentinel for a reported duration the scorer
// does not believe.
var ErrTimingValidation = errors.New("session timing validation failed")

// timingFloor is the absolute slack granted on top of the relative
// tolerance, so very short sessions are not rejected for seconds of
// network latency.
const timingFloor = time.Minute

// TimingError describes a rejected duration claim.
type TimingError struct {
	Reported  time.Duration
	Measured  time.Duration
	Tolerance float64
}

func (e *TimingError) Error() string {
	return fmt.Sprintf("%v: reported %s vs measured %s (tolerance %.0f%%)",
		ErrTimingValidation, e.Reported.Round(time.Second), e.Measured.Round(time.Second), e.Tolerance*100)
}

func (e *TimingError) Unwrap() error { return ErrTimingValidation }

// ValidateTiming checks a client's claim against the scorer's own clock.
// start is the scorer-side start (or the best start it has), end the
// claimed end, now the scorer's current time. reported is active time and
// paused the time spent paused; together they must match end-start within
// tolerance. An end in the future beyond the floor is always rejected.
func ValidateTiming(start, end, now time.Time, reported, paused time.Duration, tolerance float64) error {
	measured := end.Sub(start)
	if end.After(now.Add(timingFloor)) || measured < 0 || reported < 0 || paused < 0 {
		return &TimingError{Reported: reported, Measured: measured, Tolerance: tolerance}
	}

	claimed := reported + paused
	slack := time.Duration(float64(measured) * tolerance)
	if slack < timingFloor {
		slack = timingFloor
	}
	if time.Duration(math.Abs(float64(claimed-measured))) > slack {
		return &TimingError{Reported: reported, Measured: measured, Tolerance: tolerance}
	}
	return nil
}

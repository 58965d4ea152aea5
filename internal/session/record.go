package session

import (
	"time"

	"github.com/dersual/Focus-Friendship-MVP/internal/xp"
)

// AwardSource tells where a record's award fields came from.
type AwardSource string

const (
	// AwardPending means the record has not been scored yet.
	AwardPending AwardSource = ""
	// AwardProvisional is a local estimate waiting for the scorer of record.
	AwardProvisional AwardSource = "provisional"
	// AwardAuthoritative was returned by the scorer of record.
	AwardAuthoritative AwardSource = "authoritative"
	// AwardLocal is a provisional estimate that became final because the
	// scorer of record failed or is not configured.
	AwardLocal AwardSource = "local"
	// AwardRejected means the scorer of record refused the session.
	AwardRejected AwardSource = "rejected"
)

// Final reports whether the award fields may no longer change.
func (s AwardSource) Final() bool {
	return s == AwardAuthoritative || s == AwardLocal || s == AwardRejected
}

// Record is one timed interval, work or break.
type Record struct {
	ID     string
	UserID string

	StartAt time.Time
	// EndAt is zero while the session is running.
	EndAt time.Time

	DurationMinutes int
	ActualMinutes   float64
	PausedFor       time.Duration

	IsBreak      bool
	GoalID       string
	GoalCategory string

	Completed      bool
	Interrupted    bool
	TasksCompleted bool

	AwardedXP   int
	PetXP       int
	Processed   bool
	AwardSource AwardSource
	Breakdown   xp.Breakdown

	PenaltyType string
	PenaltyXP   int

	// ServerSessionID and ServerStartAt are set when the scorer of record
	// accepted the start registration.
	ServerSessionID string
	ServerStartAt   time.Time
}

// Terminal reports whether the record has ended.
func (r Record) Terminal() bool {
	return !r.EndAt.IsZero()
}

// Duration is the intended length.
func (r Record) Duration() time.Duration {
	return time.Duration(r.DurationMinutes) * time.Minute
}

// Active is the actual focused time as a duration.
func (r Record) Active() time.Duration {
	return time.Duration(r.ActualMinutes * float64(time.Minute))
}

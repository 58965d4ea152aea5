package ledger

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dersual/Focus-Friendship-MVP/internal/progression"
	"github.com/dersual/Focus-Friendship-MVP/internal/session"
)

// Payload is the queued description of a terminal session: everything the
// scorer of record needs to recompute the award from its own history. It is
// stored as canonical JSON next to its digest.
type Payload struct {
	SessionID       string               `json:"sessionId"`
	ServerSessionID string               `json:"serverSessionId,omitempty"`
	UserID          string               `json:"userId"`
	StartAt         int64                `json:"startAt"`
	EndAt           int64                `json:"endAt"`
	DurationMinutes int                  `json:"durationMinutes"`
	ActualMinutes   float64              `json:"actualMinutes"`
	PausedMinutes   float64              `json:"pausedMinutes"`
	IsBreak         bool                 `json:"isBreak"`
	Completed       bool                 `json:"completed"`
	TaskCompleted   bool                 `json:"taskCompleted"`
	GoalID          string               `json:"goalId,omitempty"`
	GoalCategory    string               `json:"goalCategory,omitempty"`
	Penalty         *progression.Penalty `json:"penalty,omitempty"`
	ActivePet       string               `json:"activePet"`
	Traits          []string             `json:"traits,omitempty"`
	ProvisionalXP   int                  `json:"provisionalXP"`
}

// NewPayload describes rec for the sync queue.
func NewPayload(rec session.Record, penalty *progression.Penalty, u progression.User) Payload {
	return Payload{
		SessionID:       rec.ID,
		ServerSessionID: rec.ServerSessionID,
		UserID:          rec.UserID,
		StartAt:         rec.StartAt.UnixMilli(),
		EndAt:           rec.EndAt.UnixMilli(),
		DurationMinutes: rec.DurationMinutes,
		ActualMinutes:   rec.ActualMinutes,
		PausedMinutes:   rec.PausedFor.Minutes(),
		IsBreak:         rec.IsBreak,
		Completed:       rec.Completed,
		TaskCompleted:   rec.TasksCompleted,
		GoalID:          rec.GoalID,
		GoalCategory:    rec.GoalCategory,
		Penalty:         penalty,
		ActivePet:       u.ActivePet,
		Traits:          u.Traits,
		ProvisionalXP:   rec.AwardedXP,
	}
}

// DecodePayload parses a queued payload.
func DecodePayload(raw []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payload{}, fmt.Errorf("decode sync payload: %w", err)
	}
	return p, nil
}

// Record rebuilds the terminal session the payload describes.
func (p Payload) Record() session.Record {
	return session.Record{
		ID:              p.SessionID,
		UserID:          p.UserID,
		StartAt:         time.UnixMilli(p.StartAt),
		EndAt:           time.UnixMilli(p.EndAt),
		DurationMinutes: p.DurationMinutes,
		ActualMinutes:   p.ActualMinutes,
		PausedFor:       time.Duration(p.PausedMinutes * float64(time.Minute)),
		IsBreak:         p.IsBreak,
		GoalID:          p.GoalID,
		GoalCategory:    p.GoalCategory,
		Completed:       p.Completed,
		Interrupted:     !p.Completed,
		TasksCompleted:  p.TaskCompleted,
		ServerSessionID: p.ServerSessionID,
	}
}

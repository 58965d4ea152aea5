package session

import (
	sess "github.com/dersual/Focus-Friendship-MVP/internal/session"
)

// startedMsg is sent when the controller registered the new session.
type startedMsg struct {
	Record sess.Record
	Err    error
}

// timerTickMsg is sent every tick interval to re-derive the countdown.
type timerTickMsg struct{}

// settledMsg carries the result of a controller call that may have ended
// the session: a tick, a visibility change or a stop.
type settledMsg struct {
	Settlement *sess.Settlement
	Err        error
}

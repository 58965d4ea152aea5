package session

import (
	"errors"
	"fmt"
)

// Phase is the lifecycle state of the controller.
type Phase int

const (
	PhaseIdle        Phase = iota // No session
	PhaseStarting                 // Registering a new record
	PhaseActive                   // Accruing elapsed time
	PhasePaused                   // Elapsed time frozen
	PhaseCompleted                // Full duration elapsed
	PhaseInterrupted              // Ended early
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseStarting:
		return "starting"
	case PhaseActive:
		return "active"
	case PhasePaused:
		return "paused"
	case PhaseCompleted:
		return "completed"
	case PhaseInterrupted:
		return "interrupted"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Terminal reports whether the phase ends a session.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseInterrupted
}

// ErrInvalidTransition matches every rejected state change.
var ErrInvalidTransition = errors.New("invalid session transition")

var (
	ErrAlreadyActive   = errors.New("a session is already active")
	ErrNotPaused       = errors.New("session is not paused")
	ErrNotActive       = errors.New("no active session")
	ErrNotFinished     = errors.New("session time has not elapsed")
	ErrInvalidDuration = errors.New("session duration out of range")
)

// TransitionError reports an operation that the current phase does not allow.
// It matches both its specific cause and ErrInvalidTransition.
type TransitionError struct {
	Op   string
	From Phase
	Err  error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s while %s: %v", e.Op, e.From, e.Err)
}

func (e *TransitionError) Unwrap() error { return e.Err }

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

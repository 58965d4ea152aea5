package reconcile

import (
	"errors"
	"fmt"

	"github.com/dersual/Focus-Friendship-MVP/internal/remote"
	"github.com/dersual/Focus-Friendship-MVP/internal/xp"
)

// SyncError reports a queued session the scorer could not take. The entry
// stays at the head of the queue.
type SyncError struct {
	SessionID string
	Attempt   int
	Err       error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync session %s (attempt %d): %v", e.SessionID, e.Attempt, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

type permanentError struct {
	err error
}

func (e permanentError) Error() string { return e.err.Error() }

func (e permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}

// classify marks scorer refusals as permanent. A session that failed
// timing validation is never resent with different numbers.
func classify(err error) error {
	if errors.Is(err, xp.ErrTimingValidation) || errors.Is(err, remote.ErrRejected) {
		return Permanent(err)
	}
	return err
}

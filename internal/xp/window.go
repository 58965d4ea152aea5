package xp

import (
	"sort"
	"time"
)

// Entry is one past session as seen by the anti-farming window.
type Entry struct {
	SessionID string
	StartAt   time.Time
	Minutes   float64
	IsBreak   bool
}

// WindowStats summarizes the entries that fall inside the lookback window.
type WindowStats struct {
	ShortSessions int
	WorkMinutes   float64
	BreakMinutes  float64
}

// Window is a bounded, time-ordered history of recent sessions.
type Window struct {
	limit   int
	entries []Entry
}

// NewWindow returns a window holding at most limit entries. Entries are
// sorted by start time and trimmed to the limit.
func NewWindow(limit int, entries ...Entry) *Window {
	w := &Window{limit: limit}
	for _, e := range entries {
		w.insert(e)
	}
	w.prune()
	return w
}

// Add records a finished session, dropping the oldest entries beyond the limit.
func (w *Window) Add(e Entry) {
	w.insert(e)
	w.prune()
}

// Entries returns the retained entries, oldest first.
func (w *Window) Entries() []Entry {
	out := make([]Entry, len(w.entries))
	copy(out, w.entries)
	return out
}

// Len returns the number of retained entries.
func (w *Window) Len() int { return len(w.entries) }

// Stats counts short work sessions and sums work and break minutes for
// sessions that started within the policy's lookback window before now.
func (w *Window) Stats(now time.Time, p Policy) WindowStats {
	cutoff := now.Add(-time.Duration(p.ShortSessionWindowMinutes) * time.Minute)

	var st WindowStats
	for _, e := range w.entries {
		if e.StartAt.Before(cutoff) || e.StartAt.After(now) {
			continue
		}
		if e.IsBreak {
			st.BreakMinutes += e.Minutes
			continue
		}
		st.WorkMinutes += e.Minutes
		if e.Minutes < p.MinEffectiveMinutes {
			st.ShortSessions++
		}
	}
	return st
}

func (w *Window) insert(e Entry) {
	i := sort.Search(len(w.entries), func(i int) bool {
		return w.entries[i].StartAt.After(e.StartAt)
	})
	w.entries = append(w.entries, Entry{})
	copy(w.entries[i+1:], w.entries[i:])
	w.entries[i] = e
}

func (w *Window) prune() {
	if w.limit > 0 && len(w.entries) > w.limit {
		w.entries = append([]Entry(nil), w.entries[len(w.entries)-w.limit:]...)
	}
}

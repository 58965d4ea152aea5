package xp

import (
	"testing"
	"time"
)

func TestWindowStats(t *testing.T) {
	p := DefaultPolicy()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	w := NewWindow(50,
		Entry{SessionID: "old", StartAt: now.Add(-2 * time.Hour), Minutes: 2},
		Entry{SessionID: "a", StartAt: now.Add(-50 * time.Minute), Minutes: 2},
		Entry{SessionID: "b", StartAt: now.Add(-40 * time.Minute), Minutes: 25},
		Entry{SessionID: "c", StartAt: now.Add(-15 * time.Minute), Minutes: 5, IsBreak: true},
		Entry{SessionID: "d", StartAt: now.Add(-10 * time.Minute), Minutes: 4},
		Entry{SessionID: "brk", StartAt: now.Add(-5 * time.Minute), Minutes: 1, IsBreak: true},
	)

	st := w.Stats(now, p)
	if st.ShortSessions != 2 {
		t.Errorf("ShortSessions = %d, want 2", st.ShortSessions)
	}
	if st.WorkMinutes != 31 {
		t.Errorf("WorkMinutes = %v, want 31", st.WorkMinutes)
	}
	if st.BreakMinutes != 6 {
		t.Errorf("BreakMinutes = %v, want 6", st.BreakMinutes)
	}
}

func TestWindowPrunesOldest(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	w := NewWindow(3)
	for i := 0; i < 5; i++ {
		w.Add(Entry{SessionID: string(rune('a' + i)), StartAt: base.Add(time.Duration(i) * time.Minute), Minutes: 1})
	}

	if w.Len() != 3 {
		t.Fatalf("Len = %d, want 3", w.Len())
	}
	got := w.Entries()
	if got[0].SessionID != "c" || got[2].SessionID != "e" {
		t.Errorf("entries = %v..%v, want c..e", got[0].SessionID, got[2].SessionID)
	}
}

func TestWindowKeepsOrderOnOutOfOrderAdd(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	w := NewWindow(10)
	w.Add(Entry{SessionID: "late", StartAt: base.Add(time.Hour)})
	w.Add(Entry{SessionID: "early", StartAt: base})

	got := w.Entries()
	if got[0].SessionID != "early" {
		t.Errorf("first entry = %q, want early", got[0].SessionID)
	}
}

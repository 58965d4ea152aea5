package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dersual/Focus-Friendship-MVP/internal/goals"
	"github.com/dersual/Focus-Friendship-MVP/internal/progression"
	"github.com/dersual/Focus-Friendship-MVP/internal/session"
	"github.com/dersual/Focus-Friendship-MVP/internal/xp"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err, "open test store")
	t.Cleanup(func() { s.Close() })
	return s
}

func testRecord(id string, start time.Time) session.Record {
	return session.Record{
		ID:              id,
		UserID:          "u1",
		StartAt:         start,
		DurationMinutes: 25,
	}
}

func TestPragmasApplied(t *testing.T) {
	s := openTestStore(t)
	db := s.DB()

	tests := []struct {
		pragma string
		want   string
	}{
		// WAL mode falls back to "memory" for in-memory databases,
		// so we skip journal_mode here.
		{"foreign_keys", "1"},
		{"synchronous", "1"}, // NORMAL = 1
	}

	for _, tt := range tests {
		var got string
		err := db.QueryRow("PRAGMA " + tt.pragma).Scan(&got)
		if err != nil {
			t.Errorf("PRAGMA %s: %v", tt.pragma, err)
			continue
		}
		if got != tt.want {
			t.Errorf("PRAGMA %s = %q, want %q", tt.pragma, got, tt.want)
		}
	}
}

func TestAutoMigrationCreatesTables(t *testing.T) {
	s := openTestStore(t)
	for _, table := range Tables {
		var name string
		err := s.DB().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table.Name,
		).Scan(&name)
		require.NoError(t, err, "table %s", table.Name)
		assert.Equal(t, table.Name, name)
	}
}

func TestSequenceCounter(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sc, err := newSequenceCounter(s.DB())
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		seq, err := sc.Next(ctx, s.DB())
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), seq, "seq[%d]", i)
	}
}

func TestSessionRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	start := time.UnixMilli(1_700_000_000_000)

	rec := testRecord("s1", start)
	rec.GoalID = "g1"
	rec.GoalCategory = "study"
	require.NoError(t, s.CreateSession(ctx, rec))

	got, err := s.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
	assert.True(t, got.StartAt.Equal(start))
	assert.True(t, got.EndAt.IsZero())
	assert.False(t, got.Processed)
	assert.Equal(t, "study", got.GoalCategory)

	updated, err := s.UpdateSession(ctx, "s1", func(r *session.Record) {
		r.EndAt = start.Add(25 * time.Minute)
		r.ActualMinutes = 25
		r.PausedFor = 90 * time.Second
		r.Completed = true
		r.AwardedXP = 250
		r.AwardSource = session.AwardProvisional
		r.Breakdown = xp.Breakdown{BaseXP: 250, DiminishFactor: 1}
	})
	require.NoError(t, err)
	assert.Equal(t, 250, updated.AwardedXP)

	got, err = s.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, got.Completed)
	assert.Equal(t, 90*time.Second, got.PausedFor)
	assert.Equal(t, session.AwardProvisional, got.AwardSource)
	assert.Equal(t, 250, got.Breakdown.BaseXP)
	assert.InDelta(t, 25.0, got.ActualMinutes, 1e-9)
}

func TestGetSessionNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetSession(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestProcessOnce(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateSession(ctx, testRecord("s1", time.Now())))

	first, err := s.ProcessOnce(ctx, "s1")
	require.NoError(t, err)
	second, err := s.ProcessOnce(ctx, "s1")
	require.NoError(t, err)

	assert.True(t, first)
	assert.False(t, second)
}

func TestRecentSessionsWindow(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.UnixMilli(1_700_000_000_000)

	for i, offset := range []time.Duration{-3 * time.Hour, -50 * time.Minute, -10 * time.Minute} {
		rec := testRecord(uuid.NewString(), now.Add(offset))
		rec.DurationMinutes = i + 1
		rec.Processed = true
		require.NoError(t, s.CreateSession(ctx, rec))
	}
	// Unprocessed records are not part of the window.
	require.NoError(t, s.CreateSession(ctx, testRecord("open", now.Add(-5*time.Minute))))

	recs, err := s.RecentSessions(ctx, "u1", now.Add(-time.Hour), 0)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, 2, recs[0].DurationMinutes, "oldest first")
	assert.Equal(t, 3, recs[1].DurationMinutes)
}

func TestOpenSessions(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.CreateSession(ctx, testRecord("a", now)))
	closed := testRecord("b", now)
	closed.EndAt = now.Add(time.Minute)
	require.NoError(t, s.CreateSession(ctx, closed))

	open, err := s.OpenSessions(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "a", open[0].ID)
}

func TestListSessionsNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.CreateSession(ctx, testRecord(id, now)))
	}

	recs, err := s.ListSessions(ctx, QueryOpts{UserID: "u1", Limit: 2})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "c", recs[0].ID)
	assert.Equal(t, "b", recs[1].ID)
}

func TestPruneSessions(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		rec := testRecord(uuid.NewString(), time.Now())
		rec.Processed = true
		require.NoError(t, s.CreateSession(ctx, rec))
	}

	n, err := s.PruneSessions(ctx, "u1", 2)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	recs, err := s.ListSessions(ctx, QueryOpts{UserID: "u1"})
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestUserDefaultsAndUpsert(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	u, err := s.ReadUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, progression.NewUser("u1"), u)

	u.XP = 42
	u.Level = 3
	u.CurrentStreak = 2
	u.UnlockedPets = append(u.UnlockedPets, "bean-1")
	u.Traits = []string{"focus-boost"}
	require.NoError(t, s.WriteUser(ctx, u))

	u.XP = 43
	require.NoError(t, s.WriteUser(ctx, u))

	got, err := s.ReadUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, u, got)
}

func TestPetUpsert(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p, err := s.ReadPet(ctx, "u1", "bean-0")
	require.NoError(t, err)
	assert.Equal(t, progression.NewPet("bean-0"), p)

	p.XP = 30
	p.TotalSessions = 1
	require.NoError(t, s.WritePet(ctx, "u1", p))
	p.Level = 2
	require.NoError(t, s.WritePet(ctx, "u1", p))

	pets, err := s.ListPets(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, pets, 1)
	assert.Equal(t, p, pets[0])
}

func TestGoalIncrementStopsAtTarget(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.UnixMilli(1_700_000_000_000)

	require.NoError(t, s.CreateGoal(ctx, goals.Goal{ID: "g1", Title: "Read", Category: "study", Pomodoros: 2, CreatedAt: now}))

	g, inc, err := s.IncrementPomodoro(ctx, "g1", now)
	require.NoError(t, err)
	assert.True(t, inc)
	assert.Equal(t, 1, g.CompletedPomodoros)
	assert.True(t, g.CompletedAt.IsZero())

	g, inc, err = s.IncrementPomodoro(ctx, "g1", now)
	require.NoError(t, err)
	assert.True(t, inc)
	assert.True(t, g.Done())
	assert.False(t, g.CompletedAt.IsZero())

	g, inc, err = s.IncrementPomodoro(ctx, "g1", now)
	require.NoError(t, err)
	assert.False(t, inc)
	assert.Equal(t, 2, g.CompletedPomodoros)

	_, _, err = s.IncrementPomodoro(ctx, "nope", now)
	assert.True(t, errors.Is(err, goals.ErrGoalNotFound))
}

func TestQueueOrderAndSync(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	a, err := s.Enqueue(ctx, "a", []byte(`{"sessionId":"a"}`), "da", now)
	require.NoError(t, err)
	b, err := s.Enqueue(ctx, "b", []byte(`{"sessionId":"b"}`), "db", now)
	require.NoError(t, err)
	assert.Less(t, a.Sequence, b.Sequence)

	again, err := s.Enqueue(ctx, "a", []byte(`{}`), "other", now)
	require.NoError(t, err)
	assert.Equal(t, a.Sequence, again.Sequence, "re-enqueue keeps original entry")
	assert.Equal(t, "da", again.Digest)

	require.NoError(t, s.MarkFailed(ctx, a.Sequence, errors.New("unreachable")))
	pending, err := s.Pending(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "a", pending[0].SessionID)
	assert.Equal(t, 1, pending[0].Attempts)
	assert.Equal(t, "unreachable", pending[0].LastError)

	require.NoError(t, s.MarkSynced(ctx, a.Sequence, QueueStatusAccepted, now))
	require.NoError(t, s.MarkSynced(ctx, b.Sequence, QueueStatusRejected, now))

	st, err := s.QueueStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, QueueStats{Pending: 0, Synced: 2, Rejected: 1}, st)
}

func TestPruneSyncedKeepsPending(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	var seqs []int64
	for i := 0; i < 5; i++ {
		e, err := s.Enqueue(ctx, uuid.NewString(), []byte(`{}`), "d", now)
		require.NoError(t, err)
		seqs = append(seqs, e.Sequence)
	}
	for _, seq := range seqs[:4] {
		require.NoError(t, s.MarkSynced(ctx, seq, QueueStatusAccepted, now))
	}

	n, err := s.PruneSynced(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	st, err := s.QueueStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Pending)
	assert.Equal(t, 2, st.Synced)
}

func TestRegistrationIsStable(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	start := time.UnixMilli(1_700_000_000_000)

	reg, err := s.Register(ctx, Registration{ID: "srv-1", ClientSessionID: "c1", UserID: "u1", StartAt: start, DurationMinutes: 25})
	require.NoError(t, err)
	assert.Equal(t, RegistrationActive, reg.Status)

	again, err := s.Register(ctx, Registration{ID: "srv-2", ClientSessionID: "c1", UserID: "u1", StartAt: start.Add(time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, "srv-1", again.ID)
	assert.True(t, again.StartAt.Equal(start))

	require.NoError(t, s.EndRegistration(ctx, "srv-1", RegistrationEnded))
	got, err := s.RegistrationFor(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, RegistrationEnded, got.Status)

	_, err = s.RegistrationFor(ctx, "c2")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestInTxRollsBack(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := s.InTx(ctx, func(tx *Tx) error {
		require.NoError(t, tx.CreateSession(ctx, testRecord("s1", time.Now())))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.GetSession(ctx, "s1")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestResetKeepsGoals(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.CreateSession(ctx, testRecord("s1", now)))
	require.NoError(t, s.WriteUser(ctx, progression.User{ID: "u1", Level: 4, ActivePet: "bean-0"}))
	require.NoError(t, s.CreateGoal(ctx, goals.Goal{ID: "g1", Title: "Ship", Category: "work", Pomodoros: 3, CreatedAt: now}))

	require.NoError(t, s.Reset(ctx))

	recs, err := s.ListSessions(ctx, QueryOpts{})
	require.NoError(t, err)
	assert.Empty(t, recs)

	u, err := s.ReadUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, u.Level)

	gs, err := s.ListGoals(ctx)
	require.NoError(t, err)
	assert.Len(t, gs, 1)
}

package goals

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"
)

type memRepo struct {
	goals map[string]Goal
}

func newMemRepo() *memRepo { return &memRepo{goals: map[string]Goal{}} }

func (m *memRepo) CreateGoal(_ context.Context, g Goal) error {
	m.goals[g.ID] = g
	return nil
}

func (m *memRepo) GetGoal(_ context.Context, id string) (Goal, error) {
	g, ok := m.goals[id]
	if !ok {
		return Goal{}, ErrGoalNotFound
	}
	return g, nil
}

func (m *memRepo) ListGoals(context.Context) ([]Goal, error) {
	var out []Goal
	for _, g := range m.goals {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memRepo) DeleteGoal(_ context.Context, id string) error {
	if _, ok := m.goals[id]; !ok {
		return ErrGoalNotFound
	}
	delete(m.goals, id)
	return nil
}

func (m *memRepo) IncrementPomodoro(_ context.Context, id string, now time.Time) (Goal, bool, error) {
	g, ok := m.goals[id]
	if !ok {
		return Goal{}, false, ErrGoalNotFound
	}
	if g.Done() {
		return g, false, nil
	}
	g.CompletedPomodoros++
	if g.Done() {
		g.CompletedAt = now
	}
	m.goals[id] = g
	return g, true, nil
}

func TestCreateValidates(t *testing.T) {
	svc := NewService(newMemRepo())
	ctx := context.Background()

	tests := []struct {
		name      string
		title     string
		category  string
		pomodoros int
		wantErr   bool
	}{
		{"ok", "Write report", "work", 4, false},
		{"default category", "Read", "", 1, false},
		{"case folded", "Paint", "Creative", 2, false},
		{"empty title", "  ", "work", 1, true},
		{"zero pomodoros", "Plan", "work", 0, true},
		{"unknown category", "Nap", "sleep", 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := svc.Create(ctx, tt.title, tt.category, tt.pomodoros)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Create err = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && !validCategory(g.Category) {
				t.Errorf("category = %q", g.Category)
			}
		})
	}
}

func TestMarkPomodoroCompleteStopsAtTarget(t *testing.T) {
	svc := NewService(newMemRepo())
	ctx := context.Background()

	g, err := svc.Create(ctx, "Essay", CategoryStudy, 2)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	for i, want := range []bool{true, true, false} {
		got, inc, err := svc.MarkPomodoroComplete(ctx, g.ID)
		if err != nil {
			t.Fatalf("mark %d: %v", i, err)
		}
		if inc != want {
			t.Errorf("mark %d incremented = %v, want %v", i, inc, want)
		}
		if got.CompletedPomodoros > got.Pomodoros {
			t.Errorf("mark %d: %d/%d exceeds target", i, got.CompletedPomodoros, got.Pomodoros)
		}
	}

	if _, _, err := svc.MarkPomodoroComplete(ctx, "missing"); !errors.Is(err, ErrGoalNotFound) {
		t.Errorf("missing goal err = %v, want ErrGoalNotFound", err)
	}
}

// Package goals tracks user goals measured in pomodoros. The focus core
// only ever marks a pomodoro done; everything else here serves the CLI and
// the home screen.
package goals

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrGoalNotFound is returned when a goal ID does not exist.
var ErrGoalNotFound = errors.New("goal not found")

// Category values line up with companion specialties and trait kinds.
const (
	CategoryGeneral     = "general"
	CategoryStudy       = "study"
	CategoryWork        = "work"
	CategoryCreative    = "creative"
	CategoryMindfulness = "mindfulness"
)

// Categories lists accepted goal categories.
var Categories = []string{CategoryGeneral, CategoryStudy, CategoryWork, CategoryCreative, CategoryMindfulness}

// Goal is a target number of pomodoros toward something the user cares about.
type Goal struct {
	ID                 string
	Title              string
	Category           string
	Pomodoros          int
	CompletedPomodoros int
	CreatedAt          time.Time
	CompletedAt        time.Time
}

// Done reports whether the target has been reached.
func (g Goal) Done() bool {
	return g.CompletedPomodoros >= g.Pomodoros
}

// Repo persists goals.
type Repo interface {
	CreateGoal(ctx context.Context, g Goal) error
	GetGoal(ctx context.Context, id string) (Goal, error)
	ListGoals(ctx context.Context) ([]Goal, error)
	DeleteGoal(ctx context.Context, id string) error

	// IncrementPomodoro atomically adds one completed pomodoro while the
	// goal is below its target. It returns ErrGoalNotFound for unknown IDs.
	IncrementPomodoro(ctx context.Context, id string, now time.Time) (Goal, bool, error)
}

// Service manages goals.
type Service struct {
	repo Repo
	now  func() time.Time
}

// NewService creates a goal service.
func NewService(repo Repo) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Create adds a goal.
func (s *Service) Create(ctx context.Context, title, category string, pomodoros int) (Goal, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Goal{}, fmt.Errorf("goal title is required")
	}
	if pomodoros < 1 {
		return Goal{}, fmt.Errorf("goal needs at least one pomodoro, got %d", pomodoros)
	}
	category = strings.ToLower(strings.TrimSpace(category))
	if category == "" {
		category = CategoryGeneral
	}
	if !validCategory(category) {
		return Goal{}, fmt.Errorf("unknown goal category %q (want one of %s)", category, strings.Join(Categories, ", "))
	}

	g := Goal{
		ID:        uuid.New().String(),
		Title:     title,
		Category:  category,
		Pomodoros: pomodoros,
		CreatedAt: s.now(),
	}
	if err := s.repo.CreateGoal(ctx, g); err != nil {
		return Goal{}, fmt.Errorf("create goal: %w", err)
	}
	return g, nil
}

// List returns every goal, oldest first.
func (s *Service) List(ctx context.Context) ([]Goal, error) {
	return s.repo.ListGoals(ctx)
}

// Get returns one goal.
func (s *Service) Get(ctx context.Context, id string) (Goal, error) {
	return s.repo.GetGoal(ctx, id)
}

// Delete removes a goal.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.DeleteGoal(ctx, id)
}

// MarkPomodoroComplete records one finished pomodoro against the goal. It
// only increments while the goal is below target and reports whether this
// call incremented it.
func (s *Service) MarkPomodoroComplete(ctx context.Context, id string) (Goal, bool, error) {
	return MarkPomodoroComplete(ctx, s.repo, id, s.now())
}

// MarkPomodoroComplete is the repo-level form, usable inside a transaction.
func MarkPomodoroComplete(ctx context.Context, repo Repo, id string, now time.Time) (Goal, bool, error) {
	g, incremented, err := repo.IncrementPomodoro(ctx, id, now)
	if err != nil {
		return Goal{}, false, fmt.Errorf("mark pomodoro complete: %w", err)
	}
	return g, incremented, nil
}

func validCategory(c string) bool {
	for _, v := range Categories {
		if v == c {
			return true
		}
	}
	return false
}

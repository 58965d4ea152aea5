package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/dersual/Focus-Friendship-MVP/internal/progression"
)

var userColumns = []string{
	"id", "xp", "level", "total_sessions", "current_streak", "lifetime_xp",
	"active_pet", "unlocked_pets", "traits",
}

// ReadUser returns the user's progression state. A user that has never
// been written starts from progression.NewUser.
func (r *repo) ReadUser(ctx context.Context, userID string) (progression.User, error) {
	query, args := builder().Select(userColumns...).From(builder().Table(tableUsers)).
		Where(entsql.EQ("id", userID)).
		Query()

	var (
		u              progression.User
		pets, traitIDs string
	)
	err := r.q.QueryRowContext(ctx, query, args...).Scan(
		&u.ID, &u.XP, &u.Level, &u.TotalSessions, &u.CurrentStreak, &u.LifetimeXP,
		&u.ActivePet, &pets, &traitIDs,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return progression.NewUser(userID), nil
	}
	if err != nil {
		return progression.User{}, fmt.Errorf("read user %s: %w", userID, err)
	}
	if err := json.Unmarshal([]byte(pets), &u.UnlockedPets); err != nil {
		return progression.User{}, fmt.Errorf("decode unlocked pets: %w", err)
	}
	if err := json.Unmarshal([]byte(traitIDs), &u.Traits); err != nil {
		return progression.User{}, fmt.Errorf("decode traits: %w", err)
	}
	if len(u.UnlockedPets) == 0 {
		u.UnlockedPets = nil
	}
	if len(u.Traits) == 0 {
		u.Traits = nil
	}
	return u, nil
}

// WriteUser upserts the user's progression state.
func (r *repo) WriteUser(ctx context.Context, u progression.User) error {
	pets, err := json.Marshal(nonNil(u.UnlockedPets))
	if err != nil {
		return fmt.Errorf("encode unlocked pets: %w", err)
	}
	traitIDs, err := json.Marshal(nonNil(u.Traits))
	if err != nil {
		return fmt.Errorf("encode traits: %w", err)
	}
	ins := builder().Insert(tableUsers).
		Columns(append(userColumns, "updated_at")...).
		Values(u.ID, u.XP, u.Level, u.TotalSessions, u.CurrentStreak, u.LifetimeXP,
			u.ActivePet, string(pets), string(traitIDs), millis(time.Now())).
		OnConflict(entsql.ConflictColumns("id"), entsql.ResolveWithNewValues())
	if _, err := r.exec(ctx, ins); err != nil {
		return fmt.Errorf("write user %s: %w", u.ID, err)
	}
	return nil
}

// ReadPet returns the user's companion state for petID, starting fresh
// when it has never been written.
func (r *repo) ReadPet(ctx context.Context, userID, petID string) (progression.Pet, error) {
	query, args := builder().Select("pet_id", "xp", "level", "total_sessions").
		From(builder().Table(tablePets)).
		Where(entsql.And(entsql.EQ("user_id", userID), entsql.EQ("pet_id", petID))).
		Query()

	var p progression.Pet
	err := r.q.QueryRowContext(ctx, query, args...).Scan(&p.ID, &p.XP, &p.Level, &p.TotalSessions)
	if errors.Is(err, sql.ErrNoRows) {
		return progression.NewPet(petID), nil
	}
	if err != nil {
		return progression.Pet{}, fmt.Errorf("read pet %s: %w", petID, err)
	}
	return p, nil
}

// WritePet upserts a companion's state.
func (r *repo) WritePet(ctx context.Context, userID string, p progression.Pet) error {
	ins := builder().Insert(tablePets).
		Columns("user_id", "pet_id", "xp", "level", "total_sessions").
		Values(userID, p.ID, p.XP, p.Level, p.TotalSessions).
		OnConflict(entsql.ConflictColumns("user_id", "pet_id"), entsql.ResolveWithNewValues())
	if _, err := r.exec(ctx, ins); err != nil {
		return fmt.Errorf("write pet %s: %w", p.ID, err)
	}
	return nil
}

// ListPets returns every companion the user has progress on.
func (r *repo) ListPets(ctx context.Context, userID string) ([]progression.Pet, error) {
	rows, err := r.query(ctx, builder().Select("pet_id", "xp", "level", "total_sessions").
		From(builder().Table(tablePets)).
		Where(entsql.EQ("user_id", userID)).
		OrderBy("pet_id"))
	if err != nil {
		return nil, fmt.Errorf("list pets: %w", err)
	}
	defer rows.Close()

	var out []progression.Pet
	for rows.Next() {
		var p progression.Pet
		if err := rows.Scan(&p.ID, &p.XP, &p.Level, &p.TotalSessions); err != nil {
			return nil, fmt.Errorf("scan pet: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

package ledger

import (
	"context"
	"fmt"

	"github.com/dersual/Focus-Friendship-MVP/internal/progression"
	"github.com/dersual/Focus-Friendship-MVP/internal/session"
	"github.com/dersual/Focus-Friendship-MVP/internal/store"
	"github.com/dersual/Focus-Friendship-MVP/internal/xp"
)

// ApplyAuthoritative overwrites a record's provisional award with the
// scorer's result. The overwrite happens at most once: records whose source
// is already final are returned unchanged with applied set to false.
func (s *Service) ApplyAuthoritative(ctx context.Context, sessionID string, award xp.Award) (rec session.Record, applied bool, err error) {
	ctx, span := tracer.Start(ctx, "ledger.ApplyAuthoritative")
	defer span.End()

	err = s.store.InTx(ctx, func(tx *store.Tx) error {
		cur, err := tx.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		if cur.AwardSource.Final() {
			rec = cur
			return nil
		}
		rec, err = tx.UpdateSession(ctx, sessionID, func(r *session.Record) {
			r.AwardedXP = award.XP
			r.PetXP = award.PetXP
			r.Breakdown = award.Breakdown
			r.AwardSource = session.AwardAuthoritative
		})
		if err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return session.Record{}, false, fail(span, fmt.Errorf("apply authoritative award %s: %w", sessionID, err))
	}
	if applied {
		s.logger.Debug("authoritative award applied", "session_id", sessionID, "xp", award.XP)
	}
	return rec, applied, nil
}

// AdoptState replaces the user's progression with the scorer's copy. The
// local companion selection and equipped traits are kept, and pets unlocked
// locally stay unlocked.
func (s *Service) AdoptState(ctx context.Context, userID string, server progression.User, pet progression.Pet) (progression.User, error) {
	ctx, span := tracer.Start(ctx, "ledger.AdoptState")
	defer span.End()

	var out progression.User
	err := s.store.InTx(ctx, func(tx *store.Tx) error {
		local, err := tx.ReadUser(ctx, userID)
		if err != nil {
			return err
		}
		u := server
		u.ID = userID
		u.ActivePet = local.ActivePet
		u.Traits = local.Traits
		for _, id := range local.UnlockedPets {
			if !u.HasPet(id) {
				u.UnlockedPets = append(u.UnlockedPets, id)
			}
		}
		if err := tx.WriteUser(ctx, u); err != nil {
			return err
		}
		if pet.ID != "" && pet.ID == u.ActivePet {
			if err := tx.WritePet(ctx, userID, pet); err != nil {
				return err
			}
		}
		out = u
		return nil
	})
	if err != nil {
		return progression.User{}, fail(span, fmt.Errorf("adopt scorer state for %s: %w", userID, err))
	}
	return out, nil
}

// Finalize fixes a provisional award under the given final source: local
// when the scorer failed or timed out, rejected when it refused the
// session. A rejected record keeps no award, and what it credited to the
// user and active companion is taken back. Final records are unchanged.
func (s *Service) Finalize(ctx context.Context, sessionID string, source session.AwardSource) (session.Record, error) {
	if !source.Final() || source == session.AwardAuthoritative {
		return session.Record{}, fmt.Errorf("finalize session %s: invalid source %q", sessionID, source)
	}
	var rec session.Record
	err := s.store.InTx(ctx, func(tx *store.Tx) error {
		cur, err := tx.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		if cur.AwardSource.Final() {
			rec = cur
			return nil
		}
		if source == session.AwardRejected && cur.Processed {
			if err := revoke(ctx, tx, cur); err != nil {
				return err
			}
		}
		rec, err = tx.UpdateSession(ctx, sessionID, func(r *session.Record) {
			r.AwardSource = source
			if source == session.AwardRejected {
				r.AwardedXP = 0
				r.PetXP = 0
			}
		})
		return err
	})
	if err != nil {
		return session.Record{}, fmt.Errorf("finalize session %s: %w", sessionID, err)
	}
	return rec, nil
}

func revoke(ctx context.Context, tx *store.Tx, rec session.Record) error {
	u, err := tx.ReadUser(ctx, rec.UserID)
	if err != nil {
		return err
	}
	pet, err := tx.ReadPet(ctx, rec.UserID, u.ActivePet)
	if err != nil {
		return err
	}
	u, pet = progression.RevokeAward(u, pet, progression.SessionResult{
		IsBreak:   rec.IsBreak,
		Completed: rec.Completed,
		Minutes:   rec.ActualMinutes,
		AwardedXP: rec.AwardedXP,
		PetXP:     rec.PetXP,
	})
	if err := tx.WriteUser(ctx, u); err != nil {
		return err
	}
	return tx.WritePet(ctx, rec.UserID, pet)
}

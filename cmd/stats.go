package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/dersual/Focus-Friendship-MVP/internal/progression"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show progression statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDeps(cmd)
		if err != nil {
			return err
		}
		defer d.Close()

		ctx := context.Background()
		u, pet, err := d.ledger(cliLogger()).State(ctx, d.cfg.UserID)
		if err != nil {
			return fmt.Errorf("read state: %w", err)
		}
		qs, err := d.st.QueueStats(ctx)
		if err != nil {
			return fmt.Errorf("query sync queue: %w", err)
		}

		t, _ := progression.PetByID(pet.ID)
		stage := t.StageFor(pet.Level)

		fmt.Printf("User:      %s\n", u.ID)
		fmt.Printf("Level:     %d (%d/%d XP)\n", u.Level, u.XP, progression.ExpToNext(u.Level))
		fmt.Printf("Lifetime:  %d XP over %d sessions\n", u.LifetimeXP, u.TotalSessions)
		fmt.Printf("Streak:    %d\n", u.CurrentStreak)
		fmt.Printf("Pet:       %s %s (%s) level %d, %d/%d XP\n",
			stage.Icon, t.Name, stage.Name, pet.Level, pet.XP, progression.PetExpToNext(pet.Level))
		if len(u.Traits) > 0 {
			fmt.Printf("Traits:    %s\n", strings.Join(u.Traits, ", "))
		}
		if d.cfg.Remote() {
			fmt.Printf("Sync:      %d pending, %d synced (%d rejected)\n", qs.Pending, qs.Synced, qs.Rejected)
			if qs.LastError != "" {
				fmt.Printf("Last error: %s\n", qs.LastError)
			}
		} else {
			fmt.Println("Sync:      local only")
		}
		return nil
	},
}

package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/dersual/Focus-Friendship-MVP/internal/progression"
	"github.com/dersual/Focus-Friendship-MVP/internal/reconcile"
	"github.com/dersual/Focus-Friendship-MVP/internal/remote"
	"github.com/dersual/Focus-Friendship-MVP/internal/session"
	"github.com/dersual/Focus-Friendship-MVP/internal/store"
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Flush pending sessions to the scoring server",
	RunE: func(cmd *cobra.Command, args []string) error {
		backfill, _ := cmd.Flags().GetBool("backfill")

		d, err := openDeps(cmd)
		if err != nil {
			return err
		}
		defer d.Close()

		if !d.cfg.Remote() {
			return fmt.Errorf("no scoring server configured (set FOCUSFRIEND_REMOTE_ADDR)")
		}

		logger := cliLogger()
		client, err := remote.Dial(d.cfg.RemoteAddr)
		if err != nil {
			return err
		}
		defer client.Close()

		ctx := context.Background()
		if err := client.Health(ctx); err != nil {
			return fmt.Errorf("scoring server unavailable: %w", err)
		}

		rec := reconcile.New(d.st, d.ledger(logger), remote.WithLogging(client, logger), reconcile.Options{
			Logger:      logger,
			CallTimeout: d.cfg.SyncTimeout,
			Retention:   d.cfg.SyncRetention,
		})

		if backfill {
			n, err := enqueueLocal(ctx, d.st, rec, d.cfg.UserID)
			if err != nil {
				return err
			}
			fmt.Printf("Queued %d local sessions\n", n)
		}

		var total reconcile.Result
		for {
			res, err := rec.Flush(ctx)
			total.Synced += res.Synced
			total.Rejected += res.Rejected
			total.Pruned += res.Pruned
			total.Adopted = total.Adopted || res.Adopted
			if err != nil {
				fmt.Printf("Synced %d, rejected %d before failure\n", total.Synced, total.Rejected)
				return err
			}
			if res.Synced+res.Rejected == 0 {
				break
			}
		}

		fmt.Printf("Synced %d, rejected %d, pruned %d\n", total.Synced, total.Rejected, total.Pruned)
		if total.Adopted {
			fmt.Println("Progression updated from server")
		}
		return nil
	},
}

// enqueueLocal queues processed sessions that were scored locally and
// never synced, so the server's history catches up.
func enqueueLocal(ctx context.Context, st *store.Store, rec *reconcile.Reconciler, userID string) (int, error) {
	recs, err := st.ListSessions(ctx, store.QueryOpts{UserID: userID})
	if err != nil {
		return 0, fmt.Errorf("query sessions: %w", err)
	}
	// Oldest first so queue order matches end order.
	n := 0
	for i := len(recs) - 1; i >= 0; i-- {
		r := recs[i]
		if !r.Terminal() || !r.Processed || r.AwardSource != session.AwardLocal {
			continue
		}
		if _, err := st.QueueEntry(ctx, r.ID); err == nil {
			continue
		} else if !errors.Is(err, store.ErrNotFound) {
			return n, err
		}
		var penalty *progression.Penalty
		if r.PenaltyXP > 0 {
			penalty = &progression.Penalty{Type: progression.PenaltyType(r.PenaltyType), Amount: r.PenaltyXP}
		}
		if _, err := rec.Enqueue(ctx, r, penalty); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func init() {
	syncCmd.Flags().Bool("backfill", false, "Also queue sessions scored while no server was configured")
}

package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dersual/Focus-Friendship-MVP/internal/app"
	"github.com/dersual/Focus-Friendship-MVP/internal/reconcile"
	"github.com/dersual/Focus-Friendship-MVP/internal/remote"
	"github.com/dersual/Focus-Friendship-MVP/internal/session"
	"github.com/dersual/Focus-Friendship-MVP/internal/telemetry"
	"github.com/spf13/cobra"
)

func runFlags(cmd *cobra.Command) {
	cmd.Flags().Int("focus", 25, "Focus session length in minutes")
	cmd.Flags().Int("break", 5, "Break length in minutes")
	cmd.Flags().String("goal", "", "Goal ID to credit focus sessions to")
}

// runApp opens the store, builds dependencies, and launches the TUI.
func runApp(cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	d, err := openDeps(cmd)
	if err != nil {
		return err
	}
	defer d.Close()

	// The TUI owns the terminal, so logs go next to the database.
	logger, logFile, err := openLogFile(filepath.Join(filepath.Dir(d.dbPath), "focusfriend.log"))
	if err != nil {
		return err
	}
	defer logFile.Close()

	shutdown, err := telemetry.Setup(ctx, "focusfriend", d.cfg.OTelEndpoint)
	if err != nil {
		fmt.Fprintln(os.Stderr, "warning: tracing disabled:", err)
	}
	defer shutdown(context.Background())

	l := d.ledger(logger)

	var rec *reconcile.Reconciler
	if d.cfg.Remote() {
		client, err := remote.Dial(d.cfg.RemoteAddr)
		if err != nil {
			return err
		}
		defer client.Close()

		rec = reconcile.New(d.st, l, remote.WithLogging(client, logger), reconcile.Options{
			Logger:      logger,
			Interval:    d.cfg.SyncInterval,
			CallTimeout: d.cfg.SyncTimeout,
			Retention:   d.cfg.SyncRetention,
		})
		syncCtx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})
		defer func() {
			cancel()
			<-done
		}()
		go func() {
			defer close(done)
			if err := rec.Run(syncCtx); err != nil {
				logger.Error("sync loop stopped", "error", err)
			}
		}()
	}

	n, err := l.RecoverOrphans(ctx, d.cfg.UserID)
	if err != nil {
		return fmt.Errorf("recover sessions: %w", err)
	}
	if n > 0 {
		logger.Info("recovered interrupted sessions", "count", n)
	}

	ctrl := session.NewController(reconcile.NewBackend(l, rec, d.cfg.ScoreTimeout, logger), session.Config{
		UserID:      d.cfg.UserID,
		GracePeriod: d.cfg.GracePeriod,
		Policy:      d.policy,
		Logger:      logger,
	})

	focus, _ := cmd.Flags().GetInt("focus")
	brk, _ := cmd.Flags().GetInt("break")
	goal, _ := cmd.Flags().GetString("goal")

	return app.Run(app.Options{
		Controller:   ctrl,
		Ledger:       l,
		Store:        d.st,
		UserID:       d.cfg.UserID,
		TickInterval: d.cfg.TickInterval,
		FocusMinutes: focus,
		BreakMinutes: brk,
		HistoryLimit: d.cfg.HistoryLimit,
		GoalID:       goal,
		Logger:       logger,
	})
}

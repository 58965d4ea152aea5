package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/dersual/Focus-Friendship-MVP/internal/config"
	"github.com/dersual/Focus-Friendship-MVP/internal/ledger"
	"github.com/dersual/Focus-Friendship-MVP/internal/session"
	"github.com/dersual/Focus-Friendship-MVP/internal/store"
	"github.com/dersual/Focus-Friendship-MVP/internal/xp"
	"github.com/spf13/cobra"
)

// deps holds what every command opens: configuration, the policy and the
// store.
type deps struct {
	cfg    config.Config
	policy xp.Policy
	dbPath string
	st     *store.Store
}

func openDeps(cmd *cobra.Command) (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	policy, err := cfg.Policy()
	if err != nil {
		return nil, fmt.Errorf("load policy: %w", err)
	}
	dbPath, err := resolveDBPath(cmd, cfg)
	if err != nil {
		return nil, fmt.Errorf("resolve database path: %w", err)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return &deps{cfg: cfg, policy: policy, dbPath: dbPath, st: st}, nil
}

func (d *deps) Close() error {
	return d.st.Close()
}

// ledger builds the client-side ledger. With a scorer of record every
// award is provisional and queued for sync.
func (d *deps) ledger(logger *slog.Logger) *ledger.Service {
	source := session.AwardLocal
	if d.cfg.Remote() {
		source = session.AwardProvisional
	}
	return ledger.NewService(d.st, ledger.Options{
		Policy:    d.policy,
		Logger:    logger,
		MarkGoals: true,
		// Without a scorer nothing drains the queue; sync --backfill
		// queues local records once one is configured.
		Enqueue:   d.cfg.Remote(),
		Source:    source,
	})
}

// cliLogger writes warnings to stderr for one-shot commands.
func cliLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func openLogFile(path string) (*slog.Logger, io.Closer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return slog.New(slog.NewTextHandler(f, nil)), f, nil
}

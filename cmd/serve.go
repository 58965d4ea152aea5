package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dersual/Focus-Friendship-MVP/internal/remote"
	"github.com/dersual/Focus-Friendship-MVP/internal/telemetry"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the authoritative scoring server",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDeps(cmd)
		if err != nil {
			return err
		}
		defer d.Close()

		logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		shutdown, err := telemetry.Setup(ctx, "focusfriend-scorer", d.cfg.OTelEndpoint)
		if err != nil {
			logger.Warn("tracing disabled", "error", err)
		}
		defer shutdown(context.Background())

		addr, _ := cmd.Flags().GetString("listen")
		if addr == "" {
			addr = d.cfg.ListenAddr
		}

		scorer := remote.NewScorer(d.st, d.policy, remote.WithLogger(logger))
		srv, err := remote.Listen(addr, scorer, logger)
		if err != nil {
			return err
		}
		logger.Info("scorer listening", "addr", srv.Addr(), "db", d.dbPath)
		return srv.Serve(ctx)
	},
}

func init() {
	serveCmd.Flags().String("listen", "", "Listen address (overrides FOCUSFRIEND_LISTEN_ADDR)")
}

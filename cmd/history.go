package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/dersual/Focus-Friendship-MVP/internal/screens/history"
	"github.com/dersual/Focus-Friendship-MVP/internal/store"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		d, err := openDeps(cmd)
		if err != nil {
			return err
		}
		defer d.Close()

		recs, err := d.st.ListSessions(context.Background(), store.QueryOpts{UserID: d.cfg.UserID, Limit: limit})
		if err != nil {
			return fmt.Errorf("query sessions: %w", err)
		}
		if len(recs) == 0 {
			fmt.Println("No sessions yet.")
			return nil
		}

		fmt.Printf("%-60s  %s\n", "Session", "Award")
		fmt.Println(strings.Repeat("─", 76))
		for _, r := range recs {
			source := string(r.AwardSource)
			if source == "" {
				source = "-"
			}
			fmt.Printf("%-60s  %s\n", history.Line(r), source)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().Int("limit", 20, "Number of sessions to show")
}

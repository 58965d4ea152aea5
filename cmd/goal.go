package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/dersual/Focus-Friendship-MVP/internal/goals"
	"github.com/spf13/cobra"
)

var goalCmd = &cobra.Command{
	Use:   "goal",
	Short: "Manage focus goals",
}

var goalAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Create a goal",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		category, _ := cmd.Flags().GetString("category")
		pomodoros, _ := cmd.Flags().GetInt("pomodoros")

		d, err := openDeps(cmd)
		if err != nil {
			return err
		}
		defer d.Close()

		g, err := goals.NewService(d.st).Create(context.Background(), strings.Join(args, " "), category, pomodoros)
		if err != nil {
			return err
		}
		fmt.Printf("Created goal %s (%s, %d pomodoros)\n", g.ID, g.Category, g.Pomodoros)
		return nil
	},
}

var goalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List goals",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDeps(cmd)
		if err != nil {
			return err
		}
		defer d.Close()

		gs, err := goals.NewService(d.st).List(context.Background())
		if err != nil {
			return fmt.Errorf("list goals: %w", err)
		}
		if len(gs) == 0 {
			fmt.Println("No goals yet.")
			return nil
		}

		fmt.Printf("%-36s  %-11s  %-9s  %s\n", "ID", "Category", "Progress", "Title")
		fmt.Println(strings.Repeat("─", 80))
		for _, g := range gs {
			done := ""
			if g.Done() {
				done = " ✓"
			}
			fmt.Printf("%-36s  %-11s  %4d/%-4d  %s%s\n",
				g.ID, g.Category, g.CompletedPomodoros, g.Pomodoros, g.Title, done)
		}
		return nil
	},
}

var goalRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a goal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDeps(cmd)
		if err != nil {
			return err
		}
		defer d.Close()

		if err := goals.NewService(d.st).Delete(context.Background(), args[0]); err != nil {
			return fmt.Errorf("delete goal: %w", err)
		}
		fmt.Println("Deleted", args[0])
		return nil
	},
}

func init() {
	goalAddCmd.Flags().String("category", goals.CategoryGeneral,
		"Goal category ("+strings.Join(goals.Categories, ", ")+")")
	goalAddCmd.Flags().Int("pomodoros", 4, "Target number of pomodoros")

	goalCmd.AddCommand(goalAddCmd)
	goalCmd.AddCommand(goalListCmd)
	goalCmd.AddCommand(goalRmCmd)
}

package cmd

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/dersual/Focus-Friendship-MVP/internal/progression"
	"github.com/spf13/cobra"
)

var petCmd = &cobra.Command{
	Use:   "pet",
	Short: "Manage companions and traits",
}

var petListCmd = &cobra.Command{
	Use:   "list",
	Short: "List companions",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDeps(cmd)
		if err != nil {
			return err
		}
		defer d.Close()

		ctx := context.Background()
		u, _, err := d.ledger(cliLogger()).State(ctx, d.cfg.UserID)
		if err != nil {
			return fmt.Errorf("read state: %w", err)
		}
		pets, err := d.st.ListPets(ctx, d.cfg.UserID)
		if err != nil {
			return fmt.Errorf("list pets: %w", err)
		}

		fmt.Printf("  %-7s  %-14s  %-11s  %-5s  %s\n", "ID", "Name", "Specialty", "Level", "Stage")
		fmt.Println(strings.Repeat("─", 64))
		for _, t := range progression.Catalog {
			mark := " "
			if u.ActivePet == t.ID {
				mark = "★"
			}
			if !u.HasPet(t.ID) {
				fmt.Printf("%s %-7s  %-14s  %-11s  %-5s  locked\n", mark, t.ID, t.Name, t.Specialty.DisplayName(), "-")
				continue
			}
			level := 1
			if i := slices.IndexFunc(pets, func(p progression.Pet) bool { return p.ID == t.ID }); i >= 0 {
				level = pets[i].Level
			}
			stage := t.StageFor(level)
			fmt.Printf("%s %-7s  %-14s  %-11s  %-5d  %s %s\n", mark, t.ID, t.Name, t.Specialty.DisplayName(), level, stage.Icon, stage.Name)
		}
		if len(u.Traits) > 0 {
			fmt.Printf("\nEquipped traits: %s\n", strings.Join(u.Traits, ", "))
		}
		return nil
	},
}

var petSelectCmd = &cobra.Command{
	Use:   "select <pet-id>",
	Short: "Make an unlocked companion active",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return updateUser(cmd, func(u progression.User) (progression.User, error) {
			return progression.SelectPet(u, args[0])
		}, "Active pet: "+args[0])
	},
}

var petEquipCmd = &cobra.Command{
	Use:   "equip <trait-id>",
	Short: "Equip a trait",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return updateUser(cmd, func(u progression.User) (progression.User, error) {
			return progression.EquipTrait(u, args[0])
		}, "Equipped "+args[0])
	},
}

var petUnequipCmd = &cobra.Command{
	Use:   "unequip <trait-id>",
	Short: "Unequip a trait",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return updateUser(cmd, func(u progression.User) (progression.User, error) {
			return progression.UnequipTrait(u, args[0]), nil
		}, "Unequipped "+args[0])
	},
}

func updateUser(cmd *cobra.Command, fn func(progression.User) (progression.User, error), done string) error {
	d, err := openDeps(cmd)
	if err != nil {
		return err
	}
	defer d.Close()

	if _, err := d.ledger(cliLogger()).UpdateUser(context.Background(), d.cfg.UserID, fn); err != nil {
		return err
	}
	fmt.Println(done)
	return nil
}

func init() {
	petCmd.AddCommand(petListCmd)
	petCmd.AddCommand(petSelectCmd)
	petCmd.AddCommand(petEquipCmd)
	petCmd.AddCommand(petUnequipCmd)
}

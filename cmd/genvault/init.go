package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a new vault",
	Long: `Init creates a vault protected by a master password: a fresh
random salt, a wrapped vault key, and an empty encrypted payload.`,
	Example: `  genvault init
  genvault init --json`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

var initPassword string

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().StringVarP(&initPassword, "password", "p", "",
		"Master password (will prompt if not provided)")
}

func runInit(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	password := initPassword
	if password == "" {
		var err error
		password, err = promptPassword("Master password: ")
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}

		confirm, err := promptPassword("Confirm password: ")
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		if password != confirm {
			return fmt.Errorf("passwords do not match")
		}
	}

	session, err := vaultsService.Create(ctx, password)
	if err != nil {
		return err
	}
	defer vaultsService.Lock(session.VaultID)

	if jsonOutput {
		printJSON(map[string]interface{}{
			"success":  true,
			"vault_id": session.VaultID,
		})
		return nil
	}

	printSuccess("Created vault %s", session.VaultID)
	return nil
}

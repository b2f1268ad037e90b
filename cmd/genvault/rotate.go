package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var rotateCmd = &cobra.Command{
	Use:   "rotate <vault-id>",
	Short: "Change the master password",
	Long: `Rotate re-wraps the vault key under a new master password. The
encrypted payload is untouched; only key material and the password hash
change.`,
	Args: cobra.ExactArgs(1),
	RunE: runRotate,
}

func init() {
	rootCmd.AddCommand(rotateCmd)
}

func runRotate(cmd *cobra.Command, args []string) error {
	vaultID := args[0]
	ctx := context.Background()

	oldPassword, err := promptPassword("Current password: ")
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}

	newPassword, err := promptPassword("New password: ")
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}
	confirm, err := promptPassword("Confirm new password: ")
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}
	if newPassword != confirm {
		return fmt.Errorf("passwords do not match")
	}

	if err := vaultsService.RotatePassword(ctx, vaultID, oldPassword, newPassword); err != nil {
		return err
	}

	if jsonOutput {
		printJSON(map[string]interface{}{
			"success":  true,
			"vault_id": vaultID,
		})
		return nil
	}

	printSuccess("Password rotated for vault %s", vaultID)
	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/genvault/genvault/internal/models"
)

var unlockCmd = &cobra.Command{
	Use:   "unlock <vault-id>",
	Short: "Unlock a vault",
	Long: `Unlock verifies the master password and unwraps the vault key.
A stored credential envelope is tried first; when it is missing or past
its time-to-live the master password is required again.`,
	Args: cobra.ExactArgs(1),
	RunE: runUnlock,
}

var unlockPassword string

func init() {
	rootCmd.AddCommand(unlockCmd)

	unlockCmd.Flags().StringVarP(&unlockPassword, "password", "p", "",
		"Master password (will prompt if not provided)")
}

func runUnlock(cmd *cobra.Command, args []string) error {
	vaultID := args[0]
	ctx := context.Background()

	// Envelope fast path.
	if unlockPassword == "" {
		_, err := vaultsService.UnlockWithEnvelope(ctx, vaultID, platformSecret)
		if err == nil {
			defer vaultsService.Lock(vaultID)
			return reportUnlock(vaultID, "envelope")
		}
		if errors.Is(err, models.ErrCredentialExpired) {
			printWarning("Stored credential expired, master password required")
		}
	}

	password := unlockPassword
	if password == "" {
		var err error
		password, err = promptPassword("Master password: ")
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
	}

	session, err := vaultsService.Unlock(ctx, vaultID, password)
	if err != nil {
		var lockout *models.TooManyAttemptsError
		if errors.As(err, &lockout) {
			printError("Too many attempts, retry in %s", lockout.RetryAfter)
		}
		return err
	}
	defer vaultsService.Lock(session.VaultID)

	return reportUnlock(vaultID, "password")
}

func reportUnlock(vaultID, method string) error {
	if jsonOutput {
		printJSON(map[string]interface{}{
			"success":  true,
			"vault_id": vaultID,
			"method":   method,
		})
		return nil
	}
	printSuccess("Vault %s unlocked (%s)", vaultID, method)
	return nil
}

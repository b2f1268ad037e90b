package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	syncsvc "github.com/genvault/genvault/internal/services/sync"
)

var syncCmd = &cobra.Command{
	Use:   "sync <vault-id>",
	Short: "Synchronize a vault with cloud storage",
	Long: `Sync compares the local vault snapshot with its cloud copy and
pushes, pulls, or reports a conflict. Only encrypted bytes leave the
machine; pulled payloads are decrypted and verified before they replace
local state.`,
	Example: `  genvault sync vault-123
  genvault sync vault-123 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runSyncCmd,
}

var syncPassword string

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().StringVarP(&syncPassword, "password", "p", "",
		"Master password (will prompt if not provided)")
}

func runSyncCmd(cmd *cobra.Command, args []string) error {
	vaultID := args[0]

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	go func() {
		<-sigChan
		printWarning("\nSync interrupted, cancelling...")
		cancel()
	}()

	key, err := vaultKey(ctx, vaultID, &syncPassword)
	if err != nil {
		return err
	}
	defer vaultsService.Lock(vaultID)

	startTime := time.Now()
	result, err := syncService.Sync(ctx, cfg.Provider.Name, vaultID, key)
	if err != nil {
		return err
	}

	if jsonOutput {
		out := map[string]interface{}{
			"success":  true,
			"vault_id": vaultID,
			"outcome":  result.Outcome,
			"duration": time.Since(startTime).String(),
		}
		if result.Conflict != nil {
			out["conflict"] = map[string]interface{}{
				"local_timestamp":  result.Conflict.Local.Timestamp,
				"remote_timestamp": result.Conflict.Remote.Timestamp,
				"local_device":     result.Conflict.Local.DeviceID,
				"remote_device":    result.Conflict.Remote.DeviceID,
			}
		}
		printJSON(out)
		return nil
	}

	switch result.Outcome {
	case syncsvc.OutcomeUpToDate:
		printSuccess("Vault %s is up to date", vaultID)
	case syncsvc.OutcomeUploaded:
		printSuccess("Uploaded vault %s (%s)", vaultID, time.Since(startTime).Round(time.Millisecond))
	case syncsvc.OutcomeDownloaded:
		printSuccess("Downloaded vault %s (%s)", vaultID, time.Since(startTime).Round(time.Millisecond))
	case syncsvc.OutcomeConflict:
		printWarning("Conflict: local modified %s on %s, remote modified %s on %s",
			result.Conflict.Local.Timestamp.Format(time.RFC3339),
			result.Conflict.Local.DeviceID,
			result.Conflict.Remote.Timestamp.Format(time.RFC3339),
			result.Conflict.Remote.DeviceID)
		printWarning("Run 'genvault resolve %s --strategy <local|remote|newest|merge>'", vaultID)
	}

	return nil
}

// vaultKey unlocks the vault via the envelope fast path or the master
// password and returns its key.
func vaultKey(ctx context.Context, vaultID string, password *string) ([]byte, error) {
	if *password == "" {
		if session, err := vaultsService.UnlockWithEnvelope(ctx, vaultID, platformSecret); err == nil {
			return session.Key()
		}

		var err error
		*password, err = promptPassword("Master password: ")
		if err != nil {
			return nil, fmt.Errorf("read password: %w", err)
		}
	}

	session, err := vaultsService.Unlock(ctx, vaultID, *password)
	if err != nil {
		return nil, err
	}
	return session.Key()
}

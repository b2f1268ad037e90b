package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/genvault/genvault/internal/models"
)

var statusCmd = &cobra.Command{
	Use:   "status [vault-id]",
	Short: "Show sync status",
	Long:  `Status shows the sync state of one vault, or of every known vault.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	var vaultIDs []string
	if len(args) == 1 {
		vaultIDs = args
	} else {
		ids, err := vaultStore.List()
		if err != nil {
			return err
		}
		vaultIDs = ids
	}

	if jsonOutput {
		statuses := make([]*models.SyncMetadata, 0, len(vaultIDs))
		for _, vaultID := range vaultIDs {
			meta, err := syncService.Status(vaultID)
			if err != nil {
				return err
			}
			statuses = append(statuses, meta)
		}
		printJSON(statuses)
		return nil
	}

	if len(vaultIDs) == 0 {
		fmt.Println("No vaults found")
		return nil
	}

	for _, vaultID := range vaultIDs {
		meta, err := syncService.Status(vaultID)
		if err != nil {
			return err
		}
		printStatus(meta)
	}
	return nil
}

func printStatus(meta *models.SyncMetadata) {
	fmt.Printf("%s\n", meta.VaultID)
	fmt.Printf("  status:    %s\n", meta.Status)

	if !meta.LastSyncTimestamp.IsZero() {
		fmt.Printf("  last sync: %s\n", meta.LastSyncTimestamp.Format(time.RFC3339))
	} else {
		fmt.Printf("  last sync: never\n")
	}
	if meta.CloudFileID != "" {
		fmt.Printf("  cloud id:  %s\n", meta.CloudFileID)
	}
	if meta.ConflictDetected {
		printWarning("  unresolved conflict")
	}
	if meta.HasError() {
		printError("  last error: %s", meta.LastError)
	}
}

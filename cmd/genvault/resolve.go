package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	syncsvc "github.com/genvault/genvault/internal/services/sync"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <vault-id>",
	Short: "Resolve a sync conflict",
	Long: `Resolve applies a strategy to a conflicted vault and commits the
winner to both sides.

Strategies:
  local   keep the local version, overwrite remote
  remote  keep the remote version, overwrite local
  newest  keep whichever was modified last (tie keeps local)
  merge   entry-level merge, latest change per entry wins`,
	Example: `  genvault resolve vault-123 --strategy newest
  genvault resolve vault-123 --strategy merge`,
	Args: cobra.ExactArgs(1),
	RunE: runResolve,
}

var (
	resolveStrategy string
	resolvePassword string
)

func init() {
	rootCmd.AddCommand(resolveCmd)

	resolveCmd.Flags().StringVarP(&resolveStrategy, "strategy", "s", "",
		"Resolution strategy: local, remote, newest, merge (required)")
	resolveCmd.Flags().StringVarP(&resolvePassword, "password", "p", "",
		"Master password (will prompt if not provided)")

	_ = resolveCmd.MarkFlagRequired("strategy")
}

func runResolve(cmd *cobra.Command, args []string) error {
	vaultID := args[0]
	ctx := context.Background()

	strategy, err := parseStrategy(resolveStrategy)
	if err != nil {
		return err
	}

	key, err := vaultKey(ctx, vaultID, &resolvePassword)
	if err != nil {
		return err
	}
	defer vaultsService.Lock(vaultID)

	// Re-run the comparison to materialize the conflict pair.
	result, err := syncService.Sync(ctx, cfg.Provider.Name, vaultID, key)
	if err != nil {
		return err
	}
	if result.Outcome != syncsvc.OutcomeConflict {
		if jsonOutput {
			printJSON(map[string]interface{}{
				"success":  true,
				"vault_id": vaultID,
				"outcome":  result.Outcome,
			})
			return nil
		}
		printSuccess("No conflict to resolve (sync outcome: %s)", result.Outcome)
		return nil
	}

	winner, err := syncService.ResolveConflict(ctx, cfg.Provider.Name, result.Conflict, strategy, key)
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(map[string]interface{}{
			"success":   true,
			"vault_id":  vaultID,
			"strategy":  strategy,
			"timestamp": winner.Timestamp,
			"device_id": winner.DeviceID,
			"version":   winner.Version,
		})
		return nil
	}

	printSuccess("Conflict resolved with %s: winning version from %s at %s",
		strategy, winner.DeviceID, winner.Timestamp)
	return nil
}

func parseStrategy(s string) (syncsvc.Strategy, error) {
	switch s {
	case "local":
		return syncsvc.StrategyLocalWins, nil
	case "remote":
		return syncsvc.StrategyRemoteWins, nil
	case "newest":
		return syncsvc.StrategyNewestWins, nil
	case "merge":
		return syncsvc.StrategySmartMerge, nil
	default:
		return "", fmt.Errorf("unknown strategy %q (expected local, remote, newest, or merge)", s)
	}
}

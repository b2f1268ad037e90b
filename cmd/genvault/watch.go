package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/genvault/genvault/internal/transport"
)

var watchCmd = &cobra.Command{
	Use:   "watch <vault-id>",
	Short: "Watch the provider change feed and sync on changes",
	Long: `Watch subscribes to the provider's change feed and runs a sync
whenever another device uploads the vault. Requires provider.watch_url in
the configuration. Runs until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

var watchPassword string

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVarP(&watchPassword, "password", "p", "",
		"Master password (will prompt if not provided)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	vaultID := args[0]

	if cfg.Provider.WatchURL == "" {
		return fmt.Errorf("provider.watch_url is not configured")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	go func() {
		<-sigChan
		printWarning("\nStopping watch...")
		cancel()
	}()

	key, err := vaultKey(ctx, vaultID, &watchPassword)
	if err != nil {
		return err
	}
	defer vaultsService.Lock(vaultID)

	client := transport.NewWatchClient(transport.WatchConfig{
		URL:   cfg.Provider.WatchURL,
		Token: cfg.Provider.RefreshToken,
	}, logger)

	printSuccess("Watching vault %s for remote changes", vaultID)

	err = syncService.Watch(ctx, client, cfg.Provider.Name, func(id string) ([]byte, error) {
		if id != vaultID {
			return nil, fmt.Errorf("vault %s not unlocked", id)
		}
		return key, nil
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

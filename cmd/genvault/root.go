package main

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/genvault/genvault/internal/config"
	"github.com/genvault/genvault/internal/crypto"
	"github.com/genvault/genvault/internal/events"
	"github.com/genvault/genvault/internal/keyring"
	"github.com/genvault/genvault/internal/providers"
	"github.com/genvault/genvault/internal/ratelimit"
	syncsvc "github.com/genvault/genvault/internal/services/sync"
	"github.com/genvault/genvault/internal/services/vaults"
	"github.com/genvault/genvault/internal/state"
	"github.com/genvault/genvault/internal/storage"
)

var rootCmd = &cobra.Command{
	Use:   "genvault",
	Short: "Encrypted vault storage with cloud synchronization",
	Long: `Genvault keeps master-password protected vaults on disk and
synchronizes their encrypted payloads through untrusted cloud storage.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initApp()
	},
}

var (
	configPath string
	jsonOutput bool
	verbose    bool
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"Config file path")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false,
		"Output results as JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Enable debug logging")
}

// Application wiring, built once per invocation.
var (
	cfg            *config.Config
	logger         *events.Logger
	vaultStore     *storage.VaultFileStore
	stateStore     state.Store
	vaultsService  *vaults.Service
	syncService    *syncsvc.Service
	registry       *providers.Registry
	platformSecret []byte
)

func initApp() error {
	loaded, err := config.NewLoader(configPath).Load()
	if err != nil {
		return err
	}
	cfg = loaded

	if verbose {
		cfg.Log.Level = "debug"
	}

	logger, err = events.NewLogger(&events.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	})
	if err != nil {
		return err
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	deviceID, err := loadDeviceID(cfg.Storage.DataDir)
	if err != nil {
		return err
	}

	cryptoEngine := crypto.NewEngine(logger)

	vaultStore, err = storage.NewVaultFileStore(cfg.Storage.VaultsDir, deviceID, logger)
	if err != nil {
		return err
	}

	stateStore, err = newStateStore()
	if err != nil {
		return err
	}

	limiter := ratelimit.NewLimiter(
		ratelimit.WithPolicy(cfg.RateLimit.MaxAttempts, cfg.RateLimit.Lockout))

	secretStore, err := keyring.NewFileStore(cfg.Storage.SecretDir)
	if err != nil {
		return err
	}
	envelopes := keyring.NewManager(secretStore, logger, keyring.WithTTL(cfg.Envelope.TTL))

	platformSecret, err = loadPlatformSecret(cfg.Storage.SecretDir)
	if err != nil {
		return err
	}

	vaultsService = vaults.NewService(cryptoEngine, vaultStore, limiter, envelopes, logger)
	vaultsService.SetPlatformSecret(platformSecret)

	registry, err = newRegistry()
	if err != nil {
		return err
	}

	syncService = syncsvc.NewService(registry, stateStore, vaultStore, cryptoEngine, syncsvc.Config{
		DeviceID:   deviceID,
		MaxRetries: cfg.Sync.RetryAttempts,
		RetryDelay: cfg.Sync.RetryDelay,
	}, logger)

	return nil
}

func newStateStore() (state.Store, error) {
	if cfg.Storage.StateBackend == "sqlite" {
		return state.NewSQLiteStore(filepath.Join(cfg.Storage.StateDir, "sync.db"), logger)
	}
	return state.NewJSONStore(cfg.Storage.StateDir, logger)
}

func newRegistry() (*providers.Registry, error) {
	client := providers.ClientConfig{
		BaseURL:   cfg.Provider.BaseURL,
		Timeout:   cfg.Provider.Timeout,
		UserAgent: cfg.Provider.UserAgent,
	}

	switch cfg.Provider.Name {
	case "oauth2":
		return providers.NewRegistry(providers.NewOAuth2Provider("oauth2", providers.OAuth2Config{
			Client:       client,
			TokenURL:     cfg.Provider.TokenURL,
			ClientID:     cfg.Provider.ClientID,
			ClientSecret: cfg.Provider.ClientSecret,
			RefreshToken: cfg.Provider.RefreshToken,
		}, logger)), nil

	case "basic":
		return providers.NewRegistry(providers.NewBasicAuthProvider("basic", providers.BasicAuthConfig{
			Client:   client,
			Username: cfg.Provider.Username,
			Password: cfg.Provider.Password,
		}, logger)), nil

	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider.Name)
	}
}

// loadDeviceID reads or creates the stable device identifier used to tag
// uploaded snapshots.
func loadDeviceID(dataDir string) (string, error) {
	path := filepath.Join(dataDir, "device_id")

	if data, err := os.ReadFile(path); err == nil && len(data) > 0 {
		return string(data), nil
	}

	id := randomHex(8)
	if err := os.WriteFile(path, []byte(id), 0600); err != nil {
		return "", fmt.Errorf("write device id: %w", err)
	}
	return id, nil
}

// loadPlatformSecret reads or creates the machine-local secret that wraps
// credential envelopes. It stands in for a native keychain binding.
func loadPlatformSecret(secretDir string) ([]byte, error) {
	path := filepath.Join(secretDir, "platform.key")

	if data, err := os.ReadFile(path); err == nil && len(data) > 0 {
		return data, nil
	}

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generate platform secret: %w", err)
	}
	if err := os.WriteFile(path, secret, 0600); err != nil {
		return nil, fmt.Errorf("write platform secret: %w", err)
	}
	return secret, nil
}

func randomHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return fmt.Sprintf("%x", b)
}

// Output helpers

func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	data, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func printSuccess(format string, args ...interface{}) {
	color.New(color.FgGreen).Fprintf(os.Stderr, format+"\n", args...)
}

func printWarning(format string, args ...interface{}) {
	color.New(color.FgYellow).Fprintf(os.Stderr, format+"\n", args...)
}

func printError(format string, args ...interface{}) {
	color.New(color.FgRed).Fprintf(os.Stderr, format+"\n", args...)
}

func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		printError("encode output: %v", err)
		return
	}
	fmt.Println(string(data))
}

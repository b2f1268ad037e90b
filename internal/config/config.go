// Package config holds the typed application configuration and its
// loading from file and environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/genvault/genvault/internal/models"
)

// Config holds all application configuration.
type Config struct {
	// Cloud provider selection and credentials
	Provider ProviderConfig `json:"provider" mapstructure:"provider"`

	// Local paths
	Storage StorageConfig `json:"storage" mapstructure:"storage"`

	// Sync behavior
	Sync SyncConfig `json:"sync" mapstructure:"sync"`

	// Unlock rate limiting
	RateLimit RateLimitConfig `json:"rate_limit" mapstructure:"rate_limit"`

	// Credential envelope TTL
	Envelope EnvelopeConfig `json:"envelope" mapstructure:"envelope"`

	// Logging
	Log LogConfig `json:"log" mapstructure:"log"`
}

// ProviderConfig selects and configures the cloud provider.
type ProviderConfig struct {
	// Name of the active provider: "oauth2" or "basic".
	Name string `json:"name" mapstructure:"name"`

	BaseURL   string        `json:"base_url" mapstructure:"base_url"`
	Timeout   time.Duration `json:"timeout" mapstructure:"timeout"`
	UserAgent string        `json:"user_agent" mapstructure:"user_agent"`

	// OAuth2 token exchange
	TokenURL     string `json:"token_url,omitempty" mapstructure:"token_url"`
	ClientID     string `json:"client_id,omitempty" mapstructure:"client_id"`
	ClientSecret string `json:"client_secret,omitempty" mapstructure:"client_secret"`
	RefreshToken string `json:"refresh_token,omitempty" mapstructure:"refresh_token"`

	// Basic auth
	Username string `json:"username,omitempty" mapstructure:"username"`
	Password string `json:"password,omitempty" mapstructure:"password"`

	// Optional change-feed endpoint for watch mode
	WatchURL string `json:"watch_url,omitempty" mapstructure:"watch_url"`
}

// StorageConfig for local file paths.
type StorageConfig struct {
	DataDir   string `json:"data_dir" mapstructure:"data_dir"`     // Base directory for all data
	VaultsDir string `json:"vaults_dir" mapstructure:"vaults_dir"` // Vault records
	StateDir  string `json:"state_dir" mapstructure:"state_dir"`   // Sync metadata
	SecretDir string `json:"secret_dir" mapstructure:"secret_dir"` // Credential envelopes

	// StateBackend selects sync metadata storage: "json" or "sqlite".
	StateBackend string `json:"state_backend" mapstructure:"state_backend"`
}

// SyncConfig for synchronization behavior.
type SyncConfig struct {
	DeviceID      string        `json:"device_id" mapstructure:"device_id"`
	RetryAttempts int           `json:"retry_attempts" mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `json:"retry_delay" mapstructure:"retry_delay"`
}

// RateLimitConfig for the unlock gate.
type RateLimitConfig struct {
	MaxAttempts int           `json:"max_attempts" mapstructure:"max_attempts"`
	Lockout     time.Duration `json:"lockout" mapstructure:"lockout"`
}

// EnvelopeConfig for stored-credential expiry.
type EnvelopeConfig struct {
	TTL time.Duration `json:"ttl" mapstructure:"ttl"`
}

// LogConfig for logging behavior.
type LogConfig struct {
	Level  string `json:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `json:"format" mapstructure:"format"` // text, json
	File   string `json:"file" mapstructure:"file"`     // Log file path (empty = stderr)
}

// DefaultConfig returns config with sensible defaults.
func DefaultConfig() *Config {
	dataDir := ".genvault"

	return &Config{
		Provider: ProviderConfig{
			Name:      "basic",
			Timeout:   30 * time.Second,
			UserAgent: "genvault/1.0",
		},
		Storage: StorageConfig{
			DataDir:      dataDir,
			VaultsDir:    filepath.Join(dataDir, "vaults"),
			StateDir:     filepath.Join(dataDir, "state"),
			SecretDir:    filepath.Join(dataDir, "secrets"),
			StateBackend: "json",
		},
		Sync: SyncConfig{
			RetryAttempts: 3,
			RetryDelay:    time.Second,
		},
		RateLimit: RateLimitConfig{
			MaxAttempts: 5,
			Lockout:     5 * time.Minute,
		},
		Envelope: EnvelopeConfig{
			TTL: 30 * 24 * time.Hour,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	switch c.Provider.Name {
	case "oauth2", "basic":
	default:
		return fmt.Errorf("%w: unknown provider %q", models.ErrInvalidConfig, c.Provider.Name)
	}

	if c.Provider.BaseURL == "" {
		return fmt.Errorf("%w: provider.base_url is required", models.ErrInvalidConfig)
	}
	if c.Provider.Timeout <= 0 {
		return errors.New("provider.timeout must be positive")
	}
	if c.Provider.Name == "oauth2" && c.Provider.TokenURL == "" {
		return fmt.Errorf("%w: provider.token_url is required for oauth2", models.ErrInvalidConfig)
	}

	switch c.Storage.StateBackend {
	case "json", "sqlite":
	default:
		return fmt.Errorf("%w: unknown state backend %q", models.ErrInvalidConfig, c.Storage.StateBackend)
	}

	if c.Sync.RetryAttempts < 0 {
		return errors.New("sync.retry_attempts must not be negative")
	}
	if c.RateLimit.MaxAttempts <= 0 {
		return errors.New("rate_limit.max_attempts must be positive")
	}
	if c.RateLimit.Lockout <= 0 {
		return errors.New("rate_limit.lockout must be positive")
	}
	if c.Envelope.TTL <= 0 {
		return errors.New("envelope.ttl must be positive")
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[c.Log.Level] {
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		return fmt.Errorf("invalid log format: %s", c.Log.Format)
	}

	return nil
}

// EnsureDirectories creates required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDir,
		c.Storage.VaultsDir,
		c.Storage.StateDir,
		c.Storage.SecretDir,
	}

	if c.Log.File != "" {
		dirs = append(dirs, filepath.Dir(c.Log.File))
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	return nil
}

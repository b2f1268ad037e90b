package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/spf13/viper"
)

// Loader reads configuration from file and environment and layers it onto
// the defaults.
type Loader struct {
	configPath string
	envPrefix  string
}

// NewLoader creates a config loader. An empty path makes it probe the
// default locations.
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
		envPrefix:  "GENVAULT",
	}
}

// Load builds the effective configuration: defaults, then config file,
// then environment variables (GENVAULT_ prefix, dots as underscores).
func (l *Loader) Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(l.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if l.configPath != "" {
		v.SetConfigFile(l.configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	} else if path := l.findConfig(); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// Environment variables only materialize through viper when the key is
	// known; binding every config key keeps AutomaticEnv honest.
	for _, key := range configKeys() {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env for %s: %w", key, err)
		}
	}

	var loaded Config
	if err := v.Unmarshal(&loaded); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg := DefaultConfig()
	if err := mergo.Merge(cfg, loaded, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("merge config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// findConfig probes the default config file locations.
func (l *Loader) findConfig() string {
	paths := []string{
		"genvault.json",
		".genvault.json",
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(homeDir, ".config", "genvault", "config.json"),
			filepath.Join(homeDir, ".genvault", "config.json"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// configKeys lists every settable key, for env binding.
func configKeys() []string {
	return []string{
		"provider.name",
		"provider.base_url",
		"provider.timeout",
		"provider.user_agent",
		"provider.token_url",
		"provider.client_id",
		"provider.client_secret",
		"provider.refresh_token",
		"provider.username",
		"provider.password",
		"provider.watch_url",
		"storage.data_dir",
		"storage.vaults_dir",
		"storage.state_dir",
		"storage.secret_dir",
		"storage.state_backend",
		"sync.device_id",
		"sync.retry_attempts",
		"sync.retry_delay",
		"rate_limit.max_attempts",
		"rate_limit.lockout",
		"envelope.ttl",
		"log.level",
		"log.format",
		"log.file",
	}
}

// WriteExample writes a starter config file with the defaults filled in.
func WriteExample(path string) error {
	if _, err := os.Stat(path); err == nil {
		return errors.New("config file already exists")
	}

	v := viper.New()
	cfg := DefaultConfig()

	v.Set("provider", map[string]interface{}{
		"name":       cfg.Provider.Name,
		"base_url":   "https://storage.example.com",
		"timeout":    cfg.Provider.Timeout.String(),
		"user_agent": cfg.Provider.UserAgent,
	})
	v.Set("storage", map[string]interface{}{
		"data_dir":      cfg.Storage.DataDir,
		"state_backend": cfg.Storage.StateBackend,
	})
	v.Set("log", map[string]interface{}{
		"level":  cfg.Log.Level,
		"format": cfg.Log.Format,
	})

	return v.WriteConfigAs(path)
}

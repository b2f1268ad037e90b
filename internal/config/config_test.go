package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genvault/genvault/internal/models"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Provider.BaseURL = "https://storage.example.com"
	return cfg
}

func TestDefaultConfigValidatesWithBaseURL(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown provider", func(c *Config) { c.Provider.Name = "ftp" }},
		{"missing base url", func(c *Config) { c.Provider.BaseURL = "" }},
		{"oauth2 without token url", func(c *Config) { c.Provider.Name = "oauth2"; c.Provider.TokenURL = "" }},
		{"unknown state backend", func(c *Config) { c.Storage.StateBackend = "etcd" }},
		{"zero rate limit attempts", func(c *Config) { c.RateLimit.MaxAttempts = 0 }},
		{"zero lockout", func(c *Config) { c.RateLimit.Lockout = 0 }},
		{"zero envelope ttl", func(c *Config) { c.Envelope.TTL = 0 }},
		{"bad log level", func(c *Config) { c.Log.Level = "trace" }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateInvalidConfigSentinel(t *testing.T) {
	cfg := validConfig()
	cfg.Provider.Name = "ftp"

	assert.ErrorIs(t, cfg.Validate(), models.ErrInvalidConfig)
}

func TestLoaderFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "genvault.json")
	content := `{
  "provider": {
    "name": "oauth2",
    "base_url": "https://cloud.example.com",
    "token_url": "https://cloud.example.com/oauth/token",
    "refresh_token": "rt-1"
  },
  "storage": {
    "state_backend": "sqlite"
  },
  "rate_limit": {
    "max_attempts": 10
  }
}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)

	assert.Equal(t, "oauth2", cfg.Provider.Name)
	assert.Equal(t, "https://cloud.example.com", cfg.Provider.BaseURL)
	assert.Equal(t, "sqlite", cfg.Storage.StateBackend)
	assert.Equal(t, 10, cfg.RateLimit.MaxAttempts)

	// Untouched keys keep their defaults.
	assert.Equal(t, 30*time.Second, cfg.Provider.Timeout)
	assert.Equal(t, 5*time.Minute, cfg.RateLimit.Lockout)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoaderEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "genvault.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"provider":{"base_url":"https://file.example.com"}}`), 0600))

	t.Setenv("GENVAULT_PROVIDER_BASE_URL", "https://env.example.com")
	t.Setenv("GENVAULT_LOG_LEVEL", "debug")

	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)

	assert.Equal(t, "https://env.example.com", cfg.Provider.BaseURL, "environment beats the file")
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoaderInvalidFileContents(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "genvault.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"provider":{"name":"ftp","base_url":"https://x"}}`), 0600))

	_, err := NewLoader(path).Load()
	assert.ErrorIs(t, err, models.ErrInvalidConfig)
}

func TestLoaderMissingExplicitFile(t *testing.T) {
	_, err := NewLoader(filepath.Join(t.TempDir(), "absent.json")).Load()
	assert.Error(t, err)
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := validConfig()
	cfg.Storage.DataDir = filepath.Join(dir, "data")
	cfg.Storage.VaultsDir = filepath.Join(dir, "data", "vaults")
	cfg.Storage.StateDir = filepath.Join(dir, "data", "state")
	cfg.Storage.SecretDir = filepath.Join(dir, "data", "secrets")

	require.NoError(t, cfg.EnsureDirectories())

	for _, d := range []string{cfg.Storage.DataDir, cfg.Storage.VaultsDir, cfg.Storage.StateDir, cfg.Storage.SecretDir} {
		info, err := os.Stat(d)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestWriteExample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genvault.json")

	require.NoError(t, WriteExample(path))

	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)
	assert.Equal(t, "basic", cfg.Provider.Name)
	assert.Equal(t, "https://storage.example.com", cfg.Provider.BaseURL)

	assert.Error(t, WriteExample(path), "refuses to overwrite")
}

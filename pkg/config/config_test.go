package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)

	// Server defaults
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, Duration(10*time.Second), cfg.Server.ShutdownTimeout)

	// Limiter defaults
	assert.Equal(t, AlgorithmSlidingLog, cfg.Limiter.Algorithm)
	assert.Equal(t, 5, cfg.Limiter.MaxCalls)
	assert.Equal(t, Duration(60*time.Second), cfg.Limiter.Window)
	assert.Equal(t, Duration(time.Minute), cfg.Limiter.SweepInterval)
	assert.Equal(t, 32, cfg.Limiter.Shards)

	// Identity defaults
	assert.Equal(t, StrategyAddress, cfg.Identity.Strategy)
	assert.Equal(t, "X-API-Key", cfg.Identity.Header)
	assert.False(t, cfg.Identity.TrustForwardedFor)

	// Logging defaults
	assert.Equal(t, "info", cfg.Logging.Level)

	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty port", func(c *Config) { c.Server.Port = "" }},
		{"unknown algorithm", func(c *Config) { c.Limiter.Algorithm = "leaky_bucket" }},
		{"zero max calls", func(c *Config) { c.Limiter.MaxCalls = 0 }},
		{"zero window", func(c *Config) { c.Limiter.Window = 0 }},
		{"negative retention", func(c *Config) { c.Limiter.Retention = Duration(-time.Second) }},
		{"zero sweep interval", func(c *Config) { c.Limiter.SweepInterval = 0 }},
		{"zero shards", func(c *Config) { c.Limiter.Shards = 0 }},
		{"bad override", func(c *Config) {
			c.Limiter.Overrides = map[string]BudgetConfig{"k": {MaxCalls: 0, Window: Duration(time.Minute)}}
		}},
		{"unknown strategy", func(c *Config) { c.Identity.Strategy = "fingerprint" }},
		{"credential strategy without keys", func(c *Config) { c.Identity.Strategy = StrategyCredential }},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateCredentialStrategy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Identity.Strategy = StrategyCredential
	cfg.Credentials.Keys = []string{"api_key_1"}
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("GATEKEEP_PORT", "9090")
	t.Setenv("GATEKEEP_ALGORITHM", AlgorithmFixedWindow)
	t.Setenv("GATEKEEP_MAX_CALLS", "25")
	t.Setenv("GATEKEEP_WINDOW", "30s")
	t.Setenv("GATEKEEP_RETENTION", "10m")
	t.Setenv("GATEKEEP_IDENTITY_STRATEGY", StrategyCredential)
	t.Setenv("GATEKEEP_CREDENTIAL_HEADER", "X-Client-Key")
	t.Setenv("GATEKEEP_TRUST_FORWARDED_FOR", "TRUE")
	t.Setenv("GATEKEEP_API_KEYS", "api_key_1, api_key_2 ,")
	t.Setenv("GATEKEEP_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, AlgorithmFixedWindow, cfg.Limiter.Algorithm)
	assert.Equal(t, 25, cfg.Limiter.MaxCalls)
	assert.Equal(t, Duration(30*time.Second), cfg.Limiter.Window)
	assert.Equal(t, Duration(10*time.Minute), cfg.Limiter.Retention)
	assert.Equal(t, StrategyCredential, cfg.Identity.Strategy)
	assert.Equal(t, "X-Client-Key", cfg.Identity.Header)
	assert.True(t, cfg.Identity.TrustForwardedFor)
	assert.Equal(t, []string{"api_key_1", "api_key_2"}, cfg.Credentials.Keys)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromEnvIgnoresInvalidValues(t *testing.T) {
	t.Setenv("GATEKEEP_MAX_CALLS", "not-a-number")
	t.Setenv("GATEKEEP_WINDOW", "soon")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, 5, cfg.Limiter.MaxCalls)
	assert.Equal(t, Duration(60*time.Second), cfg.Limiter.Window)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
server:
  port: "7070"
limiter:
  algorithm: fixed_window
  max_calls: 100
  overrides:
    api_key_1:
      max_calls: 5
      window: 60s
identity:
  strategy: credential
credentials:
  keys:
    - api_key_1
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, AlgorithmFixedWindow, cfg.Limiter.Algorithm)
	assert.Equal(t, 100, cfg.Limiter.MaxCalls)
	assert.Equal(t, StrategyCredential, cfg.Identity.Strategy)
	assert.Equal(t, []string{"api_key_1"}, cfg.Credentials.Keys)
	require.Contains(t, cfg.Limiter.Overrides, "api_key_1")
	assert.Equal(t, 5, cfg.Limiter.Overrides["api_key_1"].MaxCalls)
}

func TestLoadFromFileMissingPathIsError(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, cfg.LoadFromFile("/nonexistent/config.yaml"))
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Server.Port = "6060"
	cfg.Limiter.MaxCalls = 42
	require.NoError(t, cfg.Save(path))

	loaded := DefaultConfig()
	require.NoError(t, loaded.LoadFromFile(path))
	assert.Equal(t, "6060", loaded.Server.Port)
	assert.Equal(t, 42, loaded.Limiter.MaxCalls)
}

func TestRetentionHorizon(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Limiter.Window = Duration(time.Minute)
	cfg.Limiter.Overrides = map[string]BudgetConfig{
		"slow": {MaxCalls: 2, Window: Duration(10 * time.Minute)},
	}

	// Unset retention derives from the largest window
	cfg.Limiter.Retention = 0
	assert.Equal(t, 30*time.Minute, cfg.RetentionHorizon())

	cfg.Limiter.Retention = Duration(time.Hour)
	assert.Equal(t, time.Hour, cfg.RetentionHorizon())
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MergeCommandLineFlags(map[string]interface{}{
		"port":      "5050",
		"algorithm": AlgorithmFixedWindow,
		"max-calls": 7,
		"window":    90 * time.Second,
		"log-level": "warn",
	})

	assert.Equal(t, "5050", cfg.Server.Port)
	assert.Equal(t, AlgorithmFixedWindow, cfg.Limiter.Algorithm)
	assert.Equal(t, 7, cfg.Limiter.MaxCalls)
	assert.Equal(t, Duration(90*time.Second), cfg.Limiter.Window)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Algorithm names accepted by LimiterConfig.Algorithm.
const (
	AlgorithmSlidingLog  = "sliding_log"
	AlgorithmFixedWindow = "fixed_window"
)

// Identity strategy names accepted by IdentityConfig.Strategy.
const (
	StrategyAddress    = "address"
	StrategyCredential = "credential"
)

// Config holds all configuration options for the admission engine
type Config struct {
	// HTTP server settings
	Server ServerConfig `yaml:"server" json:"server"`

	// Rate limiting engine configuration
	Limiter LimiterConfig `yaml:"limiter" json:"limiter"`

	// Identity resolution configuration
	Identity IdentityConfig `yaml:"identity" json:"identity"`

	// Known credentials for the credential strategy
	Credentials CredentialsConfig `yaml:"credentials" json:"credentials"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// ServerConfig holds the transport shell settings
type ServerConfig struct {
	Port            string        `yaml:"port" json:"port"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// LimiterConfig holds the engine's budgets and store tuning
type LimiterConfig struct {
	// Algorithm selects the window variant: sliding_log or fixed_window
	Algorithm string `yaml:"algorithm" json:"algorithm"`

	// MaxCalls and Window form the default budget for every identity
	// without an override
	MaxCalls int           `yaml:"max_calls" json:"max_calls"`
	Window   Duration      `yaml:"window" json:"window"`

	// Overrides are per-credential budgets
	Overrides map[string]BudgetConfig `yaml:"overrides" json:"overrides"`

	// Retention is how long an idle identity's state is kept before
	// eviction. Zero means several multiples of the largest window.
	Retention Duration `yaml:"retention" json:"retention"`

	// SweepInterval is how often the background janitor runs
	SweepInterval Duration `yaml:"sweep_interval" json:"sweep_interval"`

	// Shards is the number of independently locked identity maps
	Shards int `yaml:"shards" json:"shards"`
}

// BudgetConfig is one per-credential budget override
type BudgetConfig struct {
	MaxCalls int      `yaml:"max_calls" json:"max_calls"`
	Window   Duration `yaml:"window" json:"window"`
}

// IdentityConfig holds identity resolution settings
type IdentityConfig struct {
	// Strategy selects how identities are derived: address or credential
	Strategy string `yaml:"strategy" json:"strategy"`

	// Header is the request header carrying the credential
	Header string `yaml:"header" json:"header"`

	// TrustForwardedFor enables reading the client address from
	// X-Forwarded-For, for deployments behind a trusted proxy
	TrustForwardedFor bool `yaml:"trust_forwarded_for" json:"trust_forwarded_for"`
}

// CredentialsConfig holds the known-credential set
type CredentialsConfig struct {
	Keys []string `yaml:"keys" json:"keys"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Limiter: LimiterConfig{
			Algorithm:     AlgorithmSlidingLog,
			MaxCalls:      5,
			Window:        Duration(60 * time.Second),
			Overrides:     map[string]BudgetConfig{},
			Retention:     0, // derived from the largest window
			SweepInterval: Duration(time.Minute),
			Shards:        32,
		},
		Identity: IdentityConfig{
			Strategy:          StrategyAddress,
			Header:            "X-API-Key",
			TrustForwardedFor: false,
		},
		Credentials: CredentialsConfig{},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if port := os.Getenv("GATEKEEP_PORT"); port != "" {
		c.Server.Port = port
	}

	if algorithm := os.Getenv("GATEKEEP_ALGORITHM"); algorithm != "" {
		c.Limiter.Algorithm = algorithm
	}
	if maxCalls := os.Getenv("GATEKEEP_MAX_CALLS"); maxCalls != "" {
		var val int
		fmt.Sscanf(maxCalls, "%d", &val)
		if val > 0 {
			c.Limiter.MaxCalls = val
		}
	}
	if window := os.Getenv("GATEKEEP_WINDOW"); window != "" {
		if d, err := time.ParseDuration(window); err == nil && d > 0 {
			c.Limiter.Window = Duration(d)
		}
	}
	if retention := os.Getenv("GATEKEEP_RETENTION"); retention != "" {
		if d, err := time.ParseDuration(retention); err == nil && d > 0 {
			c.Limiter.Retention = Duration(d)
		}
	}
	if interval := os.Getenv("GATEKEEP_SWEEP_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil && d > 0 {
			c.Limiter.SweepInterval = Duration(d)
		}
	}

	if strategy := os.Getenv("GATEKEEP_IDENTITY_STRATEGY"); strategy != "" {
		c.Identity.Strategy = strategy
	}
	if header := os.Getenv("GATEKEEP_CREDENTIAL_HEADER"); header != "" {
		c.Identity.Header = header
	}
	if trust := os.Getenv("GATEKEEP_TRUST_FORWARDED_FOR"); trust != "" {
		c.Identity.TrustForwardedFor = strings.ToLower(trust) == "true"
	}

	if keys := os.Getenv("GATEKEEP_API_KEYS"); keys != "" {
		c.Credentials.Keys = nil
		for _, key := range strings.Split(keys, ",") {
			if key = strings.TrimSpace(key); key != "" {
				c.Credentials.Keys = append(c.Credentials.Keys, key)
			}
		}
	}

	if logLevel := os.Getenv("GATEKEEP_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFile := os.Getenv("GATEKEEP_LOG_FILE"); logFile != "" {
		c.Logging.File = logFile
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	// Check in order of precedence
	locations := []string{
		".gatekeep.yaml",
		".gatekeep.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "gatekeep", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "gatekeep", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".gatekeep.yaml"),
		filepath.Join(os.Getenv("HOME"), ".gatekeep.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port == "" {
		errs = append(errs, errors.New("server port is required"))
	}

	switch c.Limiter.Algorithm {
	case AlgorithmSlidingLog, AlgorithmFixedWindow:
	default:
		errs = append(errs, fmt.Errorf("unknown algorithm %q", c.Limiter.Algorithm))
	}
	if c.Limiter.MaxCalls <= 0 {
		errs = append(errs, errors.New("max calls must be positive"))
	}
	if c.Limiter.Window <= 0 {
		errs = append(errs, errors.New("window must be positive"))
	}
	for key, b := range c.Limiter.Overrides {
		if b.MaxCalls <= 0 || b.Window <= 0 {
			errs = append(errs, fmt.Errorf("override for %q must have positive values", key))
		}
	}
	if c.Limiter.Retention < 0 {
		errs = append(errs, errors.New("retention cannot be negative"))
	}
	if c.Limiter.SweepInterval <= 0 {
		errs = append(errs, errors.New("sweep interval must be positive"))
	}
	if c.Limiter.Shards <= 0 {
		errs = append(errs, errors.New("shard count must be positive"))
	}

	switch c.Identity.Strategy {
	case StrategyAddress:
	case StrategyCredential:
		if len(c.Credentials.Keys) == 0 {
			errs = append(errs, errors.New("credential strategy requires at least one API key"))
		}
		if c.Identity.Header == "" {
			errs = append(errs, errors.New("credential strategy requires a header name"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown identity strategy %q", c.Identity.Strategy))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// RetentionHorizon returns the effective eviction horizon: the configured
// retention, or several multiples of the largest window when unset.
func (c *Config) RetentionHorizon() time.Duration {
	if c.Limiter.Retention > 0 {
		return c.Limiter.Retention.Std()
	}
	max := c.Limiter.Window
	for _, b := range c.Limiter.Overrides {
		if b.Window > max {
			max = b.Window
		}
	}
	return 3 * max.Std()
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if port, ok := flags["port"].(string); ok && port != "" {
		c.Server.Port = port
	}
	if algorithm, ok := flags["algorithm"].(string); ok && algorithm != "" {
		c.Limiter.Algorithm = algorithm
	}
	if maxCalls, ok := flags["max-calls"].(int); ok && maxCalls > 0 {
		c.Limiter.MaxCalls = maxCalls
	}
	if window, ok := flags["window"].(time.Duration); ok && window > 0 {
		c.Limiter.Window = Duration(window)
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".gatekeep.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	// Override with environment variables (includes values from .env)
	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

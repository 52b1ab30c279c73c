package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/steveyegge/patterns/internal/ai"
	"github.com/steveyegge/patterns/internal/cost"
	"github.com/steveyegge/patterns/internal/refine"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultBaseDir is the per-project state directory
	DefaultBaseDir = ".patterns"
	// DefaultConfigFile is the default configuration filename
	DefaultConfigFile = "config.yaml"
)

// Config is the top-level configuration for the patterns CLI
type Config struct {
	// Model is the Anthropic model used by every collaborator
	Model string `yaml:"model"`

	// Database holds run history settings
	Database DatabaseConfig `yaml:"database"`

	// Refine holds the refinement loop bounds
	Refine refine.Config `yaml:"refine"`

	// AI holds retry, circuit breaker and throughput settings
	AI ai.RetryConfig `yaml:"ai"`

	// Cost holds token and cost budget settings
	Cost cost.Config `yaml:"cost"`

	// path is where the config was loaded from ("" when defaults only)
	path string
}

// DatabaseConfig holds run history settings
type DatabaseConfig struct {
	// Path is the SQLite database file path
	// Default: .patterns/patterns.db
	Path string `yaml:"path"`

	// Retention controls pruning of old progress events
	Retention RetentionConfig `yaml:"retention"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Model: ai.ModelSonnet,
		Database: DatabaseConfig{
			Path:      filepath.Join(DefaultBaseDir, "patterns.db"),
			Retention: DefaultRetentionConfig(),
		},
		Refine: refine.DefaultConfig(),
		AI:     ai.DefaultRetryConfig(),
		Cost:   *cost.DefaultConfig(),
	}
}

// DefaultPath returns the config file path relative to the working directory
func DefaultPath() string {
	return filepath.Join(DefaultBaseDir, DefaultConfigFile)
}

// Load reads the YAML file at path over the defaults, then applies
// PATTERNS_* environment overrides and validates the result.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		cfg.path = path
	case errors.Is(err, os.ErrNotExist):
		// defaults only
	default:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Path returns the file the config was loaded from, or "" for defaults
func (c *Config) Path() string {
	return c.path
}

// Save writes the config as YAML, creating the directory if needed
func (c *Config) Save(path string) error {
	if path == "" {
		path = DefaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	c.path = path
	return nil
}

// Validate checks every section
func (c *Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if err := c.Database.Retention.Validate(); err != nil {
		return fmt.Errorf("database.retention: %w", err)
	}
	if err := c.Refine.Validate(); err != nil {
		return fmt.Errorf("refine: %w", err)
	}
	if err := c.AI.Validate(); err != nil {
		return fmt.Errorf("ai: %w", err)
	}
	if err := c.Cost.Validate(); err != nil {
		return fmt.Errorf("cost: %w", err)
	}
	return nil
}

// applyEnv overrides fields from the environment.
//
// Environment variables:
//   - PATTERNS_MODEL: Anthropic model name
//   - PATTERNS_DB: SQLite database path
//   - PATTERNS_MAX_ITERATIONS: refinement iteration budget
//   - PATTERNS_SCORE_THRESHOLD: acceptance score (1-10)
//   - PATTERNS_AI_MAX_RETRIES: retries per AI call
//   - PATTERNS_AI_MAX_CONCURRENT: concurrent AI calls (0 = unlimited)
//   - PATTERNS_AI_REQUESTS_PER_MINUTE: request rate limit (0 = unlimited)
//   - PATTERNS_EVENT_RETENTION_DAYS: days of progress events to keep
//   - PATTERNS_COST_*: see cost.Config.ApplyEnv
//
// Returns an error naming the variable if a value cannot be parsed.
func (c *Config) applyEnv() error {
	if err := parseEnvString("PATTERNS_MODEL", &c.Model); err != nil {
		return err
	}
	if err := parseEnvString("PATTERNS_DB", &c.Database.Path); err != nil {
		return err
	}
	if err := parseEnvInt("PATTERNS_MAX_ITERATIONS", &c.Refine.MaxIterations); err != nil {
		return err
	}
	if err := parseEnvInt("PATTERNS_SCORE_THRESHOLD", &c.Refine.ScoreThreshold); err != nil {
		return err
	}
	if err := parseEnvInt("PATTERNS_AI_MAX_RETRIES", &c.AI.MaxRetries); err != nil {
		return err
	}
	if err := parseEnvInt("PATTERNS_AI_MAX_CONCURRENT", &c.AI.MaxConcurrentCalls); err != nil {
		return err
	}
	if err := parseEnvInt("PATTERNS_AI_REQUESTS_PER_MINUTE", &c.AI.RequestsPerMinute); err != nil {
		return err
	}
	if err := parseEnvInt("PATTERNS_EVENT_RETENTION_DAYS", &c.Database.Retention.Days); err != nil {
		return err
	}
	c.Cost.ApplyEnv()
	return nil
}

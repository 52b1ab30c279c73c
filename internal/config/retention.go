package config

import (
	"fmt"
	"os"
	"strconv"
)

// RetentionConfig controls pruning of old progress events
type RetentionConfig struct {
	// Days is the retention period for progress events
	// Default: 30, Range: 1-365
	Days int `yaml:"days"`

	// CleanupEnabled prunes expired events when the CLI opens the database
	// Default: true
	CleanupEnabled bool `yaml:"cleanup_enabled"`
}

// DefaultRetentionConfig returns the default retention configuration
func DefaultRetentionConfig() RetentionConfig {
	return RetentionConfig{
		Days:           30,
		CleanupEnabled: true,
	}
}

// Validate checks if the configuration has valid values
func (c RetentionConfig) Validate() error {
	if c.Days < 1 || c.Days > 365 {
		return fmt.Errorf("days must be between 1 and 365 (got %d)", c.Days)
	}
	return nil
}

// parseEnvInt parses an int from an environment variable
func parseEnvInt(key string, dest *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvString parses a string from an environment variable
func parseEnvString(key string, dest *string) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	*dest = value
	return nil
}

package cost

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds cost budgeting configuration
type Config struct {
	// Enabled controls whether cost budgeting is active
	// Default: true
	Enabled bool `json:"enabled" yaml:"enabled"`

	// MaxTokensPerHour is the maximum number of tokens (input + output) allowed per hour
	// 0 = unlimited
	// Default: 200000
	MaxTokensPerHour int64 `json:"max_tokens_per_hour" yaml:"max_tokens_per_hour"`

	// MaxTokensPerScope is the maximum number of tokens allowed per scope
	// (a run ID, or "chat" / "route" for interactive use) within one budget
	// window. Scope totals reset with the hourly counters, so the long-lived
	// "chat" and "route" scopes are never locked out for good.
	// 0 = unlimited
	// Default: 60000 (a 3-iteration run with long itineraries stays well under)
	MaxTokensPerScope int64 `json:"max_tokens_per_scope" yaml:"max_tokens_per_scope"`

	// MaxCostPerHour is the maximum cost in USD allowed per hour
	// 0.0 = unlimited (use token limits instead)
	// Default: 3.00
	MaxCostPerHour float64 `json:"max_cost_per_hour" yaml:"max_cost_per_hour"`

	// AlertThreshold is the fraction of budget usage that triggers alerts
	// Default: 0.80
	AlertThreshold float64 `json:"alert_threshold" yaml:"alert_threshold"`

	// BudgetResetInterval is how often the hourly budget resets
	// Default: 1 hour
	BudgetResetInterval time.Duration `json:"budget_reset_interval" yaml:"budget_reset_interval"`

	// PersistStatePath is where budget state is persisted between invocations
	// Empty disables persistence
	// Default: .patterns/cost_state.json
	PersistStatePath string `json:"persist_state_path" yaml:"persist_state_path"`

	// InputTokenCost is the cost per 1M input tokens (in USD)
	// Default: $3.00 for Claude Sonnet 4.5
	InputTokenCost float64 `json:"input_token_cost" yaml:"input_token_cost"`

	// OutputTokenCost is the cost per 1M output tokens (in USD)
	// Default: $15.00 for Claude Sonnet 4.5
	OutputTokenCost float64 `json:"output_token_cost" yaml:"output_token_cost"`
}

// DefaultConfig returns default cost budgeting configuration
func DefaultConfig() *Config {
	return &Config{
		Enabled:             true,
		MaxTokensPerHour:    200000,
		MaxTokensPerScope:   60000,
		MaxCostPerHour:      3.00,
		AlertThreshold:      0.80,
		BudgetResetInterval: time.Hour,
		PersistStatePath:    ".patterns/cost_state.json",
		InputTokenCost:      3.00,
		OutputTokenCost:     15.00,
	}
}

// ApplyEnv overrides fields from environment variables.
// Prefix: PATTERNS_COST_
// Unparseable or out-of-range values are ignored.
func (c *Config) ApplyEnv() {
	if val := os.Getenv("PATTERNS_COST_ENABLED"); val != "" {
		c.Enabled = parseBool(val)
	}

	if val := os.Getenv("PATTERNS_COST_MAX_TOKENS_PER_HOUR"); val != "" {
		if tokens, err := strconv.ParseInt(val, 10, 64); err == nil && tokens >= 0 {
			c.MaxTokensPerHour = tokens
		}
	}

	if val := os.Getenv("PATTERNS_COST_MAX_TOKENS_PER_SCOPE"); val != "" {
		if tokens, err := strconv.ParseInt(val, 10, 64); err == nil && tokens >= 0 {
			c.MaxTokensPerScope = tokens
		}
	}

	if val := os.Getenv("PATTERNS_COST_MAX_COST_PER_HOUR"); val != "" {
		if cost, err := strconv.ParseFloat(val, 64); err == nil && cost >= 0 {
			c.MaxCostPerHour = cost
		}
	}

	if val := os.Getenv("PATTERNS_COST_ALERT_THRESHOLD"); val != "" {
		if threshold, err := strconv.ParseFloat(val, 64); err == nil && threshold > 0 && threshold <= 1.0 {
			c.AlertThreshold = threshold
		}
	}

	if val := os.Getenv("PATTERNS_COST_BUDGET_RESET_INTERVAL"); val != "" {
		if duration, err := time.ParseDuration(val); err == nil && duration > 0 {
			c.BudgetResetInterval = duration
		}
	}

	if val, ok := os.LookupEnv("PATTERNS_COST_PERSIST_STATE_PATH"); ok {
		c.PersistStatePath = val
	}

	if val := os.Getenv("PATTERNS_COST_INPUT_TOKEN_COST"); val != "" {
		if cost, err := strconv.ParseFloat(val, 64); err == nil && cost >= 0 {
			c.InputTokenCost = cost
		}
	}

	if val := os.Getenv("PATTERNS_COST_OUTPUT_TOKEN_COST"); val != "" {
		if cost, err := strconv.ParseFloat(val, 64); err == nil && cost >= 0 {
			c.OutputTokenCost = cost
		}
	}
}

// LoadFromEnv returns the defaults with environment overrides applied.
// An invalid combination falls back to the defaults with a warning.
func LoadFromEnv() *Config {
	cfg := DefaultConfig()
	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: invalid cost config from environment: %v (using defaults)\n", err)
		return DefaultConfig()
	}
	return cfg
}

// Validate checks that the configuration has safe and reasonable values
func (c *Config) Validate() error {
	if c.MaxTokensPerHour < 0 {
		return fmt.Errorf("max_tokens_per_hour must be non-negative, got %d", c.MaxTokensPerHour)
	}
	if c.MaxTokensPerScope < 0 {
		return fmt.Errorf("max_tokens_per_scope must be non-negative, got %d", c.MaxTokensPerScope)
	}
	if c.MaxCostPerHour < 0 {
		return fmt.Errorf("max_cost_per_hour must be non-negative, got %.2f", c.MaxCostPerHour)
	}
	if c.AlertThreshold <= 0 || c.AlertThreshold > 1.0 {
		return fmt.Errorf("alert_threshold must be between 0 and 1, got %.2f", c.AlertThreshold)
	}
	if c.BudgetResetInterval <= 0 {
		return fmt.Errorf("budget_reset_interval must be positive, got %v", c.BudgetResetInterval)
	}
	if c.InputTokenCost < 0 {
		return fmt.Errorf("input_token_cost must be non-negative, got %.2f", c.InputTokenCost)
	}
	if c.OutputTokenCost < 0 {
		return fmt.Errorf("output_token_cost must be non-negative, got %.2f", c.OutputTokenCost)
	}
	return nil
}

// parseBool parses a boolean string
func parseBool(val string) bool {
	switch val {
	case "false", "0", "no", "off":
		return false
	default:
		return true
	}
}

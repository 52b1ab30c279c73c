package cost

import (
	"testing"
	"time"
)

func TestDefaultConfigValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("Default config should be valid: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"negative hourly tokens", func(c *Config) { c.MaxTokensPerHour = -1 }},
		{"negative scope tokens", func(c *Config) { c.MaxTokensPerScope = -1 }},
		{"negative hourly cost", func(c *Config) { c.MaxCostPerHour = -0.5 }},
		{"zero alert threshold", func(c *Config) { c.AlertThreshold = 0 }},
		{"alert threshold above one", func(c *Config) { c.AlertThreshold = 1.5 }},
		{"zero reset interval", func(c *Config) { c.BudgetResetInterval = 0 }},
		{"negative input price", func(c *Config) { c.InputTokenCost = -1 }},
		{"negative output price", func(c *Config) { c.OutputTokenCost = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PATTERNS_COST_ENABLED", "false")
	t.Setenv("PATTERNS_COST_MAX_TOKENS_PER_HOUR", "5000")
	t.Setenv("PATTERNS_COST_MAX_TOKENS_PER_SCOPE", "1000")
	t.Setenv("PATTERNS_COST_MAX_COST_PER_HOUR", "0.25")
	t.Setenv("PATTERNS_COST_ALERT_THRESHOLD", "0.5")
	t.Setenv("PATTERNS_COST_BUDGET_RESET_INTERVAL", "30m")
	t.Setenv("PATTERNS_COST_PERSIST_STATE_PATH", "")
	t.Setenv("PATTERNS_COST_INPUT_TOKEN_COST", "1")
	t.Setenv("PATTERNS_COST_OUTPUT_TOKEN_COST", "5")

	cfg := LoadFromEnv()
	if cfg.Enabled {
		t.Error("Expected Enabled=false")
	}
	if cfg.MaxTokensPerHour != 5000 || cfg.MaxTokensPerScope != 1000 {
		t.Errorf("Token limits not applied: %+v", cfg)
	}
	if cfg.MaxCostPerHour != 0.25 || cfg.AlertThreshold != 0.5 {
		t.Errorf("Cost limits not applied: %+v", cfg)
	}
	if cfg.BudgetResetInterval != 30*time.Minute {
		t.Errorf("Expected 30m reset interval, got %v", cfg.BudgetResetInterval)
	}
	if cfg.PersistStatePath != "" {
		t.Errorf("Expected persistence disabled, got %q", cfg.PersistStatePath)
	}
	if cfg.InputTokenCost != 1 || cfg.OutputTokenCost != 5 {
		t.Errorf("Prices not applied: %+v", cfg)
	}
}

func TestLoadFromEnvIgnoresGarbage(t *testing.T) {
	t.Setenv("PATTERNS_COST_MAX_TOKENS_PER_HOUR", "lots")
	t.Setenv("PATTERNS_COST_ALERT_THRESHOLD", "2")

	cfg := LoadFromEnv()
	def := DefaultConfig()
	if cfg.MaxTokensPerHour != def.MaxTokensPerHour {
		t.Errorf("Expected default hourly tokens, got %d", cfg.MaxTokensPerHour)
	}
	if cfg.AlertThreshold != def.AlertThreshold {
		t.Errorf("Expected default alert threshold, got %.2f", cfg.AlertThreshold)
	}
}

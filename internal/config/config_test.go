package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	def := Default()
	assert.Equal(t, def.Model, cfg.Model)
	assert.Equal(t, 3, cfg.Refine.MaxIterations)
	assert.Equal(t, 8, cfg.Refine.ScoreThreshold)
	assert.Equal(t, def.AI.MaxRetries, cfg.AI.MaxRetries)
	assert.Equal(t, "", cfg.Path())
}

func TestLoadYAMLOverlaysDefaults(t *testing.T) {
	path := writeFile(t, `
model: claude-haiku-test
database:
  path: /tmp/runs.db
  retention:
    days: 7
refine:
  max_iterations: 5
  score_threshold: 9
ai:
  max_retries: 1
  timeout: 15s
  requests_per_minute: 30
cost:
  max_tokens_per_hour: 1000
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "claude-haiku-test", cfg.Model)
	assert.Equal(t, "/tmp/runs.db", cfg.Database.Path)
	assert.Equal(t, 7, cfg.Database.Retention.Days)
	assert.Equal(t, 5, cfg.Refine.MaxIterations)
	assert.Equal(t, 9, cfg.Refine.ScoreThreshold)
	assert.Equal(t, 1, cfg.AI.MaxRetries)
	assert.Equal(t, 15*time.Second, cfg.AI.Timeout)
	assert.Equal(t, 30, cfg.AI.RequestsPerMinute)
	assert.Equal(t, int64(1000), cfg.Cost.MaxTokensPerHour)
	assert.Equal(t, path, cfg.Path())

	// Untouched fields keep their defaults
	def := Default()
	assert.Equal(t, def.AI.FailureThreshold, cfg.AI.FailureThreshold)
	assert.Equal(t, def.Cost.OutputTokenCost, cfg.Cost.OutputTokenCost)
	assert.True(t, cfg.Database.Retention.CleanupEnabled)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"zero iterations", "refine:\n  max_iterations: 0\n", "refine"},
		{"threshold out of range", "refine:\n  score_threshold: 11\n", "refine"},
		{"retention too long", "database:\n  retention:\n    days: 400\n", "retention"},
		{"bad alert threshold", "cost:\n  alert_threshold: 3\n", "cost"},
		{"malformed yaml", "refine: [unclosed\n", "failed to parse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PATTERNS_MODEL", "env-model")
	t.Setenv("PATTERNS_DB", "/tmp/env.db")
	t.Setenv("PATTERNS_MAX_ITERATIONS", "4")
	t.Setenv("PATTERNS_SCORE_THRESHOLD", "6")
	t.Setenv("PATTERNS_AI_MAX_CONCURRENT", "1")
	t.Setenv("PATTERNS_COST_MAX_TOKENS_PER_HOUR", "777")

	path := writeFile(t, "model: file-model\nrefine:\n  max_iterations: 2\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env-model", cfg.Model, "env should win over file")
	assert.Equal(t, "/tmp/env.db", cfg.Database.Path)
	assert.Equal(t, 4, cfg.Refine.MaxIterations)
	assert.Equal(t, 6, cfg.Refine.ScoreThreshold)
	assert.Equal(t, 1, cfg.AI.MaxConcurrentCalls)
	assert.Equal(t, int64(777), cfg.Cost.MaxTokensPerHour)
}

func TestEnvOverrideUnparseable(t *testing.T) {
	t.Setenv("PATTERNS_MAX_ITERATIONS", "three")

	_, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "PATTERNS_MAX_ITERATIONS"))
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.Refine.MaxIterations = 6
	cfg.AI.OpenTimeout = 45 * time.Second
	require.NoError(t, cfg.Save(path))
	assert.Equal(t, path, cfg.Path())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 6, loaded.Refine.MaxIterations)
	assert.Equal(t, 45*time.Second, loaded.AI.OpenTimeout)
}

func TestRetentionValidate(t *testing.T) {
	assert.NoError(t, DefaultRetentionConfig().Validate())
	assert.Error(t, RetentionConfig{Days: 0}.Validate())
	assert.Error(t, RetentionConfig{Days: 366}.Validate())
}

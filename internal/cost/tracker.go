package cost

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/steveyegge/patterns/internal/events"
)

// ErrBudgetExceeded is returned when an AI call would exceed a configured budget
var ErrBudgetExceeded = errors.New("cost budget exceeded")

// BudgetStatus represents the current budget state
type BudgetStatus int

const (
	// BudgetHealthy indicates normal operation - under budget limits
	BudgetHealthy BudgetStatus = iota
	// BudgetWarning indicates approaching budget limits (AlertThreshold)
	BudgetWarning
	// BudgetExceeded indicates budget limits have been exceeded
	BudgetExceeded
)

// String returns a human-readable string representation of the budget status
func (s BudgetStatus) String() string {
	switch s {
	case BudgetHealthy:
		return "HEALTHY"
	case BudgetWarning:
		return "WARNING"
	case BudgetExceeded:
		return "EXCEEDED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// BudgetState is the persisted budget tracking state
type BudgetState struct {
	HourlyTokensUsed int64     `json:"hourly_tokens_used"`
	HourlyCostUsed   float64   `json:"hourly_cost_used"`
	WindowStartTime  time.Time `json:"window_start_time"`

	// Tokens used per scope (run ID, "chat", "route") in the current window
	ScopeTokensUsed map[string]int64 `json:"scope_tokens_used"`

	TotalTokensUsed int64   `json:"total_tokens_used"`
	TotalCostUsed   float64 `json:"total_cost_used"`

	LastUpdated time.Time `json:"last_updated"`
}

// EventRecorder receives ai_usage and budget_alert events
type EventRecorder interface {
	StoreEvent(ctx context.Context, event *events.Event) error
}

// Tracker tracks AI cost budgets and enforces limits
type Tracker struct {
	config   *Config
	state    *BudgetState
	recorder EventRecorder
	mu       sync.Mutex

	lastStatus BudgetStatus
}

// NewTracker creates a new cost budget tracker. recorder may be nil.
func NewTracker(cfg *Config, recorder EventRecorder) (*Tracker, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	t := &Tracker{
		config:   cfg,
		recorder: recorder,
		state: &BudgetState{
			WindowStartTime: time.Now(),
			ScopeTokensUsed: make(map[string]int64),
			LastUpdated:     time.Now(),
		},
	}

	if err := t.loadState(); err != nil {
		slog.Warn("failed to load cost state, starting fresh", "path", cfg.PersistStatePath, "error", err)
	}
	t.checkAndResetWindow()
	t.lastStatus = t.statusLocked()

	return t, nil
}

// RecordUsage records token usage for a scope and returns the resulting budget status
func (t *Tracker) RecordUsage(ctx context.Context, scope, operation string, inputTokens, outputTokens int64) (BudgetStatus, error) {
	if !t.config.Enabled {
		return BudgetHealthy, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	totalTokens := inputTokens + outputTokens
	cost := t.calculateCost(inputTokens, outputTokens)

	t.checkAndResetWindow()

	t.state.HourlyTokensUsed += totalTokens
	t.state.HourlyCostUsed += cost
	t.state.TotalTokensUsed += totalTokens
	t.state.TotalCostUsed += cost
	t.state.LastUpdated = time.Now()
	if scope != "" {
		t.state.ScopeTokensUsed[scope] += totalTokens
	}

	if err := t.persistState(); err != nil {
		slog.Warn("failed to persist cost state", "error", err)
	}

	status := t.statusLocked()
	t.recordUsageEvent(ctx, scope, operation, inputTokens, outputTokens, cost)
	if status != t.lastStatus && status != BudgetHealthy {
		t.recordAlert(ctx, scope, status)
	}
	t.lastStatus = status

	return status, nil
}

// CheckBudget returns the current budget status without recording usage
func (t *Tracker) CheckBudget() BudgetStatus {
	if !t.config.Enabled {
		return BudgetHealthy
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.checkAndResetWindow()
	return t.statusLocked()
}

// CanProceed returns nil if another AI call fits within the budget for scope.
// Otherwise the error wraps ErrBudgetExceeded and names the limit.
func (t *Tracker) CanProceed(scope string) error {
	if !t.config.Enabled {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.checkAndResetWindow()

	if t.isHourlyTokenLimitExceeded() {
		return fmt.Errorf("%w: hourly token budget (%d/%d tokens used)",
			ErrBudgetExceeded, t.state.HourlyTokensUsed, t.config.MaxTokensPerHour)
	}
	if t.isHourlyCostLimitExceeded() {
		return fmt.Errorf("%w: hourly cost budget ($%.2f/$%.2f used)",
			ErrBudgetExceeded, t.state.HourlyCostUsed, t.config.MaxCostPerHour)
	}
	if scope != "" && t.isScopeLimitExceeded(scope) {
		return fmt.Errorf("%w: token budget for %s (%d/%d tokens used)",
			ErrBudgetExceeded, scope, t.state.ScopeTokensUsed[scope], t.config.MaxTokensPerScope)
	}
	return nil
}

// BudgetStats contains budget statistics
type BudgetStats struct {
	Status           BudgetStatus     `json:"status"`
	HourlyTokensUsed int64            `json:"hourly_tokens_used"`
	HourlyCostUsed   float64          `json:"hourly_cost_used"`
	TotalTokensUsed  int64            `json:"total_tokens_used"`
	TotalCostUsed    float64          `json:"total_cost_used"`
	Scopes           map[string]int64 `json:"scopes"`
	WindowStartTime  time.Time        `json:"window_start_time"`
	ResetsIn         time.Duration    `json:"resets_in"`
	LastUpdated      time.Time        `json:"last_updated"`
	Config           Config           `json:"config"`
}

// GetStats returns current budget statistics
func (t *Tracker) GetStats() BudgetStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.checkAndResetWindow()

	status := t.statusLocked()
	if !t.config.Enabled {
		status = BudgetHealthy
	}
	scopes := make(map[string]int64, len(t.state.ScopeTokensUsed))
	for scope, tokens := range t.state.ScopeTokensUsed {
		scopes[scope] = tokens
	}
	return BudgetStats{
		Status:           status,
		HourlyTokensUsed: t.state.HourlyTokensUsed,
		HourlyCostUsed:   t.state.HourlyCostUsed,
		TotalTokensUsed:  t.state.TotalTokensUsed,
		TotalCostUsed:    t.state.TotalCostUsed,
		Scopes:           scopes,
		WindowStartTime:  t.state.WindowStartTime,
		ResetsIn:         time.Until(t.state.WindowStartTime.Add(t.config.BudgetResetInterval)),
		LastUpdated:      t.state.LastUpdated,
		Config:           *t.config,
	}
}

// ScopeTokens returns tokens used by a scope in the current window
func (t *Tracker) ScopeTokens(scope string) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.ScopeTokensUsed[scope]
}

// Cost returns the USD estimate for the given token counts
func (t *Tracker) Cost(inputTokens, outputTokens int64) float64 {
	return t.calculateCost(inputTokens, outputTokens)
}

// statusLocked returns the current budget status (must be called with lock held)
func (t *Tracker) statusLocked() BudgetStatus {
	if t.isHourlyTokenLimitExceeded() || t.isHourlyCostLimitExceeded() {
		return BudgetExceeded
	}

	if t.config.MaxTokensPerHour > 0 {
		if float64(t.state.HourlyTokensUsed)/float64(t.config.MaxTokensPerHour) >= t.config.AlertThreshold {
			return BudgetWarning
		}
	}
	if t.config.MaxCostPerHour > 0 {
		if t.state.HourlyCostUsed/t.config.MaxCostPerHour >= t.config.AlertThreshold {
			return BudgetWarning
		}
	}
	return BudgetHealthy
}

func (t *Tracker) isHourlyTokenLimitExceeded() bool {
	return t.config.MaxTokensPerHour > 0 && t.state.HourlyTokensUsed >= t.config.MaxTokensPerHour
}

func (t *Tracker) isHourlyCostLimitExceeded() bool {
	return t.config.MaxCostPerHour > 0 && t.state.HourlyCostUsed >= t.config.MaxCostPerHour
}

func (t *Tracker) isScopeLimitExceeded(scope string) bool {
	if t.config.MaxTokensPerScope <= 0 {
		return false
	}
	return t.state.ScopeTokensUsed[scope] >= t.config.MaxTokensPerScope
}

// calculateCost calculates the cost in USD for given token usage
func (t *Tracker) calculateCost(inputTokens, outputTokens int64) float64 {
	inputCost := float64(inputTokens) * t.config.InputTokenCost / 1_000_000
	outputCost := float64(outputTokens) * t.config.OutputTokenCost / 1_000_000
	return inputCost + outputCost
}

// checkAndResetWindow resets hourly counters, including per-scope totals,
// once the window has expired. All-time totals are kept.
// MUST be called with mu held (or before the tracker is shared).
func (t *Tracker) checkAndResetWindow() {
	now := time.Now()
	if now.Sub(t.state.WindowStartTime) >= t.config.BudgetResetInterval {
		t.state.HourlyTokensUsed = 0
		t.state.HourlyCostUsed = 0
		t.state.ScopeTokensUsed = make(map[string]int64)
		t.state.WindowStartTime = now
	}
}

func (t *Tracker) persistState() error {
	if t.config.PersistStatePath == "" {
		return nil
	}

	data, err := json.MarshalIndent(t.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(t.config.PersistStatePath), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	if err := os.WriteFile(t.config.PersistStatePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	return nil
}

func (t *Tracker) loadState() error {
	if t.config.PersistStatePath == "" {
		return nil
	}

	data, err := os.ReadFile(t.config.PersistStatePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read state file: %w", err)
	}

	var state BudgetState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("failed to unmarshal state: %w", err)
	}
	if state.ScopeTokensUsed == nil {
		state.ScopeTokensUsed = make(map[string]int64)
	}
	t.state = &state
	return nil
}

func (t *Tracker) recordUsageEvent(ctx context.Context, scope, operation string, inputTokens, outputTokens int64, cost float64) {
	if t.recorder == nil {
		return
	}
	runID := scope
	if scope == "chat" || scope == "route" {
		runID = ""
	}

	event, err := events.NewAIUsageEvent(runID,
		fmt.Sprintf("%s: %d tokens ($%.4f)", operation, inputTokens+outputTokens, cost),
		events.AIUsageData{
			Operation:    operation,
			InputTokens:  inputTokens,
			OutputTokens: outputTokens,
			CostUSD:      cost,
		})
	if err != nil {
		slog.Warn("failed to build ai_usage event", "error", err)
		return
	}
	if err := t.recorder.StoreEvent(ctx, event); err != nil {
		slog.Warn("failed to store ai_usage event", "error", err)
	}
}

func (t *Tracker) recordAlert(ctx context.Context, scope string, status BudgetStatus) {
	severity := events.SeverityWarning
	if status == BudgetExceeded {
		severity = events.SeverityError
	}
	message := fmt.Sprintf("Cost budget %s: %d/%d tokens ($%.2f/$%.2f) this window",
		status, t.state.HourlyTokensUsed, t.config.MaxTokensPerHour,
		t.state.HourlyCostUsed, t.config.MaxCostPerHour)

	slog.Warn("cost budget alert", "status", status.String(), "hourly_tokens", t.state.HourlyTokensUsed, "hourly_cost", t.state.HourlyCostUsed)

	if t.recorder == nil {
		return
	}
	event := events.NewEvent(events.EventTypeBudgetAlert, "", severity, message, map[string]interface{}{
		"status":             status.String(),
		"scope":              scope,
		"hourly_tokens_used": t.state.HourlyTokensUsed,
		"hourly_cost_used":   t.state.HourlyCostUsed,
	})
	if err := t.recorder.StoreEvent(ctx, event); err != nil {
		slog.Warn("failed to store budget_alert event", "error", err)
	}
}

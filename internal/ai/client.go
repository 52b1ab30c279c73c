package ai

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/steveyegge/patterns/internal/cost"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

const (
	// ModelSonnet is the default model for planning, judging and routing
	ModelSonnet = "claude-sonnet-4-5-20250929"

	// ModelHaiku is the cost-efficient model for short answers
	ModelHaiku = "claude-3-5-haiku-20241022"

	// DefaultMaxTokens bounds a single completion
	DefaultMaxTokens = 4096
)

// CostTracker is consulted before and after every API call
type CostTracker interface {
	// CanProceed returns an error wrapping cost.ErrBudgetExceeded when scope is over budget
	CanProceed(scope string) error
	// RecordUsage records token usage for scope
	RecordUsage(ctx context.Context, scope, operation string, inputTokens, outputTokens int64) (cost.BudgetStatus, error)
}

// Config holds client configuration
type Config struct {
	APIKey      string      // Anthropic API key (if empty, reads from ANTHROPIC_API_KEY env var)
	Model       string      // Model to use (default: ModelSonnet)
	BaseURL     string      // API endpoint override (tests, proxies)
	MaxTokens   int64       // Completion limit per call (default: DefaultMaxTokens)
	Retry       RetryConfig // Retry configuration (uses defaults if zero)
	CostTracker CostTracker // Optional budget enforcement
}

// Client wraps the Anthropic Messages API with retries, a circuit breaker,
// a concurrency limit, a rate limit and cost tracking. It is safe for
// concurrent use.
//
// Collaborators built on top of it:
// - planner.go: TravelPlanner (generate and evaluate itineraries)
// - router.go: QueryRouter and Specialist (routing pattern)
// - conversation.go: Conversation (chat with memory and tool use)
// - tools.go: travel tools the conversation can call
type Client struct {
	client         *anthropic.Client
	model          string
	maxTokens      int64
	retry          RetryConfig
	circuitBreaker *CircuitBreaker
	concurrencySem *semaphore.Weighted
	limiter        *rate.Limiter
	costTracker    CostTracker
}

// NewClient creates a new API client
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		cfg = &Config{}
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
	}

	model := cfg.Model
	if model == "" {
		model = ModelSonnet
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	retry := cfg.Retry
	if retry == (RetryConfig{}) {
		retry = DefaultRetryConfig()
	}
	if err := retry.Validate(); err != nil {
		return nil, fmt.Errorf("invalid retry config: %w", err)
	}

	// The SDK's own retries are disabled; retryWithBackoff owns that policy
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := anthropic.NewClient(opts...)

	c := &Client{
		client:      &client,
		model:       model,
		maxTokens:   maxTokens,
		retry:       retry,
		costTracker: cfg.CostTracker,
	}

	if retry.CircuitBreakerEnabled {
		c.circuitBreaker = NewCircuitBreaker(retry.FailureThreshold, retry.SuccessThreshold, retry.OpenTimeout)
	}
	if retry.MaxConcurrentCalls > 0 {
		c.concurrencySem = semaphore.NewWeighted(int64(retry.MaxConcurrentCalls))
	}
	if retry.RequestsPerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(retry.RequestsPerMinute)), 1)
	}

	slog.Debug("AI client initialized",
		"model", model,
		"circuit_breaker", retry.CircuitBreakerEnabled,
		"max_concurrent", retry.MaxConcurrentCalls,
		"requests_per_minute", retry.RequestsPerMinute)

	return c, nil
}

// Model returns the model used for completions
func (c *Client) Model() string {
	return c.model
}

// HealthCheck returns an error while the circuit breaker is open
func (c *Client) HealthCheck() error {
	if c.circuitBreaker == nil {
		return nil
	}
	state, failures, _ := c.circuitBreaker.Metrics()
	if state == CircuitOpen {
		return fmt.Errorf("AI client unavailable: %w (failures=%d, retry in %v)",
			ErrCircuitOpen, failures, c.retry.OpenTimeout)
	}
	return nil
}

type scopeKey struct{}

// WithScope tags ctx so that API usage is charged to scope (a run ID, "chat", "route")
func WithScope(ctx context.Context, scope string) context.Context {
	return context.WithValue(ctx, scopeKey{}, scope)
}

// ScopeFrom returns the budget scope carried by ctx, or "" if none
func ScopeFrom(ctx context.Context) string {
	scope, _ := ctx.Value(scopeKey{}).(string)
	return scope
}

// complete sends one Messages request and returns the concatenated text blocks
func (c *Client) complete(ctx context.Context, operation, system string, messages []anthropic.MessageParam) (string, error) {
	response, err := c.createMessage(ctx, operation, system, messages, nil)
	if err != nil {
		return "", err
	}
	return messageText(response), nil
}

// createMessage sends one Messages request under the budget, retry and throughput
// policies and returns the raw response. tools may be nil.
func (c *Client) createMessage(ctx context.Context, operation, system string, messages []anthropic.MessageParam, tools []anthropic.ToolUnionParam) (*anthropic.Message, error) {
	scope := ScopeFrom(ctx)
	if c.costTracker != nil {
		if err := c.costTracker.CanProceed(scope); err != nil {
			return nil, fmt.Errorf("%s: %w", operation, err)
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages:  messages,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if len(tools) > 0 {
		params.Tools = tools
	}

	startTime := time.Now()
	var response *anthropic.Message
	err := c.retryWithBackoff(ctx, operation, func(attemptCtx context.Context) error {
		resp, apiErr := c.client.Messages.New(attemptCtx, params)
		if apiErr != nil {
			return apiErr
		}
		response = resp
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic API call failed: %w", err)
	}

	slog.Debug("AI call completed",
		"operation", operation,
		"stop_reason", response.StopReason,
		"input_tokens", response.Usage.InputTokens,
		"output_tokens", response.Usage.OutputTokens,
		"duration", time.Since(startTime))

	if c.costTracker != nil {
		if _, err := c.costTracker.RecordUsage(ctx, scope, operation,
			response.Usage.InputTokens, response.Usage.OutputTokens); err != nil {
			slog.Warn("failed to record AI usage", "operation", operation, "error", err)
		}
	}

	return response, nil
}

// messageText concatenates the text blocks of a response
func messageText(response *anthropic.Message) string {
	var text strings.Builder
	for _, block := range response.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return text.String()
}

// ask sends a single-turn prompt
func (c *Client) ask(ctx context.Context, operation, system, prompt string) (string, error) {
	return c.complete(ctx, operation, system, []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
	})
}

// truncate shortens s to maxLen bytes for log previews
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

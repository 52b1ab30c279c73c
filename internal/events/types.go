package events

import (
	"context"
	"time"
)

// EventType represents the type of event recorded while running a pattern.
type EventType string

const (
	// Refinement loop events
	// EventTypeRunStarted indicates a refinement run was created
	EventTypeRunStarted EventType = "run_started"
	// EventTypeGenerationCompleted indicates an artifact was generated
	EventTypeGenerationCompleted EventType = "generation_completed"
	// EventTypeEvaluationCompleted indicates an artifact was evaluated
	EventTypeEvaluationCompleted EventType = "evaluation_completed"
	// EventTypeOptimizationStarted indicates the gate failed and a new draft was requested
	EventTypeOptimizationStarted EventType = "optimization_started"
	// EventTypeRunCompleted indicates the loop returned a result
	EventTypeRunCompleted EventType = "run_completed"
	// EventTypeRunFailed indicates the loop aborted with an error
	EventTypeRunFailed EventType = "run_failed"

	// Routing events
	// EventTypeQueryRouted indicates a query was classified and dispatched
	EventTypeQueryRouted EventType = "query_routed"

	// Cost budgeting events
	// EventTypeAIUsage indicates AI API usage and associated cost
	EventTypeAIUsage EventType = "ai_usage"
	// EventTypeBudgetAlert indicates budget warning or exceeded alert
	EventTypeBudgetAlert EventType = "budget_alert"
)

// EventSeverity represents the severity level of an event.
type EventSeverity string

const (
	// SeverityInfo indicates informational events
	SeverityInfo EventSeverity = "info"
	// SeverityWarning indicates potentially problematic events
	SeverityWarning EventSeverity = "warning"
	// SeverityError indicates error events
	SeverityError EventSeverity = "error"
)

// Event is a progress notice persisted for later review.
type Event struct {
	// ID is the unique identifier for this event
	ID string `json:"id"`
	// Type is the type of event
	Type EventType `json:"type"`
	// Timestamp is when the event occurred
	Timestamp time.Time `json:"timestamp"`
	// RunID is the run this event belongs to (empty for routing and chat)
	RunID string `json:"run_id"`
	// Severity is the severity level of this event
	Severity EventSeverity `json:"severity"`
	// Message is a human-readable description of the event
	Message string `json:"message"`
	// Data contains structured, type-specific data (must be JSON-serializable)
	Data map[string]interface{} `json:"data"`
	// Seq is the storage sequence number, increasing in insertion order (0 until read back)
	Seq int64 `json:"seq,omitempty"`
}

// GenerationData contains structured data for generation events.
type GenerationData struct {
	// Iteration is the iteration that produced the artifact
	Iteration int `json:"iteration"`
	// FeedbackItems is the number of feedback points the generator received
	FeedbackItems int `json:"feedback_items"`
	// ArtifactBytes is the size of the generated artifact
	ArtifactBytes int `json:"artifact_bytes"`
}

// EvaluationData contains structured data for evaluation events.
type EvaluationData struct {
	// Iteration is the iteration that was judged
	Iteration int `json:"iteration"`
	// Score is the evaluator's score (1-10)
	Score int `json:"score"`
	// MeetsCriteria is the evaluator's pass/fail flag
	MeetsCriteria bool `json:"meets_criteria"`
	// Feedback holds the evaluator's improvement points
	Feedback []string `json:"feedback,omitempty"`
}

// RunCompletedData contains structured data for run completion events.
type RunCompletedData struct {
	// Outcome is the exit the loop took
	Outcome string `json:"outcome"`
	// IterationsUsed is the number of generations performed
	IterationsUsed int `json:"iterations_used"`
	// FinalScore is the score of the returned artifact
	FinalScore int `json:"final_score"`
	// DurationMs is the elapsed time in milliseconds
	DurationMs int64 `json:"duration_ms"`
}

// QueryRoutedData contains structured data for routing events.
type QueryRoutedData struct {
	// QueryType is the category chosen by the classifier
	QueryType string `json:"query_type"`
	// Explanation is the classifier's reasoning
	Explanation string `json:"explanation"`
	// Fallback indicates no specialist handled the query
	Fallback bool `json:"fallback"`
}

// AIUsageData contains structured data for AI usage events.
type AIUsageData struct {
	// Operation is the AI call that consumed tokens (e.g. "generate-plan")
	Operation string `json:"operation"`
	// InputTokens is the prompt size
	InputTokens int64 `json:"input_tokens"`
	// OutputTokens is the completion size
	OutputTokens int64 `json:"output_tokens"`
	// CostUSD is the estimated cost
	CostUSD float64 `json:"cost_usd"`
}

// EventStore defines the interface for persisting and retrieving events.
type EventStore interface {
	// StoreEvent persists an event
	StoreEvent(ctx context.Context, event *Event) error

	// GetEvents retrieves events matching the given filter
	GetEvents(ctx context.Context, filter EventFilter) ([]*Event, error)

	// GetEventsByRun retrieves all events for a specific run, oldest first
	GetEventsByRun(ctx context.Context, runID string) ([]*Event, error)

	// GetEventsAfter retrieves up to limit events stored after sequence number
	// afterSeq, oldest first. An empty runID matches every run.
	GetEventsAfter(ctx context.Context, afterSeq int64, runID string, limit int) ([]*Event, error)
}

// EventFilter defines criteria for filtering events.
type EventFilter struct {
	// RunID filters events by run ID
	RunID string
	// Type filters events by event type
	Type EventType
	// Severity filters events by severity level
	Severity EventSeverity
	// AfterTime filters events that occurred after this time
	AfterTime time.Time
	// Limit limits the number of events returned
	Limit int
}

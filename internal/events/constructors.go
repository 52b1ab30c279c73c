package events

import (
	"time"

	"github.com/google/uuid"
)

// NewEvent creates an event with no structured data.
func NewEvent(eventType EventType, runID string, severity EventSeverity, message string, data map[string]interface{}) *Event {
	if data == nil {
		data = make(map[string]interface{})
	}
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now(),
		RunID:     runID,
		Severity:  severity,
		Message:   message,
		Data:      data,
	}
}

// NewGenerationEvent creates a generation_completed event with type-safe data.
func NewGenerationEvent(runID, message string, data GenerationData) (*Event, error) {
	event := NewEvent(EventTypeGenerationCompleted, runID, SeverityInfo, message, nil)
	if err := event.SetGenerationData(data); err != nil {
		return nil, err
	}
	return event, nil
}

// NewEvaluationEvent creates an evaluation_completed event with type-safe data.
func NewEvaluationEvent(runID, message string, data EvaluationData) (*Event, error) {
	event := NewEvent(EventTypeEvaluationCompleted, runID, SeverityInfo, message, nil)
	if err := event.SetEvaluationData(data); err != nil {
		return nil, err
	}
	return event, nil
}

// NewRunCompletedEvent creates a run_completed event with type-safe data.
// Runs that exhaust their budget are recorded as warnings.
func NewRunCompletedEvent(runID, message string, accepted bool, data RunCompletedData) (*Event, error) {
	severity := SeverityInfo
	if !accepted {
		severity = SeverityWarning
	}
	event := NewEvent(EventTypeRunCompleted, runID, severity, message, nil)
	if err := event.SetRunCompletedData(data); err != nil {
		return nil, err
	}
	return event, nil
}

// NewQueryRoutedEvent creates a query_routed event with type-safe data.
func NewQueryRoutedEvent(message string, data QueryRoutedData) (*Event, error) {
	severity := SeverityInfo
	if data.Fallback {
		severity = SeverityWarning
	}
	event := NewEvent(EventTypeQueryRouted, "", severity, message, nil)
	if err := event.SetQueryRoutedData(data); err != nil {
		return nil, err
	}
	return event, nil
}

// NewAIUsageEvent creates an ai_usage event with type-safe data.
func NewAIUsageEvent(runID, message string, data AIUsageData) (*Event, error) {
	event := NewEvent(EventTypeAIUsage, runID, SeverityInfo, message, nil)
	if err := event.SetAIUsageData(data); err != nil {
		return nil, err
	}
	return event, nil
}

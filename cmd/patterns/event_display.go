package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/steveyegge/patterns/internal/events"
)

// formatEvent renders an event as two lines: a headline and its key data fields
func formatEvent(event *events.Event) string {
	timestamp := event.Timestamp.Format("15:04:05")

	scope := "-"
	if event.RunID != "" {
		scope = shortID(event.RunID)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s [%s] %s %s: %s\n",
		getEventEmoji(event),
		timestamp,
		color.New(color.FgGreen).Sprint(scope),
		color.New(color.FgMagenta).Sprint(event.Type),
		getSeverityColor(event.Severity).Sprint(truncateString(event.Message, 80)),
	)

	if metadata := extractEventMetadata(event); metadata != "" {
		fmt.Fprintf(&sb, "  %s\n", color.New(color.FgHiBlack).Sprint(metadata))
	}
	return sb.String()
}

// getEventEmoji returns the icon for an event type, falling back to severity
func getEventEmoji(event *events.Event) string {
	switch event.Type {
	case events.EventTypeRunStarted:
		return "🚀"
	case events.EventTypeGenerationCompleted:
		return "📝"
	case events.EventTypeEvaluationCompleted:
		return "🔍"
	case events.EventTypeOptimizationStarted:
		return "🔁"
	case events.EventTypeRunCompleted:
		if event.Severity == events.SeverityWarning {
			return "⚠️"
		}
		return "✅"
	case events.EventTypeRunFailed:
		return "❌"
	case events.EventTypeQueryRouted:
		return "🧭"
	case events.EventTypeAIUsage:
		return "💰"
	case events.EventTypeBudgetAlert:
		return "🚨"
	}

	switch event.Severity {
	case events.SeverityWarning:
		return "⚠️"
	case events.SeverityError:
		return "❌"
	default:
		return "•"
	}
}

func getSeverityColor(severity events.EventSeverity) *color.Color {
	switch severity {
	case events.SeverityWarning:
		return color.New(color.FgYellow)
	case events.SeverityError:
		return color.New(color.FgRed)
	default:
		return color.New(color.FgCyan)
	}
}

// metadataKeys lists the data fields worth showing per event type, in display order
var metadataKeys = map[events.EventType][]string{
	events.EventTypeRunStarted:          {"max_iterations", "score_threshold", "model"},
	events.EventTypeGenerationCompleted: {"iteration", "feedback_items", "artifact_bytes"},
	events.EventTypeEvaluationCompleted: {"iteration", "score", "meets_criteria"},
	events.EventTypeOptimizationStarted: {"iteration", "feedback_items"},
	events.EventTypeRunCompleted:        {"outcome", "iterations_used", "final_score", "duration_ms"},
	events.EventTypeRunFailed:           {"operation", "iteration", "iterations_used"},
	events.EventTypeQueryRouted:         {"query_type", "fallback"},
	events.EventTypeAIUsage:             {"operation", "input_tokens", "output_tokens", "cost_usd"},
	events.EventTypeBudgetAlert:         {"scope", "status", "hourly_tokens_used", "hourly_cost_used"},
}

// extractEventMetadata renders selected data fields as "k=v | k=v".
// Unknown event types show every field, sorted by key.
func extractEventMetadata(event *events.Event) string {
	if len(event.Data) == 0 {
		return ""
	}

	keys, ok := metadataKeys[event.Type]
	if !ok {
		for k := range event.Data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
	}

	var parts []string
	for _, k := range keys {
		v, present := event.Data[k]
		if !present || v == nil || v == "" {
			continue
		}
		if f, isFloat := v.(float64); isFloat && k == "cost_usd" {
			parts = append(parts, fmt.Sprintf("%s=$%.4f", k, f))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	return strings.Join(parts, " | ")
}

// truncateString shortens s to maxLen runes with a trailing ellipsis
func truncateString(s string, maxLen int) string {
	if maxLen <= 3 {
		maxLen = 3
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}

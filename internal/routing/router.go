package routing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/steveyegge/patterns/internal/events"
)

// ErrEmptyQuery is returned by Route for blank queries
var ErrEmptyQuery = errors.New("query is empty")

// EventRecorder stores query_routed events
type EventRecorder interface {
	StoreEvent(ctx context.Context, event *events.Event) error
}

// Router dispatches classified queries to registered handlers.
// It is safe for concurrent use.
type Router struct {
	classifier Classifier

	mu       sync.RWMutex
	handlers map[QueryType]Handler
	recorder EventRecorder
}

// NewRouter creates a router. handlers may be nil and filled in with Register.
func NewRouter(classifier Classifier, handlers map[QueryType]Handler) (*Router, error) {
	if classifier == nil {
		return nil, fmt.Errorf("classifier is required")
	}
	r := &Router{
		classifier: classifier,
		handlers:   make(map[QueryType]Handler, len(handlers)),
	}
	for qt, h := range handlers {
		if err := r.Register(qt, h); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// SetEventRecorder enables query_routed events (nil disables them)
func (r *Router) SetEventRecorder(recorder EventRecorder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recorder = recorder
}

// Register installs the handler for a category, replacing any previous one
func (r *Router) Register(queryType QueryType, handler Handler) error {
	if !queryType.IsValid() {
		return fmt.Errorf("invalid query type %q (must be one of %v)", queryType, QueryTypes())
	}
	if handler == nil {
		return fmt.Errorf("handler for %s is nil", queryType)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[queryType] = handler
	return nil
}

func (r *Router) handler(queryType QueryType) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[queryType]
	return h, ok
}

// Route classifies query and returns the matching handler's answer.
// Unknown categories and categories without a handler produce
// FallbackResponse with Fallback set; that is not an error.
func (r *Router) Route(ctx context.Context, query string) (*Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	decision, err := r.classifier.Classify(ctx, query)
	if err != nil {
		return nil, &RouteError{Stage: "classify", Err: err}
	}
	if decision == nil {
		return nil, &RouteError{Stage: "classify", Err: errors.New("classifier returned no decision")}
	}

	result := &Result{Query: query, Decision: decision}

	handler, ok := r.handler(decision.QueryType)
	if !ok {
		slog.Debug("no handler for query type, using fallback", "query_type", decision.QueryType)
		result.Response = FallbackResponse
		result.Fallback = true
		r.recordRouted(ctx, result)
		return result, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	response, err := handler.Handle(ctx, query)
	if err != nil {
		return nil, &RouteError{Stage: "handle", QueryType: decision.QueryType, Err: err}
	}
	result.Response = response
	r.recordRouted(ctx, result)
	return result, nil
}

func (r *Router) recordRouted(ctx context.Context, result *Result) {
	r.mu.RLock()
	recorder := r.recorder
	r.mu.RUnlock()
	if recorder == nil {
		return
	}
	msg := fmt.Sprintf("Query routed to %s", result.Decision.QueryType)
	if result.Fallback {
		msg = fmt.Sprintf("Query could not be routed (classified as %q)", result.Decision.QueryType)
	}
	event, err := events.NewQueryRoutedEvent(msg, events.QueryRoutedData{
		QueryType:   string(result.Decision.QueryType),
		Explanation: result.Decision.Explanation,
		Fallback:    result.Fallback,
	})
	if err != nil {
		slog.Warn("failed to build query_routed event", "error", err)
		return
	}
	if err := recorder.StoreEvent(ctx, event); err != nil {
		slog.Warn("failed to store query_routed event", "error", err)
	}
}

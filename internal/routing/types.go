// Package routing implements the routing pattern: a classifier assigns an
// incoming travel query to one of a fixed set of categories and the query is
// dispatched to the specialist registered for that category.
package routing

import (
	"context"
	"fmt"
)

// QueryType is the category a query is routed to
type QueryType string

const (
	// QueryTypeAttractions covers sights, activities and things to do
	QueryTypeAttractions QueryType = "attractions"
	// QueryTypeAccommodations covers hotels, rentals and places to stay
	QueryTypeAccommodations QueryType = "accommodations"
	// QueryTypeTransportation covers getting around and travel logistics
	QueryTypeTransportation QueryType = "transportation"
)

// FallbackResponse is returned when a query cannot be routed
const FallbackResponse = "I'm not sure how to help with that specific travel question."

// QueryTypes lists every category in classification order
func QueryTypes() []QueryType {
	return []QueryType{QueryTypeAttractions, QueryTypeAccommodations, QueryTypeTransportation}
}

// IsValid checks if the query type is one of the known categories
func (q QueryType) IsValid() bool {
	switch q {
	case QueryTypeAttractions, QueryTypeAccommodations, QueryTypeTransportation:
		return true
	}
	return false
}

// Decision is a classifier's verdict
type Decision struct {
	QueryType   QueryType `json:"query_type"`
	Explanation string    `json:"explanation"`
}

// Classifier assigns a query to a category. Returning a QueryType outside
// QueryTypes() is allowed; the router answers with FallbackResponse.
type Classifier interface {
	Classify(ctx context.Context, query string) (*Decision, error)
}

// Handler answers queries of one category
type Handler interface {
	Handle(ctx context.Context, query string) (string, error)
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(ctx context.Context, query string) (string, error)

// Handle calls f(ctx, query)
func (f HandlerFunc) Handle(ctx context.Context, query string) (string, error) {
	return f(ctx, query)
}

// Result is the outcome of routing one query
type Result struct {
	Query    string    `json:"query"`
	Decision *Decision `json:"decision"`
	Response string    `json:"response"`
	Fallback bool      `json:"fallback"`
}

// RouteError wraps a classifier or handler failure
type RouteError struct {
	Stage     string // "classify" or "handle"
	QueryType QueryType
	Err       error
}

func (e *RouteError) Error() string {
	if e.QueryType != "" {
		return fmt.Sprintf("routing %s (%s) failed: %v", e.Stage, e.QueryType, e.Err)
	}
	return fmt.Sprintf("routing %s failed: %v", e.Stage, e.Err)
}

func (e *RouteError) Unwrap() error {
	return e.Err
}

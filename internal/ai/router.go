package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/steveyegge/patterns/internal/routing"
)

const routerSystemPrompt = "You classify travel questions. You respond only with JSON."

// QueryRouter classifies travel queries with the model. It satisfies routing.Classifier.
type QueryRouter struct {
	client *Client
}

var _ routing.Classifier = (*QueryRouter)(nil)

// NewQueryRouter creates a classifier backed by client
func NewQueryRouter(client *Client) *QueryRouter {
	return &QueryRouter{client: client}
}

// Classify asks the model for a category. An unrecognized category is passed
// through unchanged so the router can fall back.
func (r *QueryRouter) Classify(ctx context.Context, query string) (*routing.Decision, error) {
	response, err := r.client.ask(ctx, "route", routerSystemPrompt, buildRoutePrompt(query))
	if err != nil {
		return nil, err
	}

	parsed := Parse[routing.Decision](response, "route")
	if !parsed.Success {
		return nil, fmt.Errorf("failed to parse routing response: %s (response: %s)", parsed.Error, truncate(response, 200))
	}
	decision := parsed.Data
	decision.QueryType = routing.QueryType(strings.ToLower(strings.TrimSpace(string(decision.QueryType))))
	if decision.QueryType == "" {
		return nil, fmt.Errorf("routing response missing query_type (response: %s)", truncate(response, 200))
	}
	return &decision, nil
}

func buildRoutePrompt(query string) string {
	return fmt.Sprintf(`Classify this travel query into one of these categories:
- attractions (for questions about sights, activities, or things to do)
- accommodations (for questions about hotels, rentals, or places to stay)
- transportation (for questions about getting around or travel logistics)

Query: %s

Respond with ONLY a JSON object in this exact format:
{
  "query_type": "attractions",
  "explanation": "one sentence on why this category fits"
}`, query)
}

// Specialist answers queries in one category. It satisfies routing.Handler.
type Specialist struct {
	client    *Client
	queryType routing.QueryType
	topic     string
}

var _ routing.Handler = (*Specialist)(nil)

var specialistTopics = map[routing.QueryType]string{
	routing.QueryTypeAttractions:    "tourist attractions, sights, or activities",
	routing.QueryTypeAccommodations: "accommodations, hotels, or places to stay",
	routing.QueryTypeTransportation: "transportation, getting around, or travel logistics",
}

// NewSpecialist creates the handler for queryType
func NewSpecialist(client *Client, queryType routing.QueryType) (*Specialist, error) {
	topic, ok := specialistTopics[queryType]
	if !ok {
		return nil, fmt.Errorf("no specialist for query type %q", queryType)
	}
	return &Specialist{client: client, queryType: queryType, topic: topic}, nil
}

// NewSpecialists returns one handler per category, ready for routing.NewRouter
func NewSpecialists(client *Client) map[routing.QueryType]routing.Handler {
	handlers := make(map[routing.QueryType]routing.Handler, len(specialistTopics))
	for _, qt := range routing.QueryTypes() {
		handlers[qt] = &Specialist{client: client, queryType: qt, topic: specialistTopics[qt]}
	}
	return handlers
}

// Handle answers the query
func (s *Specialist) Handle(ctx context.Context, query string) (string, error) {
	system := fmt.Sprintf("You are a travel expert specializing in %s.", s.topic)
	prompt := fmt.Sprintf("Answer this question about %s: %s", s.topic, query)
	answer, err := s.client.ask(ctx, "handle_"+string(s.queryType), system, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(answer), nil
}

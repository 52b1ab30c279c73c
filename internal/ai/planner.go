package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/steveyegge/patterns/internal/refine"
)

const plannerSystemPrompt = "You are an expert travel planner. You write detailed, realistic, day-by-day itineraries."

const evaluatorSystemPrompt = "You are a demanding travel plan reviewer. You judge plans strictly against the traveler's request and respond only with JSON."

// TravelPlanner generates travel plans and evaluates them with the model.
// It satisfies refine.Optimizer.
type TravelPlanner struct {
	client *Client
}

var _ refine.Optimizer = (*TravelPlanner)(nil)

// NewTravelPlanner creates a planner backed by client
func NewTravelPlanner(client *Client) *TravelPlanner {
	return &TravelPlanner{client: client}
}

// Generate drafts a travel plan, incorporating feedback when present
func (p *TravelPlanner) Generate(ctx context.Context, request string, feedback []string) (string, error) {
	plan, err := p.client.ask(ctx, "generate", plannerSystemPrompt, buildGeneratePrompt(request, feedback))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(plan), nil
}

// Evaluate scores a plan against the request
func (p *TravelPlanner) Evaluate(ctx context.Context, request, plan string) (*refine.Evaluation, error) {
	response, err := p.client.ask(ctx, "evaluate", evaluatorSystemPrompt, buildEvaluatePrompt(request, plan))
	if err != nil {
		return nil, err
	}
	return parseEvaluation(response)
}

func buildGeneratePrompt(request string, feedback []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Create a comprehensive travel plan for this request: %s\n", request)
	if len(feedback) > 0 {
		sb.WriteString("\nIf feedback is provided, incorporate these improvements:\n")
		for _, item := range feedback {
			fmt.Fprintf(&sb, "- %s\n", item)
		}
	}
	return sb.String()
}

func buildEvaluatePrompt(request, plan string) string {
	return fmt.Sprintf(`Evaluate this travel plan for the given request. Provide a score (1-10), specific feedback for improvement, and whether it meets all criteria.

Request: %s

Plan:
%s

Respond with ONLY a JSON object in this exact format:
{
  "score": 7,
  "feedback": ["specific improvement", "another improvement"],
  "meets_criteria": false
}

score is an integer from 1 (unusable) to 10 (flawless). feedback lists concrete,
actionable improvements and may be empty. meets_criteria is true only when the plan
satisfies every requirement in the request.`, request, plan)
}

// evaluationResponse uses pointers so that missing fields can be told apart from zero values
type evaluationResponse struct {
	Score         *int     `json:"score"`
	Feedback      []string `json:"feedback"`
	MeetsCriteria *bool    `json:"meets_criteria"`
}

func parseEvaluation(response string) (*refine.Evaluation, error) {
	parsed := Parse[evaluationResponse](response, "evaluation")
	if !parsed.Success {
		return nil, fmt.Errorf("failed to parse evaluation response: %s (response: %s)", parsed.Error, truncate(response, 200))
	}
	data := parsed.Data
	if data.Score == nil {
		return nil, fmt.Errorf("evaluation response missing score (response: %s)", truncate(response, 200))
	}
	if data.MeetsCriteria == nil {
		return nil, fmt.Errorf("evaluation response missing meets_criteria (response: %s)", truncate(response, 200))
	}

	feedback := make([]string, 0, len(data.Feedback))
	for _, item := range data.Feedback {
		if item = strings.TrimSpace(item); item != "" {
			feedback = append(feedback, item)
		}
	}

	// Range checking belongs to the loop, which rejects out-of-range scores
	return &refine.Evaluation{
		Score:         *data.Score,
		Feedback:      feedback,
		MeetsCriteria: *data.MeetsCriteria,
	}, nil
}

package ai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/steveyegge/patterns/internal/refine"
)

func TestBuildGeneratePrompt(t *testing.T) {
	prompt := buildGeneratePrompt("4 days in Kyoto", nil)
	if !strings.Contains(prompt, "Create a comprehensive travel plan for this request: 4 days in Kyoto") {
		t.Errorf("Missing request line: %q", prompt)
	}
	if strings.Contains(prompt, "incorporate these improvements") {
		t.Error("First draft should not carry a feedback section")
	}

	prompt = buildGeneratePrompt("4 days in Kyoto", []string{"Add a tea ceremony", "Name the ryokan"})
	if !strings.Contains(prompt, "incorporate these improvements") {
		t.Error("Expected feedback section")
	}
	if !strings.Contains(prompt, "- Add a tea ceremony\n- Name the ryokan\n") {
		t.Errorf("Feedback should be listed in order: %q", prompt)
	}
}

func TestParseEvaluation(t *testing.T) {
	tests := []struct {
		name      string
		response  string
		want      *refine.Evaluation
		wantError string
	}{
		{
			name:     "complete",
			response: `{"score": 7, "feedback": ["Add budget breakdown", "  "], "meets_criteria": false}`,
			want:     &refine.Evaluation{Score: 7, Feedback: []string{"Add budget breakdown"}, MeetsCriteria: false},
		},
		{
			name:     "fenced with prose",
			response: "Here you go:\n```json\n{\"score\": 9, \"feedback\": [], \"meets_criteria\": true}\n```",
			want:     &refine.Evaluation{Score: 9, Feedback: []string{}, MeetsCriteria: true},
		},
		{
			name:     "prose preamble with colon in feedback",
			response: "Here is my evaluation:\n{\"score\": 6, \"feedback\": [\"Add more detail, timing: mornings are crowded\"], \"meets_criteria\": false}",
			want:     &refine.Evaluation{Score: 6, Feedback: []string{"Add more detail, timing: mornings are crowded"}},
		},
		{
			name:     "missing feedback becomes empty",
			response: `{"score": 8, "meets_criteria": true}`,
			want:     &refine.Evaluation{Score: 8, Feedback: []string{}, MeetsCriteria: true},
		},
		{
			name:     "out of range score passes through",
			response: `{"score": 12, "feedback": [], "meets_criteria": true}`,
			want:     &refine.Evaluation{Score: 12, Feedback: []string{}, MeetsCriteria: true},
		},
		{
			name:      "missing score",
			response:  `{"feedback": [], "meets_criteria": true}`,
			wantError: "missing score",
		},
		{
			name:      "missing meets_criteria",
			response:  `{"score": 5, "feedback": []}`,
			wantError: "missing meets_criteria",
		},
		{
			name:      "not json",
			response:  "This plan looks great, 8/10.",
			wantError: "failed to parse evaluation",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseEvaluation(tt.response)
			if tt.wantError != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantError) {
					t.Fatalf("Expected error containing %q, got %v", tt.wantError, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseEvaluation failed: %v", err)
			}
			if got.Score != tt.want.Score || got.MeetsCriteria != tt.want.MeetsCriteria {
				t.Errorf("Got %+v, want %+v", got, tt.want)
			}
			if len(got.Feedback) != len(tt.want.Feedback) {
				t.Fatalf("Feedback = %v, want %v", got.Feedback, tt.want.Feedback)
			}
			for i := range got.Feedback {
				if got.Feedback[i] != tt.want.Feedback[i] {
					t.Errorf("Feedback[%d] = %q, want %q", i, got.Feedback[i], tt.want.Feedback[i])
				}
			}
		})
	}
}

func TestTravelPlannerWithRefineLoop(t *testing.T) {
	fake := newFakeAnthropic(t,
		fakeReply{text: "Day 1: Fushimi Inari"},
		fakeReply{text: `{"score": 5, "feedback": ["Add a tea ceremony"], "meets_criteria": false}`},
		fakeReply{text: "Day 1: Fushimi Inari. Day 2: tea ceremony in Uji"},
		fakeReply{text: `{"score": 8, "feedback": [], "meets_criteria": false}`},
	)
	planner := NewTravelPlanner(newTestClient(t, fake, nil))

	result, err := refine.Run(context.Background(), "4 days in Kyoto", planner, refine.DefaultConfig())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Outcome != refine.OutcomeThresholdReached {
		t.Errorf("Outcome = %s, want %s", result.Outcome, refine.OutcomeThresholdReached)
	}
	if result.IterationsUsed != 2 {
		t.Errorf("IterationsUsed = %d, want 2", result.IterationsUsed)
	}
	if !strings.Contains(result.FinalArtifact, "tea ceremony") {
		t.Errorf("Unexpected final artifact: %q", result.FinalArtifact)
	}

	reqs := fake.Requests()
	if len(reqs) != 4 {
		t.Fatalf("Expected 4 API calls, got %d", len(reqs))
	}
	if strings.Contains(reqs[0].lastUserText(), "improvements") {
		t.Error("First generation should have no feedback")
	}
	if !strings.Contains(reqs[1].lastUserText(), "Day 1: Fushimi Inari") {
		t.Error("Evaluation prompt should contain the plan")
	}
	if !strings.Contains(reqs[2].lastUserText(), "- Add a tea ceremony") {
		t.Errorf("Second generation should carry feedback: %q", reqs[2].lastUserText())
	}
}

func TestTravelPlannerMalformedEvaluationFailsLoop(t *testing.T) {
	fake := newFakeAnthropic(t,
		fakeReply{text: "A plan"},
		fakeReply{text: "I refuse to answer in JSON."},
	)
	planner := NewTravelPlanner(newTestClient(t, fake, nil))

	_, err := refine.Run(context.Background(), "Trip", planner, refine.DefaultConfig())
	if !errors.Is(err, refine.ErrCollaborator) {
		t.Fatalf("Expected collaborator error, got %v", err)
	}
	var collabErr *refine.CollaboratorError
	if !errors.As(err, &collabErr) || collabErr.Op != refine.OpEvaluate {
		t.Errorf("Expected evaluate failure, got %v", err)
	}
}

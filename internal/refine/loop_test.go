package refine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

// mockOptimizer is a scripted Optimizer. Evaluations are returned in order;
// once the script runs out the last entry repeats.
type mockOptimizer struct {
	evaluations []*Evaluation
	generateErr error
	evaluateErr error
	failOnCall  int // 1-based call number that returns the error (0 = every call)
	emptyOnCall int

	generateCalls int
	evaluateCalls int
	feedbackSeen  [][]string
	evaluated     []string
	events        []string
}

func (m *mockOptimizer) Generate(ctx context.Context, request string, feedback []string) (string, error) {
	m.generateCalls++
	m.events = append(m.events, "generate")
	m.feedbackSeen = append(m.feedbackSeen, feedback)
	if m.generateErr != nil && (m.failOnCall == 0 || m.failOnCall == m.generateCalls) {
		return "", m.generateErr
	}
	if m.emptyOnCall == m.generateCalls {
		return "   ", nil
	}
	return fmt.Sprintf("plan-%d", m.generateCalls), nil
}

func (m *mockOptimizer) Evaluate(ctx context.Context, request, artifact string) (*Evaluation, error) {
	m.evaluateCalls++
	m.events = append(m.events, "evaluate")
	m.evaluated = append(m.evaluated, artifact)
	if m.evaluateErr != nil && (m.failOnCall == 0 || m.failOnCall == m.evaluateCalls) {
		return nil, m.evaluateErr
	}
	if len(m.evaluations) == 0 {
		return &Evaluation{Score: 5}, nil
	}
	i := m.evaluateCalls - 1
	if i >= len(m.evaluations) {
		i = len(m.evaluations) - 1
	}
	return m.evaluations[i], nil
}

// recordingObserver captures notices in order
type recordingObserver struct {
	notices   []string
	completed *Result
}

func (r *recordingObserver) OnGenerate(iteration int, feedback []string, artifact string) {
	r.notices = append(r.notices, fmt.Sprintf("gen:%d:%s", iteration, artifact))
}

func (r *recordingObserver) OnEvaluate(iteration int, evaluation *Evaluation) {
	r.notices = append(r.notices, fmt.Sprintf("eval:%d:%d", iteration, evaluation.Score))
}

func (r *recordingObserver) OnComplete(result *Result) {
	r.completed = result
}

const testRequest = "4-day cultural trip to Kyoto"

func TestRun_ScenarioA_ImprovesUntilCriteriaMet(t *testing.T) {
	opt := &mockOptimizer{
		evaluations: []*Evaluation{
			{Score: 4, Feedback: []string{"add ryokan"}, MeetsCriteria: false},
			{Score: 6, Feedback: []string{"add tea ceremony"}, MeetsCriteria: false},
			{Score: 9, MeetsCriteria: true},
		},
	}

	result, err := Run(context.Background(), testRequest, opt, Config{MaxIterations: 3, ScoreThreshold: 8})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if opt.generateCalls != 3 {
		t.Errorf("Expected 3 generations, got %d", opt.generateCalls)
	}
	if opt.evaluateCalls != 3 {
		t.Errorf("Expected 3 evaluations, got %d", opt.evaluateCalls)
	}
	if result.IterationsUsed != 3 {
		t.Errorf("Expected iterations_used=3, got %d", result.IterationsUsed)
	}
	if result.FinalEvaluation.Score != 9 {
		t.Errorf("Expected final score 9, got %d", result.FinalEvaluation.Score)
	}
	if result.FinalArtifact != "plan-3" {
		t.Errorf("Expected final artifact plan-3, got %q", result.FinalArtifact)
	}
	if result.Outcome != OutcomeCriteriaMet {
		t.Errorf("Expected outcome %s, got %s", OutcomeCriteriaMet, result.Outcome)
	}
	if len(result.Trail) != 3 {
		t.Fatalf("Expected trail of 3, got %d", len(result.Trail))
	}
}

func TestRun_ScenarioB_StopsOnThresholdWithoutFlag(t *testing.T) {
	opt := &mockOptimizer{
		evaluations: []*Evaluation{
			{Score: 8, Feedback: []string{"minor polish"}, MeetsCriteria: false},
		},
	}

	result, err := Run(context.Background(), testRequest, opt, Config{MaxIterations: 3, ScoreThreshold: 8})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if opt.generateCalls != 1 || opt.evaluateCalls != 1 {
		t.Errorf("Expected 1 generation and 1 evaluation, got %d/%d", opt.generateCalls, opt.evaluateCalls)
	}
	if result.IterationsUsed != 1 {
		t.Errorf("Expected iterations_used=1, got %d", result.IterationsUsed)
	}
	if result.Outcome != OutcomeThresholdReached {
		t.Errorf("Expected outcome %s, got %s", OutcomeThresholdReached, result.Outcome)
	}
}

func TestRun_ScenarioC_SingleIterationBudget(t *testing.T) {
	opt := &mockOptimizer{
		evaluations: []*Evaluation{
			{Score: 3, Feedback: []string{"too vague"}, MeetsCriteria: false},
		},
	}

	result, err := Run(context.Background(), testRequest, opt, Config{MaxIterations: 1, ScoreThreshold: 8})
	if err != nil {
		t.Fatalf("Expected no error on exhaustion, got %v", err)
	}

	if result.IterationsUsed != 1 {
		t.Errorf("Expected iterations_used=1, got %d", result.IterationsUsed)
	}
	if result.FinalArtifact != "plan-1" {
		t.Errorf("Expected the unsatisfying artifact back, got %q", result.FinalArtifact)
	}
	if result.FinalEvaluation == nil || result.FinalEvaluation.Score != 3 {
		t.Errorf("Expected final evaluation with score 3, got %+v", result.FinalEvaluation)
	}
	if result.Outcome != OutcomeBudgetExhausted {
		t.Errorf("Expected outcome %s, got %s", OutcomeBudgetExhausted, result.Outcome)
	}
	if opt.generateCalls != 1 {
		t.Errorf("Expected no regeneration after budget exhausted, got %d generations", opt.generateCalls)
	}
}

func TestRun_CriteriaFlagOnFirstEvaluation(t *testing.T) {
	opt := &mockOptimizer{
		evaluations: []*Evaluation{{Score: 2, MeetsCriteria: true}},
	}

	result, err := Run(context.Background(), testRequest, opt, DefaultConfig())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.IterationsUsed != 1 || opt.generateCalls != 1 {
		t.Errorf("Expected a single generation, got iterations=%d generations=%d",
			result.IterationsUsed, opt.generateCalls)
	}
	if result.Outcome != OutcomeCriteriaMet {
		t.Errorf("Expected flag to win over low score, got %s", result.Outcome)
	}
}

func TestRun_FeedbackThreading(t *testing.T) {
	opt := &mockOptimizer{
		evaluations: []*Evaluation{
			{Score: 3, Feedback: []string{"a", "b"}},
			{Score: 5, Feedback: nil},
			{Score: 6, Feedback: []string{"c"}},
			{Score: 7, Feedback: []string{"d"}},
		},
	}

	result, err := Run(context.Background(), testRequest, opt, Config{MaxIterations: 4, ScoreThreshold: 10})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.IterationsUsed != 4 {
		t.Fatalf("Expected 4 iterations, got %d", result.IterationsUsed)
	}

	if opt.feedbackSeen[0] != nil {
		t.Errorf("Expected nil feedback on first generation, got %v", opt.feedbackSeen[0])
	}
	want := [][]string{{"a", "b"}, {}, {"c"}}
	for i, w := range want {
		got := opt.feedbackSeen[i+1]
		if strings.Join(got, "|") != strings.Join(w, "|") {
			t.Errorf("Generation %d: expected feedback %v, got %v", i+2, w, got)
		}
	}
}

func TestRun_EmptyFeedbackStillRegenerates(t *testing.T) {
	opt := &mockOptimizer{
		evaluations: []*Evaluation{
			{Score: 2},
			{Score: 9},
		},
	}

	result, err := Run(context.Background(), testRequest, opt, DefaultConfig())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if opt.generateCalls != 2 {
		t.Errorf("Expected regeneration with empty feedback, got %d generations", opt.generateCalls)
	}
	if result.FinalArtifact != "plan-2" {
		t.Errorf("Expected plan-2, got %q", result.FinalArtifact)
	}
}

func TestRun_StrictAlternation(t *testing.T) {
	opt := &mockOptimizer{
		evaluations: []*Evaluation{{Score: 1}, {Score: 2}, {Score: 3}},
	}

	if _, err := Run(context.Background(), testRequest, opt, DefaultConfig()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	expected := "generate,evaluate,generate,evaluate,generate,evaluate"
	if got := strings.Join(opt.events, ","); got != expected {
		t.Errorf("Expected %s, got %s", expected, got)
	}
	for i, artifact := range opt.evaluated {
		if want := fmt.Sprintf("plan-%d", i+1); artifact != want {
			t.Errorf("Evaluation %d judged %q, expected most recent artifact %q", i+1, artifact, want)
		}
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		request string
		config  Config
	}{
		{name: "zero iterations", request: testRequest, config: Config{MaxIterations: 0, ScoreThreshold: 8}},
		{name: "negative iterations", request: testRequest, config: Config{MaxIterations: -1, ScoreThreshold: 8}},
		{name: "threshold too low", request: testRequest, config: Config{MaxIterations: 3, ScoreThreshold: 0}},
		{name: "threshold too high", request: testRequest, config: Config{MaxIterations: 3, ScoreThreshold: 11}},
		{name: "empty request", request: "  \n ", config: DefaultConfig()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opt := &mockOptimizer{}
			_, err := Run(context.Background(), tt.request, opt, tt.config)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("Expected ErrInvalidConfig, got %v", err)
			}
			if opt.generateCalls != 0 || opt.evaluateCalls != 0 {
				t.Errorf("Expected no collaborator calls, got %d/%d", opt.generateCalls, opt.evaluateCalls)
			}
		})
	}
}

func TestRun_NilOptimizer(t *testing.T) {
	_, err := Run(context.Background(), testRequest, nil, DefaultConfig())
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig, got %v", err)
	}
}

func TestRun_GenerateErrorPropagates(t *testing.T) {
	boom := errors.New("llm unavailable")

	tests := []struct {
		name          string
		failOnCall    int
		wantIteration int
		wantEvals     int
	}{
		{name: "initial generation", failOnCall: 1, wantIteration: 1, wantEvals: 0},
		{name: "optimization step", failOnCall: 2, wantIteration: 2, wantEvals: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opt := &mockOptimizer{
				generateErr: boom,
				failOnCall:  tt.failOnCall,
				evaluations: []*Evaluation{{Score: 2}},
			}
			result, err := Run(context.Background(), testRequest, opt, DefaultConfig())
			if result != nil {
				t.Errorf("Expected no partial result, got %+v", result)
			}
			if !errors.Is(err, boom) {
				t.Fatalf("Expected cause to be preserved, got %v", err)
			}
			if !errors.Is(err, ErrCollaborator) {
				t.Errorf("Expected ErrCollaborator, got %v", err)
			}
			var ce *CollaboratorError
			if !errors.As(err, &ce) {
				t.Fatalf("Expected *CollaboratorError, got %T", err)
			}
			if ce.Op != OpGenerate || ce.Iteration != tt.wantIteration {
				t.Errorf("Expected generate at iteration %d, got %s at %d", tt.wantIteration, ce.Op, ce.Iteration)
			}
			if opt.evaluateCalls != tt.wantEvals {
				t.Errorf("Expected %d evaluations, got %d", tt.wantEvals, opt.evaluateCalls)
			}
			if opt.generateCalls != tt.failOnCall {
				t.Errorf("Expected no retry (%d generations), got %d", tt.failOnCall, opt.generateCalls)
			}
		})
	}
}

func TestRun_EvaluateErrorPropagates(t *testing.T) {
	boom := errors.New("judge timed out")
	opt := &mockOptimizer{evaluateErr: boom}

	_, err := Run(context.Background(), testRequest, opt, DefaultConfig())
	var ce *CollaboratorError
	if !errors.As(err, &ce) {
		t.Fatalf("Expected *CollaboratorError, got %v", err)
	}
	if ce.Op != OpEvaluate || ce.Iteration != 1 {
		t.Errorf("Expected evaluate at iteration 1, got %s at %d", ce.Op, ce.Iteration)
	}
	if opt.evaluateCalls != 1 {
		t.Errorf("Expected exactly one evaluation attempt, got %d", opt.evaluateCalls)
	}
}

func TestRun_MalformedEvaluation(t *testing.T) {
	tests := []struct {
		name       string
		evaluation *Evaluation
	}{
		{name: "nil evaluation", evaluation: nil},
		{name: "score zero", evaluation: &Evaluation{Score: 0}},
		{name: "score eleven", evaluation: &Evaluation{Score: 11, MeetsCriteria: true}},
		{name: "negative score", evaluation: &Evaluation{Score: -3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opt := &mockOptimizer{evaluations: []*Evaluation{tt.evaluation}}
			_, err := Run(context.Background(), testRequest, opt, DefaultConfig())
			if !errors.Is(err, ErrInvalidEvaluation) {
				t.Fatalf("Expected ErrInvalidEvaluation, got %v", err)
			}
			if !errors.Is(err, ErrCollaborator) {
				t.Errorf("Expected ErrCollaborator, got %v", err)
			}
		})
	}
}

func TestRun_EmptyArtifact(t *testing.T) {
	opt := &mockOptimizer{emptyOnCall: 2, evaluations: []*Evaluation{{Score: 2}}}

	_, err := Run(context.Background(), testRequest, opt, DefaultConfig())
	if !errors.Is(err, ErrEmptyArtifact) {
		t.Fatalf("Expected ErrEmptyArtifact, got %v", err)
	}
	var ce *CollaboratorError
	if errors.As(err, &ce) && ce.Iteration != 2 {
		t.Errorf("Expected failure at iteration 2, got %d", ce.Iteration)
	}
}

func TestRun_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	opt := &mockOptimizer{}
	_, err := Run(ctx, testRequest, opt, DefaultConfig())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if opt.generateCalls != 0 {
		t.Errorf("Expected no generation after cancel, got %d", opt.generateCalls)
	}
}

func TestRun_ObserversSeeEveryStep(t *testing.T) {
	opt := &mockOptimizer{
		evaluations: []*Evaluation{{Score: 4}, {Score: 9}},
	}
	obs := &recordingObserver{}

	result, err := Run(context.Background(), testRequest, opt, DefaultConfig(), obs, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	expected := "gen:1:plan-1,eval:1:4,gen:2:plan-2,eval:2:9"
	if got := strings.Join(obs.notices, ","); got != expected {
		t.Errorf("Expected notices %s, got %s", expected, got)
	}
	if obs.completed != result {
		t.Error("Expected OnComplete to receive the returned result")
	}
}

func TestRun_FeedbackNotAliased(t *testing.T) {
	shared := []string{"original"}
	opt := &mockOptimizer{
		evaluations: []*Evaluation{{Score: 2, Feedback: shared}, {Score: 9}},
	}

	if _, err := Run(context.Background(), testRequest, opt, DefaultConfig()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	opt.feedbackSeen[1][0] = "mutated"
	if shared[0] != "original" {
		t.Error("Expected generator feedback to be a copy of the evaluator's slice")
	}
}

func TestConfig_Validate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("Default config should be valid: %v", err)
	}
	if c := DefaultConfig(); c.MaxIterations != 3 || c.ScoreThreshold != 8 {
		t.Errorf("Expected defaults 3/8, got %d/%d", c.MaxIterations, c.ScoreThreshold)
	}
	for _, threshold := range []int{1, 10} {
		if err := (Config{MaxIterations: 1, ScoreThreshold: threshold}).Validate(); err != nil {
			t.Errorf("Threshold %d should be valid: %v", threshold, err)
		}
	}
}

func TestOutcome_Accepted(t *testing.T) {
	if !OutcomeCriteriaMet.Accepted() || !OutcomeThresholdReached.Accepted() {
		t.Error("Expected gate outcomes to be accepted")
	}
	if OutcomeBudgetExhausted.Accepted() {
		t.Error("Expected budget exhaustion not to be accepted")
	}
}

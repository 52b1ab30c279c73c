package refine

import (
	"context"
	"fmt"
	"time"
)

// Score bounds for an Evaluation. Anything outside this range is a contract
// breach by the evaluator.
const (
	MinScore = 1
	MaxScore = 10
)

// Defaults used when the caller does not override them.
const (
	DefaultMaxIterations  = 3
	DefaultScoreThreshold = 8
)

// Evaluation is a structured judgment of an artifact against a request.
type Evaluation struct {
	// Score is the quality score in [MinScore, MaxScore]
	Score int `json:"score"`

	// Feedback holds discrete improvement points, in order. May be empty.
	Feedback []string `json:"feedback"`

	// MeetsCriteria is the evaluator's pass/fail judgment
	MeetsCriteria bool `json:"meets_criteria"`
}

// Validate checks the evaluation against the score bounds.
func (e *Evaluation) Validate() error {
	if e == nil {
		return fmt.Errorf("%w: evaluation is nil", ErrInvalidEvaluation)
	}
	if e.Score < MinScore || e.Score > MaxScore {
		return fmt.Errorf("%w: score %d outside [%d,%d]", ErrInvalidEvaluation, e.Score, MinScore, MaxScore)
	}
	return nil
}

// Optimizer supplies the two collaborator operations the loop alternates
// between. Implementations own prompt construction, model selection and any
// retry policy; the loop only sees the results.
type Optimizer interface {
	// Generate produces a candidate artifact for the request. A nil or empty
	// feedback slice asks for an unconditioned draft.
	Generate(ctx context.Context, request string, feedback []string) (string, error)

	// Evaluate judges an artifact against the request.
	Evaluate(ctx context.Context, request, artifact string) (*Evaluation, error)
}

// Config bounds one invocation of Run.
type Config struct {
	// MaxIterations is the upper bound on generation calls. Must be >= 1.
	MaxIterations int `json:"max_iterations" yaml:"max_iterations"`

	// ScoreThreshold is the score at or above which the artifact is accepted
	// even when the evaluator did not set MeetsCriteria. Must be in [1,10].
	ScoreThreshold int `json:"score_threshold" yaml:"score_threshold"`
}

// DefaultConfig returns MaxIterations=3, ScoreThreshold=8.
func DefaultConfig() Config {
	return Config{
		MaxIterations:  DefaultMaxIterations,
		ScoreThreshold: DefaultScoreThreshold,
	}
}

// Validate rejects configurations before any collaborator call is made.
func (c Config) Validate() error {
	if c.MaxIterations < 1 {
		return fmt.Errorf("%w: max_iterations must be >= 1 (got %d)", ErrInvalidConfig, c.MaxIterations)
	}
	if c.ScoreThreshold < MinScore || c.ScoreThreshold > MaxScore {
		return fmt.Errorf("%w: score_threshold must be between %d and %d (got %d)",
			ErrInvalidConfig, MinScore, MaxScore, c.ScoreThreshold)
	}
	return nil
}

// Outcome records which exit the loop took.
type Outcome string

const (
	// OutcomeCriteriaMet means the evaluator set MeetsCriteria
	OutcomeCriteriaMet Outcome = "criteria_met"
	// OutcomeThresholdReached means the score reached ScoreThreshold without the flag
	OutcomeThresholdReached Outcome = "threshold_reached"
	// OutcomeBudgetExhausted means MaxIterations was reached without passing the gate
	OutcomeBudgetExhausted Outcome = "budget_exhausted"
)

// Accepted reports whether the final artifact passed the quality gate.
func (o Outcome) Accepted() bool {
	return o == OutcomeCriteriaMet || o == OutcomeThresholdReached
}

// Iteration is one entry of the evaluation trail.
type Iteration struct {
	// Number is the 1-based iteration that produced Artifact
	Number int `json:"number"`

	// Artifact is the generated candidate
	Artifact string `json:"artifact"`

	// FeedbackIn is the feedback handed to Generate for this artifact (nil on iteration 1)
	FeedbackIn []string `json:"feedback_in,omitempty"`

	// Evaluation is the judgment of Artifact
	Evaluation *Evaluation `json:"evaluation"`
}

// Result is what Run returns on success.
type Result struct {
	// FinalArtifact is the last artifact generated and evaluated
	FinalArtifact string `json:"final_artifact"`

	// IterationsUsed is the number of generation steps performed
	IterationsUsed int `json:"iterations_used"`

	// FinalEvaluation is the evaluation of FinalArtifact. Never nil.
	FinalEvaluation *Evaluation `json:"final_evaluation"`

	// Outcome is the exit taken
	Outcome Outcome `json:"outcome"`

	// Trail holds every evaluated artifact in order; the last entry matches FinalArtifact
	Trail []Iteration `json:"trail"`

	// ElapsedTime is the wall time of the whole loop
	ElapsedTime time.Duration `json:"elapsed_time"`
}

// Observer receives progress notices from Run. Calls are synchronous and
// cannot influence control flow.
type Observer interface {
	// OnGenerate is called after a generation step succeeds
	OnGenerate(iteration int, feedback []string, artifact string)

	// OnEvaluate is called after an evaluation has been validated
	OnEvaluate(iteration int, evaluation *Evaluation)

	// OnComplete is called once with the final result
	OnComplete(result *Result)
}

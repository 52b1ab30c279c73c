package refine

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Run drives the generate -> evaluate -> decide cycle for a request.
//
// The loop:
//  1. Generates an initial artifact with no feedback (iteration 1)
//  2. Evaluates the current artifact
//  3. Stops if MeetsCriteria is set, OR the score reaches ScoreThreshold, OR
//     the iteration budget is spent
//  4. Otherwise regenerates with the evaluator's feedback and goes back to 2
//
// At least one generation and one evaluation always happen. Reaching
// MaxIterations without passing the gate is not an error: the last artifact
// is returned with OutcomeBudgetExhausted.
//
// Collaborator errors are returned immediately as *CollaboratorError with no
// retry and no partial result. Context cancellation is checked before each
// collaborator call; Run adds no timeout of its own.
func Run(ctx context.Context, request string, optimizer Optimizer, config Config, observers ...Observer) (*Result, error) {
	startTime := time.Now()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(request) == "" {
		return nil, fmt.Errorf("%w: request is empty", ErrInvalidConfig)
	}
	if optimizer == nil {
		return nil, fmt.Errorf("%w: optimizer is required", ErrInvalidConfig)
	}

	iteration := 1
	var feedback []string

	current, err := generate(ctx, optimizer, request, nil, iteration)
	if err != nil {
		return nil, err
	}
	notifyGenerate(observers, iteration, nil, current)

	var trail []Iteration
	var evaluation *Evaluation
	var outcome Outcome

	for iteration <= config.MaxIterations {
		evaluation, err = evaluate(ctx, optimizer, request, current, iteration)
		if err != nil {
			return nil, err
		}
		notifyEvaluate(observers, iteration, evaluation)

		trail = append(trail, Iteration{
			Number:     iteration,
			Artifact:   current,
			FeedbackIn: feedback,
			Evaluation: evaluation,
		})

		if done, why := gate(evaluation, iteration, config); done {
			outcome = why
			break
		}

		feedback = append([]string(nil), evaluation.Feedback...)
		current, err = generate(ctx, optimizer, request, feedback, iteration+1)
		if err != nil {
			return nil, err
		}
		iteration++
		notifyGenerate(observers, iteration, feedback, current)
	}

	result := &Result{
		FinalArtifact:   current,
		IterationsUsed:  iteration,
		FinalEvaluation: evaluation,
		Outcome:         outcome,
		Trail:           trail,
		ElapsedTime:     time.Since(startTime),
	}
	for _, o := range observers {
		if o != nil {
			o.OnComplete(result)
		}
	}
	return result, nil
}

// gate applies the termination check. The flag and the threshold are OR'd.
func gate(evaluation *Evaluation, iteration int, config Config) (bool, Outcome) {
	switch {
	case evaluation.MeetsCriteria:
		return true, OutcomeCriteriaMet
	case evaluation.Score >= config.ScoreThreshold:
		return true, OutcomeThresholdReached
	case iteration >= config.MaxIterations:
		return true, OutcomeBudgetExhausted
	default:
		return false, ""
	}
}

func generate(ctx context.Context, optimizer Optimizer, request string, feedback []string, iteration int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &CollaboratorError{Op: OpGenerate, Iteration: iteration, Err: err}
	}
	artifact, err := optimizer.Generate(ctx, request, feedback)
	if err != nil {
		return "", &CollaboratorError{Op: OpGenerate, Iteration: iteration, Err: err}
	}
	if strings.TrimSpace(artifact) == "" {
		return "", &CollaboratorError{Op: OpGenerate, Iteration: iteration, Err: ErrEmptyArtifact}
	}
	return artifact, nil
}

func evaluate(ctx context.Context, optimizer Optimizer, request, artifact string, iteration int) (*Evaluation, error) {
	if err := ctx.Err(); err != nil {
		return nil, &CollaboratorError{Op: OpEvaluate, Iteration: iteration, Err: err}
	}
	evaluation, err := optimizer.Evaluate(ctx, request, artifact)
	if err != nil {
		return nil, &CollaboratorError{Op: OpEvaluate, Iteration: iteration, Err: err}
	}
	if err := evaluation.Validate(); err != nil {
		return nil, &CollaboratorError{Op: OpEvaluate, Iteration: iteration, Err: err}
	}
	return evaluation, nil
}

func notifyGenerate(observers []Observer, iteration int, feedback []string, artifact string) {
	for _, o := range observers {
		if o != nil {
			o.OnGenerate(iteration, feedback, artifact)
		}
	}
}

func notifyEvaluate(observers []Observer, iteration int, evaluation *Evaluation) {
	for _, o := range observers {
		if o != nil {
			o.OnEvaluate(iteration, evaluation)
		}
	}
}

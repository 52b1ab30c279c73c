// Package refine implements a bounded evaluator-optimizer loop.
//
// # Overview
//
// One collaborator generates a candidate artifact for a request, another
// judges it. The loop alternates the two until the judgment passes a quality
// gate or an iteration budget runs out, and returns the last artifact together
// with its evaluation and the full trail.
//
// The gate is the OR of two conditions: the evaluator's MeetsCriteria flag, or
// a score at or above Config.ScoreThreshold. Either alone stops the loop.
//
// # Core Types
//
// Optimizer supplies Generate and Evaluate. It is the only dependency of Run,
// which keeps the loop testable with deterministic stand-ins.
//
// Evaluation is the typed judgment: a score in [1,10], ordered feedback, and
// the pass/fail flag. Run validates it at the boundary and treats a bad score
// as a collaborator failure.
//
// Observer receives progress notices. MetricsCollector is an in-memory Observer
// that rolls up iteration counts, outcomes and score improvement.
//
// # Usage Example
//
//	planner := ai.NewTravelPlanner(client)
//	collector := refine.NewMetricsCollector()
//	result, err := refine.Run(ctx, request, planner, refine.DefaultConfig(), collector)
//	if err != nil {
//	    return err
//	}
//	fmt.Printf("%d iterations, score %d/10 (%s)\n",
//	    result.IterationsUsed, result.FinalEvaluation.Score, result.Outcome)
//
// # Failure Handling
//
// The loop never retries. A collaborator error, a blank artifact, or an
// out-of-range score aborts the run with a *CollaboratorError. Retry belongs to
// the collaborator (see internal/ai).
package refine

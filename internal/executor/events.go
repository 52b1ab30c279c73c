package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/steveyegge/patterns/internal/events"
	"github.com/steveyegge/patterns/internal/refine"
	"github.com/steveyegge/patterns/internal/types"
)

// storeEvent persists an event; failures are logged and never fail the run
func storeEvent(ctx context.Context, store events.EventStore, event *events.Event, err error) {
	if err != nil {
		slog.Warn("failed to build event", "error", err)
		return
	}
	if ctx.Err() != nil {
		return
	}
	if err := store.StoreEvent(ctx, event); err != nil {
		slog.Warn("failed to store event", "type", event.Type, "run_id", event.RunID, "error", err)
	}
}

func (e *Executor) logRunStarted(ctx context.Context, run *types.Run) {
	event := events.NewEvent(events.EventTypeRunStarted, run.ID, events.SeverityInfo,
		fmt.Sprintf("Run started (max %d iterations, threshold %d)", run.MaxIterations, run.ScoreThreshold),
		map[string]interface{}{
			"request":         run.Request,
			"max_iterations":  run.MaxIterations,
			"score_threshold": run.ScoreThreshold,
			"model":           run.Model,
		})
	storeEvent(ctx, e.store, event, nil)
}

func (e *Executor) logRunCompleted(ctx context.Context, run *types.Run, result *refine.Result) {
	event, err := events.NewRunCompletedEvent(run.ID,
		fmt.Sprintf("Run completed: %s after %d iteration(s), score %d/10", result.Outcome, result.IterationsUsed, result.FinalEvaluation.Score),
		result.Outcome.Accepted(),
		events.RunCompletedData{
			Outcome:        string(result.Outcome),
			IterationsUsed: result.IterationsUsed,
			FinalScore:     result.FinalEvaluation.Score,
			DurationMs:     result.ElapsedTime.Milliseconds(),
		})
	storeEvent(ctx, e.store, event, err)
}

func (e *Executor) logRunFailed(ctx context.Context, run *types.Run, loopErr error) {
	data := map[string]interface{}{
		"error":           loopErr.Error(),
		"iterations_used": run.IterationsUsed,
	}
	var collabErr *refine.CollaboratorError
	if errors.As(loopErr, &collabErr) {
		data["operation"] = collabErr.Op
		data["iteration"] = collabErr.Iteration
	}
	event := events.NewEvent(events.EventTypeRunFailed, run.ID, events.SeverityError,
		fmt.Sprintf("Run failed: %v", loopErr), data)
	storeEvent(ctx, e.store, event, nil)
}

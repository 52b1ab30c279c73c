package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/steveyegge/patterns/internal/events"
	"github.com/steveyegge/patterns/internal/refine"
	"github.com/steveyegge/patterns/internal/storage"
	"github.com/steveyegge/patterns/internal/types"
)

// runRecorder is a refine.Observer that persists the evaluation trail and
// emits generation, optimization and evaluation events for one run.
type runRecorder struct {
	ctx   context.Context
	store storage.Storage
	runID string

	mu         sync.Mutex
	lastIter   int
	artifact   string
	feedbackIn []string
}

func newRunRecorder(ctx context.Context, store storage.Storage, runID string) *runRecorder {
	return &runRecorder{ctx: ctx, store: store, runID: runID}
}

// generations returns how many artifacts have been generated so far
func (r *runRecorder) generations() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastIter
}

func (r *runRecorder) OnGenerate(iteration int, feedback []string, artifact string) {
	r.mu.Lock()
	r.lastIter = iteration
	r.artifact = artifact
	r.feedbackIn = append([]string(nil), feedback...)
	r.mu.Unlock()

	if iteration > 1 {
		event := events.NewEvent(events.EventTypeOptimizationStarted, r.runID, events.SeverityInfo,
			fmt.Sprintf("Regenerating with %d feedback item(s)", len(feedback)),
			map[string]interface{}{"iteration": iteration, "feedback_items": len(feedback)})
		storeEvent(r.ctx, r.store, event, nil)
	}

	event, err := events.NewGenerationEvent(r.runID,
		fmt.Sprintf("Iteration %d: generated %d bytes", iteration, len(artifact)),
		events.GenerationData{
			Iteration:     iteration,
			FeedbackItems: len(feedback),
			ArtifactBytes: len(artifact),
		})
	storeEvent(r.ctx, r.store, event, err)
}

func (r *runRecorder) OnEvaluate(iteration int, evaluation *refine.Evaluation) {
	r.mu.Lock()
	record := &types.IterationRecord{
		RunID:         r.runID,
		Iteration:     iteration,
		Artifact:      r.artifact,
		FeedbackIn:    r.feedbackIn,
		Score:         evaluation.Score,
		Feedback:      append([]string(nil), evaluation.Feedback...),
		MeetsCriteria: evaluation.MeetsCriteria,
		CreatedAt:     time.Now(),
	}
	r.mu.Unlock()

	if err := r.store.RecordIteration(r.ctx, record); err != nil {
		slog.Warn("failed to record iteration", "run_id", r.runID, "iteration", iteration, "error", err)
	}

	event, err := events.NewEvaluationEvent(r.runID,
		fmt.Sprintf("Iteration %d: score %d/10, meets criteria: %t", iteration, evaluation.Score, evaluation.MeetsCriteria),
		events.EvaluationData{
			Iteration:     iteration,
			Score:         evaluation.Score,
			MeetsCriteria: evaluation.MeetsCriteria,
			Feedback:      evaluation.Feedback,
		})
	storeEvent(r.ctx, r.store, event, err)
}

func (r *runRecorder) OnComplete(result *refine.Result) {}

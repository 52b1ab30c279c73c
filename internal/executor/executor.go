// Package executor runs the refinement loop as a persisted, observable run.
//
// One call to Execute:
//   - creates a types.Run in storage with status "running"
//   - runs refine.Run with the budget scope set to the run ID
//   - appends an IterationRecord per evaluation and emits progress events
//   - finalizes the run as "completed" or "failed"
package executor

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/steveyegge/patterns/internal/ai"
	"github.com/steveyegge/patterns/internal/refine"
	"github.com/steveyegge/patterns/internal/storage"
	"github.com/steveyegge/patterns/internal/types"
)

// Config holds executor configuration
type Config struct {
	Store     storage.Storage
	Optimizer refine.Optimizer

	// Refine bounds each run (default: refine.DefaultConfig())
	Refine refine.Config

	// Model is recorded on each run for later review
	Model string

	// Metrics collects in-memory run metrics (optional)
	Metrics *refine.MetricsCollector

	// Output receives human-readable progress (optional, nil disables it)
	Output io.Writer
}

// Executor creates and drives refinement runs
type Executor struct {
	store     storage.Storage
	optimizer refine.Optimizer
	refineCfg refine.Config
	model     string
	metrics   *refine.MetricsCollector
	output    io.Writer
}

// RunResult pairs the persisted run with the loop's result.
// Result is nil when the run failed.
type RunResult struct {
	Run    *types.Run
	Result *refine.Result
}

// New creates an executor
func New(cfg *Config) (*Executor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if cfg.Optimizer == nil {
		return nil, fmt.Errorf("optimizer is required")
	}

	refineCfg := cfg.Refine
	if refineCfg == (refine.Config{}) {
		refineCfg = refine.DefaultConfig()
	}
	if err := refineCfg.Validate(); err != nil {
		return nil, err
	}

	return &Executor{
		store:     cfg.Store,
		optimizer: cfg.Optimizer,
		refineCfg: refineCfg,
		model:     cfg.Model,
		metrics:   cfg.Metrics,
		output:    cfg.Output,
	}, nil
}

// Config returns the loop bounds used for each run
func (e *Executor) Config() refine.Config {
	return e.refineCfg
}

// Execute runs the refinement loop for request with the executor's bounds
func (e *Executor) Execute(ctx context.Context, request string) (*RunResult, error) {
	return e.ExecuteWithConfig(ctx, request, e.refineCfg)
}

// ExecuteWithConfig runs the refinement loop for request with explicit bounds.
//
// Invalid input is rejected before a run is created. Once the run exists, a
// loop failure is persisted on it and returned together with the RunResult.
func (e *Executor) ExecuteWithConfig(ctx context.Context, request string, cfg refine.Config) (*RunResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(request) == "" {
		return nil, fmt.Errorf("%w: request is empty", refine.ErrInvalidConfig)
	}

	now := time.Now()
	run := &types.Run{
		ID:             uuid.New().String(),
		Request:        request,
		MaxIterations:  cfg.MaxIterations,
		ScoreThreshold: cfg.ScoreThreshold,
		Model:          e.model,
		Status:         types.RunStatusRunning,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := e.store.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	e.logRunStarted(ctx, run)

	recorder := newRunRecorder(ctx, e.store, run.ID)
	observers := []refine.Observer{recorder}
	if e.metrics != nil {
		observers = append(observers, e.metrics)
	}
	if e.output != nil {
		observers = append(observers, newConsoleObserver(e.output, cfg))
	}

	result, loopErr := refine.Run(ai.WithScope(ctx, run.ID), request, e.optimizer, cfg, observers...)

	// Finalize even if the caller's context was canceled mid-run
	finalCtx := context.WithoutCancel(ctx)
	completedAt := time.Now()
	run.UpdatedAt = completedAt
	run.CompletedAt = &completedAt

	if loopErr != nil {
		run.Status = types.RunStatusFailed
		run.Error = loopErr.Error()
		run.IterationsUsed = recorder.generations()
		if err := e.store.UpdateRun(finalCtx, run); err != nil {
			return &RunResult{Run: run}, fmt.Errorf("%w (additionally failed to record failure: %v)", loopErr, err)
		}
		e.logRunFailed(finalCtx, run, loopErr)
		return &RunResult{Run: run}, loopErr
	}

	run.Status = types.RunStatusCompleted
	run.Outcome = string(result.Outcome)
	run.IterationsUsed = result.IterationsUsed
	run.FinalArtifact = result.FinalArtifact
	run.FinalScore = result.FinalEvaluation.Score
	run.MeetsCriteria = result.FinalEvaluation.MeetsCriteria
	if err := e.store.UpdateRun(finalCtx, run); err != nil {
		return &RunResult{Run: run, Result: result}, fmt.Errorf("failed to finalize run %s: %w", run.ID, err)
	}
	e.logRunCompleted(finalCtx, run, result)

	return &RunResult{Run: run, Result: result}, nil
}

// Assessment returns the one-line verdict printed after a run
func Assessment(result *refine.Result, maxIterations int) string {
	switch result.Outcome {
	case refine.OutcomeCriteriaMet:
		return "Travel plan meets all criteria!"
	case refine.OutcomeThresholdReached:
		return fmt.Sprintf("Travel plan reached acceptable quality score: %d/10", result.FinalEvaluation.Score)
	default:
		return fmt.Sprintf("Reached maximum iterations (%d). Using the latest plan.", maxIterations)
	}
}

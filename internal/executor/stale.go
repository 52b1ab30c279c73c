package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/steveyegge/patterns/internal/events"
	"github.com/steveyegge/patterns/internal/storage"
	"github.com/steveyegge/patterns/internal/types"
)

// StaleRunError is the error text recorded on runs abandoned mid-loop
const StaleRunError = "abandoned: process exited before the run finished"

// MarkStaleRuns finds runs still "running" that started more than olderThan
// ago and records them as failed. A run left running means the
// process died mid-loop. With dryRun the runs are returned but not modified.
func MarkStaleRuns(ctx context.Context, store storage.Storage, olderThan time.Duration, dryRun bool) ([]*types.Run, error) {
	if olderThan <= 0 {
		return nil, fmt.Errorf("olderThan must be positive (got %v)", olderThan)
	}

	running, err := store.ListRuns(ctx, types.RunFilter{Status: types.RunStatusRunning})
	if err != nil {
		return nil, fmt.Errorf("failed to list running runs: %w", err)
	}

	cutoff := time.Now().Add(-olderThan)
	var stale []*types.Run
	for _, run := range running {
		if run.CreatedAt.After(cutoff) {
			continue
		}
		stale = append(stale, run)
		if dryRun {
			continue
		}

		now := time.Now()
		run.Status = types.RunStatusFailed
		run.Error = StaleRunError
		run.UpdatedAt = now
		run.CompletedAt = &now
		if err := store.UpdateRun(ctx, run); err != nil {
			return stale, fmt.Errorf("failed to mark run %s as failed: %w", run.ID, err)
		}

		event := events.NewEvent(events.EventTypeRunFailed, run.ID, events.SeverityError,
			"Run failed: "+StaleRunError,
			map[string]interface{}{"error": StaleRunError, "stale_for": time.Since(run.CreatedAt).Round(time.Second).String()})
		storeEvent(ctx, store, event, nil)
	}
	return stale, nil
}

package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/steveyegge/patterns/internal/events"
	"github.com/steveyegge/patterns/internal/types"
)

func setupTestDB(t *testing.T) (*SQLiteStorage, func()) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := New(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	return store, func() { _ = store.Close() }
}

func newRun(id string) *types.Run {
	return &types.Run{
		ID:             id,
		Request:        "Plan a 5-day trip to Kyoto",
		MaxIterations:  3,
		ScoreThreshold: 8,
		Model:          "claude-sonnet-4-5",
		Status:         types.RunStatusRunning,
	}
}

func TestCreateAndGetRun(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	run := newRun("run-1")
	if err := store.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}
	if run.CreatedAt.IsZero() {
		t.Error("Expected CreatedAt to be set")
	}

	got, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got == nil {
		t.Fatal("Expected run, got nil")
	}
	if got.Request != run.Request || got.MaxIterations != 3 || got.ScoreThreshold != 8 {
		t.Errorf("Run fields not preserved: %+v", got)
	}
	if got.Status != types.RunStatusRunning {
		t.Errorf("Expected running status, got %s", got.Status)
	}
	if got.CompletedAt != nil {
		t.Error("Expected nil CompletedAt for running run")
	}
}

func TestGetRunNotFound(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	got, err := store.GetRun(context.Background(), "run-missing")
	if err != nil {
		t.Fatalf("Expected no error for missing run, got %v", err)
	}
	if got != nil {
		t.Errorf("Expected nil run, got %+v", got)
	}
}

func TestCreateRunRejectsInvalid(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	run := newRun("run-1")
	run.MaxIterations = 0
	if err := store.CreateRun(context.Background(), run); err == nil {
		t.Error("Expected validation error")
	}
}

func TestUpdateRunCompletion(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	run := newRun("run-1")
	if err := store.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	done := time.Now()
	run.Status = types.RunStatusCompleted
	run.Outcome = "threshold_reached"
	run.IterationsUsed = 2
	run.FinalArtifact = "Day 1: Fushimi Inari"
	run.FinalScore = 8
	run.CompletedAt = &done
	if err := store.UpdateRun(ctx, run); err != nil {
		t.Fatalf("UpdateRun failed: %v", err)
	}

	got, err := store.GetRun(ctx, "run-1")
	if err != nil || got == nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got.Status != types.RunStatusCompleted || got.Outcome != "threshold_reached" {
		t.Errorf("Status/outcome not updated: %+v", got)
	}
	if got.IterationsUsed != 2 || got.FinalScore != 8 {
		t.Errorf("Counters not updated: %+v", got)
	}
	if got.CompletedAt == nil {
		t.Error("Expected CompletedAt to be set")
	}
}

func TestUpdateRunNotFound(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	if err := store.UpdateRun(context.Background(), newRun("run-ghost")); err == nil {
		t.Error("Expected error updating missing run")
	}
}

func TestListRuns(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i, id := range []string{"run-a", "run-b", "run-c"} {
		run := newRun(id)
		run.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := store.CreateRun(ctx, run); err != nil {
			t.Fatalf("CreateRun(%s) failed: %v", id, err)
		}
	}

	failed, _ := store.GetRun(ctx, "run-b")
	failed.Status = types.RunStatusFailed
	failed.Error = "evaluate failed at iteration 1"
	if err := store.UpdateRun(ctx, failed); err != nil {
		t.Fatalf("UpdateRun failed: %v", err)
	}

	all, err := store.ListRuns(ctx, types.RunFilter{})
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Expected 3 runs, got %d", len(all))
	}
	if all[0].ID != "run-c" {
		t.Errorf("Expected newest run first, got %s", all[0].ID)
	}

	onlyFailed, err := store.ListRuns(ctx, types.RunFilter{Status: types.RunStatusFailed})
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(onlyFailed) != 1 || onlyFailed[0].ID != "run-b" {
		t.Errorf("Expected only run-b, got %v", onlyFailed)
	}

	limited, err := store.ListRuns(ctx, types.RunFilter{Limit: 2})
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("Expected 2 runs with limit, got %d", len(limited))
	}
}

func TestIterationTrail(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	if err := store.CreateRun(ctx, newRun("run-1")); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	records := []*types.IterationRecord{
		{RunID: "run-1", Iteration: 1, Artifact: "draft one", Score: 5, Feedback: []string{"add budget", "fewer temples"}},
		{RunID: "run-1", Iteration: 2, Artifact: "draft two", FeedbackIn: []string{"add budget", "fewer temples"}, Score: 8, MeetsCriteria: true},
	}
	// Insert out of order to check ordering on read
	for _, i := range []int{1, 0} {
		if err := store.RecordIteration(ctx, records[i]); err != nil {
			t.Fatalf("RecordIteration failed: %v", err)
		}
	}

	got, err := store.GetIterations(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetIterations failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 iterations, got %d", len(got))
	}
	if got[0].Iteration != 1 || got[1].Iteration != 2 {
		t.Errorf("Expected iterations in order, got %d, %d", got[0].Iteration, got[1].Iteration)
	}
	if len(got[0].Feedback) != 2 || got[0].Feedback[0] != "add budget" {
		t.Errorf("Feedback not preserved: %v", got[0].Feedback)
	}
	if len(got[0].FeedbackIn) != 0 {
		t.Errorf("Expected empty feedback_in for first iteration, got %v", got[0].FeedbackIn)
	}
	if !got[1].MeetsCriteria || len(got[1].FeedbackIn) != 2 {
		t.Errorf("Second iteration not preserved: %+v", got[1])
	}
}

func TestRecordIterationDuplicate(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	if err := store.CreateRun(ctx, newRun("run-1")); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}
	rec := &types.IterationRecord{RunID: "run-1", Iteration: 1, Artifact: "a", Score: 4}
	if err := store.RecordIteration(ctx, rec); err != nil {
		t.Fatalf("RecordIteration failed: %v", err)
	}
	if err := store.RecordIteration(ctx, rec); err == nil {
		t.Error("Expected duplicate iteration to fail")
	}
}

func TestRecordIterationUnknownRun(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	rec := &types.IterationRecord{RunID: "run-ghost", Iteration: 1, Artifact: "a", Score: 4}
	if err := store.RecordIteration(context.Background(), rec); err == nil {
		t.Error("Expected foreign key violation for unknown run")
	}
}

func TestEventStorage(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	started := events.NewEvent(events.EventTypeRunStarted, "run-1", events.SeverityInfo, "Run started", nil)
	started.Timestamp = time.Now().Add(-2 * time.Second)
	evaluated, err := events.NewEvaluationEvent("run-1", "Evaluation score: 6/10", events.EvaluationData{
		Iteration: 1, Score: 6, Feedback: []string{"more food"},
	})
	if err != nil {
		t.Fatalf("NewEvaluationEvent failed: %v", err)
	}
	evaluated.Timestamp = time.Now().Add(-time.Second)
	routed, err := events.NewQueryRoutedEvent("Routed to attractions", events.QueryRoutedData{QueryType: "attractions"})
	if err != nil {
		t.Fatalf("NewQueryRoutedEvent failed: %v", err)
	}

	for _, e := range []*events.Event{started, evaluated, routed} {
		if err := store.StoreEvent(ctx, e); err != nil {
			t.Fatalf("StoreEvent failed: %v", err)
		}
	}

	t.Run("ByRun", func(t *testing.T) {
		got, err := store.GetEventsByRun(ctx, "run-1")
		if err != nil {
			t.Fatalf("GetEventsByRun failed: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("Expected 2 events, got %d", len(got))
		}
		if got[0].Type != events.EventTypeRunStarted {
			t.Errorf("Expected oldest first, got %s", got[0].Type)
		}
		data, err := got[1].GetEvaluationData()
		if err != nil {
			t.Fatalf("GetEvaluationData failed: %v", err)
		}
		if data.Score != 6 || len(data.Feedback) != 1 {
			t.Errorf("Event data not preserved: %+v", data)
		}
	})

	t.Run("FilterByType", func(t *testing.T) {
		got, err := store.GetEvents(ctx, events.EventFilter{Type: events.EventTypeQueryRouted})
		if err != nil {
			t.Fatalf("GetEvents failed: %v", err)
		}
		if len(got) != 1 || got[0].RunID != "" {
			t.Errorf("Expected one routing event, got %v", got)
		}
	})

	t.Run("Limit", func(t *testing.T) {
		got, err := store.GetEvents(ctx, events.EventFilter{Limit: 1})
		if err != nil {
			t.Fatalf("GetEvents failed: %v", err)
		}
		if len(got) != 1 || got[0].Type != events.EventTypeQueryRouted {
			t.Errorf("Expected most recent event only, got %v", got)
		}
	})
}

func TestGetEventsAfter(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	stamp := time.Now()
	for i, runID := range []string{"run-a", "run-b", "run-a", "run-a"} {
		e := events.NewEvent(events.EventTypeGenerationCompleted, runID, events.SeverityInfo, "e", map[string]interface{}{"n": i})
		e.Timestamp = stamp
		if err := store.StoreEvent(ctx, e); err != nil {
			t.Fatalf("StoreEvent failed: %v", err)
		}
	}

	all, err := store.GetEventsAfter(ctx, 0, "", 10)
	if err != nil {
		t.Fatalf("GetEventsAfter failed: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("Expected 4 events, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].Seq <= all[i-1].Seq {
			t.Errorf("Sequence numbers must increase: %d then %d", all[i-1].Seq, all[i].Seq)
		}
	}

	page, err := store.GetEventsAfter(ctx, all[0].Seq, "run-a", 1)
	if err != nil {
		t.Fatalf("GetEventsAfter failed: %v", err)
	}
	if len(page) != 1 || page[0].Seq != all[2].Seq {
		t.Errorf("Expected the second run-a event, got %+v", page)
	}

	if _, err := store.GetEventsAfter(ctx, 0, "", 0); err == nil {
		t.Error("Expected error for non-positive limit")
	}
}

func TestCleanupEventsByAge(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	old := events.NewEvent(events.EventTypeRunStarted, "run-old", events.SeverityInfo, "old", nil)
	old.Timestamp = time.Now().AddDate(0, 0, -40)
	recent := events.NewEvent(events.EventTypeRunStarted, "run-new", events.SeverityInfo, "new", nil)
	for _, e := range []*events.Event{old, recent} {
		if err := store.StoreEvent(ctx, e); err != nil {
			t.Fatalf("StoreEvent failed: %v", err)
		}
	}

	deleted, err := store.CleanupEventsByAge(ctx, 30)
	if err != nil {
		t.Fatalf("CleanupEventsByAge failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("Expected 1 deleted event, got %d", deleted)
	}

	if _, err := store.CleanupEventsByAge(ctx, 0); err == nil {
		t.Error("Expected error for non-positive retention")
	}
}

func TestInMemoryDatabase(t *testing.T) {
	store, err := New(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("Failed to create in-memory storage: %v", err)
	}
	defer func() { _ = store.Close() }()

	if err := store.CreateRun(context.Background(), newRun("run-mem")); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}
	got, err := store.GetRun(context.Background(), "run-mem")
	if err != nil || got == nil {
		t.Fatalf("Expected run from in-memory database, got %v (%v)", got, err)
	}
}

func TestReopenKeepsData(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "runs.db")
	ctx := context.Background()

	store, err := New(ctx, dbPath)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := store.CreateRun(ctx, newRun("run-1")); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}
	_ = store.Close()

	reopened, err := New(ctx, dbPath)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer func() { _ = reopened.Close() }()

	got, err := reopened.GetRun(ctx, "run-1")
	if err != nil || got == nil {
		t.Fatalf("Expected run after reopen, got %v (%v)", got, err)
	}
}

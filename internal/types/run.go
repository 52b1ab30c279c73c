package types

import (
	"fmt"
	"strings"
	"time"
)

// Run is one persisted invocation of the refinement loop
type Run struct {
	ID             string     `json:"id"`
	Request        string     `json:"request"`
	MaxIterations  int        `json:"max_iterations"`
	ScoreThreshold int        `json:"score_threshold"`
	Model          string     `json:"model,omitempty"`
	Status         RunStatus  `json:"status"`
	Outcome        string     `json:"outcome,omitempty"`
	IterationsUsed int        `json:"iterations_used"`
	FinalArtifact  string     `json:"final_artifact,omitempty"`
	FinalScore     int        `json:"final_score,omitempty"`
	MeetsCriteria  bool       `json:"meets_criteria"`
	Error          string     `json:"error,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// Validate checks if the run has valid field values
func (r *Run) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("id is required")
	}
	if strings.TrimSpace(r.Request) == "" {
		return fmt.Errorf("request is required")
	}
	if r.MaxIterations < 1 {
		return fmt.Errorf("max_iterations must be >= 1 (got %d)", r.MaxIterations)
	}
	if r.ScoreThreshold < 1 || r.ScoreThreshold > 10 {
		return fmt.Errorf("score_threshold must be between 1 and 10 (got %d)", r.ScoreThreshold)
	}
	if !r.Status.IsValid() {
		return fmt.Errorf("invalid status: %s", r.Status)
	}
	if r.IterationsUsed < 0 || r.IterationsUsed > r.MaxIterations {
		return fmt.Errorf("iterations_used must be between 0 and %d (got %d)", r.MaxIterations, r.IterationsUsed)
	}
	if r.Status == RunStatusCompleted && r.Outcome == "" {
		return fmt.Errorf("outcome is required for completed runs")
	}
	if r.Status == RunStatusFailed && r.Error == "" {
		return fmt.Errorf("error is required for failed runs")
	}
	return nil
}

// Duration returns how long the run took, or zero while it is still running
func (r *Run) Duration() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.CreatedAt)
}

// RunStatus represents the lifecycle state of a run
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// IsValid checks if the status value is valid
func (s RunStatus) IsValid() bool {
	switch s {
	case RunStatusRunning, RunStatusCompleted, RunStatusFailed:
		return true
	}
	return false
}

// IterationRecord is one entry of a run's evaluation trail
type IterationRecord struct {
	RunID         string    `json:"run_id"`
	Iteration     int       `json:"iteration"`
	Artifact      string    `json:"artifact"`
	FeedbackIn    []string  `json:"feedback_in,omitempty"`
	Score         int       `json:"score"`
	Feedback      []string  `json:"feedback"`
	MeetsCriteria bool      `json:"meets_criteria"`
	CreatedAt     time.Time `json:"created_at"`
}

// Validate checks if the record has valid field values
func (r *IterationRecord) Validate() error {
	if r.RunID == "" {
		return fmt.Errorf("run_id is required")
	}
	if r.Iteration < 1 {
		return fmt.Errorf("iteration must be >= 1 (got %d)", r.Iteration)
	}
	if r.Score < 1 || r.Score > 10 {
		return fmt.Errorf("score must be between 1 and 10 (got %d)", r.Score)
	}
	return nil
}

// RunFilter narrows ListRuns results
type RunFilter struct {
	Status RunStatus
	Limit  int
}

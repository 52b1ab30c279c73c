package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/steveyegge/patterns/internal/types"
)

// RecordIteration appends one evaluated iteration to a run's trail
func (s *SQLiteStorage) RecordIteration(ctx context.Context, record *types.IterationRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	feedbackIn, err := marshalStrings(record.FeedbackIn)
	if err != nil {
		return fmt.Errorf("failed to marshal feedback_in: %w", err)
	}
	feedback, err := marshalStrings(record.Feedback)
	if err != nil {
		return fmt.Errorf("failed to marshal feedback: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO iterations (
			run_id, iteration, artifact, feedback_in, score, feedback, meets_criteria, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		record.RunID, record.Iteration, record.Artifact, feedbackIn,
		record.Score, feedback, record.MeetsCriteria, record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record iteration %d of run %s: %w", record.Iteration, record.RunID, err)
	}
	return nil
}

// GetIterations returns a run's trail in iteration order
func (s *SQLiteStorage) GetIterations(ctx context.Context, runID string) ([]*types.IterationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, iteration, artifact, feedback_in, score, feedback, meets_criteria, created_at
		FROM iterations
		WHERE run_id = ?
		ORDER BY iteration ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query iterations: %w", err)
	}
	defer rows.Close()

	var records []*types.IterationRecord
	for rows.Next() {
		var rec types.IterationRecord
		var feedbackIn, feedback string
		if err := rows.Scan(
			&rec.RunID, &rec.Iteration, &rec.Artifact, &feedbackIn,
			&rec.Score, &feedback, &rec.MeetsCriteria, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan iteration: %w", err)
		}
		if err := json.Unmarshal([]byte(feedbackIn), &rec.FeedbackIn); err != nil {
			return nil, fmt.Errorf("failed to unmarshal feedback_in: %w", err)
		}
		if err := json.Unmarshal([]byte(feedback), &rec.Feedback); err != nil {
			return nil, fmt.Errorf("failed to unmarshal feedback: %w", err)
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}

func marshalStrings(items []string) (string, error) {
	if items == nil {
		items = []string{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

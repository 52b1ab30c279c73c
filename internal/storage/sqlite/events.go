package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/steveyegge/patterns/internal/events"
)

// StoreEvent stores a new progress event in the database
func (s *SQLiteStorage) StoreEvent(ctx context.Context, event *events.Event) error {
	dataJSON, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events (id, type, timestamp, run_id, severity, message, data)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		event.ID,
		event.Type,
		event.Timestamp,
		event.RunID,
		event.Severity,
		event.Message,
		string(dataJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to store event (type=%s, run=%s): %w", event.Type, event.RunID, err)
	}
	return nil
}

// GetEvents retrieves events matching the given filter, most recent first
func (s *SQLiteStorage) GetEvents(ctx context.Context, filter events.EventFilter) ([]*events.Event, error) {
	query := `
		SELECT id, type, timestamp, run_id, severity, message, data, rowid
		FROM events
		WHERE 1=1
	`
	args := []interface{}{}

	if filter.RunID != "" {
		query += " AND run_id = ?"
		args = append(args, filter.RunID)
	}
	if filter.Type != "" {
		query += " AND type = ?"
		args = append(args, filter.Type)
	}
	if filter.Severity != "" {
		query += " AND severity = ?"
		args = append(args, filter.Severity)
	}
	if !filter.AfterTime.IsZero() {
		query += " AND timestamp > ?"
		args = append(args, filter.AfterTime)
	}

	query += " ORDER BY timestamp DESC, rowid DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// GetEventsByRun retrieves all events for a specific run, oldest first
func (s *SQLiteStorage) GetEventsByRun(ctx context.Context, runID string) ([]*events.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, timestamp, run_id, severity, message, data, rowid
		FROM events
		WHERE run_id = ?
		ORDER BY timestamp ASC, rowid ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events by run: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// GetEventsAfter retrieves events stored after afterSeq, oldest first.
// Paging by rowid loses nothing when many events share a timestamp.
func (s *SQLiteStorage) GetEventsAfter(ctx context.Context, afterSeq int64, runID string, limit int) ([]*events.Event, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive (got %d)", limit)
	}

	query := `
		SELECT id, type, timestamp, run_id, severity, message, data, rowid
		FROM events
		WHERE rowid > ?
	`
	args := []interface{}{afterSeq}
	if runID != "" {
		query += " AND run_id = ?"
		args = append(args, runID)
	}
	query += " ORDER BY rowid ASC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events after %d: %w", afterSeq, err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// CleanupEventsByAge deletes events older than retentionDays.
// Returns the number of events deleted.
func (s *SQLiteStorage) CleanupEventsByAge(ctx context.Context, retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, fmt.Errorf("retentionDays must be positive (got %d)", retentionDays)
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	result, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old events: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(deleted), nil
}

func scanEvents(rows *sql.Rows) ([]*events.Event, error) {
	var result []*events.Event
	for rows.Next() {
		var event events.Event
		var dataJSON string
		if err := rows.Scan(
			&event.ID,
			&event.Type,
			&event.Timestamp,
			&event.RunID,
			&event.Severity,
			&event.Message,
			&dataJSON,
			&event.Seq,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if err := json.Unmarshal([]byte(dataJSON), &event.Data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event data: %w", err)
		}
		result = append(result, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}
	return result, nil
}

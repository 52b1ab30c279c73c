package storage

import (
	"context"

	"github.com/steveyegge/patterns/internal/events"
	"github.com/steveyegge/patterns/internal/storage/sqlite"
	"github.com/steveyegge/patterns/internal/types"
)

// Storage defines the interface for run history backends
type Storage interface {
	// Runs
	CreateRun(ctx context.Context, run *types.Run) error
	UpdateRun(ctx context.Context, run *types.Run) error
	GetRun(ctx context.Context, id string) (*types.Run, error)
	ListRuns(ctx context.Context, filter types.RunFilter) ([]*types.Run, error)

	// Evaluation trail
	RecordIteration(ctx context.Context, record *types.IterationRecord) error
	GetIterations(ctx context.Context, runID string) ([]*types.IterationRecord, error)

	// Progress events
	events.EventStore
	CleanupEventsByAge(ctx context.Context, retentionDays int) (int, error)

	// Lifecycle
	Close() error
}

// DefaultPath is where run history lives unless configured otherwise
const DefaultPath = ".patterns/patterns.db"

// Config holds database configuration
type Config struct {
	// Path is the SQLite database file path
	// Default: ".patterns/patterns.db"
	// Special value ":memory:" creates an in-memory database (useful for tests)
	Path string
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Path: DefaultPath,
	}
}

// NewStorage creates a new SQLite storage backend
func NewStorage(ctx context.Context, cfg *Config) (Storage, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}
	return sqlite.New(ctx, cfg.Path)
}

package sqlite

import "github.com/steveyegge/patterns/internal/storage/migrations"

const schema = `
-- Runs table: one row per refinement loop invocation
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    request TEXT NOT NULL,
    max_iterations INTEGER NOT NULL CHECK(max_iterations >= 1),
    score_threshold INTEGER NOT NULL CHECK(score_threshold >= 1 AND score_threshold <= 10),
    model TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'running',
    outcome TEXT NOT NULL DEFAULT '',
    iterations_used INTEGER NOT NULL DEFAULT 0,
    final_artifact TEXT NOT NULL DEFAULT '',
    final_score INTEGER NOT NULL DEFAULT 0,
    meets_criteria INTEGER NOT NULL DEFAULT 0,
    error TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    completed_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);

-- Iterations table: the evaluation trail of each run
CREATE TABLE IF NOT EXISTS iterations (
    run_id TEXT NOT NULL,
    iteration INTEGER NOT NULL CHECK(iteration >= 1),
    artifact TEXT NOT NULL,
    feedback_in TEXT NOT NULL DEFAULT '[]',
    score INTEGER NOT NULL CHECK(score >= 1 AND score <= 10),
    feedback TEXT NOT NULL DEFAULT '[]',
    meets_criteria INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (run_id, iteration),
    FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
);
`

const eventsSchema = `
-- Progress events: loop notices, routing decisions and AI usage
CREATE TABLE IF NOT EXISTS events (
    id TEXT PRIMARY KEY,
    type TEXT NOT NULL,
    timestamp DATETIME NOT NULL,
    run_id TEXT NOT NULL DEFAULT '',
    severity TEXT NOT NULL,
    message TEXT NOT NULL,
    data TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_events_run_id ON events(run_id);
CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp);
CREATE INDEX IF NOT EXISTS idx_events_type ON events(type);
`

func schemaMigrations() *migrations.Manager {
	return migrations.NewManager(
		migrations.Migration{
			Version:     1,
			Description: "runs and iterations",
			Up:          schema,
			Down:        `DROP TABLE IF EXISTS iterations; DROP TABLE IF EXISTS runs;`,
		},
		migrations.Migration{
			Version:     2,
			Description: "progress events",
			Up:          eventsSchema,
			Down:        `DROP TABLE IF EXISTS events;`,
		},
	)
}

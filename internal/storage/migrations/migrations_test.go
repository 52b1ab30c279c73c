package migrations

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testMigrations() []Migration {
	return []Migration{
		{
			Version:     2,
			Description: "add notes",
			Up:          `CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT)`,
			Down:        `DROP TABLE notes`,
		},
		{
			Version:     1,
			Description: "add widgets",
			Up:          `CREATE TABLE widgets (id INTEGER PRIMARY KEY)`,
			Down:        `DROP TABLE widgets`,
		},
	}
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var found string
	err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, name).Scan(&found)
	if err == sql.ErrNoRows {
		return false
	}
	if err != nil {
		t.Fatalf("Failed to query sqlite_master: %v", err)
	}
	return true
}

func TestApplyRunsInVersionOrder(t *testing.T) {
	db := openDB(t)
	m := NewManager(testMigrations()...)

	if err := m.Apply(db); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	version, err := Version(db)
	if err != nil {
		t.Fatalf("Version failed: %v", err)
	}
	if version != 2 {
		t.Errorf("Expected version 2, got %d", version)
	}
	if !tableExists(t, db, "widgets") || !tableExists(t, db, "notes") {
		t.Error("Expected both migration tables to exist")
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	db := openDB(t)
	m := NewManager(testMigrations()...)

	if err := m.Apply(db); err != nil {
		t.Fatalf("First apply failed: %v", err)
	}
	if err := m.Apply(db); err != nil {
		t.Fatalf("Second apply should skip applied migrations: %v", err)
	}
}

func TestRollback(t *testing.T) {
	db := openDB(t)
	m := NewManager(testMigrations()...)

	if err := m.Apply(db); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if err := m.Rollback(db); err != nil {
		t.Fatalf("Rollback failed: %v", err)
	}

	version, _ := Version(db)
	if version != 1 {
		t.Errorf("Expected version 1 after rollback, got %d", version)
	}
	if tableExists(t, db, "notes") {
		t.Error("Expected notes table to be dropped")
	}
}

func TestRollbackEmpty(t *testing.T) {
	db := openDB(t)
	m := NewManager()
	if err := m.Apply(db); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if err := m.Rollback(db); err == nil {
		t.Error("Expected error rolling back with nothing applied")
	}
}

func TestApplyFailureLeavesVersion(t *testing.T) {
	db := openDB(t)
	m := NewManager(
		Migration{Version: 1, Description: "ok", Up: `CREATE TABLE a (id INTEGER)`, Down: `DROP TABLE a`},
		Migration{Version: 2, Description: "broken", Up: `CREATE TABLE (`, Down: ``},
	)

	if err := m.Apply(db); err == nil {
		t.Fatal("Expected broken migration to fail")
	}
	version, _ := Version(db)
	if version != 1 {
		t.Errorf("Expected version to stay at 1, got %d", version)
	}
}

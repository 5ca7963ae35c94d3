package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection
type DB struct {
	*sql.DB
}

// New creates a new SQLite database connection
func New(dataSourceName string) (*DB, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return &DB{db}, nil
}

// RunMigrations creates the schema. It runs on every boot against the
// persistent database, so every statement must be idempotent. The task
// field and repeater-row tables mirror the legacy key-value field store:
// scalar fields by name, session rows addressed by a 1-based position.
func (db *DB) RunMigrations() error {
	migration := `
-- Task registry. Task CRUD itself is out of scope; this table anchors
-- existence checks and the creation date the monthly report fallback needs.
CREATE TABLE IF NOT EXISTS tasks (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    created_at TEXT NOT NULL
);

-- Scalar task fields, one row per (task, field name).
CREATE TABLE IF NOT EXISTS task_fields (
    task_id INTEGER NOT NULL,
    name TEXT NOT NULL,
    value TEXT NOT NULL,
    PRIMARY KEY (task_id, name),
    FOREIGN KEY (task_id) REFERENCES tasks(id)
);
CREATE INDEX IF NOT EXISTS idx_task_fields_by_name ON task_fields(name, value);

-- Repeater rows: 1-based position within a named repeater per task.
CREATE TABLE IF NOT EXISTS task_rows (
    task_id INTEGER NOT NULL,
    repeater TEXT NOT NULL,
    position INTEGER NOT NULL,
    field TEXT NOT NULL,
    value TEXT NOT NULL,
    PRIMARY KEY (task_id, repeater, position, field),
    FOREIGN KEY (task_id) REFERENCES tasks(id)
);

-- Taxonomy terms (status/client/project names). Read-only to the services.
CREATE TABLE IF NOT EXISTS terms (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    taxonomy TEXT NOT NULL,
    name TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_terms_taxonomy ON terms(taxonomy);

-- Denormalized active-timer indicator. A cache, never authoritative.
CREATE TABLE IF NOT EXISTS timer_markers (
    user_id INTEGER PRIMARY KEY,
    task_id INTEGER NOT NULL,
    is_running INTEGER NOT NULL DEFAULT 0,
    updated_at TEXT NOT NULL
);

-- API keys for authentication
CREATE TABLE IF NOT EXISTS api_keys (
    key_hash TEXT PRIMARY KEY,
    user_id INTEGER NOT NULL,
    created_at TEXT NOT NULL,
    description TEXT
);
CREATE INDEX IF NOT EXISTS idx_user_keys ON api_keys(user_id);
`

	_, err := db.Exec(migration)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

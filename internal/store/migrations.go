package store

import (
	"fmt"
)

func (s *Store) migrate() error {
	return s.migrateV1()
}

func (s *Store) migrateV1() error {
	schema := `
	CREATE TABLE IF NOT EXISTS projects (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_at  INTEGER NOT NULL,
		updated_at  INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tasks (
		id          TEXT PRIMARY KEY,
		project_id  TEXT NOT NULL REFERENCES projects(id),
		title       TEXT NOT NULL,
		description TEXT NOT NULL,
		labels      TEXT NOT NULL DEFAULT '[]',
		priority    TEXT NOT NULL DEFAULT 'medium',
		created_at  INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks(project_id, created_at);

	CREATE TABLE IF NOT EXISTS history_sessions (
		id         TEXT PRIMARY KEY,
		project_id TEXT NOT NULL REFERENCES projects(id),
		title      TEXT NOT NULL DEFAULT '',
		started_at INTEGER NOT NULL,
		closed_at  INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_history_project ON history_sessions(project_id, started_at);

	CREATE TABLE IF NOT EXISTS history_events (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		history_id TEXT NOT NULL REFERENCES history_sessions(id),
		event_type TEXT NOT NULL,
		payload    TEXT NOT NULL DEFAULT '{}',
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_hevents_session ON history_events(history_id, id);

	CREATE TABLE IF NOT EXISTS meta (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	INSERT OR REPLACE INTO meta(key, value) VALUES ('schema_version', '1');
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to execute migration v1: %w", err)
	}

	return nil
}

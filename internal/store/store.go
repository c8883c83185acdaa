// Package store provides SQLite-based persistence for analyses, agent
// performance, and learning patterns. It handles both the global store
// (~/.local/share/triage/triage.db) and project-local stores
// (.triage/triage.db).
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps an SQLite database connection with triage-specific operations.
type Store struct {
	conn *sql.DB
	path string
	mu   sync.RWMutex
}

// GlobalPath returns the path to the global triage database.
func GlobalPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, _ := os.UserHomeDir()
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "triage", "triage.db")
}

// ProjectPath returns the path to the project-local database.
func ProjectPath(projectRoot string) string {
	return filepath.Join(projectRoot, ".triage", "triage.db")
}

// Open opens an SQLite database at the given path, creating parent
// directories if needed. WAL mode is enabled for concurrent reads.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &Store{conn: conn, path: path}, nil
}

// OpenProject opens the project-local database.
func OpenProject(projectRoot string) (*Store, error) {
	return Open(ProjectPath(projectRoot))
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Close()
}

// Path returns the path to the database file.
func (s *Store) Path() string {
	return s.path
}

// Migrate applies all pending schema migrations.
func (s *Store) Migrate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var currentVersion int
	row := s.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migrationV1Analyses},
		{2, migrationV2AgentPerformance},
		{3, migrationV3LearningPatterns},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		tx, err := s.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}

		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration v%d: %w", m.version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration v%d: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// Migration SQL statements
const migrationV1Analyses = `
CREATE TABLE IF NOT EXISTS analyses (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	issue_id TEXT NOT NULL,
	issue_number INTEGER NOT NULL,
	category TEXT NOT NULL,
	complexity TEXT NOT NULL,
	languages TEXT NOT NULL,
	frameworks TEXT,
	priority TEXT NOT NULL,
	estimated_ms INTEGER NOT NULL,
	confidence INTEGER NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_analyses_issue_number ON analyses(issue_number);
CREATE INDEX IF NOT EXISTS idx_analyses_category ON analyses(category);
`

const migrationV2AgentPerformance = `
CREATE TABLE IF NOT EXISTS agent_performance (
	agent_id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	issue_number INTEGER NOT NULL,
	agent_type TEXT NOT NULL,
	status TEXT NOT NULL,
	started_at DATETIME,
	ended_at DATETIME,
	duration_ms INTEGER,
	exit_code INTEGER,
	success INTEGER,
	quality REAL,
	error TEXT,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_agent_performance_session ON agent_performance(session_id);
CREATE INDEX IF NOT EXISTS idx_agent_performance_type ON agent_performance(agent_type);
`

const migrationV3LearningPatterns = `
CREATE TABLE IF NOT EXISTS learning_patterns (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	pattern_key TEXT NOT NULL UNIQUE,
	pattern_type TEXT NOT NULL,
	characteristics TEXT NOT NULL,
	confidence REAL NOT NULL,
	approach TEXT NOT NULL,
	usage_count INTEGER NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_learning_patterns_type ON learning_patterns(pattern_type);
`

// formatTime formats a time.Time for SQLite storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// parseTime parses a time string from SQLite.
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

// nullString converts a string to sql.NullString, treating empty as null.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

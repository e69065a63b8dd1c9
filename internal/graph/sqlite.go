package graph

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements Store on a single SQLite database file
type SQLiteStore struct {
	db   *sql.DB
	path string
}

var _ Store = (*SQLiteStore)(nil)

// Open opens or creates the knowledge graph database under statePath
func Open(statePath string) (*SQLiteStore, error) {
	dbPath := filepath.Join(statePath, "memory.db")

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db, path: dbPath}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS entities (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		name_lower TEXT NOT NULL,
		entity_type TEXT NOT NULL,
		entity_type_raw TEXT,
		aliases TEXT,
		description TEXT,
		embedding TEXT,
		importance REAL NOT NULL DEFAULT 0.5,
		access_count INTEGER NOT NULL DEFAULT 0,
		first_seen DATETIME NOT NULL,
		last_seen DATETIME NOT NULL,
		source_event_ids TEXT
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_entities_name_lower ON entities(name_lower);
	CREATE INDEX IF NOT EXISTS idx_entities_importance ON entities(importance DESC);

	CREATE TABLE IF NOT EXISTS edges (
		id TEXT PRIMARY KEY,
		source_id TEXT NOT NULL,
		target_id TEXT NOT NULL,
		relation TEXT NOT NULL,
		relation_type TEXT NOT NULL,
		strength REAL NOT NULL DEFAULT 0.5,
		bidirectional INTEGER NOT NULL DEFAULT 0,
		evidence TEXT,
		is_current INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source_id);
	CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target_id);

	CREATE TABLE IF NOT EXISTS facts (
		id TEXT PRIMARY KEY,
		subject TEXT NOT NULL,
		predicate TEXT NOT NULL,
		object TEXT NOT NULL,
		fact_type TEXT NOT NULL,
		confidence REAL NOT NULL DEFAULT 0.5,
		strength REAL NOT NULL DEFAULT 0.5,
		contradicts TEXT,
		valid_from DATETIME NOT NULL,
		valid_to DATETIME,
		retrieval_count INTEGER NOT NULL DEFAULT 0,
		use_count INTEGER NOT NULL DEFAULT 0,
		source_event_ids TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_facts_subject ON facts(subject);

	CREATE TABLE IF NOT EXISTS summaries (
		id TEXT PRIMARY KEY,
		node_type TEXT NOT NULL,
		node_key TEXT NOT NULL UNIQUE,
		label TEXT NOT NULL,
		content TEXT,
		embedding TEXT,
		parent_id TEXT,
		events_since_refresh INTEGER NOT NULL DEFAULT 0,
		staleness_score REAL NOT NULL DEFAULT 0,
		priority_multiplier REAL NOT NULL DEFAULT 1.0,
		total_event_count INTEGER NOT NULL DEFAULT 0,
		last_refreshed_at DATETIME,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_summaries_parent ON summaries(parent_id);
	CREATE INDEX IF NOT EXISTS idx_summaries_staleness ON summaries(staleness_score DESC);

	CREATE TABLE IF NOT EXISTS cost_entries (
		id TEXT PRIMARY KEY,
		model TEXT NOT NULL,
		source TEXT NOT NULL,
		input_tokens INTEGER NOT NULL DEFAULT 0,
		output_tokens INTEGER NOT NULL DEFAULT 0,
		cost REAL NOT NULL DEFAULT 0,
		timestamp DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_cost_timestamp ON cost_entries(timestamp);

	CREATE TABLE IF NOT EXISTS learning_records (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		content TEXT NOT NULL,
		sentiment TEXT,
		timestamp DATETIME NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// marshalJSON encodes a slice column, returning NULL for empty values
func marshalJSON(v any) any {
	b, err := json.Marshal(v)
	if err != nil || string(b) == "null" || string(b) == "[]" {
		return nil
	}
	return string(b)
}

func unmarshalStrings(raw sql.NullString) []string {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw.String), &out); err != nil {
		return nil
	}
	return out
}

func unmarshalFloats(raw sql.NullString) []float32 {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	var out []float32
	if err := json.Unmarshal([]byte(raw.String), &out); err != nil {
		return nil
	}
	return out
}

package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

const migrationsSQL = `
CREATE TABLE IF NOT EXISTS sources (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	source_type TEXT NOT NULL,
	title TEXT,
	path TEXT,
	checksum TEXT,
	added_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(path, checksum)
);

CREATE TABLE IF NOT EXISTS cache_entries (
	lemma TEXT NOT NULL,
	category TEXT NOT NULL,
	record TEXT NOT NULL,
	fetched_at DATETIME NOT NULL,
	PRIMARY KEY (lemma, category)
);

CREATE INDEX IF NOT EXISTS idx_cache_entries_category ON cache_entries(category);

CREATE TABLE IF NOT EXISTS exclusions (
	lemma TEXT PRIMARY KEY,
	source_id INTEGER REFERENCES sources(id),
	added_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	source_id INTEGER REFERENCES sources(id),
	status TEXT NOT NULL,
	started_at DATETIME NOT NULL,
	finished_at DATETIME,
	token_count INTEGER NOT NULL DEFAULT 0,
	candidate_count INTEGER NOT NULL DEFAULT 0,
	kept_count INTEGER NOT NULL DEFAULT 0,
	enriched_count INTEGER NOT NULL DEFAULT 0,
	cache_hits INTEGER NOT NULL DEFAULT 0,
	fetched_count INTEGER NOT NULL DEFAULT 0,
	failed_count INTEGER NOT NULL DEFAULT 0,
	output_path TEXT,
	error TEXT
);

CREATE INDEX IF NOT EXISTS idx_runs_source ON runs(source_id);
`

// builder is shared by every query; sqlite takes ? placeholders.
var builder = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// Open opens (creating if needed) the SQLite database at path and runs the
// migrations. An in-memory database is pinned to a single connection so all
// callers see the same schema.
func Open(path string) (*sql.DB, error) {
	dsn := path
	if path != MemoryPath {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
		dsn = "file:" + path + "?_busy_timeout=5000&_foreign_keys=on"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if path == MemoryPath {
		db.SetMaxOpenConns(1)
	}
	if err := InitDB(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return db, nil
}

// InitDB runs migrations on the given DB connection.
func InitDB(db *sql.DB) error {
	stmts := strings.Split(migrationsSQL, ";")
	for _, s := range stmts {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

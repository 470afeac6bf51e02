package sqlitedb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	username      TEXT NOT NULL,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at    TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS health_tests (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id           INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	appetite          INTEGER NOT NULL,
	interest          INTEGER NOT NULL,
	fatigue           INTEGER NOT NULL,
	worthlessness     INTEGER NOT NULL,
	concentration     INTEGER NOT NULL,
	agitation         INTEGER NOT NULL,
	suicidal_ideation INTEGER NOT NULL,
	sleep_disturbance INTEGER NOT NULL,
	aggression        INTEGER NOT NULL,
	panic_attacks     INTEGER NOT NULL,
	hopelessness      INTEGER NOT NULL,
	restlessness      INTEGER NOT NULL,
	depression_state  INTEGER NOT NULL,
	classifier        TEXT NOT NULL,
	language          TEXT NOT NULL,
	suggestion_en     TEXT NOT NULL,
	suggestion_id     TEXT NOT NULL,
	tips_en           TEXT NOT NULL,
	tips_id           TEXT NOT NULL,
	latitude          REAL,
	longitude         REAL,
	health_test_date  TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS health_tests_user_date_idx ON health_tests (user_id, health_test_date DESC);
`

// Open connects to the SQLite database at dsn, applies pragmas and creates
// the schema. A single connection is kept so ":memory:" databases are shared.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return db, nil
}

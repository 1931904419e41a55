// Package database manages the local SQLite store backing papers, extracted
// assets, and generated narratives.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/poteroapp/potero/internal/config"
)

// DB wraps a SQLite database connection.
type DB struct {
	conn   *sql.DB
	path   string
	logger zerolog.Logger
}

// Open creates or opens the SQLite database at the configured path and
// ensures the schema exists.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (*DB, error) {
	if cfg.Path != ":memory:" {
		dir := filepath.Dir(cfg.Path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// modernc.org/sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY churn under concurrent jobs.
	conn.SetMaxOpenConns(1)

	if _, err := conn.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}
	if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	if cfg.BusyTimeout > 0 {
		pragma := fmt.Sprintf("PRAGMA busy_timeout=%d", cfg.BusyTimeout.Milliseconds())
		if _, err := conn.ExecContext(ctx, pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("setting busy timeout: %w", err)
		}
	}

	if err := ensureSchema(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}

	logger.Info().Str("path", cfg.Path).Msg("database opened")
	return &DB{conn: conn, path: cfg.Path, logger: logger}, nil
}

// Conn exposes the underlying connection for repositories.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Ping verifies the connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.conn.PingContext(ctx)
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func ensureSchema(ctx context.Context, conn *sql.DB) error {
	_, err := conn.ExecContext(ctx, schema)
	return err
}

const schema = `
CREATE TABLE IF NOT EXISTS papers (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    authors TEXT NOT NULL DEFAULT '[]',
    abstract TEXT NOT NULL DEFAULT '',
    doi TEXT NOT NULL DEFAULT '',
    arxiv_id TEXT NOT NULL DEFAULT '',
    year INTEGER NOT NULL DEFAULT 0,
    venue TEXT NOT NULL DEFAULT '',
    citation_count INTEGER NOT NULL DEFAULT 0,
    pdf_path TEXT NOT NULL DEFAULT '',
    thumbnail_path TEXT NOT NULL DEFAULT '',
    narrative_available INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS paper_texts (
    paper_id TEXT PRIMARY KEY REFERENCES papers(id) ON DELETE CASCADE,
    content TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS figures (
    id TEXT PRIMARY KEY,
    paper_id TEXT NOT NULL REFERENCES papers(id) ON DELETE CASCADE,
    label TEXT NOT NULL,
    caption TEXT NOT NULL DEFAULT '',
    path TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_figures_paper ON figures(paper_id);

CREATE TABLE IF NOT EXISTS formulas (
    id TEXT PRIMARY KEY,
    paper_id TEXT NOT NULL REFERENCES papers(id) ON DELETE CASCADE,
    label TEXT NOT NULL,
    latex TEXT NOT NULL,
    context TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_formulas_paper ON formulas(paper_id);

CREATE TABLE IF NOT EXISTS narratives (
    id TEXT PRIMARY KEY,
    paper_id TEXT NOT NULL REFERENCES papers(id) ON DELETE CASCADE,
    style TEXT NOT NULL,
    language TEXT NOT NULL,
    title TEXT NOT NULL,
    content TEXT NOT NULL,
    summary TEXT NOT NULL DEFAULT '',
    figure_explanations TEXT NOT NULL DEFAULT '[]',
    concept_explanations TEXT NOT NULL DEFAULT '[]',
    estimated_read_time INTEGER NOT NULL DEFAULT 1,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    UNIQUE(paper_id, style, language)
);

CREATE INDEX IF NOT EXISTS idx_narratives_paper ON narratives(paper_id);
`

// Package store persists the series catalog, observations, chart
// definitions and research insights in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"
)

// Sentinel errors surfaced to services; handlers map them onto problem
// documents with errors.Is.
var (
	ErrSeriesNotFound  = errors.New("series not found")
	ErrInsightNotFound = errors.New("insight not found")
	ErrChartNotFound   = errors.New("chart not found")
)

// Store wraps the SQLite database. All methods are safe for concurrent use;
// SQLite serializes writers and WAL mode keeps readers unblocked.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the database at path and runs migrations.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so dashboard reads are not blocked by import writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &Store{
		db:     db,
		logger: logger.With(slog.String("component", "store")),
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	s.logger.Info("store opened", slog.String("path", path))
	return s, nil
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS series (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			code       TEXT NOT NULL,
			field      TEXT NOT NULL,
			name       TEXT NOT NULL DEFAULT '',
			frequency  TEXT NOT NULL,
			currency   TEXT NOT NULL DEFAULT '',
			scale      REAL NOT NULL DEFAULT 1,
			start_date TEXT,
			end_date   TEXT,
			UNIQUE(code, field)
		)`,

		`CREATE TABLE IF NOT EXISTS observations (
			series_id INTEGER NOT NULL REFERENCES series(id) ON DELETE CASCADE,
			date      TEXT NOT NULL,
			value     REAL NOT NULL,
			PRIMARY KEY (series_id, date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_observations_series ON observations(series_id, date)`,

		`CREATE TABLE IF NOT EXISTS insights (
			id           TEXT PRIMARY KEY,
			issuer       TEXT NOT NULL,
			name         TEXT NOT NULL,
			published_at TEXT NOT NULL,
			filename     TEXT NOT NULL,
			pages        INTEGER NOT NULL DEFAULT 0,
			summary      TEXT NOT NULL DEFAULT '',
			status       TEXT NOT NULL DEFAULT 'pending',
			created_at   TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_insights_published ON insights(published_at)`,

		`CREATE TABLE IF NOT EXISTS charts (
			slug        TEXT PRIMARY KEY,
			title       TEXT NOT NULL,
			grp         TEXT NOT NULL DEFAULT '',
			expressions TEXT NOT NULL,
			style       TEXT NOT NULL DEFAULT '{}'
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

// Ping verifies database connectivity, for readiness checks.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Close closes the underlying database.
func (s *Store) Close() error {
	s.logger.Info("closing store")
	return s.db.Close()
}

// Package store implements the persistent snapshot store on SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/i474232898/weather-tracker/internal/weather"
)

// Compile-time check that SQLiteStore satisfies the service contract.
var _ weather.Store = (*SQLiteStore)(nil)

// SQLiteStore persists locations, current conditions, history snapshots and
// forecast sets in a single SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
// Use ":memory:" for an ephemeral database in tests.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite is single-writer, the pragmas below are per-connection, and a
	// second pooled connection to ":memory:" would see a distinct database.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Foreign keys drive the cascading delete of dependent weather records.
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %s: %w", pragma, err)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS locations (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			query        TEXT NOT NULL,
			name         TEXT NOT NULL,
			display_name TEXT NOT NULL DEFAULT '',
			country      TEXT NOT NULL,
			latitude     REAL NOT NULL,
			longitude    REAL NOT NULL,
			is_favorite  INTEGER NOT NULL DEFAULT 0,
			units        TEXT NOT NULL DEFAULT 'metric',
			last_synced  DATETIME,
			created_at   DATETIME NOT NULL,
			updated_at   DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS current_conditions (
			location_id INTEGER PRIMARY KEY
				REFERENCES locations(id) ON DELETE CASCADE,
			temperature REAL NOT NULL,
			feels_like  REAL NOT NULL,
			humidity    INTEGER NOT NULL,
			wind_speed  REAL NOT NULL,
			pressure    INTEGER NOT NULL,
			condition   TEXT NOT NULL,
			description TEXT NOT NULL,
			observed_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS history (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			location_id INTEGER NOT NULL
				REFERENCES locations(id) ON DELETE CASCADE,
			temperature REAL NOT NULL,
			feels_like  REAL NOT NULL,
			humidity    INTEGER NOT NULL,
			wind_speed  REAL NOT NULL,
			pressure    INTEGER NOT NULL,
			condition   TEXT NOT NULL,
			description TEXT NOT NULL,
			observed_at DATETIME NOT NULL,
			synced_at   DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_history_location_synced
			ON history(location_id, synced_at);

		CREATE TABLE IF NOT EXISTS forecasts (
			location_id INTEGER NOT NULL
				REFERENCES locations(id) ON DELETE CASCADE,
			forecast_ts INTEGER NOT NULL,
			temperature REAL NOT NULL,
			condition   TEXT NOT NULL,
			description TEXT NOT NULL,
			PRIMARY KEY (location_id, forecast_ts)
		);
	`)
	if err != nil {
		return fmt.Errorf("%w: applying schema: %v", weather.ErrStorage, err)
	}
	return nil
}

// querier is the query surface shared by *sql.DB and *sql.Tx, so the row
// readers below work both standalone and inside a transaction.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// inTx runs fn inside a transaction, rolling back on error.
func (s *SQLiteStore) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: beginning transaction: %v", weather.ErrStorage, err)
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing transaction: %v", weather.ErrStorage, err)
	}
	return nil
}

// Package store is the persistent layer: bulk-seeded price aggregates,
// the item-name index, market history, and small bookkeeping tables in
// a single SQLite file. Writes are serialized per table, reads run
// concurrently on the shared connection pool.
package store

import (
	"database/sql"
	"fmt"
	"sync"

	"eve-tactician/internal/logger"
	_ "modernc.org/sqlite"
)

// Store wraps the SQLite database.
type Store struct {
	sql *sql.DB

	aggMu  sync.Mutex
	typeMu sync.Mutex
	metaMu sync.Mutex
	histMu sync.Mutex
}

// Open opens (or creates) the database at path and runs migrations.
func Open(path string) (*Store, error) {
	sqlDB, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}
	s := &Store{sql: sqlDB}
	if err := s.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate db: %w", err)
	}
	logger.Success("DB", fmt.Sprintf("Opened %s", path))
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.sql.Close()
}

func (s *Store) migrate() error {
	version := 0
	s.sql.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)

	if version < 1 {
		_, err := s.sql.Exec(`
			CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY);

			CREATE TABLE IF NOT EXISTS aggregates (
				region_id        INTEGER NOT NULL,
				type_id          INTEGER NOT NULL,
				side             TEXT NOT NULL CHECK (side IN ('buy','sell')),
				weighted_average REAL NOT NULL DEFAULT 0,
				min_price        REAL NOT NULL DEFAULT 0,
				max_price        REAL NOT NULL DEFAULT 0,
				median           REAL NOT NULL DEFAULT 0,
				std_dev          REAL NOT NULL DEFAULT 0,
				volume           INTEGER NOT NULL DEFAULT 0,
				order_count      INTEGER NOT NULL DEFAULT 0,
				percentile       REAL NOT NULL DEFAULT 0,
				updated_at       TEXT NOT NULL,
				PRIMARY KEY (region_id, type_id, side)
			);
			CREATE INDEX IF NOT EXISTS idx_aggregates_region ON aggregates(region_id);

			CREATE TABLE IF NOT EXISTS types (
				type_id         INTEGER PRIMARY KEY,
				name            TEXT NOT NULL,
				name_lower      TEXT NOT NULL,
				group_id        INTEGER NOT NULL DEFAULT 0,
				market_group_id INTEGER NOT NULL DEFAULT 0
			);
			CREATE INDEX IF NOT EXISTS idx_types_name_lower ON types(name_lower);

			CREATE TABLE IF NOT EXISTS metadata (
				key        TEXT PRIMARY KEY,
				value      TEXT NOT NULL,
				updated_at TEXT NOT NULL
			);

			INSERT OR IGNORE INTO schema_version (version) VALUES (1);
		`)
		if err != nil {
			return fmt.Errorf("migration v1: %w", err)
		}
		logger.Info("DB", "Applied migration v1")
	}

	if version < 2 {
		_, err := s.sql.Exec(`
			CREATE TABLE IF NOT EXISTS market_history (
				region_id   INTEGER NOT NULL,
				type_id     INTEGER NOT NULL,
				date        TEXT NOT NULL,
				average     REAL,
				highest     REAL,
				lowest      REAL,
				volume      INTEGER,
				order_count INTEGER,
				PRIMARY KEY (region_id, type_id, date)
			);

			CREATE TABLE IF NOT EXISTS market_history_meta (
				region_id  INTEGER NOT NULL,
				type_id    INTEGER NOT NULL,
				updated_at TEXT NOT NULL,
				PRIMARY KEY (region_id, type_id)
			);

			INSERT OR IGNORE INTO schema_version (version) VALUES (2);
		`)
		if err != nil {
			return fmt.Errorf("migration v2: %w", err)
		}
		logger.Info("DB", "Applied migration v2 (market history)")
	}

	return nil
}

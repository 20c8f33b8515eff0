package store

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// Store is the persistent collaborator holding the holdings table and the
// append-only daily price ledger.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// Open opens (or creates) the SQLite database and runs migrations.
func Open(path string, log zerolog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &Store{db: db, log: log}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info().Str("path", path).Msg("store opened")
	return s, nil
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS prices_daily (
			id     INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol TEXT NOT NULL,
			price  REAL NOT NULL,
			asof   TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_prices_symbol_asof ON prices_daily(symbol, asof)`,

		`CREATE TABLE IF NOT EXISTS holdings (
			symbol     TEXT PRIMARY KEY,
			quantity   REAL NOT NULL DEFAULT 0,
			cost_basis REAL NOT NULL DEFAULT 0,
			currency   TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	s.log.Debug().Msg("closing store")
	return s.db.Close()
}

// backend/database/connection.go
package database

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/stockvaluatorpro/taxdata/backend/config"
)

// Store owns the SQLite database holding the three reference tables and the
// update history. All access goes through its methods; the ledger methods in
// history_store.go are the only mutation path for history rows.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if necessary) the SQLite database and ensures the
// schema exists.
func Open(cfg config.DatabaseConfig) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is not configured")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// WAL mode so the scheduler's writes don't block admin reads.
	db, err := sql.Open("sqlite", cfg.Path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db, path: cfg.Path}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	log.Printf("Database: connected to %s\n", cfg.Path)
	return s, nil
}

func (s *Store) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS update_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			data_type TEXT NOT NULL,
			checked_at TIMESTAMP NOT NULL,
			last_modified TEXT NOT NULL DEFAULT '',
			etag TEXT NOT NULL DEFAULT '',
			content_hash TEXT NOT NULL DEFAULT '',
			update_available BOOLEAN NOT NULL DEFAULT FALSE,
			status TEXT NOT NULL DEFAULT 'checked',
			approved_by TEXT NOT NULL DEFAULT '',
			executed_at TIMESTAMP,
			notes TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_update_history_type_checked
			ON update_history (data_type, checked_at DESC, id DESC)`,
		`CREATE TABLE IF NOT EXISTS comparable_industry_data (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			year INTEGER NOT NULL,
			month INTEGER NOT NULL,
			industry_code TEXT NOT NULL,
			industry_name TEXT NOT NULL,
			average_price REAL NOT NULL,
			average_dividend REAL NOT NULL,
			average_profit REAL NOT NULL,
			average_net_assets REAL NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(year, month, industry_code)
		)`,
		`CREATE TABLE IF NOT EXISTS dividend_reduction_rates (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			year INTEGER NOT NULL,
			month INTEGER NOT NULL,
			capital_range_min INTEGER NOT NULL,
			capital_range_max INTEGER NOT NULL,
			reduction_rate REAL NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(year, month, capital_range_min, capital_range_max)
		)`,
		`CREATE TABLE IF NOT EXISTS company_size_criteria (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			year INTEGER NOT NULL,
			month INTEGER NOT NULL,
			industry_type TEXT NOT NULL,
			size_category TEXT NOT NULL,
			employee_min INTEGER,
			employee_max INTEGER,
			asset_min INTEGER,
			asset_max INTEGER,
			sales_min INTEGER,
			sales_max INTEGER,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(year, month, industry_type, size_category)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}

// Ping verifies the connection, for health checks.
func (s *Store) Ping() error {
	return s.db.Ping()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database. Typically called on application shutdown.
func (s *Store) Close() error {
	log.Println("Database: connection closed.")
	return s.db.Close()
}

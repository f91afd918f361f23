package db

import (
	"database/sql"
	"fmt"

	"github.com/goran-ethernal/TransferIndexor/pkg/config"
	_ "github.com/mattn/go-sqlite3"
)

const driverSQLite = "sqlite3"

// NewSQLiteDB opens a SQLite database with the default tuning.
func NewSQLiteDB(dbPath string) (*sql.DB, error) {
	cfg := config.DatabaseConfig{}
	cfg.ApplyDefaults()

	return NewSQLiteDBFromConfig(dbPath, cfg)
}

// NewSQLiteDBFromConfig opens a SQLite database at dbPath with the given tuning.
// Writers take the lock at BEGIN (_txlock=immediate) so a rewind never races a concurrent insert.
func NewSQLiteDBFromConfig(dbPath string, cfg config.DatabaseConfig) (*sql.DB, error) {
	connStr := fmt.Sprintf(
		"file:%s?_txlock=immediate&_foreign_keys=on&_journal_mode=%s&_busy_timeout=%d",
		dbPath,
		cfg.JournalMode,
		cfg.BusyTimeout,
	)

	db, err := sql.Open(driverSQLite, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Apply connection pool settings
	db.SetMaxOpenConns(cfg.MaxOpenConnections)
	db.SetMaxIdleConns(cfg.MaxIdleConnections)

	// Apply PRAGMA settings
	pragmas := []string{
		fmt.Sprintf("PRAGMA synchronous = %s", cfg.Synchronous),
		fmt.Sprintf("PRAGMA cache_size = %d", cfg.CacheSize),
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	return db, nil
}

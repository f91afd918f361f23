package db

import (
	"path/filepath"
	"testing"

	"github.com/goran-ethernal/TransferIndexor/internal/logger"
	"github.com/goran-ethernal/TransferIndexor/pkg/config"
	migrate "github.com/rubenv/sql-migrate"
	"github.com/stretchr/testify/require"
)

const testMigration = `
-- +migrate Down
DROP TABLE IF EXISTS widgets;
DROP TABLE IF EXISTS gadgets;

-- +migrate Up
-- two tables to exercise statement splitting
CREATE TABLE widgets (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL
);
CREATE TABLE gadgets (
    id INTEGER PRIMARY KEY
);
`

func TestNewSQLiteDBFromConfig_Pragmas(t *testing.T) {
	cfg := config.DatabaseConfig{JournalMode: "WAL", Synchronous: "FULL"}
	cfg.ApplyDefaults()

	sqlDB, err := NewSQLiteDBFromConfig(filepath.Join(t.TempDir(), "pragmas.db"), cfg)
	require.NoError(t, err)
	defer sqlDB.Close()

	var journal string
	require.NoError(t, sqlDB.QueryRow("PRAGMA journal_mode").Scan(&journal))
	require.Equal(t, "wal", journal)

	var busyTimeout int
	require.NoError(t, sqlDB.QueryRow("PRAGMA busy_timeout").Scan(&busyTimeout))
	require.Equal(t, cfg.BusyTimeout, busyTimeout)
}

func TestParseMigration(t *testing.T) {
	mig, err := parseMigration(Migration{ID: "001_test.sql", SQL: testMigration})
	require.NoError(t, err)

	require.Equal(t, "001_test.sql", mig.Id)
	require.Len(t, mig.Up, 2)
	require.Contains(t, mig.Up[0], "CREATE TABLE widgets")
	require.Contains(t, mig.Up[1], "CREATE TABLE gadgets")
	require.Len(t, mig.Down, 2)
	require.Equal(t, "DROP TABLE IF EXISTS widgets;", mig.Down[0])
}

func TestParseMigration_MissingSeparator(t *testing.T) {
	_, err := parseMigration(Migration{ID: "bad.sql", SQL: "CREATE TABLE x (id INTEGER);"})
	require.ErrorContains(t, err, "missing")
}

func TestRunMigrationsDB_UpAndDown(t *testing.T) {
	sqlDB, err := NewSQLiteDB(filepath.Join(t.TempDir(), "migrations.db"))
	require.NoError(t, err)
	defer sqlDB.Close()

	log := logger.NewNopLogger()
	migs := []Migration{{ID: "001_test.sql", SQL: testMigration}}

	require.NoError(t, RunMigrationsDB(log, sqlDB, DialectSQLite, migs))
	// second run is a no-op
	require.NoError(t, RunMigrationsDB(log, sqlDB, DialectSQLite, migs))

	_, err = sqlDB.Exec("INSERT INTO widgets (name) VALUES ('a')")
	require.NoError(t, err)

	require.NoError(t, RunMigrationsDBExtended(log, sqlDB, DialectSQLite, migs, migrate.Down, NoLimitMigrations))

	_, err = sqlDB.Exec("INSERT INTO widgets (name) VALUES ('b')")
	require.Error(t, err)
}

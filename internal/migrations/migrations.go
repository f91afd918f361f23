package migrations

import (
	"database/sql"
	"embed"
	"fmt"
	"path"

	"github.com/goran-ethernal/TransferIndexor/internal/db"
	"github.com/goran-ethernal/TransferIndexor/internal/logger"
)

//go:embed sqlite/*.sql postgres/*.sql
var files embed.FS

// SQLite returns the migrations of the SQLite schema in order.
func SQLite() ([]db.Migration, error) {
	return load("sqlite")
}

// Postgres returns the migrations of the Postgres schema in order.
func Postgres() ([]db.Migration, error) {
	return load("postgres")
}

// RunSQLite applies pending SQLite migrations on sqlDB.
func RunSQLite(log *logger.Logger, sqlDB *sql.DB) error {
	migs, err := SQLite()
	if err != nil {
		return err
	}
	return db.RunMigrationsDB(log, sqlDB, db.DialectSQLite, migs)
}

// RunPostgres applies pending Postgres migrations on sqlDB.
func RunPostgres(log *logger.Logger, sqlDB *sql.DB) error {
	migs, err := Postgres()
	if err != nil {
		return err
	}
	return db.RunMigrationsDB(log, sqlDB, db.DialectPostgres, migs)
}

// load reads every .sql file of dir; fs.ReadDir returns them sorted by name.
func load(dir string) ([]db.Migration, error) {
	entries, err := files.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s migrations: %w", dir, err)
	}

	migs := make([]db.Migration, 0, len(entries))
	for _, entry := range entries {
		content, err := files.ReadFile(path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", entry.Name(), err)
		}
		migs = append(migs, db.Migration{ID: entry.Name(), SQL: string(content)})
	}

	return migs, nil
}

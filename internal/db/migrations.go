package db

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/goran-ethernal/TransferIndexor/internal/logger"
	migrate "github.com/rubenv/sql-migrate"
)

const (
	UpDownSeparator     = "-- +migrate Up"
	DownMarker          = "-- +migrate Down"
	NoLimitMigrations   = 0 // indicate that there is no limit on the number of migrations to run
	migrationDirections = 2
)

// Dialects understood by sql-migrate.
const (
	DialectSQLite   = "sqlite3"
	DialectPostgres = "postgres"
)

type Migration struct {
	ID  string
	SQL string
}

// RunMigrationsDB applies all pending up migrations on db using the given sql-migrate dialect.
func RunMigrationsDB(logger *logger.Logger, db *sql.DB, dialect string, migrationsParam []Migration) error {
	return RunMigrationsDBExtended(logger, db, dialect, migrationsParam, migrate.Up, NoLimitMigrations)
}

// RunMigrationsDBExtended is an extended version of RunMigrationsDB that allows
// dir: can be migrate.Up or migrate.Down
// maxMigrations: Will apply at most `max` migrations. Pass 0 for no limit (or use Exec)
func RunMigrationsDBExtended(logger *logger.Logger,
	db *sql.DB,
	dialect string,
	migrationsParam []Migration,
	dir migrate.MigrationDirection,
	maxMigrations int) error {
	migs := &migrate.MemoryMigrationSource{Migrations: make([]*migrate.Migration, 0, len(migrationsParam))}

	for _, m := range migrationsParam {
		mig, err := parseMigration(m)
		if err != nil {
			return err
		}
		migs.Migrations = append(migs.Migrations, mig)
	}

	ids := make([]string, len(migs.Migrations))
	for i, m := range migs.Migrations {
		ids[i] = m.Id
	}
	listMigrations := strings.Join(ids, ", ")

	logger.Debugf("running %s migrations: (max %d/%d) migrations: %s", dialect, maxMigrations,
		len(migs.Migrations),
		listMigrations)

	ms := migrate.MigrationSet{IgnoreUnknown: maxMigrations != NoLimitMigrations}
	nMigrations, err := ms.ExecMax(db, dialect, migs, dir, maxMigrations)
	if err != nil {
		return fmt.Errorf("error executing migration (max %d/%d) migrations: %s . Err: %w",
			maxMigrations, len(migs.Migrations), listMigrations, err)
	}

	logger.Infof("successfully ran %d migrations from migrations: %s", nMigrations, listMigrations)
	return nil
}

// parseMigration splits a file of the form "-- +migrate Down ... -- +migrate Up ..." into its two directions.
func parseMigration(m Migration) (*migrate.Migration, error) {
	splitted := strings.Split(m.SQL, UpDownSeparator)
	if len(splitted) < migrationDirections {
		return nil, fmt.Errorf("migration %s missing '%s' separator", m.ID, UpDownSeparator)
	}

	downSQL := splitted[0]
	if idx := strings.Index(downSQL, DownMarker); idx != -1 {
		downSQL = downSQL[idx+len(DownMarker):]
	}

	return &migrate.Migration{
		Id:   m.ID,
		Up:   splitStatements(splitted[1]),
		Down: splitStatements(downSQL),
	}, nil
}

// splitStatements breaks a section on statement-terminating semicolons so that
// drivers without multi-statement support (pgx extended protocol) can run it.
func splitStatements(section string) []string {
	var stmts []string
	for _, part := range strings.SplitAfter(section, ";") {
		if stmt := strings.TrimSpace(part); stmt != "" && stmt != ";" && !onlyComments(stmt) {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

func onlyComments(stmt string) bool {
	for _, line := range strings.Split(stmt, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "--") {
			return false
		}
	}
	return true
}

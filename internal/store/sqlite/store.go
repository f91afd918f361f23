package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/goran-ethernal/TransferIndexor/internal/db"
	"github.com/goran-ethernal/TransferIndexor/internal/logger"
	"github.com/goran-ethernal/TransferIndexor/internal/metrics"
	"github.com/goran-ethernal/TransferIndexor/internal/migrations"
	"github.com/goran-ethernal/TransferIndexor/pkg/config"
	"github.com/goran-ethernal/TransferIndexor/pkg/store"
	"github.com/russross/meddler"
)

var _ store.Store = (*Store)(nil)

const dbLabel = "sqlite"

// Store is the SQLite implementation of store.Store.
type Store struct {
	db      *sql.DB
	log     *logger.Logger
	lockTTL time.Duration
	now     func() time.Time
}

// Open opens (creating if needed) the SQLite database at path and migrates it to the latest schema.
func Open(path string, cfg config.DatabaseConfig, lockTTL time.Duration, log *logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:mnd
			return nil, store.Wrap("create database directory", err)
		}
	}

	sqlDB, err := db.NewSQLiteDBFromConfig(path, cfg)
	if err != nil {
		return nil, store.Wrap("open", err)
	}

	if err := migrations.RunSQLite(log, sqlDB); err != nil {
		sqlDB.Close()
		return nil, store.Wrap("migrate", err)
	}

	log.Debugf("sqlite store opened: path=%s journal_mode=%s", path, cfg.JournalMode)

	return &Store{
		db:      sqlDB,
		log:     log,
		lockTTL: lockTTL,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// InsertTransfer inserts event unless a row with the same (transaction_hash, log_index) exists.
func (s *Store) InsertTransfer(ctx context.Context, event *store.TransferEvent) (inserted bool, err error) {
	defer s.observe("insert_transfer", time.Now(), &err)

	n, err := insertRow(ctx, s.db, "INSERT OR IGNORE", "transfer_events", event)
	if err != nil {
		return false, store.Wrap(fmt.Sprintf("insert transfer %s", event.ID), err)
	}

	return n == 1, nil
}

// InsertProcessedBlock inserts or replaces the checkpoint at blockNumber.
func (s *Store) InsertProcessedBlock(
	ctx context.Context,
	blockNumber uint64,
	blockHash common.Hash,
	timestamp time.Time,
) (err error) {
	defer s.observe("insert_processed_block", time.Now(), &err)

	block := &store.ProcessedBlock{
		BlockNumber: blockNumber,
		BlockHash:   blockHash,
		Timestamp:   timestamp,
		ProcessedAt: s.now(),
	}

	if _, err := insertRow(ctx, s.db, "INSERT OR REPLACE", "processed_blocks", block); err != nil {
		return store.Wrap(fmt.Sprintf("insert processed block %d", blockNumber), err)
	}

	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// insertRow runs "<verb> INTO table (...) VALUES (...)" with the columns meddler derives from row.
func insertRow(ctx context.Context, ex execer, verb, table string, row any) (int64, error) {
	columns, err := meddler.ColumnsQuoted(row, true)
	if err != nil {
		return 0, err
	}
	placeholders, err := meddler.PlaceholdersString(row, true)
	if err != nil {
		return 0, err
	}
	values, err := meddler.Values(row, true)
	if err != nil {
		return 0, err
	}

	query := fmt.Sprintf("%s INTO %s (%s) VALUES (%s)", verb, table, columns, placeholders)
	res, err := ex.ExecContext(ctx, query, values...)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

// LatestProcessedBlock returns the highest checkpointed block.
func (s *Store) LatestProcessedBlock(ctx context.Context) (latest uint64, found bool, err error) {
	defer s.observe("latest_processed_block", time.Now(), &err)

	var maxBlock sql.NullInt64
	if err := s.db.QueryRowContext(ctx, "SELECT MAX(block_number) FROM processed_blocks").Scan(&maxBlock); err != nil {
		return 0, false, store.Wrap("latest processed block", err)
	}

	if !maxBlock.Valid {
		return 0, false, nil
	}

	return uint64(maxBlock.Int64), true, nil //nolint:gosec
}

// StoredBlockHash returns the checkpoint hash at blockNumber.
func (s *Store) StoredBlockHash(ctx context.Context, blockNumber uint64) (hash common.Hash, found bool, err error) {
	defer s.observe("stored_block_hash", time.Now(), &err)

	rows, err := s.db.QueryContext(ctx, "SELECT * FROM processed_blocks WHERE block_number = ?", blockNumber)
	if err != nil {
		return common.Hash{}, false, store.Wrap(fmt.Sprintf("stored block hash %d", blockNumber), err)
	}

	var block store.ProcessedBlock
	err = meddler.ScanRow(rows, &block)
	if errors.Is(err, sql.ErrNoRows) {
		return common.Hash{}, false, nil
	}
	if err != nil {
		return common.Hash{}, false, store.Wrap(fmt.Sprintf("stored block hash %d", blockNumber), err)
	}

	return block.BlockHash, true, nil
}

// RewindFrom deletes transfers and checkpoints at or above invalidBlock in one transaction.
func (s *Store) RewindFrom(ctx context.Context, invalidBlock uint64) (err error) {
	defer s.observe("rewind", time.Now(), &err)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return store.Wrap("begin rewind", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			s.log.Errorf("failed to rollback transaction: %v", err)
		}
	}()

	transfers, err := tx.ExecContext(ctx, "DELETE FROM transfer_events WHERE block_number >= ?", invalidBlock)
	if err != nil {
		return store.Wrap("rewind transfers", err)
	}

	blocks, err := tx.ExecContext(ctx, "DELETE FROM processed_blocks WHERE block_number >= ?", invalidBlock)
	if err != nil {
		return store.Wrap("rewind processed blocks", err)
	}

	if err := tx.Commit(); err != nil {
		return store.Wrap("commit rewind", err)
	}

	deletedTransfers, _ := transfers.RowsAffected()
	deletedBlocks, _ := blocks.RowsAffected()
	s.log.Infow("rewound store",
		"from_block", invalidBlock,
		"deleted_transfers", deletedTransfers,
		"deleted_blocks", deletedBlocks,
	)

	return nil
}

// QueryTransfers returns transfers matching filter, newest block first.
// A zero Limit, or one too large for a signed 64-bit bind, returns every match.
func (s *Store) QueryTransfers(ctx context.Context, filter store.TransferFilter) (events []*store.TransferEvent, err error) {
	defer s.observe("query_transfers", time.Now(), &err)

	var (
		where []string
		args  []any
	)

	if filter.Address != nil {
		address := db.LowerHex(*filter.Address)
		where = append(where, "(from_address = ? OR to_address = ?)")
		args = append(args, address, address)
	}
	if filter.FromBlock != nil {
		where = append(where, "block_number >= ?")
		args = append(args, *filter.FromBlock)
	}
	if filter.ToBlock != nil {
		where = append(where, "block_number <= ?")
		args = append(args, *filter.ToBlock)
	}

	var query strings.Builder
	query.WriteString("SELECT * FROM transfer_events")
	if len(where) > 0 {
		query.WriteString(" WHERE ")
		query.WriteString(strings.Join(where, " AND "))
	}
	query.WriteString(" ORDER BY block_number DESC, log_index ASC")
	if filter.Limit > 0 && filter.Limit <= math.MaxInt64 {
		query.WriteString(" LIMIT ?")
		args = append(args, int64(filter.Limit)) //nolint:gosec
	}

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, store.Wrap("query transfers", err)
	}

	if err := meddler.ScanAll(rows, &events); err != nil {
		return nil, store.Wrap("scan transfers", err)
	}

	return events, nil
}

// Stats summarizes the transfer table.
func (s *Store) Stats(ctx context.Context) (stats store.Stats, err error) {
	defer s.observe("stats", time.Now(), &err)

	const totalsQuery = `
		SELECT COUNT(*), MAX(block_number), MIN(block_number)
		FROM transfer_events
	`
	var (
		total              int64
		latest, earliest   sql.NullInt64
		uniqueAddressCount int64
	)
	if err := s.db.QueryRowContext(ctx, totalsQuery).Scan(&total, &latest, &earliest); err != nil {
		return store.Stats{}, store.Wrap("stats totals", err)
	}

	const uniqueQuery = `
		SELECT COUNT(*) FROM (
			SELECT from_address AS address FROM transfer_events
			UNION
			SELECT to_address AS address FROM transfer_events
		)
	`
	if err := s.db.QueryRowContext(ctx, uniqueQuery).Scan(&uniqueAddressCount); err != nil {
		return store.Stats{}, store.Wrap("stats unique addresses", err)
	}

	stats.TotalTransfers = uint64(total)              //nolint:gosec
	stats.UniqueAddresses = uint64(uniqueAddressCount) //nolint:gosec
	if latest.Valid {
		v := uint64(latest.Int64) //nolint:gosec
		stats.LatestBlock = &v
	}
	if earliest.Valid {
		v := uint64(earliest.Int64) //nolint:gosec
		stats.EarliestBlock = &v
	}

	return stats, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) observe(operation string, start time.Time, errp *error) {
	metrics.DBObserve(dbLabel, operation, start, *errp)
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/goran-ethernal/TransferIndexor/internal/db"
	"github.com/goran-ethernal/TransferIndexor/internal/logger"
	"github.com/goran-ethernal/TransferIndexor/internal/metrics"
	"github.com/goran-ethernal/TransferIndexor/internal/migrations"
	"github.com/goran-ethernal/TransferIndexor/pkg/store"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

var _ store.Store = (*Store)(nil)

const dbLabel = "postgres"

// Store is the PostgreSQL implementation of store.Store.
type Store struct {
	pool *pgxpool.Pool
	log  *logger.Logger
	now  func() time.Time
}

// Open connects to the database at url and migrates it to the latest schema.
func Open(ctx context.Context, url string, log *logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}

	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, store.Wrap("open", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, store.Wrap("ping", err)
	}

	sqlDB := stdlib.OpenDBFromPool(pool)
	err = migrations.RunPostgres(log, sqlDB)
	sqlDB.Close()
	if err != nil {
		pool.Close()
		return nil, store.Wrap("migrate", err)
	}

	log.Debug("postgres store opened")

	return &Store{
		pool: pool,
		log:  log,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

// InsertTransfer inserts event unless a row with the same (transaction_hash, log_index) exists.
func (s *Store) InsertTransfer(ctx context.Context, event *store.TransferEvent) (inserted bool, err error) {
	defer s.observe("insert_transfer", time.Now(), &err)

	const query = `
		INSERT INTO transfer_events (
			id, transaction_hash, log_index, block_number, block_hash,
			from_address, to_address, value, timestamp, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT DO NOTHING
	`
	tag, err := s.pool.Exec(ctx, query,
		event.ID,
		event.TransactionHash.Hex(),
		event.LogIndex,
		event.BlockNumber,
		event.BlockHash.Hex(),
		db.LowerHex(event.FromAddress),
		db.LowerHex(event.ToAddress),
		event.Value,
		event.Timestamp.UTC(),
		event.CreatedAt.UTC(),
	)
	if err != nil {
		return false, store.Wrap(fmt.Sprintf("insert transfer %s", event.ID), err)
	}

	return tag.RowsAffected() == 1, nil
}

// InsertProcessedBlock inserts or replaces the checkpoint at blockNumber.
func (s *Store) InsertProcessedBlock(
	ctx context.Context,
	blockNumber uint64,
	blockHash common.Hash,
	timestamp time.Time,
) (err error) {
	defer s.observe("insert_processed_block", time.Now(), &err)

	const query = `
		INSERT INTO processed_blocks (block_number, block_hash, timestamp, processed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (block_number) DO UPDATE SET
			block_hash = EXCLUDED.block_hash,
			timestamp = EXCLUDED.timestamp,
			processed_at = EXCLUDED.processed_at
	`
	if _, err := s.pool.Exec(ctx, query, blockNumber, blockHash.Hex(), timestamp.UTC(), s.now()); err != nil {
		return store.Wrap(fmt.Sprintf("insert processed block %d", blockNumber), err)
	}

	return nil
}

// LatestProcessedBlock returns the highest checkpointed block.
func (s *Store) LatestProcessedBlock(ctx context.Context) (latest uint64, found bool, err error) {
	defer s.observe("latest_processed_block", time.Now(), &err)

	var maxBlock *int64
	if err := s.pool.QueryRow(ctx, "SELECT MAX(block_number) FROM processed_blocks").Scan(&maxBlock); err != nil {
		return 0, false, store.Wrap("latest processed block", err)
	}

	if maxBlock == nil {
		return 0, false, nil
	}

	return uint64(*maxBlock), true, nil //nolint:gosec
}

// StoredBlockHash returns the checkpoint hash at blockNumber.
func (s *Store) StoredBlockHash(ctx context.Context, blockNumber uint64) (hash common.Hash, found bool, err error) {
	defer s.observe("stored_block_hash", time.Now(), &err)

	var raw string
	err = s.pool.QueryRow(ctx, "SELECT block_hash FROM processed_blocks WHERE block_number = $1", blockNumber).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return common.Hash{}, false, nil
	}
	if err != nil {
		return common.Hash{}, false, store.Wrap(fmt.Sprintf("stored block hash %d", blockNumber), err)
	}

	return common.HexToHash(raw), true, nil
}

// RewindFrom deletes transfers and checkpoints at or above invalidBlock in one transaction.
func (s *Store) RewindFrom(ctx context.Context, invalidBlock uint64) (err error) {
	defer s.observe("rewind", time.Now(), &err)

	var deletedTransfers, deletedBlocks int64
	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, "DELETE FROM transfer_events WHERE block_number >= $1", invalidBlock)
		if err != nil {
			return fmt.Errorf("rewind transfers: %w", err)
		}
		deletedTransfers = tag.RowsAffected()

		tag, err = tx.Exec(ctx, "DELETE FROM processed_blocks WHERE block_number >= $1", invalidBlock)
		if err != nil {
			return fmt.Errorf("rewind processed blocks: %w", err)
		}
		deletedBlocks = tag.RowsAffected()

		return nil
	})
	if err != nil {
		return store.Wrap("rewind", err)
	}

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
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Address != nil {
		p := arg(db.LowerHex(*filter.Address))
		where = append(where, fmt.Sprintf("(from_address = %s OR to_address = %s)", p, p))
	}
	if filter.FromBlock != nil {
		where = append(where, "block_number >= "+arg(*filter.FromBlock))
	}
	if filter.ToBlock != nil {
		where = append(where, "block_number <= "+arg(*filter.ToBlock))
	}

	var query strings.Builder
	query.WriteString(`SELECT id, transaction_hash, log_index, block_number, block_hash,
		from_address, to_address, value, timestamp, created_at FROM transfer_events`)
	if len(where) > 0 {
		query.WriteString(" WHERE ")
		query.WriteString(strings.Join(where, " AND "))
	}
	query.WriteString(" ORDER BY block_number DESC, log_index ASC")
	if filter.Limit > 0 && filter.Limit <= math.MaxInt64 {
		query.WriteString(" LIMIT " + arg(int64(filter.Limit))) //nolint:gosec
	}

	rows, err := s.pool.Query(ctx, query.String(), args...)
	if err != nil {
		return nil, store.Wrap("query transfers", err)
	}

	events, err = pgx.CollectRows(rows, scanTransfer)
	if err != nil {
		return nil, store.Wrap("scan transfers", err)
	}

	return events, nil
}

func scanTransfer(row pgx.CollectableRow) (*store.TransferEvent, error) {
	var (
		event                       store.TransferEvent
		txHash, blockHash, from, to string
	)

	err := row.Scan(
		&event.ID,
		&txHash,
		&event.LogIndex,
		&event.BlockNumber,
		&blockHash,
		&from,
		&to,
		&event.Value,
		&event.Timestamp,
		&event.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	event.TransactionHash = common.HexToHash(txHash)
	event.BlockHash = common.HexToHash(blockHash)
	event.FromAddress = common.HexToAddress(from)
	event.ToAddress = common.HexToAddress(to)
	event.Timestamp = event.Timestamp.UTC()
	event.CreatedAt = event.CreatedAt.UTC()

	return &event, nil
}

// Stats summarizes the transfer table.
func (s *Store) Stats(ctx context.Context) (stats store.Stats, err error) {
	defer s.observe("stats", time.Now(), &err)

	const query = `
		SELECT
			(SELECT COUNT(*) FROM transfer_events),
			(SELECT COUNT(*) FROM (
				SELECT from_address AS address FROM transfer_events
				UNION
				SELECT to_address AS address FROM transfer_events
			) AS addresses),
			(SELECT MAX(block_number) FROM transfer_events),
			(SELECT MIN(block_number) FROM transfer_events)
	`
	var (
		total, unique    int64
		latest, earliest *int64
	)
	if err := s.pool.QueryRow(ctx, query).Scan(&total, &unique, &latest, &earliest); err != nil {
		return store.Stats{}, store.Wrap("stats", err)
	}

	stats.TotalTransfers = uint64(total)   //nolint:gosec
	stats.UniqueAddresses = uint64(unique) //nolint:gosec
	if latest != nil {
		v := uint64(*latest) //nolint:gosec
		stats.LatestBlock = &v
	}
	if earliest != nil {
		v := uint64(*earliest) //nolint:gosec
		stats.EarliestBlock = &v
	}

	return stats, nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) observe(operation string, start time.Time, errp *error) {
	metrics.DBObserve(dbLabel, operation, start, *errp)
}

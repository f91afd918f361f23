package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrStore wraps every persistence failure.
	ErrStore = errors.New("store error")

	// ErrWriterLocked is returned when another indexer already holds the writer lock.
	ErrWriterLocked = errors.New("store is locked by another indexer")
)

// Wrap tags err as a store failure while keeping it inspectable with errors.Is/As.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrStore, op, err)
}

// TransferEvent is one decoded ERC-20 Transfer log.
type TransferEvent struct {
	ID              string         `meddler:"id" json:"id"`
	TransactionHash common.Hash    `meddler:"transaction_hash,hash" json:"transaction_hash"`
	LogIndex        uint64         `meddler:"log_index" json:"log_index"`
	BlockNumber     uint64         `meddler:"block_number" json:"block_number"`
	BlockHash       common.Hash    `meddler:"block_hash,hash" json:"block_hash"`
	FromAddress     common.Address `meddler:"from_address,address" json:"from_address"`
	ToAddress       common.Address `meddler:"to_address,address" json:"to_address"`
	Value           string         `meddler:"value" json:"value"`
	Timestamp       time.Time      `meddler:"timestamp,utctime" json:"timestamp"`
	CreatedAt       time.Time      `meddler:"created_at,utctime" json:"created_at"`
}

// TransferID builds the composite identifier "{transaction_hash}_{log_index}".
func TransferID(txHash common.Hash, logIndex uint64) string {
	return fmt.Sprintf("%s_%d", txHash.Hex(), logIndex)
}

// ProcessedBlock is the checkpoint recording that a height has been fully scanned.
type ProcessedBlock struct {
	BlockNumber uint64      `meddler:"block_number"`
	BlockHash   common.Hash `meddler:"block_hash,hash"`
	Timestamp   time.Time   `meddler:"timestamp,utctime"`
	ProcessedAt time.Time   `meddler:"processed_at,utctime"`
}

// TransferFilter selects transfers. Nil fields are unconstrained.
// Address matches either side of the transfer.
type TransferFilter struct {
	Address   *common.Address
	FromBlock *uint64
	ToBlock   *uint64
	Limit     uint64
}

// Stats are totals and extrema over the transfer table. Extrema are nil when the table is empty.
type Stats struct {
	TotalTransfers  uint64
	UniqueAddresses uint64
	LatestBlock     *uint64
	EarliestBlock   *uint64
}

// WriterLock is the single-writer lease held by a running indexer.
type WriterLock interface {
	// Refresh extends the lease; it fails with ErrWriterLocked if the lease was lost.
	Refresh(ctx context.Context) error
	// Release gives up the lease.
	Release(ctx context.Context) error
}

// Store is the durable home of transfers and checkpoints.
type Store interface {
	// InsertTransfer stores event; it reports false when (transaction_hash, log_index) already exists.
	InsertTransfer(ctx context.Context, event *TransferEvent) (bool, error)

	// InsertProcessedBlock inserts or replaces the checkpoint at blockNumber.
	InsertProcessedBlock(ctx context.Context, blockNumber uint64, blockHash common.Hash, timestamp time.Time) error

	// LatestProcessedBlock returns the highest checkpoint, or false when there is none.
	LatestProcessedBlock(ctx context.Context) (uint64, bool, error)

	// StoredBlockHash returns the checkpoint hash at blockNumber, or false when there is none.
	StoredBlockHash(ctx context.Context, blockNumber uint64) (common.Hash, bool, error)

	// RewindFrom atomically deletes transfers and checkpoints with block_number >= invalidBlock.
	RewindFrom(ctx context.Context, invalidBlock uint64) error

	// QueryTransfers returns matching transfers ordered by block_number DESC, log_index ASC.
	QueryTransfers(ctx context.Context, filter TransferFilter) ([]*TransferEvent, error)

	// Stats summarizes the transfer table.
	Stats(ctx context.Context) (Stats, error)

	// AcquireWriterLock takes the single-writer lease for owner or fails with ErrWriterLocked.
	AcquireWriterLock(ctx context.Context, owner string) (WriterLock, error)

	// Close releases the underlying connections.
	Close() error
}

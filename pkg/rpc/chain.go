package rpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// TransferTopic is keccak256("Transfer(address,address,uint256)").
var TransferTopic = common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")

var (
	// ErrChainUnavailable wraps transport or upstream failures from the RPC endpoint.
	ErrChainUnavailable = errors.New("chain unavailable")

	// ErrBlockNotFound is returned when the endpoint has no header for a requested height.
	ErrBlockNotFound = errors.New("block not found")

	// ErrRangeTooLarge is returned when the endpoint rejects the span of a log query.
	ErrRangeTooLarge = errors.New("block range too large")
)

// RangeTooLargeError carries the endpoint's rejection of a log query span.
// Suggested bounds are set when the endpoint proposed a narrower range.
type RangeTooLargeError struct {
	FromBlock     uint64
	ToBlock       uint64
	SuggestedFrom uint64
	SuggestedTo   uint64
	HasSuggestion bool
	Cause         error
}

func (e *RangeTooLargeError) Error() string {
	if e.HasSuggestion {
		return fmt.Sprintf("%v [%d, %d]: suggested [%d, %d]: %v",
			ErrRangeTooLarge, e.FromBlock, e.ToBlock, e.SuggestedFrom, e.SuggestedTo, e.Cause)
	}

	return fmt.Sprintf("%v [%d, %d]: %v", ErrRangeTooLarge, e.FromBlock, e.ToBlock, e.Cause)
}

func (e *RangeTooLargeError) Is(target error) bool {
	return target == ErrRangeTooLarge
}

func (e *RangeTooLargeError) Unwrap() error {
	return e.Cause
}

// BlockHeader is the subset of a block header the indexer needs.
type BlockHeader struct {
	Number    uint64
	Hash      common.Hash
	Timestamp time.Time
}

// RawLog is a log record as returned by eth_getLogs.
// Confirmation metadata is optional on the wire and is nil when the endpoint omitted it.
type RawLog struct {
	Address     common.Address
	Topics      []common.Hash
	Data        []byte
	BlockNumber *uint64
	BlockHash   *common.Hash
	LogIndex    *uint
	TxHash      *common.Hash
	Removed     bool
}

// ChainReader is a thin, idempotent view of the chain.
// Implementations perform no caching and no retries.
type ChainReader interface {
	// LatestBlockNumber returns the head height reported by the endpoint.
	LatestBlockNumber(ctx context.Context) (uint64, error)

	// BlockHeader returns the hash and timestamp of the block at height.
	BlockHeader(ctx context.Context, height uint64) (BlockHeader, error)

	// BlockHeaders returns headers for heights in the same order, using batched requests.
	BlockHeaders(ctx context.Context, heights []uint64) ([]BlockHeader, error)

	// LogsInRange returns logs emitted by address with the given first topic over [from, to].
	LogsInRange(ctx context.Context, address common.Address, topic0 common.Hash, from, to uint64) ([]RawLog, error)

	// Close releases the underlying connection.
	Close()
}

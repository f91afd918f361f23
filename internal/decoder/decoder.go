package decoder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/goran-ethernal/TransferIndexor/internal/logger"
	"github.com/goran-ethernal/TransferIndexor/pkg/rpc"
	"github.com/goran-ethernal/TransferIndexor/pkg/store"
	"github.com/holiman/uint256"
)

const (
	// transferTopics is topic0 plus the indexed from and to addresses.
	transferTopics = 3
	// valueSize is the ABI width of the uint256 payload.
	valueSize = 32
)

var (
	// ErrMalformedLog is returned for a log without the metadata every confirmed log carries.
	ErrMalformedLog = errors.New("malformed log")

	// ErrBlockHashMismatch is returned when a log's block hash disagrees with the header at its height,
	// meaning logs and headers were read from different forks.
	ErrBlockHashMismatch = errors.New("log block hash does not match header")
)

// HeaderSource supplies block headers for timestamps.
type HeaderSource interface {
	BlockHeader(ctx context.Context, height uint64) (rpc.BlockHeader, error)
}

// Decoder turns raw Transfer logs into TransferEvents.
type Decoder struct {
	headers HeaderSource
	log     *logger.Logger
	now     func() time.Time
}

// New creates a Decoder reading timestamps from headers.
func New(headers HeaderSource, log *logger.Logger) *Decoder {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Decoder{
		headers: headers,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Decode converts raw into a TransferEvent. A log that is not a well-formed Transfer
// (wrong topic count or a payload wider than 32 bytes) yields (nil, nil) and should be skipped.
// A shorter payload is read as a left-padded big-endian value.
func (d *Decoder) Decode(ctx context.Context, raw rpc.RawLog) (*store.TransferEvent, error) {
	if len(raw.Topics) != transferTopics {
		d.log.Debugf("skipping log with %d topics: tx=%s", len(raw.Topics), hashOrNone(raw.TxHash))
		return nil, nil
	}

	if len(raw.Data) > valueSize {
		d.log.Debugf("skipping log with %d byte payload: tx=%s", len(raw.Data), hashOrNone(raw.TxHash))
		return nil, nil
	}

	if err := checkMetadata(raw); err != nil {
		return nil, err
	}

	header, err := d.headers.BlockHeader(ctx, *raw.BlockNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to get header for block %d: %w", *raw.BlockNumber, err)
	}

	if header.Hash != *raw.BlockHash {
		return nil, fmt.Errorf("%w: block=%d log_hash=%s header_hash=%s",
			ErrBlockHashMismatch, *raw.BlockNumber, raw.BlockHash.Hex(), header.Hash.Hex())
	}

	logIndex := uint64(*raw.LogIndex)

	return &store.TransferEvent{
		ID:              store.TransferID(*raw.TxHash, logIndex),
		TransactionHash: *raw.TxHash,
		LogIndex:        logIndex,
		BlockNumber:     *raw.BlockNumber,
		BlockHash:       *raw.BlockHash,
		FromAddress:     topicAddress(raw.Topics[1]),
		ToAddress:       topicAddress(raw.Topics[2]),
		Value:           new(uint256.Int).SetBytes32(common.LeftPadBytes(raw.Data, valueSize)).Dec(),
		Timestamp:       header.Timestamp.UTC(),
		CreatedAt:       d.now(),
	}, nil
}

func checkMetadata(raw rpc.RawLog) error {
	var missing []string
	if raw.BlockNumber == nil {
		missing = append(missing, "block_number")
	}
	if raw.BlockHash == nil {
		missing = append(missing, "block_hash")
	}
	if raw.LogIndex == nil {
		missing = append(missing, "log_index")
	}
	if raw.TxHash == nil {
		missing = append(missing, "transaction_hash")
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %v", ErrMalformedLog, missing)
	}

	return nil
}

// topicAddress returns the low 20 bytes of an indexed address topic.
func topicAddress(topic common.Hash) common.Address {
	return common.BytesToAddress(topic.Bytes()[common.HashLength-common.AddressLength:])
}

func hashOrNone(h *common.Hash) string {
	if h == nil {
		return "<none>"
	}
	return h.Hex()
}

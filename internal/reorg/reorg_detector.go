package reorg

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	internalcommon "github.com/goran-ethernal/TransferIndexor/internal/common"
	"github.com/goran-ethernal/TransferIndexor/internal/logger"
	"github.com/goran-ethernal/TransferIndexor/internal/metrics"
	"github.com/goran-ethernal/TransferIndexor/pkg/reorg"
	"github.com/goran-ethernal/TransferIndexor/pkg/rpc"
)

var _ reorg.Detector = (*ReorgDetector)(nil)

// DefaultWindow is the number of checkpoints below the cursor compared with the chain.
const DefaultWindow = 10

// HeaderReader is the part of the chain the detector reads.
type HeaderReader interface {
	BlockHeader(ctx context.Context, height uint64) (rpc.BlockHeader, error)
}

// BlockStore is the part of the store the detector reads and rewinds.
type BlockStore interface {
	StoredBlockHash(ctx context.Context, blockNumber uint64) (common.Hash, bool, error)
	RewindFrom(ctx context.Context, invalidBlock uint64) error
}

// ReorgDetector detects blockchain reorganizations by comparing stored checkpoint hashes
// with the canonical chain over a shallow window.
type ReorgDetector struct {
	chain  HeaderReader
	store  BlockStore
	window uint64
	log    *logger.Logger
}

// NewReorgDetector creates a new ReorgDetector. A zero window uses DefaultWindow.
func NewReorgDetector(chain HeaderReader, store BlockStore, window uint64, log *logger.Logger) *ReorgDetector {
	if window == 0 {
		window = DefaultWindow
	}
	if log == nil {
		log = logger.NewNopLogger()
	}

	metrics.ComponentHealthSet(internalcommon.ComponentReorgDetector, true)

	return &ReorgDetector{
		chain:  chain,
		store:  store,
		window: window,
		log:    log,
	}
}

// Check compares the checkpoints in [cursor-window, cursor) with the chain, lowest first.
// On the first divergent height it rewinds the store there and returns a *ReorgDetectedError.
// Heights whose hash cannot be read from either side are skipped; only a confirmed mismatch rewinds.
func (r *ReorgDetector) Check(ctx context.Context, cursor uint64) error {
	if cursor == 0 {
		return nil
	}

	depth := min(r.window, cursor)
	from := cursor - depth

	r.log.Debugf("checking for reorg: from_block=%d to_block=%d", from, cursor-1)

	for h := from; h < cursor; h++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		stored, found, err := r.store.StoredBlockHash(ctx, h)
		if err != nil {
			r.log.Warnf("skipping reorg check of block %d: store: %v", h, err)
			ReorgCheckSkippedInc("store")
			continue
		}
		if !found {
			continue
		}

		header, err := r.chain.BlockHeader(ctx, h)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.log.Warnf("skipping reorg check of block %d: chain: %v", h, err)
			ReorgCheckSkippedInc("chain")
			continue
		}

		if header.Hash == stored {
			continue
		}

		r.log.Warnw("reorg detected",
			"block", h,
			"stored_hash", stored.Hex(),
			"canonical_hash", header.Hash.Hex(),
		)

		if err := r.store.RewindFrom(ctx, h); err != nil {
			metrics.ComponentHealthSet(internalcommon.ComponentReorgDetector, false)
			return fmt.Errorf("failed to rewind store from block %d: %w", h, err)
		}

		metrics.ComponentHealthSet(internalcommon.ComponentReorgDetector, true)
		ReorgDetectedLog(cursor-h, h)

		return NewReorgError(h,
			fmt.Sprintf("stored_hash=%s canonical_hash=%s", stored.Hex(), header.Hash.Hex()))
	}

	return nil
}

package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goran-ethernal/TransferIndexor/internal/metrics"
	"github.com/goran-ethernal/TransferIndexor/pkg/rpc"
	"github.com/goran-ethernal/TransferIndexor/pkg/store"
)

// processBatch ingests [from, to] and returns the last committed height, which is
// below to when the endpoint forced a narrower log range.
// Events are written before the checkpoints of their blocks.
func (ix *Indexer) processBatch(ctx context.Context, from, to uint64) (uint64, error) {
	start := time.Now()

	logs, to, err := ix.fetchLogs(ctx, from, to)
	if err != nil {
		return 0, err
	}

	if err := ix.headers.load(ctx, from, to); err != nil {
		return 0, err
	}

	events := make([]*store.TransferEvent, 0, len(logs))
	for _, raw := range logs {
		if raw.Removed {
			metrics.TransfersSkippedInc(ix.token, "removed")
			continue
		}

		event, err := ix.decoder.Decode(ctx, raw)
		if err != nil {
			return 0, fmt.Errorf("failed to decode logs of blocks %d-%d: %w", from, to, err)
		}
		if event == nil {
			metrics.TransfersSkippedInc(ix.token, "not_a_transfer")
			continue
		}

		events = append(events, event)
	}

	inserted := 0
	for _, event := range events {
		ok, err := ix.store.InsertTransfer(ctx, event)
		if err != nil {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			metrics.TransfersSkippedInc(ix.token, "insert_failed")
			ix.log.Errorw("failed to insert transfer",
				"id", event.ID,
				"block", event.BlockNumber,
				"error", err,
			)
			continue
		}
		if ok {
			inserted++
		}
	}

	for h := from; h <= to; h++ {
		header, err := ix.headers.BlockHeader(ctx, h)
		if err != nil {
			return 0, fmt.Errorf("failed to get header for block %d: %w", h, err)
		}

		if err := ix.store.InsertProcessedBlock(ctx, h, header.Hash, header.Timestamp); err != nil {
			return 0, fmt.Errorf("failed to checkpoint block %d: %w", h, err)
		}
	}

	elapsed := time.Since(start)
	blocks := to - from + 1

	metrics.LastIndexedBlockSet(ix.token, to)
	metrics.BlocksProcessedInc(ix.token, blocks)
	metrics.TransfersIndexedInc(ix.token, inserted)
	metrics.BatchProcessingTimeLog(ix.token, elapsed)
	if elapsed > 0 {
		metrics.IndexingRateLog(ix.token, float64(blocks)/elapsed.Seconds())
	}

	ix.log.Infow("batch committed",
		"from_block", from,
		"to_block", to,
		"transfers", len(events),
		"inserted", inserted,
		"duration", elapsed,
	)

	return to, nil
}

// fetchLogs queries Transfer logs over [from, to], narrowing the range while the endpoint
// rejects it as too large. The returned height is the end of the range actually fetched.
func (ix *Indexer) fetchLogs(ctx context.Context, from, to uint64) ([]rpc.RawLog, uint64, error) {
	for {
		logs, err := ix.chain.LogsInRange(ctx, ix.cfg.Token, rpc.TransferTopic, from, to)
		if err == nil {
			return logs, to, nil
		}

		var rangeErr *rpc.RangeTooLargeError
		if !errors.As(err, &rangeErr) {
			return nil, 0, fmt.Errorf("failed to get logs for blocks %d-%d: %w", from, to, err)
		}

		if from == to {
			return nil, 0, fmt.Errorf("%w: endpoint rejects single block %d: %w", rpc.ErrChainUnavailable, from, err)
		}

		next := from + (to-from)/2
		if rangeErr.HasSuggestion && rangeErr.SuggestedFrom == from &&
			rangeErr.SuggestedTo >= from && rangeErr.SuggestedTo < to {
			next = rangeErr.SuggestedTo
			ix.log.Infof("range too large, retrying with suggested block range from %d to %d (original range %d to %d)",
				from, next, from, to)
		} else {
			ix.log.Infof("range too large, retrying with smaller block range from %d to %d (original range %d to %d)",
				from, next, from, to)
		}

		to = next
	}
}

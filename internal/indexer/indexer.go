package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	internalcommon "github.com/goran-ethernal/TransferIndexor/internal/common"
	"github.com/goran-ethernal/TransferIndexor/internal/decoder"
	"github.com/goran-ethernal/TransferIndexor/internal/logger"
	"github.com/goran-ethernal/TransferIndexor/internal/metrics"
	"github.com/goran-ethernal/TransferIndexor/internal/reorg"
	"github.com/goran-ethernal/TransferIndexor/pkg/config"
	pkgreorg "github.com/goran-ethernal/TransferIndexor/pkg/reorg"
	"github.com/goran-ethernal/TransferIndexor/pkg/rpc"
	"github.com/goran-ethernal/TransferIndexor/pkg/store"
)

// Config holds the ingestion loop parameters.
type Config struct {
	Token            common.Address
	BlocksPerRequest uint64
	FinalityBlocks   uint64
	DefaultBackfill  uint64
	PollInterval     time.Duration
	RetryBackoff     time.Duration
}

// ConfigFrom extracts the loop parameters from a validated configuration.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		Token:            cfg.TokenAddress(),
		BlocksPerRequest: cfg.BlocksPerRequest,
		FinalityBlocks:   cfg.FinalityBlocks,
		DefaultBackfill:  cfg.Indexer.DefaultBackfill,
		PollInterval:     cfg.Indexer.PollInterval.Duration,
		RetryBackoff:     cfg.Indexer.RetryBackoff.Duration,
	}
}

// SleepFunc pauses for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// TickResult describes what a single loop iteration did.
type TickResult int

const (
	// TickIdle means no finalized block was available past the cursor.
	TickIdle TickResult = iota
	// TickReorg means a reorg was found, the store rewound and the cursor re-derived.
	TickReorg
	// TickProgressed means a batch was committed and the cursor advanced.
	TickProgressed
)

func (r TickResult) String() string {
	switch r {
	case TickIdle:
		return "idle"
	case TickReorg:
		return "reorg"
	case TickProgressed:
		return "progressed"
	default:
		return fmt.Sprintf("TickResult(%d)", int(r))
	}
}

// Indexer owns the cursor and drives ingestion of Transfer events for one token.
type Indexer struct {
	cfg      Config
	chain    rpc.ChainReader
	store    store.Store
	detector pkgreorg.Detector
	headers  *headerCache
	decoder  *decoder.Decoder
	lock     store.WriterLock
	sleep    SleepFunc
	log      *logger.Logger

	token    string
	cursor   uint64
	resolved bool
}

// Option customises an Indexer.
type Option func(*Indexer)

// WithSleep replaces the context-aware sleep used between ticks.
func WithSleep(sleep SleepFunc) Option {
	return func(ix *Indexer) { ix.sleep = sleep }
}

// WithWriterLock makes every tick refresh lock; losing it stops the loop.
func WithWriterLock(lock store.WriterLock) Option {
	return func(ix *Indexer) { ix.lock = lock }
}

// New creates an Indexer. detector may be nil, in which case a ReorgDetector
// with the default window over chain and st is used.
func New(
	cfg Config,
	chain rpc.ChainReader,
	st store.Store,
	detector pkgreorg.Detector,
	log *logger.Logger,
	opts ...Option,
) (*Indexer, error) {
	if chain == nil {
		return nil, errors.New("chain reader is required")
	}
	if st == nil {
		return nil, errors.New("store is required")
	}
	if cfg.BlocksPerRequest == 0 {
		return nil, errors.New("blocks per request must be at least 1")
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	if detector == nil {
		detector = reorg.NewReorgDetector(chain, st, reorg.DefaultWindow, log)
	}

	headers := newHeaderCache(chain)

	ix := &Indexer{
		cfg:      cfg,
		chain:    chain,
		store:    st,
		detector: detector,
		headers:  headers,
		decoder:  decoder.New(headers, log),
		sleep:    sleepCtx,
		log:      log,
		token:    cfg.Token.Hex(),
	}

	for _, opt := range opts {
		opt(ix)
	}

	return ix, nil
}

// Cursor returns the next block the loop will ingest.
func (ix *Indexer) Cursor() uint64 {
	return ix.cursor
}

// StartAt pins the cursor to height instead of resuming from the store.
func (ix *Indexer) StartAt(height uint64) {
	ix.cursor = height
	ix.resolved = true
}

// ResolveStart sets the cursor to the block after the last checkpoint,
// or DefaultBackfill blocks below the tip when the store is empty.
func (ix *Indexer) ResolveStart(ctx context.Context) (uint64, error) {
	latest, found, err := ix.store.LatestProcessedBlock(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read resume point: %w", err)
	}

	if found {
		ix.cursor = latest + 1
		ix.log.Infow("resuming from store", "last_processed_block", latest, "cursor", ix.cursor)
	} else {
		tip, err := ix.chain.LatestBlockNumber(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to read chain tip: %w", err)
		}
		ix.cursor = internalcommon.SaturatingSub(tip, ix.cfg.DefaultBackfill)
		ix.log.Infow("store is empty, backfilling from below the tip", "tip", tip, "cursor", ix.cursor)
	}

	ix.resolved = true

	return ix.cursor, nil
}

// LatestStart returns latest - finality_blocks along with the tip it was derived from.
func LatestStart(ctx context.Context, chain rpc.ChainReader, finalityBlocks uint64) (start, latest uint64, err error) {
	latest, err = chain.LatestBlockNumber(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read chain tip: %w", err)
	}

	return internalcommon.SaturatingSub(latest, finalityBlocks), latest, nil
}

// Run ticks until ctx is cancelled or the writer lock is lost. Failed ticks are
// retried after RetryBackoff; idle ticks wait PollInterval.
func (ix *Indexer) Run(ctx context.Context) error {
	ix.log.Infow("starting ingestion loop",
		"token", ix.token,
		"blocks_per_request", ix.cfg.BlocksPerRequest,
		"finality_blocks", ix.cfg.FinalityBlocks,
	)
	metrics.ComponentHealthSet(internalcommon.ComponentIndexer, true)

	for {
		if err := ctx.Err(); err != nil {
			ix.log.Info("ingestion loop cancelled")
			return err
		}

		if err := ix.refreshLock(ctx); err != nil {
			metrics.ComponentHealthSet(internalcommon.ComponentIndexer, false)
			return err
		}

		result, err := ix.Tick(ctx)
		if err != nil {
			if ctx.Err() != nil {
				ix.log.Info("ingestion loop cancelled")
				return ctx.Err()
			}

			metrics.ComponentHealthSet(internalcommon.ComponentIndexer, false)
			metrics.BatchFailuresInc(ix.token)
			ix.log.Errorw("tick failed, backing off",
				"cursor", ix.cursor,
				"backoff", ix.cfg.RetryBackoff,
				"error", err,
			)

			if err := ix.sleep(ctx, ix.cfg.RetryBackoff); err != nil {
				return err
			}
			continue
		}

		metrics.ComponentHealthSet(internalcommon.ComponentIndexer, true)

		if result == TickIdle {
			if err := ix.sleep(ctx, ix.cfg.PollInterval); err != nil {
				return err
			}
		}
	}
}

// Tick performs one iteration: finality check, reorg check and at most one batch.
func (ix *Indexer) Tick(ctx context.Context) (TickResult, error) {
	if !ix.resolved {
		if _, err := ix.ResolveStart(ctx); err != nil {
			return TickIdle, err
		}
	}

	latest, err := ix.chain.LatestBlockNumber(ctx)
	if err != nil {
		return TickIdle, fmt.Errorf("failed to get latest block: %w", err)
	}

	finalized := internalcommon.SaturatingSub(latest, ix.cfg.FinalityBlocks)
	metrics.FinalizedBlockSet(ix.token, finalized)

	if ix.cursor > finalized {
		ix.log.Debugw("waiting for finality", "cursor", ix.cursor, "finalized", finalized, "latest", latest)
		return TickIdle, nil
	}

	if err := ix.detector.Check(ctx, ix.cursor); err != nil {
		reorgErr, ok := reorg.AsReorgError(err)
		if !ok {
			return TickIdle, fmt.Errorf("reorg check failed: %w", err)
		}

		if err := ix.rederiveCursor(ctx, reorgErr.FirstReorgBlock); err != nil {
			return TickIdle, err
		}

		ix.log.Warnw("reorg detected, store rewound",
			"first_reorg_block", reorgErr.FirstReorgBlock,
			"details", reorgErr.Details,
			"cursor", ix.cursor,
		)

		return TickReorg, nil
	}

	end := finalized
	if finalized-ix.cursor >= ix.cfg.BlocksPerRequest {
		end = ix.cursor + ix.cfg.BlocksPerRequest - 1
	}

	committed, err := ix.processBatch(ctx, ix.cursor, end)
	if err != nil {
		return TickIdle, err
	}

	ix.cursor = committed + 1

	return TickProgressed, nil
}

// rederiveCursor resets the cursor after a rewind from the store rather than trusting the in-loop value.
func (ix *Indexer) rederiveCursor(ctx context.Context, divergence uint64) error {
	latest, found, err := ix.store.LatestProcessedBlock(ctx)
	if err != nil {
		return fmt.Errorf("failed to re-derive cursor after reorg: %w", err)
	}

	if found {
		ix.cursor = latest + 1
	} else {
		ix.cursor = divergence
	}

	return nil
}

func (ix *Indexer) refreshLock(ctx context.Context) error {
	if ix.lock == nil {
		return nil
	}

	err := ix.lock.Refresh(ctx)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrWriterLocked):
		ix.log.Errorw("writer lock lost, stopping", "error", err)
		return err
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		// a transient refresh failure is retried on the next tick
		ix.log.Warnw("failed to refresh writer lock", "error", err)
		return nil
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

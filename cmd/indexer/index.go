package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/goran-ethernal/TransferIndexor/internal/common"
	"github.com/goran-ethernal/TransferIndexor/internal/indexer"
	"github.com/goran-ethernal/TransferIndexor/internal/logger"
	"github.com/goran-ethernal/TransferIndexor/internal/metrics"
	"github.com/goran-ethernal/TransferIndexor/internal/reorg"
	"github.com/goran-ethernal/TransferIndexor/internal/rpc"
	"github.com/goran-ethernal/TransferIndexor/internal/store"
	"github.com/goran-ethernal/TransferIndexor/pkg/config"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const banner = `
╔═══════════════════════════════════════════╗
║         TransferIndexor v%s            ║
║      ERC-20 Transfer Event Indexer        ║
╚═══════════════════════════════════════════╝
`

const releaseTimeout = 5 * time.Second

type indexOptions struct {
	startBlock string
	latest     bool
}

func newIndexCmd(root *rootOptions) *cobra.Command {
	opts := &indexOptions{}

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Run the ingestion loop",
		Long: `Run the ingestion loop until interrupted. Without flags the loop resumes after the
last processed block, or starts default_backfill blocks below the tip on an empty store.`,
		Example: `  # resume, or backfill 1000 blocks on first run
  indexer index --config config.yaml

  # start at the latest finalized block
  indexer index --latest

  # start at an explicit height
  indexer index --start-block 19000000`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIndex(cmd, root, opts)
		},
	}

	cmd.Flags().StringVar(&opts.startBlock, "start-block", "", "first block to ingest (decimal or 0x hex)")
	cmd.Flags().BoolVar(&opts.latest, "latest", false, "start at latest block minus finality_blocks")

	return cmd
}

// resolveStartFlags validates the mutually exclusive start flags and parses --start-block.
func resolveStartFlags(cmd *cobra.Command, opts *indexOptions) (*uint64, error) {
	startSet := cmd.Flags().Changed("start-block")
	if startSet && opts.latest {
		return nil, config.NewConfigError("start-block", "cannot be combined with --latest")
	}
	if !startSet {
		return nil, nil
	}

	start, err := common.ParseUint64orHex(&opts.startBlock)
	if err != nil {
		return nil, config.NewConfigError("start-block", fmt.Sprintf("must be a block number, got %q", opts.startBlock))
	}

	return &start, nil
}

func runIndex(cmd *cobra.Command, root *rootOptions, opts *indexOptions) error {
	startBlock, err := resolveStartFlags(cmd, opts)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd, root)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, banner, version)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.NewComponentLoggerFromConfig(common.ComponentIndexer, cfg.Logging)
	logger.SetDefaultLogger(log)

	log.Infow("connecting to ethereum node", "url", cfg.EthereumRPCURL)
	chain, err := rpc.NewClient(ctx, cfg.EthereumRPCURL, cfg.RequestTimeout.Duration,
		logger.NewComponentLoggerFromConfig(common.ComponentChain, cfg.Logging))
	if err != nil {
		return fmt.Errorf("failed to create RPC client: %w", err)
	}
	defer chain.Close()

	st, err := store.Open(ctx, cfg, logger.NewComponentLoggerFromConfig(common.ComponentStore, cfg.Logging))
	if err != nil {
		return err
	}
	defer st.Close()

	owner := uuid.NewString()
	lock, err := st.AcquireWriterLock(ctx, owner)
	if err != nil {
		return fmt.Errorf("failed to acquire writer lock: %w", err)
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()
		if err := lock.Release(releaseCtx); err != nil {
			log.Warnw("failed to release writer lock", "owner", owner, "error", err)
		}
	}()
	log.Infow("writer lock acquired", "owner", owner)

	detector := reorg.NewReorgDetector(chain, st, cfg.Indexer.ReorgWindow,
		logger.NewComponentLoggerFromConfig(common.ComponentReorgDetector, cfg.Logging))

	ix, err := indexer.New(indexer.ConfigFrom(cfg), chain, st, detector, log, indexer.WithWriterLock(lock))
	if err != nil {
		return fmt.Errorf("failed to create indexer: %w", err)
	}

	switch {
	case opts.latest:
		start, latest, err := indexer.LatestStart(ctx, chain, cfg.FinalityBlocks)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Starting from network latest block %d (latest %d minus %d finality blocks)\n",
			start, latest, cfg.FinalityBlocks)
		ix.StartAt(start)
	case startBlock != nil:
		fmt.Fprintf(out, "Starting from block %d\n", *startBlock)
		ix.StartAt(*startBlock)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return metrics.NewServer(cfg.Metrics,
			logger.NewComponentLoggerFromConfig(common.ComponentMetrics, cfg.Logging)).Run(gctx)
	})
	g.Go(func() error {
		return ix.Run(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	log.Info("indexer stopped")

	return nil
}

package tests

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/goran-ethernal/TransferIndexor/internal/indexer"
	"github.com/goran-ethernal/TransferIndexor/internal/logger"
	"github.com/goran-ethernal/TransferIndexor/internal/reorg"
	"github.com/goran-ethernal/TransferIndexor/internal/rpc"
	"github.com/goran-ethernal/TransferIndexor/internal/store/sqlite"
	"github.com/goran-ethernal/TransferIndexor/pkg/store"
	"github.com/goran-ethernal/TransferIndexor/tests/helpers"
	"github.com/stretchr/testify/require"
)

var (
	alice = common.HexToAddress("0xA11CE00000000000000000000000000000000001")
	bob   = common.HexToAddress("0xB0B0000000000000000000000000000000000002")
)

type harness struct {
	anvil   *helpers.AnvilInstance
	emitter common.Address
	store   *sqlite.Store
	indexer *indexer.Indexer
}

func setupHarness(t *testing.T, dbName string) *harness {
	t.Helper()

	helpers.SkipIfAnvilNotAvailable(t)

	anvil := helpers.StartAnvil(t)
	emitter := anvil.DeployTransferEmitter(t)
	st := helpers.NewTestStore(t, dbName)

	log, err := logger.NewLogger("error", false)
	require.NoError(t, err)

	client, err := rpc.NewClient(context.Background(), anvil.URL, 5*time.Second, log)
	require.NoError(t, err)
	t.Cleanup(client.Close)

	ix, err := indexer.New(indexer.Config{
		Token:            emitter,
		BlocksPerRequest: 100,
		FinalityBlocks:   0,
		PollInterval:     time.Second,
		RetryBackoff:     time.Second,
	}, client, st, reorg.NewReorgDetector(client, st, 10, log), log)
	require.NoError(t, err)
	ix.StartAt(0)

	return &harness{anvil: anvil, emitter: emitter, store: st, indexer: ix}
}

func (h *harness) tick(t *testing.T) indexer.TickResult {
	t.Helper()

	result, err := h.indexer.Tick(context.Background())
	require.NoError(t, err)

	return result
}

// syncToTip ticks until the cursor passes the current chain head.
func (h *harness) syncToTip(t *testing.T) {
	t.Helper()

	tip := h.anvil.GetBlockNumber(t)
	for h.indexer.Cursor() <= tip {
		require.NotEqual(t, indexer.TickIdle, h.tick(t))
	}
}

func (h *harness) transfers(t *testing.T) []*store.TransferEvent {
	t.Helper()

	events, err := h.store.QueryTransfers(context.Background(), store.TransferFilter{})
	require.NoError(t, err)

	return events
}

func TestIndexer_IndexesTransfersFromNode(t *testing.T) {
	h := setupHarness(t, "transfers.db")

	large := new(big.Int).Lsh(big.NewInt(1), 255)
	r1 := h.anvil.EmitTransfer(t, h.emitter, alice, big.NewInt(1_000_000))
	r2 := h.anvil.EmitTransfer(t, h.emitter, bob, large)

	h.syncToTip(t)

	events := h.transfers(t)
	require.Len(t, events, 2)

	// newest block first
	require.Equal(t, r2.BlockNumber.Uint64(), events[0].BlockNumber)
	require.Equal(t, r2.BlockHash, events[0].BlockHash)
	require.Equal(t, r2.TxHash, events[0].TransactionHash)
	require.Equal(t, bob, events[0].ToAddress)
	require.Equal(t, large.String(), events[0].Value)

	require.Equal(t, r1.BlockNumber.Uint64(), events[1].BlockNumber)
	require.Equal(t, h.anvil.Account, events[1].FromAddress)
	require.Equal(t, alice, events[1].ToAddress)
	require.Equal(t, "1000000", events[1].Value)
	require.Equal(t, store.TransferID(r1.TxHash, 0), events[1].ID)

	latest, found, err := h.store.LatestProcessedBlock(context.Background())
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, h.anvil.GetBlockNumber(t), latest)

	stats, err := h.store.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(2), stats.TotalTransfers)
	require.Equal(t, uint64(3), stats.UniqueAddresses)
}

func TestIndexer_SimpleBlockReplacement(t *testing.T) {
	h := setupHarness(t, "reorg_simple.db")

	h.anvil.Mine(t, 3)
	forkPoint := h.anvil.GetBlockNumber(t)
	snapshotID := h.anvil.CreateSnapshot(t)

	original1 := h.anvil.EmitTransfer(t, h.emitter, alice, big.NewInt(1))
	original2 := h.anvil.EmitTransfer(t, h.emitter, alice, big.NewInt(2))

	h.syncToTip(t)
	require.Len(t, h.transfers(t), 2)

	// replace both blocks, and extend the chain so the fork is the longer one
	h.anvil.RevertToSnapshot(t, snapshotID)
	require.Equal(t, forkPoint, h.anvil.GetBlockNumber(t))

	replacement := h.anvil.EmitTransfer(t, h.emitter, bob, big.NewInt(3))
	h.anvil.Mine(t, 2)

	require.Equal(t, original1.BlockNumber.Uint64(), replacement.BlockNumber.Uint64())
	require.NotEqual(t, original1.BlockHash, replacement.BlockHash)

	require.Equal(t, indexer.TickReorg, h.tick(t))
	require.Equal(t, forkPoint+1, h.indexer.Cursor())

	for _, e := range h.transfers(t) {
		require.LessOrEqual(t, e.BlockNumber, forkPoint)
	}

	h.syncToTip(t)

	events := h.transfers(t)
	require.Len(t, events, 1)
	require.Equal(t, replacement.TxHash, events[0].TransactionHash)
	require.Equal(t, replacement.BlockHash, events[0].BlockHash)
	require.Equal(t, bob, events[0].ToAddress)

	stored, found, err := h.store.StoredBlockHash(context.Background(), original2.BlockNumber.Uint64())
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, h.anvil.GetBlockHash(t, original2.BlockNumber.Uint64()), stored)
}

func TestIndexer_NoLogsOnReorgChain(t *testing.T) {
	h := setupHarness(t, "reorg_nologs.db")

	h.anvil.Mine(t, 3)
	snapshotID := h.anvil.CreateSnapshot(t)

	h.anvil.EmitTransfer(t, h.emitter, alice, big.NewInt(1))
	h.anvil.EmitTransfer(t, h.emitter, bob, big.NewInt(2))

	h.syncToTip(t)
	require.Len(t, h.transfers(t), 2)

	h.anvil.RevertToSnapshot(t, snapshotID)
	h.anvil.Mine(t, 3)

	require.Equal(t, indexer.TickReorg, h.tick(t))
	h.syncToTip(t)

	require.Empty(t, h.transfers(t))
}

func TestIndexer_RestartAfterReorgDoesNotDuplicate(t *testing.T) {
	h := setupHarness(t, "reorg_restart.db")

	for i := range 5 {
		h.anvil.EmitTransfer(t, h.emitter, alice, big.NewInt(int64(i+1)))
	}
	h.syncToTip(t)
	require.Len(t, h.transfers(t), 5)

	// replaying from genesis is a no-op for the store
	h.indexer.StartAt(0)
	h.syncToTip(t)
	require.Len(t, h.transfers(t), 5)
}

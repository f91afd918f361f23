package sqlite

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/goran-ethernal/TransferIndexor/internal/logger"
	"github.com/goran-ethernal/TransferIndexor/pkg/config"
	"github.com/goran-ethernal/TransferIndexor/pkg/store"
	"github.com/stretchr/testify/require"
)

var (
	alice = common.HexToAddress("0xA11CE00000000000000000000000000000000001")
	bob   = common.HexToAddress("0xB0B0000000000000000000000000000000000002")
	carol = common.HexToAddress("0xCA20100000000000000000000000000000000003")
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	return openTestStore(t, filepath.Join(t.TempDir(), "transfers.db"))
}

func openTestStore(t *testing.T, path string) *Store {
	t.Helper()

	return openTestStoreWithTTL(t, path, time.Minute)
}

func openTestStoreWithTTL(t *testing.T, path string, lockTTL time.Duration) *Store {
	t.Helper()

	cfg := config.DatabaseConfig{}
	cfg.ApplyDefaults()

	s, err := Open(path, cfg, lockTTL, logger.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return s
}

func blockHash(block uint64) common.Hash {
	return common.BigToHash(new(big.Int).SetUint64(0xb10c0000 + block))
}

func newEvent(block uint64, tx byte, logIndex uint64, from, to common.Address, value string) *store.TransferEvent {
	txHash := common.BytesToHash([]byte{0x7e, tx})
	return &store.TransferEvent{
		ID:              store.TransferID(txHash, logIndex),
		TransactionHash: txHash,
		LogIndex:        logIndex,
		BlockNumber:     block,
		BlockHash:       blockHash(block),
		FromAddress:     from,
		ToAddress:       to,
		Value:           value,
		Timestamp:       time.Unix(int64(1_700_000_000+block*12), 0).UTC(),
		CreatedAt:       time.Now().UTC(),
	}
}

// ingest stores events and checkpoints every block in [from, to].
func ingest(t *testing.T, s *Store, from, to uint64, events ...*store.TransferEvent) {
	t.Helper()

	ctx := context.Background()
	for _, e := range events {
		_, err := s.InsertTransfer(ctx, e)
		require.NoError(t, err)
	}
	for b := from; b <= to; b++ {
		require.NoError(t, s.InsertProcessedBlock(ctx, b, blockHash(b), time.Unix(int64(1_700_000_000+b*12), 0)))
	}
}

func countRows(t *testing.T, s *Store, table string) int {
	t.Helper()

	var n int
	require.NoError(t, s.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&n))
	return n
}

func TestInsertTransfer_Idempotent(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	event := newEvent(100, 1, 0, alice, bob, "1000")

	inserted, err := s.InsertTransfer(ctx, event)
	require.NoError(t, err)
	require.True(t, inserted)

	dup := *event
	dup.Value = "999"
	inserted, err = s.InsertTransfer(ctx, &dup)
	require.NoError(t, err)
	require.False(t, inserted)

	events, err := s.QueryTransfers(ctx, store.TransferFilter{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "1000", events[0].Value)
}

func TestInsertTransfer_RoundTrip(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	// 2^255
	huge := new(big.Int).Lsh(big.NewInt(1), 255).String()
	event := newEvent(100, 1, 7, alice, bob, huge)

	_, err := s.InsertTransfer(ctx, event)
	require.NoError(t, err)

	events, err := s.QueryTransfers(ctx, store.TransferFilter{Limit: 10})
	require.NoError(t, err)
	require.Len(t, events, 1)

	got := events[0]
	require.Equal(t, event.ID, got.ID)
	require.Equal(t, event.TransactionHash, got.TransactionHash)
	require.Equal(t, event.LogIndex, got.LogIndex)
	require.Equal(t, event.BlockNumber, got.BlockNumber)
	require.Equal(t, event.BlockHash, got.BlockHash)
	require.Equal(t, event.FromAddress, got.FromAddress)
	require.Equal(t, event.ToAddress, got.ToAddress)
	require.Equal(t, huge, got.Value)
	require.True(t, event.Timestamp.Equal(got.Timestamp))
	require.True(t, event.CreatedAt.Equal(got.CreatedAt))

	var rawFrom string
	require.NoError(t, s.db.QueryRow("SELECT from_address FROM transfer_events").Scan(&rawFrom))
	require.Equal(t, "0xa11ce00000000000000000000000000000000001", rawFrom)
}

func TestProcessedBlocks(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	_, found, err := s.LatestProcessedBlock(ctx)
	require.NoError(t, err)
	require.False(t, found)

	_, found, err = s.StoredBlockHash(ctx, 100)
	require.NoError(t, err)
	require.False(t, found)

	ingest(t, s, 100, 199)

	latest, found, err := s.LatestProcessedBlock(ctx)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, uint64(199), latest)

	hash, found, err := s.StoredBlockHash(ctx, 150)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, blockHash(150), hash)

	// replacement supersedes the prior hash
	replacement := common.HexToHash("0xfeed")
	require.NoError(t, s.InsertProcessedBlock(ctx, 150, replacement, time.Now()))

	hash, _, err = s.StoredBlockHash(ctx, 150)
	require.NoError(t, err)
	require.Equal(t, replacement, hash)
	require.Equal(t, 100, countRows(t, s, "processed_blocks"))
}

func TestReads_HonourCancelledContext(t *testing.T) {
	s := setupTestStore(t)
	ingest(t, s, 100, 101, newEvent(100, 1, 0, alice, bob, "1"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := s.StoredBlockHash(ctx, 100)
	require.ErrorIs(t, err, context.Canceled)

	_, err = s.QueryTransfers(ctx, store.TransferFilter{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestRewindFrom(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	var events []*store.TransferEvent
	for b := uint64(90); b <= 99; b++ {
		events = append(events, newEvent(b, byte(b), 0, alice, bob, "1"), newEvent(b, byte(b), 1, bob, carol, "2"))
	}
	ingest(t, s, 90, 99, events...)

	require.NoError(t, s.RewindFrom(ctx, 97))

	latest, found, err := s.LatestProcessedBlock(ctx)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, uint64(96), latest)

	var above int
	require.NoError(t, s.db.QueryRow(`
		SELECT (SELECT COUNT(*) FROM transfer_events WHERE block_number >= 97)
		     + (SELECT COUNT(*) FROM processed_blocks WHERE block_number >= 97)`).Scan(&above))
	require.Equal(t, 0, above)
	require.Equal(t, 14, countRows(t, s, "transfer_events"))

	// rewinding past everything empties both tables
	require.NoError(t, s.RewindFrom(ctx, 0))
	_, found, err = s.LatestProcessedBlock(ctx)
	require.NoError(t, err)
	require.False(t, found)
	require.Equal(t, 0, countRows(t, s, "transfer_events"))
}

func TestQueryTransfers(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	ingest(t, s, 100, 102,
		newEvent(100, 1, 2, alice, bob, "1"),
		newEvent(100, 1, 0, bob, carol, "2"),
		newEvent(101, 2, 5, carol, alice, "3"),
		newEvent(101, 3, 1, bob, carol, "4"),
		newEvent(102, 4, 3, alice, carol, "5"),
		newEvent(102, 4, 0, carol, bob, "6"),
	)

	t.Run("ordering", func(t *testing.T) {
		events, err := s.QueryTransfers(ctx, store.TransferFilter{Limit: 1000})
		require.NoError(t, err)
		require.Len(t, events, 6)

		type key struct{ block, index uint64 }
		got := make([]key, len(events))
		for i, e := range events {
			got[i] = key{e.BlockNumber, e.LogIndex}
		}
		require.Equal(t, []key{{102, 0}, {102, 3}, {101, 1}, {101, 5}, {100, 0}, {100, 2}}, got)
	})

	t.Run("address matches either side", func(t *testing.T) {
		events, err := s.QueryTransfers(ctx, store.TransferFilter{Address: &alice, Limit: 100})
		require.NoError(t, err)
		require.Len(t, events, 3)
		for _, e := range events {
			require.True(t, e.FromAddress == alice || e.ToAddress == alice)
		}
	})

	t.Run("block range", func(t *testing.T) {
		from, to := uint64(101), uint64(101)
		events, err := s.QueryTransfers(ctx, store.TransferFilter{FromBlock: &from, ToBlock: &to, Limit: 100})
		require.NoError(t, err)
		require.Len(t, events, 2)
		for _, e := range events {
			require.Equal(t, uint64(101), e.BlockNumber)
		}
	})

	t.Run("limit", func(t *testing.T) {
		events, err := s.QueryTransfers(ctx, store.TransferFilter{Limit: 2})
		require.NoError(t, err)
		require.Len(t, events, 2)
		require.Equal(t, uint64(102), events[0].BlockNumber)
	})

	t.Run("limit beyond int64 means unlimited", func(t *testing.T) {
		events, err := s.QueryTransfers(ctx, store.TransferFilter{Limit: math.MaxUint64})
		require.NoError(t, err)
		require.Len(t, events, 6)
	})

	t.Run("no match", func(t *testing.T) {
		nobody := common.HexToAddress("0x0000000000000000000000000000000000000bad")
		events, err := s.QueryTransfers(ctx, store.TransferFilter{Address: &nobody, Limit: 100})
		require.NoError(t, err)
		require.Empty(t, events)
	})
}

func TestStats(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(0), stats.TotalTransfers)
	require.Equal(t, uint64(0), stats.UniqueAddresses)
	require.Nil(t, stats.LatestBlock)
	require.Nil(t, stats.EarliestBlock)

	ingest(t, s, 100, 120,
		newEvent(100, 1, 0, alice, bob, "1"),
		newEvent(110, 2, 0, bob, alice, "1"),
		newEvent(120, 3, 0, bob, carol, "1"),
	)

	stats, err = s.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(3), stats.TotalTransfers)
	require.Equal(t, uint64(3), stats.UniqueAddresses)
	require.NotNil(t, stats.LatestBlock)
	require.Equal(t, uint64(120), *stats.LatestBlock)
	require.NotNil(t, stats.EarliestBlock)
	require.Equal(t, uint64(100), *stats.EarliestBlock)
}

func TestOpen_ReopenKeepsState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "transfers.db")

	first := openTestStore(t, path)
	ingest(t, first, 100, 199, newEvent(150, 1, 0, alice, bob, "1"))
	require.NoError(t, first.Close())

	second := openTestStore(t, path)
	latest, found, err := second.LatestProcessedBlock(context.Background())
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, uint64(199), latest)
	require.Equal(t, 1, countRows(t, second, "transfer_events"))
}

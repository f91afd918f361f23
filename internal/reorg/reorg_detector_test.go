package reorg

import (
	"context"
	"errors"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/goran-ethernal/TransferIndexor/internal/logger"
	"github.com/goran-ethernal/TransferIndexor/internal/rpc/mocks"
	"github.com/goran-ethernal/TransferIndexor/internal/store/sqlite"
	"github.com/goran-ethernal/TransferIndexor/pkg/config"
	"github.com/goran-ethernal/TransferIndexor/pkg/rpc"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func canonicalHash(block uint64) common.Hash {
	return common.BigToHash(new(big.Int).SetUint64(0xb10c0000 + block))
}

func forkHash(block uint64) common.Hash {
	return common.BigToHash(new(big.Int).SetUint64(0xf0e20000 + block))
}

func setupTestStore(t *testing.T, from, to uint64) *sqlite.Store {
	t.Helper()

	cfg := config.DatabaseConfig{}
	cfg.ApplyDefaults()

	s, err := sqlite.Open(filepath.Join(t.TempDir(), "reorg.db"), cfg, time.Minute, logger.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	for b := from; b <= to; b++ {
		require.NoError(t, s.InsertProcessedBlock(context.Background(), b, canonicalHash(b), time.Unix(int64(b), 0)))
	}

	return s
}

// chainWith answers BlockHeader with the canonical hash except for the heights in forked.
func chainWith(t *testing.T, forked map[uint64]bool) *mocks.ChainReader {
	t.Helper()

	chain := mocks.NewChainReader(t)
	chain.EXPECT().BlockHeader(mock.Anything, mock.Anything).
		RunAndReturn(func(_ context.Context, h uint64) (rpc.BlockHeader, error) {
			hash := canonicalHash(h)
			if forked[h] {
				hash = forkHash(h)
			}
			return rpc.BlockHeader{Number: h, Hash: hash, Timestamp: time.Unix(int64(h), 0)}, nil
		})

	return chain
}

func TestReorgDetector_NoReorg(t *testing.T) {
	s := setupTestStore(t, 90, 99)
	chain := chainWith(t, nil)

	detector := NewReorgDetector(chain, s, 10, logger.NewNopLogger())
	require.NoError(t, detector.Check(context.Background(), 100))

	latest, found, err := s.LatestProcessedBlock(context.Background())
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, uint64(99), latest)
	chain.AssertNumberOfCalls(t, "BlockHeader", 10)
}

func TestReorgDetector_RewindsFromLowestDivergence(t *testing.T) {
	s := setupTestStore(t, 90, 99)
	chain := chainWith(t, map[uint64]bool{97: true, 98: true, 99: true})

	detector := NewReorgDetector(chain, s, 10, logger.NewNopLogger())
	err := detector.Check(context.Background(), 100)
	require.Error(t, err)

	reorgErr, ok := AsReorgError(err)
	require.True(t, ok)
	require.Equal(t, uint64(97), reorgErr.FirstReorgBlock)
	require.Contains(t, reorgErr.Details, forkHash(97).Hex())

	latest, found, err := s.LatestProcessedBlock(context.Background())
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, uint64(96), latest)

	// the scan stops at the first mismatch
	chain.AssertNumberOfCalls(t, "BlockHeader", 8)
}

func TestReorgDetector_WindowClampedAtGenesis(t *testing.T) {
	s := setupTestStore(t, 0, 2)
	chain := chainWith(t, map[uint64]bool{0: true})

	detector := NewReorgDetector(chain, s, 10, logger.NewNopLogger())
	err := detector.Check(context.Background(), 3)

	reorgErr, ok := AsReorgError(err)
	require.True(t, ok)
	require.Equal(t, uint64(0), reorgErr.FirstReorgBlock)

	_, found, err := s.LatestProcessedBlock(context.Background())
	require.NoError(t, err)
	require.False(t, found)
}

func TestReorgDetector_CursorZero(t *testing.T) {
	s := setupTestStore(t, 1, 0)
	chain := mocks.NewChainReader(t)

	detector := NewReorgDetector(chain, s, 10, logger.NewNopLogger())
	require.NoError(t, detector.Check(context.Background(), 0))
}

func TestReorgDetector_SkipsUnstoredHeights(t *testing.T) {
	// only 95..99 stored, so only those are fetched
	s := setupTestStore(t, 95, 99)
	chain := chainWith(t, nil)

	detector := NewReorgDetector(chain, s, 10, logger.NewNopLogger())
	require.NoError(t, detector.Check(context.Background(), 100))
	chain.AssertNumberOfCalls(t, "BlockHeader", 5)
}

func TestReorgDetector_TransientChainErrorIsNotAReorg(t *testing.T) {
	s := setupTestStore(t, 90, 99)

	chain := mocks.NewChainReader(t)
	chain.EXPECT().BlockHeader(mock.Anything, mock.Anything).
		RunAndReturn(func(_ context.Context, h uint64) (rpc.BlockHeader, error) {
			switch h {
			case 93:
				return rpc.BlockHeader{}, rpc.ErrChainUnavailable
			case 94:
				return rpc.BlockHeader{}, rpc.ErrBlockNotFound
			}
			return rpc.BlockHeader{Number: h, Hash: canonicalHash(h)}, nil
		})

	detector := NewReorgDetector(chain, s, 10, logger.NewNopLogger())
	require.NoError(t, detector.Check(context.Background(), 100))

	latest, _, err := s.LatestProcessedBlock(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(99), latest)
}

func TestReorgDetector_ContextCancelled(t *testing.T) {
	s := setupTestStore(t, 90, 99)
	chain := mocks.NewChainReader(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	detector := NewReorgDetector(chain, s, 10, logger.NewNopLogger())
	require.ErrorIs(t, detector.Check(ctx, 100), context.Canceled)
}

type failingRewindStore struct {
	stored map[uint64]common.Hash
}

func (f *failingRewindStore) StoredBlockHash(_ context.Context, b uint64) (common.Hash, bool, error) {
	h, ok := f.stored[b]
	return h, ok, nil
}

func (f *failingRewindStore) RewindFrom(context.Context, uint64) error {
	return errors.New("disk full")
}

func TestReorgDetector_RewindFailure(t *testing.T) {
	st := &failingRewindStore{stored: map[uint64]common.Hash{9: canonicalHash(9)}}
	chain := chainWith(t, map[uint64]bool{9: true})

	detector := NewReorgDetector(chain, st, 10, logger.NewNopLogger())
	err := detector.Check(context.Background(), 10)
	require.ErrorContains(t, err, "disk full")

	_, ok := AsReorgError(err)
	require.False(t, ok)
}

func TestReorgDetector_DefaultWindow(t *testing.T) {
	detector := NewReorgDetector(mocks.NewChainReader(t), &failingRewindStore{}, 0, nil)
	require.Equal(t, uint64(DefaultWindow), detector.window)
}

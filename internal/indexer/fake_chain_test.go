package indexer

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/goran-ethernal/TransferIndexor/pkg/rpc"
)

var _ rpc.ChainReader = (*fakeChain)(nil)

type fakeTransfer struct {
	txHash   common.Hash
	logIndex uint
	from     common.Address
	to       common.Address
	value    *big.Int
}

// fakeChain is an in-memory chain whose block hashes change at every fork point at or below a height.
type fakeChain struct {
	mu sync.Mutex

	tip        uint64
	forkPoints []uint64
	transfers  map[uint64][]fakeTransfer
	rawLogs    map[uint64][]rpc.RawLog

	// maxSpan > 0 rejects larger log ranges; suggest adds a suggested range to the rejection
	maxSpan uint64
	suggest bool

	latestFailures int

	latestCalls int
	logRanges   [][2]uint64
}

func newFakeChain(tip uint64) *fakeChain {
	return &fakeChain{
		tip:       tip,
		transfers: make(map[uint64][]fakeTransfer),
		rawLogs:   make(map[uint64][]rpc.RawLog),
	}
}

func (c *fakeChain) setTip(tip uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tip = tip
}

// forkFrom replaces every block at or above height with a new sibling.
func (c *fakeChain) forkFrom(height uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.forkPoints = append(c.forkPoints, height)
}

func (c *fakeChain) addTransfer(height uint64, tx byte, logIndex uint, from, to common.Address, value *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transfers[height] = append(c.transfers[height], fakeTransfer{
		txHash:   common.BytesToHash([]byte{0x7e, byte(height), tx}),
		logIndex: logIndex,
		from:     from,
		to:       to,
		value:    value,
	})
}

func (c *fakeChain) addRawLog(height uint64, raw rpc.RawLog) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rawLogs[height] = append(c.rawLogs[height], raw)
}

func (c *fakeChain) hash(height uint64) common.Hash {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hashLocked(height)
}

func (c *fakeChain) hashLocked(height uint64) common.Hash {
	var generation uint64
	for _, p := range c.forkPoints {
		if p <= height {
			generation++
		}
	}
	return common.BytesToHash(fmt.Appendf(nil, "block-%d-gen-%d", height, generation))
}

func (c *fakeChain) logCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.logRanges)
}

func blockTime(height uint64) time.Time {
	return time.Unix(int64(1_700_000_000+height*12), 0).UTC()
}

func (c *fakeChain) LatestBlockNumber(context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.latestCalls++
	if c.latestFailures > 0 {
		c.latestFailures--
		return 0, fmt.Errorf("%w: connection refused", rpc.ErrChainUnavailable)
	}
	return c.tip, nil
}

func (c *fakeChain) BlockHeader(_ context.Context, height uint64) (rpc.BlockHeader, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.headerLocked(height)
}

func (c *fakeChain) headerLocked(height uint64) (rpc.BlockHeader, error) {
	if height > c.tip {
		return rpc.BlockHeader{}, fmt.Errorf("%w: block %d", rpc.ErrBlockNotFound, height)
	}
	return rpc.BlockHeader{Number: height, Hash: c.hashLocked(height), Timestamp: blockTime(height)}, nil
}

func (c *fakeChain) BlockHeaders(_ context.Context, heights []uint64) ([]rpc.BlockHeader, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	headers := make([]rpc.BlockHeader, 0, len(heights))
	for _, h := range heights {
		header, err := c.headerLocked(h)
		if err != nil {
			return nil, err
		}
		headers = append(headers, header)
	}
	return headers, nil
}

func (c *fakeChain) LogsInRange(
	_ context.Context,
	address common.Address,
	topic0 common.Hash,
	from, to uint64,
) ([]rpc.RawLog, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.logRanges = append(c.logRanges, [2]uint64{from, to})

	if c.maxSpan > 0 && to-from+1 > c.maxSpan {
		rangeErr := &rpc.RangeTooLargeError{FromBlock: from, ToBlock: to, Cause: fmt.Errorf("query exceeds max block range %d", c.maxSpan)}
		if c.suggest {
			rangeErr.HasSuggestion = true
			rangeErr.SuggestedFrom = from
			rangeErr.SuggestedTo = from + c.maxSpan - 1
		}
		return nil, rangeErr
	}

	var logs []rpc.RawLog
	for h := from; h <= to; h++ {
		hash := c.hashLocked(h)
		for _, tr := range c.transfers[h] {
			logs = append(logs, rpc.RawLog{
				Address: address,
				Topics: []common.Hash{
					topic0,
					common.BytesToHash(tr.from.Bytes()),
					common.BytesToHash(tr.to.Bytes()),
				},
				Data:        common.LeftPadBytes(tr.value.Bytes(), 32),
				BlockNumber: ptr(h),
				BlockHash:   ptr(hash),
				LogIndex:    ptr(tr.logIndex),
				TxHash:      ptr(tr.txHash),
			})
		}
		logs = append(logs, c.rawLogs[h]...)
	}

	return logs, nil
}

func (c *fakeChain) Close() {}

func ptr[T any](v T) *T {
	return &v
}

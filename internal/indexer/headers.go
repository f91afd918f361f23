package indexer

import (
	"context"
	"fmt"

	"github.com/goran-ethernal/TransferIndexor/pkg/rpc"
)

// headerCache holds the headers of the batch being ingested so that each height
// is looked up once, for both event timestamps and checkpoints.
type headerCache struct {
	chain   rpc.ChainReader
	headers map[uint64]rpc.BlockHeader
}

func newHeaderCache(chain rpc.ChainReader) *headerCache {
	return &headerCache{
		chain:   chain,
		headers: make(map[uint64]rpc.BlockHeader),
	}
}

// load replaces the cache contents with the headers of [from, to], fetched in one batch.
func (c *headerCache) load(ctx context.Context, from, to uint64) error {
	clear(c.headers)

	heights := make([]uint64, 0, to-from+1)
	for h := from; h <= to; h++ {
		heights = append(heights, h)
	}

	headers, err := c.chain.BlockHeaders(ctx, heights)
	if err != nil {
		return fmt.Errorf("failed to get headers for blocks %d-%d: %w", from, to, err)
	}

	for _, header := range headers {
		c.headers[header.Number] = header
	}

	return nil
}

// BlockHeader returns the cached header at height, falling back to a single lookup on a miss.
func (c *headerCache) BlockHeader(ctx context.Context, height uint64) (rpc.BlockHeader, error) {
	if header, ok := c.headers[height]; ok {
		return header, nil
	}

	header, err := c.chain.BlockHeader(ctx, height)
	if err != nil {
		return rpc.BlockHeader{}, err
	}
	c.headers[height] = header

	return header, nil
}

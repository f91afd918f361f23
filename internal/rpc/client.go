package rpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/goran-ethernal/TransferIndexor/internal/logger"
	pkgrpc "github.com/goran-ethernal/TransferIndexor/pkg/rpc"
)

// Compile-time check to ensure Client implements pkgrpc.ChainReader interface.
var _ pkgrpc.ChainReader = (*Client)(nil)

const (
	methodBlockNumber = "eth_blockNumber"
	methodGetBlock    = "eth_getBlockByNumber"
	methodGetLogs     = "eth_getLogs"

	// maxBatch is the largest number of calls sent in one JSON-RPC batch.
	maxBatch = 100
)

// Client is a go-ethereum backed ChainReader.
// Every call is bounded by the configured request timeout and is never retried.
type Client struct {
	eth     *ethclient.Client
	rpc     *rpc.Client
	timeout time.Duration
	log     *logger.Logger
}

// NewClient creates a new RPC client connected to the given endpoint.
func NewClient(ctx context.Context, endpoint string, timeout time.Duration, log *logger.Logger) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, endpoint)
	if err != nil {
		return nil, unavailable(err)
	}

	return newClient(rpcClient, timeout, log), nil
}

func newClient(rpcClient *rpc.Client, timeout time.Duration, log *logger.Logger) *Client {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Client{
		eth:     ethclient.NewClient(rpcClient),
		rpc:     rpcClient,
		timeout: timeout,
		log:     log,
	}
}

// Close closes the RPC client connection.
func (c *Client) Close() {
	c.eth.Close()
}

// LatestBlockNumber returns the current head height.
func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	start := c.begin(methodBlockNumber)
	n, err := c.eth.BlockNumber(ctx)
	if err != nil {
		err = unavailable(err)
	}
	c.end(methodBlockNumber, start, err)

	return n, err
}

// BlockHeader returns the hash and timestamp of the block at height.
func (c *Client) BlockHeader(ctx context.Context, height uint64) (pkgrpc.BlockHeader, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	start := c.begin(methodGetBlock)

	var head *rpcHeader
	err := c.rpc.CallContext(ctx, &head, methodGetBlock, toBlockNumArg(height), false)
	switch {
	case err != nil:
		err = unavailable(err)
	case head == nil:
		err = fmt.Errorf("%w: %d", pkgrpc.ErrBlockNotFound, height)
	}
	c.end(methodGetBlock, start, err)

	if err != nil {
		return pkgrpc.BlockHeader{}, err
	}

	return head.toBlockHeader(), nil
}

// BlockHeaders retrieves headers for multiple block numbers using batch calls of at most maxBatch elements.
func (c *Client) BlockHeaders(ctx context.Context, heights []uint64) ([]pkgrpc.BlockHeader, error) {
	allResults := make([]pkgrpc.BlockHeader, 0, len(heights))

	for i := 0; i < len(heights); i += maxBatch {
		end := min(i+maxBatch, len(heights))
		chunk := heights[i:end]

		headers, err := c.batchHeaders(ctx, chunk)
		if err != nil {
			return nil, err
		}

		allResults = append(allResults, headers...)
	}

	return allResults, nil
}

func (c *Client) batchHeaders(ctx context.Context, heights []uint64) ([]pkgrpc.BlockHeader, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	batch := make([]rpc.BatchElem, len(heights))
	results := make([]*rpcHeader, len(heights))

	for j, height := range heights {
		batch[j] = rpc.BatchElem{
			Method: methodGetBlock,
			Args:   []any{toBlockNumArg(height), false}, // false = don't include transactions
			Result: &results[j],
		}
	}

	start := c.begin(methodGetBlock)
	err := c.rpc.BatchCallContext(ctx, batch)
	if err != nil {
		err = unavailable(err)
	} else {
		// Check for individual errors
		for j, elem := range batch {
			if elem.Error != nil {
				err = unavailable(elem.Error)
				break
			}
			if results[j] == nil {
				err = fmt.Errorf("%w: %d", pkgrpc.ErrBlockNotFound, heights[j])
				break
			}
		}
	}
	c.end(methodGetBlock, start, err)

	if err != nil {
		return nil, err
	}

	headers := make([]pkgrpc.BlockHeader, len(results))
	for j, head := range results {
		headers[j] = head.toBlockHeader()
	}

	return headers, nil
}

// LogsInRange retrieves the logs emitted by address with topic0 over the inclusive range [from, to].
func (c *Client) LogsInRange(
	ctx context.Context,
	address common.Address,
	topic0 common.Hash,
	from, to uint64,
) ([]pkgrpc.RawLog, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	start := c.begin(methodGetLogs)

	var result []rpcLog
	err := c.rpc.CallContext(ctx, &result, methodGetLogs, toFilterArg(address, topic0, from, to))
	if err != nil {
		err = classifyLogsError(err, from, to)
	}
	c.end(methodGetLogs, start, err)

	if err != nil {
		return nil, err
	}

	c.log.Debugf("fetched logs: from_block=%d to_block=%d count=%d", from, to, len(result))

	logs := make([]pkgrpc.RawLog, len(result))
	for i := range result {
		logs[i] = result[i].toRawLog()
	}

	return logs, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Client) begin(method string) time.Time {
	RPCMethodInc(method)
	return time.Now()
}

func (c *Client) end(method string, start time.Time, err error) {
	RPCMethodDuration(method, time.Since(start))
	if err != nil {
		RPCMethodError(method, errorType(err))
	}
}

// rpcHeader decodes the fields of an eth_getBlockByNumber result the indexer uses.
type rpcHeader struct {
	Number    hexutil.Uint64 `json:"number"`
	Hash      common.Hash    `json:"hash"`
	Timestamp hexutil.Uint64 `json:"timestamp"`
}

func (h *rpcHeader) toBlockHeader() pkgrpc.BlockHeader {
	return pkgrpc.BlockHeader{
		Number:    uint64(h.Number),
		Hash:      h.Hash,
		Timestamp: time.Unix(int64(h.Timestamp), 0).UTC(), //nolint:gosec
	}
}

// rpcLog decodes an eth_getLogs entry. Pending logs carry null metadata, hence the pointers.
type rpcLog struct {
	Address         common.Address  `json:"address"`
	Topics          []common.Hash   `json:"topics"`
	Data            hexutil.Bytes   `json:"data"`
	BlockNumber     *hexutil.Uint64 `json:"blockNumber"`
	BlockHash       *common.Hash    `json:"blockHash"`
	LogIndex        *hexutil.Uint   `json:"logIndex"`
	TransactionHash *common.Hash    `json:"transactionHash"`
	Removed         bool            `json:"removed"`
}

func (l *rpcLog) toRawLog() pkgrpc.RawLog {
	raw := pkgrpc.RawLog{
		Address:   l.Address,
		Topics:    l.Topics,
		Data:      l.Data,
		BlockHash: l.BlockHash,
		TxHash:    l.TransactionHash,
		Removed:   l.Removed,
	}

	if l.BlockNumber != nil {
		n := uint64(*l.BlockNumber)
		raw.BlockNumber = &n
	}
	if l.LogIndex != nil {
		idx := uint(*l.LogIndex)
		raw.LogIndex = &idx
	}

	return raw
}

// toFilterArg builds the eth_getLogs filter object.
func toFilterArg(address common.Address, topic0 common.Hash, from, to uint64) any {
	return map[string]any{
		"address":   address,
		"topics":    [][]common.Hash{{topic0}},
		"fromBlock": toBlockNumArg(from),
		"toBlock":   toBlockNumArg(to),
	}
}

// toBlockNumArg converts a block number to hex format.
func toBlockNumArg(blockNum uint64) string {
	return fmt.Sprintf("0x%x", blockNum)
}

func isRangeTooLarge(err error) bool {
	return errors.Is(err, pkgrpc.ErrRangeTooLarge)
}

func isNotFound(err error) bool {
	return errors.Is(err, pkgrpc.ErrBlockNotFound)
}

func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

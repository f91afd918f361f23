package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	internalcommon "github.com/goran-ethernal/TransferIndexor/internal/common"
	"github.com/goran-ethernal/TransferIndexor/internal/logger"
	"github.com/goran-ethernal/TransferIndexor/internal/store"
	"github.com/goran-ethernal/TransferIndexor/pkg/config"
	pkgstore "github.com/goran-ethernal/TransferIndexor/pkg/store"
	"github.com/spf13/cobra"
)

const defaultQueryLimit = 100

type queryOptions struct {
	address   string
	fromBlock uint64
	toBlock   uint64
	limit     uint64
}

func newQueryCmd(root *rootOptions) *cobra.Command {
	opts := &queryOptions{}

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Print indexed transfers as JSON",
		Long: `Print indexed transfers, newest block first and by log index within a block.
--address matches either side of a transfer and is case-insensitive.`,
		Example: `  indexer query --address 0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48 --limit 10
  indexer query --from-block 19000000 --to-block 19000100`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runQuery(cmd, root, opts)
		},
	}

	cmd.Flags().StringVar(&opts.address, "address", "", "sender or recipient address")
	cmd.Flags().Uint64Var(&opts.fromBlock, "from-block", 0, "lowest block, inclusive")
	cmd.Flags().Uint64Var(&opts.toBlock, "to-block", 0, "highest block, inclusive")
	cmd.Flags().Uint64Var(&opts.limit, "limit", defaultQueryLimit, "maximum number of transfers")

	return cmd
}

// transferJSON is the printed form of a transfer; addresses are lowercase.
type transferJSON struct {
	ID              string    `json:"id"`
	TransactionHash string    `json:"transaction_hash"`
	LogIndex        uint64    `json:"log_index"`
	BlockNumber     uint64    `json:"block_number"`
	BlockHash       string    `json:"block_hash"`
	FromAddress     string    `json:"from_address"`
	ToAddress       string    `json:"to_address"`
	Value           string    `json:"value"`
	Timestamp       time.Time `json:"timestamp"`
	CreatedAt       time.Time `json:"created_at"`
}

func toTransferJSON(e *pkgstore.TransferEvent) transferJSON {
	return transferJSON{
		ID:              e.ID,
		TransactionHash: e.TransactionHash.Hex(),
		LogIndex:        e.LogIndex,
		BlockNumber:     e.BlockNumber,
		BlockHash:       e.BlockHash.Hex(),
		FromAddress:     strings.ToLower(e.FromAddress.Hex()),
		ToAddress:       strings.ToLower(e.ToAddress.Hex()),
		Value:           e.Value,
		Timestamp:       e.Timestamp.UTC(),
		CreatedAt:       e.CreatedAt.UTC(),
	}
}

// buildFilter turns the flags into a store filter, validating and normalising the address.
func buildFilter(cmd *cobra.Command, opts *queryOptions) (pkgstore.TransferFilter, error) {
	filter := pkgstore.TransferFilter{Limit: opts.limit}

	if cmd.Flags().Changed("address") {
		addr := internalcommon.ToLowerWithTrim(opts.address)
		if !strings.HasPrefix(addr, "0x") || !common.IsHexAddress(addr) {
			return filter, config.NewConfigError("address", fmt.Sprintf("must be a 0x-prefixed 20-byte hex address, got %q", opts.address))
		}
		a := common.HexToAddress(addr)
		filter.Address = &a
	}
	if cmd.Flags().Changed("from-block") {
		from := opts.fromBlock
		filter.FromBlock = &from
	}
	if cmd.Flags().Changed("to-block") {
		to := opts.toBlock
		filter.ToBlock = &to
	}

	return filter, nil
}

func runQuery(cmd *cobra.Command, root *rootOptions, opts *queryOptions) error {
	filter, err := buildFilter(cmd, opts)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd, root)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx := cmd.Context()
	st, err := store.Open(ctx, cfg, logger.NewComponentLoggerFromConfig(internalcommon.ComponentStore, cfg.Logging))
	if err != nil {
		return err
	}
	defer st.Close()

	events, err := st.QueryTransfers(ctx, filter)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, e := range events {
		data, err := json.MarshalIndent(toTransferJSON(e), "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode transfer %s: %w", e.ID, err)
		}
		fmt.Fprintln(out, string(data))
	}

	return nil
}

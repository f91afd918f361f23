package main

import (
	"fmt"

	"github.com/goran-ethernal/TransferIndexor/internal/common"
	"github.com/goran-ethernal/TransferIndexor/internal/logger"
	"github.com/goran-ethernal/TransferIndexor/internal/store"
	"github.com/spf13/cobra"
)

func newStatsCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print aggregate statistics of the store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, root)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			ctx := cmd.Context()
			st, err := store.Open(ctx, cfg, logger.NewComponentLoggerFromConfig(common.ComponentStore, cfg.Logging))
			if err != nil {
				return err
			}
			defer st.Close()

			stats, err := st.Stats(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Database Statistics:")
			fmt.Fprintf(out, "Total transfers: %d\n", stats.TotalTransfers)
			fmt.Fprintf(out, "Unique addresses: %d\n", stats.UniqueAddresses)
			fmt.Fprintf(out, "Latest block: %d\n", valueOrZero(stats.LatestBlock))
			fmt.Fprintf(out, "Earliest block: %d\n", valueOrZero(stats.EarliestBlock))

			return nil
		},
	}
}

func valueOrZero(v *uint64) uint64 {
	if v == nil {
		return 0
	}
	return *v
}

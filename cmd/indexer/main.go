package main

import (
	"os"

	internalconfig "github.com/goran-ethernal/TransferIndexor/internal/config"
	"github.com/goran-ethernal/TransferIndexor/pkg/config"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath  string
	rpcURL      string
	databaseURL string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "indexer",
		Short: "TransferIndexor - ERC-20 Transfer event indexer",
		Long: `TransferIndexor follows the chain head, extracts Transfer(from, to, value) logs of a
single ERC-20 contract and stores them, with reorg handling, in SQLite or PostgreSQL.
Indexed transfers can be queried and summarised from the same binary.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"path to configuration file (.yaml, .yml, .json, .toml)")
	root.PersistentFlags().StringVar(&opts.rpcURL, internalconfig.FlagRPCURL, "",
		"Ethereum JSON-RPC endpoint (overrides ETHEREUM_RPC_URL)")
	root.PersistentFlags().StringVar(&opts.databaseURL, internalconfig.FlagDatabaseURL, "",
		"database URL, sqlite:<path> or postgres://... (overrides DATABASE_URL)")

	root.AddCommand(
		newIndexCmd(opts),
		newQueryCmd(opts),
		newStatsCmd(opts),
		newSchemaCmd(),
	)

	return root
}

// loadConfig resolves the configuration for cmd from the file, .env, environment and flags.
func loadConfig(cmd *cobra.Command, opts *rootOptions) (*config.Config, error) {
	return internalconfig.Load(internalconfig.Options{
		Path:  opts.configPath,
		Flags: cmd.Flags(),
	})
}

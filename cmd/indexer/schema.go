package main

import (
	"encoding/json"
	"fmt"

	"github.com/goran-ethernal/TransferIndexor/pkg/config"
	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"
)

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of the configuration file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			reflector := jsonschema.Reflector{
				DoNotReference: true,
			}
			schema := reflector.Reflect(&config.Config{})
			schema.Title = "TransferIndexor configuration"

			data, err := json.MarshalIndent(schema, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode schema: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), string(data))

			return nil
		},
	}
}

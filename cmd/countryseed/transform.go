package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/global-data-controller/countryseed/internal/bootstrap"
	"github.com/global-data-controller/countryseed/internal/seeder"
)

func newTransformCmd(configFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transform",
		Short: "Print the transformed country records as JSON without touching a store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bs := bootstrap.New()
			if err := bs.Initialize(cmd.Context(), *configFile, cmd.Flags()); err != nil {
				return err
			}
			defer bs.Stop(cmd.Context())

			records, err := seeder.LoadRecords(bs.GetConfig().Data)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			enc.SetEscapeHTML(false)
			if err := enc.Encode(records); err != nil {
				return fmt.Errorf("failed to write records: %w", err)
			}
			return nil
		},
	}
	addDataFlags(cmd)
	return cmd
}

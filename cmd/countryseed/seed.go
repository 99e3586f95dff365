package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/global-data-controller/countryseed/internal/bootstrap"
	"github.com/global-data-controller/countryseed/internal/seeder"
)

func newSeedCmd(configFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Clear the countries collection and insert the full set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd, *configFile)
		},
	}
	addSeedFlags(cmd)
	return cmd
}

func addSeedFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String("uri", "", "document store connection string (overrides MONGODB_URI)")
	flags.Bool("dry-run", false, "transform and report against an in-memory store")
	flags.Int("sample-limit", 5, "number of Middle Eastern records to print")
	flags.Bool("strict-audit", false, "fail the run when the audit reports violations")
	addDataFlags(cmd)
}

func addDataFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String("data-source", "builtin", "where country data comes from (builtin, files)")
	flags.String("data-dir", "", "directory holding countries.json, flags.json and states.json")
}

func runSeed(cmd *cobra.Command, configFile string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bs := bootstrap.New()
	if err := bs.Initialize(ctx, configFile, cmd.Flags()); err != nil {
		return err
	}

	if err := bs.Start(ctx); err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = bs.Stop(shutdownCtx)
	}()

	logger := bs.GetLogger()

	_, err := seeder.New(bs.GetConfig(), logger,
		seeder.WithTelemetry(bs.GetTelemetry()),
		seeder.WithOutput(cmd.OutOrStdout()),
	).Run(ctx)
	if err != nil {
		logger.Error(ctx, "Seed failed", zap.Error(err))
		return err
	}

	return nil
}

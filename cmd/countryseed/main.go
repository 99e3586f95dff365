package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:   "countryseed",
		Short: "Seed a document store with the country reference collection",
		Long: "countryseed rebuilds the countries collection: it clears the target\n" +
			"collection and inserts one record per country with codes, localized\n" +
			"names, flag emoji and subdivisions.",
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd, configFile)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configFile, "config", "c", "", "path to configuration file")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")

	addSeedFlags(rootCmd)
	rootCmd.AddCommand(
		newSeedCmd(&configFile),
		newTransformCmd(&configFile),
	)

	return rootCmd
}

// failureMessage formats the stderr line for a failed command
func failureMessage(cmd *cobra.Command, err error) string {
	action := "seeding"
	if cmd != nil && cmd.Name() == "transform" {
		action = "transforming"
	}
	return fmt.Sprintf("❌ Error %s countries: %v", action, err)
}

func main() {
	cmd, err := newRootCmd().ExecuteC()
	if err != nil {
		fmt.Fprintln(os.Stderr, failureMessage(cmd, err))
		os.Exit(1)
	}
}

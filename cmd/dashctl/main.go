// Command dashctl runs maintenance tasks against the dashboard database:
// index migrations, legacy client document repair, invoice rebuilds and
// assistant stats refreshes.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:           "dashctl",
		Short:         "Maintenance tooling for the voicedesk dashboard backend",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&opts.output, "output", "o", "json", "output format (json, yaml)")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log at debug level")

	rootCmd.AddCommand(migrateCmd(opts))
	rootCmd.AddCommand(invoicesCmd(opts))
	rootCmd.AddCommand(assistantsCmd(opts))
	return rootCmd
}

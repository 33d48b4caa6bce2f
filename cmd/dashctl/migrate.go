package main

import (
	"github.com/spf13/cobra"
)

func migrateCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migrations",
	}
	cmd.AddCommand(migrateIndexesCmd(opts))
	cmd.AddCommand(migrateClientKeysCmd(opts))
	return cmd
}

func migrateIndexesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "indexes",
		Short: "Create the unique and lookup indexes the dashboard relies on",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.mongo.EnsureIndexes(cmd.Context(), a.logger)
		},
	}
}

func migrateClientKeysCmd(opts *rootOptions) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "client-keys",
		Short: "Rewrite legacy client documents keyed by string user ids to ObjectId keys",
		Long: `Scans the legacy clients collection and converts userId values stored as
hex strings or extended-JSON objects into ObjectIds.

Documents whose user already owns an ObjectId-keyed document are reported as
conflicts and left untouched.

Examples:
  dashctl migrate client-keys --dry-run
  dashctl migrate client-keys -o yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.clients.NormalizeKeys(cmd.Context(), dryRun)
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), opts.output, report)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would change without writing")
	return cmd
}

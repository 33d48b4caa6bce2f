package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

type rebuildResult struct {
	UserID   string `json:"userId" yaml:"userId"`
	Email    string `json:"email" yaml:"email"`
	Invoices int    `json:"invoices" yaml:"invoices"`
}

func invoicesCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invoices",
		Short: "Invoice maintenance",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "rebuild <user-id|email>",
		Short: "Rebuild a user's invoices from transactions and legacy client documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			user, err := a.users.FindByRef(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			n, err := a.reconcile.RebuildInvoices(cmd.Context(), user)
			if err != nil {
				return fmt.Errorf("rebuild invoices for %s: %w", args[0], err)
			}
			return writeOutput(cmd.OutOrStdout(), opts.output, rebuildResult{
				UserID:   user.ID.Hex(),
				Email:    user.Email,
				Invoices: n,
			})
		},
	})
	return cmd
}

package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/tally/internal/accounts"
	"github.com/cleared-dev/tally/internal/ledger"
)

func newExportCommand(a *app) *cobra.Command {
	var owner, accountID, outPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export an account's transactions as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ownerID, err := a.owner(owner)
			if err != nil {
				return err
			}
			st, closeStore, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			if _, err := accounts.NewService(st).Get(cmd.Context(), ownerID, accountID); err != nil {
				return fmt.Errorf("account %s: %w", accountID, err)
			}

			var w io.Writer = cmd.OutOrStdout()
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("creating export file: %w", err)
				}
				defer f.Close()
				w = f
			}

			n, err := ledger.Export(cmd.Context(), w, st, accountID)
			if err != nil {
				return err
			}
			if outPath != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %d transactions to %s\n", n, outPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "owner id (default from config)")
	cmd.Flags().StringVar(&accountID, "account", "", "account id (required)")
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "write to file instead of stdout")
	_ = cmd.MarkFlagRequired("account")

	return cmd
}

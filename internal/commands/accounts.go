package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/tally/internal/accounts"
)

func newAccountsCommand(a *app) *cobra.Command {
	accountsCmd := &cobra.Command{
		Use:   "accounts",
		Short: "Account operations",
	}
	accountsCmd.AddCommand(newAccountsListCommand(a), newAccountsDeleteCommand(a))
	return accountsCmd
}

func newAccountsListCommand(a *app) *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts",
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

			accts, err := accounts.NewService(st).List(cmd.Context(), ownerID)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tSOURCE\tINSTITUTION\tMASK")
			for _, acct := range accts {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", acct.ID, acct.Name, acct.Source, acct.InstitutionName, acct.Mask)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "owner id (default from config)")
	return cmd
}

func newAccountsDeleteCommand(a *app) *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "delete <account-id>",
		Short: "Delete an account and all of its transactions",
		Args:  cobra.ExactArgs(1),
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

			if err := accounts.NewService(st).Delete(cmd.Context(), ownerID, args[0]); err != nil {
				return fmt.Errorf("account %s: %w", args[0], err)
			}
			a.commitLedger(cmd, "delete account "+args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted account %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "owner id (default from config)")
	return cmd
}

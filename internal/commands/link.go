package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/tally/internal/accounts"
	"github.com/cleared-dev/tally/internal/syncer"
)

func newLinkCommand(a *app) *cobra.Command {
	var owner, publicToken string

	cmd := &cobra.Command{
		Use:   "link",
		Short: "Link a feed item from a public token and run its first sync",
		RunE: func(cmd *cobra.Command, args []string) error {
			ownerID, err := a.owner(owner)
			if err != nil {
				return err
			}
			client, err := a.feedClient()
			if err != nil {
				return err
			}
			st, closeStore, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			log := logger(cmd)
			linker := accounts.NewLinker(st, client, syncer.New(st, client, log), log)
			res, err := linker.Link(cmd.Context(), ownerID, publicToken)
			if err != nil {
				return err
			}
			a.commitLedger(cmd, fmt.Sprintf("link: item %s", res.ItemID))
			fmt.Fprintf(cmd.OutOrStdout(), "Linked item %s: %d accounts, %d transactions added\n", res.ItemID, res.Accounts, res.Added)
			return nil
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "owner id (default from config)")
	cmd.Flags().StringVar(&publicToken, "public-token", "", "public token from the link flow (required)")
	_ = cmd.MarkFlagRequired("public-token")

	return cmd
}

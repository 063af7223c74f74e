package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/tally/internal/syncer"
	"github.com/cleared-dev/tally/internal/synclog"
)

func newSyncCommand(a *app) *cobra.Command {
	var owner, item string
	var all bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Pull new transactions from linked feed items",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.feedClient()
			if err != nil {
				return err
			}
			st, closeStore, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			orch := syncer.New(st, client, logger(cmd))

			var report syncer.Report
			if all {
				report, err = orch.SyncAll(cmd.Context())
			} else {
				ownerID, oerr := a.owner(owner)
				if oerr != nil {
					return oerr
				}
				report, err = orch.Sync(cmd.Context(), ownerID, item)
			}
			if err != nil {
				return err
			}

			if err := synclog.Append(a.path(a.cfg.Sync.LogDir), synclog.FromReport(time.Now(), report)); err != nil {
				log := logger(cmd)
				log.Warn().Err(err).Msg("writing sync log")
			}
			a.commitLedger(cmd, fmt.Sprintf("sync: %d transactions from %d items", report.Added, len(report.Items)))
			printReport(cmd.OutOrStdout(), report)
			return nil
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "owner id (default from config)")
	cmd.Flags().StringVar(&item, "item", "", "sync only this item")
	cmd.Flags().BoolVar(&all, "all", false, "sync every owner with linked items")

	return cmd
}

func printReport(w io.Writer, r syncer.Report) {
	for _, it := range r.Items {
		status := "ok"
		if it.Err != nil {
			status = "failed: " + it.Err.Error()
		}
		fmt.Fprintf(w, "%s: %d added, %d pending, %d orphaned, %d duplicates (%s)\n",
			it.ItemID, it.Added, it.Pending, it.Orphaned, it.Duplicates, status)
	}
	fmt.Fprintf(w, "Total added: %d\n", r.Added)
}

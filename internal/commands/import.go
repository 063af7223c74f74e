package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/tally/internal/importer"
	"github.com/cleared-dev/tally/internal/ingest"
)

func newImportCommand(a *app) *cobra.Command {
	var format, accountName, accountID, owner string

	cmd := &cobra.Command{
		Use:   "import [files...]",
		Short: "Import bank statements into one account",
		Long: "Import CSV, TSV or XLSX statements. Without arguments every statement in the\n" +
			"import directory is imported and then moved to its processed/ folder.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ownerID, err := a.owner(owner)
			if err != nil {
				return err
			}
			if format == "" {
				format = a.cfg.Import.DefaultFormat
			}
			if accountName == "" {
				accountName = a.cfg.Import.AccountName
			}

			paths := args
			var dropDir string
			if len(paths) == 0 {
				dropDir = a.path(a.cfg.Import.Dir)
				found, err := importer.Scan(dropDir)
				if err != nil {
					return err
				}
				if len(found) == 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "No statements in %s\n", dropDir)
					return nil
				}
				for _, f := range found {
					paths = append(paths, f.Path)
				}
			}

			req := ingest.Request{
				OwnerID:     ownerID,
				AccountName: accountName,
				AccountID:   accountID,
				Format:      format,
			}
			for _, p := range paths {
				data, err := os.ReadFile(p)
				if err != nil {
					return fmt.Errorf("reading statement: %w", err)
				}
				req.Files = append(req.Files, ingest.File{Name: filepath.Base(p), Data: data})
			}

			st, closeStore, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			res, err := ingest.NewService(st, nil, logger(cmd)).Upload(cmd.Context(), req)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, f := range res.Files {
				fmt.Fprintf(out, "%s: %d imported, %d skipped\n", f.Name, f.Imported, f.Skipped)
			}
			fmt.Fprintf(out, "Account %s (%s): %d imported, %d skipped\n", res.AccountName, res.AccountID, res.Imported, res.Skipped)

			a.commitLedger(cmd, fmt.Sprintf("import: %d transactions into %s", res.Imported, res.AccountName))

			if dropDir != "" {
				for _, f := range req.Files {
					if err := importer.MarkProcessed(dropDir, f.Name); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "", "statement format: generic or chase (default from config)")
	cmd.Flags().StringVar(&accountName, "account-name", "", "name for the new upload account")
	cmd.Flags().StringVar(&accountID, "account", "", "import into this existing account instead")
	cmd.Flags().StringVar(&owner, "owner", "", "owner id (default from config)")

	return cmd
}

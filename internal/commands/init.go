package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/tally/internal/config"
	"github.com/cleared-dev/tally/internal/gitops"
	"github.com/cleared-dev/tally/internal/id"
	"github.com/cleared-dev/tally/internal/ledger"
)

func newInitCommand() *cobra.Command {
	var owner string
	var git bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new tally project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			if err := runInit(absDir, owner, git); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized tally project at %s\n", absDir)
			return nil
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "owner id (default: generated)")
	cmd.Flags().BoolVar(&git, "git", false, "initialize a git repository to keep ledger history")

	return cmd
}

func runInit(dir, owner string, git bool) error {
	cfgPath := filepath.Join(dir, config.FileName)
	if fileExists(cfgPath) {
		return fmt.Errorf("%s already exists", cfgPath)
	}

	if owner == "" {
		owner = id.New()
	}
	cfg := config.Default(owner)

	// Create directory structure.
	dirs := []string{
		cfg.DataDir,
		cfg.Sync.LogDir,
		cfg.Import.Dir,
		filepath.Join(cfg.Import.Dir, "processed"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	if err := config.Save(cfgPath, cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	env := "# Feed credentials. Values here override tally.yaml.\n" +
		config.EnvFeedClientID + "=\n" +
		config.EnvFeedSecret + "=\n" +
		config.EnvFeedEnv + "=sandbox\n" +
		config.EnvDatabaseURL + "=\n"
	if err := os.WriteFile(filepath.Join(dir, ".env.example"), []byte(env), 0o644); err != nil {
		return fmt.Errorf("writing .env.example: %w", err)
	}

	// With git history the ledger itself is tracked, never its credentials.
	gitignore := ".env\n" + cfg.Sync.LogDir + "/\n"
	if git {
		gitignore += cfg.DataDir + "/" + ledger.CredentialsFile + "\n"
	} else {
		gitignore += cfg.DataDir + "/\n"
	}
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gitignore), 0o644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}

	if !git || gitops.IsRepo(dir) {
		return nil
	}
	if err := gitops.Init(dir); err != nil {
		return err
	}
	author := gitops.Author{Name: cfg.History.AuthorName, Email: cfg.History.AuthorEmail}
	if _, err := gitops.Commit(dir, "init: tally project", author); err != nil {
		return fmt.Errorf("initial commit: %w", err)
	}
	return nil
}

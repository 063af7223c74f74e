package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/tally/internal/config"
	"github.com/cleared-dev/tally/internal/feed"
	"github.com/cleared-dev/tally/internal/gitops"
	"github.com/cleared-dev/tally/internal/ledger"
	"github.com/cleared-dev/tally/internal/logging"
	"github.com/cleared-dev/tally/internal/store"
	"github.com/cleared-dev/tally/internal/store/postgres"
)

var errNoOwner = errors.New("no owner: pass --owner or set owner in tally.yaml")

// app carries the loaded configuration shared by subcommands.
type app struct {
	configPath string
	root       string
	cfg        *config.Config
}

// load reads .env and tally.yaml next to it, applies environment
// overrides and puts a logger in the command context. A missing config
// file means defaults.
func (a *app) load(cmd *cobra.Command) error {
	abs, err := filepath.Abs(a.configPath)
	if err != nil {
		return fmt.Errorf("resolving config path: %w", err)
	}
	a.root = filepath.Dir(abs)

	if err := config.LoadDotEnv(filepath.Join(a.root, ".env")); err != nil {
		return err
	}

	cfg, err := config.Load(abs)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		cfg = config.Default("")
	case err != nil:
		return err
	}
	cfg.ApplyEnv()
	a.cfg = cfg

	log := logging.NewWithOptions(logging.Options{
		Level:   cfg.Log.Level,
		Console: cfg.Log.Console,
		Out:     cmd.ErrOrStderr(),
	})
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(logging.WithContext(ctx, log))
	return nil
}

// path resolves p against the directory holding tally.yaml.
func (a *app) path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(a.root, p)
}

func (a *app) owner(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if a.cfg.Owner != "" {
		return a.cfg.Owner, nil
	}
	return "", errNoOwner
}

// openStore returns PostgreSQL when a database URL is configured and the
// CSV ledger under data_dir otherwise.
func (a *app) openStore(ctx context.Context) (store.Store, func(), error) {
	if url := a.cfg.Database.URL; url != "" {
		pg, err := postgres.Open(ctx, url)
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil
	}

	fs, err := ledger.Open(a.path(a.cfg.DataDir))
	if err != nil {
		return nil, nil, err
	}
	return fs, func() {}, nil
}

func (a *app) feedClient() (*feed.HTTPClient, error) {
	return feed.New(feed.Config{
		ClientID:    a.cfg.Feed.ClientID,
		Secret:      a.cfg.Feed.Secret,
		Environment: a.cfg.Feed.Environment,
		BaseURL:     a.cfg.Feed.BaseURL,
	})
}

// commitLedger records the CSV ledger in git when the project is a
// repository and auto-commit is on. Failures are logged, never returned:
// the ledger itself is already written.
func (a *app) commitLedger(cmd *cobra.Command, message string) {
	if a.cfg.Database.URL != "" || !a.cfg.History.AutoCommit || !gitops.IsRepo(a.root) {
		return
	}
	log := logger(cmd)
	author := gitops.Author{Name: a.cfg.History.AuthorName, Email: a.cfg.History.AuthorEmail}
	var paths []string
	for _, f := range ledger.LedgerFiles {
		if p := filepath.Join(a.cfg.DataDir, f); fileExists(a.path(p)) {
			paths = append(paths, p)
		}
	}
	if len(paths) == 0 {
		return
	}
	hash, err := gitops.Commit(a.root, message, author, paths...)
	switch {
	case errors.Is(err, gitops.ErrNothingToCommit):
	case err != nil:
		log.Warn().Err(err).Msg("committing ledger")
	default:
		log.Debug().Str("commit", hash).Msg("ledger committed")
	}
}

func logger(cmd *cobra.Command) zerolog.Logger {
	return logging.FromContext(cmd.Context())
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

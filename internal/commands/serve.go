package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/tally/internal/accounts"
	"github.com/cleared-dev/tally/internal/feed"
	"github.com/cleared-dev/tally/internal/ingest"
	"github.com/cleared-dev/tally/internal/server"
	"github.com/cleared-dev/tally/internal/syncer"
	"github.com/cleared-dev/tally/internal/synclog"
)

func newServeCommand(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and run scheduled syncs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, a, addr, logger(cmd))
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}

func runServe(ctx context.Context, a *app, addr string, log zerolog.Logger) error {
	st, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	deps := server.Deps{
		Uploader: ingest.NewService(st, nil, log),
		Accounts: accounts.NewService(st),
		Log:      log,
	}

	client, err := a.feedClient()
	switch {
	case errors.Is(err, feed.ErrMissingCredentials):
		log.Warn().Msg("feed credentials not set; sync, link and webhooks are disabled")
	case err != nil:
		return err
	default:
		orch := syncer.New(st, client, log)
		deps.Syncer = orch
		deps.Linker = accounts.NewLinker(st, client, orch, log)

		if spec := a.cfg.Sync.Schedule; spec != "" {
			c, err := scheduleSync(spec, a.cfg.Sync.TimeZone, func() {
				runScheduledSync(ctx, orch, a.path(a.cfg.Sync.LogDir), log)
			})
			if err != nil {
				return err
			}
			c.Start()
			defer c.Stop()
			log.Info().Str("schedule", spec).Msg("sync scheduler started")
		}
	}

	srv := server.NewServer(addr, deps)
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info().Msg("shutting down")
	return srv.Shutdown(shutdownCtx)
}

// scheduleSync builds a cron runner for job. An unknown time zone falls
// back to UTC.
func scheduleSync(spec, tz string, job func()) (*cron.Cron, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil || tz == "" {
		loc = time.UTC
	}

	c := cron.New(cron.WithLocation(loc))
	if _, err := c.AddFunc(spec, job); err != nil {
		return nil, fmt.Errorf("unable to schedule sync %q: %w", spec, err)
	}
	return c, nil
}

func runScheduledSync(ctx context.Context, orch *syncer.Orchestrator, logDir string, log zerolog.Logger) {
	report, err := orch.SyncAll(ctx)
	if err != nil {
		log.Error().Err(err).Msg("scheduled sync")
		return
	}
	if err := synclog.Append(logDir, synclog.FromReport(time.Now(), report)); err != nil {
		log.Warn().Err(err).Msg("writing sync log")
	}
	log.Info().Int("items", len(report.Items)).Int("added", report.Added).Msg("scheduled sync")
}

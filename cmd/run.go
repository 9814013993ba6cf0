package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/bidwatcher/internal/scheduler"
	"github.com/JakeFAU/bidwatcher/internal/server"
)

// Job names registered with the scheduler.
const (
	jobCheck      = "check-bid"
	jobClearCache = "clear-cache"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the watcher on its schedule until interrupted",
		RunE:  runWatcher,
	}
}

func runWatcher(cmd *cobra.Command, _ []string) error {
	rt, err := runtimeFrom(cmd.Context())
	if err != nil {
		return err
	}
	cfg, logger := rt.cfg, rt.logger

	svc, err := buildService(cmd.Context(), cfg, logger, nil)
	if err != nil {
		return err
	}
	defer svc.Close()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	sched, err := scheduler.New(loc, logger.Named("scheduler"))
	if err != nil {
		return err
	}
	err = sched.Every(jobCheck, cfg.Schedule.Interval, func(ctx context.Context) error {
		_, err := svc.monitor.RunCycle(ctx)
		return err
	})
	if err != nil {
		return err
	}
	if err := sched.DailyAt(jobClearCache, cfg.Schedule.CacheClearAt, svc.monitor.ClearCache); err != nil {
		return err
	}

	logger.Info("bidwatcher started",
		zap.String("club", cfg.Site.ClubLabel),
		zap.String("state", cfg.Site.State),
		zap.Duration("interval", cfg.Schedule.Interval),
		zap.String("cache_clear_at", cfg.Schedule.CacheClearAt),
		zap.Bool("dry_run", cfg.Publisher.DryRun),
	)

	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(func() error {
		return sched.Run(ctx)
	})
	if cfg.Server.Enabled {
		srv := server.New(svc.monitor, logger.Named("http"))
		g.Go(func() error {
			return srv.ListenAndServe(ctx, cfg.Server.Port)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}

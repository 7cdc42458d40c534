package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/amishk599/hiringradar/internal/api"
	"github.com/amishk599/hiringradar/internal/discovery"
	"github.com/amishk599/hiringradar/internal/metrics"
	"github.com/amishk599/hiringradar/internal/scheduler"
)

var (
	serveNoSchedule bool
	serveRunNow     bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the hourly scheduler",
	Long:  "Serves the HTTP API with /metrics and runs ingest, recompute and notify on the configured cron schedule. Blocks until SIGINT/SIGTERM.",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveNoSchedule, "no-schedule", false, "serve the API without the cron scheduler")
	serveCmd.Flags().BoolVar(&serveRunNow, "run-now", false, "run one cycle immediately on start")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	m := metrics.New()
	ingester := a.pipeline(false, m)
	recomputer := a.recomputer(m)

	n, closeNotifier, err := a.notifier(ctx)
	if err != nil {
		return err
	}
	defer closeNotifier()

	srv := api.NewServer(api.Deps{
		Store:      a.store,
		Ingester:   ingester,
		Recomputer: recomputer,
		Detector:   discovery.NewDetector(a.httpClient(), a.logger),
		Registrar:  discovery.NewRegistrar(a.store, a.logger),
		Metrics:    m.Handler(),
		RoleFamily: a.cfg.RoleFamily,
	}, a.logger)

	var sched *scheduler.Scheduler
	if !serveNoSchedule {
		sched, err = scheduler.New(a.cfg.Schedule.Cron, ingester, recomputer, n, a.logger)
		if err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(gctx, a.cfg.Server.Addr)
	})
	if sched != nil {
		g.Go(func() error {
			return sched.Run(gctx, serveRunNow)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	a.logger.Info("goodbye")
	return nil
}

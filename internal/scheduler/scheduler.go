package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/amishk599/hiringradar/internal/model"
)

// DefaultSpec runs at minute 7 of every hour, UTC.
const DefaultSpec = "7 * * * *"

// ErrRunInProgress is returned when a cycle is requested while one is running.
var ErrRunInProgress = errors.New("run already in progress")

// Ingester runs one ingestion pass over all enabled sources.
type Ingester interface {
	RunIngest(ctx context.Context) (model.RunSummary, error)
}

// Recomputer refreshes scores and forecasts after ingestion.
type Recomputer interface {
	Recompute(ctx context.Context) (model.RecomputeSummary, error)
}

// Scheduler triggers ingest -> recompute -> notify on a cron schedule. Cycles
// never overlap: a tick that lands on a running cycle is skipped.
type Scheduler struct {
	spec      string
	ingester  Ingester
	recompute Recomputer
	notifier  model.RunNotifier
	logger    *slog.Logger

	running atomic.Bool
}

// New creates a scheduler. An empty spec uses DefaultSpec; an invalid one is
// rejected here rather than at start-up.
func New(spec string, ingester Ingester, recompute Recomputer, notifier model.RunNotifier, logger *slog.Logger) (*Scheduler, error) {
	if spec == "" {
		spec = DefaultSpec
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("parsing cron spec %q: %w", spec, err)
	}
	return &Scheduler{
		spec:      spec,
		ingester:  ingester,
		recompute: recompute,
		notifier:  notifier,
		logger:    logger,
	}, nil
}

// Spec returns the cron expression in use.
func (s *Scheduler) Spec() string {
	return s.spec
}

// Run starts the cron loop and blocks until ctx is cancelled. When
// runImmediately is set, one cycle starts before the first tick. It returns
// nil on graceful shutdown after any in-flight cycle finishes.
func (s *Scheduler) Run(ctx context.Context, runImmediately bool) error {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelDebug))
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger)),
	)

	if _, err := c.AddFunc(s.spec, func() { s.tick(ctx) }); err != nil {
		return fmt.Errorf("registering cron job: %w", err)
	}

	s.logger.Info("starting scheduler", "cron", s.spec)
	c.Start()

	var immediate sync.WaitGroup
	if runImmediately {
		immediate.Add(1)
		go func() {
			defer immediate.Done()
			s.tick(ctx)
		}()
	}

	<-ctx.Done()
	s.logger.Info("shutting down scheduler")
	<-c.Stop().Done()
	immediate.Wait()
	return nil
}

func (s *Scheduler) tick(ctx context.Context) {
	err := s.RunOnce(ctx)
	switch {
	case errors.Is(err, ErrRunInProgress):
		s.logger.Warn("skipping scheduled run, previous run still active")
	case err != nil:
		s.logger.Error("scheduled run failed", "error", err)
	}
}

// RunOnce executes a single ingest -> recompute -> notify cycle. Recompute
// only runs after a completed ingest. A notification failure is logged and
// does not fail the cycle.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrRunInProgress
	}
	defer s.running.Store(false)

	run, err := s.ingester.RunIngest(ctx)
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}

	var recomputed *model.RecomputeSummary
	if rs, err := s.recompute.Recompute(ctx); err != nil {
		s.logger.Error("recompute failed", "run_id", run.RunID, "error", err)
	} else {
		recomputed = &rs
	}

	if s.notifier != nil {
		if err := s.notifier.NotifyRun(ctx, run, recomputed); err != nil {
			s.logger.Warn("run notification failed", "run_id", run.RunID, "error", err)
		}
	}

	if recomputed == nil {
		return errors.New("recompute did not complete")
	}
	return nil
}

package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/amishk599/hiringradar/internal/model"
	"github.com/amishk599/hiringradar/internal/poller"
	"github.com/amishk599/hiringradar/internal/upsert"
)

// DefaultWorkers bounds concurrent source fetches when none is configured.
const DefaultWorkers = 4

// SourceStore is the slice of persistence the ingest run needs.
type SourceStore interface {
	ListEnabledSources(ctx context.Context) ([]model.Source, error)
	MarkSourceOK(ctx context.Context, sourceID int64, at time.Time) error
}

// Poller fetches and classifies one source.
type Poller interface {
	Poll(ctx context.Context, src model.Source) poller.Outcome
}

// Upserter applies one source batch in its own transaction.
type Upserter interface {
	Apply(ctx context.Context, batch upsert.Batch) (upsert.Result, error)
}

// Observer receives run telemetry. Metrics implement it.
type Observer interface {
	SourceDone(kind model.ATSKind, ok bool, upserted int, fetch time.Duration)
	IngestDone(summary model.RunSummary)
	RecomputeDone(summary model.RecomputeSummary, took time.Duration)
}

type nopObserver struct{}

func (nopObserver) SourceDone(model.ATSKind, bool, int, time.Duration)  {}
func (nopObserver) IngestDone(model.RunSummary)                         {}
func (nopObserver) RecomputeDone(model.RecomputeSummary, time.Duration) {}

// Options tunes a Pipeline. Zero values pick defaults.
type Options struct {
	Workers  int
	Observer Observer
}

// Pipeline orchestrates ingestion: a bounded fetch phase across all enabled
// sources, then one upsert transaction per source. A failing source never
// aborts the run.
type Pipeline struct {
	sources  SourceStore
	poller   Poller
	upserter Upserter
	workers  int
	observer Observer
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a pipeline.
func New(sources SourceStore, p Poller, u Upserter, opts Options, logger *slog.Logger) *Pipeline {
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	observer := opts.Observer
	if observer == nil {
		observer = nopObserver{}
	}
	return &Pipeline{
		sources:  sources,
		poller:   p,
		upserter: u,
		workers:  workers,
		observer: observer,
		logger:   logger,
		now:      time.Now,
	}
}

// RunIngest processes every enabled source once. The returned error is
// non-nil only when the source list itself cannot be loaded; per-source
// failures are reported in the summary.
func (p *Pipeline) RunIngest(ctx context.Context) (model.RunSummary, error) {
	summary := model.RunSummary{
		RunID:         uuid.NewString(),
		StartedAt:     p.now().UTC(),
		UpsertsByKind: make(map[model.ATSKind]int, len(model.Kinds)),
		Errors:        []model.SourceError{},
	}
	for _, kind := range model.Kinds {
		summary.UpsertsByKind[kind] = 0
	}

	sources, err := p.sources.ListEnabledSources(ctx)
	if err != nil {
		return summary, fmt.Errorf("loading enabled sources: %w", err)
	}

	logger := p.logger.With("run_id", summary.RunID)
	logger.Info("ingest started", "sources", len(sources), "workers", p.workers)

	outcomes := p.fetchAll(ctx, sources)

	for _, out := range outcomes {
		summary.SourcesProcessed++
		res, err := p.commit(ctx, summary.RunID, out)
		p.observer.SourceDone(out.Source.Kind, err == nil, res.Upserted(), out.Duration)
		if err != nil {
			logger.Warn("source failed",
				"source_id", out.Source.ID,
				"kind", out.Source.Kind,
				"handle", out.Source.Handle,
				"error", err,
			)
			summary.Errors = append(summary.Errors, model.SourceError{
				SourceID: out.Source.ID,
				Kind:     out.Source.Kind,
				Handle:   out.Source.Handle,
				Reason:   err.Error(),
			})
			continue
		}
		summary.Touched += res.Upserted()
		summary.Inserted += res.Inserted
		summary.Updated += res.Updated
		summary.UpsertsByKind[out.Source.Kind] += res.Upserted()
		summary.Dropped += out.Dropped
		summary.Skipped += res.Skipped
	}

	summary.FinishedAt = p.now().UTC()
	p.observer.IngestDone(summary)
	logger.Info("ingest finished",
		"sources", summary.SourcesProcessed,
		"touched", summary.Touched,
		"inserted", summary.Inserted,
		"updated", summary.Updated,
		"skipped", summary.Skipped,
		"errors", len(summary.Errors),
		"duration", summary.FinishedAt.Sub(summary.StartedAt),
	)
	return summary, nil
}

// fetchAll polls sources with at most p.workers in flight. Results keep the
// input order so the upsert phase is deterministic.
func (p *Pipeline) fetchAll(ctx context.Context, sources []model.Source) []poller.Outcome {
	outcomes := make([]poller.Outcome, len(sources))

	var g errgroup.Group
	g.SetLimit(p.workers)
	for i, src := range sources {
		g.Go(func() error {
			outcomes[i] = p.poller.Poll(ctx, src)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

// commit upserts one successful outcome and stamps the source.
func (p *Pipeline) commit(ctx context.Context, runID string, out poller.Outcome) (upsert.Result, error) {
	if !out.OK() {
		return upsert.Result{}, out.Err
	}

	res, err := p.upserter.Apply(ctx, upsert.Batch{
		CompanyID: out.Source.CompanyID,
		SourceID:  out.Source.ID,
		RunID:     runID,
		Postings:  out.Postings,
	})
	if err != nil {
		return upsert.Result{}, fmt.Errorf("upserting %s source %d: %w", out.Source.Kind, out.Source.ID, err)
	}

	if res.Upserted() >= 1 {
		if err := p.sources.MarkSourceOK(ctx, out.Source.ID, p.now().UTC()); err != nil {
			// Batch already committed.
			p.logger.Warn("failed to stamp source",
				"source_id", out.Source.ID,
				"error", err,
			)
		}
	}
	return res, nil
}

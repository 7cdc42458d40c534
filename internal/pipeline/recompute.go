package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/amishk599/hiringradar/internal/forecast"
	"github.com/amishk599/hiringradar/internal/model"
	"github.com/amishk599/hiringradar/internal/scoring"
)

// SnapshotStore is the persistence the recompute phase reads and appends to.
type SnapshotStore interface {
	ListCompanies(ctx context.Context) ([]model.Company, error)
	ListPostings(ctx context.Context, companyID int64, roleFamily string) ([]model.JobPosting, error)
	ListSignals(ctx context.Context, companyID int64) ([]model.Signal, error)
	InsertScore(ctx context.Context, sc *model.HiringScore) error
	InsertForecast(ctx context.Context, f *model.Forecast) error
}

// Recomputer scores and forecasts every company for one role family. It runs
// after ingestion so it never sees a half-committed batch.
type Recomputer struct {
	store      SnapshotStore
	roleFamily string
	observer   Observer
	logger     *slog.Logger
	now        func() time.Time
}

// NewRecomputer creates a recomputer. A nil observer disables telemetry.
func NewRecomputer(store SnapshotStore, roleFamily string, observer Observer, logger *slog.Logger) *Recomputer {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Recomputer{
		store:      store,
		roleFamily: roleFamily,
		observer:   observer,
		logger:     logger,
		now:        time.Now,
	}
}

// Recompute appends one score and one forecast row per company. Scores are
// relative, so every company is loaded before any row is written. A failed
// write is recorded against its company and the pass continues; the returned
// error is non-nil only when loading fails.
func (r *Recomputer) Recompute(ctx context.Context) (model.RecomputeSummary, error) {
	start := time.Now()
	now := r.now().UTC()
	summary := model.RecomputeSummary{ComputedAt: now, Errors: []model.CompanyError{}}

	companies, err := r.store.ListCompanies(ctx)
	if err != nil {
		return summary, fmt.Errorf("recompute: %w", err)
	}
	summary.Companies = len(companies)

	inputs := make([]scoring.Company, 0, len(companies))
	for _, c := range companies {
		postings, err := r.store.ListPostings(ctx, c.ID, r.roleFamily)
		if err != nil {
			return summary, fmt.Errorf("recompute: %w", err)
		}
		signals, err := r.store.ListSignals(ctx, c.ID)
		if err != nil {
			return summary, fmt.Errorf("recompute: %w", err)
		}
		inputs = append(inputs, scoring.Company{ID: c.ID, Name: c.Name, Postings: postings, Signals: signals})
	}

	for _, res := range scoring.Relative(inputs, now) {
		if err := r.writeScore(ctx, res, now); err != nil {
			r.fail(&summary, res.CompanyID, stageScore, err)
			continue
		}
		summary.Scores++
	}

	for _, in := range inputs {
		if err := r.writeForecast(ctx, in, now); err != nil {
			r.fail(&summary, in.ID, stageForecast, err)
			continue
		}
		summary.Forecasts++
	}

	took := time.Since(start)
	r.observer.RecomputeDone(summary, took)
	r.logger.Info("recompute finished",
		"role_family", r.roleFamily,
		"companies", summary.Companies,
		"scores", summary.Scores,
		"forecasts", summary.Forecasts,
		"errors", len(summary.Errors),
		"duration", took,
	)
	return summary, nil
}

const (
	stageScore    = "score"
	stageForecast = "forecast"
)

func (r *Recomputer) writeScore(ctx context.Context, res scoring.Result, now time.Time) error {
	details, err := res.DetailsJSON()
	if err != nil {
		return fmt.Errorf("encoding score details: %w", err)
	}
	return r.store.InsertScore(ctx, &model.HiringScore{
		CompanyID:  res.CompanyID,
		RoleFamily: r.roleFamily,
		ComputedAt: now,
		Score:      res.Score,
		Details:    details,
	})
}

func (r *Recomputer) writeForecast(ctx context.Context, in scoring.Company, now time.Time) error {
	fc := forecast.Compute(in.Postings, r.roleFamily, now)
	features, err := fc.FeaturesJSON()
	if err != nil {
		return fmt.Errorf("encoding forecast features: %w", err)
	}
	return r.store.InsertForecast(ctx, &model.Forecast{
		CompanyID:   in.ID,
		RoleFamily:  r.roleFamily,
		ComputedAt:  now,
		ProbNext8W:  fc.ProbNext8W,
		LikelyMonth: fc.LikelyMonth,
		Method:      fc.Method,
		Features:    features,
	})
}

func (r *Recomputer) fail(summary *model.RecomputeSummary, companyID int64, stage string, err error) {
	r.logger.Warn("snapshot write failed",
		"company_id", companyID,
		"stage", stage,
		"error", err,
	)
	summary.Errors = append(summary.Errors, model.CompanyError{
		CompanyID: companyID,
		Stage:     stage,
		Reason:    err.Error(),
	})
}

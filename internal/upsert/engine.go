package upsert

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/amishk599/hiringradar/internal/model"
)

// DefaultSnapshotLimit caps how many postings go into a raw snapshot.
const DefaultSnapshotLimit = 50

// untitled replaces an empty title on insert.
const untitled = "Untitled"

// Batch is one source's classified postings for one company.
type Batch struct {
	CompanyID int64
	SourceID  int64
	RunID     string
	Postings  []model.NormalizedPosting
}

// Result counts what one batch did.
type Result struct {
	Inserted int
	Updated  int
	Skipped  int // postings without a source job id
}

// Upserted is the number of rows written.
func (r Result) Upserted() int {
	return r.Inserted + r.Updated
}

// Engine merges fetched postings into persisted state. Applying the same
// batch twice leaves the store unchanged apart from updated_at.
type Engine struct {
	store         model.PostingStore
	snapshotLimit int
	logger        *slog.Logger
	now           func() time.Time

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// NewEngine creates an upsert engine. snapshotLimit <= 0 uses DefaultSnapshotLimit.
func NewEngine(store model.PostingStore, snapshotLimit int, logger *slog.Logger) *Engine {
	if snapshotLimit <= 0 {
		snapshotLimit = DefaultSnapshotLimit
	}
	return &Engine{
		store:         store,
		snapshotLimit: snapshotLimit,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
		locks:         make(map[int64]*sync.Mutex),
	}
}

// companyLock serialises batches for the same company so concurrent callers
// cannot race on the (company_id, source_job_id) lookup.
func (e *Engine) companyLock(companyID int64) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()

	l, ok := e.locks[companyID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[companyID] = l
	}
	return l
}

// Apply upserts the batch in one transaction together with its raw snapshot.
// Any error rolls the whole batch back.
func (e *Engine) Apply(ctx context.Context, batch Batch) (Result, error) {
	lock := e.companyLock(batch.CompanyID)
	lock.Lock()
	defer lock.Unlock()

	now := e.now()
	var res Result

	err := e.store.WithTx(ctx, func(tx model.PostingTx) error {
		res = Result{}
		for _, p := range batch.Postings {
			if strings.TrimSpace(p.SourceJobID) == "" {
				res.Skipped++
				continue
			}

			inserted, err := e.upsertOne(ctx, tx, batch.CompanyID, p, now)
			if err != nil {
				return fmt.Errorf("upsert %s: %w", p.SourceJobID, err)
			}
			if inserted {
				res.Inserted++
			} else {
				res.Updated++
			}
		}

		if len(batch.Postings) == 0 {
			return nil
		}
		snap, err := e.snapshot(batch, now)
		if err != nil {
			return err
		}
		if err := tx.InsertRawSnapshot(ctx, snap); err != nil {
			return fmt.Errorf("insert raw snapshot: %w", err)
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	e.logger.Debug("batch applied",
		"company_id", batch.CompanyID,
		"source_id", batch.SourceID,
		"inserted", res.Inserted,
		"updated", res.Updated,
		"skipped", res.Skipped,
	)
	return res, nil
}

func (e *Engine) upsertOne(ctx context.Context, tx model.PostingTx, companyID int64, p model.NormalizedPosting, now time.Time) (bool, error) {
	existing, err := tx.FindPosting(ctx, companyID, p.SourceJobID)
	if err != nil {
		return false, err
	}

	created, updated := resolveTimes(p.CreatedAt, p.UpdatedAt, now)

	if existing == nil {
		title := p.Title
		if strings.TrimSpace(title) == "" {
			title = untitled
		}
		return true, tx.InsertPosting(ctx, &model.JobPosting{
			CompanyID:   companyID,
			SourceJobID: p.SourceJobID,
			Title:       title,
			Department:  p.Department,
			Location:    p.Location,
			ApplyURL:    p.ApplyURL,
			RoleFamily:  p.RoleFamily,
			Status:      model.StatusOpen,
			CreatedAt:   created,
			UpdatedAt:   updated,
		})
	}

	// created_at is never touched. A blank title or an unclassified result
	// must not erase what an earlier fetch established.
	if strings.TrimSpace(p.Title) != "" {
		existing.Title = p.Title
	}
	if p.RoleFamily != "" {
		existing.RoleFamily = p.RoleFamily
	}
	existing.Department = p.Department
	existing.Location = p.Location
	existing.ApplyURL = p.ApplyURL
	existing.Status = model.StatusOpen
	existing.UpdatedAt = updated

	return false, tx.UpdatePosting(ctx, existing)
}

type snapshotPayload struct {
	FetchedAt time.Time                 `json:"fetched_at"`
	Total     int                       `json:"total"`
	Sample    []model.NormalizedPosting `json:"sample"`
}

func (e *Engine) snapshot(batch Batch, now time.Time) (model.RawSnapshot, error) {
	sample := batch.Postings
	if len(sample) > e.snapshotLimit {
		sample = sample[:e.snapshotLimit]
	}
	payload, err := json.Marshal(snapshotPayload{
		FetchedAt: now,
		Total:     len(batch.Postings),
		Sample:    sample,
	})
	if err != nil {
		return model.RawSnapshot{}, fmt.Errorf("marshal raw snapshot: %w", err)
	}
	return model.RawSnapshot{
		CompanyID: batch.CompanyID,
		SourceID:  batch.SourceID,
		RunID:     batch.RunID,
		FetchedAt: now,
		Payload:   payload,
	}, nil
}

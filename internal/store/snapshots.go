package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/amishk599/hiringradar/internal/model"
)

type signalRow struct {
	ID         int64          `db:"id"`
	CompanyID  int64          `db:"company_id"`
	Kind       string         `db:"kind"`
	HappenedAt time.Time      `db:"happened_at"`
	Payload    sql.NullString `db:"payload"`
}

func (r signalRow) toModel() model.Signal {
	sig := model.Signal{
		ID:         r.ID,
		CompanyID:  r.CompanyID,
		Kind:       r.Kind,
		HappenedAt: r.HappenedAt.UTC(),
	}
	if r.Payload.Valid {
		sig.Payload = []byte(r.Payload.String)
	}
	return sig
}

type scoreRow struct {
	ID          int64     `db:"id"`
	CompanyID   int64     `db:"company_id"`
	CompanyName string    `db:"company_name"`
	RoleFamily  string    `db:"role_family"`
	ComputedAt  time.Time `db:"computed_at"`
	Score       int       `db:"score"`
	Details     string    `db:"details"`
}

func (r scoreRow) toModel() model.HiringScore {
	return model.HiringScore{
		ID:          r.ID,
		CompanyID:   r.CompanyID,
		CompanyName: r.CompanyName,
		RoleFamily:  r.RoleFamily,
		ComputedAt:  r.ComputedAt.UTC(),
		Score:       r.Score,
		Details:     []byte(r.Details),
	}
}

type forecastRow struct {
	ID          int64     `db:"id"`
	CompanyID   int64     `db:"company_id"`
	CompanyName string    `db:"company_name"`
	RoleFamily  string    `db:"role_family"`
	ComputedAt  time.Time `db:"computed_at"`
	ProbNext8W  float64   `db:"prob_next_8w"`
	LikelyMonth string    `db:"likely_month"`
	Method      string    `db:"method"`
	Features    string    `db:"features"`
}

func (r forecastRow) toModel() model.Forecast {
	return model.Forecast{
		ID:          r.ID,
		CompanyID:   r.CompanyID,
		CompanyName: r.CompanyName,
		RoleFamily:  r.RoleFamily,
		ComputedAt:  r.ComputedAt.UTC(),
		ProbNext8W:  r.ProbNext8W,
		LikelyMonth: r.LikelyMonth,
		Method:      r.Method,
		Features:    []byte(r.Features),
	}
}

// AddSignal appends an externally observed company event.
func (s *Store) AddSignal(ctx context.Context, sig *model.Signal) error {
	id, err := insertReturningID(ctx, s.db, s.rebind(
		`INSERT INTO signals (company_id, kind, happened_at, payload) VALUES (?, ?, ?, ?) RETURNING id`),
		sig.CompanyID, sig.Kind, sig.HappenedAt.UTC(), nullJSON(sig.Payload),
	)
	if err != nil {
		return fmt.Errorf("adding %s signal for company %d: %w", sig.Kind, sig.CompanyID, err)
	}
	sig.ID = id
	return nil
}

// ListSignals returns a company's signals, oldest first.
func (s *Store) ListSignals(ctx context.Context, companyID int64) ([]model.Signal, error) {
	var rows []signalRow
	if err := s.db.SelectContext(ctx, &rows, s.rebind(
		`SELECT id, company_id, kind, happened_at, payload FROM signals WHERE company_id = ? ORDER BY happened_at ASC, id ASC`),
		companyID); err != nil {
		return nil, fmt.Errorf("listing signals for company %d: %w", companyID, err)
	}
	out := make([]model.Signal, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

// InsertScore appends a score snapshot.
func (s *Store) InsertScore(ctx context.Context, sc *model.HiringScore) error {
	id, err := insertReturningID(ctx, s.db, s.rebind(
		`INSERT INTO hiring_scores (company_id, role_family, computed_at, score, details) VALUES (?, ?, ?, ?, ?) RETURNING id`),
		sc.CompanyID, sc.RoleFamily, sc.ComputedAt.UTC(), sc.Score, string(sc.Details),
	)
	if err != nil {
		return fmt.Errorf("inserting score for company %d: %w", sc.CompanyID, err)
	}
	sc.ID = id
	return nil
}

// InsertForecast appends a forecast snapshot.
func (s *Store) InsertForecast(ctx context.Context, f *model.Forecast) error {
	id, err := insertReturningID(ctx, s.db, s.rebind(
		`INSERT INTO forecasts (company_id, role_family, computed_at, prob_next_8w, likely_month, method, features)
		 VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		f.CompanyID, f.RoleFamily, f.ComputedAt.UTC(), f.ProbNext8W, f.LikelyMonth, f.Method, string(f.Features),
	)
	if err != nil {
		return fmt.Errorf("inserting forecast for company %d: %w", f.CompanyID, err)
	}
	f.ID = id
	return nil
}

// LatestScores returns the newest score per company for roleFamily, ranked
// by score descending then company name ascending. Snapshots are append-only
// so the highest id is the newest.
func (s *Store) LatestScores(ctx context.Context, roleFamily string) ([]model.HiringScore, error) {
	var rows []scoreRow
	err := s.db.SelectContext(ctx, &rows, s.rebind(
		`SELECT h.id, h.company_id, c.name AS company_name, h.role_family, h.computed_at, h.score, h.details
		 FROM hiring_scores h
		 JOIN companies c ON c.id = h.company_id
		 WHERE h.id IN (SELECT MAX(id) FROM hiring_scores WHERE role_family = ? GROUP BY company_id)
		 ORDER BY h.score DESC, c.name ASC`), roleFamily)
	if err != nil {
		return nil, fmt.Errorf("listing latest scores for %s: %w", roleFamily, err)
	}
	out := make([]model.HiringScore, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

// LatestForecasts returns the newest forecast per company for roleFamily,
// ordered by probability descending then company name.
func (s *Store) LatestForecasts(ctx context.Context, roleFamily string) ([]model.Forecast, error) {
	var rows []forecastRow
	err := s.db.SelectContext(ctx, &rows, s.rebind(
		`SELECT f.id, f.company_id, c.name AS company_name, f.role_family, f.computed_at, f.prob_next_8w,
			f.likely_month, f.method, f.features
		 FROM forecasts f
		 JOIN companies c ON c.id = f.company_id
		 WHERE f.id IN (SELECT MAX(id) FROM forecasts WHERE role_family = ? GROUP BY company_id)
		 ORDER BY f.prob_next_8w DESC, c.name ASC`), roleFamily)
	if err != nil {
		return nil, fmt.Errorf("listing latest forecasts for %s: %w", roleFamily, err)
	}
	out := make([]model.Forecast, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

// LatestForecast returns the newest forecast for one company.
func (s *Store) LatestForecast(ctx context.Context, companyID int64, roleFamily string) (*model.Forecast, error) {
	var row forecastRow
	err := s.db.GetContext(ctx, &row, s.rebind(
		`SELECT f.id, f.company_id, c.name AS company_name, f.role_family, f.computed_at, f.prob_next_8w,
			f.likely_month, f.method, f.features
		 FROM forecasts f
		 JOIN companies c ON c.id = f.company_id
		 WHERE f.company_id = ? AND f.role_family = ?
		 ORDER BY f.id DESC LIMIT 1`), companyID, roleFamily)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("forecast for company %d: %w", companyID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading forecast for company %d: %w", companyID, err)
	}
	f := row.toModel()
	return &f, nil
}

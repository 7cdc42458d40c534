package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/amishk599/hiringradar/internal/model"
)

type postingRow struct {
	ID          int64          `db:"id"`
	CompanyID   int64          `db:"company_id"`
	SourceJobID string         `db:"source_job_id"`
	Title       string         `db:"title"`
	Department  sql.NullString `db:"department"`
	Location    sql.NullString `db:"location"`
	ApplyURL    sql.NullString `db:"apply_url"`
	RoleFamily  sql.NullString `db:"role_family"`
	Status      string         `db:"status"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

func (r postingRow) toModel() model.JobPosting {
	return model.JobPosting{
		ID:          r.ID,
		CompanyID:   r.CompanyID,
		SourceJobID: r.SourceJobID,
		Title:       r.Title,
		Department:  r.Department.String,
		Location:    r.Location.String,
		ApplyURL:    r.ApplyURL.String,
		RoleFamily:  r.RoleFamily.String,
		Status:      r.Status,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

const postingColumns = `id, company_id, source_job_id, title, department, location, apply_url,
	role_family, status, created_at, updated_at`

// WithTx runs fn in a transaction that commits only if fn returns nil.
func (s *Store) WithTx(ctx context.Context, fn func(tx model.PostingTx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(&postingTx{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// postingTx implements model.PostingTx over one sqlx transaction.
type postingTx struct {
	tx *sqlx.Tx
}

func (t *postingTx) FindPosting(ctx context.Context, companyID int64, sourceJobID string) (*model.JobPosting, error) {
	var row postingRow
	err := t.tx.GetContext(ctx, &row, t.tx.Rebind(
		`SELECT `+postingColumns+` FROM job_postings WHERE company_id = ? AND source_job_id = ?`),
		companyID, sourceJobID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding posting %s for company %d: %w", sourceJobID, companyID, err)
	}
	p := row.toModel()
	return &p, nil
}

func (t *postingTx) InsertPosting(ctx context.Context, p *model.JobPosting) error {
	id, err := insertReturningID(ctx, t.tx, t.tx.Rebind(
		`INSERT INTO job_postings (company_id, source_job_id, title, department, location, apply_url,
			role_family, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		p.CompanyID, p.SourceJobID, p.Title, nullString(p.Department), nullString(p.Location),
		nullString(p.ApplyURL), nullString(p.RoleFamily), p.Status, p.CreatedAt.UTC(), p.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("inserting posting %s: %w", p.SourceJobID, err)
	}
	p.ID = id
	return nil
}

func (t *postingTx) UpdatePosting(ctx context.Context, p *model.JobPosting) error {
	_, err := t.tx.ExecContext(ctx, t.tx.Rebind(
		`UPDATE job_postings
		 SET title = ?, department = ?, location = ?, apply_url = ?, role_family = ?, status = ?, updated_at = ?
		 WHERE id = ?`),
		p.Title, nullString(p.Department), nullString(p.Location), nullString(p.ApplyURL),
		nullString(p.RoleFamily), p.Status, p.UpdatedAt.UTC(), p.ID,
	)
	if err != nil {
		return fmt.Errorf("updating posting %s: %w", p.SourceJobID, err)
	}
	return nil
}

func (t *postingTx) InsertRawSnapshot(ctx context.Context, snap model.RawSnapshot) error {
	var sourceID sql.NullInt64
	if snap.SourceID > 0 {
		sourceID = sql.NullInt64{Int64: snap.SourceID, Valid: true}
	}
	_, err := t.tx.ExecContext(ctx, t.tx.Rebind(
		`INSERT INTO job_raw (company_id, source_id, run_id, fetched_at, payload) VALUES (?, ?, ?, ?, ?)`),
		snap.CompanyID, sourceID, nullString(snap.RunID), snap.FetchedAt.UTC(), string(snap.Payload),
	)
	if err != nil {
		return fmt.Errorf("inserting raw snapshot for company %d: %w", snap.CompanyID, err)
	}
	return nil
}

// ListPostings returns a company's postings, optionally limited to one role family.
func (s *Store) ListPostings(ctx context.Context, companyID int64, roleFamily string) ([]model.JobPosting, error) {
	query := `SELECT ` + postingColumns + ` FROM job_postings WHERE company_id = ?`
	args := []any{companyID}
	if roleFamily != "" {
		query += ` AND role_family = ?`
		args = append(args, roleFamily)
	}
	query += ` ORDER BY id ASC`

	var rows []postingRow
	if err := s.db.SelectContext(ctx, &rows, s.rebind(query), args...); err != nil {
		return nil, fmt.Errorf("listing postings for company %d: %w", companyID, err)
	}
	out := make([]model.JobPosting, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

// RecentOpenPostings returns a company's OPEN postings of roleFamily touched
// since the cutoff, newest first. The filter runs in Go so both dialects
// compare timestamps the same way.
func (s *Store) RecentOpenPostings(ctx context.Context, companyID int64, roleFamily string, since time.Time) ([]model.JobPosting, error) {
	all, err := s.ListPostings(ctx, companyID, roleFamily)
	if err != nil {
		return nil, err
	}
	out := make([]model.JobPosting, 0, len(all))
	for _, p := range all {
		if p.Status == model.StatusOpen && !p.UpdatedAt.Before(since) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

// CountPostings returns how many postings a company has.
func (s *Store) CountPostings(ctx context.Context, companyID int64) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, s.rebind(`SELECT COUNT(*) FROM job_postings WHERE company_id = ?`), companyID); err != nil {
		return 0, fmt.Errorf("counting postings for company %d: %w", companyID, err)
	}
	return n, nil
}

// CountRawSnapshots returns how many raw snapshots a company has.
func (s *Store) CountRawSnapshots(ctx context.Context, companyID int64) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, s.rebind(`SELECT COUNT(*) FROM job_raw WHERE company_id = ?`), companyID); err != nil {
		return 0, fmt.Errorf("counting raw snapshots for company %d: %w", companyID, err)
	}
	return n, nil
}

type rawRow struct {
	CompanyID int64          `db:"company_id"`
	SourceID  sql.NullInt64  `db:"source_id"`
	RunID     sql.NullString `db:"run_id"`
	FetchedAt time.Time      `db:"fetched_at"`
	Payload   string         `db:"payload"`
}

// LatestRawSnapshot returns the most recent raw snapshot for a company.
func (s *Store) LatestRawSnapshot(ctx context.Context, companyID int64) (*model.RawSnapshot, error) {
	var row rawRow
	err := s.db.GetContext(ctx, &row, s.rebind(
		`SELECT company_id, source_id, run_id, fetched_at, payload FROM job_raw
		 WHERE company_id = ? ORDER BY id DESC LIMIT 1`), companyID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("raw snapshot for company %d: %w", companyID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading raw snapshot for company %d: %w", companyID, err)
	}
	return &model.RawSnapshot{
		CompanyID: row.CompanyID,
		SourceID:  row.SourceID.Int64,
		RunID:     row.RunID.String,
		FetchedAt: row.FetchedAt.UTC(),
		Payload:   []byte(row.Payload),
	}, nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/amishk599/hiringradar/internal/model"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

type companyRow struct {
	ID         int64          `db:"id"`
	Name       string         `db:"name"`
	ATSKind    sql.NullString `db:"ats_kind"`
	Handle     sql.NullString `db:"handle"`
	CareersURL sql.NullString `db:"careers_url"`
}

func (r companyRow) toModel() model.Company {
	return model.Company{
		ID:         r.ID,
		Name:       r.Name,
		ATSKind:    model.ATSKind(r.ATSKind.String),
		Handle:     r.Handle.String,
		CareersURL: r.CareersURL.String,
	}
}

type sourceRow struct {
	ID          int64          `db:"id"`
	CompanyID   int64          `db:"company_id"`
	Kind        string         `db:"kind"`
	Handle      string         `db:"handle"`
	DisplayName sql.NullString `db:"display_name"`
	Enabled     bool           `db:"enabled"`
	LastOKAt    sql.NullTime   `db:"last_ok_at"`
}

func (r sourceRow) toModel() model.Source {
	s := model.Source{
		ID:          r.ID,
		CompanyID:   r.CompanyID,
		Kind:        model.ATSKind(r.Kind),
		Handle:      r.Handle,
		DisplayName: r.DisplayName.String,
		Enabled:     r.Enabled,
	}
	if r.LastOKAt.Valid {
		t := r.LastOKAt.Time.UTC()
		s.LastOKAt = &t
	}
	return s
}

// CreateCompany inserts c and sets its ID.
func (s *Store) CreateCompany(ctx context.Context, c *model.Company) error {
	id, err := insertReturningID(ctx, s.db, s.rebind(
		`INSERT INTO companies (name, ats_kind, handle, careers_url) VALUES (?, ?, ?, ?) RETURNING id`),
		c.Name, nullString(string(c.ATSKind)), nullString(c.Handle), nullString(c.CareersURL),
	)
	if err != nil {
		return fmt.Errorf("creating company %s: %w", c.Name, err)
	}
	c.ID = id
	return nil
}

// EnsureCompany returns the company named name, creating it if needed.
func (s *Store) EnsureCompany(ctx context.Context, name string) (*model.Company, error) {
	c, err := s.GetCompanyByName(ctx, name)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	created := &model.Company{Name: name}
	if err := s.CreateCompany(ctx, created); err != nil {
		return nil, err
	}
	return created, nil
}

// GetCompany loads a company by id.
func (s *Store) GetCompany(ctx context.Context, id int64) (*model.Company, error) {
	var row companyRow
	err := s.db.GetContext(ctx, &row, s.rebind(
		`SELECT id, name, ats_kind, handle, careers_url FROM companies WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("company %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading company %d: %w", id, err)
	}
	c := row.toModel()
	return &c, nil
}

// GetCompanyByName loads a company by its unique name.
func (s *Store) GetCompanyByName(ctx context.Context, name string) (*model.Company, error) {
	var row companyRow
	err := s.db.GetContext(ctx, &row, s.rebind(
		`SELECT id, name, ats_kind, handle, careers_url FROM companies WHERE name = ?`), name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("company %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading company %q: %w", name, err)
	}
	c := row.toModel()
	return &c, nil
}

// ListCompanies returns every company ordered by name.
func (s *Store) ListCompanies(ctx context.Context) ([]model.Company, error) {
	var rows []companyRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT id, name, ats_kind, handle, careers_url FROM companies ORDER BY name ASC`); err != nil {
		return nil, fmt.Errorf("listing companies: %w", err)
	}
	out := make([]model.Company, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

// AddSource inserts src and sets its ID. A second source of the same kind
// for one company is rejected by the unique constraint.
func (s *Store) AddSource(ctx context.Context, src *model.Source) error {
	if !src.Kind.Valid() {
		return fmt.Errorf("adding source: unsupported ATS kind %q", src.Kind)
	}
	id, err := insertReturningID(ctx, s.db, s.rebind(
		`INSERT INTO sources (company_id, kind, handle, display_name, enabled) VALUES (?, ?, ?, ?, ?) RETURNING id`),
		src.CompanyID, string(src.Kind), src.Handle, nullString(src.DisplayName), src.Enabled,
	)
	if err != nil {
		return fmt.Errorf("adding %s source for company %d: %w", src.Kind, src.CompanyID, err)
	}
	src.ID = id
	return nil
}

// FindSource returns the source of kind for a company.
func (s *Store) FindSource(ctx context.Context, companyID int64, kind model.ATSKind) (*model.Source, error) {
	var row sourceRow
	err := s.db.GetContext(ctx, &row, s.rebind(
		`SELECT id, company_id, kind, handle, display_name, enabled, last_ok_at
		 FROM sources WHERE company_id = ? AND kind = ?`), companyID, string(kind))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s source for company %d: %w", kind, companyID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading %s source for company %d: %w", kind, companyID, err)
	}
	src := row.toModel()
	return &src, nil
}

// ListSources returns all sources, enabled or not, ordered by id.
func (s *Store) ListSources(ctx context.Context) ([]model.Source, error) {
	return s.listSources(ctx, `SELECT id, company_id, kind, handle, display_name, enabled, last_ok_at
		FROM sources ORDER BY id ASC`)
}

// ListEnabledSources returns the sources the orchestrator should process.
func (s *Store) ListEnabledSources(ctx context.Context) ([]model.Source, error) {
	return s.listSources(ctx, s.rebind(`SELECT id, company_id, kind, handle, display_name, enabled, last_ok_at
		FROM sources WHERE enabled = ? ORDER BY id ASC`), true)
}

func (s *Store) listSources(ctx context.Context, query string, args ...any) ([]model.Source, error) {
	var rows []sourceRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("listing sources: %w", err)
	}
	out := make([]model.Source, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

// SetSourceEnabled toggles whether the orchestrator processes a source.
func (s *Store) SetSourceEnabled(ctx context.Context, sourceID int64, enabled bool) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`UPDATE sources SET enabled = ? WHERE id = ?`), enabled, sourceID)
	if err != nil {
		return fmt.Errorf("updating source %d: %w", sourceID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("source %d: %w", sourceID, ErrNotFound)
	}
	return nil
}

// MarkSourceOK stamps last_ok_at after a source committed at least one upsert.
func (s *Store) MarkSourceOK(ctx context.Context, sourceID int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`UPDATE sources SET last_ok_at = ? WHERE id = ?`), at.UTC(), sourceID)
	if err != nil {
		return fmt.Errorf("marking source %d ok: %w", sourceID, err)
	}
	return nil
}

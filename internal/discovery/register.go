package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/amishk599/hiringradar/internal/model"
	"github.com/amishk599/hiringradar/internal/store"
)

// SourceRegistry is the persistence discovery writes to.
type SourceRegistry interface {
	ListCompanies(ctx context.Context) ([]model.Company, error)
	FindSource(ctx context.Context, companyID int64, kind model.ATSKind) (*model.Source, error)
	AddSource(ctx context.Context, src *model.Source) error
	SetSourceEnabled(ctx context.Context, sourceID int64, enabled bool) error
}

// RegisterResult counts what Register and SyncCompanies did.
type RegisterResult struct {
	Created  int `json:"created"`
	Enabled  int `json:"enabled"`
	Existing int `json:"existing"`
	Skipped  int `json:"skipped"`
}

// Registrar turns hits into enabled sources, one per (company, kind).
type Registrar struct {
	store  SourceRegistry
	logger *slog.Logger
}

// NewRegistrar creates a registrar.
func NewRegistrar(s SourceRegistry, logger *slog.Logger) *Registrar {
	return &Registrar{store: s, logger: logger}
}

// Register creates a missing source for each hit, or re-enables a disabled
// one. An existing source keeps its handle.
func (r *Registrar) Register(ctx context.Context, company model.Company, hits []Hit) (RegisterResult, error) {
	var res RegisterResult
	for _, h := range hits {
		existing, err := r.store.FindSource(ctx, company.ID, h.Kind)
		switch {
		case err == nil:
			if !existing.Enabled {
				if err := r.store.SetSourceEnabled(ctx, existing.ID, true); err != nil {
					return res, err
				}
				res.Enabled++
				continue
			}
			res.Existing++
		case errors.Is(err, store.ErrNotFound):
			src := &model.Source{
				CompanyID:   company.ID,
				Kind:        h.Kind,
				Handle:      h.Handle,
				DisplayName: company.Name,
				Enabled:     true,
			}
			if err := r.store.AddSource(ctx, src); err != nil {
				return res, err
			}
			r.logger.Info("source created",
				"company_id", company.ID,
				"kind", h.Kind,
				"handle", h.Handle,
			)
			res.Created++
		default:
			return res, fmt.Errorf("registering %s source for company %d: %w", h.Kind, company.ID, err)
		}
	}
	return res, nil
}

// SyncCompanies derives sources from each company's declared ATS kind and
// handle. Companies without both, or with an unsupported kind, are skipped.
func (r *Registrar) SyncCompanies(ctx context.Context) (RegisterResult, error) {
	companies, err := r.store.ListCompanies(ctx)
	if err != nil {
		return RegisterResult{}, err
	}

	var total RegisterResult
	for _, c := range companies {
		if c.Handle == "" || !c.ATSKind.Valid() {
			total.Skipped++
			continue
		}
		res, err := r.Register(ctx, c, []Hit{{Kind: c.ATSKind, Handle: c.Handle}})
		if err != nil {
			return total, err
		}
		total.Created += res.Created
		total.Enabled += res.Enabled
		total.Existing += res.Existing
	}
	return total, nil
}

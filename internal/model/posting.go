package model

import (
	"context"
	"time"
)

// ATSKind identifies an applicant tracking system vendor.
type ATSKind string

const (
	KindGreenhouse      ATSKind = "greenhouse"
	KindLever           ATSKind = "lever"
	KindAshby           ATSKind = "ashby"
	KindSmartRecruiters ATSKind = "smartrecruiters"
)

// Kinds lists every supported ATS in dispatch order.
var Kinds = []ATSKind{KindGreenhouse, KindLever, KindAshby, KindSmartRecruiters}

// Valid reports whether k is one of the supported vendors.
func (k ATSKind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Posting statuses. The pipeline only ever writes StatusOpen.
const (
	StatusOpen   = "OPEN"
	StatusClosed = "CLOSED"
)

// Company owns zero or more sources and postings.
type Company struct {
	ID         int64
	Name       string
	ATSKind    ATSKind
	Handle     string
	CareersURL string
}

// Source is one (company, ATS kind) feed the orchestrator pulls from.
type Source struct {
	ID          int64
	CompanyID   int64
	Kind        ATSKind
	Handle      string // board token, org slug or company id depending on Kind
	DisplayName string
	Enabled     bool
	LastOKAt    *time.Time // stamped only after a successful upsert
}

// NormalizedPosting is a vendor listing mapped onto the common schema.
// Timestamps stay raw (ISO-8601 or epoch digits) until the upsert engine parses them.
type NormalizedPosting struct {
	SourceJobID string `json:"source_job_id"`
	Title       string `json:"title"`
	Department  string `json:"department,omitempty"`
	Location    string `json:"location,omitempty"`
	ApplyURL    string `json:"apply_url,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty"`
	Status      string `json:"status"`
	RoleFamily  string `json:"role_family,omitempty"` // empty = unclassified
}

// JobPosting is the persisted form, unique on (CompanyID, SourceJobID).
type JobPosting struct {
	ID          int64
	CompanyID   int64
	SourceJobID string
	Title       string
	Department  string
	Location    string
	ApplyURL    string
	RoleFamily  string // empty = unclassified
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Connector fetches one vendor's listings for a handle. Implementations fail
// soft: every error they return wraps ErrFetchUnavailable.
type Connector interface {
	Fetch(ctx context.Context, handle string) ([]NormalizedPosting, error)
}

// PostingTx is the write surface of one source batch transaction.
type PostingTx interface {
	FindPosting(ctx context.Context, companyID int64, sourceJobID string) (*JobPosting, error)
	InsertPosting(ctx context.Context, p *JobPosting) error
	UpdatePosting(ctx context.Context, p *JobPosting) error
	InsertRawSnapshot(ctx context.Context, snap RawSnapshot) error
}

// PostingStore runs fn inside a transaction, committing only if fn returns nil.
type PostingStore interface {
	WithTx(ctx context.Context, fn func(tx PostingTx) error) error
}

// RawSnapshot is a bounded debugging sample of one ingested batch.
type RawSnapshot struct {
	CompanyID int64
	SourceID  int64
	RunID     string
	FetchedAt time.Time
	Payload   []byte // JSON
}

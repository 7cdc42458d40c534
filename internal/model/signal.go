package model

import "time"

// Signal kinds consumed by the scoring engine.
const (
	SignalHNWhosHiring = "hn_whos_hiring"
	SignalLayoff       = "layoff"
	SignalFunding      = "funding"
	SignalEarnings     = "earnings"
)

// ValidSignalKind reports whether kind is one the scoring engine reads.
func ValidSignalKind(kind string) bool {
	switch kind {
	case SignalHNWhosHiring, SignalLayoff, SignalFunding, SignalEarnings:
		return true
	}
	return false
}

// Signal is an externally populated, append-only company event.
type Signal struct {
	ID         int64
	CompanyID  int64
	Kind       string
	HappenedAt time.Time
	Payload    []byte // JSON, may be nil
}

// HiringScore is one append-only score snapshot. Details must carry enough raw
// counts to reconstruct Score.
type HiringScore struct {
	ID          int64
	CompanyID   int64
	CompanyName string // populated by read queries only
	RoleFamily  string
	ComputedAt  time.Time
	Score       int
	Details     []byte // JSON
}

// Forecast is one append-only forecast snapshot.
type Forecast struct {
	ID          int64
	CompanyID   int64
	CompanyName string // populated by read queries only
	RoleFamily  string
	ComputedAt  time.Time
	ProbNext8W  float64
	LikelyMonth string
	Method      string
	Features    []byte // JSON
}

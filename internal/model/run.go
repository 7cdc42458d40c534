package model

import (
	"context"
	"time"
)

// SourceError records why one source produced no upserts in a run.
type SourceError struct {
	SourceID int64   `json:"source_id"`
	Kind     ATSKind `json:"kind"`
	Handle   string  `json:"handle"`
	Reason   string  `json:"reason"`
}

// RunSummary is the caller-visible result of one ingestion run.
type RunSummary struct {
	RunID            string          `json:"run_id"`
	StartedAt        time.Time       `json:"started_at"`
	FinishedAt       time.Time       `json:"finished_at"`
	SourcesProcessed int             `json:"sources_processed"`
	Touched          int             `json:"touched"`
	Inserted         int             `json:"inserted"`
	Updated          int             `json:"updated"`
	Dropped          int             `json:"dropped"`
	Skipped          int             `json:"skipped"` // items without a source job id
	UpsertsByKind    map[ATSKind]int `json:"upserts_by_kind"`
	Errors           []SourceError   `json:"errors"`
}

// CompanyError records a snapshot write that failed for one company.
type CompanyError struct {
	CompanyID int64  `json:"company_id"`
	Stage     string `json:"stage"` // "score" or "forecast"
	Reason    string `json:"reason"`
}

// RecomputeSummary is the result of one scoring/forecast pass.
type RecomputeSummary struct {
	Companies  int            `json:"companies"`
	Scores     int            `json:"scores"`
	Forecasts  int            `json:"forecasts"`
	ComputedAt time.Time      `json:"computed_at"`
	Errors     []CompanyError `json:"errors"`
}

// RunNotifier publishes run summaries somewhere a human or service can see them.
type RunNotifier interface {
	NotifyRun(ctx context.Context, run RunSummary, recompute *RecomputeSummary) error
}

package poller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/amishk599/hiringradar/internal/model"
)

// ConnectorLookup resolves the connector for an ATS kind.
type ConnectorLookup interface {
	Lookup(kind model.ATSKind) (model.Connector, error)
}

// Classifier tags a posting with a role family, or "" when unclassified.
type Classifier interface {
	Classify(title, department string) string
}

// Outcome is the typed result of polling one source: either postings ready
// for upsert or the reason the source failed.
type Outcome struct {
	Source   model.Source
	Postings []model.NormalizedPosting
	Fetched  int
	Dropped  int // unclassified postings removed in track-only mode
	Duration time.Duration
	Err      error
}

// OK reports whether the fetch succeeded.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// SourcePoller owns the fetch half of the pipeline for a single source:
// fetch → classify → filter.
type SourcePoller struct {
	connectors ConnectorLookup
	classifier Classifier
	trackOnly  bool
	timeout    time.Duration
	logger     *slog.Logger
}

// NewSourcePoller creates a poller. When trackOnly is set, postings that do
// not classify into the role family are dropped. timeout bounds each source
// as a whole, retries included; zero means no per-source limit.
func NewSourcePoller(
	connectors ConnectorLookup,
	classifier Classifier,
	trackOnly bool,
	timeout time.Duration,
	logger *slog.Logger,
) *SourcePoller {
	return &SourcePoller{
		connectors: connectors,
		classifier: classifier,
		trackOnly:  trackOnly,
		timeout:    timeout,
		logger:     logger,
	}
}

// Poll runs one fetch cycle for src. It never panics or returns an error
// directly; failures land in Outcome.Err.
func (p *SourcePoller) Poll(ctx context.Context, src model.Source) Outcome {
	start := time.Now()
	out := Outcome{Source: src}

	connector, err := p.connectors.Lookup(src.Kind)
	if err != nil {
		out.Err = fmt.Errorf("polling source %d: %w", src.ID, err)
		return out
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	postings, err := fetch(ctx, connector, src)
	out.Duration = time.Since(start)
	if err != nil {
		out.Err = fmt.Errorf("polling %s source %d (%s): %w", src.Kind, src.ID, src.Handle, err)
		return out
	}
	out.Fetched = len(postings)

	kept := make([]model.NormalizedPosting, 0, len(postings))
	for _, posting := range postings {
		posting.RoleFamily = p.classifier.Classify(posting.Title, posting.Department)
		if p.trackOnly && posting.RoleFamily == "" {
			out.Dropped++
			continue
		}
		kept = append(kept, posting)
	}
	out.Postings = kept

	p.logger.Info("polled source",
		"source_id", src.ID,
		"kind", src.Kind,
		"handle", src.Handle,
		"fetched", out.Fetched,
		"kept", len(kept),
		"dropped", out.Dropped,
		"duration", out.Duration,
	)

	return out
}

type fetchResult struct {
	postings []model.NormalizedPosting
	err      error
}

// fetch returns when the connector does or when ctx ends, whichever comes
// first. A connector that ignores ctx is abandoned and its result discarded.
func fetch(ctx context.Context, connector model.Connector, src model.Source) ([]model.NormalizedPosting, error) {
	done := make(chan fetchResult, 1)
	go func() {
		postings, err := connector.Fetch(ctx, src.Handle)
		done <- fetchResult{postings: postings, err: err}
	}()

	select {
	case res := <-done:
		return res.postings, res.err
	case <-ctx.Done():
		return nil, &model.FetchError{Kind: src.Kind, Handle: src.Handle, Err: ctx.Err()}
	}
}

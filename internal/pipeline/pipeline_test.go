package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amishk599/hiringradar/internal/model"
	"github.com/amishk599/hiringradar/internal/poller"
	"github.com/amishk599/hiringradar/internal/upsert"
)

// --- Mock/Fake Implementations ---

type fakeSources struct {
	mu      sync.Mutex
	sources []model.Source
	listErr error
	marked  []int64
}

func (f *fakeSources) ListEnabledSources(context.Context) ([]model.Source, error) {
	return f.sources, f.listErr
}

func (f *fakeSources) MarkSourceOK(_ context.Context, id int64, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marked = append(f.marked, id)
	return nil
}

// scriptedPoller returns a canned outcome per source id and tracks how many
// polls run at once.
type scriptedPoller struct {
	outcomes map[int64]poller.Outcome
	delay    time.Duration
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (s *scriptedPoller) Poll(_ context.Context, src model.Source) poller.Outcome {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		seen := s.maxSeen.Load()
		if n <= seen || s.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	time.Sleep(s.delay)

	out, ok := s.outcomes[src.ID]
	if !ok {
		out = poller.Outcome{}
	}
	out.Source = src
	return out
}

type recordingUpserter struct {
	mu      sync.Mutex
	batches []upsert.Batch
	failFor int64 // company id whose batch fails
}

func (r *recordingUpserter) Apply(_ context.Context, b upsert.Batch) (upsert.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b.CompanyID == r.failFor {
		return upsert.Result{}, errors.New("database is locked")
	}
	r.batches = append(r.batches, b)
	return upsert.Result{Inserted: len(b.Postings)}, nil
}

type recordingObserver struct {
	mu      sync.Mutex
	sources int
	failed  int
	runs    []model.RunSummary
}

func (o *recordingObserver) SourceDone(_ model.ATSKind, ok bool, _ int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sources++
	if !ok {
		o.failed++
	}
}

func (o *recordingObserver) IngestDone(s model.RunSummary) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.runs = append(o.runs, s)
}

func (o *recordingObserver) RecomputeDone(model.RecomputeSummary, time.Duration) {}

// --- Helpers ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func postings(ids ...string) []model.NormalizedPosting {
	out := make([]model.NormalizedPosting, len(ids))
	for i, id := range ids {
		out[i] = model.NormalizedPosting{SourceJobID: id, Title: "Backend Engineer", Status: model.StatusOpen, RoleFamily: "SDE"}
	}
	return out
}

// --- Tests ---

func TestRunIngest_SummarisesSuccessAndFailure(t *testing.T) {
	sources := &fakeSources{sources: []model.Source{
		{ID: 1, CompanyID: 10, Kind: model.KindGreenhouse, Handle: "acme"},
		{ID: 2, CompanyID: 11, Kind: model.KindLever, Handle: "globex"},
		{ID: 3, CompanyID: 12, Kind: model.KindAshby, Handle: "empty"},
	}}
	p := &scriptedPoller{outcomes: map[int64]poller.Outcome{
		1: {Postings: postings("a", "b"), Fetched: 3, Dropped: 1},
		2: {Err: &model.FetchError{Kind: model.KindLever, Handle: "globex", Err: errors.New("connection reset")}},
		3: {},
	}}
	u := &recordingUpserter{}
	obs := &recordingObserver{}

	pl := New(sources, p, u, Options{Workers: 2, Observer: obs}, discardLogger())
	summary, err := pl.RunIngest(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, 3, summary.SourcesProcessed)
	assert.Equal(t, 2, summary.Touched)
	assert.Equal(t, 2, summary.Inserted)
	assert.Equal(t, 1, summary.Dropped)
	assert.Equal(t, 2, summary.UpsertsByKind[model.KindGreenhouse])
	assert.Equal(t, 0, summary.UpsertsByKind[model.KindLever])
	assert.Contains(t, summary.UpsertsByKind, model.KindSmartRecruiters)

	require.Len(t, summary.Errors, 1)
	assert.Equal(t, int64(2), summary.Errors[0].SourceID)
	assert.Equal(t, model.KindLever, summary.Errors[0].Kind)
	assert.Contains(t, summary.Errors[0].Reason, "connection reset")

	// Only the source with at least one upsert is stamped.
	assert.Equal(t, []int64{1}, sources.marked)

	// The failed source never reaches the engine; the empty one does.
	require.Len(t, u.batches, 2)
	assert.Empty(t, u.batches[1].Postings)
	assert.Equal(t, summary.RunID, u.batches[0].RunID)
	assert.Equal(t, int64(10), u.batches[0].CompanyID)
	assert.Equal(t, int64(1), u.batches[0].SourceID)

	assert.Equal(t, 3, obs.sources)
	assert.Equal(t, 1, obs.failed)
	require.Len(t, obs.runs, 1)
}

func TestRunIngest_UpsertFailureIsSourceScoped(t *testing.T) {
	sources := &fakeSources{sources: []model.Source{
		{ID: 1, CompanyID: 10, Kind: model.KindGreenhouse, Handle: "acme"},
		{ID: 2, CompanyID: 11, Kind: model.KindLever, Handle: "globex"},
	}}
	p := &scriptedPoller{outcomes: map[int64]poller.Outcome{
		1: {Postings: postings("a")},
		2: {Postings: postings("b")},
	}}
	u := &recordingUpserter{failFor: 10}

	summary, err := New(sources, p, u, Options{}, discardLogger()).RunIngest(context.Background())
	require.NoError(t, err)

	require.Len(t, summary.Errors, 1)
	assert.Equal(t, int64(1), summary.Errors[0].SourceID)
	assert.Contains(t, summary.Errors[0].Reason, "database is locked")
	assert.Equal(t, 1, summary.UpsertsByKind[model.KindLever])
	assert.Equal(t, []int64{2}, sources.marked)
}

func TestRunIngest_ListErrorFailsRun(t *testing.T) {
	sources := &fakeSources{listErr: errors.New("no such table: sources")}
	_, err := New(sources, &scriptedPoller{}, &recordingUpserter{}, Options{}, discardLogger()).RunIngest(context.Background())
	assert.Error(t, err)
}

func TestRunIngest_BoundsConcurrency(t *testing.T) {
	var srcs []model.Source
	for i := int64(1); i <= 8; i++ {
		srcs = append(srcs, model.Source{ID: i, CompanyID: i, Kind: model.KindGreenhouse})
	}
	p := &scriptedPoller{outcomes: map[int64]poller.Outcome{}, delay: 20 * time.Millisecond}

	summary, err := New(&fakeSources{sources: srcs}, p, &recordingUpserter{}, Options{Workers: 3}, discardLogger()).RunIngest(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 8, summary.SourcesProcessed)
	assert.LessOrEqual(t, p.maxSeen.Load(), int32(3))
	assert.GreaterOrEqual(t, p.maxSeen.Load(), int32(1))
}

func TestRunIngest_NoSources(t *testing.T) {
	summary, err := New(&fakeSources{}, &scriptedPoller{}, &recordingUpserter{}, Options{}, discardLogger()).RunIngest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.SourcesProcessed)
	assert.Empty(t, summary.Errors)
	assert.False(t, summary.FinishedAt.Before(summary.StartedAt))
}

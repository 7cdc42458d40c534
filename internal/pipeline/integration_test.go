package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amishk599/hiringradar/internal/adapter"
	"github.com/amishk599/hiringradar/internal/classifier"
	"github.com/amishk599/hiringradar/internal/forecast"
	"github.com/amishk599/hiringradar/internal/model"
	"github.com/amishk599/hiringradar/internal/poller"
	"github.com/amishk599/hiringradar/internal/store"
	"github.com/amishk599/hiringradar/internal/upsert"
)

const greenhouseFixture = `{"jobs":[{"id":"1","title":"Backend Engineer","departments":[{"name":"Eng"}],"updated_at":"2024-01-01T00:00:00Z","absolute_url":"https://x/1"}]}`

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func testClient(srv *httptest.Server) *http.Client {
	return &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			req.URL.Scheme = "http"
			req.URL.Host = srv.Listener.Addr().String()
			return http.DefaultTransport.RoundTrip(req)
		}),
	}
}

type failingConnector struct{}

func (failingConnector) Fetch(_ context.Context, handle string) ([]model.NormalizedPosting, error) {
	return nil, &model.FetchError{Kind: model.KindLever, Handle: handle, Err: errors.New("dial tcp: connection refused")}
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(context.Background(), store.Options{DSN: filepath.Join(t.TempDir(), "pipeline.db")}, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func newPipeline(st *store.Store, connectors poller.ConnectorLookup) *Pipeline {
	p := poller.NewSourcePoller(connectors, classifier.New(classifier.DefaultRules()), true, 5*time.Second, discardLogger())
	return New(st, p, upsert.NewEngine(st, 0, discardLogger()), Options{Workers: 2}, discardLogger())
}

func TestIngest_EndToEndIdempotent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/boards/acme/jobs" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, greenhouseFixture)
	}))
	defer srv.Close()

	st := openStore(t)
	ctx := context.Background()

	// Seed until the target company gets id 7.
	var company model.Company
	for i := 1; i <= 7; i++ {
		company = model.Company{Name: fmt.Sprintf("company-%d", i)}
		require.NoError(t, st.CreateCompany(ctx, &company))
	}
	require.Equal(t, int64(7), company.ID)
	src := &model.Source{CompanyID: 7, Kind: model.KindGreenhouse, Handle: "acme", Enabled: true}
	require.NoError(t, st.AddSource(ctx, src))

	pl := newPipeline(st, adapter.NewRegistry(testClient(srv), adapter.RegistryOptions{}))

	first, err := pl.RunIngest(ctx)
	require.NoError(t, err)
	assert.Empty(t, first.Errors)
	assert.Equal(t, 1, first.Inserted)
	assert.Equal(t, 1, first.UpsertsByKind[model.KindGreenhouse])

	rows, err := st.ListPostings(ctx, 7, "")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(7), rows[0].CompanyID)
	assert.Equal(t, "1", rows[0].SourceJobID)
	assert.Equal(t, "SDE", rows[0].RoleFamily)
	assert.Equal(t, model.StatusOpen, rows[0].Status)
	createdAt := rows[0].CreatedAt

	second, err := pl.RunIngest(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, 1, second.Updated)
	assert.NotEqual(t, first.RunID, second.RunID)

	rows, err = st.ListPostings(ctx, 7, "")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].CreatedAt.Equal(createdAt))

	stamped, err := st.FindSource(ctx, 7, model.KindGreenhouse)
	require.NoError(t, err)
	assert.NotNil(t, stamped.LastOKAt)

	snaps, err := st.CountRawSnapshots(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 2, snaps)
}

func TestIngest_PartialFailureIsolation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, greenhouseFixture)
	}))
	defer srv.Close()

	st := openStore(t)
	ctx := context.Background()

	good := &model.Company{Name: "good"}
	bad := &model.Company{Name: "bad"}
	require.NoError(t, st.CreateCompany(ctx, good))
	require.NoError(t, st.CreateCompany(ctx, bad))
	require.NoError(t, st.AddSource(ctx, &model.Source{CompanyID: bad.ID, Kind: model.KindLever, Handle: "bad", Enabled: true}))
	require.NoError(t, st.AddSource(ctx, &model.Source{CompanyID: good.ID, Kind: model.KindGreenhouse, Handle: "good", Enabled: true}))

	connectors := adapter.NewRegistryFrom(map[model.ATSKind]model.Connector{
		model.KindGreenhouse: adapter.NewGreenhouseAdapter(testClient(srv)),
		model.KindLever:      failingConnector{},
	})

	summary, err := newPipeline(st, connectors).RunIngest(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.SourcesProcessed)
	require.Len(t, summary.Errors, 1)
	assert.Equal(t, model.KindLever, summary.Errors[0].Kind)

	n, err := st.CountPostings(ctx, good.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	failed, err := st.FindSource(ctx, bad.ID, model.KindLever)
	require.NoError(t, err)
	assert.Nil(t, failed.LastOKAt)
}

func TestIngest_DisabledSourceSkipped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, greenhouseFixture)
	}))
	defer srv.Close()

	st := openStore(t)
	ctx := context.Background()
	c := &model.Company{Name: "paused"}
	require.NoError(t, st.CreateCompany(ctx, c))
	require.NoError(t, st.AddSource(ctx, &model.Source{CompanyID: c.ID, Kind: model.KindGreenhouse, Handle: "paused", Enabled: false}))

	summary, err := newPipeline(st, adapter.NewRegistry(testClient(srv), adapter.RegistryOptions{})).RunIngest(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.SourcesProcessed)
}

func TestIngest_CountsItemsWithoutID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"jobs":[
			{"id":"1","title":"Backend Engineer","updated_at":"2024-01-01T00:00:00Z"},
			{"title":"Platform Engineer","updated_at":"2024-01-02T00:00:00Z"}
		]}`)
	}))
	defer srv.Close()

	st := openStore(t)
	ctx := context.Background()
	c := &model.Company{Name: "acme"}
	require.NoError(t, st.CreateCompany(ctx, c))
	require.NoError(t, st.AddSource(ctx, &model.Source{CompanyID: c.ID, Kind: model.KindGreenhouse, Handle: "acme", Enabled: true}))

	summary, err := newPipeline(st, adapter.NewRegistry(testClient(srv), adapter.RegistryOptions{})).RunIngest(ctx)
	require.NoError(t, err)
	assert.Empty(t, summary.Errors)
	assert.Equal(t, 1, summary.Inserted)
	assert.Equal(t, 1, summary.Skipped)

	n, err := st.CountPostings(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestIngest_DryRunWritesNothing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, greenhouseFixture)
	}))
	defer srv.Close()

	st := openStore(t)
	ctx := context.Background()
	c := &model.Company{Name: "acme"}
	require.NoError(t, st.CreateCompany(ctx, c))
	require.NoError(t, st.AddSource(ctx, &model.Source{CompanyID: c.ID, Kind: model.KindGreenhouse, Handle: "acme", Enabled: true}))

	dry := store.NewDryRunStore(st)
	p := poller.NewSourcePoller(adapter.NewRegistry(testClient(srv), adapter.RegistryOptions{}), classifier.New(classifier.DefaultRules()), true, 5*time.Second, discardLogger())
	pl := New(dry, p, upsert.NewEngine(dry, 0, discardLogger()), Options{}, discardLogger())

	summary, err := pl.RunIngest(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Inserted)

	n, err := st.CountPostings(ctx, c.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	src, err := st.FindSource(ctx, c.ID, model.KindGreenhouse)
	require.NoError(t, err)
	assert.Nil(t, src.LastOKAt)
}

func TestRecompute_WritesScoresAndForecasts(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	acme := &model.Company{Name: "acme"}
	globex := &model.Company{Name: "globex"}
	require.NoError(t, st.CreateCompany(ctx, acme))
	require.NoError(t, st.CreateCompany(ctx, globex))

	var batch []model.NormalizedPosting
	for i := 1; i <= 3; i++ {
		ts := now.Add(-time.Duration(i) * 24 * time.Hour).Format(time.RFC3339)
		batch = append(batch, model.NormalizedPosting{
			SourceJobID: fmt.Sprintf("%d", i),
			Title:       "Backend Engineer",
			CreatedAt:   ts,
			UpdatedAt:   ts,
			Status:      model.StatusOpen,
			RoleFamily:  "SDE",
		})
	}
	_, err := upsert.NewEngine(st, 0, discardLogger()).Apply(ctx, upsert.Batch{CompanyID: acme.ID, Postings: batch})
	require.NoError(t, err)

	rc := NewRecomputer(st, "SDE", nil, discardLogger())
	rc.now = func() time.Time { return now }

	summary, err := rc.Recompute(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Companies)
	assert.Equal(t, 2, summary.Scores)
	assert.Equal(t, 2, summary.Forecasts)

	scores, err := st.LatestScores(ctx, "SDE")
	require.NoError(t, err)
	require.Len(t, scores, 2)
	assert.Equal(t, "acme", scores[0].CompanyName)
	assert.Equal(t, 85, scores[0].Score)
	assert.Equal(t, "globex", scores[1].CompanyName)
	assert.Equal(t, 0, scores[1].Score)

	acmeForecast, err := st.LatestForecast(ctx, acme.ID, "SDE")
	require.NoError(t, err)
	assert.Equal(t, forecast.MethodEWMA, acmeForecast.Method)

	globexForecast, err := st.LatestForecast(ctx, globex.ID, "SDE")
	require.NoError(t, err)
	assert.Equal(t, forecast.MethodFallback, globexForecast.Method)
	assert.InDelta(t, 0.30, globexForecast.ProbNext8W, 1e-9)
}

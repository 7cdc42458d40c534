// Package metrics exposes Prometheus instruments for ingestion and recompute runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/amishk599/hiringradar/internal/model"
)

const namespace = "hiringradar"

// Metrics holds the run instruments. It satisfies pipeline.Observer.
type Metrics struct {
	registry *prometheus.Registry

	SourceRuns        *prometheus.CounterVec
	PostingsUpserted  *prometheus.CounterVec
	FetchDuration     *prometheus.HistogramVec
	IngestRuns        prometheus.Counter
	IngestErrors      prometheus.Gauge
	LastIngest        prometheus.Gauge
	RecomputeDuration prometheus.Histogram
	ScoresWritten     prometheus.Counter
}

// New registers every instrument on a fresh registry, plus the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		SourceRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "source_runs_total",
			Help:      "Sources processed, by ATS kind and outcome.",
		}, []string{"kind", "status"}),
		PostingsUpserted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "postings_upserted_total",
			Help:      "Postings inserted or updated, by ATS kind.",
		}, []string{"kind"}),
		FetchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "fetch_duration_seconds",
			Help:      "Per-source fetch time including retries.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}, []string{"kind"}),
		IngestRuns: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "runs_total",
			Help:      "Completed ingestion runs.",
		}),
		IngestErrors: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "last_run_errors",
			Help:      "Failed sources in the most recent run.",
		}),
		LastIngest: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the most recent run finished.",
		}),
		RecomputeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "recompute",
			Name:      "duration_seconds",
			Help:      "Time to recompute all scores and forecasts.",
			Buckets:   prometheus.DefBuckets,
		}),
		ScoresWritten: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recompute",
			Name:      "scores_written_total",
			Help:      "Score rows appended.",
		}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) SourceDone(kind model.ATSKind, ok bool, upserted int, fetch time.Duration) {
	status := "ok"
	if !ok {
		status = "error"
	}
	m.SourceRuns.WithLabelValues(string(kind), status).Inc()
	m.PostingsUpserted.WithLabelValues(string(kind)).Add(float64(upserted))
	m.FetchDuration.WithLabelValues(string(kind)).Observe(fetch.Seconds())
}

func (m *Metrics) IngestDone(summary model.RunSummary) {
	m.IngestRuns.Inc()
	m.IngestErrors.Set(float64(len(summary.Errors)))
	m.LastIngest.Set(float64(summary.FinishedAt.Unix()))
}

func (m *Metrics) RecomputeDone(summary model.RecomputeSummary, took time.Duration) {
	m.RecomputeDuration.Observe(took.Seconds())
	m.ScoresWritten.Add(float64(summary.Scores))
}

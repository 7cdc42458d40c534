// Package api is the HTTP surface: run triggers, read views of the latest
// snapshots, signal intake and source discovery.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/amishk599/hiringradar/internal/discovery"
	"github.com/amishk599/hiringradar/internal/model"
)

const shutdownTimeout = 10 * time.Second

// Store is the persistence the handlers read and append to.
type Store interface {
	Ping(ctx context.Context) error
	ListCompanies(ctx context.Context) ([]model.Company, error)
	GetCompany(ctx context.Context, id int64) (*model.Company, error)
	GetCompanyByName(ctx context.Context, name string) (*model.Company, error)
	CreateCompany(ctx context.Context, c *model.Company) error
	ListSources(ctx context.Context) ([]model.Source, error)
	ListPostings(ctx context.Context, companyID int64, roleFamily string) ([]model.JobPosting, error)
	RecentOpenPostings(ctx context.Context, companyID int64, roleFamily string, since time.Time) ([]model.JobPosting, error)
	AddSignal(ctx context.Context, sig *model.Signal) error
	LatestScores(ctx context.Context, roleFamily string) ([]model.HiringScore, error)
	LatestForecasts(ctx context.Context, roleFamily string) ([]model.Forecast, error)
	LatestForecast(ctx context.Context, companyID int64, roleFamily string) (*model.Forecast, error)
	LatestRawSnapshot(ctx context.Context, companyID int64) (*model.RawSnapshot, error)
}

// Ingester runs one ingestion pass.
type Ingester interface {
	RunIngest(ctx context.Context) (model.RunSummary, error)
}

// Recomputer refreshes scores and forecasts.
type Recomputer interface {
	Recompute(ctx context.Context) (model.RecomputeSummary, error)
}

// Detector finds ATS boards from a page or a domain.
type Detector interface {
	DetectFromURL(ctx context.Context, pageURL string) ([]discovery.Hit, error)
	DetectFromDomain(ctx context.Context, domain string) ([]discovery.Hit, error)
}

// Registrar persists discovered boards as sources.
type Registrar interface {
	Register(ctx context.Context, company model.Company, hits []discovery.Hit) (discovery.RegisterResult, error)
}

// Deps bundles what the server needs. Metrics may be nil.
type Deps struct {
	Store      Store
	Ingester   Ingester
	Recomputer Recomputer
	Detector   Detector
	Registrar  Registrar
	Metrics    http.Handler
	RoleFamily string
}

// Server holds the handlers and their dependencies.
type Server struct {
	deps   Deps
	logger *slog.Logger
	now    func() time.Time
}

// NewServer creates a server.
func NewServer(deps Deps, logger *slog.Logger) *Server {
	return &Server{deps: deps, logger: logger, now: time.Now}
}

// Router builds the gin engine with every route mounted.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.logger))

	r.GET("/health", s.health)
	r.GET("/health/db", s.healthDB)

	r.GET("/companies", s.listCompanies)
	r.POST("/companies", s.createCompany)
	r.GET("/companies/:id", s.getCompany)
	r.GET("/companies/:id/postings", s.companyPostings)
	r.GET("/companies/:id/score", s.companyScore)

	r.GET("/scores", s.scores)
	r.GET("/forecasts", s.forecasts)
	r.GET("/forecast/:id", s.companyForecast)

	r.POST("/signals", s.addSignal)
	r.GET("/sources", s.listSources)

	tasks := r.Group("/tasks")
	tasks.POST("/ingest", s.runIngest)
	tasks.POST("/recompute", s.runRecompute)

	admin := r.Group("/admin/sources")
	admin.POST("/discover/url", s.discoverURL)
	admin.POST("/discover/domain", s.discoverDomain)

	r.GET("/debug/raw/:id", s.latestRaw)

	if s.deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(s.deps.Metrics))
	}
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then drains
// in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("shutting down http server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// requestLogger logs one line per request.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		c.Next()

		args := []any{
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		}
		if len(c.Errors) > 0 {
			args = append(args, "errors", c.Errors.String())
			logger.Error("http request", args...)
			return
		}
		if strings.HasPrefix(path, "/health") || path == "/metrics" {
			logger.Debug("http request", args...)
			return
		}
		logger.Info("http request", args...)
	}
}

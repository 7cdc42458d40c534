package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/amishk599/hiringradar/internal/discovery"
	"github.com/amishk599/hiringradar/internal/model"
	"github.com/amishk599/hiringradar/internal/scoring"
	"github.com/amishk599/hiringradar/internal/store"
)

const (
	defaultScoreLimit = 50
	maxScoreLimit     = 200
)

type companyView struct {
	ID         int64         `json:"id"`
	Name       string        `json:"name"`
	ATSKind    model.ATSKind `json:"ats_kind,omitempty"`
	Handle     string        `json:"handle,omitempty"`
	CareersURL string        `json:"careers_url,omitempty"`
}

func toCompanyView(c model.Company) companyView {
	return companyView{ID: c.ID, Name: c.Name, ATSKind: c.ATSKind, Handle: c.Handle, CareersURL: c.CareersURL}
}

type postingView struct {
	ID          int64     `json:"id"`
	SourceJobID string    `json:"source_job_id"`
	Title       string    `json:"title"`
	Department  string    `json:"department,omitempty"`
	Location    string    `json:"location,omitempty"`
	ApplyURL    string    `json:"apply_url,omitempty"`
	RoleFamily  string    `json:"role_family,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type scoreView struct {
	CompanyID   int64           `json:"company_id"`
	CompanyName string          `json:"company_name"`
	RoleFamily  string          `json:"role_family"`
	Score       int             `json:"score"`
	ComputedAt  time.Time       `json:"computed_at"`
	Details     json.RawMessage `json:"details"`
}

type forecastView struct {
	CompanyID   int64           `json:"company_id"`
	CompanyName string          `json:"company_name,omitempty"`
	RoleFamily  string          `json:"role_family"`
	ProbNext8W  float64         `json:"prob_next_8w"`
	LikelyMonth string          `json:"likely_month"`
	Method      string          `json:"method"`
	ComputedAt  time.Time       `json:"computed_at"`
	Features    json.RawMessage `json:"features"`
}

type sourceView struct {
	ID          int64         `json:"id"`
	CompanyID   int64         `json:"company_id"`
	Kind        model.ATSKind `json:"kind"`
	Handle      string        `json:"handle"`
	DisplayName string        `json:"display_name,omitempty"`
	Enabled     bool          `json:"enabled"`
	LastOKAt    *time.Time    `json:"last_ok_at"`
}

func toForecastView(f model.Forecast) forecastView {
	return forecastView{
		CompanyID:   f.CompanyID,
		CompanyName: f.CompanyName,
		RoleFamily:  f.RoleFamily,
		ProbNext8W:  f.ProbNext8W,
		LikelyMonth: f.LikelyMonth,
		Method:      f.Method,
		ComputedAt:  f.ComputedAt,
		Features:    rawJSON(f.Features),
	}
}

func rawJSON(b []byte) json.RawMessage {
	if len(b) == 0 {
		return json.RawMessage("null")
	}
	return json.RawMessage(b)
}

// fail writes a JSON error. Unexpected errors are attached to the context so
// the request logger reports them.
func fail(c *gin.Context, status int, err error) {
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func failLookup(c *gin.Context, err error) {
	if errors.Is(err, store.ErrNotFound) {
		fail(c, http.StatusNotFound, err)
		return
	}
	fail(c, http.StatusInternalServerError, err)
}

func idParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid company id"})
		return 0, false
	}
	return id, true
}

func (s *Server) roleFamily(c *gin.Context) string {
	return c.DefaultQuery("role_family", s.deps.RoleFamily)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) healthDB(c *gin.Context) {
	if err := s.deps.Store.Ping(c.Request.Context()); err != nil {
		fail(c, http.StatusServiceUnavailable, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) listCompanies(c *gin.Context) {
	companies, err := s.deps.Store.ListCompanies(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	out := make([]companyView, 0, len(companies))
	for _, co := range companies {
		out = append(out, toCompanyView(co))
	}
	c.JSON(http.StatusOK, out)
}

type createCompanyRequest struct {
	Name       string `json:"name" binding:"required"`
	ATSKind    string `json:"ats_kind"`
	Handle     string `json:"handle"`
	CareersURL string `json:"careers_url"`
}

func (s *Server) createCompany(c *gin.Context) {
	var req createCompanyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	ctx := c.Request.Context()
	name := strings.TrimSpace(req.Name)

	existing, err := s.deps.Store.GetCompanyByName(ctx, name)
	if err == nil {
		c.JSON(http.StatusOK, gin.H{"id": existing.ID, "note": "already_exists"})
		return
	}
	if !errors.Is(err, store.ErrNotFound) {
		fail(c, http.StatusInternalServerError, err)
		return
	}

	co := &model.Company{
		Name:       name,
		ATSKind:    model.ATSKind(strings.ToLower(strings.TrimSpace(req.ATSKind))),
		Handle:     strings.TrimSpace(req.Handle),
		CareersURL: strings.TrimSpace(req.CareersURL),
	}
	if err := s.deps.Store.CreateCompany(ctx, co); err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": co.ID})
}

func (s *Server) getCompany(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	co, err := s.deps.Store.GetCompany(c.Request.Context(), id)
	if err != nil {
		failLookup(c, err)
		return
	}
	c.JSON(http.StatusOK, toCompanyView(*co))
}

// companyPostings lists a company's postings. With since_days or
// since_hours only OPEN postings touched in that window are returned.
func (s *Server) companyPostings(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := s.deps.Store.GetCompany(ctx, id); err != nil {
		failLookup(c, err)
		return
	}

	window, err := sinceWindow(c)
	if err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}

	var postings []model.JobPosting
	if window > 0 {
		postings, err = s.deps.Store.RecentOpenPostings(ctx, id, s.roleFamily(c), s.now().Add(-window))
	} else {
		postings, err = s.deps.Store.ListPostings(ctx, id, s.roleFamily(c))
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}

	out := make([]postingView, 0, len(postings))
	for _, p := range postings {
		out = append(out, postingView{
			ID:          p.ID,
			SourceJobID: p.SourceJobID,
			Title:       p.Title,
			Department:  p.Department,
			Location:    p.Location,
			ApplyURL:    p.ApplyURL,
			RoleFamily:  p.RoleFamily,
			Status:      p.Status,
			CreatedAt:   p.CreatedAt,
			UpdatedAt:   p.UpdatedAt,
		})
	}
	c.JSON(http.StatusOK, out)
}

func sinceWindow(c *gin.Context) (time.Duration, error) {
	if v := c.Query("since_hours"); v != "" {
		h, err := strconv.Atoi(v)
		if err != nil || h <= 0 {
			return 0, errors.New("since_hours must be a positive integer")
		}
		return time.Duration(h) * time.Hour, nil
	}
	if v := c.Query("since_days"); v != "" {
		d, err := strconv.Atoi(v)
		if err != nil || d <= 0 {
			return 0, errors.New("since_days must be a positive integer")
		}
		return time.Duration(d) * 24 * time.Hour, nil
	}
	return 0, nil
}

// companyScore computes the absolute-mode score live from stored postings.
func (s *Server) companyScore(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	co, err := s.deps.Store.GetCompany(ctx, id)
	if err != nil {
		failLookup(c, err)
		return
	}
	rf := s.roleFamily(c)
	postings, err := s.deps.Store.ListPostings(ctx, id, rf)
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}

	score, details := scoring.Absolute(postings, s.now())
	c.JSON(http.StatusOK, gin.H{
		"company_id":   co.ID,
		"company_name": co.Name,
		"role_family":  rf,
		"score":        score,
		"details":      details,
	})
}

func (s *Server) scores(c *gin.Context) {
	limit := defaultScoreLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxScoreLimit {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 200"})
			return
		}
		limit = n
	}

	rows, err := s.deps.Store.LatestScores(c.Request.Context(), s.roleFamily(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	if len(rows) > limit {
		rows = rows[:limit]
	}

	out := make([]scoreView, 0, len(rows))
	for _, r := range rows {
		out = append(out, scoreView{
			CompanyID:   r.CompanyID,
			CompanyName: r.CompanyName,
			RoleFamily:  r.RoleFamily,
			Score:       r.Score,
			ComputedAt:  r.ComputedAt,
			Details:     rawJSON(r.Details),
		})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) forecasts(c *gin.Context) {
	rows, err := s.deps.Store.LatestForecasts(c.Request.Context(), s.roleFamily(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	out := make([]forecastView, 0, len(rows))
	for _, f := range rows {
		out = append(out, toForecastView(f))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) companyForecast(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	f, err := s.deps.Store.LatestForecast(c.Request.Context(), id, s.roleFamily(c))
	if err != nil {
		failLookup(c, err)
		return
	}
	c.JSON(http.StatusOK, toForecastView(*f))
}

type signalRequest struct {
	CompanyID  int64           `json:"company_id" binding:"required"`
	Kind       string          `json:"kind" binding:"required"`
	HappenedAt time.Time       `json:"happened_at" binding:"required"`
	Payload    json.RawMessage `json:"payload"`
}

func (s *Server) addSignal(c *gin.Context) {
	var req signalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	if !model.ValidSignalKind(req.Kind) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown signal kind " + strconv.Quote(req.Kind)})
		return
	}
	ctx := c.Request.Context()
	if _, err := s.deps.Store.GetCompany(ctx, req.CompanyID); err != nil {
		failLookup(c, err)
		return
	}

	sig := &model.Signal{
		CompanyID:  req.CompanyID,
		Kind:       req.Kind,
		HappenedAt: req.HappenedAt.UTC(),
		Payload:    req.Payload,
	}
	if err := s.deps.Store.AddSignal(ctx, sig); err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": sig.ID})
}

func (s *Server) listSources(c *gin.Context) {
	sources, err := s.deps.Store.ListSources(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	out := make([]sourceView, 0, len(sources))
	for _, src := range sources {
		out = append(out, sourceView{
			ID:          src.ID,
			CompanyID:   src.CompanyID,
			Kind:        src.Kind,
			Handle:      src.Handle,
			DisplayName: src.DisplayName,
			Enabled:     src.Enabled,
			LastOKAt:    src.LastOKAt,
		})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) runIngest(c *gin.Context) {
	summary, err := s.deps.Ingester.RunIngest(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) runRecompute(c *gin.Context) {
	summary, err := s.deps.Recomputer.Recompute(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

type discoverRequest struct {
	CompanyID int64  `json:"company_id" binding:"required"`
	URL       string `json:"url"`
	Domain    string `json:"domain"`
}

func (s *Server) discoverURL(c *gin.Context) {
	s.discover(c, func(req discoverRequest) ([]discovery.Hit, error) {
		if req.URL == "" {
			return nil, errMissingField("url")
		}
		return s.deps.Detector.DetectFromURL(c.Request.Context(), req.URL)
	})
}

func (s *Server) discoverDomain(c *gin.Context) {
	s.discover(c, func(req discoverRequest) ([]discovery.Hit, error) {
		if req.Domain == "" {
			return nil, errMissingField("domain")
		}
		return s.deps.Detector.DetectFromDomain(c.Request.Context(), req.Domain)
	})
}

type missingFieldError string

func (e missingFieldError) Error() string { return string(e) + " is required" }

func errMissingField(name string) error { return missingFieldError(name) }

func (s *Server) discover(c *gin.Context, detect func(discoverRequest) ([]discovery.Hit, error)) {
	var req discoverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	ctx := c.Request.Context()
	co, err := s.deps.Store.GetCompany(ctx, req.CompanyID)
	if err != nil {
		failLookup(c, err)
		return
	}

	hits, err := detect(req)
	var missing missingFieldError
	switch {
	case errors.As(err, &missing):
		fail(c, http.StatusBadRequest, err)
		return
	case err != nil:
		fail(c, http.StatusBadGateway, err)
		return
	case len(hits) == 0:
		c.JSON(http.StatusNotFound, gin.H{"error": "no ATS link found"})
		return
	}

	res, err := s.deps.Registrar.Register(ctx, *co, hits)
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"hits": hits, "result": res})
}

func (s *Server) latestRaw(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	raw, err := s.deps.Store.LatestRawSnapshot(c.Request.Context(), id)
	if err != nil {
		failLookup(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"company_id": raw.CompanyID,
		"source_id":  raw.SourceID,
		"run_id":     raw.RunID,
		"fetched_at": raw.FetchedAt,
		"payload":    rawJSON(raw.Payload),
	})
}

package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/amishk599/hiringradar/internal/model"
)

const (
	ashbyJobBoardURL    = "https://api.ashbyhq.com/posting-api/job-board"
	ashbyJobPostingsURL = "https://api.ashbyhq.com/public/job-postings"
	ashbyTimeout        = 25 * time.Second
)

// ashbyJob covers both the job-board shape and the nested jobPosting shape.
type ashbyJob struct {
	ID          flexID     `json:"id"`
	Title       string     `json:"title"`
	Department  namedField `json:"department"`
	Team        namedField `json:"team"`
	Location    namedField `json:"location"`
	JobURL      string     `json:"jobUrl"`
	ApplyURL    string     `json:"applyUrl"`
	PublishedAt rawTime    `json:"publishedAt"`
	CreatedAt   rawTime    `json:"createdAt"`
	UpdatedAt   rawTime    `json:"updatedAt"`
	IsListed    *bool      `json:"isListed"`
}

// ashbyResponse is the job-board API response.
type ashbyResponse struct {
	Jobs []json.RawMessage `json:"jobs"`
}

// AshbyAdapter fetches jobs from Ashby's public posting APIs.
type AshbyAdapter struct {
	client *http.Client
}

// NewAshbyAdapter creates a new adapter for Ashby job boards.
func NewAshbyAdapter(client *http.Client) *AshbyAdapter {
	return &AshbyAdapter{client: client}
}

// Fetch tries the job-board endpoint first and falls back to the
// organization job-postings endpoint.
func (a *AshbyAdapter) Fetch(ctx context.Context, orgSlug string) ([]model.NormalizedPosting, error) {
	endpoints := []string{
		fmt.Sprintf("%s/%s", ashbyJobBoardURL, url.PathEscape(orgSlug)),
		fmt.Sprintf("%s?organizationSlug=%s", ashbyJobPostingsURL, url.QueryEscape(orgSlug)),
	}

	var errs []error
	for _, endpoint := range endpoints {
		body, err := getJSON(ctx, a.client, endpoint, ashbyTimeout)
		if err != nil {
			errs = append(errs, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}

		items, err := decodeAshby(body)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		return normalizeAshby(items), nil
	}

	return nil, &model.FetchError{Kind: model.KindAshby, Handle: orgSlug, Err: errors.Join(errs...)}
}

// decodeAshby accepts {"jobs": [...]}, a bare array of jobs, or an array of
// {"jobPosting": {...}} wrappers.
func decodeAshby(body []byte) ([]ashbyJob, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty ashby response")
	}

	var raw []json.RawMessage
	switch trimmed[0] {
	case '{':
		var resp ashbyResponse
		if err := json.Unmarshal(trimmed, &resp); err != nil {
			return nil, err
		}
		raw = resp.Jobs
	case '[':
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unexpected ashby payload")
	}

	jobs := make([]ashbyJob, 0, len(raw))
	for _, item := range raw {
		var wrapper struct {
			JobPosting *ashbyJob `json:"jobPosting"`
		}
		if err := json.Unmarshal(item, &wrapper); err != nil {
			return nil, err
		}
		if wrapper.JobPosting != nil {
			jobs = append(jobs, *wrapper.JobPosting)
			continue
		}
		var job ashbyJob
		if err := json.Unmarshal(item, &job); err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func normalizeAshby(jobs []ashbyJob) []model.NormalizedPosting {
	postings := make([]model.NormalizedPosting, 0, len(jobs))
	for _, aj := range jobs {
		if aj.IsListed != nil && !*aj.IsListed {
			continue
		}

		created := firstNonEmpty(string(aj.PublishedAt), string(aj.CreatedAt), string(aj.UpdatedAt))
		postings = append(postings, model.NormalizedPosting{
			SourceJobID: string(aj.ID),
			Title:       aj.Title,
			Department:  firstNonEmpty(string(aj.Department), string(aj.Team)),
			Location:    string(aj.Location),
			ApplyURL:    firstNonEmpty(aj.JobURL, aj.ApplyURL),
			CreatedAt:   created,
			UpdatedAt:   firstNonEmpty(string(aj.UpdatedAt), created),
			Status:      model.StatusOpen,
		})
	}
	return postings
}

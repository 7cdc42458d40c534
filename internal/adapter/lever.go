package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/amishk599/hiringradar/internal/model"
)

const (
	leverBaseURL = "https://api.lever.co/v0/postings"
	leverTimeout = 30 * time.Second
)

// leverCategories represents the categories object in a Lever job.
type leverCategories struct {
	Team       string `json:"team"`
	Department string `json:"department"`
	Location   string `json:"location"`
}

// leverJob represents a single job in the Lever API response.
// createdAt and updatedAt are Unix milliseconds.
type leverJob struct {
	ID         string          `json:"id"`
	Text       string          `json:"text"`
	Categories leverCategories `json:"categories"`
	HostedURL  string          `json:"hostedUrl"`
	ApplyURL   string          `json:"applyUrl"`
	CreatedAt  rawTime         `json:"createdAt"`
	UpdatedAt  rawTime         `json:"updatedAt"`
}

// LeverAdapter fetches jobs from the Lever public postings API.
type LeverAdapter struct {
	client *http.Client
}

// NewLeverAdapter creates a new adapter for Lever boards.
func NewLeverAdapter(client *http.Client) *LeverAdapter {
	return &LeverAdapter{client: client}
}

// Fetch retrieves all postings for companySlug and normalizes them.
func (a *LeverAdapter) Fetch(ctx context.Context, companySlug string) ([]model.NormalizedPosting, error) {
	url := fmt.Sprintf("%s/%s?mode=json", leverBaseURL, companySlug)

	body, err := getJSON(ctx, a.client, url, leverTimeout)
	if err != nil {
		return nil, &model.FetchError{Kind: model.KindLever, Handle: companySlug, Err: err}
	}

	var leverJobs []leverJob
	if err := json.Unmarshal(body, &leverJobs); err != nil {
		return nil, &model.FetchError{Kind: model.KindLever, Handle: companySlug, Err: err}
	}

	postings := make([]model.NormalizedPosting, 0, len(leverJobs))
	for _, lj := range leverJobs {
		postings = append(postings, model.NormalizedPosting{
			SourceJobID: lj.ID,
			Title:       lj.Text,
			Department:  firstNonEmpty(lj.Categories.Team, lj.Categories.Department),
			Location:    lj.Categories.Location,
			ApplyURL:    firstNonEmpty(lj.HostedURL, lj.ApplyURL),
			CreatedAt:   string(lj.CreatedAt),
			UpdatedAt:   firstNonEmpty(string(lj.UpdatedAt), string(lj.CreatedAt)),
			Status:      model.StatusOpen,
		})
	}

	return postings, nil
}

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
	greenhouseBaseURL = "https://boards-api.greenhouse.io/v1/boards"
	greenhouseTimeout = 30 * time.Second
)

// greenhouseJob represents a single job in the Greenhouse API response.
type greenhouseJob struct {
	ID             flexID                 `json:"id"`
	Title          string                 `json:"title"`
	Departments    []greenhouseDepartment `json:"departments"`
	Location       namedField             `json:"location"`
	AbsoluteURL    string                 `json:"absolute_url"`
	FirstPublished rawTime                `json:"first_published"`
	UpdatedAt      rawTime                `json:"updated_at"`
}

type greenhouseDepartment struct {
	Name string `json:"name"`
}

// greenhouseResponse is the top-level Greenhouse jobs API response.
type greenhouseResponse struct {
	Jobs []greenhouseJob `json:"jobs"`
}

// GreenhouseAdapter fetches jobs from the Greenhouse public boards API.
type GreenhouseAdapter struct {
	client *http.Client
}

// NewGreenhouseAdapter creates a new adapter for Greenhouse boards.
func NewGreenhouseAdapter(client *http.Client) *GreenhouseAdapter {
	return &GreenhouseAdapter{client: client}
}

// Fetch retrieves all jobs on the board identified by boardToken and
// normalizes them.
func (a *GreenhouseAdapter) Fetch(ctx context.Context, boardToken string) ([]model.NormalizedPosting, error) {
	url := fmt.Sprintf("%s/%s/jobs?content=true", greenhouseBaseURL, boardToken)

	body, err := getJSON(ctx, a.client, url, greenhouseTimeout)
	if err != nil {
		return nil, &model.FetchError{Kind: model.KindGreenhouse, Handle: boardToken, Err: err}
	}

	var ghResp greenhouseResponse
	if err := json.Unmarshal(body, &ghResp); err != nil {
		return nil, &model.FetchError{Kind: model.KindGreenhouse, Handle: boardToken, Err: err}
	}

	postings := make([]model.NormalizedPosting, 0, len(ghResp.Jobs))
	for _, gj := range ghResp.Jobs {
		var department string
		if len(gj.Departments) > 0 {
			department = gj.Departments[0].Name
		}

		postings = append(postings, model.NormalizedPosting{
			SourceJobID: string(gj.ID),
			Title:       gj.Title,
			Department:  department,
			Location:    string(gj.Location),
			ApplyURL:    gj.AbsoluteURL,
			CreatedAt:   firstNonEmpty(string(gj.FirstPublished), string(gj.UpdatedAt)),
			UpdatedAt:   string(gj.UpdatedAt),
			Status:      model.StatusOpen,
		})
	}

	return postings, nil
}

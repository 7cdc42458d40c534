package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/amishk599/hiringradar/internal/model"
)

const (
	smartRecruitersBaseURL  = "https://api.smartrecruiters.com/v1/companies"
	smartRecruitersTimeout  = 20 * time.Second
	smartRecruitersPageSize = 100
)

type smartRecruitersLocation struct {
	City    string `json:"city"`
	Region  string `json:"region"`
	Country string `json:"country"`
}

type smartRecruitersLabel struct {
	Label string `json:"label"`
}

// smartRecruitersPosting is shared by the list and detail endpoints; the
// detail response additionally carries applyUrl/postingUrl.
type smartRecruitersPosting struct {
	ID           flexID                  `json:"id"`
	Name         string                  `json:"name"`
	Location     smartRecruitersLocation `json:"location"`
	Department   smartRecruitersLabel    `json:"department"`
	Function     smartRecruitersLabel    `json:"function"`
	ApplyURL     string                  `json:"applyUrl"`
	PostingURL   string                  `json:"postingUrl"`
	ReleasedDate rawTime                 `json:"releasedDate"`
	CreatedOn    rawTime                 `json:"createdOn"`
	UpdatedOn    rawTime                 `json:"updatedOn"`
}

type smartRecruitersPage struct {
	Offset     int                      `json:"offset"`
	Limit      int                      `json:"limit"`
	TotalFound int                      `json:"totalFound"`
	Content    []smartRecruitersPosting `json:"content"`
}

// SmartRecruitersAdapter pages through the public SmartRecruiters postings API.
type SmartRecruitersAdapter struct {
	client      *http.Client
	pageSize    int
	withDetails bool
}

// NewSmartRecruitersAdapter creates an adapter. When withDetails is set, list
// items lacking an apply URL or department are enriched from the detail endpoint.
func NewSmartRecruitersAdapter(client *http.Client, withDetails bool) *SmartRecruitersAdapter {
	return &SmartRecruitersAdapter{
		client:      client,
		pageSize:    smartRecruitersPageSize,
		withDetails: withDetails,
	}
}

// Fetch walks the listing until totalFound is exhausted or an empty page
// comes back, whichever happens first.
func (a *SmartRecruitersAdapter) Fetch(ctx context.Context, companyID string) ([]model.NormalizedPosting, error) {
	var postings []model.NormalizedPosting

	offset := 0
	for {
		page, err := a.fetchPage(ctx, companyID, offset)
		if err != nil {
			return nil, &model.FetchError{Kind: model.KindSmartRecruiters, Handle: companyID, Err: err}
		}
		if len(page.Content) == 0 {
			break
		}

		for _, item := range page.Content {
			if a.withDetails && item.ID != "" && (item.ApplyURL == "" || item.Department.Label == "") {
				item = a.enrich(ctx, companyID, item)
			}
			postings = append(postings, normalizeSmartRecruiters(item))
		}

		offset += len(page.Content)
		if offset >= page.TotalFound {
			break
		}
	}

	return postings, nil
}

func (a *SmartRecruitersAdapter) fetchPage(ctx context.Context, companyID string, offset int) (*smartRecruitersPage, error) {
	params := url.Values{}
	params.Set("limit", fmt.Sprintf("%d", a.pageSize))
	params.Set("offset", fmt.Sprintf("%d", offset))
	endpoint := fmt.Sprintf("%s/%s/postings?%s", smartRecruitersBaseURL, url.PathEscape(companyID), params.Encode())

	body, err := getJSON(ctx, a.client, endpoint, smartRecruitersTimeout)
	if err != nil {
		return nil, err
	}

	var page smartRecruitersPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("decode page at offset %d: %w", offset, err)
	}
	return &page, nil
}

// enrich merges the detail record into item. A failed detail fetch keeps the
// list data unchanged.
func (a *SmartRecruitersAdapter) enrich(ctx context.Context, companyID string, item smartRecruitersPosting) smartRecruitersPosting {
	endpoint := fmt.Sprintf("%s/%s/postings/%s", smartRecruitersBaseURL, url.PathEscape(companyID), url.PathEscape(string(item.ID)))

	body, err := getJSON(ctx, a.client, endpoint, smartRecruitersTimeout)
	if err != nil {
		return item
	}

	var detail smartRecruitersPosting
	if err := json.Unmarshal(body, &detail); err != nil {
		return item
	}

	item.ApplyURL = firstNonEmpty(item.ApplyURL, detail.ApplyURL, detail.PostingURL)
	if item.Department.Label == "" {
		item.Department = detail.Department
	}
	if item.Function.Label == "" {
		item.Function = detail.Function
	}
	if item.UpdatedOn == "" {
		item.UpdatedOn = detail.UpdatedOn
	}
	return item
}

func normalizeSmartRecruiters(item smartRecruitersPosting) model.NormalizedPosting {
	created := firstNonEmpty(string(item.ReleasedDate), string(item.CreatedOn))
	return model.NormalizedPosting{
		SourceJobID: string(item.ID),
		Title:       item.Name,
		Department:  firstNonEmpty(item.Department.Label, item.Function.Label),
		Location:    firstNonEmpty(item.Location.City, item.Location.Region, item.Location.Country),
		ApplyURL:    firstNonEmpty(item.ApplyURL, item.PostingURL),
		CreatedAt:   created,
		UpdatedAt:   firstNonEmpty(string(item.UpdatedOn), created),
		Status:      model.StatusOpen,
	}
}

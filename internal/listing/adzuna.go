// Package listing provides the job-listing source the pipeline searches
// against. Listing search is an external collaborator: the pipeline only
// sees the port interface, this package holds the Adzuna implementation.
package listing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/phuslu/log"

	"jobscout/internal/model"
)

const (
	adzunaBaseURL  = "https://api.adzuna.com/v1/api/jobs"
	pageSize       = 25
	maxResults     = 50 // enough candidates for a target of 8 quality fetches
	teaserMaxChars = 500
	httpTimeout    = 15 * time.Second
)

// Client fetches job listings from the Adzuna public API. If AppID or AppKey
// is empty, Search returns (nil, nil) gracefully — the pipeline reports "no
// jobs scraped" instead of failing hard.
type Client struct {
	AppID   string
	AppKey  string
	Country string // ISO code the API is scoped to: "gb", "us", …
	client  *http.Client
}

// NewClient constructs a listing client with a shared HTTP client.
func NewClient(appID, appKey, country string) *Client {
	return &Client{
		AppID:   appID,
		AppKey:  appKey,
		Country: country,
		client:  &http.Client{Timeout: httpTimeout},
	}
}

// adzunaResponse mirrors the top-level Adzuna JSON response.
type adzunaResponse struct {
	Results []adzunaResult `json:"results"`
	Count   int            `json:"count"`
}

type adzunaResult struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Company     adzunaCompany  `json:"company"`
	Location    adzunaLocation `json:"location"`
	RedirectURL string         `json:"redirect_url"`
	Created     string         `json:"created"`
}

type adzunaCompany struct {
	DisplayName string `json:"display_name"`
}

type adzunaLocation struct {
	DisplayName string `json:"display_name"`
}

// Search retrieves listings matching jobTitle in location, paging until
// maxResults is reached or the results run out. Descriptions are truncated
// to teasers — the full text comes from the description fetcher, not from
// the listing API.
func (c *Client) Search(ctx context.Context, jobTitle, location string) ([]model.JobListing, error) {
	if c.AppID == "" || c.AppKey == "" {
		log.Warn().Msg("ADZUNA_APP_ID / ADZUNA_APP_KEY not set, skipping listing search")
		return nil, nil
	}

	var listings []model.JobListing
	for page := 1; len(listings) < maxResults; page++ {
		batch, err := c.searchPage(ctx, jobTitle, location, page)
		if err != nil {
			return listings, fmt.Errorf("page %d: %w", page, err)
		}
		if len(batch) == 0 {
			break
		}
		listings = append(listings, batch...)
		if len(batch) < pageSize {
			break
		}
	}

	if len(listings) > maxResults {
		listings = listings[:maxResults]
	}
	return listings, nil
}

func (c *Client) searchPage(ctx context.Context, jobTitle, location string, page int) ([]model.JobListing, error) {
	endpoint := fmt.Sprintf("%s/%s/search/%d", adzunaBaseURL, c.Country, page)

	params := url.Values{}
	params.Set("app_id", c.AppID)
	params.Set("app_key", c.AppKey)
	params.Set("results_per_page", strconv.Itoa(pageSize))
	params.Set("what", jobTitle)
	params.Set("where", location)
	params.Set("content-type", "application/json")
	params.Set("sort_by", "date")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http GET: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("adzuna returned %d: %s", resp.StatusCode, string(body))
	}

	var apiResp adzunaResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("json unmarshal: %w", err)
	}

	listings := make([]model.JobListing, 0, len(apiResp.Results))
	for _, r := range apiResp.Results {
		link := r.RedirectURL
		if link == "" {
			link = fmt.Sprintf("adzuna:%s", r.ID)
		}
		teaser := r.Description
		if len(teaser) > teaserMaxChars {
			teaser = teaser[:teaserMaxChars]
		}
		listings = append(listings, model.JobListing{
			Title:       r.Title,
			Company:     r.Company.DisplayName,
			Location:    r.Location.DisplayName,
			Link:        link,
			Description: teaser,
		})
	}

	return listings, nil
}

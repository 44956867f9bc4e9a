package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// GovUKBaseURL prefixes relative paths returned by the GOV.UK content API.
const GovUKBaseURL = "https://www.gov.uk"

// GovUKAdapter reads the GOV.UK search/content JSON API.
type GovUKAdapter struct {
	fetcher *Fetcher
}

// NewGovUKAdapter creates a GOV.UK content API adapter.
func NewGovUKAdapter(f *Fetcher) *GovUKAdapter {
	return &GovUKAdapter{fetcher: f}
}

func (a *GovUKAdapter) Mode() Mode { return ModeGovUK }

func (a *GovUKAdapter) Fetch(ctx context.Context, src Source) ([]Entry, error) {
	return fetchEndpoints(ctx, src, func(ctx context.Context, endpoint string) ([]Entry, error) {
		body, err := a.fetcher.Get(ctx, endpoint, "application/json")
		if err != nil {
			return nil, err
		}
		entries, err := ParseGovUK(body)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", endpoint, err)
		}
		return entries, nil
	})
}

type govukResponse struct {
	Results *[]govukResult `json:"results"`
}

type govukResult struct {
	ContentID       string `json:"content_id"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	Link            string `json:"link"`
	BasePath        string `json:"base_path"`
	PublicTimestamp string `json:"public_timestamp"`
	Format          string `json:"format"`
	DisplayType     string `json:"display_type"`
}

// ParseGovUK decodes a GOV.UK API payload with a results array.
func ParseGovUK(body []byte) ([]Entry, error) {
	var resp govukResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode JSON: %w", err)
	}
	if resp.Results == nil {
		return nil, fmt.Errorf("payload has no results array")
	}

	entries := make([]Entry, 0, len(*resp.Results))
	for _, r := range *resp.Results {
		link := govukLink(r.Link, r.BasePath)
		entries = append(entries, newEntry(
			firstNonEmpty(r.ContentID, link, r.Title),
			r.Title,
			link,
			r.Description,
			ParseDate(r.PublicTimestamp),
			[]string{r.Format, r.DisplayType},
		))
	}
	return entries, nil
}

func govukLink(link, basePath string) string {
	switch {
	case strings.HasPrefix(link, "http://"), strings.HasPrefix(link, "https://"):
		return link
	case strings.HasPrefix(link, "/"):
		return GovUKBaseURL + link
	case strings.HasPrefix(basePath, "/"):
		return GovUKBaseURL + basePath
	case basePath != "":
		return GovUKBaseURL + "/" + basePath
	default:
		return link
	}
}

package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

// WordPressAdapter reads the WordPress REST API posts endpoint
// (/wp-json/wp/v2/posts).
type WordPressAdapter struct {
	fetcher *Fetcher
}

// NewWordPressAdapter creates a WordPress JSON adapter.
func NewWordPressAdapter(f *Fetcher) *WordPressAdapter {
	return &WordPressAdapter{fetcher: f}
}

func (a *WordPressAdapter) Mode() Mode { return ModeWordPress }

func (a *WordPressAdapter) Fetch(ctx context.Context, src Source) ([]Entry, error) {
	return fetchEndpoints(ctx, src, func(ctx context.Context, endpoint string) ([]Entry, error) {
		body, err := a.fetcher.Get(ctx, endpoint, "application/json")
		if err != nil {
			return nil, err
		}
		entries, err := ParseWordPress(body)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", endpoint, err)
		}
		return entries, nil
	})
}

type wpRendered struct {
	Rendered string `json:"rendered"`
}

type wpPost struct {
	ID         int64      `json:"id"`
	Link       string     `json:"link"`
	Date       string     `json:"date"`
	DateGMT    string     `json:"date_gmt"`
	Title      wpRendered `json:"title"`
	Excerpt    wpRendered `json:"excerpt"`
	Categories []int64    `json:"categories"`
}

// ParseWordPress decodes a WordPress posts array.
func ParseWordPress(body []byte) ([]Entry, error) {
	var posts []wpPost
	if err := json.Unmarshal(body, &posts); err != nil {
		return nil, fmt.Errorf("decode JSON: %w", err)
	}

	entries := make([]Entry, 0, len(posts))
	for _, p := range posts {
		var id string
		if p.ID > 0 {
			id = strconv.FormatInt(p.ID, 10)
		}
		cats := make([]string, 0, len(p.Categories))
		for _, c := range p.Categories {
			cats = append(cats, strconv.FormatInt(c, 10))
		}
		published := ParseDate(p.DateGMT)
		if published == nil {
			published = ParseDate(p.Date)
		}
		entries = append(entries, newEntry(
			firstNonEmpty(p.Link, id),
			p.Title.Rendered,
			p.Link,
			p.Excerpt.Rendered,
			published,
			cats,
		))
	}
	return entries, nil
}

// Package articles defines the published Article Record, where it lives on
// disk, and the read and post-processing paths over those files.
package articles

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"time"

	"github.com/RobinCoderZhao/newsroom/internal/newsroom/tiein"
)

// StatusPublished is the only status the pipeline writes.
const StatusPublished = "published"

// Section is one headed block of article body.
type Section struct {
	Heading string `json:"heading"`
	Content string `json:"content"`
}

// SourceReference cites the feed item an article was written from.
type SourceReference struct {
	SourceID     string `json:"sourceId"`
	SourceURL    string `json:"sourceUrl"`
	CitationText string `json:"citationText"`
}

// Keyword is one SEO tag; exactly one per article is primary.
type Keyword struct {
	Keyword string `json:"keyword"`
	Primary bool   `json:"primary"`
}

// Record is one published article, stored as YYYY/MM/<slug>.json.
type Record struct {
	Slug             string              `json:"slug"`
	Title            string              `json:"title"`
	Summary          string              `json:"summary"`
	WordCount        int                 `json:"wordCount"`
	Sections         []Section           `json:"sections"`
	Images           []string            `json:"images"`
	SourceReferences []SourceReference   `json:"sourceReferences"`
	RelatedBooks     []tiein.RelatedBook `json:"relatedBooks"`
	Keywords         []Keyword           `json:"keywords"`
	Status           string              `json:"status"`
	CreatedAt        time.Time           `json:"createdAt"`
	PublishedAt      time.Time           `json:"publishedAt"`
}

// PathFor returns the path of an article relative to the articles directory.
func PathFor(created time.Time, slug string) string {
	created = created.UTC()
	return filepath.Join(created.Format("2006"), created.Format("01"), slug+".json")
}

var slugDateRe = regexp.MustCompile(`^(\d{4})-(\d{2})-\d{2}-`)

// PathForSlug derives the relative path from the date prefix of slug.
func PathForSlug(slug string) (string, error) {
	m := slugDateRe.FindStringSubmatch(slug)
	if m == nil {
		return "", fmt.Errorf("slug %q has no date prefix", slug)
	}
	return filepath.Join(m[1], m[2], slug+".json"), nil
}

// PostProcessor runs over freshly written article files. Paths are relative
// to the articles directory.
type PostProcessor interface {
	Process(ctx context.Context, paths []string) error
}

// PostProcessorFunc adapts a function to PostProcessor.
type PostProcessorFunc func(ctx context.Context, paths []string) error

func (f PostProcessorFunc) Process(ctx context.Context, paths []string) error {
	return f(ctx, paths)
}

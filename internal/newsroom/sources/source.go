// Package sources defines the feed source configuration and the adapters that
// normalise each upstream format (RSS/Atom, GOV.UK content API, WordPress
// JSON, the HIAL news listing) into a common Entry.
package sources

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/RobinCoderZhao/newsroom/pkg/textutil"
)

// Mode selects the adapter used for a source.
type Mode string

const (
	ModeRSS       Mode = "rss"
	ModeGovUK     Mode = "govuk-content-api"
	ModeWordPress Mode = "wordpress-json"
	ModeHIAL      Mode = "hial-html"
)

// UntitledTitle replaces an empty title after normalisation.
const UntitledTitle = "Untitled"

// Source describes one external feed, as read from news-sources.json.
type Source struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Mode        Mode     `json:"mode"`
	URL         string   `json:"url"`
	URLs        []string `json:"urls,omitempty"`
	Enabled     bool     `json:"enabled"`
	Licence     string   `json:"licence"`
	ImagePolicy string   `json:"imagePolicy"`
}

// Endpoints returns URL followed by URLs, skipping blanks.
func (s Source) Endpoints() []string {
	out := make([]string, 0, 1+len(s.URLs))
	for _, u := range append([]string{s.URL}, s.URLs...) {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, u)
		}
	}
	return out
}

// Entry is one normalised item from a source fetch.
type Entry struct {
	GUID        string
	Title       string
	Link        string
	Summary     string
	PublishedAt *time.Time
	Categories  []string
	Media       []string
}

// Adapter fetches one wire format.
type Adapter interface {
	Mode() Mode
	Fetch(ctx context.Context, src Source) ([]Entry, error)
}

// Registry dispatches a Source to the adapter for its mode.
type Registry struct {
	adapters map[Mode]Adapter
}

// NewRegistry creates a registry holding the given adapters.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[Mode]Adapter, len(adapters))}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

// DefaultRegistry wires every built-in adapter to the shared fetcher.
func DefaultRegistry(f *Fetcher) *Registry {
	return NewRegistry(
		NewRSSAdapter(f),
		NewGovUKAdapter(f),
		NewWordPressAdapter(f),
		NewHIALAdapter(f),
	)
}

// Register adds or replaces the adapter for a's mode.
func (r *Registry) Register(a Adapter) {
	r.adapters[a.Mode()] = a
}

// Fetch runs the adapter matching src.Mode.
func (r *Registry) Fetch(ctx context.Context, src Source) ([]Entry, error) {
	a, ok := r.adapters[src.Mode]
	if !ok {
		return nil, fmt.Errorf("source %s: unsupported mode %q", src.ID, src.Mode)
	}
	return a.Fetch(ctx, src)
}

// fetchEndpoints calls fn for every endpoint of src, concatenating results.
// The first failing endpoint fails the source.
func fetchEndpoints(ctx context.Context, src Source, fn func(ctx context.Context, endpoint string) ([]Entry, error)) ([]Entry, error) {
	endpoints := src.Endpoints()
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("source %s has no endpoint", src.ID)
	}
	var all []Entry
	for _, ep := range endpoints {
		entries, err := fn(ctx, ep)
		if err != nil {
			return nil, err
		}
		all = append(all, entries...)
	}
	return all, nil
}

// newEntry normalises raw fields into an Entry. guid must already be chosen
// from the raw values so an item with no identity stays empty.
func newEntry(guid, title, link, summary string, published *time.Time, categories []string) Entry {
	title = textutil.CleanText(title)
	if title == "" {
		title = UntitledTitle
	}
	cats := make([]string, 0, len(categories))
	for _, c := range categories {
		if c = textutil.CleanText(c); c != "" {
			cats = append(cats, c)
		}
	}
	return Entry{
		GUID:        strings.TrimSpace(guid),
		Title:       title,
		Link:        strings.TrimSpace(link),
		Summary:     textutil.CleanText(summary),
		PublishedAt: published,
		Categories:  cats,
		Media:       []string{},
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

var dateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	time.RFC822Z,
	time.RFC822,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2 January 2006",
	"January 2, 2006",
}

// ParseDate parses the date formats seen across feeds. It returns nil when
// nothing matches; an unparseable date never blocks ingestion.
func ParseDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t
		}
	}
	if t, err := dateparse.ParseIn(raw, time.UTC); err == nil {
		t = t.UTC()
		return &t
	}
	return nil
}

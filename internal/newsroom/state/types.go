// Package state holds the pipeline's durable state: the source list, the
// append-only ingest log, the rewrite queue and the per-article files, all as
// JSON documents under one data directory.
package state

import (
	"time"

	"github.com/google/uuid"

	"github.com/RobinCoderZhao/newsroom/internal/newsroom/sources"
)

// Key joins a source id and a guid into the dedup key.
func Key(sourceID, guid string) string {
	return sourceID + "::" + guid
}

// LogEntry is the permanent record that (SourceID, GUID) has been seen.
type LogEntry struct {
	SourceID    string     `json:"sourceId"`
	SourceName  string     `json:"sourceName"`
	GUID        string     `json:"guid"`
	Title       string     `json:"title"`
	SourceURL   string     `json:"sourceUrl"`
	Summary     string     `json:"summary"`
	Categories  []string   `json:"categories"`
	Licence     string     `json:"licence"`
	ImagePolicy string     `json:"imagePolicy"`
	PublishedAt *time.Time `json:"publishedAt"`
	FetchedAt   time.Time  `json:"fetchedAt"`
}

func (e LogEntry) Key() string { return Key(e.SourceID, e.GUID) }

// NewLogEntry derives a log entry from a fetched entry.
func NewLogEntry(src sources.Source, e sources.Entry, fetchedAt time.Time) LogEntry {
	cats := e.Categories
	if cats == nil {
		cats = []string{}
	}
	return LogEntry{
		SourceID:    src.ID,
		SourceName:  src.Name,
		GUID:        e.GUID,
		Title:       e.Title,
		SourceURL:   e.Link,
		Summary:     e.Summary,
		Categories:  cats,
		Licence:     src.Licence,
		ImagePolicy: src.ImagePolicy,
		PublishedAt: e.PublishedAt,
		FetchedAt:   fetchedAt.UTC(),
	}
}

// QueueStatus is the rewrite state of a queue item.
type QueueStatus string

const (
	StatusNew       QueueStatus = "new"
	StatusRewritten QueueStatus = "rewritten"
	// StatusFailed is terminal: the item exhausted its rewrite attempts.
	StatusFailed QueueStatus = "failed"
)

// QueueItem is one unit of rewrite work. Status only moves from new to
// rewritten or from new to failed; items are never removed or reordered.
type QueueItem struct {
	ID          string      `json:"id"`
	SourceID    string      `json:"sourceId"`
	GUID        string      `json:"guid"`
	Title       string      `json:"title"`
	SourceURL   string      `json:"sourceUrl"`
	Summary     string      `json:"summary"`
	Categories  []string    `json:"categories"`
	Licence     string      `json:"licence"`
	ImagePolicy string      `json:"imagePolicy"`
	PublishedAt *time.Time  `json:"publishedAt"`
	FetchedAt   time.Time   `json:"fetchedAt"`
	Status      QueueStatus `json:"status"`

	Attempts  int        `json:"attempts,omitempty"`
	LastError string     `json:"lastError,omitempty"`
	FailedAt  *time.Time `json:"failedAt,omitempty"`

	ArticleSlug string     `json:"articleSlug,omitempty"`
	ArticlePath string     `json:"articlePath,omitempty"`
	RewrittenAt *time.Time `json:"rewrittenAt,omitempty"`
}

func (q QueueItem) Key() string { return Key(q.SourceID, q.GUID) }

// NewQueueItem creates a queue item in status new from a log entry.
func NewQueueItem(e LogEntry) QueueItem {
	return QueueItem{
		ID:          uuid.NewString(),
		SourceID:    e.SourceID,
		GUID:        e.GUID,
		Title:       e.Title,
		SourceURL:   e.SourceURL,
		Summary:     e.Summary,
		Categories:  e.Categories,
		Licence:     e.Licence,
		ImagePolicy: e.ImagePolicy,
		PublishedAt: e.PublishedAt,
		FetchedAt:   e.FetchedAt,
		Status:      StatusNew,
	}
}

// MarkRewritten records a successful rewrite. It returns false when the item
// is not in status new.
func (q *QueueItem) MarkRewritten(slug, path string, at time.Time) bool {
	if q.Status != StatusNew {
		return false
	}
	at = at.UTC()
	q.Status = StatusRewritten
	q.ArticleSlug = slug
	q.ArticlePath = path
	q.RewrittenAt = &at
	q.LastError = ""
	return true
}

// RecordFailure counts a failed attempt. Once attempts reach maxAttempts the
// item moves to StatusFailed and RecordFailure reports true. maxAttempts <= 0
// means retry forever.
func (q *QueueItem) RecordFailure(err error, maxAttempts int, at time.Time) (deadLettered bool) {
	if q.Status != StatusNew {
		return false
	}
	q.Attempts++
	if err != nil {
		q.LastError = err.Error()
	}
	if maxAttempts > 0 && q.Attempts >= maxAttempts {
		at = at.UTC()
		q.Status = StatusFailed
		q.FailedAt = &at
		return true
	}
	return false
}

// Pending returns up to limit items in status new, in queue order, as
// pointers into queue. limit <= 0 returns all of them.
func Pending(queue []QueueItem, limit int) []*QueueItem {
	var out []*QueueItem
	for i := range queue {
		if queue[i].Status != StatusNew {
			continue
		}
		out = append(out, &queue[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// CountByStatus tallies queue items per status.
func CountByStatus(queue []QueueItem) map[QueueStatus]int {
	counts := make(map[QueueStatus]int, 3)
	for _, q := range queue {
		counts[q.Status]++
	}
	return counts
}

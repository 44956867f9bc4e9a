// Package index keeps a SQLite read model of the published articles and of
// pipeline runs. The article JSON files remain the source of truth; the index
// can always be rebuilt from them with Reindex.
package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/RobinCoderZhao/newsroom/internal/newsroom/articles"
	"github.com/RobinCoderZhao/newsroom/pkg/storage"
)

// Schema is the SQLite schema for the article index.
const Schema = `
CREATE TABLE IF NOT EXISTS articles (
    slug         TEXT PRIMARY KEY,
    title        TEXT NOT NULL,
    path         TEXT NOT NULL,
    summary      TEXT NOT NULL DEFAULT '',
    word_count   INTEGER NOT NULL DEFAULT 0,
    source_id    TEXT NOT NULL DEFAULT '',
    source_url   TEXT NOT NULL DEFAULT '',
    book_ids     TEXT NOT NULL DEFAULT '',
    published_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    stage       TEXT NOT NULL,
    started_at  TEXT NOT NULL,
    finished_at TEXT NOT NULL,
    attempted   INTEGER NOT NULL DEFAULT 0,
    produced    INTEGER NOT NULL DEFAULT 0,
    failed      INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_articles_published ON articles(published_at);
CREATE INDEX IF NOT EXISTS idx_runs_stage ON runs(stage, started_at);
`

// ErrNotFound is returned when a slug is not indexed.
var ErrNotFound = errors.New("article not indexed")

// timeLayout has fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Article is one indexed article.
type Article struct {
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Path        string    `json:"path"`
	Summary     string    `json:"summary"`
	WordCount   int       `json:"wordCount"`
	SourceID    string    `json:"sourceId"`
	SourceURL   string    `json:"sourceUrl"`
	BookIDs     []string  `json:"bookIds"`
	PublishedAt time.Time `json:"publishedAt"`
}

// FromRecord flattens an Article Record stored at path.
func FromRecord(path string, rec articles.Record) Article {
	a := Article{
		Slug:        rec.Slug,
		Title:       rec.Title,
		Path:        path,
		Summary:     rec.Summary,
		WordCount:   rec.WordCount,
		BookIDs:     make([]string, 0, len(rec.RelatedBooks)),
		PublishedAt: rec.PublishedAt,
	}
	if a.PublishedAt.IsZero() {
		a.PublishedAt = rec.CreatedAt
	}
	if len(rec.SourceReferences) > 0 {
		a.SourceID = rec.SourceReferences[0].SourceID
		a.SourceURL = rec.SourceReferences[0].SourceURL
	}
	for _, b := range rec.RelatedBooks {
		a.BookIDs = append(a.BookIDs, b.BookID)
	}
	return a
}

// Index is the article and run index.
type Index struct {
	db *storage.DB
}

// Open opens the index database and applies the schema.
func Open(ctx context.Context, cfg storage.Config) (*Index, error) {
	db, err := storage.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx, Schema); err != nil {
		db.Close()
		return nil, err
	}
	return &Index{db: db}, nil
}

// Close closes the database.
func (ix *Index) Close() error {
	return ix.db.Close()
}

const upsertArticleSQL = `
INSERT INTO articles (slug, title, path, summary, word_count, source_id, source_url, book_ids, published_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(slug) DO UPDATE SET
    title = excluded.title,
    path = excluded.path,
    summary = excluded.summary,
    word_count = excluded.word_count,
    source_id = excluded.source_id,
    source_url = excluded.source_url,
    book_ids = excluded.book_ids,
    published_at = excluded.published_at`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsert(ctx context.Context, db execer, a Article) error {
	_, err := db.ExecContext(ctx, upsertArticleSQL,
		a.Slug, a.Title, a.Path, a.Summary, a.WordCount, a.SourceID, a.SourceURL,
		strings.Join(a.BookIDs, ","), a.PublishedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("upsert article %s: %w", a.Slug, err)
	}
	return nil
}

// UpsertArticle inserts or replaces the row for a.Slug.
func (ix *Index) UpsertArticle(ctx context.Context, a Article) error {
	return upsert(ctx, ix.db, a)
}

const articleColumns = `slug, title, path, summary, word_count, source_id, source_url, book_ids, published_at`

// ListArticles returns articles newest first. limit <= 0 means no limit.
func (ix *Index) ListArticles(ctx context.Context, limit, offset int) ([]Article, error) {
	if limit <= 0 {
		limit = -1
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := ix.db.QueryContext(ctx,
		`SELECT `+articleColumns+` FROM articles ORDER BY published_at DESC, slug DESC LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	var out []Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetArticle returns the indexed row for slug.
func (ix *Index) GetArticle(ctx context.Context, slug string) (Article, error) {
	row := ix.db.QueryRowContext(ctx, `SELECT `+articleColumns+` FROM articles WHERE slug = ?`, slug)
	a, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Article{}, ErrNotFound
	}
	return a, err
}

// CountArticles returns the number of indexed articles.
func (ix *Index) CountArticles(ctx context.Context) (int, error) {
	var n int
	if err := ix.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM articles`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count articles: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanArticle(s scanner) (Article, error) {
	var a Article
	var books, published string
	if err := s.Scan(&a.Slug, &a.Title, &a.Path, &a.Summary, &a.WordCount,
		&a.SourceID, &a.SourceURL, &books, &published); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return a, err
		}
		return a, fmt.Errorf("scan article: %w", err)
	}
	a.BookIDs = []string{}
	if books != "" {
		a.BookIDs = strings.Split(books, ",")
	}
	t, err := time.Parse(timeLayout, published)
	if err != nil {
		return a, fmt.Errorf("parse published_at for %s: %w", a.Slug, err)
	}
	a.PublishedAt = t
	return a, nil
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RobinCoderZhao/newsroom/internal/newsroom/articles"
	"github.com/RobinCoderZhao/newsroom/internal/newsroom/index"
)

type fakeIndex struct {
	articles []index.Article
	err      error
	gotLimit int
	gotOff   int
}

func (f *fakeIndex) ListArticles(_ context.Context, limit, offset int) ([]index.Article, error) {
	f.gotLimit, f.gotOff = limit, offset
	if f.err != nil {
		return nil, f.err
	}
	end := offset + limit
	if end > len(f.articles) {
		end = len(f.articles)
	}
	if offset > end {
		return nil, nil
	}
	return f.articles[offset:end], nil
}

func (f *fakeIndex) CountArticles(context.Context) (int, error) {
	return len(f.articles), f.err
}

func newTestServer(t *testing.T, ix *fakeIndex) (*Server, string) {
	t.Helper()
	root := t.TempDir()
	created := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)
	_, err := articles.NewWriter(root).Write(articles.Record{
		Slug:        "2024-03-05-wick-runway",
		Title:       "Wick runway",
		Sections:    []articles.Section{{Heading: "h", Content: "c"}},
		Status:      articles.StatusPublished,
		CreatedAt:   created,
		PublishedAt: created,
	})
	require.NoError(t, err)

	srv := New(ix, articles.NewAccessor(root), Config{
		SiteURL:   "https://www.aviationhistorybooks.co.uk/",
		FeedTitle: "Newsroom",
	}, nil)
	return srv, root
}

func sampleIndex() *fakeIndex {
	return &fakeIndex{articles: []index.Article{
		{Slug: "2024-03-05-wick-runway", Title: "Wick runway", Summary: "Resurfacing", PublishedAt: time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)},
		{Slug: "2024-03-04-kirkwall", Title: "Kirkwall <numbers>", Summary: "Up 5%", PublishedAt: time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)},
	}}
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestListNews(t *testing.T) {
	ix := sampleIndex()
	srv, _ := newTestServer(t, ix)

	rec := get(t, srv.Handler(), "/api/news?limit=1&offset=1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body listResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Total)
	require.Len(t, body.Articles, 1)
	assert.Equal(t, "2024-03-04-kirkwall", body.Articles[0].Slug)

	get(t, srv.Handler(), "/api/news?limit=1000")
	assert.Equal(t, maxPageSize, ix.gotLimit)

	assert.Equal(t, http.StatusBadRequest, get(t, srv.Handler(), "/api/news?limit=abc").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, srv.Handler(), "/api/news?offset=-1").Code)
}

func TestListNews_EmptyIsArray(t *testing.T) {
	srv, _ := newTestServer(t, &fakeIndex{})
	rec := get(t, srv.Handler(), "/api/news")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"articles":[]`)
}

func TestListNews_IndexError(t *testing.T) {
	srv, _ := newTestServer(t, &fakeIndex{err: errors.New("db locked")})
	rec := get(t, srv.Handler(), "/api/news")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "db locked")
}

func TestGetNews(t *testing.T) {
	srv, _ := newTestServer(t, sampleIndex())

	rec := get(t, srv.Handler(), "/api/news/2024-03-05-wick-runway")
	require.Equal(t, http.StatusOK, rec.Code)
	var got articles.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Wick runway", got.Title)

	assert.Equal(t, http.StatusNotFound, get(t, srv.Handler(), "/api/news/2024-03-06-nothing").Code)
	assert.Equal(t, http.StatusNotFound, get(t, srv.Handler(), "/api/news/undated").Code)
}

func TestFeed(t *testing.T) {
	srv, _ := newTestServer(t, sampleIndex())

	rec := get(t, srv.Handler(), "/news/feed.xml")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "application/rss+xml"))

	body := rec.Body.String()
	assert.Contains(t, body, "<rss")
	assert.Contains(t, body, "https://www.aviationhistorybooks.co.uk/news/2024-03-05-wick-runway")
	assert.Contains(t, body, "Kirkwall &lt;numbers&gt;")
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, &fakeIndex{})
	rec := get(t, srv.Handler(), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestBuildFeed_Empty(t *testing.T) {
	rss, err := BuildFeed(nil, Config{SiteURL: "https://x", FeedTitle: "T"}, time.Now())
	require.NoError(t, err)
	assert.Contains(t, rss, "<title>T</title>")
}

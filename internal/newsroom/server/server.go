// Package server exposes published articles read-only over HTTP for the web
// front end: a JSON list and detail API, an RSS feed and a health check.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/RobinCoderZhao/newsroom/internal/newsroom/articles"
	"github.com/RobinCoderZhao/newsroom/internal/newsroom/index"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ArticleIndex lists indexed articles. *index.Index satisfies it.
type ArticleIndex interface {
	ListArticles(ctx context.Context, limit, offset int) ([]index.Article, error)
	CountArticles(ctx context.Context) (int, error)
}

// ArticleStore loads a full article. *articles.Accessor satisfies it.
type ArticleStore interface {
	Get(slug string) (articles.Record, error)
}

// Config holds the server settings.
type Config struct {
	SiteURL         string
	FeedTitle       string
	FeedDescription string
	RequestTimeout  time.Duration
}

// Server holds the dependencies for the read API.
type Server struct {
	index    ArticleIndex
	articles ArticleStore
	cfg      Config
	router   *chi.Mux
	logger   *slog.Logger
}

// New creates a server and registers its routes.
func New(ix ArticleIndex, store ArticleStore, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.FeedTitle == "" {
		cfg.FeedTitle = "Aviation Newsroom"
	}
	cfg.SiteURL = strings.TrimRight(cfg.SiteURL, "/")

	s := &Server{
		index:    ix,
		articles: store,
		cfg:      cfg,
		router:   chi.NewRouter(),
		logger:   logger,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(s.cfg.RequestTimeout))

	s.router.Get("/api/news", s.handleListNews())
	s.router.Get("/api/news/{slug}", s.handleGetNews())
	s.router.Get("/news/feed.xml", s.handleFeed())
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

// Handler returns the configured router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		s.logger.Info("server stopped")
		return nil
	}
}

type listResponse struct {
	Articles []index.Article `json:"articles"`
	Total    int             `json:"total"`
	Limit    int             `json:"limit"`
	Offset   int             `json:"offset"`
}

func (s *Server) handleListNews() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := queryInt(r, "limit", defaultPageSize)
		if err != nil || limit <= 0 {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		if limit > maxPageSize {
			limit = maxPageSize
		}
		offset, err := queryInt(r, "offset", 0)
		if err != nil || offset < 0 {
			respondError(w, http.StatusBadRequest, "invalid offset")
			return
		}

		list, err := s.index.ListArticles(r.Context(), limit, offset)
		if err != nil {
			s.logger.Error("list articles", "error", err)
			respondError(w, http.StatusInternalServerError, "could not list articles")
			return
		}
		total, err := s.index.CountArticles(r.Context())
		if err != nil {
			s.logger.Error("count articles", "error", err)
			respondError(w, http.StatusInternalServerError, "could not count articles")
			return
		}
		if list == nil {
			list = []index.Article{}
		}
		respondJSON(w, http.StatusOK, listResponse{Articles: list, Total: total, Limit: limit, Offset: offset})
	}
}

func (s *Server) handleGetNews() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "slug")
		rec, err := s.articles.Get(slug)
		if errors.Is(err, articles.ErrNotFound) {
			respondError(w, http.StatusNotFound, "article not found")
			return
		}
		if err != nil {
			s.logger.Error("load article", "slug", slug, "error", err)
			respondError(w, http.StatusInternalServerError, "could not load article")
			return
		}
		respondJSON(w, http.StatusOK, rec)
	}
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/feeds"

	"github.com/RobinCoderZhao/newsroom/internal/newsroom/index"
)

// ArticleURL is the public page of an article on the site.
func ArticleURL(siteURL, slug string) string {
	return siteURL + "/news/" + slug
}

// BuildFeed renders the newest articles as RSS 2.0.
func BuildFeed(list []index.Article, cfg Config, now time.Time) (string, error) {
	feed := &feeds.Feed{
		Title:       cfg.FeedTitle,
		Link:        &feeds.Link{Href: cfg.SiteURL + "/news"},
		Description: cfg.FeedDescription,
		Created:     now,
	}
	if len(list) > 0 {
		feed.Updated = list[0].PublishedAt
	}

	feed.Items = make([]*feeds.Item, 0, len(list))
	for _, a := range list {
		link := ArticleURL(cfg.SiteURL, a.Slug)
		feed.Items = append(feed.Items, &feeds.Item{
			Title:       a.Title,
			Link:        &feeds.Link{Href: link},
			Id:          link,
			Description: a.Summary,
			Created:     a.PublishedAt,
		})
	}

	rss, err := feed.ToRss()
	if err != nil {
		return "", fmt.Errorf("generate RSS: %w", err)
	}
	return rss, nil
}

func (s *Server) handleFeed() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := s.index.ListArticles(r.Context(), defaultPageSize, 0)
		if err != nil {
			s.logger.Error("list articles for feed", "error", err)
			http.Error(w, "could not build feed", http.StatusInternalServerError)
			return
		}
		rss, err := BuildFeed(list, s.cfg, time.Now())
		if err != nil {
			s.logger.Error("build feed", "error", err)
			http.Error(w, "could not build feed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
		_, _ = w.Write([]byte(rss))
	}
}

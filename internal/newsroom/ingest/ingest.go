// Package ingest runs one ingestion pass: fetch every enabled source, drop
// entries already in the ingest log, and append the rest to the log and the
// rewrite queue.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/RobinCoderZhao/newsroom/internal/newsroom/sources"
	"github.com/RobinCoderZhao/newsroom/internal/newsroom/state"
)

// ErrNoSources is returned when the source configuration is empty.
var ErrNoSources = errors.New("no sources configured")

// Store is the part of state.Store the coordinator needs.
type Store interface {
	LoadSources() ([]sources.Source, error)
	LoadLog() ([]state.LogEntry, error)
	LoadQueue() ([]state.QueueItem, error)
	SaveLog([]state.LogEntry) error
	SaveQueue([]state.QueueItem) error
	Lock(ctx context.Context) (*state.Lock, error)
}

// Fetcher returns the entries of one source. *sources.Registry satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, src sources.Source) ([]sources.Entry, error)
}

// Result summarises one run.
type Result struct {
	StartedAt     time.Time
	FinishedAt    time.Time
	Attempted     int
	Failed        map[string]string
	NewLogEntries int
	NewQueueItems int
	Duplicates    int
	MissingGUID   int
}

// Coordinator orchestrates an ingestion pass.
type Coordinator struct {
	store   Store
	fetcher Fetcher
	logger  *slog.Logger
	now     func() time.Time
	// SourceTimeout bounds each source fetch; zero means no per-source bound.
	SourceTimeout time.Duration
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// WithClock sets the time source for fetchedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithSourceTimeout bounds each source fetch.
func WithSourceTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.SourceTimeout = d }
}

// NewCoordinator creates an ingestion coordinator.
func NewCoordinator(store Store, fetcher Fetcher, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:   store,
		fetcher: fetcher,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run performs one pass. Only configuration and state I/O errors are
// returned; a failing source is logged, recorded in Result.Failed and skipped.
func (c *Coordinator) Run(ctx context.Context) (Result, error) {
	res := Result{StartedAt: c.now(), Failed: map[string]string{}}

	lock, err := c.store.Lock(ctx)
	if err != nil {
		return res, err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			c.logger.Warn("release lock", "error", err)
		}
	}()

	srcs, err := c.store.LoadSources()
	if err != nil {
		return res, fmt.Errorf("load sources: %w", err)
	}
	if len(srcs) == 0 {
		return res, ErrNoSources
	}
	log, err := c.store.LoadLog()
	if err != nil {
		return res, fmt.Errorf("load ingest log: %w", err)
	}
	queue, err := c.store.LoadQueue()
	if err != nil {
		return res, fmt.Errorf("load queue: %w", err)
	}

	seen := state.LogDedup(log)
	queued := state.QueueDedup(queue)

	for _, src := range srcs {
		if !src.Enabled {
			continue
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Attempted++

		entries, err := c.fetch(ctx, src)
		if err != nil {
			c.logger.Error("source failed", "source", src.ID, "mode", src.Mode, "error", err)
			res.Failed[src.ID] = err.Error()
			continue
		}

		fetchedAt := c.now()
		added := 0
		for _, e := range entries {
			if e.GUID == "" {
				res.MissingGUID++
				continue
			}
			key := state.Key(src.ID, e.GUID)
			if seen.Has(key) {
				res.Duplicates++
				continue
			}

			entry := state.NewLogEntry(src, e, fetchedAt)
			log = append(log, entry)
			seen.Add(key)
			res.NewLogEntries++
			added++

			if !queued.Has(key) {
				queue = append(queue, state.NewQueueItem(entry))
				queued.Add(key)
				res.NewQueueItems++
			}
		}
		c.logger.Info("source fetched", "source", src.ID, "entries", len(entries), "new", added)
	}

	if res.NewLogEntries > 0 {
		if err := c.store.SaveLog(log); err != nil {
			return res, fmt.Errorf("save ingest log: %w", err)
		}
		if err := c.store.SaveQueue(queue); err != nil {
			return res, fmt.Errorf("save queue: %w", err)
		}
	}

	res.FinishedAt = c.now()
	c.logger.Info("ingest complete",
		"sources", res.Attempted,
		"failed", len(res.Failed),
		"new_log_entries", res.NewLogEntries,
		"new_queue_items", res.NewQueueItems,
		"duration", res.FinishedAt.Sub(res.StartedAt),
	)
	return res, nil
}

func (c *Coordinator) fetch(ctx context.Context, src sources.Source) ([]sources.Entry, error) {
	if c.SourceTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.SourceTimeout)
		defer cancel()
	}
	return c.fetcher.Fetch(ctx, src)
}

// Package rewrite turns queued feed items into published Article Records by
// way of a chat completion model.
package rewrite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/RobinCoderZhao/newsroom/internal/newsroom/articles"
	"github.com/RobinCoderZhao/newsroom/internal/newsroom/state"
	"github.com/RobinCoderZhao/newsroom/internal/newsroom/tiein"
	"github.com/RobinCoderZhao/newsroom/pkg/llm"
	"github.com/RobinCoderZhao/newsroom/pkg/notify"
	"github.com/RobinCoderZhao/newsroom/pkg/textutil"
)

// ErrNoCredential means rewriting is disabled because no API key is set.
var ErrNoCredential = errors.New("no completion API credential configured")

const (
	DefaultBatchSize   = 2
	DefaultMaxAttempts = 5
	DefaultMaxTokens   = 1200
)

// Keywords is the tag set attached to every article; the first is primary.
var Keywords = []string{
	"aviation news",
	"scottish aviation history",
	"aviation history books",
}

// Store is the part of state.Store the coordinator needs.
type Store interface {
	LoadQueue() ([]state.QueueItem, error)
	SaveQueue([]state.QueueItem) error
	Lock(ctx context.Context) (*state.Lock, error)
}

// Writer stores article records. *articles.Writer satisfies it.
type Writer interface {
	Write(rec articles.Record) (string, error)
	Exists(rel string) bool
}

// Notifier delivers operator messages. *notify.Dispatcher satisfies it.
type Notifier interface {
	Notify(ctx context.Context, msg notify.Message) error
}

// Result summarises one rewrite run.
type Result struct {
	StartedAt    time.Time
	FinishedAt   time.Time
	Attempted    int
	Rewritten    int
	Failed       int
	DeadLettered int
	Slugs        []string
	Paths        []string
	TokensIn     int
	TokensOut    int
	Cost         float64
}

// Coordinator drains a bounded batch of the queue through the model.
type Coordinator struct {
	store          Store
	client         llm.Client
	writer         Writer
	postProcessors []articles.PostProcessor
	notifier       Notifier
	limiter        *rate.Limiter
	batchSize      int
	maxAttempts    int
	maxTokens      int
	logger         *slog.Logger
	now            func() time.Time
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithBatchSize caps how many new items one run takes.
func WithBatchSize(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// WithMaxAttempts sets how many failures move an item to failed. Zero or
// less retries forever.
func WithMaxAttempts(n int) Option {
	return func(c *Coordinator) { c.maxAttempts = n }
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// WithRate paces completion calls to r per second. r <= 0 disables pacing.
func WithRate(r float64) Option {
	return func(c *Coordinator) {
		if r > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(r), 1)
		} else {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
		}
	}
}

// WithPostProcessors adds steps run over the articles produced by a run.
func WithPostProcessors(p ...articles.PostProcessor) Option {
	return func(c *Coordinator) { c.postProcessors = append(c.postProcessors, p...) }
}

// WithNotifier sets the operator alert channel.
func WithNotifier(n Notifier) Option {
	return func(c *Coordinator) { c.notifier = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// WithClock sets the time source for slugs and timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// NewCoordinator creates a rewrite coordinator. A nil client makes Run
// return ErrNoCredential.
func NewCoordinator(store Store, client llm.Client, writer Writer, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:       store,
		client:      client,
		writer:      writer,
		limiter:     rate.NewLimiter(rate.Inf, 1),
		batchSize:   DefaultBatchSize,
		maxAttempts: DefaultMaxAttempts,
		maxTokens:   DefaultMaxTokens,
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run rewrites up to the batch size of new queue items, one at a time, and
// saves the queue once at the end. Per-item failures are counted on the item
// and never returned.
func (c *Coordinator) Run(ctx context.Context) (Result, error) {
	res := Result{StartedAt: c.now()}
	if c.client == nil {
		return res, ErrNoCredential
	}

	lock, err := c.store.Lock(ctx)
	if err != nil {
		return res, err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			c.logger.Warn("release lock", "error", err)
		}
	}()

	queue, err := c.store.LoadQueue()
	if err != nil {
		return res, fmt.Errorf("load queue: %w", err)
	}

	batch := state.Pending(queue, c.batchSize)
	if len(batch) == 0 {
		c.logger.Info("queue has no new items")
		res.FinishedAt = c.now()
		return res, nil
	}

	for _, item := range batch {
		if ctx.Err() != nil {
			break
		}
		res.Attempted++

		slug, path, resp, err := c.rewriteItem(ctx, item)
		if resp != nil {
			res.TokensIn += resp.TokensIn
			res.TokensOut += resp.TokensOut
			res.Cost += resp.Cost
		}
		if err != nil {
			res.Failed++
			if item.RecordFailure(err, c.maxAttempts, c.now()) {
				res.DeadLettered++
				c.logger.Error("queue item dead-lettered", "id", item.ID, "source", item.SourceID, "attempts", item.Attempts, "error", err)
				c.alert(ctx, item)
			} else {
				c.logger.Error("rewrite failed", "id", item.ID, "source", item.SourceID, "attempts", item.Attempts, "error", err)
			}
			continue
		}

		item.MarkRewritten(slug, path, c.now())
		res.Rewritten++
		res.Slugs = append(res.Slugs, slug)
		res.Paths = append(res.Paths, path)
		c.logger.Info("article written", "slug", slug, "path", path)
	}

	// Saved once per batch: a crash before this line leaves written
	// articles whose items are still new.
	if err := c.store.SaveQueue(queue); err != nil {
		return res, fmt.Errorf("save queue: %w", err)
	}

	if res.Rewritten > 0 {
		c.postProcess(ctx, res.Paths)
	}

	res.FinishedAt = c.now()
	c.logger.Info("rewrite complete",
		"attempted", res.Attempted,
		"rewritten", res.Rewritten,
		"failed", res.Failed,
		"dead_lettered", res.DeadLettered,
		"tokens", res.TokensIn+res.TokensOut,
		"cost", fmt.Sprintf("$%.4f", res.Cost),
	)
	c.summarise(ctx, res)
	return res, nil
}

func (c *Coordinator) rewriteItem(ctx context.Context, item *state.QueueItem) (string, string, *llm.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", "", nil, fmt.Errorf("wait for rate limiter: %w", err)
	}

	var d draft
	resp, err := c.client.GenerateJSON(ctx, buildRequest(item, c.maxTokens), &d)
	if err != nil {
		return "", "", resp, fmt.Errorf("completion: %w", err)
	}

	rec, err := c.buildRecord(item, d)
	if err != nil {
		return "", "", resp, err
	}

	rel, err := c.writer.Write(rec)
	if err != nil {
		return "", "", resp, err
	}
	return rec.Slug, rel, resp, nil
}

func (c *Coordinator) buildRecord(item *state.QueueItem, d draft) (articles.Record, error) {
	sections := make([]articles.Section, 0, len(d.Sections))
	words := 0
	for _, s := range d.Sections {
		content := strings.TrimSpace(s.Content)
		if content == "" {
			continue
		}
		words += textutil.WordCount(content)
		sections = append(sections, articles.Section{Heading: strings.TrimSpace(s.Heading), Content: content})
	}
	if len(sections) == 0 {
		return articles.Record{}, fmt.Errorf("model output has no section content")
	}

	title := strings.TrimSpace(d.Title)
	if title == "" {
		title = item.Title
	}
	summary := strings.TrimSpace(d.Summary)
	if summary == "" {
		summary = item.Summary
	}

	created := c.now().UTC()
	slug := c.uniqueSlug(created, MakeSlug(created, title))

	return articles.Record{
		Slug:      slug,
		Title:     title,
		Summary:   summary,
		WordCount: words,
		Sections:  sections,
		Images:    []string{},
		SourceReferences: []articles.SourceReference{{
			SourceID:     item.SourceID,
			SourceURL:    item.SourceURL,
			CitationText: citation(item),
		}},
		RelatedBooks: tiein.Resolve(strings.ToLower(item.Title + " " + item.Summary)),
		Keywords:     keywords(),
		Status:       articles.StatusPublished,
		CreatedAt:    created,
		PublishedAt:  created,
	}, nil
}

// uniqueSlug appends -2, -3, ... while a file for the slug already exists.
func (c *Coordinator) uniqueSlug(created time.Time, slug string) string {
	candidate := slug
	for n := 2; c.writer.Exists(articles.PathFor(created, candidate)); n++ {
		candidate = slug + "-" + strconv.Itoa(n)
	}
	return candidate
}

func citation(item *state.QueueItem) string {
	if item.PublishedAt != nil {
		return fmt.Sprintf("Based on \"%s\" (%s, %s)", item.Title, item.SourceID, item.PublishedAt.Format("2 January 2006"))
	}
	return fmt.Sprintf("Based on \"%s\" (%s)", item.Title, item.SourceID)
}

func keywords() []articles.Keyword {
	out := make([]articles.Keyword, len(Keywords))
	for i, k := range Keywords {
		out[i] = articles.Keyword{Keyword: k, Primary: i == 0}
	}
	return out
}

func (c *Coordinator) postProcess(ctx context.Context, paths []string) {
	for _, p := range c.postProcessors {
		if err := p.Process(ctx, paths); err != nil {
			c.logger.Error("post-processing failed", "processor", fmt.Sprintf("%T", p), "error", err)
		}
	}
}

func (c *Coordinator) alert(ctx context.Context, item *state.QueueItem) {
	if c.notifier == nil {
		return
	}
	msg := notify.Message{
		Title: "Newsroom item dead-lettered",
		Body:  fmt.Sprintf("%s from %s failed %d times and will not be retried.\nLast error: %s",
			item.Title, item.SourceID, item.Attempts, item.LastError),
		Level:  notify.LevelAlert,
		Event:  notify.EventDeadLetter,
		URL:    item.SourceURL,
		Fields: map[string]string{
			"queueItemId": item.ID,
			"sourceId":    item.SourceID,
			"guid":        item.GUID,
			"attempts":    strconv.Itoa(item.Attempts),
			"lastError":   item.LastError,
		},
	}
	if err := c.notifier.Notify(ctx, msg); err != nil {
		c.logger.Warn("send alert", "error", err)
	}
}

func (c *Coordinator) summarise(ctx context.Context, res Result) {
	if c.notifier == nil || res.Rewritten == 0 {
		return
	}
	msg := notify.Message{
		Title:  fmt.Sprintf("Newsroom published %d article(s)", res.Rewritten),
		Body:   strings.Join(res.Slugs, "\n"),
		Level:  notify.LevelInfo,
		Event:  notify.EventRunSummary,
		Fields: map[string]string{
			"rewritten": strconv.Itoa(res.Rewritten),
			"failed":    strconv.Itoa(res.Failed),
		},
	}
	if err := c.notifier.Notify(ctx, msg); err != nil {
		c.logger.Warn("send summary", "error", err)
	}
}

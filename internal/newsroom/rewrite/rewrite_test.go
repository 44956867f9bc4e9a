package rewrite

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/RobinCoderZhao/newsroom/internal/newsroom/articles"
	"github.com/RobinCoderZhao/newsroom/internal/newsroom/state"
	"github.com/RobinCoderZhao/newsroom/pkg/llm"
	"github.com/RobinCoderZhao/newsroom/pkg/notify"
)

// scriptedClient answers GenerateJSON from a queue of canned replies.
type scriptedClient struct {
	mu       sync.Mutex
	replies  []string
	errs     []error
	requests []*llm.Request
}

func (c *scriptedClient) next() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var reply string
	var err error
	if len(c.replies) > 0 {
		reply, c.replies = c.replies[0], c.replies[1:]
	}
	if len(c.errs) > 0 {
		err, c.errs = c.errs[0], c.errs[1:]
	}
	return reply, err
}

func (c *scriptedClient) Generate(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	c.mu.Unlock()
	reply, err := c.next()
	if err != nil {
		return nil, err
	}
	return &llm.Response{Content: reply, TokensIn: 100, TokensOut: 50, Cost: 0.001}, nil
}

func (c *scriptedClient) GenerateJSON(ctx context.Context, req *llm.Request, out any) (*llm.Response, error) {
	resp, err := c.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(resp.Content), out); err != nil {
		return resp, err
	}
	return resp, nil
}

func (c *scriptedClient) Provider() llm.Provider { return "scripted" }
func (c *scriptedClient) Close() error           { return nil }

type recordingNotifier struct {
	messages []notify.Message
}

func (r *recordingNotifier) Notify(_ context.Context, msg notify.Message) error {
	r.messages = append(r.messages, msg)
	return nil
}

const goodReply = `{"title":"HIAL Announces Runway Upgrade at Wick","summary":"Resurfacing begins in spring.","sections":[{"heading":"The work","content":"The runway will be resurfaced."},{"heading":"Background","content":"Wick opened in 1939."}]}`

func queueItem(id, title, summary string) state.QueueItem {
	return state.QueueItem{
		ID:        id,
		SourceID:  "hial",
		GUID:      id,
		Title:     title,
		SourceURL: "https://www.hial.co.uk/news/" + id,
		Summary:   summary,
		Status:    state.StatusNew,
	}
}

type CoordinatorSuite struct {
	suite.Suite

	store    *state.Store
	writer   *articles.Writer
	client   *scriptedClient
	notifier *recordingNotifier
	now      time.Time
}

func TestCoordinatorSuite(t *testing.T) {
	suite.Run(t, new(CoordinatorSuite))
}

func (s *CoordinatorSuite) SetupTest() {
	s.store = state.NewStore(s.T().TempDir())
	s.writer = articles.NewWriter(s.store.ArticlesRoot())
	s.client = &scriptedClient{}
	s.notifier = &recordingNotifier{}
	s.now = time.Date(2024, 3, 5, 9, 15, 0, 0, time.UTC)
}

func (s *CoordinatorSuite) coordinator(opts ...Option) *Coordinator {
	base := []Option{
		WithClock(func() time.Time { return s.now }),
		WithNotifier(s.notifier),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	return NewCoordinator(s.store, s.client, s.writer, append(base, opts...)...)
}

func (s *CoordinatorSuite) TestRun_BatchCapLeavesRemainderNew() {
	s.Require().NoError(s.store.SaveQueue([]state.QueueItem{
		queueItem("a", "First", "one"),
		queueItem("b", "Second", "two"),
		queueItem("c", "Third", "three"),
	}))
	s.client.replies = []string{goodReply, `{"title":"Second story","sections":[{"heading":"h","content":"body text"}]}`}

	res, err := s.coordinator().Run(context.Background())
	s.Require().NoError(err)
	s.Equal(2, res.Attempted)
	s.Equal(2, res.Rewritten)
	s.Equal(200, res.TokensIn)

	queue, err := s.store.LoadQueue()
	s.Require().NoError(err)
	counts := state.CountByStatus(queue)
	s.Equal(1, counts[state.StatusNew])
	s.Equal(2, counts[state.StatusRewritten])
	s.Equal("c", queue[2].ID)
	s.Equal(state.StatusNew, queue[2].Status, "queue order decides the batch")
}

func (s *CoordinatorSuite) TestRun_WritesArticleRecord() {
	item := queueItem("wick", "Wick runway works", "Lossiemouth Typhoon squadron completes NATO exercise")
	s.Require().NoError(s.store.SaveQueue([]state.QueueItem{item}))
	s.client.replies = []string{goodReply}

	res, err := s.coordinator().Run(context.Background())
	s.Require().NoError(err)
	s.Require().Len(res.Slugs, 1)

	slug := res.Slugs[0]
	s.True(strings.HasPrefix(slug, "2024-03-05-"), slug)
	s.Equal("2024-03-05-hial-announces-runway-upgrade-at-wick", slug)

	rec, err := articles.NewAccessor(s.store.ArticlesRoot()).Get(slug)
	s.Require().NoError(err)
	s.Equal(9, rec.WordCount)
	s.Len(rec.Sections, 2)
	s.Equal([]string{}, rec.Images)
	s.Equal(articles.StatusPublished, rec.Status)
	s.Require().Len(rec.Keywords, 3)
	s.True(rec.Keywords[0].Primary)
	s.False(rec.Keywords[1].Primary || rec.Keywords[2].Primary)
	s.Require().Len(rec.SourceReferences, 1)
	s.Equal(item.SourceURL, rec.SourceReferences[0].SourceURL)

	var ids []string
	for _, b := range rec.RelatedBooks {
		ids = append(ids, b.BookID)
	}
	s.Contains(ids, "sabres-from-north")
	s.Contains(ids, "island-air-links")

	queue, err := s.store.LoadQueue()
	s.Require().NoError(err)
	s.Equal(state.StatusRewritten, queue[0].Status)
	s.Equal(slug, queue[0].ArticleSlug)
	s.Equal(res.Paths[0], queue[0].ArticlePath)
	s.NotNil(queue[0].RewrittenAt)

	s.Require().Len(s.notifier.messages, 1)
	s.Equal(notify.LevelInfo, s.notifier.messages[0].Level)
	s.Equal(notify.EventRunSummary, s.notifier.messages[0].Event)
}

func (s *CoordinatorSuite) TestRun_PromptCarriesSourceFacts() {
	s.Require().NoError(s.store.SaveQueue([]state.QueueItem{queueItem("p", "Barra beach landings", "Loganair Twin Otter schedule")}))
	s.client.replies = []string{goodReply}

	_, err := s.coordinator(WithMaxTokens(900)).Run(context.Background())
	s.Require().NoError(err)
	s.Require().Len(s.client.requests, 1)

	req := s.client.requests[0]
	s.True(req.JSONMode)
	s.Equal(900, req.MaxTokens)
	s.Contains(req.System, "Do not invent")
	s.Contains(req.Messages[0].Content, "Barra beach landings")
	s.Contains(req.Messages[0].Content, "Loganair Twin Otter schedule")
}

func (s *CoordinatorSuite) TestRun_FailureKeepsItemNewAndCounts() {
	s.Require().NoError(s.store.SaveQueue([]state.QueueItem{queueItem("x", "Broken", "")}))
	s.client.replies = []string{`{"title":"no sections"}`}

	res, err := s.coordinator().Run(context.Background())
	s.Require().NoError(err)
	s.Equal(1, res.Failed)
	s.Equal(0, res.Rewritten)

	queue, err := s.store.LoadQueue()
	s.Require().NoError(err)
	s.Equal(state.StatusNew, queue[0].Status)
	s.Equal(1, queue[0].Attempts)
	s.Contains(queue[0].LastError, "no section content")
	s.Empty(s.notifier.messages)
}

func (s *CoordinatorSuite) TestRun_DeadLetterAfterMaxAttempts() {
	s.Require().NoError(s.store.SaveQueue([]state.QueueItem{queueItem("x", "Always failing", "")}))

	for run := 1; run <= 3; run++ {
		s.client.errs = []error{&llm.APIError{StatusCode: 400, Body: `{"error":"bad"}`}}
		res, err := s.coordinator(WithMaxAttempts(3)).Run(context.Background())
		s.Require().NoError(err)
		s.Equal(run == 3, res.DeadLettered == 1, "run %d", run)
	}

	queue, err := s.store.LoadQueue()
	s.Require().NoError(err)
	s.Equal(state.StatusFailed, queue[0].Status)
	s.Equal(3, queue[0].Attempts)
	s.NotNil(queue[0].FailedAt)
	s.Contains(queue[0].LastError, "400")

	s.Require().Len(s.notifier.messages, 1)
	alert := s.notifier.messages[0]
	s.Equal(notify.LevelAlert, alert.Level)
	s.Equal(notify.EventDeadLetter, alert.Event)
	s.Equal(queue[0].ID, alert.Fields["queueItemId"])
	s.Equal("hial", alert.Fields["sourceId"])
	s.Equal("3", alert.Fields["attempts"])
	s.Contains(alert.Fields["lastError"], "400")

	// A failed item is no longer picked up.
	res, err := s.coordinator(WithMaxAttempts(3)).Run(context.Background())
	s.Require().NoError(err)
	s.Equal(0, res.Attempted)
}

func (s *CoordinatorSuite) TestRun_SlugCollisionGetsSuffix() {
	s.Require().NoError(s.store.SaveQueue([]state.QueueItem{
		queueItem("a", "Same", ""),
		queueItem("b", "Same", ""),
	}))
	s.client.replies = []string{goodReply, goodReply}

	res, err := s.coordinator().Run(context.Background())
	s.Require().NoError(err)
	s.Equal([]string{
		"2024-03-05-hial-announces-runway-upgrade-at-wick",
		"2024-03-05-hial-announces-runway-upgrade-at-wick-2",
	}, res.Slugs)
}

func (s *CoordinatorSuite) TestRun_PostProcessorsSeeProducedPaths() {
	s.Require().NoError(s.store.SaveQueue([]state.QueueItem{queueItem("a", "A", "")}))
	s.client.replies = []string{goodReply}

	var seen []string
	pp := articles.PostProcessorFunc(func(_ context.Context, paths []string) error {
		seen = paths
		return errors.New("index offline")
	})

	res, err := s.coordinator(WithPostProcessors(pp)).Run(context.Background())
	s.Require().NoError(err, "post-processing errors do not fail the run")
	s.Equal(res.Paths, seen)
}

func (s *CoordinatorSuite) TestRun_NoPostProcessingWithoutOutput() {
	called := false
	pp := articles.PostProcessorFunc(func(context.Context, []string) error {
		called = true
		return nil
	})
	_, err := s.coordinator(WithPostProcessors(pp)).Run(context.Background())
	s.Require().NoError(err)
	s.False(called)
}

func TestRun_NoCredential(t *testing.T) {
	store := state.NewStore(t.TempDir())
	c := NewCoordinator(store, nil, articles.NewWriter(store.ArticlesRoot()))
	_, err := c.Run(context.Background())
	assert.ErrorIs(t, err, ErrNoCredential)
}

func TestMakeSlug(t *testing.T) {
	day := time.Date(2024, 3, 5, 23, 59, 0, 0, time.UTC)
	tests := []struct {
		title string
		want  string
	}{
		{"HIAL Announces Runway Upgrade at Wick", "2024-03-05-hial-announces-runway-upgrade-at-wick"},
		{"?!...", "2024-03-05-aviation-news-update"},
		{"", "2024-03-05-aviation-news-update"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MakeSlug(day, tt.title))
		assert.Equal(t, MakeSlug(day, tt.title), MakeSlug(day, tt.title), "deterministic")
	}

	long := MakeSlug(day, strings.Repeat("spitfire ", 40))
	assert.LessOrEqual(t, len(long), len("2024-03-05-")+maxSlugTitle)
	assert.False(t, strings.HasSuffix(long, "-"))
}

func TestRun_AgainstCompletionAPI(t *testing.T) {
	var auth string
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&body)
		resp := map[string]any{
			"model":   "gpt-4o-mini",
			"choices": []map[string]any{{"message": map[string]string{"content": goodReply}, "finish_reason": "stop"}},
			"usage":   map[string]int{"prompt_tokens": 300, "completion_tokens": 120},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	cfg := llm.DefaultConfig()
	cfg.APIKey = "sk-test"
	cfg.BaseURL = srv.URL
	client, err := llm.NewClient(cfg)
	require.NoError(t, err)

	store := state.NewStore(t.TempDir())
	require.NoError(t, store.SaveQueue([]state.QueueItem{queueItem("a", "A", "")}))

	res, err := NewCoordinator(store, client, articles.NewWriter(store.ArticlesRoot()), WithRate(50)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Rewritten)
	assert.Equal(t, "Bearer sk-test", auth)
	assert.Equal(t, map[string]any{"type": "json_object"}, body["response_format"])
	assert.EqualValues(t, DefaultMaxTokens, body["max_tokens"])
	assert.Greater(t, res.Cost, 0.0)
}

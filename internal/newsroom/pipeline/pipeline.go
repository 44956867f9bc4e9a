// Package pipeline wires configuration into the stage coordinators, the
// article index and the read server, for use by the newsroom commands.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/RobinCoderZhao/newsroom/internal/newsroom/articles"
	"github.com/RobinCoderZhao/newsroom/internal/newsroom/config"
	"github.com/RobinCoderZhao/newsroom/internal/newsroom/index"
	"github.com/RobinCoderZhao/newsroom/internal/newsroom/ingest"
	"github.com/RobinCoderZhao/newsroom/internal/newsroom/rewrite"
	"github.com/RobinCoderZhao/newsroom/internal/newsroom/server"
	"github.com/RobinCoderZhao/newsroom/internal/newsroom/sources"
	"github.com/RobinCoderZhao/newsroom/internal/newsroom/state"
	"github.com/RobinCoderZhao/newsroom/pkg/llm"
	"github.com/RobinCoderZhao/newsroom/pkg/logging"
	"github.com/RobinCoderZhao/newsroom/pkg/notify"
	"github.com/RobinCoderZhao/newsroom/pkg/storage"
)

// Options are the flags shared by every command.
type Options struct {
	ConfigPath string
	DataDir    string
	EnvFile    string
}

// Pipeline holds the configured state store and logger.
type Pipeline struct {
	Config config.Config
	Store  *state.Store
	Logger *slog.Logger
}

// Setup loads .env (when present), the config file and the environment, and
// installs the logger.
func Setup(opts Options) (*Pipeline, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if opts.DataDir != "" {
		cfg.DataDir = opts.DataDir
	}
	return New(cfg, logging.New(cfg.LogLevel)), nil
}

// New builds a pipeline from an already loaded config.
func New(cfg config.Config, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		Config: cfg,
		Store:  state.NewStore(cfg.DataDir),
		Logger: logger,
	}
}

// WithRunTimeout derives the context for one stage run.
func (p *Pipeline) WithRunTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.Config.RunTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.Config.RunTimeout)
}

// Registry builds the source adapters around one paced fetcher.
func (p *Pipeline) Registry() *sources.Registry {
	return sources.DefaultRegistry(sources.NewFetcher(sources.FetcherOptions{
		UserAgent:         p.Config.Ingest.UserAgent,
		Timeout:           p.Config.Ingest.RequestTimeout,
		RequestsPerSecond: p.Config.Ingest.RequestRate,
	}))
}

// Accessor reads published articles.
func (p *Pipeline) Accessor() *articles.Accessor {
	return articles.NewAccessor(p.Store.ArticlesRoot())
}

// Notifier returns the configured operator channels.
func (p *Pipeline) Notifier() *notify.Dispatcher {
	return notify.FromConfig(p.Config.Notify)
}

// OpenIndex opens the SQLite article index.
func (p *Pipeline) OpenIndex(ctx context.Context) (*index.Index, error) {
	return index.Open(ctx, storage.Config{Path: p.Config.IndexPath()})
}

// Ingest runs one ingestion pass and records it in the index.
func (p *Pipeline) Ingest(ctx context.Context) (ingest.Result, error) {
	ctx, cancel := p.WithRunTimeout(ctx)
	defer cancel()

	coord := ingest.NewCoordinator(p.Store, p.Registry(),
		ingest.WithLogger(p.Logger),
		ingest.WithSourceTimeout(p.Config.Ingest.SourceTimeout),
	)
	res, err := coord.Run(ctx)
	if err != nil {
		return res, err
	}
	p.recordRun(ctx, index.Run{
		Stage:      index.StageIngest,
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
		Attempted:  res.Attempted,
		Produced:   res.NewQueueItems,
		Failed:     len(res.Failed),
	})
	return res, nil
}

// Rewrite runs one rewrite batch. It returns rewrite.ErrNoCredential, without
// touching state, when no API key is configured.
func (p *Pipeline) Rewrite(ctx context.Context) (rewrite.Result, error) {
	if !p.Config.RewriteEnabled() {
		return rewrite.Result{}, rewrite.ErrNoCredential
	}
	ctx, cancel := p.WithRunTimeout(ctx)
	defer cancel()

	client, err := llm.NewClient(p.Config.LLM)
	if err != nil {
		return rewrite.Result{}, fmt.Errorf("create LLM client: %w", err)
	}
	defer client.Close()

	root := p.Store.ArticlesRoot()
	post := []articles.PostProcessor{articles.NewNormalizer(root, p.Logger)}

	ix, err := p.OpenIndex(ctx)
	if err != nil {
		p.Logger.Warn("article index unavailable", "error", err)
	} else {
		defer ix.Close()
		post = append(post, index.NewIndexer(ix, articles.NewAccessor(root), p.Logger))
	}

	coord := rewrite.NewCoordinator(p.Store, client, articles.NewWriter(root),
		rewrite.WithBatchSize(p.Config.Rewrite.BatchSize),
		rewrite.WithMaxAttempts(p.Config.Rewrite.MaxAttempts),
		rewrite.WithMaxTokens(p.Config.LLM.MaxTokens),
		rewrite.WithRate(p.Config.Rewrite.RequestRate),
		rewrite.WithPostProcessors(post...),
		rewrite.WithNotifier(p.Notifier()),
		rewrite.WithLogger(p.Logger),
	)
	res, err := coord.Run(ctx)
	if err != nil {
		return res, err
	}
	if ix != nil {
		if _, err := ix.RecordRun(ctx, index.Run{
			Stage:      index.StageRewrite,
			StartedAt:  res.StartedAt,
			FinishedAt: res.FinishedAt,
			Attempted:  res.Attempted,
			Produced:   res.Rewritten,
			Failed:     res.Failed,
		}); err != nil {
			p.Logger.Warn("record run", "error", err)
		}
	}
	return res, nil
}

// Reindex rebuilds the article index from the files.
func (p *Pipeline) Reindex(ctx context.Context) (int, error) {
	ix, err := p.OpenIndex(ctx)
	if err != nil {
		return 0, err
	}
	defer ix.Close()
	return ix.Reindex(ctx, p.Accessor())
}

// ServerConfig maps the config onto the read server settings.
func (p *Pipeline) ServerConfig() server.Config {
	return server.Config{
		SiteURL:         strings.TrimRight(p.Config.SiteURL, "/"),
		FeedTitle:       p.Config.Server.FeedTitle,
		FeedDescription: p.Config.Server.FeedDescription,
		RequestTimeout:  p.Config.Server.RequestTimeout,
	}
}

// Server builds the read-only HTTP server over ix.
func (p *Pipeline) Server(ix *index.Index) *server.Server {
	return server.New(ix, p.Accessor(), p.ServerConfig(), p.Logger)
}

func (p *Pipeline) recordRun(ctx context.Context, run index.Run) {
	ix, err := p.OpenIndex(ctx)
	if err != nil {
		p.Logger.Warn("article index unavailable", "error", err)
		return
	}
	defer ix.Close()
	if _, err := ix.RecordRun(ctx, run); err != nil {
		p.Logger.Warn("record run", "error", err)
	}
}

// Package config provides newsroom pipeline configuration management.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	appconfig "github.com/RobinCoderZhao/newsroom/pkg/config"
	"github.com/RobinCoderZhao/newsroom/pkg/llm"
	"github.com/RobinCoderZhao/newsroom/pkg/notify"
)

// DefaultFile is the project-level config file name.
const DefaultFile = "newsroom.yaml"

// Config is the configuration shared by the newsroom commands.
type Config struct {
	DataDir  string `yaml:"data_dir" env:"NEWSROOM_DATA_DIR"`
	SiteURL  string `yaml:"site_url" env:"SITE_URL,NEWSROOM_SITE_URL"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`

	// RunTimeout bounds one whole stage run.
	RunTimeout time.Duration `yaml:"run_timeout" env:"NEWSROOM_RUN_TIMEOUT"`

	Ingest  IngestConfig  `yaml:"ingest"`
	Rewrite RewriteConfig `yaml:"rewrite"`
	Index   IndexConfig   `yaml:"index"`
	Server  ServerConfig  `yaml:"server"`

	LLM    llm.Config    `yaml:"llm"`
	Notify notify.Config `yaml:"notify"`
}

// IngestConfig holds settings for the ingestion stage.
type IngestConfig struct {
	UserAgent      string        `yaml:"user_agent" env:"NEWSROOM_USER_AGENT"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"NEWSROOM_REQUEST_TIMEOUT"`
	SourceTimeout  time.Duration `yaml:"source_timeout" env:"NEWSROOM_SOURCE_TIMEOUT"`
	RequestRate    float64       `yaml:"request_rate" env:"NEWSROOM_REQUEST_RATE"`
}

// RewriteConfig holds settings for the rewrite stage.
type RewriteConfig struct {
	BatchSize   int     `yaml:"batch_size" env:"NEWSROOM_BATCH_SIZE"`
	MaxAttempts int     `yaml:"max_attempts" env:"NEWSROOM_MAX_ATTEMPTS"`
	RequestRate float64 `yaml:"request_rate" env:"NEWSROOM_LLM_RATE"`
}

// IndexConfig locates the SQLite article index. An empty path puts it in the
// data directory.
type IndexConfig struct {
	Path string `yaml:"path" env:"NEWSROOM_INDEX_DB"`
}

// ServerConfig holds settings for the read-only HTTP server.
type ServerConfig struct {
	Addr            string        `yaml:"addr" env:"NEWSROOM_ADDR"`
	FeedTitle       string        `yaml:"feed_title"`
	FeedDescription string        `yaml:"feed_description"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DataDir:    "data",
		SiteURL:    "https://www.aviationhistorybooks.co.uk",
		LogLevel:   "info",
		RunTimeout: 15 * time.Minute,
		Ingest: IngestConfig{
			RequestTimeout: 20 * time.Second,
			SourceTimeout:  2 * time.Minute,
			RequestRate:    2,
		},
		Rewrite: RewriteConfig{
			BatchSize:   2,
			MaxAttempts: 5,
			RequestRate: 0.5,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			FeedTitle:       "Aviation History Newsroom",
			FeedDescription: "Aviation news from the Highlands and Islands, with related reading.",
			RequestTimeout:  30 * time.Second,
		},
		LLM: llm.DefaultConfig(),
	}
}

// Load reads path, or when path is empty the first of ./newsroom.yaml and
// $HOME/.newsroom.yaml that exists. Environment overrides apply either way.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if err := appconfig.Load(path, &cfg); err != nil {
			return cfg, err
		}
		return cfg, cfg.Validate()
	}

	if _, err := os.Stat(DefaultFile); err == nil {
		if err := appconfig.Load(DefaultFile, &cfg); err != nil {
			return cfg, err
		}
		return cfg, cfg.Validate()
	}

	globalPath := ""
	if home, err := os.UserHomeDir(); err == nil {
		globalPath = filepath.Join(home, "."+DefaultFile)
	}
	if err := appconfig.LoadOrDefault(globalPath, &cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Validate rejects settings no stage can run with.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.Rewrite.BatchSize < 0 {
		return fmt.Errorf("rewrite.batch_size must not be negative")
	}
	return nil
}

// IndexPath returns the index database path.
func (c Config) IndexPath() string {
	if c.Index.Path != "" {
		return c.Index.Path
	}
	return filepath.Join(c.DataDir, "news-index.db")
}

// RewriteEnabled reports whether a completion API key is configured.
func (c Config) RewriteEnabled() bool {
	return c.LLM.APIKey != ""
}

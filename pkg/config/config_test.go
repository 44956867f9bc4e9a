package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type testConfig struct {
	DataDir  string        `yaml:"data_dir" env:"TEST_NEWSROOM_DIR"`
	Batch    int           `yaml:"batch" env:"TEST_NEWSROOM_BATCH"`
	Verbose  bool          `yaml:"verbose" env:"TEST_NEWSROOM_VERBOSE"`
	Timeout  time.Duration `yaml:"timeout" env:"TEST_NEWSROOM_TIMEOUT"`
	Rate     float64       `yaml:"rate" env:"TEST_NEWSROOM_RATE"`
	Provider struct {
		APIKey string `yaml:"api_key" env:"TEST_LLM_API_KEY,TEST_OPENAI_API_KEY"`
	} `yaml:"provider"`
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "newsroom.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
data_dir: ./data
batch: 2
verbose: false
timeout: 20s
provider:
  api_key: sk-file
`)

	var cfg testConfig
	if err := Load(path, &cfg); err != nil {
		t.Fatal(err)
	}

	if cfg.DataDir != "./data" {
		t.Fatalf("expected './data', got '%s'", cfg.DataDir)
	}
	if cfg.Batch != 2 {
		t.Fatalf("expected 2, got %d", cfg.Batch)
	}
	if cfg.Timeout != 20*time.Second {
		t.Fatalf("expected 20s, got %s", cfg.Timeout)
	}
	if cfg.Provider.APIKey != "sk-file" {
		t.Fatalf("expected sk-file, got %s", cfg.Provider.APIKey)
	}
}

func TestEnvOverride(t *testing.T) {
	path := writeConfig(t, `
data_dir: default
batch: 3
`)

	t.Setenv("TEST_NEWSROOM_DIR", "/srv/newsroom")
	t.Setenv("TEST_NEWSROOM_BATCH", "5")
	t.Setenv("TEST_NEWSROOM_VERBOSE", "true")
	t.Setenv("TEST_NEWSROOM_TIMEOUT", "1m30s")
	t.Setenv("TEST_NEWSROOM_RATE", "0.5")

	var cfg testConfig
	if err := Load(path, &cfg); err != nil {
		t.Fatal(err)
	}

	if cfg.DataDir != "/srv/newsroom" {
		t.Fatalf("expected '/srv/newsroom', got '%s'", cfg.DataDir)
	}
	if cfg.Batch != 5 {
		t.Fatalf("expected 5, got %d", cfg.Batch)
	}
	if !cfg.Verbose {
		t.Fatal("expected verbose to be true from env")
	}
	if cfg.Timeout != 90*time.Second {
		t.Fatalf("expected 1m30s, got %s", cfg.Timeout)
	}
	if cfg.Rate != 0.5 {
		t.Fatalf("expected 0.5, got %f", cfg.Rate)
	}
}

func TestEnvFallbackNames(t *testing.T) {
	t.Setenv("TEST_OPENAI_API_KEY", "sk-fallback")

	var cfg testConfig
	if err := ApplyEnv(&cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Provider.APIKey != "sk-fallback" {
		t.Fatalf("expected fallback key, got %q", cfg.Provider.APIKey)
	}

	t.Setenv("TEST_LLM_API_KEY", "sk-primary")
	if err := ApplyEnv(&cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Provider.APIKey != "sk-primary" {
		t.Fatalf("expected primary key to win, got %q", cfg.Provider.APIKey)
	}
}

func TestEnvOverride_InvalidValue(t *testing.T) {
	t.Setenv("TEST_NEWSROOM_TIMEOUT", "soon")

	var cfg testConfig
	if err := ApplyEnv(&cfg); err == nil {
		t.Fatal("expected error for unparseable duration")
	}
}

func TestLoadOrDefault_MissingFile(t *testing.T) {
	cfg := testConfig{DataDir: "keep"}
	if err := LoadOrDefault("/nonexistent/newsroom.yaml", &cfg); err != nil {
		t.Fatalf("expected no error for missing file, got: %v", err)
	}
	if cfg.DataDir != "keep" {
		t.Fatalf("expected defaults preserved, got '%s'", cfg.DataDir)
	}
}

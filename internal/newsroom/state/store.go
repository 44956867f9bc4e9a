package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/RobinCoderZhao/newsroom/internal/newsroom/sources"
)

// File names under the data directory.
const (
	SourcesFile = "news-sources.json"
	LogFile     = "news-ingest-log.json"
	QueueFile   = "news-queue.json"
	ArticlesDir = "news-articles"
	LockFile    = ".newsroom.lock"
)

// DefaultStaleLock is how old a lock file may get before it is reclaimed.
const DefaultStaleLock = 2 * time.Hour

// Store reads and writes the JSON state files under one directory.
type Store struct {
	root      string
	staleLock time.Duration
	now       func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithStaleLock overrides DefaultStaleLock.
func WithStaleLock(d time.Duration) Option {
	return func(s *Store) { s.staleLock = d }
}

// WithClock sets the time source used for lock staleness.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates a store rooted at dir.
func NewStore(dir string, opts ...Option) *Store {
	s := &Store{root: dir, staleLock: DefaultStaleLock, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Root returns the data directory.
func (s *Store) Root() string { return s.root }

// Path joins name onto the data directory.
func (s *Store) Path(name string) string { return filepath.Join(s.root, name) }

// ArticlesRoot is the directory holding YYYY/MM/slug.json article files.
func (s *Store) ArticlesRoot() string { return s.Path(ArticlesDir) }

// LoadSources reads news-sources.json. A missing file yields no sources.
func (s *Store) LoadSources() ([]sources.Source, error) {
	var out []sources.Source
	if err := readJSON(s.Path(SourcesFile), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadLog reads the ingest log. A missing file yields an empty log.
func (s *Store) LoadLog() ([]LogEntry, error) {
	out := []LogEntry{}
	if err := readJSON(s.Path(LogFile), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadQueue reads the rewrite queue. A missing file yields an empty queue.
func (s *Store) LoadQueue() ([]QueueItem, error) {
	out := []QueueItem{}
	if err := readJSON(s.Path(QueueFile), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SaveLog rewrites the ingest log atomically.
func (s *Store) SaveLog(log []LogEntry) error {
	if log == nil {
		log = []LogEntry{}
	}
	return WriteJSONAtomic(s.Path(LogFile), log)
}

// SaveQueue rewrites the queue atomically.
func (s *Store) SaveQueue(queue []QueueItem) error {
	if queue == nil {
		queue = []QueueItem{}
	}
	return WriteJSONAtomic(s.Path(QueueFile), queue)
}

// SaveSources writes the source list. The pipeline itself never calls it.
func (s *Store) SaveSources(list []sources.Source) error {
	return WriteJSONAtomic(s.Path(SourcesFile), list)
}

func readJSON(path string, out any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

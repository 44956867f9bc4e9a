package articles

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/RobinCoderZhao/newsroom/internal/newsroom/state"
	"github.com/RobinCoderZhao/newsroom/pkg/textutil"
)

// Normalizer tidies generated article files: trimmed text, no empty
// sections, a recomputed word count, non-null arrays and a status. A file is
// rewritten only when something changed.
type Normalizer struct {
	root   string
	logger *slog.Logger
}

// NewNormalizer creates a normalizer for the articles directory root.
func NewNormalizer(root string, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{root: root, logger: logger}
}

func (n *Normalizer) Process(ctx context.Context, paths []string) error {
	for _, rel := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		path := filepath.Join(n.root, rel)
		rec, err := readRecord(path)
		if err != nil {
			return err
		}
		fixed := Normalize(rec)
		if reflect.DeepEqual(rec, fixed) {
			continue
		}
		if err := state.WriteJSONAtomic(path, fixed); err != nil {
			return fmt.Errorf("rewrite %s: %w", rel, err)
		}
		n.logger.Info("normalized article", "path", rel)
	}
	return nil
}

// Normalize returns the tidied form of rec.
func Normalize(rec Record) Record {
	rec = withEmptySlices(rec)
	rec.Title = strings.TrimSpace(rec.Title)
	rec.Summary = strings.TrimSpace(rec.Summary)

	sections := make([]Section, 0, len(rec.Sections))
	words := 0
	for _, s := range rec.Sections {
		s.Heading = strings.TrimSpace(s.Heading)
		s.Content = strings.TrimSpace(s.Content)
		if s.Content == "" {
			continue
		}
		words += textutil.WordCount(s.Content)
		sections = append(sections, s)
	}
	rec.Sections = sections
	rec.WordCount = words

	if rec.Status == "" {
		rec.Status = StatusPublished
	}
	if rec.PublishedAt.IsZero() {
		rec.PublishedAt = rec.CreatedAt
	}
	return rec
}

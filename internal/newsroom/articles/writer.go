package articles

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/RobinCoderZhao/newsroom/internal/newsroom/state"
	"github.com/RobinCoderZhao/newsroom/internal/newsroom/tiein"
)

// Writer stores Article Records under a root directory.
type Writer struct {
	root string
}

// NewWriter creates a writer for the articles directory root.
func NewWriter(root string) *Writer {
	return &Writer{root: root}
}

// Root returns the articles directory.
func (w *Writer) Root() string { return w.root }

// Write stores rec at PathFor(rec.CreatedAt, rec.Slug) and returns that
// relative path. Missing slices are written as empty arrays.
func (w *Writer) Write(rec Record) (string, error) {
	if rec.Slug == "" {
		return "", fmt.Errorf("article has no slug")
	}
	rec = withEmptySlices(rec)
	rel := PathFor(rec.CreatedAt, rec.Slug)
	if err := state.WriteJSONAtomic(filepath.Join(w.root, rel), rec); err != nil {
		return "", fmt.Errorf("write article %s: %w", rec.Slug, err)
	}
	return rel, nil
}

// Exists reports whether a file for rel is already present.
func (w *Writer) Exists(rel string) bool {
	_, err := os.Stat(filepath.Join(w.root, rel))
	return err == nil
}

func readRecord(path string) (Record, error) {
	var rec Record
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return rec, fmt.Errorf("%w: %s", ErrNotFound, filepath.Base(path))
		}
		return rec, fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("parse %s: %w", path, err)
	}
	return rec, nil
}

func withEmptySlices(rec Record) Record {
	if rec.Sections == nil {
		rec.Sections = []Section{}
	}
	if rec.Images == nil {
		rec.Images = []string{}
	}
	if rec.SourceReferences == nil {
		rec.SourceReferences = []SourceReference{}
	}
	if rec.RelatedBooks == nil {
		rec.RelatedBooks = []tiein.RelatedBook{}
	}
	if rec.Keywords == nil {
		rec.Keywords = []Keyword{}
	}
	return rec
}

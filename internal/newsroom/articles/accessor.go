package articles

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
)

// ErrNotFound is returned when no article file exists for a slug.
var ErrNotFound = errors.New("article not found")

// Stored is a record together with its path relative to the articles root.
type Stored struct {
	Path   string
	Record Record
}

// Accessor is the read-only view of the articles directory used by the web
// front end.
type Accessor struct {
	root string
}

// NewAccessor creates an accessor over root.
func NewAccessor(root string) *Accessor {
	return &Accessor{root: root}
}

var (
	yearDirRe  = regexp.MustCompile(`^\d{4}$`)
	monthDirRe = regexp.MustCompile(`^\d{2}$`)
)

// List returns every article under YYYY/MM/, newest first. Unreadable files
// are skipped.
func (a *Accessor) List(ctx context.Context) ([]Stored, error) {
	years, err := os.ReadDir(a.root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}

	var out []Stored
	for _, y := range years {
		if !y.IsDir() || !yearDirRe.MatchString(y.Name()) {
			continue
		}
		months, err := os.ReadDir(filepath.Join(a.root, y.Name()))
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", y.Name(), err)
		}
		for _, m := range months {
			if !m.IsDir() || !monthDirRe.MatchString(m.Name()) {
				continue
			}
			files, err := filepath.Glob(filepath.Join(a.root, y.Name(), m.Name(), "*.json"))
			if err != nil {
				return nil, err
			}
			for _, f := range files {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				rec, err := readRecord(f)
				if err != nil {
					continue
				}
				rel, _ := filepath.Rel(a.root, f)
				out = append(out, Stored{Path: rel, Record: rec})
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		ti, tj := out[i].Record.PublishedAt, out[j].Record.PublishedAt
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return out[i].Record.Slug > out[j].Record.Slug
	})
	return out, nil
}

// Get loads the article for slug.
func (a *Accessor) Get(slug string) (Record, error) {
	rel, err := PathForSlug(slug)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return a.Load(rel)
}

// Load reads the article at rel, relative to the articles root.
func (a *Accessor) Load(rel string) (Record, error) {
	return readRecord(filepath.Join(a.root, rel))
}

package index

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/RobinCoderZhao/newsroom/internal/newsroom/articles"
)

// Loader reads article records. *articles.Accessor satisfies it.
type Loader interface {
	Load(rel string) (articles.Record, error)
	List(ctx context.Context) ([]articles.Stored, error)
}

// Indexer is the post-processor that refreshes index rows for new articles.
type Indexer struct {
	index  *Index
	loader Loader
	logger *slog.Logger
}

// NewIndexer creates an indexer.
func NewIndexer(ix *Index, loader Loader, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{index: ix, loader: loader, logger: logger}
}

func (i *Indexer) Process(ctx context.Context, paths []string) error {
	for _, rel := range paths {
		rec, err := i.loader.Load(rel)
		if err != nil {
			return fmt.Errorf("load %s: %w", rel, err)
		}
		if err := i.index.UpsertArticle(ctx, FromRecord(rel, rec)); err != nil {
			return err
		}
	}
	i.logger.Info("index updated", "articles", len(paths))
	return nil
}

// Reindex replaces every article row with what the files currently hold and
// returns the number of articles indexed.
func (ix *Index) Reindex(ctx context.Context, loader Loader) (int, error) {
	stored, err := loader.List(ctx)
	if err != nil {
		return 0, err
	}
	err = ix.db.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM articles`); err != nil {
			return fmt.Errorf("clear articles: %w", err)
		}
		for _, s := range stored {
			if err := upsert(ctx, tx, FromRecord(s.Path, s.Record)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(stored), nil
}

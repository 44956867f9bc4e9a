package index

import (
	"context"
	"fmt"
	"time"
)

// Stage names recorded in the runs table.
const (
	StageIngest  = "ingest"
	StageRewrite = "rewrite"
)

// Run is one recorded pipeline execution.
type Run struct {
	ID         int64     `json:"id"`
	Stage      string    `json:"stage"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Attempted  int       `json:"attempted"`
	Produced   int       `json:"produced"`
	Failed     int       `json:"failed"`
}

// RecordRun stores r and returns its id.
func (ix *Index) RecordRun(ctx context.Context, r Run) (int64, error) {
	res, err := ix.db.ExecContext(ctx,
		`INSERT INTO runs (stage, started_at, finished_at, attempted, produced, failed) VALUES (?, ?, ?, ?, ?, ?)`,
		r.Stage, r.StartedAt.UTC().Format(timeLayout), r.FinishedAt.UTC().Format(timeLayout),
		r.Attempted, r.Produced, r.Failed)
	if err != nil {
		return 0, fmt.Errorf("record run: %w", err)
	}
	return res.LastInsertId()
}

// LatestRuns returns up to limit runs, newest first. An empty stage matches
// every stage.
func (ix *Index) LatestRuns(ctx context.Context, stage string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := ix.db.QueryContext(ctx, `
		SELECT id, stage, started_at, finished_at, attempted, produced, failed
		FROM runs
		WHERE ? = '' OR stage = ?
		ORDER BY started_at DESC, id DESC
		LIMIT ?`, stage, stage, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var started, finished string
		if err := rows.Scan(&r.ID, &r.Stage, &started, &finished, &r.Attempted, &r.Produced, &r.Failed); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if r.StartedAt, err = time.Parse(timeLayout, started); err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		if r.FinishedAt, err = time.Parse(timeLayout, finished); err != nil {
			return nil, fmt.Errorf("parse finished_at: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

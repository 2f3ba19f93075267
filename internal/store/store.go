// Package store persists ranked hits to Postgres.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/toricodesthings/pdf-scale-finder/internal/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS scale_runs (
	id           UUID PRIMARY KEY,
	document     TEXT NOT NULL,
	total_pages  INTEGER NOT NULL,
	pages_seen   INTEGER NOT NULL,
	hit_count    INTEGER NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS scale_hits (
	run_id        UUID NOT NULL REFERENCES scale_runs(id) ON DELETE CASCADE,
	rank          INTEGER NOT NULL,
	page          INTEGER NOT NULL,
	raw_text      TEXT NOT NULL,
	raw_value     DOUBLE PRECISION NOT NULL,
	scaled_value  DOUBLE PRECISION NOT NULL,
	units         TEXT NOT NULL,
	scale_name    TEXT,
	scale_phrase  TEXT,
	x0            DOUBLE PRECISION NOT NULL,
	top           DOUBLE PRECISION NOT NULL,
	x1            DOUBLE PRECISION NOT NULL,
	bottom        DOUBLE PRECISION NOT NULL,
	in_table      BOOLEAN NOT NULL,
	PRIMARY KEY (run_id, rank)
);
`

var hitColumns = []string{
	"run_id", "rank", "page", "raw_text", "raw_value", "scaled_value", "units",
	"scale_name", "scale_phrase", "x0", "top", "x1", "bottom", "in_table",
}

// Run describes one extraction being saved.
type Run struct {
	Document     string
	TotalPages   int
	PagesScanned int
	Hits         []types.NumberHit
}

type Store struct {
	pool *pgxpool.Pool
}

func Open(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("DATABASE_URL not set")
	}
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// SaveRun writes the run and its ranked hits in one transaction.
func (s *Store) SaveRun(ctx context.Context, run Run) (uuid.UUID, error) {
	id := uuid.New()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO scale_runs (id, document, total_pages, pages_seen, hit_count, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		id, run.Document, run.TotalPages, run.PagesScanned, len(run.Hits), time.Now().UTC())
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to save run: %w", err)
	}

	if len(run.Hits) > 0 {
		_, err = tx.CopyFrom(ctx, pgx.Identifier{"scale_hits"}, hitColumns, pgx.CopyFromRows(hitRows(id, run.Hits)))
		if err != nil {
			return uuid.Nil, fmt.Errorf("failed to copy hits: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("failed to commit: %w", err)
	}
	return id, nil
}

func hitRows(id uuid.UUID, hits []types.NumberHit) [][]any {
	recs := types.Records(hits)
	rows := make([][]any, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, []any{
			id, r.Rank, r.Page, r.RawText, r.RawValue, r.ScaledValue, string(r.Units),
			r.ScaleName, r.ScalePhrase, r.BBox.X0, r.BBox.Top, r.BBox.X1, r.BBox.Bottom, r.TableBBox != nil,
		})
	}
	return rows
}

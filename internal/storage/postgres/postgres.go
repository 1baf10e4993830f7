package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/FranksOps/domainhunt/internal/model"
	"github.com/FranksOps/domainhunt/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ensure postgresSink implements storage.Sink
var _ storage.Sink = (*postgresSink)(nil)

type postgresSink struct {
	pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS outcomes (
	run_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	name TEXT NOT NULL,
	domain TEXT NOT NULL,
	resolution TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (run_id, position)
);
`

// New creates a new Postgres-backed storage.Sink.
func New(ctx context.Context, dsn string) (storage.Sink, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &postgresSink{pool: pool}, nil
}

// Save replaces the rows of runID in a single transaction, sending the
// inserts as one batch.
func (s *postgresSink) Save(ctx context.Context, runID string, outcomes []model.Outcome) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM outcomes WHERE run_id = $1`, runID); err != nil {
			return fmt.Errorf("delete run %s: %w", runID, err)
		}

		batch := &pgx.Batch{}
		for _, r := range model.NewRecords(runID, outcomes, time.Now().UTC()) {
			batch.Queue(`
			INSERT INTO outcomes (run_id, position, name, domain, resolution, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			`, r.RunID, r.Position, r.Name, r.Domain, r.Kind.String(), r.CreatedAt)
		}

		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert outcomes: %w", err)
		}
		return nil
	})
}

func (s *postgresSink) Query(ctx context.Context, filter storage.Filter) ([]model.Record, error) {
	query := `SELECT run_id, position, name, domain, resolution, created_at FROM outcomes WHERE 1=1`
	args := []any{}
	paramCount := 1

	if filter.RunID != "" {
		query += fmt.Sprintf(` AND run_id = $%d`, paramCount)
		args = append(args, filter.RunID)
		paramCount++
	}
	if filter.Kind != nil {
		query += fmt.Sprintf(` AND resolution = $%d`, paramCount)
		args = append(args, filter.Kind.String())
		paramCount++
	}

	query += ` ORDER BY created_at ASC, run_id ASC, position ASC`

	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, paramCount)
		args = append(args, filter.Limit)
		paramCount++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, paramCount)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Record, error) {
		var r model.Record
		var kind string
		if err := row.Scan(&r.RunID, &r.Position, &r.Name, &r.Domain, &kind, &r.CreatedAt); err != nil {
			return r, err
		}
		k, err := model.ParseKind(kind)
		r.Kind = k
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan outcomes: %w", err)
	}

	return records, nil
}

func (s *postgresSink) Close() error {
	s.pool.Close()
	return nil
}

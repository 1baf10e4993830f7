package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/FranksOps/domainhunt/internal/model"
	"github.com/FranksOps/domainhunt/internal/storage"
	_ "modernc.org/sqlite"
)

// ensure sqliteSink implements storage.Sink
var _ storage.Sink = (*sqliteSink)(nil)

type sqliteSink struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS outcomes (
	run_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	name TEXT NOT NULL,
	domain TEXT NOT NULL,
	resolution TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	PRIMARY KEY (run_id, position)
);
`

// New creates a new SQLite-backed storage.Sink.
func New(dsn string) (storage.Sink, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &sqliteSink{db: db}, nil
}

// Save replaces the rows of runID in a single transaction. Rows of other
// runs are kept.
func (s *sqliteSink) Save(ctx context.Context, runID string, outcomes []model.Outcome) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM outcomes WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("delete run %s: %w", runID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO outcomes (run_id, position, name, domain, resolution, created_at)
	VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range model.NewRecords(runID, outcomes, time.Now().UTC()) {
		if _, err = stmt.ExecContext(ctx, r.RunID, r.Position, r.Name, r.Domain, r.Kind.String(), r.CreatedAt); err != nil {
			return fmt.Errorf("insert %q: %w", r.Name, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *sqliteSink) Query(ctx context.Context, filter storage.Filter) ([]model.Record, error) {
	query := `SELECT run_id, position, name, domain, resolution, created_at FROM outcomes WHERE 1=1`
	args := []any{}

	if filter.RunID != "" {
		query += ` AND run_id = ?`
		args = append(args, filter.RunID)
	}
	if filter.Kind != nil {
		query += ` AND resolution = ?`
		args = append(args, filter.Kind.String())
	}

	query += ` ORDER BY created_at ASC, run_id ASC, position ASC`

	// SQLite only accepts OFFSET after a LIMIT; -1 means unbounded.
	if filter.Limit > 0 || filter.Offset > 0 {
		limit := -1
		if filter.Limit > 0 {
			limit = filter.Limit
		}
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	var records []model.Record
	for rows.Next() {
		var r model.Record
		var kind string
		if err := rows.Scan(&r.RunID, &r.Position, &r.Name, &r.Domain, &kind, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		if r.Kind, err = model.ParseKind(kind); err != nil {
			return nil, err
		}
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcomes: %w", err)
	}

	return records, nil
}

func (s *sqliteSink) Close() error {
	return s.db.Close()
}

package main

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/FranksOps/domainhunt/internal/storage"
	"github.com/FranksOps/domainhunt/internal/storage/csvbackend"
	"github.com/FranksOps/domainhunt/internal/storage/jsonbackend"
	"github.com/FranksOps/domainhunt/internal/storage/postgres"
	"github.com/FranksOps/domainhunt/internal/storage/sqlite"
)

// openSink picks a sink from the shape of target: a postgres URL, a
// "sqlite:" DSN or a file whose extension names the format. Anything else
// is written as CSV.
func openSink(ctx context.Context, target string) (storage.Sink, error) {
	switch {
	case isPostgres(target):
		return postgres.New(ctx, target)
	case strings.HasPrefix(target, "sqlite:"):
		return sqlite.New(strings.TrimPrefix(target, "sqlite:"))
	}

	switch strings.ToLower(filepath.Ext(target)) {
	case ".db", ".sqlite", ".sqlite3":
		return sqlite.New(target)
	case ".json", ".ndjson", ".jsonl":
		return jsonbackend.New(target)
	default:
		return csvbackend.New(target)
	}
}

func isPostgres(target string) bool {
	return strings.HasPrefix(target, "postgres://") || strings.HasPrefix(target, "postgresql://")
}

// isFile reports whether target names a plain file path rather than a DSN.
func isFile(target string) bool {
	return !isPostgres(target) && !strings.HasPrefix(target, "sqlite:")
}

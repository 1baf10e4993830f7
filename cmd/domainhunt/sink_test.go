package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/FranksOps/domainhunt/internal/model"
	"github.com/FranksOps/domainhunt/internal/storage"
)

func TestOpenSink(t *testing.T) {
	dir := t.TempDir()
	outcomes := []model.Outcome{{Name: "Acme Inc", Resolution: model.Resolved("acme.com")}}

	tests := []struct {
		target string
		// prefix is the expected start of the written file; empty for
		// databases.
		prefix string
	}{
		{filepath.Join(dir, "out.csv"), "Name,Domain"},
		{filepath.Join(dir, "out.txt"), "Name,Domain"},
		{filepath.Join(dir, "out.ndjson"), `{"run_id":"r1"`},
		{filepath.Join(dir, "out.JSON"), `{"run_id":"r1"`},
		{filepath.Join(dir, "out.db"), ""},
		{"sqlite:" + filepath.Join(dir, "other.sqlite"), ""},
	}

	for _, tt := range tests {
		t.Run(filepath.Base(tt.target), func(t *testing.T) {
			ctx := context.Background()
			sink, err := openSink(ctx, tt.target)
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			defer sink.Close()

			if err := sink.Save(ctx, "r1", outcomes); err != nil {
				t.Fatalf("save: %v", err)
			}
			got, err := sink.Query(ctx, storage.Filter{RunID: "r1"})
			if err != nil {
				t.Fatalf("query: %v", err)
			}
			if len(got) != 1 || got[0].Domain != "acme.com" {
				t.Errorf("unexpected records %+v", got)
			}

			if tt.prefix != "" {
				data, err := os.ReadFile(tt.target)
				if err != nil {
					t.Fatal(err)
				}
				if !strings.HasPrefix(string(data), tt.prefix) {
					t.Errorf("expected file to start with %q, got %q", tt.prefix, data)
				}
			}
		})
	}
}

func TestIsFile(t *testing.T) {
	for target, want := range map[string]bool{
		"output.csv":                  true,
		"sqlite:results.db":           false,
		"postgres://u@localhost/db":   false,
		"postgresql://u@localhost/db": false,
	} {
		if got := isFile(target); got != want {
			t.Errorf("isFile(%q) = %v, want %v", target, got, want)
		}
	}
}

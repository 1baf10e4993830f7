package jsonbackend

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/FranksOps/domainhunt/internal/model"
	"github.com/FranksOps/domainhunt/internal/storage"
)

// ensure jsonSink implements storage.Sink
var _ storage.Sink = (*jsonSink)(nil)

type jsonSink struct {
	mu   sync.Mutex
	path string
}

// New returns an NDJSON sink at filePath, one record per line. Nothing is
// written until the first Save.
func New(filePath string) (storage.Sink, error) {
	if info, err := os.Stat(filepath.Dir(filePath)); err != nil {
		return nil, fmt.Errorf("open ndjson: %w", err)
	} else if !info.IsDir() {
		return nil, fmt.Errorf("open ndjson: %s is not a directory", filepath.Dir(filePath))
	}
	return &jsonSink{path: filePath}, nil
}

// Save overwrites the file with the run's records.
func (s *jsonSink) Save(ctx context.Context, runID string, outcomes []model.Outcome) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("open ndjson: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, r := range model.NewRecords(runID, outcomes, time.Now().UTC()) {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encode record: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush ndjson: %w", err)
	}

	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync ndjson: %w", err)
	}
	return f.Close()
}

func (s *jsonSink) Query(ctx context.Context, filter storage.Filter) ([]model.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return []model.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open ndjson: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)

	var all []model.Record
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var r model.Record
		if err := json.Unmarshal(line, &r); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
		all = append(all, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read ndjson: %w", err)
	}

	return storage.Apply(all, filter), nil
}

func (s *jsonSink) Close() error {
	return nil
}

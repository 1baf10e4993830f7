package csvbackend

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/FranksOps/domainhunt/internal/model"
	"github.com/FranksOps/domainhunt/internal/storage"
)

// ensure csvSink implements storage.Sink
var _ storage.Sink = (*csvSink)(nil)

type csvSink struct {
	mu   sync.Mutex
	path string
}

// headers defines the CSV column order
var headers = []string{"Name", "Domain"}

// New returns a CSV sink writing to filePath. The file is not created until
// the first Save; existing content stays queryable until then.
func New(filePath string) (storage.Sink, error) {
	if err := checkPath(filePath); err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	return &csvSink{path: filePath}, nil
}

func checkPath(filePath string) error {
	if info, err := os.Stat(filePath); err == nil && info.IsDir() {
		return fmt.Errorf("%s is a directory", filePath)
	}
	info, err := os.Stat(filepath.Dir(filePath))
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", filepath.Dir(filePath))
	}
	return nil
}

// Save overwrites the file with a header row and one row per outcome.
// The file holds a single run; runID is not written.
func (s *csvSink) Save(ctx context.Context, runID string, outcomes []model.Outcome) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(headers); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, o := range outcomes {
		if err := w.Write([]string{o.Name, o.Resolution.Cell()}); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}

	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync csv: %w", err)
	}
	return f.Close()
}

func (s *csvSink) Query(ctx context.Context, filter storage.Filter) ([]model.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return []model.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	var modTime time.Time
	if info, err := f.Stat(); err == nil {
		modTime = info.ModTime().UTC()
	}

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(headers)

	if _, err := r.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return []model.Record{}, nil
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	var all []model.Record
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}

		all = append(all, model.Record{
			Position:  len(all),
			Name:      row[0],
			Domain:    row[1],
			Kind:      model.ParseCell(row[1]),
			CreatedAt: modTime,
		})
	}

	return storage.Apply(all, filter), nil
}

// Close is a no-op; Save and Query hold the file only for their own call.
func (s *csvSink) Close() error {
	return nil
}

package input

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/FranksOps/domainhunt/internal/model"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ReadFile reads names from the CSV file at path. See Read.
func ReadFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	names, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return names, nil
}

// Read returns the trimmed first column of every row after the header row.
// Rows whose first cell is empty or the placeholder token are dropped. A
// leading UTF-8 or UTF-16 byte order mark is honored and removed.
func Read(r io.Reader) ([]string, error) {
	dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	cr := csv.NewReader(transform.NewReader(r, dec))
	cr.FieldsPerRecord = -1

	if _, err := cr.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("header: %w", err)
	}

	names := []string{}
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(row) == 0 {
			continue
		}

		name := strings.TrimSpace(row[0])
		if name == "" || name == model.Placeholder {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

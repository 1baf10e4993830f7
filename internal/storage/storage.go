package storage

import (
	"context"

	"github.com/FranksOps/domainhunt/internal/model"
)

// Filter selects stored records.
type Filter struct {
	// RunID restricts records to one run. Sinks that hold a single run
	// without an identifier (CSV) ignore it.
	RunID string
	Kind  *model.Kind
	Limit int
	// Offset skips the first n matching records.
	Offset int
}

// Sink stores the ordered outcomes of a run.
type Sink interface {
	// Save replaces whatever the sink holds for runID with outcomes, in order.
	Save(ctx context.Context, runID string, outcomes []model.Outcome) error
	// Query returns matching records in input order.
	Query(ctx context.Context, filter Filter) ([]model.Record, error)
	Close() error
}

// Match reports whether r passes every criterion in f other than paging.
func (f Filter) Match(r model.Record) bool {
	if f.RunID != "" && r.RunID != "" && r.RunID != f.RunID {
		return false
	}
	if f.Kind != nil && r.Kind != *f.Kind {
		return false
	}
	return true
}

// Apply filters records in memory and applies offset and limit, for sinks
// without a query engine.
func Apply(records []model.Record, f Filter) []model.Record {
	out := make([]model.Record, 0, len(records))
	for _, r := range records {
		if f.Match(r) {
			out = append(out, r)
		}
	}

	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return []model.Record{}
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out
}

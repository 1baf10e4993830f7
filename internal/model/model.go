package model

import (
	"fmt"
	"time"
)

// Placeholder is the input token that marks a row as intentionally blank.
const Placeholder = "---"

// Cell markers written in place of a hostname.
const (
	NotFoundMarker = "Not Found"
	ErrorMarker    = "Error"
)

// Kind discriminates the three possible results of a lookup.
type Kind int

const (
	// KindResolved means the query produced a hostname.
	KindResolved Kind = iota
	// KindNotFound means the query succeeded but no result could be extracted.
	KindNotFound
	// KindFailed means navigation or extraction raised an error.
	KindFailed
)

func (k Kind) String() string {
	switch k {
	case KindResolved:
		return "resolved"
	case KindNotFound:
		return "not_found"
	case KindFailed:
		return "failed"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "resolved":
		return KindResolved, nil
	case "not_found":
		return KindNotFound, nil
	case "failed":
		return KindFailed, nil
	}
	return 0, fmt.Errorf("unknown resolution kind %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if k < KindResolved || k > KindFailed {
		return nil, fmt.Errorf("invalid resolution kind %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Resolution is the result of a single lookup. Construct it with Resolved,
// NotFound or Failed.
type Resolution struct {
	Kind     Kind
	Hostname string
	// Err carries the cause of a Failed resolution for logging. It is never
	// written to an output sink.
	Err error
}

// Resolved returns a resolution carrying hostname.
func Resolved(hostname string) Resolution {
	return Resolution{Kind: KindResolved, Hostname: hostname}
}

// NotFound returns the resolution for a query without an extractable result.
func NotFound() Resolution {
	return Resolution{Kind: KindNotFound}
}

// Failed returns the resolution for a lookup that errored.
func Failed(err error) Resolution {
	return Resolution{Kind: KindFailed, Err: err}
}

// Cell maps a resolution to the value written in the Domain column.
func (r Resolution) Cell() string {
	switch r.Kind {
	case KindResolved:
		return r.Hostname
	case KindNotFound:
		return NotFoundMarker
	default:
		return ErrorMarker
	}
}

// Outcome pairs an input name with its resolution.
type Outcome struct {
	Name       string
	Resolution Resolution
}

// Record is an outcome as stored in, and read back from, an output sink.
// Position is the zero-based index of the name in the run's input.
type Record struct {
	RunID     string    `json:"run_id,omitempty"`
	Position  int       `json:"position"`
	Name      string    `json:"name"`
	Domain    string    `json:"domain"`
	Kind      Kind      `json:"resolution"`
	CreatedAt time.Time `json:"created_at,omitzero"`
}

// NewRecords stamps outcomes with runID, their position and createdAt.
func NewRecords(runID string, outcomes []Outcome, createdAt time.Time) []Record {
	records := make([]Record, len(outcomes))
	for i, o := range outcomes {
		records[i] = Record{
			RunID:     runID,
			Position:  i,
			Name:      o.Name,
			Domain:    o.Resolution.Cell(),
			Kind:      o.Resolution.Kind,
			CreatedAt: createdAt,
		}
	}
	return records
}

// ParseCell recovers the resolution kind from a Domain cell.
func ParseCell(cell string) Kind {
	switch cell {
	case NotFoundMarker:
		return KindNotFound
	case ErrorMarker:
		return KindFailed
	default:
		return KindResolved
	}
}

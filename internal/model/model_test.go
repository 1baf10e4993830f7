package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestResolution_Cell(t *testing.T) {
	tests := []struct {
		name string
		res  Resolution
		want string
	}{
		{"resolved", Resolved("example.com"), "example.com"},
		{"not found", NotFound(), "Not Found"},
		{"failed", Failed(errors.New("boom")), "Error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.res.Cell(); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
			if got := ParseCell(tt.res.Cell()); got != tt.res.Kind {
				t.Errorf("expected kind %v from cell, got %v", tt.res.Kind, got)
			}
		})
	}
}

func TestParseKind(t *testing.T) {
	for _, k := range []Kind{KindResolved, KindNotFound, KindFailed} {
		got, err := ParseKind(k.String())
		if err != nil {
			t.Fatalf("unexpected error for %v: %v", k, err)
		}
		if got != k {
			t.Errorf("expected %v, got %v", k, got)
		}
	}

	if _, err := ParseKind("bogus"); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestNewRecords(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	outcomes := []Outcome{
		{Name: "Acme Inc", Resolution: Resolved("acme.com")},
		{Name: "Beta LLC", Resolution: NotFound()},
		{Name: "Gamma", Resolution: Failed(errors.New("timeout"))},
	}

	records := NewRecords("run-1", outcomes, at)
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}

	want := []Record{
		{RunID: "run-1", Position: 0, Name: "Acme Inc", Domain: "acme.com", Kind: KindResolved, CreatedAt: at},
		{RunID: "run-1", Position: 1, Name: "Beta LLC", Domain: "Not Found", Kind: KindNotFound, CreatedAt: at},
		{RunID: "run-1", Position: 2, Name: "Gamma", Domain: "Error", Kind: KindFailed, CreatedAt: at},
	}
	for i := range want {
		if records[i] != want[i] {
			t.Errorf("record %d: expected %+v, got %+v", i, want[i], records[i])
		}
	}
}

func TestRecord_JSON(t *testing.T) {
	rec := Record{Position: 1, Name: "Beta LLC", Domain: "Not Found", Kind: KindNotFound}
	b, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if got, want := string(b), `{"position":1,"name":"Beta LLC","domain":"Not Found","resolution":"not_found"}`; got != want {
		t.Errorf("expected %s, got %s", want, got)
	}

	var back Record
	if err := json.Unmarshal([]byte(`{"position":0,"name":"x","domain":"y","resolution":"bogus"}`), &back); err == nil {
		t.Error("expected error for unknown resolution")
	}
}

package metrics

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/FranksOps/domainhunt/internal/model"
)

func TestMetricsServer(t *testing.T) {
	srv := Start(8889, slog.New(slog.NewTextHandler(io.Discard, nil)))
	time.Sleep(100 * time.Millisecond)
	defer srv.Stop(context.Background())

	RecordLookup("duckduckgo", model.Outcome{Name: "Acme", Resolution: model.Resolved("acme.com")}, time.Second)
	RecordLookup("duckduckgo", model.Outcome{Name: "Beta", Resolution: model.NotFound()}, time.Second)
	ChallengesTotal.WithLabelValues("DuckDuckGo").Inc()
	BatchesTotal.Inc()

	resp, err := http.Get("http://localhost:8889/metrics")
	if err != nil {
		t.Fatalf("failed to fetch metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	output := string(body)

	for _, want := range []string{
		`domainhunt_lookups_total{provider="duckduckgo",resolution="resolved"}`,
		`domainhunt_lookups_total{provider="duckduckgo",resolution="not_found"}`,
		`domainhunt_lookup_duration_seconds_bucket`,
		`# HELP domainhunt_lookup_duration_seconds Time from the start of a lookup on its open session to its outcome`,
		`domainhunt_challenges_total{source="DuckDuckGo"}`,
		`domainhunt_batches_total`,
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %s in metrics output", want)
		}
	}
}

func TestServer_StopNil(t *testing.T) {
	var s *Server
	if err := s.Stop(context.Background()); err != nil {
		t.Errorf("expected nil server stop to be a no-op, got %v", err)
	}
}

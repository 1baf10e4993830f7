package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/FranksOps/domainhunt/internal/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	LookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "domainhunt_lookups_total",
			Help: "Lookups completed, by provider and resolution",
		},
		[]string{"provider", "resolution"},
	)

	LookupDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "domainhunt_lookup_duration_seconds",
			Help:    "Time from the start of a lookup on its open session to its outcome",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"provider"},
	)

	BatchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "domainhunt_batches_total",
			Help: "Batches fully processed",
		},
	)

	ChallengesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "domainhunt_challenges_total",
			Help: "Navigations blocked by a bot challenge page",
		},
		[]string{"source"},
	)

	ProxyFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "domainhunt_proxy_failures_total",
			Help: "Requests that failed through a proxy",
		},
		[]string{"proxy_url"},
	)
)

// RecordLookup counts one outcome and its latency.
func RecordLookup(provider string, out model.Outcome, d time.Duration) {
	LookupsTotal.WithLabelValues(provider, out.Resolution.Kind.String()).Inc()
	LookupDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// Server exposes /metrics over HTTP.
type Server struct {
	srv *http.Server
}

// Start listens on port in the background and serves /metrics.
func Start(port int, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "port", port, "err", err)
		}
	}()

	return &Server{srv: srv}
}

// Stop shuts the server down, waiting at most five seconds.
func (s *Server) Stop(ctx context.Context) error {
	if s == nil || s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

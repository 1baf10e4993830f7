//go:build integration

package test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/FranksOps/domainhunt/internal/browser/httpbrowser"
	"github.com/FranksOps/domainhunt/internal/fingerprint"
	"github.com/FranksOps/domainhunt/internal/input"
	"github.com/FranksOps/domainhunt/internal/model"
	"github.com/FranksOps/domainhunt/internal/pipeline"
	"github.com/FranksOps/domainhunt/internal/serp"
	"github.com/FranksOps/domainhunt/internal/storage"
	"github.com/FranksOps/domainhunt/internal/storage/csvbackend"
	"github.com/FranksOps/domainhunt/pkg/proxy"
	"github.com/FranksOps/domainhunt/pkg/ratelimit"
	"github.com/FranksOps/domainhunt/pkg/useragent"
)

func resultPage(w http.ResponseWriter, target string) {
	w.Header().Set("Content-Type", "text/html")
	fmt.Fprint(w, `<html><body><div class="results">`)
	if target != "" {
		fmt.Fprintf(w, `<div class="result"><a class="result__a" href="//duckduckgo.com/l/?uddg=%s">Result</a></div>`, url.QueryEscape(target))
	}
	fmt.Fprint(w, `</div></body></html>`)
}

func newRunner(t *testing.T, endpoint string, concurrency int, cfg httpbrowser.Config) *pipeline.Runner {
	t.Helper()
	cfg.Timeout = 5 * time.Second
	cfg.Fingerprint = fingerprint.ProfileGo
	if cfg.Limiter == nil {
		cfg.Limiter = ratelimit.NewLimiter(0, 0)
	}

	r, err := pipeline.New(pipeline.Config{
		Concurrency: concurrency,
		Provider:    serp.NewDuckDuckGo(endpoint, false),
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, httpbrowser.Launcher(cfg))
	if err != nil {
		t.Fatalf("failed to create runner: %v", err)
	}
	return r
}

func TestIntegration_EndToEnd(t *testing.T) {
	// 1. Setup mock search endpoint
	mux := http.NewServeMux()
	mux.HandleFunc("/html/", func(w http.ResponseWriter, r *http.Request) {
		switch q := r.URL.Query().Get("q"); q {
		case "Acme Inc":
			resultPage(w, "https://acme.com/about")
		case "Blocked Co":
			// Simulate a bot defense page from Cloudflare
			w.Header().Set("Server", "cloudflare")
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, `<html><body>cf-browser-verification</body></html>`)
		default:
			resultPage(w, "")
		}
	})
	searchServer := httptest.NewServer(mux)
	defer searchServer.Close()

	// 2. Read input the way the CLI does
	dir := t.TempDir()
	names, err := input.Read(strings.NewReader("Company\nAcme Inc\n---\n  \nBeta LLC\nBlocked Co\n"))
	if err != nil {
		t.Fatalf("read input: %v", err)
	}

	// 3. Run
	runner := newRunner(t, searchServer.URL+"/html/", 2, httpbrowser.Config{})
	outcomes, err := runner.Run(context.Background(), names)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	// 4. Save and read back
	sink, err := csvbackend.New(filepath.Join(dir, "output.csv"))
	if err != nil {
		t.Fatalf("open sink: %v", err)
	}
	defer sink.Close()

	if err := sink.Save(context.Background(), "run", outcomes); err != nil {
		t.Fatalf("save: %v", err)
	}
	records, err := sink.Query(context.Background(), storage.Filter{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}

	want := []struct {
		name, domain string
		kind         model.Kind
	}{
		{"Acme Inc", "acme.com", model.KindResolved},
		{"Beta LLC", "Not Found", model.KindNotFound},
		{"Blocked Co", "Error", model.KindFailed},
	}
	if len(records) != len(want) {
		t.Fatalf("expected %d records, got %d", len(want), len(records))
	}
	for i, w := range want {
		r := records[i]
		if r.Name != w.name || r.Domain != w.domain || r.Kind != w.kind {
			t.Errorf("record %d: expected %+v, got %+v", i, w, r)
		}
	}
}

func TestIntegration_ProxyRotation(t *testing.T) {
	var proxyHits int32
	// The proxy answers for the search endpoint itself, which is not
	// resolvable, proving every request went through it.
	proxySrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&proxyHits, 1)
		if r.URL.Host != "search.invalid" {
			http.Error(w, "unexpected host", http.StatusBadGateway)
			return
		}
		resultPage(w, "https://"+strings.ToLower(strings.ReplaceAll(r.URL.Query().Get("q"), " ", ""))+".example/")
	}))
	defer proxySrv.Close()

	pPool := proxy.NewPool(proxy.Config{})
	if err := pPool.Add(proxySrv.URL); err != nil {
		t.Fatalf("add proxy: %v", err)
	}

	runner := newRunner(t, "http://search.invalid/html/", 3, httpbrowser.Config{
		ProxyPool: pPool,
		UAPool:    useragent.NewPool([]string{"IntegrationTest-UA"}),
	})

	outcomes, err := runner.Run(context.Background(), []string{"Acme", "Beta Co", "Gamma"})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if got := atomic.LoadInt32(&proxyHits); got != 3 {
		t.Errorf("expected 3 proxied requests, got %d", got)
	}
	wantHosts := []string{"acme.example", "betaco.example", "gamma.example"}
	for i, o := range outcomes {
		if o.Resolution.Kind != model.KindResolved || o.Resolution.Hostname != wantHosts[i] {
			t.Errorf("outcome %d: expected %s, got %+v", i, wantHosts[i], o.Resolution)
		}
	}
}

func TestIntegration_SessionIsolation(t *testing.T) {
	// Every response sets a cookie. A request that carries one came from a
	// reused or shared session and gets an anomaly page instead of results.
	var leaked int32
	searchServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("ddg_session"); err == nil {
			atomic.AddInt32(&leaked, 1)
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, `<html><body><div class="anomaly-modal">Unfortunately, bots use DuckDuckGo too.</div></body></html>`)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "ddg_session", Value: r.URL.Query().Get("q"), Path: "/"})
		resultPage(w, "https://shared.example/")
	}))
	defer searchServer.Close()

	runner := newRunner(t, searchServer.URL+"/html/", 2, httpbrowser.Config{})

	names := []string{"A", "B", "C", "D", "E"}
	outcomes, err := runner.Run(context.Background(), names)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if n := atomic.LoadInt32(&leaked); n != 0 {
		t.Errorf("expected every session to start without cookies, %d requests carried one", n)
	}
	for i, o := range outcomes {
		if o.Name != names[i] || o.Resolution.Kind != model.KindResolved {
			t.Errorf("outcome %d: unexpected %+v", i, o)
		}
	}
}

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/FranksOps/domainhunt/internal/config"
	"github.com/FranksOps/domainhunt/internal/fingerprint"
)

var envKeys = []string{
	"INPUT", "INPUT_CSV", "OUTPUT", "OUTPUT_CSV", "CONCURRENCY", "DELAY", "DELAY_MS",
	"BROWSER", "NAV_TIMEOUT_MS", "CHROME_PATH", "CHROME_PROXY", "SEARCH_ENDPOINT",
	"APEX_DOMAIN", "FINGERPRINT", "PROXY_FILE", "USER_AGENTS_FILE", "RPS", "JITTER",
	"METRICS_PORT", "LOG_LEVEL",
}

// searchServer answers like the DuckDuckGo HTML endpoint: one result link
// for names in results, an empty result list otherwise.
func searchServer(t *testing.T, results map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><body><div class="results">`)
		if target, ok := results[r.URL.Query().Get("q")]; ok {
			fmt.Fprintf(w, `<a class="result__a" href="//duckduckgo.com/l/?uddg=%s&amp;rut=abc">Result</a>`, url.QueryEscape(target))
		}
		fmt.Fprint(w, `</div></body></html>`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func setupEnv(t *testing.T, endpoint, output string) string {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}

	dir := t.TempDir()
	in := filepath.Join(dir, "input.csv")
	if err := os.WriteFile(in, []byte("Company\nAcme Inc\n---\n  \nBeta LLC\n"), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("INPUT", in)
	t.Setenv("OUTPUT", filepath.Join(dir, output))
	t.Setenv("CONCURRENCY", "2")
	t.Setenv("DELAY", "0")
	t.Setenv("SEARCH_ENDPOINT", endpoint)
	t.Setenv("FINGERPRINT", "go")
	t.Setenv("LOG_LEVEL", "error")
	return filepath.Join(dir, output)
}

func execute(args ...string) (string, error) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--env-file="}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRoot_EndToEnd(t *testing.T) {
	srv := searchServer(t, map[string]string{"Acme Inc": "https://acme.com/about"})
	output := setupEnv(t, srv.URL+"/html/", "output.csv")

	stdout, err := execute()
	if err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, stdout)
	}

	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if want := "Name,Domain\nAcme Inc,acme.com\nBeta LLC,Not Found\n"; string(data) != want {
		t.Errorf("expected output:\n%s\ngot:\n%s", want, data)
	}

	if !strings.Contains(stdout, "Results saved to") {
		t.Errorf("expected a final message, got:\n%s", stdout)
	}
	if !strings.Contains(stdout, "Resolved:       1") {
		t.Errorf("expected a summary, got:\n%s", stdout)
	}

	summary, err := execute("summary", output, "--format", "json")
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	if !strings.Contains(summary, `"Resolved": 1`) || !strings.Contains(summary, `"NotFound": 1`) {
		t.Errorf("unexpected summary:\n%s", summary)
	}
}

func TestRoot_SQLiteOutput(t *testing.T) {
	srv := searchServer(t, map[string]string{"Beta LLC": "https://www.beta.example/"})
	output := setupEnv(t, srv.URL+"/html/", "results.db")

	if out, err := execute(); err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, out)
	}

	summary, err := execute("summary", output)
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	if !strings.Contains(summary, "Total Names:    2") {
		t.Errorf("unexpected summary:\n%s", summary)
	}
}

func TestRoot_FailuresAreNotFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	output := setupEnv(t, srv.URL+"/html/", "output.csv")

	if out, err := execute(); err != nil {
		t.Fatalf("expected per-item failures to be recorded, got %v\n%s", err, out)
	}

	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatal(err)
	}
	if want := "Name,Domain\nAcme Inc,Error\nBeta LLC,Error\n"; string(data) != want {
		t.Errorf("expected output:\n%s\ngot:\n%s", want, data)
	}
}

func TestRoot_MissingInput(t *testing.T) {
	setupEnv(t, "http://127.0.0.1:1/html/", "output.csv")
	t.Setenv("INPUT", filepath.Join(t.TempDir(), "missing.csv"))

	if _, err := execute(); err == nil {
		t.Error("expected an error for a missing input file")
	}
}

func TestRoot_LaunchFailureLeavesNoOutput(t *testing.T) {
	output := setupEnv(t, "http://127.0.0.1:1/html/", "output.csv")
	t.Setenv("BROWSER", "chromium")
	t.Setenv("CHROME_PATH", filepath.Join(t.TempDir(), "no-such-chromium"))

	if _, err := execute(); err == nil {
		t.Fatal("expected an error when the browser cannot start")
	}
	if _, err := os.Stat(output); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected no output file after a failed launch, got %v", err)
	}
}

func TestRoot_InvalidConfig(t *testing.T) {
	setupEnv(t, "http://127.0.0.1:1/html/", "output.csv")
	t.Setenv("CONCURRENCY", "0")

	_, err := execute()
	if !errors.Is(err, config.ErrInvalidConcurrency) {
		t.Errorf("expected ErrInvalidConcurrency, got %v", err)
	}
}

func TestSummary_UnknownFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	if err := os.WriteFile(path, []byte("Name,Domain\nAcme,acme.com\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := execute("summary", path, "--format", "xml"); err == nil {
		t.Error("expected an error for an unknown format")
	}
	if _, err := execute("summary", filepath.Join(t.TempDir(), "none.csv")); err == nil {
		t.Error("expected an error for a missing output file")
	}
}

func TestNewLauncher_ProxyFingerprintWarning(t *testing.T) {
	proxies := filepath.Join(t.TempDir(), "proxies.txt")
	if err := os.WriteFile(proxies, []byte("127.0.0.1:8080\n"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		profile fingerprint.Profile
		warn    bool
	}{
		{fingerprint.ProfileChrome, true},
		{fingerprint.ProfileGo, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.profile), func(t *testing.T) {
			var logs bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&logs, nil))
			cfg := config.Config{Browser: config.BrowserHTTP, Fingerprint: tt.profile, ProxyFile: proxies}

			if _, err := newLauncher(cfg, logger); err != nil {
				t.Fatalf("newLauncher failed: %v", err)
			}
			if got := strings.Contains(logs.String(), "Go TLS fingerprint"); got != tt.warn {
				t.Errorf("expected warning %v, logs:\n%s", tt.warn, logs.String())
			}
		})
	}
}

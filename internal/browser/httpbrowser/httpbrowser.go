package httpbrowser

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/FranksOps/domainhunt/internal/browser"
	"github.com/FranksOps/domainhunt/internal/bypass"
	"github.com/FranksOps/domainhunt/internal/fingerprint"
	"github.com/FranksOps/domainhunt/internal/metrics"
	"github.com/FranksOps/domainhunt/pkg/httpclient"
	"github.com/FranksOps/domainhunt/pkg/proxy"
	"github.com/FranksOps/domainhunt/pkg/ratelimit"
	"github.com/FranksOps/domainhunt/pkg/useragent"
	"golang.org/x/net/html/charset"
)

// MaxBodyBytes caps how much of a page is read.
const MaxBodyBytes = 5 << 20

type contextKey string

const proxyKey contextKey = "proxy_url"

// Config configures the engine.
type Config struct {
	// Timeout bounds each navigation. Default 30s.
	Timeout      time.Duration
	MaxRedirects int
	Fingerprint  fingerprint.Profile
	ProxyPool    *proxy.Pool
	UAPool       *useragent.Pool
	Limiter      *ratelimit.Limiter
	// Detectors override bypass.DefaultDetectors when non-nil.
	Detectors []bypass.Detector
	// InsecureSkipVerify disables certificate checks. Tests only.
	InsecureSkipVerify bool
	Logger             *slog.Logger
}

var _ browser.Engine = (*Engine)(nil)

// Engine shares one transport across every session it creates. Sessions get
// their own cookie jar and User-Agent.
type Engine struct {
	cfg       Config
	transport *http.Transport
	closed    atomic.Bool
}

// Launch builds the shared transport.
func Launch(ctx context.Context, cfg Config) (*Engine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UAPool == nil {
		cfg.UAPool = useragent.NewPool(nil)
	}
	if cfg.Fingerprint == "" {
		cfg.Fingerprint = fingerprint.ProfileChrome
	}
	if cfg.Detectors == nil {
		cfg.Detectors = bypass.DefaultDetectors()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	// The proxy for a request travels in its context so rotation needs no
	// per-request transport.
	proxyFunc := func(req *http.Request) (*url.URL, error) {
		if u, ok := req.Context().Value(proxyKey).(*url.URL); ok && u != nil {
			return u, nil
		}
		return http.ProxyFromEnvironment(req)
	}

	transport, err := fingerprint.Transport(fingerprint.Options{
		Profile:            cfg.Fingerprint,
		Proxy:              proxyFunc,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	})
	if err != nil {
		return nil, fmt.Errorf("setup transport: %w", err)
	}

	return &Engine{cfg: cfg, transport: transport}, nil
}

// Launcher adapts Launch to browser.Launcher.
func Launcher(cfg Config) browser.Launcher {
	return func(ctx context.Context) (browser.Engine, error) {
		return Launch(ctx, cfg)
	}
}

// NewSession returns a fresh session with an empty cookie jar.
func (e *Engine) NewSession(ctx context.Context) (browser.Session, error) {
	if e.closed.Load() {
		return nil, browser.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client := httpclient.New(httpclient.Config{
		Timeout:      e.cfg.Timeout,
		MaxRedirects: e.cfg.MaxRedirects,
		Jar:          httpclient.NewJar(),
		Transport:    e.transport,
	})

	return &session{
		engine:    e,
		client:    client,
		userAgent: e.cfg.UAPool.Next(),
	}, nil
}

// Close drops idle connections. Further NewSession calls fail.
func (e *Engine) Close() error {
	if e.closed.Swap(true) {
		return nil
	}
	e.transport.CloseIdleConnections()
	return nil
}

// session is not safe for concurrent use.
type session struct {
	engine    *Engine
	client    *httpclient.Client
	userAgent string
	page      *browser.Page
	closed    bool
}

func (s *session) Navigate(ctx context.Context, targetURL string) error {
	if s.closed {
		return browser.ErrClosed
	}
	s.page = nil

	cfg := s.engine.cfg
	if err := cfg.Limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	var activeProxy *url.URL
	if cfg.ProxyPool != nil {
		activeProxy = cfg.ProxyPool.Next()
	}
	if activeProxy != nil {
		ctx = context.WithValue(ctx, proxyKey, activeProxy)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := s.client.Do(ctx, req)
	if err != nil {
		if activeProxy != nil {
			_ = cfg.ProxyPool.MarkFailure(activeProxy)
			metrics.ProxyFailures.WithLabelValues(activeProxy.Redacted()).Inc()
		}
		return err
	}
	defer resp.Body.Close()

	if activeProxy != nil {
		_ = cfg.ProxyPool.MarkSuccess(activeProxy)
	}

	body, err := readBody(resp)
	if err != nil {
		return err
	}

	if src, ok := bypass.Analyze(&bypass.Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, cfg.Detectors); ok {
		metrics.ChallengesTotal.WithLabelValues(src).Inc()
		cfg.Logger.Debug("challenge detected", "url", targetURL, "source", src)
		return fmt.Errorf("%w: %s", browser.ErrChallenged, src)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%w: %s", browser.ErrStatus, resp.Status)
	}

	page, err := browser.NewPage(resp.Request.URL.String(), body)
	if err != nil {
		return err
	}
	s.page = page
	return nil
}

func (s *session) Snapshot(ctx context.Context) (*browser.Page, error) {
	if s.closed {
		return nil, browser.ErrClosed
	}
	if s.page == nil {
		return nil, browser.ErrNotNavigated
	}
	return s.page, nil
}

func (s *session) Close() error {
	s.closed = true
	s.page = nil
	return nil
}

// readBody reads at most MaxBodyBytes and converts the declared charset to
// UTF-8.
func readBody(resp *http.Response) ([]byte, error) {
	r, err := charset.NewReader(io.LimitReader(resp.Body, MaxBodyBytes), resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// Package chromium is a browser.Engine backed by a headless Chromium driven
// over the DevTools protocol. One browser process serves the whole run and
// every session is its own tab.
package chromium

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/FranksOps/domainhunt/internal/browser"
	"github.com/FranksOps/domainhunt/internal/bypass"
	"github.com/FranksOps/domainhunt/internal/metrics"
	"github.com/FranksOps/domainhunt/pkg/useragent"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// Config configures the engine.
type Config struct {
	// ExecPath overrides Chromium discovery.
	ExecPath string
	// Timeout bounds each navigation. Default 30s.
	Timeout time.Duration
	UAPool  *useragent.Pool
	// ProxyServer is passed to Chromium as --proxy-server.
	ProxyServer string
	// Headful shows the browser window. Debugging only.
	Headful bool
	// Detectors recognise challenge pages. Defaults to bypass.DefaultDetectors.
	Detectors []bypass.Detector
	Logger    *slog.Logger
}

var _ browser.Engine = (*Engine)(nil)

// Engine owns the Chromium process.
type Engine struct {
	cfg           Config
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc

	closeOnce sync.Once
	closeErr  error
}

// Launch starts Chromium and waits for the first tab to come up.
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
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Detectors == nil {
		cfg.Detectors = bypass.DefaultDetectors()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(cfg.UAPool.Random()),
		chromedp.Flag("headless", !cfg.Headful),
	)
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if cfg.ProxyServer != "" {
		opts = append(opts, chromedp.ProxyServer(cfg.ProxyServer))
	}

	// The browser outlives ctx: it is torn down by Close, not by the
	// caller's context.
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(ctx), opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx,
		chromedp.WithErrorf(func(format string, args ...any) {
			cfg.Logger.Debug("chromedp", "msg", fmt.Sprintf(format, args...))
		}),
	)

	// The first Run allocates the browser and binds it to the context it is
	// given, so it must not be a timeout-derived one.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("start chromium: %w", err)
	}

	return &Engine{
		cfg:           cfg,
		browserCtx:    browserCtx,
		cancelBrowser: cancelBrowser,
		cancelAlloc:   cancelAlloc,
	}, nil
}

// Launcher adapts Launch to browser.Launcher.
func Launcher(cfg Config) browser.Launcher {
	return func(ctx context.Context) (browser.Engine, error) {
		return Launch(ctx, cfg)
	}
}

// NewSession opens a new tab.
func (e *Engine) NewSession(ctx context.Context) (browser.Session, error) {
	if e.browserCtx.Err() != nil {
		return nil, browser.ErrClosed
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tabCtx, cancel := chromedp.NewContext(e.browserCtx)
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("open tab: %w", err)
	}
	return &session{ctx: tabCtx, cancel: cancel, cfg: e.cfg}, nil
}

// Close shuts the browser down gracefully, then releases the allocator.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		if err := chromedp.Cancel(e.browserCtx); err != nil {
			e.closeErr = fmt.Errorf("close chromium: %w", err)
		}
		e.cancelBrowser()
		e.cancelAlloc()
	})
	return e.closeErr
}

type session struct {
	ctx    context.Context
	cancel context.CancelFunc
	cfg    Config
	page   *browser.Page
	closed bool
}

// Navigate loads targetURL and captures the DOM once the load event fires, so
// script-rendered results are included. Challenge pages and error statuses
// fail the navigation the same way they do for the HTTP engine.
func (s *session) Navigate(ctx context.Context, targetURL string) error {
	if s.closed {
		return browser.ErrClosed
	}
	s.page = nil

	var (
		resp           *network.Response
		location, html string
	)
	err := runWithin(ctx, s.ctx, s.cfg.Timeout, func(runCtx context.Context) error {
		var err error
		if resp, err = chromedp.RunResponse(runCtx, chromedp.Navigate(targetURL)); err != nil {
			return err
		}
		return chromedp.Run(runCtx,
			chromedp.Location(&location),
			chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		)
	})
	if err != nil {
		return err
	}

	if err := inspect(resp, html, s.cfg.Detectors); err != nil {
		s.cfg.Logger.Debug("navigation rejected", "url", targetURL, "error", err)
		return err
	}

	page, err := browser.NewPage(location, []byte(html))
	if err != nil {
		return err
	}
	s.page = page
	return nil
}

// Snapshot returns the document captured by the last Navigate.
func (s *session) Snapshot(ctx context.Context) (*browser.Page, error) {
	if s.closed {
		return nil, browser.ErrClosed
	}
	if s.page == nil {
		return nil, browser.ErrNotNavigated
	}
	return s.page, nil
}

// inspect applies the challenge detectors and the status check to a loaded
// document. resp is nil when Chromium reported no document response, in which
// case the page is judged on its markup alone.
func inspect(resp *network.Response, html string, detectors []bypass.Detector) error {
	r := &bypass.Response{StatusCode: http.StatusOK, Header: http.Header{}, Body: []byte(html)}
	if resp != nil {
		r.StatusCode = int(resp.Status)
		for k, v := range resp.Headers {
			r.Header.Set(k, fmt.Sprint(v))
		}
	}

	if src, ok := bypass.Analyze(r, detectors); ok {
		metrics.ChallengesTotal.WithLabelValues(src).Inc()
		return fmt.Errorf("%w: %s", browser.ErrChallenged, src)
	}
	if r.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%w: %d %s", browser.ErrStatus, r.StatusCode, http.StatusText(r.StatusCode))
	}
	return nil
}

// Close closes the tab.
func (s *session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.page = nil
	err := chromedp.Cancel(s.ctx)
	s.cancel()
	return err
}

// runWithin runs fn against target, a chromedp context, bounded by timeout
// and aborted when parent is done.
func runWithin(parent, target context.Context, timeout time.Duration, fn func(runCtx context.Context) error) error {
	runCtx, cancel := context.WithTimeout(target, timeout)
	defer cancel()
	stop := context.AfterFunc(parent, cancel)
	defer stop()

	if err := fn(runCtx); err != nil {
		if parent.Err() != nil {
			return parent.Err()
		}
		return err
	}
	return nil
}

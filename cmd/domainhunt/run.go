package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/FranksOps/domainhunt/internal/browser"
	"github.com/FranksOps/domainhunt/internal/browser/chromium"
	"github.com/FranksOps/domainhunt/internal/browser/httpbrowser"
	"github.com/FranksOps/domainhunt/internal/config"
	"github.com/FranksOps/domainhunt/internal/input"
	"github.com/FranksOps/domainhunt/internal/metrics"
	"github.com/FranksOps/domainhunt/internal/model"
	"github.com/FranksOps/domainhunt/internal/pipeline"
	"github.com/FranksOps/domainhunt/internal/report"
	"github.com/FranksOps/domainhunt/internal/serp"
	"github.com/FranksOps/domainhunt/pkg/proxy"
	"github.com/FranksOps/domainhunt/pkg/ratelimit"
	"github.com/FranksOps/domainhunt/pkg/useragent"
	"github.com/google/uuid"
)

// run performs one enrichment: read names, resolve them, save the outcomes
// and print a summary to out.
func run(ctx context.Context, cfg config.Config, logger *slog.Logger, out io.Writer) (err error) {
	runID := uuid.NewString()
	logger = logger.With("run_id", runID)

	if cfg.MetricsPort > 0 {
		srv := metrics.Start(cfg.MetricsPort, logger)
		defer func() {
			if serr := srv.Stop(context.WithoutCancel(ctx)); serr != nil {
				logger.Warn("failed to stop metrics server", "err", serr)
			}
		}()
		logger.Info("serving metrics", "port", cfg.MetricsPort)
	}

	logger.Info("reading input", "path", cfg.Input)
	names, err := input.ReadFile(cfg.Input)
	if err != nil {
		return err
	}
	logger.Info("input loaded", "valid_entries", len(names))

	sink, err := openSink(ctx, cfg.Output)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sink.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close output: %w", cerr))
		}
	}()

	launch, err := newLauncher(cfg, logger)
	if err != nil {
		return err
	}

	runner, err := pipeline.New(pipeline.Config{
		Concurrency: cfg.Concurrency,
		Delay:       cfg.Delay,
		Provider:    serp.NewDuckDuckGo(cfg.SearchEndpoint, cfg.ApexDomain),
		Logger:      logger,
	}, launch)
	if err != nil {
		return err
	}

	logger.Info("searching domains", "concurrency", cfg.Concurrency, "browser", cfg.Browser)
	start := time.Now()
	outcomes, runErr := runner.Run(ctx, names)
	end := time.Now()

	// Whatever was gathered before a fatal error or an interrupt is still
	// written out.
	if runErr != nil && len(outcomes) == 0 {
		return runErr
	}

	logger.Info("saving results", "path", cfg.Output, "outcomes", len(outcomes))
	if err := sink.Save(context.WithoutCancel(ctx), runID, outcomes); err != nil {
		return errors.Join(runErr, fmt.Errorf("save results: %w", err))
	}

	summary := report.Summarize(model.NewRecords(runID, outcomes, end), start, end)
	if err := report.WriteText(out, summary); err != nil {
		return errors.Join(runErr, err)
	}
	fmt.Fprintf(out, "\nResults saved to %q.\n", cfg.Output)

	return runErr
}

// newLauncher builds the browsing engine selected by cfg.Browser.
func newLauncher(cfg config.Config, logger *slog.Logger) (browser.Launcher, error) {
	uas := useragent.NewPool(nil)
	if cfg.UserAgentsFile != "" {
		var err error
		if uas, err = useragent.LoadFile(cfg.UserAgentsFile); err != nil {
			return nil, err
		}
	}

	switch cfg.Browser {
	case config.BrowserChromium:
		return chromium.Launcher(chromium.Config{
			ExecPath:    cfg.ChromePath,
			Timeout:     cfg.NavTimeout,
			UAPool:      uas,
			ProxyServer: cfg.ChromeProxy,
			Logger:      logger,
		}), nil

	default:
		var proxies *proxy.Pool
		if cfg.ProxyFile != "" {
			proxies = proxy.NewPool(proxy.Config{})
			if err := proxies.LoadFile(cfg.ProxyFile); err != nil {
				return nil, err
			}
			logger.Info("proxy rotation enabled", "proxies", proxies.Len())
			if cfg.Fingerprint.Imitated() {
				logger.Warn("proxied https requests use the Go TLS fingerprint", "fingerprint", cfg.Fingerprint)
			}
		}

		return httpbrowser.Launcher(httpbrowser.Config{
			Timeout:     cfg.NavTimeout,
			Fingerprint: cfg.Fingerprint,
			ProxyPool:   proxies,
			UAPool:      uas,
			Limiter:     ratelimit.NewLimiter(cfg.RPS, cfg.Jitter),
			Logger:      logger,
		}), nil
	}
}

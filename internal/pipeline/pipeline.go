// Package pipeline runs lookups for an ordered list of names in throttled,
// concurrent batches against a shared browsing engine.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/FranksOps/domainhunt/internal/batch"
	"github.com/FranksOps/domainhunt/internal/browser"
	"github.com/FranksOps/domainhunt/internal/config"
	"github.com/FranksOps/domainhunt/internal/lookup"
	"github.com/FranksOps/domainhunt/internal/metrics"
	"github.com/FranksOps/domainhunt/internal/model"
	"github.com/FranksOps/domainhunt/internal/serp"
	"github.com/FranksOps/domainhunt/pkg/ratelimit"
	"golang.org/x/sync/errgroup"
)

// Config provides parameters for the runner.
type Config struct {
	// Concurrency is the batch size and the number of sessions open at once.
	Concurrency int
	// Delay is the pause between consecutive batches.
	Delay    time.Duration
	Provider serp.Provider
	Logger   *slog.Logger
}

// Runner owns the browsing engine for the duration of a run.
type Runner struct {
	cfg    Config
	launch browser.Launcher
	logger *slog.Logger
	pause  func(ctx context.Context, d time.Duration) error
}

// New validates cfg and returns a runner that starts engines with launch.
func New(cfg Config, launch browser.Launcher) (*Runner, error) {
	if cfg.Concurrency <= 0 {
		return nil, fmt.Errorf("concurrency %d: %w", cfg.Concurrency, batch.ErrInvalidSize)
	}
	if cfg.Delay < 0 {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalidDelay, cfg.Delay)
	}
	if cfg.Provider == nil {
		return nil, errors.New("provider is nil")
	}
	if launch == nil {
		return nil, errors.New("launcher is nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Runner{
		cfg:    cfg,
		launch: launch,
		logger: cfg.Logger,
		pause:  ratelimit.Pause,
	}, nil
}

// Run resolves every name and returns one outcome per name in input order.
// Individual lookup failures are reported as Failed outcomes; only engine
// launch or shutdown errors, or cancellation of ctx, are returned as errors.
// On error the outcomes gathered so far are returned alongside it.
func (r *Runner) Run(ctx context.Context, names []string) (outcomes []model.Outcome, err error) {
	engine, err := r.launch(ctx)
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	defer func() {
		if cerr := engine.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close browser: %w", cerr))
		}
	}()

	batches, err := batch.Split(names, r.cfg.Concurrency)
	if err != nil {
		return nil, err
	}

	outcomes = make([]model.Outcome, 0, len(names))
	for i, group := range batches {
		r.logger.Info("processing batch", "batch", i+1, "of", len(batches), "size", len(group))

		outcomes = append(outcomes, r.runBatch(ctx, engine, group)...)
		metrics.BatchesTotal.Inc()

		if i == len(batches)-1 {
			break
		}
		r.logger.Info("batch done, waiting", "batch", i+1, "delay", r.cfg.Delay)
		if err := r.pause(ctx, r.cfg.Delay); err != nil {
			return outcomes, err
		}
	}

	if err := ctx.Err(); err != nil {
		return outcomes, err
	}
	return outcomes, nil
}

// runBatch opens one session per name, runs every lookup concurrently and
// closes all sessions before returning. results[i] always belongs to
// names[i].
func (r *Runner) runBatch(ctx context.Context, engine browser.Engine, names []string) []model.Outcome {
	sessions := make([]browser.Session, len(names))
	openErrs := make([]error, len(names))

	var open errgroup.Group
	for i := range names {
		open.Go(func() error {
			sessions[i], openErrs[i] = engine.NewSession(ctx)
			return nil
		})
	}
	_ = open.Wait()
	defer r.closeAll(sessions, names)

	results := make([]model.Outcome, len(names))
	var lookups errgroup.Group
	for i, name := range names {
		lookups.Go(func() error {
			start := time.Now()
			if openErrs[i] != nil {
				results[i] = model.Outcome{Name: name, Resolution: model.Failed(fmt.Errorf("open session: %w", openErrs[i]))}
			} else {
				results[i] = lookup.Lookup(ctx, sessions[i], r.cfg.Provider, name)
			}
			metrics.RecordLookup(r.cfg.Provider.Name(), results[i], time.Since(start))

			switch res := results[i].Resolution; res.Kind {
			case model.KindFailed:
				r.logger.Warn("lookup failed", "name", name, "err", res.Err)
			case model.KindNotFound:
				r.logger.Debug("no result", "name", name)
			default:
				r.logger.Debug("resolved", "name", name, "domain", res.Hostname)
			}
			return nil
		})
	}
	_ = lookups.Wait()

	return results
}

func (r *Runner) closeAll(sessions []browser.Session, names []string) {
	var g errgroup.Group
	for i, s := range sessions {
		if s == nil {
			continue
		}
		g.Go(func() error {
			if err := s.Close(); err != nil {
				r.logger.Warn("failed to close session", "name", names[i], "err", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

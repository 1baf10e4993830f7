package ratelimit

import (
	"context"
	"math/rand/v2"
	"time"

	"golang.org/x/time/rate"
)

// Limiter paces outgoing requests at a fixed rate with optional jitter.
// It is safe for concurrent use by multiple goroutines.
type Limiter struct {
	lim      *rate.Limiter
	jitter   float64 // 0.0 to 1.0
	interval time.Duration
}

// NewLimiter creates a limiter allowing rps requests per second with a burst
// of one. Jitter is clamped to [0, 1]. If rps is <= 0, Wait never blocks.
func NewLimiter(rps float64, jitter float64) *Limiter {
	jitter = min(max(jitter, 0), 1)
	if rps <= 0 {
		return &Limiter{jitter: jitter}
	}
	return &Limiter{
		lim:      rate.NewLimiter(rate.Limit(rps), 1),
		jitter:   jitter,
		interval: time.Duration(float64(time.Second) / rps),
	}
}

// Wait blocks until the next request may proceed or ctx is done. With jitter
// configured, up to jitter*interval of extra delay is added at random.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil || l.lim == nil {
		return nil
	}
	if err := l.lim.Wait(ctx); err != nil {
		return err
	}
	if l.jitter > 0 {
		extra := time.Duration(rand.Float64() * l.jitter * float64(l.interval))
		return Pause(ctx, extra)
	}
	return nil
}

// Pause suspends the caller for d or until ctx is done, whichever is first.
// Non-positive durations return immediately.
func Pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Package retry wraps a single vendor call with transient-error
// classification and bounded linear backoff.
package retry

import (
	"context"
	"fmt"
	"time"

	"storyboard-server/internal/providers/gateway"
)

// Options tunes the controller. Zero values pick the defaults below.
type Options struct {
	MaxAttempts  int
	BaseInterval time.Duration
	// Sleep is injectable for tests; defaults to a context-aware wait.
	Sleep func(ctx context.Context, d time.Duration) error
}

const (
	defaultMaxAttempts  = 3
	defaultBaseInterval = 2 * time.Second
)

// Controller retries an operation while its error classifies transient.
// Non-transient errors propagate immediately on first occurrence. The
// operation must rebuild any consumed state (request bodies, attachments)
// on every invocation.
type Controller struct {
	maxAttempts  int
	baseInterval time.Duration
	sleep        func(ctx context.Context, d time.Duration) error
}

// New constructs a controller from options.
func New(opts Options) *Controller {
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	baseInterval := opts.BaseInterval
	if baseInterval <= 0 {
		baseInterval = defaultBaseInterval
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	return &Controller{maxAttempts: maxAttempts, baseInterval: baseInterval, sleep: sleep}
}

// Do runs op up to MaxAttempts times, waiting base*attempt between attempts.
// After exhausting attempts it returns a single aggregated permanent error
// wrapping the last transient cause.
func (c *Controller) Do(ctx context.Context, op func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !gateway.IsTransient(err) {
			return err
		}
		lastErr = err
		if attempt == c.maxAttempts {
			break
		}
		if err := c.sleep(ctx, c.baseInterval*time.Duration(attempt)); err != nil {
			return err
		}
	}
	return fmt.Errorf("retry: gave up after %d attempts: %w", c.maxAttempts, lastErr)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

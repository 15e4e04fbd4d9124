// internal/drivers/retry.go
package drivers

import (
	"context"
	"time"

	"github.com/FairForge/pollstore/internal/engine"
	"github.com/FairForge/pollstore/internal/retry"
	"go.uber.org/zap"
)

// RetryPolicy defines how to retry failed operations
type RetryPolicy struct {
	maxAttempts int
	backoff     retry.Backoff
	logger      *zap.Logger
}

// RetryOption configures retry behavior
type RetryOption func(*RetryPolicy)

// WithMaxAttempts sets maximum retry attempts
func WithMaxAttempts(n int) RetryOption {
	return func(p *RetryPolicy) {
		p.maxAttempts = n
	}
}

// WithInitialDelay sets the initial retry delay
func WithInitialDelay(d time.Duration) RetryOption {
	return func(p *RetryPolicy) {
		p.backoff.Initial = d
	}
}

// WithMaxDelay sets the maximum retry delay
func WithMaxDelay(d time.Duration) RetryOption {
	return func(p *RetryPolicy) {
		p.backoff.Max = d
	}
}

// WithJitter spreads delays between 0.5x and 1.5x when enabled
func WithJitter(enabled bool) RetryOption {
	return func(p *RetryPolicy) {
		p.backoff.Jitter = 0
		if enabled {
			p.backoff.Jitter = 0.5
		}
	}
}

// WithLogger adds logging to retry attempts
func WithLogger(logger *zap.Logger) RetryOption {
	return func(p *RetryPolicy) {
		p.logger = logger
	}
}

// NewRetryPolicy creates a new retry policy
func NewRetryPolicy(opts ...RetryOption) *RetryPolicy {
	p := &RetryPolicy{
		maxAttempts: 3,
		backoff: retry.Backoff{
			Initial:    50 * time.Millisecond,
			Max:        time.Second,
			Multiplier: 2,
			Jitter:     0.5,
		},
		logger: zap.NewNop(),
	}

	for _, opt := range opts {
		opt(p)
	}
	if p.maxAttempts < 1 {
		p.maxAttempts = 1
	}

	return p
}

// Execute runs fn until it succeeds, returns a not-found error, or the
// attempts run out.
func (p *RetryPolicy) Execute(ctx context.Context, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt < p.maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		lastErr = fn()
		if lastErr == nil {
			if attempt > 0 {
				p.logger.Debug("operation succeeded after retry",
					zap.Int("attempt", attempt+1),
					zap.Int("maxAttempts", p.maxAttempts))
			}
			return nil
		}
		// A miss is an answer, not a failure.
		if engine.IsNotFound(lastErr) {
			return lastErr
		}

		if attempt == p.maxAttempts-1 {
			break
		}

		delay := p.calculateDelay(attempt)

		p.logger.Debug("operation failed, retrying",
			zap.Error(lastErr),
			zap.Int("attempt", attempt+1),
			zap.Int("maxAttempts", p.maxAttempts),
			zap.Duration("delay", delay))

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}

	p.logger.Error("operation failed after all retries",
		zap.Error(lastErr),
		zap.Int("attempts", p.maxAttempts))

	return lastErr
}

// calculateDelay computes the delay for the given attempt
func (p *RetryPolicy) calculateDelay(attempt int) time.Duration {
	return p.backoff.Delay(attempt)
}

// RetryableDriver wraps a driver with retry logic. Every operation is safe
// to repeat: a Put replaces the whole blob.
type RetryableDriver struct {
	driver engine.Driver
	policy *RetryPolicy
}

// NewRetryableDriver creates a driver with retry capability
func NewRetryableDriver(driver engine.Driver, policy *RetryPolicy) *RetryableDriver {
	return &RetryableDriver{
		driver: driver,
		policy: policy,
	}
}

func (r *RetryableDriver) Name() string {
	return r.driver.Name()
}

func (r *RetryableDriver) Get(ctx context.Context, path string) (engine.Blob, error) {
	var result engine.Blob
	err := r.policy.Execute(ctx, func() error {
		var err error
		result, err = r.driver.Get(ctx, path)
		return err
	})
	return result, err
}

// Put reports existed from the last attempt. After a failed attempt that
// still reached the backend it may report true for a new path.
func (r *RetryableDriver) Put(ctx context.Context, blob engine.Blob) (bool, error) {
	var existed bool
	err := r.policy.Execute(ctx, func() error {
		var err error
		existed, err = r.driver.Put(ctx, blob)
		return err
	})
	return existed, err
}

func (r *RetryableDriver) Stat(ctx context.Context) (engine.DriverStats, error) {
	var result engine.DriverStats
	err := r.policy.Execute(ctx, func() error {
		var err error
		result, err = r.driver.Stat(ctx)
		return err
	})
	return result, err
}

// HealthCheck is not retried so readiness reflects the backend right now.
func (r *RetryableDriver) HealthCheck(ctx context.Context) error {
	return r.driver.HealthCheck(ctx)
}

// Close closes the wrapped driver when it holds resources.
func (r *RetryableDriver) Close() error {
	if c, ok := r.driver.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

package resilience

import (
	"context"
	stderrors "errors"
	"math"
	"math/rand/v2"
	"time"

	"github.com/kbukum/hostkit/errors"
)

// Policy configures retry behavior. The zero value makes a single attempt.
type Policy struct {
	// MaxAttempts is the maximum number of attempts, including the first.
	MaxAttempts int `mapstructure:"max_attempts" validate:"gte=0"`
	// InitialBackoff is the delay before the second attempt.
	InitialBackoff time.Duration `mapstructure:"initial_backoff" validate:"gte=0"`
	// MaxBackoff caps the delay between attempts.
	MaxBackoff time.Duration `mapstructure:"max_backoff" validate:"gte=0"`
	// Factor multiplies the delay after every attempt.
	Factor float64 `mapstructure:"factor" validate:"gte=0"`
	// Jitter randomizes each delay by up to this fraction (0.0 to 1.0).
	Jitter float64 `mapstructure:"jitter" validate:"gte=0,lte=1"`
	// RetryIf decides whether an error is worth another attempt.
	RetryIf func(error) bool `mapstructure:"-"`
	// OnRetry is called before sleeping between attempts.
	OnRetry func(attempt int, err error, backoff time.Duration) `mapstructure:"-"`
}

// DefaultPolicy makes three attempts starting at 100ms.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		Factor:         2,
		Jitter:         0.1,
	}
}

// Once makes exactly one attempt.
func Once() Policy {
	return Policy{MaxAttempts: 1}
}

// Retryable is the default RetryIf. Context errors are final; an AppError is
// retried only when it is marked retryable; anything else is retried.
func Retryable(err error) bool {
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if appErr, ok := errors.AsAppError(err); ok {
		return appErr.Retryable
	}
	return true
}

// Do calls fn until it succeeds, the error is not retryable, the attempts
// run out or ctx ends. It returns the last error from fn, or ctx's error
// when ctx ended first.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	retryIf := p.RetryIf
	if retryIf == nil {
		retryIf = Retryable
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == attempts || !retryIf(lastErr) {
			break
		}

		backoff := p.Backoff(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, lastErr, backoff)
		}
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}

// Backoff returns the delay after the given attempt (1-based).
func (p Policy) Backoff(attempt int) time.Duration {
	factor := p.Factor
	if factor <= 0 {
		factor = 1
	}
	d := float64(p.InitialBackoff) * math.Pow(factor, float64(attempt-1))
	if p.Jitter > 0 {
		d += (rand.Float64()*2 - 1) * d * p.Jitter
	}
	if p.MaxBackoff > 0 && d > float64(p.MaxBackoff) {
		d = float64(p.MaxBackoff)
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

// Value calls fn under p and returns its result.
func Value[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := p.Do(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

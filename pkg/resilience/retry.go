// Package resilience bounds and retries calls to remote dependencies such as
// model mirrors and the embedding service.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"
)

// Backoff is an exponential delay schedule with symmetric jitter. Zero
// fields take the defaults of DefaultBackoff.
type Backoff struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	Jitter     float64
}

// DefaultBackoff starts at half a second and doubles up to thirty seconds.
var DefaultBackoff = Backoff{
	Initial:    500 * time.Millisecond,
	Max:        30 * time.Second,
	Multiplier: 2,
	Jitter:     0.1,
}

func (b Backoff) normalized() Backoff {
	if b.Initial <= 0 {
		b.Initial = DefaultBackoff.Initial
	}
	if b.Max <= 0 {
		b.Max = DefaultBackoff.Max
	}
	if b.Multiplier < 1 {
		b.Multiplier = DefaultBackoff.Multiplier
	}
	if b.Jitter <= 0 {
		b.Jitter = DefaultBackoff.Jitter
	}
	return b
}

// Delay is the wait after failed attempt n, counting from 1. It never
// exceeds Max.
func (b Backoff) Delay(n int) time.Duration {
	b = b.normalized()
	d := float64(b.Initial) * math.Pow(b.Multiplier, float64(n-1))
	d += d * b.Jitter * (2*rand.Float64() - 1)
	return time.Duration(min(max(d, float64(b.Initial)/2), float64(b.Max)))
}

// Policy is how often and how patiently Retry calls an operation.
type Policy struct {
	Attempts int
	Backoff  Backoff
}

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying; Retry returns the wrapped
// error unchanged.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Retry calls fn until it succeeds, fails permanently, exhausts
// p.Attempts (3 when unset) or ctx ends.
func Retry(ctx context.Context, name string, p Policy, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 3
	}
	logger := slog.Default().With("component", "retry", "operation", name)

	var err error
	for n := 1; ; n++ {
		if err = fn(ctx); err == nil {
			if n > 1 {
				logger.Info("succeeded after retry", "attempt", n)
			}
			return nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if n == attempts {
			return fmt.Errorf("%s failed after %d attempts: %w", name, attempts, err)
		}

		delay := p.Backoff.Delay(n)
		logger.Warn("attempt failed", "attempt", n, "max_attempts", attempts, "next_delay", delay, "error", err)
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s aborted: %w", name, ctx.Err())
		}
	}
}

package resilience

import (
	"context"
	"errors"
	"net/http"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/thesis-search/pkg/errors"
)

var errBudget = errors.New("time budget exhausted")

// WithTimeout gives fn at most d. When the budget runs out first the caller
// gets ErrTimeout while fn keeps running until it notices its context.
// Cancellation of ctx itself is returned unchanged.
func WithTimeout(ctx context.Context, d time.Duration, name string, fn func(ctx context.Context) error) error {
	if d <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeoutCause(ctx, d, errBudget)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn(ctx) }()

	var err error
	select {
	case err = <-done:
		if err == nil {
			return nil
		}
	case <-ctx.Done():
	}
	if ctx.Err() == nil {
		return err
	}
	if cause := context.Cause(ctx); !errors.Is(cause, errBudget) {
		return cause
	}
	return apperrors.Newf(apperrors.ErrTimeout, http.StatusGatewayTimeout, "%s exceeded %v", name, d)
}

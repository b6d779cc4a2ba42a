package session

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy controls how chat creation is retried. The delay is fixed,
// not exponential: creation either recovers within a couple of attempts or
// the user is told it failed.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt, so the
	// total attempt count is MaxRetries + 1.
	MaxRetries uint64
	// Delay is the pause between attempts.
	Delay time.Duration
}

// DefaultRetryPolicy matches the production behavior: 3 total attempts,
// one second apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 2, Delay: time.Second}
}

// backOff builds the retry schedule bounded by the caller's context, so a
// request deadline caps the whole loop.
func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOffContext {
	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(p.Delay), p.MaxRetries)
	return backoff.WithContext(b, ctx)
}

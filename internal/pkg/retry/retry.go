// Package retry implements the fixed-delay, bounded retry policy shared by
// location acquisition fallback and tracking transmission.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy retries an operation at most MaxRetries times after the first
// attempt, waiting Delay between attempts.
type Policy struct {
	MaxRetries int
	Delay      time.Duration
}

// Attempts returns the total number of attempts the policy allows.
func (p Policy) Attempts() int {
	if p.MaxRetries < 0 {
		return 1
	}
	return p.MaxRetries + 1
}

func (p Policy) backOff() backoff.BackOff {
	retries := p.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return backoff.WithMaxRetries(backoff.NewConstantBackOff(p.Delay), uint64(retries))
}

// NotifyFunc is called after a failed attempt that will be retried.
// attempt is 1-based and refers to the attempt that just failed.
type NotifyFunc func(err error, attempt int, wait time.Duration)

// Do runs op until it succeeds, the retries are exhausted, or ctx is done. It returns the number of attempts made and the
// last error.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context, attempt int) error, notify NotifyFunc) (int, error) {
	attempt := 0
	operation := func() error {
		attempt++
		return op(ctx, attempt)
	}
	var onRetry backoff.Notify
	if notify != nil {
		onRetry = func(err error, wait time.Duration) {
			notify(err, attempt, wait)
		}
	}
	err := backoff.RetryNotify(operation, backoff.WithContext(p.backOff(), ctx), onRetry)
	return attempt, err
}

// Budget is an event-driven view of a Policy for callers that schedule their
// own retries instead of blocking in Do.
type Budget struct {
	policy Policy
	b      backoff.BackOff
	used   int
}

// Budget returns a fresh retry budget for p.
func (p Policy) Budget() *Budget {
	return &Budget{policy: p, b: p.backOff()}
}

// Next consumes one retry. It returns the delay to wait before retrying, or
// false when the budget is exhausted.
func (b *Budget) Next() (time.Duration, bool) {
	d := b.b.NextBackOff()
	if d == backoff.Stop {
		return 0, false
	}
	b.used++
	return d, true
}

// Used returns the number of retries consumed since the last Reset.
func (b *Budget) Used() int {
	return b.used
}

// Remaining returns the number of retries still available.
func (b *Budget) Remaining() int {
	return b.policy.Attempts() - 1 - b.used
}

// Reset restores the full budget.
func (b *Budget) Reset() {
	b.b = b.policy.backOff()
	b.used = 0
}

package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Notify is called before each wait with the attempt that just failed.
type Notify func(attempt int, err error, next time.Duration)

// policyBackOff adapts a Policy to backoff.BackOff. lastErr is set by the
// operation wrapper before NextBackOff runs, so the delay can depend on it.
type policyBackOff struct {
	policy  Policy
	attempt int
	lastErr error
}

func (b *policyBackOff) NextBackOff() time.Duration {
	b.attempt++
	if b.policy.MaxAttempts > 0 && b.attempt >= b.policy.MaxAttempts {
		return backoff.Stop
	}
	return b.policy.Delay(b.attempt, b.lastErr)
}

func (b *policyBackOff) Reset() {
	b.attempt = 0
	b.lastErr = nil
}

// Do runs op until it succeeds, returns a non-retryable error, the attempts
// are exhausted or ctx ends. On exhaustion the last error is returned.
func Do[T any](ctx context.Context, p Policy, op func(context.Context) (T, error), notify Notify) (T, error) {
	b := &policyBackOff{policy: p}

	operation := func() (T, error) {
		v, err := op(ctx)
		if err != nil {
			b.lastErr = err
			if !p.ShouldRetry(err) {
				return v, Permanent(err)
			}
		}
		return v, err
	}

	var n backoff.Notify
	if notify != nil {
		n = func(err error, next time.Duration) {
			notify(b.attempt, err, next)
		}
	}

	v, err := backoff.RetryNotifyWithData(operation, backoff.WithContext(b, ctx), n)
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) && permanent.Err != nil {
		err = permanent.Err
	}
	return v, err
}

// Run is Do for operations without a result value.
func Run(ctx context.Context, p Policy, op func(context.Context) error, notify Notify) error {
	_, err := Do(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	}, notify)
	return err
}

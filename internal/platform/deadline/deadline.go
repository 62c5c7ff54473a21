package deadline

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTimeout is matched by every TimeoutError via errors.Is.
var ErrTimeout = errors.New("operation timed out")

type TimeoutError struct {
	Message string
	After   time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s (timeout after %s)", e.Message, e.After)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// Timeout lets transient-error classification treat it like a net timeout.
func (e *TimeoutError) Timeout() bool { return true }

// Run races fn against a timer of duration d. When the timer wins it returns
// a *TimeoutError carrying msg; fn's context is cancelled so cooperative
// operations stop, and whatever fn eventually returns is dropped.
// Cancellation of the parent ctx is reported as ctx.Err().
func Run[T any](ctx context.Context, d time.Duration, msg string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if d <= 0 {
		return fn(ctx)
	}

	opCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(opCtx)
		done <- result{val: v, err: err}
	}()

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case r := <-done:
		return r.val, r.err
	case <-timer.C:
		return zero, &TimeoutError{Message: msg, After: d}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Do is Run for operations without a result value.
func Do(ctx context.Context, d time.Duration, msg string, fn func(context.Context) error) error {
	_, err := Run(ctx, d, msg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

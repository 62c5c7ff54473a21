package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"
	"time"
)

func fixedJitter(v float64) func() float64 { return func() float64 { return v } }

func TestDelayBounds(t *testing.T) {
	base, max := 100*time.Millisecond, 3*time.Second
	appErr := errors.New("bad request")

	for _, j := range []float64{0, 0.5, 0.999} {
		p := Policy{InitialDelay: base, MaxDelay: max, Jitter: fixedJitter(j)}
		prev := time.Duration(0)
		for n := 1; n <= 10; n++ {
			got := p.Delay(n, appErr)

			lower := base * time.Duration(1<<(n-1))
			if lower > max {
				lower = max
			}
			upper := time.Duration(float64(lower) * 1.3)
			if got < lower || got > upper {
				t.Errorf("jitter=%v n=%d: delay %v not in [%v, %v]", j, n, got, lower, upper)
			}
			if got < prev {
				t.Errorf("jitter=%v n=%d: delay %v decreased from %v", j, n, got, prev)
			}
			prev = got
		}
	}
}

func TestDelayTransientDoubles(t *testing.T) {
	p := Policy{InitialDelay: time.Second, MaxDelay: 30 * time.Second, Jitter: fixedJitter(0)}

	if got := p.Delay(1, syscall.ECONNRESET); got != 2*time.Second {
		t.Errorf("transient delay = %v, want 2s", got)
	}
	if got := p.Delay(1, errors.New("quest not found")); got != time.Second {
		t.Errorf("application delay = %v, want 1s", got)
	}
	if got := p.Delay(5, errors.New("proxyconnect tcp: refused")); got != 30*time.Second {
		t.Errorf("capped transient delay = %v, want 30s", got)
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{syscall.ECONNRESET, true},
		{fmt.Errorf("read: %w", syscall.EPIPE), true},
		{&net.OpError{Op: "dial", Err: errors.New("i/o timeout")}, true},
		{errors.New("socket hang up"), true},
		{errors.New("proxyconnect tcp: dial failed"), true},
		{errors.New("HTTP Error 500: Internal Server Error"), false},
		{errors.New("quest already completed"), false},
	}
	for _, tt := range tests {
		if got := IsTransient(tt.err); got != tt.want {
			t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestShouldRetryAllowList(t *testing.T) {
	all := Policy{}
	if !all.ShouldRetry(errors.New("whatever")) {
		t.Error("empty allow-list should retry any error")
	}

	p := Policy{Retryable: []string{"timeout", "503"}}
	if !p.ShouldRetry(errors.New("HTTP Error 503: Service Unavailable")) {
		t.Error("503 should be retryable")
	}
	if p.ShouldRetry(errors.New("HTTP Error 400")) {
		t.Error("400 should not be retryable")
	}
	if all.ShouldRetry(Permanent(errors.New("stop"))) {
		t.Error("permanent errors are never retried")
	}
}

func TestDoExhaustionReturnsLastError(t *testing.T) {
	p := Policy{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

	calls := 0
	var notified []int
	_, err := Do(context.Background(), p, func(context.Context) (int, error) {
		calls++
		return 0, fmt.Errorf("failure %d", calls)
	}, func(attempt int, err error, next time.Duration) {
		notified = append(notified, attempt)
	})

	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if err == nil || err.Error() != "failure 3" {
		t.Errorf("err = %v, want last error", err)
	}
	if len(notified) != 2 || notified[0] != 1 || notified[1] != 2 {
		t.Errorf("notified attempts = %v, want [1 2]", notified)
	}
}

func TestDoSucceedsAfterRetry(t *testing.T) {
	p := Policy{MaxAttempts: 5, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

	calls := 0
	got, err := Do(context.Background(), p, func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("flaky")
		}
		return "ok", nil
	}, nil)
	if err != nil || got != "ok" {
		t.Fatalf("Do() = %q, %v", got, err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDoPermanentStopsImmediately(t *testing.T) {
	p := Policy{MaxAttempts: 5, InitialDelay: time.Millisecond}
	sentinel := errors.New("quest already completed")

	calls := 0
	err := Run(context.Background(), p, func(context.Context) error {
		calls++
		return Permanent(sentinel)
	}, nil)
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if !errors.Is(err, sentinel) {
		t.Errorf("err = %v, want sentinel", err)
	}
}

func TestDoNotRetryableByAllowList(t *testing.T) {
	p := Policy{MaxAttempts: 5, InitialDelay: time.Millisecond, Retryable: []string{"timeout"}}

	calls := 0
	err := Run(context.Background(), p, func(context.Context) error {
		calls++
		return errors.New("validation failed")
	}, nil)
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if err == nil || err.Error() != "validation failed" {
		t.Errorf("err = %v", err)
	}
}

func TestDoHonorsContext(t *testing.T) {
	p := Policy{MaxAttempts: 10, InitialDelay: time.Hour, MaxDelay: time.Hour}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := Run(ctx, p, func(context.Context) error { return errors.New("down") }, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
	if time.Since(start) > time.Second {
		t.Error("Do did not stop waiting when the context ended")
	}
}

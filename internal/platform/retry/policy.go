package retry

import (
	"errors"
	"io"
	"math"
	"math/rand"
	"strings"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const jitterFactor = 0.3

// Policy describes how a failing call is retried. Retryable is an allow-list
// of error substrings; an empty list retries any error.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Retryable    []string
	// Jitter returns a value in [0, 1). Defaults to math/rand.
	Jitter func() float64
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  5,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
	}
}

// Delay returns the wait before the next try after the given 1-based
// attempt failed with err: min(base*2^(n-1), max), doubled (still capped)
// for transient network errors, plus up to 30% jitter.
func (p Policy) Delay(attempt int, err error) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	maxDelay := float64(p.MaxDelay)
	d := float64(p.InitialDelay) * math.Pow(2, float64(attempt-1))
	if maxDelay > 0 && d > maxDelay {
		d = maxDelay
	}
	if IsTransient(err) {
		d *= 2
		if maxDelay > 0 && d > maxDelay {
			d = maxDelay
		}
	}

	jitter := p.Jitter
	if jitter == nil {
		jitter = rand.Float64
	}
	return time.Duration(d + jitter()*jitterFactor*d)
}

// ShouldRetry reports whether err is eligible for another attempt.
func (p Policy) ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return false
	}
	if len(p.Retryable) == 0 {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, sub := range p.Retryable {
		if sub != "" && strings.Contains(msg, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return err
	}
	return backoff.Permanent(err)
}

var transientMarkers = []string{
	"econnreset",
	"connection reset",
	"etimedout",
	"timeout",
	"timed out",
	"proxy",
	"socket",
	"broken pipe",
	"econnaborted",
	"unexpected eof",
}

// IsTransient reports whether err belongs to the transient network class:
// connection resets, timeouts, proxy failures and dropped sockets.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var timeout interface{ Timeout() bool }
	if errors.As(err, &timeout) && timeout.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ETIMEDOUT) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

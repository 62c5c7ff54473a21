package captcha

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ohmynofan/questline-bot/internal/domain/model"
	"github.com/ohmynofan/questline-bot/internal/platform/deadline"
	"github.com/ohmynofan/questline-bot/internal/platform/logger"
	"github.com/ohmynofan/questline-bot/internal/platform/metrics"
	"golang.org/x/sync/errgroup"
)

type Timing struct {
	PollInterval time.Duration
	AttemptStep  time.Duration
	Attempts     int
}

func DefaultTiming() Timing {
	return Timing{
		PollInterval: 3 * time.Second,
		AttemptStep:  5 * time.Second,
		Attempts:     3,
	}
}

// Outcome is the independent result of one task in SolveMultiple.
type Outcome struct {
	Task  Task
	Token string
	Err   error
}

func (o Outcome) Ok() bool { return o.Err == nil && o.Token != "" }

type Solver struct {
	provider Provider
	timing   Timing
	log      *logger.ClassLogger
}

func NewSolver(provider Provider, timing Timing, state *model.AccountState) *Solver {
	if timing.Attempts <= 0 {
		timing.Attempts = 1
	}
	if timing.PollInterval <= 0 {
		timing.PollInterval = DefaultTiming().PollInterval
	}
	s := &Solver{provider: provider, timing: timing}
	s.log = logger.NewLogger(s, state)
	return s
}

// linearBackOff waits step*n after the n-th failed attempt.
type linearBackOff struct {
	step time.Duration
	max  int
	n    int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.n++
	if b.n >= b.max {
		return backoff.Stop
	}
	return b.step * time.Duration(b.n)
}

func (b *linearBackOff) Reset() { b.n = 0 }

// Solve returns a token for task. Each attempt must finish within timeout;
// failed attempts are retried with a linearly growing wait, except for a
// zero provider balance.
func (s *Solver) Solve(ctx context.Context, task Task, timeout time.Duration) (string, error) {
	b := &linearBackOff{step: s.timing.AttemptStep, max: s.timing.Attempts}

	token, err := backoff.RetryNotifyWithData(func() (string, error) {
		token, err := s.solveOnce(ctx, task, timeout)
		if errors.Is(err, ErrZeroBalance) {
			return "", backoff.Permanent(err)
		}
		return token, err
	}, backoff.WithContext(b, ctx), func(err error, next time.Duration) {
		s.log.Warnf("%s via %s failed (attempt %d/%d): %v. Retrying in %s", task.Label(), s.provider.Name(), b.n, s.timing.Attempts, err, next)
	})

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Err
	}
	if err != nil {
		metrics.ChallengeSolvesTotal.WithLabelValues(s.provider.Name(), "failure").Inc()
		return "", err
	}
	metrics.ChallengeSolvesTotal.WithLabelValues(s.provider.Name(), "success").Inc()
	return token, nil
}

func (s *Solver) solveOnce(ctx context.Context, task Task, timeout time.Duration) (string, error) {
	msg := fmt.Sprintf("%s solve timed out after %s", task.Label(), timeout)
	return deadline.Run(ctx, timeout, msg, func(ctx context.Context) (string, error) {
		taskID, err := s.provider.CreateTask(ctx, task)
		if err != nil {
			return "", err
		}
		s.log.Debugf("%s task %s created on %s", task.Label(), taskID, s.provider.Name())

		ticker := time.NewTicker(s.timing.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-ticker.C:
			}

			res, err := s.provider.TaskResult(ctx, taskID)
			if err != nil {
				return "", err
			}
			switch res.Status {
			case StatusReady:
				return res.Token, nil
			case StatusFailed:
				return "", fmt.Errorf("%s task %s failed: %s", s.provider.Name(), taskID, res.Reason)
			}
		}
	})
}

// SolveMultiple solves every task concurrently. One task failing never
// cancels another. It fails with ErrAllFailed only when no task produced
// a token; the outcomes are returned either way.
func (s *Solver) SolveMultiple(ctx context.Context, tasks []Task, timeout time.Duration) ([]Outcome, error) {
	outcomes := make([]Outcome, len(tasks))

	var g errgroup.Group
	for i, task := range tasks {
		i, task := i, task
		g.Go(func() error {
			token, err := s.Solve(ctx, task, timeout)
			outcomes[i] = Outcome{Task: task, Token: token, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, o := range outcomes {
		if o.Ok() {
			return outcomes, nil
		}
		if o.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", o.Task.Label(), o.Err))
		}
	}
	if len(errs) == 0 {
		return outcomes, ErrAllFailed
	}
	return outcomes, fmt.Errorf("%w: %w", ErrAllFailed, errors.Join(errs...))
}

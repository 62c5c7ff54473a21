package captcha

import (
	"context"
	"errors"
	"sync/atomic"
)

// guarded stops calling a provider once it reported a zero balance, so
// later accounts fail fast instead of paying for round trips.
type guarded struct {
	Provider
	exhausted atomic.Bool
}

func Guard(p Provider) Provider {
	return &guarded{Provider: p}
}

func (g *guarded) CreateTask(ctx context.Context, task Task) (string, error) {
	if g.exhausted.Load() {
		return "", ErrZeroBalance
	}
	id, err := g.Provider.CreateTask(ctx, task)
	if errors.Is(err, ErrZeroBalance) {
		g.exhausted.Store(true)
	}
	return id, err
}

func (g *guarded) TaskResult(ctx context.Context, taskID string) (TaskResult, error) {
	res, err := g.Provider.TaskResult(ctx, taskID)
	if errors.Is(err, ErrZeroBalance) {
		g.exhausted.Store(true)
	}
	return res, err
}

package platformtest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ohmynofan/questline-bot/internal/adapters/captcha"
)

var ErrChallengeFailed = errors.New("challenge task rejected")

// Provider answers every challenge task at once with a deterministic token.
type Provider struct {
	// FailInvisible is asked with the 1-based count of invisible tasks seen
	// so far; returning true rejects that task.
	FailInvisible func(n int) bool
	// FailAll rejects every task.
	FailAll bool
	// Delay holds each task creation, honoring cancellation.
	Delay time.Duration

	mu        sync.Mutex
	created   int
	invisible int
}

func (p *Provider) Name() string { return "fake" }

func (p *Provider) CreateTask(ctx context.Context, task captcha.Task) (string, error) {
	if p.Delay > 0 {
		select {
		case <-time.After(p.Delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	p.mu.Lock()
	p.created++
	id := fmt.Sprintf("%s#%d", task.Label(), p.created)
	fail := p.FailAll
	if task.Invisible {
		p.invisible++
		if p.FailInvisible != nil && p.FailInvisible(p.invisible) {
			fail = true
		}
	}
	p.mu.Unlock()

	if fail {
		return "", ErrChallengeFailed
	}
	return id, nil
}

func (p *Provider) TaskResult(ctx context.Context, taskID string) (captcha.TaskResult, error) {
	return captcha.TaskResult{Status: captcha.StatusReady, Token: "token:" + taskID}, nil
}

// Created counts task creations, failed ones included.
func (p *Provider) Created() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.created
}

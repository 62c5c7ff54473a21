package captcha

import (
	"context"
	"errors"
)

type Kind string

const (
	KindRecaptchaV2 Kind = "recaptcha-v2"
	KindTurnstile   Kind = "turnstile"
)

// Task names one challenge to solve.
type Task struct {
	Kind      Kind
	SiteKey   string
	PageURL   string
	Invisible bool
}

func (t Task) Label() string {
	if t.Invisible {
		return string(t.Kind) + "/invisible"
	}
	return string(t.Kind) + "/visible"
}

type Status int

const (
	StatusProcessing Status = iota
	StatusReady
	StatusFailed
)

type TaskResult struct {
	Status Status
	Token  string
	Reason string
}

// Provider is a paid solving service speaking the createTask/getTaskResult
// protocol.
type Provider interface {
	Name() string
	CreateTask(ctx context.Context, task Task) (string, error)
	TaskResult(ctx context.Context, taskID string) (TaskResult, error)
}

const errZeroBalanceCode = "ERROR_ZERO_BALANCE"

var (
	ErrZeroBalance = errors.New("captcha solver zero balance")
	ErrAllFailed   = errors.New("all challenges failed")
	ErrNoProvider  = errors.New("no captcha provider configured")
)

// Package app drives account cycles: accounts run one after another with
// a delay between them, and cycles repeat after a cooldown.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/ohmynofan/questline-bot/internal/adapters/captcha"
	"github.com/ohmynofan/questline-bot/internal/app/rotation"
	"github.com/ohmynofan/questline-bot/internal/app/worker"
	"github.com/ohmynofan/questline-bot/internal/config"
	"github.com/ohmynofan/questline-bot/internal/domain/model"
	"github.com/ohmynofan/questline-bot/internal/platform/logger"
	"github.com/ohmynofan/questline-bot/internal/platform/ui"
)

type App struct {
	cfg    config.Config
	runner *worker.Runner
	log    *logger.ClassLogger

	// cycle is RunCycle unless a test swaps it.
	cycle func(ctx context.Context) ([]model.AccountResult, error)
}

// New builds the app. The provider is wrapped so that a zero balance stops
// further solver calls for the rest of the process. store may be nil.
func New(cfg config.Config, provider captcha.Provider, store worker.Store, opts ...worker.Option) *App {
	a := &App{
		cfg:    cfg,
		runner: worker.NewRunner(cfg, captcha.Guard(provider), store, opts...),
	}
	a.log = logger.NewLogger(a, nil)
	a.cycle = a.RunCycle
	return a
}

// RunCycle processes every account once, in order. Per-account failures
// are part of the results; only cancellation returns an error.
func (a *App) RunCycle(ctx context.Context) ([]model.AccountResult, error) {
	accounts, err := config.LoadAccounts(a.cfg.AccountsPath)
	if err != nil {
		a.log.Errorf("Could not load accounts from %s: %v", a.cfg.AccountsPath, err)
		accounts = nil
	}
	proxies, err := config.LoadProxies(a.cfg.ProxiesPath)
	if err != nil {
		a.log.Warnf("Could not load proxies from %s: %v", a.cfg.ProxiesPath, err)
		proxies = nil
	}
	if len(proxies) == 0 {
		a.log.Info("No proxies configured, running direct")
	}

	runID := uuid.NewString()
	selector := rotation.NewSelector(a.cfg.ProxyMode, a.cfg.ProxySwitchAfter, proxies)
	a.log.Infof("Cycle %s: %d accounts, %d proxies", runID, len(accounts), len(proxies))

	results := make([]model.AccountResult, 0, len(accounts))
	for i, account := range accounts {
		if i > 0 {
			if err := a.log.Wait(ctx, a.cfg.AccountDelay, "Waiting before next account"); err != nil {
				return results, err
			}
		}
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results = append(results, a.runner.Run(ctx, worker.Job{
			Index:   i,
			Account: account,
			Proxy:   selector.Select(i),
			RunID:   runID,
		}))
	}

	if len(results) > 0 {
		ui.Summary(results)
	}
	return results, nil
}

// Supervise runs cycles until ctx ends. A cycle that fails or panics is
// restarted after the restart cooldown; a finished cycle is followed by the
// cycle cooldown.
func (a *App) Supervise(ctx context.Context) error {
	for {
		_, err := a.safeCycle(ctx)
		if ctx.Err() != nil {
			a.log.Info("Shutting down")
			return nil
		}

		wait, msg := a.cfg.CycleCooldown, "All accounts processed, next cycle"
		if err != nil {
			a.log.Errorf("Cycle failed: %v", err)
			wait, msg = a.cfg.RestartCooldown, "Restarting after failure"
		}
		if err := a.log.Wait(ctx, wait, msg); err != nil {
			a.log.Info("Shutting down")
			return nil
		}
	}
}

func (a *App) safeCycle(ctx context.Context) (results []model.AccountResult, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("cycle panicked: %v", rec)
		}
	}()
	results, err = a.cycle(ctx)
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return results, nil
	}
	return results, err
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ohmynofan/questline-bot/internal/adapters/captcha"
	"github.com/ohmynofan/questline-bot/internal/app"
	"github.com/ohmynofan/questline-bot/internal/app/worker"
	"github.com/ohmynofan/questline-bot/internal/config"
	"github.com/ohmynofan/questline-bot/internal/platform/logger"
	"github.com/ohmynofan/questline-bot/internal/platform/metrics"
	"github.com/ohmynofan/questline-bot/internal/platform/ui"
	"github.com/ohmynofan/questline-bot/internal/server"
	"github.com/ohmynofan/questline-bot/internal/storage/questlog"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
	}
}

func run() error {
	cfg, cfgErr := config.Load()

	if err := logger.Init(cfg.LogPath, cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "log file unavailable: %v\n", err)
	}
	defer logger.Close()
	log := logger.NewNamed("Main", nil)

	if cfgErr != nil {
		log.Warnf("Configuration problem, continuing with what could be loaded: %v", cfgErr)
	}

	provider, err := captcha.NewProvider(cfg.CapSolverAPIKey, cfg.TwoCaptchaAPIKey)
	if err != nil {
		log.Errorf("Cannot sign in without a challenge solver: %v", err)
		return err
	}

	var store worker.Store
	if qs, err := questlog.NewStore(cfg.DBPath); err != nil {
		log.Warnf("Quest log disabled: %v", err)
	} else {
		defer qs.Close()
		store = qs
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		ms := server.NewMetricsServer(cfg.MetricsAddr, metrics.NewRegistry())
		if err := ms.Start(); err != nil {
			log.Warnf("Metrics server disabled: %v", err)
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = ms.Shutdown(shutdownCtx)
			}()
		}
	}

	ui.StartUISystem()
	defer ui.StopUISystem()

	if err := app.New(cfg, provider, store).Supervise(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Errorf("Supervisor stopped: %v", err)
		return err
	}
	return nil
}

// Package worker runs one account from key to quest results.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ohmynofan/questline-bot/internal/adapters/captcha"
	"github.com/ohmynofan/questline-bot/internal/adapters/platform"
	"github.com/ohmynofan/questline-bot/internal/adapters/wallet"
	"github.com/ohmynofan/questline-bot/internal/app/auth"
	"github.com/ohmynofan/questline-bot/internal/app/quest"
	"github.com/ohmynofan/questline-bot/internal/config"
	"github.com/ohmynofan/questline-bot/internal/domain/model"
	"github.com/ohmynofan/questline-bot/internal/platform/deadline"
	"github.com/ohmynofan/questline-bot/internal/platform/logger"
	"github.com/ohmynofan/questline-bot/internal/platform/metrics"
	"github.com/ohmynofan/questline-bot/internal/platform/ui"
	"github.com/ohmynofan/questline-bot/internal/storage/questlog"
	"github.com/ohmynofan/questline-bot/pkg/utils"
)

// Store keeps the local per-day record of account runs.
type Store interface {
	Record(ctx context.Context, state model.AccountState, runID, runErr string, now time.Time) error
	Today(ctx context.Context, address string, now time.Time) (*questlog.Entry, error)
}

type Job struct {
	Index   int
	Account config.Account
	Proxy   model.ProxyAssignment
	RunID   string
}

type Runner struct {
	cfg           config.Config
	provider      captcha.Provider
	store         Store
	authTiming    auth.Timing
	captchaTiming captcha.Timing
	now           func() time.Time
}

type Option func(*Runner)

func WithAuthTiming(t auth.Timing) Option       { return func(r *Runner) { r.authTiming = t } }
func WithCaptchaTiming(t captcha.Timing) Option { return func(r *Runner) { r.captchaTiming = t } }

// NewRunner builds a runner. store may be nil.
func NewRunner(cfg config.Config, provider captcha.Provider, store Store, opts ...Option) *Runner {
	authTiming := auth.DefaultTiming()
	authTiming.ChallengeTimeout = cfg.CaptchaTimeout
	r := &Runner{
		cfg:           cfg,
		provider:      provider,
		store:         store,
		authTiming:    authTiming,
		captchaTiming: captcha.DefaultTiming(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run never panics and always returns a result. Every phase failure is
// recorded on the result instead of being returned.
func (r *Runner) Run(ctx context.Context, job Job) (result model.AccountResult) {
	state := model.NewAccountState(job.Index)
	state.Proxy = job.Proxy.Host()
	result = model.AccountResult{
		Index:       job.Index,
		Proxy:       job.Proxy.Host(),
		SessionKind: model.SessionNone,
		StartedAt:   r.now(),
	}
	log := logger.NewNamed(fmt.Sprintf("Account %d", job.Index+1), state)

	defer func() {
		if rec := recover(); rec != nil {
			result.Err = fmt.Errorf("account run panicked: %v", rec)
			log.Errorf("%v", result.Err)
		}
		result.FinishedAt = r.now()
		r.finish(state, &result, job.RunID, log)
	}()

	identity, err := wallet.NewIdentity(job.Account.PrivateKey)
	if err != nil {
		result.Err = fmt.Errorf("account %d: %w", job.Index+1, err)
		log.Errorf("Skipping account: %v", err)
		return result
	}
	state.Address = identity.Hex()
	result.Address = identity.Hex()
	ui.UpdateStatus(*state, "Starting", 0)
	r.showPreviousRun(ctx, state, log)

	ctx, cancel := context.WithTimeout(ctx, r.cfg.AccountTimeout)
	defer cancel()

	r.run(ctx, state, identity, job.Proxy, &result, log)

	if errors.Is(ctx.Err(), context.DeadlineExceeded) && result.Err == nil {
		result.Err = &deadline.TimeoutError{Message: "account run timed out", After: r.cfg.AccountTimeout}
		log.Errorf("%v", result.Err)
	}
	return result
}

func (r *Runner) run(ctx context.Context, state *model.AccountState, identity model.Identity, proxy model.ProxyAssignment, result *model.AccountResult, log *logger.ClassLogger) {
	cookieFile := r.cfg.CookieFile(identity.Hex())
	// Phases raced out by their deadline keep running, so every goroutine
	// gets its own copy of the state and only this one writes the original.
	gwState := *state
	gw, err := platform.NewGateway(platform.Options{
		BaseURL:     r.cfg.PlatformURL,
		Proxy:       proxy.URL,
		CookieFile:  cookieFile,
		Policy:      r.cfg.RetryPolicy(),
		CallTimeout: r.cfg.CallTimeout,
	}, &gwState)
	if err != nil {
		result.Err = err
		log.Errorf("Could not initialize API client: %v", err)
		return
	}

	log.Infof("Signing in %s via %s", utils.ShortenAddress(identity.Hex()), proxy.Host())
	authState := *state
	pipeline := auth.NewPipeline(gw, wallet.NewSigner(identity, &authState), captcha.NewSolver(r.provider, r.captchaTiming, &authState), auth.Options{
		Domain:       r.cfg.Domain(),
		URI:          r.cfg.PlatformURL,
		ChainID:      r.cfg.Network().ChainID,
		SiteKey:      r.cfg.CaptchaSiteKey,
		Kind:         captcha.Kind(r.cfg.CaptchaKind),
		ReferralCode: r.cfg.ReferralCode,
		Resume:       cookieFile != "",
		Timing:       r.authTiming,
	}, &authState)

	sess, err := deadline.Run(ctx, r.cfg.AuthTimeout, "authentication timed out", func(ctx context.Context) (*model.Session, error) {
		return pipeline.Authenticate(ctx), nil
	})
	if err != nil || sess == nil {
		log.Warnf("Authentication did not finish (%v), continuing with a fallback session", err)
		sess = model.FallbackSession(identity.Hex())
	}
	state.SessionKind = sess.Kind()
	result.SessionKind = sess.Kind()
	result.UserName = sess.Name

	if profile, err := gw.User(ctx); err != nil {
		log.Warnf("Could not fetch user profile: %v", err)
	} else if profile != nil {
		name := utils.ShortenAddress(identity.Hex())
		if profile.Name != "" {
			result.UserName = profile.Name
			name = profile.Name
		}
		log.Infof("User %s has %d credits", name, profile.Credits)
	}
	if ctx.Err() != nil {
		return
	}

	questState := *state
	engine := quest.NewEngine(gw, questOptions(r.cfg), &questState)
	quests, err := deadline.Run(ctx, r.cfg.QuestTimeout, "quest phase timed out", engine.CompleteAll)
	if quests == nil {
		// Raced out: keep what finished before the deadline.
		quests = engine.Completed()
	}
	progress := engine.State()
	state.DailyRewardStatus = progress.DailyRewardStatus
	state.MinigameStatus = progress.MinigameStatus
	state.GamesPlayed = progress.GamesPlayed
	state.Credits = progress.Credits

	result.CompletedQuests = quests
	if err != nil {
		result.QuestErr = err
		log.Warnf("Quest phase finished with errors: %v", err)
	}
}

func (r *Runner) showPreviousRun(ctx context.Context, state *model.AccountState, log *logger.ClassLogger) {
	if r.store == nil {
		return
	}
	entry, err := r.store.Today(ctx, state.Address, r.now())
	if err != nil {
		log.Warnf("Could not read quest log: %v", err)
		return
	}
	if entry == nil {
		return
	}
	state.GamesPlayed = entry.GamesPlayed
	log.Infof("Already ran today (session %s, daily %s, %d credits)", entry.SessionKind, entry.DailyRewardStatus, entry.Credits)
}

func (r *Runner) finish(state *model.AccountState, result *model.AccountResult, runID string, log *logger.ClassLogger) {
	outcome := "success"
	switch {
	case result.Err != nil:
		outcome = "error"
	case result.QuestErr != nil:
		outcome = "partial"
	}
	metrics.AccountRunsTotal.WithLabelValues(string(result.SessionKind), outcome).Inc()

	if r.store != nil && result.Address != "" {
		snapshot := *state
		snapshot.Credits = result.Credits()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.store.Record(ctx, snapshot, runID, result.ErrorString(), r.now()); err != nil {
			log.Warnf("Could not write quest log: %v", err)
		}
	}

	final := fmt.Sprintf("%s session, %d quests, %d credits", result.SessionKind, len(result.CompletedQuests), result.Credits())
	if result.Err != nil {
		ui.SetSpinnerError(*state, "Failed: "+result.Err.Error())
		return
	}
	log.Success("Account done: " + final)
	ui.SetSpinnerSuccess(*state, final)
}

func questOptions(cfg config.Config) quest.Options {
	q := cfg.Quests
	return quest.Options{
		DailyReward: quest.DailyRewardOptions{
			Enabled: q.DailyReward.Enabled,
			Title:   q.DailyReward.Title,
		},
		Minigame: quest.MinigameOptions{
			Enabled:    q.Minigame.Enabled,
			Title:      q.Minigame.Title,
			Difficulty: q.Minigame.Difficulty,
			DailyGames: q.Minigame.DailyGames,
			MoveCap:    q.Minigame.MoveCap,
			MoveDelay:  q.Minigame.MoveDelay,
		},
	}
}

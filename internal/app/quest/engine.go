// Package quest completes the daily quests of a signed-in account.
package quest

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/ohmynofan/questline-bot/internal/domain/model"
	"github.com/ohmynofan/questline-bot/internal/platform/logger"
	"github.com/ohmynofan/questline-bot/internal/platform/metrics"
)

const (
	statusInProgress = "IN PROGRESS"
	statusDone       = "DONE"
	statusFailed     = "FAILED"
	statusMissing    = "N/A"
)

type Gateway interface {
	Quests(ctx context.Context) ([]model.Quest, error)
	UserQuests(ctx context.Context) ([]model.UserQuestRecord, error)
	SubmitQuest(ctx context.Context, questID string, metadata interface{}) (*model.QuestSubmission, error)
}

type DailyRewardOptions struct {
	Enabled bool
	Title   string
}

type MinigameOptions struct {
	Enabled    bool
	Title      string
	Difficulty string
	DailyGames int
	MoveCap    int
	MoveDelay  time.Duration
}

type Options struct {
	DailyReward DailyRewardOptions
	Minigame    MinigameOptions
}

type Engine struct {
	gw   Gateway
	opts Options
	now  func() time.Time
	intn func(n int) int
	log  *logger.ClassLogger

	mu        sync.Mutex
	state     *model.AccountState
	completed []model.QuestResult
}

func NewEngine(gw Gateway, opts Options, state *model.AccountState) *Engine {
	e := &Engine{
		gw:    gw,
		opts:  opts,
		state: state,
		now:   time.Now,
		intn:  rand.Intn,
	}
	e.log = logger.NewLogger(e, state)
	return e
}

// IsCompletedToday reports whether the history holds a completed or claimed
// record of questID dated today (UTC). A failed history fetch counts as not
// completed.
func (e *Engine) IsCompletedToday(ctx context.Context, questID string) bool {
	history, err := e.gw.UserQuests(ctx)
	if err != nil {
		e.log.Warnf("Could not fetch quest history, assuming not completed: %v", err)
		return false
	}
	today := model.Today(e.now())
	for _, r := range history {
		if r.QuestID == questID && r.IsDone() && r.Day() == today {
			return true
		}
	}
	return false
}

// findQuest returns nil when the catalog has no quest with that title.
func (e *Engine) findQuest(ctx context.Context, title string) (*model.Quest, error) {
	quests, err := e.gw.Quests(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch quests: %w", err)
	}
	want := strings.ToLower(strings.TrimSpace(title))
	for _, q := range quests {
		if strings.ToLower(strings.TrimSpace(q.Title)) == want {
			q := q
			return &q, nil
		}
	}
	return nil, nil
}

// CompleteDailyReward claims the daily reward once per day. It returns nil
// without error when the account has no such quest.
func (e *Engine) CompleteDailyReward(ctx context.Context) (*model.QuestResult, error) {
	title := e.opts.DailyReward.Title
	e.setDaily(statusInProgress)

	q, err := e.findQuest(ctx, title)
	if err != nil {
		e.setDaily(statusFailed)
		return nil, err
	}
	if q == nil {
		e.log.Warnf("Quest %q is not available for this account", title)
		e.setDaily(statusMissing)
		return nil, nil
	}

	if e.IsCompletedToday(ctx, q.ID) {
		e.log.Infof("%s already completed today", q.Title)
		e.setDaily(statusDone)
		return e.record(completedResult(q)), nil
	}

	sub, err := e.gw.SubmitQuest(ctx, q.ID, map[string]interface{}{})
	if err != nil {
		e.setDaily(statusFailed)
		return nil, fmt.Errorf("submit %s: %w", q.Title, err)
	}
	e.setDaily(statusDone)

	if sub.AlreadyDone {
		e.log.Infof("%s was already completed", q.Title)
		return e.record(completedResult(q)), nil
	}

	res := model.QuestResult{QuestID: q.ID, Title: q.Title, Status: sub.Status, Credits: sub.Credits}
	if res.Status == "" {
		res.Status = model.QuestStatusCompleted
	}
	e.log.Successf("%s completed, +%d credits", q.Title, res.Credits)
	return e.record(res), nil
}

// CompleteAll runs every enabled quest type. One type failing never stops
// the next; the failures are joined.
func (e *Engine) CompleteAll(ctx context.Context) ([]model.QuestResult, error) {
	results := []model.QuestResult{}
	var errs []error

	run := func(name string, fn func(context.Context) (*model.QuestResult, error)) {
		res, err := guarded(ctx, fn)
		if err != nil {
			e.log.Errorf("%s failed: %v", name, err)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
		if res != nil {
			results = append(results, *res)
		}
	}

	if e.opts.DailyReward.Enabled {
		run("daily reward", e.CompleteDailyReward)
	}
	if e.opts.Minigame.Enabled {
		run("minigame", e.PlayMinigame)
	}
	return results, errors.Join(errs...)
}

func guarded(ctx context.Context, fn func(context.Context) (*model.QuestResult, error)) (res *model.QuestResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}

func (e *Engine) record(res model.QuestResult) *model.QuestResult {
	metrics.QuestResultsTotal.WithLabelValues(res.Title, res.Status).Inc()
	e.mu.Lock()
	defer e.mu.Unlock()
	if res.Credits > 0 {
		metrics.CreditsTotal.Add(float64(res.Credits))
		e.state.Credits += res.Credits
	}
	e.completed = append(e.completed, res)
	return &res
}

// Completed returns the results recorded so far, in completion order. It
// is safe to call while CompleteAll is still running.
func (e *Engine) Completed() []model.QuestResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]model.QuestResult{}, e.completed...)
}

// State returns a copy of the account state the engine updates.
func (e *Engine) State() model.AccountState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return *e.state
}

func (e *Engine) setDaily(status string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.DailyRewardStatus = status
}

func (e *Engine) setMinigame(status string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.MinigameStatus = status
}

func completedResult(q *model.Quest) model.QuestResult {
	return model.QuestResult{QuestID: q.ID, Title: q.Title, Status: model.QuestStatusCompleted}
}

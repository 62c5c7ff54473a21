// Package platform is the typed, retried client of the quest platform.
package platform

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	apihttp "github.com/ohmynofan/questline-bot/internal/adapters/http"
	"github.com/ohmynofan/questline-bot/internal/domain/model"
	"github.com/ohmynofan/questline-bot/internal/platform/deadline"
	"github.com/ohmynofan/questline-bot/internal/platform/logger"
	"github.com/ohmynofan/questline-bot/internal/platform/metrics"
	"github.com/ohmynofan/questline-bot/internal/platform/retry"
	"github.com/ohmynofan/questline-bot/pkg/utils"
)

const (
	sessionPath     = "/api/auth/session"
	csrfPath        = "/api/auth/csrf"
	credentialsPath = "/api/auth/callback/credentials"
	userPath        = "/api/users/me"
	questsPath      = "/api/quests"
	userQuestsPath  = "/api/user-quests"
)

type Options struct {
	BaseURL     string
	Proxy       string
	CookieFile  string
	Policy      retry.Policy
	CallTimeout time.Duration
}

// Gateway is bound to one account: one proxy, one cookie jar.
type Gateway struct {
	client      *apihttp.APIClient
	policy      retry.Policy
	callTimeout time.Duration
	log         *logger.ClassLogger
}

func NewGateway(opts Options, state *model.AccountState) (*Gateway, error) {
	client, err := apihttp.NewAPIClient(opts.BaseURL, opts.Proxy, opts.CookieFile, state)
	if err != nil {
		return nil, fmt.Errorf("build api client: %w", err)
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 15 * time.Second
	}
	if opts.Policy.MaxAttempts <= 0 {
		opts.Policy = retry.DefaultPolicy()
	}
	g := &Gateway{
		client:      client,
		policy:      opts.Policy,
		callTimeout: opts.CallTimeout,
	}
	g.log = logger.NewLogger(g, state)
	return g, nil
}

func (g *Gateway) BaseURL() string { return g.client.BaseURL }

// call runs one remote operation under the retry policy, each attempt
// bounded by the per-call deadline.
func call[T any](ctx context.Context, g *Gateway, op string, fn func(context.Context) (T, error)) (T, error) {
	return retry.Do(ctx, g.policy, func(ctx context.Context) (T, error) {
		return deadline.Run(ctx, g.callTimeout, op+" timed out", fn)
	}, func(attempt int, err error, next time.Duration) {
		metrics.RetriesTotal.WithLabelValues(op).Inc()
		g.log.Warnf("%s failed (attempt %d/%d): %v. Retrying in %s", op, attempt, g.policy.MaxAttempts, err, next.Round(time.Millisecond))
	})
}

// Session returns the platform session, or nil when nobody is logged in.
func (g *Gateway) Session(ctx context.Context) (*model.Session, error) {
	return call(ctx, g, "session", func(ctx context.Context) (*model.Session, error) {
		res, err := g.client.Fetch(ctx, sessionPath, nil)
		if err != nil {
			err = remoteError("session", err)
			var re *RemoteError
			if errors.As(err, &re) && re.Status == http.StatusUnauthorized {
				return nil, nil
			}
			return nil, err
		}
		if len(strings.TrimSpace(string(res.Body))) == 0 {
			return nil, nil
		}

		var out struct {
			User *struct {
				Address string `json:"address"`
				Name    string `json:"name"`
			} `json:"user"`
		}
		if err := res.Decode(&out); err != nil {
			return nil, fmt.Errorf("decode session: %w", err)
		}
		if out.User == nil || out.User.Address == "" {
			return nil, nil
		}
		return &model.Session{Address: out.User.Address, Name: out.User.Name}, nil
	})
}

func (g *Gateway) CSRFToken(ctx context.Context) (string, error) {
	return call(ctx, g, "csrf", func(ctx context.Context) (string, error) {
		res, err := g.client.Fetch(ctx, csrfPath, nil)
		if err != nil {
			return "", remoteError("csrf", err)
		}
		var out struct {
			CSRFToken string `json:"csrfToken"`
		}
		if err := res.Decode(&out); err != nil {
			return "", fmt.Errorf("decode csrf: %w", err)
		}
		if out.CSRFToken == "" {
			return "", errors.New("csrf token missing from response")
		}
		return out.CSRFToken, nil
	})
}

type Credentials struct {
	Message          string `url:"message"`
	Signature        string `url:"signature"`
	CSRFToken        string `url:"csrfToken"`
	RecaptchaToken   string `url:"recaptchaToken,omitempty"`
	RecaptchaTokenV2 string `url:"recaptchaTokenV2,omitempty"`
	ReferralCode     string `url:"referralCode,omitempty"`
	Redirect         bool   `url:"redirect"`
	JSON             bool   `url:"json"`
	CallbackURL      string `url:"callbackUrl"`
}

type LoginResult struct {
	URL string `json:"url"`
}

// Failed reports a missing or error-flagged redirect.
func (r LoginResult) Failed() bool {
	return r.URL == "" || strings.Contains(r.URL, "error=")
}

func (g *Gateway) Login(ctx context.Context, creds Credentials) (LoginResult, error) {
	if creds.CallbackURL == "" {
		creds.CallbackURL = g.client.BaseURL + "/"
	}
	form, err := utils.FormValues(creds)
	if err != nil {
		return LoginResult{}, fmt.Errorf("encode credentials: %w", err)
	}

	return call(ctx, g, "login", func(ctx context.Context) (LoginResult, error) {
		res, err := g.client.Fetch(ctx, credentialsPath, &apihttp.FetchOptions{
			Method: http.MethodPost,
			Form:   form,
		})
		if err != nil {
			return LoginResult{}, remoteError("login", err)
		}
		var out LoginResult
		if len(strings.TrimSpace(string(res.Body))) > 0 {
			if err := res.Decode(&out); err != nil {
				g.log.Debugf("login response is not json: %v", err)
			}
		}
		return out, nil
	})
}

type UserProfile struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Credits int64  `json:"credits"`
}

func (g *Gateway) User(ctx context.Context) (*UserProfile, error) {
	return call(ctx, g, "user", func(ctx context.Context) (*UserProfile, error) {
		res, err := g.client.Fetch(ctx, userPath, nil)
		if err != nil {
			return nil, remoteError("user", err)
		}
		var out UserProfile
		if err := res.Decode(&out); err != nil {
			return nil, fmt.Errorf("decode user: %w", err)
		}
		return &out, nil
	})
}

func (g *Gateway) Quests(ctx context.Context) ([]model.Quest, error) {
	return call(ctx, g, "quests", func(ctx context.Context) ([]model.Quest, error) {
		return fetchList[model.Quest](ctx, g, "quests", questsPath)
	})
}

func (g *Gateway) UserQuests(ctx context.Context) ([]model.UserQuestRecord, error) {
	return call(ctx, g, "user-quests", func(ctx context.Context) ([]model.UserQuestRecord, error) {
		return fetchList[model.UserQuestRecord](ctx, g, "user-quests", userQuestsPath)
	})
}

// fetchList treats a no-content answer as an empty list.
func fetchList[T any](ctx context.Context, g *Gateway, op, path string) ([]T, error) {
	res, err := g.client.Fetch(ctx, path, nil)
	if err != nil {
		return nil, remoteError(op, err)
	}
	if res.StatusCode == http.StatusNoContent || len(strings.TrimSpace(string(res.Body))) == 0 {
		return []T{}, nil
	}
	var out []T
	if err := res.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", op, err)
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

// SubmitQuest posts one quest action. An "already completed" answer comes
// back as a completed submission with zero credits and AlreadyDone set.
// A daily-limit answer is returned without retrying.
func (g *Gateway) SubmitQuest(ctx context.Context, questID string, metadata interface{}) (*model.QuestSubmission, error) {
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	body := map[string]interface{}{
		"questId":  questID,
		"metadata": metadata,
	}

	return call(ctx, g, "submit-quest", func(ctx context.Context) (*model.QuestSubmission, error) {
		res, err := g.client.Fetch(ctx, userQuestsPath, &apihttp.FetchOptions{
			Method: http.MethodPost,
			Body:   body,
		})
		if err != nil {
			err = remoteError("submit-quest", err)
			switch {
			case isAlreadyCompleted(err):
				return &model.QuestSubmission{
					QuestID:     questID,
					Status:      model.QuestStatusCompleted,
					AlreadyDone: true,
				}, nil
			case IsDailyLimit(err):
				return nil, retry.Permanent(err)
			}
			return nil, err
		}

		var out model.QuestSubmission
		if err := res.Decode(&out); err != nil {
			return nil, fmt.Errorf("decode quest submission: %w", err)
		}
		if out.QuestID == "" {
			out.QuestID = questID
		}
		return &out, nil
	})
}

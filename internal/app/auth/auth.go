// Package auth signs an account in: nonce, signed message, challenge
// tokens, credential submission and session confirmation.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ohmynofan/questline-bot/internal/adapters/captcha"
	"github.com/ohmynofan/questline-bot/internal/adapters/platform"
	"github.com/ohmynofan/questline-bot/internal/domain/model"
	"github.com/ohmynofan/questline-bot/internal/platform/logger"
	"github.com/ohmynofan/questline-bot/pkg/utils"
)

const DefaultStatement = "Sign in to Questline to prove you own this wallet."

var errNoSession = errors.New("session has no user after login")

type Gateway interface {
	CSRFToken(ctx context.Context) (string, error)
	Login(ctx context.Context, creds platform.Credentials) (platform.LoginResult, error)
	Session(ctx context.Context) (*model.Session, error)
}

type Signer interface {
	Address() string
	SignMessage(message string) (string, error)
}

type ChallengeSolver interface {
	SolveMultiple(ctx context.Context, tasks []captcha.Task, timeout time.Duration) ([]captcha.Outcome, error)
}

type Timing struct {
	Settle           time.Duration
	Recheck          time.Duration
	AttemptStep      time.Duration
	Attempts         int
	ChallengeTimeout time.Duration
}

func DefaultTiming() Timing {
	return Timing{
		Settle:           5 * time.Second,
		Recheck:          5 * time.Second,
		AttemptStep:      5 * time.Second,
		Attempts:         3,
		ChallengeTimeout: 120 * time.Second,
	}
}

type Options struct {
	Domain       string
	URI          string
	Statement    string
	ChainID      int64
	SiteKey      string
	Kind         captcha.Kind
	ReferralCode string
	// Resume checks for a live session (persisted cookies) before signing in.
	Resume bool
	Timing Timing
}

type Pipeline struct {
	gw     Gateway
	signer Signer
	solver ChallengeSolver
	opts   Options
	now    func() time.Time
	log    *logger.ClassLogger
}

func NewPipeline(gw Gateway, signer Signer, solver ChallengeSolver, opts Options, state *model.AccountState) *Pipeline {
	if opts.Statement == "" {
		opts.Statement = DefaultStatement
	}
	if opts.Kind == "" {
		opts.Kind = captcha.KindRecaptchaV2
	}
	if opts.Timing.Attempts <= 0 {
		opts.Timing.Attempts = 1
	}
	p := &Pipeline{gw: gw, signer: signer, solver: solver, opts: opts, now: time.Now}
	p.log = logger.NewLogger(p, state)
	return p
}

// Authenticate always returns a session. When every attempt fails it
// returns a fallback session holding only the local address.
func (p *Pipeline) Authenticate(ctx context.Context) *model.Session {
	if p.opts.Resume {
		if sess, err := p.gw.Session(ctx); err == nil && sess != nil {
			p.log.Successf("Resumed existing session for %s", utils.ShortenAddress(sess.Address))
			return sess
		}
	}

	attempts := p.opts.Timing.Attempts
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		sess, err := p.attempt(ctx)
		if err == nil {
			if sess.Address == "" {
				sess.Address = p.signer.Address()
			}
			p.log.Successf("Signed in as %s", utils.ShortenAddress(sess.Address))
			return sess
		}
		lastErr = err
		p.log.Warnf("Sign-in attempt %d/%d failed: %v", attempt, attempts, err)

		if ctx.Err() != nil || attempt == attempts {
			break
		}
		wait := p.opts.Timing.AttemptStep * time.Duration(attempt)
		if err := p.log.Wait(ctx, wait, fmt.Sprintf("Retrying sign-in (attempt %d/%d)", attempt+1, attempts)); err != nil {
			break
		}
	}

	p.log.Errorf("Sign-in could not be confirmed (%v); continuing with a fallback session", lastErr)
	return model.FallbackSession(p.signer.Address())
}

func (p *Pipeline) attempt(ctx context.Context) (*model.Session, error) {
	nonce := p.nonce(ctx)
	message := BuildMessage(p.opts.Domain, p.signer.Address(), p.opts.Statement, p.opts.URI, p.opts.ChainID, nonce, p.now())

	signature, err := p.signer.SignMessage(message)
	if err != nil {
		return nil, fmt.Errorf("sign message: %w", err)
	}

	p.log.Info("Solving sign-in challenges")
	tasks := []captcha.Task{
		{Kind: p.opts.Kind, SiteKey: p.opts.SiteKey, PageURL: p.opts.URI, Invisible: true},
		{Kind: p.opts.Kind, SiteKey: p.opts.SiteKey, PageURL: p.opts.URI},
	}
	outcomes, err := p.solver.SolveMultiple(ctx, tasks, p.opts.Timing.ChallengeTimeout)
	if err != nil {
		return nil, fmt.Errorf("solve challenges: %w", err)
	}
	primary, secondary := challengeTokens(outcomes)

	res, err := p.gw.Login(ctx, platform.Credentials{
		Message:          message,
		Signature:        signature,
		CSRFToken:        nonce,
		RecaptchaToken:   primary,
		RecaptchaTokenV2: secondary,
		ReferralCode:     p.opts.ReferralCode,
		Redirect:         false,
		JSON:             true,
	})
	if err != nil {
		return nil, fmt.Errorf("submit credentials: %w", err)
	}
	if res.Failed() {
		p.log.Warnf("Login answered without a usable redirect (%q), checking session anyway", res.URL)
	}

	if err := p.log.Wait(ctx, p.opts.Timing.Settle, "Waiting for session"); err != nil {
		return nil, err
	}
	if sess := p.checkSession(ctx); sess != nil {
		return sess, nil
	}
	if err := p.log.Wait(ctx, p.opts.Timing.Recheck, "Session not ready, checking again"); err != nil {
		return nil, err
	}
	if sess := p.checkSession(ctx); sess != nil {
		return sess, nil
	}
	return nil, errNoSession
}

func (p *Pipeline) checkSession(ctx context.Context) *model.Session {
	sess, err := p.gw.Session(ctx)
	if err != nil {
		p.log.Warnf("Session check failed: %v", err)
		return nil
	}
	return sess
}

// nonce asks the platform for its anti-forgery token and falls back to a
// locally generated one.
func (p *Pipeline) nonce(ctx context.Context) string {
	token, err := p.gw.CSRFToken(ctx)
	if err == nil && strings.TrimSpace(token) != "" {
		return token
	}
	p.log.Warnf("Could not fetch csrf token (%v), using a local nonce", err)
	if local, err := utils.GenerateRandomHex(16); err == nil {
		return local
	}
	return strconv.FormatInt(p.now().UnixNano(), 16)
}

// challengeTokens returns the token for the primary field (invisible
// first, otherwise visible) and the visible token for the secondary field.
func challengeTokens(outcomes []captcha.Outcome) (primary, secondary string) {
	for _, o := range outcomes {
		if !o.Ok() {
			continue
		}
		if !o.Task.Invisible {
			secondary = o.Token
		}
		if primary == "" || o.Task.Invisible {
			primary = o.Token
		}
	}
	return primary, secondary
}

func BuildMessage(domain, address, statement, uri string, chainID int64, nonce string, issuedAt time.Time) string {
	return fmt.Sprintf(`%s wants you to sign in with your Ethereum account:
%s

%s

URI: %s
Version: 1
Chain ID: %d
Nonce: %s
Issued At: %s`,
		domain,
		address,
		statement,
		uri,
		chainID,
		nonce,
		issuedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	)
}

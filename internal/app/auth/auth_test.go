package auth

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ohmynofan/questline-bot/internal/adapters/captcha"
	"github.com/ohmynofan/questline-bot/internal/adapters/platform"
	"github.com/ohmynofan/questline-bot/internal/adapters/wallet"
	"github.com/ohmynofan/questline-bot/internal/domain/model"
)

type fakeGateway struct {
	mu       sync.Mutex
	csrf     string
	csrfErr  error
	loginURL string
	loginErr error
	logins   []platform.Credentials

	// sessions is consumed one per Session call; the last value repeats.
	sessions     []*model.Session
	sessionCalls int
}

func (g *fakeGateway) CSRFToken(ctx context.Context) (string, error) {
	return g.csrf, g.csrfErr
}

func (g *fakeGateway) Login(ctx context.Context, creds platform.Credentials) (platform.LoginResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.logins = append(g.logins, creds)
	return platform.LoginResult{URL: g.loginURL}, g.loginErr
}

func (g *fakeGateway) Session(ctx context.Context) (*model.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessionCalls++
	if len(g.sessions) == 0 {
		return nil, nil
	}
	s := g.sessions[0]
	if len(g.sessions) > 1 {
		g.sessions = g.sessions[1:]
	}
	return s, nil
}

type fakeSolver struct {
	calls    int
	outcomes func(tasks []captcha.Task) ([]captcha.Outcome, error)
}

func (s *fakeSolver) SolveMultiple(ctx context.Context, tasks []captcha.Task, timeout time.Duration) ([]captcha.Outcome, error) {
	s.calls++
	return s.outcomes(tasks)
}

func allSolved(tasks []captcha.Task) ([]captcha.Outcome, error) {
	out := make([]captcha.Outcome, len(tasks))
	for i, t := range tasks {
		out[i] = captcha.Outcome{Task: t, Token: "tok-" + t.Label()}
	}
	return out, nil
}

func allFailed(tasks []captcha.Task) ([]captcha.Outcome, error) {
	out := make([]captcha.Outcome, len(tasks))
	for i, t := range tasks {
		out[i] = captcha.Outcome{Task: t, Err: errors.New("unsolvable")}
	}
	return out, captcha.ErrAllFailed
}

func testTiming() Timing {
	return Timing{
		Settle:           time.Millisecond,
		Recheck:          time.Millisecond,
		AttemptStep:      time.Millisecond,
		Attempts:         3,
		ChallengeTimeout: time.Second,
	}
}

func newSigner(t *testing.T) *wallet.Signer {
	t.Helper()
	key, err := wallet.GeneratePrivateKeyHex()
	if err != nil {
		t.Fatal(err)
	}
	id, err := wallet.NewIdentity(key)
	if err != nil {
		t.Fatal(err)
	}
	return wallet.NewSigner(id, model.NewAccountState(0))
}

func newPipeline(gw Gateway, signer Signer, solver ChallengeSolver) *Pipeline {
	return NewPipeline(gw, signer, solver, Options{
		Domain:       "app.example.com",
		URI:          "https://app.example.com",
		ChainID:      10143,
		SiteKey:      "site",
		ReferralCode: "REF1",
		Timing:       testTiming(),
	}, model.NewAccountState(0))
}

func TestAuthenticateSuccess(t *testing.T) {
	signer := newSigner(t)
	gw := &fakeGateway{
		csrf:     "nonce-1",
		loginURL: "https://app.example.com/",
		sessions: []*model.Session{{Address: signer.Address(), Name: "alice"}},
	}
	solver := &fakeSolver{outcomes: allSolved}

	sess := newPipeline(gw, signer, solver).Authenticate(context.Background())
	if sess.Fake || sess.Kind() != model.SessionReal || sess.Name != "alice" {
		t.Fatalf("unexpected session %+v", sess)
	}
	if len(gw.logins) != 1 {
		t.Fatalf("logins = %d", len(gw.logins))
	}
	creds := gw.logins[0]
	if creds.CSRFToken != "nonce-1" || !strings.Contains(creds.Message, "Nonce: nonce-1") {
		t.Errorf("nonce not carried: %+v", creds)
	}
	if !strings.Contains(creds.Message, "Chain ID: 10143") || !strings.Contains(creds.Message, signer.Address()) {
		t.Errorf("message missing chain id or address:\n%s", creds.Message)
	}
	if creds.RecaptchaToken != "tok-recaptcha-v2/invisible" || creds.RecaptchaTokenV2 != "tok-recaptcha-v2/visible" {
		t.Errorf("tokens = %q %q", creds.RecaptchaToken, creds.RecaptchaTokenV2)
	}
	if creds.ReferralCode != "REF1" || !creds.JSON || creds.Redirect {
		t.Errorf("form flags = %+v", creds)
	}
	recovered, err := wallet.RecoverAddress(creds.Message, creds.Signature)
	if err != nil || recovered.Hex() != signer.Address() {
		t.Errorf("signature recovers to %s (%v), want %s", recovered.Hex(), err, signer.Address())
	}
}

func TestAuthenticateBothChallengesFailReturnsFallback(t *testing.T) {
	signer := newSigner(t)
	gw := &fakeGateway{csrf: "n"}
	solver := &fakeSolver{outcomes: allFailed}

	sess := newPipeline(gw, signer, solver).Authenticate(context.Background())
	if sess == nil || !sess.Fake || sess.Kind() != model.SessionFallback {
		t.Fatalf("expected fallback session, got %+v", sess)
	}
	if sess.Address != signer.Address() {
		t.Errorf("fallback address = %s", sess.Address)
	}
	if solver.calls != 3 {
		t.Errorf("solver calls = %d, want 3", solver.calls)
	}
	if len(gw.logins) != 0 {
		t.Errorf("credentials must not be submitted without a token")
	}
}

func TestAuthenticateOneChallengeSuffices(t *testing.T) {
	signer := newSigner(t)
	gw := &fakeGateway{csrf: "n", loginURL: "u", sessions: []*model.Session{{Address: signer.Address()}}}
	solver := &fakeSolver{outcomes: func(tasks []captcha.Task) ([]captcha.Outcome, error) {
		out, _ := allSolved(tasks)
		out[0] = captcha.Outcome{Task: tasks[0], Err: errors.New("invisible failed")}
		return out, nil
	}}

	sess := newPipeline(gw, signer, solver).Authenticate(context.Background())
	if sess.Fake {
		t.Fatal("one token should be enough")
	}
	creds := gw.logins[0]
	if creds.RecaptchaToken != "tok-recaptcha-v2/visible" || creds.RecaptchaTokenV2 != "tok-recaptcha-v2/visible" {
		t.Errorf("tokens = %q %q", creds.RecaptchaToken, creds.RecaptchaTokenV2)
	}
}

func TestAuthenticateLocalNonceWhenCSRFFails(t *testing.T) {
	signer := newSigner(t)
	gw := &fakeGateway{csrfErr: errors.New("csrf down"), loginURL: "u", sessions: []*model.Session{{Address: signer.Address()}}}

	sess := newPipeline(gw, signer, &fakeSolver{outcomes: allSolved}).Authenticate(context.Background())
	if sess.Fake {
		t.Fatal("csrf failure must not abort sign-in")
	}
	nonce := gw.logins[0].CSRFToken
	if !regexp.MustCompile(`^[0-9a-f]{32}$`).MatchString(nonce) {
		t.Fatalf("local nonce = %q", nonce)
	}
	if !strings.Contains(gw.logins[0].Message, "Nonce: "+nonce) {
		t.Fatal("local nonce missing from message")
	}
}

func TestAuthenticateSessionOnRecheck(t *testing.T) {
	signer := newSigner(t)
	gw := &fakeGateway{
		csrf:     "n",
		loginURL: "https://app.example.com/?error=CredentialsSignin",
		sessions: []*model.Session{nil, {Address: signer.Address()}},
	}

	sess := newPipeline(gw, signer, &fakeSolver{outcomes: allSolved}).Authenticate(context.Background())
	if sess.Fake {
		t.Fatal("session found on recheck should be real")
	}
	if gw.sessionCalls != 2 || len(gw.logins) != 1 {
		t.Fatalf("session calls = %d, logins = %d", gw.sessionCalls, len(gw.logins))
	}
}

func TestAuthenticateNoUserRetriesThenFallback(t *testing.T) {
	signer := newSigner(t)
	gw := &fakeGateway{csrf: "n", loginURL: "u"}

	sess := newPipeline(gw, signer, &fakeSolver{outcomes: allSolved}).Authenticate(context.Background())
	if !sess.Fake {
		t.Fatal("expected fallback")
	}
	if len(gw.logins) != 3 || gw.sessionCalls != 6 {
		t.Fatalf("logins = %d, session calls = %d", len(gw.logins), gw.sessionCalls)
	}
}

func TestAuthenticateCancelledContext(t *testing.T) {
	signer := newSigner(t)
	gw := &fakeGateway{csrf: "n", loginURL: "u"}
	p := newPipeline(gw, signer, &fakeSolver{outcomes: allSolved})
	p.opts.Timing.Settle = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	sess := p.Authenticate(ctx)
	if !sess.Fake {
		t.Fatal("expected fallback")
	}
	if time.Since(start) > time.Second {
		t.Fatalf("cancellation took %s", time.Since(start))
	}
	if len(gw.logins) != 1 {
		t.Fatalf("logins = %d, want 1", len(gw.logins))
	}
}

func TestAuthenticateResumesSession(t *testing.T) {
	signer := newSigner(t)
	gw := &fakeGateway{sessions: []*model.Session{{Address: signer.Address()}}}
	solver := &fakeSolver{outcomes: allSolved}
	p := newPipeline(gw, signer, solver)
	p.opts.Resume = true

	if sess := p.Authenticate(context.Background()); sess.Fake {
		t.Fatal("expected resumed session")
	}
	if solver.calls != 0 || len(gw.logins) != 0 {
		t.Fatalf("resume must skip sign-in, solver calls = %d", solver.calls)
	}
}

func TestBuildMessage(t *testing.T) {
	issued := time.Date(2026, 1, 2, 3, 4, 5, 6_000_000, time.UTC)
	got := BuildMessage("app.example.com", "0xAbc", "Sign in.", "https://app.example.com", 10143, "n1", issued)
	want := "app.example.com wants you to sign in with your Ethereum account:\n0xAbc\n\nSign in.\n\n" +
		"URI: https://app.example.com\nVersion: 1\nChain ID: 10143\nNonce: n1\nIssued At: 2026-01-02T03:04:05.006Z"
	if got != want {
		t.Fatalf("message mismatch:\n%s\nwant:\n%s", got, want)
	}
}

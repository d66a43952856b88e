// Package navigator drives the Threads login state machine: classify the
// current page as authenticated or anonymous, perform credential submission
// through the optional Instagram and account-chooser bridge screens, and
// verify the outcome within a bounded wait.
package navigator

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nguyenanhtuan21/threads-manager/resolver"
	"github.com/nguyenanhtuan21/threads-manager/session"
)

// State of the login machine.
type State int

const (
	StateUnknown State = iota
	StateAuthenticated
	StateAnonymous
	StateLoginInProgress
	StateLoginFailed
)

func (s State) String() string {
	switch s {
	case StateAuthenticated:
		return "AUTHENTICATED"
	case StateAnonymous:
		return "ANONYMOUS"
	case StateLoginInProgress:
		return "LOGIN_IN_PROGRESS"
	case StateLoginFailed:
		return "LOGIN_FAILED"
	default:
		return "UNKNOWN"
	}
}

// Options bound the navigator's waits and name the site's routes.
type Options struct {
	BaseURL     string
	AuthedRoute string // URL fragment present on authenticated routes
	NavTimeout  time.Duration
	Probe       time.Duration // per-strategy probe budget
	LoginWait   time.Duration // bound on post-submit verification
}

// Navigator authenticates one session.
type Navigator struct {
	sess   *session.Session
	opts   Options
	logger *logrus.Logger
	rng    *rand.Rand
}

// Alternatives chains for the login surface. The markup is third-party and
// unstable, so every affordance carries fallbacks.
var (
	composeChain = resolver.NewChain("compose button",
		resolver.BySelector("new thread aria label", `[aria-label="New thread"]`),
		resolver.BySelector("create aria label", `[aria-label="Create"]`),
		resolver.BySelector("create post testid", `[data-testid="create-post-btn"]`),
		resolver.BySelector("new thread svg", `svg[aria-label="New thread"]`),
	)

	usernameChain = resolver.NewChain("username input",
		resolver.BySelector("autocomplete username", `input[autocomplete="username"]`),
		resolver.ByPlaceholder("placeholder", "username, phone or email"),
		resolver.ByName("name attribute", "username"),
	)

	passwordChain = resolver.NewChain("password input",
		resolver.BySelector("autocomplete current-password", `input[autocomplete="current-password"]`),
		resolver.ByPlaceholder("placeholder", "password"),
		resolver.ByName("name attribute", "password"),
	)

	submitChain = resolver.NewChain("login submit",
		resolver.BySelector("submit input", `input[type="submit"]`),
		resolver.BySelector("submit button", `button[type="submit"]`),
		resolver.ByRole("login button role", `div[role="button"]`, `/log ?in/i`),
	)

	instagramBridgeChain = resolver.NewChain("instagram bridge link",
		resolver.ByRole("log in with instagram", "a", `/log in with instagram/i`),
	)

	chooserBridgeChain = resolver.NewChain("account chooser bridge",
		resolver.BySelector("choice screen link", `a[href*="show_choice_screen=false"]`),
		resolver.ByRole("username instead link", "a", `/log in with username instead/i`),
	)

	loginErrorChain = resolver.NewChain("inline login error",
		resolver.BySelector("alert role", `[role="alert"]`),
		resolver.BySelector("threads error list", `ul.x78zum5.xdt5ytf.x3ct3a4.x193iq5w`),
	)
)

// New creates a navigator for the session.
func New(sess *session.Session, opts Options, logger *logrus.Logger) *Navigator {
	return &Navigator{
		sess:   sess,
		opts:   opts,
		logger: logger,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// IsAuthenticatedURL reports whether url is on an authenticated route.
func IsAuthenticatedURL(url, authedRoute string) bool {
	return authedRoute != "" && strings.Contains(url, authedRoute)
}

// Classify inspects the loaded page. AUTHENTICATED requires the compose
// affordance or an authenticated route; ANONYMOUS requires a visible
// username field. Neither means UNKNOWN, which callers treat as not logged
// in so the flow cannot hang on an unclassifiable page.
func (n *Navigator) Classify() State {
	if _, ok := composeChain.Resolve(n.sess.Page(), n.opts.Probe); ok {
		return StateAuthenticated
	}
	if IsAuthenticatedURL(n.sess.CurrentURL(), n.opts.AuthedRoute) {
		return StateAuthenticated
	}
	if _, ok := usernameChain.Resolve(n.sess.Page(), n.opts.Probe); ok {
		return StateAnonymous
	}
	return StateUnknown
}

// Open navigates to the landing URL and classifies the resulting state.
func (n *Navigator) Open(ctx context.Context) (State, error) {
	if err := n.sess.Navigate(ctx, n.opts.BaseURL, n.opts.NavTimeout); err != nil {
		return StateUnknown, err
	}
	n.pause(1500, 1000)
	state := n.Classify()
	n.logger.WithField("state", state.String()).Debug("Landing page classified")
	return state, nil
}

// EnsureLoggedIn opens the landing page and, if the account is not
// authenticated, performs the full login. It returns the captured cookie
// payload on success. Login failure carries any inline error text.
func (n *Navigator) EnsureLoggedIn(ctx context.Context, username, password string) (string, error) {
	state, err := n.Open(ctx)
	if err != nil {
		return "", err
	}

	if state != StateAuthenticated {
		if err := n.Login(ctx, username, password); err != nil {
			return "", err
		}
	}

	cookies, err := n.sess.CaptureCookies()
	if err != nil {
		return "", fmt.Errorf("login verified but cookie capture failed: %w", err)
	}
	return cookies, nil
}

// Login runs the credential submission sequence from an anonymous (or
// unknown) page and verifies the outcome within the configured bound.
func (n *Navigator) Login(ctx context.Context, username, password string) error {
	n.logger.WithField("username", username).Info("Starting login")

	n.clickBridges()

	page := n.sess.Page()

	usernameInput, ok := usernameChain.ResolveWithin(page, n.opts.Probe, n.opts.LoginWait)
	if !ok {
		return fmt.Errorf("username field not found")
	}
	if err := usernameInput.Input(username); err != nil {
		return fmt.Errorf("failed to fill username: %w", err)
	}
	n.pause(400, 300)

	passwordInput, ok := passwordChain.Resolve(page, n.opts.Probe)
	if !ok {
		return fmt.Errorf("password field not found")
	}
	if err := passwordInput.Input(password); err != nil {
		return fmt.Errorf("failed to fill password: %w", err)
	}
	n.pause(400, 300)

	submit, ok := submitChain.Resolve(page, n.opts.Probe)
	if !ok {
		return fmt.Errorf("login submit button not found")
	}
	if err := submit.Click("left", 1); err != nil {
		return fmt.Errorf("failed to click login submit: %w", err)
	}

	if !n.waitAuthenticated(ctx) {
		reason := n.captureLoginError()
		if reason == "" {
			reason = "login failed or wrong password"
		}
		return fmt.Errorf("%s", reason)
	}

	n.logger.WithField("username", username).Info("Login successful")
	return nil
}

// clickBridges walks through the optional Instagram and account-chooser
// bridge screens when Threads presents them.
func (n *Navigator) clickBridges() {
	page := n.sess.Page()

	if bridge, ok := instagramBridgeChain.Resolve(page, n.opts.Probe); ok {
		n.logger.Debug("Clicking Instagram login bridge")
		if err := bridge.Click("left", 1); err == nil {
			page.Timeout(n.opts.NavTimeout).WaitLoad()
			n.pause(2000, 1000)
		}
	}

	if chooser, ok := chooserBridgeChain.Resolve(page, n.opts.Probe); ok {
		n.logger.Debug("Clicking account chooser bridge")
		if err := chooser.Click("left", 1); err == nil {
			page.Timeout(n.opts.NavTimeout).WaitLoad()
			n.pause(2000, 1000)
		}
	}
}

// waitAuthenticated polls for the success criterion until the bound elapses.
func (n *Navigator) waitAuthenticated(ctx context.Context) bool {
	deadline := time.Now().Add(n.opts.LoginWait)
	for {
		select {
		case <-ctx.Done():
			return false
		default:
		}

		if IsAuthenticatedURL(n.sess.CurrentURL(), n.opts.AuthedRoute) {
			return true
		}
		if _, ok := composeChain.Resolve(n.sess.Page(), n.opts.Probe); ok {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(500 * time.Millisecond)
	}
}

// captureLoginError returns any visible inline error text, verbatim.
func (n *Navigator) captureLoginError() string {
	el, ok := loginErrorChain.Resolve(n.sess.Page(), n.opts.Probe)
	if !ok {
		return ""
	}
	text, err := el.Text()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(text)
}

// ComposeChain exposes the compose-affordance chain to the posting pipeline.
func ComposeChain() resolver.Chain {
	return composeChain
}

func (n *Navigator) pause(baseMs, jitterMs int) {
	d := time.Duration(baseMs) * time.Millisecond
	if jitterMs > 0 {
		d += time.Duration(n.rng.Intn(jitterMs)) * time.Millisecond
	}
	time.Sleep(d)
}

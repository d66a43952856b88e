package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/sirupsen/logrus"
)

// IsolationMode selects how the browser profile is stored.
type IsolationMode int

const (
	// IsolationEphemeral uses a fresh temporary profile removed on Close.
	IsolationEphemeral IsolationMode = iota
	// IsolationNamed reuses a persistent profile directory across runs.
	IsolationNamed
)

// ProxyConfig describes the network egress for one session.
type ProxyConfig struct {
	Protocol string
	Host     string
	Port     int
	Username string
	Password string
}

// ServerURL renders the proxy in scheme://host:port form.
func (p ProxyConfig) ServerURL() string {
	protocol := p.Protocol
	if protocol == "" {
		protocol = "http"
	}
	return fmt.Sprintf("%s://%s:%d", protocol, p.Host, p.Port)
}

// HasAuth reports whether the proxy requires basic-auth credentials.
func (p ProxyConfig) HasAuth() bool {
	return p.Username != "" && p.Password != ""
}

// Fingerprint carries the per-session user agent and viewport.
type Fingerprint struct {
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
}

// Options configures one session acquisition. Isolation is explicit per flow;
// there is no process-wide shared profile.
type Options struct {
	Headless      bool
	Proxy         *ProxyConfig
	CookiePayload string // serialized cookie set, injected before navigation
	Fingerprint   Fingerprint
	Isolation     IsolationMode
	ProfileDir    string // required for IsolationNamed
}

// Session is an isolated browser execution context bound to one account.
type Session struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	page     *rod.Page
	opts     Options
	logger   *logrus.Logger
	tempDir  string
}

// Acquire launches a browser context configured with the account's proxy,
// fingerprint and prior cookies. Proxy or launch failure is fatal for the
// flow; there is no retry at this layer.
func Acquire(ctx context.Context, opts Options, logger *logrus.Logger) (*Session, error) {
	l := launcher.New().
		Leakless(false).
		Headless(opts.Headless).
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-infobars").
		Set("no-first-run").
		Set("no-default-browser-check").
		Set("disable-dev-shm-usage").
		Set("no-sandbox").
		Set("disable-setuid-sandbox").
		Set("window-position", "0,0")

	if opts.Fingerprint.UserAgent != "" {
		l = l.Set("user-agent", opts.Fingerprint.UserAgent)
	}

	s := &Session{launcher: l, opts: opts, logger: logger}

	switch opts.Isolation {
	case IsolationNamed:
		if opts.ProfileDir == "" {
			return nil, fmt.Errorf("named isolation requires a profile directory")
		}
		if err := os.MkdirAll(opts.ProfileDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create profile directory: %w", err)
		}
		l = l.Set("user-data-dir", opts.ProfileDir)
	default:
		dir, err := os.MkdirTemp("", "threads-session-")
		if err != nil {
			return nil, fmt.Errorf("failed to create session profile: %w", err)
		}
		s.tempDir = dir
		l = l.Set("user-data-dir", dir)
	}

	if opts.Proxy != nil {
		l = l.Proxy(opts.Proxy.ServerURL())
	}

	url, err := l.Launch()
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(url).Context(ctx)
	if err := browser.Connect(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}
	s.browser = browser

	if opts.Proxy != nil && opts.Proxy.HasAuth() {
		go browser.HandleAuth(opts.Proxy.Username, opts.Proxy.Password)()
	}

	if opts.CookiePayload != "" {
		if cookies, ok := ParseCookiePayload(opts.CookiePayload); ok {
			if err := browser.SetCookies(cookies); err != nil {
				logger.WithError(err).Warn("Failed to restore cookies, continuing without them")
			}
		} else {
			logger.Warn("Stored cookie payload is not valid JSON, ignoring")
		}
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	s.page = page

	if opts.Fingerprint.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent: opts.Fingerprint.UserAgent,
		}); err != nil {
			logger.WithError(err).Warn("Failed to override user agent")
		}
	}
	if opts.Fingerprint.ViewportWidth > 0 && opts.Fingerprint.ViewportHeight > 0 {
		if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             opts.Fingerprint.ViewportWidth,
			Height:            opts.Fingerprint.ViewportHeight,
			DeviceScaleFactor: 1,
		}); err != nil {
			logger.WithError(err).Warn("Failed to set viewport")
		}
	}

	logger.WithFields(logrus.Fields{
		"headless": opts.Headless,
		"proxy":    opts.Proxy != nil,
	}).Debug("Browser session acquired")
	return s, nil
}

// Page returns the session's page.
func (s *Session) Page() *rod.Page {
	return s.page
}

// Navigate loads a URL and waits for the load event, bounded by timeout.
func (s *Session) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	page := s.page.Context(ctx).Timeout(timeout)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("failed to load %s: %w", url, err)
	}
	return nil
}

// CurrentURL returns the page's current URL, empty on failure.
func (s *Session) CurrentURL() string {
	info, err := s.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

// CaptureCookies serializes the full cookie jar. An empty jar is an error so
// callers never persist a blank payload over a valid one.
func (s *Session) CaptureCookies() (string, error) {
	cookies, err := s.browser.GetCookies()
	if err != nil {
		return "", fmt.Errorf("failed to read cookies: %w", err)
	}
	if len(cookies) == 0 {
		return "", fmt.Errorf("no cookies captured")
	}
	raw, err := json.Marshal(cookies)
	if err != nil {
		return "", fmt.Errorf("failed to serialize cookies: %w", err)
	}
	return string(raw), nil
}

// Close tears down the browser context. It is also the cancellation unit:
// closing aborts any in-flight operation for this session.
func (s *Session) Close() {
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			s.logger.WithError(err).Debug("Browser close reported an error")
		}
	}
	s.cleanup()
}

func (s *Session) cleanup() {
	if s.tempDir != "" {
		os.RemoveAll(s.tempDir)
		s.tempDir = ""
	}
}

// ParseCookiePayload decodes a stored cookie payload. A payload that is not
// valid JSON is reported as not ok, never as an error; the caller proceeds
// without cookies, exactly as if none were stored.
func ParseCookiePayload(payload string) ([]*proto.NetworkCookieParam, bool) {
	var cookies []*proto.NetworkCookieParam
	if err := json.Unmarshal([]byte(payload), &cookies); err != nil {
		return nil, false
	}
	if len(cookies) == 0 {
		return nil, false
	}
	for _, c := range cookies {
		if c.Name == "" || (c.Domain == "" && c.URL == "") {
			return nil, false
		}
	}
	return cookies, true
}

// ProfilePath returns a stable named-profile directory under base, keyed by
// installation rather than account.
func ProfilePath(base string) string {
	return filepath.Join(base, "automation-profile")
}

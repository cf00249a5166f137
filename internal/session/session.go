// Package session keeps a browsing context logged in to the records site.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ramkansal/fightgraph/pkg/plugin"
	"golang.org/x/time/rate"
)

// Config describes the site's login flow.
type Config struct {
	// Name keys the cookie file.
	Name       string
	LandingURL string
	LoginURL   string

	// UsernameEnv and PasswordEnv name the environment variables the
	// credentials are read from at login time.
	UsernameEnv string
	PasswordEnv string

	UsernameSelector string
	PasswordSelector string
	SubmitSelector   string

	// LoginPromptSelectors match elements only shown to logged out users.
	LoginPromptSelectors []string
	// LogoutSelectors match elements only shown to logged in users.
	LogoutSelectors []string

	LoginTimeout  time.Duration
	LoginInterval time.Duration
	CookieDir     string
}

// DefaultConfig returns the login flow of boxrec.com.
func DefaultConfig() Config {
	return Config{
		Name:             "boxrec",
		LandingURL:       "https://boxrec.com/en/",
		LoginURL:         "https://boxrec.com/en/login",
		UsernameEnv:      "BOXREC_USERNAME",
		PasswordEnv:      "BOXREC_PASSWORD",
		UsernameSelector: `input[name="_username"]`,
		PasswordSelector: `input[name="_password"]`,
		SubmitSelector:   `button[type="submit"]`,
		LoginPromptSelectors: []string{
			`input[type="password"]`,
			`form[action*="login"]`,
		},
		LogoutSelectors: []string{
			`a[href*="logout"]`,
		},
		LoginTimeout:  30 * time.Second,
		LoginInterval: 10 * time.Second,
		CookieDir:     ".fightgraph",
	}
}

// Manager establishes and tracks the authenticated session of one
// browsing context.
type Manager struct {
	browser plugin.Browser
	cookies *CookieStore
	cfg     Config
	limiter *rate.Limiter
	logger  *slog.Logger

	mu            sync.Mutex
	authenticated bool
	cookiesLoaded bool
}

// New creates a Manager for browser. A nil logger uses slog.Default().
func New(browser plugin.Browser, cfg Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.LoginTimeout <= 0 {
		cfg.LoginTimeout = DefaultConfig().LoginTimeout
	}
	limit := rate.Inf
	if cfg.LoginInterval > 0 {
		limit = rate.Every(cfg.LoginInterval)
	}
	return &Manager{
		browser: browser,
		cookies: NewCookieStore(cfg.CookieDir, cfg.Name),
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
}

// Invalidate forgets the authenticated state, typically after a fetched
// page turned out to be an auth wall.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	m.authenticated = false
	m.mu.Unlock()
}

// Ensure makes sure the browsing context is logged in. It is a no-op while
// the session is known to be good. On first use saved cookies are applied
// and checked before falling back to the login form. Failures are returned
// as *AuthError.
func (m *Manager) Ensure(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.authenticated {
		return nil
	}

	if !m.cookiesLoaded {
		m.cookiesLoaded = true
		m.restoreCookies(ctx)
	}

	page, err := m.browser.Fetch(ctx, m.cfg.LandingURL)
	switch {
	case err != nil:
		if ctx.Err() != nil {
			return ctx.Err()
		}
		m.logger.Debug("landing page failed, trying login", "url", m.cfg.LandingURL, "err", err)
	case !m.LoggedOut(page):
		m.authenticated = true
		m.logger.Debug("session still valid", "url", m.cfg.LandingURL)
		return nil
	}

	if err := m.login(ctx); err != nil {
		return err
	}
	m.authenticated = true
	return nil
}

func (m *Manager) restoreCookies(ctx context.Context) {
	cookies, err := m.cookies.Load()
	if err != nil {
		m.logger.Warn("ignoring saved cookies", "path", m.cookies.Path(), "err", err)
		return
	}
	if len(cookies) == 0 {
		return
	}
	if err := m.browser.SetCookies(ctx, cookies); err != nil {
		m.logger.Warn("could not apply saved cookies", "err", err)
		return
	}
	m.logger.Debug("applied saved cookies", "path", m.cookies.Path(), "count", len(cookies))
}

func (m *Manager) login(ctx context.Context) error {
	username := os.Getenv(m.cfg.UsernameEnv)
	password := os.Getenv(m.cfg.PasswordEnv)
	if username == "" || password == "" {
		return &AuthError{
			Reason: MissingCredentials,
			Err:    fmt.Errorf("set %s and %s", m.cfg.UsernameEnv, m.cfg.PasswordEnv),
		}
	}

	if err := m.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &AuthError{Reason: Timeout, Err: err}
	}

	loginCtx, cancel := context.WithTimeout(ctx, m.cfg.LoginTimeout)
	defer cancel()

	m.logger.Info("logging in", "url", m.cfg.LoginURL)
	_, err := m.browser.SubmitLogin(loginCtx, plugin.LoginForm{
		URL:              m.cfg.LoginURL,
		UsernameSelector: m.cfg.UsernameSelector,
		PasswordSelector: m.cfg.PasswordSelector,
		SubmitSelector:   m.cfg.SubmitSelector,
		Username:         username,
		Password:         password,
	})
	if err != nil {
		return m.classify(ctx, loginCtx, err)
	}

	page, err := m.browser.Fetch(loginCtx, m.cfg.LandingURL)
	if err != nil {
		return m.classify(ctx, loginCtx, err)
	}
	if m.LoggedOut(page) {
		return &AuthError{Reason: RejectedCredentials, Err: errors.New("still logged out after submitting the login form")}
	}

	cookies, err := m.browser.Cookies(ctx)
	if err != nil {
		m.logger.Warn("could not read session cookies", "err", err)
	} else if err := m.cookies.Save(cookies); err != nil {
		m.logger.Warn("could not save session cookies", "path", m.cookies.Path(), "err", err)
	}

	m.logger.Info("logged in", "url", m.cfg.LoginURL)
	return nil
}

func (m *Manager) classify(ctx, loginCtx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(loginCtx.Err(), context.DeadlineExceeded) {
		return &AuthError{Reason: Timeout, Err: err}
	}
	return &AuthError{Reason: RejectedCredentials, Err: err}
}

// LoggedOut reports whether page was served to a logged out visitor: a
// login prompt is present, no logout control is present, or the request
// ended on the login page.
func (m *Manager) LoggedOut(page *plugin.PageData) bool {
	if page == nil || strings.TrimSpace(page.HTML) == "" {
		return true
	}
	if m.cfg.LoginURL != "" && page.FinalURL != "" &&
		strings.HasPrefix(strings.TrimSuffix(page.FinalURL, "/"), strings.TrimSuffix(m.cfg.LoginURL, "/")) {
		return true
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return true
	}
	for _, sel := range m.cfg.LoginPromptSelectors {
		if doc.Find(sel).Length() > 0 {
			return true
		}
	}
	if len(m.cfg.LogoutSelectors) == 0 {
		return false
	}
	for _, sel := range m.cfg.LogoutSelectors {
		if doc.Find(sel).Length() > 0 {
			return false
		}
	}
	return true
}

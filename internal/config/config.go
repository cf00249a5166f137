// Package config loads fightgraph's settings from fightgraph.json5 and its
// local override.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"dario.cat/mergo"
	"github.com/ramkansal/fightgraph/internal/crawler"
	"github.com/ramkansal/fightgraph/internal/extractor"
	"github.com/ramkansal/fightgraph/internal/fetcher"
	"github.com/ramkansal/fightgraph/internal/session"
)

// DefaultFile is the config file looked up in the working directory.
const DefaultFile = "fightgraph.json5"

// Config is the file format. Durations are Go duration strings ("3s").
// Fields left out of the file keep their defaults.
type Config struct {
	Database string `json:"database"`

	Fetcher      string `json:"fetcher"`
	UserAgent    string `json:"userAgent"`
	Proxy        string `json:"proxy"`
	ShowBrowser  bool   `json:"showBrowser"`
	FetchTimeout string `json:"fetchTimeout"`
	PageTimeout  string `json:"pageTimeout"`

	Delay string `json:"delay"`
	// MaxNodes and TopLimit are pointers so a file can set 0 (no limit).
	// Use NodeBudget and TopCount to read them.
	MaxNodes *int `json:"maxNodes"`

	RatingsURL string `json:"ratingsURL"`
	TopLimit   *int   `json:"topLimit"`

	ProfilePattern string `json:"profilePattern"`

	StateFile string `json:"stateFile"`
	Output    string `json:"output"`

	Session Session `json:"session"`
}

// Session is the login flow section of the file.
type Session struct {
	Name                 string   `json:"name"`
	LandingURL           string   `json:"landingURL"`
	LoginURL             string   `json:"loginURL"`
	UsernameEnv          string   `json:"usernameEnv"`
	PasswordEnv          string   `json:"passwordEnv"`
	UsernameSelector     string   `json:"usernameSelector"`
	PasswordSelector     string   `json:"passwordSelector"`
	SubmitSelector       string   `json:"submitSelector"`
	LoginPromptSelectors []string `json:"loginPromptSelectors"`
	LogoutSelectors      []string `json:"logoutSelectors"`
	LoginTimeout         string   `json:"loginTimeout"`
	LoginInterval        string   `json:"loginInterval"`
	CookieDir            string   `json:"cookieDir"`
}

const (
	defaultMaxNodes = 50
	defaultTopLimit = 10
)

// DefaultConfig returns the settings used when no file overrides them.
func DefaultConfig() Config {
	s := session.DefaultConfig()
	return Config{
		Database:       "fightgraph.db",
		Fetcher:        string(fetcher.ModeBrowser),
		UserAgent:      "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
		FetchTimeout:   "30s",
		PageTimeout:    "15s",
		Delay:          crawler.DefaultConfig().Delay.String(),
		RatingsURL:     "https://boxrec.com/en/ratings",
		ProfilePattern: extractor.DefaultProfilePattern,
		Session: Session{
			Name:                 s.Name,
			LandingURL:           s.LandingURL,
			LoginURL:             s.LoginURL,
			UsernameEnv:          s.UsernameEnv,
			PasswordEnv:          s.PasswordEnv,
			UsernameSelector:     s.UsernameSelector,
			PasswordSelector:     s.PasswordSelector,
			SubmitSelector:       s.SubmitSelector,
			LoginPromptSelectors: s.LoginPromptSelectors,
			LogoutSelectors:      s.LogoutSelectors,
			LoginTimeout:         s.LoginTimeout.String(),
			LoginInterval:        s.LoginInterval.String(),
			CookieDir:            s.CookieDir,
		},
	}
}

// Load returns the defaults overridden by path and its local override.
// Missing files are not an error.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	file, err := ReadConfig[Config](path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := mergo.Merge(&cfg, file, mergo.WithOverride, mergo.WithoutDereference); err != nil {
		return cfg, err
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	for field, v := range map[string]string{
		"fetchTimeout":          c.FetchTimeout,
		"pageTimeout":           c.PageTimeout,
		"delay":                 c.Delay,
		"session.loginTimeout":  c.Session.LoginTimeout,
		"session.loginInterval": c.Session.LoginInterval,
	} {
		if _, err := parseDuration(field, v); err != nil {
			return err
		}
	}
	if c.MaxNodes != nil && *c.MaxNodes < 0 {
		return fmt.Errorf("maxNodes: negative value %d", *c.MaxNodes)
	}
	if c.TopLimit != nil && *c.TopLimit < 0 {
		return fmt.Errorf("topLimit: negative value %d", *c.TopLimit)
	}
	switch fetcher.Mode(c.Fetcher) {
	case fetcher.ModeBrowser, fetcher.ModeHTTP:
	default:
		return fmt.Errorf("fetcher: unknown mode %q", c.Fetcher)
	}
	return nil
}

func parseDuration(field, v string) (time.Duration, error) {
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: negative duration %s", field, v)
	}
	return d, nil
}

// NodeBudget returns the fighters a recursive crawl may process, 0 for no
// limit.
func (c Config) NodeBudget() int {
	if c.MaxNodes == nil {
		return defaultMaxNodes
	}
	return *c.MaxNodes
}

// TopCount returns how many rated fighters the top mode crawls.
func (c Config) TopCount() int {
	if c.TopLimit == nil {
		return defaultTopLimit
	}
	return *c.TopLimit
}

// Crawler returns the crawl settings.
func (c Config) Crawler() (*crawler.Config, error) {
	delay, err := parseDuration("delay", c.Delay)
	if err != nil {
		return nil, err
	}
	cfg := crawler.DefaultConfig()
	cfg.Delay = delay
	return cfg, nil
}

// SessionConfig returns the login flow settings.
func (c Config) SessionConfig() (session.Config, error) {
	loginTimeout, err := parseDuration("session.loginTimeout", c.Session.LoginTimeout)
	if err != nil {
		return session.Config{}, err
	}
	loginInterval, err := parseDuration("session.loginInterval", c.Session.LoginInterval)
	if err != nil {
		return session.Config{}, err
	}
	s := c.Session
	return session.Config{
		Name:                 s.Name,
		LandingURL:           s.LandingURL,
		LoginURL:             s.LoginURL,
		UsernameEnv:          s.UsernameEnv,
		PasswordEnv:          s.PasswordEnv,
		UsernameSelector:     s.UsernameSelector,
		PasswordSelector:     s.PasswordSelector,
		SubmitSelector:       s.SubmitSelector,
		LoginPromptSelectors: s.LoginPromptSelectors,
		LogoutSelectors:      s.LogoutSelectors,
		LoginTimeout:         loginTimeout,
		LoginInterval:        loginInterval,
		CookieDir:            s.CookieDir,
	}, nil
}

// FetcherConfig returns the browsing context settings.
func (c Config) FetcherConfig() (fetcher.Mode, fetcher.Config, error) {
	timeout, err := parseDuration("fetchTimeout", c.FetchTimeout)
	if err != nil {
		return "", fetcher.Config{}, err
	}
	pageTimeout, err := parseDuration("pageTimeout", c.PageTimeout)
	if err != nil {
		return "", fetcher.Config{}, err
	}
	return fetcher.Mode(c.Fetcher), fetcher.Config{
		SiteURL:     c.Session.LandingURL,
		UserAgent:   c.UserAgent,
		Timeout:     timeout,
		PageTimeout: pageTimeout,
		Proxy:       c.Proxy,
		ShowWindow:  c.ShowBrowser,
	}, nil
}

// ExtractorOptions returns the page extractor settings.
func (c Config) ExtractorOptions() extractor.Options {
	opts := extractor.DefaultOptions()
	if c.ProfilePattern != "" {
		opts.ProfilePattern = c.ProfilePattern
	}
	return opts
}

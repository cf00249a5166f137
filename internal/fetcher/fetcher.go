// Package fetcher provides the browsing contexts the crawler drives: a
// headless Chrome one and a plain HTTP one.
package fetcher

import (
	"fmt"
	"time"

	"github.com/ramkansal/fightgraph/pkg/plugin"
)

// Mode controls which fetcher to use.
type Mode string

const (
	ModeHTTP    Mode = "http"
	ModeBrowser Mode = "browser"
)

// Config is the union of both fetchers' settings.
type Config struct {
	SiteURL     string
	UserAgent   string
	Timeout     time.Duration
	PageTimeout time.Duration
	Proxy       string
	ShowWindow  bool
}

// New creates the browsing context for mode.
func New(mode Mode, cfg Config) (plugin.Browser, error) {
	switch mode {
	case ModeHTTP:
		return NewHTTPFetcher(HTTPFetcherConfig{
			SiteURL:   cfg.SiteURL,
			UserAgent: cfg.UserAgent,
			Timeout:   cfg.Timeout,
			Proxy:     cfg.Proxy,
		})
	case ModeBrowser, "":
		return NewBrowserFetcher(BrowserFetcherConfig{
			SiteURL:     cfg.SiteURL,
			Timeout:     cfg.Timeout,
			PageTimeout: cfg.PageTimeout,
			UserAgent:   cfg.UserAgent,
			ShowWindow:  cfg.ShowWindow,
		})
	default:
		return nil, fmt.Errorf("unknown fetcher %q (want %s or %s)", mode, ModeBrowser, ModeHTTP)
	}
}

package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ramkansal/fightgraph/pkg/plugin"
)

// BrowserFetcher uses Rod (headless Chrome) for JS-rendered page fetching.
// All pages are opened in the same browser, so they share its cookies.
type BrowserFetcher struct {
	browser     *rod.Browser
	siteURL     string
	timeout     time.Duration
	pageTimeout time.Duration
	userAgent   string
}

// BrowserFetcherConfig holds configuration for the browser fetcher.
type BrowserFetcherConfig struct {
	// SiteURL is used for cookies that carry no domain of their own.
	SiteURL     string
	Timeout     time.Duration
	PageTimeout time.Duration
	UserAgent   string
	// ShowWindow runs Chrome with a visible window.
	ShowWindow bool
}

// NewBrowserFetcher launches Chrome and connects to it.
func NewBrowserFetcher(cfg BrowserFetcherConfig) (*BrowserFetcher, error) {
	u, err := launcher.New().
		Headless(!cfg.ShowWindow).
		Set("no-sandbox").
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Launch()
	if err != nil {
		return nil, err
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	pageTimeout := cfg.PageTimeout
	if pageTimeout == 0 {
		pageTimeout = 15 * time.Second
	}

	return &BrowserFetcher{
		browser:     browser,
		siteURL:     cfg.SiteURL,
		timeout:     timeout,
		pageTimeout: pageTimeout,
		userAgent:   cfg.UserAgent,
	}, nil
}

func (f *BrowserFetcher) Name() string { return "browser" }

// open creates a blank tab bound to ctx and the fetch timeout.
func (f *BrowserFetcher) open(ctx context.Context) (*rod.Page, error) {
	rodPage, err := f.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, err
	}
	rodPage = rodPage.Context(ctx).Timeout(f.timeout)

	if f.userAgent != "" {
		_ = rodPage.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent: f.userAgent,
		})
	}
	return rodPage, nil
}

func (f *BrowserFetcher) Fetch(ctx context.Context, targetURL string) (*plugin.PageData, error) {
	start := time.Now()
	page := &plugin.PageData{
		URL:         targetURL,
		FinalURL:    targetURL,
		FetcherUsed: f.Name(),
		FetchedAt:   start,
	}

	rodPage, err := f.open(ctx)
	if err != nil {
		page.Error = err.Error()
		page.FetchDuration = time.Since(start)
		return page, err
	}
	defer rodPage.Close()

	if err := rodPage.Navigate(targetURL); err != nil {
		page.Error = err.Error()
		page.FetchDuration = time.Since(start)
		return page, err
	}

	f.settle(rodPage, page)
	page.FetchDuration = time.Since(start)
	return page, nil
}

// settle waits for the page to stop changing and copies its final state
// into page.
func (f *BrowserFetcher) settle(rodPage *rod.Page, page *plugin.PageData) {
	if err := rodPage.WaitStable(f.pageTimeout); err != nil {
		// content is usually usable even when the page never settles
		if !strings.Contains(err.Error(), "context canceled") {
			page.Error = "page did not fully stabilize: " + err.Error()
		}
	}

	if info, err := rodPage.Info(); err == nil {
		page.FinalURL = info.URL
	}

	// navigation does not expose the response status
	page.StatusCode = http.StatusOK
	page.ContentType = "text/html"

	if html, err := rodPage.HTML(); err == nil {
		page.HTML = html
	}
}

// SubmitLogin types the credentials into the login form and clicks submit.
func (f *BrowserFetcher) SubmitLogin(ctx context.Context, form plugin.LoginForm) (*plugin.PageData, error) {
	start := time.Now()
	page := &plugin.PageData{
		URL:         form.URL,
		FinalURL:    form.URL,
		FetcherUsed: f.Name(),
		FetchedAt:   start,
	}

	rodPage, err := f.open(ctx)
	if err != nil {
		return page, err
	}
	defer rodPage.Close()

	if err := rodPage.Navigate(form.URL); err != nil {
		return page, fmt.Errorf("load login page: %w", err)
	}
	if err := rodPage.WaitLoad(); err != nil {
		return page, fmt.Errorf("load login page: %w", err)
	}

	for _, field := range []struct{ selector, value, label string }{
		{form.UsernameSelector, form.Username, "username"},
		{form.PasswordSelector, form.Password, "password"},
	} {
		el, err := rodPage.Element(field.selector)
		if err != nil {
			return page, fmt.Errorf("login form %s field: %w", field.label, err)
		}
		if err := el.Input(field.value); err != nil {
			return page, fmt.Errorf("fill %s: %w", field.label, err)
		}
	}

	submit, err := rodPage.Element(form.SubmitSelector)
	if err != nil {
		return page, fmt.Errorf("login form submit: %w", err)
	}
	wait := rodPage.WaitNavigation(proto.PageLifecycleEventNameLoad)
	if err := submit.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return page, fmt.Errorf("submit login form: %w", err)
	}
	wait()

	f.settle(rodPage, page)
	page.FetchDuration = time.Since(start)
	return page, ctx.Err()
}

// Cookies returns every cookie held by the browser.
func (f *BrowserFetcher) Cookies(ctx context.Context) ([]*http.Cookie, error) {
	cookies, err := f.browser.Context(ctx).GetCookies()
	if err != nil {
		return nil, err
	}

	out := make([]*http.Cookie, 0, len(cookies))
	for _, c := range cookies {
		hc := &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HttpOnly: c.HTTPOnly,
		}
		// session cookies report a non-positive expiry
		if c.Expires > 0 {
			hc.Expires = c.Expires.Time()
		}
		out = append(out, hc)
	}
	return out, nil
}

// SetCookies installs cookies into the browser.
func (f *BrowserFetcher) SetCookies(ctx context.Context, cookies []*http.Cookie) error {
	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		p := &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HttpOnly,
		}
		if p.Domain == "" {
			p.URL = f.siteURL
		}
		if !c.Expires.IsZero() {
			p.Expires = proto.TimeSinceEpoch(c.Expires.Unix())
		}
		params = append(params, p)
	}
	return f.browser.Context(ctx).SetCookies(params)
}

func (f *BrowserFetcher) Close() error {
	if f.browser != nil {
		return f.browser.Close()
	}
	return nil
}

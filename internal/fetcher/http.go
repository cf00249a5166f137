package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"github.com/ramkansal/fightgraph/pkg/plugin"
)

// HTTPFetcher uses Colly for plain HTTP browsing. Every request shares
// the collector's cookie jar, so a login carries over to later fetches.
type HTTPFetcher struct {
	collector *colly.Collector
	siteURL   *url.URL
}

// HTTPFetcherConfig holds configuration for the HTTP fetcher.
type HTTPFetcherConfig struct {
	// SiteURL scopes the cookies returned by Cookies and installed by
	// SetCookies.
	SiteURL   string
	UserAgent string
	Timeout   time.Duration
	Proxy     string
}

// NewHTTPFetcher creates a new Colly-based HTTP fetcher.
func NewHTTPFetcher(cfg HTTPFetcherConfig) (*HTTPFetcher, error) {
	site, err := url.Parse(cfg.SiteURL)
	if err != nil || site.Host == "" {
		return nil, fmt.Errorf("invalid site url %q", cfg.SiteURL)
	}

	c := colly.NewCollector(
		colly.Async(false),
		colly.AllowURLRevisit(),
	)
	c.IgnoreRobotsTxt = true

	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	if cfg.Timeout > 0 {
		c.SetRequestTimeout(cfg.Timeout)
	}
	if cfg.Proxy != "" {
		if err := c.SetProxy(cfg.Proxy); err != nil {
			return nil, fmt.Errorf("proxy %q: %w", cfg.Proxy, err)
		}
	}

	return &HTTPFetcher{collector: c, siteURL: site}, nil
}

func (f *HTTPFetcher) Name() string { return "http" }

func (f *HTTPFetcher) Fetch(ctx context.Context, targetURL string) (*plugin.PageData, error) {
	start := time.Now()
	page := &plugin.PageData{
		URL:         targetURL,
		FinalURL:    targetURL,
		FetcherUsed: f.Name(),
		FetchedAt:   start,
	}

	err := f.request(ctx, page, func(c *colly.Collector) error {
		return c.Visit(targetURL)
	})
	page.FetchDuration = time.Since(start)
	return page, err
}

// request runs visit on a clone of the collector, capturing the response
// into page.
func (f *HTTPFetcher) request(ctx context.Context, page *plugin.PageData, visit func(*colly.Collector) error) error {
	c := f.collector.Clone()
	c.Context = ctx

	var fetchErr error
	c.OnResponse(func(r *colly.Response) {
		page.StatusCode = r.StatusCode
		page.HTML = string(r.Body)
		page.FinalURL = r.Request.URL.String()
		page.ContentType = r.Headers.Get("Content-Type")
	})
	c.OnError(func(r *colly.Response, err error) {
		fetchErr = err
		if r != nil && r.Request != nil {
			page.StatusCode = r.StatusCode
			page.FinalURL = r.Request.URL.String()
		}
	})

	err := visit(c)
	c.Wait()
	if err == nil {
		err = fetchErr
	}
	if err != nil {
		page.Error = err.Error()
	}
	return err
}

// SubmitLogin loads the login page, fills the form that holds the
// password field (keeping hidden inputs such as CSRF tokens) and posts it.
func (f *HTTPFetcher) SubmitLogin(ctx context.Context, form plugin.LoginForm) (*plugin.PageData, error) {
	loginPage, err := f.Fetch(ctx, form.URL)
	if err != nil {
		return loginPage, fmt.Errorf("load login page: %w", err)
	}

	action, data, err := loginFormData(loginPage, form)
	if err != nil {
		return loginPage, err
	}

	start := time.Now()
	page := &plugin.PageData{
		URL:         action,
		FinalURL:    action,
		FetcherUsed: f.Name(),
		FetchedAt:   start,
	}
	err = f.request(ctx, page, func(c *colly.Collector) error {
		return c.Post(action, data)
	})
	page.FetchDuration = time.Since(start)
	if err != nil {
		return page, fmt.Errorf("submit login form: %w", err)
	}
	return page, nil
}

func loginFormData(page *plugin.PageData, form plugin.LoginForm) (string, map[string]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return "", nil, err
	}

	sel := doc.Find("form").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.Find(form.PasswordSelector).Length() > 0
	}).First()
	if sel.Length() == 0 {
		return "", nil, errors.New("login form not found")
	}

	data := make(map[string]string)
	sel.Find("input[name]").Each(func(_ int, in *goquery.Selection) {
		name, _ := in.Attr("name")
		value, _ := in.Attr("value")
		data[name] = value
	})

	for _, field := range []struct{ selector, value, label string }{
		{form.UsernameSelector, form.Username, "username"},
		{form.PasswordSelector, form.Password, "password"},
	} {
		name, ok := sel.Find(field.selector).First().Attr("name")
		if !ok || name == "" {
			return "", nil, fmt.Errorf("login form has no %s field", field.label)
		}
		data[name] = field.value
	}

	if form.SubmitSelector != "" {
		if name, ok := sel.Find(form.SubmitSelector).First().Attr("name"); ok && name != "" {
			value, _ := sel.Find(form.SubmitSelector).First().Attr("value")
			data[name] = value
		}
	}

	base, err := url.Parse(page.BaseURL())
	if err != nil {
		return "", nil, err
	}
	action, _ := sel.Attr("action")
	ref, err := url.Parse(strings.TrimSpace(action))
	if err != nil {
		return "", nil, fmt.Errorf("login form action %q: %w", action, err)
	}
	return base.ResolveReference(ref).String(), data, nil
}

// Cookies returns the jar's cookies for the site.
func (f *HTTPFetcher) Cookies(ctx context.Context) ([]*http.Cookie, error) {
	jar := f.collector.Cookies(f.siteURL.String())
	out := make([]*http.Cookie, 0, len(jar))
	for _, c := range jar {
		out = append(out, &http.Cookie{
			Name:   c.Name,
			Value:  c.Value,
			Domain: f.siteURL.Hostname(),
			Path:   "/",
		})
	}
	return out, nil
}

// SetCookies installs cookies for the site into the jar.
func (f *HTTPFetcher) SetCookies(ctx context.Context, cookies []*http.Cookie) error {
	scoped := make([]*http.Cookie, 0, len(cookies))
	for _, c := range cookies {
		cp := *c
		cp.Domain = ""
		if cp.Path == "" {
			cp.Path = "/"
		}
		scoped = append(scoped, &cp)
	}
	return f.collector.SetCookies(f.siteURL.String(), scoped)
}

func (f *HTTPFetcher) Close() error {
	return nil
}

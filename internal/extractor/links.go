package extractor

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ramkansal/fightgraph/pkg/plugin"
)

// profilePathRegex captures the kind and id of a fighter profile path.
var profilePathRegex = regexp.MustCompile(`(?i)^/(?:[a-z]{2}/)?(proboxer|boxer|box-pro)/(\d+)$`)

// NormalizeURL cleans up a URL for deduplication. Fighter profile URLs are
// rewritten to /en/<kind>/<id> without a query, so every link to the same
// fighter is one crawl target. It returns "" for anything that is not an
// absolute http(s) URL.
func NormalizeURL(rawURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}

	// Only crawl http/https
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return ""
	}
	if parsed.Host == "" {
		return ""
	}
	parsed.Scheme = scheme
	parsed.Host = strings.ToLower(parsed.Host)

	parsed.Fragment = ""

	// Remove trailing slash for consistency
	parsed.Path = strings.TrimRight(parsed.Path, "/")
	if parsed.Path == "" {
		parsed.Path = "/"
	}

	if m := profilePathRegex.FindStringSubmatch(parsed.Path); m != nil {
		parsed.Path = "/en/" + strings.ToLower(m[1]) + "/" + m[2]
		parsed.RawPath = ""
		parsed.RawQuery = ""
		parsed.ForceQuery = false
	}

	return parsed.String()
}

// IsProfileURL reports whether rawURL has the fighter-profile URL shape.
func (e *Extractor) IsProfileURL(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return false
	}
	p := strings.TrimRight(parsed.Path, "/")
	return e.profile.MatchString(p)
}

// ProfileLinks returns every fighter-profile link on the page in document
// order, normalized and without duplicates.
func (e *Extractor) ProfileLinks(page *plugin.PageData) ([]string, error) {
	d, err := e.parse(page)
	if err != nil {
		return nil, err
	}
	return e.profileLinksIn(d, d.doc.Selection, ""), nil
}

func (e *Extractor) profileLinksIn(d *document, scope *goquery.Selection, self string) []string {
	seen := make(map[string]bool)
	var links []string
	scope.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		link := d.resolveProfileLink(e, s)
		if link == "" || link == self || seen[link] {
			return
		}
		seen[link] = true
		links = append(links, link)
	})
	return links
}

// resolveProfileLink returns the normalized absolute URL of an anchor if it
// points at a fighter profile.
func (d *document) resolveProfileLink(e *Extractor, a *goquery.Selection) string {
	href, exists := a.Attr("href")
	if !exists {
		return ""
	}
	trimmed := strings.TrimSpace(href)
	if trimmed == "" ||
		strings.HasPrefix(trimmed, "#") ||
		strings.HasPrefix(trimmed, "javascript:") ||
		strings.HasPrefix(trimmed, "mailto:") {
		return ""
	}
	resolved := NormalizeURL(resolveURL(d.base, trimmed))
	if resolved == "" || !e.IsProfileURL(resolved) {
		return ""
	}
	return resolved
}

// resolveURL resolves a potentially relative URL against a base URL.
func resolveURL(base *url.URL, raw string) string {
	if base == nil {
		return raw
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

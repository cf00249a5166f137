package extractor

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ramkansal/fightgraph/pkg/plugin"
)

// ErrNotFighterPage is returned for pages that do not look like a fighter
// profile. Such pages must not be persisted.
var ErrNotFighterPage = errors.New("not a fighter page")

// DefaultProfilePattern matches fighter profile paths such as
// /en/proboxer/628407 or /box-pro/628407.
const DefaultProfilePattern = `(?i)^/(?:[a-z]{2}/)?(?:proboxer|boxer|box-pro)/\d+$`

// Options configures an Extractor.
type Options struct {
	// ProfilePattern is matched against the URL path of candidate links.
	ProfilePattern string
	// TitleSuffixes are stripped from <title> when it is the only name source.
	TitleSuffixes []string
	// MinImageSize is the smallest width and height, in pixels, the
	// largest-image fallback accepts.
	MinImageSize int
	// Logger receives a debug line per field naming the strategy that
	// found it. Defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultOptions returns the options for BoxRec shaped sites.
func DefaultOptions() Options {
	return Options{
		ProfilePattern: DefaultProfilePattern,
		TitleSuffixes:  []string{" - BoxRec", " | BoxRec", " :: BoxRec", "BoxRec:"},
		MinImageSize:   100,
	}
}

// Extractor turns a loaded fighter profile page into structured records.
type Extractor struct {
	profile  *regexp.Regexp
	suffixes []string
	minImage int
	logger   *slog.Logger
}

// New creates an Extractor.
func New(opts Options) (*Extractor, error) {
	pattern := opts.ProfilePattern
	if pattern == "" {
		pattern = DefaultProfilePattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid profile pattern: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		profile:  re,
		suffixes: opts.TitleSuffixes,
		minImage: opts.MinImageSize,
		logger:   logger,
	}, nil
}

// Extract classifies the page and, if it is a fighter profile, returns the
// fighter, the bouts of its fight history and the opponent links found there.
func (e *Extractor) Extract(page *plugin.PageData) (*plugin.Extraction, error) {
	d, err := e.parse(page)
	if err != nil {
		return nil, err
	}
	if !e.isFighterPage(d) {
		return nil, ErrNotFighterPage
	}

	self := NormalizeURL(page.URL)
	fighter := plugin.FighterRecord{
		Name:        e.firstMatch(d, self, "name", e.nameStrategies()),
		RecordText:  e.firstMatch(d, self, "record", recordStrategies),
		WeightClass: e.firstMatch(d, self, "weight_class", weightClassStrategies),
		Nationality: e.firstMatch(d, self, "nationality", nationalityStrategies),
		Nickname:    e.firstMatch(d, self, "nickname", nicknameStrategies),
		ImageURL:    e.firstMatch(d, self, "image", e.imageStrategies()),
		SourceURL:   self,
	}
	if fighter.Name == "" {
		return nil, ErrNotFighterPage
	}

	out := &plugin.Extraction{Fighter: fighter}
	table := e.findFightTable(d)
	if table == nil {
		return out, nil
	}

	seen := make(map[string]bool)
	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		bout, link, ok := e.parseRow(d, row, self)
		if link != "" && !seen[link] {
			seen[link] = true
			out.OpponentLinks = append(out.OpponentLinks, link)
		}
		if ok {
			out.Bouts = append(out.Bouts, bout)
		}
	})
	return out, nil
}

// document is a parsed page plus the values every strategy needs.
type document struct {
	doc  *goquery.Document
	base *url.URL
	// text is the visible body text with whitespace collapsed.
	text  string
	lower string
	title string
}

func (e *Extractor) parse(page *plugin.PageData) (*document, error) {
	if page == nil || strings.TrimSpace(page.HTML) == "" {
		return nil, ErrNotFighterPage
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	doc.Find("script, style, noscript").Remove()

	base, err := url.Parse(page.BaseURL())
	if err != nil {
		base = nil
	}

	text := clean(doc.Find("body").Text())
	return &document{
		doc:   doc,
		base:  base,
		text:  text,
		lower: strings.ToLower(text),
		title: clean(doc.Find("title").First().Text()),
	}, nil
}

var domainKeywordRegex = regexp.MustCompile(`(?i)\b(record|division|bouts?)\b`)

// isFighterPage requires a heading-like name element plus either a results
// table or boxing keywords in the body text.
func (e *Extractor) isFighterPage(d *document) bool {
	if !d.hasHeading() {
		return false
	}
	if e.findResultsTable(d) != nil {
		return true
	}
	return domainKeywordRegex.MatchString(d.text)
}

const headingSelector = ".profileName, [itemprop=name], h1, .pageTitle, .title, h2"

func (d *document) hasHeading() bool {
	found := false
	d.doc.Find(headingSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		found = clean(s.Text()) != ""
		return !found
	})
	return found
}

// clean collapses runs of whitespace.
func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

package extractor

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// strategy is one way of finding a field. Strategies for a field are
// tried in order and the first non-empty value wins.
type strategy struct {
	name string
	fn   func(d *document) string
}

func (e *Extractor) firstMatch(d *document, url, field string, strategies []strategy) string {
	for _, s := range strategies {
		if v := strings.TrimSpace(s.fn(d)); v != "" {
			e.logger.Debug("field extracted", "url", url, "field", field, "strategy", s.name)
			return v
		}
	}
	e.logger.Debug("field not found", "url", url, "field", field)
	return ""
}

// ---------- name ----------

const maxNameLen = 80

func (e *Extractor) nameStrategies() []strategy {
	return []strategy{
		{"name-heading", func(d *document) string {
			return d.firstText(maxNameLen, ".profileName", "[itemprop=name]", "h1")
		}},
		{"title-element", func(d *document) string {
			return d.firstText(maxNameLen, ".pageTitle", ".title", "h2")
		}},
		{"page-title", e.titleName},
	}
}

func (e *Extractor) titleName(d *document) string {
	title := d.title
	if title == "" {
		return ""
	}
	for _, suffix := range e.suffixes {
		if strings.HasSuffix(title, suffix) {
			return strings.TrimSpace(strings.TrimSuffix(title, suffix))
		}
		if strings.HasPrefix(title, suffix) {
			return strings.TrimSpace(strings.TrimPrefix(title, suffix))
		}
	}
	return ""
}

// firstText returns the text of the first element matching any of the
// selectors, in selector order, that is non-empty and shorter than max.
func (d *document) firstText(max int, selectors ...string) string {
	for _, sel := range selectors {
		var found string
		d.doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := clean(s.Text())
			if text == "" || len(text) > max {
				return true
			}
			found = text
			return false
		})
		if found != "" {
			return found
		}
	}
	return ""
}

// ---------- record ----------

var (
	// a W-L-D triple that is not part of a longer digit run such as a date
	recordPattern    = regexp.MustCompile(`(?:^|[^\d-])(\d{1,3})\s*-\s*(\d{1,3})\s*-\s*(\d{1,3})(?:$|[^\d-])`)
	recordOnlyRegex  = regexp.MustCompile(`^(\d{1,3})\s*-\s*(\d{1,3})\s*-\s*(\d{1,3})$`)
	maxRecordNodeLen = 20
)

var recordStrategies = []strategy{
	{"record-element", recordFromElement},
	{"record-node", recordFromShortNode},
	{"record-text", func(d *document) string { return matchRecord(recordPattern, d.text) }},
}

func recordFromElement(d *document) string {
	w := d.doc.Find(".bgW").First()
	l := d.doc.Find(".bgL").First()
	dr := d.doc.Find(".bgD").First()
	if w.Length() > 0 && l.Length() > 0 && dr.Length() > 0 {
		wins, werr := strconv.Atoi(clean(w.Text()))
		losses, lerr := strconv.Atoi(clean(l.Text()))
		draws, derr := strconv.Atoi(clean(dr.Text()))
		if werr == nil && lerr == nil && derr == nil {
			return strconv.Itoa(wins) + "-" + strconv.Itoa(losses) + "-" + strconv.Itoa(draws)
		}
	}

	var found string
	d.doc.Find(".profileWLD, .record, [class*=record]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		found = matchRecord(recordPattern, clean(s.Text()))
		return found == ""
	})
	return found
}

func recordFromShortNode(d *document) string {
	var found string
	d.doc.Find("body *").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.Children().Length() > 0 {
			return true
		}
		text := clean(s.Text())
		if text == "" || len(text) > maxRecordNodeLen {
			return true
		}
		found = matchRecord(recordOnlyRegex, text)
		return found == ""
	})
	return found
}

func matchRecord(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return m[1] + "-" + m[2] + "-" + m[3]
}

// ---------- weight class ----------

// knownWeightClasses is ordered so that compound names are seen before the
// names they contain.
var knownWeightClasses = []string{
	"light heavyweight",
	"super middleweight",
	"light middleweight",
	"super welterweight",
	"light welterweight",
	"super lightweight",
	"super featherweight",
	"super bantamweight",
	"super flyweight",
	"light flyweight",
	"junior middleweight",
	"junior welterweight",
	"junior lightweight",
	"junior featherweight",
	"junior bantamweight",
	"junior flyweight",
	"minimumweight",
	"strawweight",
	"atomweight",
	"cruiserweight",
	"bridgerweight",
	"heavyweight",
	"middleweight",
	"welterweight",
	"lightweight",
	"featherweight",
	"bantamweight",
	"flyweight",
}

var weightClassStrategies = []strategy{
	{"label-row", func(d *document) string { return d.labelValue("division", "weight", "class") }},
	{"known-class", knownWeightClass},
}

func knownWeightClass(d *document) string {
	for _, wc := range knownWeightClasses {
		if strings.Contains(d.lower, wc) {
			return titleCase(wc)
		}
	}
	return ""
}

// labelValue finds a two-column "label | value" row whose label contains
// one of the keywords and returns the value.
func (d *document) labelValue(keywords ...string) string {
	var found string
	d.doc.Find("tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		cells := row.ChildrenFiltered("th, td")
		if cells.Length() < 2 {
			return true
		}
		label := strings.ToLower(clean(cells.First().Text()))
		if label == "" || len(label) > 40 {
			return true
		}
		for _, kw := range keywords {
			if strings.Contains(label, kw) {
				found = clean(cells.Eq(1).Text())
				return found == ""
			}
		}
		return true
	})
	return found
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// ---------- nationality ----------

var nationalityStrategies = []strategy{
	{"label-row", func(d *document) string { return d.labelValue("nationality", "country") }},
	{"flag-image", flagText},
}

func flagText(d *document) string {
	var found string
	d.doc.Find("img, span, i").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !hintsAny(s, "flag") {
			return true
		}
		for _, attr := range []string{"alt", "title"} {
			if v, ok := s.Attr(attr); ok && clean(v) != "" {
				found = clean(v)
				return false
			}
		}
		return true
	})
	return found
}

// ---------- nickname ----------

var quotedRegex = regexp.MustCompile(`["“]([^"“”]{2,40})["”]`)

var nicknameStrategies = []strategy{
	{"nickname-element", func(d *document) string {
		return strings.Trim(d.firstText(60, ".nickname", "[class*=nickname]", "[itemprop=alternateName]"), `"“” `)
	}},
	{"quoted-text", func(d *document) string {
		m := quotedRegex.FindStringSubmatch(d.text)
		if m == nil {
			return ""
		}
		return strings.TrimSpace(m[1])
	}},
}

// ---------- image ----------

func (e *Extractor) imageStrategies() []strategy {
	return []strategy{
		{"profile-image", profileImage},
		{"largest-image", e.largestImage},
	}
}

func profileImage(d *document) string {
	var found string
	d.doc.Find("img[src]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if hintsAny(s, "flag", "logo", "icon") || !hintsAny(s, "profile", "photo") {
			return true
		}
		src, _ := s.Attr("src")
		found = resolveURL(d.base, strings.TrimSpace(src))
		return found == ""
	})
	return found
}

func (e *Extractor) largestImage(d *document) string {
	var best string
	bestArea := 0
	d.doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		if hintsAny(s, "flag", "logo", "icon") {
			return
		}
		w := attrInt(s, "width")
		h := attrInt(s, "height")
		if w < e.minImage || h < e.minImage {
			return
		}
		if area := w * h; area > bestArea {
			src, _ := s.Attr("src")
			if resolved := resolveURL(d.base, strings.TrimSpace(src)); resolved != "" {
				best = resolved
				bestArea = area
			}
		}
	})
	return best
}

// hintsAny reports whether the class, alt, title or src of s mentions any
// of the hints.
func hintsAny(s *goquery.Selection, hints ...string) bool {
	var b strings.Builder
	for _, attr := range []string{"class", "alt", "title", "src"} {
		if v, ok := s.Attr(attr); ok {
			b.WriteString(strings.ToLower(v))
			b.WriteByte(' ')
		}
	}
	haystack := b.String()
	for _, h := range hints {
		if strings.Contains(haystack, h) {
			return true
		}
	}
	return false
}

func attrInt(s *goquery.Selection, attr string) int {
	v, ok := s.Attr(attr)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(v), "px"))
	if err != nil {
		return 0
	}
	return n
}

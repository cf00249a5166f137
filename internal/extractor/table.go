package extractor

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ramkansal/fightgraph/pkg/plugin"
)

const resultMarkerSelector = ".boutResult, [class*=result], .bgW, .bgL, .bgD, .bgNC"

var (
	temporalKeywords = []string{"date", "year"}
	outcomeKeywords  = []string{"result", "won", "lost", "win", "loss", "draw", "decision"}
)

// findResultsTable returns a table that clearly holds a fight history:
// one with both opponent links and result markers, else one whose text
// mentions both dates and outcomes.
func (e *Extractor) findResultsTable(d *document) *goquery.Selection {
	var found *goquery.Selection
	d.doc.Find("table").EachWithBreak(func(_ int, t *goquery.Selection) bool {
		if e.hasProfileLink(d, t) && hasResultMarker(t) {
			found = t
			return false
		}
		return true
	})
	if found != nil {
		return found
	}

	d.doc.Find("table").EachWithBreak(func(_ int, t *goquery.Selection) bool {
		text := strings.ToLower(clean(t.Text()))
		if containsAny(text, temporalKeywords) && containsAny(text, outcomeKeywords) {
			found = t
			return false
		}
		return true
	})
	return found
}

// findFightTable falls back to the largest table with more than two rows.
func (e *Extractor) findFightTable(d *document) *goquery.Selection {
	if t := e.findResultsTable(d); t != nil {
		return t
	}

	var largest *goquery.Selection
	most := 2
	d.doc.Find("table").Each(func(_ int, t *goquery.Selection) {
		if rows := t.Find("tr").Length(); rows > most {
			largest = t
			most = rows
		}
	})
	return largest
}

func (e *Extractor) hasProfileLink(d *document, scope *goquery.Selection) bool {
	found := false
	scope.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		found = d.resolveProfileLink(e, a) != ""
		return !found
	})
	return found
}

func hasResultMarker(t *goquery.Selection) bool {
	if t.Find(resultMarkerSelector).Length() > 0 {
		return true
	}
	found := false
	t.Find("td").EachWithBreak(func(_ int, td *goquery.Selection) bool {
		_, found = resultCode(clean(td.Text()))
		return !found
	})
	return found
}

var (
	methodRegex = regexp.MustCompile(`(?i)\b(KO|TKO|UD|SD|MD|PTS|RTD|DQ|TD|NWS|decision|knockout|stoppage|retired|disqualification|submission)\b`)
	roundsRegex = regexp.MustCompile(`^(\d{1,2})\s*/\s*(\d{1,2})$`)
)

// parseRow reads one fight-history row. link is the opponent's profile
// URL when the row has one; ok is false when the row lacks a date, an
// opponent name or a result.
func (e *Extractor) parseRow(d *document, row *goquery.Selection, self string) (bout plugin.BoutRecord, link string, ok bool) {
	cells := row.ChildrenFiltered("td")
	if cells.Length() == 0 {
		return bout, "", false
	}
	used := make(map[int]bool)

	// date
	cells.EachWithBreak(func(i int, c *goquery.Selection) bool {
		if date, ok := NormalizeDate(clean(c.Text())); ok {
			bout.Date = date
			used[i] = true
			return false
		}
		return true
	})
	if bout.Date == "" {
		cells.EachWithBreak(func(i int, c *goquery.Selection) bool {
			if hintsAny(c, "date") || c.Find(`a[href*="date"]`).Length() > 0 {
				bout.Date = clean(c.Text())
				used[i] = true
				return bout.Date == ""
			}
			return true
		})
	}

	// opponent
	cells.EachWithBreak(func(i int, c *goquery.Selection) bool {
		c.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
			resolved := d.resolveProfileLink(e, a)
			if resolved == "" || resolved == self {
				return true
			}
			link = resolved
			bout.OpponentURL = resolved
			bout.OpponentName = clean(a.Text())
			used[i] = true
			return false
		})
		return link == ""
	})
	if bout.OpponentName == "" {
		if c := cells.Filter("[class*=opponent]").First(); c.Length() > 0 {
			bout.OpponentName = clean(c.Text())
		}
	}

	// result
	if marker := row.Find(resultMarkerSelector).First(); marker.Length() > 0 {
		code := clean(marker.Text())
		if code == "" {
			code = classResult(marker)
		}
		if r, ok := resultCode(code); ok {
			bout.Result = r
		} else {
			bout.Result = plugin.ResultUnknown
		}
	} else {
		cells.EachWithBreak(func(i int, c *goquery.Selection) bool {
			if used[i] {
				return true
			}
			if r, ok := resultCode(clean(c.Text())); ok {
				bout.Result = r
				used[i] = true
				return false
			}
			return true
		})
	}

	cells.Each(func(i int, c *goquery.Selection) {
		if used[i] {
			return
		}
		text := clean(c.Text())
		if bout.Method == "" && methodRegex.MatchString(text) {
			bout.Method = text
			return
		}
		if bout.ScheduledRounds == 0 {
			if m := roundsRegex.FindStringSubmatch(text); m != nil {
				bout.ScheduledRounds = atoi(m[2])
				return
			}
		}
		if bout.Location == "" && hintsAny(c, "location") {
			bout.Location = text
		}
	})

	if venue := row.Find(`a[href*="venue"]`).First(); venue.Length() > 0 {
		bout.Venue = clean(venue.Text())
	} else if c := cells.Filter("[class*=venue]").First(); c.Length() > 0 {
		bout.Venue = clean(c.Text())
	}

	ok = bout.Date != "" && bout.OpponentName != "" && bout.Result != ""
	return bout, link, ok
}

// resultCode maps a W/L/D/NC marker to a Result.
func resultCode(s string) (plugin.Result, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "W", "WIN", "WON":
		return plugin.ResultWin, true
	case "L", "LOSS", "LOST":
		return plugin.ResultLoss, true
	case "D", "DRAW":
		return plugin.ResultDraw, true
	case "NC", "NO CONTEST":
		return plugin.ResultNoContest, true
	}
	return "", false
}

// classResult reads a result from marker classes such as "bgW".
func classResult(s *goquery.Selection) string {
	class, _ := s.Attr("class")
	for _, c := range strings.Fields(class) {
		if strings.HasPrefix(c, "bg") && len(c) > 2 {
			return c[2:]
		}
	}
	return ""
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

package extractor

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	ymdRegex = regexp.MustCompile(`^(\d{4})[-/.](\d{1,2})[-/.](\d{1,2})$`)
	xyyRegex = regexp.MustCompile(`^(\d{1,2})[-/.](\d{1,2})[-/.](\d{4})$`)

	// month-name layouts tried after the numeric forms
	namedDateLayouts = []string{
		"Jan 2, 2006",
		"January 2, 2006",
		"Jan 2 2006",
		"2 Jan 2006",
		"2 January 2006",
		"Jan 02 2006",
	}
)

// NormalizeDate rewrites a date in Y-M-D, D-M-Y or M-D-Y order (or with a
// month name) as YYYY-MM-DD. When both leading fields of a numeric date
// are 12 or less the date is read day first.
func NormalizeDate(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}

	if m := ymdRegex.FindStringSubmatch(s); m != nil {
		return formatYMD(atoi(m[1]), atoi(m[2]), atoi(m[3]))
	}

	if m := xyyRegex.FindStringSubmatch(s); m != nil {
		a, b, y := atoi(m[1]), atoi(m[2]), atoi(m[3])
		switch {
		case a > 12:
			return formatYMD(y, b, a)
		case b > 12:
			return formatYMD(y, a, b)
		default:
			return formatYMD(y, b, a)
		}
	}

	for _, layout := range namedDateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.Format(time.DateOnly), true
		}
	}
	return "", false
}

func formatYMD(y, m, d int) (string, bool) {
	if m < 1 || m > 12 || d < 1 || d > 31 {
		return "", false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Day() != d || int(t.Month()) != m {
		return "", false
	}
	return fmt.Sprintf("%04d-%02d-%02d", y, m, d), true
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

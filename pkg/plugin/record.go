package plugin

import (
	"fmt"
	"regexp"
	"strconv"
)

// Record is a fighter's win-loss-draw record.
type Record struct {
	Wins   int `json:"wins"`
	Losses int `json:"losses"`
	Draws  int `json:"draws"`
}

// String formats the record in its canonical "wins-losses-draws" form.
func (r Record) String() string {
	return fmt.Sprintf("%d-%d-%d", r.Wins, r.Losses, r.Draws)
}

var (
	recordDigitsRegex = regexp.MustCompile(`(\d+)\s*-\s*(\d+)\s*-\s*(\d+)`)
	recordWinsRegex   = regexp.MustCompile(`(?i)\b(?:w|wins?)\s*:\s*(\d+)`)
	recordLossesRegex = regexp.MustCompile(`(?i)\b(?:l|loss|losses)\s*:\s*(\d+)`)
	recordDrawsRegex  = regexp.MustCompile(`(?i)\b(?:d|draws?)\s*:\s*(\d+)`)
)

// ParseRecord reads a record out of free text. The "W-L-D" digit form is
// tried first, then "W:<n> L:<n> D:<n>" tokens; components that cannot be
// found are 0. ok is false when nothing at all could be read.
func ParseRecord(s string) (rec Record, ok bool) {
	if m := recordDigitsRegex.FindStringSubmatch(s); m != nil {
		return Record{
			Wins:   atoi(m[1]),
			Losses: atoi(m[2]),
			Draws:  atoi(m[3]),
		}, true
	}

	for _, tok := range []struct {
		re  *regexp.Regexp
		dst *int
	}{
		{recordWinsRegex, &rec.Wins},
		{recordLossesRegex, &rec.Losses},
		{recordDrawsRegex, &rec.Draws},
	} {
		if m := tok.re.FindStringSubmatch(s); m != nil {
			*tok.dst = atoi(m[1])
			ok = true
		}
	}
	return rec, ok
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

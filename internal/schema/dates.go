package schema

import (
	"regexp"
	"strings"
	"time"
)

var (
	isoDatePattern    = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)
	slashDatePattern  = regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{2,4}`)
	wordedDatePattern = regexp.MustCompile(`^\w{3,9}\s+\d{1,2},?\s+\d{4}`)
)

// dateLayouts are tried in order by ParseDate.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05-0700",
	"2006-01-02 15:04:05-07",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006 3:04:05 PM",
	"1/2/2006 3:04 PM",
	"1/2/2006",
	"1/2/06 15:04:05",
	"1/2/06 15:04",
	"1/2/06 3:04:05 PM",
	"1/2/06 3:04 PM",
	"1/2/06",
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"Monday, January 2, 2006",
	"Mon, 02 Jan 2006 15:04:05 MST",
}

// LooksLikeDate reports whether s has the shape of one of the three
// recognised date notations: ISO, M/D/YY(YY), or "Month D, YYYY".
func LooksLikeDate(s string) bool {
	s = strings.TrimSpace(s)
	return isoDatePattern.MatchString(s) || slashDatePattern.MatchString(s) || wordedDatePattern.MatchString(s)
}

// ParseDate parses s as a calendar date using the recognised layouts.
// Times without a zone are read as UTC.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	// "Sept 5, 2024" and similar four-letter abbreviations
	if f := strings.Fields(s); len(f) >= 3 && len(f[0]) > 3 {
		short := f[0][:3] + " " + strings.Join(f[1:], " ")
		for _, layout := range []string{"Jan 2, 2006", "Jan 2 2006"} {
			if t, err := time.Parse(layout, short); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	reMinutesAgo = regexp.MustCompile(`(?i)(\d+)\s*minutes?\s*ago`)
	reHoursAgo   = regexp.MustCompile(`(?i)(\d+)\s*hours?\s*ago`)
	reDaysAgo    = regexp.MustCompile(`(?i)(\d+)\s*days?\s*ago`)
	reJustNow    = regexp.MustCompile(`(?i)just\s*now`)
	reOrdinal    = regexp.MustCompile(`(?i)(\d{1,2})(st|nd|rd|th)\b`)
)

// feedLayouts covers the timestamp shapes RSS feeds and loosely
// formatted bylines tend to use. Tried before the fixed site layouts.
var feedLayouts = []string{
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2 Jan 2006",
	"Jan 2, 2006",
	"2 January 2006 15:04",
	"January 2, 2006 15:04",
}

// siteLayouts covers the exact formats the configured sources print on
// their pages, most specific first.
var siteLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2 January 2006",
	"January 2, 2006",
	"02/01/2006",
	"01/02/2006",
	"02-01-2006",
}

// ParseDate turns a scraped date string into a time. Relative phrases
// ("2 hours ago", "yesterday") are resolved against the current clock,
// then the known layouts are tried in order. The second return is false
// when nothing matched; callers treat that as "date unknown" rather
// than an error.
func ParseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}

	now := time.Now()
	if m := reMinutesAgo.FindStringSubmatch(raw); m != nil {
		n, _ := strconv.Atoi(m[1])
		return now.Add(-time.Duration(n) * time.Minute), true
	}
	if m := reHoursAgo.FindStringSubmatch(raw); m != nil {
		n, _ := strconv.Atoi(m[1])
		return now.Add(-time.Duration(n) * time.Hour), true
	}
	if m := reDaysAgo.FindStringSubmatch(raw); m != nil {
		n, _ := strconv.Atoi(m[1])
		return now.AddDate(0, 0, -n), true
	}
	if reJustNow.MatchString(raw) {
		return now, true
	}
	lower := strings.ToLower(raw)
	if strings.Contains(lower, "today") {
		return midnightOffset(now, 0), true
	}
	if strings.Contains(lower, "yesterday") {
		return midnightOffset(now, -1), true
	}

	// "3rd March 2026" style ordinals defeat the fixed layouts.
	cleaned := strings.TrimSpace(reOrdinal.ReplaceAllString(raw, "$1"))

	for _, layout := range feedLayouts {
		if t, err := time.Parse(layout, cleaned); err == nil {
			return t, true
		}
	}
	for _, layout := range siteLayouts {
		if t, err := time.Parse(layout, cleaned); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// midnightOffset returns midnight of the day days away from t, in t's
// location.
func midnightOffset(t time.Time, days int) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day()+days, 0, 0, 0, 0, t.Location())
}

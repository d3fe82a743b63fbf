package collector

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Central bank feeds disagree wildly about date formats. Layouts are
// tried in order; the first hit wins.
var dateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2 Jan 2006",
	"02 Jan 2006",
	"Jan. 2, 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 January 2006",
	"02 January 2006",
	"02.01.2006",
}

// ParseDate parses a feed-provided date string against the known
// layouts.
func ParseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

var (
	isoDateRe = regexp.MustCompile(`\b(20\d\d)[-/.](0[1-9]|1[0-2])[-/.](0[1-9]|[12]\d|3[01])\b`)
	dmyDateRe = regexp.MustCompile(`\b(0[1-9]|[12]\d|3[01])[-/.](0[1-9]|1[0-2])[-/.](20\d\d)\b`)
	monDDRe   = regexp.MustCompile(`\b([A-Z][a-z]+)\.?\s+(\d{1,2}),?\s+(20\d\d)\b`)
	ddMonRe   = regexp.MustCompile(`\b(\d{1,2})\s+([A-Z][a-z]+)\.?\s+(20\d\d)\b`)
	yearRe    = regexp.MustCompile(`\b(20\d\d)\b`)
)

// ExtractDate scrapes a publication date out of arbitrary text when the
// feed provides none. Strategies, in order: numeric ISO-ish dates,
// day-first numeric dates, textual month dates, and finally a bare year
// pinned to January 1st so the lookback filter can still reject stale
// items. Returns a zero time when nothing date-like is present.
func ExtractDate(text string) (time.Time, bool) {
	if text == "" {
		return time.Time{}, false
	}

	if m := isoDateRe.FindStringSubmatch(text); m != nil {
		if t, err := time.Parse("2006-01-02", fmt.Sprintf("%s-%s-%s", m[1], m[2], m[3])); err == nil {
			return t, true
		}
	}
	if m := dmyDateRe.FindStringSubmatch(text); m != nil {
		if t, err := time.Parse("2006-01-02", fmt.Sprintf("%s-%s-%s", m[3], m[2], m[1])); err == nil {
			return t, true
		}
	}
	if m := monDDRe.FindStringSubmatch(text); m != nil {
		for _, layout := range []string{"January 2 2006", "Jan 2 2006"} {
			if t, err := time.Parse(layout, fmt.Sprintf("%s %s %s", m[1], m[2], m[3])); err == nil {
				return t, true
			}
		}
	}
	if m := ddMonRe.FindStringSubmatch(text); m != nil {
		for _, layout := range []string{"2 January 2006", "2 Jan 2006"} {
			if t, err := time.Parse(layout, fmt.Sprintf("%s %s %s", m[1], m[2], m[3])); err == nil {
				return t, true
			}
		}
	}
	if m := yearRe.FindStringSubmatch(text); m != nil {
		if t, err := time.Parse("2006", m[1]); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

package dataprocessing

import (
	"strings"
	"time"
)

// dateLayouts are tried in order. Layouts without a zone parse as UTC.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02T15:04:05-0700",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05-0700",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006/01/02",
	"2006/01/02 15:04:05",
	"2006.01.02",
	"1/2/2006",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1-2-2006",
	"1/2/06",
	"02-Jan-2006",
	"2-Jan-2006",
	"2 Jan 2006",
	"2 January 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"January 2, 2006",
	"January 2 2006",
	time.RFC1123,
	time.RFC1123Z,
	"20060102",
}

// Representable range of a nanosecond timestamp.
var (
	minDate = time.Date(1677, time.September, 21, 0, 12, 43, 145224192, time.UTC)
	maxDate = time.Date(2262, time.April, 11, 23, 47, 16, 854775807, time.UTC)
)

// ParseDate parses s with the first matching layout and returns it in UTC.
// Values outside the representable range are rejected.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		t = t.UTC()
		if t.Before(minDate) || t.After(maxDate) {
			return time.Time{}, false
		}
		return t, true
	}
	return time.Time{}, false
}

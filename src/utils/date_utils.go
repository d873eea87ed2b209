package utils

import (
	"fmt"
	"strings"
	"time"
)

// DayKeyFormat is the canonical trade date format used for all bucketing.
const DayKeyFormat = "2006-01-02"

// timestampLayouts are the formats accepted for broker-supplied timestamps,
// most specific first.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"02-01-2006 15:04",
	"02-01-2006",
	"01/02/2006 15:04:05",
	"01/02/2006",
}

// ParseTimestamp parses a broker timestamp in any of the supported layouts.
// Returns the zero time and false when the string is empty or unrecognized.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// DayKey returns the daily bucket key for t.
func DayKey(t time.Time) string {
	return t.Format(DayKeyFormat)
}

// WeekKey returns the ISO-week bucket key for t, e.g. "2024-W07".
// The year is the ISO year, which can differ from the calendar year
// around January 1st.
func WeekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// MonthKey returns the calendar-month bucket key for t, e.g. "2024-02".
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}

// CanonicalDate derives the single date assigned to a trade for bucketing:
// date(exit time ?? entry time ?? fallback). fallback is normally the
// import time.
func CanonicalDate(entry, exit *time.Time, fallback time.Time) string {
	switch {
	case exit != nil:
		return DayKey(*exit)
	case entry != nil:
		return DayKey(*entry)
	default:
		return DayKey(fallback)
	}
}

// Package schedule provides civil-time helpers for campaign run windows.
// All checks are evaluated in one fixed time zone configured at process
// start (Central time by default); campaigns never mix zones.
package schedule

import (
	"strconv"
	"strings"
	"time"
)

// ParseTimeToMinutes parses "HH:MM" or "HH:MM:SS" to minutes since
// midnight. Returns (0, false) for empty or malformed input.
func ParseTimeToMinutes(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	parts := strings.Split(s, ":")
	h, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, false
	}
	m := 0
	if len(parts) > 1 {
		m, err = strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return 0, false
		}
	}
	return h*60 + m, true
}

// WithinWindow reports whether now falls inside [start, end).
// Either bound may be empty, meaning unbounded on that side; both empty
// means always allowed. now must already be in the dialer time zone.
func WithinWindow(now time.Time, start, end string) bool {
	startMin, hasStart := ParseTimeToMinutes(start)
	endMin, hasEnd := ParseTimeToMinutes(end)
	if !hasStart && !hasEnd {
		return true
	}
	cur := now.Hour()*60 + now.Minute()
	if hasStart && cur < startMin {
		return false
	}
	if hasEnd && cur >= endMin {
		return false
	}
	return true
}

// AllowedDay reports whether now's weekday is in days (0=Sun .. 6=Sat).
// An empty set allows every day.
func AllowedDay(now time.Time, days []int) bool {
	if len(days) == 0 {
		return true
	}
	dow := int(now.Weekday())
	for _, d := range days {
		if d == dow {
			return true
		}
	}
	return false
}

// DateString formats now as the civil date YYYY-MM-DD. Daily counters key
// their reset on this value.
func DateString(now time.Time) string {
	return now.Format("2006-01-02")
}

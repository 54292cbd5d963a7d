package schedule

import (
	"testing"
	"time"
)

func at(hour, min int) time.Time {
	return time.Date(2025, 3, 3, hour, min, 0, 0, time.UTC) // a Monday
}

func TestParseTimeToMinutes(t *testing.T) {
	if m, ok := ParseTimeToMinutes("09:30"); !ok || m != 570 {
		t.Fatalf("expected 570, got %d ok=%v", m, ok)
	}
	if m, ok := ParseTimeToMinutes("17:00:30"); !ok || m != 1020 {
		t.Fatalf("expected 1020, got %d ok=%v", m, ok)
	}
	if m, ok := ParseTimeToMinutes("7"); !ok || m != 420 {
		t.Fatalf("expected 420 for bare hour, got %d ok=%v", m, ok)
	}
	if _, ok := ParseTimeToMinutes(""); ok {
		t.Fatalf("expected not-ok for empty input")
	}
	if _, ok := ParseTimeToMinutes("abc"); ok {
		t.Fatalf("expected not-ok for garbage input")
	}
}

func TestWithinWindow_Boundaries(t *testing.T) {
	// Start is inclusive, end is exclusive.
	cases := []struct {
		hour, min int
		want      bool
	}{
		{8, 59, false},
		{9, 0, true},
		{16, 59, true},
		{17, 0, false},
	}
	for _, tc := range cases {
		if got := WithinWindow(at(tc.hour, tc.min), "09:00", "17:00"); got != tc.want {
			t.Fatalf("WithinWindow at %02d:%02d = %v, want %v", tc.hour, tc.min, got, tc.want)
		}
	}
}

func TestWithinWindow_OpenBounds(t *testing.T) {
	if !WithinWindow(at(3, 0), "", "") {
		t.Fatalf("empty window should always allow")
	}
	if !WithinWindow(at(23, 0), "09:00", "") {
		t.Fatalf("end-unbounded window should allow late ticks")
	}
	if WithinWindow(at(3, 0), "09:00", "") {
		t.Fatalf("end-unbounded window should still enforce start")
	}
	if !WithinWindow(at(3, 0), "", "17:00") {
		t.Fatalf("start-unbounded window should allow early ticks")
	}
}

func TestAllowedDay(t *testing.T) {
	monday := at(12, 0)
	if !AllowedDay(monday, nil) {
		t.Fatalf("empty day set should allow all days")
	}
	if !AllowedDay(monday, []int{1, 2, 3, 4, 5}) {
		t.Fatalf("Monday should be allowed Mon-Fri")
	}
	if AllowedDay(monday, []int{0, 6}) {
		t.Fatalf("Monday should not be allowed on weekends-only")
	}
}

func TestDateString(t *testing.T) {
	if got := DateString(at(0, 5)); got != "2025-03-03" {
		t.Fatalf("expected 2025-03-03, got %q", got)
	}
}

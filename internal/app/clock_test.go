package app

import (
	"testing"
	"time"
)

func TestCalendarDate(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	// 2026-03-03 02:00 UTC is still 2026-03-02 in New York.
	at := time.Date(2026, 3, 3, 2, 0, 0, 0, time.UTC)
	if got := calendarDate(at, time.UTC); got != "2026-03-03" {
		t.Fatalf("utc date = %s", got)
	}
	if got := calendarDate(at, loc); got != "2026-03-02" {
		t.Fatalf("ny date = %s", got)
	}
}

func TestWeekStartIsMonday(t *testing.T) {
	cases := []struct {
		at   time.Time
		want time.Time
	}{
		// Monday maps to itself at midnight.
		{time.Date(2026, 3, 2, 15, 30, 0, 0, time.UTC), time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)},
		// Sunday belongs to the week that started six days earlier.
		{time.Date(2026, 3, 8, 23, 59, 0, 0, time.UTC), time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)},
		// Wednesday.
		{time.Date(2026, 3, 4, 1, 0, 0, 0, time.UTC), time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		if got := weekStart(tc.at, time.UTC); !got.Equal(tc.want) {
			t.Errorf("weekStart(%v) = %v, want %v", tc.at, got, tc.want)
		}
	}
}

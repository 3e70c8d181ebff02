package task

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 9, 0, 0, 0, time.UTC)
}

func TestNextDueDate_DailyWeekly(t *testing.T) {
	anchor := date(2025, time.March, 14)
	if got := NextDueDate(anchor, RecurrenceDaily); !got.Equal(date(2025, time.March, 15)) {
		t.Errorf("daily: got %v", got)
	}
	if got := NextDueDate(anchor, RecurrenceWeekly); !got.Equal(date(2025, time.March, 21)) {
		t.Errorf("weekly: got %v", got)
	}
}

func TestNextDueDate_MonthlyClamping(t *testing.T) {
	cases := []struct {
		name   string
		anchor time.Time
		want   time.Time
	}{
		{"jan 31 non-leap", date(2025, time.January, 31), date(2025, time.February, 28)},
		{"jan 31 leap", date(2024, time.January, 31), date(2024, time.February, 29)},
		{"mar 31 clamps to apr 30", date(2025, time.March, 31), date(2025, time.April, 30)},
		{"mid-month unchanged", date(2025, time.April, 15), date(2025, time.May, 15)},
		{"december wraps year", date(2025, time.December, 31), date(2026, time.January, 31)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NextDueDate(tc.anchor, RecurrenceMonthly)
			if !got.Equal(tc.want) {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestNextDueDate_YearlyClamping(t *testing.T) {
	got := NextDueDate(date(2024, time.February, 29), RecurrenceYearly)
	if !got.Equal(date(2025, time.February, 28)) {
		t.Errorf("feb 29 anchor: got %v", got)
	}
	got = NextDueDate(date(2025, time.June, 10), RecurrenceYearly)
	if !got.Equal(date(2026, time.June, 10)) {
		t.Errorf("plain yearly: got %v", got)
	}
}

func TestNextDueDate_PreservesClockAndLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	anchor := time.Date(2025, time.January, 31, 17, 30, 0, 0, loc)
	got := NextDueDate(anchor, RecurrenceMonthly)
	if got.Hour() != 17 || got.Minute() != 30 {
		t.Errorf("clock not preserved: %v", got)
	}
	if got.Location() != loc {
		t.Errorf("location not preserved: %v", got.Location())
	}
}

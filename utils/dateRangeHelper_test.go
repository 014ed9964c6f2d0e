package utils

import (
	"errors"
	"testing"
	"time"
)

func mustResolveAt(t *testing.T, expression string, now time.Time) DateRange {
	t.Helper()
	r, err := ResolveDateRangeAt(expression, "UTC", now)
	if err != nil {
		t.Fatalf("ResolveDateRangeAt(%q): %v", expression, err)
	}
	return r
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func endOf(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 23, 59, 59, int(999*time.Millisecond), time.UTC)
}

func TestResolveDateRangeKeywords(t *testing.T) {
	// Thursday 2024-02-15 at midday
	now := time.Date(2024, time.February, 15, 12, 30, 0, 0, time.UTC)

	cases := []struct {
		expression string
		start      time.Time
		end        time.Time
	}{
		{"today", day(2024, time.February, 15), endOf(2024, time.February, 15)},
		{"yesterday", day(2024, time.February, 14), endOf(2024, time.February, 14)},
		{"last 7 days", day(2024, time.February, 9), endOf(2024, time.February, 15)},
		{"past 30 days", day(2024, time.January, 17), endOf(2024, time.February, 15)},
		{"this week", day(2024, time.February, 12), endOf(2024, time.February, 18)},
		{"last week", day(2024, time.February, 5), endOf(2024, time.February, 11)},
		{"this month", day(2024, time.February, 1), endOf(2024, time.February, 29)},
		{"last month", day(2024, time.January, 1), endOf(2024, time.January, 31)},
		{"this year", day(2024, time.January, 1), endOf(2024, time.December, 31)},
		{"last year", day(2023, time.January, 1), endOf(2023, time.December, 31)},
		{"this quarter", day(2024, time.January, 1), endOf(2024, time.March, 31)},
		{"last quarter", day(2023, time.October, 1), endOf(2023, time.December, 31)},
	}
	for _, tc := range cases {
		r := mustResolveAt(t, tc.expression, now)
		if !r.Start.Equal(tc.start) || !r.End.Equal(tc.end) {
			t.Fatalf("%q: got [%v, %v], want [%v, %v]", tc.expression, r.Start, r.End, tc.start, tc.end)
		}
	}
}

func TestResolveDateRangeKeywordsIgnoreCaseAndWhitespace(t *testing.T) {
	now := time.Date(2024, time.February, 15, 12, 0, 0, 0, time.UTC)

	a := mustResolveAt(t, "Last   Month", now)
	b := mustResolveAt(t, "last month", now)
	if !a.Start.Equal(b.Start) || !a.End.Equal(b.End) {
		t.Fatalf("normalization mismatch: %+v vs %+v", a, b)
	}
}

func TestResolveDateRangeExplicit(t *testing.T) {
	now := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)

	r := mustResolveAt(t, "2024-01-01,2024-01-31", now)
	if !r.Start.Equal(day(2024, time.January, 1)) {
		t.Fatalf("start: got %v", r.Start)
	}
	if !r.End.Equal(endOf(2024, time.January, 31)) {
		t.Fatalf("end: got %v", r.End)
	}

	// reversed endpoints resolve to the same interval
	swapped := mustResolveAt(t, "2024-01-31,2024-01-01", now)
	if !swapped.Start.Equal(r.Start) || !swapped.End.Equal(r.End) {
		t.Fatalf("swapped endpoints: got [%v, %v]", swapped.Start, swapped.End)
	}

	// "to" and "through" separators
	for _, expr := range []string{"2024-01-01 to 2024-01-31", "2024-01-01 through 2024-01-31"} {
		alt := mustResolveAt(t, expr, now)
		if !alt.Start.Equal(r.Start) || !alt.End.Equal(r.End) {
			t.Fatalf("%q: got [%v, %v]", expr, alt.Start, alt.End)
		}
	}
}

func TestResolveDateRangeMonthSides(t *testing.T) {
	now := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)

	// a year-month side denotes the entire month
	r := mustResolveAt(t, "2023-07,2023-09", now)
	if !r.Start.Equal(day(2023, time.July, 1)) {
		t.Fatalf("start: got %v", r.Start)
	}
	if !r.End.Equal(endOf(2023, time.September, 30)) {
		t.Fatalf("end: got %v", r.End)
	}
}

func TestResolveDateRangeSingleDate(t *testing.T) {
	now := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)

	r := mustResolveAt(t, "2024-03-05", now)
	if !r.Start.Equal(day(2024, time.March, 5)) || !r.End.Equal(endOf(2024, time.March, 5)) {
		t.Fatalf("single date: got [%v, %v]", r.Start, r.End)
	}
}

func TestResolveDateRangeRelative(t *testing.T) {
	now := time.Date(2024, time.February, 15, 12, 0, 0, 0, time.UTC)

	r := mustResolveAt(t, "3 days ago", now)
	if !r.Start.Equal(day(2024, time.February, 12)) || !r.End.Equal(endOf(2024, time.February, 12)) {
		t.Fatalf("3 days ago: got [%v, %v]", r.Start, r.End)
	}

	r = mustResolveAt(t, "last 14 days", now)
	if !r.Start.Equal(day(2024, time.February, 2)) || !r.End.Equal(endOf(2024, time.February, 15)) {
		t.Fatalf("last 14 days: got [%v, %v]", r.Start, r.End)
	}
}

func TestResolveDateRangeMonthYearAndBareYear(t *testing.T) {
	now := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)

	r := mustResolveAt(t, "January 2024", now)
	if !r.Start.Equal(day(2024, time.January, 1)) || !r.End.Equal(endOf(2024, time.January, 31)) {
		t.Fatalf("January 2024: got [%v, %v]", r.Start, r.End)
	}

	r = mustResolveAt(t, "Feb 2024", now)
	if !r.Start.Equal(day(2024, time.February, 1)) || !r.End.Equal(endOf(2024, time.February, 29)) {
		t.Fatalf("Feb 2024: got [%v, %v]", r.Start, r.End)
	}

	r = mustResolveAt(t, "2023", now)
	if !r.Start.Equal(day(2023, time.January, 1)) || !r.End.Equal(endOf(2023, time.December, 31)) {
		t.Fatalf("2023: got [%v, %v]", r.Start, r.End)
	}
}

func TestResolveDateRangeFiscalYear(t *testing.T) {
	now := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)

	r := mustResolveAt(t, "FY2024", now)
	if !r.Start.Equal(day(2023, time.April, 1)) || !r.End.Equal(endOf(2024, time.March, 31)) {
		t.Fatalf("FY2024: got [%v, %v]", r.Start, r.End)
	}
}

func TestResolveDateRangeSeasons(t *testing.T) {
	now := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		expression string
		start      time.Time
		end        time.Time
	}{
		{"spring 2024", day(2024, time.March, 20), endOf(2024, time.June, 20)},
		{"summer 2024", day(2024, time.June, 21), endOf(2024, time.September, 21)},
		{"fall 2024", day(2024, time.September, 22), endOf(2024, time.December, 20)},
		{"autumn 2024", day(2024, time.September, 22), endOf(2024, time.December, 20)},
		// winter of a year begins the previous December
		{"winter 2024", day(2023, time.December, 21), endOf(2024, time.March, 19)},
	}
	for _, tc := range cases {
		r := mustResolveAt(t, tc.expression, now)
		if !r.Start.Equal(tc.start) || !r.End.Equal(tc.end) {
			t.Fatalf("%q: got [%v, %v], want [%v, %v]", tc.expression, r.Start, r.End, tc.start, tc.end)
		}
	}
}

func TestResolveDateRangeRejectsUnknown(t *testing.T) {
	now := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)

	for _, expr := range []string{"", "whenever", "next month-ish", "fy24"} {
		_, err := ResolveDateRangeAt(expr, "UTC", now)
		if !errors.Is(err, ErrorDateParse) {
			t.Fatalf("%q: expected ErrorDateParse, got %v", expr, err)
		}
	}
}

func TestResolveDateRangeTimezone(t *testing.T) {
	// 2024-02-15 03:00 UTC is still 2024-02-14 in New York
	now := time.Date(2024, time.February, 15, 3, 0, 0, 0, time.UTC)

	r, err := ResolveDateRangeAt("today", "America/New_York", now)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	loc, _ := time.LoadLocation("America/New_York")
	want := time.Date(2024, time.February, 14, 0, 0, 0, 0, loc)
	if !r.Start.Equal(want) {
		t.Fatalf("timezone-local today: got %v, want %v", r.Start, want)
	}
}

package utils

import (
	"testing"
	"time"
)

func TestStartAndEndOfDay(t *testing.T) {
	loc := time.UTC
	at := time.Date(2024, time.May, 10, 17, 45, 12, 0, loc)

	start := StartOfDay(at, loc)
	if !start.Equal(time.Date(2024, time.May, 10, 0, 0, 0, 0, loc)) {
		t.Fatalf("start of day: got %v", start)
	}

	end := EndOfDay(at, loc)
	want := time.Date(2024, time.May, 10, 23, 59, 59, int(999*time.Millisecond), loc)
	if !end.Equal(want) {
		t.Fatalf("end of day: got %v, want %v", end, want)
	}
}

func TestDayBoundsFollowTimezone(t *testing.T) {
	loc, err := LoadLocationCached("America/New_York")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	// 03:00 UTC is the previous calendar day in New York
	at := time.Date(2024, time.February, 15, 3, 0, 0, 0, time.UTC)
	start := StartOfDay(at, loc)
	want := time.Date(2024, time.February, 14, 0, 0, 0, 0, loc)
	if !start.Equal(want) {
		t.Fatalf("start of day in New York: got %v, want %v", start, want)
	}
}

func TestParseDateString(t *testing.T) {
	cases := []struct {
		input string
		want  time.Time
	}{
		{"2024-03-05", time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)},
		{"2024-03-05T10:30:00", time.Date(2024, time.March, 5, 10, 30, 0, 0, time.UTC)},
		{"2024-03-05T10:30:00Z", time.Date(2024, time.March, 5, 10, 30, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		got, err := ParseDateString(tc.input, "UTC")
		if err != nil {
			t.Fatalf("ParseDateString(%q): %v", tc.input, err)
		}
		if !got.Equal(tc.want) {
			t.Fatalf("ParseDateString(%q): got %v, want %v", tc.input, got, tc.want)
		}
	}

	if _, err := ParseDateString("03/2024", "UTC"); err == nil {
		t.Fatal("expected error for unsupported layout")
	}
}

func TestLoadLocationCachedRejectsUnknown(t *testing.T) {
	if _, err := LoadLocationCached("Neverland/Nowhere"); err == nil {
		t.Fatal("expected error for unknown timezone")
	}
}

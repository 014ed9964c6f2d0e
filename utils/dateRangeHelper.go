package utils

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateRange is a resolved [start, end] interval, normalized to start-of-day /
// end-of-day boundaries in the timezone it was resolved for.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ResolveDateRange parses a free-form date expression ("last month",
// "2023-07,2023-09", "FY2024") against the current clock. It never silently
// defaults: an unrecognized expression returns ErrorDateParse so the caller
// can decide a fallback.
func ResolveDateRange(expression string, timezone string) (DateRange, error) {
	return ResolveDateRangeAt(expression, timezone, time.Now())
}

type rangeMatcher func(expr string, now time.Time, loc *time.Location) (DateRange, bool)

// matcher order is significant: fixed keywords win over explicit ranges,
// explicit ranges over single dates, and so on down to seasons.
var rangeMatchers = []rangeMatcher{
	matchKeyword,
	matchExplicitRange,
	matchSingleDate,
	matchQuarter,
	matchRelative,
	matchMonthYear,
	matchBareYear,
	matchFiscalYear,
	matchSeason,
}

// ResolveDateRangeAt is ResolveDateRange with an injectable clock.
func ResolveDateRangeAt(expression string, timezone string, now time.Time) (DateRange, error) {
	loc, err := LoadLocationCached(timezone)
	if err != nil {
		return DateRange{}, err
	}

	// lowercase, trim, collapse runs of whitespace
	expr := strings.Join(strings.Fields(strings.ToLower(expression)), " ")
	if expr == "" {
		return DateRange{}, fmt.Errorf("%w: %q", ErrorDateParse, expression)
	}

	now = now.In(loc)
	for _, match := range rangeMatchers {
		if r, ok := match(expr, now, loc); ok {
			return r, nil
		}
	}
	return DateRange{}, fmt.Errorf("%w: %q", ErrorDateParse, expression)
}

func dayRange(t time.Time, loc *time.Location) DateRange {
	return DateRange{Start: StartOfDay(t, loc), End: EndOfDay(t, loc)}
}

func spanRange(start, end time.Time, loc *time.Location) DateRange {
	return DateRange{Start: StartOfDay(start, loc), End: EndOfDay(end, loc)}
}

// trailingDays is an n-day window ending today (inclusive of today).
func trailingDays(n int, now time.Time, loc *time.Location) DateRange {
	return spanRange(now.AddDate(0, 0, -(n-1)), now, loc)
}

func monthSpan(year int, month time.Month, loc *time.Location) DateRange {
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	return spanRange(first, first.AddDate(0, 1, -1), loc)
}

func yearSpan(year int, loc *time.Location) DateRange {
	return spanRange(
		time.Date(year, time.January, 1, 0, 0, 0, 0, loc),
		time.Date(year, time.December, 31, 0, 0, 0, 0, loc),
		loc,
	)
}

// weeks run Monday through Sunday
func weekSpan(t time.Time, loc *time.Location) DateRange {
	offset := (int(t.Weekday()) + 6) % 7
	start := t.AddDate(0, 0, -offset)
	return spanRange(start, start.AddDate(0, 0, 6), loc)
}

func matchKeyword(expr string, now time.Time, loc *time.Location) (DateRange, bool) {
	switch expr {
	case "today":
		return dayRange(now, loc), true
	case "yesterday":
		return dayRange(now.AddDate(0, 0, -1), loc), true
	case "last 7 days", "past 7 days":
		return trailingDays(7, now, loc), true
	case "last 30 days", "past 30 days":
		return trailingDays(30, now, loc), true
	case "this week", "current week":
		return weekSpan(now, loc), true
	case "last week", "previous week":
		return weekSpan(now.AddDate(0, 0, -7), loc), true
	case "this month", "current month":
		return monthSpan(now.Year(), now.Month(), loc), true
	case "last month", "previous month":
		prev := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc).AddDate(0, -1, 0)
		return monthSpan(prev.Year(), prev.Month(), loc), true
	case "this year", "current year":
		return yearSpan(now.Year(), loc), true
	case "last year", "previous year":
		return yearSpan(now.Year()-1, loc), true
	}
	return DateRange{}, false
}

var explicitDateFormats = []string{"2006-01-02", "01/02/2006", "02/01/2006", "2006/01/02"}

func parseExplicitDate(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range explicitDateFormats {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// one side of an explicit range: the first and last day it denotes.
// A full date denotes a single day; a year-month side ("2023-07") denotes the
// whole month.
func parseRangeSide(s string, loc *time.Location) (first, last time.Time, ok bool) {
	if t, parsed := parseExplicitDate(s, loc); parsed {
		return t, t, true
	}
	if t, err := time.ParseInLocation("2006-01", strings.TrimSpace(s), loc); err == nil {
		return t, t.AddDate(0, 1, -1), true
	}
	return time.Time{}, time.Time{}, false
}

func rangeFromSides(aFirst, aLast, bFirst, bLast time.Time, loc *time.Location) DateRange {
	// if start > end after parsing, swap
	if aFirst.After(bFirst) {
		return spanRange(bFirst, aLast, loc)
	}
	return spanRange(aFirst, bLast, loc)
}

var rangeSeparators = []string{",", " to ", " through ", " - ", "–", "—"}

func matchExplicitRange(expr string, _ time.Time, loc *time.Location) (DateRange, bool) {
	for _, sep := range rangeSeparators {
		if !strings.Contains(expr, sep) {
			continue
		}
		parts := strings.SplitN(expr, sep, 2)
		aFirst, aLast, okA := parseRangeSide(parts[0], loc)
		bFirst, bLast, okB := parseRangeSide(parts[1], loc)
		if okA && okB {
			return rangeFromSides(aFirst, aLast, bFirst, bLast, loc), true
		}
	}

	// bare "-" separator: dates themselves contain dashes, so try every
	// split point until both sides parse
	for i := 0; i < len(expr); i++ {
		if expr[i] != '-' {
			continue
		}
		aFirst, aLast, okA := parseRangeSide(expr[:i], loc)
		bFirst, bLast, okB := parseRangeSide(expr[i+1:], loc)
		if okA && okB {
			return rangeFromSides(aFirst, aLast, bFirst, bLast, loc), true
		}
	}
	return DateRange{}, false
}

func matchSingleDate(expr string, _ time.Time, loc *time.Location) (DateRange, bool) {
	if t, ok := parseExplicitDate(expr, loc); ok {
		return dayRange(t, loc), true
	}
	return DateRange{}, false
}

func matchQuarter(expr string, now time.Time, loc *time.Location) (DateRange, bool) {
	// zero-indexed quarter of the current month
	quarter := (int(now.Month()) - 1) / 3
	thisQuarterStart := time.Date(now.Year(), time.Month(quarter*3+1), 1, 0, 0, 0, 0, loc)

	switch expr {
	case "this quarter", "current quarter":
		return spanRange(thisQuarterStart, thisQuarterStart.AddDate(0, 3, -1), loc), true
	case "last quarter", "previous quarter":
		return spanRange(thisQuarterStart.AddDate(0, -3, 0), thisQuarterStart.AddDate(0, 0, -1), loc), true
	}
	return DateRange{}, false
}

var (
	daysAgoPattern   = regexp.MustCompile(`^(\d+) days? ago$`)
	lastNDaysPattern = regexp.MustCompile(`^(?:last|past) (\d+) days$`)
)

func matchRelative(expr string, now time.Time, loc *time.Location) (DateRange, bool) {
	if m := daysAgoPattern.FindStringSubmatch(expr); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return DateRange{}, false
		}
		return dayRange(now.AddDate(0, 0, -n), loc), true
	}
	if m := lastNDaysPattern.FindStringSubmatch(expr); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= 0 {
			return DateRange{}, false
		}
		return trailingDays(n, now, loc), true
	}
	return DateRange{}, false
}

func matchMonthYear(expr string, _ time.Time, loc *time.Location) (DateRange, bool) {
	for _, layout := range []string{"January 2006", "Jan 2006"} {
		if t, err := time.ParseInLocation(layout, expr, loc); err == nil {
			return monthSpan(t.Year(), t.Month(), loc), true
		}
	}
	return DateRange{}, false
}

var bareYearPattern = regexp.MustCompile(`^\d{4}$`)

func matchBareYear(expr string, _ time.Time, loc *time.Location) (DateRange, bool) {
	if !bareYearPattern.MatchString(expr) {
		return DateRange{}, false
	}
	year, err := strconv.Atoi(expr)
	if err != nil {
		return DateRange{}, false
	}
	return yearSpan(year, loc), true
}

var fiscalYearPattern = regexp.MustCompile(`^fy(\d{4})$`)

// fiscal year N runs April 1 of N-1 through March 31 of N
func matchFiscalYear(expr string, _ time.Time, loc *time.Location) (DateRange, bool) {
	m := fiscalYearPattern.FindStringSubmatch(expr)
	if m == nil {
		return DateRange{}, false
	}
	year, err := strconv.Atoi(m[1])
	if err != nil {
		return DateRange{}, false
	}
	return spanRange(
		time.Date(year-1, time.April, 1, 0, 0, 0, 0, loc),
		time.Date(year, time.March, 31, 0, 0, 0, 0, loc),
		loc,
	), true
}

var seasonPattern = regexp.MustCompile(`^(spring|summer|fall|autumn|winter) (\d{4})$`)

func matchSeason(expr string, _ time.Time, loc *time.Location) (DateRange, bool) {
	m := seasonPattern.FindStringSubmatch(expr)
	if m == nil {
		return DateRange{}, false
	}
	year, err := strconv.Atoi(m[2])
	if err != nil {
		return DateRange{}, false
	}

	var start, end time.Time
	switch m[1] {
	case "spring":
		start = time.Date(year, time.March, 20, 0, 0, 0, 0, loc)
		end = time.Date(year, time.June, 20, 0, 0, 0, 0, loc)
	case "summer":
		start = time.Date(year, time.June, 21, 0, 0, 0, 0, loc)
		end = time.Date(year, time.September, 21, 0, 0, 0, 0, loc)
	case "fall", "autumn":
		start = time.Date(year, time.September, 22, 0, 0, 0, 0, loc)
		end = time.Date(year, time.December, 20, 0, 0, 0, 0, loc)
	case "winter":
		// winter of a year spans the December of the year before
		start = time.Date(year-1, time.December, 21, 0, 0, 0, 0, loc)
		end = time.Date(year, time.March, 19, 0, 0, 0, 0, loc)
	default:
		return DateRange{}, false
	}
	return spanRange(start, end, loc), true
}

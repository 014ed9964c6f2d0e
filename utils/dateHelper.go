package utils

import (
	"os"
	"sync"
	"time"
)

// DefaultTimezone is used whenever a caller does not carry an explicit
// timezone. Override with LEDGER_TIMEZONE.
const DefaultTimezone = "UTC"

func LedgerTimezone() string {
	tz := os.Getenv("LEDGER_TIMEZONE")
	if tz == "" {
		return DefaultTimezone
	}
	return tz
}

var locationCache sync.Map // timezone name -> *time.Location

// LoadLocationCached wraps time.LoadLocation with a process-wide cache;
// tzdata lookups hit the filesystem otherwise.
func LoadLocationCached(timezone string) (*time.Location, error) {
	if timezone == "" {
		timezone = DefaultTimezone
	}
	if cached, ok := locationCache.Load(timezone); ok {
		return cached.(*time.Location), nil
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, err
	}
	locationCache.Store(timezone, loc)
	return loc, nil
}

type dayBounds struct {
	start time.Time
	end   time.Time
}

// keyed by "<timezone>|<yyyy-mm-dd>"; boundary math runs on every report and
// every tool invocation, so identical (day, timezone) pairs are memoized.
// Correctness never depends on this cache.
var dayBoundsCache sync.Map

func boundsFor(t time.Time, loc *time.Location) dayBounds {
	local := t.In(loc)
	key := loc.String() + "|" + local.Format("2006-01-02")
	if cached, ok := dayBoundsCache.Load(key); ok {
		return cached.(dayBounds)
	}
	year, month, day := local.Date()
	b := dayBounds{
		start: time.Date(year, month, day, 0, 0, 0, 0, loc),
		end:   time.Date(year, month, day, 23, 59, 59, int(999*time.Millisecond), loc),
	}
	dayBoundsCache.Store(key, b)
	return b
}

// StartOfDay returns midnight of t's calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	return boundsFor(t, loc).start
}

// EndOfDay returns 23:59:59.999 of t's calendar day in loc.
func EndOfDay(t time.Time, loc *time.Location) time.Time {
	return boundsFor(t, loc).end
}

// ParseDateString parses a date or datetime string in the given timezone and
// returns the instant in UTC.
func ParseDateString(dateString string, timezone string) (time.Time, error) {
	loc, err := LoadLocationCached(timezone)
	if err != nil {
		return time.Time{}, err
	}

	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if parsed, perr := time.ParseInLocation(layout, dateString, loc); perr == nil {
			return parsed.UTC(), nil
		}
	}
	return time.Time{}, ErrorDateParse
}

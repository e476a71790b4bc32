package dates

import (
	"strings"
	"time"
)

// Layout is the canonical wire format for civil dates.
const Layout = "2006-01-02"

// All day arithmetic happens in UTC so that plans never drift across
// host timezone changes.

// Today returns the current civil date in UTC, truncated to midnight.
func Today() time.Time {
	return Truncate(time.Now().UTC())
}

// Truncate drops the clock component of t, keeping the UTC civil date.
func Truncate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// AddDays returns d advanced by n civil days.
func AddDays(d time.Time, n int) time.Time {
	return Truncate(d).AddDate(0, 0, n)
}

// Format renders the canonical YYYY-MM-DD string.
func Format(d time.Time) string {
	return d.UTC().Format(Layout)
}

// Parse reads a canonical YYYY-MM-DD string.
func Parse(raw string) (time.Time, error) {
	return time.Parse(Layout, strings.TrimSpace(raw))
}

// DayOfWeek returns the lowercase English weekday name, e.g. "monday".
func DayOfWeek(d time.Time) string {
	return strings.ToLower(d.UTC().Weekday().String())
}

// DaysBetween returns the number of whole civil days from a to b.
// Negative when b is before a.
func DaysBetween(a, b time.Time) int {
	return int(Truncate(b).Sub(Truncate(a)).Hours() / 24)
}

// Eligible enumerates the ordered study dates in [start, start+horizonDays)
// that are neither weekly off-days nor explicit blackout dates. Off-day names
// are matched case-insensitively against lowercase weekday names; blackout
// entries are canonical YYYY-MM-DD strings.
func Eligible(start time.Time, horizonDays int, offDays []string, blackouts []string) []time.Time {
	off := make(map[string]struct{}, len(offDays))
	for _, name := range offDays {
		off[strings.ToLower(strings.TrimSpace(name))] = struct{}{}
	}
	blocked := make(map[string]struct{}, len(blackouts))
	for _, raw := range blackouts {
		blocked[strings.TrimSpace(raw)] = struct{}{}
	}

	var result []time.Time
	day := Truncate(start)
	for i := 0; i < horizonDays; i++ {
		if _, skip := off[DayOfWeek(day)]; !skip {
			if _, skip := blocked[Format(day)]; !skip {
				result = append(result, day)
			}
		}
		day = AddDays(day, 1)
	}
	return result
}

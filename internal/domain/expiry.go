/**
 * @description
 * This file implements the compact expiry-duration grammar used when issuing
 * API keys: `<positive integer><H|D|M|Y>`, case-insensitive. Hours and days add
 * directly; months and years use calendar arithmetic with end-of-month clamping
 * (Jan 31 + 1M lands on the last day of February, Feb 29 + 1Y clamps to Feb 28
 * in non-leap years). The time of day is preserved and all results are UTC.
 */

package domain

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidExpiryFormat is returned when an expiry string does not match the
// grammar.
var ErrInvalidExpiryFormat = errors.New("expiry must follow format: <number><H|D|M|Y> e.g., 2H, 10D, 3M, 1Y")

var expiryPattern = regexp.MustCompile(`^(\d+)([HDMY])$`)

// ParseExpiry resolves an expiry string into the absolute UTC instant it
// denotes, measured from `from`.
func ParseExpiry(expiry string, from time.Time) (time.Time, error) {
	from = from.UTC()

	m := expiryPattern.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(expiry)))
	if m == nil {
		return time.Time{}, ErrInvalidExpiryFormat
	}

	value, err := strconv.Atoi(m[1])
	if err != nil {
		// Matched digits can still overflow int.
		return time.Time{}, ErrInvalidExpiryFormat
	}

	switch m[2] {
	case "H":
		return from.Add(time.Duration(value) * time.Hour), nil
	case "D":
		return from.Add(time.Duration(value) * 24 * time.Hour), nil
	case "M":
		year := from.Year()
		month := int(from.Month()) + value
		year += (month - 1) / 12
		month = ((month - 1) % 12) + 1
		day := clampDay(from.Day(), year, time.Month(month))
		return time.Date(year, time.Month(month), day, from.Hour(), from.Minute(), from.Second(), 0, time.UTC), nil
	case "Y":
		year := from.Year() + value
		day := clampDay(from.Day(), year, from.Month())
		return time.Date(year, from.Month(), day, from.Hour(), from.Minute(), from.Second(), 0, time.UTC), nil
	}

	return time.Time{}, ErrInvalidExpiryFormat
}

// clampDay pins a day-of-month to the last valid day of the target month.
func clampDay(day, year int, month time.Month) int {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > last {
		return last
	}
	return day
}

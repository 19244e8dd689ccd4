// Package recur computes Gregorian yearly recurrences and calendar-day
// distances. All functions are pure and safe for concurrent use.
package recur

import "time"

// NextGregorian returns the next occurrence of (month, day) on or after
// from: the candidate in from's year, advanced by one year when that
// candidate is strictly before from.
//
// February 29 relies on time.Date normalization: on common years the
// candidate rolls forward to March 1, so the gap between occurrences never
// exceeds a year.
func NextGregorian(month, day int, from time.Time) time.Time {
	candidate := time.Date(from.Year(), time.Month(month), day, 0, 0, 0, 0, from.Location())
	if candidate.Before(startOfDay(from)) {
		candidate = time.Date(from.Year()+1, time.Month(month), day, 0, 0, 0, 0, from.Location())
	}
	return candidate
}

// DaysBetween returns the number of calendar days from a to b, ignoring
// time of day. The result is non-negative whenever b's date is not before
// a's.
func DaysBetween(a, b time.Time) int64 {
	// Normalizing both ends to midnight makes the division exact across
	// DST transitions as long as both dates use the same offset; to stay
	// offset-proof, compare in UTC built from the calendar fields.
	ad := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bd := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int64(bd.Sub(ad) / (24 * time.Hour))
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// Package model holds the central value types of the countdown engine:
// calendar rules, persisted custom events, built-in catalog entries and the
// transient countdown records handed to presentation code.
package model

import (
	"errors"
	"fmt"
	"time"
)

// Category identifies one of the three independent countdown groups.
type Category string

const (
	CategoryAnniversaries Category = "anniversaries"
	CategoryBirthdays     Category = "birthdays"
	CategoryHolidays      Category = "holidays"
)

// ParseCategory maps the wire/storage representation to a Category.
func ParseCategory(s string) (Category, error) {
	switch Category(s) {
	case CategoryAnniversaries, CategoryBirthdays, CategoryHolidays:
		return Category(s), nil
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// CalendarSpec is a recurring calendar rule: a fixed (month, day) pair in
// either the Gregorian calendar or the Chinese lunar calendar.
type CalendarSpec struct {
	Month int  `json:"month" db:"month"`
	Day   int  `json:"day" db:"day"`
	Lunar bool `json:"lunar" db:"lunar"`
}

// maxGregorianDay is the largest day number each Gregorian month can carry
// in any year. February admits 29; leap-year resolution happens lazily when
// the rule is materialized into a concrete date.
var maxGregorianDay = [13]int{0, 31, 29, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

// Validate reports whether the spec denotes a date that exists in its
// calendar system for at least some year.
func (s CalendarSpec) Validate() error {
	if s.Month < 1 || s.Month > 12 {
		return &InvalidSpecError{Spec: s, Reason: "month out of range"}
	}
	if s.Lunar {
		if s.Day < 1 || s.Day > 30 {
			return &InvalidSpecError{Spec: s, Reason: "lunar day out of range"}
		}
		return nil
	}
	if s.Day < 1 || s.Day > maxGregorianDay[s.Month] {
		return &InvalidSpecError{Spec: s, Reason: "day out of range for month"}
	}
	return nil
}

// CustomEvent is a user-created, persisted calendar rule. ID is assigned
// once at creation and never changes; it is the key delete operations match
// on. A non-nil OneTimeYear pins the event to that single year instead of
// recurring.
type CustomEvent struct {
	ID          string       `json:"id"`
	Category    Category     `json:"category"`
	Name        string       `json:"name"`
	Spec        CalendarSpec `json:"spec"`
	OneTimeYear *int         `json:"one_time_year,omitempty"`
}

// BuiltinEvent is a catalog entry shipped with the application: always
// recurring, never persisted, never deletable.
type BuiltinEvent struct {
	Name string
	Spec CalendarSpec
}

// Countdown is the display-ready result of resolving one event against a
// reference date. It is computed fresh on every assembly pass and never
// stored.
type Countdown struct {
	// Key is the stable identifier used for deletion: the catalog name for
	// built-ins, the CustomEvent ID for custom entries. It is never derived
	// from DisplayName.
	Key           string    `json:"key"`
	DisplayName   string    `json:"display_name"`
	Date          time.Time `json:"date"`
	DaysRemaining int64     `json:"days_remaining"`
	Deletable     bool      `json:"deletable"`
}

// Sentinel errors surfaced by the engine. Store corruption is recovered
// internally and intentionally has no sentinel.
var (
	// ErrDuplicateName rejects an add whose name collides with a built-in
	// or an existing custom event in the same category.
	ErrDuplicateName = errors.New("an event with this name already exists")

	// ErrNotDeletable rejects deletion of built-in catalog entries.
	ErrNotDeletable = errors.New("built-in events cannot be deleted")

	// ErrNotFound reports a delete key that matches no custom event.
	ErrNotFound = errors.New("no such event")

	// ErrSearchBound reports that the lunar forward search exhausted its
	// iteration budget without a match. This is an invariant violation, not
	// a recoverable condition.
	ErrSearchBound = errors.New("lunar date search exceeded iteration bound")
)

// InvalidSpecError reports a malformed CalendarSpec. It is a programmer or
// input-validation error and is never clamped away silently.
type InvalidSpecError struct {
	Spec   CalendarSpec
	Reason string
}

func (e *InvalidSpecError) Error() string {
	cal := "gregorian"
	if e.Spec.Lunar {
		cal = "lunar"
	}
	return fmt.Sprintf("invalid %s spec month=%d day=%d: %s", cal, e.Spec.Month, e.Spec.Day, e.Reason)
}

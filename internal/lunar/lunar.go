// Package lunar resolves Chinese lunar-calendar rules to Gregorian dates.
//
// Month lengths and leap-month insertion in the lunisolar calendar are
// irregular and only reliably answered by a calendar-conversion primitive,
// so the resolver walks forward day by day instead of attempting closed-form
// arithmetic. The conversion itself is delegated to lunar-go and treated as
// a trusted black box.
package lunar

import (
	"fmt"
	"time"

	"github.com/6tail/lunar-go/calendar"

	"daycount/internal/model"
)

// maxSearchDays bounds the forward scan. 20000 days is roughly 54 years,
// far beyond any gap between occurrences of a valid lunar (month, day).
const maxSearchDays = 20000

// Next returns the first Gregorian date on or after from whose lunar
// representation is exactly (month, day) in a non-leap month.
//
// month is the human 1..12 lunar month, day 1..30. lunar-go reports leap
// months as negated month numbers, so a plain positive comparison both
// matches the month and excludes leap months.
//
// Exhausting the search bound means the rule can never match (or the
// conversion primitive misbehaved) and fails loudly with
// model.ErrSearchBound rather than returning a bogus date.
func Next(month, day int, from time.Time) (time.Time, error) {
	spec := model.CalendarSpec{Month: month, Day: day, Lunar: true}
	if err := spec.Validate(); err != nil {
		return time.Time{}, err
	}

	date := from
	for i := 0; i <= maxSearchDays; i++ {
		l := calendar.NewSolarFromYmd(date.Year(), int(date.Month()), date.Day()).GetLunar()
		if l.GetMonth() == month && l.GetDay() == day {
			return time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, from.Location()), nil
		}
		date = date.AddDate(0, 0, 1)
	}

	return time.Time{}, fmt.Errorf("no occurrence of lunar %d-%d within %d days of %s: %w",
		month, day, maxSearchDays, from.Format("2006-01-02"), model.ErrSearchBound)
}

// Package feed renders projected occurrences as an iCalendar document so
// the countdown set can be subscribed to from regular calendar clients.
package feed

import (
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"

	"daycount/internal/countdown"
	"daycount/internal/model"
)

const productID = "-//daycount//countdown feed//CN"

// Build serializes occurrences as all-day VEVENTs in a VCALENDAR. UIDs are
// derived from the occurrence date and name so repeated fetches of the same
// feed yield stable identifiers.
func Build(category model.Category, occurrences []countdown.Occurrence, now time.Time) string {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(productID)
	cal.SetXWRCalName("daycount " + string(category))

	for _, occ := range occurrences {
		uid := fmt.Sprintf("%s-%s-%s@daycount", occ.Date.Format("20060102"), category, occ.Name)
		ev := cal.AddEvent(uid)
		ev.SetDtStampTime(now.UTC())
		ev.SetAllDayStartAt(occ.Date)
		ev.SetAllDayEndAt(occ.Date.AddDate(0, 0, 1))
		ev.SetSummary(occ.Name)
	}

	return cal.Serialize()
}

package countdown

import (
	"context"
	"fmt"
	"sort"
	"time"

	"daycount/internal/model"
	"daycount/internal/recur"
)

// Occurrence is one concrete calendar date an event lands on within a
// projection window. Recurring events contribute one occurrence per cycle
// the window spans.
type Occurrence struct {
	Name string
	Date time.Time
}

// Project expands every event in category into its occurrences between
// from and from+days (inclusive), sorted by date then name. It feeds the
// ICS export; display formatting is not applied.
func (a *Assembler) Project(ctx context.Context, category model.Category, from time.Time, days int) ([]Occurrence, error) {
	until := from.AddDate(0, 0, days)
	var out []Occurrence

	for _, b := range a.catalog.Builtins(category) {
		dates, err := expand(b.Spec, from, until)
		if err != nil {
			return nil, fmt.Errorf("project built-in %q: %w", b.Name, err)
		}
		for _, d := range dates {
			out = append(out, Occurrence{Name: b.Name, Date: d})
		}
	}

	customs, err := a.store.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, ev := range customs {
		if ev.Category != category {
			continue
		}
		if ev.OneTimeYear != nil {
			d := time.Date(*ev.OneTimeYear, time.Month(ev.Spec.Month), ev.Spec.Day, 0, 0, 0, 0, from.Location())
			if recur.DaysBetween(from, d) >= 0 && !d.After(until) {
				out = append(out, Occurrence{Name: ev.Name, Date: d})
			}
			continue
		}
		dates, err := expand(ev.Spec, from, until)
		if err != nil {
			return nil, fmt.Errorf("project custom %q: %w", ev.Name, err)
		}
		for _, d := range dates {
			out = append(out, Occurrence{Name: ev.Name, Date: d})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// expand lists every occurrence of a recurring spec within [from, until] by
// re-running the next-occurrence resolution from the day after each hit.
func expand(spec model.CalendarSpec, from, until time.Time) ([]time.Time, error) {
	var dates []time.Time
	cursor := from
	for {
		d, err := resolveNext(spec, cursor)
		if err != nil {
			return nil, err
		}
		if d.After(until) {
			return dates, nil
		}
		dates = append(dates, d)
		cursor = d.AddDate(0, 0, 1)
	}
}

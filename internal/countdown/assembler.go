// Package countdown implements the assembly of display-ready countdown
// records from built-in catalogs and the persisted custom-event store, plus
// the add/delete mutations on the custom set.
package countdown

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"daycount/internal/catalog"
	"daycount/internal/config"
	"daycount/internal/lunar"
	"daycount/internal/model"
	"daycount/internal/recur"
	"daycount/internal/store"
)

// Assembler merges one category's built-in events with the stored custom
// events and resolves every rule against a reference date. It holds no
// mutable state of its own; all persistence goes through the store.
type Assembler struct {
	store      *store.Store
	catalog    catalog.Catalog
	milestones config.MilestoneConfig
}

func New(st *store.Store, cat catalog.Catalog, milestones config.MilestoneConfig) *Assembler {
	return &Assembler{store: st, catalog: cat, milestones: milestones}
}

// Assemble returns the countdown records for category relative to today,
// sorted ascending by days remaining (ties broken by the stored event
// name). today is interpreted as a calendar date; its time of day is
// ignored.
func (a *Assembler) Assemble(ctx context.Context, category model.Category, today time.Time) ([]model.Countdown, error) {
	type entry struct {
		rec  model.Countdown
		name string
	}
	var entries []entry

	for _, b := range a.catalog.Builtins(category) {
		date, err := resolveNext(b.Spec, today)
		if err != nil {
			return nil, fmt.Errorf("resolve built-in %q: %w", b.Name, err)
		}
		entries = append(entries, entry{
			name: b.Name,
			rec: model.Countdown{
				Key:           b.Name,
				DisplayName:   a.milestoneName(b.Name, date),
				Date:          date,
				DaysRemaining: recur.DaysBetween(today, date),
				Deletable:     false,
			},
		})
	}

	customs, err := a.store.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, ev := range customs {
		if ev.Category != category {
			continue
		}

		var date time.Time
		if ev.OneTimeYear != nil {
			// One-time events pin the rule to an exact Gregorian date;
			// past occurrences are never shown.
			date = time.Date(*ev.OneTimeYear, time.Month(ev.Spec.Month), ev.Spec.Day, 0, 0, 0, 0, today.Location())
			if recur.DaysBetween(today, date) < 0 {
				continue
			}
		} else {
			date, err = resolveNext(ev.Spec, today)
			if err != nil {
				return nil, fmt.Errorf("resolve custom %q: %w", ev.Name, err)
			}
		}

		entries = append(entries, entry{
			name: ev.Name,
			rec: model.Countdown{
				Key:           ev.ID,
				DisplayName:   ev.Name,
				Date:          date,
				DaysRemaining: recur.DaysBetween(today, date),
				Deletable:     true,
			},
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].rec.DaysRemaining != entries[j].rec.DaysRemaining {
			return entries[i].rec.DaysRemaining < entries[j].rec.DaysRemaining
		}
		return entries[i].name < entries[j].name
	})

	records := make([]model.Countdown, len(entries))
	for i, e := range entries {
		records[i] = e.rec
	}
	return records, nil
}

// Add validates and persists a new custom event, returning the stored
// record with its assigned ID. Names must be unique against both the
// category's built-ins and its existing custom events (exact match);
// collisions fail with model.ErrDuplicateName.
func (a *Assembler) Add(ctx context.Context, category model.Category, name string, spec model.CalendarSpec, oneTimeYear *int) (model.CustomEvent, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.CustomEvent{}, fmt.Errorf("event name must not be empty")
	}
	if err := spec.Validate(); err != nil {
		return model.CustomEvent{}, err
	}
	if a.catalog.Contains(category, name) {
		return model.CustomEvent{}, fmt.Errorf("%q is a built-in event: %w", name, model.ErrDuplicateName)
	}

	ev := model.CustomEvent{
		ID:          uuid.NewString(),
		Category:    category,
		Name:        name,
		Spec:        spec,
		OneTimeYear: oneTimeYear,
	}

	// The duplicate check against existing customs runs inside Mutate so
	// two racing adds of the same name cannot both pass it.
	err := a.store.Mutate(ctx, func(current []model.CustomEvent) ([]model.CustomEvent, error) {
		for _, existing := range current {
			if existing.Category == category && existing.Name == name {
				return nil, fmt.Errorf("%q: %w", name, model.ErrDuplicateName)
			}
		}
		return append(current, ev), nil
	})
	if err != nil {
		return model.CustomEvent{}, err
	}
	return ev, nil
}

// Delete removes the custom event identified by key (the CustomEvent ID
// carried in Countdown.Key) from category. Built-in keys fail with
// model.ErrNotDeletable, unknown keys with model.ErrNotFound. Formatted
// display names play no part in matching.
func (a *Assembler) Delete(ctx context.Context, category model.Category, key string) error {
	if a.catalog.Contains(category, key) {
		return model.ErrNotDeletable
	}

	return a.store.Mutate(ctx, func(current []model.CustomEvent) ([]model.CustomEvent, error) {
		next := make([]model.CustomEvent, 0, len(current))
		removed := false
		for _, ev := range current {
			if ev.Category == category && ev.ID == key {
				removed = true
				continue
			}
			next = append(next, ev)
		}
		if !removed {
			return nil, fmt.Errorf("key %q in %s: %w", key, category, model.ErrNotFound)
		}
		return next, nil
	})
}

// milestoneName applies the "第N个" prefix to the configured relationship
// anniversaries, counting occurrences from the configured baseline year.
// Only built-in names are ever passed here.
func (a *Assembler) milestoneName(name string, date time.Time) string {
	for _, m := range a.milestones.Names {
		if m != name {
			continue
		}
		if n := date.Year() - a.milestones.BaselineYear; n > 0 {
			return fmt.Sprintf("第%d个%s", n, name)
		}
		return name
	}
	return name
}

// resolveNext resolves a recurring rule to its next occurrence on or after
// from.
func resolveNext(spec model.CalendarSpec, from time.Time) (time.Time, error) {
	if spec.Lunar {
		return lunar.Next(spec.Month, spec.Day, from)
	}
	if err := spec.Validate(); err != nil {
		return time.Time{}, err
	}
	return recur.NextGregorian(spec.Month, spec.Day, from), nil
}

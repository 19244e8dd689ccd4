// Package catalog holds the built-in event tables shipped with the
// application. The tables are immutable; callers receive copies and the
// assembler takes a Catalog value rather than reaching into package state.
package catalog

import "daycount/internal/model"

// Catalog is a per-category table of built-in events.
type Catalog struct {
	events map[model.Category][]model.BuiltinEvent
}

var builtins = map[model.Category][]model.BuiltinEvent{
	model.CategoryAnniversaries: {
		{Name: "见面纪念日", Spec: model.CalendarSpec{Month: 12, Day: 31}},
		{Name: "在一起的纪念日", Spec: model.CalendarSpec{Month: 12, Day: 2}},
		{Name: "情人节", Spec: model.CalendarSpec{Month: 2, Day: 14}},
		{Name: "520", Spec: model.CalendarSpec{Month: 5, Day: 20}},
		{Name: "七夕节", Spec: model.CalendarSpec{Month: 7, Day: 7, Lunar: true}},
	},
	model.CategoryBirthdays: {
		{Name: "小高的生日", Spec: model.CalendarSpec{Month: 10, Day: 27}},
		{Name: "小徐的生日", Spec: model.CalendarSpec{Month: 2, Day: 11}},
	},
	model.CategoryHolidays: {
		{Name: "元旦", Spec: model.CalendarSpec{Month: 1, Day: 1}},
		// 清明节 drifts between April 4 and 5; pinned to the 4th.
		{Name: "清明节", Spec: model.CalendarSpec{Month: 4, Day: 4}},
		{Name: "劳动节", Spec: model.CalendarSpec{Month: 5, Day: 1}},
		{Name: "国庆节", Spec: model.CalendarSpec{Month: 10, Day: 1}},
		{Name: "春节", Spec: model.CalendarSpec{Month: 1, Day: 1, Lunar: true}},
		{Name: "端午节", Spec: model.CalendarSpec{Month: 5, Day: 5, Lunar: true}},
		{Name: "中秋节", Spec: model.CalendarSpec{Month: 8, Day: 15, Lunar: true}},
	},
}

// Default returns the catalog of built-in events.
func Default() Catalog {
	return Catalog{events: builtins}
}

// Builtins returns a copy of the built-in events for category.
func (c Catalog) Builtins(category model.Category) []model.BuiltinEvent {
	src := c.events[category]
	out := make([]model.BuiltinEvent, len(src))
	copy(out, src)
	return out
}

// Contains reports whether name is a built-in event in category.
func (c Catalog) Contains(category model.Category, name string) bool {
	for _, ev := range c.events[category] {
		if ev.Name == name {
			return true
		}
	}
	return false
}

package lunar

import (
	"errors"
	"testing"
	"time"

	"daycount/internal/model"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNextKnownDates(t *testing.T) {
	tests := []struct {
		name  string
		month int
		day   int
		from  time.Time
		want  time.Time
	}{
		{"spring festival 2025", 1, 1, date(2025, time.January, 1), date(2025, time.January, 29)},
		{"spring festival from day itself", 1, 1, date(2025, time.January, 29), date(2025, time.January, 29)},
		{"spring festival rolls to 2026", 1, 1, date(2025, time.January, 30), date(2026, time.February, 17)},
		{"dragon boat 2025", 5, 5, date(2025, time.January, 1), date(2025, time.May, 31)},
		{"qixi 2025", 7, 7, date(2025, time.January, 1), date(2025, time.August, 29)},
		{"mid autumn 2025", 8, 15, date(2025, time.January, 1), date(2025, time.October, 6)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Next(tt.month, tt.day, tt.from)
			if err != nil {
				t.Fatalf("Next(%d, %d, %s): %v", tt.month, tt.day, tt.from.Format("2006-01-02"), err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("Next(%d, %d, %s) = %s, want %s",
					tt.month, tt.day, tt.from.Format("2006-01-02"), got.Format("2006-01-02"), tt.want.Format("2006-01-02"))
			}
		})
	}
}

func TestNextSkipsLeapMonth(t *testing.T) {
	// 2025 inserts a leap 6th month (roughly late July to late August).
	// Searching for lunar 7-7 from inside it must land on the real 7th
	// month, not match a leap-month day.
	got, err := Next(7, 7, date(2025, time.August, 1))
	if err != nil {
		t.Fatal(err)
	}
	if want := date(2025, time.August, 29); !got.Equal(want) {
		t.Errorf("Next(7, 7) from inside leap month = %s, want %s",
			got.Format("2006-01-02"), want.Format("2006-01-02"))
	}
}

func TestNextNeverBeforeReference(t *testing.T) {
	from := date(2025, time.March, 3)
	for _, spec := range [][2]int{{1, 1}, {5, 5}, {7, 7}, {8, 15}, {12, 30}} {
		got, err := Next(spec[0], spec[1], from)
		if err != nil {
			t.Fatalf("Next(%d, %d): %v", spec[0], spec[1], err)
		}
		if got.Before(from) {
			t.Errorf("Next(%d, %d) = %s is before reference %s", spec[0], spec[1], got, from)
		}
	}
}

func TestNextRejectsInvalidSpec(t *testing.T) {
	tests := []struct {
		name  string
		month int
		day   int
	}{
		{"month zero", 0, 1},
		{"month thirteen", 13, 1},
		{"day zero", 1, 0},
		{"day thirty-one", 1, 31},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Next(tt.month, tt.day, date(2025, time.January, 1))
			var specErr *model.InvalidSpecError
			if !errors.As(err, &specErr) {
				t.Errorf("Next(%d, %d) error = %v, want InvalidSpecError", tt.month, tt.day, err)
			}
		})
	}
}

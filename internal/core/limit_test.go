package core

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func mustAmount(t *testing.T, value, currency string) Amount {
	t.Helper()
	a, err := ParseAmount(value, currency)
	if err != nil {
		t.Fatalf("ParseAmount(%q): %v", value, err)
	}
	return a
}

func TestConstructMonthLimit(t *testing.T) {
	tz := time.UTC
	now := time.Date(2024, 4, 17, 15, 30, 0, 0, tz)

	month := ConstructMonthLimit("Daily", tz, mustAmount(t, "3000.00", "EUR"), now)

	if month.Timespan != TimespanMonth {
		t.Errorf("timespan = %s, want MONTH", month.Timespan)
	}
	if month.Tag != "Daily" {
		t.Errorf("tag = %s, want Daily", month.Tag)
	}
	wantStart := time.Date(2024, 4, 1, 0, 0, 0, 0, tz)
	if !month.PeriodStart.Equal(wantStart) {
		t.Errorf("period start = %v, want %v", month.PeriodStart, wantStart)
	}
	wantValid := time.Date(2024, 4, 30, 23, 59, 59, 999_999_999, tz)
	if !month.ValidUntil.Equal(wantValid) {
		t.Errorf("valid until = %v, want %v", month.ValidUntil, wantValid)
	}
	if !month.SpentAmount.Value.IsZero() {
		t.Errorf("spent = %s, want 0", month.SpentAmount.Value)
	}
	if month.SpentAmount.Currency != "EUR" {
		t.Errorf("spent currency = %s, want EUR", month.SpentAmount.Currency)
	}
	if !month.IsActive(now) {
		t.Error("fresh month limit should be active")
	}
}

func TestConstructMonthLimitDecemberRollover(t *testing.T) {
	tz := time.UTC
	now := time.Date(2024, 12, 31, 10, 0, 0, 0, tz)

	month := ConstructMonthLimit("Daily", tz, mustAmount(t, "3000.00", "EUR"), now)

	wantValid := time.Date(2024, 12, 31, 23, 59, 59, 999_999_999, tz)
	if !month.ValidUntil.Equal(wantValid) {
		t.Errorf("valid until = %v, want %v", month.ValidUntil, wantValid)
	}
}

func TestConstructDayLimit(t *testing.T) {
	tz := time.UTC

	tests := []struct {
		name      string
		now       time.Time
		spent     string
		wantLimit string
	}{
		{
			// 3000 over a 30-day month, day 1: 100 per day.
			name:      "first day of fresh month",
			now:       time.Date(2024, 4, 1, 9, 0, 0, 0, tz),
			spent:     "0",
			wantLimit: "100",
		},
		{
			// Day 2 after spending 20: 2980 over 29 days.
			name:      "second day recomputes from month state",
			now:       time.Date(2024, 4, 2, 9, 0, 0, 0, tz),
			spent:     "20.00",
			wantLimit: "102.76",
		},
		{
			// Last day: whatever remains, undivided.
			name:      "last day of month",
			now:       time.Date(2024, 4, 30, 9, 0, 0, 0, tz),
			spent:     "2900.00",
			wantLimit: "100",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			month := ConstructMonthLimit("Daily", tz, mustAmount(t, "3000.00", "EUR"), tt.now)
			month.SpentAmount = mustAmount(t, tt.spent, "EUR")

			day, err := ConstructDayLimit(month, tz, tt.now)
			if err != nil {
				t.Fatalf("ConstructDayLimit: %v", err)
			}

			if day.Timespan != TimespanDay {
				t.Errorf("timespan = %s, want DAY", day.Timespan)
			}
			if day.LimitAmount.Value.String() != tt.wantLimit {
				t.Errorf("day limit = %s, want %s", day.LimitAmount.Value, tt.wantLimit)
			}
			if !day.SpentAmount.Value.IsZero() {
				t.Errorf("spent = %s, want 0", day.SpentAmount.Value)
			}
			wantStart := time.Date(tt.now.Year(), tt.now.Month(), tt.now.Day(), 0, 0, 0, 0, tz)
			if !day.PeriodStart.Equal(wantStart) {
				t.Errorf("period start = %v, want %v", day.PeriodStart, wantStart)
			}
			wantValid := time.Date(tt.now.Year(), tt.now.Month(), tt.now.Day(), 23, 59, 59, 999_999_999, tz)
			if !day.ValidUntil.Equal(wantValid) {
				t.Errorf("valid until = %v, want %v", day.ValidUntil, wantValid)
			}
		})
	}
}

func TestConstructDayLimitStaleMonth(t *testing.T) {
	tz := time.UTC
	month := ConstructMonthLimit("Daily", tz, mustAmount(t, "3000.00", "EUR"), time.Date(2024, 3, 15, 0, 0, 0, 0, tz))

	// A month period from March 2024 must never fund a day in any other month.
	tests := []struct {
		name string
		now  time.Time
	}{
		{"early next month", time.Date(2024, 4, 2, 9, 0, 0, 0, tz)},
		{"late next month", time.Date(2024, 4, 30, 9, 0, 0, 0, tz)},
		{"same month next year", time.Date(2025, 3, 15, 9, 0, 0, 0, tz)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ConstructDayLimit(month, tz, tt.now)
			if !errors.Is(err, ErrNoDaysRemaining) {
				t.Fatalf("error = %v, want ErrNoDaysRemaining", err)
			}
		})
	}
}

// Walking the rest of the month one day at a time, spending each day's full
// allowance, the day limits must sum back to the month budget minus prior
// spend; rounding leaves at most a cent-level remainder absorbed on the last
// day.
func TestDayLimitsSumToMonthBudget(t *testing.T) {
	tz := time.UTC
	monthBudgets := []string{"3000.00", "1000.00", "123.45"}

	for _, budget := range monthBudgets {
		t.Run(budget, func(t *testing.T) {
			start := time.Date(2024, 4, 1, 12, 0, 0, 0, tz)
			month := ConstructMonthLimit("Daily", tz, mustAmount(t, budget, "EUR"), start)

			total := ZeroAmount("EUR")
			for day := 0; day < 30; day++ {
				now := start.AddDate(0, 0, day)
				dayLimit, err := ConstructDayLimit(month, tz, now)
				if err != nil {
					t.Fatalf("day %d: %v", day+1, err)
				}
				total = total.Add(dayLimit.LimitAmount)
				month = month.AddSpent(dayLimit.LimitAmount.Value)
			}

			diff := total.Value.Sub(decimal.RequireFromString(budget)).Abs()
			// 30 divisions at scale 2 never drift more than half a cent each.
			if diff.GreaterThan(decimal.RequireFromString("0.15")) {
				t.Errorf("sum of day limits = %s, month budget = %s, drift = %s", total.Value, budget, diff)
			}
			if !month.RemainingAmount().Value.Abs().Equal(diff) {
				t.Errorf("month remaining = %s, want drift %s", month.RemainingAmount().Value, diff)
			}
		})
	}
}

func TestCalculatedDayLimitForwardsValues(t *testing.T) {
	monthStart := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	date := time.Date(2024, 4, 18, 0, 0, 0, 0, time.UTC)
	spent := mustAmount(t, "120.00", "EUR")
	limit := mustAmount(t, "3000.00", "EUR")

	preview := NewCalculatedDayLimit(monthStart, date, spent, limit)

	// The preview carries the month's cumulative totals untouched; it is not
	// the per-day proration ConstructDayLimit performs.
	if !preview.SpentAmount.Value.Equal(spent.Value) {
		t.Errorf("preview spent = %s, want %s", preview.SpentAmount.Value, spent.Value)
	}
	if !preview.LimitAmount.Value.Equal(limit.Value) {
		t.Errorf("preview limit = %s, want %s", preview.LimitAmount.Value, limit.Value)
	}
	if got := preview.RemainingAmount().Value.String(); got != "2880" {
		t.Errorf("preview remaining = %s, want 2880", got)
	}
}

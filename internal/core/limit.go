package core

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	TimespanDay   Timespan = "DAY"
	TimespanMonth Timespan = "MONTH"
)

type (
	// Timespan is the granularity of a limit period.
	Timespan string

	// LimitEntity is one budget period for a tag+currency stream, either a
	// MONTH allowance or a DAY allowance derived from it. Once created, only
	// SpentAmount ever changes in storage, and it only grows.
	LimitEntity struct {
		ID          uuid.UUID
		Tag         string
		Timespan    Timespan
		PeriodStart time.Time // calendar day the period is anchored to
		ValidUntil  time.Time // last instant of the period
		SpentAmount Amount
		LimitAmount Amount
		CreatedAt   time.Time
	}

	// CalculatedDayLimit is a non-persisted preview of a future day's
	// allowance. Unlike ConstructDayLimit it does not prorate: its
	// constructor forwards whatever spent/limit values the caller hands it,
	// which for the mid-month branch are the month's running totals. Keep
	// that forwarding as-is; the two code paths diverge on purpose.
	CalculatedDayLimit struct {
		MonthStart  time.Time
		Date        time.Time
		SpentAmount Amount
		LimitAmount Amount
	}
)

// Valid reports whether the timespan is one of the two known granularities.
func (ts Timespan) Valid() bool {
	return ts == TimespanDay || ts == TimespanMonth
}

// endOfDayIn returns the last instant of the given calendar day in tz.
func endOfDayIn(day time.Time, tz *time.Location) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), 23, 59, 59, 999_999_999, tz)
}

// lastDayOfMonth returns the last calendar day of the month containing day.
func lastDayOfMonth(day time.Time, tz *time.Location) time.Time {
	return time.Date(day.Year(), day.Month()+1, 0, 0, 0, 0, 0, tz)
}

// ConstructMonthLimit builds a fresh MONTH period for the month containing
// now: period start on the first of the month, the configured monthly budget
// as the limit, nothing spent yet, valid until the last instant of the month.
func ConstructMonthLimit(tag string, tz *time.Location, limitAmount Amount, now time.Time) LimitEntity {
	local := now.In(tz)
	periodStart := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, tz)

	return LimitEntity{
		ID:          uuid.New(),
		Tag:         tag,
		Timespan:    TimespanMonth,
		PeriodStart: periodStart,
		ValidUntil:  endOfDayIn(lastDayOfMonth(periodStart, tz), tz),
		SpentAmount: ZeroAmount(limitAmount.Currency),
		LimitAmount: limitAmount,
		CreatedAt:   now,
	}
}

// ConstructDayLimit builds today's DAY period from the current state of the
// month period: whatever budget remains in the month is split evenly across
// every remaining day including today, rounded per Amount.DivDays. The limit
// is fixed at creation time and never re-derived.
//
// daysRemaining is 1 on the last day of the month and can never reach zero
// as long as monthLimit covers the month containing now; that invariant is
// checked, not assumed.
func ConstructDayLimit(monthLimit LimitEntity, tz *time.Location, now time.Time) (LimitEntity, error) {
	local := now.In(tz)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, tz)

	// A month period only ever funds days of its own month; a stale period
	// must not leak budget into the next one.
	if today.Year() != monthLimit.PeriodStart.Year() || today.Month() != monthLimit.PeriodStart.Month() {
		return LimitEntity{}, fmt.Errorf("%w: month starting %s, today %s",
			ErrNoDaysRemaining,
			monthLimit.PeriodStart.Format("2006-01-02"),
			today.Format("2006-01-02"))
	}

	daysRemaining := lastDayOfMonth(monthLimit.PeriodStart, tz).Day() - today.Day() + 1
	if daysRemaining < 1 {
		return LimitEntity{}, fmt.Errorf("%w: month starting %s, today %s",
			ErrNoDaysRemaining,
			monthLimit.PeriodStart.Format("2006-01-02"),
			today.Format("2006-01-02"))
	}

	return LimitEntity{
		ID:          uuid.New(),
		Tag:         monthLimit.Tag,
		Timespan:    TimespanDay,
		PeriodStart: today,
		ValidUntil:  endOfDayIn(today, tz),
		SpentAmount: ZeroAmount(monthLimit.LimitAmount.Currency),
		LimitAmount: monthLimit.LimitAmount.Sub(monthLimit.SpentAmount).DivDays(daysRemaining),
		CreatedAt:   now,
	}, nil
}

// IsActive reports whether the period's validity window has not yet elapsed.
func (l LimitEntity) IsActive(now time.Time) bool {
	return l.ValidUntil.After(now)
}

// RemainingAmount returns how much of the period's allowance is left.
// Negative when the period is overspent.
func (l LimitEntity) RemainingAmount() Amount {
	return l.LimitAmount.Sub(l.SpentAmount)
}

// AddSpent returns a copy of the period with delta added to its spent total.
// Used to project the post-increment state locally after the durable update;
// storage remains the system of record.
func (l LimitEntity) AddSpent(delta decimal.Decimal) LimitEntity {
	l.SpentAmount = Amount{Value: l.SpentAmount.Value.Add(delta), Currency: l.SpentAmount.Currency}
	return l
}

// NewCalculatedDayLimit builds a preview for date within the month starting
// at monthStart. Values are forwarded literally, not prorated.
func NewCalculatedDayLimit(monthStart, date time.Time, spent, limit Amount) CalculatedDayLimit {
	return CalculatedDayLimit{
		MonthStart:  monthStart,
		Date:        date,
		SpentAmount: spent,
		LimitAmount: limit,
	}
}

// RemainingAmount returns the previewed allowance left for the day.
func (c CalculatedDayLimit) RemainingAmount() Amount {
	return c.LimitAmount.Sub(c.SpentAmount)
}

// Package services provides business logic and orchestration services.
//
// This file implements the rolling budget-limit orchestrator: every spend is
// charged against two nested periods, the calendar month and the current day,
// where the day's allowance is the remaining month budget prorated over the
// days left in the month.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"budgetanalyzer/internal/core"
)

// LimitsService tracks spending against the configured budget stream. It
// holds no mutable state of its own; the persisted period rows are the only
// shared resource, so concurrent calls are safe as long as the repository
// honors the LimitRepository contract.
type LimitsService struct {
	repo          LimitRepository
	tag           string
	currency      string
	monthlyBudget decimal.Decimal
	tz            *time.Location
	now           func() time.Time
}

// ResultingLimits is the outcome of recording one spend: both updated
// periods plus a non-persisted preview of tomorrow's allowance.
type ResultingLimits struct {
	TodayLimit             core.LimitEntity
	MonthLimit             core.LimitEntity
	NextDayCalculatedLimit core.CalculatedDayLimit
}

func NewLimitsService(repo LimitRepository, tag, currency string, monthlyBudget decimal.Decimal, tz *time.Location) *LimitsService {
	return &LimitsService{
		repo:          repo,
		tag:           tag,
		currency:      currency,
		monthlyBudget: monthlyBudget,
		tz:            tz,
		now:           time.Now,
	}
}

// DecreaseLimit charges amount against the active DAY and MONTH periods,
// creating either lazily on the first spend of its window. The spent
// increment targets both rows in one atomic repository call; the returned
// entities carry the post-increment totals as a local projection of what a
// fresh read would return.
//
// Contract violations (non-positive amount, wrong currency) fail before any
// repository call. Persistence failures propagate unchanged; this service
// performs no retries.
func (s *LimitsService) DecreaseLimit(ctx context.Context, amount core.Amount) (ResultingLimits, error) {
	if err := amount.Validate(); err != nil {
		return ResultingLimits{}, fmt.Errorf("spend amount: %w", err)
	}
	if amount.Currency != s.currency {
		return ResultingLimits{}, fmt.Errorf("%w: spend in %s, budget stream in %s",
			core.ErrCurrencyMismatch, amount.Currency, s.currency)
	}

	now := s.now()

	found, err := s.repo.FindActiveLimits(ctx, s.tag, amount.Currency)
	if err != nil {
		return ResultingLimits{}, fmt.Errorf("find active limits: %w", err)
	}
	byTimespan := make(map[core.Timespan]core.LimitEntity, len(found))
	for _, limit := range found {
		byTimespan[limit.Timespan] = limit
	}

	monthLimit, ok := byTimespan[core.TimespanMonth]
	if !ok {
		monthLimit, err = s.constructMonthLimit(ctx, now)
		if err != nil {
			return ResultingLimits{}, err
		}
	}

	dayLimit, ok := byTimespan[core.TimespanDay]
	if !ok {
		dayLimit, err = s.constructDayLimit(ctx, monthLimit, now)
		if err != nil {
			return ResultingLimits{}, err
		}
	}

	err = s.repo.IncreaseSpentAmount(ctx, []uuid.UUID{monthLimit.ID, dayLimit.ID}, amount.Value)
	if err != nil {
		return ResultingLimits{}, fmt.Errorf("increase spent amount: %w", err)
	}

	// Project the durable increment onto the in-memory copies; no re-read.
	monthLimit = monthLimit.AddSpent(amount.Value)
	dayLimit = dayLimit.AddSpent(amount.Value)

	return ResultingLimits{
		TodayLimit:             dayLimit,
		MonthLimit:             monthLimit,
		NextDayCalculatedLimit: s.nextDayLimit(dayLimit, monthLimit),
	}, nil
}

// ActiveLimits returns the currently valid periods of the configured budget
// stream. Periods are created lazily on spend, so before the first spend of a
// window the slice may be missing that period, or be empty entirely.
func (s *LimitsService) ActiveLimits(ctx context.Context) ([]core.LimitEntity, error) {
	found, err := s.repo.FindActiveLimits(ctx, s.tag, s.currency)
	if err != nil {
		return nil, fmt.Errorf("find active limits: %w", err)
	}
	return found, nil
}

// nextDayLimit previews tomorrow's allowance without persisting anything.
// On the last day of the month the preview is the next month's reset marker:
// zero spent and the full monthly baseline. Mid-month it forwards the month's
// cumulative totals rather than re-running the per-day proration of
// core.ConstructDayLimit; the two paths diverge on purpose.
func (s *LimitsService) nextDayLimit(dayLimit, monthLimit core.LimitEntity) core.CalculatedDayLimit {
	nextDay := dayLimit.PeriodStart.AddDate(0, 0, 1)

	if nextDay.Day() == 1 {
		return core.NewCalculatedDayLimit(
			nextDay,
			nextDay,
			core.ZeroAmount(s.currency),
			core.NewAmount(s.monthlyBudget, s.currency),
		)
	}

	return core.NewCalculatedDayLimit(
		monthLimit.PeriodStart,
		nextDay,
		monthLimit.SpentAmount,
		monthLimit.LimitAmount,
	)
}

func (s *LimitsService) constructMonthLimit(ctx context.Context, now time.Time) (core.LimitEntity, error) {
	entity := core.ConstructMonthLimit(s.tag, s.tz, core.NewAmount(s.monthlyBudget, s.currency), now)

	if err := s.repo.Insert(ctx, entity); err != nil {
		if errors.Is(err, core.ErrLimitExists) {
			// Lost the first-spend-of-the-month race; the winner's row is the
			// single source of truth.
			return s.refetch(ctx, core.TimespanMonth)
		}
		return core.LimitEntity{}, fmt.Errorf("insert month limit: %w", err)
	}

	slog.InfoContext(ctx, "Created month limit",
		"id", entity.ID,
		"period_start", entity.PeriodStart.Format("2006-01-02"),
		"limit", entity.LimitAmount.String())
	return entity, nil
}

func (s *LimitsService) constructDayLimit(ctx context.Context, monthLimit core.LimitEntity, now time.Time) (core.LimitEntity, error) {
	entity, err := core.ConstructDayLimit(monthLimit, s.tz, now)
	if err != nil {
		return core.LimitEntity{}, fmt.Errorf("construct day limit: %w", err)
	}

	if err := s.repo.Insert(ctx, entity); err != nil {
		if errors.Is(err, core.ErrLimitExists) {
			return s.refetch(ctx, core.TimespanDay)
		}
		return core.LimitEntity{}, fmt.Errorf("insert day limit: %w", err)
	}

	slog.InfoContext(ctx, "Created day limit",
		"id", entity.ID,
		"period_start", entity.PeriodStart.Format("2006-01-02"),
		"limit", entity.LimitAmount.String())
	return entity, nil
}

// refetch re-reads the active period of the given timespan after a duplicate
// insert was rejected by storage.
func (s *LimitsService) refetch(ctx context.Context, timespan core.Timespan) (core.LimitEntity, error) {
	found, err := s.repo.FindActiveLimits(ctx, s.tag, s.currency)
	if err != nil {
		return core.LimitEntity{}, fmt.Errorf("refetch active limits: %w", err)
	}
	for _, limit := range found {
		if limit.Timespan == timespan {
			return limit, nil
		}
	}
	return core.LimitEntity{}, fmt.Errorf("refetch %s limit: %w", timespan, core.ErrLimitNotFound)
}

package storage

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"budgetanalyzer/internal/core"
)

func newTestRepository(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "limits.db"), time.UTC)
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func activeMonthLimit(t *testing.T) core.LimitEntity {
	t.Helper()
	budget, err := core.ParseAmount("3000.00", "EUR")
	if err != nil {
		t.Fatalf("ParseAmount: %v", err)
	}
	// Anchored to the current month so the row is active at query time.
	return core.ConstructMonthLimit("Daily", time.UTC, budget, time.Now())
}

func TestSQLiteRepositoryRoundtrip(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	month := activeMonthLimit(t)
	if err := repo.Insert(ctx, month); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	found, err := repo.FindActiveLimits(ctx, "Daily", "EUR")
	if err != nil {
		t.Fatalf("FindActiveLimits: %v", err)
	}
	if len(found) != 1 {
		t.Fatalf("found %d limits, want 1", len(found))
	}

	got := found[0]
	if got.ID != month.ID {
		t.Errorf("id = %s, want %s", got.ID, month.ID)
	}
	if got.Timespan != core.TimespanMonth {
		t.Errorf("timespan = %s, want MONTH", got.Timespan)
	}
	if !got.PeriodStart.Equal(month.PeriodStart) {
		t.Errorf("period start = %v, want %v", got.PeriodStart, month.PeriodStart)
	}
	if !got.ValidUntil.Equal(month.ValidUntil) {
		t.Errorf("valid until = %v, want %v", got.ValidUntil, month.ValidUntil)
	}
	if !got.LimitAmount.Value.Equal(month.LimitAmount.Value) {
		t.Errorf("limit = %s, want %s", got.LimitAmount.Value, month.LimitAmount.Value)
	}
	if !got.SpentAmount.Value.IsZero() {
		t.Errorf("spent = %s, want 0", got.SpentAmount.Value)
	}
}

func TestSQLiteRepositoryFindFilters(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	if err := repo.Insert(ctx, activeMonthLimit(t)); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	for _, q := range []struct{ tag, currency string }{
		{"Groceries", "EUR"},
		{"Daily", "USD"},
	} {
		found, err := repo.FindActiveLimits(ctx, q.tag, q.currency)
		if err != nil {
			t.Fatalf("FindActiveLimits(%s, %s): %v", q.tag, q.currency, err)
		}
		if len(found) != 0 {
			t.Errorf("FindActiveLimits(%s, %s) = %d rows, want 0", q.tag, q.currency, len(found))
		}
	}
}

func TestSQLiteRepositorySkipsExpiredPeriods(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	expired := activeMonthLimit(t)
	expired.PeriodStart = expired.PeriodStart.AddDate(0, -1, 0)
	expired.ValidUntil = time.Now().Add(-time.Hour)
	if err := repo.Insert(ctx, expired); err != nil {
		t.Fatalf("Insert expired: %v", err)
	}

	found, err := repo.FindActiveLimits(ctx, "Daily", "EUR")
	if err != nil {
		t.Fatalf("FindActiveLimits: %v", err)
	}
	if len(found) != 0 {
		t.Errorf("found %d limits, want 0 (period expired)", len(found))
	}
}

func TestSQLiteRepositoryDuplicatePeriod(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	if err := repo.Insert(ctx, activeMonthLimit(t)); err != nil {
		t.Fatalf("first Insert: %v", err)
	}

	// Different id, same (tag, currency, timespan, period_start).
	err := repo.Insert(ctx, activeMonthLimit(t))
	if !errors.Is(err, core.ErrLimitExists) {
		t.Fatalf("duplicate Insert error = %v, want ErrLimitExists", err)
	}

	found, err := repo.FindActiveLimits(ctx, "Daily", "EUR")
	if err != nil {
		t.Fatalf("FindActiveLimits: %v", err)
	}
	if len(found) != 1 {
		t.Errorf("found %d limits after duplicate insert, want 1", len(found))
	}
}

func TestSQLiteRepositoryIncreaseSpentAmount(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	month := activeMonthLimit(t)
	if err := repo.Insert(ctx, month); err != nil {
		t.Fatalf("insert month: %v", err)
	}
	day, err := core.ConstructDayLimit(month, time.UTC, time.Now())
	if err != nil {
		t.Fatalf("ConstructDayLimit: %v", err)
	}
	if err := repo.Insert(ctx, day); err != nil {
		t.Fatalf("insert day: %v", err)
	}

	delta := decimal.RequireFromString("20.00")
	if err := repo.IncreaseSpentAmount(ctx, []uuid.UUID{month.ID, day.ID}, delta); err != nil {
		t.Fatalf("IncreaseSpentAmount: %v", err)
	}

	found, err := repo.FindActiveLimits(ctx, "Daily", "EUR")
	if err != nil {
		t.Fatalf("FindActiveLimits: %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("found %d limits, want 2", len(found))
	}
	for _, limit := range found {
		if !limit.SpentAmount.Value.Equal(delta) {
			t.Errorf("%s spent = %s, want %s", limit.Timespan, limit.SpentAmount.Value, delta)
		}
	}
}

func TestSQLiteRepositoryIncreaseSpentAmountInvalid(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	month := activeMonthLimit(t)
	if err := repo.Insert(ctx, month); err != nil {
		t.Fatalf("insert month: %v", err)
	}

	t.Run("unknown id", func(t *testing.T) {
		err := repo.IncreaseSpentAmount(ctx, []uuid.UUID{month.ID, uuid.New()}, decimal.NewFromInt(5))
		if !errors.Is(err, core.ErrLimitNotFound) {
			t.Errorf("error = %v, want ErrLimitNotFound", err)
		}

		// The matched row must be rolled back too: a failed dual-row
		// increment leaves no trace on either row.
		found, err := repo.FindActiveLimits(ctx, "Daily", "EUR")
		if err != nil {
			t.Fatalf("FindActiveLimits: %v", err)
		}
		if len(found) != 1 {
			t.Fatalf("found %d limits, want 1", len(found))
		}
		if !found[0].SpentAmount.Value.IsZero() {
			t.Errorf("month spent after failed increment = %s, want 0", found[0].SpentAmount.Value)
		}
	})

	t.Run("non-positive delta", func(t *testing.T) {
		err := repo.IncreaseSpentAmount(ctx, []uuid.UUID{month.ID}, decimal.Zero)
		if !errors.Is(err, core.ErrInvalidAmount) {
			t.Errorf("error = %v, want ErrInvalidAmount", err)
		}
	})

	t.Run("sub-cent delta", func(t *testing.T) {
		err := repo.IncreaseSpentAmount(ctx, []uuid.UUID{month.ID}, decimal.RequireFromString("0.001"))
		if !errors.Is(err, core.ErrInvalidAmount) {
			t.Errorf("error = %v, want ErrInvalidAmount", err)
		}
	})
}

// Concurrent increments must compose additively on durable storage, not just
// in memory.
func TestSQLiteRepositoryIncreaseSpentAmountConcurrent(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	month := activeMonthLimit(t)
	if err := repo.Insert(ctx, month); err != nil {
		t.Fatalf("insert month: %v", err)
	}
	day, err := core.ConstructDayLimit(month, time.UTC, time.Now())
	if err != nil {
		t.Fatalf("ConstructDayLimit: %v", err)
	}
	if err := repo.Insert(ctx, day); err != nil {
		t.Fatalf("insert day: %v", err)
	}

	const n = 20
	delta := decimal.RequireFromString("1.50")

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := repo.IncreaseSpentAmount(ctx, []uuid.UUID{month.ID, day.ID}, delta); err != nil {
				t.Errorf("IncreaseSpentAmount: %v", err)
			}
		}()
	}
	wg.Wait()

	want := delta.Mul(decimal.NewFromInt(n))
	found, err := repo.FindActiveLimits(ctx, "Daily", "EUR")
	if err != nil {
		t.Fatalf("FindActiveLimits: %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("found %d limits, want 2", len(found))
	}
	for _, limit := range found {
		if !limit.SpentAmount.Value.Equal(want) {
			t.Errorf("%s spent = %s, want %s", limit.Timespan, limit.SpentAmount.Value, want)
		}
	}
}

func TestSQLiteRepositoryRecordTransaction(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	amount, err := core.ParseAmount("20.00", "EUR")
	if err != nil {
		t.Fatalf("ParseAmount: %v", err)
	}
	balance, err := core.ParseAmount("1500.00", "EUR")
	if err != nil {
		t.Fatalf("ParseAmount: %v", err)
	}

	tx := core.NewTransaction("Coffeehouse", amount, balance)
	if err := repo.RecordTransaction(ctx, tx); err != nil {
		t.Fatalf("RecordTransaction: %v", err)
	}

	// Same id twice violates the primary key.
	if err := repo.RecordTransaction(ctx, tx); err == nil {
		t.Error("duplicate transaction id should fail")
	}
}

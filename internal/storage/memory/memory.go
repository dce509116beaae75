// Package memory provides an in-process LimitRepository used as the default
// development backend and as the substrate for orchestrator tests.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"budgetanalyzer/internal/core"
)

type Store struct {
	mu           sync.Mutex
	limits       map[uuid.UUID]core.LimitEntity
	transactions []core.Transaction
	now          func() time.Time
}

func New() *Store {
	return &Store{
		limits: make(map[uuid.UUID]core.LimitEntity),
		now:    time.Now,
	}
}

// FindActiveLimits returns copies of every period for the tag and currency
// that is still inside its validity window.
func (s *Store) FindActiveLimits(_ context.Context, tag, currency string) ([]core.LimitEntity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var out []core.LimitEntity
	for _, limit := range s.limits {
		if limit.Tag == tag && limit.LimitAmount.Currency == currency && limit.IsActive(now) {
			out = append(out, limit)
		}
	}
	return out, nil
}

// Insert stores a new period, enforcing the single-active-period invariant:
// a second period with the same tag, currency, timespan and period start is
// rejected with core.ErrLimitExists.
func (s *Store) Insert(_ context.Context, limit core.LimitEntity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.limits {
		if existing.Tag == limit.Tag &&
			existing.LimitAmount.Currency == limit.LimitAmount.Currency &&
			existing.Timespan == limit.Timespan &&
			existing.PeriodStart.Equal(limit.PeriodStart) {
			return fmt.Errorf("%s %s starting %s: %w",
				limit.Tag, limit.Timespan, limit.PeriodStart.Format("2006-01-02"), core.ErrLimitExists)
		}
	}

	s.limits[limit.ID] = limit
	return nil
}

// IncreaseSpentAmount adds delta to every listed period under one lock
// acquisition, so concurrent increments compose additively and no caller
// observes one row updated without the other.
func (s *Store) IncreaseSpentAmount(_ context.Context, ids []uuid.UUID, delta decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		if _, ok := s.limits[id]; !ok {
			return fmt.Errorf("limit %s: %w", id, core.ErrLimitNotFound)
		}
	}
	for _, id := range ids {
		s.limits[id] = s.limits[id].AddSpent(delta)
	}
	return nil
}

// RecordTransaction appends the spend event to the in-memory history.
func (s *Store) RecordTransaction(_ context.Context, tx core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions = append(s.transactions, tx)
	return nil
}

// Limit returns the stored period with the given id, for tests and debugging.
func (s *Store) Limit(id uuid.UUID) (core.LimitEntity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	limit, ok := s.limits[id]
	return limit, ok
}

// Transactions returns a copy of the recorded spend history.
func (s *Store) Transactions() []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Transaction(nil), s.transactions...)
}

// SetClock overrides the time source used for activity checks.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

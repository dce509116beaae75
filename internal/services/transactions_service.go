package services

import (
	"context"
	"fmt"
	"log/slog"

	"budgetanalyzer/internal/core"
)

// TransactionsService orchestrates one spend event end to end: persist the
// transaction, charge it against the budget limits, and hand the outcome to
// the notification channel.
type TransactionsService struct {
	store     TransactionStore
	limits    *LimitsService
	publisher NotificationPublisher
}

func NewTransactionsService(store TransactionStore, limits *LimitsService, publisher NotificationPublisher) *TransactionsService {
	return &TransactionsService{
		store:     store,
		limits:    limits,
		publisher: publisher,
	}
}

// RecordSpend stores the transaction and applies its amount to the active
// limits. Limit failures abort the whole operation; a publish failure does
// not, since the spend is already durably recorded.
func (s *TransactionsService) RecordSpend(ctx context.Context, tx core.Transaction) (ResultingLimits, error) {
	if err := tx.Validate(); err != nil {
		return ResultingLimits{}, fmt.Errorf("validate transaction: %w", err)
	}

	if err := s.store.RecordTransaction(ctx, tx); err != nil {
		return ResultingLimits{}, fmt.Errorf("record transaction: %w", err)
	}

	limits, err := s.limits.DecreaseLimit(ctx, tx.Amount)
	if err != nil {
		return ResultingLimits{}, fmt.Errorf("decrease limit: %w", err)
	}

	slog.InfoContext(ctx, "Transaction recorded",
		"id", tx.ID,
		"merchant", tx.Merchant,
		"amount", tx.Amount.String(),
		"spent_today", limits.TodayLimit.SpentAmount.String(),
		"spent_month", limits.MonthLimit.SpentAmount.String())

	if s.publisher == nil {
		slog.WarnContext(ctx, "Notification publisher not available, skipping notification")
		return limits, nil
	}
	if err := s.publisher.PublishTransactionRecorded(ctx, tx, limits); err != nil {
		// Don't fail the request - the spend is recorded and limits updated.
		slog.ErrorContext(ctx, "Failed to publish notification", "id", tx.ID, "error", err)
	}

	return limits, nil
}

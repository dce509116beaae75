// Package worker consumes recorded-transaction messages and turns them into
// delivered notifications.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"budgetanalyzer/internal/amqp"
	"budgetanalyzer/internal/services"
)

// NotifyWorker handles notification delivery for recorded transactions.
type NotifyWorker struct {
	notifications *services.NotificationsService
}

func NewNotifyWorker(notifications *services.NotificationsService) *NotifyWorker {
	return &NotifyWorker{notifications: notifications}
}

// HandleTransactionRecorded processes a single notification message from
// AMQP. Decode failures are permanent and must not requeue, so they are
// reported as nil after logging; delivery failures return an error so the
// message is retried.
func (w *NotifyWorker) HandleTransactionRecorded(ctx context.Context, msg *amqp.TransactionRecordedMessage) error {
	slog.InfoContext(ctx, "Processing transaction notification",
		"transaction_id", msg.TransactionID,
		"merchant", msg.Merchant)

	tx, err := msg.Transaction()
	if err != nil {
		slog.ErrorContext(ctx, "Dropping malformed notification message",
			"transaction_id", msg.TransactionID, "error", err)
		return nil
	}
	limits, err := msg.ResultingLimits()
	if err != nil {
		slog.ErrorContext(ctx, "Dropping malformed notification message",
			"transaction_id", msg.TransactionID, "error", err)
		return nil
	}

	if err := w.notifications.SendTransactionNotification(ctx, tx, limits); err != nil {
		return fmt.Errorf("send transaction notification: %w", err)
	}

	return nil
}

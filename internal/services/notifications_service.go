package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"budgetanalyzer/internal/core"
)

// NotificationsService renders a spend summary and delivers it through the
// configured sender. It only formats what the orchestrator computed; nothing
// here feeds back into limit math.
type NotificationsService struct {
	sender MessageSender
}

func NewNotificationsService(sender MessageSender) *NotificationsService {
	return &NotificationsService{sender: sender}
}

// SendTransactionNotification renders and delivers the summary for one
// recorded transaction.
func (s *NotificationsService) SendTransactionNotification(ctx context.Context, tx core.Transaction, limits ResultingLimits) error {
	text := RenderTransactionSummary(tx, limits)

	if s.sender == nil {
		slog.WarnContext(ctx, "No message sender configured, logging notification instead", "text", text)
		return nil
	}

	if err := s.sender.SendMessage(ctx, text); err != nil {
		return fmt.Errorf("send notification: %w", err)
	}

	slog.InfoContext(ctx, "Sent transaction notification", "transaction_id", tx.ID, "merchant", tx.Merchant)
	return nil
}

// RenderTransactionSummary builds the human-readable recap of a spend: what
// was charged, what is left today, tomorrow's previewed allowance, what is
// left for the month, and the reported card balance.
func RenderTransactionSummary(tx core.Transaction, limits ResultingLimits) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s\n", tx.Amount, tx.Merchant)
	fmt.Fprintf(&b, "Remaining today: %s of %s\n", limits.TodayLimit.RemainingAmount(), limits.TodayLimit.LimitAmount)
	fmt.Fprintf(&b, "Tomorrow: %s\n", limits.NextDayCalculatedLimit.LimitAmount)
	fmt.Fprintf(&b, "Left this month: %s\n", limits.MonthLimit.RemainingAmount())
	fmt.Fprintf(&b, "Card balance: %s", tx.RemainingBalance)

	return b.String()
}

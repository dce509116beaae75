package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"budgetanalyzer/internal/core"
)

func sampleLimits(t *testing.T) (core.Transaction, ResultingLimits) {
	t.Helper()
	tz := time.UTC
	now := time.Date(2024, 4, 1, 9, 0, 0, 0, tz)

	month := core.ConstructMonthLimit("Daily", tz, eur(t, "3000.00"), now)
	day, err := core.ConstructDayLimit(month, tz, now)
	if err != nil {
		t.Fatalf("ConstructDayLimit: %v", err)
	}

	spend := eur(t, "20.00")
	month = month.AddSpent(spend.Value)
	day = day.AddSpent(spend.Value)

	tx := core.NewTransaction("Coffeehouse", spend, eur(t, "1500.00"))
	limits := ResultingLimits{
		TodayLimit: day,
		MonthLimit: month,
		NextDayCalculatedLimit: core.NewCalculatedDayLimit(
			month.PeriodStart, day.PeriodStart.AddDate(0, 0, 1),
			month.SpentAmount, month.LimitAmount,
		),
	}
	return tx, limits
}

func TestRenderTransactionSummary(t *testing.T) {
	tx, limits := sampleLimits(t)

	got := RenderTransactionSummary(tx, limits)
	want := strings.Join([]string{
		"20.00 EUR Coffeehouse",
		"Remaining today: 80.00 EUR of 100.00 EUR",
		"Tomorrow: 3000.00 EUR",
		"Left this month: 2980.00 EUR",
		"Card balance: 1500.00 EUR",
	}, "\n")

	if got != want {
		t.Errorf("RenderTransactionSummary:\ngot:\n%s\nwant:\n%s", got, want)
	}
}

type captureSender struct {
	texts []string
	err   error
}

func (s *captureSender) SendMessage(_ context.Context, text string) error {
	if s.err != nil {
		return s.err
	}
	s.texts = append(s.texts, text)
	return nil
}

func TestSendTransactionNotification(t *testing.T) {
	tx, limits := sampleLimits(t)

	t.Run("delivers rendered text", func(t *testing.T) {
		sender := &captureSender{}
		svc := NewNotificationsService(sender)

		if err := svc.SendTransactionNotification(context.Background(), tx, limits); err != nil {
			t.Fatalf("SendTransactionNotification: %v", err)
		}
		if len(sender.texts) != 1 {
			t.Fatalf("sent %d messages, want 1", len(sender.texts))
		}
		if !strings.Contains(sender.texts[0], "Coffeehouse") {
			t.Errorf("message %q does not mention the merchant", sender.texts[0])
		}
	})

	t.Run("wraps sender failure", func(t *testing.T) {
		sendErr := errors.New("chat unreachable")
		svc := NewNotificationsService(&captureSender{err: sendErr})

		err := svc.SendTransactionNotification(context.Background(), tx, limits)
		if !errors.Is(err, sendErr) {
			t.Errorf("error = %v, want wrapped %v", err, sendErr)
		}
	})

	t.Run("nil sender logs instead of failing", func(t *testing.T) {
		svc := NewNotificationsService(nil)

		if err := svc.SendTransactionNotification(context.Background(), tx, limits); err != nil {
			t.Errorf("SendTransactionNotification with nil sender: %v", err)
		}
	})
}

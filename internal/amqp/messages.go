package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"budgetanalyzer/internal/core"
	"budgetanalyzer/internal/services"
)

// LimitSnapshot is the spent/limit pair of one period at publish time.
// Decimal values travel as strings to keep them exact.
type LimitSnapshot struct {
	Spent string `json:"spent"`
	Limit string `json:"limit"`
}

// TransactionRecordedMessage carries a recorded spend and the resulting
// limits to the notification worker. It is a self-contained snapshot: the
// worker renders from it without re-reading storage, so the numbers shown
// are exactly the ones the orchestrator computed.
type TransactionRecordedMessage struct {
	TransactionID string        `json:"transaction_id"`
	Merchant      string        `json:"merchant"`
	Currency      string        `json:"currency"`
	Amount        string        `json:"amount"`
	Balance       string        `json:"balance"`
	OccurredAt    time.Time     `json:"occurred_at"`
	Today         LimitSnapshot `json:"today"`
	Month         LimitSnapshot `json:"month"`
	NextDay       LimitSnapshot `json:"next_day"`
	Timestamp     time.Time     `json:"timestamp"`
}

// NewTransactionRecordedMessage snapshots a transaction and its limits.
func NewTransactionRecordedMessage(tx core.Transaction, limits services.ResultingLimits) *TransactionRecordedMessage {
	return &TransactionRecordedMessage{
		TransactionID: tx.ID.String(),
		Merchant:      tx.Merchant,
		Currency:      tx.Amount.Currency,
		Amount:        tx.Amount.Value.String(),
		Balance:       tx.RemainingBalance.Value.String(),
		OccurredAt:    tx.OccurredAt,
		Today: LimitSnapshot{
			Spent: limits.TodayLimit.SpentAmount.Value.String(),
			Limit: limits.TodayLimit.LimitAmount.Value.String(),
		},
		Month: LimitSnapshot{
			Spent: limits.MonthLimit.SpentAmount.Value.String(),
			Limit: limits.MonthLimit.LimitAmount.Value.String(),
		},
		NextDay: LimitSnapshot{
			Spent: limits.NextDayCalculatedLimit.SpentAmount.Value.String(),
			Limit: limits.NextDayCalculatedLimit.LimitAmount.Value.String(),
		},
		Timestamp: time.Now(),
	}
}

// Transaction rebuilds the spend event carried by the message.
func (m *TransactionRecordedMessage) Transaction() (core.Transaction, error) {
	id, err := uuid.Parse(m.TransactionID)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse transaction id %q: %w", m.TransactionID, err)
	}
	amount, err := core.ParseAmount(m.Amount, m.Currency)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse amount: %w", err)
	}
	balance, err := core.ParseAmount(m.Balance, m.Currency)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse balance: %w", err)
	}

	return core.Transaction{
		ID:               id,
		Merchant:         m.Merchant,
		Amount:           amount,
		RemainingBalance: balance,
		OccurredAt:       m.OccurredAt,
	}, nil
}

// ResultingLimits rebuilds the limit snapshot carried by the message. Only
// the fields the notification renders are restored; period metadata stays
// behind in storage.
func (m *TransactionRecordedMessage) ResultingLimits() (services.ResultingLimits, error) {
	today, err := m.Today.amounts(m.Currency)
	if err != nil {
		return services.ResultingLimits{}, fmt.Errorf("today snapshot: %w", err)
	}
	month, err := m.Month.amounts(m.Currency)
	if err != nil {
		return services.ResultingLimits{}, fmt.Errorf("month snapshot: %w", err)
	}
	nextDay, err := m.NextDay.amounts(m.Currency)
	if err != nil {
		return services.ResultingLimits{}, fmt.Errorf("next day snapshot: %w", err)
	}

	return services.ResultingLimits{
		TodayLimit: core.LimitEntity{
			Timespan:    core.TimespanDay,
			SpentAmount: today[0],
			LimitAmount: today[1],
		},
		MonthLimit: core.LimitEntity{
			Timespan:    core.TimespanMonth,
			SpentAmount: month[0],
			LimitAmount: month[1],
		},
		NextDayCalculatedLimit: core.CalculatedDayLimit{
			SpentAmount: nextDay[0],
			LimitAmount: nextDay[1],
		},
	}, nil
}

func (s LimitSnapshot) amounts(currency string) ([2]core.Amount, error) {
	spent, err := core.ParseAmount(s.Spent, currency)
	if err != nil {
		return [2]core.Amount{}, fmt.Errorf("parse spent: %w", err)
	}
	limit, err := core.ParseAmount(s.Limit, currency)
	if err != nil {
		return [2]core.Amount{}, fmt.Errorf("parse limit: %w", err)
	}
	return [2]core.Amount{spent, limit}, nil
}

// ToJSON converts the message to JSON bytes
func (m *TransactionRecordedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionRecordedMessageFromJSON creates a message from JSON bytes
func TransactionRecordedMessageFromJSON(data []byte) (*TransactionRecordedMessage, error) {
	var msg TransactionRecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

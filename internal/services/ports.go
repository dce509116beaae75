package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"budgetanalyzer/internal/core"
)

// Ports for outbound adapters.
type (
	// LimitRepository is the persistence port the limits orchestrator runs
	// against. Implementations must keep at most one period per
	// (tag, currency, timespan, period start): Insert surfaces
	// core.ErrLimitExists when a concurrent caller won that race.
	LimitRepository interface {
		// FindActiveLimits returns every period for the tag and currency
		// whose validity window has not yet elapsed.
		FindActiveLimits(ctx context.Context, tag, currency string) ([]core.LimitEntity, error)

		// Insert persists a newly constructed period.
		Insert(ctx context.Context, limit core.LimitEntity) error

		// IncreaseSpentAmount adds delta to the spent amount of every listed
		// period in a single atomic operation. Concurrent calls compose
		// additively; a half-applied state must never be observable.
		IncreaseSpentAmount(ctx context.Context, ids []uuid.UUID, delta decimal.Decimal) error
	}

	// TransactionStore records spend events for history and notifications.
	TransactionStore interface {
		RecordTransaction(ctx context.Context, tx core.Transaction) error
	}

	// NotificationPublisher hands a recorded transaction and its resulting
	// limits to the asynchronous delivery channel.
	NotificationPublisher interface {
		PublishTransactionRecorded(ctx context.Context, tx core.Transaction, limits ResultingLimits) error
	}

	// MessageSender delivers a rendered notification text to its target chat.
	MessageSender interface {
		SendMessage(ctx context.Context, text string) error
	}
)

package core

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Transaction is a single spend event charged against the budget stream.
// RemainingBalance is the card balance reported by the upstream source and is
// carried through for notifications only; it plays no part in limit math.
type Transaction struct {
	ID               uuid.UUID
	Merchant         string
	Amount           Amount
	RemainingBalance Amount
	OccurredAt       time.Time
}

// NewTransaction creates a transaction occurring now.
func NewTransaction(merchant string, amount, remainingBalance Amount) Transaction {
	return Transaction{
		ID:               uuid.New(),
		Merchant:         merchant,
		Amount:           amount,
		RemainingBalance: remainingBalance,
		OccurredAt:       time.Now(),
	}
}

func (t Transaction) Validate() error {
	if len(strings.TrimSpace(t.Merchant)) == 0 {
		return ErrEmptyMerchant
	}
	if len(t.Merchant) > 200 {
		return errors.New("merchant too long (max 200 characters)")
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	return nil
}

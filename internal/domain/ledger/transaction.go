// Package ledger stores normalized transactions and reconciles new batches
// against what an owner already has.
package ledger

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/pennywise/internal/domain/categorization"
)

var ErrNotFound = errors.New("transaction not found")

// Direction of money movement relative to the account holder.
type Direction string

const (
	Debit  Direction = "debit"
	Credit Direction = "credit"
)

// Transaction is one ledger row. It is immutable once stored except for Category.
type Transaction struct {
	ID          uuid.UUID               `json:"id"`
	OwnerID     uuid.UUID               `json:"owner_id"`
	JobID       *uuid.UUID              `json:"job_id,omitempty"`
	Date        time.Time               `json:"date"`
	Amount      decimal.Decimal         `json:"amount"`
	Currency    string                  `json:"currency"`
	Direction   Direction               `json:"direction"`
	Description string                  `json:"description"`
	Merchant    string                  `json:"merchant"`
	Category    categorization.Category `json:"category"`
	Source      string                  `json:"source"`
	Fingerprint string                  `json:"fingerprint"`
	CreatedAt   time.Time               `json:"created_at"`
}

// IsDebit reports whether money left the account.
func (t Transaction) IsDebit() bool {
	return t.Direction == Debit
}

// AbsAmount returns the unsigned amount.
func (t Transaction) AbsAmount() decimal.Decimal {
	return t.Amount.Abs()
}

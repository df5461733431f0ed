package normalizer

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/pennywise/internal/domain/categorization"
	"github.com/FACorreiaa/pennywise/internal/domain/import/parser"
	"github.com/FACorreiaa/pennywise/internal/domain/ledger"
	"github.com/FACorreiaa/pennywise/pkg/money"
)

// Normalizer converts parsed rows to ledger transactions. It does no I/O;
// owner overrides arrive already compiled into the engine.
type Normalizer struct {
	engine    *categorization.Engine
	merchants *MerchantSanitizer
	currency  string
}

// New creates a normalizer that categorizes with engine.
func New(engine *categorization.Engine) *Normalizer {
	return &Normalizer{
		engine:    engine,
		merchants: NewMerchantSanitizer(),
		currency:  money.INR,
	}
}

// Normalize maps rows from source onto owner's ledger.
func (n *Normalizer) Normalize(ownerID uuid.UUID, source string, rows []parser.RawRow) []ledger.Transaction {
	txs := make([]ledger.Transaction, 0, len(rows))
	for _, row := range rows {
		txs = append(txs, n.normalizeRow(ownerID, source, row))
	}
	return txs
}

func (n *Normalizer) normalizeRow(ownerID uuid.UUID, source string, row parser.RawRow) ledger.Transaction {
	direction, amount := signed(row)
	merchant := n.merchants.Sanitize(row.Description).NormalizedName

	return ledger.Transaction{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		Date:        row.Date,
		Amount:      amount,
		Currency:    n.currency,
		Direction:   direction,
		Description: row.Description,
		Merchant:    merchant,
		Category:    n.categorize(merchant, row.Description, direction),
		Source:      source,
		Fingerprint: Fingerprint(ownerID, row.Date, amount, row.Description),
	}
}

// signed returns the direction and the amount signed by it: debits negative,
// credits positive.
func signed(row parser.RawRow) (ledger.Direction, decimal.Decimal) {
	abs := row.Amount.Abs()
	switch row.Direction {
	case parser.Debit:
		return ledger.Debit, abs.Neg()
	case parser.Credit:
		return ledger.Credit, abs
	}
	if row.Amount.IsNegative() {
		return ledger.Debit, abs.Neg()
	}
	return ledger.Credit, abs
}

func (n *Normalizer) categorize(merchant, description string, direction ledger.Direction) categorization.Category {
	if m := n.engine.Match(merchant + " " + description); m != nil {
		return m.Category
	}
	if direction == ledger.Credit {
		return categorization.Income
	}
	return categorization.Other
}

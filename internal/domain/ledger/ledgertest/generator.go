// Package ledgertest generates realistic ledgers for tests.
package ledgertest

import (
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/pennywise/internal/domain/categorization"
	"github.com/FACorreiaa/pennywise/internal/domain/ledger"
	"github.com/FACorreiaa/pennywise/pkg/money"
)

// Generator produces ledger transactions with gofakeit.
type Generator struct {
	faker *gofakeit.Faker
}

// New creates a generator. A fixed seed gives reproducible ledgers.
func New(seed int64) *Generator {
	return &Generator{faker: gofakeit.New(seed)}
}

var merchants = map[categorization.Category][]string{
	categorization.Food:          {"Swiggy", "Zomato", "Dominos", "Haldiram"},
	categorization.Groceries:     {"Bigbasket", "Dmart", "Blinkit", "Zepto"},
	categorization.Transport:     {"Uber", "Ola", "Rapido", "Irctc"},
	categorization.Shopping:      {"Amazon", "Flipkart", "Myntra", "Nykaa"},
	categorization.Bills:         {"Airtel", "Jio", "Tata Power", "Bescom"},
	categorization.Entertainment: {"Bookmyshow", "Pvr"},
	categorization.Health:        {"Apollo Pharmacy", "Practo", "Medplus"},
}

// Expense returns a debit dated between from and to.
func (g *Generator) Expense(ownerID uuid.UUID, from, to time.Time) ledger.Transaction {
	categories := []categorization.Category{
		categorization.Food, categorization.Groceries, categorization.Transport,
		categorization.Shopping, categorization.Bills, categorization.Entertainment,
		categorization.Health,
	}
	cat := categories[g.faker.Number(0, len(categories)-1)]
	names := merchants[cat]
	merchant := names[g.faker.Number(0, len(names)-1)]

	amount := decimal.NewFromFloat(g.faker.Float64Range(50, 5000)).Round(2)
	return g.build(ownerID, from, to, merchant, cat, ledger.Debit, amount.Neg())
}

// Income returns a credit dated between from and to.
func (g *Generator) Income(ownerID uuid.UUID, from, to time.Time) ledger.Transaction {
	amount := decimal.NewFromFloat(g.faker.Float64Range(30000, 150000)).Round(2)
	return g.build(ownerID, from, to, g.faker.Company(), categorization.Income, ledger.Credit, amount)
}

// Month returns one salary credit and n expenses in the month starting at start.
func (g *Generator) Month(ownerID uuid.UUID, start time.Time, n int) []ledger.Transaction {
	end := start.AddDate(0, 1, -1)
	txs := make([]ledger.Transaction, 0, n+1)
	txs = append(txs, g.Income(ownerID, start, end))
	for range n {
		txs = append(txs, g.Expense(ownerID, start, end))
	}
	return txs
}

func (g *Generator) build(ownerID uuid.UUID, from, to time.Time, merchant string, cat categorization.Category, dir ledger.Direction, amount decimal.Decimal) ledger.Transaction {
	date := g.faker.DateRange(from, to)
	date = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)

	return ledger.Transaction{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		Date:        date,
		Amount:      amount,
		Currency:    money.INR,
		Direction:   dir,
		Description: "UPI/" + g.faker.DigitN(12) + "/" + merchant,
		Merchant:    merchant,
		Category:    cat,
		Source:      "generated",
		Fingerprint: uuid.NewString(),
		CreatedAt:   date,
	}
}

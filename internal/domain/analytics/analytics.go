// Package analytics aggregates an owner's ledger window into spend figures.
package analytics

import (
	"cmp"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/pennywise/internal/domain/categorization"
	"github.com/FACorreiaa/pennywise/internal/domain/ledger"
)

const (
	DefaultWindowDays = 30
	MaxWindowDays     = 3650
	topCategoryLimit  = 5
)

var hundred = decimal.NewFromInt(100)

// CategoryTotal is the debit spend of one category.
type CategoryTotal struct {
	Category   categorization.Category `json:"category"`
	Amount     decimal.Decimal         `json:"amount"`
	Count      int                     `json:"count"`
	Percentage float64                 `json:"percentage"`
}

// MonthlyTrend is one calendar month of the window.
type MonthlyTrend struct {
	Month    string          `json:"month"`
	Income   decimal.Decimal `json:"income"`
	Expenses decimal.Decimal `json:"expenses"`
	Savings  decimal.Decimal `json:"savings"`
}

// Snapshot summarizes a window. It is derived on request and never stored.
type Snapshot struct {
	WindowDays         int             `json:"window_days"`
	From               time.Time       `json:"from"`
	To                 time.Time       `json:"to"`
	TotalIncome        decimal.Decimal `json:"total_income"`
	TotalExpenses      decimal.Decimal `json:"total_expenses"`
	NetSavings         decimal.Decimal `json:"net_savings"`
	SavingsRate        float64         `json:"savings_rate"`
	TransactionCount   int             `json:"transaction_count"`
	AverageTransaction decimal.Decimal `json:"average_transaction"`
	TopCategories      []CategoryTotal `json:"top_categories"`
	MonthlyTrends      []MonthlyTrend  `json:"monthly_trends"`
	// Categories holds every debit category, not only the top ones.
	Categories []CategoryTotal `json:"-"`
}

// Window is an inclusive range of calendar days ending today.
type Window struct {
	Days int
	From time.Time
	To   time.Time
}

// NormalizeDays returns days, or def when days is outside 1..MaxWindowDays.
func NormalizeDays(days, def int) int {
	if def <= 0 || def > MaxWindowDays {
		def = DefaultWindowDays
	}
	if days <= 0 || days > MaxWindowDays {
		return def
	}
	return days
}

// NewWindow returns the window of the last days calendar days up to now.
func NewWindow(days int, now time.Time) Window {
	days = NormalizeDays(days, DefaultWindowDays)
	to := truncateDay(now)
	return Window{
		Days: days,
		From: to.AddDate(0, 0, -(days - 1)),
		To:   to,
	}
}

// Contains reports whether t falls on a day inside the window.
func (w Window) Contains(t time.Time) bool {
	d := truncateDay(t)
	return !d.Before(w.From) && !d.After(w.To)
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Compute aggregates the transactions of txs that fall inside the window.
func Compute(txs []ledger.Transaction, days int, now time.Time) Snapshot {
	w := NewWindow(days, now)

	snap := Snapshot{
		WindowDays:         w.Days,
		From:               w.From,
		To:                 w.To,
		TotalIncome:        decimal.Zero,
		TotalExpenses:      decimal.Zero,
		NetSavings:         decimal.Zero,
		AverageTransaction: decimal.Zero,
		TopCategories:      []CategoryTotal{},
		Categories:         []CategoryTotal{},
	}

	months := monthBuckets(w)
	byCategory := make(map[categorization.Category]*CategoryTotal)
	debits := 0

	for _, tx := range txs {
		if !w.Contains(tx.Date) {
			continue
		}
		snap.TransactionCount++

		bucket := months[monthKey(tx.Date)]
		amount := tx.AbsAmount()

		if tx.IsDebit() {
			debits++
			snap.TotalExpenses = snap.TotalExpenses.Add(amount)
			bucket.Expenses = bucket.Expenses.Add(amount)

			ct, ok := byCategory[tx.Category]
			if !ok {
				ct = &CategoryTotal{Category: tx.Category, Amount: decimal.Zero}
				byCategory[tx.Category] = ct
			}
			ct.Amount = ct.Amount.Add(amount)
			ct.Count++
			continue
		}

		snap.TotalIncome = snap.TotalIncome.Add(amount)
		bucket.Income = bucket.Income.Add(amount)
	}

	snap.NetSavings = snap.TotalIncome.Sub(snap.TotalExpenses)
	if !snap.TotalIncome.IsZero() {
		snap.SavingsRate = snap.NetSavings.Div(snap.TotalIncome).InexactFloat64()
	}
	if debits > 0 {
		snap.AverageTransaction = snap.TotalExpenses.Div(decimal.NewFromInt(int64(debits))).Round(2)
	}

	snap.Categories = rankCategories(byCategory, snap.TotalExpenses)
	snap.TopCategories = snap.Categories[:min(topCategoryLimit, len(snap.Categories))]
	snap.MonthlyTrends = orderedTrends(months)
	return snap
}

func rankCategories(byCategory map[categorization.Category]*CategoryTotal, expenses decimal.Decimal) []CategoryTotal {
	out := make([]CategoryTotal, 0, len(byCategory))
	for _, ct := range byCategory {
		if !expenses.IsZero() {
			ct.Percentage = ct.Amount.Div(expenses).Mul(hundred).Round(2).InexactFloat64()
		}
		out = append(out, *ct)
	}
	slices.SortFunc(out, func(a, b CategoryTotal) int {
		if c := b.Amount.Cmp(a.Amount); c != 0 {
			return c
		}
		return cmp.Compare(a.Category, b.Category)
	})
	return out
}

func monthKey(t time.Time) string {
	return t.Format("2006-01")
}

// monthBuckets creates one zeroed bucket for every calendar month the window touches.
func monthBuckets(w Window) map[string]*MonthlyTrend {
	buckets := make(map[string]*MonthlyTrend)
	cursor := time.Date(w.From.Year(), w.From.Month(), 1, 0, 0, 0, 0, time.UTC)
	for !cursor.After(w.To) {
		key := monthKey(cursor)
		buckets[key] = &MonthlyTrend{Month: key, Income: decimal.Zero, Expenses: decimal.Zero, Savings: decimal.Zero}
		cursor = cursor.AddDate(0, 1, 0)
	}
	return buckets
}

func orderedTrends(buckets map[string]*MonthlyTrend) []MonthlyTrend {
	out := make([]MonthlyTrend, 0, len(buckets))
	for _, b := range buckets {
		b.Savings = b.Income.Sub(b.Expenses)
		out = append(out, *b)
	}
	slices.SortFunc(out, func(a, b MonthlyTrend) int { return cmp.Compare(a.Month, b.Month) })
	return out
}

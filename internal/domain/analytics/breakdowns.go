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
	DefaultMerchantLimit = 10
	MaxMerchantLimit     = 100
	DefaultMonths        = 6
	MaxMonths            = 120
)

// MerchantTotal is the debit spend at one merchant.
type MerchantTotal struct {
	Merchant   string          `json:"merchant"`
	TotalSpent decimal.Decimal `json:"total_spent"`
	Count      int             `json:"transaction_count"`
}

// DailySpend is the debit spend of one calendar day.
type DailySpend struct {
	Date   string          `json:"date"`
	Amount decimal.Decimal `json:"amount"`
	Count  int             `json:"count"`
}

// CategoryStats describes the debits of one category.
type CategoryStats struct {
	Category categorization.Category `json:"category"`
	Total    decimal.Decimal         `json:"total"`
	Average  decimal.Decimal         `json:"avg"`
	Min      decimal.Decimal         `json:"min"`
	Max      decimal.Decimal         `json:"max"`
	Count    int                     `json:"count"`
}

// NormalizeLimit returns limit, or DefaultMerchantLimit when it is outside
// 1..MaxMerchantLimit.
func NormalizeLimit(limit int) int {
	if limit <= 0 || limit > MaxMerchantLimit {
		return DefaultMerchantLimit
	}
	return limit
}

// NormalizeMonths returns months, or DefaultMonths when it is outside 1..MaxMonths.
func NormalizeMonths(months int) int {
	if months <= 0 || months > MaxMonths {
		return DefaultMonths
	}
	return months
}

// ComputeTopMerchants ranks merchants by debit spend inside the window.
// Debits without a merchant are left out.
func ComputeTopMerchants(txs []ledger.Transaction, days, limit int, now time.Time) []MerchantTotal {
	w := NewWindow(days, now)
	byMerchant := make(map[string]*MerchantTotal)
	for _, tx := range txs {
		if !tx.IsDebit() || tx.Merchant == "" || !w.Contains(tx.Date) {
			continue
		}
		mt, ok := byMerchant[tx.Merchant]
		if !ok {
			mt = &MerchantTotal{Merchant: tx.Merchant, TotalSpent: decimal.Zero}
			byMerchant[tx.Merchant] = mt
		}
		mt.TotalSpent = mt.TotalSpent.Add(tx.AbsAmount())
		mt.Count++
	}

	out := make([]MerchantTotal, 0, len(byMerchant))
	for _, mt := range byMerchant {
		out = append(out, *mt)
	}
	slices.SortFunc(out, func(a, b MerchantTotal) int {
		if c := b.TotalSpent.Cmp(a.TotalSpent); c != 0 {
			return c
		}
		return cmp.Compare(a.Merchant, b.Merchant)
	})
	return out[:min(NormalizeLimit(limit), len(out))]
}

// ComputeDailySpending returns one entry per day of the window, oldest
// first. Days without debits are present with a zero amount.
func ComputeDailySpending(txs []ledger.Transaction, days int, now time.Time) []DailySpend {
	w := NewWindow(days, now)
	out := make([]DailySpend, w.Days)
	for i := range out {
		out[i] = DailySpend{Date: w.From.AddDate(0, 0, i).Format(time.DateOnly), Amount: decimal.Zero}
	}

	for _, tx := range txs {
		if !tx.IsDebit() || !w.Contains(tx.Date) {
			continue
		}
		i := int(truncateDay(tx.Date).Sub(w.From).Hours() / 24)
		out[i].Amount = out[i].Amount.Add(tx.AbsAmount())
		out[i].Count++
	}
	return out
}

// ComputeCategoryStats returns total, average, min and max debit per
// category, largest total first.
func ComputeCategoryStats(txs []ledger.Transaction, days int, now time.Time) []CategoryStats {
	w := NewWindow(days, now)
	byCategory := make(map[categorization.Category]*CategoryStats)
	for _, tx := range txs {
		if !tx.IsDebit() || !w.Contains(tx.Date) {
			continue
		}
		amount := tx.AbsAmount()
		cs, ok := byCategory[tx.Category]
		if !ok {
			cs = &CategoryStats{Category: tx.Category, Total: decimal.Zero, Min: amount, Max: amount}
			byCategory[tx.Category] = cs
		}
		cs.Total = cs.Total.Add(amount)
		cs.Min = decimal.Min(cs.Min, amount)
		cs.Max = decimal.Max(cs.Max, amount)
		cs.Count++
	}

	out := make([]CategoryStats, 0, len(byCategory))
	for _, cs := range byCategory {
		cs.Average = cs.Total.Div(decimal.NewFromInt(int64(cs.Count))).Round(2)
		out = append(out, *cs)
	}
	slices.SortFunc(out, func(a, b CategoryStats) int {
		if c := b.Total.Cmp(a.Total); c != 0 {
			return c
		}
		return cmp.Compare(a.Category, b.Category)
	})
	return out
}

// MonthsWindow covers the last months calendar months, the current one
// included.
func MonthsWindow(months int, now time.Time) Window {
	months = NormalizeMonths(months)
	to := truncateDay(now)
	from := time.Date(to.Year(), to.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(months - 1), 0)
	return Window{
		Days: int(to.Sub(from).Hours()/24) + 1,
		From: from,
		To:   to,
	}
}

// ComputeIncomeVsExpenses returns income, expenses and savings for each of
// the last months calendar months, oldest first.
func ComputeIncomeVsExpenses(txs []ledger.Transaction, months int, now time.Time) []MonthlyTrend {
	w := MonthsWindow(months, now)
	buckets := monthBuckets(w)
	for _, tx := range txs {
		if !w.Contains(tx.Date) {
			continue
		}
		b := buckets[monthKey(tx.Date)]
		if tx.IsDebit() {
			b.Expenses = b.Expenses.Add(tx.AbsAmount())
		} else {
			b.Income = b.Income.Add(tx.AbsAmount())
		}
	}
	return orderedTrends(buckets)
}

package insights

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/pennywise/internal/domain/analytics"
	"github.com/FACorreiaa/pennywise/internal/domain/categorization"
	"github.com/FACorreiaa/pennywise/internal/domain/ledger"
	"github.com/FACorreiaa/pennywise/pkg/money"
)

const (
	anomalyFactor       = 2
	anomalyMinSamples   = 3
	lowSavingsRate      = 0.10
	healthySavingsRate  = 0.30
	dominantShare       = 40.0
	subscriptionMinHits = 2
)

// cadence is a recognised billing interval in days with its tolerance.
type cadence struct {
	name     string
	days     float64
	tolerant float64
}

var cadences = []cadence{
	{name: "week", days: 7, tolerant: 1},
	{name: "month", days: 30, tolerant: 5},
	{name: "quarter", days: 91, tolerant: 7},
	{name: "year", days: 365, tolerant: 15},
}

// Detect runs every detector and returns their findings ordered by priority.
// The result is deterministic for the same input.
func Detect(snap *analytics.Snapshot, txs []ledger.Transaction) []Insight {
	var found []Insight
	found = append(found, detectSubscriptions(txs)...)
	found = append(found, detectAnomalies(txs)...)
	found = append(found, detectSavingsRate(snap)...)
	found = append(found, detectTopCategory(snap)...)

	slices.SortStableFunc(found, func(a, b Insight) int {
		return b.Priority.rank() - a.Priority.rank()
	})
	return found
}

type recurringKey struct {
	merchant string
	amount   string
}

// detectSubscriptions finds debits repeating with the same merchant and
// amount at a regular cadence.
func detectSubscriptions(txs []ledger.Transaction) []Insight {
	groups := make(map[recurringKey][]ledger.Transaction)
	var order []recurringKey
	for _, tx := range txs {
		if !tx.IsDebit() || tx.Merchant == "" {
			continue
		}
		key := recurringKey{merchant: strings.ToUpper(tx.Merchant), amount: tx.AbsAmount().StringFixed(2)}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], tx)
	}
	slices.SortFunc(order, func(a, b recurringKey) int {
		if c := strings.Compare(a.merchant, b.merchant); c != 0 {
			return c
		}
		return strings.Compare(a.amount, b.amount)
	})

	var out []Insight
	for _, key := range order {
		group := groups[key]
		if len(group) < subscriptionMinHits {
			continue
		}
		slices.SortFunc(group, func(a, b ledger.Transaction) int { return a.Date.Compare(b.Date) })

		c, ok := regularCadence(group)
		if !ok {
			continue
		}
		first := group[0]
		out = append(out, Insight{
			Kind:     KindSubscription,
			Priority: PriorityMedium,
			Category: first.Category,
			Title:    fmt.Sprintf("Recurring payment to %s", first.Merchant),
			Description: fmt.Sprintf("You paid %s to %s %d times, about once a %s. Check that you still use it.",
				money.Format(first.AbsAmount(), first.Currency), first.Merchant, len(group), c.name),
		})
	}
	return out
}

// regularCadence reports whether every gap between consecutive payments fits
// the same cadence.
func regularCadence(sorted []ledger.Transaction) (cadence, bool) {
	for _, c := range cadences {
		regular := true
		for i := 1; i < len(sorted); i++ {
			gap := sorted[i].Date.Sub(sorted[i-1].Date).Hours() / 24
			if math.Abs(gap-c.days) > c.tolerant {
				regular = false
				break
			}
		}
		if regular {
			return c, true
		}
	}
	return cadence{}, false
}

// detectAnomalies flags, per category, the largest debit above twice the
// category average once the category has enough samples.
func detectAnomalies(txs []ledger.Transaction) []Insight {
	byCategory := make(map[categorization.Category][]ledger.Transaction)
	for _, tx := range txs {
		if tx.IsDebit() {
			byCategory[tx.Category] = append(byCategory[tx.Category], tx)
		}
	}

	categories := make([]categorization.Category, 0, len(byCategory))
	for c := range byCategory {
		categories = append(categories, c)
	}
	slices.Sort(categories)

	var out []Insight
	for _, c := range categories {
		group := byCategory[c]
		if len(group) < anomalyMinSamples {
			continue
		}

		total := decimal.Zero
		for _, tx := range group {
			total = total.Add(tx.AbsAmount())
		}
		avg := total.Div(decimal.NewFromInt(int64(len(group))))
		limit := avg.Mul(decimal.NewFromInt(anomalyFactor))

		var worst *ledger.Transaction
		for i := range group {
			if group[i].AbsAmount().GreaterThan(limit) && (worst == nil || group[i].AbsAmount().GreaterThan(worst.AbsAmount())) {
				worst = &group[i]
			}
		}
		if worst == nil {
			continue
		}

		out = append(out, Insight{
			Kind:     KindAnomaly,
			Priority: PriorityHigh,
			Category: c,
			Title:    fmt.Sprintf("Unusual %s expense", c),
			Description: fmt.Sprintf("%s at %s on %s is more than twice your usual %s spend of %s.",
				money.Format(worst.AbsAmount(), worst.Currency), worst.Merchant, worst.Date.Format("02 Jan"),
				c, money.Format(avg, worst.Currency)),
		})
	}
	return out
}

func detectSavingsRate(snap *analytics.Snapshot) []Insight {
	if snap == nil || snap.TransactionCount == 0 {
		return nil
	}

	pct := fmt.Sprintf("%.0f%%", snap.SavingsRate*100)
	switch {
	case snap.TotalIncome.IsZero():
		return []Insight{{
			Kind:        KindSavingsRate,
			Priority:    PriorityMedium,
			Title:       "No income recorded",
			Description: fmt.Sprintf("You spent %s in the last %d days with no income in this period.", money.Format(snap.TotalExpenses, money.INR), snap.WindowDays),
		}}
	case snap.SavingsRate < 0:
		return []Insight{{
			Kind:        KindSavingsRate,
			Priority:    PriorityHigh,
			Title:       "Spending exceeds income",
			Description: fmt.Sprintf("You spent %s more than you earned in the last %d days.", money.Format(snap.NetSavings.Abs(), money.INR), snap.WindowDays),
		}}
	case snap.SavingsRate < lowSavingsRate:
		return []Insight{{
			Kind:        KindSavingsRate,
			Priority:    PriorityMedium,
			Title:       "Low savings rate",
			Description: fmt.Sprintf("You saved %s of your income. Aim for at least 10%%.", pct),
		}}
	case snap.SavingsRate >= healthySavingsRate:
		return []Insight{{
			Kind:        KindSavingsRate,
			Priority:    PriorityLow,
			Title:       "Healthy savings",
			Description: fmt.Sprintf("You saved %s of your income in the last %d days.", pct, snap.WindowDays),
		}}
	}
	return nil
}

func detectTopCategory(snap *analytics.Snapshot) []Insight {
	if snap == nil || len(snap.TopCategories) == 0 {
		return nil
	}
	top := snap.TopCategories[0]

	priority := PriorityLow
	if top.Percentage >= dominantShare {
		priority = PriorityMedium
	}
	return []Insight{{
		Kind:     KindTopCategory,
		Priority: priority,
		Category: top.Category,
		Title:    fmt.Sprintf("Most spent on %s", top.Category),
		Description: fmt.Sprintf("%s went to %s, %.0f%% of your spending.",
			money.Format(top.Amount, money.INR), top.Category, top.Percentage),
	}}
}

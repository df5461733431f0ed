package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/pennywise/internal/domain/categorization"
	"github.com/FACorreiaa/pennywise/internal/domain/ledger"
	"github.com/FACorreiaa/pennywise/internal/domain/ledger/ledgertest"
)

var now = time.Date(2024, 5, 20, 18, 30, 0, 0, time.UTC)

func tx(daysAgo int, amount string, cat categorization.Category) ledger.Transaction {
	d := decimal.RequireFromString(amount)
	dir := ledger.Credit
	if d.IsNegative() {
		dir = ledger.Debit
	}
	return ledger.Transaction{
		ID:          uuid.New(),
		Date:        truncateDay(now).AddDate(0, 0, -daysAgo),
		Amount:      d,
		Direction:   dir,
		Category:    cat,
		Fingerprint: uuid.NewString(),
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestCompute_Empty(t *testing.T) {
	snap := Compute(nil, 30, now)

	assert.True(t, snap.TotalIncome.IsZero())
	assert.True(t, snap.TotalExpenses.IsZero())
	assert.True(t, snap.NetSavings.IsZero())
	assert.Zero(t, snap.SavingsRate)
	assert.Zero(t, snap.TransactionCount)
	assert.True(t, snap.AverageTransaction.IsZero())
	assert.Empty(t, snap.TopCategories)
	assert.NotNil(t, snap.TopCategories)
	for _, m := range snap.MonthlyTrends {
		assert.True(t, m.Income.IsZero())
		assert.True(t, m.Expenses.IsZero())
	}
}

func TestCompute_Totals(t *testing.T) {
	txs := []ledger.Transaction{
		tx(1, "50000", categorization.Income),
		tx(2, "-12000", categorization.Bills),
		tx(3, "-3000", categorization.Food),
		tx(4, "-5000", categorization.Shopping),
		tx(40, "-99999", categorization.Shopping), // outside the window
	}

	snap := Compute(txs, 30, now)

	assert.True(t, dec("50000").Equal(snap.TotalIncome))
	assert.True(t, dec("20000").Equal(snap.TotalExpenses))
	assert.True(t, dec("30000").Equal(snap.NetSavings))
	assert.InDelta(t, 0.6, snap.SavingsRate, 1e-9)
	assert.Equal(t, 4, snap.TransactionCount)
	assert.True(t, dec("6666.67").Equal(snap.AverageTransaction), "avg %s", snap.AverageTransaction)

	require.Len(t, snap.TopCategories, 3)
	assert.Equal(t, categorization.Bills, snap.TopCategories[0].Category)
	assert.InDelta(t, 60.0, snap.TopCategories[0].Percentage, 1e-9)
	assert.Equal(t, categorization.Shopping, snap.TopCategories[1].Category)
	assert.Equal(t, categorization.Food, snap.TopCategories[2].Category)
}

func TestCompute_SavingsRateWithoutIncome(t *testing.T) {
	snap := Compute([]ledger.Transaction{tx(1, "-500", categorization.Food)}, 30, now)

	assert.Zero(t, snap.SavingsRate)
	assert.True(t, dec("-500").Equal(snap.NetSavings))
}

func TestCompute_NegativeSavingsRate(t *testing.T) {
	snap := Compute([]ledger.Transaction{
		tx(1, "1000", categorization.Income),
		tx(2, "-1500", categorization.Shopping),
	}, 30, now)

	assert.InDelta(t, -0.5, snap.SavingsRate, 1e-9)
}

func TestCompute_SavingsRateIsExactRatio(t *testing.T) {
	snap := Compute([]ledger.Transaction{
		tx(1, "3000", categorization.Income),
		tx(2, "-1000", categorization.Food),
	}, 30, now)

	assert.InDelta(t, 2.0/3.0, snap.SavingsRate, 1e-12)
	assert.Equal(t, snap.NetSavings.Div(snap.TotalIncome).InexactFloat64(), snap.SavingsRate)
}

func TestCompute_TopCategoriesRankingAndLimit(t *testing.T) {
	txs := []ledger.Transaction{
		tx(1, "-100", categorization.Transport),
		tx(1, "-100", categorization.Food),
		tx(1, "-300", categorization.Bills),
		tx(1, "-50", categorization.Health),
		tx(1, "-40", categorization.Education),
		tx(1, "-30", categorization.Entertainment),
		tx(1, "-20", categorization.Groceries),
	}

	snap := Compute(txs, 30, now)

	require.Len(t, snap.TopCategories, 5)
	assert.Len(t, snap.Categories, 7)
	got := make([]categorization.Category, 0, 5)
	for _, c := range snap.TopCategories {
		got = append(got, c.Category)
	}
	assert.Equal(t, []categorization.Category{
		categorization.Bills, categorization.Food, categorization.Transport,
		categorization.Health, categorization.Education,
	}, got)
}

func TestCompute_MonthlyTrends(t *testing.T) {
	txs := []ledger.Transaction{
		tx(0, "40000", categorization.Income),  // May
		tx(25, "-1000", categorization.Food),   // April
		tx(60, "-2000", categorization.Bills),  // March
		tx(100, "-9000", categorization.Bills), // outside
	}

	// 90 days back from 20 May starts on 21 February.
	snap := Compute(txs, 90, now)

	require.Len(t, snap.MonthlyTrends, 4)
	assert.Equal(t, "2024-02", snap.MonthlyTrends[0].Month)
	assert.True(t, snap.MonthlyTrends[0].Expenses.IsZero())
	assert.Equal(t, "2024-03", snap.MonthlyTrends[1].Month)
	assert.True(t, dec("-2000").Equal(snap.MonthlyTrends[1].Savings))
	assert.True(t, dec("1000").Equal(snap.MonthlyTrends[2].Expenses))
	assert.Equal(t, "2024-05", snap.MonthlyTrends[3].Month)
	assert.True(t, dec("40000").Equal(snap.MonthlyTrends[3].Income))
}

func TestNormalizeDays(t *testing.T) {
	tests := []struct {
		days, def, want int
	}{
		{7, 30, 7},
		{0, 30, 30},
		{-5, 30, 30},
		{3651, 30, 30},
		{3650, 30, 3650},
		{0, 0, DefaultWindowDays},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeDays(tt.days, tt.def))
	}
}

func TestNewWindow(t *testing.T) {
	w := NewWindow(7, now)
	assert.Equal(t, time.Date(2024, 5, 14, 0, 0, 0, 0, time.UTC), w.From)
	assert.Equal(t, time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC), w.To)
	assert.True(t, w.Contains(now))
	assert.False(t, w.Contains(w.From.Add(-time.Second)))
}

func TestService_Summary(t *testing.T) {
	ctx := context.Background()
	owner := uuid.New()
	store := ledger.NewMemoryStore()

	gen := ledgertest.New(7)
	_, err := store.InsertNew(ctx, gen.Month(owner, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), 25))
	require.NoError(t, err)

	svc := NewService(store, 30)
	svc.now = func() time.Time { return time.Date(2024, 5, 31, 12, 0, 0, 0, time.UTC) }

	snap, err := svc.Summary(ctx, owner, 0)
	require.NoError(t, err)
	assert.Equal(t, 30, snap.WindowDays)
	assert.LessOrEqual(t, snap.TransactionCount, 26)
	assert.True(t, snap.TotalIncome.Sub(snap.TotalExpenses).Equal(snap.NetSavings))

	other, err := svc.Summary(ctx, uuid.New(), 30)
	require.NoError(t, err)
	assert.Zero(t, other.TransactionCount)
}

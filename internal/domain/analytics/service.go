package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/pennywise/internal/domain/ledger"
)

// WindowReader loads the owner's transactions dated within [from, to].
type WindowReader interface {
	Window(ctx context.Context, ownerID uuid.UUID, from, to time.Time) ([]ledger.Transaction, error)
}

// Service builds snapshots from the stored ledger.
type Service struct {
	ledger      WindowReader
	defaultDays int
	now         func() time.Time
}

// NewService creates an analytics service. defaultDays applies when a caller
// passes an out-of-range window.
func NewService(reader WindowReader, defaultDays int) *Service {
	return &Service{
		ledger:      reader,
		defaultDays: NormalizeDays(defaultDays, DefaultWindowDays),
		now:         time.Now,
	}
}

// Summary computes the owner's snapshot for the last days days.
func (s *Service) Summary(ctx context.Context, ownerID uuid.UUID, days int) (*Snapshot, error) {
	snap, _, err := s.SummaryWithTransactions(ctx, ownerID, days)
	return snap, err
}

// SummaryWithTransactions also returns the window's transactions, newest first.
func (s *Service) SummaryWithTransactions(ctx context.Context, ownerID uuid.UUID, days int) (*Snapshot, []ledger.Transaction, error) {
	now := s.now()
	w := NewWindow(NormalizeDays(days, s.defaultDays), now)

	txs, err := s.window(ctx, ownerID, w)
	if err != nil {
		return nil, nil, err
	}

	snap := Compute(txs, w.Days, now)
	return &snap, txs, nil
}

func (s *Service) window(ctx context.Context, ownerID uuid.UUID, w Window) ([]ledger.Transaction, error) {
	txs, err := s.ledger.Window(ctx, ownerID, w.From, w.To)
	if err != nil {
		return nil, fmt.Errorf("failed to load analytics window: %w", err)
	}
	return txs, nil
}

// TopMerchants ranks the owner's merchants by debit spend.
func (s *Service) TopMerchants(ctx context.Context, ownerID uuid.UUID, days, limit int) ([]MerchantTotal, error) {
	now := s.now()
	w := NewWindow(NormalizeDays(days, s.defaultDays), now)
	txs, err := s.window(ctx, ownerID, w)
	if err != nil {
		return nil, err
	}
	return ComputeTopMerchants(txs, w.Days, limit, now), nil
}

// DailySpending returns the owner's per-day debit series.
func (s *Service) DailySpending(ctx context.Context, ownerID uuid.UUID, days int) ([]DailySpend, error) {
	now := s.now()
	w := NewWindow(NormalizeDays(days, s.defaultDays), now)
	txs, err := s.window(ctx, ownerID, w)
	if err != nil {
		return nil, err
	}
	return ComputeDailySpending(txs, w.Days, now), nil
}

// CategoryStats returns per-category debit statistics.
func (s *Service) CategoryStats(ctx context.Context, ownerID uuid.UUID, days int) ([]CategoryStats, error) {
	now := s.now()
	w := NewWindow(NormalizeDays(days, s.defaultDays), now)
	txs, err := s.window(ctx, ownerID, w)
	if err != nil {
		return nil, err
	}
	return ComputeCategoryStats(txs, w.Days, now), nil
}

// IncomeVsExpenses returns the owner's monthly income and expenses.
func (s *Service) IncomeVsExpenses(ctx context.Context, ownerID uuid.UUID, months int) ([]MonthlyTrend, error) {
	now := s.now()
	txs, err := s.window(ctx, ownerID, MonthsWindow(months, now))
	if err != nil {
		return nil, err
	}
	return ComputeIncomeVsExpenses(txs, months, now), nil
}

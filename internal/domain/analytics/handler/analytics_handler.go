package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/FACorreiaa/pennywise/internal/domain/analytics"
	"github.com/FACorreiaa/pennywise/pkg/interceptors"
	"github.com/FACorreiaa/pennywise/pkg/respond"
)

// Analyzer produces an owner's snapshot and its breakdowns.
type Analyzer interface {
	Summary(ctx context.Context, ownerID uuid.UUID, days int) (*analytics.Snapshot, error)
	TopMerchants(ctx context.Context, ownerID uuid.UUID, days, limit int) ([]analytics.MerchantTotal, error)
	DailySpending(ctx context.Context, ownerID uuid.UUID, days int) ([]analytics.DailySpend, error)
	CategoryStats(ctx context.Context, ownerID uuid.UUID, days int) ([]analytics.CategoryStats, error)
	IncomeVsExpenses(ctx context.Context, ownerID uuid.UUID, months int) ([]analytics.MonthlyTrend, error)
}

// AnalyticsHandler serves the /analytics endpoints.
type AnalyticsHandler struct {
	svc    Analyzer
	logger *slog.Logger
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(svc Analyzer, logger *slog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{svc: svc, logger: logger}
}

// Summary returns the snapshot for ?days=N. Out-of-range values fall back to
// the default window; text that is not a number is rejected.
func (h *AnalyticsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	owner, ok := interceptors.OwnerFromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	days, err := DaysParam(r)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "days must be an integer")
		return
	}

	snap, err := h.svc.Summary(r.Context(), owner, days)
	if err != nil {
		h.logger.Error("failed to compute analytics summary", slog.Any("error", err))
		respond.Error(w, http.StatusInternalServerError, "failed to compute summary")
		return
	}
	respond.JSON(w, http.StatusOK, snap)
}

// TopMerchants handles GET /analytics/top-merchants?days=N&limit=M.
func (h *AnalyticsHandler) TopMerchants(w http.ResponseWriter, r *http.Request) {
	owner, days, ok := h.ownerAndDays(w, r)
	if !ok {
		return
	}
	limit, err := IntParam(r, "limit")
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "limit must be an integer")
		return
	}

	top, err := h.svc.TopMerchants(r.Context(), owner, days, limit)
	if err != nil {
		h.logger.Error("failed to compute top merchants", slog.Any("error", err))
		respond.Error(w, http.StatusInternalServerError, "failed to compute top merchants")
		return
	}
	respond.JSON(w, http.StatusOK, top)
}

// DailySpending handles GET /analytics/daily-spending?days=N.
func (h *AnalyticsHandler) DailySpending(w http.ResponseWriter, r *http.Request) {
	owner, days, ok := h.ownerAndDays(w, r)
	if !ok {
		return
	}

	series, err := h.svc.DailySpending(r.Context(), owner, days)
	if err != nil {
		h.logger.Error("failed to compute daily spending", slog.Any("error", err))
		respond.Error(w, http.StatusInternalServerError, "failed to compute daily spending")
		return
	}
	respond.JSON(w, http.StatusOK, series)
}

// SpendingByCategory handles GET /analytics/spending-by-category?days=N.
func (h *AnalyticsHandler) SpendingByCategory(w http.ResponseWriter, r *http.Request) {
	owner, days, ok := h.ownerAndDays(w, r)
	if !ok {
		return
	}

	stats, err := h.svc.CategoryStats(r.Context(), owner, days)
	if err != nil {
		h.logger.Error("failed to compute category statistics", slog.Any("error", err))
		respond.Error(w, http.StatusInternalServerError, "failed to compute spending by category")
		return
	}
	respond.JSON(w, http.StatusOK, stats)
}

// IncomeVsExpenses handles GET /analytics/income-vs-expenses?months=N.
func (h *AnalyticsHandler) IncomeVsExpenses(w http.ResponseWriter, r *http.Request) {
	owner, ok := interceptors.OwnerFromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	months, err := IntParam(r, "months")
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "months must be an integer")
		return
	}

	trends, err := h.svc.IncomeVsExpenses(r.Context(), owner, months)
	if err != nil {
		h.logger.Error("failed to compute income vs expenses", slog.Any("error", err))
		respond.Error(w, http.StatusInternalServerError, "failed to compute income vs expenses")
		return
	}
	respond.JSON(w, http.StatusOK, trends)
}

func (h *AnalyticsHandler) ownerAndDays(w http.ResponseWriter, r *http.Request) (uuid.UUID, int, bool) {
	owner, ok := interceptors.OwnerFromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthorized")
		return uuid.Nil, 0, false
	}
	days, err := DaysParam(r)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "days must be an integer")
		return uuid.Nil, 0, false
	}
	return owner, days, true
}

// DaysParam reads ?days. A missing value is 0, which selects the default window.
func DaysParam(r *http.Request) (int, error) {
	return IntParam(r, "days")
}

// IntParam reads an integer query parameter. A missing value is 0.
func IntParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gocarina/gocsv"
	"github.com/google/uuid"

	"github.com/FACorreiaa/pennywise/internal/domain/categorization"
	"github.com/FACorreiaa/pennywise/internal/domain/ledger"
	"github.com/FACorreiaa/pennywise/pkg/interceptors"
	"github.com/FACorreiaa/pennywise/pkg/respond"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// Store is the part of the ledger the handler reads and corrects.
type Store interface {
	List(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]ledger.Transaction, error)
	UpdateCategory(ctx context.Context, ownerID, id uuid.UUID, category categorization.Category) (*ledger.Transaction, error)
}

// OverrideSaver remembers a user's category correction for later imports.
type OverrideSaver interface {
	Save(ctx context.Context, ownerID uuid.UUID, pattern string, category categorization.Category) error
}

// LedgerHandler serves the transaction list and category corrections.
type LedgerHandler struct {
	store     Store
	overrides OverrideSaver
	logger    *slog.Logger
}

// NewLedgerHandler creates a new ledger handler
func NewLedgerHandler(store Store, overrides OverrideSaver, logger *slog.Logger) *LedgerHandler {
	return &LedgerHandler{
		store:     store,
		overrides: overrides,
		logger:    logger,
	}
}

type csvTransaction struct {
	Date        string `csv:"date"`
	Description string `csv:"description"`
	Merchant    string `csv:"merchant"`
	Category    string `csv:"category"`
	Direction   string `csv:"direction"`
	Amount      string `csv:"amount"`
	Currency    string `csv:"currency"`
	Source      string `csv:"source"`
}

// ListTransactions returns a page of the ledger, or the page as CSV when format=csv.
func (h *LedgerHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	owner, ok := interceptors.OwnerFromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit, err := queryInt(r, "limit", defaultPageSize)
	if err != nil || limit < 1 {
		respond.Error(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	limit = min(limit, maxPageSize)

	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		respond.Error(w, http.StatusBadRequest, "offset must be zero or positive")
		return
	}

	txs, err := h.store.List(r.Context(), owner, limit, offset)
	if err != nil {
		h.logger.Error("failed to list transactions", slog.Any("error", err))
		respond.Error(w, http.StatusInternalServerError, "failed to list transactions")
		return
	}

	if strings.EqualFold(r.URL.Query().Get("format"), "csv") {
		h.writeCSV(w, txs)
		return
	}
	respond.JSON(w, http.StatusOK, txs)
}

func (h *LedgerHandler) writeCSV(w http.ResponseWriter, txs []ledger.Transaction) {
	rows := make([]csvTransaction, 0, len(txs))
	for _, tx := range txs {
		rows = append(rows, csvTransaction{
			Date:        tx.Date.Format("2006-01-02"),
			Description: tx.Description,
			Merchant:    tx.Merchant,
			Category:    string(tx.Category),
			Direction:   string(tx.Direction),
			Amount:      tx.Amount.StringFixed(2),
			Currency:    tx.Currency,
			Source:      tx.Source,
		})
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="transactions.csv"`)
	if err := gocsv.Marshal(rows, w); err != nil {
		h.logger.Error("failed to write transactions csv", slog.Any("error", err))
	}
}

type updateCategoryRequest struct {
	Category string `json:"category"`
}

// UpdateCategory corrects the category of one transaction and remembers the
// correction for the merchant.
func (h *LedgerHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	owner, ok := interceptors.OwnerFromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid transaction id")
		return
	}

	var req updateCategoryRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	category, ok := categorization.Parse(req.Category)
	if !ok {
		respond.Error(w, http.StatusBadRequest, "unknown category")
		return
	}

	tx, err := h.store.UpdateCategory(r.Context(), owner, id, category)
	if errors.Is(err, ledger.ErrNotFound) {
		respond.Error(w, http.StatusNotFound, "transaction not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to update category", slog.Any("error", err))
		respond.Error(w, http.StatusInternalServerError, "failed to update category")
		return
	}

	if pattern := strings.ToUpper(strings.TrimSpace(tx.Merchant)); pattern != "" {
		if err := h.overrides.Save(r.Context(), owner, pattern, category); err != nil {
			h.logger.Warn("failed to save merchant override",
				slog.String("pattern", pattern),
				slog.Any("error", err),
			)
		}
	}

	respond.JSON(w, http.StatusOK, tx)
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

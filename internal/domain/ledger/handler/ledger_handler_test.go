package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/pennywise/internal/domain/categorization"
	"github.com/FACorreiaa/pennywise/internal/domain/ledger"
	"github.com/FACorreiaa/pennywise/pkg/interceptors"
)

type recordingOverrides struct {
	mu    sync.Mutex
	saved map[string]categorization.Category
}

func (o *recordingOverrides) Save(_ context.Context, _ uuid.UUID, pattern string, c categorization.Category) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.saved == nil {
		o.saved = make(map[string]categorization.Category)
	}
	o.saved[pattern] = c
	return nil
}

func setup(t *testing.T) (*ledger.MemoryStore, *recordingOverrides, http.Handler, uuid.UUID) {
	t.Helper()

	store := ledger.NewMemoryStore()
	overrides := &recordingOverrides{}
	h := NewLedgerHandler(store, overrides, slog.New(slog.NewTextHandler(io.Discard, nil)))

	r := chi.NewRouter()
	r.Get("/transactions", h.ListTransactions)
	r.Patch("/transactions/{id}/category", h.UpdateCategory)

	return store, overrides, r, uuid.New()
}

func seed(t *testing.T, store *ledger.MemoryStore, owner uuid.UUID) []ledger.Transaction {
	t.Helper()
	day := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	added, err := store.InsertNew(context.Background(), []ledger.Transaction{
		{OwnerID: owner, Date: day, Amount: decimal.RequireFromString("-349.00"), Currency: "INR", Direction: ledger.Debit,
			Description: "UPI-SHARMA TUTORIALS-123", Merchant: "Sharma Tutorials", Category: categorization.Other, Source: "may.pdf", Fingerprint: "a"},
		{OwnerID: owner, Date: day.AddDate(0, 0, -1), Amount: decimal.RequireFromString("85000"), Currency: "INR", Direction: ledger.Credit,
			Description: "NEFT SALARY ACME", Merchant: "Acme", Category: categorization.Income, Source: "may.pdf", Fingerprint: "b"},
	})
	require.NoError(t, err)
	return added
}

func authed(req *http.Request, owner uuid.UUID) *http.Request {
	return req.WithContext(interceptors.WithUserID(req.Context(), owner.String()))
}

func TestListTransactions_JSON(t *testing.T) {
	store, _, router, owner := setup(t)
	seed(t, store, owner)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodGet, "/transactions?limit=1", nil), owner))

	require.Equal(t, http.StatusOK, rec.Code)
	var got []ledger.Transaction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "Sharma Tutorials", got[0].Merchant)
}

func TestListTransactions_CSV(t *testing.T) {
	store, _, router, owner := setup(t)
	seed(t, store, owner)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodGet, "/transactions?format=csv", nil), owner))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "date,description,merchant,category,direction,amount,currency,source", lines[0])
	assert.Contains(t, lines[1], "2024-05-10")
	assert.Contains(t, lines[1], "-349.00")
}

func TestListTransactions_BadParams(t *testing.T) {
	_, _, router, owner := setup(t)

	for _, q := range []string{"limit=0", "limit=abc", "offset=-1"} {
		t.Run(q, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodGet, "/transactions?"+q, nil), owner))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestListTransactions_Unauthenticated(t *testing.T) {
	_, _, router, _ := setup(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/transactions", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUpdateCategory(t *testing.T) {
	store, overrides, router, owner := setup(t)
	txs := seed(t, store, owner)
	target := txs[0]

	body := strings.NewReader(`{"category":"education"}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodPatch, "/transactions/"+target.ID.String()+"/category", body), owner))

	require.Equal(t, http.StatusOK, rec.Code)
	var got ledger.Transaction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, categorization.Education, got.Category)
	assert.Equal(t, target.Fingerprint, got.Fingerprint)
	assert.Equal(t, categorization.Education, overrides.saved["SHARMA TUTORIALS"])
}

func TestUpdateCategory_Errors(t *testing.T) {
	store, _, router, owner := setup(t)
	txs := seed(t, store, owner)

	tests := []struct {
		name string
		id   string
		body string
		want int
	}{
		{"bad id", "not-a-uuid", `{"category":"food"}`, http.StatusBadRequest},
		{"bad body", txs[0].ID.String(), `{`, http.StatusBadRequest},
		{"unknown category", txs[0].ID.String(), `{"category":"crypto"}`, http.StatusBadRequest},
		{"missing transaction", uuid.NewString(), `{"category":"food"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPatch, "/transactions/"+tt.id+"/category", strings.NewReader(tt.body))
			router.ServeHTTP(rec, authed(req, owner))
			assert.Equal(t, tt.want, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error":true`)
		})
	}
}

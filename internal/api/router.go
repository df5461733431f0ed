// Package api assembles the HTTP surface: middleware chain and routes.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	analyticshandler "github.com/FACorreiaa/pennywise/internal/domain/analytics/handler"
	importhandler "github.com/FACorreiaa/pennywise/internal/domain/import/handler"
	insightshandler "github.com/FACorreiaa/pennywise/internal/domain/insights/handler"
	ledgerhandler "github.com/FACorreiaa/pennywise/internal/domain/ledger/handler"
	"github.com/FACorreiaa/pennywise/pkg/interceptors"
	"github.com/FACorreiaa/pennywise/pkg/metrics"
	"github.com/FACorreiaa/pennywise/pkg/respond"
)

// Handlers are the feature handlers mounted by the router.
type Handlers struct {
	Import    *importhandler.ImportHandler
	Ledger    *ledgerhandler.LedgerHandler
	Analytics *analyticshandler.AnalyticsHandler
	Insights  *insightshandler.InsightsHandler
}

// Options configure the middleware chain.
type Options struct {
	JWTSecret          string
	CORSOrigins        []string
	RateLimitPerSecond int
	RateLimitBurst     int
}

// NewRouter builds the HTTP handler. Everything except /healthz requires a
// bearer token; the rate limit is applied per owner after authentication.
func NewRouter(h Handlers, opts Options, logger *slog.Logger, m *metrics.Metrics) http.Handler {
	r := chi.NewRouter()
	r.Use(interceptors.RequestID)
	r.Use(interceptors.Recovery(logger))
	r.Use(interceptors.Tracing)
	r.Use(interceptors.Logging(logger, m))
	r.Use(interceptors.CORS(opts.CORSOrigins))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		respond.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	limiter := interceptors.NewRateLimiter(opts.RateLimitPerSecond, opts.RateLimitBurst)

	r.Group(func(r chi.Router) {
		r.Use(interceptors.Auth(opts.JWTSecret))
		r.Use(limiter.Middleware)

		r.Post("/bank-statements/upload", h.Import.UploadStatement)
		r.Post("/email/fetch-statements", h.Import.FetchStatements)
		r.Get("/ingestion-jobs/{id}", h.Import.GetJob)

		r.Get("/transactions", h.Ledger.ListTransactions)
		r.Patch("/transactions/{id}/category", h.Ledger.UpdateCategory)

		r.Get("/analytics/summary", h.Analytics.Summary)
		r.Get("/analytics/top-merchants", h.Analytics.TopMerchants)
		r.Get("/analytics/daily-spending", h.Analytics.DailySpending)
		r.Get("/analytics/spending-by-category", h.Analytics.SpendingByCategory)
		r.Get("/analytics/income-vs-expenses", h.Analytics.IncomeVsExpenses)

		r.Get("/ai/insights", h.Insights.GetInsights)
		r.Post("/ai/chat", h.Insights.Chat)
		r.Get("/ai/subscriptions", h.Insights.Subscriptions)
		r.Post("/ai/detect-anomalies", h.Insights.DetectAnomalies)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		respond.Error(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		respond.Error(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return r
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/FACorreiaa/pennywise/internal/api"
	"github.com/FACorreiaa/pennywise/internal/domain/analytics"
	analyticshandler "github.com/FACorreiaa/pennywise/internal/domain/analytics/handler"
	"github.com/FACorreiaa/pennywise/internal/domain/categorization"
	"github.com/FACorreiaa/pennywise/internal/domain/import/acquirer"
	importhandler "github.com/FACorreiaa/pennywise/internal/domain/import/handler"
	"github.com/FACorreiaa/pennywise/internal/domain/import/normalizer"
	"github.com/FACorreiaa/pennywise/internal/domain/import/pdfdoc"
	importrepo "github.com/FACorreiaa/pennywise/internal/domain/import/repository"
	importservice "github.com/FACorreiaa/pennywise/internal/domain/import/service"
	"github.com/FACorreiaa/pennywise/internal/domain/insights"
	insightshandler "github.com/FACorreiaa/pennywise/internal/domain/insights/handler"
	"github.com/FACorreiaa/pennywise/internal/domain/ledger"
	ledgerhandler "github.com/FACorreiaa/pennywise/internal/domain/ledger/handler"

	"github.com/FACorreiaa/pennywise/pkg/config"
	"github.com/FACorreiaa/pennywise/pkg/cron"
	"github.com/FACorreiaa/pennywise/pkg/db"
	"github.com/FACorreiaa/pennywise/pkg/llm"
	"github.com/FACorreiaa/pennywise/pkg/metrics"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config  *config.Config
	DB      *db.DB
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Model   llm.Model

	// Repositories
	LedgerRepo    *ledger.Repository
	JobRepo       *importrepo.JobRepository
	OverrideStore *normalizer.OverrideStore
	InsightsRepo  *insights.Repository

	// Services
	Reconciler            *ledger.Reconciler
	CategorizationService *categorization.Service
	ImportService         *importservice.Service
	AnalyticsService      *analytics.Service
	InsightsService       *insights.Service
	Scheduler             *cron.Scheduler

	// Handlers
	ImportHandler    *importhandler.ImportHandler
	LedgerHandler    *ledgerhandler.LedgerHandler
	AnalyticsHandler *analyticshandler.AnalyticsHandler
	InsightsHandler  *insightshandler.InsightsHandler
}

// InitDependencies initializes all application dependencies
func InitDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.New(),
	}

	// Initialize database
	if err := deps.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}

	// Initialize repositories
	if err := deps.initRepositories(); err != nil {
		return nil, fmt.Errorf("failed to init repositories: %w", err)
	}

	// Initialize services
	if err := deps.initServices(ctx); err != nil {
		return nil, fmt.Errorf("failed to init services: %w", err)
	}

	// Initialize handlers
	if err := deps.initHandlers(); err != nil {
		return nil, fmt.Errorf("failed to init handlers: %w", err)
	}

	logger.Info("all dependencies initialized successfully")

	return deps, nil
}

// initDatabase initializes the database connection and runs migrations
func (d *Dependencies) initDatabase() error {
	database, err := db.New(db.Config{
		DSN:             d.Config.Database.DSN(),
		MaxConns:        25,
		MinConns:        5,
		MaxConnLifetime: 5 * time.Minute,
		MaxConnIdleTime: 10 * time.Minute,
	}, d.Logger)
	if err != nil {
		return err
	}

	d.DB = database

	// Run migrations
	if err := d.DB.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.Logger.Info("database connected and migrations completed successfully")
	return nil
}

// initRepositories initializes all repository layer dependencies
func (d *Dependencies) initRepositories() error {
	d.LedgerRepo = ledger.NewRepository(d.DB.Pool)
	d.JobRepo = importrepo.NewJobRepository(d.DB.Pool)
	d.OverrideStore = normalizer.NewOverrideStore(d.DB.Pool)
	d.InsightsRepo = insights.NewRepository(d.DB.Pool)

	d.Logger.Info("repositories initialized")
	return nil
}

// initServices initializes all service layer dependencies
func (d *Dependencies) initServices(ctx context.Context) error {
	ing := d.Config.Ingestion

	d.Model = llm.Disabled{}
	if d.Config.Gemini.Enabled() {
		model, err := llm.NewGemini(ctx, d.Config.Gemini.APIKey, d.Config.Gemini.Model, ing.ModelTimeout, d.Logger)
		if err != nil {
			return fmt.Errorf("failed to init language model: %w", err)
		}
		d.Model = model
	} else {
		d.Logger.Warn("GEMINI_API_KEY not set, insights and chat use fallback text")
	}

	d.Reconciler = ledger.NewReconciler(d.LedgerRepo, d.Logger, d.Metrics)

	// Refines "other" rows after each import without blocking it
	classifier := categorization.NewClassifier(d.Model, ing.ModelTimeout, d.Logger, d.Metrics)
	d.CategorizationService = categorization.NewService(d.LedgerRepo, classifier, ing.ModelTimeout, d.Logger)

	mailbox := acquirer.New(acquirer.NewIMAPDialer(ing.MailboxTimeout, d.Logger), acquirer.Options{
		RetryAttempts:  ing.RetryAttempts,
		RetryBase:      ing.RetryBase,
		ConnectTimeout: ing.MailboxTimeout,
	}, d.Logger)

	d.ImportService = importservice.NewService(d.JobRepo, d.Reconciler, d.Logger).
		WithMailbox(mailbox).
		WithPDFBackend(pdfdoc.Reader{}).
		WithOverrides(d.OverrideStore).
		WithRefiner(d.CategorizationService).
		WithWorkers(ing.Workers).
		WithMetrics(d.Metrics)

	d.AnalyticsService = analytics.NewService(d.LedgerRepo, ing.DefaultWindow)

	d.InsightsService = insights.NewService(d.InsightsRepo, d.AnalyticsService, d.Model, insights.Config{
		DefaultDays:  ing.DefaultWindow,
		TTL:          ing.InsightTTL,
		HistoryTurns: ing.ChatHistory,
		ModelTimeout: ing.ModelTimeout,
	}, d.Logger, d.Metrics)

	// Expired insight purge
	d.Scheduler = cron.NewScheduler(d.InsightsRepo, d.Logger)

	d.Logger.Info("services initialized")
	return nil
}

// initHandlers initializes all handler dependencies
func (d *Dependencies) initHandlers() error {
	d.ImportHandler = importhandler.NewImportHandler(d.ImportService, d.Config.Server.MaxUploadBytes, d.Logger).
		WithJobs(d.JobRepo)
	d.LedgerHandler = ledgerhandler.NewLedgerHandler(d.LedgerRepo, d.OverrideStore, d.Logger)
	d.AnalyticsHandler = analyticshandler.NewAnalyticsHandler(d.AnalyticsService, d.Logger)
	d.InsightsHandler = insightshandler.NewInsightsHandler(d.InsightsService, d.Logger)

	d.Logger.Info("handlers initialized")
	return nil
}

// Router mounts every handler behind the middleware chain.
func (d *Dependencies) Router() http.Handler {
	return api.NewRouter(api.Handlers{
		Import:    d.ImportHandler,
		Ledger:    d.LedgerHandler,
		Analytics: d.AnalyticsHandler,
		Insights:  d.InsightsHandler,
	}, api.Options{
		JWTSecret:          d.Config.Auth.JWTSecret,
		CORSOrigins:        d.Config.Server.CORSOrigins,
		RateLimitPerSecond: d.Config.Server.RateLimitPerSecond,
		RateLimitBurst:     d.Config.Server.RateLimitBurst,
	}, d.Logger, d.Metrics)
}

// Cleanup closes all resources
func (d *Dependencies) Cleanup() {
	if d.CategorizationService != nil {
		d.CategorizationService.Wait()
	}
	if d.DB != nil {
		d.DB.Close()
	}
	d.Logger.Info("cleanup completed")
}

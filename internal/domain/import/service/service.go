// Package service runs ingestion jobs: it drives documents from an upload or a
// mailbox scan through unlocking, parsing, normalization and reconciliation.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/pennywise/internal/domain/categorization"
	"github.com/FACorreiaa/pennywise/internal/domain/credentials"
	"github.com/FACorreiaa/pennywise/internal/domain/import/acquirer"
	"github.com/FACorreiaa/pennywise/internal/domain/import/parser"
	"github.com/FACorreiaa/pennywise/internal/domain/import/password"
	"github.com/FACorreiaa/pennywise/internal/domain/import/repository"
	"github.com/FACorreiaa/pennywise/internal/domain/ledger"
	"github.com/FACorreiaa/pennywise/pkg/metrics"
)

const (
	defaultWorkers  = 4
	finalizeTimeout = 10 * time.Second
)

// JobStore persists ingestion jobs.
type JobStore interface {
	Create(ctx context.Context, job *repository.Job) error
	MarkRunning(ctx context.Context, id uuid.UUID) error
	Progress(ctx context.Context, id uuid.UUID, c repository.Counters) error
	Finish(ctx context.Context, job *repository.Job) error
}

// Mailbox scans a mailbox for statement attachments.
type Mailbox interface {
	ScanMailbox(ctx context.Context, creds credentials.Mailbox, days int, bankHint string) (*acquirer.ScanResult, error)
}

// PDFBackend opens statement PDFs.
type PDFBackend interface {
	Probe(data []byte) (encrypted bool, err error)
	Unlock(data []byte, password string) error
	Lines(data []byte, password string) ([]parser.Line, error)
}

// Reconciler writes new transactions to the ledger.
type Reconciler interface {
	Reconcile(ctx context.Context, ownerID uuid.UUID, txs []ledger.Transaction) (ledger.Result, error)
}

// OverrideLoader loads an owner's merchant category corrections.
type OverrideLoader interface {
	Load(ctx context.Context, ownerID uuid.UUID) (map[string]categorization.Category, error)
}

// Refiner improves "other" categories after ingestion without blocking it.
type Refiner interface {
	RefineAsync(ctx context.Context, ownerID uuid.UUID, candidates []categorization.Candidate)
}

// Service orchestrates ingestion jobs.
type Service struct {
	jobs       JobStore
	reconciler Reconciler
	mailbox    Mailbox
	pdf        PDFBackend
	resolver   *password.Resolver
	overrides  OverrideLoader
	refiner    Refiner
	workers    int
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
	now        func() time.Time
}

// NewService creates an ingestion service. The mailbox, PDF backend,
// overrides and refiner are attached with the With methods.
func NewService(jobs JobStore, reconciler Reconciler, logger *slog.Logger) *Service {
	return &Service{
		jobs:       jobs,
		reconciler: reconciler,
		workers:    defaultWorkers,
		logger:     logger,
		tracer:     otel.Tracer("github.com/FACorreiaa/pennywise/import"),
		now:        time.Now,
	}
}

// WithMailbox sets the mailbox scanner used by ScanMailbox.
func (s *Service) WithMailbox(m Mailbox) *Service {
	s.mailbox = m
	return s
}

// WithPDFBackend sets the PDF backend and the password resolver on top of it.
func (s *Service) WithPDFBackend(pdf PDFBackend) *Service {
	s.pdf = pdf
	s.resolver = password.NewResolver(pdf, s.logger)
	return s
}

// WithOverrides sets the per-owner override source.
func (s *Service) WithOverrides(o OverrideLoader) *Service {
	s.overrides = o
	return s
}

// WithRefiner sets the asynchronous categorization refiner.
func (s *Service) WithRefiner(r Refiner) *Service {
	s.refiner = r
	return s
}

// WithWorkers bounds how many documents of one job are processed at once.
func (s *Service) WithWorkers(n int) *Service {
	if n > 0 {
		s.workers = n
	}
	return s
}

// WithMetrics records job and document outcomes.
func (s *Service) WithMetrics(m *metrics.Metrics) *Service {
	s.metrics = m
	return s
}

// UploadResult is the outcome of a single-document upload.
type UploadResult struct {
	JobID             uuid.UUID         `json:"job_id"`
	Status            repository.Status `json:"status"`
	TotalTransactions int               `json:"total_transactions"`
	Inserted          int               `json:"inserted"`
	Duplicates        int               `json:"duplicates"`
	RowsSkipped       int               `json:"rows_skipped"`
}

// Upload ingests one uploaded statement. A document failure is returned as a
// *DocumentError after the job has been recorded as failed.
func (s *Service) Upload(ctx context.Context, ownerID uuid.UUID, doc acquirer.Document, hints credentials.PasswordHints) (*UploadResult, error) {
	job, err := s.startJob(ctx, ownerID, repository.SourceUpload, 0)
	if err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "import.Upload", trace.WithAttributes(
		attribute.String("job_id", job.ID.String()),
		attribute.String("document.kind", string(doc.Kind)),
	))
	defer span.End()

	t := newTally(job)
	t.found(1)
	s.processDocuments(ctx, job, []acquirer.Document{doc}, hints, t)
	s.finish(ctx, job, t, "")

	result := &UploadResult{
		JobID:             job.ID,
		Status:            job.Status,
		TotalTransactions: job.Counters.TransactionsExtracted,
		Inserted:          t.inserted,
		Duplicates:        job.Counters.DuplicatesSkipped,
		RowsSkipped:       job.Counters.RowsSkipped,
	}

	if len(t.errs) > 0 {
		span.SetStatus(codes.Error, "document failed")
		return result, t.errs[0]
	}
	return result, nil
}

// ScanRequest describes a mailbox scan.
type ScanRequest struct {
	Mailbox  credentials.Mailbox
	Hints    credentials.PasswordHints
	BankHint string
}

// ScanResult is the outcome of a mailbox scan job.
type ScanResult struct {
	JobID      uuid.UUID
	Status     repository.Status
	Counters   repository.Counters
	FailedPDFs []string
	Message    string
}

// ScanMailbox scans the mailbox and ingests every statement attachment found.
// Authentication and exhausted connectivity failures fail the job and are
// returned; per-document failures only land in FailedPDFs.
func (s *Service) ScanMailbox(ctx context.Context, ownerID uuid.UUID, req ScanRequest) (*ScanResult, error) {
	if s.mailbox == nil {
		return nil, errors.New("mailbox scanning is not configured")
	}
	if err := req.Mailbox.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedRequest, err)
	}
	if _, err := req.Mailbox.Host(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedRequest, err)
	}

	job, err := s.startJob(ctx, ownerID, repository.SourceEmailScan, req.Mailbox.Days)
	if err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "import.ScanMailbox", trace.WithAttributes(
		attribute.String("job_id", job.ID.String()),
		attribute.Int("window_days", req.Mailbox.Days),
	))
	defer span.End()

	s.logger.Info("mailbox scan started", "job_id", job.ID, "mailbox", req.Mailbox, "hints", req.Hints)

	t := newTally(job)
	scan, err := s.mailbox.ScanMailbox(ctx, req.Mailbox, req.Mailbox.Days, req.BankHint)
	if scan != nil {
		t.scanned(scan.EmailsScanned)
		t.found(scan.StatementsFound)
	}

	switch {
	case errors.Is(err, acquirer.ErrNoStatementsFound):
		s.finish(ctx, job, t, "")
		return s.scanResult(job, "No bank statements were found in the selected period."), nil
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, "mailbox scan failed")
		s.finish(ctx, job, t, err.Error())
		return s.scanResult(job, ""), err
	}

	for _, f := range scan.Failed {
		s.recordFailure(ctx, job, t, &DocumentError{Name: f.Name, Reason: ReasonCorrupt, Err: f.Err}, 0)
	}
	s.processDocuments(ctx, job, scan.Documents, req.Hints, t)
	s.finish(ctx, job, t, "")

	c := job.Counters
	msg := fmt.Sprintf("Processed %d of %d statements from %d emails, extracting %d transactions.",
		c.StatementsProcessed, c.StatementsFound, c.EmailsScanned, c.TransactionsExtracted)
	return s.scanResult(job, msg), nil
}

func (s *Service) scanResult(job *repository.Job, msg string) *ScanResult {
	failed := make([]string, 0, len(job.Failed))
	for _, f := range job.Failed {
		failed = append(failed, f.String())
	}
	return &ScanResult{
		JobID:      job.ID,
		Status:     job.Status,
		Counters:   job.Counters,
		FailedPDFs: failed,
		Message:    msg,
	}
}

func (s *Service) startJob(ctx context.Context, ownerID uuid.UUID, source repository.Source, days int) (*repository.Job, error) {
	job := &repository.Job{
		OwnerID:    ownerID,
		Source:     source,
		WindowDays: days,
		Status:     repository.StatusPending,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create ingestion job: %w", err)
	}
	if err := s.jobs.MarkRunning(ctx, job.ID); err != nil {
		return nil, fmt.Errorf("failed to start ingestion job: %w", err)
	}
	job.Status = repository.StatusRunning
	job.CreatedAt = s.now()
	return job, nil
}

// finish settles the final status and writes it with a context that survives
// request cancellation.
func (s *Service) finish(ctx context.Context, job *repository.Job, t *tally, fatal string) {
	job.Counters, job.Failed = t.snapshot()
	job.Status = finalStatus(job.Counters, len(job.Failed), fatal != "")
	job.Error = fatal

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()
	if err := s.jobs.Finish(writeCtx, job); err != nil {
		s.logger.Warn("failed to finish ingestion job", "job_id", job.ID, "error", err)
	}

	s.metrics.JobFinished(string(job.Status), s.now().Sub(job.CreatedAt).Seconds())
	s.logger.Info("ingestion job finished",
		"job_id", job.ID,
		"status", job.Status,
		"statements_processed", job.Counters.StatementsProcessed,
		"transactions_extracted", job.Counters.TransactionsExtracted,
		"duplicates_skipped", job.Counters.DuplicatesSkipped,
		"rows_skipped", job.Counters.RowsSkipped,
		"failed_documents", len(job.Failed),
	)
}

func finalStatus(c repository.Counters, failed int, fatal bool) repository.Status {
	switch {
	case fatal:
		return repository.StatusFailed
	case failed == 0:
		return repository.StatusSucceeded
	case c.StatementsProcessed > 0:
		return repository.StatusPartial
	default:
		return repository.StatusFailed
	}
}

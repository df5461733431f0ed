package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/FACorreiaa/pennywise/internal/domain/categorization"
	"github.com/FACorreiaa/pennywise/internal/domain/credentials"
	"github.com/FACorreiaa/pennywise/internal/domain/import/acquirer"
	"github.com/FACorreiaa/pennywise/internal/domain/import/normalizer"
	"github.com/FACorreiaa/pennywise/internal/domain/import/parser"
	"github.com/FACorreiaa/pennywise/internal/domain/import/password"
	"github.com/FACorreiaa/pennywise/internal/domain/import/pdfdoc"
	"github.com/FACorreiaa/pennywise/internal/domain/import/repository"
	"github.com/FACorreiaa/pennywise/internal/domain/ledger"
)

// tally holds a job's counters while its documents are processed in
// parallel.
type tally struct {
	mu       sync.Mutex
	job      *repository.Job
	c        repository.Counters
	failed   []repository.FailedDocument
	errs     []error
	inserted int
}

func newTally(job *repository.Job) *tally {
	return &tally{job: job}
}

func (t *tally) scanned(n int) {
	t.mu.Lock()
	t.c.EmailsScanned = n
	t.mu.Unlock()
}

func (t *tally) found(n int) {
	t.mu.Lock()
	t.c.StatementsFound = n
	t.mu.Unlock()
}

func (t *tally) processed(extracted, inserted, duplicates, skipped int) repository.Counters {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.c.StatementsProcessed++
	t.c.TransactionsExtracted += extracted
	t.c.DuplicatesSkipped += duplicates
	t.c.RowsSkipped += skipped
	t.inserted += inserted
	return t.c
}

func (t *tally) fail(err *DocumentError, skipped int) repository.Counters {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.c.RowsSkipped += skipped
	t.failed = append(t.failed, repository.FailedDocument{Name: err.Name, Reason: err.Reason})
	t.errs = append(t.errs, err)
	return t.c
}

func (t *tally) snapshot() (repository.Counters, []repository.FailedDocument) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.c, append([]repository.FailedDocument(nil), t.failed...)
}

// processDocuments runs every document through the pipeline on a bounded
// pool. Documents never started because ctx ended are recorded as cancelled.
func (s *Service) processDocuments(ctx context.Context, job *repository.Job, docs []acquirer.Document, hints credentials.PasswordHints, t *tally) {
	if len(docs) == 0 {
		return
	}

	norm := normalizer.New(categorization.NewDefaultEngine(s.loadOverrides(ctx, job)))

	g := new(errgroup.Group)
	g.SetLimit(s.workers)
	for i := range docs {
		doc := docs[i]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				s.recordFailure(ctx, job, t, &DocumentError{Name: doc.Name, Reason: ReasonCancelled, Err: err}, 0)
				return nil
			}
			s.processDocument(ctx, job, doc, hints, norm, t)
			return nil
		})
	}
	// Workers report through the tally and never return errors.
	_ = g.Wait()
}

func (s *Service) loadOverrides(ctx context.Context, job *repository.Job) map[string]categorization.Category {
	if s.overrides == nil {
		return nil
	}
	overrides, err := s.overrides.Load(ctx, job.OwnerID)
	if err != nil {
		s.logger.Warn("failed to load merchant overrides", "job_id", job.ID, "error", err)
		return nil
	}
	return overrides
}

func (s *Service) processDocument(ctx context.Context, job *repository.Job, doc acquirer.Document, hints credentials.PasswordHints, norm *normalizer.Normalizer, t *tally) {
	ctx, span := s.tracer.Start(ctx, "import.processDocument", trace.WithAttributes(
		attribute.String("document.name", doc.Name),
		attribute.String("document.bank", doc.Bank),
	))
	defer span.End()

	fail := func(reason string, err error, skipped int) {
		span.RecordError(err)
		span.SetStatus(codes.Error, reason)
		s.recordFailure(ctx, job, t, &DocumentError{Name: doc.Name, Reason: reason, Err: err}, skipped)
	}

	lines, european, reason, err := s.extract(ctx, &doc, hints)
	if err != nil {
		fail(reason, err, 0)
		return
	}

	stmt, err := parser.Parse(lines, parser.Options{BankHint: doc.Bank, European: european})
	if err != nil {
		fail(ReasonParse, err, 0)
		return
	}

	rows, skipped, err := parser.Collect(stmt.Rows())
	if err != nil {
		fail(ReasonParse, err, skipped)
		return
	}

	txs := norm.Normalize(job.OwnerID, doc.Source, rows)
	for i := range txs {
		jobID := job.ID
		txs[i].JobID = &jobID
	}

	res, err := s.reconciler.Reconcile(ctx, job.OwnerID, txs)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			fail(ReasonCancelled, errors.Join(ctxErr, err), skipped)
			return
		}
		fail(ReasonStore, err, skipped)
		return
	}

	doc.Status = acquirer.StatusProcessed
	counters := t.processed(len(txs), res.Inserted, res.Duplicates, skipped)
	s.metrics.Document("processed")
	s.progress(ctx, job, counters)

	span.SetAttributes(
		attribute.String("layout", stmt.Layout.Name()),
		attribute.Int("rows", len(rows)),
		attribute.Int("rows_skipped", skipped),
		attribute.Int("inserted", res.Inserted),
	)
	s.logger.Info("statement processed",
		slog.String("job_id", job.ID.String()),
		slog.String("document", doc.Name),
		slog.String("layout", stmt.Layout.Name()),
		slog.Int("rows", len(rows)),
		slog.Int("rows_skipped", skipped),
		slog.Int("inserted", res.Inserted),
		slog.Int("duplicates", res.Duplicates),
	)

	s.refine(ctx, job, res.Added)
}

// extract turns a document into positional lines, unlocking PDFs first.
func (s *Service) extract(ctx context.Context, doc *acquirer.Document, hints credentials.PasswordHints) ([]parser.Line, bool, string, error) {
	switch doc.Kind {
	case acquirer.KindCSV:
		lines, european, err := parser.FromCSV(doc.Data)
		if err != nil {
			return nil, false, ReasonParse, err
		}
		return lines, european, "", nil
	case acquirer.KindXLSX:
		lines, err := parser.FromXLSX(doc.Data)
		if err != nil {
			return nil, false, ReasonParse, err
		}
		return lines, false, "", nil
	}

	if s.pdf == nil {
		return nil, false, ReasonCorrupt, errors.New("pdf support is not configured")
	}

	encrypted, err := s.pdf.Probe(doc.Data)
	if err != nil {
		return nil, false, ReasonCorrupt, err
	}
	doc.Encrypted = encrypted

	if err := s.resolver.Resolve(ctx, doc, hints); err != nil {
		if errors.Is(err, password.ErrPasswordExhausted) {
			return nil, false, ReasonPassword, err
		}
		return nil, false, ReasonCancelled, err
	}

	lines, err := s.pdf.Lines(doc.Data, doc.Password)
	if err != nil {
		if errors.Is(err, pdfdoc.ErrWrongPassword) {
			return nil, false, ReasonPassword, err
		}
		return nil, false, ReasonCorrupt, fmt.Errorf("failed to read pdf text: %w", err)
	}
	return lines, false, "", nil
}

func (s *Service) recordFailure(ctx context.Context, job *repository.Job, t *tally, err *DocumentError, skipped int) {
	counters := t.fail(err, skipped)
	s.metrics.Document(err.Reason)
	s.logger.Warn("statement failed",
		slog.String("job_id", job.ID.String()),
		slog.String("document", err.Name),
		slog.String("reason", err.Reason),
		slog.Any("error", err.Err),
	)
	s.progress(ctx, job, counters)
}

// progress stores intermediate counters. Failures are not fatal.
func (s *Service) progress(ctx context.Context, job *repository.Job, c repository.Counters) {
	if err := s.jobs.Progress(context.WithoutCancel(ctx), job.ID, c); err != nil {
		s.logger.Warn("failed to update ingestion job progress", "job_id", job.ID, "error", err)
	}
}

// refine hands newly stored "other" rows to the asynchronous refiner.
func (s *Service) refine(ctx context.Context, job *repository.Job, added []ledger.Transaction) {
	if s.refiner == nil {
		return
	}
	var candidates []categorization.Candidate
	for _, tx := range added {
		if tx.Category == categorization.Other {
			candidates = append(candidates, categorization.Candidate{ID: tx.ID, Merchant: tx.Merchant, Description: tx.Description})
		}
	}
	if len(candidates) > 0 {
		s.refiner.RefineAsync(ctx, job.OwnerID, candidates)
	}
}

// Package repository persists ingestion jobs.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/FACorreiaa/pennywise/pkg/db"
)

// ErrJobNotFound is returned when a job does not exist for the owner.
var ErrJobNotFound = errors.New("ingestion job not found")

// Status is the lifecycle state of a job. Every status after running is terminal.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusPartial   Status = "partial"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the job has finished.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusPartial || s == StatusFailed
}

// Source is how a job's documents were obtained.
type Source string

const (
	SourceUpload    Source = "upload"
	SourceEmailScan Source = "email-scan"
)

// Counters are the progress figures of a job.
type Counters struct {
	EmailsScanned         int `json:"emails_scanned"`
	StatementsFound       int `json:"statements_found"`
	StatementsProcessed   int `json:"statements_processed"`
	TransactionsExtracted int `json:"transactions_extracted"`
	DuplicatesSkipped     int `json:"duplicates_skipped"`
	RowsSkipped           int `json:"rows_skipped"`
}

// FailedDocument records why one document of a job was abandoned.
type FailedDocument struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

func (f FailedDocument) String() string {
	return fmt.Sprintf("%s (%s)", f.Name, f.Reason)
}

// Job is one ingestion run: a single upload or a mailbox scan.
type Job struct {
	ID         uuid.UUID        `json:"id"`
	OwnerID    uuid.UUID        `json:"owner_id"`
	Source     Source           `json:"source"`
	WindowDays int              `json:"window_days"`
	Status     Status           `json:"status"`
	Counters   Counters         `json:"counters"`
	Failed     []FailedDocument `json:"failed_documents"`
	Error      string           `json:"error,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	FinishedAt *time.Time       `json:"finished_at,omitempty"`
}

// JobRepository stores jobs in the ingestion_jobs table.
type JobRepository struct {
	db db.Querier
}

// NewJobRepository creates a job repository.
func NewJobRepository(q db.Querier) *JobRepository {
	return &JobRepository{db: q}
}

// Create inserts a new pending job.
func (r *JobRepository) Create(ctx context.Context, job *Job) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.Status == "" {
		job.Status = StatusPending
	}

	query := `
		INSERT INTO ingestion_jobs (id, owner_id, source, window_days, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`

	err := r.db.QueryRow(ctx, query, job.ID, job.OwnerID, string(job.Source), job.WindowDays, string(job.Status)).
		Scan(&job.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create ingestion job: %w", err)
	}
	return nil
}

// MarkRunning moves a pending job to running.
func (r *JobRepository) MarkRunning(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE ingestion_jobs SET status = 'running' WHERE id = $1 AND status = 'pending'`, id)
	if err != nil {
		return fmt.Errorf("failed to start ingestion job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}

// Progress stores the current counters of a running job.
func (r *JobRepository) Progress(ctx context.Context, id uuid.UUID, c Counters) error {
	query := `
		UPDATE ingestion_jobs
		SET emails_scanned = $2, statements_found = $3, statements_processed = $4,
			transactions_extracted = $5, duplicates_skipped = $6, rows_skipped = $7
		WHERE id = $1 AND status = 'running'`

	_, err := r.db.Exec(ctx, query, id, c.EmailsScanned, c.StatementsFound, c.StatementsProcessed,
		c.TransactionsExtracted, c.DuplicatesSkipped, c.RowsSkipped)
	if err != nil {
		return fmt.Errorf("failed to update ingestion job progress: %w", err)
	}
	return nil
}

// Finish writes the terminal state of a job.
func (r *JobRepository) Finish(ctx context.Context, job *Job) error {
	failed, err := json.Marshal(failedOrEmpty(job.Failed))
	if err != nil {
		return fmt.Errorf("failed to encode failed documents: %w", err)
	}

	var errMsg *string
	if job.Error != "" {
		errMsg = &job.Error
	}

	query := `
		UPDATE ingestion_jobs
		SET status = $2, emails_scanned = $3, statements_found = $4, statements_processed = $5,
			transactions_extracted = $6, duplicates_skipped = $7, rows_skipped = $8,
			failed_documents = $9, error_message = $10, finished_at = now()
		WHERE id = $1
		RETURNING finished_at`

	c := job.Counters
	var finished time.Time
	err = r.db.QueryRow(ctx, query, job.ID, string(job.Status), c.EmailsScanned, c.StatementsFound,
		c.StatementsProcessed, c.TransactionsExtracted, c.DuplicatesSkipped, c.RowsSkipped, failed, errMsg).
		Scan(&finished)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrJobNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to finish ingestion job: %w", err)
	}
	job.FinishedAt = &finished
	return nil
}

// Get loads one of the owner's jobs.
func (r *JobRepository) Get(ctx context.Context, ownerID, id uuid.UUID) (*Job, error) {
	query := `
		SELECT id, owner_id, source, window_days, status, emails_scanned, statements_found,
			statements_processed, transactions_extracted, duplicates_skipped, rows_skipped,
			failed_documents, error_message, created_at, finished_at
		FROM ingestion_jobs
		WHERE id = $1 AND owner_id = $2`

	var (
		job    Job
		failed []byte
		errMsg *string
	)
	c := &job.Counters
	err := r.db.QueryRow(ctx, query, id, ownerID).Scan(
		&job.ID, &job.OwnerID, &job.Source, &job.WindowDays, &job.Status,
		&c.EmailsScanned, &c.StatementsFound, &c.StatementsProcessed,
		&c.TransactionsExtracted, &c.DuplicatesSkipped, &c.RowsSkipped,
		&failed, &errMsg, &job.CreatedAt, &job.FinishedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ingestion job: %w", err)
	}

	if len(failed) > 0 {
		if err := json.Unmarshal(failed, &job.Failed); err != nil {
			return nil, fmt.Errorf("failed to decode failed documents: %w", err)
		}
	}
	if errMsg != nil {
		job.Error = *errMsg
	}
	return &job, nil
}

func failedOrEmpty(f []FailedDocument) []FailedDocument {
	if f == nil {
		return []FailedDocument{}
	}
	return f
}

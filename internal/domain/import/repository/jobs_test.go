package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var created = time.Date(2024, 5, 20, 9, 0, 0, 0, time.UTC)

func TestJobRepository_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	owner := uuid.New()
	mock.ExpectQuery(`INSERT INTO ingestion_jobs`).
		WithArgs(pgxmock.AnyArg(), owner, "email-scan", 30, "pending").
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(created))

	job := &Job{OwnerID: owner, Source: SourceEmailScan, WindowDays: 30}
	require.NoError(t, NewJobRepository(mock).Create(context.Background(), job))

	assert.NotEqual(t, uuid.Nil, job.ID)
	assert.Equal(t, StatusPending, job.Status)
	assert.Equal(t, created, job.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepository_MarkRunning(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectExec(`UPDATE ingestion_jobs SET status = 'running'`).
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE ingestion_jobs SET status = 'running'`).
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	repo := NewJobRepository(mock)
	require.NoError(t, repo.MarkRunning(context.Background(), id))
	assert.ErrorIs(t, repo.MarkRunning(context.Background(), id), ErrJobNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepository_Progress(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectExec(`UPDATE ingestion_jobs\s+SET emails_scanned`).
		WithArgs(id, 10, 3, 1, 25, 2, 0).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = NewJobRepository(mock).Progress(context.Background(), id, Counters{
		EmailsScanned: 10, StatementsFound: 3, StatementsProcessed: 1, TransactionsExtracted: 25, DuplicatesSkipped: 2,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepository_Finish(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	job := &Job{
		ID:       uuid.New(),
		Status:   StatusPartial,
		Counters: Counters{EmailsScanned: 10, StatementsFound: 3, StatementsProcessed: 2, TransactionsExtracted: 40},
		Failed:   []FailedDocument{{Name: "march.pdf", Reason: "password"}},
	}
	finished := created.Add(time.Minute)

	mock.ExpectQuery(`UPDATE ingestion_jobs\s+SET status = \$2`).
		WithArgs(job.ID, "partial", 10, 3, 2, 40, 0, 0,
			[]byte(`[{"name":"march.pdf","reason":"password"}]`), (*string)(nil)).
		WillReturnRows(pgxmock.NewRows([]string{"finished_at"}).AddRow(finished))

	require.NoError(t, NewJobRepository(mock).Finish(context.Background(), job))
	require.NotNil(t, job.FinishedAt)
	assert.Equal(t, finished, *job.FinishedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepository_Get(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	owner, id := uuid.New(), uuid.New()
	finished := created.Add(time.Minute)
	msg := "mailbox login failed"

	rows := pgxmock.NewRows([]string{
		"id", "owner_id", "source", "window_days", "status", "emails_scanned", "statements_found",
		"statements_processed", "transactions_extracted", "duplicates_skipped", "rows_skipped",
		"failed_documents", "error_message", "created_at", "finished_at",
	}).AddRow(id, owner, SourceEmailScan, 30, StatusFailed, 0, 0, 0, 0, 0, 0,
		[]byte(`[{"name":"a.pdf","reason":"corrupt"}]`), &msg, created, &finished)

	mock.ExpectQuery(`FROM ingestion_jobs\s+WHERE id = \$1 AND owner_id = \$2`).
		WithArgs(id, owner).
		WillReturnRows(rows)

	job, err := NewJobRepository(mock).Get(context.Background(), owner, id)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, job.Status)
	assert.Equal(t, msg, job.Error)
	require.Len(t, job.Failed, 1)
	assert.Equal(t, "a.pdf (corrupt)", job.Failed[0].String())
	assert.True(t, job.Status.Terminal())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepository_GetNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	owner, id := uuid.New(), uuid.New()
	mock.ExpectQuery(`FROM ingestion_jobs`).
		WithArgs(id, owner).
		WillReturnError(pgx.ErrNoRows)

	_, err = NewJobRepository(mock).Get(context.Background(), owner, id)
	assert.ErrorIs(t, err, ErrJobNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatus_Terminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusRunning.Terminal())
	assert.True(t, StatusSucceeded.Terminal())
	assert.True(t, StatusPartial.Terminal())
}

package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/pennywise/internal/domain/credentials"
	"github.com/FACorreiaa/pennywise/internal/domain/import/acquirer"
	"github.com/FACorreiaa/pennywise/internal/domain/import/repository"
	importservice "github.com/FACorreiaa/pennywise/internal/domain/import/service"
	"github.com/FACorreiaa/pennywise/pkg/interceptors"
)

type fakeIngestor struct {
	doc       acquirer.Document
	hints     credentials.PasswordHints
	scan      importservice.ScanRequest
	uploadRes *importservice.UploadResult
	scanRes   *importservice.ScanResult
	err       error
}

func (f *fakeIngestor) Upload(_ context.Context, _ uuid.UUID, doc acquirer.Document, hints credentials.PasswordHints) (*importservice.UploadResult, error) {
	f.doc = doc
	f.hints = hints
	return f.uploadRes, f.err
}

func (f *fakeIngestor) ScanMailbox(_ context.Context, _ uuid.UUID, req importservice.ScanRequest) (*importservice.ScanResult, error) {
	f.scan = req
	return f.scanRes, f.err
}

func newHandler(svc Ingestor, maxUpload int64) *ImportHandler {
	return NewImportHandler(svc, maxUpload, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func authed(req *http.Request) *http.Request {
	return req.WithContext(interceptors.WithUserID(req.Context(), uuid.NewString()))
}

func multipartRequest(t *testing.T, filename, content string, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/bank-statements/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return authed(req)
}

func TestUploadStatement_OK(t *testing.T) {
	jobID := uuid.New()
	svc := &fakeIngestor{uploadRes: &importservice.UploadResult{
		JobID: jobID, Status: repository.StatusSucceeded, TotalTransactions: 48, Inserted: 48, RowsSkipped: 2,
	}}
	h := newHandler(svc, 0)

	rec := httptest.NewRecorder()
	h.UploadStatement(rec, multipartRequest(t, "may.csv", "Date,Description,Amount\n01/05/2024,Tea,-10\n", map[string]string{
		"date_of_birth": "15/08/1990",
		"mobile_number": "+91 98765 43210",
		"pan_card":      "abcde1234f",
	}))

	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, float64(48), got["total_transactions"])
	assert.Equal(t, float64(48), got["inserted"])
	assert.Equal(t, float64(0), got["duplicates"])
	assert.Equal(t, jobID.String(), got["job_id"])
	assert.Equal(t, "succeeded", got["status"])

	assert.Equal(t, "may.csv", svc.doc.Name)
	assert.Equal(t, acquirer.KindCSV, svc.doc.Kind)
	assert.Equal(t, time.Date(1990, 8, 15, 0, 0, 0, 0, time.UTC), svc.hints.DateOfBirth)
	assert.Equal(t, "919876543210", svc.hints.MobileNumber)
	assert.Equal(t, "ABCDE1234F", svc.hints.PAN)
}

func TestUploadStatement_Errors(t *testing.T) {
	tests := []struct {
		name     string
		req      func(t *testing.T) *http.Request
		svcErr   error
		wantCode int
	}{
		{
			name:     "missing file",
			req:      func(t *testing.T) *http.Request { return multipartRequest(t, "", "", nil) },
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "empty file",
			req:      func(t *testing.T) *http.Request { return multipartRequest(t, "a.csv", "  \n", nil) },
			wantCode: http.StatusBadRequest,
		},
		{
			name: "bad date of birth",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, "a.pdf", "%PDF-1.7", map[string]string{"date_of_birth": "yesterday"})
			},
			wantCode: http.StatusBadRequest,
		},
		{
			name: "unauthenticated",
			req: func(t *testing.T) *http.Request {
				return httptest.NewRequest(http.MethodPost, "/bank-statements/upload", nil)
			},
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "document failure",
			req:      func(t *testing.T) *http.Request { return multipartRequest(t, "a.pdf", "%PDF-1.7", nil) },
			svcErr:   &importservice.DocumentError{Name: "a.pdf", Reason: importservice.ReasonPassword, Err: errors.New("exhausted")},
			wantCode: http.StatusUnprocessableEntity,
		},
		{
			name:     "store failure",
			req:      func(t *testing.T) *http.Request { return multipartRequest(t, "a.pdf", "%PDF-1.7", nil) },
			svcErr:   errors.New("db down"),
			wantCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHandler(&fakeIngestor{err: tt.svcErr}, 0)
			rec := httptest.NewRecorder()
			h.UploadStatement(rec, tt.req(t))

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error":true`)
		})
	}
}

func TestUploadStatement_TooLarge(t *testing.T) {
	h := newHandler(&fakeIngestor{}, 64)
	rec := httptest.NewRecorder()
	h.UploadStatement(rec, multipartRequest(t, "big.csv", strings.Repeat("x", 1024), nil))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func fetchRequest(body string) *http.Request {
	return authed(httptest.NewRequest(http.MethodPost, "/email/fetch-statements", strings.NewReader(body)))
}

func TestFetchStatements_OK(t *testing.T) {
	jobID := uuid.New()
	svc := &fakeIngestor{scanRes: &importservice.ScanResult{
		JobID:  jobID,
		Status: repository.StatusPartial,
		Counters: repository.Counters{
			EmailsScanned: 10, StatementsFound: 3, StatementsProcessed: 2, TransactionsExtracted: 41,
		},
		FailedPDFs: []string{"broken.pdf (corrupt)"},
		Message:    "Processed 2 of 3 statements from 10 emails, extracting 41 transactions.",
	}}
	h := newHandler(svc, 0)

	rec := httptest.NewRecorder()
	h.FetchStatements(rec, fetchRequest(`{
		"email_credentials": {"email": "me@gmail.com", "app_password": "abcd efgh", "days": 60},
		"pdf_password_info": {"date_of_birth": "1990-08-15", "pan_card": "ABCDE1234F"},
		"bank_name": "hdfc"
	}`))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"message": "Processed 2 of 3 statements from 10 emails, extracting 41 transactions.",
		"total_emails_fetched": 10,
		"statements_found": 3,
		"statements_processed": 2,
		"transactions_extracted": 41,
		"failed_pdfs": ["broken.pdf (corrupt)"],
		"job_id": "`+jobID.String()+`",
		"status": "partial"
	}`, rec.Body.String())

	assert.Equal(t, "me@gmail.com", svc.scan.Mailbox.Email)
	assert.Equal(t, "abcd efgh", svc.scan.Mailbox.AppPassword)
	assert.Equal(t, 60, svc.scan.Mailbox.Days)
	assert.Equal(t, "hdfc", svc.scan.BankHint)
	assert.Equal(t, "ABCDE1234F", svc.scan.Hints.PAN)
}

func TestFetchStatements_EmptyFailuresIsArray(t *testing.T) {
	svc := &fakeIngestor{scanRes: &importservice.ScanResult{Status: repository.StatusSucceeded}}
	h := newHandler(svc, 0)

	rec := httptest.NewRecorder()
	h.FetchStatements(rec, fetchRequest(`{"email_credentials": {"email": "me@gmail.com", "app_password": "x"}}`))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"failed_pdfs":[]`)
}

func TestFetchStatements_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		svcErr   error
		wantCode int
	}{
		{"malformed json", `{"email_credentials":`, nil, http.StatusBadRequest},
		{"bad date of birth", `{"pdf_password_info": {"date_of_birth": "someday"}}`, nil, http.StatusBadRequest},
		{"invalid mailbox", `{}`, errors.Join(importservice.ErrMalformedRequest, credentials.ErrMissingEmail), http.StatusBadRequest},
		{"authentication", `{}`, &acquirer.AuthenticationError{Server: "imap.gmail.com", Err: errors.New("bad login")}, http.StatusUnauthorized},
		{"connectivity", `{}`, &acquirer.TransientConnectivityError{Server: "imap.gmail.com", Op: "dial", Err: errors.New("timeout")}, http.StatusBadGateway},
		{"unexpected", `{}`, errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHandler(&fakeIngestor{err: tt.svcErr}, 0)
			rec := httptest.NewRecorder()
			h.FetchStatements(rec, fetchRequest(tt.body))

			assert.Equal(t, tt.wantCode, rec.Code)
			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, true, body["error"])
			assert.NotEmpty(t, body["message"])
		})
	}
}

type fakeJobs struct {
	job *repository.Job
}

func (f fakeJobs) Get(_ context.Context, ownerID, id uuid.UUID) (*repository.Job, error) {
	if f.job == nil || f.job.ID != id || f.job.OwnerID != ownerID {
		return nil, repository.ErrJobNotFound
	}
	return f.job, nil
}

func TestGetJob(t *testing.T) {
	owner := uuid.New()
	job := &repository.Job{
		ID:       uuid.New(),
		OwnerID:  owner,
		Source:   repository.SourceEmailScan,
		Status:   repository.StatusPartial,
		Counters: repository.Counters{StatementsFound: 3, StatementsProcessed: 2},
		Failed:   []repository.FailedDocument{{Name: "broken.pdf", Reason: "corrupt"}},
	}
	h := newHandler(&fakeIngestor{}, 0).WithJobs(fakeJobs{job: job})
	r := chi.NewRouter()
	r.Get("/ingestion-jobs/{id}", h.GetJob)

	get := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req = req.WithContext(interceptors.WithUserID(req.Context(), owner.String()))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	rec := get("/ingestion-jobs/" + job.ID.String())
	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "partial", got["status"])
	assert.Equal(t, "email-scan", got["source"])
	assert.Len(t, got["failed_documents"], 1)

	assert.Equal(t, http.StatusNotFound, get("/ingestion-jobs/"+uuid.NewString()).Code)
	assert.Equal(t, http.StatusBadRequest, get("/ingestion-jobs/42").Code)
}

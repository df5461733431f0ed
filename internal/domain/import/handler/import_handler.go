package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/FACorreiaa/pennywise/internal/domain/credentials"
	"github.com/FACorreiaa/pennywise/internal/domain/import/acquirer"
	"github.com/FACorreiaa/pennywise/internal/domain/import/repository"
	importservice "github.com/FACorreiaa/pennywise/internal/domain/import/service"
	"github.com/FACorreiaa/pennywise/pkg/interceptors"
	"github.com/FACorreiaa/pennywise/pkg/respond"
)

// DefaultMaxUploadBytes caps an uploaded statement when no limit is configured.
const DefaultMaxUploadBytes = 20 << 20

// Ingestor runs ingestion jobs.
type Ingestor interface {
	Upload(ctx context.Context, ownerID uuid.UUID, doc acquirer.Document, hints credentials.PasswordHints) (*importservice.UploadResult, error)
	ScanMailbox(ctx context.Context, ownerID uuid.UUID, req importservice.ScanRequest) (*importservice.ScanResult, error)
}

// JobReader loads an owner's ingestion job.
type JobReader interface {
	Get(ctx context.Context, ownerID, id uuid.UUID) (*repository.Job, error)
}

// ImportHandler serves statement uploads and mailbox scans.
type ImportHandler struct {
	svc       Ingestor
	jobs      JobReader
	maxUpload int64
	logger    *slog.Logger
}

// NewImportHandler creates a new import handler
func NewImportHandler(svc Ingestor, maxUploadBytes int64, logger *slog.Logger) *ImportHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &ImportHandler{svc: svc, maxUpload: maxUploadBytes, logger: logger}
}

// WithJobs enables GET /ingestion-jobs/{id}.
func (h *ImportHandler) WithJobs(jobs JobReader) *ImportHandler {
	h.jobs = jobs
	return h
}

// PasswordInfo carries the PDF password hints of a request.
type PasswordInfo struct {
	Password      string `json:"password"`
	DateOfBirth   string `json:"date_of_birth"`
	MobileNumber  string `json:"mobile_number"`
	AccountNumber string `json:"account_number"`
	PANCard       string `json:"pan_card"`
}

func (p PasswordInfo) hints() (credentials.PasswordHints, error) {
	return credentials.NewPasswordHints(p.Password, p.DateOfBirth, p.MobileNumber, p.AccountNumber, p.PANCard)
}

// EmailCredentials is the mailbox login of a fetch request.
type EmailCredentials struct {
	Email       string `json:"email"`
	AppPassword string `json:"app_password"`
	Days        int    `json:"days"`
	IMAPServer  string `json:"imap_server"`
}

// FetchStatementsRequest is the body of POST /email/fetch-statements.
type FetchStatementsRequest struct {
	EmailCredentials EmailCredentials `json:"email_credentials"`
	PasswordInfo     PasswordInfo     `json:"pdf_password_info"`
	BankName         string           `json:"bank_name"`
}

// FetchStatementsResponse reports a finished mailbox scan.
type FetchStatementsResponse struct {
	Message               string    `json:"message"`
	TotalEmailsFetched    int       `json:"total_emails_fetched"`
	StatementsFound       int       `json:"statements_found"`
	StatementsProcessed   int       `json:"statements_processed"`
	TransactionsExtracted int       `json:"transactions_extracted"`
	FailedPDFs            []string  `json:"failed_pdfs"`
	JobID                 uuid.UUID `json:"job_id"`
	Status                string    `json:"status"`
}

// UploadStatement handles a multipart upload of one statement in the "file" field.
func (h *ImportHandler) UploadStatement(w http.ResponseWriter, r *http.Request) {
	owner, ok := interceptors.OwnerFromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.Error(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("file exceeds %d bytes", h.maxUpload))
			return
		}
		respond.Error(w, http.StatusBadRequest, "expected a multipart form with a file field")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "failed to read uploaded file")
		return
	}

	info := PasswordInfo{
		Password:      r.FormValue("password"),
		DateOfBirth:   r.FormValue("date_of_birth"),
		MobileNumber:  r.FormValue("mobile_number"),
		AccountNumber: r.FormValue("account_number"),
		PANCard:       r.FormValue("pan_card"),
	}
	hints, err := info.hints()
	if err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	doc, err := acquirer.FromUpload(header.Filename, data, r.FormValue("bank_name"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.svc.Upload(r.Context(), owner, doc, hints)
	if err != nil {
		h.writeError(w, err, "failed to import statement")
		return
	}
	respond.JSON(w, http.StatusOK, result)
}

// FetchStatements scans the caller's mailbox and ingests the statements found.
func (h *ImportHandler) FetchStatements(w http.ResponseWriter, r *http.Request) {
	owner, ok := interceptors.OwnerFromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req FetchStatementsRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	hints, err := req.PasswordInfo.hints()
	if err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.svc.ScanMailbox(r.Context(), owner, importservice.ScanRequest{
		Mailbox: credentials.Mailbox{
			Email:       req.EmailCredentials.Email,
			AppPassword: req.EmailCredentials.AppPassword,
			Server:      req.EmailCredentials.IMAPServer,
			Days:        req.EmailCredentials.Days,
		},
		Hints:    hints,
		BankHint: req.BankName,
	})
	if err != nil {
		h.writeError(w, err, "failed to fetch statements")
		return
	}

	failed := result.FailedPDFs
	if failed == nil {
		failed = []string{}
	}
	respond.JSON(w, http.StatusOK, FetchStatementsResponse{
		Message:               result.Message,
		TotalEmailsFetched:    result.Counters.EmailsScanned,
		StatementsFound:       result.Counters.StatementsFound,
		StatementsProcessed:   result.Counters.StatementsProcessed,
		TransactionsExtracted: result.Counters.TransactionsExtracted,
		FailedPDFs:            failed,
		JobID:                 result.JobID,
		Status:                string(result.Status),
	})
}

// GetJob returns one of the caller's ingestion jobs with its counters.
func (h *ImportHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	owner, ok := interceptors.OwnerFromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if h.jobs == nil {
		respond.Error(w, http.StatusNotFound, "not found")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid job id")
		return
	}

	job, err := h.jobs.Get(r.Context(), owner, id)
	if errors.Is(err, repository.ErrJobNotFound) {
		respond.Error(w, http.StatusNotFound, "ingestion job not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to load ingestion job", slog.Any("error", err))
		respond.Error(w, http.StatusInternalServerError, "failed to load ingestion job")
		return
	}
	if job.Failed == nil {
		job.Failed = []repository.FailedDocument{}
	}
	respond.JSON(w, http.StatusOK, job)
}

// writeError maps ingestion errors onto status codes.
func (h *ImportHandler) writeError(w http.ResponseWriter, err error, fallback string) {
	var docErr *importservice.DocumentError
	switch {
	case errors.Is(err, importservice.ErrMalformedRequest), errors.Is(err, acquirer.ErrEmptyUpload):
		respond.Error(w, http.StatusBadRequest, err.Error())
	case acquirer.IsAuthentication(err):
		respond.Error(w, http.StatusUnauthorized, "mailbox authentication failed, check the email and app password")
	case acquirer.IsTransient(err):
		h.logger.Warn("mailbox unreachable", slog.Any("error", err))
		respond.Error(w, http.StatusBadGateway, "could not reach the mailbox server, try again later")
	case errors.As(err, &docErr):
		respond.Error(w, http.StatusUnprocessableEntity, docErr.Error())
	default:
		h.logger.Error(fallback, slog.Any("error", err))
		respond.Error(w, http.StatusInternalServerError, fallback)
	}
}

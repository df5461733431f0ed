package acquirer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/FACorreiaa/pennywise/internal/domain/credentials"
)

// Message is the envelope of one mailbox message inside the scan window.
type Message struct {
	ID      string
	From    string
	Subject string
	Date    time.Time
	HasPDF  bool
}

// Attachment is one PDF attachment pulled from a message. Err is set when the
// part was recognised as a statement but its body could not be decoded.
type Attachment struct {
	Filename string
	Data     []byte
	Err      error
}

// Session is an authenticated mailbox connection.
type Session interface {
	// Search lists messages received since the given time.
	Search(ctx context.Context, since time.Time) ([]Message, error)
	// Attachments returns the PDF attachments of one message. A message that
	// cannot be walked to the end may return the attachments read so far
	// together with the error.
	Attachments(ctx context.Context, msg Message) ([]Attachment, error)
	Close() error
}

// Dialer opens mailbox sessions. Login failures must be reported as
// *AuthenticationError and network faults as *TransientConnectivityError.
type Dialer interface {
	Dial(ctx context.Context, creds credentials.Mailbox) (Session, error)
}

// FailedAttachment is a statement that was found but could not be read out of
// its message.
type FailedAttachment struct {
	Name string
	Err  error
}

// ScanResult is the outcome of one mailbox scan. StatementsFound counts both
// Documents and Failed.
type ScanResult struct {
	Documents       []Document
	Failed          []FailedAttachment
	EmailsScanned   int
	StatementsFound int
}

// Options tune retries and timeouts.
type Options struct {
	RetryAttempts  int
	RetryBase      time.Duration
	ConnectTimeout time.Duration
}

// Acquirer scans mailboxes for statement attachments.
type Acquirer struct {
	dialer Dialer
	opts   Options
	logger *slog.Logger
	now    func() time.Time
}

// New creates an Acquirer.
func New(dialer Dialer, opts Options, logger *slog.Logger) *Acquirer {
	if opts.RetryAttempts < 0 {
		opts.RetryAttempts = 0
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = 500 * time.Millisecond
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 30 * time.Second
	}
	return &Acquirer{dialer: dialer, opts: opts, logger: logger, now: time.Now}
}

// ScanMailbox lists messages in the last days, keeps those that carry a PDF or
// match the statement allow-list, and returns one document per PDF attachment.
// Transient failures retry the whole scan with exponential backoff.
func (a *Acquirer) ScanMailbox(ctx context.Context, creds credentials.Mailbox, days int, bankHint string) (*ScanResult, error) {
	since := a.now().AddDate(0, 0, -days)
	backoff := retry.WithMaxRetries(uint64(a.opts.RetryAttempts), retry.NewExponential(a.opts.RetryBase))

	var result *ScanResult
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		res, err := a.scanOnce(ctx, creds, since, bankHint)
		if err != nil {
			if IsTransient(err) {
				a.logger.Warn("mailbox scan failed, retrying",
					slog.Int("attempt", attempt),
					slog.Any("error", err),
				)
				return retry.RetryableError(err)
			}
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	a.logger.Info("mailbox scan completed",
		slog.Int("emails_scanned", result.EmailsScanned),
		slog.Int("statements_found", result.StatementsFound),
		slog.Int("attempts", attempt),
	)

	if result.StatementsFound == 0 {
		return result, ErrNoStatementsFound
	}
	return result, nil
}

func (a *Acquirer) scanOnce(ctx context.Context, creds credentials.Mailbox, since time.Time, bankHint string) (*ScanResult, error) {
	dialCtx, cancel := context.WithTimeout(ctx, a.opts.ConnectTimeout)
	session, err := a.dialer.Dial(dialCtx, creds)
	cancel()
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			a.logger.Debug("failed to close mailbox session", slog.Any("error", cerr))
		}
	}()

	messages, err := session.Search(ctx, since)
	if err != nil {
		return nil, err
	}

	result := &ScanResult{EmailsScanned: len(messages)}
	seen := make(map[string]int)
	uniqueName := func(filename string, msg Message) string {
		name := filename
		if n := seen[filename]; n > 0 {
			name = fmt.Sprintf("%s (%s)", filename, msg.ID)
		}
		seen[filename]++
		return name
	}

	for _, msg := range messages {
		if !msg.HasPDF && !LooksLikeStatement(msg.From, msg.Subject, bankHint) {
			continue
		}

		attachments, err := session.Attachments(ctx, msg)
		if err != nil {
			if abortsScan(ctx, err) {
				return nil, err
			}
			a.logger.Warn("unreadable statement message",
				slog.String("message", msg.ID),
				slog.Any("error", err),
			)
			result.Failed = append(result.Failed, FailedAttachment{
				Name: uniqueName(fmt.Sprintf("message %s", msg.ID), msg),
				Err:  err,
			})
		}

		bank := DetectBank(msg.From, msg.Subject)
		if bank == BankUnknown && bankHint != "" {
			bank = NormalizeBank(bankHint)
		}

		for _, att := range attachments {
			name := uniqueName(att.Filename, msg)
			if att.Err != nil {
				result.Failed = append(result.Failed, FailedAttachment{Name: name, Err: att.Err})
				continue
			}

			result.Documents = append(result.Documents, Document{
				Name:   name,
				Source: fmt.Sprintf("email:%s/%s", msg.ID, att.Filename),
				Bank:   bank,
				Kind:   KindPDF,
				Data:   att.Data,
				Status: StatusPending,
			})
		}
	}

	result.StatementsFound = len(result.Documents) + len(result.Failed)
	return result, nil
}

// abortsScan reports whether a failure reading one message ends the whole
// scan. Anything else is local to that message.
func abortsScan(ctx context.Context, err error) bool {
	return IsTransient(err) || IsAuthentication(err) || ctx.Err() != nil ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

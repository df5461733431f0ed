package acquirer

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"github.com/FACorreiaa/pennywise/internal/domain/credentials"
)

var _ Dialer = (*IMAPDialer)(nil)

// IMAPDialer connects to IMAP servers over TLS on port 993.
type IMAPDialer struct {
	Timeout time.Duration
	Logger  *slog.Logger
}

// NewIMAPDialer creates a dialer with the given connection timeout.
func NewIMAPDialer(timeout time.Duration, logger *slog.Logger) *IMAPDialer {
	return &IMAPDialer{Timeout: timeout, Logger: logger}
}

// Dial logs in and selects INBOX read-only.
func (d *IMAPDialer) Dial(ctx context.Context, creds credentials.Mailbox) (Session, error) {
	addr, err := creds.Addr()
	if err != nil {
		return nil, err
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid imap address %q: %w", addr, err)
	}

	dialer := &net.Dialer{Timeout: d.Timeout}
	if deadline, ok := ctx.Deadline(); ok {
		dialer.Deadline = deadline
	}

	c, err := client.DialWithDialerTLS(dialer, addr, &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12})
	if err != nil {
		return nil, &TransientConnectivityError{Server: addr, Op: "dial", Err: err}
	}
	c.Timeout = d.Timeout

	stop := context.AfterFunc(ctx, func() { _ = c.Terminate() })
	defer stop()

	if err := c.Login(creds.Email, creds.AppPassword); err != nil {
		_ = c.Logout()
		return nil, classifyLoginError(addr, err)
	}

	if _, err := c.Select("INBOX", true); err != nil {
		_ = c.Logout()
		return nil, &TransientConnectivityError{Server: addr, Op: "select", Err: err}
	}

	d.Logger.Debug("mailbox session opened", slog.String("server", addr))
	return &imapSession{c: c, server: addr}, nil
}

// classifyLoginError separates a server refusal (NO/BAD) from a broken connection.
func classifyLoginError(server string, err error) error {
	var status *imap.ErrStatusResp
	if errors.As(err, &status) {
		return &AuthenticationError{Server: server, Err: err}
	}
	return &TransientConnectivityError{Server: server, Op: "login", Err: err}
}

type imapSession struct {
	c      *client.Client
	server string
}

func (s *imapSession) Search(ctx context.Context, since time.Time) ([]Message, error) {
	stop := context.AfterFunc(ctx, func() { _ = s.c.Terminate() })
	defer stop()

	criteria := imap.NewSearchCriteria()
	criteria.Since = since

	uids, err := s.c.UidSearch(criteria)
	if err != nil {
		return nil, s.ioError(ctx, "search", err)
	}
	if len(uids) == 0 {
		return nil, nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)

	ch := make(chan *imap.Message, 16)
	done := make(chan error, 1)
	go func() {
		done <- s.c.UidFetch(seqset, []imap.FetchItem{imap.FetchUid, imap.FetchEnvelope, imap.FetchBodyStructure}, ch)
	}()

	messages := make([]Message, 0, len(uids))
	for m := range ch {
		messages = append(messages, toMessage(m))
	}
	if err := <-done; err != nil {
		return nil, s.ioError(ctx, "fetch envelopes", err)
	}
	return messages, nil
}

func (s *imapSession) Attachments(ctx context.Context, msg Message) ([]Attachment, error) {
	uid, err := strconv.ParseUint(msg.ID, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid message uid %q: %w", msg.ID, err)
	}

	stop := context.AfterFunc(ctx, func() { _ = s.c.Terminate() })
	defer stop()

	seqset := new(imap.SeqSet)
	seqset.AddNum(uint32(uid))
	section := &imap.BodySectionName{Peek: true}

	ch := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- s.c.UidFetch(seqset, []imap.FetchItem{section.FetchItem()}, ch)
	}()

	var raw []byte
	for m := range ch {
		if body := m.GetBody(section); body != nil {
			raw, err = io.ReadAll(body)
			if err != nil {
				return nil, s.ioError(ctx, "read body", err)
			}
		}
	}
	if err := <-done; err != nil {
		return nil, s.ioError(ctx, "fetch body", err)
	}
	if raw == nil {
		return nil, nil
	}

	return extractPDFAttachments(bytes.NewReader(raw))
}

func (s *imapSession) Close() error {
	return s.c.Logout()
}

func (s *imapSession) ioError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("mailbox %s: %w", op, ctxErr)
	}
	return &TransientConnectivityError{Server: s.server, Op: op, Err: err}
}

func toMessage(m *imap.Message) Message {
	msg := Message{
		ID:     strconv.FormatUint(uint64(m.Uid), 10),
		HasPDF: hasPDFPart(m.BodyStructure),
	}
	if env := m.Envelope; env != nil {
		msg.Subject = env.Subject
		msg.Date = env.Date
		if len(env.From) > 0 && env.From[0] != nil {
			msg.From = env.From[0].Address()
		}
	}
	return msg
}

// hasPDFPart walks a BODYSTRUCTURE looking for a PDF leaf.
func hasPDFPart(bs *imap.BodyStructure) bool {
	if bs == nil {
		return false
	}
	if strings.EqualFold(bs.MIMEType, "application") && strings.EqualFold(bs.MIMESubType, "pdf") {
		return true
	}
	if isPDFName(lookupParam(bs.Params, "name")) || isPDFName(lookupParam(bs.DispositionParams, "filename")) {
		return true
	}
	for _, part := range bs.Parts {
		if hasPDFPart(part) {
			return true
		}
	}
	return false
}

// extractPDFAttachments walks a raw RFC 5322 message and returns its PDF parts.
func extractPDFAttachments(r io.Reader) ([]Attachment, error) {
	mr, err := mail.CreateReader(r)
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("read message: %w", err)
	}
	if mr == nil {
		return nil, fmt.Errorf("read message: %w", err)
	}
	defer mr.Close()

	var attachments []Attachment
	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil && !message.IsUnknownCharset(err) {
			return attachments, fmt.Errorf("read part: %w", err)
		}
		if p == nil {
			continue
		}

		var filename, mediaType string
		switch h := p.Header.(type) {
		case *mail.AttachmentHeader:
			filename, _ = h.Filename()
			mediaType, _, _ = h.ContentType()
		case *mail.InlineHeader:
			var params map[string]string
			mediaType, params, _ = h.ContentType()
			filename = params["name"]
		}

		data, err := io.ReadAll(p.Body)
		if err != nil {
			// An undecodable part only fails that statement.
			if !isPDFAttachment(filename, mediaType, nil) {
				continue
			}
			if filename == "" {
				filename = fmt.Sprintf("statement-%d.pdf", len(attachments)+1)
			}
			attachments = append(attachments, Attachment{
				Filename: filename,
				Err:      fmt.Errorf("read part body: %w", err),
			})
			continue
		}

		if !isPDFAttachment(filename, mediaType, data) {
			continue
		}
		if filename == "" {
			filename = fmt.Sprintf("statement-%d.pdf", len(attachments)+1)
		}
		attachments = append(attachments, Attachment{Filename: filename, Data: data})
	}

	return attachments, nil
}

func isPDFAttachment(filename, mediaType string, data []byte) bool {
	switch {
	case strings.EqualFold(mediaType, "application/pdf"):
		return true
	case isPDFName(filename):
		return true
	case strings.EqualFold(mediaType, "application/octet-stream"):
		return IsPDF(data)
	}
	return false
}

func isPDFName(name string) bool {
	return strings.HasSuffix(strings.ToLower(strings.TrimSpace(name)), ".pdf")
}

func lookupParam(params map[string]string, key string) string {
	for k, v := range params {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

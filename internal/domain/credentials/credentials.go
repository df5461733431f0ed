// Package credentials holds the per-request secrets of an ingestion: mailbox
// login and PDF password hints. Values live only for the lifetime of a job and
// redact themselves when logged.
package credentials

import (
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
)

const (
	DefaultIMAPPort = 993
	DefaultDays     = 30
	MaxDays         = 365
)

var (
	ErrMissingEmail    = errors.New("email is required")
	ErrInvalidEmail    = errors.New("email is not a valid address")
	ErrMissingPassword = errors.New("app password is required")
	ErrInvalidDays     = errors.New("days must be between 1 and 365")
	ErrUnknownServer   = errors.New("imap server could not be detected, provide imap_server")
	ErrInvalidDOB      = errors.New("date_of_birth is not a recognized date")
)

// knownServers maps mailbox domains to their IMAP host.
var knownServers = map[string]string{
	"gmail.com":      "imap.gmail.com",
	"googlemail.com": "imap.gmail.com",
	"yahoo.com":      "imap.mail.yahoo.com",
	"yahoo.co.in":    "imap.mail.yahoo.com",
	"ymail.com":      "imap.mail.yahoo.com",
	"outlook.com":    "outlook.office365.com",
	"hotmail.com":    "outlook.office365.com",
	"live.com":       "outlook.office365.com",
}

// Mailbox is the login for one mailbox scan.
type Mailbox struct {
	Email       string
	AppPassword string
	Server      string
	Days        int
}

// Validate checks required fields and applies the default window.
func (m *Mailbox) Validate() error {
	m.Email = strings.TrimSpace(m.Email)
	if m.Email == "" {
		return ErrMissingEmail
	}
	if _, err := mail.ParseAddress(m.Email); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidEmail, m.Email)
	}
	if m.AppPassword == "" {
		return ErrMissingPassword
	}
	if m.Days == 0 {
		m.Days = DefaultDays
	}
	if m.Days < 1 || m.Days > MaxDays {
		return ErrInvalidDays
	}
	return nil
}

// Host returns the IMAP host, detecting it from the address domain when Server is empty.
func (m Mailbox) Host() (string, error) {
	if s := strings.TrimSpace(m.Server); s != "" {
		return s, nil
	}

	at := strings.LastIndex(m.Email, "@")
	if at < 0 {
		return "", ErrUnknownServer
	}
	domain := strings.ToLower(m.Email[at+1:])

	if host, ok := knownServers[domain]; ok {
		return host, nil
	}
	switch {
	case strings.Contains(domain, "gmail"):
		return "imap.gmail.com", nil
	case strings.Contains(domain, "yahoo"):
		return "imap.mail.yahoo.com", nil
	case strings.Contains(domain, "outlook"), strings.Contains(domain, "hotmail"):
		return "outlook.office365.com", nil
	}
	return "", ErrUnknownServer
}

// Addr returns host:port for the TLS dial.
func (m Mailbox) Addr() (string, error) {
	host, err := m.Host()
	if err != nil {
		return "", err
	}
	if strings.Contains(host, ":") {
		return host, nil
	}
	return fmt.Sprintf("%s:%d", host, DefaultIMAPPort), nil
}

// LogValue keeps the app password out of logs.
func (m Mailbox) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("email", m.Email),
		slog.String("server", m.Server),
		slog.Int("days", m.Days),
		slog.String("app_password", redact(m.AppPassword)),
	)
}

// PasswordHints are the user-supplied facts PDF passwords are derived from.
type PasswordHints struct {
	CustomPassword string
	DateOfBirth    time.Time
	MobileNumber   string
	AccountNumber  string
	PAN            string
}

// dobLayouts are the accepted date_of_birth input formats.
var dobLayouts = []string{"2006-01-02", "02/01/2006", "02-01-2006", "02.01.2006", "02012006"}

// ParseDateOfBirth reads a date of birth in one of the accepted layouts. Empty input is the zero time.
func ParseDateOfBirth(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range dobLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDOB, raw)
}

// NewPasswordHints builds hints from raw request fields.
func NewPasswordHints(custom, dob, mobile, account, pan string) (PasswordHints, error) {
	birth, err := ParseDateOfBirth(dob)
	if err != nil {
		return PasswordHints{}, err
	}
	return PasswordHints{
		CustomPassword: custom,
		DateOfBirth:    birth,
		MobileNumber:   digitsOnly(mobile),
		AccountNumber:  digitsOnly(account),
		PAN:            strings.ToUpper(strings.TrimSpace(pan)),
	}, nil
}

// Empty reports whether no hint was supplied.
func (h PasswordHints) Empty() bool {
	return h.CustomPassword == "" && h.DateOfBirth.IsZero() && h.MobileNumber == "" &&
		h.AccountNumber == "" && h.PAN == ""
}

// LogValue records which hints are present, never their values.
func (h PasswordHints) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Bool("custom_password", h.CustomPassword != ""),
		slog.Bool("date_of_birth", !h.DateOfBirth.IsZero()),
		slog.Bool("mobile_number", h.MobileNumber != ""),
		slog.Bool("account_number", h.AccountNumber != ""),
		slog.Bool("pan", h.PAN != ""),
	)
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "[REDACTED]"
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

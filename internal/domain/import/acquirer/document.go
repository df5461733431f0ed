// Package acquirer obtains candidate statement documents, either from a single
// upload or from a filtered scan of a user's mailbox.
package acquirer

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
)

// DocumentStatus tracks a document through the pipeline.
type DocumentStatus string

const (
	StatusPending   DocumentStatus = "pending"
	StatusUnlocked  DocumentStatus = "unlocked"
	StatusProcessed DocumentStatus = "processed"
	StatusFailed    DocumentStatus = "failed"
)

// Kind is the container format of a document.
type Kind string

const (
	KindPDF  Kind = "pdf"
	KindCSV  Kind = "csv"
	KindXLSX Kind = "xlsx"
)

var ErrEmptyUpload = errors.New("uploaded file is empty")

var pdfMagic = []byte("%PDF-")

// Document is one candidate statement. It is owned by a single ingestion job
// and dropped once parsed; the raw bytes are never stored.
type Document struct {
	Name      string
	Source    string
	Bank      string
	Kind      Kind
	Data      []byte
	Encrypted bool
	Password  string
	Status    DocumentStatus
}

// FromUpload wraps one uploaded byte stream as a document.
func FromUpload(name string, data []byte, bankHint string) (Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Document{}, ErrEmptyUpload
	}
	if name == "" {
		name = "statement"
	}

	bank := BankUnknown
	if bankHint != "" {
		bank = NormalizeBank(bankHint)
	}
	if bank == BankUnknown {
		bank = DetectBank(name, "")
	}

	return Document{
		Name:   name,
		Source: "upload:" + name,
		Bank:   bank,
		Kind:   DetectKind(name, data),
		Data:   data,
		Status: StatusPending,
	}, nil
}

// DetectKind picks the container format from the content, falling back to the extension.
func DetectKind(name string, data []byte) Kind {
	if bytes.HasPrefix(bytes.TrimLeft(data, " \t\r\n"), pdfMagic) {
		return KindPDF
	}
	// XLSX is a zip container.
	if bytes.HasPrefix(data, []byte("PK\x03\x04")) {
		return KindXLSX
	}

	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return KindPDF
	case ".xlsx", ".xlsm":
		return KindXLSX
	case ".csv", ".txt", ".tsv":
		return KindCSV
	}
	return KindCSV
}

// IsPDF reports whether data starts with the PDF header.
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(bytes.TrimLeft(data, " \t\r\n"), pdfMagic)
}

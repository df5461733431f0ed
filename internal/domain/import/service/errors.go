package service

import (
	"errors"
	"fmt"
)

// Reasons a document is abandoned. They appear in failed_pdfs entries.
const (
	ReasonPassword  = "password"
	ReasonCorrupt   = "corrupt"
	ReasonParse     = "parse"
	ReasonStore     = "store"
	ReasonCancelled = "cancelled"
)

// ErrMalformedRequest wraps request problems the caller must fix.
var ErrMalformedRequest = errors.New("malformed request")

// DocumentError reports why a single document could not be ingested.
type DocumentError struct {
	Name   string
	Reason string
	Err    error
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Name, e.Reason, e.Err)
}

func (e *DocumentError) Unwrap() error { return e.Err }

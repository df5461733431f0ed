package acquirer

import (
	"errors"
	"fmt"
)

// ErrNoStatementsFound means the scan completed without a matching attachment.
// It is not fatal to the job.
var ErrNoStatementsFound = errors.New("no bank statements found in the selected window")

// AuthenticationError reports rejected mailbox credentials. It is never retried.
type AuthenticationError struct {
	Server string
	Err    error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("mailbox authentication failed for %s: %v", e.Server, e.Err)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// TransientConnectivityError reports a network fault talking to the mailbox.
type TransientConnectivityError struct {
	Server string
	Op     string
	Err    error
}

func (e *TransientConnectivityError) Error() string {
	return fmt.Sprintf("mailbox %s %s: %v", e.Server, e.Op, e.Err)
}

func (e *TransientConnectivityError) Unwrap() error { return e.Err }

// IsAuthentication reports whether err carries an AuthenticationError.
func IsAuthentication(err error) bool {
	var authErr *AuthenticationError
	return errors.As(err, &authErr)
}

// IsTransient reports whether err carries a TransientConnectivityError.
func IsTransient(err error) bool {
	var netErr *TransientConnectivityError
	return errors.As(err, &netErr)
}

package backend

import (
	"errors"
	"fmt"
)

// Error kinds reported by the boundary adapter. Callers branch with
// errors.Is/errors.As; the concrete types carry the backend's own message
// verbatim where one exists.
var (
	// ErrTransport marks network failures, timeouts, and unreadable
	// responses. A transport failure means "state unknown", not "empty".
	ErrTransport = errors.New("transport failure")
	// ErrNotFound marks a delete against a document the backend does not
	// have.
	ErrNotFound = errors.New("document not found")
)

// ValidationError reports a client-side precondition failure. It is raised
// before any network traffic.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Reason
}

// UploadError carries a backend-reported upload failure.
type UploadError struct {
	Message string
}

func (e *UploadError) Error() string {
	return "upload rejected: " + e.Message
}

// QueryError carries a backend-reported query or chat failure.
type QueryError struct {
	Message string
}

func (e *QueryError) Error() string {
	return "query rejected: " + e.Message
}

// BusyError reports a second submission while one is already in flight.
// It signals a caller bug, never a backend condition.
type BusyError struct{}

func (e *BusyError) Error() string {
	return "a query is already in flight"
}

func transportErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrTransport, err)
}

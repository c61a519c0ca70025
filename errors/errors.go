// Package errors defines the abstract error taxonomy used across the
// corpus pipeline. Every fatal condition the pipeline raises is one of a
// small fixed set of kinds, so callers can branch on kind rather than on
// message text.
package errors

import "fmt"

// Kind identifies one of the abstract error categories a pipeline stage
// can raise.
type Kind string

const (
	// ConfigMissing means a required configuration value or environment
	// variable was not supplied.
	ConfigMissing Kind = "config_missing"
	// UpstreamRejected means an upstream HTTP endpoint returned 400 or 404.
	UpstreamRejected Kind = "upstream_rejected"
	// UpstreamThrottled means an upstream endpoint returned 429; the
	// caller should already have retried before this is surfaced.
	UpstreamThrottled Kind = "upstream_throttled"
	// UpstreamUnavailable means an upstream endpoint returned a status
	// outside {200, 400, 404, 429} after the bounded retry budget.
	UpstreamUnavailable Kind = "upstream_unavailable"
	// FtpDropped means an FTP session could not be restored after the
	// bounded outer retry.
	FtpDropped Kind = "ftp_dropped"
	// SchemaViolation means a TransXChange, NPTG, NaPTAN or NOC document
	// could not be normalised into the expected shape.
	SchemaViolation Kind = "schema_violation"
	// DurationMalformed means an ISO-8601 duration string did not match
	// the expected grammar.
	DurationMalformed Kind = "duration_malformed"
)

// Error is a single pipeline failure: a Kind, a human-readable message,
// the file (if any) it concerns, and an optional underlying cause.
type Error struct {
	Kind    Kind
	Message string
	File    string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.File != "" {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %s (%s): %v", e.Kind, e.Message, e.File, e.Cause)
		}
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.File)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap allows errors.Is/errors.As (stdlib) to see through to Cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WithFile sets the file the error concerns and returns the receiver.
func (e *Error) WithFile(file string) *Error {
	e.File = file
	return e
}

// WithCause sets the underlying cause and returns the receiver.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// Is reports whether err is a pipeline Error of the given kind.
func Is(err error, kind Kind) bool {
	pe, ok := err.(*Error)
	if !ok {
		return false
	}
	return pe.Kind == kind
}

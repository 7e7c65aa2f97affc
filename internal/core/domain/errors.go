package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when an id does not resolve to a non-purged
// record. It is a result, not a failure: never retried, never classified.
var ErrNotFound = errors.New("record not found")

// ErrorKind is the closed failure taxonomy every layer can branch on
// without inspecting raw error text.
type ErrorKind string

const (
	KindValidation        ErrorKind = "validation_error"
	KindStorage           ErrorKind = "storage_error"
	KindTransient         ErrorKind = "transient_error"
	KindIO                ErrorKind = "io_error"
	KindRateLimitExceeded ErrorKind = "rate_limit_exceeded"
	KindUnknown           ErrorKind = "unknown_error"
)

// userMessages are fixed per kind, independent of the technical message,
// so the UI never inspects raw error text.
var userMessages = map[ErrorKind]string{
	KindValidation:        "The entered data is invalid.",
	KindStorage:           "The record could not be saved. Please try again.",
	KindTransient:         "A temporary problem occurred. Retrying may help.",
	KindIO:                "A file could not be accessed.",
	KindRateLimitExceeded: "Too many operations at once. Please wait a moment.",
	KindUnknown:           "An unexpected error occurred.",
}

// ClassifiedError wraps an arbitrary failure with its kind, a retryable
// flag and a user-facing message.
type ClassifiedError struct {
	Kind        ErrorKind
	Retryable   bool
	UserMessage string
	Err         error
}

func (e *ClassifiedError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s (retryable=%t)", e.Kind, e.Retryable)
	}
	return fmt.Sprintf("%s (retryable=%t): %v", e.Kind, e.Retryable, e.Err)
}

func (e *ClassifiedError) Unwrap() error { return e.Err }

// NewClassified builds a ClassifiedError with the kind's standard user
// message.
func NewClassified(kind ErrorKind, retryable bool, err error) *ClassifiedError {
	return &ClassifiedError{
		Kind:        kind,
		Retryable:   retryable,
		UserMessage: userMessages[kind],
		Err:         err,
	}
}

// NewValidationError wraps a domain constraint violation. Validation
// failures are surfaced immediately and never retried.
func NewValidationError(err error) *ClassifiedError {
	return NewClassified(KindValidation, false, err)
}

// AsClassified extracts a ClassifiedError from an error chain.
func AsClassified(err error) (*ClassifiedError, bool) {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

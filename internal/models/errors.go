package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures of the upload lifecycle.
type ErrorKind string

const (
	ValidationError   ErrorKind = "validation"
	PreconditionError ErrorKind = "precondition"
	ConflictError     ErrorKind = "conflict"
	TransportError    ErrorKind = "transport"
	FormatError       ErrorKind = "format"
)

// LifecycleError is returned by panel operations. Message is what the user sees.
type LifecycleError struct {
	Kind       ErrorKind
	Message    string
	StatusCode int // HTTP status of the analysis service, when it answered
	Cause      error
}

func (e *LifecycleError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *LifecycleError) Unwrap() error {
	return e.Cause
}

// NewLifecycleError builds a LifecycleError of the given kind.
func NewLifecycleError(kind ErrorKind, message string, cause error) *LifecycleError {
	return &LifecycleError{Kind: kind, Message: message, Cause: cause}
}

// KindOf returns the kind of err, or "" when err is not a LifecycleError.
func KindOf(err error) ErrorKind {
	var le *LifecycleError
	if errors.As(err, &le) {
		return le.Kind
	}
	return ""
}

// IsKind reports whether err is a LifecycleError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

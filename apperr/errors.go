// Package apperr provides coded errors shared by the ledger and its readers.
package apperr

import (
	"errors"
	"fmt"
)

// Code is a machine-readable error code.
type Code string

const (
	CodeUnknown     Code = "UNKNOWN"
	CodeValidation  Code = "VALIDATION"
	CodeNotFound    Code = "NOT_FOUND"
	CodeConsistency Code = "CONSISTENCY"
)

// Sentinels for errors.Is checks against a code.
var (
	ErrValidation  = &Error{Code: CodeValidation}
	ErrNotFound    = &Error{Code: CodeNotFound}
	ErrConsistency = &Error{Code: CodeConsistency}
)

// Error is the domain error type with structured metadata.
type Error struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a simple domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// WithMetadata returns a copy of e carrying an extra key.
func (e *Error) WithMetadata(key, value string) *Error {
	md := make(map[string]string, len(e.Metadata)+1)
	for k, v := range e.Metadata {
		md[k] = v
	}
	md[key] = value
	return &Error{Code: e.Code, Message: e.Message, Metadata: md, Cause: e.Cause}
}

func Validation(format string, args ...any) *Error {
	return New(CodeValidation, fmt.Sprintf(format, args...))
}

func NotFound(format string, args ...any) *Error {
	return New(CodeNotFound, fmt.Sprintf(format, args...))
}

func Consistency(cause error, format string, args ...any) *Error {
	return Wrap(CodeConsistency, fmt.Sprintf(format, args...), cause)
}

// CodeOf returns the code of the first *Error in the chain.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

func IsValidation(err error) bool  { return errors.Is(err, ErrValidation) }
func IsNotFound(err error) bool    { return errors.Is(err, ErrNotFound) }
func IsConsistency(err error) bool { return errors.Is(err, ErrConsistency) }

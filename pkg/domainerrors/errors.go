// Package domainerrors defines the error taxonomy shared between services
// and the HTTP layer. Services return these; the transport maps codes to
// status codes without inspecting error strings.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code is a stable, machine-readable error class.
type Code string

const (
	CodeBadRequest   Code = "bad_request"
	CodeUnauthorized Code = "unauthorized"
	CodeForbidden    Code = "forbidden"
	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"
	CodeRateLimited  Code = "rate_limited"
	CodeInternal     Code = "internal_error"
)

// Error carries a code plus a human-readable description. The description of
// internal errors is never shown to clients.
type Error struct {
	Code        Code
	Description string
	cause       error
}

// New builds a domain error with no underlying cause.
func New(code Code, description string) *Error {
	return &Error{Code: code, Description: description}
}

// Wrap builds a domain error preserving the underlying cause for errors.Is.
func Wrap(code Code, description string, cause error) *Error {
	return &Error{Code: code, Description: description, cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Description, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

func (e *Error) Unwrap() error { return e.cause }

// CodeOf extracts the domain code from an error chain, defaulting to
// CodeInternal for unclassified errors.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// DescriptionOf extracts the client-facing description, empty for
// unclassified errors.
func DescriptionOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Description
	}
	return ""
}

// Package errors provides a structured error system for the xowl packaging tools.
// Errors carry a domain, a code and the process exit code the CLI reports, and
// support wrapping so callers can match them with errors.Is through any chain.
package errors

import (
	"errors"
	"fmt"
)

// Code represents a unique error code within a domain
type Code string

// Domain represents an error domain (e.g., "resolve", "archive", "storage")
type Domain string

// Error domains
const (
	DomainResolve    Domain = "resolve"
	DomainIO         Domain = "io"
	DomainArchive    Domain = "archive"
	DomainDescriptor Domain = "descriptor"
	DomainAssembly   Domain = "assembly"
	DomainProject    Domain = "project"
	DomainStorage    Domain = "storage"
	DomainDatabase   Domain = "database"
	DomainConfig     Domain = "config"
	DomainInternal   Domain = "internal"
)

// Process exit codes reported by the CLI
const (
	ExitOK         = 0
	ExitFailure    = 1
	ExitUsage      = 2
	ExitResolution = 3
	ExitIO         = 4
	ExitPackaging  = 5
	ExitStorage    = 6
)

// Error represents a structured error with domain, code and exit code
type Error struct {
	// Domain categorizes the error (e.g., "resolve", "archive")
	Domain Domain `json:"domain"`

	// Code is a unique identifier within the domain (e.g., "not_resolved")
	Code Code `json:"code"`

	// Message is a human-readable error message
	Message string `json:"message"`

	// ExitCode is the process exit code used when this error ends a command
	ExitCode int `json:"-"`

	// cause is the underlying error if this error wraps another
	cause error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is and errors.As support
func (e *Error) Unwrap() error {
	return e.cause
}

// Is implements error comparison for errors.Is
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Domain == t.Domain && e.Code == t.Code
}

// WithCause returns a new error with the underlying cause attached
func (e *Error) WithCause(cause error) *Error {
	return &Error{
		Domain:   e.Domain,
		Code:     e.Code,
		Message:  e.Message,
		ExitCode: e.ExitCode,
		cause:    cause,
	}
}

// WithMessage returns a new error with a custom message
func (e *Error) WithMessage(message string) *Error {
	return &Error{
		Domain:   e.Domain,
		Code:     e.Code,
		Message:  message,
		ExitCode: e.ExitCode,
		cause:    e.cause,
	}
}

// WithMessagef returns a new error with a formatted custom message
func (e *Error) WithMessagef(format string, args ...interface{}) *Error {
	return &Error{
		Domain:   e.Domain,
		Code:     e.Code,
		Message:  fmt.Sprintf(format, args...),
		ExitCode: e.ExitCode,
		cause:    e.cause,
	}
}

// New creates a new Error with the given parameters
func New(domain Domain, code Code, exitCode int, message string) *Error {
	return &Error{
		Domain:   domain,
		Code:     code,
		Message:  message,
		ExitCode: exitCode,
	}
}

// Wrap wraps an existing error with an Error
func Wrap(err error, domain Domain, code Code, exitCode int, message string) *Error {
	return &Error{
		Domain:   domain,
		Code:     code,
		Message:  message,
		ExitCode: exitCode,
		cause:    err,
	}
}

// GetExitCode returns the exit code for an error.
// A nil error yields ExitOK and a non-*Error yields ExitFailure.
func GetExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var e *Error
	if errors.As(err, &e) && e.ExitCode != 0 {
		return e.ExitCode
	}
	return ExitFailure
}

// GetCode returns the error code if the error is an *Error, otherwise empty string
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// GetDomain returns the error domain if the error is an *Error, otherwise empty string
func GetDomain(err error) Domain {
	var e *Error
	if errors.As(err, &e) {
		return e.Domain
	}
	return ""
}

// Is checks if an error matches a target error (delegates to errors.Is)
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target (delegates to errors.As)
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

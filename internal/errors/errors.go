// Package errors provides coded domain errors for the BooksSwap API.
//
// Services return *Error values built from the constructors below; the API
// layer maps the Code to an HTTP status. Callers compare with errors.Is,
// which matches on Code:
//
//	if errors.Is(err, errors.ErrInvalidOperation) {
//	    // wrong source state or self-targeted request
//	}
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Re-exported so callers need only one errors import.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
	New    = errors.New
)

// Code is a machine-readable error code.
type Code string

const (
	CodeNotFound             Code = "NOT_FOUND"
	CodeForbidden            Code = "FORBIDDEN"
	CodeInvalidOperation     Code = "INVALID_OPERATION"
	CodeValidation           Code = "VALIDATION"
	CodeUnauthorized         Code = "UNAUTHORIZED"
	CodeAlreadyExists        Code = "ALREADY_EXISTS"
	CodeConflict             Code = "CONFLICT"
	CodeInvalidCredentials   Code = "INVALID_CREDENTIALS"
	CodeSubscriptionRequired Code = "SUBSCRIPTION_REQUIRED"
	CodeBillingUnavailable   Code = "BILLING_UNAVAILABLE"
	CodeInternal             Code = "INTERNAL"
)

// HTTPStatus returns the HTTP status code for an error code.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeForbidden, CodeSubscriptionRequired:
		return http.StatusForbidden
	case CodeInvalidOperation, CodeAlreadyExists, CodeConflict:
		return http.StatusConflict
	case CodeValidation:
		return http.StatusBadRequest
	case CodeUnauthorized, CodeInvalidCredentials:
		return http.StatusUnauthorized
	case CodeBillingUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error is a domain error with a code, message, and optional details.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches any *Error carrying the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// HTTPStatus returns the HTTP status code for this error.
func (e *Error) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// GetStatus lets handlers return domain errors directly as huma status errors.
func (e *Error) GetStatus() int {
	return e.HTTPStatus()
}

// WithDetails returns a copy carrying details.
func (e *Error) WithDetails(details any) *Error {
	return &Error{Code: e.Code, Message: e.Message, Details: details, cause: e.cause}
}

// WithCause returns a copy wrapping err.
func (e *Error) WithCause(err error) *Error {
	return &Error{Code: e.Code, Message: e.Message, Details: e.Details, cause: err}
}

// Sentinels for errors.Is.
var (
	ErrNotFound             = &Error{Code: CodeNotFound, Message: "not found"}
	ErrForbidden            = &Error{Code: CodeForbidden, Message: "forbidden"}
	ErrInvalidOperation     = &Error{Code: CodeInvalidOperation, Message: "invalid operation"}
	ErrValidation           = &Error{Code: CodeValidation, Message: "validation error"}
	ErrUnauthorized         = &Error{Code: CodeUnauthorized, Message: "unauthorized"}
	ErrAlreadyExists        = &Error{Code: CodeAlreadyExists, Message: "already exists"}
	ErrConflict             = &Error{Code: CodeConflict, Message: "conflict"}
	ErrInvalidCredentials   = &Error{Code: CodeInvalidCredentials, Message: "invalid credentials"}
	ErrSubscriptionRequired = &Error{Code: CodeSubscriptionRequired, Message: "active subscription required"}
	ErrBillingUnavailable   = &Error{Code: CodeBillingUnavailable, Message: "billing is not configured"}
	ErrInternal             = &Error{Code: CodeInternal, Message: "internal error"}
)

// NotFound creates a not found error.
func NotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

// NotFoundf creates a not found error with a formatted message.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Forbidden creates a forbidden error.
func Forbidden(msg string) *Error {
	return &Error{Code: CodeForbidden, Message: msg}
}

// InvalidOperation creates an error for a transition the current state does
// not permit.
func InvalidOperation(msg string) *Error {
	return &Error{Code: CodeInvalidOperation, Message: msg}
}

// InvalidOperationf creates an invalid operation error with a formatted message.
func InvalidOperationf(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidOperation, Message: fmt.Sprintf(format, args...)}
}

// Validation creates a validation error.
func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg}
}

// ValidationWithDetails creates a validation error with field details.
func ValidationWithDetails(msg string, details any) *Error {
	return &Error{Code: CodeValidation, Message: msg, Details: details}
}

// Unauthorized creates an unauthorized error.
func Unauthorized(msg string) *Error {
	return &Error{Code: CodeUnauthorized, Message: msg}
}

// AlreadyExists creates an already exists error.
func AlreadyExists(msg string) *Error {
	return &Error{Code: CodeAlreadyExists, Message: msg}
}

// Conflict creates a conflict error.
func Conflict(msg string) *Error {
	return &Error{Code: CodeConflict, Message: msg}
}

// InvalidCredentials creates an invalid credentials error.
func InvalidCredentials(msg string) *Error {
	return &Error{Code: CodeInvalidCredentials, Message: msg}
}

// SubscriptionRequired creates an entitlement error for paywalled actions.
func SubscriptionRequired(msg string) *Error {
	return &Error{Code: CodeSubscriptionRequired, Message: msg}
}

// BillingUnavailable creates an error for billing calls made without a
// configured payment provider.
func BillingUnavailable(msg string) *Error {
	return &Error{Code: CodeBillingUnavailable, Message: msg}
}

// Internal creates an internal error.
func Internal(msg string) *Error {
	return &Error{Code: CodeInternal, Message: msg}
}

// Wrap wraps err with a code and message.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, cause: err}
}

// Wrapf wraps err with a code and formatted message.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: err}
}

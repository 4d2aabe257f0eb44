package domain

import (
	"errors"
	"fmt"
)

// Error codes. Handlers translate them to HTTP statuses.
const (
	EINVALID      = "invalid"
	EUNAUTHORIZED = "unauthorized"
	EPAYMENT      = "payment"
	EFORBIDDEN    = "forbidden" // also exhausted quotas
	ENOTFOUND     = "not_found"
	ECONFLICT     = "conflict"
	ETOOLARGE     = "too_large"
	ERATELIMIT    = "rate_limit"
	EINTERNAL     = "internal"
	ENOTIMPL      = "not_impl" // optional integration without credentials
)

// internalMessage replaces the message of EINTERNAL errors before they
// reach a client.
const internalMessage = "An internal error occurred. Please try again later."

// Error is the application error carried from services to handlers.
// Op names the failing operation as "pkg.action" and is only logged.
type Error struct {
	Code    string
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Message
	}
	return e.Op + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newError(code, op, message string, err error) *Error {
	return &Error{Code: code, Op: op, Message: message, Err: err}
}

// asError finds the outermost *Error in err's chain.
func asError(err error) (*Error, bool) {
	var e *Error
	if err == nil || !errors.As(err, &e) {
		return nil, false
	}
	return e, true
}

// Errorf builds an error with a formatted message.
func Errorf(code, op, format string, args ...any) *Error {
	return newError(code, op, fmt.Sprintf(format, args...), nil)
}

// Wrap attaches a code and message to err.
func Wrap(err error, code, op, message string) *Error {
	return newError(code, op, message, err)
}

func NotFound(op, resource, id string) *Error {
	return newError(ENOTFOUND, op, fmt.Sprintf("%s %q not found", resource, id), nil)
}

func Invalid(op, message string) *Error {
	return newError(EINVALID, op, message, nil)
}

func Unauthorized(op, message string) *Error {
	return newError(EUNAUTHORIZED, op, message, nil)
}

func Forbidden(op, message string) *Error {
	return newError(EFORBIDDEN, op, message, nil)
}

func Conflict(op, message string) *Error {
	return newError(ECONFLICT, op, message, nil)
}

// Internal hides err behind message; clients only ever see internalMessage.
func Internal(err error, op, message string) *Error {
	return newError(EINTERNAL, op, message, err)
}

func RateLimit(op string) *Error {
	return newError(ERATELIMIT, op, "Too many requests. Please try again later.", nil)
}

// NotConfigured reports that an optional integration has no credentials.
func NotConfigured(op, integration string) *Error {
	return newError(ENOTIMPL, op, integration+" is not configured", nil)
}

// QuotaExceeded is a 403 whose message is shown to the end user as is.
func QuotaExceeded(err error, op, detail string) *Error {
	return newError(EFORBIDDEN, op, detail, err)
}

// ErrorCode returns err's code. Errors from outside the domain are
// EINTERNAL; nil has no code.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	if e, ok := asError(err); ok {
		return e.Code
	}
	return EINTERNAL
}

// ErrorMessage returns the message safe to show a client.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	e, ok := asError(err)
	if !ok || e.Code == EINTERNAL {
		return internalMessage
	}
	return e.Message
}

func ErrorOp(err error) string {
	if e, ok := asError(err); ok {
		return e.Op
	}
	return ""
}

// IsCode reports whether err carries code.
func IsCode(err error, code string) bool {
	e, ok := asError(err)
	return ok && e.Code == code
}

// ValidationError collects per-field messages for a rejected request.
type ValidationError struct {
	Op     string
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: validation failed on %d field(s)", e.Op, len(e.Fields))
}

// Add records message for field and returns e.
func (e *ValidationError) Add(field, message string) *ValidationError {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = message
	return e
}

// NewValidationError starts a ValidationError with one field.
func NewValidationError(op, field, message string) *ValidationError {
	return (&ValidationError{Op: op}).Add(field, message)
}

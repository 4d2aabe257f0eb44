package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/DukeRupert/tenantly/internal/domain"
)

// ErrorResponse writes err as JSON with the status its domain code maps to.
// Permission failures (401, 402, 403) use a "detail" key; everything else
// uses "error".
func ErrorResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	code := domain.ErrorCode(err)
	status := ErrorCodeToHTTPStatus(code)
	logError(logger, r, err, code, domain.ErrorOp(err), status)

	message := domain.ErrorMessage(err)
	if isPermissionStatus(status) {
		writeJSON(w, status, JSONDetail{Detail: message, Code: code})
		return
	}
	writeJSON(w, status, JSONError{Error: message, Code: code})
}

var statusByCode = map[string]int{
	domain.EINVALID:      http.StatusBadRequest,
	domain.EUNAUTHORIZED: http.StatusUnauthorized,
	domain.EPAYMENT:      http.StatusPaymentRequired,
	domain.EFORBIDDEN:    http.StatusForbidden,
	domain.ENOTFOUND:     http.StatusNotFound,
	domain.ECONFLICT:     http.StatusConflict,
	domain.ETOOLARGE:     http.StatusRequestEntityTooLarge,
	domain.ERATELIMIT:    http.StatusTooManyRequests,
	domain.EINTERNAL:     http.StatusInternalServerError,
	domain.ENOTIMPL:      http.StatusNotImplemented,
}

// ErrorCodeToHTTPStatus maps a domain code to its status. Unknown codes
// are 500.
func ErrorCodeToHTTPStatus(code string) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// ValidationErrorResponse writes field-level validation errors. Other
// errors fall through to ErrorResponse.
func ValidationErrorResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		ErrorResponse(w, r, logger, err)
		return
	}

	logger.Info("validation error",
		"op", ve.Op,
		"field_count", len(ve.Fields),
		"path", r.URL.Path,
	)

	writeJSON(w, http.StatusBadRequest, JSONError{
		Error:  "Validation failed",
		Code:   domain.EINVALID,
		Fields: ve.Fields,
	})
}

var (
	errNotFound     = domain.Errorf(domain.ENOTFOUND, "", "Not found.")
	errNotLoggedIn  = domain.Errorf(domain.EUNAUTHORIZED, "", "Authentication credentials were not provided.")
	errNoPermission = domain.Errorf(domain.EFORBIDDEN, "", "You do not have permission to perform this action.")
)

func NotFoundResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger) {
	ErrorResponse(w, r, logger, errNotFound)
}

func UnauthorizedResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger) {
	ErrorResponse(w, r, logger, errNotLoggedIn)
}

func ForbiddenResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger) {
	ErrorResponse(w, r, logger, errNoPermission)
}

// InternalErrorResponse answers 500 without exposing err.
func InternalErrorResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	ErrorResponse(w, r, logger, domain.Internal(err, "", "An unexpected error occurred"))
}

// logError logs 5xx at error level and 4xx at info.
func logError(logger *slog.Logger, r *http.Request, err error, code, op string, status int) {
	if status < 400 {
		return
	}
	attrs := []any{"error", err.Error(), "code", code, "method", r.Method, "path", r.URL.Path, "status", status}
	if op != "" {
		attrs = append(attrs, "op", op)
	}
	if status >= 500 {
		logger.Error("server error", attrs...)
		return
	}
	logger.Info("client error", attrs...)
}

// isPermissionStatus reports whether status belongs to the auth and
// permission class rendered with a "detail" key.
func isPermissionStatus(status int) bool {
	return status == http.StatusUnauthorized ||
		status == http.StatusPaymentRequired ||
		status == http.StatusForbidden
}

// JSONError is the body of a non-permission error.
type JSONError struct {
	Error  string            `json:"error"`
	Code   string            `json:"code"`
	Fields map[string]string `json:"fields,omitempty"`
}

// JSONDetail is the body of a 401, 402 or 403.
type JSONDetail struct {
	Detail string `json:"detail"`
	Code   string `json:"code"`
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a typed domain error carrying its HTTP status and a stable
// machine-readable code.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New builds a typed error.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap types an underlying error while keeping it on the unwrap chain.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Sentinel errors reused across services.
var (
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")

	// Extraction pipeline errors. Lock contention and infeasible plans are
	// not errors; they surface as structured 202 and 400 payloads.
	ErrQuotaExhausted = New("QUOTA_EXHAUSTED", http.StatusForbidden, "topic quota exhausted")
	ErrNoValidTopics  = New("NO_VALID_TOPICS", http.StatusInternalServerError, "no valid topics could be extracted")
	ErrRateLimited    = New("RATE_LIMITED", http.StatusTooManyRequests, "too many extraction runs, try again later")

	// ErrCacheMiss signals a cache lookup found nothing. Never surfaced to
	// clients.
	ErrCacheMiss = New("CACHE_MISS", http.StatusNotFound, "cache miss")

	// Model gateway errors.
	ErrModelRateLimited      = New("MODEL_RATE_LIMITED", http.StatusTooManyRequests, "model gateway rate limited")
	ErrModelCreditsExhausted = New("MODEL_CREDITS_EXHAUSTED", http.StatusPaymentRequired, "model gateway credits exhausted")
	ErrModelUnavailable      = New("MODEL_UNAVAILABLE", http.StatusServiceUnavailable, "model gateway unavailable")
	ErrModelInvalidOutput    = New("MODEL_INVALID_OUTPUT", http.StatusInternalServerError, "model returned unparseable output")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// HasCode reports whether err carries the given error code.
func HasCode(err error, code string) bool {
	e := FromError(err)
	return e != nil && e.Code == code
}

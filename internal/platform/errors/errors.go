// Package errors provides the unified error-kind taxonomy shared by every
// service in the platform: gateway, ingestion, query, account, aggregator.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode identifies the kind of failure a ServiceError represents.
type ErrorCode string

const (
	CodeInvalidInput          ErrorCode = "INVALID_INPUT"
	CodeUnauthenticated       ErrorCode = "UNAUTHENTICATED"
	CodeForbidden             ErrorCode = "FORBIDDEN"
	CodeNotFound              ErrorCode = "NOT_FOUND"
	CodeConflict              ErrorCode = "CONFLICT"
	CodeRateLimited           ErrorCode = "RATE_LIMITED"
	CodeQuotaExceeded         ErrorCode = "QUOTA_EXCEEDED"
	CodeBackpressure          ErrorCode = "BACKPRESSURE"
	CodeDownstreamUnavailable ErrorCode = "DOWNSTREAM_UNAVAILABLE"
	CodeInternal              ErrorCode = "INTERNAL"
)

// ServiceError is a structured error carrying an HTTP status, a stable code,
// and optional machine-readable details. Every handler and RPC boundary in
// the platform returns these instead of bare errors.
type ServiceError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	HTTPStatus int                    `json:"-"`
	RetryAfter int                    `json:"retry_after,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Err        error                  `json:"-"`
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// WithDetails attaches a machine-readable field to the error and returns it
// for chaining.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithRetryAfter sets the number of seconds a client should wait before
// retrying and returns the error for chaining.
func (e *ServiceError) WithRetryAfter(seconds int) *ServiceError {
	e.RetryAfter = seconds
	return e
}

// New creates a ServiceError with no wrapped cause.
func New(code ErrorCode, message string, httpStatus int) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: httpStatus}
}

// Wrap creates a ServiceError around an existing error.
func Wrap(code ErrorCode, message string, httpStatus int, err error) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: httpStatus, Err: err}
}

// InvalidInput reports a request field that failed validation (§7).
func InvalidInput(field, reason string) *ServiceError {
	return New(CodeInvalidInput, "invalid input", http.StatusBadRequest).
		WithDetails("field", field).
		WithDetails("reason", reason)
}

// UnprocessableInput reports a semantically invalid but well-formed body.
func UnprocessableInput(reason string) *ServiceError {
	return New(CodeInvalidInput, reason, http.StatusUnprocessableEntity)
}

// Unauthenticated reports a missing or invalid credential.
func Unauthenticated(message string) *ServiceError {
	return New(CodeUnauthenticated, message, http.StatusUnauthorized)
}

// Forbidden reports a credential that does not grant the requested access.
func Forbidden(message string) *ServiceError {
	return New(CodeForbidden, message, http.StatusForbidden)
}

// NotFound reports a missing resource.
func NotFound(resource, id string) *ServiceError {
	return New(CodeNotFound, "resource not found", http.StatusNotFound).
		WithDetails("resource", resource).
		WithDetails("id", id)
}

// Conflict reports a uniqueness or state conflict.
func Conflict(message string) *ServiceError {
	return New(CodeConflict, message, http.StatusConflict)
}

// RateLimited reports that the per-minute or per-hour request budget was
// exceeded; retryAfter is in seconds.
func RateLimited(retryAfter int) *ServiceError {
	return New(CodeRateLimited, "rate limit exceeded", http.StatusTooManyRequests).
		WithRetryAfter(retryAfter)
}

// QuotaExceeded reports that the project's daily event quota was exhausted.
func QuotaExceeded(limit int64) *ServiceError {
	return New(CodeQuotaExceeded, "daily quota exceeded", http.StatusPaymentRequired).
		WithDetails("limit", limit)
}

// Backpressure reports that the ingestion queue is full; retryAfter is in
// seconds and defaults to 60 per §7.
func Backpressure() *ServiceError {
	return New(CodeBackpressure, "ingestion queue is full", http.StatusServiceUnavailable).
		WithRetryAfter(60)
}

// DownstreamUnavailable reports that a downstream RPC service could not be
// reached (circuit open, timeout, connection refused).
func DownstreamUnavailable(service string, err error) *ServiceError {
	return Wrap(CodeDownstreamUnavailable, "downstream service unavailable", http.StatusServiceUnavailable, err).
		WithDetails("service", service)
}

// Internal reports an unexpected failure.
func Internal(message string, err error) *ServiceError {
	return Wrap(CodeInternal, message, http.StatusInternalServerError, err)
}

// IsServiceError reports whether err (or something it wraps) is a ServiceError.
func IsServiceError(err error) bool {
	var serviceErr *ServiceError
	return stderrors.As(err, &serviceErr)
}

// GetServiceError extracts the first ServiceError in err's chain, or nil.
func GetServiceError(err error) *ServiceError {
	var serviceErr *ServiceError
	if stderrors.As(err, &serviceErr) {
		return serviceErr
	}
	return nil
}

// GetHTTPStatus returns the HTTP status associated with err, defaulting to
// 500 for non-ServiceError values.
func GetHTTPStatus(err error) int {
	if serviceErr := GetServiceError(err); serviceErr != nil {
		return serviceErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

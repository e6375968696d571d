// Package apperror provides structured error handling following RFC 7807 Problem Details.
// Every error the engine reports to callers is an AppError so the transport layer
// can tell "not found", "conflict", "forbidden" and "precondition" apart.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes
const (
	// Infrastructure errors (5xx)
	CodeInternal       = "INTERNAL_ERROR"
	CodeDatabase       = "DATABASE_ERROR"
	CodeSchemaNotReady = "SCHEMA_NOT_READY"

	// Validation errors (400)
	CodeValidation = "VALIDATION_ERROR"

	// Precondition failures (422): the request does not fit the current state
	CodeNumberNotReserved = "NUMBER_NOT_RESERVED"
	CodeSessionNotActive  = "SESSION_NOT_ACTIVE"

	// Authorization errors (401, 403)
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"

	// Not found (404)
	CodeNotFound = "NOT_FOUND"

	// Conflict (409): the resource was contended, retrying may help
	CodeConflict           = "CONFLICT"
	CodeDuplicate          = "DUPLICATE_ENTRY"
	CodeNumbersUnavailable = "NUMBERS_UNAVAILABLE"
)

// AppError is the standard error type of the journal.
// It implements error interface and provides structured details for API responses.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details contains additional context (numbers, session id, etc.)
	Details map[string]any `json:"details,omitempty"`

	// HTTPStatus is the suggested HTTP status code
	HTTPStatus int `json:"-"`

	// Err is the underlying error (not exposed in JSON)
	Err error `json:"-"`
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to error details
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// --- Factory functions ---

// NewValidation creates a validation error (400)
func NewValidation(message string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewNotFound creates a not found error (404)
func NewNotFound(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", entity),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewPrecondition creates a precondition failure (422).
// Used when the caller's request is malformed relative to current state.
func NewPrecondition(code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// NewNumberNotReserved is returned when a numeric is not reserved under the given session.
func NewNumberNotReserved(numeric int64, sessionID string) *AppError {
	return NewPrecondition(CodeNumberNotReserved, "number is not reserved in this session").
		WithDetail("numeric", numeric).
		WithDetail("session_id", sessionID)
}

// NewSessionNotActive is returned for operations on a terminal session.
func NewSessionNotActive(sessionID, status string) *AppError {
	return NewPrecondition(CodeSessionNotActive, "session is not active").
		WithDetail("session_id", sessionID).
		WithDetail("status", status)
}

// NewInternal creates an internal server error (hides details from client)
func NewInternal(err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewSchemaNotReady marks storage that has not been migrated yet (503).
func NewSchemaNotReady(err error) *AppError {
	return &AppError{
		Code:       CodeSchemaNotReady,
		Message:    "storage schema is not provisioned",
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

// NewUnauthorized creates an authentication error (401)
func NewUnauthorized(message string) *AppError {
	return &AppError{
		Code:       CodeUnauthorized,
		Message:    message,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// NewForbidden creates an authorization error (403)
func NewForbidden(message string) *AppError {
	return &AppError{
		Code:       CodeForbidden,
		Message:    message,
		HTTPStatus: http.StatusForbidden,
	}
}

// NewConflict creates a conflict error (409)
func NewConflict(message string) *AppError {
	return &AppError{
		Code:       CodeConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
	}
}

// NewNumbersUnavailable creates a conflict for allocations that could not be satisfied.
func NewNumbersUnavailable(message string, requested, available int) *AppError {
	return &AppError{
		Code:       CodeNumbersUnavailable,
		Message:    message,
		HTTPStatus: http.StatusConflict,
		Details: map[string]any{
			"requested": requested,
			"available": available,
		},
	}
}

// NewDuplicate creates a duplicate entry error (409)
func NewDuplicate(entity, field, value string) *AppError {
	return &AppError{
		Code:       CodeDuplicate,
		Message:    fmt.Sprintf("%s with this %s already exists", entity, field),
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"entity": entity, "field": field, "value": value},
	}
}

// --- Helper functions ---

// AsAppError extracts AppError from error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetHTTPStatus returns appropriate HTTP status for any error
func GetHTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// HasCode reports whether err carries the given AppError code.
func HasCode(err error, code string) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == code
	}
	return false
}

// IsNotFound checks if error is CodeNotFound
func IsNotFound(err error) bool {
	return HasCode(err, CodeNotFound)
}

// IsConflict reports contention errors: generic conflicts, duplicates and
// allocations that could not be satisfied.
func IsConflict(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus == http.StatusConflict
	}
	return false
}

// IsForbidden checks if error is CodeForbidden
func IsForbidden(err error) bool {
	return HasCode(err, CodeForbidden)
}

// IsPrecondition reports caller errors relative to the current state.
func IsPrecondition(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus == http.StatusUnprocessableEntity
	}
	return false
}

// IsSchemaNotReady checks if error is CodeSchemaNotReady
func IsSchemaNotReady(err error) bool {
	return HasCode(err, CodeSchemaNotReady)
}

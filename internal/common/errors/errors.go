// Package errors provides standardized error handling for the NearServe API.
package errors

import (
	"fmt"
	"net/http"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeNotFound        ErrorCode = "NOT_FOUND"
	ErrCodeForbidden       ErrorCode = "FORBIDDEN"
	ErrCodeUnauthenticated ErrorCode = "UNAUTHENTICATED"
	ErrCodeInvalidState    ErrorCode = "INVALID_STATE"
	ErrCodeAlreadyAssessed ErrorCode = "ALREADY_ASSESSED"
	ErrCodeValidation      ErrorCode = "VALIDATION_ERROR"
	ErrCodeInternal        ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Error Constructors
// ==========================

// NewNotFoundError creates an error for an absent job, worker or user.
func NewNotFoundError(resource, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotFound,
		Message:   fmt.Sprintf("%s not found", resource),
		Details:   details,
		Timestamp: time.Now().UTC(),
	}
}

// NewForbiddenError creates an error for a caller that does not own the resource.
func NewForbiddenError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeForbidden,
		Message:   "Caller is not allowed to perform this action",
		Details:   details,
		Timestamp: time.Now().UTC(),
	}
}

// NewUnauthenticatedError creates an error for a missing or expired session.
func NewUnauthenticatedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnauthenticated,
		Message:   "Authentication required",
		Details:   details,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidStateError creates an error for an operation attempted in the wrong job state.
func NewInvalidStateError(message, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidState,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
	}
}

// NewAlreadyAssessedError creates an error for a repeated assessment of the same job.
func NewAlreadyAssessedError(jobID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAlreadyAssessed,
		Message:   "Job attendance has already been assessed",
		Details:   fmt.Sprintf("jobId: %s", jobID),
		Timestamp: time.Now().UTC(),
	}
}

// NewValidationError creates an error for malformed or missing request fields.
func NewValidationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidation,
		Message:   "Request validation failed",
		Details:   details,
		Timestamp: time.Now().UTC(),
	}
}

// NewInternalError creates an error for store or downstream failures.
func NewInternalError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Internal error",
		Details:   err.Error(),
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. HTTP Mapping
// ==========================

// httpStatusMapping maps internal error codes to HTTP response statuses.
var httpStatusMapping = map[ErrorCode]int{
	ErrCodeNotFound:        http.StatusNotFound,
	ErrCodeForbidden:       http.StatusForbidden,
	ErrCodeUnauthenticated: http.StatusUnauthorized,
	ErrCodeInvalidState:    http.StatusBadRequest,
	ErrCodeAlreadyAssessed: http.StatusBadRequest,
	ErrCodeValidation:      http.StatusBadRequest,
	ErrCodeInternal:        http.StatusInternalServerError,
}

// HTTPStatus returns the HTTP status for an error code.
func HTTPStatus(code ErrorCode) int {
	if status, ok := httpStatusMapping[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// FromError normalizes any error into a StandardError.
func FromError(err error) *StandardError {
	if stdErr, ok := err.(*StandardError); ok {
		return stdErr
	}
	return NewInternalError(err)
}

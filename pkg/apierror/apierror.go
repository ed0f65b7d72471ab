// Package apierror provides standardized API error handling.
// These error types are used across all API handlers for consistent error
// responses.
package apierror

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/Jane1217/branch-aware-workflow-scheduler/pkg/domain/shared"
)

// Code represents an error code.
type Code string

// Standard error codes.
const (
	CodeBadRequest          Code = "BAD_REQUEST"
	CodeTenantMissing       Code = "TENANT_MISSING"
	CodeNotFound            Code = "NOT_FOUND"
	CodeValidationFailed    Code = "VALIDATION_FAILED"
	CodeTenantRejected      Code = "TENANT_REJECTED"
	CodeDuplicateWorkflowID Code = "DUPLICATE_WORKFLOW_ID"
	CodeNotCancellable      Code = "NOT_CANCELLABLE"
	CodeInternalError       Code = "INTERNAL_ERROR"
	CodeRateLimitExceeded   Code = "RATE_LIMIT_EXCEEDED"
)

// Error represents a standardized API error.
type Error struct {
	// HTTP status code
	Status int `json:"-"`

	// Machine-readable error code
	Code Code `json:"code"`

	// Human-readable error message
	Message string `json:"message"`

	// Additional error details (optional)
	Details any `json:"details,omitempty"`

	// Internal error (not exposed to client)
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Response represents the error response structure.
type Response struct {
	Error   string `json:"error"`
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ToResponse converts the error to a response structure.
func (e *Error) ToResponse() Response {
	return Response{
		Error:   string(e.Code),
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
}

// WriteJSON writes the error as JSON to the response writer.
func (e *Error) WriteJSON(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Status)
	_ = json.NewEncoder(w).Encode(e.ToResponse())
}

// Constructor functions

// New creates a new API error.
func New(status int, code Code, message string) *Error {
	return &Error{
		Status:  status,
		Code:    code,
		Message: message,
	}
}

// WithDetails adds details to the error.
func (e *Error) WithDetails(details any) *Error {
	e.Details = details
	return e
}

// WithError adds an internal error.
func (e *Error) WithError(err error) *Error {
	e.Err = err
	return e
}

// Pre-defined error constructors

// BadRequest creates a 400 Bad Request error.
func BadRequest(message string) *Error {
	return New(http.StatusBadRequest, CodeBadRequest, message)
}

// TenantMissing creates a 401 error for a missing or empty tenant header.
func TenantMissing() *Error {
	return New(http.StatusUnauthorized, CodeTenantMissing, "X-User-ID header is required")
}

// NotFound creates a 404 Not Found error.
func NotFound(resource string) *Error {
	message := "Resource not found"
	if resource != "" {
		message = fmt.Sprintf("%s not found", resource)
	}
	return New(http.StatusNotFound, CodeNotFound, message)
}

// ValidationFailed creates a 422 Unprocessable Entity error.
func ValidationFailed(message string, details any) *Error {
	return &Error{
		Status:  http.StatusUnprocessableEntity,
		Code:    CodeValidationFailed,
		Message: message,
		Details: details,
	}
}

// TenantRejected creates a 429 error for the admission cap.
func TenantRejected(message string) *Error {
	if message == "" {
		message = "Active user limit reached, try again later"
	}
	return New(http.StatusTooManyRequests, CodeTenantRejected, message)
}

// DuplicateWorkflowID creates a 409 error for a workflow id collision.
func DuplicateWorkflowID(workflowID string) *Error {
	return New(http.StatusConflict, CodeDuplicateWorkflowID,
		fmt.Sprintf("workflow %s already exists", workflowID))
}

// NotCancellable creates a 409 error for a cancel of a non-PENDING job.
func NotCancellable(jobID string) *Error {
	return New(http.StatusConflict, CodeNotCancellable,
		fmt.Sprintf("job %s has already started and cannot be cancelled", jobID))
}

// InternalError creates a 500 Internal Server Error.
func InternalError(err error) *Error {
	return &Error{
		Status:  http.StatusInternalServerError,
		Code:    CodeInternalError,
		Message: "An internal error occurred",
		Err:     err,
	}
}

// RateLimitExceeded creates a 429 Too Many Requests error.
func RateLimitExceeded() *Error {
	return New(http.StatusTooManyRequests, CodeRateLimitExceeded, "Rate limit exceeded")
}

// Helper functions

// IsAPIError checks if an error is an API error.
func IsAPIError(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr)
}

// FromError converts any error to an API error, mapping domain sentinel
// errors onto their API codes.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}

	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	switch {
	case errors.Is(err, shared.ErrValidation):
		return ValidationFailed(domainMessage(err), nil)
	case errors.Is(err, shared.ErrNotFound):
		return New(http.StatusNotFound, CodeNotFound, domainMessage(err))
	case errors.Is(err, shared.ErrAlreadyExists):
		return New(http.StatusConflict, CodeDuplicateWorkflowID, domainMessage(err))
	case errors.Is(err, shared.ErrTenantRejected):
		return TenantRejected(domainMessage(err))
	case errors.Is(err, shared.ErrNotCancellable):
		return New(http.StatusConflict, CodeNotCancellable, domainMessage(err))
	case errors.Is(err, shared.ErrTenantMissing):
		return TenantMissing()
	}

	return InternalError(err)
}

// domainMessage extracts the human-readable part of a DomainError, falling
// back to the raw error text.
func domainMessage(err error) string {
	var de *shared.DomainError
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}

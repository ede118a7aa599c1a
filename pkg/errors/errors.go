// Package errors defines the typed errors returned by the service layer and
// rendered by the HTTP handlers.
package errors

import (
	stderrors "errors"
	"net/http"
)

// ErrorType classifies a failure independently of its HTTP status
type ErrorType string

const (
	ErrorTypeValidation  ErrorType = "validation"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeConflict    ErrorType = "conflict"
	ErrorTypeBadRequest  ErrorType = "bad_request"
	ErrorTypeRateLimited ErrorType = "rate_limited"
	ErrorTypeInternal    ErrorType = "internal"
	ErrorTypeDatabase    ErrorType = "database"
)

// FieldError describes a single rejected input field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// APIError carries everything needed to answer a failed request. Cause is
// for logs only and is never serialized.
type APIError struct {
	Type       ErrorType    `json:"type"`
	Code       string       `json:"code"`
	Message    string       `json:"message"`
	Details    string       `json:"details,omitempty"`
	Fields     []FieldError `json:"fields,omitempty"`
	HTTPStatus int          `json:"-"`
	Cause      error        `json:"-"`
}

func (e *APIError) Error() string {
	msg := e.Code + ": " + e.Message
	if e.Details != "" {
		msg += " (" + e.Details + ")"
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *APIError) Unwrap() error {
	return e.Cause
}

// New builds an APIError; cause may be nil
func New(errorType ErrorType, code string, status int, message string, cause error) *APIError {
	return &APIError{
		Type:       errorType,
		Code:       code,
		Message:    message,
		HTTPStatus: status,
		Cause:      cause,
	}
}

// ValidationError lists every rejected field (422)
func ValidationError(message string, fields []FieldError) *APIError {
	apiErr := New(ErrorTypeValidation, "VALIDATION_FAILED", http.StatusUnprocessableEntity, message, nil)
	apiErr.Fields = fields
	return apiErr
}

// BadRequestError is a request that could not be understood (400)
func BadRequestError(message string) *APIError {
	return New(ErrorTypeBadRequest, "BAD_REQUEST", http.StatusBadRequest, message, nil)
}

// BadRequestErrorWithCause keeps the decode or parse failure behind a 400
func BadRequestErrorWithCause(message string, cause error) *APIError {
	return New(ErrorTypeBadRequest, "BAD_REQUEST", http.StatusBadRequest, message, cause)
}

// NotFoundError reports a missing resource, e.g. "Member not found" (404)
func NotFoundError(resource string) *APIError {
	return New(ErrorTypeNotFound, "NOT_FOUND", http.StatusNotFound, resource+" not found", nil)
}

// ConflictError reports a uniqueness clash (409)
func ConflictError(message string) *APIError {
	return New(ErrorTypeConflict, "CONFLICT", http.StatusConflict, message, nil)
}

// RateLimitedError (429)
func RateLimitedError() *APIError {
	return New(ErrorTypeRateLimited, "RATE_LIMITED", http.StatusTooManyRequests, "Too many requests", nil)
}

// InternalError hides cause behind a generic 500
func InternalError(message string, cause error) *APIError {
	return New(ErrorTypeInternal, "INTERNAL_ERROR", http.StatusInternalServerError, message, cause)
}

// DatabaseError is a failed storage call. The operation name goes to
// Details for logs; clients only see the generic message.
func DatabaseError(operation string, cause error) *APIError {
	apiErr := New(ErrorTypeDatabase, "DATABASE_ERROR", http.StatusInternalServerError, "Internal server error", cause)
	apiErr.Details = operation
	return apiErr
}

// From finds an APIError anywhere in err's chain
func From(err error) (*APIError, bool) {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// AsAPIError returns the APIError in err's chain, or wraps err as a 500
func AsAPIError(err error) *APIError {
	if err == nil {
		return nil
	}
	if apiErr, ok := From(err); ok {
		return apiErr
	}
	return InternalError("Internal server error", err)
}

package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructorsCarryHTTPStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      *APIError
		status   int
		errType  ErrorType
		contains string
	}{
		{"validation", ValidationError("Validation failed", nil), http.StatusUnprocessableEntity, ErrorTypeValidation, "Validation failed"},
		{"bad request", BadRequestError("Invalid member id"), http.StatusBadRequest, ErrorTypeBadRequest, "Invalid member id"},
		{"not found", NotFoundError("Member"), http.StatusNotFound, ErrorTypeNotFound, "Member not found"},
		{"conflict", ConflictError("Phone number already exists"), http.StatusConflict, ErrorTypeConflict, "Phone number already exists"},
		{"rate limited", RateLimitedError(), http.StatusTooManyRequests, ErrorTypeRateLimited, "Too many requests"},
		{"internal", InternalError("boom", nil), http.StatusInternalServerError, ErrorTypeInternal, "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, tt.err.HTTPStatus)
			assert.Equal(t, tt.errType, tt.err.Type)
			assert.Contains(t, tt.err.Error(), tt.contains)
		})
	}
}

func TestDatabaseErrorHidesOperation(t *testing.T) {
	cause := stderrors.New("connection reset")
	err := DatabaseError("create member", cause)

	assert.Equal(t, "Internal server error", err.Message)
	assert.Equal(t, "create member", err.Details)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestValidationErrorKeepsFields(t *testing.T) {
	fields := []FieldError{{Field: "phone", Message: "bad"}, {Field: "club", Message: "empty"}}
	err := ValidationError("Validation failed", fields)

	assert.Len(t, err.Fields, 2)
	assert.Equal(t, "phone", err.Fields[0].Field)
}

func TestFromFindsWrappedErrors(t *testing.T) {
	conflict := ConflictError("dup")
	wrapped := fmt.Errorf("create member: %w", conflict)

	got, ok := From(wrapped)
	require.True(t, ok)
	assert.Same(t, conflict, got)

	_, ok = From(stderrors.New("plain"))
	assert.False(t, ok)
}

func TestAsAPIError(t *testing.T) {
	assert.Nil(t, AsAPIError(nil))

	conflict := ConflictError("dup")
	assert.Same(t, conflict, AsAPIError(conflict))

	plain := stderrors.New("plain")
	wrapped := AsAPIError(plain)
	assert.Equal(t, http.StatusInternalServerError, wrapped.HTTPStatus)
	assert.Equal(t, "Internal server error", wrapped.Message)
	assert.ErrorIs(t, wrapped, plain)
}

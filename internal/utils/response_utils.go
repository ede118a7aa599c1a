package utils

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apierrors "github.com/gianverdum/member-registry/pkg/errors"
)

// ErrorResponse is the body written for every failed request
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code"`
	Details []apierrors.FieldError `json:"details,omitempty"`
}

// RespondWithJSON sends a JSON response with the given status code and data
func RespondWithJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}

// RespondWithError sends an error response
func RespondWithError(w http.ResponseWriter, statusCode int, message string) {
	RespondWithJSON(w, statusCode, ErrorResponse{
		Error: message,
		Code:  http.StatusText(statusCode),
	})
}

// RespondWithAPIError writes a typed error. Internal causes are logged, never sent.
func RespondWithAPIError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := apierrors.AsAPIError(err)

	if apiErr.HTTPStatus >= http.StatusInternalServerError {
		slog.Error("Request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", RequestIDFromContext(r.Context()),
			"type", apiErr.Type,
			"operation", apiErr.Details,
			"error", apiErr.Cause)
	}

	RespondWithJSON(w, apiErr.HTTPStatus, ErrorResponse{
		Error:   apiErr.Message,
		Code:    http.StatusText(apiErr.HTTPStatus),
		Details: apiErr.Fields,
	})
}

// RespondNoContent sends an empty 204 response
func RespondNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// ParseJSONRequest decodes a single JSON document into target. Unknown
// fields are ignored.
func ParseJSONRequest(r *http.Request, target interface{}) error {
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		return err
	}
	if decoder.More() {
		return errors.New("unexpected data after JSON body")
	}
	return nil
}

package errors

import (
	"net/http"

	"github.com/go-chi/render"
)

// APIError is the JSON error body returned by the reporting surface.
type APIError struct {
	StatusCode int    `json:"status_code"`
	ErrorCode  string `json:"error_code"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`
}

func (e *APIError) Error() string { return e.Message }

// Render implements render.Renderer.
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// NewAPI creates an APIError.
func NewAPI(status int, code, message string) *APIError {
	return &APIError{StatusCode: status, ErrorCode: code, Message: message}
}

// WithDetails returns a copy carrying details.
func (e *APIError) WithDetails(details any) *APIError {
	cp := *e
	cp.Details = details
	return &cp
}

var (
	ErrInvalidParameter  = NewAPI(http.StatusBadRequest, "INVALID_PARAMETER", "Invalid parameter value")
	ErrTableNotFound     = NewAPI(http.StatusNotFound, "TABLE_NOT_FOUND", "Table not found")
	ErrRateLimitExceeded = NewAPI(http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Rate limit exceeded")
	ErrNoData            = NewAPI(http.StatusNotFound, "NO_DATA", "No policy data found; run the pipeline first")
	ErrStoreUnavailable  = NewAPI(http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Persisted dataset could not be read")
	ErrInternalServer    = NewAPI(http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Internal server error")
)

package chatsdk

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Error codes shared between the server handlers and this SDK.
const (
	ErrorCodeInvalidRequest   = "invalid_request"
	ErrorCodeAccessDenied     = "access_denied"
	ErrorCodeInvalidToken     = "invalid_token"
	ErrorCodeMessageRejected  = "message_rejected"
	ErrorCodeStoreUnavailable = "store_unavailable"
	ErrorCodeServerError      = "server_error"
)

// APIError is the structured error body every endpoint returns on failure.
// It is used by the server (to write responses) and by the SDK client (to
// represent them).
type APIError struct {
	// StatusCode is the HTTP status code for this error.
	StatusCode int `json:"-"`

	// Code is the machine-readable error code.
	Code string `json:"error"`

	// Description is a human-readable description.
	Description string `json:"error_description"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Is lets errors.Is match any APIError with the same code, so callers can
// compare against the predefined values regardless of description.
func (e *APIError) Is(target error) bool {
	other, ok := target.(*APIError)
	return ok && other.Code == e.Code
}

// WriteError writes this error to an HTTP response.
func (e *APIError) WriteError(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.StatusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":             e.Code,
		"error_description": e.Description,
	})
}

var (
	// ErrInvalidRequest covers malformed bodies and missing parameters.
	ErrInvalidRequest = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRequest,
		Description: "the request is malformed or missing required parameters",
	}

	// ErrAccessDenied means the device has no standing in the room. This
	// is terminal for a session: no token is minted and no retry helps
	// until membership changes.
	ErrAccessDenied = &APIError{
		StatusCode:  http.StatusForbidden,
		Code:        ErrorCodeAccessDenied,
		Description: "device has no access to this room",
	}

	// ErrInvalidToken is the uniform rejection for every token
	// verification failure. The server never tells an unauthenticated
	// caller whether the token was expired, malformed or forged.
	ErrInvalidToken = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidToken,
		Description: "token is invalid",
	}

	// ErrMessageRejected covers empty and oversized message text.
	ErrMessageRejected = &APIError{
		StatusCode:  http.StatusUnprocessableEntity,
		Code:        ErrorCodeMessageRejected,
		Description: "message text is empty or too long",
	}

	// ErrStoreUnavailable is returned when the durable store cannot be
	// reached. Append failures surface per-operation and do not tear
	// down the live connection.
	ErrStoreUnavailable = &APIError{
		StatusCode:  http.StatusServiceUnavailable,
		Code:        ErrorCodeStoreUnavailable,
		Description: "durable store is unavailable",
	}

	// ErrServerError is the catch-all.
	ErrServerError = &APIError{
		StatusCode:  http.StatusInternalServerError,
		Code:        ErrorCodeServerError,
		Description: "internal server error",
	}
)

// parseErrorResponse maps a non-2xx response body to a typed APIError.
func parseErrorResponse(resp *http.Response, body []byte) error {
	var payload struct {
		Code        string `json:"error"`
		Description string `json:"error_description"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Code == "" {
		return &APIError{
			StatusCode:  resp.StatusCode,
			Code:        ErrorCodeServerError,
			Description: fmt.Sprintf("unexpected response status %d", resp.StatusCode),
		}
	}

	return &APIError{
		StatusCode:  resp.StatusCode,
		Code:        payload.Code,
		Description: payload.Description,
	}
}

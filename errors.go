package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthenticated    = errors.New("no token provided")
	ErrInvalidToken       = errors.New("invalid token")
	ErrUpstream           = errors.New("upstream failure")
	ErrBodyTooLarge       = errors.New("request body too large")
)

// ProviderError is a rejection reported by the identity provider, such as a
// duplicate email on sign up. Its message is safe to show to the client.
type ProviderError struct {
	Status  int
	Message string
}

func (e *ProviderError) Error() string { return e.Message }

// APIError represents a structured API error response
type APIError struct {
	Code    string `json:"error_code"`
	Message string `json:"error"`
}

// writeError writes a structured error response
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(APIError{
		Code:    code,
		Message: message,
	})
}

// writeServiceError maps an error from the auth or favorites flows onto the
// HTTP taxonomy. Anything unclassified is reported as a generic 500.
func (a *App) writeServiceError(w http.ResponseWriter, err error, fallback string) {
	var perr *ProviderError
	switch {
	case errors.Is(err, ErrBodyTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body too large")
	case errors.Is(err, ErrValidation):
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", validationMessage(err))
	case errors.Is(err, ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", invalidCredentialsMessage)
	case errors.Is(err, ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "No token provided")
	case errors.Is(err, ErrInvalidToken):
		writeError(w, http.StatusForbidden, "INVALID_TOKEN", "Invalid token")
	case errors.As(err, &perr):
		writeError(w, http.StatusBadRequest, "PROVIDER_REJECTED", perr.Message)
	default:
		a.Log.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", fallback)
	}
}

const invalidCredentialsMessage = "Invalid username or password"

// fieldError is a validation failure with a client-facing message.
type fieldError struct{ msg string }

func (e *fieldError) Error() string { return e.msg }
func (e *fieldError) Unwrap() error { return ErrValidation }

func validationError(msg string) error { return &fieldError{msg: msg} }

func validationMessage(err error) string {
	var fe *fieldError
	if errors.As(err, &fe) {
		return fe.msg
	}
	return "Invalid request body"
}

// Package httpserver contains the REST handlers and middleware in front of
// the fan-out and analytics services.
package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/brandlens/brandlens/internal/domain"
)

type errorEnvelope struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code             string      `json:"code"`
	Message          string      `json:"message"`
	MissingProviders []string    `json:"missing_providers,omitempty"`
	Details          interface{} `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the domain error taxonomy onto HTTP statuses. A total
// credential shortfall is 402 and carries the providers the caller must
// configure.
func writeError(w http.ResponseWriter, _ *http.Request, err error, details interface{}) {
	status := http.StatusInternalServerError
	code := "INTERNAL"
	var missing []string

	var credErr *domain.CredentialsRequiredError
	switch {
	case errors.As(err, &credErr):
		status = http.StatusPaymentRequired
		code = "API_KEYS_REQUIRED"
		missing = credErr.Missing
	case errors.Is(err, domain.ErrInvalidArgument):
		status = http.StatusBadRequest
		code = "INVALID_ARGUMENT"
	case errors.Is(err, domain.ErrAuthRequired):
		status = http.StatusUnauthorized
		code = "AUTH_REQUIRED"
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
		code = "NOT_FOUND"
	case errors.Is(err, domain.ErrRateLimited):
		status = http.StatusTooManyRequests
		code = "RATE_LIMITED"
	}
	writeJSON(w, status, errorEnvelope{Error: apiError{
		Code:             code,
		Message:          err.Error(),
		MissingProviders: missing,
		Details:          details,
	}})
}

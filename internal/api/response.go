// Reclens - Recommendation Orchestration and Analytics Gateway
// Copyright 2026 Dave C. (davech88)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/davech88/reclens

package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/davech88/reclens/internal/logging"
)

// APIResponse is the standard JSON envelope for every endpoint.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    *APIMeta    `json:"meta,omitempty"`
}

// APIError carries a machine-readable code alongside the human message.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// APIMeta carries response metadata.
type APIMeta struct {
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Error codes returned by the API.
const (
	ErrCodeBadRequest        = "BAD_REQUEST"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeRequestSuperseded = "REQUEST_SUPERSEDED"
	ErrCodeUpstreamFailed    = "UPSTREAM_FAILED"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

// WriteSuccess writes a success envelope with the given payload.
func WriteSuccess(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	writeResponse(w, r, status, APIResponse{
		Success: true,
		Data:    data,
	})
}

// WriteError writes an error envelope.
func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeResponse(w, r, status, APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: message},
	})
}

// WriteErrorDetails writes an error envelope with detail text.
func WriteErrorDetails(w http.ResponseWriter, r *http.Request, status int, code, message, details string) {
	writeResponse(w, r, status, APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: message, Details: details},
	})
}

func writeResponse(w http.ResponseWriter, r *http.Request, status int, resp APIResponse) {
	resp.Meta = &APIMeta{
		RequestID: logging.RequestIDFromContext(r.Context()),
		Timestamp: time.Now().UTC(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger := logging.Ctx(r.Context())
		logger.Error().Err(err).Msg("failed to encode response")
	}
}

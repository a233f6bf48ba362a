// Package api provides HTTP API utilities including standardized error handling.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
)

// Error codes returned in the error envelope.
const (
	ErrCodeValidation   = "validation_error"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeNotFound     = "not_found"
	ErrCodeRateLimited  = "rate_limited"
	ErrCodeInternal     = "internal_error"
	ErrCodeForbidden    = "forbidden"
	ErrCodeBadRequest   = "bad_request"

	ErrCodeQuestionNotFound = "question_not_found"
	ErrCodeEmptyContent     = "empty_content"
	ErrCodeContentTooLong   = "content_too_long"

	// The embedding provider failed, so the question can be neither
	// indexed nor deduplicated.
	ErrCodeEmbeddingUnavailable = "embedding_unavailable"

	ErrCodeInvalidStatus   = "invalid_status"
	ErrCodeItemNotInColumn = "item_not_in_column"

	ErrCodeInvalidMode  = "invalid_mode"
	ErrCodeEmptySession = "empty_session"

	ErrCodeSubscriptionRequired = "subscription_required"
)

// ErrorResponse is the envelope every API error uses:
// {"error": {"code": "...", "message": "..."}}
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the machine-readable code and a human-readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError writes status and the JSON error envelope.
func WriteError(w http.ResponseWriter, ctx context.Context, status int, code, message string) {
	data, err := json.Marshal(ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
	if err != nil {
		// Plain text fallback; the envelope itself failed to encode
		slog.ErrorContext(ctx, "failed to marshal error response", "error", err)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("Internal server error"))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.ErrorContext(ctx, "failed to write error response", "error", err)
	}
}

// WriteJSON writes status and an arbitrary JSON body.
func WriteJSON(w http.ResponseWriter, ctx context.Context, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.ErrorContext(ctx, "failed to write response", "error", err)
	}
}

// StatusCodeMapping maps an error code to its HTTP status.
func StatusCodeMapping(code string) int {
	switch code {
	case ErrCodeValidation, ErrCodeBadRequest, ErrCodeInvalidStatus, ErrCodeInvalidMode, ErrCodeEmptySession:
		return http.StatusBadRequest
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeNotFound, ErrCodeQuestionNotFound:
		return http.StatusNotFound
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case ErrCodeForbidden, ErrCodeSubscriptionRequired:
		return http.StatusForbidden
	case ErrCodeEmptyContent, ErrCodeContentTooLong, ErrCodeItemNotInColumn, ErrCodeEmbeddingUnavailable:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

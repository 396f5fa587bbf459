package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/ziadkadry99/hostkb/internal/apperr"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, apperr.ErrProviderUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs err in full and answers with a message safe for users.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, lang apperr.Language) {
	status := statusFor(err)
	code := apperr.Code(err)
	if errors.Is(err, context.DeadlineExceeded) && code == "internal_error" {
		code = "timeout"
	}
	attrs := []any{"method", r.Method, "path", r.URL.Path, "status", status, "error", err}
	if id := middleware.GetReqID(r.Context()); id != "" {
		attrs = append(attrs, "request_id", id)
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", attrs...)
	} else {
		s.logger.Debug("request rejected", attrs...)
	}

	msg := apperr.UserMessage(err, lang)
	if errors.Is(err, apperr.ErrNotFound) {
		msg = err.Error()
	} else if status == http.StatusGatewayTimeout && !errors.Is(err, apperr.ErrTimeout) {
		msg = apperr.Message("timeout", lang)
	}
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

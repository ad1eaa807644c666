package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/pizza-service/internal/auth"
	"github.com/nerrad567/pizza-service/internal/infrastructure/database"
	"github.com/nerrad567/pizza-service/internal/pizza"
)

// Error is the body of every non-2xx response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeNotFound     = "not_found"
	ErrCodeUnauthorized = "unauthorised"
	ErrCodeForbidden    = "forbidden"
	ErrCodeConflict     = "conflict"
	ErrCodeInternal     = "internal_error"
	ErrCodeValidation   = "validation_error"
	ErrCodeUnavailable  = "unavailable"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // client may have gone
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{Status: status, Code: code, Message: message})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

func writeForbidden(w http.ResponseWriter, message string) {
	writeError(w, http.StatusForbidden, ErrCodeForbidden, message)
}

func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeStoreError maps a repository or auth error to a response. Not-found
// and validation messages are built by the store and safe to return; the
// cause of anything else is logged and replaced by a generic message.
func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, action string, err error) {
	switch {
	case errors.Is(err, pizza.ErrNotFound):
		writeError(w, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, pizza.ErrInvalid):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, pizza.ErrConflict):
		writeError(w, http.StatusConflict, ErrCodeConflict, action+": already exists")
	case errors.Is(err, auth.ErrUnauthorized), errors.Is(err, auth.ErrTokenInvalid):
		writeUnauthorized(w, "unauthorized")
	case errors.Is(err, auth.ErrForbidden):
		writeForbidden(w, "forbidden")
	case errors.Is(err, database.ErrBusy):
		s.logger.Warn("database busy", "action", action, "request_id", requestID(r.Context()))
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "service busy, retry shortly")
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful to send.
	default:
		s.logger.Error(action+" failed", "error", err, "request_id", requestID(r.Context()))
		writeInternalError(w, action+" failed")
	}
}

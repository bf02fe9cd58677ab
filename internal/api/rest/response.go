package rest

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/casabria/booking-security-backend/internal/domain/errors"
	"github.com/casabria/booking-security-backend/internal/domain/validation"
)

// envelope is the fixed response shape for every endpoint.
type envelope struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Details   interface{} `json:"details,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{
		Success:   status < 400,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{
		Success:   false,
		Error:     message,
		Timestamp: time.Now().UTC(),
	})
}

func writeFieldErrors(w http.ResponseWriter, status int, message string, fields []validation.FieldError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{
		Success:   false,
		Error:     message,
		Details:   fields,
		Timestamp: time.Now().UTC(),
	})
}

// writeAppError maps domain errors onto HTTP responses without leaking
// internal detail. Unknown errors become a generic 500.
func writeAppError(w http.ResponseWriter, err error) {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		writeError(w, appErr.StatusCode, appErr.Message)
		return
	}
	writeError(w, http.StatusInternalServerError, "An internal error occurred")
}

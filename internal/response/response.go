// Package response provides shared JSON response helpers for HTTP handlers.
package response

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gallery/service/internal/apperr"
)

// Envelope is the standard API response envelope.
type Envelope struct {
	Success bool              `json:"success"`
	Data    interface{}       `json:"data,omitempty"`
	Error   string            `json:"error,omitempty"`
	Code    string            `json:"code,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// JSON writes a JSON-encoded payload with the given HTTP status code.
func JSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// OK writes a 200 response with data.
func OK(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusOK, Envelope{Success: true, Data: data})
}

// Created writes a 201 response with data.
func Created(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusCreated, Envelope{Success: true, Data: data})
}

// Error writes an error response with the given status and message.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, Envelope{Success: false, Error: message})
}

// Unauthorized writes a 401 response.
func Unauthorized(w http.ResponseWriter, message string) {
	JSON(w, http.StatusUnauthorized, Envelope{Error: message, Code: string(apperr.KindAuth)})
}

// TooManyRequests writes a 429 response.
func TooManyRequests(w http.ResponseWriter, message string) {
	Error(w, http.StatusTooManyRequests, message)
}

// InternalError writes a 500 response with a generic message.
func InternalError(w http.ResponseWriter) {
	Error(w, http.StatusInternalServerError, "internal server error")
}

// Err writes err using the status that matches its apperr kind.
// Unclassified errors are logged and reported as a generic 500.
func Err(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	if kind == "" {
		slog.Error("unhandled error", "error", err)
		InternalError(w)
		return
	}

	var e *apperr.Error
	errors.As(err, &e)
	if kind == apperr.KindStorage {
		slog.Error("storage failure", "error", err)
	}
	JSON(w, StatusFor(kind), Envelope{Error: e.Message, Code: string(kind), Fields: e.Fields})
}

// StatusFor maps an error kind onto its HTTP status.
func StatusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation, apperr.KindDuplicate, apperr.KindConstraint:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindAuth:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

package api

import (
	"errors"
	"log/slog"
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"library-circulation/library"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// codeRateLimited is the envelope code for throttled requests. It has no
// library counterpart because the service itself never throttles.
const codeRateLimited = "RATE_LIMITED"

// Envelope provides a consistent JSON response structure.
type Envelope struct {
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
	Success bool   `json:"success"`
}

// JSON writes data in a success or failure envelope depending on status.
func JSON(w http.ResponseWriter, status int, data any, logger *slog.Logger) {
	writeEnvelope(w, status, Envelope{Success: status < 400, Data: data}, logger)
}

// Success writes a 200 OK response.
func Success(w http.ResponseWriter, data any, logger *slog.Logger) {
	JSON(w, http.StatusOK, data, logger)
}

// Created writes a 201 Created response.
func Created(w http.ResponseWriter, data any, logger *slog.Logger) {
	JSON(w, http.StatusCreated, data, logger)
}

// Error writes an error envelope.
func Error(w http.ResponseWriter, status int, code, message string, logger *slog.Logger) {
	writeEnvelope(w, status, Envelope{Error: message, Code: code}, logger)
}

func writeEnvelope(w http.ResponseWriter, status int, env Envelope, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil && logger != nil {
		logger.Error("Failed to encode JSON response", "error", err)
	}
}

// statusFor maps a circulation error code to its HTTP status.
func statusFor(code library.Code) int {
	switch code {
	case library.CodeInvalidInput, library.CodeInvalidDate:
		return http.StatusBadRequest
	case library.CodeInvalidCredentials, library.CodeUnauthorized:
		return http.StatusUnauthorized
	case library.CodeForbidden:
		return http.StatusForbidden
	case library.CodeBookNotFound, library.CodeStudentNotFound, library.CodeLoanNotFound:
		return http.StatusNotFound
	case library.CodeBookUnavailable:
		return http.StatusConflict
	case library.CodePersistenceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// HandleError writes the response for a service failure. Circulation errors
// keep their code and message; anything else becomes an opaque 500.
func HandleError(w http.ResponseWriter, err error, logger *slog.Logger) {
	var libErr *library.Error
	if errors.As(err, &libErr) {
		status := statusFor(libErr.Code)
		if status >= http.StatusInternalServerError && logger != nil {
			logger.Error("Request failed", "code", libErr.Code, "error", err)
		}
		Error(w, status, string(libErr.Code), libErr.Message, logger)
		return
	}

	if logger != nil {
		logger.Error("Unhandled error", "error", err)
	}
	Error(w, http.StatusInternalServerError, "INTERNAL", "internal server error", logger)
}

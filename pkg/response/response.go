package response

import (
	"encoding/json"
	"net/http"

	"github.com/diagnosis/portfolio/pkg/logger"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Success bool              `json:"success"`
	Error   string            `json:"error"`
	Code    string            `json:"code,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Common error codes
const (
	CodeInvalidInput  = "INVALID_INPUT"
	CodeValidation    = "VALIDATION_FAILED"
	CodeUnauthorized  = "UNAUTHORIZED"
	CodeInvalidToken  = "INVALID_TOKEN"
	CodeExpiredToken  = "EXPIRED_TOKEN"
	CodeInvalidLogin  = "INVALID_CREDENTIALS"
	CodeForbidden     = "FORBIDDEN"
	CodeNotFound      = "NOT_FOUND"
	CodeConflict      = "CONFLICT"
	CodeEmailExists   = "EMAIL_EXISTS"
	CodeRateLimit     = "RATE_LIMIT_EXCEEDED"
	CodeTooLarge      = "PAYLOAD_TOO_LARGE"
	CodeUnsupported   = "UNSUPPORTED_MEDIA_TYPE"
	CodeInternalError = "INTERNAL_ERROR"
	CodeMailFailed    = "EMAIL_FAILED"
	CodeBadGateway    = "UPSTREAM_UNAVAILABLE"
)

func JSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

// OK writes {"success":true} merged with fields.
func OK(w http.ResponseWriter, statusCode int, fields map[string]interface{}) {
	body := map[string]interface{}{"success": true}
	for k, v := range fields {
		body[k] = v
	}
	JSON(w, statusCode, body)
}

func Error(w http.ResponseWriter, statusCode int, message, code string) {
	JSON(w, statusCode, ErrorResponse{Error: message, Code: code})
}

// Validation writes a 400 carrying per-field messages.
func Validation(w http.ResponseWriter, message string, fields map[string]string) {
	JSON(w, http.StatusBadRequest, ErrorResponse{Error: message, Code: CodeValidation, Fields: fields})
}

func BadRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, message, CodeInvalidInput)
}

func Unauthorized(w http.ResponseWriter, message, code string) {
	Error(w, http.StatusUnauthorized, message, code)
}

func Forbidden(w http.ResponseWriter, message string) {
	Error(w, http.StatusForbidden, message, CodeForbidden)
}

func NotFound(w http.ResponseWriter, message string) {
	Error(w, http.StatusNotFound, message, CodeNotFound)
}

func Conflict(w http.ResponseWriter, message, code string, fields map[string]string) {
	JSON(w, http.StatusConflict, ErrorResponse{Error: message, Code: code, Fields: fields})
}

func RateLimit(w http.ResponseWriter, message string) {
	Error(w, http.StatusTooManyRequests, message, CodeRateLimit)
}

func InternalError(w http.ResponseWriter, message string) {
	Error(w, http.StatusInternalServerError, message, CodeInternalError)
}

package client

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Class names an error category. A Notifier is keyed by it.
type Class string

const (
	ClassValidation Class = "validation"
	ClassAuth       Class = "auth"
	ClassPermission Class = "permission"
	ClassNotFound   Class = "not_found"
	ClassRateLimit  Class = "rate_limit"
	ClassServer     Class = "server"
	ClassNetwork    Class = "network"
)

// ValidationError is a rejected input, either checked locally before any
// request or returned by the API as 400, 409 or 422.
type ValidationError struct {
	Status  int // 0 when raised locally
	Message string
	Code    string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Fields)
}

// AuthError is a 401. Expired is set when the request carried a token, which
// also forces the session to log out.
type AuthError struct {
	Message string
	Code    string
	Expired bool
}

func (e *AuthError) Error() string { return e.Message }

type PermissionError struct {
	Message string
}

func (e *PermissionError) Error() string { return e.Message }

type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

type RateLimitError struct {
	Message    string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s (retry after %s)", e.Message, e.RetryAfter)
	}
	return e.Message
}

// ServerError is a 5xx or any status the client does not classify.
type ServerError struct {
	Status  int
	Message string
	Code    string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.Status, e.Message)
}

// NetworkError means no response arrived: dial failure, timeout or a
// cancelled context.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return "network error: " + e.Err.Error() }

func (e *NetworkError) Unwrap() error { return e.Err }

// ClassOf reports the class of err, or "" for errors outside the taxonomy.
func ClassOf(err error) Class {
	var (
		ve *ValidationError
		ae *AuthError
		pe *PermissionError
		ne *NotFoundError
		re *RateLimitError
		se *ServerError
		we *NetworkError
	)
	switch {
	case errors.As(err, &ve):
		return ClassValidation
	case errors.As(err, &ae):
		return ClassAuth
	case errors.As(err, &pe):
		return ClassPermission
	case errors.As(err, &ne):
		return ClassNotFound
	case errors.As(err, &re):
		return ClassRateLimit
	case errors.As(err, &se):
		return ClassServer
	case errors.As(err, &we):
		return ClassNetwork
	}
	return ""
}

type errorBody struct {
	Error  string            `json:"error"`
	Code   string            `json:"code"`
	Fields map[string]string `json:"fields"`
}

// fromResponse builds the typed error for a non-2xx response.
func fromResponse(status int, header http.Header, body errorBody, hadToken bool) error {
	msg := body.Error
	if msg == "" {
		msg = http.StatusText(status)
	}

	switch {
	case status == http.StatusBadRequest || status == http.StatusConflict || status == http.StatusUnprocessableEntity:
		return &ValidationError{Status: status, Message: msg, Code: body.Code, Fields: body.Fields}
	case status == http.StatusUnauthorized:
		if hadToken {
			return &AuthError{Message: "Session expired. Please log in again.", Code: body.Code, Expired: true}
		}
		return &AuthError{Message: msg, Code: body.Code}
	case status == http.StatusForbidden:
		return &PermissionError{Message: msg}
	case status == http.StatusNotFound:
		return &NotFoundError{Message: msg}
	case status == http.StatusTooManyRequests:
		return &RateLimitError{Message: msg, RetryAfter: retryAfter(header.Get("Retry-After"))}
	}
	return &ServerError{Status: status, Message: msg, Code: body.Code}
}

func retryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind buckets API failures so callers can branch without inspecting
// raw status codes.
type ErrorKind string

const (
	KindUnauthorized ErrorKind = "unauthorized"
	KindNotFound     ErrorKind = "not_found"
	KindConflict     ErrorKind = "conflict"
	KindValidation   ErrorKind = "validation"
	KindTransport    ErrorKind = "transport"
	KindServer       ErrorKind = "server"
	KindUnknown      ErrorKind = "unknown"
)

// APIError represents a failed platform API call. HTTPStatus is zero for
// network and decode failures.
type APIError struct {
	Kind       ErrorKind
	HTTPStatus int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.HTTPStatus != 0 {
		return fmt.Sprintf("Request failed (%d)", e.HTTPStatus)
	}
	return "Request failed"
}

// AsAPIError unwraps err into an *APIError, or returns nil when err is not
// one. Convenient for callers that branch on Kind.
func AsAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return nil
}

// transportError wraps a network or decode failure.
func transportError(err error) *APIError {
	return &APIError{Kind: KindTransport, Message: err.Error()}
}

// classifyStatus maps an HTTP status code onto an ErrorKind.
func classifyStatus(status int) ErrorKind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindUnauthorized
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusConflict:
		return KindConflict
	case status == http.StatusUnprocessableEntity || status == http.StatusBadRequest:
		return KindValidation
	case status >= 500:
		return KindServer
	default:
		return KindUnknown
	}
}

// extractMessage pulls a user-facing message out of an error response body.
// The server emits any of {detail: string}, {detail: {message: string}} or
// {message: string}; all three are accepted, in that order of precedence.
func extractMessage(body []byte, status int) string {
	fallback := fmt.Sprintf("Request failed (%d)", status)
	if len(body) == 0 {
		return fallback
	}

	var envelope struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fallback
	}

	if len(envelope.Detail) > 0 {
		var nested struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(envelope.Detail, &nested); err == nil && nested.Message != "" {
			return nested.Message
		}
		var s string
		if err := json.Unmarshal(envelope.Detail, &s); err == nil && s != "" {
			return s
		}
	}
	if envelope.Message != "" {
		return envelope.Message
	}
	return fallback
}

// Package core provides core types and interfaces for the chat gateway.
package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrorType classifies a GatewayError for clients and for status mapping.
type ErrorType string

const (
	ErrorTypeProvider       ErrorType = "provider_error"
	ErrorTypeRateLimit      ErrorType = "rate_limit_error"
	ErrorTypeInvalidRequest ErrorType = "invalid_request_error"
	ErrorTypeAuthentication ErrorType = "authentication_error"
	ErrorTypeNotFound       ErrorType = "not_found_error"
	ErrorTypeInternal       ErrorType = "internal_error"
)

var defaultStatus = map[ErrorType]int{
	ErrorTypeProvider:       http.StatusBadGateway,
	ErrorTypeRateLimit:      http.StatusTooManyRequests,
	ErrorTypeInvalidRequest: http.StatusBadRequest,
	ErrorTypeAuthentication: http.StatusUnauthorized,
	ErrorTypeNotFound:       http.StatusNotFound,
	ErrorTypeInternal:       http.StatusInternalServerError,
}

// GatewayError is the error every layer returns once a failure has been
// classified. Message is safe to show to clients; Err is kept for logs.
type GatewayError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	StatusCode int       `json:"status_code"`
	Provider   string    `json:"provider,omitempty"`
	Err        error     `json:"-"`
}

func (e *GatewayError) Error() string {
	if e.Provider == "" {
		return fmt.Sprintf("%s: %s", e.Type, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Provider, e.Type, e.Message)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// HTTPStatusCode is StatusCode when set, else the default for Type.
func (e *GatewayError) HTTPStatusCode() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}
	if code, ok := defaultStatus[e.Type]; ok {
		return code
	}
	return http.StatusInternalServerError
}

// ToJSON is the response body for a failed JSON endpoint.
func (e *GatewayError) ToJSON() map[string]interface{} {
	return map[string]interface{}{
		"error": map[string]interface{}{
			"type":    e.Type,
			"message": e.Message,
		},
	}
}

func newError(t ErrorType, status int, provider, message string, err error) *GatewayError {
	return &GatewayError{Type: t, StatusCode: status, Provider: provider, Message: message, Err: err}
}

// NewProviderError reports an upstream failure under the given status.
func NewProviderError(provider string, statusCode int, message string, err error) *GatewayError {
	return newError(ErrorTypeProvider, statusCode, provider, message, err)
}

// NewInvalidRequestError reports a malformed client request (400).
func NewInvalidRequestError(message string, err error) *GatewayError {
	return newError(ErrorTypeInvalidRequest, http.StatusBadRequest, "", message, err)
}

// NewAuthenticationError reports rejected credentials (401).
func NewAuthenticationError(provider string, message string) *GatewayError {
	return newError(ErrorTypeAuthentication, http.StatusUnauthorized, provider, message, nil)
}

// NewNotFoundError reports a missing local resource (404).
func NewNotFoundError(message string) *GatewayError {
	return newError(ErrorTypeNotFound, http.StatusNotFound, "", message, nil)
}

// NewInternalError reports a local failure (500).
func NewInternalError(message string, err error) *GatewayError {
	return newError(ErrorTypeInternal, http.StatusInternalServerError, "", message, err)
}

// upstreamErrorBody matches both the OpenAI-compatible and the Gemini error
// envelope, which nest the message under "error".
type upstreamErrorBody struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// ParseProviderError classifies a non-200 upstream response. 401 and 403 keep
// their status as authentication errors, 429 is a rate limit, other 4xx keep
// their status as invalid requests and everything else becomes a 502.
func ParseProviderError(provider string, statusCode int, body []byte, originalErr error) *GatewayError {
	message := string(body)
	var envelope upstreamErrorBody
	if json.Unmarshal(body, &envelope) == nil && envelope.Error.Message != "" {
		message = envelope.Error.Message
	}
	if message == "" {
		message = http.StatusText(statusCode)
	}

	switch {
	case statusCode == http.StatusUnauthorized, statusCode == http.StatusForbidden:
		return newError(ErrorTypeAuthentication, statusCode, provider, message, originalErr)
	case statusCode == http.StatusTooManyRequests:
		return newError(ErrorTypeRateLimit, statusCode, provider, message, originalErr)
	case statusCode >= 400 && statusCode < 500:
		return newError(ErrorTypeInvalidRequest, statusCode, provider, message, originalErr)
	default:
		return NewProviderError(provider, http.StatusBadGateway, message, originalErr)
	}
}

// ErrorMessage returns the client-facing message of err: the Message of a
// GatewayError anywhere in the chain, or err.Error() otherwise.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var gatewayErr *GatewayError
	if errors.As(err, &gatewayErr) {
		return gatewayErr.Message
	}
	return err.Error()
}

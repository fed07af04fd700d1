package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/ahrav/go-vidrank/internal/ports"
)

// Errors returned by the client and providers. ErrEmptyResponse matches
// ports.ErrInvalidResponse.
var (
	ErrEmptyAPIKey   = errors.New("API key cannot be empty")
	ErrEmptyResponse = fmt.Errorf("empty response from API: %w", ports.ErrInvalidResponse)
)

// ErrorType classifies a provider failure.
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeAuthentication
	ErrorTypeRateLimit
	ErrorTypeBadRequest
	ErrorTypeNotFound
	ErrorTypeServerError
	ErrorTypeContentPolicy
	ErrorTypeTimeout
	ErrorTypeCanceled
)

var errorTypeNames = map[ErrorType]string{
	ErrorTypeAuthentication: "authentication",
	ErrorTypeRateLimit:      "rate_limit",
	ErrorTypeBadRequest:     "bad_request",
	ErrorTypeNotFound:       "not_found",
	ErrorTypeServerError:    "server_error",
	ErrorTypeContentPolicy:  "content_policy",
	ErrorTypeTimeout:        "timeout",
	ErrorTypeCanceled:       "canceled",
}

func (t ErrorType) String() string {
	if n, ok := errorTypeNames[t]; ok {
		return n
	}
	return "unknown"
}

// ProviderError normalises vendor SDK errors.
type ProviderError struct {
	Type       ErrorType
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface for ProviderError.
func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s error", e.Provider)
	if e.StatusCode > 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Type != ErrorTypeUnknown {
		msg += fmt.Sprintf(" [%s]", e.Type)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

// Unwrap returns the vendor error.
func (e *ProviderError) Unwrap() error { return e.Err }

// Is maps the classification onto the shared port sentinels so callers can
// test errors.Is(err, ports.ErrRateLimited) without knowing the vendor.
func (e *ProviderError) Is(target error) bool {
	switch target {
	case ports.ErrRateLimited:
		return e.Type == ErrorTypeRateLimit
	case ports.ErrServiceUnavailable:
		return e.Type == ErrorTypeServerError
	case ports.ErrTimeout:
		return e.Type == ErrorTypeTimeout
	}
	return false
}

// IsRetryable reports whether another attempt may succeed.
func (e *ProviderError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeRateLimit, ErrorTypeServerError, ErrorTypeTimeout, ErrorTypeUnknown:
		return true
	default:
		return false
	}
}

// NewProviderError creates a ProviderError.
func NewProviderError(provider string, t ErrorType, status int, message string, err error) *ProviderError {
	return &ProviderError{Type: t, Provider: provider, StatusCode: status, Message: message, Err: err}
}

// classifyStatus builds a ProviderError from an HTTP status code.
func classifyStatus(provider string, status int, message string, err error) *ProviderError {
	var t ErrorType
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		t = ErrorTypeAuthentication
		message = provider + " authentication failed"
	case status == http.StatusTooManyRequests:
		t = ErrorTypeRateLimit
		message = provider + " rate limit exceeded"
	case status == http.StatusNotFound:
		t = ErrorTypeNotFound
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		t = ErrorTypeTimeout
	case status >= 500:
		t = ErrorTypeServerError
	case status >= 400:
		t = ErrorTypeBadRequest
	}
	return NewProviderError(provider, t, status, message, err)
}

// classifyContext handles errors caused by the request context.
func classifyContext(provider string, err error) (*ProviderError, bool) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewProviderError(provider, ErrorTypeTimeout, 0, "deadline exceeded", err), true
	case errors.Is(err, context.Canceled):
		return NewProviderError(provider, ErrorTypeCanceled, 0, "request canceled", err), true
	}
	return nil, false
}

// Package errors provides structured error handling for lifeboard services
package errors

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorCode represents an application error code
type ErrorCode string

const (
	// General errors
	ErrInternal     ErrorCode = "INTERNAL_ERROR"
	ErrNotFound     ErrorCode = "NOT_FOUND"
	ErrBadRequest   ErrorCode = "BAD_REQUEST"
	ErrUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrForbidden    ErrorCode = "FORBIDDEN"
	ErrValidation   ErrorCode = "VALIDATION_ERROR"
	ErrRateLimit    ErrorCode = "RATE_LIMIT_EXCEEDED"

	// Proxy gateway errors
	ErrForbiddenTarget     ErrorCode = "FORBIDDEN_TARGET"
	ErrUpstreamUnreachable ErrorCode = "UPSTREAM_UNREACHABLE"
	ErrUpstreamTimeout     ErrorCode = "UPSTREAM_TIMEOUT"

	// OAuth broker errors
	ErrProviderNotConfigured ErrorCode = "PROVIDER_NOT_CONFIGURED"
	ErrUnsupportedProvider   ErrorCode = "UNSUPPORTED_PROVIDER"
	ErrInvalidState          ErrorCode = "INVALID_STATE"
	ErrTokenExchange         ErrorCode = "TOKEN_EXCHANGE_FAILED"
	ErrTokenRefresh          ErrorCode = "TOKEN_REFRESH_FAILED"
	ErrHandoffNotFound       ErrorCode = "HANDOFF_NOT_FOUND"
)

// AppError represents a structured application error
type AppError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details,omitempty"`
	StatusCode int                    `json:"-"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Err        error                  `json:"-"` // Original error for logging
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the original error
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithMetadata adds metadata to the error
func (e *AppError) WithMetadata(key string, value interface{}) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// New creates a new AppError
func New(code ErrorCode, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap wraps an existing error into an AppError
func Wrap(err error, code ErrorCode, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Err:        err,
	}
}

// Predefined errors

// Internal creates an internal server error
func Internal(message string, err error) *AppError {
	return &AppError{
		Code:       ErrInternal,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Err:        err,
	}
}

// NotFound creates a not found error
func NotFound(resource string) *AppError {
	return &AppError{
		Code:       ErrNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: http.StatusNotFound,
	}
}

// ValidationError creates a validation error
func ValidationError(message string) *AppError {
	return &AppError{
		Code:       ErrValidation,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

// Unauthorized creates an unauthorized error
func Unauthorized(message string) *AppError {
	return &AppError{
		Code:       ErrUnauthorized,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

// ForbiddenTarget creates a forbidden proxy target error
func ForbiddenTarget(host string) *AppError {
	return (&AppError{
		Code:       ErrForbiddenTarget,
		Message:    "Target host is not allow-listed",
		StatusCode: http.StatusForbidden,
	}).WithMetadata("host", host)
}

// RateLimited creates a rate limit error carrying a retry hint in seconds
func RateLimited(retryAfter int64) *AppError {
	return (&AppError{
		Code:       ErrRateLimit,
		Message:    "Rate limit exceeded",
		StatusCode: http.StatusTooManyRequests,
	}).WithMetadata("retry_after", retryAfter)
}

// UpstreamUnreachable creates an upstream unreachable error
func UpstreamUnreachable(err error) *AppError {
	return &AppError{
		Code:       ErrUpstreamUnreachable,
		Message:    "Upstream service unreachable",
		StatusCode: http.StatusBadGateway,
		Err:        err,
	}
}

// UpstreamTimeout creates an upstream timeout error
func UpstreamTimeout(err error) *AppError {
	return &AppError{
		Code:       ErrUpstreamTimeout,
		Message:    "Request timeout",
		StatusCode: http.StatusGatewayTimeout,
		Err:        err,
	}
}

// ProviderNotConfigured indicates a server-side provider misconfiguration
func ProviderNotConfigured(provider string) *AppError {
	return (&AppError{
		Code:       ErrProviderNotConfigured,
		Message:    "OAuth provider is not configured",
		StatusCode: http.StatusInternalServerError,
	}).WithMetadata("provider", provider)
}

// UnsupportedProvider indicates the caller asked for an unknown provider name
func UnsupportedProvider(provider string) *AppError {
	return (&AppError{
		Code:       ErrUnsupportedProvider,
		Message:    "Unsupported provider",
		StatusCode: http.StatusBadRequest,
	}).WithMetadata("provider", provider)
}

// InvalidState indicates the OAuth state token was missing, expired, or replayed
func InvalidState() *AppError {
	return &AppError{
		Code:       ErrInvalidState,
		Message:    "Invalid or expired state token",
		StatusCode: http.StatusBadRequest,
	}
}

// TokenExchange wraps a failed authorization-code exchange
func TokenExchange(provider string, err error) *AppError {
	return (&AppError{
		Code:       ErrTokenExchange,
		Message:    "Token exchange failed",
		StatusCode: http.StatusBadGateway,
		Err:        err,
	}).WithMetadata("provider", provider)
}

// TokenRefresh wraps a failed refresh-token grant
func TokenRefresh(provider string, err error) *AppError {
	return (&AppError{
		Code:       ErrTokenRefresh,
		Message:    "Token refresh failed",
		StatusCode: http.StatusBadGateway,
		Err:        err,
	}).WithMetadata("provider", provider)
}

// HandoffNotFound indicates the handoff id is unknown, expired, or already consumed
func HandoffNotFound() *AppError {
	return &AppError{
		Code:       ErrHandoffNotFound,
		Message:    "Handoff not found",
		StatusCode: http.StatusNotFound,
	}
}

// ErrorResponse is the JSON response structure for errors
type ErrorResponse struct {
	Error     ErrorCode              `json:"error"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

// HandleError sends an error response to the client. This is the single
// translation point between the error taxonomy and HTTP status codes, so
// the caller-error vs server-misconfiguration distinction stays consistent
// across every entry point.
func HandleError(c *gin.Context, err error) {
	var appErr *AppError
	var ok bool

	if appErr, ok = err.(*AppError); !ok {
		appErr = Internal("An unexpected error occurred", err)
	}

	requestID, _ := c.Get("request_id")
	reqIDStr, _ := requestID.(string)

	response := ErrorResponse{
		Error:     appErr.Code,
		Message:   appErr.Message,
		Details:   appErr.Details,
		Metadata:  appErr.Metadata,
		RequestID: reqIDStr,
	}

	c.JSON(appErr.StatusCode, response)
}

// IsErrorCode checks if an error has a specific error code
func IsErrorCode(err error, code ErrorCode) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code == code
	}
	return false
}

// GetStatusCode returns the HTTP status code for an error
func GetStatusCode(err error) int {
	if appErr, ok := err.(*AppError); ok {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}

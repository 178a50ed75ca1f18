package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the kind of a gateway failure
type ErrorType string

const (
	ErrorTypeInvalidRequest        ErrorType = "invalid_request"
	ErrorTypeProviderNotConfigured ErrorType = "provider_not_configured"
	ErrorTypeInvalidCredentials    ErrorType = "invalid_credentials"
	ErrorTypeRateLimited           ErrorType = "rate_limited"
	ErrorTypeProviderTimeout       ErrorType = "provider_timeout"
	ErrorTypeProviderError         ErrorType = "provider_error"
	ErrorTypeUnknownProvider       ErrorType = "unknown_provider"
	ErrorTypeNotFound              ErrorType = "not_found"
	ErrorTypeInternal              ErrorType = "internal"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is. Two domain errors match when their types match.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// Sentinels for errors.Is comparisons. Never mutate these; build fresh
// errors with the constructors below.
var (
	ErrInvalidRequest        = NewDomainError(ErrorTypeInvalidRequest, "invalid request", nil)
	ErrProviderNotConfigured = NewDomainError(ErrorTypeProviderNotConfigured, "provider not configured", nil)
	ErrInvalidCredentials    = NewDomainError(ErrorTypeInvalidCredentials, "invalid provider credentials", nil)
	ErrRateLimited           = NewDomainError(ErrorTypeRateLimited, "rate limit exceeded", nil)
	ErrProviderTimeout       = NewDomainError(ErrorTypeProviderTimeout, "LLM provider timeout", nil)
	ErrProviderError         = NewDomainError(ErrorTypeProviderError, "LLM provider error", nil)
	ErrUnknownProvider       = NewDomainError(ErrorTypeUnknownProvider, "unknown provider", nil)
	ErrNotFound              = NewDomainError(ErrorTypeNotFound, "resource not found", nil)
	ErrInternal              = NewDomainError(ErrorTypeInternal, "internal server error", nil)
)

// NewInvalidRequestError reports bad caller input
func NewInvalidRequestError(message string) *DomainError {
	return NewDomainError(ErrorTypeInvalidRequest, message, nil)
}

// NewProviderNotConfiguredError reports a vendor whose API key is missing
func NewProviderNotConfiguredError(provider string) *DomainError {
	msg := fmt.Sprintf("%s API key not configured on server", provider)
	return NewDomainError(ErrorTypeProviderNotConfigured, msg, nil).WithDetail("provider", provider)
}

// NewInvalidCredentialsError reports a vendor rejecting the configured key.
// The upstream payload is kept as the cause but never in the message.
func NewInvalidCredentialsError(provider string, cause error) *DomainError {
	msg := fmt.Sprintf("Invalid %s API key", provider)
	return NewDomainError(ErrorTypeInvalidCredentials, msg, cause).WithDetail("provider", provider)
}

// NewRateLimitedError reports a vendor 429
func NewRateLimitedError(provider string, cause error) *DomainError {
	return NewDomainError(ErrorTypeRateLimited, "Rate limit exceeded. Please try again later.", cause).
		WithDetail("provider", provider)
}

// NewProviderTimeoutError reports a vendor call that hit its deadline
func NewProviderTimeoutError(provider string, cause error) *DomainError {
	msg := fmt.Sprintf("%s request timed out", provider)
	return NewDomainError(ErrorTypeProviderTimeout, msg, cause).WithDetail("provider", provider)
}

// NewProviderError passes an adapter failure message through unchanged
func NewProviderError(provider, message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeProviderError, message, cause).WithDetail("provider", provider)
}

// NewUnknownProviderError reports a provider id with no adapter
func NewUnknownProviderError(provider string) *DomainError {
	return NewDomainError(ErrorTypeUnknownProvider, fmt.Sprintf("Unknown provider: %s", provider), nil)
}

// Error type checking helper functions

func isType(err error, t ErrorType) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == t
	}
	return false
}

// IsInvalidRequestError checks if an error is an invalid request error
func IsInvalidRequestError(err error) bool { return isType(err, ErrorTypeInvalidRequest) }

// IsProviderNotConfiguredError checks if an error is a missing credential error
func IsProviderNotConfiguredError(err error) bool {
	return isType(err, ErrorTypeProviderNotConfigured)
}

// IsInvalidCredentialsError checks if an error is a rejected credential error
func IsInvalidCredentialsError(err error) bool { return isType(err, ErrorTypeInvalidCredentials) }

// IsRateLimitedError checks if an error is a rate limit error
func IsRateLimitedError(err error) bool { return isType(err, ErrorTypeRateLimited) }

// IsProviderTimeoutError checks if an error is a provider timeout
func IsProviderTimeoutError(err error) bool { return isType(err, ErrorTypeProviderTimeout) }

// IsProviderError checks if an error is an opaque upstream failure
func IsProviderError(err error) bool { return isType(err, ErrorTypeProviderError) }

// IsUnknownProviderError checks if an error is an unknown provider error
func IsUnknownProviderError(err error) bool { return isType(err, ErrorTypeUnknownProvider) }

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool { return isType(err, ErrorTypeNotFound) }

// IsInternalError checks if an error is an internal error
func IsInternalError(err error) bool { return isType(err, ErrorTypeInternal) }

// IsRetryable reports whether a caller may retry the failed call.
// The gateway itself never retries.
func IsRetryable(err error) bool {
	switch GetErrorType(err) {
	case ErrorTypeRateLimited, ErrorTypeProviderTimeout, ErrorTypeProviderError:
		return true
	default:
		return false
	}
}

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorMessage returns the caller-facing message of a domain error,
// falling back to err.Error() for anything else
func GetErrorMessage(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}

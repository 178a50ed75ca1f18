package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// ProviderID identifies an upstream LLM vendor
type ProviderID string

const (
	OpenAI    ProviderID = "openai"
	Anthropic ProviderID = "anthropic"
	Cohere    ProviderID = "cohere"
)

// String returns the vendor name
func (p ProviderID) String() string {
	return string(p)
}

// DisplayName returns the vendor name used in operator-facing messages
func (p ProviderID) DisplayName() string {
	switch p {
	case OpenAI:
		return "OpenAI"
	case Anthropic:
		return "Anthropic"
	case Cohere:
		return "Cohere"
	default:
		return string(p)
	}
}

// Adapter translates a normalized completion request into one vendor's API
type Adapter interface {
	// Name returns the vendor this adapter talks to
	Name() ProviderID

	// Execute performs a single-turn, full-response completion. Failures are
	// returned as *ProviderFailure.
	Execute(ctx context.Context, req *CompletionRequest) (*Completion, error)
}

// CompletionRequest is the full parameter set handed to every adapter.
// Adapters drop the parameters their vendor does not support.
type CompletionRequest struct {
	Prompt           string
	Model            string
	Temperature      float64
	MaxTokens        int
	TopP             float64
	FrequencyPenalty float64
	PresencePenalty  float64
	StopSequences    []string
}

// Completion is the normalized adapter result
type Completion struct {
	Content string
	Usage   Usage
}

// Usage represents token usage statistics
type Usage struct {
	// PromptTokens used in the request
	PromptTokens int `json:"prompt_tokens"`

	// CompletionTokens used in the response
	CompletionTokens int `json:"completion_tokens"`

	// TotalTokens is always PromptTokens + CompletionTokens
	TotalTokens int `json:"total_tokens"`
}

// NewUsage builds a Usage whose total is the sum of its parts
func NewUsage(promptTokens, completionTokens int) Usage {
	return Usage{
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
	}
}

// ProviderConfig holds common configuration for adapters
type ProviderConfig struct {
	// APIKey for authentication
	APIKey string

	// BaseURL for the API (optional override)
	BaseURL string

	// Timeout for the underlying HTTP client
	Timeout time.Duration

	// HTTPClient overrides the default client (tests)
	HTTPClient *http.Client
}

// DefaultTimeout bounds adapter HTTP clients when no timeout is configured
const DefaultTimeout = 60 * time.Second

// Client returns the configured HTTP client or a new one bounded by Timeout
func (c ProviderConfig) Client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// ProviderFailure is the one error shape adapters return. The gateway
// classifies on StatusCode and Timeout only.
type ProviderFailure struct {
	// Provider that generated the error
	Provider ProviderID

	// StatusCode is the vendor HTTP status, zero when no response was received
	StatusCode int

	// Message is the vendor's error message
	Message string

	// Timeout is set when the call hit a deadline before a response arrived
	Timeout bool

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface
func (e *ProviderFailure) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// Unwrap implements error unwrapping
func (e *ProviderFailure) Unwrap() error {
	return e.Cause
}

// NewStatusFailure creates a failure for a non-2xx vendor response
func NewStatusFailure(provider ProviderID, statusCode int, message string) *ProviderFailure {
	if message == "" {
		message = http.StatusText(statusCode)
	}
	return &ProviderFailure{
		Provider:   provider,
		StatusCode: statusCode,
		Message:    message,
	}
}

// NewTransportFailure wraps an error raised before a vendor response was read
func NewTransportFailure(provider ProviderID, message string, err error) *ProviderFailure {
	return &ProviderFailure{
		Provider: provider,
		Message:  message,
		Timeout:  IsTimeout(err),
		Cause:    err,
	}
}

// IsTimeout reports whether err is a deadline or network timeout
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// AsFailure extracts a *ProviderFailure from an error chain
func AsFailure(err error) (*ProviderFailure, bool) {
	var failure *ProviderFailure
	if errors.As(err, &failure) {
		return failure, true
	}
	return nil, false
}

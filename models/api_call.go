package models

import (
	"time"

	"github.com/google/uuid"
)

// APICall is one analytics row per execute request, successful or not
type APICall struct {
	ID             uuid.UUID `json:"id" db:"id"`
	RequestID      string    `json:"request_id" db:"request_id"`
	Method         string    `json:"method" db:"method"`
	Path           string    `json:"path" db:"path"`
	StatusCode     int       `json:"status_code" db:"status_code"`
	ResponseTimeMs int64     `json:"response_time_ms" db:"response_time_ms"`

	// Generation details, empty when the request failed before dispatch
	Model      string  `json:"model,omitempty" db:"model"`
	Provider   string  `json:"provider,omitempty" db:"provider"`
	TokensUsed int     `json:"tokens_used" db:"tokens_used"`
	CostCents  float64 `json:"cost_cents" db:"cost_cents"`

	ErrorMessage *string `json:"error_message,omitempty" db:"error_message"`

	UserAgent string    `json:"user_agent" db:"user_agent"`
	IPAddress string    `json:"ip_address" db:"ip_address"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the APICall model
func (APICall) TableName() string {
	return "api_calls"
}

// NewAPICall creates a new APICall stamped with a fresh id and the current time
func NewAPICall(requestID, method, path string) *APICall {
	return &APICall{
		ID:        uuid.New(),
		RequestID: requestID,
		Method:    method,
		Path:      path,
		CreatedAt: time.Now().UTC(),
	}
}

// RecordSuccess fills the generation outcome
func (c *APICall) RecordSuccess(statusCode int, model, provider string, tokensUsed int, costCents float64) {
	c.StatusCode = statusCode
	c.Model = model
	c.Provider = provider
	c.TokensUsed = tokensUsed
	c.CostCents = costCents
	c.ErrorMessage = nil
}

// RecordFailure fills the status and error text of a failed call
func (c *APICall) RecordFailure(statusCode int, message string) {
	c.StatusCode = statusCode
	c.ErrorMessage = &message
}

// IsError reports whether the call ended with an error status
func (c *APICall) IsError() bool {
	return c.StatusCode >= 400
}

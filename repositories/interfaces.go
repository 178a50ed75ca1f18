package repositories

import (
	"context"

	"github.com/promptpilot/llm-gateway/models"
)

// APICallRepository stores the per-request analytics log
type APICallRepository interface {
	// Create inserts one call record
	Create(ctx context.Context, call *models.APICall) error

	// ListRecent returns up to limit records, newest first
	ListRecent(ctx context.Context, limit int) ([]*models.APICall, error)
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	APICalls APICallRepository
}

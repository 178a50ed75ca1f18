package postgres

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/promptpilot/llm-gateway/models"
	"github.com/promptpilot/llm-gateway/repositories"
)

// MaxListLimit caps ListRecent
const MaxListLimit = 500

// APICallRepository implements the repositories.APICallRepository interface
type APICallRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewAPICallRepository creates a new call log repository
func NewAPICallRepository(db *DB, logger *zap.Logger) repositories.APICallRepository {
	return &APICallRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts one call record
func (r *APICallRepository) Create(ctx context.Context, call *models.APICall) error {
	query := `
		INSERT INTO api_calls (
			id, request_id, method, path, status_code, response_time_ms,
			model, provider, tokens_used, cost_cents, error_message,
			user_agent, ip_address, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
		)
	`

	_, err := r.db.ExecContext(ctx, query,
		call.ID,
		call.RequestID,
		call.Method,
		call.Path,
		call.StatusCode,
		call.ResponseTimeMs,
		call.Model,
		call.Provider,
		call.TokensUsed,
		call.CostCents,
		call.ErrorMessage,
		call.UserAgent,
		call.IPAddress,
		call.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create api call: %w", err)
	}

	r.logger.Debug("api call recorded",
		zap.String("id", call.ID.String()),
		zap.String("request_id", call.RequestID),
		zap.Int("status_code", call.StatusCode))
	return nil
}

// ListRecent returns up to limit records, newest first. limit is clamped to 1..MaxListLimit.
func (r *APICallRepository) ListRecent(ctx context.Context, limit int) ([]*models.APICall, error) {
	if limit <= 0 {
		limit = 1
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	query := `
		SELECT id, request_id, method, path, status_code, response_time_ms,
		       model, provider, tokens_used, cost_cents, error_message,
		       user_agent, ip_address, created_at
		FROM api_calls
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list api calls: %w", err)
	}
	defer rows.Close()

	calls := make([]*models.APICall, 0, limit)
	for rows.Next() {
		call := &models.APICall{}
		if err := rows.Scan(
			&call.ID,
			&call.RequestID,
			&call.Method,
			&call.Path,
			&call.StatusCode,
			&call.ResponseTimeMs,
			&call.Model,
			&call.Provider,
			&call.TokensUsed,
			&call.CostCents,
			&call.ErrorMessage,
			&call.UserAgent,
			&call.IPAddress,
			&call.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan api call: %w", err)
		}
		calls = append(calls, call)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating api calls: %w", err)
	}

	return calls, nil
}

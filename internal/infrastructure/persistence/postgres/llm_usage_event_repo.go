// Package postgres provides the PostgreSQL repository implementations.
package postgres

import (
	"context"
	"fmt"

	"sermon-search-api/internal/domain/entity"
)

// LLMUsageEventRepository persists backend usage accounting events.
type LLMUsageEventRepository struct {
	client *Client
}

// NewLLMUsageEventRepository creates the usage event repository.
func NewLLMUsageEventRepository(client *Client) *LLMUsageEventRepository {
	return &LLMUsageEventRepository{client: client}
}

// Record appends one usage event.
func (r *LLMUsageEventRepository) Record(ctx context.Context, event *entity.LLMUsageEvent) error {
	ctx, span := tracer.Start(ctx, "postgres.LLMUsageEventRepository.Record")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(event).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to record llm usage event: %w", err)
	}
	return nil
}

// Package postgres provides the PostgreSQL repository implementations.
package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm/clause"

	"sermon-search-api/internal/domain/entity"
)

// LinkRepository is the segment link store.
type LinkRepository struct {
	client *Client
}

// NewLinkRepository creates the link repository.
func NewLinkRepository(client *Client) *LinkRepository {
	return &LinkRepository{client: client}
}

// Upsert inserts a link. A duplicate (source, related) pair is a no-op,
// so regenerating links is always idempotent.
func (r *LinkRepository) Upsert(ctx context.Context, link *entity.SegmentLink) error {
	ctx, span := tracer.Start(ctx, "postgres.LinkRepository.Upsert")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "source_segment_id"}, {Name: "related_segment_id"}},
		DoNothing: true,
	}).Create(link).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to upsert segment link: %w", err)
	}
	return nil
}

// ListBySource lists links outgoing from a segment, strongest first.
func (r *LinkRepository) ListBySource(ctx context.Context, sourceSegmentID string) ([]*entity.SegmentLink, error) {
	ctx, span := tracer.Start(ctx, "postgres.LinkRepository.ListBySource")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var links []*entity.SegmentLink
	if err := db.Where("source_segment_id = ?", sourceSegmentID).
		Order("similarity_score DESC").
		Find(&links).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list segment links: %w", err)
	}
	return links, nil
}

// DeleteBySource removes all links outgoing from a segment.
func (r *LinkRepository) DeleteBySource(ctx context.Context, sourceSegmentID string) error {
	ctx, span := tracer.Start(ctx, "postgres.LinkRepository.DeleteBySource")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Delete(&entity.SegmentLink{}, "source_segment_id = ?", sourceSegmentID).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete segment links: %w", err)
	}
	return nil
}

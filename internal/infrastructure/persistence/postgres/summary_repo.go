// Package postgres provides the PostgreSQL repository implementations.
package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"sermon-search-api/internal/domain/entity"
)

// SummaryRepository stores sermon- and series-level aggregates.
type SummaryRepository struct {
	client *Client
}

// NewSummaryRepository creates the summary repository.
func NewSummaryRepository(client *Client) *SummaryRepository {
	return &SummaryRepository{client: client}
}

// UpsertSermonSummary replaces the summary row for a sermon.
func (r *SummaryRepository) UpsertSermonSummary(ctx context.Context, summary *entity.SermonSummary) error {
	ctx, span := tracer.Start(ctx, "postgres.SummaryRepository.UpsertSermonSummary")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "sermon_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"summary", "topics", "updated_at"}),
	}).Create(summary).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to upsert sermon summary: %w", err)
	}
	return nil
}

// GetSermonSummary fetches a sermon's summary.
func (r *SummaryRepository) GetSermonSummary(ctx context.Context, sermonID string) (*entity.SermonSummary, error) {
	ctx, span := tracer.Start(ctx, "postgres.SummaryRepository.GetSermonSummary")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var summary entity.SermonSummary
	if err := db.First(&summary, "sermon_id = ?", sermonID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get sermon summary: %w", err)
	}
	return &summary, nil
}

// UpsertSeriesSummary replaces the summary row for a series.
func (r *SummaryRepository) UpsertSeriesSummary(ctx context.Context, summary *entity.SeriesSummary) error {
	ctx, span := tracer.Start(ctx, "postgres.SummaryRepository.UpsertSeriesSummary")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "series_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"summary", "topics", "updated_at"}),
	}).Create(summary).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to upsert series summary: %w", err)
	}
	return nil
}

// GetSeriesSummary fetches a series' summary.
func (r *SummaryRepository) GetSeriesSummary(ctx context.Context, seriesID string) (*entity.SeriesSummary, error) {
	ctx, span := tracer.Start(ctx, "postgres.SummaryRepository.GetSeriesSummary")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var summary entity.SeriesSummary
	if err := db.First(&summary, "series_id = ?", seriesID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get series summary: %w", err)
	}
	return &summary, nil
}

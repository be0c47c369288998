// Package postgres provides the PostgreSQL repository implementations.
package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"sermon-search-api/internal/domain/entity"
	"sermon-search-api/internal/domain/repository"
)

// SeriesRepository is the series store.
type SeriesRepository struct {
	client *Client
}

// NewSeriesRepository creates the series repository.
func NewSeriesRepository(client *Client) *SeriesRepository {
	return &SeriesRepository{client: client}
}

// Create inserts a series.
func (r *SeriesRepository) Create(ctx context.Context, series *entity.Series) error {
	ctx, span := tracer.Start(ctx, "postgres.SeriesRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(series).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create series: %w", err)
	}
	return nil
}

// GetByID fetches a series by id.
func (r *SeriesRepository) GetByID(ctx context.Context, id string) (*entity.Series, error) {
	ctx, span := tracer.Start(ctx, "postgres.SeriesRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var series entity.Series
	if err := db.First(&series, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get series: %w", err)
	}
	return &series, nil
}

// List lists all series.
func (r *SeriesRepository) List(ctx context.Context, pagination repository.Pagination) (*repository.PagedResult[*entity.Series], error) {
	ctx, span := tracer.Start(ctx, "postgres.SeriesRepository.List")
	defer span.End()

	db := getDB(ctx, r.client.db)
	query := db.Model(&entity.Series{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count series: %w", err)
	}

	var items []*entity.Series
	if err := query.Order("created_at ASC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit()).
		Find(&items).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list series: %w", err)
	}

	return repository.NewPagedResult(items, total, pagination), nil
}

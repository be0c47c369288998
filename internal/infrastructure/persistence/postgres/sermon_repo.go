// Package postgres provides the PostgreSQL repository implementations.
package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"sermon-search-api/internal/domain/entity"
	"sermon-search-api/internal/domain/repository"
)

// SermonRepository is the sermon store.
type SermonRepository struct {
	client *Client
}

// NewSermonRepository creates the sermon repository.
func NewSermonRepository(client *Client) *SermonRepository {
	return &SermonRepository{client: client}
}

// Create inserts a sermon.
func (r *SermonRepository) Create(ctx context.Context, sermon *entity.Sermon) error {
	ctx, span := tracer.Start(ctx, "postgres.SermonRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(sermon).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create sermon: %w", err)
	}
	return nil
}

// GetByID fetches a sermon by id.
func (r *SermonRepository) GetByID(ctx context.Context, id string) (*entity.Sermon, error) {
	ctx, span := tracer.Start(ctx, "postgres.SermonRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var sermon entity.Sermon
	if err := db.First(&sermon, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get sermon: %w", err)
	}
	return &sermon, nil
}

// Update saves a sermon.
func (r *SermonRepository) Update(ctx context.Context, sermon *entity.Sermon) error {
	ctx, span := tracer.Start(ctx, "postgres.SermonRepository.Update")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Save(sermon).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update sermon: %w", err)
	}
	return nil
}

// UpdateTextHash sets the stored content hash.
func (r *SermonRepository) UpdateTextHash(ctx context.Context, id, textHash string) error {
	ctx, span := tracer.Start(ctx, "postgres.SermonRepository.UpdateTextHash")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Model(&entity.Sermon{}).Where("id = ?", id).
		Update("text_hash", textHash).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update sermon text hash: %w", err)
	}
	return nil
}

// Delete removes a sermon.
func (r *SermonRepository) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "postgres.SermonRepository.Delete")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Delete(&entity.Sermon{}, "id = ?", id).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete sermon: %w", err)
	}
	return nil
}

// ListBySeries lists sermons of a series ordered by date.
func (r *SermonRepository) ListBySeries(ctx context.Context, seriesID string, filter *repository.SermonFilter, pagination repository.Pagination) (*repository.PagedResult[*entity.Sermon], error) {
	ctx, span := tracer.Start(ctx, "postgres.SermonRepository.ListBySeries")
	defer span.End()

	db := getDB(ctx, r.client.db)
	query := db.Model(&entity.Sermon{}).Where("series_id = ?", seriesID)

	if filter != nil && filter.Speaker != "" {
		query = query.Where("speaker = ?", filter.Speaker)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count sermons: %w", err)
	}

	var sermons []*entity.Sermon
	if err := query.Order("published_at ASC NULLS LAST").
		Offset(pagination.Offset()).
		Limit(pagination.Limit()).
		Find(&sermons).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list sermons: %w", err)
	}

	return repository.NewPagedResult(sermons, total, pagination), nil
}

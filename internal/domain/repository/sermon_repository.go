// Package repository defines the data access layer interfaces.
package repository

import (
	"context"

	"sermon-search-api/internal/domain/entity"
)

// SermonFilter narrows sermon listings.
type SermonFilter struct {
	Speaker string
}

// SermonRepository is the sermon store interface.
type SermonRepository interface {
	// Create inserts a sermon.
	Create(ctx context.Context, sermon *entity.Sermon) error

	// GetByID fetches a sermon by id. Returns (nil, nil) when absent.
	GetByID(ctx context.Context, id string) (*entity.Sermon, error)

	// Update saves a sermon.
	Update(ctx context.Context, sermon *entity.Sermon) error

	// UpdateTextHash sets the stored content hash.
	UpdateTextHash(ctx context.Context, id, textHash string) error

	// Delete removes a sermon.
	Delete(ctx context.Context, id string) error

	// ListBySeries lists sermons of a series.
	ListBySeries(ctx context.Context, seriesID string, filter *SermonFilter, pagination Pagination) (*PagedResult[*entity.Sermon], error)
}

// SeriesRepository is the series store interface.
type SeriesRepository interface {
	// Create inserts a series.
	Create(ctx context.Context, series *entity.Series) error

	// GetByID fetches a series by id. Returns (nil, nil) when absent.
	GetByID(ctx context.Context, id string) (*entity.Series, error)

	// List lists all series.
	List(ctx context.Context, pagination Pagination) (*PagedResult[*entity.Series], error)
}

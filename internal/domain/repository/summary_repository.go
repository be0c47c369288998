// Package repository defines the data access layer interfaces.
package repository

import (
	"context"

	"sermon-search-api/internal/domain/entity"
)

// SummaryRepository stores the sermon- and series-level aggregates.
type SummaryRepository interface {
	// UpsertSermonSummary replaces the summary row for a sermon.
	UpsertSermonSummary(ctx context.Context, summary *entity.SermonSummary) error

	// GetSermonSummary fetches a sermon's summary. Returns (nil, nil) when absent.
	GetSermonSummary(ctx context.Context, sermonID string) (*entity.SermonSummary, error)

	// UpsertSeriesSummary replaces the summary row for a series.
	UpsertSeriesSummary(ctx context.Context, summary *entity.SeriesSummary) error

	// GetSeriesSummary fetches a series' summary. Returns (nil, nil) when absent.
	GetSeriesSummary(ctx context.Context, seriesID string) (*entity.SeriesSummary, error)
}

// LLMUsageRepository persists backend usage accounting events.
type LLMUsageRepository interface {
	// Record appends one usage event.
	Record(ctx context.Context, event *entity.LLMUsageEvent) error
}

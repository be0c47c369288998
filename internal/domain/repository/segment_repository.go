// Package repository defines the data access layer interfaces.
package repository

import (
	"context"
	"time"

	"sermon-search-api/internal/domain/entity"
)

// SegmentFilter is the shared scope filter applied by both the vector and
// the full-text side of a hybrid search so fused candidates stay comparable.
type SegmentFilter struct {
	SeriesID   string
	SermonID   string
	Speaker    string
	DateFrom   *time.Time
	DateTo     *time.Time
	SegmentIDs []string
}

// KeywordMatch is one full-text match with its lexical rank score.
// Speaker and SermonDate come from the parent sermon so keyword-only
// candidates carry the same scoring context as vector matches.
type KeywordMatch struct {
	Segment    *entity.Segment
	Rank       float64
	Speaker    string
	SermonDate *time.Time
}

// SegmentRepository is the segment store interface.
type SegmentRepository interface {
	// CreateBatch inserts segments in one statement.
	CreateBatch(ctx context.Context, segments []*entity.Segment) error

	// GetByID fetches a segment by id. Returns (nil, nil) when absent.
	GetByID(ctx context.Context, id string) (*entity.Segment, error)

	// GetByIDs fetches segments by id, preserving no particular order.
	GetByIDs(ctx context.Context, ids []string) ([]*entity.Segment, error)

	// ListBySermon lists a sermon's segments ordered by start word.
	ListBySermon(ctx context.Context, sermonID string) ([]*entity.Segment, error)

	// ListBySeries pages through a series' segments ordered by sermon and
	// start word.
	ListBySeries(ctx context.Context, seriesID string, pagination Pagination) (*PagedResult[*entity.Segment], error)

	// DeleteBySermon removes all segments of a sermon.
	DeleteBySermon(ctx context.Context, sermonID string) error

	// CountBySermon counts a sermon's segments.
	CountBySermon(ctx context.Context, sermonID string) (int64, error)

	// SearchKeyword runs a language-aware full-text search. Terms are
	// stemmed and AND-joined; results come back ordered by rank descending.
	SearchKeyword(ctx context.Context, query string, filter *SegmentFilter, limit int) ([]*KeywordMatch, error)
}

// LinkRepository is the segment link store interface.
type LinkRepository interface {
	// Upsert inserts a link or silently keeps the existing row for the
	// same (source, related) pair.
	Upsert(ctx context.Context, link *entity.SegmentLink) error

	// ListBySource lists links outgoing from a segment.
	ListBySource(ctx context.Context, sourceSegmentID string) ([]*entity.SegmentLink, error)

	// DeleteBySource removes all links outgoing from a segment.
	DeleteBySource(ctx context.Context, sourceSegmentID string) error
}

// Package postgres provides the PostgreSQL repository implementations.
package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"sermon-search-api/internal/domain/entity"
	"sermon-search-api/internal/domain/repository"
)

// minKeywordTermLength drops noise terms before they reach the tsquery.
const minKeywordTermLength = 3

// SegmentRepository is the segment store, including the full-text side of
// hybrid search.
type SegmentRepository struct {
	client *Client
}

// NewSegmentRepository creates the segment repository.
func NewSegmentRepository(client *Client) *SegmentRepository {
	return &SegmentRepository{client: client}
}

// CreateBatch inserts segments in one statement.
func (r *SegmentRepository) CreateBatch(ctx context.Context, segments []*entity.Segment) error {
	ctx, span := tracer.Start(ctx, "postgres.SegmentRepository.CreateBatch",
		trace.WithAttributes(attribute.Int("count", len(segments))))
	defer span.End()

	if len(segments) == 0 {
		return nil
	}

	db := getDB(ctx, r.client.db)
	if err := db.Create(segments).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create segments: %w", err)
	}
	return nil
}

// GetByID fetches a segment by id.
func (r *SegmentRepository) GetByID(ctx context.Context, id string) (*entity.Segment, error) {
	ctx, span := tracer.Start(ctx, "postgres.SegmentRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var segment entity.Segment
	if err := db.First(&segment, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get segment: %w", err)
	}
	return &segment, nil
}

// GetByIDs fetches segments by id.
func (r *SegmentRepository) GetByIDs(ctx context.Context, ids []string) ([]*entity.Segment, error) {
	ctx, span := tracer.Start(ctx, "postgres.SegmentRepository.GetByIDs",
		trace.WithAttributes(attribute.Int("count", len(ids))))
	defer span.End()

	if len(ids) == 0 {
		return nil, nil
	}

	db := getDB(ctx, r.client.db)
	var segments []*entity.Segment
	if err := db.Where("id IN ?", ids).Find(&segments).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get segments: %w", err)
	}
	return segments, nil
}

// ListBySermon lists a sermon's segments ordered by start word.
func (r *SegmentRepository) ListBySermon(ctx context.Context, sermonID string) ([]*entity.Segment, error) {
	ctx, span := tracer.Start(ctx, "postgres.SegmentRepository.ListBySermon")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var segments []*entity.Segment
	if err := db.Where("sermon_id = ?", sermonID).
		Order("start_word ASC").
		Find(&segments).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list segments by sermon: %w", err)
	}
	return segments, nil
}

// ListBySeries pages through a series' segments.
func (r *SegmentRepository) ListBySeries(ctx context.Context, seriesID string, pagination repository.Pagination) (*repository.PagedResult[*entity.Segment], error) {
	ctx, span := tracer.Start(ctx, "postgres.SegmentRepository.ListBySeries")
	defer span.End()

	db := getDB(ctx, r.client.db)
	query := db.Model(&entity.Segment{}).Where("series_id = ?", seriesID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count segments: %w", err)
	}

	var segments []*entity.Segment
	if err := query.Order("sermon_id ASC, start_word ASC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit()).
		Find(&segments).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list segments by series: %w", err)
	}

	return repository.NewPagedResult(segments, total, pagination), nil
}

// DeleteBySermon removes all segments of a sermon.
func (r *SegmentRepository) DeleteBySermon(ctx context.Context, sermonID string) error {
	ctx, span := tracer.Start(ctx, "postgres.SegmentRepository.DeleteBySermon")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Delete(&entity.Segment{}, "sermon_id = ?", sermonID).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete segments: %w", err)
	}
	return nil
}

// CountBySermon counts a sermon's segments.
func (r *SegmentRepository) CountBySermon(ctx context.Context, sermonID string) (int64, error) {
	ctx, span := tracer.Start(ctx, "postgres.SegmentRepository.CountBySermon")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var count int64
	if err := db.Model(&entity.Segment{}).
		Where("sermon_id = ?", sermonID).
		Count(&count).Error; err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to count segments: %w", err)
	}
	return count, nil
}

type keywordRow struct {
	entity.Segment
	Rank       float64    `gorm:"column:rank"`
	Speaker    string     `gorm:"column:match_speaker"`
	SermonDate *time.Time `gorm:"column:match_sermon_date"`
}

// SearchKeyword runs a language-aware full-text search. Stemmed terms are
// AND-joined via plainto_tsquery; terms shorter than the minimum are
// dropped up front.
func (r *SegmentRepository) SearchKeyword(ctx context.Context, query string, filter *repository.SegmentFilter, limit int) ([]*repository.KeywordMatch, error) {
	ctx, span := tracer.Start(ctx, "postgres.SegmentRepository.SearchKeyword",
		trace.WithAttributes(attribute.Int("limit", limit)))
	defer span.End()

	cleaned := cleanKeywordQuery(query)
	if cleaned == "" {
		return nil, nil
	}

	tsCfg := r.client.TextSearchConfig()
	db := getDB(ctx, r.client.db)

	q := db.Table("segments").
		Select("segments.*, ts_rank(to_tsvector(?::regconfig, segments.text), plainto_tsquery(?::regconfig, ?)) AS rank, "+
			"sermons.speaker AS match_speaker, COALESCE(sermons.actual_date, sermons.published_at) AS match_sermon_date",
			tsCfg, tsCfg, cleaned).
		Joins("JOIN sermons ON sermons.id = segments.sermon_id").
		Where("to_tsvector(?::regconfig, segments.text) @@ plainto_tsquery(?::regconfig, ?)",
			tsCfg, tsCfg, cleaned)

	q = applySegmentFilter(q, filter)

	var rows []keywordRow
	if err := q.Order("rank DESC").Limit(limit).Scan(&rows).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to run keyword search: %w", err)
	}

	matches := make([]*repository.KeywordMatch, 0, len(rows))
	for i := range rows {
		seg := rows[i].Segment
		matches = append(matches, &repository.KeywordMatch{
			Segment:    &seg,
			Rank:       rows[i].Rank,
			Speaker:    rows[i].Speaker,
			SermonDate: rows[i].SermonDate,
		})
	}
	span.SetAttributes(attribute.Int("result_count", len(matches)))
	return matches, nil
}

// applySegmentFilter adds the shared scope predicates. Both search
// modalities must filter identically so fused candidates stay comparable.
func applySegmentFilter(q *gorm.DB, filter *repository.SegmentFilter) *gorm.DB {
	if filter == nil {
		return q
	}
	if filter.SeriesID != "" {
		q = q.Where("segments.series_id = ?", filter.SeriesID)
	}
	if filter.SermonID != "" {
		q = q.Where("segments.sermon_id = ?", filter.SermonID)
	}
	if filter.Speaker != "" {
		q = q.Where("sermons.speaker = ?", filter.Speaker)
	}
	if filter.DateFrom != nil {
		q = q.Where("COALESCE(sermons.actual_date, sermons.published_at) >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		q = q.Where("COALESCE(sermons.actual_date, sermons.published_at) <= ?", *filter.DateTo)
	}
	if len(filter.SegmentIDs) > 0 {
		q = q.Where("segments.id IN ?", filter.SegmentIDs)
	}
	return q
}

func cleanKeywordQuery(query string) string {
	var kept []string
	for _, term := range strings.Fields(query) {
		if len([]rune(term)) >= minKeywordTermLength {
			kept = append(kept, term)
		}
	}
	return strings.Join(kept, " ")
}

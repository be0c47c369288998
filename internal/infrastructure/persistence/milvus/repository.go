// Package milvus provides the vector store access layer.
package milvus

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"sermon-search-api/pkg/metrics"
)

// Repository is the vector search store.
type Repository struct {
	client *Client
}

// NewRepository creates the vector repository.
func NewRepository(client *Client) *Repository {
	return &Repository{client: client}
}

// SearchParams narrows a segment vector search. All predicates are
// AND-combined; SegmentIDs is an explicit allow-list.
type SearchParams struct {
	QueryVector []float32
	TopK        int
	SeriesID    string
	SermonID    string
	Speaker     string
	DateFrom    int64
	DateTo      int64
	SegmentIDs  []string
}

// SearchResult is one vector match. Score is the cosine similarity
// reported by the COSINE metric, higher is closer.
type SearchResult struct {
	ID         string
	Score      float32
	Text       string
	SermonID   string
	SeriesID   string
	Speaker    string
	SermonDate int64
}

// SummarySearchParams narrows an aggregate vector search.
type SummarySearchParams struct {
	QueryVector []float32
	TopK        int
	Level       string
	SeriesID    string
}

// SummaryResult is one aggregate match.
type SummaryResult struct {
	ID       string
	Score    float32
	SermonID string
	SeriesID string
	Level    string
	Summary  string
}

// EnsureCollections creates the collections and HNSW indexes if absent
// and loads them. Never drops or rebuilds anything.
func (r *Repository) EnsureCollections(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "milvus.EnsureCollections")
	defer span.End()

	dim := r.client.Dimension()
	for _, schema := range []*entity.Schema{
		SermonSegmentsSchema(dim),
		SermonSummariesSchema(dim),
	} {
		name := schema.CollectionName
		exists, err := r.client.HasCollection(ctx, name)
		if err != nil {
			return err
		}
		if !exists {
			if err := r.createCollection(ctx, schema); err != nil {
				return err
			}
			if err := r.createIndex(ctx, name); err != nil {
				return err
			}
		}
		if err := r.client.LoadCollection(ctx, name); err != nil {
			return fmt.Errorf("failed to load collection %s: %w", name, err)
		}
	}
	return nil
}

func (r *Repository) createCollection(ctx context.Context, schema *entity.Schema) error {
	ctx, span := tracer.Start(ctx, "milvus.CreateCollection",
		trace.WithAttributes(attribute.String("collection", schema.CollectionName)))
	defer span.End()

	schema.CollectionName = r.client.CollectionName(schema.CollectionName)
	if err := r.client.milvus.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

func (r *Repository) createIndex(ctx context.Context, collection string) error {
	ctx, span := tracer.Start(ctx, "milvus.CreateIndex",
		trace.WithAttributes(attribute.String("collection", collection)))
	defer span.End()

	idx, err := entity.NewIndexHNSW(
		entity.COSINE,
		r.client.config.HNSWM,
		r.client.config.HNSWEfConstruction,
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create index: %w", err)
	}

	collName := r.client.CollectionName(collection)
	if err := r.client.milvus.CreateIndex(ctx, collName, "vector", idx, false); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create index: %w", err)
	}
	return nil
}

// InsertSegments inserts segment vectors.
func (r *Repository) InsertSegments(ctx context.Context, segments []*SegmentVector) error {
	ctx, span := tracer.Start(ctx, "milvus.InsertSegments",
		trace.WithAttributes(attribute.Int("count", len(segments))))
	defer span.End()

	if len(segments) == 0 {
		return nil
	}

	ids := make([]string, len(segments))
	vectors := make([][]float32, len(segments))
	seriesIDs := make([]string, len(segments))
	sermonIDs := make([]string, len(segments))
	speakers := make([]string, len(segments))
	dates := make([]int64, len(segments))
	texts := make([]string, len(segments))

	for i, seg := range segments {
		ids[i] = seg.ID
		vectors[i] = seg.Vector
		seriesIDs[i] = seg.SeriesID
		sermonIDs[i] = seg.SermonID
		speakers[i] = seg.Speaker
		dates[i] = seg.SermonDate
		texts[i] = seg.Text
	}

	collName := r.client.CollectionName(CollectionSermonSegments)
	_, err := r.client.milvus.Insert(ctx, collName, "",
		entity.NewColumnVarChar("id", ids),
		entity.NewColumnFloatVector("vector", r.client.Dimension(), vectors),
		entity.NewColumnVarChar("series_id", seriesIDs),
		entity.NewColumnVarChar("sermon_id", sermonIDs),
		entity.NewColumnVarChar("speaker", speakers),
		entity.NewColumnInt64("sermon_date", dates),
		entity.NewColumnVarChar("text", texts),
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to insert segments: %w", err)
	}
	return nil
}

// DeleteBySermon removes all segment vectors of a sermon.
func (r *Repository) DeleteBySermon(ctx context.Context, sermonID string) error {
	ctx, span := tracer.Start(ctx, "milvus.DeleteBySermon",
		trace.WithAttributes(attribute.String("sermon_id", sermonID)))
	defer span.End()

	collName := r.client.CollectionName(CollectionSermonSegments)
	filter := fmt.Sprintf(`sermon_id == "%s"`, escape(sermonID))
	if err := r.client.milvus.Delete(ctx, collName, "", filter); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete segments: %w", err)
	}
	return nil
}

// DeleteSegments removes segment vectors by id.
func (r *Repository) DeleteSegments(ctx context.Context, ids []string) error {
	ctx, span := tracer.Start(ctx, "milvus.DeleteSegments",
		trace.WithAttributes(attribute.Int("count", len(ids))))
	defer span.End()

	if len(ids) == 0 {
		return nil
	}

	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = fmt.Sprintf(`"%s"`, escape(id))
	}
	collName := r.client.CollectionName(CollectionSermonSegments)
	filter := fmt.Sprintf("id in [%s]", strings.Join(quoted, ", "))
	if err := r.client.milvus.Delete(ctx, collName, "", filter); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete segment vectors: %w", err)
	}
	return nil
}

// SearchSegments runs a nearest-neighbor query over segment vectors.
func (r *Repository) SearchSegments(ctx context.Context, params *SearchParams) ([]*SearchResult, error) {
	ctx, span := tracer.Start(ctx, "milvus.SearchSegments",
		trace.WithAttributes(attribute.Int("top_k", params.TopK)))
	defer span.End()

	start := time.Now()
	collName := r.client.CollectionName(CollectionSermonSegments)

	sp, err := entity.NewIndexHNSWSearchParam(128)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to create search param: %w", err)
	}

	results, err := r.client.milvus.Search(ctx,
		collName,
		nil,
		buildSegmentFilter(params),
		[]string{"id", "text", "sermon_id", "series_id", "speaker", "sermon_date"},
		[]entity.Vector{entity.FloatVector(params.QueryVector)},
		"vector",
		entity.COSINE,
		params.TopK,
		sp,
	)
	metrics.MilvusSearchDuration.WithLabelValues(CollectionSermonSegments).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.MilvusSearchTotal.WithLabelValues(CollectionSermonSegments, "error").Inc()
		span.RecordError(err)
		return nil, fmt.Errorf("failed to search segments: %w", err)
	}
	metrics.MilvusSearchTotal.WithLabelValues(CollectionSermonSegments, "success").Inc()

	var searchResults []*SearchResult
	for _, result := range results {
		for i := 0; i < result.ResultCount; i++ {
			sr := &SearchResult{
				Score: result.Scores[i],
			}
			if col, ok := result.Fields.GetColumn("id").(*entity.ColumnVarChar); ok {
				sr.ID = col.Data()[i]
			}
			if col, ok := result.Fields.GetColumn("text").(*entity.ColumnVarChar); ok {
				sr.Text = col.Data()[i]
			}
			if col, ok := result.Fields.GetColumn("sermon_id").(*entity.ColumnVarChar); ok {
				sr.SermonID = col.Data()[i]
			}
			if col, ok := result.Fields.GetColumn("series_id").(*entity.ColumnVarChar); ok {
				sr.SeriesID = col.Data()[i]
			}
			if col, ok := result.Fields.GetColumn("speaker").(*entity.ColumnVarChar); ok {
				sr.Speaker = col.Data()[i]
			}
			if col, ok := result.Fields.GetColumn("sermon_date").(*entity.ColumnInt64); ok {
				sr.SermonDate = col.Data()[i]
			}
			searchResults = append(searchResults, sr)
		}
	}

	span.SetAttributes(attribute.Int("result_count", len(searchResults)))
	return searchResults, nil
}

// GetSegmentVector fetches a stored segment vector by id. Returns nil
// when the segment is not indexed.
func (r *Repository) GetSegmentVector(ctx context.Context, segmentID string) ([]float32, error) {
	ctx, span := tracer.Start(ctx, "milvus.GetSegmentVector",
		trace.WithAttributes(attribute.String("segment_id", segmentID)))
	defer span.End()

	collName := r.client.CollectionName(CollectionSermonSegments)
	filter := fmt.Sprintf(`id == "%s"`, escape(segmentID))

	rs, err := r.client.milvus.Query(ctx, collName, nil, filter, []string{"vector"})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query segment vector: %w", err)
	}

	for _, col := range rs {
		if vecCol, ok := col.(*entity.ColumnFloatVector); ok && vecCol.Len() > 0 {
			return vecCol.Data()[0], nil
		}
	}
	return nil, nil
}

// UpsertSummary replaces the aggregate vector row for a sermon or series.
func (r *Repository) UpsertSummary(ctx context.Context, summary *SummaryVector) error {
	ctx, span := tracer.Start(ctx, "milvus.UpsertSummary",
		trace.WithAttributes(attribute.String("level", summary.Level)))
	defer span.End()

	collName := r.client.CollectionName(CollectionSermonSummaries)

	// Replace semantics: clear any previous row for the same key first.
	filter := fmt.Sprintf(`id == "%s"`, escape(summary.ID))
	if err := r.client.milvus.Delete(ctx, collName, "", filter); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to clear previous summary: %w", err)
	}

	_, err := r.client.milvus.Insert(ctx, collName, "",
		entity.NewColumnVarChar("id", []string{summary.ID}),
		entity.NewColumnFloatVector("vector", r.client.Dimension(), [][]float32{summary.Vector}),
		entity.NewColumnVarChar("series_id", []string{summary.SeriesID}),
		entity.NewColumnVarChar("sermon_id", []string{summary.SermonID}),
		entity.NewColumnVarChar("level", []string{summary.Level}),
		entity.NewColumnVarChar("summary", []string{summary.Summary}),
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to insert summary: %w", err)
	}
	return nil
}

// SearchSummaries runs a nearest-neighbor query over aggregate vectors.
func (r *Repository) SearchSummaries(ctx context.Context, params *SummarySearchParams) ([]*SummaryResult, error) {
	ctx, span := tracer.Start(ctx, "milvus.SearchSummaries",
		trace.WithAttributes(
			attribute.String("level", params.Level),
			attribute.Int("top_k", params.TopK),
		))
	defer span.End()

	start := time.Now()
	collName := r.client.CollectionName(CollectionSermonSummaries)

	filter := fmt.Sprintf(`level == "%s"`, escape(params.Level))
	if params.SeriesID != "" {
		filter += fmt.Sprintf(` && series_id == "%s"`, escape(params.SeriesID))
	}

	sp, err := entity.NewIndexHNSWSearchParam(128)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to create search param: %w", err)
	}

	results, err := r.client.milvus.Search(ctx,
		collName,
		nil,
		filter,
		[]string{"id", "sermon_id", "series_id", "level", "summary"},
		[]entity.Vector{entity.FloatVector(params.QueryVector)},
		"vector",
		entity.COSINE,
		params.TopK,
		sp,
	)
	metrics.MilvusSearchDuration.WithLabelValues(CollectionSermonSummaries).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.MilvusSearchTotal.WithLabelValues(CollectionSermonSummaries, "error").Inc()
		span.RecordError(err)
		return nil, fmt.Errorf("failed to search summaries: %w", err)
	}
	metrics.MilvusSearchTotal.WithLabelValues(CollectionSermonSummaries, "success").Inc()

	var out []*SummaryResult
	for _, result := range results {
		for i := 0; i < result.ResultCount; i++ {
			sr := &SummaryResult{
				Score: result.Scores[i],
			}
			if col, ok := result.Fields.GetColumn("id").(*entity.ColumnVarChar); ok {
				sr.ID = col.Data()[i]
			}
			if col, ok := result.Fields.GetColumn("sermon_id").(*entity.ColumnVarChar); ok {
				sr.SermonID = col.Data()[i]
			}
			if col, ok := result.Fields.GetColumn("series_id").(*entity.ColumnVarChar); ok {
				sr.SeriesID = col.Data()[i]
			}
			if col, ok := result.Fields.GetColumn("level").(*entity.ColumnVarChar); ok {
				sr.Level = col.Data()[i]
			}
			if col, ok := result.Fields.GetColumn("summary").(*entity.ColumnVarChar); ok {
				sr.Summary = col.Data()[i]
			}
			out = append(out, sr)
		}
	}

	span.SetAttributes(attribute.Int("result_count", len(out)))
	return out, nil
}

// buildSegmentFilter renders the AND-combined filter expression. The id
// allow-list becomes an OR chain to avoid IN syntax differences across
// Milvus versions.
func buildSegmentFilter(params *SearchParams) string {
	var parts []string
	if params.SeriesID != "" {
		parts = append(parts, fmt.Sprintf(`series_id == "%s"`, escape(params.SeriesID)))
	}
	if params.SermonID != "" {
		parts = append(parts, fmt.Sprintf(`sermon_id == "%s"`, escape(params.SermonID)))
	}
	if params.Speaker != "" {
		parts = append(parts, fmt.Sprintf(`speaker == "%s"`, escape(params.Speaker)))
	}
	if params.DateFrom > 0 {
		parts = append(parts, fmt.Sprintf(`sermon_date >= %d`, params.DateFrom))
	}
	if params.DateTo > 0 {
		parts = append(parts, fmt.Sprintf(`sermon_date <= %d`, params.DateTo))
	}
	if len(params.SegmentIDs) > 0 {
		var ids []string
		for _, id := range params.SegmentIDs {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			ids = append(ids, fmt.Sprintf(`id == "%s"`, escape(id)))
		}
		if len(ids) > 0 {
			parts = append(parts, "("+strings.Join(ids, " || ")+")")
		}
	}
	return strings.Join(parts, " && ")
}

func escape(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}

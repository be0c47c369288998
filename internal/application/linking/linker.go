package linking

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"sermon-search-api/internal/config"
	"sermon-search-api/internal/domain/entity"
	"sermon-search-api/internal/domain/repository"
	"sermon-search-api/internal/infrastructure/persistence/milvus"
	"sermon-search-api/pkg/logger"
	"sermon-search-api/pkg/metrics"
)

var tracer = otel.Tracer("linking")

// VectorSearcher is the vector-side interface the linker needs.
type VectorSearcher interface {
	GetSegmentVector(ctx context.Context, segmentID string) ([]float32, error)
	SearchSegments(ctx context.Context, params *milvus.SearchParams) ([]*milvus.SearchResult, error)
}

// Linker generates relationship links between segments of different
// sermons within the same series.
type Linker struct {
	segments repository.SegmentRepository
	links    repository.LinkRepository
	vectors  VectorSearcher
	rules    *Rules
	cfg      config.LinkerConfig
}

// NewLinker assembles the linker.
func NewLinker(
	segments repository.SegmentRepository,
	links repository.LinkRepository,
	vectors VectorSearcher,
	rules *Rules,
	cfg config.LinkerConfig,
) *Linker {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Linker{
		segments: segments,
		links:    links,
		vectors:  vectors,
		rules:    rules,
		cfg:      cfg,
	}
}

// GenerateLinks discovers links for one source segment. A missing
// segment or an unindexed vector yields an empty result, not an error;
// upserts are idempotent so repeated runs never duplicate pairs.
func (l *Linker) GenerateLinks(ctx context.Context, segmentID string, minSimilarity float64, maxLinks int) ([]*entity.SegmentLink, error) {
	ctx, span := tracer.Start(ctx, "linking.GenerateLinks",
		trace.WithAttributes(attribute.String("segment_id", segmentID)))
	defer span.End()

	if maxLinks <= 0 {
		maxLinks = l.cfg.TopK
	}

	source, err := l.segments.GetByID(ctx, segmentID)
	if err != nil {
		return nil, err
	}
	if source == nil {
		logger.Debug(ctx, "segment not found, no links generated", "segment_id", segmentID)
		return nil, nil
	}

	vector, err := l.vectors.GetSegmentVector(ctx, segmentID)
	if err != nil {
		return nil, err
	}
	if vector == nil {
		logger.Debug(ctx, "segment not indexed yet, no links generated", "segment_id", segmentID)
		return nil, nil
	}

	// Over-fetch so neighbors from the source's own sermon can be
	// filtered out without starving the result.
	neighbors, err := l.vectors.SearchSegments(ctx, &milvus.SearchParams{
		QueryVector: vector,
		TopK:        maxLinks * 3,
		SeriesID:    source.SeriesID,
	})
	if err != nil {
		return nil, err
	}

	var created []*entity.SegmentLink
	for _, n := range neighbors {
		if len(created) >= maxLinks {
			break
		}
		if n.ID == source.ID || n.SermonID == source.SermonID {
			continue
		}
		if float64(n.Score) < minSimilarity {
			continue
		}

		linkType, confidence := l.rules.Classify(source.Text, n.Text)
		link := &entity.SegmentLink{
			SourceSegmentID:  source.ID,
			RelatedSegmentID: n.ID,
			SimilarityScore:  float64(n.Score),
			LinkType:         linkType,
			Confidence:       confidence,
		}
		if err := l.links.Upsert(ctx, link); err != nil {
			return created, err
		}
		metrics.LinksGeneratedTotal.WithLabelValues(string(linkType)).Inc()
		created = append(created, link)
	}

	span.SetAttributes(attribute.Int("link_count", len(created)))
	return created, nil
}

// GetLinks lists a segment's outgoing links.
func (l *Linker) GetLinks(ctx context.Context, segmentID string) ([]*entity.SegmentLink, error) {
	return l.links.ListBySource(ctx, segmentID)
}

// RegenerateLinks drops a segment's outgoing links and rebuilds them.
func (l *Linker) RegenerateLinks(ctx context.Context, segmentID string, minSimilarity float64, maxLinks int) ([]*entity.SegmentLink, error) {
	if err := l.links.DeleteBySource(ctx, segmentID); err != nil {
		return nil, err
	}
	return l.GenerateLinks(ctx, segmentID, minSimilarity, maxLinks)
}

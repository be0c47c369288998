package linking

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"sermon-search-api/internal/domain/repository"
	"sermon-search-api/pkg/logger"
)

// BatchResult summarizes one batch link-generation run.
type BatchResult struct {
	SeriesID     string `json:"series_id"`
	Processed    int    `json:"processed"`
	LinksCreated int    `json:"links_created"`
	Failed       int    `json:"failed"`
}

// GenerateForSeries links every segment of a series in fixed-size
// pages. Segments within a page are processed sequentially to bound
// vector-store concurrency; a single segment's failure is logged and
// counted, never fatal to the batch.
func (l *Linker) GenerateForSeries(ctx context.Context, seriesID string, minSimilarity float64, maxLinks int) (*BatchResult, error) {
	ctx, span := tracer.Start(ctx, "linking.GenerateForSeries",
		trace.WithAttributes(attribute.String("series_id", seriesID)))
	defer span.End()

	result := &BatchResult{SeriesID: seriesID}

	for page := 1; ; page++ {
		pagination := repository.NewPagination(page, l.cfg.BatchSize)
		segments, err := l.segments.ListBySeries(ctx, seriesID, pagination)
		if err != nil {
			return result, err
		}
		if len(segments.Items) == 0 {
			break
		}

		for _, seg := range segments.Items {
			links, err := l.GenerateLinks(ctx, seg.ID, minSimilarity, maxLinks)
			if err != nil {
				result.Failed++
				logger.Warn(ctx, "link generation failed for segment",
					"segment_id", seg.ID, "error", err.Error())
				continue
			}
			result.Processed++
			result.LinksCreated += len(links)
		}

		if page >= segments.TotalPages {
			break
		}
	}

	span.SetAttributes(
		attribute.Int("processed", result.Processed),
		attribute.Int("links_created", result.LinksCreated),
		attribute.Int("failed", result.Failed),
	)
	logger.Info(ctx, "series link generation finished",
		"series_id", seriesID,
		"processed", result.Processed,
		"links_created", result.LinksCreated,
		"failed", result.Failed,
	)
	return result, nil
}

// Package indexing runs the segment embedding pipeline: transcript text
// is chunked, embedded, and written to the relational and vector stores
// in one atomic swap per sermon.
package indexing

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"sermon-search-api/internal/application/segmenter"
	"sermon-search-api/internal/domain/entity"
	"sermon-search-api/internal/domain/repository"
	"sermon-search-api/internal/infrastructure/persistence/milvus"
	apperrors "sermon-search-api/pkg/errors"
	"sermon-search-api/pkg/logger"
	"sermon-search-api/pkg/metrics"
)

var tracer = otel.Tracer("indexing")

// Embedder is the embedding slice of the LLM client the pipeline needs.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorStore is the vector-side write interface. Deletes are by id so
// a reindex can sweep the previous generation without touching the rows
// it just wrote for the same sermon.
type VectorStore interface {
	InsertSegments(ctx context.Context, segments []*milvus.SegmentVector) error
	DeleteSegments(ctx context.Context, ids []string) error
}

// CacheInvalidator clears cached results after a reindex. Optional.
type CacheInvalidator interface {
	InvalidateSermon(ctx context.Context, sermonID string) error
}

// Status values reported by a pipeline run.
const (
	StatusRegenerated = "regenerated"
	StatusCacheHit    = "cache_hit"
)

// Result describes one pipeline run.
type Result struct {
	SermonID     string `json:"sermon_id"`
	Status       string `json:"status"`
	SegmentCount int    `json:"segment_count"`
	TextHash     string `json:"text_hash"`
}

// Pipeline is the embedding pipeline. Runs for the same sermon are
// serialized; runs for different sermons proceed in parallel.
type Pipeline struct {
	sermons  repository.SermonRepository
	segments repository.SegmentRepository
	tx       repository.Transactor
	vectors  VectorStore
	embedder Embedder
	chunker  *segmenter.Segmenter
	cache    CacheInvalidator

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewPipeline assembles the pipeline. cache may be nil.
func NewPipeline(
	sermons repository.SermonRepository,
	segments repository.SegmentRepository,
	tx repository.Transactor,
	vectors VectorStore,
	embedder Embedder,
	chunker *segmenter.Segmenter,
	cache CacheInvalidator,
) *Pipeline {
	return &Pipeline{
		sermons:  sermons,
		segments: segments,
		tx:       tx,
		vectors:  vectors,
		embedder: embedder,
		chunker:  chunker,
		cache:    cache,
		locks:    make(map[string]*sync.Mutex),
	}
}

// GenerateEmbeddings chunks and embeds one sermon. When the stored text
// hash matches and segments already exist, the run is a no-op unless
// force is set. Any embedding failure aborts the whole run; the previous
// index stays intact because nothing is deleted before the new segments
// are fully embedded. New vectors land under fresh ids before the
// relational swap commits the hash, so a failed vector write can never
// latch a hash that has no vectors behind it.
func (p *Pipeline) GenerateEmbeddings(ctx context.Context, sermonID string, force bool, mode segmenter.Mode) (*Result, error) {
	ctx, span := tracer.Start(ctx, "indexing.GenerateEmbeddings",
		trace.WithAttributes(attribute.String("sermon_id", sermonID)))
	defer span.End()

	unlock := p.lockSermon(sermonID)
	defer unlock()

	sermon, err := p.sermons.GetByID(ctx, sermonID)
	if err != nil {
		metrics.PipelineRunsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	if sermon == nil {
		return nil, apperrors.ErrSermonNotFound
	}

	hash := entity.HashText(sermon.FullText)
	if !force && hash == sermon.TextHash {
		count, err := p.segments.CountBySermon(ctx, sermonID)
		if err != nil {
			metrics.PipelineRunsTotal.WithLabelValues("error").Inc()
			return nil, err
		}
		if count > 0 {
			logger.Info(ctx, "embeddings up to date, skipping regeneration",
				"sermon_id", sermonID, "segment_count", count)
			metrics.PipelineRunsTotal.WithLabelValues(StatusCacheHit).Inc()
			return &Result{
				SermonID:     sermonID,
				Status:       StatusCacheHit,
				SegmentCount: int(count),
				TextHash:     hash,
			}, nil
		}
	}

	chunks, err := p.chunker.Segment(sermon.FullText, mode)
	if err != nil {
		metrics.PipelineRunsTotal.WithLabelValues("error").Inc()
		return nil, apperrors.Wrap(err, apperrors.CodeIndexingFailed, "segmentation failed")
	}
	if len(chunks) == 0 {
		metrics.PipelineRunsTotal.WithLabelValues("error").Inc()
		return nil, apperrors.New(apperrors.CodeIndexingFailed, "sermon has no transcript text")
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	// All chunks must embed before anything is written. A partial index
	// would silently degrade recall for this sermon.
	embeddings, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		metrics.PipelineRunsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	segments := p.buildSegments(sermon, chunks, embeddings)

	previous, err := p.segments.ListBySermon(ctx, sermonID)
	if err != nil {
		metrics.PipelineRunsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	oldVectorIDs := make([]string, len(previous))
	for i, seg := range previous {
		oldVectorIDs[i] = seg.ID
	}

	// New vectors first, while the old generation keeps serving. A
	// failed write aborts here with the previous state untouched.
	if err := p.vectors.InsertSegments(ctx, toVectorRows(sermon, segments)); err != nil {
		metrics.PipelineRunsTotal.WithLabelValues("error").Inc()
		return nil, apperrors.Wrap(err, apperrors.CodeIndexingFailed, "failed to index vectors")
	}

	err = p.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := p.segments.DeleteBySermon(ctx, sermonID); err != nil {
			return err
		}
		if err := p.segments.CreateBatch(ctx, segments); err != nil {
			return err
		}
		return p.sermons.UpdateTextHash(ctx, sermonID, hash)
	})
	if err != nil {
		// Sweep the vectors that just landed so both stores keep
		// pointing at the surviving generation.
		newIDs := make([]string, len(segments))
		for i, seg := range segments {
			newIDs[i] = seg.ID
		}
		if derr := p.vectors.DeleteSegments(ctx, newIDs); derr != nil {
			logger.Warn(ctx, "failed to roll back new vectors",
				"sermon_id", sermonID, "error", derr.Error())
		}
		metrics.PipelineRunsTotal.WithLabelValues("error").Inc()
		return nil, apperrors.Wrap(err, apperrors.CodeIndexingFailed, "failed to store segments")
	}

	// Old vectors go last. A failed sweep leaves stale rows behind, never
	// an empty index.
	if err := p.vectors.DeleteSegments(ctx, oldVectorIDs); err != nil {
		logger.Warn(ctx, "failed to clear old vectors",
			"sermon_id", sermonID, "error", err.Error())
	}

	if p.cache != nil {
		if err := p.cache.InvalidateSermon(ctx, sermonID); err != nil {
			logger.Warn(ctx, "failed to invalidate sermon cache", "error", err.Error())
		}
	}

	logger.Info(ctx, "embeddings regenerated",
		"sermon_id", sermonID, "segment_count", len(segments))
	metrics.PipelineRunsTotal.WithLabelValues(StatusRegenerated).Inc()
	metrics.PipelineSegments.WithLabelValues(string(mode)).Observe(float64(len(segments)))

	return &Result{
		SermonID:     sermonID,
		Status:       StatusRegenerated,
		SegmentCount: len(segments),
		TextHash:     hash,
	}, nil
}

// buildSegments turns chunks into segment rows with interpolated audio
// timestamps. IDs are assigned here so the vector rows share them.
func (p *Pipeline) buildSegments(sermon *entity.Sermon, chunks []segmenter.Chunk, embeddings [][]float32) []*entity.Segment {
	totalWords := chunks[len(chunks)-1].EndWord

	segments := make([]*entity.Segment, len(chunks))
	for i, chunk := range chunks {
		seg := &entity.Segment{
			ID:          uuid.NewString(),
			SermonID:    sermon.ID,
			SeriesID:    sermon.SeriesID,
			StartWord:   chunk.StartWord,
			EndWord:     chunk.EndWord,
			Text:        chunk.Text,
			ContentHash: entity.HashText(chunk.Text),
		}
		if i < len(embeddings) {
			seg.Embedding = embeddings[i]
		}
		if sermon.DurationSec > 0 && totalWords > 0 {
			seg.StartTimeSec = sermon.DurationSec * float64(chunk.StartWord) / float64(totalWords)
			seg.EndTimeSec = sermon.DurationSec * float64(chunk.EndWord) / float64(totalWords)
		}
		segments[i] = seg
	}
	return segments
}

func toVectorRows(sermon *entity.Sermon, segments []*entity.Segment) []*milvus.SegmentVector {
	var date int64
	if d := sermon.Date(); d != nil {
		date = d.Unix()
	}

	rows := make([]*milvus.SegmentVector, len(segments))
	for i, seg := range segments {
		rows[i] = &milvus.SegmentVector{
			ID:         seg.ID,
			Vector:     seg.Embedding,
			SeriesID:   seg.SeriesID,
			SermonID:   seg.SermonID,
			Speaker:    sermon.Speaker,
			SermonDate: date,
			Text:       seg.Text,
		}
	}
	return rows
}

// lockSermon serializes runs for one sermon.
func (p *Pipeline) lockSermon(sermonID string) func() {
	p.mu.Lock()
	lock, ok := p.locks[sermonID]
	if !ok {
		lock = &sync.Mutex{}
		p.locks[sermonID] = lock
	}
	p.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// Touch updates a sermon's text and re-runs the pipeline. Convenience
// for ingestion endpoints that replace the transcript wholesale.
func (p *Pipeline) Touch(ctx context.Context, sermonID, fullText string, durationSec float64) (*Result, error) {
	sermon, err := p.sermons.GetByID(ctx, sermonID)
	if err != nil {
		return nil, err
	}
	if sermon == nil {
		return nil, apperrors.ErrSermonNotFound
	}

	sermon.FullText = fullText
	if durationSec > 0 {
		sermon.DurationSec = durationSec
	}
	sermon.UpdatedAt = time.Now()
	if err := p.sermons.Update(ctx, sermon); err != nil {
		return nil, err
	}

	return p.GenerateEmbeddings(ctx, sermonID, false, segmenter.ModeNone)
}

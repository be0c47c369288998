package search

import (
	"context"
	"math"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"sermon-search-api/internal/config"
	"sermon-search-api/internal/domain/repository"
	"sermon-search-api/internal/domain/scripture"
	"sermon-search-api/internal/infrastructure/persistence/milvus"
	apperrors "sermon-search-api/pkg/errors"
	"sermon-search-api/pkg/logger"
	"sermon-search-api/pkg/metrics"
)

var tracer = otel.Tracer("search")

// SemanticSearcher is the vector-side retrieval interface.
type SemanticSearcher interface {
	SearchSegments(ctx context.Context, params *milvus.SearchParams) ([]*milvus.SearchResult, error)
}

// QueryEmbedder turns the query text into a vector.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Engine is the hybrid retrieval engine. Both sub-searches run
// concurrently over the same scope filter; candidates are fused by
// weighted reciprocal rank. The contextual boosts feed each result's
// enhanced score and breakdown but never change the fused order.
type Engine struct {
	vectors  SemanticSearcher
	segments SegmentStore
	embedder QueryEmbedder
	scorer   *Scorer
	refs     *scripture.Ruleset
	cfg      config.SearchConfig
}

// SegmentStore is the slice of the segment repository the engine uses.
type SegmentStore interface {
	SearchKeyword(ctx context.Context, query string, filter *repository.SegmentFilter, limit int) ([]*repository.KeywordMatch, error)
}

// NewEngine assembles the engine.
func NewEngine(
	vectors SemanticSearcher,
	segments SegmentStore,
	embedder QueryEmbedder,
	scorer *Scorer,
	refs *scripture.Ruleset,
	cfg config.SearchConfig,
) *Engine {
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = 10
	}
	return &Engine{
		vectors:  vectors,
		segments: segments,
		embedder: embedder,
		scorer:   scorer,
		refs:     refs,
		cfg:      cfg,
	}
}

// candidate accumulates both sub-searches' views of one segment before
// fusion. Rank -1 means "absent from that list".
type candidate struct {
	result  *Result
	semRank int
	kwRank  int
}

// Search runs a hybrid retrieval. A failure in one sub-search degrades
// to the other's results; only a total failure is an error. Malformed
// weights are rejected before any external call.
func (e *Engine) Search(ctx context.Context, req *Request) ([]*Result, error) {
	ctx, span := tracer.Start(ctx, "search.Search",
		trace.WithAttributes(attribute.Int("limit", req.Limit)))
	defer span.End()

	semWeight, kwWeight, err := normalizeWeights(req.SemanticWeight, req.KeywordWeight)
	if err != nil {
		return nil, err
	}
	if req.Query == "" {
		return nil, apperrors.New(apperrors.CodeInvalidParam, "query must not be empty")
	}
	limit := req.Limit
	if limit <= 0 {
		limit = e.cfg.DefaultTopK
	}

	start := time.Now()
	candidateLimit := 2 * limit

	var (
		semResults []*milvus.SearchResult
		kwResults  []*repository.KeywordMatch
		semErr     error
		kwErr      error
	)

	// Sub-search errors are collected, not propagated, so one healthy
	// modality still serves the request.
	g, gctx := errgroup.WithContext(ctx)
	if semWeight > 0 {
		g.Go(func() error {
			semResults, semErr = e.searchSemantic(gctx, req, candidateLimit)
			return nil
		})
	}
	if kwWeight > 0 {
		g.Go(func() error {
			kwResults, kwErr = e.segments.SearchKeyword(gctx, req.Query, &req.Filter, candidateLimit)
			return nil
		})
	}
	_ = g.Wait()

	if semErr != nil {
		logger.Warn(ctx, "semantic sub-search failed, degrading to keyword only", "error", semErr.Error())
	}
	if kwErr != nil {
		logger.Warn(ctx, "keyword sub-search failed, degrading to semantic only", "error", kwErr.Error())
	}
	if semErr != nil && kwErr != nil {
		metrics.SearchTotal.WithLabelValues("hybrid", "error").Inc()
		return nil, apperrors.Wrap(semErr, apperrors.CodeSearchFailed, "both sub-searches failed")
	}
	if semWeight > 0 && semErr == nil {
		metrics.SearchCandidates.WithLabelValues("semantic").Observe(float64(len(semResults)))
	}
	if kwWeight > 0 && kwErr == nil {
		metrics.SearchCandidates.WithLabelValues("keyword").Observe(float64(len(kwResults)))
	}

	results := e.fuse(semResults, kwResults, semWeight, kwWeight, req, limit)

	metrics.SearchTotal.WithLabelValues("hybrid", "success").Inc()
	metrics.SearchDuration.WithLabelValues("hybrid").Observe(time.Since(start).Seconds())
	span.SetAttributes(attribute.Int("result_count", len(results)))
	return results, nil
}

func (e *Engine) searchSemantic(ctx context.Context, req *Request, limit int) ([]*milvus.SearchResult, error) {
	vector, err := e.embedder.Embed(ctx, req.Query)
	if err != nil {
		return nil, err
	}
	return e.vectors.SearchSegments(ctx, toMilvusParams(vector, &req.Filter, limit))
}

// fuse merges the two ranked lists by weighted reciprocal rank and
// returns the top results ordered by the fused score. The contextual
// boosts are per-result (reference density varies with the text), so
// they only annotate the breakdown and enhanced score; letting them
// reorder would break the guarantee that a one-sided weighting
// reproduces that side's ranking. A candidate present in neither list
// cannot appear; one present in a single list gets rank-score zero
// from the other.
func (e *Engine) fuse(
	semResults []*milvus.SearchResult,
	kwResults []*repository.KeywordMatch,
	semWeight, kwWeight float64,
	req *Request,
	limit int,
) []*Result {
	candidates := make(map[string]*candidate)

	for i, sr := range semResults {
		var date *time.Time
		if sr.SermonDate > 0 {
			d := time.Unix(sr.SermonDate, 0)
			date = &d
		}
		candidates[sr.ID] = &candidate{
			semRank: i,
			kwRank:  -1,
			result: &Result{
				SegmentID:  sr.ID,
				SermonID:   sr.SermonID,
				SeriesID:   sr.SeriesID,
				Speaker:    sr.Speaker,
				SermonDate: date,
				Text:       sr.Text,
				Breakdown:  ScoreBreakdown{SemanticScore: float64(sr.Score)},
			},
		}
	}

	for i, km := range kwResults {
		seg := km.Segment
		if c, ok := candidates[seg.ID]; ok {
			c.kwRank = i
			c.result.Breakdown.KeywordScore = km.Rank
			c.result.StartWord = seg.StartWord
			c.result.EndWord = seg.EndWord
			c.result.StartTimeSec = seg.StartTimeSec
			c.result.EndTimeSec = seg.EndTimeSec
			continue
		}
		candidates[seg.ID] = &candidate{
			semRank: -1,
			kwRank:  i,
			result: &Result{
				SegmentID:    seg.ID,
				SermonID:     seg.SermonID,
				SeriesID:     seg.SeriesID,
				Speaker:      km.Speaker,
				SermonDate:   km.SermonDate,
				Text:         seg.Text,
				StartWord:    seg.StartWord,
				EndWord:      seg.EndWord,
				StartTimeSec: seg.StartTimeSec,
				EndTimeSec:   seg.EndTimeSec,
				Breakdown:    ScoreBreakdown{KeywordScore: km.Rank},
			},
		}
	}

	fused := make([]*candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.semRank >= 0 {
			c.result.Breakdown.SemanticRankScore = 1.0 / float64(c.semRank+1)
		}
		if c.kwRank >= 0 {
			c.result.Breakdown.KeywordRankScore = 1.0 / float64(c.kwRank+1)
		}
		c.result.Breakdown.Fused = semWeight*c.result.Breakdown.SemanticRankScore +
			kwWeight*c.result.Breakdown.KeywordRankScore

		refCount := 0
		if e.refs != nil {
			refCount = e.refs.CountReferences(c.result.Text)
		}
		factors := e.scorer.Score(c.result.Breakdown.Fused, ScoreInput{
			SermonDate:       c.result.SermonDate,
			Speaker:          c.result.Speaker,
			RequestedSpeaker: req.RequestedSpeaker,
			ReferenceCount:   refCount,
		})
		c.result.Breakdown.Factors = factors
		c.result.Score = factors.Enhanced

		fused = append(fused, c)
	}

	sort.SliceStable(fused, func(i, j int) bool {
		a, b := fused[i], fused[j]
		if a.result.Breakdown.Fused != b.result.Breakdown.Fused {
			return a.result.Breakdown.Fused > b.result.Breakdown.Fused
		}
		return semTieRank(a) < semTieRank(b)
	})

	if len(fused) > limit {
		fused = fused[:limit]
	}

	results := make([]*Result, len(fused))
	for i, c := range fused {
		results[i] = c.result
	}
	return results
}

// semTieRank orders tied candidates by their original semantic rank;
// absence from the semantic list loses the tie.
func semTieRank(c *candidate) int {
	if c.semRank < 0 {
		return math.MaxInt
	}
	return c.semRank
}

func normalizeWeights(semantic, keyword float64) (float64, float64, error) {
	if semantic < 0 || keyword < 0 {
		return 0, 0, apperrors.New(apperrors.CodeInvalidParam, "search weights must not be negative")
	}
	total := semantic + keyword
	if total == 0 {
		return 0, 0, apperrors.New(apperrors.CodeInvalidParam, "at least one search weight must be positive")
	}
	return semantic / total, keyword / total, nil
}

func toMilvusParams(vector []float32, filter *repository.SegmentFilter, limit int) *milvus.SearchParams {
	params := &milvus.SearchParams{
		QueryVector: vector,
		TopK:        limit,
		SeriesID:    filter.SeriesID,
		SermonID:    filter.SermonID,
		Speaker:     filter.Speaker,
		SegmentIDs:  filter.SegmentIDs,
	}
	if filter.DateFrom != nil {
		params.DateFrom = filter.DateFrom.Unix()
	}
	if filter.DateTo != nil {
		params.DateTo = filter.DateTo.Unix()
	}
	return params
}

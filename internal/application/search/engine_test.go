package search

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sermon-search-api/internal/config"
	"sermon-search-api/internal/domain/entity"
	"sermon-search-api/internal/domain/repository"
	"sermon-search-api/internal/domain/scripture"
	"sermon-search-api/internal/infrastructure/persistence/milvus"
	apperrors "sermon-search-api/pkg/errors"
)

type fakeVectors struct {
	results []*milvus.SearchResult
	err     error
	calls   int
}

func (f *fakeVectors) SearchSegments(ctx context.Context, params *milvus.SearchParams) ([]*milvus.SearchResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := f.results
	if params.SermonID != "" {
		out = nil
		for _, r := range f.results {
			if r.SermonID == params.SermonID {
				out = append(out, r)
			}
		}
	}
	if len(out) > params.TopK {
		out = out[:params.TopK]
	}
	return out, nil
}

type fakeSegments struct {
	matches []*repository.KeywordMatch
	err     error
	calls   int
}

func (f *fakeSegments) SearchKeyword(ctx context.Context, query string, filter *repository.SegmentFilter, limit int) ([]*repository.KeywordMatch, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := f.matches
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeQueryEmbedder struct {
	err   error
	calls int
}

func (f *fakeQueryEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2, 0.3, 0.4}, nil
}

func semResult(id string, score float32) *milvus.SearchResult {
	return &milvus.SearchResult{
		ID:       id,
		Score:    score,
		SermonID: "sermon-1",
		SeriesID: "series-1",
		Text:     "segment " + id,
	}
}

func kwMatch(id string, rank float64) *repository.KeywordMatch {
	return &repository.KeywordMatch{
		Segment: &entity.Segment{
			ID:       id,
			SermonID: "sermon-1",
			SeriesID: "series-1",
			Text:     "segment " + id,
		},
		Rank: rank,
	}
}

func newTestEngine(vectors *fakeVectors, segments *fakeSegments, embedder *fakeQueryEmbedder) *Engine {
	return NewEngine(vectors, segments, embedder, newTestScorer(), nil,
		config.SearchConfig{DefaultTopK: 10})
}

func TestSearchFusionTopCandidateGetsFullRankScores(t *testing.T) {
	vectors := &fakeVectors{results: []*milvus.SearchResult{
		semResult("seg-a", 0.95),
		semResult("seg-b", 0.80),
	}}
	segments := &fakeSegments{matches: []*repository.KeywordMatch{
		kwMatch("seg-a", 0.9),
		kwMatch("seg-c", 0.5),
	}}

	e := newTestEngine(vectors, segments, &fakeQueryEmbedder{})

	results, err := e.Search(context.Background(), &Request{
		Query:          "grace",
		Limit:          10,
		SemanticWeight: 0.5,
		KeywordWeight:  0.5,
	})
	require.NoError(t, err)
	require.NotEmpty(t, results)

	top := results[0]
	assert.Equal(t, "seg-a", top.SegmentID)
	assert.Equal(t, 1.0, top.Breakdown.SemanticRankScore, "rank 1 contributes 1.0 before weighting")
	assert.Equal(t, 1.0, top.Breakdown.KeywordRankScore)
	assert.InDelta(t, 1.0, top.Breakdown.Fused, 1e-9)
	assert.InDelta(t, 0.95, top.Breakdown.SemanticScore, 1e-6)
	assert.InDelta(t, 0.9, top.Breakdown.KeywordScore, 1e-9)
}

func TestSearchCandidateInNeitherListNeverAppears(t *testing.T) {
	vectors := &fakeVectors{results: []*milvus.SearchResult{semResult("seg-a", 0.9)}}
	segments := &fakeSegments{matches: []*repository.KeywordMatch{kwMatch("seg-b", 0.7)}}

	e := newTestEngine(vectors, segments, &fakeQueryEmbedder{})

	results, err := e.Search(context.Background(), &Request{
		Query: "grace", Limit: 10, SemanticWeight: 1, KeywordWeight: 1,
	})
	require.NoError(t, err)

	ids := map[string]bool{}
	for _, r := range results {
		ids[r.SegmentID] = true
	}
	assert.True(t, ids["seg-a"])
	assert.True(t, ids["seg-b"])
	assert.Len(t, ids, 2)
}

func TestSearchWeightNormalizationEquivalence(t *testing.T) {
	build := func() *Engine {
		vectors := &fakeVectors{results: []*milvus.SearchResult{
			semResult("seg-a", 0.95),
			semResult("seg-b", 0.90),
			semResult("seg-c", 0.85),
		}}
		segments := &fakeSegments{matches: []*repository.KeywordMatch{
			kwMatch("seg-c", 0.9),
			kwMatch("seg-b", 0.8),
			kwMatch("seg-d", 0.7),
		}}
		return newTestEngine(vectors, segments, &fakeQueryEmbedder{})
	}

	normalized, err := build().Search(context.Background(), &Request{
		Query: "grace", Limit: 10, SemanticWeight: 0.7, KeywordWeight: 0.3,
	})
	require.NoError(t, err)

	unnormalized, err := build().Search(context.Background(), &Request{
		Query: "grace", Limit: 10, SemanticWeight: 7, KeywordWeight: 3,
	})
	require.NoError(t, err)

	require.Equal(t, len(normalized), len(unnormalized))
	for i := range normalized {
		assert.Equal(t, normalized[i].SegmentID, unnormalized[i].SegmentID)
		assert.InDelta(t, normalized[i].Score, unnormalized[i].Score, 1e-9)
	}
}

func TestSearchKeywordOnlyReproducesKeywordOrder(t *testing.T) {
	vectors := &fakeVectors{results: []*milvus.SearchResult{
		semResult("seg-c", 0.99),
		semResult("seg-a", 0.98),
	}}
	segments := &fakeSegments{matches: []*repository.KeywordMatch{
		kwMatch("seg-a", 0.9),
		kwMatch("seg-b", 0.8),
		kwMatch("seg-c", 0.7),
	}}
	embedder := &fakeQueryEmbedder{}

	e := newTestEngine(vectors, segments, embedder)

	results, err := e.Search(context.Background(), &Request{
		Query: "grace", Limit: 10, SemanticWeight: 0, KeywordWeight: 1,
	})
	require.NoError(t, err)

	require.Len(t, results, 3)
	assert.Equal(t, "seg-a", results[0].SegmentID)
	assert.Equal(t, "seg-b", results[1].SegmentID)
	assert.Equal(t, "seg-c", results[2].SegmentID)

	// Zero semantic weight must skip the vector side entirely.
	assert.Zero(t, vectors.calls)
	assert.Zero(t, embedder.calls)
}

func TestSearchKeywordOnlyOrderUnchangedByCitationDensity(t *testing.T) {
	// The last-ranked match is packed with citations; its reference
	// density boost must show up in the breakdown without promoting it
	// past citation-free matches.
	matches := []*repository.KeywordMatch{
		kwMatch("seg-1", 0.9),
		kwMatch("seg-2", 0.8),
		kwMatch("seg-3", 0.7),
		kwMatch("seg-4", 0.6),
		kwMatch("seg-5", 0.5),
		kwMatch("seg-6", 0.4),
	}
	matches[5].Segment.Text = "See John 3:16, Romans 8:28, Genesis 1:1, Psalm 23:1 and Matthew 5:3."
	segments := &fakeSegments{matches: matches}

	e := NewEngine(&fakeVectors{}, segments, &fakeQueryEmbedder{}, newTestScorer(),
		scripture.NewRuleset("en"), config.SearchConfig{DefaultTopK: 10})

	results, err := e.Search(context.Background(), &Request{
		Query: "grace", Limit: 10, SemanticWeight: 0, KeywordWeight: 1,
	})
	require.NoError(t, err)

	require.Len(t, results, 6)
	for i, want := range []string{"seg-1", "seg-2", "seg-3", "seg-4", "seg-5", "seg-6"} {
		assert.Equal(t, want, results[i].SegmentID)
	}
	assert.Greater(t, results[5].Breakdown.Factors.ReferenceDensity, 1.0)
	assert.Equal(t, 1.0, results[4].Breakdown.Factors.ReferenceDensity)
}

func TestSearchKeywordOnlyCandidateCarriesSermonContext(t *testing.T) {
	date := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	match := kwMatch("seg-a", 0.9)
	match.Speaker = "John Piper"
	match.SermonDate = &date
	segments := &fakeSegments{matches: []*repository.KeywordMatch{match}}

	e := newTestEngine(&fakeVectors{}, segments, &fakeQueryEmbedder{})

	results, err := e.Search(context.Background(), &Request{
		Query:            "grace",
		Limit:            5,
		SemanticWeight:   0,
		KeywordWeight:    1,
		RequestedSpeaker: "john piper",
	})
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, "John Piper", r.Speaker)
	require.NotNil(t, r.SermonDate)
	assert.True(t, r.SermonDate.Equal(date))
	assert.InDelta(t, 1.2, r.Breakdown.Factors.SpeakerAuthority, 1e-9)
}

func TestSearchRejectsMalformedWeightsBeforeExternalCalls(t *testing.T) {
	vectors := &fakeVectors{}
	segments := &fakeSegments{}
	embedder := &fakeQueryEmbedder{}

	e := newTestEngine(vectors, segments, embedder)

	_, err := e.Search(context.Background(), &Request{
		Query: "grace", SemanticWeight: 0, KeywordWeight: 0,
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInvalidParam, apperrors.AsAppError(err).Code)

	_, err = e.Search(context.Background(), &Request{
		Query: "grace", SemanticWeight: -1, KeywordWeight: 1,
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInvalidParam, apperrors.AsAppError(err).Code)

	assert.Zero(t, vectors.calls)
	assert.Zero(t, segments.calls)
	assert.Zero(t, embedder.calls)
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	e := newTestEngine(&fakeVectors{}, &fakeSegments{}, &fakeQueryEmbedder{})

	_, err := e.Search(context.Background(), &Request{
		Query: "", SemanticWeight: 1, KeywordWeight: 1,
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInvalidParam, apperrors.AsAppError(err).Code)
}

func TestSearchDegradesWhenSemanticFails(t *testing.T) {
	vectors := &fakeVectors{err: fmt.Errorf("milvus unreachable")}
	segments := &fakeSegments{matches: []*repository.KeywordMatch{
		kwMatch("seg-a", 0.9),
		kwMatch("seg-b", 0.8),
	}}

	e := newTestEngine(vectors, segments, &fakeQueryEmbedder{})

	results, err := e.Search(context.Background(), &Request{
		Query: "grace", Limit: 10, SemanticWeight: 0.7, KeywordWeight: 0.3,
	})
	require.NoError(t, err, "keyword side alone must serve the request")

	require.Len(t, results, 2)
	assert.Equal(t, "seg-a", results[0].SegmentID)
}

func TestSearchDegradesWhenKeywordFails(t *testing.T) {
	vectors := &fakeVectors{results: []*milvus.SearchResult{semResult("seg-a", 0.9)}}
	segments := &fakeSegments{err: fmt.Errorf("postgres unreachable")}

	e := newTestEngine(vectors, segments, &fakeQueryEmbedder{})

	results, err := e.Search(context.Background(), &Request{
		Query: "grace", Limit: 10, SemanticWeight: 0.7, KeywordWeight: 0.3,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "seg-a", results[0].SegmentID)
}

func TestSearchFailsWhenBothSubSearchesFail(t *testing.T) {
	vectors := &fakeVectors{err: fmt.Errorf("milvus unreachable")}
	segments := &fakeSegments{err: fmt.Errorf("postgres unreachable")}

	e := newTestEngine(vectors, segments, &fakeQueryEmbedder{})

	_, err := e.Search(context.Background(), &Request{
		Query: "grace", Limit: 10, SemanticWeight: 0.5, KeywordWeight: 0.5,
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeSearchFailed, apperrors.AsAppError(err).Code)
}

func TestSearchTieBrokenBySemanticRank(t *testing.T) {
	// seg-a: semantic rank 0 only; seg-b: keyword rank 0 only. With equal
	// weights both fuse to 0.5; the semantic-side candidate must win.
	vectors := &fakeVectors{results: []*milvus.SearchResult{semResult("seg-a", 0.9)}}
	segments := &fakeSegments{matches: []*repository.KeywordMatch{kwMatch("seg-b", 0.9)}}

	e := newTestEngine(vectors, segments, &fakeQueryEmbedder{})

	results, err := e.Search(context.Background(), &Request{
		Query: "grace", Limit: 10, SemanticWeight: 0.5, KeywordWeight: 0.5,
	})
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "seg-a", results[0].SegmentID)
	assert.Equal(t, "seg-b", results[1].SegmentID)
}

func TestSearchTruncatesToLimit(t *testing.T) {
	var sems []*milvus.SearchResult
	for i := 0; i < 8; i++ {
		sems = append(sems, semResult(fmt.Sprintf("seg-%d", i), float32(0.9)-float32(i)*0.05))
	}
	vectors := &fakeVectors{results: sems}

	e := newTestEngine(vectors, &fakeSegments{}, &fakeQueryEmbedder{})

	results, err := e.Search(context.Background(), &Request{
		Query: "grace", Limit: 3, SemanticWeight: 1, KeywordWeight: 0,
	})
	require.NoError(t, err)
	assert.Len(t, results, 3)
	assert.Equal(t, "seg-0", results[0].SegmentID)
}

func TestSearchBreakdownAlwaysEmitted(t *testing.T) {
	vectors := &fakeVectors{results: []*milvus.SearchResult{semResult("seg-a", 0.9)}}

	e := newTestEngine(vectors, &fakeSegments{}, &fakeQueryEmbedder{})

	results, err := e.Search(context.Background(), &Request{
		Query: "grace", Limit: 5, SemanticWeight: 1, KeywordWeight: 0,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)

	b := results[0].Breakdown
	assert.Equal(t, 1.0, b.SemanticRankScore)
	assert.Zero(t, b.KeywordRankScore)
	assert.InDelta(t, 1.0, b.Fused, 1e-9)
	assert.Positive(t, b.Factors.Enhanced)
	assert.Equal(t, b.Factors.Enhanced, results[0].Score)
}

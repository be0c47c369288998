package linking

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sermon-search-api/internal/config"
	"sermon-search-api/internal/domain/entity"
	"sermon-search-api/internal/domain/repository"
	"sermon-search-api/internal/domain/scripture"
	"sermon-search-api/internal/infrastructure/persistence/milvus"
)

type fakeSegmentRepo struct {
	segments map[string]*entity.Segment
	bySeries []*entity.Segment
}

func newFakeSegmentRepo(segs ...*entity.Segment) *fakeSegmentRepo {
	r := &fakeSegmentRepo{segments: make(map[string]*entity.Segment)}
	for _, s := range segs {
		r.segments[s.ID] = s
		r.bySeries = append(r.bySeries, s)
	}
	return r
}

func (r *fakeSegmentRepo) CreateBatch(ctx context.Context, segs []*entity.Segment) error { return nil }

func (r *fakeSegmentRepo) GetByID(ctx context.Context, id string) (*entity.Segment, error) {
	return r.segments[id], nil
}

func (r *fakeSegmentRepo) GetByIDs(ctx context.Context, ids []string) ([]*entity.Segment, error) {
	return nil, nil
}

func (r *fakeSegmentRepo) ListBySermon(ctx context.Context, sermonID string) ([]*entity.Segment, error) {
	return nil, nil
}

func (r *fakeSegmentRepo) ListBySeries(ctx context.Context, seriesID string, p repository.Pagination) (*repository.PagedResult[*entity.Segment], error) {
	start := p.Offset()
	if start >= len(r.bySeries) {
		return repository.NewPagedResult[*entity.Segment](nil, int64(len(r.bySeries)), p), nil
	}
	end := start + p.Limit()
	if end > len(r.bySeries) {
		end = len(r.bySeries)
	}
	return repository.NewPagedResult(r.bySeries[start:end], int64(len(r.bySeries)), p), nil
}

func (r *fakeSegmentRepo) DeleteBySermon(ctx context.Context, sermonID string) error { return nil }

func (r *fakeSegmentRepo) CountBySermon(ctx context.Context, sermonID string) (int64, error) {
	return 0, nil
}

func (r *fakeSegmentRepo) SearchKeyword(ctx context.Context, query string, filter *repository.SegmentFilter, limit int) ([]*repository.KeywordMatch, error) {
	return nil, nil
}

type fakeLinkRepo struct {
	links map[string]*entity.SegmentLink // keyed by source:related
}

func newFakeLinkRepo() *fakeLinkRepo {
	return &fakeLinkRepo{links: make(map[string]*entity.SegmentLink)}
}

func (r *fakeLinkRepo) Upsert(ctx context.Context, link *entity.SegmentLink) error {
	key := link.SourceSegmentID + ":" + link.RelatedSegmentID
	if _, exists := r.links[key]; exists {
		return nil // duplicate pair is a no-op
	}
	r.links[key] = link
	return nil
}

func (r *fakeLinkRepo) ListBySource(ctx context.Context, sourceSegmentID string) ([]*entity.SegmentLink, error) {
	var out []*entity.SegmentLink
	for _, l := range r.links {
		if l.SourceSegmentID == sourceSegmentID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r *fakeLinkRepo) DeleteBySource(ctx context.Context, sourceSegmentID string) error {
	for k, l := range r.links {
		if l.SourceSegmentID == sourceSegmentID {
			delete(r.links, k)
		}
	}
	return nil
}

type fakeVectors struct {
	vectors   map[string][]float32
	neighbors []*milvus.SearchResult
	err       error
}

func (f *fakeVectors) GetSegmentVector(ctx context.Context, segmentID string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vectors[segmentID], nil
}

func (f *fakeVectors) SearchSegments(ctx context.Context, params *milvus.SearchParams) ([]*milvus.SearchResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.neighbors, nil
}

func neighbor(id, sermonID string, score float32, text string) *milvus.SearchResult {
	return &milvus.SearchResult{
		ID:       id,
		SermonID: sermonID,
		SeriesID: "series-1",
		Score:    score,
		Text:     text,
	}
}

func newTestLinker(segments *fakeSegmentRepo, links *fakeLinkRepo, vectors VectorSearcher) *Linker {
	rules := NewRules("en", scripture.NewRuleset("en"))
	return NewLinker(segments, links, vectors, rules, config.LinkerConfig{
		TopK: 5, MinConfidence: 0.7, MaxConfidence: 0.85, BatchSize: 2,
	})
}

func sourceSegment() *entity.Segment {
	return &entity.Segment{
		ID:       "seg-src",
		SermonID: "sermon-1",
		SeriesID: "series-1",
		Text:     "Paul writes about grace in Romans 5:1",
	}
}

func TestGenerateLinksSkipsSameSermonAndSelf(t *testing.T) {
	segments := newFakeSegmentRepo(sourceSegment())
	links := newFakeLinkRepo()
	vectors := &fakeVectors{
		vectors: map[string][]float32{"seg-src": {0.1, 0.2}},
		neighbors: []*milvus.SearchResult{
			neighbor("seg-src", "sermon-1", 0.99, "self"),
			neighbor("seg-same", "sermon-1", 0.95, "same sermon"),
			neighbor("seg-other", "sermon-2", 0.90, "grace abounds"),
		},
	}

	l := newTestLinker(segments, links, vectors)

	created, err := l.GenerateLinks(context.Background(), "seg-src", 0.5, 5)
	require.NoError(t, err)

	require.Len(t, created, 1)
	assert.Equal(t, "seg-other", created[0].RelatedSegmentID)
}

func TestGenerateLinksRespectsMinSimilarityAndMaxLinks(t *testing.T) {
	segments := newFakeSegmentRepo(sourceSegment())
	links := newFakeLinkRepo()
	vectors := &fakeVectors{
		vectors: map[string][]float32{"seg-src": {0.1, 0.2}},
		neighbors: []*milvus.SearchResult{
			neighbor("seg-1", "sermon-2", 0.95, "a"),
			neighbor("seg-2", "sermon-3", 0.90, "b"),
			neighbor("seg-3", "sermon-4", 0.85, "c"),
			neighbor("seg-4", "sermon-5", 0.40, "below threshold"),
		},
	}

	l := newTestLinker(segments, links, vectors)

	created, err := l.GenerateLinks(context.Background(), "seg-src", 0.5, 2)
	require.NoError(t, err)

	require.Len(t, created, 2)
	assert.Equal(t, "seg-1", created[0].RelatedSegmentID)
	assert.Equal(t, "seg-2", created[1].RelatedSegmentID)
}

func TestGenerateLinksMissingSegmentIsEmptyNotError(t *testing.T) {
	l := newTestLinker(newFakeSegmentRepo(), newFakeLinkRepo(), &fakeVectors{})

	created, err := l.GenerateLinks(context.Background(), "missing", 0.5, 5)
	require.NoError(t, err)
	assert.Empty(t, created)
}

func TestGenerateLinksUnindexedSegmentIsEmptyNotError(t *testing.T) {
	segments := newFakeSegmentRepo(sourceSegment())
	vectors := &fakeVectors{vectors: map[string][]float32{}}

	l := newTestLinker(segments, newFakeLinkRepo(), vectors)

	created, err := l.GenerateLinks(context.Background(), "seg-src", 0.5, 5)
	require.NoError(t, err)
	assert.Empty(t, created)
}

func TestGenerateLinksIdempotent(t *testing.T) {
	segments := newFakeSegmentRepo(sourceSegment())
	links := newFakeLinkRepo()
	vectors := &fakeVectors{
		vectors: map[string][]float32{"seg-src": {0.1, 0.2}},
		neighbors: []*milvus.SearchResult{
			neighbor("seg-other", "sermon-2", 0.90, "grace abounds"),
		},
	}

	l := newTestLinker(segments, links, vectors)

	_, err := l.GenerateLinks(context.Background(), "seg-src", 0.5, 5)
	require.NoError(t, err)
	_, err = l.GenerateLinks(context.Background(), "seg-src", 0.5, 5)
	require.NoError(t, err)

	stored, _ := links.ListBySource(context.Background(), "seg-src")
	assert.Len(t, stored, 1, "duplicate generation must not create duplicate pairs")
}

func TestClassifyMarkers(t *testing.T) {
	rules := NewRules("en", scripture.NewRuleset("en"))
	source := "God's grace is sufficient, as Romans 5:1 teaches"

	cases := []struct {
		text     string
		wantType entity.LinkType
		wantConf float64
	}{
		{"however, some read this passage differently", entity.LinkTypeContrastingView, 0.75},
		{"for example, think about the prodigal son", entity.LinkTypeExample, 0.80},
		{"in other words, peace comes through faith", entity.LinkTypeElaboration, 0.75},
		{"Romans 5:8 shows the same truth", entity.LinkTypeSameTopic, 0.85},
		{"grace changes how we live daily", entity.LinkTypeSameTopic, 0.70},
	}

	for _, tc := range cases {
		linkType, conf := rules.Classify(source, tc.text)
		assert.Equal(t, tc.wantType, linkType, "text: %s", tc.text)
		assert.InDelta(t, tc.wantConf, conf, 1e-9, "text: %s", tc.text)
		assert.GreaterOrEqual(t, conf, 0.70)
		assert.LessOrEqual(t, conf, 0.85)
	}
}

func TestClassifyPortugueseMarkers(t *testing.T) {
	rules := NewRules("pt-BR", scripture.NewRuleset("pt-BR"))
	source := "a graça de Deus em Romanos 5:1"

	linkType, conf := rules.Classify(source, "por outro lado, há quem leia diferente")
	assert.Equal(t, entity.LinkTypeContrastingView, linkType)
	assert.Equal(t, 0.75, conf)

	linkType, conf = rules.Classify(source, "por exemplo, o filho pródigo")
	assert.Equal(t, entity.LinkTypeExample, linkType)
	assert.Equal(t, 0.80, conf)
}

func TestGenerateForSeriesToleratesFailures(t *testing.T) {
	segA := &entity.Segment{ID: "seg-a", SermonID: "sermon-1", SeriesID: "series-1", Text: "a"}
	segB := &entity.Segment{ID: "seg-b", SermonID: "sermon-2", SeriesID: "series-1", Text: "b"}
	segC := &entity.Segment{ID: "seg-c", SermonID: "sermon-3", SeriesID: "series-1", Text: "c"}
	segments := newFakeSegmentRepo(segA, segB, segC)
	links := newFakeLinkRepo()

	vectors := &failOnceVectors{
		fakeVectors: fakeVectors{
			vectors: map[string][]float32{
				"seg-a": {0.1}, "seg-b": {0.2}, "seg-c": {0.3},
			},
			neighbors: []*milvus.SearchResult{
				neighbor("seg-x", "sermon-9", 0.9, "related"),
			},
		},
		failFor: "seg-b",
	}

	l := newTestLinker(segments, links, vectors)

	result, err := l.GenerateForSeries(context.Background(), "series-1", 0.5, 5)
	require.NoError(t, err, "a single segment failure must not abort the batch")

	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 2, result.LinksCreated)
}

type failOnceVectors struct {
	fakeVectors
	failFor string
}

func (f *failOnceVectors) GetSegmentVector(ctx context.Context, segmentID string) ([]float32, error) {
	if segmentID == f.failFor {
		return nil, fmt.Errorf("vector store timeout")
	}
	return f.fakeVectors.GetSegmentVector(ctx, segmentID)
}

func TestRegenerateLinksReplacesExisting(t *testing.T) {
	segments := newFakeSegmentRepo(sourceSegment())
	links := newFakeLinkRepo()
	vectors := &fakeVectors{
		vectors: map[string][]float32{"seg-src": {0.1}},
		neighbors: []*milvus.SearchResult{
			neighbor("seg-new", "sermon-2", 0.9, "fresh neighbor"),
		},
	}

	l := newTestLinker(segments, links, vectors)

	links.links["seg-src:seg-old"] = &entity.SegmentLink{
		SourceSegmentID: "seg-src", RelatedSegmentID: "seg-old",
	}

	created, err := l.RegenerateLinks(context.Background(), "seg-src", 0.5, 5)
	require.NoError(t, err)
	require.Len(t, created, 1)

	stored, _ := links.ListBySource(context.Background(), "seg-src")
	require.Len(t, stored, 1)
	assert.Equal(t, "seg-new", stored[0].RelatedSegmentID)
}

package summary

import (
	"context"
	"math"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sermon-search-api/internal/domain/entity"
	"sermon-search-api/internal/domain/repository"
	"sermon-search-api/internal/infrastructure/llm"
	"sermon-search-api/internal/infrastructure/persistence/milvus"
	apperrors "sermon-search-api/pkg/errors"
)

type fakeSermonRepo struct {
	sermons map[string]*entity.Sermon
}

func (r *fakeSermonRepo) Create(ctx context.Context, s *entity.Sermon) error { return nil }
func (r *fakeSermonRepo) GetByID(ctx context.Context, id string) (*entity.Sermon, error) {
	return r.sermons[id], nil
}
func (r *fakeSermonRepo) Update(ctx context.Context, s *entity.Sermon) error          { return nil }
func (r *fakeSermonRepo) UpdateTextHash(ctx context.Context, id, hash string) error   { return nil }
func (r *fakeSermonRepo) Delete(ctx context.Context, id string) error                 { return nil }
func (r *fakeSermonRepo) ListBySeries(ctx context.Context, seriesID string, f *repository.SermonFilter, p repository.Pagination) (*repository.PagedResult[*entity.Sermon], error) {
	var items []*entity.Sermon
	for _, s := range r.sermons {
		if s.SeriesID == seriesID {
			items = append(items, s)
		}
	}
	return repository.NewPagedResult(items, int64(len(items)), p), nil
}

type fakeSegmentRepo struct {
	bySermon map[string][]*entity.Segment
}

func (r *fakeSegmentRepo) CreateBatch(ctx context.Context, segs []*entity.Segment) error { return nil }
func (r *fakeSegmentRepo) GetByID(ctx context.Context, id string) (*entity.Segment, error) {
	return nil, nil
}
func (r *fakeSegmentRepo) GetByIDs(ctx context.Context, ids []string) ([]*entity.Segment, error) {
	return nil, nil
}
func (r *fakeSegmentRepo) ListBySermon(ctx context.Context, sermonID string) ([]*entity.Segment, error) {
	return r.bySermon[sermonID], nil
}
func (r *fakeSegmentRepo) ListBySeries(ctx context.Context, seriesID string, p repository.Pagination) (*repository.PagedResult[*entity.Segment], error) {
	return repository.NewPagedResult[*entity.Segment](nil, 0, p), nil
}
func (r *fakeSegmentRepo) DeleteBySermon(ctx context.Context, sermonID string) error { return nil }
func (r *fakeSegmentRepo) CountBySermon(ctx context.Context, sermonID string) (int64, error) {
	return 0, nil
}
func (r *fakeSegmentRepo) SearchKeyword(ctx context.Context, q string, f *repository.SegmentFilter, l int) ([]*repository.KeywordMatch, error) {
	return nil, nil
}

type fakeSummaryRepo struct {
	sermonSummaries map[string]*entity.SermonSummary
	seriesSummaries map[string]*entity.SeriesSummary
}

func newFakeSummaryRepo() *fakeSummaryRepo {
	return &fakeSummaryRepo{
		sermonSummaries: make(map[string]*entity.SermonSummary),
		seriesSummaries: make(map[string]*entity.SeriesSummary),
	}
}

func (r *fakeSummaryRepo) UpsertSermonSummary(ctx context.Context, s *entity.SermonSummary) error {
	r.sermonSummaries[s.SermonID] = s
	return nil
}
func (r *fakeSummaryRepo) GetSermonSummary(ctx context.Context, sermonID string) (*entity.SermonSummary, error) {
	return r.sermonSummaries[sermonID], nil
}
func (r *fakeSummaryRepo) UpsertSeriesSummary(ctx context.Context, s *entity.SeriesSummary) error {
	r.seriesSummaries[s.SeriesID] = s
	return nil
}
func (r *fakeSummaryRepo) GetSeriesSummary(ctx context.Context, seriesID string) (*entity.SeriesSummary, error) {
	return r.seriesSummaries[seriesID], nil
}

type fakeVectorReader struct {
	vectors  map[string][]float32
	upserted []*milvus.SummaryVector
}

func (f *fakeVectorReader) GetSegmentVector(ctx context.Context, segmentID string) ([]float32, error) {
	return f.vectors[segmentID], nil
}

func (f *fakeVectorReader) UpsertSummary(ctx context.Context, s *milvus.SummaryVector) error {
	f.upserted = append(f.upserted, s)
	return nil
}

type fakeGenerator struct {
	response string
	err      error
	calls    int
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string, opts llm.GenerateOptions) (*llm.GenerateResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &llm.GenerateResult{Text: f.response, Backend: "primary"}, nil
}

func testService() (*Service, *fakeSummaryRepo, *fakeVectorReader, *fakeGenerator) {
	sermons := &fakeSermonRepo{sermons: map[string]*entity.Sermon{
		"sermon-1": {ID: "sermon-1", SeriesID: "series-1", Title: "On Grace", Speaker: "Ana", FullText: "full text"},
	}}
	segments := &fakeSegmentRepo{bySermon: map[string][]*entity.Segment{
		"sermon-1": {
			{ID: "seg-a", SermonID: "sermon-1"},
			{ID: "seg-b", SermonID: "sermon-1"},
		},
	}}
	summaries := newFakeSummaryRepo()
	vectors := &fakeVectorReader{vectors: map[string][]float32{
		"seg-a": {1, 0, 0, 0},
		"seg-b": {0, 1, 0, 0},
	}}
	generator := &fakeGenerator{response: "A sermon about grace.\nTopics: grace, faith, justification"}

	return NewService(sermons, segments, summaries, vectors, generator), summaries, vectors, generator
}

func TestGenerateSermonSummary(t *testing.T) {
	svc, summaries, vectors, _ := testService()

	out, err := svc.GenerateSermonSummary(context.Background(), "sermon-1")
	require.NoError(t, err)

	assert.Equal(t, "A sermon about grace.", out.Summary)
	assert.Equal(t, []string{"grace", "faith", "justification"}, out.Topics)

	stored := summaries.sermonSummaries["sermon-1"]
	require.NotNil(t, stored)
	assert.Equal(t, "series-1", stored.SeriesID)

	require.Len(t, vectors.upserted, 1)
	assert.Equal(t, "sermon:sermon-1", vectors.upserted[0].ID)
	assert.Equal(t, milvus.SummaryLevelSermon, vectors.upserted[0].Level)
}

func TestGenerateSermonSummaryEmbeddingIsNormalizedMean(t *testing.T) {
	svc, _, vectors, _ := testService()

	out, err := svc.GenerateSermonSummary(context.Background(), "sermon-1")
	require.NoError(t, err)

	// Mean of (1,0,0,0) and (0,1,0,0) is (.5,.5,0,0); normalized to unit
	// length both non-zero components are 1/sqrt(2).
	require.Len(t, out.Embedding, 4)
	want := float32(1 / math.Sqrt(2))
	assert.InDelta(t, want, out.Embedding[0], 1e-6)
	assert.InDelta(t, want, out.Embedding[1], 1e-6)
	assert.Zero(t, out.Embedding[2])

	var norm float64
	for _, v := range out.Embedding {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, norm, 1e-6)
	assert.Equal(t, out.Embedding, vectors.upserted[0].Vector)
}

func TestGenerateSermonSummaryNotFound(t *testing.T) {
	svc, _, _, _ := testService()

	_, err := svc.GenerateSermonSummary(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeSermonNotFound, apperrors.AsAppError(err).Code)
}

func TestGenerateSermonSummaryWithoutSegmentsFails(t *testing.T) {
	svc, _, _, _ := testService()
	sermons := &fakeSermonRepo{sermons: map[string]*entity.Sermon{
		"sermon-2": {ID: "sermon-2", SeriesID: "series-1", FullText: "text"},
	}}
	svc.sermons = sermons
	svc.segments = &fakeSegmentRepo{bySermon: map[string][]*entity.Segment{}}

	_, err := svc.GenerateSermonSummary(context.Background(), "sermon-2")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeIndexingFailed, apperrors.AsAppError(err).Code)
}

func TestGenerateSeriesSummaryReusesExistingSermonSummaries(t *testing.T) {
	svc, summaries, vectors, generator := testService()

	summaries.sermonSummaries["sermon-1"] = &entity.SermonSummary{
		SermonID:  "sermon-1",
		SeriesID:  "series-1",
		Summary:   "cached summary",
		Embedding: []float32{0, 0, 1, 0},
	}

	out, err := svc.GenerateSeriesSummary(context.Background(), "series-1")
	require.NoError(t, err)

	assert.Equal(t, "A sermon about grace.", out.Summary)
	assert.Equal(t, 1, generator.calls, "only the series text is generated")

	stored := summaries.seriesSummaries["series-1"]
	require.NotNil(t, stored)

	var found bool
	for _, up := range vectors.upserted {
		if up.ID == "series:series-1" {
			found = true
			assert.Equal(t, milvus.SummaryLevelSeries, up.Level)
		}
	}
	assert.True(t, found)
}

func TestParseSummaryResponse(t *testing.T) {
	body, topics := parseSummaryResponse("Line one.\nLine two.\nTopics: a, b , ,c")
	assert.Equal(t, "Line one.\nLine two.", body)
	assert.Equal(t, []string{"a", "b", "c"}, topics)

	body, topics = parseSummaryResponse("Just a summary without topics")
	assert.Equal(t, "Just a summary without topics", body)
	assert.Empty(t, topics)

	body, topics = parseSummaryResponse("Resumo.\nTópicos: graça, fé")
	assert.Equal(t, "Resumo.", body)
	assert.Equal(t, []string{"graça", "fé"}, topics)
}

func TestTruncateToRuneBoundary(t *testing.T) {
	assert.Equal(t, "curto", truncateToRuneBoundary("curto", 100))

	// "ção" is multi-byte; a cut landing mid-rune must back up.
	s := "pregação"
	for max := 1; max < len(s); max++ {
		out := truncateToRuneBoundary(s, max)
		assert.True(t, utf8.ValidString(out), "cut at %d produced invalid UTF-8", max)
		assert.LessOrEqual(t, len(out), max)
	}

	// Accented transcripts stay valid through the prompt builder.
	sermon := &entity.Sermon{
		Title:    "A Graça",
		Speaker:  "Ana",
		FullText: strings.Repeat("salvação e redenção ", maxPromptChars),
	}
	assert.True(t, utf8.ValidString(sermonPrompt(sermon)))
}

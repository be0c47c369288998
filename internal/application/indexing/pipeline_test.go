package indexing

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sermon-search-api/internal/application/segmenter"
	"sermon-search-api/internal/domain/entity"
	"sermon-search-api/internal/domain/repository"
	"sermon-search-api/internal/infrastructure/persistence/milvus"
	apperrors "sermon-search-api/pkg/errors"
)

type fakeSermonRepo struct {
	mu      sync.Mutex
	sermons map[string]*entity.Sermon
}

func newFakeSermonRepo(sermons ...*entity.Sermon) *fakeSermonRepo {
	r := &fakeSermonRepo{sermons: make(map[string]*entity.Sermon)}
	for _, s := range sermons {
		r.sermons[s.ID] = s
	}
	return r
}

func (r *fakeSermonRepo) Create(ctx context.Context, s *entity.Sermon) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sermons[s.ID] = s
	return nil
}

func (r *fakeSermonRepo) GetByID(ctx context.Context, id string) (*entity.Sermon, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sermons[id], nil
}

func (r *fakeSermonRepo) Update(ctx context.Context, s *entity.Sermon) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sermons[s.ID] = s
	return nil
}

func (r *fakeSermonRepo) UpdateTextHash(ctx context.Context, id, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sermons[id]; ok {
		s.TextHash = hash
	}
	return nil
}

func (r *fakeSermonRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sermons, id)
	return nil
}

func (r *fakeSermonRepo) ListBySeries(ctx context.Context, seriesID string, filter *repository.SermonFilter, p repository.Pagination) (*repository.PagedResult[*entity.Sermon], error) {
	return repository.NewPagedResult[*entity.Sermon](nil, 0, p), nil
}

type fakeSegmentRepo struct {
	mu       sync.Mutex
	segments map[string][]*entity.Segment // keyed by sermon id
	deletes  int
}

func newFakeSegmentRepo() *fakeSegmentRepo {
	return &fakeSegmentRepo{segments: make(map[string][]*entity.Segment)}
}

func (r *fakeSegmentRepo) CreateBatch(ctx context.Context, segs []*entity.Segment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range segs {
		r.segments[s.SermonID] = append(r.segments[s.SermonID], s)
	}
	return nil
}

func (r *fakeSegmentRepo) GetByID(ctx context.Context, id string) (*entity.Segment, error) {
	return nil, nil
}

func (r *fakeSegmentRepo) GetByIDs(ctx context.Context, ids []string) ([]*entity.Segment, error) {
	return nil, nil
}

func (r *fakeSegmentRepo) ListBySermon(ctx context.Context, sermonID string) ([]*entity.Segment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.segments[sermonID], nil
}

func (r *fakeSegmentRepo) ListBySeries(ctx context.Context, seriesID string, p repository.Pagination) (*repository.PagedResult[*entity.Segment], error) {
	return repository.NewPagedResult[*entity.Segment](nil, 0, p), nil
}

func (r *fakeSegmentRepo) DeleteBySermon(ctx context.Context, sermonID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deletes++
	delete(r.segments, sermonID)
	return nil
}

func (r *fakeSegmentRepo) CountBySermon(ctx context.Context, sermonID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.segments[sermonID])), nil
}

func (r *fakeSegmentRepo) SearchKeyword(ctx context.Context, query string, filter *repository.SegmentFilter, limit int) ([]*repository.KeywordMatch, error) {
	return nil, nil
}

type fakeTx struct{}

func (fakeTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeEmbedder struct {
	mu    sync.Mutex
	calls int
	fail  bool
	dim   int
}

func (e *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.fail {
		return nil, fmt.Errorf("embedding failed: quota exceeded")
	}
	dim := e.dim
	if dim == 0 {
		dim = 4
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, dim)
		out[i][0] = float32(i + 1)
	}
	return out, nil
}

type fakeVectorStore struct {
	mu       sync.Mutex
	rows     map[string][]*milvus.SegmentVector
	deletes  int
	failNext bool
}

func newFakeVectorStore() *fakeVectorStore {
	return &fakeVectorStore{rows: make(map[string][]*milvus.SegmentVector)}
}

func (v *fakeVectorStore) InsertSegments(ctx context.Context, segs []*milvus.SegmentVector) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.failNext {
		v.failNext = false
		return fmt.Errorf("milvus insert failed")
	}
	for _, s := range segs {
		v.rows[s.SermonID] = append(v.rows[s.SermonID], s)
	}
	return nil
}

func (v *fakeVectorStore) DeleteSegments(ctx context.Context, ids []string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.deletes++
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	for sermonID, rows := range v.rows {
		kept := rows[:0]
		for _, row := range rows {
			if !drop[row.ID] {
				kept = append(kept, row)
			}
		}
		v.rows[sermonID] = kept
	}
	return nil
}

func testTranscript(words int) string {
	parts := make([]string, words)
	for i := range parts {
		parts[i] = fmt.Sprintf("word%d", i)
		if i%20 == 19 {
			parts[i] += "."
		}
	}
	return strings.Join(parts, " ")
}

func newTestPipeline(t *testing.T, sermons *fakeSermonRepo, segs *fakeSegmentRepo, vectors *fakeVectorStore, embedder *fakeEmbedder) *Pipeline {
	t.Helper()
	chunker, err := segmenter.New(segmenter.Config{TargetWords: 250, MinWords: 150, MaxWords: 350})
	require.NoError(t, err)
	return NewPipeline(sermons, segs, fakeTx{}, vectors, embedder, chunker, nil)
}

func TestGenerateEmbeddingsFirstRun(t *testing.T) {
	sermon := &entity.Sermon{
		ID:          "sermon-1",
		SeriesID:    "series-1",
		Speaker:     "John Piper",
		FullText:    testTranscript(600),
		DurationSec: 1800,
	}
	sermons := newFakeSermonRepo(sermon)
	segs := newFakeSegmentRepo()
	vectors := newFakeVectorStore()
	embedder := &fakeEmbedder{}

	p := newTestPipeline(t, sermons, segs, vectors, embedder)

	result, err := p.GenerateEmbeddings(context.Background(), "sermon-1", false, segmenter.ModeNone)
	require.NoError(t, err)

	assert.Equal(t, StatusRegenerated, result.Status)
	assert.Greater(t, result.SegmentCount, 1)
	assert.Equal(t, entity.HashText(sermon.FullText), sermon.TextHash)

	stored, _ := segs.ListBySermon(context.Background(), "sermon-1")
	require.Len(t, stored, result.SegmentCount)
	assert.Len(t, vectors.rows["sermon-1"], result.SegmentCount)

	// Postgres rows and vector rows must share ids.
	assert.Equal(t, stored[0].ID, vectors.rows["sermon-1"][0].ID)
}

func TestGenerateEmbeddingsCacheHit(t *testing.T) {
	sermon := &entity.Sermon{
		ID:       "sermon-1",
		SeriesID: "series-1",
		FullText: testTranscript(600),
	}
	sermons := newFakeSermonRepo(sermon)
	segs := newFakeSegmentRepo()
	vectors := newFakeVectorStore()
	embedder := &fakeEmbedder{}

	p := newTestPipeline(t, sermons, segs, vectors, embedder)

	first, err := p.GenerateEmbeddings(context.Background(), "sermon-1", false, segmenter.ModeNone)
	require.NoError(t, err)
	require.Equal(t, StatusRegenerated, first.Status)

	second, err := p.GenerateEmbeddings(context.Background(), "sermon-1", false, segmenter.ModeNone)
	require.NoError(t, err)

	assert.Equal(t, StatusCacheHit, second.Status)
	assert.Equal(t, first.SegmentCount, second.SegmentCount)
	assert.Equal(t, 1, embedder.calls, "unchanged text must not re-embed")
}

func TestGenerateEmbeddingsForceBypassesHashGate(t *testing.T) {
	sermon := &entity.Sermon{
		ID:       "sermon-1",
		SeriesID: "series-1",
		FullText: testTranscript(600),
	}
	sermons := newFakeSermonRepo(sermon)
	segs := newFakeSegmentRepo()
	vectors := newFakeVectorStore()
	embedder := &fakeEmbedder{}

	p := newTestPipeline(t, sermons, segs, vectors, embedder)

	_, err := p.GenerateEmbeddings(context.Background(), "sermon-1", false, segmenter.ModeNone)
	require.NoError(t, err)

	result, err := p.GenerateEmbeddings(context.Background(), "sermon-1", true, segmenter.ModeNone)
	require.NoError(t, err)

	assert.Equal(t, StatusRegenerated, result.Status)
	assert.Equal(t, 2, embedder.calls)
}

func TestGenerateEmbeddingsTextChangeRegenerates(t *testing.T) {
	sermon := &entity.Sermon{
		ID:       "sermon-1",
		SeriesID: "series-1",
		FullText: testTranscript(600),
	}
	sermons := newFakeSermonRepo(sermon)
	segs := newFakeSegmentRepo()
	vectors := newFakeVectorStore()
	embedder := &fakeEmbedder{}

	p := newTestPipeline(t, sermons, segs, vectors, embedder)

	_, err := p.GenerateEmbeddings(context.Background(), "sermon-1", false, segmenter.ModeNone)
	require.NoError(t, err)

	sermon.FullText = testTranscript(700)

	result, err := p.GenerateEmbeddings(context.Background(), "sermon-1", false, segmenter.ModeNone)
	require.NoError(t, err)

	assert.Equal(t, StatusRegenerated, result.Status)
	assert.Equal(t, 2, embedder.calls)
	assert.Equal(t, entity.HashText(sermon.FullText), sermon.TextHash)
}

func TestGenerateEmbeddingsSermonNotFound(t *testing.T) {
	p := newTestPipeline(t, newFakeSermonRepo(), newFakeSegmentRepo(), newFakeVectorStore(), &fakeEmbedder{})

	_, err := p.GenerateEmbeddings(context.Background(), "missing", false, segmenter.ModeNone)
	require.Error(t, err)

	appErr := apperrors.AsAppError(err)
	assert.Equal(t, apperrors.CodeSermonNotFound, appErr.Code)
}

func TestGenerateEmbeddingsEmbedFailureLeavesOldIndex(t *testing.T) {
	sermon := &entity.Sermon{
		ID:       "sermon-1",
		SeriesID: "series-1",
		FullText: testTranscript(600),
	}
	sermons := newFakeSermonRepo(sermon)
	segs := newFakeSegmentRepo()
	vectors := newFakeVectorStore()
	embedder := &fakeEmbedder{}

	p := newTestPipeline(t, sermons, segs, vectors, embedder)

	_, err := p.GenerateEmbeddings(context.Background(), "sermon-1", false, segmenter.ModeNone)
	require.NoError(t, err)

	before, _ := segs.CountBySermon(context.Background(), "sermon-1")
	require.Positive(t, before)

	embedder.fail = true
	sermon.FullText = testTranscript(700)

	_, err = p.GenerateEmbeddings(context.Background(), "sermon-1", false, segmenter.ModeNone)
	require.Error(t, err)

	// The old segments and vectors must survive a failed run.
	after, _ := segs.CountBySermon(context.Background(), "sermon-1")
	assert.Equal(t, before, after)
	assert.NotEmpty(t, vectors.rows["sermon-1"])
}

func TestGenerateEmbeddingsVectorWriteFailureKeepsOldIndexServing(t *testing.T) {
	sermon := &entity.Sermon{
		ID:       "sermon-1",
		SeriesID: "series-1",
		FullText: testTranscript(600),
	}
	sermons := newFakeSermonRepo(sermon)
	segs := newFakeSegmentRepo()
	vectors := newFakeVectorStore()
	embedder := &fakeEmbedder{}

	p := newTestPipeline(t, sermons, segs, vectors, embedder)

	_, err := p.GenerateEmbeddings(context.Background(), "sermon-1", false, segmenter.ModeNone)
	require.NoError(t, err)

	prevHash := sermon.TextHash
	segsBefore, _ := segs.CountBySermon(context.Background(), "sermon-1")
	vectorsBefore := len(vectors.rows["sermon-1"])
	require.Positive(t, vectorsBefore)

	sermon.FullText = testTranscript(700)
	vectors.failNext = true

	_, err = p.GenerateEmbeddings(context.Background(), "sermon-1", false, segmenter.ModeNone)
	require.Error(t, err)

	// The failed write must not latch the new hash or touch either store.
	assert.Equal(t, prevHash, sermon.TextHash)
	segsAfter, _ := segs.CountBySermon(context.Background(), "sermon-1")
	assert.Equal(t, segsBefore, segsAfter)
	assert.Len(t, vectors.rows["sermon-1"], vectorsBefore)

	// A retry is a real regeneration, not a cache hit on the stale hash.
	result, err := p.GenerateEmbeddings(context.Background(), "sermon-1", false, segmenter.ModeNone)
	require.NoError(t, err)
	assert.Equal(t, StatusRegenerated, result.Status)
	assert.Equal(t, 3, embedder.calls)
	assert.Equal(t, entity.HashText(sermon.FullText), sermon.TextHash)
	assert.Len(t, vectors.rows["sermon-1"], result.SegmentCount)
}

func TestGenerateEmbeddingsEmptyTranscript(t *testing.T) {
	sermon := &entity.Sermon{ID: "sermon-1", SeriesID: "series-1", FullText: "   "}
	p := newTestPipeline(t, newFakeSermonRepo(sermon), newFakeSegmentRepo(), newFakeVectorStore(), &fakeEmbedder{})

	_, err := p.GenerateEmbeddings(context.Background(), "sermon-1", false, segmenter.ModeNone)
	require.Error(t, err)

	appErr := apperrors.AsAppError(err)
	assert.Equal(t, apperrors.CodeIndexingFailed, appErr.Code)
}

func TestGenerateEmbeddingsTimestampInterpolation(t *testing.T) {
	sermon := &entity.Sermon{
		ID:          "sermon-1",
		SeriesID:    "series-1",
		FullText:    testTranscript(500),
		DurationSec: 1000,
	}
	sermons := newFakeSermonRepo(sermon)
	segs := newFakeSegmentRepo()

	p := newTestPipeline(t, sermons, segs, newFakeVectorStore(), &fakeEmbedder{})

	_, err := p.GenerateEmbeddings(context.Background(), "sermon-1", false, segmenter.ModeNone)
	require.NoError(t, err)

	stored, _ := segs.ListBySermon(context.Background(), "sermon-1")
	require.NotEmpty(t, stored)

	assert.Zero(t, stored[0].StartTimeSec)
	last := stored[len(stored)-1]
	assert.InDelta(t, 1000, last.EndTimeSec, 0.001)

	// Timestamps are proportional to word position and contiguous.
	for i, seg := range stored {
		want := 1000 * float64(seg.StartWord) / 500
		assert.InDelta(t, want, seg.StartTimeSec, 0.001)
		if i > 0 {
			assert.Equal(t, stored[i-1].EndTimeSec, seg.StartTimeSec)
		}
	}
}

func TestGenerateEmbeddingsConcurrentSameSermonSerialized(t *testing.T) {
	sermon := &entity.Sermon{
		ID:       "sermon-1",
		SeriesID: "series-1",
		FullText: testTranscript(600),
	}
	sermons := newFakeSermonRepo(sermon)
	segs := newFakeSegmentRepo()
	vectors := newFakeVectorStore()
	embedder := &fakeEmbedder{}

	p := newTestPipeline(t, sermons, segs, vectors, embedder)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.GenerateEmbeddings(context.Background(), "sermon-1", false, segmenter.ModeNone)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// Exactly one run should have embedded; the rest hit the hash gate.
	assert.Equal(t, 1, embedder.calls)

	first, err := p.GenerateEmbeddings(context.Background(), "sermon-1", false, segmenter.ModeNone)
	require.NoError(t, err)
	stored, _ := segs.ListBySermon(context.Background(), "sermon-1")
	assert.Len(t, stored, first.SegmentCount)
}

func TestTouchReplacesTranscript(t *testing.T) {
	sermon := &entity.Sermon{
		ID:       "sermon-1",
		SeriesID: "series-1",
		FullText: testTranscript(600),
	}
	sermons := newFakeSermonRepo(sermon)
	segs := newFakeSegmentRepo()

	p := newTestPipeline(t, sermons, segs, newFakeVectorStore(), &fakeEmbedder{})

	_, err := p.GenerateEmbeddings(context.Background(), "sermon-1", false, segmenter.ModeNone)
	require.NoError(t, err)

	result, err := p.Touch(context.Background(), "sermon-1", testTranscript(800), 2400)
	require.NoError(t, err)

	assert.Equal(t, StatusRegenerated, result.Status)
	assert.Equal(t, float64(2400), sermon.DurationSec)
	assert.False(t, sermon.UpdatedAt.IsZero())
}

package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"sermon-search-api/internal/config"
	apperrors "sermon-search-api/pkg/errors"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	calls int
	errs  []error
	text  string
}

func (f *fakeBackend) Generate(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	msg := schema.AssistantMessage(f.text, nil)
	msg.ResponseMeta = &schema.ResponseMeta{
		Usage: &schema.TokenUsage{PromptTokens: 10, CompletionTokens: 20},
	}
	return msg, nil
}

type fakeEmbedder struct {
	calls int
	err   error
	dim   int
}

func (f *fakeEmbedder) EmbedStrings(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = make([]float32, f.dim)
	}
	return out, nil
}

func quickRetry(attempts int) config.RetryConfig {
	return config.RetryConfig{
		MaxAttempts: attempts,
		Initial:     time.Millisecond,
		Max:         5 * time.Millisecond,
		Multiplier:  2.0,
	}
}

func newTestClient(t *testing.T, backends []NamedBackend, embedder Embedder, retry config.RetryConfig) *Client {
	t.Helper()
	c, err := NewClient(backends, embedder, NewSlidingWindow(0, 0, time.Minute), NewUsageTracker(), nil, retry, nil)
	require.NoError(t, err)
	return c
}

func TestGeneratePrimarySuccess(t *testing.T) {
	primary := &fakeBackend{text: "resposta"}
	c := newTestClient(t, []NamedBackend{{Name: "primary", Model: primary}}, nil, quickRetry(1))

	res, err := c.Generate(context.Background(), "pergunta", GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "resposta", res.Text)
	assert.Equal(t, "primary", res.Backend)
	assert.False(t, res.Fallback)
	assert.Equal(t, 10, res.PromptTokens)
	assert.Equal(t, 20, res.CompletionTokens)
}

func TestGenerateFailsOverOnQuotaError(t *testing.T) {
	primary := &fakeBackend{errs: []error{errors.New("429 too many requests: insufficient_quota")}}
	secondary := &fakeBackend{text: "do fallback"}
	c := newTestClient(t, []NamedBackend{
		{Name: "primary", Model: primary},
		{Name: "fallback", Model: secondary},
	}, nil, quickRetry(1))

	res, err := c.Generate(context.Background(), "pergunta", GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "fallback", res.Backend)
	assert.True(t, res.Fallback)

	snap := c.Usage()
	assert.Equal(t, int64(1), snap.FallbackCalls)
	assert.Equal(t, int64(1), snap.Backends["primary"].Failures)
	assert.Equal(t, int64(1), snap.Backends["fallback"].Calls)
}

func TestGenerateRetriesTransientThenSucceeds(t *testing.T) {
	primary := &fakeBackend{
		errs: []error{errors.New("503 service unavailable"), errors.New("request timeout")},
		text: "ok",
	}
	c := newTestClient(t, []NamedBackend{{Name: "primary", Model: primary}}, nil, quickRetry(3))

	res, err := c.Generate(context.Background(), "pergunta", GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Text)
	assert.Equal(t, 3, primary.calls)
	assert.False(t, res.Fallback)
}

func TestGenerateRetryBoundIsRespected(t *testing.T) {
	primary := &fakeBackend{errs: []error{
		errors.New("502 bad gateway"),
		errors.New("502 bad gateway"),
		errors.New("502 bad gateway"),
		errors.New("502 bad gateway"),
	}}
	c := newTestClient(t, []NamedBackend{{Name: "primary", Model: primary}}, nil, quickRetry(2))

	_, err := c.Generate(context.Background(), "pergunta", GenerateOptions{})
	require.Error(t, err)
	assert.Equal(t, 2, primary.calls)

	appErr := apperrors.AsAppError(err)
	assert.Equal(t, apperrors.CodeGenerationUnavailable, appErr.Code)
}

func TestGenerateNonTransientErrorDoesNotRetry(t *testing.T) {
	primary := &fakeBackend{errs: []error{errors.New("400 invalid request")}}
	c := newTestClient(t, []NamedBackend{{Name: "primary", Model: primary}}, nil, quickRetry(3))

	_, err := c.Generate(context.Background(), "pergunta", GenerateOptions{})
	require.Error(t, err)
	assert.Equal(t, 1, primary.calls)
}

func TestGenerateAllBackendsExhausted(t *testing.T) {
	primary := &fakeBackend{errs: []error{errors.New("insufficient_quota")}}
	secondary := &fakeBackend{errs: []error{errors.New("500 internal server error")}}
	c := newTestClient(t, []NamedBackend{
		{Name: "primary", Model: primary},
		{Name: "fallback", Model: secondary},
	}, nil, quickRetry(1))

	_, err := c.Generate(context.Background(), "pergunta", GenerateOptions{})
	require.Error(t, err)
	appErr := apperrors.AsAppError(err)
	assert.Equal(t, apperrors.CodeGenerationUnavailable, appErr.Code)
}

func TestGenerateEmptyPromptRejected(t *testing.T) {
	c := newTestClient(t, []NamedBackend{{Name: "primary", Model: &fakeBackend{}}}, nil, quickRetry(1))

	_, err := c.Generate(context.Background(), "", GenerateOptions{})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInvalidParam, apperrors.AsAppError(err).Code)
}

func TestEmbedReturnsVector(t *testing.T) {
	c := newTestClient(t, []NamedBackend{{Name: "primary", Model: &fakeBackend{}}},
		&fakeEmbedder{dim: 4}, quickRetry(1))

	vec, err := c.Embed(context.Background(), "texto")
	require.NoError(t, err)
	assert.Len(t, vec, 4)
}

func TestEmbedHasNoFallback(t *testing.T) {
	// Even with a healthy secondary generation backend, an embedding
	// failure must surface as the fatal embedding-unavailable condition.
	c := newTestClient(t, []NamedBackend{
		{Name: "primary", Model: &fakeBackend{}},
		{Name: "fallback", Model: &fakeBackend{text: "ok"}},
	}, &fakeEmbedder{err: errors.New("insufficient_quota")}, quickRetry(1))

	_, err := c.Embed(context.Background(), "texto")
	require.Error(t, err)
	appErr := apperrors.AsAppError(err)
	assert.Equal(t, apperrors.CodeEmbeddingUnavailable, appErr.Code)
	assert.Contains(t, appErr.Message, "quota")
}

func TestUsageSnapshotAndReset(t *testing.T) {
	primary := &fakeBackend{text: "ok"}
	c := newTestClient(t, []NamedBackend{{Name: "primary", Model: primary}}, nil, quickRetry(1))

	_, err := c.Generate(context.Background(), "pergunta", GenerateOptions{})
	require.NoError(t, err)

	snap := c.Usage()
	assert.Equal(t, int64(30), snap.TotalTokens)
	assert.Greater(t, snap.EstimatedCost, 0.0)

	c.ResetUsage()
	snap = c.Usage()
	assert.Zero(t, snap.TotalTokens)
	assert.Empty(t, snap.Backends)
}

func TestErrorClassification(t *testing.T) {
	assert.True(t, IsQuotaError(errors.New("Rate limit exceeded")))
	assert.True(t, IsQuotaError(errors.New("429 Too Many Requests")))
	assert.True(t, IsServerError(errors.New("503 Service Unavailable")))
	assert.True(t, IsTimeoutError(context.DeadlineExceeded))
	assert.True(t, IsTransientError(errors.New("request timeout")))
	assert.False(t, IsTransientError(errors.New("400 bad request")))
	assert.False(t, IsQuotaError(nil))
}

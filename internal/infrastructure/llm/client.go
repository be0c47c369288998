package llm

import (
	"context"
	"fmt"
	"time"

	"sermon-search-api/internal/config"
	"sermon-search-api/internal/domain/entity"
	"sermon-search-api/internal/domain/repository"
	apperrors "sermon-search-api/pkg/errors"
	"sermon-search-api/pkg/logger"
	"sermon-search-api/pkg/metrics"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("llm")

// ChatBackend is the slice of an eino chat model the client needs.
type ChatBackend interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// NamedBackend pairs a backend with its provider name for result tagging.
type NamedBackend struct {
	Name  string
	Model ChatBackend
}

// Embedder produces fixed-dimension vectors. Exactly one embedding
// backend exists; there is no embedding fallback.
type Embedder interface {
	EmbedStrings(ctx context.Context, texts []string) ([][]float32, error)
}

// GenerateOptions tunes a single generate call.
type GenerateOptions struct {
	MaxTokens   int
	Temperature float32
}

// GenerateResult is a generated text tagged with the backend that served it.
type GenerateResult struct {
	Text             string `json:"text"`
	Backend          string `json:"backend"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	Fallback         bool   `json:"fallback"`
}

// Client is the resilient generation client: sliding-window self-throttle,
// bounded retry with exponential backoff, and primary-to-secondary
// failover for text generation. Embedding has no fallback; its failure is
// fatal to the caller so "search degraded" and "search unusable" stay
// distinguishable.
type Client struct {
	backends  []NamedBackend
	embedder  Embedder
	limiter   *SlidingWindow
	usage     *UsageTracker
	usageRepo repository.LLMUsageRepository
	retry     config.RetryConfig
	modelName func(backend string) string
}

// NewClient assembles the client. usageRepo may be nil; usage events are
// then kept in memory only. modelName may be nil.
func NewClient(
	backends []NamedBackend,
	embedder Embedder,
	limiter *SlidingWindow,
	usage *UsageTracker,
	usageRepo repository.LLMUsageRepository,
	retry config.RetryConfig,
	modelName func(backend string) string,
) (*Client, error) {
	if len(backends) == 0 {
		return nil, fmt.Errorf("at least one generation backend is required")
	}
	if limiter == nil {
		return nil, fmt.Errorf("rate limiter is required")
	}
	if usage == nil {
		usage = NewUsageTracker()
	}
	if retry.MaxAttempts < 1 {
		retry.MaxAttempts = 1
	}
	if modelName == nil {
		modelName = func(string) string { return "" }
	}
	return &Client{
		backends:  backends,
		embedder:  embedder,
		limiter:   limiter,
		usage:     usage,
		usageRepo: usageRepo,
		retry:     retry,
		modelName: modelName,
	}, nil
}

// Generate produces text for a prompt, failing over to the secondary
// backend on quota or 5xx class errors.
func (c *Client) Generate(ctx context.Context, prompt string, opts GenerateOptions) (*GenerateResult, error) {
	if prompt == "" {
		return nil, apperrors.New(apperrors.CodeInvalidParam, "prompt must not be empty")
	}

	ctx, span := tracer.Start(ctx, "llm.Generate")
	defer span.End()

	estimated := estimateTokens(prompt) + opts.MaxTokens
	reservation, err := c.limiter.Acquire(ctx, estimated)
	if err != nil {
		return nil, fmt.Errorf("rate limit wait interrupted: %w", err)
	}

	messages := []*schema.Message{schema.UserMessage(prompt)}
	var callOpts []model.Option
	if opts.MaxTokens > 0 {
		callOpts = append(callOpts, model.WithMaxTokens(opts.MaxTokens))
	}
	if opts.Temperature > 0 {
		callOpts = append(callOpts, model.WithTemperature(opts.Temperature))
	}

	var lastErr error
	for i, backend := range c.backends {
		out, err := c.callWithRetry(ctx, backend, messages, callOpts)
		if err != nil {
			lastErr = err
			c.usage.RecordFailure(backend.Name)
			logger.Warn(ctx, "generation backend failed",
				"backend", backend.Name, "error", err.Error())
			if i+1 < len(c.backends) && IsFailoverError(err) {
				continue
			}
			break
		}

		result := &GenerateResult{
			Text:     out.Content,
			Backend:  backend.Name,
			Fallback: i > 0,
		}
		if out.ResponseMeta != nil && out.ResponseMeta.Usage != nil {
			result.PromptTokens = out.ResponseMeta.Usage.PromptTokens
			result.CompletionTokens = out.ResponseMeta.Usage.CompletionTokens
			reservation.Adjust(result.PromptTokens + result.CompletionTokens)
		}
		c.account(ctx, backend.Name, "generate", result.PromptTokens, result.CompletionTokens)
		if result.Fallback {
			c.usage.RecordFallback()
			metrics.LLMFallbackTotal.Inc()
		}
		span.SetAttributes(
			attribute.String("backend", backend.Name),
			attribute.Bool("fallback", result.Fallback),
		)
		return result, nil
	}

	span.RecordError(lastErr)
	return nil, apperrors.Wrap(lastErr, apperrors.CodeGenerationUnavailable,
		"text generation unavailable on all backends")
}

// Embed produces the embedding vector for one text. No fallback exists:
// when the embedding backend is down, the error names quota exhaustion as
// the likely cause and the caller must treat search as unusable.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds a batch of texts in one backend call.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if c.embedder == nil {
		return nil, apperrors.New(apperrors.CodeEmbeddingUnavailable, "no embedding backend configured")
	}
	if len(texts) == 0 {
		return nil, nil
	}

	ctx, span := tracer.Start(ctx, "llm.EmbedBatch",
		trace.WithAttributes(attribute.Int("batch_size", len(texts))))
	defer span.End()

	estimated := 0
	for _, t := range texts {
		estimated += estimateTokens(t)
	}
	if _, err := c.limiter.Acquire(ctx, estimated); err != nil {
		return nil, fmt.Errorf("rate limit wait interrupted: %w", err)
	}

	start := time.Now()
	var vectors [][]float32
	err := c.withRetry(ctx, func() error {
		var callErr error
		vectors, callErr = c.embedder.EmbedStrings(ctx, texts)
		return callErr
	})
	metrics.LLMCallDuration.WithLabelValues("embedding", "embed").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.LLMCallTotal.WithLabelValues("embedding", "embed", "error").Inc()
		c.usage.RecordFailure("embedding")
		span.RecordError(err)
		return nil, apperrors.Wrap(err, apperrors.CodeEmbeddingUnavailable,
			"embedding backend unavailable, likely quota exhaustion")
	}
	if len(vectors) != len(texts) {
		return nil, apperrors.New(apperrors.CodeEmbeddingUnavailable,
			"embedding backend returned wrong vector count").
			WithDetail(fmt.Sprintf("want %d, got %d", len(texts), len(vectors)))
	}

	metrics.LLMCallTotal.WithLabelValues("embedding", "embed", "success").Inc()
	c.usage.RecordCall("embedding", estimated, 0)
	metrics.LLMTokensUsed.WithLabelValues("embedding", "prompt").Add(float64(estimated))
	return vectors, nil
}

// Usage returns a read-only accounting snapshot.
func (c *Client) Usage() UsageSnapshot {
	return c.usage.Snapshot()
}

// ResetUsage clears the accounting state.
func (c *Client) ResetUsage() {
	c.usage.Reset()
}

func (c *Client) callWithRetry(ctx context.Context, backend NamedBackend, messages []*schema.Message, opts []model.Option) (*schema.Message, error) {
	var out *schema.Message
	start := time.Now()
	err := c.withRetry(ctx, func() error {
		var callErr error
		out, callErr = backend.Model.Generate(ctx, messages, opts...)
		return callErr
	})
	metrics.LLMCallDuration.WithLabelValues(backend.Name, "generate").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.LLMCallTotal.WithLabelValues(backend.Name, "generate", "error").Inc()
		return nil, err
	}
	metrics.LLMCallTotal.WithLabelValues(backend.Name, "generate", "success").Inc()
	return out, nil
}

// withRetry runs fn up to the configured attempt count, backing off
// exponentially between transient failures. The final attempt's error
// propagates unchanged.
func (c *Client) withRetry(ctx context.Context, fn func() error) error {
	backoff := c.retry.Initial
	if backoff <= 0 {
		backoff = time.Second
	}

	var err error
	for attempt := 1; ; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if attempt >= c.retry.MaxAttempts || !IsTransientError(err) {
			return err
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		backoff = time.Duration(float64(backoff) * c.retry.Multiplier)
		if c.retry.Max > 0 && backoff > c.retry.Max {
			backoff = c.retry.Max
		}
	}
}

func (c *Client) account(ctx context.Context, backend, operation string, promptTokens, completionTokens int) {
	c.usage.RecordCall(backend, promptTokens, completionTokens)
	metrics.LLMTokensUsed.WithLabelValues(backend, "prompt").Add(float64(promptTokens))
	metrics.LLMTokensUsed.WithLabelValues(backend, "completion").Add(float64(completionTokens))

	if c.usageRepo == nil {
		return
	}
	event := &entity.LLMUsageEvent{
		Backend:          backend,
		Model:            c.modelName(backend),
		Operation:        operation,
		TokensPrompt:     promptTokens,
		TokensCompletion: completionTokens,
	}
	if err := c.usageRepo.Record(ctx, event); err != nil {
		logger.Warn(ctx, "failed to persist llm usage event", "error", err.Error())
	}
}

// estimateTokens is a coarse pre-call reservation; the limiter is
// corrected once the backend reports actual usage.
func estimateTokens(s string) int {
	return len([]rune(s))/4 + 1
}

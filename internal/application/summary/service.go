// Package summary builds the sermon- and series-level aggregates used
// by hierarchical search: generated summary text, a topic list, and a
// mean embedding over the underlying segment vectors.
package summary

import (
	"context"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"sermon-search-api/internal/domain/entity"
	"sermon-search-api/internal/domain/repository"
	"sermon-search-api/internal/infrastructure/llm"
	"sermon-search-api/internal/infrastructure/persistence/milvus"
	apperrors "sermon-search-api/pkg/errors"
	"sermon-search-api/pkg/logger"
)

var tracer = otel.Tracer("summary")

const (
	summaryMaxTokens   = 512
	summaryTemperature = 0.3
	maxTopics          = 8

	// Transcript text fed to the generator is truncated to keep prompts
	// inside backend context limits. Segments beyond the cut still
	// contribute to the mean embedding.
	maxPromptChars = 24000
)

// Generator is the text-generation slice of the LLM client.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts llm.GenerateOptions) (*llm.GenerateResult, error)
}

// VectorReader fetches stored segment vectors.
type VectorReader interface {
	GetSegmentVector(ctx context.Context, segmentID string) ([]float32, error)
	UpsertSummary(ctx context.Context, summary *milvus.SummaryVector) error
}

// Service regenerates aggregates on demand. Regeneration is wholesale,
// never incremental.
type Service struct {
	sermons   repository.SermonRepository
	segments  repository.SegmentRepository
	summaries repository.SummaryRepository
	vectors   VectorReader
	generator Generator
}

// NewService assembles the summary service.
func NewService(
	sermons repository.SermonRepository,
	segments repository.SegmentRepository,
	summaries repository.SummaryRepository,
	vectors VectorReader,
	generator Generator,
) *Service {
	return &Service{
		sermons:   sermons,
		segments:  segments,
		summaries: summaries,
		vectors:   vectors,
		generator: generator,
	}
}

// GenerateSermonSummary rebuilds one sermon's aggregate: summary text
// and topics from the generator, embedding as the normalized mean of
// the sermon's segment vectors.
func (s *Service) GenerateSermonSummary(ctx context.Context, sermonID string) (*entity.SermonSummary, error) {
	ctx, span := tracer.Start(ctx, "summary.GenerateSermonSummary",
		trace.WithAttributes(attribute.String("sermon_id", sermonID)))
	defer span.End()

	sermon, err := s.sermons.GetByID(ctx, sermonID)
	if err != nil {
		return nil, err
	}
	if sermon == nil {
		return nil, apperrors.ErrSermonNotFound
	}

	segments, err := s.segments.ListBySermon(ctx, sermonID)
	if err != nil {
		return nil, err
	}
	if len(segments) == 0 {
		return nil, apperrors.New(apperrors.CodeIndexingFailed,
			"sermon has no segments; run the embedding pipeline first")
	}

	text, topics, err := s.generateText(ctx, sermonPrompt(sermon))
	if err != nil {
		return nil, err
	}

	embedding, err := s.meanSegmentVector(ctx, segments)
	if err != nil {
		return nil, err
	}

	summary := &entity.SermonSummary{
		SermonID:  sermonID,
		SeriesID:  sermon.SeriesID,
		Summary:   text,
		Topics:    topics,
		Embedding: embedding,
	}
	if err := s.summaries.UpsertSermonSummary(ctx, summary); err != nil {
		return nil, err
	}

	if err := s.vectors.UpsertSummary(ctx, &milvus.SummaryVector{
		ID:       "sermon:" + sermonID,
		Vector:   embedding,
		SeriesID: sermon.SeriesID,
		SermonID: sermonID,
		Level:    milvus.SummaryLevelSermon,
		Summary:  text,
	}); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeVectorDBError, "failed to index sermon summary")
	}

	logger.Info(ctx, "sermon summary regenerated", "sermon_id", sermonID, "topics", len(topics))
	return summary, nil
}

// GenerateSeriesSummary rebuilds the series aggregate from the sermon
// aggregates, regenerating missing sermon summaries on the way.
func (s *Service) GenerateSeriesSummary(ctx context.Context, seriesID string) (*entity.SeriesSummary, error) {
	ctx, span := tracer.Start(ctx, "summary.GenerateSeriesSummary",
		trace.WithAttributes(attribute.String("series_id", seriesID)))
	defer span.End()

	var (
		sermonSummaries []*entity.SermonSummary
		page            = 1
	)
	for {
		sermons, err := s.sermons.ListBySeries(ctx, seriesID, nil, repository.NewPagination(page, 50))
		if err != nil {
			return nil, err
		}
		for _, sermon := range sermons.Items {
			existing, err := s.summaries.GetSermonSummary(ctx, sermon.ID)
			if err != nil {
				return nil, err
			}
			if existing == nil {
				existing, err = s.GenerateSermonSummary(ctx, sermon.ID)
				if err != nil {
					logger.Warn(ctx, "skipping sermon without summary",
						"sermon_id", sermon.ID, "error", err.Error())
					continue
				}
			}
			sermonSummaries = append(sermonSummaries, existing)
		}
		if page >= sermons.TotalPages {
			break
		}
		page++
	}

	if len(sermonSummaries) == 0 {
		return nil, apperrors.New(apperrors.CodeSeriesNotFound,
			"series has no summarizable sermons")
	}

	text, topics, err := s.generateText(ctx, seriesPrompt(sermonSummaries))
	if err != nil {
		return nil, err
	}

	embedding := s.meanSummaryVector(ctx, sermonSummaries)

	summary := &entity.SeriesSummary{
		SeriesID:  seriesID,
		Summary:   text,
		Topics:    topics,
		Embedding: embedding,
	}
	if err := s.summaries.UpsertSeriesSummary(ctx, summary); err != nil {
		return nil, err
	}

	if err := s.vectors.UpsertSummary(ctx, &milvus.SummaryVector{
		ID:       "series:" + seriesID,
		Vector:   embedding,
		SeriesID: seriesID,
		Level:    milvus.SummaryLevelSeries,
		Summary:  text,
	}); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeVectorDBError, "failed to index series summary")
	}

	logger.Info(ctx, "series summary regenerated", "series_id", seriesID, "sermons", len(sermonSummaries))
	return summary, nil
}

// generateText runs the generator and splits the response into summary
// text and a topic list. The prompt asks for a final "Topics:" line.
func (s *Service) generateText(ctx context.Context, prompt string) (string, []string, error) {
	result, err := s.generator.Generate(ctx, prompt, llm.GenerateOptions{
		MaxTokens:   summaryMaxTokens,
		Temperature: summaryTemperature,
	})
	if err != nil {
		return "", nil, err
	}
	text, topics := parseSummaryResponse(result.Text)
	return text, topics, nil
}

func sermonPrompt(sermon *entity.Sermon) string {
	text := truncateToRuneBoundary(sermon.FullText, maxPromptChars)
	return fmt.Sprintf(
		"Summarize the following sermon transcript in one paragraph, then list its main topics on a final line starting with \"Topics:\" separated by commas.\n\nTitle: %s\nSpeaker: %s\n\n%s",
		sermon.Title, sermon.Speaker, text)
}

// truncateToRuneBoundary cuts text to a byte budget without splitting a
// multi-byte rune, which accented transcripts would otherwise hit.
func truncateToRuneBoundary(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func seriesPrompt(summaries []*entity.SermonSummary) string {
	var b strings.Builder
	b.WriteString("Summarize the overall themes of this sermon series in one paragraph, then list its main topics on a final line starting with \"Topics:\" separated by commas.\n\n")
	for i, s := range summaries {
		fmt.Fprintf(&b, "Sermon %d: %s\n", i+1, s.Summary)
	}
	return b.String()
}

// parseSummaryResponse splits generated text into body and topics. A
// missing topics line yields an empty list, not an error.
func parseSummaryResponse(text string) (string, []string) {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	var topics []string
	body := lines

	last := strings.TrimSpace(lines[len(lines)-1])
	lowered := strings.ToLower(last)
	if strings.HasPrefix(lowered, "topics:") || strings.HasPrefix(lowered, "tópicos:") {
		raw := last[strings.Index(last, ":")+1:]
		for _, t := range strings.Split(raw, ",") {
			t = strings.TrimSpace(t)
			if t != "" {
				topics = append(topics, t)
			}
			if len(topics) >= maxTopics {
				break
			}
		}
		body = lines[:len(lines)-1]
	}

	return strings.TrimSpace(strings.Join(body, "\n")), topics
}

// meanSegmentVector averages the sermon's stored segment vectors and
// normalizes the result to unit length so cosine scores stay comparable
// with segment-level scores.
func (s *Service) meanSegmentVector(ctx context.Context, segments []*entity.Segment) ([]float32, error) {
	var (
		sum   []float64
		count int
	)
	for _, seg := range segments {
		vec, err := s.vectors.GetSegmentVector(ctx, seg.ID)
		if err != nil {
			return nil, err
		}
		if vec == nil {
			continue
		}
		if sum == nil {
			sum = make([]float64, len(vec))
		}
		if len(vec) != len(sum) {
			return nil, apperrors.New(apperrors.CodeVectorDBError, "inconsistent vector dimensions")
		}
		for i, v := range vec {
			sum[i] += float64(v)
		}
		count++
	}
	if count == 0 {
		return nil, apperrors.New(apperrors.CodeIndexingFailed,
			"no segment vectors indexed; run the embedding pipeline first")
	}

	return normalize(sum, count), nil
}

func (s *Service) meanSummaryVector(ctx context.Context, summaries []*entity.SermonSummary) []float32 {
	var (
		sum   []float64
		count int
	)
	for _, sm := range summaries {
		if len(sm.Embedding) == 0 {
			continue
		}
		if sum == nil {
			sum = make([]float64, len(sm.Embedding))
		}
		if len(sm.Embedding) != len(sum) {
			continue
		}
		for i, v := range sm.Embedding {
			sum[i] += float64(v)
		}
		count++
	}
	if count == 0 {
		return nil
	}
	return normalize(sum, count)
}

func normalize(sum []float64, count int) []float32 {
	mean := make([]float64, len(sum))
	var norm float64
	for i, v := range sum {
		mean[i] = v / float64(count)
		norm += mean[i] * mean[i]
	}
	norm = math.Sqrt(norm)

	out := make([]float32, len(mean))
	for i, v := range mean {
		if norm > 0 {
			out[i] = float32(v / norm)
		}
	}
	return out
}

package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("messaging")

// Producer publishes job messages onto Redis Streams.
type Producer struct {
	client *redis.Client
	maxLen int64
}

// NewProducer creates the producer. maxLen caps stream growth.
func NewProducer(client *redis.Client, maxLen int64) *Producer {
	if maxLen <= 0 {
		maxLen = 100000
	}
	return &Producer{
		client: client,
		maxLen: maxLen,
	}
}

// Publish appends a message to a stream.
func (p *Producer) Publish(ctx context.Context, stream Stream, msg *Message) (string, error) {
	ctx, span := tracer.Start(ctx, "producer.Publish",
		trace.WithAttributes(
			attribute.String("stream", string(stream)),
			attribute.String("message.id", msg.ID),
			attribute.String("message.type", msg.Type),
		))
	defer span.End()

	data, err := json.Marshal(msg)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to marshal message: %w", err)
	}

	result, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: string(stream),
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Result()

	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to publish message: %w", err)
	}

	span.SetAttributes(attribute.String("stream.message_id", result))
	return result, nil
}

// PublishIndexJob enqueues an embedding pipeline run for a sermon.
func (p *Producer) PublishIndexJob(ctx context.Context, job *IndexJobMessage) (string, error) {
	msg, err := NewMessage(uuid.NewString(), TypeSermonIndex, job.SeriesID, job.SermonID, job)
	if err != nil {
		return "", err
	}

	if job.Force {
		msg.SetMetadata("force", "true")
	}

	return p.Publish(ctx, StreamSermonIndex, msg)
}

// PublishLinkJob enqueues relationship generation for one segment.
func (p *Producer) PublishLinkJob(ctx context.Context, job *LinkJobMessage) (string, error) {
	msg, err := NewMessage(uuid.NewString(), TypeSegmentLink, job.SeriesID, job.SermonID, job)
	if err != nil {
		return "", err
	}

	return p.Publish(ctx, StreamSegmentLink, msg)
}

// PublishSeriesLinkJob enqueues relationship generation for a whole series.
func (p *Producer) PublishSeriesLinkJob(ctx context.Context, job *SeriesLinkJobMessage) (string, error) {
	msg, err := NewMessage(uuid.NewString(), TypeSeriesLink, job.SeriesID, "", job)
	if err != nil {
		return "", err
	}

	return p.Publish(ctx, StreamSegmentLink, msg)
}

// IndexJobMessage asks the worker to run the embedding pipeline.
type IndexJobMessage struct {
	SermonID string `json:"sermon_id"`
	SeriesID string `json:"series_id,omitempty"`
	Force    bool   `json:"force"`
}

// LinkJobMessage asks the worker to link a single segment.
type LinkJobMessage struct {
	SegmentID     string  `json:"segment_id"`
	SermonID      string  `json:"sermon_id,omitempty"`
	SeriesID      string  `json:"series_id,omitempty"`
	MinSimilarity float64 `json:"min_similarity,omitempty"`
	MaxLinks      int     `json:"max_links,omitempty"`
}

// SeriesLinkJobMessage asks the worker to link every segment in a series.
type SeriesLinkJobMessage struct {
	SeriesID      string  `json:"series_id"`
	MinSimilarity float64 `json:"min_similarity,omitempty"`
	MaxLinks      int     `json:"max_links,omitempty"`
}

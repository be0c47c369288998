// Package messaging provides the Redis Streams job queue.
package messaging

import (
	"encoding/json"
	"time"
)

// Message is the envelope every stream entry carries.
type Message struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	SeriesID  string            `json:"series_id"`
	SermonID  string            `json:"sermon_id"`
	Payload   json.RawMessage   `json:"payload"`
	Metadata  map[string]string `json:"metadata"`
	CreatedAt time.Time         `json:"created_at"`
}

// NewMessage wraps a payload into an envelope.
func NewMessage(id, msgType, seriesID, sermonID string, payload interface{}) (*Message, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Message{
		ID:        id,
		Type:      msgType,
		SeriesID:  seriesID,
		SermonID:  sermonID,
		Payload:   payloadBytes,
		Metadata:  make(map[string]string),
		CreatedAt: time.Now(),
	}, nil
}

// SetMetadata sets a metadata entry.
func (m *Message) SetMetadata(key, value string) {
	if m.Metadata == nil {
		m.Metadata = make(map[string]string)
	}
	m.Metadata[key] = value
}

// GetMetadata reads a metadata entry.
func (m *Message) GetMetadata(key string) string {
	if m.Metadata == nil {
		return ""
	}
	return m.Metadata[key]
}

// UnmarshalPayload decodes the payload into v.
func (m *Message) UnmarshalPayload(v interface{}) error {
	return json.Unmarshal(m.Payload, v)
}

// Stream names.
type Stream string

const (
	StreamSermonIndex Stream = "stream:sermon:index"
	StreamSegmentLink Stream = "stream:segment:link"
)

// DLQStream returns the dead-letter stream for this stream.
func (s Stream) DLQStream() string {
	return "dlq:" + string(s)
}

// ConsumerGroup names.
type ConsumerGroup string

const (
	ConsumerGroupIndexWorker ConsumerGroup = "cg-index-worker"
	ConsumerGroupLinkWorker  ConsumerGroup = "cg-link-worker"
)

// Message types carried on the streams.
const (
	TypeSermonIndex = "sermon_index"
	TypeSegmentLink = "segment_link"
	TypeSeriesLink  = "series_link"
)

// BackoffConfig controls redelivery spacing for failed messages.
type BackoffConfig struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

// DefaultBackoffConfig returns the standard redelivery backoff.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		Initial:    time.Second,
		Max:        time.Minute,
		Multiplier: 2,
	}
}

// CalculateBackoff returns the delay before the given retry.
func (c BackoffConfig) CalculateBackoff(retryCount int) time.Duration {
	backoff := c.Initial
	for i := 0; i < retryCount; i++ {
		backoff = time.Duration(float64(backoff) * c.Multiplier)
		if backoff > c.Max {
			backoff = c.Max
			break
		}
	}
	return backoff
}

// Package embedding provides the embedding backend client.
package embedding

import (
	"context"
	"fmt"

	"sermon-search-api/internal/config"

	"github.com/cloudwego/eino-ext/components/embedding/openai"
	"github.com/cloudwego/eino/components/embedding"
)

// Client wraps an eino embedder, batching requests and converting the
// vectors to float32 for the vector store. Exactly one embedding backend
// exists system-wide.
type Client struct {
	embedder  embedding.Embedder
	dimension int
	batchSize int
}

// NewClient creates the embedding client from config.
func NewClient(ctx context.Context, cfg *config.EmbeddingConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("embedding base_url is required")
	}

	embedder, err := openai.NewEmbedder(ctx, &openai.EmbeddingConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create eino embedder: %w", err)
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 32
	}

	return &Client{
		embedder:  embedder,
		dimension: cfg.Dimension,
		batchSize: batchSize,
	}, nil
}

// Dimension returns the configured vector dimension.
func (c *Client) Dimension() int {
	return c.dimension
}

// EmbedStrings embeds texts in batches, preserving input order.
func (c *Client) EmbedStrings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	all := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += c.batchSize {
		end := i + c.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		vectors, err := c.embedder.EmbedStrings(ctx, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("embedding request failed: %w", err)
		}
		if len(vectors) != end-i {
			return nil, fmt.Errorf("embedding response size mismatch: want %d, got %d", end-i, len(vectors))
		}

		for _, v := range vectors {
			if c.dimension > 0 && len(v) != c.dimension {
				return nil, fmt.Errorf("embedding dimension mismatch: want %d, got %d", c.dimension, len(v))
			}
			vec := make([]float32, len(v))
			for j, f := range v {
				vec[j] = float32(f)
			}
			all = append(all, vec)
		}
	}

	return all, nil
}

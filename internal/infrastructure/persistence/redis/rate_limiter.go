package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var limiterTracer = otel.Tracer("redis.ratelimit")

// RateLimiter implements a sliding-window limiter over Redis sorted
// sets. Each request is a ZSet member scored by its timestamp; counting
// members inside the window gives the current usage. Used by the HTTP
// middleware to cap per-client request rates.
type RateLimiter struct {
	client *Client
	window time.Duration
	limit  int
}

// NewRateLimiter creates the limiter.
func NewRateLimiter(client *Client, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		window: window,
		limit:  limit,
	}
}

// Allow reports whether one more request fits inside the window.
func (r *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	return r.AllowN(ctx, key, 1)
}

// AllowN reports whether n more requests fit inside the window, and
// records them if they do.
func (r *RateLimiter) AllowN(ctx context.Context, key string, n int) (bool, error) {
	ctx, span := limiterTracer.Start(ctx, "ratelimit.AllowN",
		trace.WithAttributes(
			attribute.String("ratelimit.key", key),
			attribute.Int("ratelimit.n", n),
		))
	defer span.End()

	now := time.Now()
	windowStart := now.Add(-r.window)

	pipe := r.client.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart.UnixNano(), 10))
	countCmd := pipe.ZCard(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("failed to count rate limit window: %w", err)
	}

	used := int(countCmd.Val())
	if used+n > r.limit {
		span.SetAttributes(attribute.Bool("ratelimit.allowed", false))
		return false, nil
	}

	members := make([]redis.Z, 0, n)
	for i := 0; i < n; i++ {
		members = append(members, redis.Z{
			Score:  float64(now.UnixNano()),
			Member: fmt.Sprintf("%d-%s", now.UnixNano(), uuid.NewString()),
		})
	}

	record := r.client.rdb.TxPipeline()
	record.ZAdd(ctx, key, members...)
	record.Expire(ctx, key, r.window)
	if _, err := record.Exec(ctx); err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("failed to record rate limit usage: %w", err)
	}

	span.SetAttributes(attribute.Bool("ratelimit.allowed", true))
	return true, nil
}

// Remaining returns how many requests are left in the current window.
func (r *RateLimiter) Remaining(ctx context.Context, key string) (int, error) {
	ctx, span := limiterTracer.Start(ctx, "ratelimit.Remaining",
		trace.WithAttributes(attribute.String("ratelimit.key", key)))
	defer span.End()

	windowStart := time.Now().Add(-r.window)

	count, err := r.client.rdb.ZCount(ctx, key,
		strconv.FormatInt(windowStart.UnixNano(), 10), "+inf").Result()
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to count rate limit window: %w", err)
	}

	remaining := r.limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Reset clears the window for a key.
func (r *RateLimiter) Reset(ctx context.Context, key string) error {
	ctx, span := limiterTracer.Start(ctx, "ratelimit.Reset",
		trace.WithAttributes(attribute.String("ratelimit.key", key)))
	defer span.End()

	return r.client.rdb.Del(ctx, key).Err()
}

// BuildRateLimitKey namespaces the limiter keys per client.
func BuildRateLimitKey(clientID string) string {
	return fmt.Sprintf("ratelimit:http:%s", clientID)
}

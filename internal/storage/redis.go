package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/maneesh/vidvault/internal/models"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	// CacheTTL is the time-to-live for cached video metadata (5 minutes)
	CacheTTL = 5 * time.Minute
)

// RedisCache wraps Redis operations with tracing
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache initializes a new Redis client
func NewRedisCache(addr, password string, db int) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Test the connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return &RedisCache{client: client}, nil
}

// Close closes the Redis connection
func (rc *RedisCache) Close() error {
	return rc.client.Close()
}

func videoKey(id string) string {
	return fmt.Sprintf("video:%s", id)
}

// GetVideo retrieves a video record from cache. A miss returns nil, nil.
func (rc *RedisCache) GetVideo(ctx context.Context, id string) (*models.Video, error) {
	ctx, span := tracer.Start(ctx, "redis.get_video",
		trace.WithAttributes(
			attribute.String("video_id", id),
		),
	)
	defer span.End()

	data, err := rc.client.Get(ctx, videoKey(id)).Result()

	if err == redis.Nil {
		span.SetAttributes(
			attribute.Bool("cache_hit", false),
			attribute.String("cache_status", "miss"),
		)
		return nil, nil // Cache miss, not an error
	} else if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get from cache: %w", err)
	}

	var video models.Video
	if err := json.Unmarshal([]byte(data), &video); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to unmarshal cached data: %w", err)
	}

	span.SetAttributes(
		attribute.Bool("cache_hit", true),
		attribute.String("cache_status", "hit"),
	)
	return &video, nil
}

// SetVideo stores a video record in cache
func (rc *RedisCache) SetVideo(ctx context.Context, video *models.Video) error {
	ctx, span := tracer.Start(ctx, "redis.set_video",
		trace.WithAttributes(
			attribute.String("video_id", video.ID),
			attribute.String("storage_name", video.StorageName),
		),
	)
	defer span.End()

	data, err := json.Marshal(video)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to marshal video: %w", err)
	}

	err = rc.client.Set(ctx, videoKey(video.ID), data, CacheTTL).Err()
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to set cache: %w", err)
	}

	span.SetAttributes(
		attribute.Bool("cache_set_success", true),
		attribute.Int64("ttl_seconds", int64(CacheTTL.Seconds())),
	)
	return nil
}

// InvalidateVideo removes a video record from cache
func (rc *RedisCache) InvalidateVideo(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "redis.invalidate_video",
		trace.WithAttributes(
			attribute.String("video_id", id),
		),
	)
	defer span.End()

	err := rc.client.Del(ctx, videoKey(id)).Err()
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to invalidate cache: %w", err)
	}

	span.SetAttributes(attribute.Bool("cache_invalidate_success", true))
	return nil
}

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/therealutkarshpriyadarshi/streamflow/pkg/models"
)

const catalogKey = "catalog:all"

// Cache provides caching functionality using Redis
type Cache struct {
	client *redis.Client
}

// NewCache creates a new cache instance and checks the connection
func NewCache(host string, port int, password string, db int) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Cache{client: client}, nil
}

// Client exposes the Redis client so the session store can share the pool
func (c *Cache) Client() *redis.Client {
	return c.client
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	return c.client.Close()
}

// Catalog Cache Operations

// SetCatalog caches the full video list in backend order
func (c *Cache) SetCatalog(ctx context.Context, videos []models.Video, ttl time.Duration) error {
	return c.SetWithJSON(ctx, catalogKey, videos, ttl)
}

// GetCatalog returns the cached catalog; ok is false on a miss
func (c *Cache) GetCatalog(ctx context.Context) (videos []models.Video, ok bool, err error) {
	ok, err = c.GetWithJSON(ctx, catalogKey, &videos)
	return videos, ok, err
}

// Video Cache Operations

// SetVideo caches video metadata
func (c *Cache) SetVideo(ctx context.Context, video *models.Video, ttl time.Duration) error {
	return c.SetWithJSON(ctx, videoKey(video.UniqueID), video, ttl)
}

// GetVideo retrieves video metadata from cache
func (c *Cache) GetVideo(ctx context.Context, videoID string) (*models.Video, error) {
	var video models.Video
	ok, err := c.GetWithJSON(ctx, videoKey(videoID), &video)
	if err != nil || !ok {
		return nil, err // nil, nil on a miss
	}
	return &video, nil
}

// SetUploaderVideos caches the videos of one uploader
func (c *Cache) SetUploaderVideos(ctx context.Context, email string, videos []models.Video, ttl time.Duration) error {
	return c.SetWithJSON(ctx, uploaderKey(email), videos, ttl)
}

// GetUploaderVideos returns the cached uploader list; ok is false on a miss
func (c *Cache) GetUploaderVideos(ctx context.Context, email string) (videos []models.Video, ok bool, err error) {
	ok, err = c.GetWithJSON(ctx, uploaderKey(email), &videos)
	return videos, ok, err
}

// InvalidateVideo drops every cached read that may include videoID
func (c *Cache) InvalidateVideo(ctx context.Context, videoID, uploaderEmail string) error {
	keys := []string{catalogKey, videoKey(videoID), durationKey(videoID)}
	if uploaderEmail != "" {
		keys = append(keys, uploaderKey(uploaderEmail))
	}
	return c.client.Del(ctx, keys...).Err()
}

// InvalidateCatalog drops the cached catalog and uploader lists
func (c *Cache) InvalidateCatalog(ctx context.Context, uploaderEmail string) error {
	keys := []string{catalogKey}
	if uploaderEmail != "" {
		keys = append(keys, uploaderKey(uploaderEmail))
	}
	return c.client.Del(ctx, keys...).Err()
}

// Duration Cache Operations

// SetDuration caches a probed duration in seconds
func (c *Cache) SetDuration(ctx context.Context, videoID string, seconds float64, ttl time.Duration) error {
	return c.client.Set(ctx, durationKey(videoID), seconds, ttl).Err()
}

// GetDuration returns a cached duration; ok is false on a miss
func (c *Cache) GetDuration(ctx context.Context, videoID string) (float64, bool, error) {
	seconds, err := c.client.Get(ctx, durationKey(videoID)).Float64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get duration from cache: %w", err)
	}
	return seconds, true, nil
}

// Reset Token Operations

func resetTokenKey(tokenID string) string {
	return "reset:used:" + tokenID
}

// ClaimResetToken marks a reset token as spent; it returns false when the
// token was spent already
func (c *Cache) ClaimResetToken(ctx context.Context, tokenID string, ttl time.Duration) (bool, error) {
	ok, err := c.client.SetNX(ctx, resetTokenKey(tokenID), 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim reset token: %w", err)
	}
	return ok, nil
}

// ReleaseResetToken forgets a claim so the token can be tried again
func (c *Cache) ReleaseResetToken(ctx context.Context, tokenID string) error {
	return c.client.Del(ctx, resetTokenKey(tokenID)).Err()
}

// Upload Progress Operations

// SetUploadProgress records the percentage sent for an upload
func (c *Cache) SetUploadProgress(ctx context.Context, uploadID string, percent int, ttl time.Duration) error {
	return c.client.Set(ctx, progressKey(uploadID), percent, ttl).Err()
}

// GetUploadProgress returns the stored percentage; ok is false when unknown
func (c *Cache) GetUploadProgress(ctx context.Context, uploadID string) (int, bool, error) {
	percent, err := c.client.Get(ctx, progressKey(uploadID)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get upload progress: %w", err)
	}
	return percent, true, nil
}

// Rate Limiting Operations

// CheckRateLimit counts a hit against key and reports whether it is within limit
func (c *Cache) CheckRateLimit(ctx context.Context, key string, limit int64, window time.Duration) (bool, error) {
	rateLimitKey := fmt.Sprintf("ratelimit:%s", key)

	count, err := c.client.Incr(ctx, rateLimitKey).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit: %w", err)
	}

	if count == 1 {
		if err := c.client.Expire(ctx, rateLimitKey, window).Err(); err != nil {
			return false, fmt.Errorf("failed to set expiry: %w", err)
		}
	}

	return count <= limit, nil
}

// SetWithJSON sets a value with JSON marshaling
func (c *Cache) SetWithJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

// GetWithJSON gets a value with JSON unmarshaling; ok is false on a miss
func (c *Cache) GetWithJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get value from cache: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal value: %w", err)
	}

	return true, nil
}

// Ping is the health check
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func videoKey(id string) string {
	return fmt.Sprintf("video:%s", id)
}

func uploaderKey(email string) string {
	return fmt.Sprintf("uploader:%s", email)
}

func durationKey(id string) string {
	return fmt.Sprintf("duration:%s", id)
}

func progressKey(id string) string {
	return fmt.Sprintf("upload:progress:%s", id)
}

package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/avolkoff/tourbooking/config"
	"github.com/avolkoff/tourbooking/internal/domain"
	"github.com/redis/go-redis/v9"
)

type RedisCache struct {
	client    *redis.Client
	guidesTTL time.Duration
}

func NewRedisCache(cfg config.RedisConfig, guidesTTL time.Duration) *RedisCache {
	return &RedisCache{
		client:    redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		guidesTTL: guidesTTL,
	}
}

// NewRedisCacheWithClient wraps an existing client. Used in tests with redismock.
func NewRedisCacheWithClient(client *redis.Client, guidesTTL time.Duration) *RedisCache {
	return &RedisCache{client: client, guidesTTL: guidesTTL}
}

func (c *RedisCache) GetGuides(ctx context.Context) ([]domain.Guide, error) {
	data, err := c.client.Get(ctx, guidesKey()).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var guides []domain.Guide
	if err := json.Unmarshal(data, &guides); err != nil {
		return nil, err
	}
	return guides, nil
}

func (c *RedisCache) SetGuides(ctx context.Context, guides []domain.Guide) error {
	payload, err := json.Marshal(guides)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, guidesKey(), payload, c.guidesTTL).Err()
}

func (c *RedisCache) InvalidateGuides(ctx context.Context) error {
	return c.client.Del(ctx, guidesKey()).Err()
}

// AcquireReminderLock spaces reminder scans across instances. The in-process
// debounce already guards a single instance; this keeps a fleet from all
// scanning at once.
func (c *RedisCache) AcquireReminderLock(ctx context.Context, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, reminderLockKey(), "locked", ttl).Result()
}

func guidesKey() string {
	return "cache:guides:active"
}

func reminderLockKey() string {
	return "lock:reminder:scan"
}

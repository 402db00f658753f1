package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"storefront-service/internal/models"
)

const settingsKey = "settings:snapshot"

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// GetSettings returns the cached settings snapshot, or nil on a cache miss.
func (c *Client) GetSettings(ctx context.Context) (*models.AppSettings, error) {
	raw, err := c.rdb.Get(ctx, settingsKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var settings models.AppSettings
	if err := json.Unmarshal(raw, &settings); err != nil {
		return nil, fmt.Errorf("corrupt settings cache: %w", err)
	}
	return &settings, nil
}

// SetSettings caches a settings snapshot with a TTL.
func (c *Client) SetSettings(ctx context.Context, settings *models.AppSettings, ttl time.Duration) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, settingsKey, raw, ttl).Err()
}

// InvalidateSettings drops the cached snapshot so the next read hits the database.
func (c *Client) InvalidateSettings(ctx context.Context) error {
	return c.rdb.Del(ctx, settingsKey).Err()
}

// MarkWebhookSeen records a provider transaction id with a TTL. Returns false
// if the id was already recorded, giving reconciliation a cheap dedupe fast
// path; the session row's terminal status remains the source of truth.
func (c *Client) MarkWebhookSeen(ctx context.Context, providerTxID string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("webhook:tx:%s", providerTxID), "1", ttl).Result()
}

// ClearWebhookSeen drops a dedupe mark so a provider retry is processed again.
func (c *Client) ClearWebhookSeen(ctx context.Context, providerTxID string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("webhook:tx:%s", providerTxID)).Err()
}

package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/virtualhems/fleet-relay/internal/types"
)

// RedisClientInterface defines the Redis operations used by our client
type RedisClientInterface interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Close() error
}

// Client mirrors the live fleet into Redis so operational tooling can
// inspect it out of process. The mirror is best-effort: entries carry a
// TTL so ghosts age out, and it is never read back at startup, so a
// relay restart still loses the fleet view.
type Client struct {
	client RedisClientInterface
	ttl    time.Duration
}

// New creates a new Redis client. Mirrored entries expire after ttl.
func New(addr string, ttl time.Duration) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: "", // no password set
		DB:       0,  // use default DB
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{client: client, ttl: ttl}, nil
}

// NewWithClient creates a new Redis client with a custom RedisClientInterface (useful for testing)
func NewWithClient(client RedisClientInterface, ttl time.Duration) *Client {
	return &Client{client: client, ttl: ttl}
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.client.Close()
}

// StoreFleetEntry stores a participant's latest telemetry in Redis.
func (c *Client) StoreFleetEntry(ctx context.Context, rec *types.TelemetryRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal telemetry: %w", err)
	}

	key := fmt.Sprintf("fleet:%s", rec.UserID)
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

// GetFleetEntry retrieves a participant's latest telemetry from Redis.
// A missing or expired entry returns (nil, nil).
func (c *Client) GetFleetEntry(ctx context.Context, userID string) (*types.TelemetryRecord, error) {
	key := fmt.Sprintf("fleet:%s", userID)
	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil // Entry not found
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get fleet entry: %w", err)
	}

	var rec types.TelemetryRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal fleet entry: %w", err)
	}
	return &rec, nil
}

// DeleteFleetEntry removes a participant's telemetry from Redis.
func (c *Client) DeleteFleetEntry(ctx context.Context, userID string) error {
	key := fmt.Sprintf("fleet:%s", userID)
	return c.client.Del(ctx, key).Err()
}

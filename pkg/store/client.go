package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Client adapts a Redis connection to the document-store operations the
// game components need: point writes, partial updates, point and
// collection reads, deletes, a capped append-only log, and
// subscribe-with-callback change notifications.
type Client struct {
	rdb  *redis.Client
	Keys *KeyBuilder
	log  *zap.Logger
}

// NewClient creates a new store client
func NewClient(redisURL string, environment string, log *zap.Logger) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.MaxRetries = 3
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	rdb := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{rdb: rdb, Keys: NewKeyBuilder(environment), log: log}, nil
}

// Close closes the store connection
func (c *Client) Close() error {
	if c.rdb != nil {
		return c.rdb.Close()
	}
	return nil
}

// Health checks the store connection
func (c *Client) Health(ctx context.Context) error {
	start := time.Now()
	err := c.rdb.Ping(ctx).Err()
	dur := time.Since(start)
	if err != nil {
		c.log.Info("store_ping", zap.Duration("duration", dur), zap.Error(err))
	} else {
		c.log.Debug("store_ping", zap.Duration("duration", dur))
	}
	return err
}

// IsNotFound reports whether err means the document does not exist
func IsNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}

// SetFields writes fields of a document hash (create-or-replace for the
// given fields, partial update for the rest)
func (c *Client) SetFields(ctx context.Context, key string, values map[string]interface{}) error {
	start := time.Now()
	err := c.rdb.HSet(ctx, key, values).Err()
	dur := time.Since(start)
	if err != nil {
		c.log.Info("store_hset",
			zap.String("key_prefix", prefixForLog(key)),
			zap.Int("fields", len(values)),
			zap.Duration("duration", dur),
			zap.Error(err))
	} else {
		c.log.Debug("store_hset",
			zap.String("key_prefix", prefixForLog(key)),
			zap.Int("fields", len(values)),
			zap.Duration("duration", dur))
	}
	return err
}

// SetField writes a single field of a document hash
func (c *Client) SetField(ctx context.Context, key, field string, value interface{}) error {
	return c.SetFields(ctx, key, map[string]interface{}{field: value})
}

// GetField reads a single field of a document hash. Returns redis.Nil
// (see IsNotFound) when the field is absent.
func (c *Client) GetField(ctx context.Context, key, field string) (string, error) {
	start := time.Now()
	val, err := c.rdb.HGet(ctx, key, field).Result()
	dur := time.Since(start)
	if err != nil && !errors.Is(err, redis.Nil) {
		c.log.Info("store_hget",
			zap.String("key_prefix", prefixForLog(key)),
			zap.Duration("duration", dur),
			zap.Error(err))
	} else {
		c.log.Debug("store_hget",
			zap.String("key_prefix", prefixForLog(key)),
			zap.Duration("duration", dur))
	}
	return val, err
}

// GetAll reads every field of a document hash. An absent key yields an
// empty map, not an error.
func (c *Client) GetAll(ctx context.Context, key string) (map[string]string, error) {
	start := time.Now()
	m, err := c.rdb.HGetAll(ctx, key).Result()
	dur := time.Since(start)
	if err != nil {
		c.log.Info("store_hgetall",
			zap.String("key_prefix", prefixForLog(key)),
			zap.Duration("duration", dur),
			zap.Error(err))
	} else {
		c.log.Debug("store_hgetall",
			zap.String("key_prefix", prefixForLog(key)),
			zap.Int("fields", len(m)),
			zap.Duration("duration", dur))
	}
	return m, err
}

// Fields lists the field names of a document hash
func (c *Client) Fields(ctx context.Context, key string) ([]string, error) {
	start := time.Now()
	fields, err := c.rdb.HKeys(ctx, key).Result()
	dur := time.Since(start)
	c.log.Debug("store_hkeys",
		zap.String("key_prefix", prefixForLog(key)),
		zap.Int("fields", len(fields)),
		zap.Duration("duration", dur),
		zap.Error(err))
	return fields, err
}

// DeleteFields removes fields from a document hash
func (c *Client) DeleteFields(ctx context.Context, key string, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	start := time.Now()
	err := c.rdb.HDel(ctx, key, fields...).Err()
	dur := time.Since(start)
	c.log.Debug("store_hdel",
		zap.String("key_prefix", prefixForLog(key)),
		zap.Int("fields", len(fields)),
		zap.Duration("duration", dur),
		zap.Error(err))
	return err
}

// Exists checks how many of the given keys exist
func (c *Client) Exists(ctx context.Context, keys ...string) (int64, error) {
	start := time.Now()
	n, err := c.rdb.Exists(ctx, keys...).Result()
	dur := time.Since(start)
	if err != nil {
		c.log.Info("store_exists",
			zap.Int("keys", len(keys)),
			zap.Duration("duration", dur),
			zap.Error(err))
	} else {
		c.log.Debug("store_exists",
			zap.Int64("result", n),
			zap.Int("keys", len(keys)),
			zap.Duration("duration", dur))
	}
	return n, err
}

// AppendCapped pushes an entry onto the head of a capped log and trims
// it to the newest capacity entries
func (c *Client) AppendCapped(ctx context.Context, key string, value interface{}, capacity int64) error {
	pipe := c.rdb.Pipeline()
	pipe.LPush(ctx, key, value)
	pipe.LTrim(ctx, key, 0, capacity-1)
	start := time.Now()
	_, err := pipe.Exec(ctx)
	dur := time.Since(start)
	if err != nil {
		c.log.Info("store_append_capped",
			zap.String("key_prefix", prefixForLog(key)),
			zap.Int64("capacity", capacity),
			zap.Duration("duration", dur),
			zap.Error(err))
	} else {
		c.log.Debug("store_append_capped",
			zap.String("key_prefix", prefixForLog(key)),
			zap.Int64("capacity", capacity),
			zap.Duration("duration", dur))
	}
	return err
}

// RangeNewest reads the newest n entries of a capped log, newest first
func (c *Client) RangeNewest(ctx context.Context, key string, n int64) ([]string, error) {
	start := time.Now()
	entries, err := c.rdb.LRange(ctx, key, 0, n-1).Result()
	dur := time.Since(start)
	c.log.Debug("store_lrange",
		zap.String("key_prefix", prefixForLog(key)),
		zap.Int("entries", len(entries)),
		zap.Duration("duration", dur),
		zap.Error(err))
	return entries, err
}

// Publish fans a change notification out to every subscriber of a channel
func (c *Client) Publish(ctx context.Context, channel, payload string) error {
	start := time.Now()
	err := c.rdb.Publish(ctx, channel, payload).Err()
	dur := time.Since(start)
	c.log.Debug("store_publish",
		zap.String("channel", prefixForLog(channel)),
		zap.Duration("duration", dur),
		zap.Error(err))
	return err
}

// Disposer tears down one subscription
type Disposer func()

// Subscribe registers a callback for change notifications on a channel
// and returns a disposer that stops delivery. The callback runs on a
// per-subscription goroutine; callers serialize their own state.
func (c *Client) Subscribe(ctx context.Context, channel string, onMessage func(payload string)) Disposer {
	pubsub := c.rdb.Subscribe(ctx, channel)

	go func() {
		for msg := range pubsub.Channel() {
			onMessage(msg.Payload)
		}
	}()

	c.log.Debug("store_subscribe", zap.String("channel", prefixForLog(channel)))

	return func() {
		if err := pubsub.Close(); err != nil {
			c.log.Warn("store_unsubscribe",
				zap.String("channel", prefixForLog(channel)),
				zap.Error(err))
		}
	}
}

// prefixForLog returns a safe prefix of a key to keep log lines short
func prefixForLog(key string) string {
	if len(key) <= 48 {
		return key
	}
	return key[:48] + "…"
}
